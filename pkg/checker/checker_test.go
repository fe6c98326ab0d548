package checker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/evetools-dev/eve-tools/pkg/cache"
	"github.com/evetools-dev/eve-tools/pkg/sde"
)

// fakeRequest is the minimal admission view of a composed request.
type fakeRequest struct {
	endpoint string
	method   string
	declared map[string]bool
	args     map[string]any

	blocked       bool
	blockedReason string
}

func (r *fakeRequest) EndpointKey() string { return r.endpoint }
func (r *fakeRequest) Method() string      { return r.method }

func (r *fakeRequest) DeclaresParam(name string) bool { return r.declared[name] }

func (r *fakeRequest) Argument(name string) (any, bool) {
	v, ok := r.args[name]
	return v, ok
}

func (r *fakeRequest) MarkBlocked(reason string) {
	r.blocked = true
	r.blockedReason = reason
}

func typeRequest(typeID any) *fakeRequest {
	return &fakeRequest{
		endpoint: "/markets/{region_id}/history/",
		method:   http.MethodGet,
		declared: map[string]bool{"type_id": true, "region_id": true},
		args:     map[string]any{"type_id": typeID, "region_id": 10000002},
	}
}

func testSDE() *sde.TypeTable {
	return sde.NewTypeTable([]sde.TypeInfo{
		{TypeID: 34, Name: "Tritanium", Published: true},
		{TypeID: 9999, Name: "Prototype Hull", Published: false},
	})
}

// countingTypeServer serves /universe/types/{id}/ and counts hits.
func countingTypeServer(t *testing.T, status int, published bool) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(status)
		if status == http.StatusOK {
			fmt.Fprintf(w, `{"type_id": 34, "name": "Tritanium", "published": %v}`, published)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestChecker(t *testing.T, baseURL string) *Checker {
	t.Helper()
	return New(Config{
		SDE:     testSDE(),
		Store:   cache.NewMemoryStore(),
		BaseURL: baseURL,
		Logger:  zerolog.Nop(),
	})
}

func TestCheck_NoTypeParamDeclared(t *testing.T) {
	srv, calls := countingTypeServer(t, http.StatusOK, true)
	c := newTestChecker(t, srv.URL)

	req := &fakeRequest{endpoint: "/status/", method: http.MethodGet}
	if err := c.Check(context.Background(), req); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("live lookups = %d, want 0", calls.Load())
	}
}

func TestCheck_OptionalTypeIDAbsent(t *testing.T) {
	srv, calls := countingTypeServer(t, http.StatusOK, true)
	c := newTestChecker(t, srv.URL)

	req := typeRequest(nil)
	if err := c.Check(context.Background(), req); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("live lookups = %d, want 0", calls.Load())
	}
}

func TestCheck_UnknownTypeRejectedLocally(t *testing.T) {
	srv, calls := countingTypeServer(t, http.StatusOK, true)
	c := newTestChecker(t, srv.URL)

	req := typeRequest(123456789)
	err := c.Check(context.Background(), req)

	var invalid *InvalidParamError
	if !errors.As(err, &invalid) {
		t.Fatalf("Check() error = %v, want InvalidParamError", err)
	}
	if invalid.Param != "type_id" {
		t.Errorf("Param = %q, want type_id", invalid.Param)
	}
	if !req.blocked {
		t.Error("request not marked blocked")
	}
	if calls.Load() != 0 {
		t.Errorf("live lookups = %d, want 0 for a local rejection", calls.Load())
	}
}

func TestCheck_UnpublishedTypeRejectedLocally(t *testing.T) {
	srv, calls := countingTypeServer(t, http.StatusOK, true)
	c := newTestChecker(t, srv.URL)

	err := c.Check(context.Background(), typeRequest(9999))
	var invalid *InvalidParamError
	if !errors.As(err, &invalid) {
		t.Fatalf("Check() error = %v, want InvalidParamError", err)
	}
	if calls.Load() != 0 {
		t.Errorf("live lookups = %d, want 0 for a local rejection", calls.Load())
	}
}

func TestCheck_PublishedTypeConfirmedOnceThenCached(t *testing.T) {
	srv, calls := countingTypeServer(t, http.StatusOK, true)
	c := newTestChecker(t, srv.URL)

	for i := 0; i < 3; i++ {
		req := typeRequest(34)
		if err := c.Check(context.Background(), req); err != nil {
			t.Fatalf("Check() #%d error = %v", i, err)
		}
		if req.blocked {
			t.Fatalf("Check() #%d marked request blocked", i)
		}
	}

	// First check confirms live; the verdict cache absorbs the rest.
	if calls.Load() != 1 {
		t.Errorf("live lookups = %d, want 1", calls.Load())
	}
}

func TestCheck_LiveLookup404Rejects(t *testing.T) {
	srv, _ := countingTypeServer(t, http.StatusNotFound, false)
	// No SDE: every id goes straight to live confirmation.
	c := New(Config{Store: cache.NewMemoryStore(), BaseURL: srv.URL, Logger: zerolog.Nop()})

	err := c.Check(context.Background(), typeRequest(34))
	var invalid *InvalidParamError
	if !errors.As(err, &invalid) {
		t.Fatalf("Check() error = %v, want InvalidParamError", err)
	}
}

func TestCheck_LiveLookupRetries502(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"type_id": 34, "published": true}`)
	}))
	defer srv.Close()

	c := newTestChecker(t, srv.URL)
	if err := c.Check(context.Background(), typeRequest(34)); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("live lookups = %d, want 3", calls.Load())
	}
}

func TestCheck_LiveLookup502Exhausted(t *testing.T) {
	srv, calls := countingTypeServer(t, http.StatusBadGateway, false)
	c := newTestChecker(t, srv.URL)

	err := c.Check(context.Background(), typeRequest(34))
	if err == nil {
		t.Fatal("Check() = nil, want error after exhausted retries")
	}
	if calls.Load() != int64(liveLookupAttempts) {
		t.Errorf("live lookups = %d, want %d", calls.Load(), liveLookupAttempts)
	}
}

func TestCheck_NonIntegerTypeID(t *testing.T) {
	c := newTestChecker(t, "http://unused.invalid")

	err := c.Check(context.Background(), typeRequest("tritanium"))
	var invalid *InvalidParamError
	if !errors.As(err, &invalid) {
		t.Fatalf("Check() error = %v, want InvalidParamError", err)
	}
}

func TestCheck_RedRouteBlocked(t *testing.T) {
	boardSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"endpoint": "esi-markets", "method": "get", "route": "/markets/{region_id}/orders/", "status": "red"}]`)
	}))
	defer boardSrv.Close()

	board := NewStatusBoard(boardSrv.URL, nil, zerolog.Nop())
	c := New(Config{Board: board, Logger: zerolog.Nop()})

	req := &fakeRequest{endpoint: "/markets/{region_id}/orders/", method: http.MethodGet}
	err := c.Check(context.Background(), req)

	var down *EndpointDownError
	if !errors.As(err, &down) {
		t.Fatalf("Check() error = %v, want EndpointDownError", err)
	}
	if !req.blocked {
		t.Error("request not marked blocked")
	}

	// A route the board does not list is admitted.
	other := &fakeRequest{endpoint: "/status/", method: http.MethodGet}
	if err := c.Check(context.Background(), other); err != nil {
		t.Errorf("Check() on unlisted route error = %v", err)
	}
}

func TestStatusBoard_RefreshThrottled(t *testing.T) {
	var fetches atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		fmt.Fprint(w, `[{"endpoint": "esi-status", "method": "get", "route": "/status/", "status": "green"}]`)
	}))
	defer srv.Close()

	board := NewStatusBoard(srv.URL, nil, zerolog.Nop())
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if got := board.Status(ctx, http.MethodGet, "/status/"); got != StatusGreen {
			t.Fatalf("Status() = %q, want green", got)
		}
	}

	if fetches.Load() != 1 {
		t.Errorf("board fetched %d times in one window, want 1", fetches.Load())
	}
}

func TestStatusBoard_KeepsSnapshotOnFailure(t *testing.T) {
	board := NewStatusBoard("http://unreachable.invalid", nil, zerolog.Nop())
	board.entries = map[string]string{routeKey(http.MethodGet, "/status/"): StatusYellow}

	// Refresh fails; the stale snapshot still answers.
	if got := board.Status(context.Background(), http.MethodGet, "/status/"); got != StatusYellow {
		t.Errorf("Status() = %q, want yellow from stale snapshot", got)
	}
}

// TestStatusBoard_FailedRefreshThrottled pins the throttle to the attempt,
// not the outcome: a board that keeps erroring is probed once per interval,
// not once per lookup.
func TestStatusBoard_FailedRefreshThrottled(t *testing.T) {
	var fetches atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	board := NewStatusBoard(srv.URL, nil, zerolog.Nop())
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if got := board.Status(ctx, http.MethodGet, "/status/"); got != StatusGreen {
			t.Fatalf("Status() = %q, want green with no snapshot", got)
		}
	}

	if fetches.Load() != 1 {
		t.Errorf("board fetched %d times while failing, want 1 per window", fetches.Load())
	}
}
