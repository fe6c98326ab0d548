// Package testutil provides a scriptable stand-in for the ESI API in tests.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

type route struct {
	status int
	body   string
	etag   string
	pages  []string
}

// MockESI is a scripted ESI server. Routes are registered per exact path;
// paginated routes answer the page query parameter and advertise X-Pages.
// Every response carries the configured error budget headers.
type MockESI struct {
	srv *httptest.Server

	mu     sync.Mutex
	routes map[string]route
	calls  map[string]int
	remain int
	reset  int
}

// NewMockESI starts a mock server, shut down with the test.
func NewMockESI(t *testing.T) *MockESI {
	t.Helper()
	m := &MockESI{
		routes: make(map[string]route),
		calls:  make(map[string]int),
		remain: 100,
		reset:  60,
	}
	m.srv = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.srv.Close)
	return m
}

// URL returns the server's base URL, suitable as a client BaseURL.
func (m *MockESI) URL() string {
	return m.srv.URL
}

// Handle scripts a fixed response for an exact request path.
func (m *MockESI) Handle(path string, status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[path] = route{status: status, body: body}
}

// HandleWithETag scripts a route that honors conditional requests: a
// matching If-None-Match answers 304 with an empty body.
func (m *MockESI) HandleWithETag(path, etag, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[path] = route{status: http.StatusOK, body: body, etag: etag}
}

// HandlePaged scripts a paginated route: pages[i] answers page i+1 and every
// response advertises X-Pages accordingly.
func (m *MockESI) HandlePaged(path string, pages []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[path] = route{status: http.StatusOK, pages: pages}
}

// SetErrorBudget sets the rate limit headers sent with every response.
func (m *MockESI) SetErrorBudget(remain, reset int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remain = remain
	m.reset = reset
}

// Calls returns how many requests hit a path, counting every method.
func (m *MockESI) Calls(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[path]
}

func (m *MockESI) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.calls[r.URL.Path]++
	rt, ok := m.routes[r.URL.Path]
	remain, reset := m.remain, m.reset
	m.mu.Unlock()

	w.Header().Set("X-ESI-Error-Limit-Remain", strconv.Itoa(remain))
	w.Header().Set("X-ESI-Error-Limit-Reset", strconv.Itoa(reset))

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error": "route not scripted"}`)
		return
	}

	if len(rt.pages) > 0 {
		m.servePaged(w, r, rt)
		return
	}

	if rt.etag != "" {
		w.Header().Set("Etag", rt.etag)
		if r.Header.Get("If-None-Match") == rt.etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.WriteHeader(rt.status)
	if r.Method != http.MethodHead {
		fmt.Fprint(w, rt.body)
	}
}

func (m *MockESI) servePaged(w http.ResponseWriter, r *http.Request, rt route) {
	w.Header().Set("X-Pages", strconv.Itoa(len(rt.pages)))

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error": "invalid page"}`)
			return
		}
		page = n
	}
	if page < 1 || page > len(rt.pages) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error": "page out of range"}`)
		return
	}

	if r.Method != http.MethodHead {
		fmt.Fprint(w, rt.pages[page-1])
	}
}
