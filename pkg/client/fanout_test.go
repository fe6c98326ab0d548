package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestExpandLoop(t *testing.T) {
	combos, err := expandLoop([]string{"region_id", "type_id"}, Args{
		"region_id":  []int{10000002, 10000043},
		"type_id":    []int{34, 35, 36},
		"order_type": "sell",
	})
	if err != nil {
		t.Fatalf("expandLoop() error = %v", err)
	}
	if len(combos) != 6 {
		t.Fatalf("len(combos) = %d, want 6", len(combos))
	}

	seen := make(map[string]bool)
	for _, combo := range combos {
		// Shared arguments carry over untouched.
		if combo["order_type"] != "sell" {
			t.Errorf("order_type = %v, want sell", combo["order_type"])
		}
		seen[fmt.Sprintf("%v/%v", combo["region_id"], combo["type_id"])] = true
	}
	if len(seen) != 6 {
		t.Errorf("distinct combinations = %d, want 6", len(seen))
	}
}

func TestExpandLoop_Errors(t *testing.T) {
	tests := []struct {
		name string
		loop []string
		args Args
	}{
		{"no loop names", nil, Args{"region_id": []int{1}}},
		{"missing argument", []string{"region_id"}, Args{}},
		{"scalar argument", []string{"region_id"}, Args{"region_id": 10000002}},
		{"empty slice", []string{"region_id"}, Args{"region_id": []int{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := expandLoop(tt.loop, tt.args); err == nil {
				t.Error("expandLoop() = nil error")
			}
		})
	}
}

func TestGetLoop_FansOutOverProduct(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `[{"order_id": 1}]`)
	}))
	defer srv.Close()

	c := serverClient(t, srv.URL, nil)
	responses, err := c.GetLoop(context.Background(), "/markets/{region_id}/orders/",
		[]string{"region_id", "type_id"},
		Args{
			"region_id": []int{10000002, 10000043},
			"type_id":   []int{34, 35},
		})
	if err != nil {
		t.Fatalf("GetLoop() error = %v", err)
	}
	if len(responses) != 4 {
		t.Fatalf("len(responses) = %d, want 4", len(responses))
	}
	if calls.Load() != 4 {
		t.Errorf("server saw %d requests, want 4", calls.Load())
	}
	for _, resp := range responses {
		if !resp.OK() {
			t.Errorf("response for %s not OK: %d", resp.Endpoint, resp.Status)
		}
	}

	stats := c.Session().Snapshot()
	if stats.Succeeded != 4 {
		t.Errorf("session succeeded = %d, want 4", stats.Succeeded)
	}
}

func TestGetLoop_AbsorbsScatteredFailures(t *testing.T) {
	// One region answers 404 while the budget stays healthy; the fan-out
	// keeps the failed envelope instead of aborting.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ESI-Error-Limit-Remain", "90")
		w.Header().Set("X-ESI-Error-Limit-Reset", "60")
		if strings.Contains(r.URL.Path, "/markets/99999999/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `[{"order_id": 1}]`)
	}))
	defer srv.Close()

	c := serverClient(t, srv.URL, nil)
	responses, err := c.GetLoop(context.Background(), "/markets/{region_id}/orders/",
		[]string{"region_id"},
		Args{"region_id": []int{10000002, 99999999, 10000043}})
	if err != nil {
		t.Fatalf("GetLoop() error = %v", err)
	}
	if len(responses) != 3 {
		t.Fatalf("len(responses) = %d, want 3", len(responses))
	}

	var failed int
	for _, resp := range responses {
		if resp.Status == http.StatusNotFound {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("failed envelopes = %d, want 1", failed)
	}
}

func TestGetLoop_AbortsOnDepletedBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ESI-Error-Limit-Remain", "2")
		w.Header().Set("X-ESI-Error-Limit-Reset", "60")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := serverClient(t, srv.URL, nil)
	_, err := c.GetLoop(context.Background(), "/markets/{region_id}/orders/",
		[]string{"region_id"},
		Args{"region_id": []int{10000002, 10000043}})
	if err == nil {
		t.Fatal("GetLoop() = nil error with a depleted budget")
	}
}

func TestGetLoop_RespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	c := serverClient(t, srv.URL, func(cfg *Config) { cfg.MaxConcurrency = 2 })
	regions := make([]int, 12)
	for i := range regions {
		regions[i] = 10000001 + i
	}
	if _, err := c.GetLoop(context.Background(), "/markets/{region_id}/orders/",
		[]string{"region_id"}, Args{"region_id": regions}); err != nil {
		t.Fatalf("GetLoop() error = %v", err)
	}

	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", peak.Load())
	}
}
