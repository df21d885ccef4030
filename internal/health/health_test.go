package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRegistryEmpty(t *testing.T) {
	r := NewRegistry()
	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Fatal("empty registry should be healthy")
	}
	if len(statuses) != 0 {
		t.Fatalf("expected 0 statuses, got %d", len(statuses))
	}
}

func TestRegistryOneUnhealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("balance", func(_ context.Context) Status {
		return Status{Name: "balance", Healthy: true}
	})
	r.Register("history", func(_ context.Context) Status {
		return Status{Name: "history", Healthy: false, Detail: "connection refused"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	if healthy {
		t.Fatal("registry with unhealthy checker should report unhealthy")
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[1].Detail != "connection refused" {
		t.Fatalf("expected detail 'connection refused', got %q", statuses[1].Detail)
	}
}

func TestHTTPCheckerReachable(t *testing.T) {
	// 401 on the root path still counts as reachable
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	check := HTTPChecker("balance", srv.URL, time.Second)
	st := check(context.Background())
	if !st.Healthy {
		t.Fatalf("expected healthy, got %+v", st)
	}
}

func TestHTTPCheckerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	srv.Close() // closed immediately: connection refused

	check := HTTPChecker("balance", srv.URL, time.Second)
	st := check(context.Background())
	if st.Healthy {
		t.Fatal("expected unhealthy for closed server")
	}
	if st.Detail == "" {
		t.Fatal("expected error detail")
	}
}
