package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBreakerFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tarball"))
	}))
	defer server.Close()

	bf := NewBreakerFetcher(NewFetcher())
	artifact, err := bf.Fetch(context.Background(), server.URL+"/a.tar.gz")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer func() { _ = artifact.Body.Close() }()

	body, _ := io.ReadAll(artifact.Body)
	if string(body) != "tarball" {
		t.Errorf("body = %q", string(body))
	}
}

func TestBreakerHeadSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("Method = %s, want HEAD", r.Method)
		}
		w.Header().Set("Content-Length", "1234")
		w.Header().Set("Content-Type", "application/gzip")
	}))
	defer server.Close()

	bf := NewBreakerFetcher(NewFetcher())
	size, contentType, err := bf.Head(context.Background(), server.URL+"/a.tar.gz")
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if size != 1234 {
		t.Errorf("size = %d, want 1234", size)
	}
	if contentType != "application/gzip" {
		t.Errorf("contentType = %q", contentType)
	}
}

func TestHostOf(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"galaxy downloads", "https://galaxy.ansible.com/download/acme-app-1.0.0.tar.gz", "galaxy.ansible.com"},
		{"hub with port", "https://hub.example.com:8443/api/v3/artifacts/x.tar.gz", "hub.example.com:8443"},
		{"invalid URL", "not-a-valid-url", "not-a-valid-url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hostOf(tt.url); got != tt.want {
				t.Errorf("hostOf(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestBreakerStatePerHost(t *testing.T) {
	server1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("one"))
	}))
	defer server1.Close()
	server2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("two"))
	}))
	defer server2.Close()

	bf := NewBreakerFetcher(NewFetcher())

	if states := bf.BreakerState(); len(states) != 0 {
		t.Errorf("expected no breakers before any fetch, got %d", len(states))
	}

	ctx := context.Background()
	for _, u := range []string{server1.URL + "/a", server2.URL + "/b"} {
		artifact, err := bf.Fetch(ctx, u)
		if err != nil {
			t.Fatalf("fetch %s: %v", u, err)
		}
		_ = artifact.Body.Close()
	}

	states := bf.BreakerState()
	if len(states) != 2 {
		t.Fatalf("expected 2 breaker states, got %d", len(states))
	}
	for host, state := range states {
		if state != "closed" {
			t.Errorf("breaker for %s = %s, want closed", host, state)
		}
	}
}

func TestBreakerOpensOnFailures(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	bf := NewBreakerFetcher(NewFetcher(WithMaxRetries(0), WithBaseDelay(0)))

	// Threshold is 5 consecutive failures; later calls should be
	// rejected without touching the server.
	for range 10 {
		_, _ = bf.Fetch(context.Background(), server.URL+"/a.tar.gz")
	}

	states := bf.BreakerState()
	if len(states) != 1 {
		t.Fatalf("expected one breaker, got %d", len(states))
	}
	for _, state := range states {
		if state != "open" {
			t.Errorf("breaker state = %s, want open", state)
		}
	}
	if requests >= 10 {
		t.Errorf("open breaker still hit the server %d times", requests)
	}
}
