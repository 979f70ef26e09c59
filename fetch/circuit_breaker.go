package fetch

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// BreakerFetcher wraps a Fetcher with one circuit breaker per artifact
// host. A sync pulling hundreds of tarballs from a dead content store
// should fail fast instead of burning a retry cycle on every one.
type BreakerFetcher struct {
	fetcher  Getter
	breakers map[string]*circuit.Breaker
	mu       sync.RWMutex
}

// NewBreakerFetcher wraps f with per-host circuit breaking.
func NewBreakerFetcher(f Getter) *BreakerFetcher {
	return &BreakerFetcher{
		fetcher:  f,
		breakers: make(map[string]*circuit.Breaker),
	}
}

// getBreaker returns or creates the circuit breaker for a host.
func (bf *BreakerFetcher) getBreaker(host string) *circuit.Breaker {
	bf.mu.RLock()
	breaker, exists := bf.breakers[host]
	bf.mu.RUnlock()

	if exists {
		return breaker
	}

	bf.mu.Lock()
	defer bf.mu.Unlock()

	if breaker, exists := bf.breakers[host]; exists {
		return breaker
	}

	// Trips after 5 consecutive failures, reopens on an exponential
	// schedule from 30s up to 5m.
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
	})

	bf.breakers[host] = breaker
	return breaker
}

// Fetch downloads through the host's circuit breaker.
func (bf *BreakerFetcher) Fetch(ctx context.Context, fetchURL string) (*Artifact, error) {
	host := hostOf(fetchURL)
	breaker := bf.getBreaker(host)

	if !breaker.Ready() {
		return nil, fmt.Errorf("circuit breaker open for %s: %w", host, ErrUpstreamDown)
	}

	var artifact *Artifact
	err := breaker.Call(func() error {
		var fetchErr error
		artifact, fetchErr = bf.fetcher.Fetch(ctx, fetchURL)
		return fetchErr
	}, 0)
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// Head probes through the host's circuit breaker.
func (bf *BreakerFetcher) Head(ctx context.Context, headURL string) (size int64, contentType string, err error) {
	host := hostOf(headURL)
	breaker := bf.getBreaker(host)

	if !breaker.Ready() {
		return 0, "", fmt.Errorf("circuit breaker open for %s: %w", host, ErrUpstreamDown)
	}

	err = breaker.Call(func() error {
		var headErr error
		size, contentType, headErr = bf.fetcher.Head(ctx, headURL)
		return headErr
	}, 0)
	return size, contentType, err
}

// BreakerState reports open/closed per host, for health endpoints.
func (bf *BreakerFetcher) BreakerState() map[string]string {
	bf.mu.RLock()
	defer bf.mu.RUnlock()

	states := make(map[string]string, len(bf.breakers))
	for host, breaker := range bf.breakers {
		if breaker.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}

// hostOf extracts the host for breaker grouping.
func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}
