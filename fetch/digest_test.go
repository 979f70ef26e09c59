package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/galaxy-pkgs/mirror/internal/core"
)

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestVerifyMatchingDigest(t *testing.T) {
	content := "collection tarball"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(content))
	}))
	defer server.Close()

	v := NewVerifier(NewFetcher())
	err := v.Validate(context.Background(), core.ArtifactRef{
		URL:    server.URL + "/a.tar.gz",
		SHA256: sha256Hex(content),
		Size:   int64(len(content)),
	})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestVerifyDigestMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tampered bytes"))
	}))
	defer server.Close()

	expected := sha256Hex("original bytes")
	v := NewVerifier(NewFetcher())
	err := v.Validate(context.Background(), core.ArtifactRef{
		URL:    server.URL + "/a.tar.gz",
		SHA256: expected,
	})

	var mismatch *DigestMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("got %v, want DigestMismatchError", err)
	}
	if mismatch.Expected != expected {
		t.Errorf("Expected = %s", mismatch.Expected)
	}
	if mismatch.Actual != sha256Hex("tampered bytes") {
		t.Errorf("Actual = %s", mismatch.Actual)
	}
}

func TestVerifySizeMismatch(t *testing.T) {
	content := "short"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(content))
	}))
	defer server.Close()

	v := NewVerifier(NewFetcher())
	err := v.Validate(context.Background(), core.ArtifactRef{
		URL:    server.URL + "/a.tar.gz",
		SHA256: sha256Hex(content),
		Size:   9999,
	})
	if err == nil || !strings.Contains(err.Error(), "size mismatch") {
		t.Fatalf("got %v, want size mismatch", err)
	}
}

func TestVerifyNoDigestProbesExistence(t *testing.T) {
	var method string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.Header().Set("Content-Length", "10")
	}))
	defer server.Close()

	v := NewVerifier(NewFetcher())
	if err := v.Validate(context.Background(), core.ArtifactRef{URL: server.URL + "/a.tar.gz"}); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if method != http.MethodHead {
		t.Errorf("method = %s, want HEAD", method)
	}
}

func TestVerifyMissingArtifact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	v := NewVerifier(NewFetcher())
	err := v.Validate(context.Background(), core.ArtifactRef{
		URL:    server.URL + "/gone.tar.gz",
		SHA256: sha256Hex("whatever"),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
