package galaxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/galaxy-pkgs/mirror/internal/core"
)

func v3Server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"available_versions": {"v2": "v2/", "v3": "v3/"}}`)
	})
	mux.HandleFunc("/api/v3/collections/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/collections/":
			// Two pages of one collection each.
			if r.URL.Query().Get("offset") == "0" {
				fmt.Fprint(w, `{"data": [{"namespace": "acme", "name": "app"}], "links": {"next": "page2"}}`)
			} else {
				fmt.Fprint(w, `{"data": [{"namespace": "acme", "name": "lib"}], "links": {"next": null}}`)
			}
		case "/api/v3/collections/acme/app/":
			fmt.Fprint(w, `{"namespace": "acme", "name": "app", "deprecated": true}`)
		case "/api/v3/collections/acme/app/versions/":
			fmt.Fprint(w, `{"data": [{"version": "1.0.0"}, {"version": "1.2.0"}, {"version": "1.1.0"}], "links": {"next": null}}`)
		case "/api/v3/collections/acme/app/versions/1.2.0/":
			fmt.Fprint(w, `{
				"namespace": {"name": "acme"},
				"collection": {"name": "app"},
				"version": "1.2.0",
				"download_url": "https://files.example/acme-app-1.2.0.tar.gz",
				"artifact": {"sha256": "deadbeef", "size": 1234},
				"metadata": {
					"dependencies": {"acme.lib": ">=0.1.0"},
					"license": ["GPL-3.0-or-later"]
				},
				"signatures": [{"signature": "-----SIG-----", "pubkey_fingerprint": "CAFEBABE"}]
			}`)
		default:
			http.NotFound(w, r)
		}
	})
	return httptest.NewServer(mux)
}

func TestDiscoverPrefersV3(t *testing.T) {
	srv := v3Server(t)
	defer srv.Close()

	// The api/ suffix is discovered, not required up front.
	c, err := New(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatal(err)
	}
	if c.apiVersion != apiV3 {
		t.Errorf("apiVersion = %d, want 3", c.apiVersion)
	}
}

func TestListCollectionsPaged(t *testing.T) {
	srv := v3Server(t)
	defer srv.Close()

	c, err := New(context.Background(), srv.URL, "", WithPageSize(1))
	if err != nil {
		t.Fatal(err)
	}
	ids, err := c.ListCollections(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d collections, want 2: %v", len(ids), ids)
	}
}

func TestListVersionsSortedDesc(t *testing.T) {
	srv := v3Server(t)
	defer srv.Close()

	c, err := New(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatal(err)
	}
	vs, err := c.ListVersions(context.Background(), core.Identity{Namespace: "acme", Name: "app"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"1.2.0", "1.1.0", "1.0.0"}
	if len(vs) != len(want) {
		t.Fatalf("got %d versions, want %d", len(vs), len(want))
	}
	for i, w := range want {
		if vs[i].String() != w {
			t.Errorf("position %d: got %s, want %s", i, vs[i], w)
		}
	}
}

func TestGetVersion(t *testing.T) {
	srv := v3Server(t)
	defer srv.Close()

	c, err := New(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatal(err)
	}
	id := core.Identity{Namespace: "acme", Name: "app"}
	v, err := core.ParseVersion("1.2.0")
	if err != nil {
		t.Fatal(err)
	}

	cv, err := c.GetVersion(context.Background(), id, v)
	if err != nil {
		t.Fatal(err)
	}
	if cv.Identity != id {
		t.Errorf("identity = %v", cv.Identity)
	}
	if cv.Artifact.SHA256 != "deadbeef" || cv.Artifact.Size != 1234 {
		t.Errorf("artifact = %+v", cv.Artifact)
	}
	dep := core.Identity{Namespace: "acme", Name: "lib"}
	constraint, ok := cv.Dependencies[dep]
	if !ok {
		t.Fatalf("dependency acme.lib missing: %v", cv.Dependencies)
	}
	depV, _ := core.ParseVersion("0.1.0")
	if !constraint.Matches(depV) {
		t.Errorf("constraint %s should match 0.1.0", constraint)
	}
	if len(cv.Signatures) != 1 || cv.Signatures[0].Fingerprint != "CAFEBABE" {
		t.Errorf("signatures = %+v", cv.Signatures)
	}
	if len(cv.License) != 1 || cv.License[0] != "GPL-3.0-or-later" {
		t.Errorf("license = %v", cv.License)
	}
}

func TestGetCollectionDeprecated(t *testing.T) {
	srv := v3Server(t)
	defer srv.Close()

	c, err := New(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatal(err)
	}
	info, err := c.GetCollection(context.Background(), core.Identity{Namespace: "acme", Name: "app"})
	if err != nil {
		t.Fatal(err)
	}
	if !info.Deprecated {
		t.Error("expected deprecated collection")
	}
}

func TestNotFoundIsTyped(t *testing.T) {
	srv := v3Server(t)
	defer srv.Close()

	c, err := New(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.ListVersions(context.Background(), core.Identity{Namespace: "no", Name: "such"})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestServerErrorIsRemoteUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/" {
			fmt.Fprint(w, `{"available_versions": {"v3": "v3/"}}`)
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(context.Background(), srv.URL+"/api/", "")
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.ListVersions(context.Background(), core.Identity{Namespace: "acme", Name: "app"})
	if !errors.Is(err, core.ErrRemoteUnavailable) {
		t.Fatalf("got %v, want ErrRemoteUnavailable", err)
	}
}

func TestV2Pagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"available_versions": {"v2": "v2/"}}`)
	})
	mux.HandleFunc("/api/v2/collections/acme/app/versions/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `{"results": [{"version": "1.0.0"}], "next": "page2"}`)
		} else {
			fmt.Fprint(w, `{"results": [{"version": "2.0.0"}], "next": null}`)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := New(context.Background(), srv.URL, "", WithPageSize(1))
	if err != nil {
		t.Fatal(err)
	}
	if c.apiVersion != apiV2 {
		t.Fatalf("apiVersion = %d, want 2", c.apiVersion)
	}

	vs, err := c.ListVersions(context.Background(), core.Identity{Namespace: "acme", Name: "app"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vs) != 2 || vs[0].String() != "2.0.0" {
		t.Fatalf("versions = %v", vs)
	}
}

func TestTokenHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"available_versions": {"v3": "v3/"}}`)
	}))
	defer srv.Close()

	if _, err := New(context.Background(), srv.URL+"/api/", "sekrit"); err != nil {
		t.Fatal(err)
	}
	if got != "Token sekrit" {
		t.Errorf("Authorization = %q, want Token sekrit", got)
	}
}
