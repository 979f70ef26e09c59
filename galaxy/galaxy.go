// Package galaxy provides a remote index client for Galaxy-compatible
// collection APIs (galaxy.ansible.com, Automation Hub, and other servers
// speaking the v2 or v3 collection API).
package galaxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"

	"github.com/galaxy-pkgs/mirror/internal/core"
)

const (
	apiV2 = 2
	apiV3 = 3

	// DefaultURL is the public Ansible Galaxy server.
	DefaultURL = "https://galaxy.ansible.com"

	defaultPageSize = 100
)

// Client talks to one Galaxy API root. It implements the index interface
// consumed by the resolver and syncer.
type Client struct {
	urls       urls
	apiVersion int
	hc         *http.Client
	token      string
	userAgent  string
	pageSize   int
	log        *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.hc = hc
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithPageSize sets the page size used for listing requests.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLogger sets the logger. A nil logger keeps the client silent.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// New discovers the collection API at baseURL and returns a client bound
// to it. The root document is probed first at baseURL, then at
// baseURL/api/; v3 is preferred over v2 when both are advertised.
// Transient failures surface as RemoteUnavailableError.
func New(ctx context.Context, baseURL, token string, opts ...Option) (*Client, error) {
	c := &Client{
		hc:        &http.Client{Timeout: 30 * time.Second},
		token:     token,
		userAgent: "galaxy-pkgs-mirror/1.0",
		pageSize:  defaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}

	root, apiVersion, err := c.discover(ctx, baseURL)
	if err != nil {
		return nil, err
	}
	c.apiVersion = apiVersion
	c.urls = urls{
		endpoint:   fmt.Sprintf("%sv%d/collections/", root, apiVersion),
		apiVersion: apiVersion,
	}

	if c.log != nil {
		c.log.Debug("discovered galaxy api", "root", root, "version", apiVersion)
	}
	return c, nil
}

// discover finds the API root and picks the highest supported API version
// from its available_versions document.
func (c *Client) discover(ctx context.Context, baseURL string) (string, int, error) {
	root := strings.TrimSuffix(baseURL, "/") + "/"
	if root == DefaultURL+"/" {
		root += "api/"
	}

	var doc struct {
		AvailableVersions map[string]string `json:"available_versions"`
	}
	if err := c.getJSON(ctx, root, &doc); err != nil || doc.AvailableVersions == nil {
		if strings.HasSuffix(root, "/api/") {
			if err == nil {
				err = fmt.Errorf("no available_versions at %s", root)
			}
			return "", 0, err
		}
		root += "api/"
		doc.AvailableVersions = nil
		if err := c.getJSON(ctx, root, &doc); err != nil {
			return "", 0, err
		}
	}

	switch {
	case doc.AvailableVersions["v3"] != "":
		return root, apiV3, nil
	case doc.AvailableVersions["v2"] != "":
		return root, apiV2, nil
	default:
		return "", 0, fmt.Errorf("unsupported galaxy API versions at %s", root)
	}
}

// nameField accepts both the v3 plain-string and the v2 {"name": ...}
// encodings of a namespace or collection reference.
type nameField struct {
	Name string
}

func (n *nameField) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &n.Name)
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	n.Name = obj.Name
	return nil
}

// page is the common envelope of v2 (results/next) and v3 (data/links)
// list responses.
type page struct {
	Results []json.RawMessage `json:"results"`
	Next    *string           `json:"next"`
	Data    []json.RawMessage `json:"data"`
	Links   struct {
		Next *string `json:"next"`
	} `json:"links"`
}

func (p page) items() []json.RawMessage {
	if p.Data != nil {
		return p.Data
	}
	return p.Results
}

func (p page) hasNext(apiVersion int) bool {
	if apiVersion == apiV2 {
		return p.Next != nil && *p.Next != ""
	}
	return p.Links.Next != nil && *p.Links.Next != ""
}

// ListCollections walks the remote's full collection list.
func (c *Client) ListCollections(ctx context.Context) ([]core.Identity, error) {
	var ids []core.Identity
	err := c.eachPage(ctx, func(pg, size int) string { return c.urls.collectionsPage(pg, size) },
		func(raw json.RawMessage) error {
			var item struct {
				Namespace nameField `json:"namespace"`
				Name      string    `json:"name"`
			}
			if err := json.Unmarshal(raw, &item); err != nil {
				return err
			}
			ids = append(ids, core.Identity{Namespace: item.Namespace.Name, Name: item.Name})
			return nil
		})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListVersions returns the collection's published versions, highest first.
func (c *Client) ListVersions(ctx context.Context, id core.Identity) ([]*semver.Version, error) {
	var versions []*semver.Version
	err := c.eachPage(ctx, func(pg, size int) string { return c.urls.versionsPage(id, pg, size) },
		func(raw json.RawMessage) error {
			var item struct {
				Version string `json:"version"`
			}
			if err := json.Unmarshal(raw, &item); err != nil {
				return err
			}
			v, err := core.ParseVersion(item.Version)
			if err != nil {
				return fmt.Errorf("collection %s: %w", id, err)
			}
			versions = append(versions, v)
			return nil
		})
	if err != nil {
		return nil, c.orNotFound(err, id, "")
	}
	core.SortVersionsDesc(versions)
	return versions, nil
}

// GetVersion returns the full metadata of one published version.
func (c *Client) GetVersion(ctx context.Context, id core.Identity, version *semver.Version) (*core.CollectionVersion, error) {
	var doc struct {
		Namespace  nameField `json:"namespace"`
		Collection nameField `json:"collection"`
		Version    string    `json:"version"`
		Download   string    `json:"download_url"`
		Artifact   struct {
			SHA256 string `json:"sha256"`
			Size   int64  `json:"size"`
		} `json:"artifact"`
		Metadata struct {
			Dependencies map[string]string `json:"dependencies"`
			License      []string          `json:"license"`
		} `json:"metadata"`
		Signatures []struct {
			Signature   string `json:"signature"`
			Fingerprint string `json:"pubkey_fingerprint"`
		} `json:"signatures"`
	}
	if err := c.getJSON(ctx, c.urls.version(id, version.Original()), &doc); err != nil {
		return nil, c.orNotFound(err, id, version.Original())
	}

	cv := &core.CollectionVersion{
		Identity:     core.Identity{Namespace: doc.Namespace.Name, Name: doc.Collection.Name},
		Version:      version,
		Dependencies: make(map[core.Identity]core.Constraint, len(doc.Metadata.Dependencies)),
		Artifact: core.ArtifactRef{
			URL:    doc.Download,
			SHA256: doc.Artifact.SHA256,
			Size:   doc.Artifact.Size,
		},
		License: doc.Metadata.License,
	}
	if cv.Identity.Namespace == "" {
		cv.Identity = id
	}
	for dep, expr := range doc.Metadata.Dependencies {
		depID, err := core.ParseIdentity(dep)
		if err != nil {
			return nil, fmt.Errorf("collection %s@%s dependency: %w", id, version, err)
		}
		constraint, err := core.ParseConstraint(expr)
		if err != nil {
			return nil, fmt.Errorf("collection %s@%s dependency %s: %w", id, version, dep, err)
		}
		cv.Dependencies[depID] = constraint
	}
	for _, sig := range doc.Signatures {
		cv.Signatures = append(cv.Signatures, core.Signature{
			Fingerprint: sig.Fingerprint,
			Data:        sig.Signature,
		})
	}
	return cv, nil
}

// GetCollection returns collection-level metadata, notably the upstream
// deprecation flag.
func (c *Client) GetCollection(ctx context.Context, id core.Identity) (*core.CollectionInfo, error) {
	var doc struct {
		Deprecated bool `json:"deprecated"`
	}
	if err := c.getJSON(ctx, c.urls.collection(id), &doc); err != nil {
		return nil, c.orNotFound(err, id, "")
	}
	return &core.CollectionInfo{Identity: id, Deprecated: doc.Deprecated}, nil
}

// eachPage walks a paged listing, calling visit for every item.
func (c *Client) eachPage(ctx context.Context, pageURL func(page, size int) string, visit func(json.RawMessage) error) error {
	for pageNum := 1; ; pageNum++ {
		var pg page
		if err := c.getJSON(ctx, pageURL(pageNum, c.pageSize), &pg); err != nil {
			return err
		}
		for _, raw := range pg.items() {
			if err := visit(raw); err != nil {
				return err
			}
		}
		if !pg.hasNext(c.apiVersion) {
			return nil
		}
	}
}

// httpError carries a non-2xx response status for classification.
type httpError struct {
	status int
	url    string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.status, e.url)
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return &core.RemoteUnavailableError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s: %w", url, err)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return &httpError{status: resp.StatusCode, url: url}
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return &core.RemoteUnavailableError{URL: url, Err: &httpError{status: resp.StatusCode, url: url}}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, url, string(body))
	}
}

// orNotFound converts 404 responses into a typed NotFoundError for the
// given collection; other errors pass through unchanged.
func (c *Client) orNotFound(err error, id core.Identity, version string) error {
	var herr *httpError
	if errors.As(err, &herr) && herr.status == http.StatusNotFound {
		return &core.NotFoundError{Identity: id, Version: version}
	}
	return err
}
