package galaxy

import (
	"fmt"
	"net/url"

	"github.com/galaxy-pkgs/mirror/internal/core"
)

// urls builds Galaxy collection API URLs for one discovered API root.
// The v2 API paginates with page/page_size, v3 with limit/offset.
type urls struct {
	endpoint   string // e.g. https://galaxy.example/api/v3/collections/
	apiVersion int
}

func (u urls) collection(id core.Identity) string {
	return fmt.Sprintf("%s%s/%s/", u.endpoint, id.Namespace, id.Name)
}

func (u urls) collectionsPage(page, pageSize int) string {
	return u.endpoint + "?" + u.pageQuery(page, pageSize)
}

func (u urls) versionsPage(id core.Identity, page, pageSize int) string {
	return fmt.Sprintf("%sversions/?%s", u.collection(id), u.pageQuery(page, pageSize))
}

func (u urls) version(id core.Identity, version string) string {
	return fmt.Sprintf("%sversions/%s/", u.collection(id), version)
}

func (u urls) pageQuery(page, pageSize int) string {
	q := url.Values{}
	if u.apiVersion == apiV2 {
		q.Set("page", fmt.Sprint(page))
		q.Set("page_size", fmt.Sprint(pageSize))
	} else {
		q.Set("limit", fmt.Sprint(pageSize))
		q.Set("offset", fmt.Sprint((page-1)*pageSize))
	}
	return q.Encode()
}
