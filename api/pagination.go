package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	maxPageOffset    = 10_000
)

// parseIntParam parses v, falling back to def when it is missing or not an
// integer, and clamps the result to [lo, hi].
func parseIntParam(v string, def, lo, hi int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return max(lo, min(hi, n))
}

// parsePagination reads "limit" (1..100, default 20) and "offset"
// (0..10000, default 0) query parameters from the request.
func parsePagination(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit = parseIntParam(q.Get("limit"), defaultPageLimit, 1, maxPageLimit)
	offset = parseIntParam(q.Get("offset"), 0, 0, maxPageOffset)
	return limit, offset
}

// pageLinks builds an RFC 8288 Link header value with prev and next
// relations for the page at offset. base is the resource path and params the
// query that reproduces the listing. It returns "" when there are no
// neighbouring pages.
func pageLinks(base string, params url.Values, offset, limit, total int) string {
	link := func(off int, rel string) string {
		q := url.Values{}
		for k, v := range params {
			q[k] = v
		}
		q.Set("limit", strconv.Itoa(limit))
		q.Set("offset", strconv.Itoa(off))
		return "<" + base + "?" + q.Encode() + `>; rel="` + rel + `"`
	}

	var links []string
	if offset > 0 {
		links = append(links, link(max(0, offset-limit), "prev"))
	}
	if offset+limit < total {
		links = append(links, link(offset+limit, "next"))
	}
	return strings.Join(links, ", ")
}
