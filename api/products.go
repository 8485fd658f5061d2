package api

import (
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jmcleod/authlab/audit"
	"github.com/jmcleod/authlab/labstore"
)

const productsTag = "api_products"

var errBadFloat = errors.New("not a finite number")

// parseFloatParam returns nil for an empty value.
func parseFloatParam(v string) (*float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errBadFloat
	}
	return &f, nil
}

// ListProducts searches the catalogue with price filters, whitelisted
// sorting and pagination. The query is always parameterized whatever the
// SQLi mode says.
func (a *API) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := a.caller(r, productsTag)
	user, _, ok := a.authenticate(w, r, c)
	if !ok {
		return
	}
	if err := a.guard.Throttle(ctx, c, a.buckets.Products, user); err != nil {
		writeGuardError(w, err)
		return
	}

	q := r.URL.Query()
	term := strings.TrimSpace(q.Get("q"))
	minPrice, errMin := parseFloatParam(q.Get("min_price"))
	maxPrice, errMax := parseFloatParam(q.Get("max_price"))
	if errMin != nil || errMax != nil {
		writeError(w, CodeInvalidParam, nil)
		return
	}
	if minPrice != nil && maxPrice != nil && *maxPrice < *minPrice {
		writeError(w, CodeInvalidRange, nil)
		return
	}

	limit, offset := parsePagination(r)
	sortBy := lowerOr(q.Get("sort_by"), "name")
	sortDir := lowerOr(q.Get("sort_dir"), "asc")

	items, total, err := a.store.ListProducts(ctx, labstore.ProductQuery{
		Q:        term,
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		SortBy:   sortBy,
		SortDir:  sortDir,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		a.writeStoreError(w, err)
		return
	}

	params := url.Values{"sort_by": {sortBy}, "sort_dir": {sortDir}}
	if term != "" {
		params.Set("q", term)
	}
	if minPrice != nil {
		params.Set("min_price", strconv.FormatFloat(*minPrice, 'f', -1, 64))
	}
	if maxPrice != nil {
		params.Set("max_price", strconv.FormatFloat(*maxPrice, 'f', -1, 64))
	}
	if link := pageLinks("/api/v1/products", params, offset, limit, total); link != "" {
		w.Header().Set("Link", link)
	}

	name := audit.Name(user)
	a.guard.Audit(ctx, c, name, true, "sqli_surface", "param_safe", map[string]any{"q": term})
	a.guard.Audit(ctx, c, name, true, productsTag, "list", map[string]any{
		"q":      term,
		"min":    minPrice,
		"max":    maxPrice,
		"sort":   sortBy + ":" + sortDir,
		"limit":  limit,
		"offset": offset,
		"count":  len(items),
		"total":  total,
	})
	writeJSON(w, http.StatusOK, newPage(items, total, offset, limit))
}
