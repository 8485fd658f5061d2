package labstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmcleod/authlab/guard"
)

type Product struct {
	ID    int64   `db:"id" json:"id"`
	Name  string  `db:"name" json:"name"`
	Price float64 `db:"price" json:"price"`
}

// SearchProducts returns products whose name contains q. In poc mode the
// term is spliced into the SQL text, so q is an injection point; in safe
// mode it is bound as a parameter.
func (s *Store) SearchProducts(ctx context.Context, q string, mode guard.Mode) ([]Product, error) {
	var out []Product
	if mode.Unsafe() {
		query := "SELECT id, name, price FROM products WHERE name LIKE '%" + q + "%'"
		if err := s.db.SelectContext(ctx, &out, query); err != nil {
			return nil, fmt.Errorf("searching products: %w", err)
		}
		return out, nil
	}
	if err := s.db.SelectContext(ctx, &out, "SELECT id, name, price FROM products WHERE name LIKE ?", "%"+q+"%"); err != nil {
		return nil, fmt.Errorf("searching products: %w", err)
	}
	return out, nil
}

var (
	productSortColumns = map[string]string{"id": "id", "name": "name", "price": "price"}
	noteSortColumns    = map[string]string{"id": "id", "title": "title"}
	sortDirections     = map[string]string{"asc": "ASC", "desc": "DESC"}
)

// orderBy resolves whitelisted sort inputs to an ORDER BY clause. Empty
// inputs take the defaults.
func orderBy(columns map[string]string, sortBy, defaultBy, sortDir string) (string, error) {
	if sortBy == "" {
		sortBy = defaultBy
	}
	if sortDir == "" {
		sortDir = "asc"
	}
	col, ok := columns[strings.ToLower(sortBy)]
	if !ok {
		return "", ErrInvalidSortBy
	}
	dir, ok := sortDirections[strings.ToLower(sortDir)]
	if !ok {
		return "", ErrInvalidSortDir
	}
	return fmt.Sprintf(" ORDER BY %s %s, id ASC", col, dir), nil
}

// ProductQuery filters, sorts and pages the product list. Sorting defaults
// to name ascending.
type ProductQuery struct {
	Q        string
	MinPrice *float64
	MaxPrice *float64
	SortBy   string
	SortDir  string
	Limit    int
	Offset   int
}

// ListProducts runs a fully parameterized product query and returns the
// page along with the total number of matches.
func (s *Store) ListProducts(ctx context.Context, pq ProductQuery) ([]Product, int, error) {
	order, err := orderBy(productSortColumns, pq.SortBy, "name", pq.SortDir)
	if err != nil {
		return nil, 0, err
	}

	var where []string
	var args []any
	if pq.Q != "" {
		where = append(where, "name LIKE ? COLLATE NOCASE")
		args = append(args, "%"+pq.Q+"%")
	}
	if pq.MinPrice != nil {
		where = append(where, "price >= ?")
		args = append(args, *pq.MinPrice)
	}
	if pq.MaxPrice != nil {
		where = append(where, "price <= ?")
		args = append(args, *pq.MaxPrice)
	}
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM products"+whereSQL, args...); err != nil {
		return nil, 0, fmt.Errorf("counting products: %w", err)
	}
	items := []Product{}
	pageArgs := append(append([]any{}, args...), pq.Limit, pq.Offset)
	if err := s.db.SelectContext(ctx, &items, "SELECT id, name, price FROM products"+whereSQL+order+" LIMIT ? OFFSET ?", pageArgs...); err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}
	return items, total, nil
}
