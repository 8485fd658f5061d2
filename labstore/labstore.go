// Package labstore holds the lab's record store: seeded products and notes
// in SQLite, and the guestbook in the sealed state repository. The unsafe
// query paths selected by the vulnerability modes live here, never in guard.
package labstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidSortBy  = errors.New("invalid sort_by")
	ErrInvalidSortDir = errors.New("invalid sort_dir")
)

// Store is the SQLite-backed products and notes store.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists. It does not seed.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id    INTEGER PRIMARY KEY,
		name  TEXT NOT NULL,
		price REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notes (
		id    INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		body  TEXT NOT NULL,
		owner TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_name_nocase ON products (name COLLATE NOCASE)`,
}

// Migrate creates any missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}
	return nil
}

var seedProducts = []Product{
	{Name: "Laptop Go 12", Price: 799}, {Name: "Laptop Air 13", Price: 999}, {Name: "Laptop Lite 13", Price: 849},
	{Name: "Laptop Pro 14", Price: 1299}, {Name: "Laptop Work 14", Price: 1099}, {Name: "Laptop Flex 14", Price: 1049},
	{Name: "Laptop Gamer 15", Price: 1499}, {Name: "Laptop Studio 15", Price: 1599},
	{Name: "Laptop Ultra 16", Price: 1799}, {Name: "Laptop Flex 16", Price: 1399},
	{Name: "Laptop Neo 13", Price: 929}, {Name: "Laptop Edge 14", Price: 1149},
	{Name: "Phone Max", Price: 899}, {Name: "Phone Mini", Price: 499},
	{Name: "Router AX1800", Price: 119}, {Name: "Router AX3000", Price: 139},
	{Name: `Monitor 27"`, Price: 249}, {Name: "Keyboard Mech", Price: 89},
}

func seedNotes() []Note {
	var notes []Note
	for _, owner := range []struct{ name, title string }{{"admin", "Admin"}, {"alice", "Alice"}} {
		for i := 1; i <= 3; i++ {
			notes = append(notes, Note{
				Title: fmt.Sprintf("%s note #%d", owner.title, i),
				Body:  fmt.Sprintf("Seeded note %d for %s", i, owner.name),
				Owner: owner.name,
			})
		}
	}
	return notes
}

// Reset drops every table and recreates the seeded lab data.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DROP TABLE IF EXISTS products", "DROP TABLE IF EXISTS notes"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("dropping tables: %w", err)
		}
	}
	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	if _, err := tx.NamedExecContext(ctx, `INSERT INTO products (name, price) VALUES (:name, :price)`, seedProducts); err != nil {
		return fmt.Errorf("seeding products: %w", err)
	}
	if _, err := tx.NamedExecContext(ctx, `INSERT INTO notes (title, body, owner) VALUES (:title, :body, :owner)`, seedNotes()); err != nil {
		return fmt.Errorf("seeding notes: %w", err)
	}
	return tx.Commit()
}

// Summary counts rows for the db init report.
type Summary struct {
	Products     int
	NotesByOwner map[string]int
}

func (s *Store) Summary(ctx context.Context) (Summary, error) {
	sum := Summary{NotesByOwner: make(map[string]int)}
	if err := s.db.GetContext(ctx, &sum.Products, `SELECT COUNT(*) FROM products`); err != nil {
		return sum, err
	}
	var rows []struct {
		Owner string `db:"owner"`
		N     int    `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT owner, COUNT(*) AS n FROM notes GROUP BY owner ORDER BY owner`); err != nil {
		return sum, err
	}
	for _, r := range rows {
		sum.NotesByOwner[r.Owner] = r.N
	}
	return sum, nil
}
