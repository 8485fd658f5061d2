package labstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/authlab/guard"
)

func newSeededStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "authlab.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Reset(ctx))
	return s
}

func ptr(f float64) *float64 { return &f }

func TestReset_Seeds(t *testing.T) {
	s := newSeededStore(t)
	ctx := context.Background()

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 18, sum.Products)
	assert.Equal(t, map[string]int{"admin": 3, "alice": 3}, sum.NotesByOwner)

	// Reset is repeatable and starts ids over.
	require.NoError(t, s.Reset(ctx))
	sum, err = s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 18, sum.Products)

	n, err := s.Note(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Admin note #1", n.Title)
	assert.Equal(t, "Seeded note 1 for admin", n.Body)
	assert.Equal(t, "admin", n.Owner)
}

func TestOpen_EmptyDatabaseHasSchema(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "fresh.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ping(ctx))
	items, total, err := s.ListProducts(ctx, ProductQuery{Limit: 20})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}

func TestSearchProducts_Safe(t *testing.T) {
	s := newSeededStore(t)
	ctx := context.Background()

	got, err := s.SearchProducts(ctx, "router", guard.ModeSafe)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Router AX1800", got[0].Name)

	got, err = s.SearchProducts(ctx, "' OR '1'='1", guard.ModeSafe)
	require.NoError(t, err)
	assert.Empty(t, got, "the term is bound, not interpreted")
}

func TestSearchProducts_PoCIsInjectable(t *testing.T) {
	s := newSeededStore(t)
	ctx := context.Background()

	got, err := s.SearchProducts(ctx, "Phone", guard.ModePoC)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.SearchProducts(ctx, "zzz' OR '1'='1' --", guard.ModePoC)
	require.NoError(t, err)
	assert.Len(t, got, 18, "tautology returns every row")

	got, err = s.SearchProducts(ctx, "zzz' UNION SELECT id, title, 0 FROM notes --", guard.ModePoC)
	require.NoError(t, err)
	assert.Len(t, got, 6, "union exposes the notes table")

	_, err = s.SearchProducts(ctx, "'", guard.ModePoC)
	assert.Error(t, err, "a stray quote breaks the statement")
}

func TestListProducts(t *testing.T) {
	s := newSeededStore(t)
	ctx := context.Background()

	t.Run("DefaultSortByName", func(t *testing.T) {
		items, total, err := s.ListProducts(ctx, ProductQuery{Limit: 3})
		require.NoError(t, err)
		assert.Equal(t, 18, total)
		require.Len(t, items, 3)
		assert.Equal(t, "Keyboard Mech", items[0].Name)
		assert.Equal(t, "Laptop Air 13", items[1].Name)
	})

	t.Run("FiltersAndSort", func(t *testing.T) {
		items, total, err := s.ListProducts(ctx, ProductQuery{
			Q: "LAPTOP", MinPrice: ptr(1000), MaxPrice: ptr(1500),
			SortBy: "price", SortDir: "DESC", Limit: 100,
		})
		require.NoError(t, err)
		assert.Equal(t, 6, total)
		require.Len(t, items, 6)
		assert.Equal(t, "Laptop Gamer 15", items[0].Name)
		assert.Equal(t, 1049.0, items[5].Price)
	})

	t.Run("Offset", func(t *testing.T) {
		items, total, err := s.ListProducts(ctx, ProductQuery{SortBy: "id", Limit: 5, Offset: 15})
		require.NoError(t, err)
		assert.Equal(t, 18, total)
		require.Len(t, items, 3)
		assert.Equal(t, int64(16), items[0].ID)
	})

	t.Run("InvalidSort", func(t *testing.T) {
		_, _, err := s.ListProducts(ctx, ProductQuery{SortBy: "price; DROP TABLE products", Limit: 5})
		assert.ErrorIs(t, err, ErrInvalidSortBy)
		_, _, err = s.ListProducts(ctx, ProductQuery{SortDir: "sideways", Limit: 5})
		assert.ErrorIs(t, err, ErrInvalidSortDir)
	})
}

func TestNotes(t *testing.T) {
	s := newSeededStore(t)
	ctx := context.Background()

	notes, err := s.NotesByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, notes, 3)
	assert.Equal(t, int64(4), notes[0].ID)

	_, err = s.OwnedNote(ctx, 4, "admin")
	assert.ErrorIs(t, err, ErrNotFound, "foreign notes look missing")
	_, err = s.OwnedNote(ctx, 99, "admin")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.OwnedNote(ctx, 2, "admin")
	require.NoError(t, err)
	assert.Equal(t, "Admin note #2", n.Title)

	n, err = s.Note(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "alice", n.Owner)
	_, err = s.Note(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNotes(t *testing.T) {
	s := newSeededStore(t)
	ctx := context.Background()

	items, total, err := s.ListNotes(ctx, NoteQuery{Owner: "admin", SortBy: "id", SortDir: "desc", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, int64(3), items[0].ID)
	assert.Empty(t, items[0].Body, "list rows carry no body")

	items, _, err = s.ListNotes(ctx, NoteQuery{Owner: "admin", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, "Admin note #1", items[0].Title)

	items, total, err = s.ListNotes(ctx, NoteQuery{Owner: "mallory", Limit: 20})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, items)

	_, _, err = s.ListNotes(ctx, NoteQuery{Owner: "admin", SortBy: "owner", Limit: 20})
	assert.ErrorIs(t, err, ErrInvalidSortBy)
}
