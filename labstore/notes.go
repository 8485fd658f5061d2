package labstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type Note struct {
	ID    int64  `db:"id" json:"id"`
	Title string `db:"title" json:"title"`
	Body  string `db:"body" json:"body,omitempty"`
	Owner string `db:"owner" json:"-"`
}

// NotesByOwner lists owner's notes by id for the HTML index.
func (s *Store) NotesByOwner(ctx context.Context, owner string) ([]Note, error) {
	notes := []Note{}
	if err := s.db.SelectContext(ctx, &notes, "SELECT id, title, owner FROM notes WHERE owner = ? ORDER BY id", owner); err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	return notes, nil
}

// Note fetches a note by id with no ownership check.
func (s *Store) Note(ctx context.Context, id int64) (Note, error) {
	var n Note
	err := s.db.GetContext(ctx, &n, "SELECT id, title, body, owner FROM notes WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Note{}, ErrNotFound
	}
	if err != nil {
		return Note{}, fmt.Errorf("fetching note %d: %w", id, err)
	}
	return n, nil
}

// OwnedNote fetches a note only if owner owns it. A foreign note is
// indistinguishable from a missing one.
func (s *Store) OwnedNote(ctx context.Context, id int64, owner string) (Note, error) {
	var n Note
	err := s.db.GetContext(ctx, &n, "SELECT id, title, body, owner FROM notes WHERE id = ? AND owner = ? LIMIT 1", id, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return Note{}, ErrNotFound
	}
	if err != nil {
		return Note{}, fmt.Errorf("fetching note %d: %w", id, err)
	}
	return n, nil
}

// NoteQuery pages one owner's notes. Sorting defaults to title ascending.
type NoteQuery struct {
	Owner   string
	SortBy  string
	SortDir string
	Limit   int
	Offset  int
}

// ListNotes returns the page (id and title only) and the owner's total.
func (s *Store) ListNotes(ctx context.Context, nq NoteQuery) ([]Note, int, error) {
	order, err := orderBy(noteSortColumns, nq.SortBy, "title", nq.SortDir)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM notes WHERE owner = ?", nq.Owner); err != nil {
		return nil, 0, fmt.Errorf("counting notes: %w", err)
	}
	items := []Note{}
	if err := s.db.SelectContext(ctx, &items, "SELECT id, title FROM notes WHERE owner = ?"+order+" LIMIT ? OFFSET ?", nq.Owner, nq.Limit, nq.Offset); err != nil {
		return nil, 0, fmt.Errorf("listing notes: %w", err)
	}
	return items, total, nil
}
