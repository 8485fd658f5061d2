package labstore

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/authlab/audit"
	"github.com/jmcleod/authlab/storage"
)

const (
	guestbookBucket   = "guestbook"
	messageRecordType = "MESSAGE"
	seqRecordType     = "SEQ"
	seqRecordID       = "next"
)

// ErrEmptyMessage is returned by Post for a blank message.
var ErrEmptyMessage = errors.New("message required")

// Message is one guestbook entry. Message is stored exactly as submitted
// (after trimming and truncation); escaping is the renderer's job.
type Message struct {
	ID      int64  `json:"id"`
	TS      string `json:"ts"`
	User    string `json:"user"`
	Message string `json:"message"`
}

// Guestbook is an append-only message board kept in a sealed repository.
type Guestbook struct {
	repo   storage.Repository
	sealer *storage.Sealer
	maxLen int
	now    func() time.Time
}

// NewGuestbook stores messages in repo sealed under key. Messages longer
// than maxLen characters are truncated.
func NewGuestbook(repo storage.Repository, key *memguard.Enclave, maxLen int) *Guestbook {
	return &Guestbook{repo: repo, sealer: storage.NewSealer(key, guestbookBucket), maxLen: maxLen, now: time.Now}
}

// Post appends a message for user and returns the stored entry.
func (g *Guestbook) Post(user, message string) (Message, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Message{}, ErrEmptyMessage
	}
	if runes := []rune(message); len(runes) > g.maxLen {
		message = string(runes[:g.maxLen])
	}

	msg := Message{TS: audit.Timestamp(g.now()), User: user, Message: message}
	err := g.repo.Batch(guestbookBucket, func(tx storage.BatchTx) error {
		var last uint64
		env, err := tx.Get(seqRecordType, seqRecordID)
		switch {
		case err == nil:
			last = env.Version
		case errors.Is(err, storage.ErrNotFound):
		default:
			return err
		}

		next := last + 1
		msg.ID = int64(next)
		seq, err := g.sealer.SealJSON(seqRecordID, next, next)
		if err != nil {
			return err
		}
		if err := tx.PutCAS(seqRecordType, seqRecordID, last, seq); err != nil {
			return err
		}

		id := messageID(next)
		sealed, err := g.sealer.SealJSON(id, msg, 0)
		if err != nil {
			return err
		}
		return tx.Put(messageRecordType, id, sealed)
	})
	if err != nil {
		return Message{}, fmt.Errorf("posting guestbook message: %w", err)
	}
	return msg, nil
}

// List returns up to limit messages, newest first, skipping offset, and
// the total number of messages.
func (g *Guestbook) List(limit, offset int) ([]Message, int, error) {
	ids, err := g.repo.List(guestbookBucket, messageRecordType)
	if errors.Is(err, storage.ErrBucketNotFound) {
		return []Message{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("listing guestbook: %w", err)
	}
	total := len(ids)
	slices.Reverse(ids)
	if offset >= len(ids) {
		return []Message{}, total, nil
	}
	end := len(ids)
	if limit < end-offset {
		end = offset + limit
	}
	ids = ids[offset:end]

	out := make([]Message, 0, len(ids))
	for _, id := range ids {
		env, err := g.repo.Get(guestbookBucket, messageRecordType, id)
		if err != nil {
			return nil, 0, err
		}
		var m Message
		if err := g.sealer.OpenJSON(id, env, &m); err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, nil
}

// All returns every message, newest first.
func (g *Guestbook) All() ([]Message, error) {
	msgs, _, err := g.List(int(^uint(0)>>1), 0)
	return msgs, err
}

// messageID zero-pads so lexical order is posting order.
func messageID(n uint64) string {
	return fmt.Sprintf("%020d", n)
}
