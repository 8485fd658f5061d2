package api

import "github.com/jmcleod/authlab/labstore"

// ErrorBody is the payload of an error envelope.
type ErrorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

// ErrorResponse is the JSON envelope for every API failure.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// SessionResponse is returned by GET /auth/session.
type SessionResponse struct {
	User      string `json:"user"`
	CSRFToken string `json:"csrf_token"`
}

// Page is a paginated list response.
type Page[T any] struct {
	Items  []T `json:"items"`
	Count  int `json:"count"`
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

func newPage[T any](items []T, total, offset, limit int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Count: len(items), Total: total, Offset: offset, Limit: limit}
}

// NoteSummary is a row of GET /notes.
type NoteSummary struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// NoteDetail is returned by GET /notes/{noteID}.
type NoteDetail struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

type (
	ProductPage   = Page[labstore.Product]
	NotePage      = Page[NoteSummary]
	GuestbookPage = Page[labstore.Message]
)

// PostMessageRequest is the body of POST /guestbook/messages.
type PostMessageRequest struct {
	Message string `json:"message"`
}
