// Package audit defines the structured record appended for every guard
// decision and the sinks that persist or forward it.
package audit

import (
	"context"
	"errors"
	"time"
)

// TimeLayout is ISO-8601 UTC with microseconds and a literal Z suffix.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// Record is one line of the audit log. Username and Meta serialize as null
// when absent.
type Record struct {
	TS         string         `json:"ts"`
	IP         string         `json:"ip"`
	Username   *string        `json:"username"`
	UserExists bool           `json:"user_exists"`
	Result     string         `json:"result"`
	Reason     string         `json:"reason"`
	Route      string         `json:"route"`
	Meta       map[string]any `json:"meta"`
}

// Timestamp formats t for Record.TS.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Name returns a pointer suitable for Record.Username.
func Name(username string) *string {
	return &username
}

// Sink appends audit records. Implementations must be safe for concurrent
// use. A returned error never changes the decision being recorded.
type Sink interface {
	Append(ctx context.Context, rec Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec Record) error

func (f SinkFunc) Append(ctx context.Context, rec Record) error { return f(ctx, rec) }

// Discard drops every record.
var Discard Sink = SinkFunc(func(context.Context, Record) error { return nil })

// Multi fans a record out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Append(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
