package api

import (
	"context"

	"github.com/jmcleod/authlab/audit"
)

// sinkFunc records the result and reason of each audited decision.
func sinkFunc(fn func(result, reason string)) audit.Sink {
	return audit.SinkFunc(func(_ context.Context, rec audit.Record) error {
		fn(rec.Result, rec.Reason)
		return nil
	})
}
