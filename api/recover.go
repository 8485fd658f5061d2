package api

import (
	"fmt"
	"net/http"
	"runtime/debug"
)

// recoverer turns a handler panic into an audited 500 envelope.
func (a *API) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			a.logger.Error("handler panic", "route", r.URL.Path, "panic", v, "stack", string(debug.Stack()))
			a.guard.Audit(r.Context(), a.guard.Caller(r), nil, false, "api_error", string(CodeServerError),
				map[string]any{"error": fmt.Sprint(v)})
			writeError(w, CodeServerError, nil)
		}()
		next.ServeHTTP(w, r)
	})
}
