package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/jmcleod/authlab/guard"
)

// ErrorCode is the machine-readable code in an error envelope.
type ErrorCode string

const (
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeCSRF             ErrorCode = "csrf_bad"
	CodeBadJSON          ErrorCode = "bad_json"
	CodeEmpty            ErrorCode = "empty"
	CodeRateLimited      ErrorCode = "ratelimited"
	CodeInvalidParam     ErrorCode = "invalid_param"
	CodeInvalidRange     ErrorCode = "invalid_range"
	CodeInvalidSortBy    ErrorCode = "invalid_sort_by"
	CodeInvalidSortDir   ErrorCode = "invalid_sort_dir"
	CodeNotFound         ErrorCode = "not_found"
	CodeMethodNotAllowed ErrorCode = "method_not_allowed"
	CodeServerError      ErrorCode = "server_error"
)

type catalogEntry struct {
	message string
	status  int
}

var errorCatalog = map[ErrorCode]catalogEntry{
	CodeUnauthorized:     {"Login required", http.StatusUnauthorized},
	CodeCSRF:             {"Invalid CSRF token", http.StatusBadRequest},
	CodeBadJSON:          {"Expected application/json", http.StatusUnsupportedMediaType},
	CodeEmpty:            {"Message required", http.StatusBadRequest},
	CodeRateLimited:      {"Too many requests", http.StatusTooManyRequests},
	CodeInvalidParam:     {"Bad parameter", http.StatusBadRequest},
	CodeInvalidRange:     {"Invalid range", http.StatusBadRequest},
	CodeInvalidSortBy:    {"Invalid sort_by", http.StatusBadRequest},
	CodeInvalidSortDir:   {"Invalid sort_dir", http.StatusBadRequest},
	CodeNotFound:         {"Resource not found", http.StatusNotFound},
	CodeMethodNotAllowed: {"Method not allowed", http.StatusMethodNotAllowed},
	CodeServerError:      {"Internal server error", http.StatusInternalServerError},
}

// Status returns the HTTP status for code.
func (c ErrorCode) Status() int {
	if e, ok := errorCatalog[c]; ok {
		return e.status
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code ErrorCode, details any) {
	e, ok := errorCatalog[code]
	if !ok {
		code, e = CodeServerError, errorCatalog[CodeServerError]
	}
	writeJSON(w, e.status, ErrorResponse{Error: ErrorBody{
		Code:    code,
		Message: e.message,
		Details: details,
	}})
}

// writeGuardError maps a guard denial to its envelope. Rate-limit denials
// carry Retry-After.
func writeGuardError(w http.ResponseWriter, err error) {
	switch guard.CodeOf(err) {
	case guard.CodeCSRF:
		writeError(w, CodeCSRF, nil)
	case guard.CodeRateLimited:
		w.Header().Set("Retry-After", strconv.Itoa(guard.RetryAfterOf(err)))
		writeError(w, CodeRateLimited, nil)
	default:
		writeError(w, CodeUnauthorized, nil)
	}
}
