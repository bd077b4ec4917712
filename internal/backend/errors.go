package backend

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownMethod is returned by Raw for a method name the engine does not
// expose.
var ErrUnknownMethod = errors.New("unknown engine method")

// HTTPStatusError represents a non-2xx response from an engine call.
// It preserves the status code so callers can map it onto their own error
// classes (404 to not found, 409 to conflict).
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Op         string // engine API, e.g. "get" or "bulk", when URL is unknown
	Body       string
	Type       string // engine error type, e.g. version_conflict_engine_exception
	Reason     string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "<nil>"
	}
	detail := e.Body
	if e.Reason != "" {
		detail = e.Reason
	}
	if e.URL == "" && e.Op != "" {
		if detail == "" {
			return fmt.Sprintf("%s returned status %d", e.Op, e.StatusCode)
		}
		return fmt.Sprintf("%s returned status %d: %s", e.Op, e.StatusCode, detail)
	}
	if e.URL == "" {
		if detail == "" {
			return fmt.Sprintf("http status %d", e.StatusCode)
		}
		return fmt.Sprintf("http status %d: %s", e.StatusCode, detail)
	}
	if detail == "" {
		return fmt.Sprintf("http %s returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("http %s returned status %d: %s", e.URL, e.StatusCode, detail)
}

// newHTTPStatusError builds an HTTPStatusError from an engine error body,
// extracting the error type and reason when the body has the usual
// {"error": {"type": ..., "reason": ...}} shape.
func newHTTPStatusError(status int, op string, body []byte) *HTTPStatusError {
	e := &HTTPStatusError{StatusCode: status, Op: op, Body: string(body)}

	var parsed struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &parsed) != nil || len(parsed.Error) == 0 {
		return e
	}
	var detail struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}
	if json.Unmarshal(parsed.Error, &detail) == nil {
		e.Type, e.Reason = detail.Type, detail.Reason
		return e
	}
	// Some engine versions report a plain string.
	var reason string
	if json.Unmarshal(parsed.Error, &reason) == nil {
		e.Reason = reason
	}
	return e
}
