package hubspot

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrorKind classifies a HubSpot failure by cause.
type ErrorKind string

const (
	KindAuth       ErrorKind = "auth"
	KindScope      ErrorKind = "scope"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindValidation ErrorKind = "validation"
	KindRateLimit  ErrorKind = "rate_limit"
	KindServer     ErrorKind = "server"
	KindUnknown    ErrorKind = "unknown"
)

// APIError is a classified HubSpot API failure.
type APIError struct {
	Kind          ErrorKind
	StatusCode    int
	Message       string
	Category      string
	CorrelationID string
	After         time.Duration
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString("hubspot ")
	b.WriteString(string(e.Kind))
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (%d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.CorrelationID != "" {
		b.WriteString(" [correlation ")
		b.WriteString(e.CorrelationID)
		b.WriteString("]")
	}
	return b.String()
}

// RetryAfter returns the wait hint for rate-limit errors.
func (e *APIError) RetryAfter() time.Duration {
	return e.After
}

// Retryable reports whether the failure is worth another attempt.
// Auth, scope, not-found, conflict and validation errors are deterministic.
func (e *APIError) Retryable() bool {
	return e.Kind == KindRateLimit || e.Kind == KindServer
}

// KindOf classifies any error. Errors that did not come from the API are
// reported as KindUnknown.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

var existingIDRe = regexp.MustCompile(`Existing ID:\s*(\d+)`)

// ExistingID extracts the id of the conflicting record from a 409 response,
// e.g. "Contact already exists. Existing ID: 12345".
func ExistingID(err error) (string, bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindConflict {
		return "", false
	}
	m := existingIDRe.FindStringSubmatch(apiErr.Message)
	if m == nil {
		return "", false
	}
	return m[1], true
}

type errorBody struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId"`
	Category      string `json:"category"`
}

func parseAPIError(resp *http.Response, body []byte) *APIError {
	e := &APIError{
		Kind:       kindForStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
	}

	var eb errorBody
	if json.Unmarshal(body, &eb) == nil && eb.Message != "" {
		e.Message = eb.Message
		e.Category = eb.Category
		e.CorrelationID = eb.CorrelationID
	} else {
		e.Message = truncateBytes(strings.TrimSpace(string(body)), maxErrorBody)
	}

	if e.Kind == KindRateLimit {
		e.After = parseRetryAfter(resp.Header)
	}
	return e
}

const maxErrorBody = 500

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func kindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized:
		return KindAuth
	case code == http.StatusForbidden:
		return KindScope
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusConflict:
		return KindConflict
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return KindValidation
	case code == http.StatusTooManyRequests:
		return KindRateLimit
	case code >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}

// parseRetryAfter reads Retry-After (seconds or HTTP date), falling back to
// the rolling-window interval header. Defaults to one second.
func parseRetryAfter(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
		if t, err := http.ParseTime(v); err == nil {
			if d := time.Until(t); d > 0 {
				return d
			}
		}
	}
	if v := h.Get("X-HubSpot-RateLimit-Interval-Milliseconds"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return time.Second
}
