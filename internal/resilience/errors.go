// Package resilience provides the error taxonomy and retry machinery shared
// by the crawl and analysis pipeline.
package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// ErrorKind classifies a failure for retry and reporting decisions.
type ErrorKind string

const (
	// KindTimeout covers per-call timeouts (HTTP or provider).
	KindTimeout ErrorKind = "timeout"
	// KindRateLimited covers HTTP 429 and provider throttling responses.
	KindRateLimited ErrorKind = "rate_limited"
	// KindTransport covers DNS, TLS, and connection-level failures.
	KindTransport ErrorKind = "transport"
	// KindProtectedSite covers 403s and bot-challenge pages.
	KindProtectedSite ErrorKind = "protected_site"
	// KindInvalidResponse covers unparsable or schema-violating LLM output.
	KindInvalidResponse ErrorKind = "invalid_response"
	// KindProviderFatal covers auth failures and exhausted quotas.
	KindProviderFatal ErrorKind = "provider_fatal"
	// KindDeadline means the overall analysis budget elapsed.
	KindDeadline ErrorKind = "deadline"
	// KindCancelled means the caller cancelled the operation.
	KindCancelled ErrorKind = "cancelled"
	// KindQuotaExceeded means repeated 429s survived the retry budget.
	KindQuotaExceeded ErrorKind = "quota_exceeded"
	// KindNoContent means every page fetch failed during extraction.
	KindNoContent ErrorKind = "no_content"
	// KindUnknown is the fallback for unclassified errors.
	KindUnknown ErrorKind = "unknown"
)

// Recoverable reports whether a worker-level error of this kind is safe to
// retry. Retry policy itself lives with the orchestrator; workers only
// classify.
func (k ErrorKind) Recoverable() bool {
	switch k {
	case KindTimeout, KindRateLimited, KindTransport:
		return true
	default:
		return false
	}
}

// Error carries an ErrorKind through an error chain.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with an explicit kind.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Errorf builds a kinded error from a plain message.
func Errorf(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Err: errors.New(msg)}
}

// KindOf classifies err into an ErrorKind. Explicit *Error kinds win; context
// and network errors are mapped next; everything else is KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return KindTransport
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transportPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake",
		"certificate",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transportPatterns {
		if strings.Contains(msg, p) {
			return KindTransport
		}
	}

	return KindUnknown
}

// KindOfHTTPStatus maps an HTTP status code to an ErrorKind. 2xx statuses
// return "".
func KindOfHTTPStatus(status int) ErrorKind {
	switch {
	case status >= 200 && status < 300:
		return ""
	case status == 429:
		return KindRateLimited
	case status == 403:
		return KindProtectedSite
	case status == 401:
		return KindProviderFatal
	case status == 408 || status == 504:
		return KindTimeout
	case status >= 500:
		return KindTransport
	default:
		return KindUnknown
	}
}

// IsRecoverable reports whether err classifies to a recoverable kind.
func IsRecoverable(err error) bool {
	return KindOf(err).Recoverable()
}
