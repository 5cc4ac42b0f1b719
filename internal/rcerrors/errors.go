// Package rcerrors implements the RAG core's error taxonomy: a small closed
// set of Kinds (ConfigurationError, ValidationError, NotFound,
// TransientUpstream, PermanentUpstream, DegradedResult) that every component
// boundary translates its failures into, so the pipeline can decide what to
// retry, what to surface, and what to soft-fail.
package rcerrors

import (
	"errors"
	"fmt"
	"time"
)

// Kind is one of the taxonomy's six error classes.
type Kind string

const (
	KindConfiguration     Kind = "CONFIGURATION_ERROR"
	KindValidation        Kind = "VALIDATION_ERROR"
	KindNotFound          Kind = "NOT_FOUND"
	KindTransientUpstream Kind = "TRANSIENT_UPSTREAM"
	KindPermanentUpstream Kind = "PERMANENT_UPSTREAM"
	KindDegradedResult    Kind = "DEGRADED_RESULT"
)

// Code further distinguishes errors within a Kind, mirroring the taxonomy
// spec.md enumerates for C3 specifically (AuthFailed, RateLimited, ...) plus
// the collection/template/provider codes the rest of the core raises.
type Code string

const (
	CodeUnknownProvider      Code = "UNKNOWN_PROVIDER"
	CodeProviderMisconfig    Code = "PROVIDER_MISCONFIGURED"
	CodeCollectionExists     Code = "COLLECTION_EXISTS"
	CodeInvalidDimension     Code = "INVALID_DIMENSION"
	CodeDimensionMismatch    Code = "DIMENSION_MISMATCH"
	CodeCollectionNotFound   Code = "COLLECTION_NOT_FOUND"
	CodeIndexNotBuilt        Code = "INDEX_NOT_BUILT"
	CodeTemplateNotFound     Code = "TEMPLATE_NOT_FOUND"
	CodeParametersNotFound   Code = "PARAMETERS_NOT_FOUND"
	CodeMissingVariable      Code = "MISSING_VARIABLE"
	CodeInvalidVariable      Code = "INVALID_VARIABLE"
	CodeInvalidParameters    Code = "INVALID_PARAMETERS"
	CodeAuthFailed           Code = "AUTH_FAILED"
	CodeRateLimited          Code = "RATE_LIMITED"
	CodeTimeout              Code = "TIMEOUT"
	CodeModelUnavailable     Code = "MODEL_UNAVAILABLE"
	CodeResponseParseError   Code = "RESPONSE_PARSE_ERROR"
	CodeUpstreamError        Code = "UPSTREAM_ERROR"
	CodeRetrievalError       Code = "RETRIEVAL_ERROR"
	CodeGenerationError      Code = "GENERATION_ERROR"
	CodeMissingCredential    Code = "MISSING_CREDENTIAL"
	CodeInvalidInput         Code = "INVALID_INPUT"
	CodeUpstreamUnavailable  Code = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamBadResponse  Code = "UPSTREAM_BAD_RESPONSE"
)

// Error is the taxonomy's single concrete error type. Components never
// panic across a boundary; they return (*Error) wrapping the underlying
// cause where one exists.
type Error struct {
	Kind       Kind
	Code       Code
	Message    string
	RetryAfter *time.Duration
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs a taxonomy error.
func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap constructs a taxonomy error around an upstream cause.
func Wrap(kind Kind, code Code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

// RateLimitedf builds a TransientUpstream/RateLimited error carrying the
// upstream's retry-after hint, if any.
func RateLimitedf(retryAfter *time.Duration, format string, args ...any) *Error {
	return &Error{
		Kind:       KindTransientUpstream,
		Code:       CodeRateLimited,
		Message:    fmt.Sprintf(format, args...),
		RetryAfter: retryAfter,
	}
}

// Is supports errors.Is comparisons keyed on Kind+Code so callers can write
// errors.Is(err, rcerrors.New(rcerrors.KindNotFound, rcerrors.CodeCollectionNotFound, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsRetryable reports whether err is a TransientUpstream error -- the only
// kind C3's internal retry loop (and the generic internal/retry helpers)
// should ever retry.
func IsRetryable(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindTransientUpstream
}

// ExcerptBody truncates an upstream response body to a bounded length so
// error messages never leak full credentials-adjacent payloads, per S7.
func ExcerptBody(body string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 256
	}
	if len(body) <= maxLen {
		return body
	}
	return body[:maxLen] + "...(truncated)"
}
