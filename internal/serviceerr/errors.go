// Package serviceerr holds the error taxonomy of the client and the
// normalizer that turns any error into a message that can be shown to a user.
package serviceerr

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
)

// FallbackMessage is returned when no message can be extracted from an error.
const FallbackMessage = "An unexpected error occurred"

var ErrNotFound = errors.New("not found")

// Kind tags the variant of an Error.
type Kind string

const (
	KindUnknown      Kind = "unknown"
	KindAuthRequired Kind = "auth_required"
	KindStorage      Kind = "storage"
	KindNetwork      Kind = "network"
	KindTimeout      Kind = "timeout"
	KindHTTP         Kind = "http"
	KindValidation   Kind = "validation"
)

var defaultMessages = map[Kind]string{
	KindAuthRequired: "Authentication required, please log in",
	KindStorage:      "Secure storage is unavailable, please try again",
	KindNetwork:      "Network error, please check your connection and retry",
	KindTimeout:      "The request timed out, please retry",
}

// Error is the tagged error variant constructed at the storage and HTTP
// boundaries. Error() always yields the normalized, displayable message;
// the cause is kept for logs only.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status code, KindHTTP only
	Message string // displayable message, for KindHTTP the backend message
	Err     error  // underlying cause

	// token the failed request carried, never logged
	token    string
	hasToken bool
}

// Predefined errors usable as errors.Is targets. Matching is done by kind.
var (
	ErrAuthRequired = &Error{Kind: KindAuthRequired}
	ErrStorage      = &Error{Kind: KindStorage}
	ErrNetwork      = &Error{Kind: KindNetwork}
	ErrTimeout      = &Error{Kind: KindTimeout}
	ErrHTTP         = &Error{Kind: KindHTTP}
	ErrValidation   = &Error{Kind: KindValidation}
)

func (e *Error) Error() string {
	return Normalize(e)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. A target with a
// non-zero Status additionally requires the same status.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}

	return t.Kind == e.Kind && (t.Status == 0 || t.Status == e.Status)
}

// LogValue exposes the full error details, including the cause, to slog.
func (e *Error) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("kind", string(e.Kind)),
		slog.String("message", Normalize(e)),
	}
	if e.Status != 0 {
		attrs = append(attrs, slog.Int("status", e.Status))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("cause", e.Err.Error()))
	}

	return slog.GroupValue(attrs...)
}

func (e *Error) display() string {
	if msg := strings.TrimSpace(e.Message); msg != "" {
		return msg
	}
	if msg, ok := defaultMessages[e.Kind]; ok {
		return msg
	}
	if e.Kind == KindHTTP && e.Status != 0 {
		return fmt.Sprintf("Request failed with status code %d", e.Status)
	}
	if e.Err != nil {
		return Normalize(e.Err)
	}

	return ""
}

// WithToken records the bearer token the failed request was sent with, ""
// when it was sent without one. It returns e.
func (e *Error) WithToken(token string) *Error {
	e.token = token
	e.hasToken = true

	return e
}

// RequestToken returns the token recorded with WithToken on the first
// *Error in the chain.
func RequestToken(err error) (string, bool) {
	var e *Error
	if !errors.As(err, &e) || e == nil || !e.hasToken {
		return "", false
	}

	return e.token, true
}

// New creates an Error of the given kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// AuthRequired is returned when an authenticated call is attempted without a token.
func AuthRequired() *Error {
	return &Error{Kind: KindAuthRequired}
}

// Storage wraps a failure of the secure storage.
func Storage(cause error) *Error {
	return &Error{Kind: KindStorage, Err: cause}
}

// Network wraps a connectivity failure.
func Network(cause error) *Error {
	return &Error{Kind: KindNetwork, Err: cause}
}

// Timeout wraps an exceeded request deadline.
func Timeout(cause error) *Error {
	return &Error{Kind: KindTimeout, Err: cause}
}

// HTTP creates an error for a non-2xx response. message is the backend
// message extracted from the response body and may be empty.
func HTTP(status int, message string) *Error {
	return &Error{Kind: KindHTTP, Status: status, Message: message}
}

// Validation is returned for malformed local input caught before any network call.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Normalize converts any error into a non-empty displayable message.
// A structured *Error in the chain wins over the error's own text. It never
// panics and never returns Go type names or stack traces.
func Normalize(err error) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			msg = FallbackMessage
		}
	}()

	if isNil(err) {
		return FallbackMessage
	}

	var e *Error
	if errors.As(err, &e) {
		if e == nil {
			return FallbackMessage
		}
		if m := e.display(); m != "" {
			return m
		}

		return FallbackMessage
	}

	if m := strings.TrimSpace(err.Error()); m != "" {
		return m
	}

	return FallbackMessage
}

// IsAuthRequired reports whether err must force the session to the
// unauthenticated state: a missing token locally or a 401 from the backend.
func IsAuthRequired(err error) bool {
	var e *Error
	if !errors.As(err, &e) || e == nil {
		return false
	}

	return e.Kind == KindAuthRequired || (e.Kind == KindHTTP && e.Status == 401)
}

// KindOf returns the kind of the first *Error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) || e == nil {
		return KindUnknown
	}

	return e.Kind
}

func isNil(err error) bool {
	if err == nil {
		return true
	}

	v := reflect.ValueOf(err)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}
