package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind int

const (
	// NotConfigured means a required setting for the chosen path is missing.
	NotConfigured Kind = iota
	// UpstreamUnavailable covers transient catalog/LLM/demuxer/VFS failures.
	UpstreamUnavailable
	// BadInput covers malformed files, invalid paths and unknown fingerprints.
	BadInput
	// Empty means a subtitle parse produced zero cues.
	Empty
	// Busy means another batch is already active.
	Busy
	// Internal is the unhandled catch-all.
	Internal
)

func (k Kind) String() string {
	switch k {
	case NotConfigured:
		return "NotConfigured"
	case UpstreamUnavailable:
		return "UpstreamUnavailable"
	case BadInput:
		return "BadInput"
	case Empty:
		return "Empty"
	case Busy:
		return "Busy"
	default:
		return "Internal"
	}
}

// HTTPStatus maps an error kind to the status the HTTP adapter returns.
func (k Kind) HTTPStatus() int {
	switch k {
	case NotConfigured:
		return http.StatusBadRequest
	case BadInput:
		return http.StatusBadRequest
	case Empty:
		return http.StatusUnprocessableEntity
	case Busy:
		return http.StatusConflict
	case UpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is the application error carried between components.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
	}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Kind.String(), e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// KindOf extracts the kind from err, defaulting to Internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

// StatusOf maps err to an HTTP status through its kind.
func StatusOf(err error) int {
	return KindOf(err).HTTPStatus()
}
