// Package apperr defines the failure taxonomy shared by the ingest and ask
// pipelines. Every failure is scoped to a single request; callers branch on
// the kind with errors.Is.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrUnsupportedType indicates the declared document extension is not allowed.
	ErrUnsupportedType = errors.New("unsupported document type")
	// ErrExtraction indicates a document could not be decoded into text.
	ErrExtraction = errors.New("text extraction failed")
	// ErrConfiguration indicates invalid settings detected at construction time.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrCollectionNotFound indicates the collection id does not exist for the user.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrIndex indicates an embedding model or vector store failure.
	ErrIndex = errors.New("embedding index failure")
	// ErrModelCall indicates the language model call failed.
	ErrModelCall = errors.New("language model call failed")
	// ErrTimeout indicates an external call exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")
	// ErrParse indicates the language model output did not have the expected shape.
	ErrParse = errors.New("unexpected model output")
	// ErrInvalidInput indicates a blank or malformed request argument.
	ErrInvalidInput = errors.New("invalid input")
)

var kinds = []error{
	ErrUnsupportedType,
	ErrExtraction,
	ErrConfiguration,
	ErrCollectionNotFound,
	ErrIndex,
	ErrModelCall,
	ErrTimeout,
	ErrParse,
	ErrInvalidInput,
}

// Error ties a failure kind to the operation that produced it.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := "unknown error"
	if e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// New wraps err under the given kind. err may be nil.
func New(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a kind error with a formatted cause.
func Newf(kind error, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Classify wraps err under kind unless it is a deadline expiry, which is
// reported as ErrTimeout. Errors that already carry a kind are returned as is.
func Classify(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) && existing.Kind != nil {
		return err
	}
	if IsTimeout(err) {
		return New(ErrTimeout, op, err)
	}
	return New(kind, op, err)
}

// IsTimeout reports whether err is a context deadline or a network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// KindOf returns the taxonomy kind carried by err, or nil.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != nil {
		return e.Kind
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// UserMessage maps err to the short message shown to an end user.
func UserMessage(err error) string {
	switch KindOf(err) {
	case nil:
		if err == nil {
			return ""
		}
		return "Something went wrong, please try again"
	case ErrUnsupportedType:
		return "Unsupported file type"
	case ErrExtraction, ErrIndex:
		return "Error processing document"
	case ErrCollectionNotFound:
		return "Please upload a document first"
	case ErrTimeout:
		return "The request timed out, please try again"
	case ErrModelCall, ErrParse:
		return "The language model could not answer, please try again"
	case ErrConfiguration:
		return "The service is misconfigured"
	case ErrInvalidInput:
		return "Please enter a question and try again"
	default:
		return "Something went wrong, please try again"
	}
}
