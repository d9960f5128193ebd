package common

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// AppError represents application-specific errors. IDs and Count carry the
// structured detail a caller needs to resolve the failure without re-reading state.
type AppError struct {
	Code    string
	Message string
	Cause   error
	IDs     []uuid.UUID
	Count   int
}

func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.IDs) > 0 {
		b.WriteString(" [")
		for i, id := range e.IDs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(id.String())
		}
		b.WriteString("]")
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Extraction errors (unrecoverable for the upload).
var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrEmptyDocument     = errors.New("document has no text")
)

// Session store errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptySession    = errors.New("session has no candidates")
)

// Grouping errors. Nothing is mutated when one of these is returned.
var (
	ErrDuplicateOrder          = errors.New("display order already used in session")
	ErrCandidateAlreadyGrouped = errors.New("candidate already belongs to a grouping")
	ErrCrossSessionReference   = errors.New("candidate belongs to another session")
	ErrIncompleteOrdering      = errors.New("ordering must list every grouping exactly once")
	ErrGroupingNotFound        = errors.New("grouping not found")
	// ErrConcurrentUpdate is retryable: another writer changed the grouping first.
	ErrConcurrentUpdate = errors.New("grouping changed concurrently")
)

// Materialization errors.
var (
	ErrUngroupedCandidates = errors.New("session has ungrouped candidates")
	ErrTemplateNotFound    = errors.New("template not found")
)

// Common application errors
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrDatabase          = errors.New("database error")
	ErrValidation        = errors.New("validation failed")
)

// Error codes.
const (
	CodeUnsupportedFormat       = "UNSUPPORTED_FORMAT"
	CodeEmptyDocument           = "EMPTY_DOCUMENT"
	CodeSessionNotFound         = "SESSION_NOT_FOUND"
	CodeEmptySession            = "EMPTY_SESSION"
	CodeDuplicateOrder          = "DUPLICATE_ORDER"
	CodeCandidateAlreadyGrouped = "CANDIDATE_ALREADY_GROUPED"
	CodeCrossSessionReference   = "CROSS_SESSION_REFERENCE"
	CodeIncompleteOrdering      = "INCOMPLETE_ORDERING"
	CodeGroupingNotFound        = "GROUPING_NOT_FOUND"
	CodeConcurrentUpdate        = "CONCURRENT_UPDATE"
	CodeUngroupedCandidates     = "UNGROUPED_CANDIDATES"
	CodeTemplateNotFound        = "TEMPLATE_NOT_FOUND"
	CodeInvalidTransition       = "INVALID_TRANSITION"
	CodeInvalidInput            = "INVALID_INPUT"
	CodeConfig                  = "CONFIG_ERROR"
	CodeDatabase                = "DATABASE_ERROR"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithIDs attaches the offending identifiers and their count.
func (e *AppError) WithIDs(ids ...uuid.UUID) *AppError {
	e.IDs = append(e.IDs, ids...)
	e.Count = len(e.IDs)
	return e
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func UnsupportedFormat(format string, args ...any) *AppError {
	return NewAppError(CodeUnsupportedFormat, fmt.Sprintf(format, args...), ErrUnsupportedFormat)
}

func SessionNotFound(sessionID string) *AppError {
	return NewAppError(CodeSessionNotFound, fmt.Sprintf("session %q", sessionID), ErrSessionNotFound)
}

func EmptySession(sessionID string) *AppError {
	return NewAppError(CodeEmptySession, fmt.Sprintf("session %q", sessionID), ErrEmptySession)
}

func DuplicateOrder(sessionID string, order int) *AppError {
	return NewAppError(CodeDuplicateOrder, fmt.Sprintf("session %q display_order %d", sessionID, order), ErrDuplicateOrder)
}

func CandidateAlreadyGrouped(ids ...uuid.UUID) *AppError {
	return NewAppError(CodeCandidateAlreadyGrouped, "candidates owned by another grouping", ErrCandidateAlreadyGrouped).WithIDs(ids...)
}

func CrossSessionReference(sessionID string, ids ...uuid.UUID) *AppError {
	return NewAppError(CodeCrossSessionReference, fmt.Sprintf("candidates not in session %q", sessionID), ErrCrossSessionReference).WithIDs(ids...)
}

func InvalidInput(format string, args ...any) *AppError {
	return NewAppError(CodeInvalidInput, fmt.Sprintf(format, args...), ErrInvalidInput)
}

// IDsOf returns the identifiers attached to err, if it is (or wraps) an AppError.
func IDsOf(err error) []uuid.UUID {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.IDs
	}
	return nil
}

// CodeOf returns the AppError code of err, or "" when err carries none.
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
