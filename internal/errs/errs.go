// Package errs defines the typed error kinds returned across coderag's
// components, so callers can branch on errors.As without string matching.
package errs

import "fmt"

// Kind classifies an error by how the caller should react to it.
type Kind string

const (
	// KindValidation is bad input: empty query snippet, unknown search mode,
	// invalid conflict policy. Reported to the caller, never retried.
	KindValidation Kind = "validation"

	// KindStorage is a store/DB initialization, I/O, or schema failure.
	// Reported with a remediation hint. Nothing retries it automatically;
	// the maintenance jobs record it in JobResult.Errors and carry on.
	KindStorage Kind = "storage"

	// KindEmbedding is a model or worker failure that aborts the enclosing
	// batch.
	KindEmbedding Kind = "embedding"

	// KindIndexing is an orchestration or precondition failure, such as the
	// indexer not being initialized.
	KindIndexing Kind = "indexing"

	// KindRetrieval is a failure inside the search pipeline after inputs
	// have already been validated.
	KindRetrieval Kind = "retrieval"

	// KindReadOnly is a mutating call attempted while read-only mode is
	// active.
	KindReadOnly Kind = "read_only"

	// KindConflict is an archive import against an existing archive under
	// the "skip" conflict policy.
	KindConflict Kind = "conflict"

	// KindNotFound is an archive, project, or alert lookup by id/name that
	// doesn't exist. Most callers surface this as a structured
	// success:false result rather than propagating the error.
	KindNotFound Kind = "not_found"

	// KindCapacity is a bulk operation that exceeds its per-call cap; the
	// whole batch is rejected, none of it applied.
	KindCapacity Kind = "capacity"
)

// Error wraps an underlying cause with a Kind and enough context to act on
// it — which component raised it and what operation was in progress.
type Error struct {
	Kind      Kind
	Component string // e.g. "parser", "embedding", "archival"
	Op        string // e.g. "ParseFile", "EmbedBatch", "ImportArchive"
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Component, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Component, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is supports errors.Is(err, errs.KindX) style checks by comparing Kind
// against a sentinel wrapped in an *Error with no other fields set.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error of the given kind.
func New(kind Kind, component, op, message string) *Error {
	return &Error{Kind: kind, Component: component, Op: op, Message: message}
}

// Wrap constructs an *Error of the given kind around an underlying cause.
func Wrap(kind Kind, component, op, message string, err error) *Error {
	return &Error{Kind: kind, Component: component, Op: op, Message: message, Err: err}
}

// OfKind reports whether err (or anything it wraps) is an *Error of kind k.
func OfKind(err error, k Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == k {
				return true
			}
			err = e.Err
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func Validation(component, op, message string) *Error {
	return New(KindValidation, component, op, message)
}

func Storage(component, op, message string, err error) *Error {
	return Wrap(KindStorage, component, op, message, err)
}

func Embedding(component, op, message string, err error) *Error {
	return Wrap(KindEmbedding, component, op, message, err)
}

func Indexing(component, op, message string) *Error {
	return New(KindIndexing, component, op, message)
}

func Retrieval(component, op, message string, err error) *Error {
	return Wrap(KindRetrieval, component, op, message, err)
}

func ReadOnly(component, op string) *Error {
	return New(KindReadOnly, component, op, "service is in read-only mode")
}

func Conflict(component, op, message string) *Error {
	return New(KindConflict, component, op, message)
}

func NotFound(component, op, message string) *Error {
	return New(KindNotFound, component, op, message)
}

func Capacity(component, op, message string) *Error {
	return New(KindCapacity, component, op, message)
}
