package analytics

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the engine can surface. Validation,
// UnknownOperation, ForbiddenQuery and NotFound are terminal; Execution and
// Storage are retryable up to the orchestrator's retry budget.
type Kind string

const (
	KindValidation       Kind = "ValidationError"
	KindUnknownOperation Kind = "UnknownOperationError"
	KindForbiddenQuery   Kind = "ForbiddenQueryError"
	KindExecution        Kind = "ExecutionError"
	KindStorage          Kind = "StorageError"
	KindNotFound         Kind = "NotFoundError"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func WrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the taxonomy kind for err, or KindExecution when err never
// passed through the registry boundary.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindExecution
}

func Retryable(err error) bool {
	switch KindOf(err) {
	case KindExecution, KindStorage:
		return true
	default:
		return false
	}
}

// Suggestions returns kind-specific remediation hints surfaced alongside the
// error in API responses and failed job records.
func Suggestions(err error) []string {
	switch KindOf(err) {
	case KindValidation:
		return []string{
			"check the required parameters for this operation",
			"list registered operations via GET /v1/operations",
		}
	case KindUnknownOperation:
		return []string{
			"verify the operation name spelling",
			"list registered operations via GET /v1/operations",
		}
	case KindForbiddenQuery:
		return []string{
			"ad-hoc queries must be a single read-only SELECT",
			"remove DDL/DML keywords, comments and statement chaining",
		}
	case KindExecution:
		return []string{
			"reduce the timeframe or group cardinality and retry",
			"retry later if the warehouse is under load",
		}
	case KindStorage:
		return []string{
			"retry later; the result store rejected the write",
		}
	case KindNotFound:
		return []string{
			"the job or result may have expired; resubmit the operation",
		}
	default:
		return nil
	}
}
