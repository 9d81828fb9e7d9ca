// Package orcerr defines the load-time and run-time error kinds the
// orchestrator surfaces, so callers can distinguish them with errors.As
// instead of string matching.
package orcerr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error kinds enumerated in the orchestrator's
// failure-semantics contract.
type Kind string

const (
	KindSchemaInvalid      Kind = "SchemaInvalid"
	KindDuplicateID        Kind = "DuplicateId"
	KindUnknownTemplate    Kind = "UnknownTemplate"
	KindUnknownPrecedent   Kind = "UnknownPrecedent"
	KindIllegalStepShape   Kind = "IllegalStepShape"
	KindCycleDetected      Kind = "CycleDetected"
	KindMissingEnvironment Kind = "MissingEnvironment"
	KindMissingInput       Kind = "MissingInput"
	KindUnknownOutput      Kind = "UnknownOutput"
	KindRunError           Kind = "RunError"
)

// Error is a structured load-time or run-time error naming the offending id
// and the error kind.
type Error struct {
	Kind Kind
	ID   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s %s: %s", e.Kind, e.ID, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Kind, e.ID, e.Err)
	}
	return fmt.Sprintf("%s %s", e.Kind, e.ID)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error for kind k about identifier id with message msg.
func New(k Kind, id, msg string) *Error {
	return &Error{Kind: k, ID: id, Msg: msg}
}

// Wrap builds an *Error for kind k about identifier id, wrapping err.
func Wrap(k Kind, id string, err error) *Error {
	return &Error{Kind: k, ID: id, Err: err}
}

// IsKind reports whether err is (or wraps) an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == k
}
