// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error so callers can react without inspecting
// error text. Kinds are assigned at the call site that observed the
// condition, never inferred later by string matching.
type Kind int

const (
	// KindUnknown is the zero value for unclassified errors.
	KindUnknown Kind = iota
	// KindUnreachable indicates the generation or embedding service could
	// not be reached.
	KindUnreachable
	// KindMalformedResponse indicates an upstream response was missing
	// expected fields.
	KindMalformedResponse
	// KindBudgetExceeded indicates a conversation no longer fits the
	// model's token budget even after summarization.
	KindBudgetExceeded
	// KindCancelled indicates work was stopped by request, not by failure.
	KindCancelled
	// KindNotFound indicates a missing source or record where the caller
	// required it to exist.
	KindNotFound
	// KindConflict indicates an operation collided with one already in
	// flight, such as a second crawl for a source being crawled.
	KindConflict
)

// String returns the canonical kind name.
func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindMalformedResponse:
		return "malformed_response"
	case KindBudgetExceeded:
		return "budget_exceeded"
	case KindCancelled:
		return "cancelled"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is a structured error carrying a Kind, the operation that
// observed it, and an optional wrapped cause.
type Error struct {
	Kind Kind
	Op   string // Operation that produced the error, e.g. "enrich.summarize"
	Msg  string
	Err  error
}

// Errorf creates a structured error with a formatted message.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// WrapError wraps an underlying error with a kind and operation.
func WrapError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

// Unwrap exposes the wrapped cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes cancellation errors match context.Canceled so callers using
// either convention can detect a stopped-by-request condition.
func (e *Error) Is(target error) bool {
	return e.Kind == KindCancelled && target == context.Canceled
}

// IsKind reports whether err, or any error it wraps, is a structured
// error of the given kind.
func IsKind(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// Cancelled wraps a context error as a KindCancelled error.
// Callers must be able to tell "stopped by request" from "stopped by
// error"; use this at every cancellation check.
func Cancelled(op string, cause error) *Error {
	if cause == nil {
		cause = context.Canceled
	}
	return &Error{Kind: KindCancelled, Op: op, Err: cause}
}

// Domain validation errors.
var (
	// ErrInvalidChunk indicates a SchemaChunk failed validation.
	ErrInvalidChunk = errors.New("invalid schema chunk")

	// ErrEmptySourceId indicates the SourceId field is empty.
	ErrEmptySourceId = errors.New("source id cannot be empty")

	// ErrEmptyObjectName indicates the ObjectName field is empty.
	ErrEmptyObjectName = errors.New("object name cannot be empty")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidObjectType indicates an invalid ObjectType value.
	ErrInvalidObjectType = errors.New("invalid object type")

	// ErrInvalidRole indicates an invalid chat message Role value.
	ErrInvalidRole = errors.New("invalid message role")
)
