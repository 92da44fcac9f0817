package proto

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueOverflow indicates a push would exceed the queue capacity.
	ErrQueueOverflow = errors.New("tx queue overflow")
)

// UnknownTypeError reports a message tag outside the catalog, or a
// catalogued tag that has no handler (the reserved tag).
type UnknownTypeError struct {
	Type MessageType
}

// Error implements error.
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown message type %d", byte(e.Type))
}

// ValidationError reports a message argument outside its valid
// domain. The message is rejected before any hardware action.
type ValidationError struct {
	Type  MessageType
	Field string
	Value int
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s=%d out of range", e.Type, e.Field, e.Value)
}

// DecodeError reports a payload that does not match the catalog
// sizes. It indicates a framing bug rather than a host mistake.
type DecodeError struct {
	Type MessageType
	Dir  Direction
	Len  int
}

// Error implements error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: cannot decode %d payload bytes", e.Type, e.Len)
}
