// Package rterrors defines the error kinds the graph runtime can raise.
//
// Every error propagates to the CLI boundary (often wrapped in a LoadError),
// or is translated to a status code at the FFI boundary; nothing in the
// runtime retries.
package rterrors

import "fmt"

// LoadError signals a file open/parse failure or a missing required JSON field.
type LoadError struct {
	Op  string
	Err error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load: %s: %v", e.Op, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// NewLoadError builds a LoadError wrapping err with context op.
func NewLoadError(op string, err error) error {
	return &LoadError{Op: op, Err: err}
}

// ShapeError signals an op input/output shape violation, or a setInput/
// setTarget length mismatch.
type ShapeError struct {
	Op      string
	Message string
}

func (e *ShapeError) Error() string {
	if e.Op == "" {
		return "shape: " + e.Message
	}
	return fmt.Sprintf("shape: %s: %s", e.Op, e.Message)
}

// NewShapeError builds a ShapeError naming the op it occurred in.
func NewShapeError(op, message string) error {
	return &ShapeError{Op: op, Message: message}
}

// UnknownOpError signals an op selector outside the closed op table.
type UnknownOpError struct {
	Selector string
}

func (e *UnknownOpError) Error() string { return "unknown op: " + e.Selector }

// NewUnknownOpError builds an UnknownOpError for selector.
func NewUnknownOpError(selector string) error {
	return &UnknownOpError{Selector: selector}
}

// IndexError signals a tensor id out of the dense [0, len(tensors)) range.
type IndexError struct {
	ID int
}

func (e *IndexError) Error() string { return fmt.Sprintf("tensor id out of range: %d", e.ID) }

// NewIndexError builds an IndexError for id.
func NewIndexError(id int) error {
	return &IndexError{ID: id}
}

// StateError signals a driver call made before the graph or dataset is
// initialized.
type StateError struct {
	Message string
}

func (e *StateError) Error() string { return "state: " + e.Message }

// NewStateError builds a StateError with message.
func NewStateError(message string) error {
	return &StateError{Message: message}
}
