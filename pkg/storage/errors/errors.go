// Package errors holds the error taxonomy shared by the storage, image and
// transfer packages. Every typed error matches its sentinel through
// errors.Is, so callers can branch on the category without a type switch.
package errors

import (
	"errors"
	"fmt"
)

var (
	// Format errors 📦
	ErrFormat  = errors.New("❌ malformed data")
	ErrLocator = errors.New("❌ no configuration section found")
	ErrLength  = errors.New("❌ data does not fit")

	// Content errors 🔍
	ErrCorrupted = errors.New("❌ configuration corrupted")

	// Edit errors ✏️
	ErrValidation = errors.New("❌ invalid value")
	ErrCapacity   = errors.New("❌ repeated field is full")

	// Device errors 🔌
	ErrTransport = errors.New("❌ device transfer failed")
)

// FormatError reports bytes that do not have the expected structure: a
// footer without its magic, a malformed block, or a broken block sequence.
type FormatError struct {
	Op     string
	Offset int
	Reason string
}

func (e *FormatError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s: %s at offset %d", e.Op, e.Reason, e.Offset)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// NewFormatError builds a FormatError without a byte offset.
func NewFormatError(op, format string, args ...any) *FormatError {
	return &FormatError{Op: op, Offset: -1, Reason: fmt.Sprintf(format, args...)}
}

// CorruptionError reports a well-formed section whose payload cannot be
// trusted.
type CorruptionError struct {
	Expected uint32
	Actual   uint32
	Reason   string
	Cause    error
}

func (e *CorruptionError) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("corrupted section: %s: %v", e.Reason, e.Cause)
	case e.Expected != e.Actual:
		return fmt.Sprintf("corrupted section: %s (expected 0x%08x, got 0x%08x)", e.Reason, e.Expected, e.Actual)
	default:
		return "corrupted section: " + e.Reason
	}
}

func (e *CorruptionError) Is(target error) bool { return target == ErrCorrupted }
func (e *CorruptionError) Unwrap() error        { return e.Cause }

// ValidationError reports an edit that does not fit the field's type or range.
type ValidationError struct {
	Path     string
	Input    string
	Expected string
	Cause    error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: cannot use %q, expected %s", e.Path, e.Input, e.Expected)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
func (e *ValidationError) Unwrap() error        { return e.Cause }

// CapacityError reports an append to a repeated field that already holds its
// declared maximum.
type CapacityError struct {
	Path string
	Max  int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: already holds the maximum of %d elements", e.Path, e.Max)
}

func (e *CapacityError) Is(target error) bool { return target == ErrCapacity }

// LocatorError reports a buffer where neither layout offset holds a section.
type LocatorError struct {
	Length int
	Layout string
}

func (e *LocatorError) Error() string {
	return fmt.Sprintf("no configuration footer at the %s offsets of a %d byte buffer", e.Layout, e.Length)
}

func (e *LocatorError) Is(target error) bool { return target == ErrLocator }

// LengthError reports data that is larger than the space reserved for it.
type LengthError struct {
	What  string
	Size  int
	Limit int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("%s is %d bytes, limit is %d", e.What, e.Size, e.Limit)
}

func (e *LengthError) Is(target error) bool { return target == ErrLength }

// TransportError wraps a failed device read or write.
type TransportError struct {
	Op      string
	Address uint32
	Length  int
	Cause   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %d bytes at 0x%08x: %v", e.Op, e.Length, e.Address, e.Cause)
}

func (e *TransportError) Is(target error) bool { return target == ErrTransport }
func (e *TransportError) Unwrap() error        { return e.Cause }

// IsFormat reports whether err is, or wraps, a format error.
func IsFormat(err error) bool { return errors.Is(err, ErrFormat) }

// IsCorrupted reports whether err is, or wraps, a corruption error.
func IsCorrupted(err error) bool { return errors.Is(err, ErrCorrupted) }

// IsTransport reports whether err is, or wraps, a transport error.
func IsTransport(err error) bool { return errors.Is(err, ErrTransport) }
