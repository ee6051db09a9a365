package errors

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"format", NewFormatError("footer", "magic missing"), ErrFormat},
		{"corrupted", &CorruptionError{Expected: 1, Actual: 2, Reason: "crc mismatch"}, ErrCorrupted},
		{"validation", &ValidationError{Path: "Config.brightness", Input: "x", Expected: "int32"}, ErrValidation},
		{"capacity", &CapacityError{Path: "Config.profiles", Max: 4}, ErrCapacity},
		{"locator", &LocatorError{Length: 100, Layout: "standard-8k"}, ErrLocator},
		{"length", &LengthError{What: "firmware", Size: 10, Limit: 5}, ErrLength},
		{"transport", &TransportError{Op: "read", Address: 0x10000000, Length: 4, Cause: io.EOF}, ErrTransport},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("loading: %w", tc.err)
			assert.ErrorIs(t, wrapped, tc.sentinel)
			assert.NotEmpty(t, tc.err.Error())
		})
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	err := &TransportError{Op: "write", Address: 0x101FE000, Length: 4096, Cause: io.ErrUnexpectedEOF}
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.True(t, IsTransport(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsFormat(err))
	assert.Contains(t, err.Error(), "0x101fe000")
}

func TestFormatErrorOffset(t *testing.T) {
	err := &FormatError{Op: "uf2 decode", Offset: 1024, Reason: "bad end magic"}
	assert.Equal(t, "uf2 decode: bad end magic at offset 1024", err.Error())
	assert.Equal(t, "footer: short buffer", NewFormatError("footer", "short buffer").Error())
}
