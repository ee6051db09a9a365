package pkg

import "errors"

var (
	// Setup errors ⚙️
	ErrNoSchema      = errors.New("❌ no configuration schema given (use --descriptor-set, --proto-file or -P)")
	ErrUnknownLayout = errors.New("❌ unknown flash layout")

	// Input errors 📂
	ErrNotWholeBoard  = errors.New("❌ input is a single section, not a whole-board image")
	ErrSlotNotPresent = errors.New("❌ configuration section not found")
	ErrDigestMismatch = errors.New("❌ digest mismatch")
)
