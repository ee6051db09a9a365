package storage

import (
	"github.com/gp2040ce/bintools/pkg/layout"
)

// SlotState is the outcome of loading one configuration slot.
type SlotState int

const (
	// SlotAbsent means no footer magic was found: the slot was never written.
	SlotAbsent SlotState = iota
	// SlotCorrupted means a footer was found but the payload failed checks.
	SlotCorrupted
	// SlotValid means the payload passed the checks and decoded.
	SlotValid
)

func (s SlotState) String() string {
	switch s {
	case SlotAbsent:
		return "absent"
	case SlotCorrupted:
		return "corrupted"
	case SlotValid:
		return "valid"
	default:
		return "unknown"
	}
}

// SlotResult is one loaded slot. Config is never nil: absent and corrupted
// slots carry an empty default message. Err explains a non-valid state.
type SlotResult struct {
	Slot   layout.Slot
	State  SlotState
	Offset int
	Config *Config
	Err    error
}

// Slots holds both slots of a buffer.
type Slots struct {
	Location Location
	Board    SlotResult
	User     SlotResult
}

// Get returns the result for a slot.
func (s *Slots) Get(slot layout.Slot) *SlotResult {
	if slot == layout.BoardConfig {
		return &s.Board
	}
	return &s.User
}

// LoadSection decodes one section into a slot result.
func (c *Codec) LoadSection(section []byte, slot layout.Slot) SlotResult {
	cfg, err := c.Decode(section)
	switch {
	case err != nil:
		c.logger.Info("📭 Slot is not formatted", "slot", slot)
		return SlotResult{Slot: slot, State: SlotAbsent, Offset: -1, Config: c.Default(), Err: err}
	case cfg.Section.Corrupted:
		return SlotResult{Slot: slot, State: SlotCorrupted, Config: cfg, Err: cfg.Section.Reason}
	default:
		return SlotResult{Slot: slot, State: SlotValid, Config: cfg}
	}
}

// LoadSlots locates and decodes both slots of buf. When buf is a bare
// section it is loaded as slot bare and the other slot is absent. A
// *LocatorError is returned when no slot could be found.
func (c *Codec) LoadSlots(buf []byte, bare layout.Slot) (*Slots, error) {
	loc, err := Locate(buf, c.layout)
	if err != nil {
		return nil, err
	}

	slots := &Slots{Location: loc}
	size := int(c.layout.SectionSize)
	for _, slot := range []layout.Slot{layout.BoardConfig, layout.UserConfig} {
		res := slots.Get(slot)
		off, ok := loc.Offset(slot)
		if !ok || (loc.Bare && slot != bare) {
			*res = SlotResult{Slot: slot, State: SlotAbsent, Offset: -1, Config: c.Default()}
			continue
		}
		end := off + size
		if end > len(buf) {
			end = len(buf)
		}
		*res = c.LoadSection(buf[off:end], slot)
		if res.State != SlotAbsent {
			res.Offset = off
		}
	}
	return slots, nil
}

// Load returns the configuration of one slot of buf.
func (c *Codec) Load(buf []byte, slot layout.Slot) (*SlotResult, error) {
	slots, err := c.LoadSlots(buf, slot)
	if err != nil {
		return nil, err
	}
	return slots.Get(slot), nil
}
