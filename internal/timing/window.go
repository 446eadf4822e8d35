package timing

import (
	"fmt"
	"strings"
)

// WindowRule selects how the possible extended finish time combines the
// successor bound with the follower queued on the same VM.
type WindowRule int

const (
	// Clamped bounds the window by the extended finish time, by one billed
	// execution at top speed, and by the follower's actual start time.
	Clamped WindowRule = iota
	// Legacy reproduces the historical conditional combination.
	Legacy
)

func (r WindowRule) String() string {
	switch r {
	case Clamped:
		return "clamped"
	case Legacy:
		return "legacy"
	default:
		return fmt.Sprintf("WindowRule(%d)", int(r))
	}
}

// ParseWindowRule accepts "clamped" or "legacy" (case-insensitive). The empty
// string selects Clamped.
func ParseWindowRule(s string) (WindowRule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "clamped":
		return Clamped, nil
	case "legacy":
		return Legacy, nil
	default:
		return 0, fmt.Errorf("unknown energy window rule %q", s)
	}
}
