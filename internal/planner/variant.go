package planner

import (
	"fmt"
	"strings"
)

// Variant selects the budget and type-ordering policy.
type Variant int

const (
	// ESDWB feeds the carried surplus into every task budget and prefers the
	// slowest sufficient archetype.
	ESDWB Variant = iota
	// ModifiedESDWB gives every task a fixed share of its cost range and
	// prefers the fastest sufficient archetype. The surplus is tracked for the
	// ledger only.
	ModifiedESDWB
)

// Variants lists all policies in report order.
var Variants = []Variant{ESDWB, ModifiedESDWB}

func (v Variant) String() string {
	switch v {
	case ESDWB:
		return "ESDWB"
	case ModifiedESDWB:
		return "Modified-ESDWB"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// ParseVariant accepts the names produced by String, case-insensitively.
func ParseVariant(s string) (Variant, error) {
	for _, v := range Variants {
		if strings.EqualFold(strings.TrimSpace(s), v.String()) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown planner variant %q", s)
}
