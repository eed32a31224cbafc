package combat

import (
	"fmt"
)

// Modifier is a round-scoped "power surge" card. A player holds at most one
// per round; the empty value means none. Each card bends the interaction
// rules in exactly one narrow way — all of the bending happens inside
// ResolveTurn so the effects stay deterministic.
type Modifier string

const (
	ModifierNone Modifier = ""

	// AdrenalineSurge wins otherwise-simultaneous mirror clashes for its
	// holder.
	ModifierAdrenalineSurge Modifier = "adrenaline_surge"

	// PhantomFist lets the holder's punch bypass a block entirely, with
	// bonus damage.
	ModifierPhantomFist Modifier = "phantom_fist"

	// VampiricEdge heals the holder for a quarter of the damage they deal.
	ModifierVampiricEdge Modifier = "vampiric_edge"

	// EnergySiphon transfers half the defender's spent energy to the holder
	// on a landed hit.
	ModifierEnergySiphon Modifier = "energy_siphon"

	// BerserkerPact raises the holder's outgoing AND incoming damage by half.
	ModifierBerserkerPact Modifier = "berserker_pact"

	// FocusedMind waives the special's energy cost.
	ModifierFocusedMind Modifier = "focused_mind"

	// GuardCrusher adds extra guard-meter pressure on the holder's landed or
	// guarded hits.
	ModifierGuardCrusher Modifier = "guard_crusher"

	// GhostStep is miss-immunity: the holder never receives the guard-break
	// stun and their countered moves are not labeled staggered. Damage
	// numbers are unchanged. When both players hold it, neither side's
	// stun/counter effects trigger.
	ModifierGhostStep Modifier = "ghost_step"
)

// Catalog lists every selectable card.
var Catalog = []Modifier{
	ModifierAdrenalineSurge,
	ModifierPhantomFist,
	ModifierVampiricEdge,
	ModifierEnergySiphon,
	ModifierBerserkerPact,
	ModifierFocusedMind,
	ModifierGuardCrusher,
	ModifierGhostStep,
}

// ParseModifier validates a raw card code.
func ParseModifier(raw string) (Modifier, error) {
	for _, m := range Catalog {
		if Modifier(raw) == m {
			return m, nil
		}
	}
	return ModifierNone, fmt.Errorf("unknown power surge card %q", raw)
}

// GuardCrusherPressure is the extra guard-meter damage GuardCrusher adds.
const GuardCrusherPressure = 20
