// Package combat implements the deterministic turn/round resolution rules
// for a fight. Nothing in this package performs I/O: given identical inputs
// every function returns identical outputs, which is what makes resolved
// rounds replayable and auditable after the fact.
package combat

import (
	"fmt"
)

// Move is one of the four combat inputs a player can submit.
type Move string

const (
	MovePunch   Move = "punch"
	MoveKick    Move = "kick"
	MoveBlock   Move = "block"
	MoveSpecial Move = "special"
)

// ParseMove validates a raw move string.
func ParseMove(raw string) (Move, error) {
	switch Move(raw) {
	case MovePunch, MoveKick, MoveBlock, MoveSpecial:
		return Move(raw), nil
	}
	return "", fmt.Errorf("unknown move %q", raw)
}

// Resource bounds and per-round tuning. Health and energy are clamped to
// [0, max] after every resolution; the guard meter breaks past
// GuardBreakThreshold.
const (
	MaxHealth           = 100
	MaxEnergy           = 100
	StartEnergy         = 50
	GuardBreakThreshold = 100

	// BlockRegen is the energy granted whenever a player's resolved move is
	// block, including moves downgraded to block for lack of energy.
	BlockRegen = 8

	// GuardChipGain is how much the guard meter rises when a block absorbs
	// a punch.
	GuardChipGain = 25

	// MaxTurnsPerRound caps pathological all-guard stalemates; at the cap
	// the higher-HP side takes the round.
	MaxTurnsPerRound = 30
)

var moveCosts = map[Move]int{
	MovePunch:   10,
	MoveKick:    15,
	MoveBlock:   0,
	MoveSpecial: 25,
}

var moveDamage = map[Move]int{
	MovePunch:   10,
	MoveKick:    15,
	MoveBlock:   0,
	MoveSpecial: 25,
}

// Cost returns the energy price of a move for a player holding the given
// modifier. FocusedMind waives the special's cost.
func Cost(m Move, mod Modifier) int {
	if m == MoveSpecial && mod == ModifierFocusedMind {
		return 0
	}
	return moveCosts[m]
}

// BaseDamage returns a move's unmodified damage.
func BaseDamage(m Move) int {
	return moveDamage[m]
}
