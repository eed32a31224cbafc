package models

import (
	"time"
)

// FightState is the live combat snapshot for a match: one row per match,
// created when the fight starts and rewritten after every resolved turn.
// Pending moves are held here until both sides have committed; the resolved
// history lives in MatchRound rows.
type FightState struct {
	MatchID string `gorm:"primaryKey;type:uuid" json:"match_id"`

	Player1Health int `gorm:"not null" json:"player1_health"`
	Player2Health int `gorm:"not null" json:"player2_health"`
	Player1Energy int `gorm:"not null" json:"player1_energy"`
	Player2Energy int `gorm:"not null" json:"player2_energy"`
	Player1Guard  int `gorm:"default:0" json:"player1_guard_meter"`
	Player2Guard  int `gorm:"default:0" json:"player2_guard_meter"`

	// Stun flags apply to the next resolved turn only and clear with it.
	Player1IsStunned bool `gorm:"default:false" json:"player1_is_stunned"`
	Player2IsStunned bool `gorm:"default:false" json:"player2_is_stunned"`

	CurrentRound int `gorm:"not null;default:1" json:"current_round"`
	CurrentTurn  int `gorm:"not null;default:1" json:"current_turn"`

	Player1HasSubmittedMove bool    `gorm:"default:false" json:"player1_has_submitted_move"`
	Player2HasSubmittedMove bool    `gorm:"default:false" json:"player2_has_submitted_move"`
	Player1PendingMove      *string `json:"-"` // hidden until resolution
	Player2PendingMove      *string `json:"-"`

	// Round-scoped power surge picks. Cleared at round start; at most one
	// per player per round.
	Player1Modifier *string `json:"player1_modifier,omitempty"`
	Player2Modifier *string `json:"player2_modifier,omitempty"`

	MoveDeadlineAt  *time.Time `json:"move_deadline_at,omitempty"`
	CountdownEndsAt *time.Time `json:"countdown_ends_at,omitempty"`

	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
