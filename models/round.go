package models

import (
	"time"
)

// MatchRound is the append-only record of one resolved turn. Rows are
// immutable once written; the (match, round, turn) uniqueness constraint is
// what prevents the same turn from being resolved twice.
type MatchRound struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	MatchID string `gorm:"uniqueIndex:idx_match_round_turn;not null" json:"match_id"`
	Round   int    `gorm:"uniqueIndex:idx_match_round_turn;not null" json:"round"`
	Turn    int    `gorm:"uniqueIndex:idx_match_round_turn;not null" json:"turn"`

	Player1Move    string `gorm:"not null" json:"player1_move"` // resolved move, after any downgrade
	Player2Move    string `gorm:"not null" json:"player2_move"`
	Player1Outcome string `gorm:"not null" json:"player1_outcome"`
	Player2Outcome string `gorm:"not null" json:"player2_outcome"`
	Player1Damage  int    `json:"player1_damage"` // damage dealt by player1
	Player2Damage  int    `json:"player2_damage"`

	Player1HealthAfter int `json:"player1_health_after"`
	Player2HealthAfter int `json:"player2_health_after"`
	Player1EnergyAfter int `json:"player1_energy_after"`
	Player2EnergyAfter int `json:"player2_energy_after"`

	RoundOver   bool    `gorm:"default:false" json:"round_over"`
	RoundWinner *string `json:"round_winner,omitempty"`

	ResolvedAt time.Time `gorm:"autoCreateTime" json:"resolved_at"`
}
