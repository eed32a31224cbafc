package models

import (
	"time"
)

// MatchStatus tracks a match through its lifecycle. Exactly one of the
// terminal statuses is ever reached, and a terminal match is immutable —
// every writer must guard its update with a status condition.
type MatchStatus string

const (
	MatchStatusWaiting         MatchStatus = "waiting"
	MatchStatusCharacterSelect MatchStatus = "character_select"
	MatchStatusInProgress      MatchStatus = "in_progress"
	MatchStatusCompleted       MatchStatus = "completed"
	MatchStatusCancelled       MatchStatus = "cancelled"
	MatchStatusAbandoned       MatchStatus = "abandoned"
)

// ActiveStatuses are the statuses a match can still be mutated in.
// Used as the WHERE condition on every state transition.
var ActiveStatuses = []MatchStatus{MatchStatusWaiting, MatchStatusCharacterSelect, MatchStatusInProgress}

// IsTerminal reports whether the status is one of the immutable end states.
func (s MatchStatus) IsTerminal() bool {
	return s == MatchStatusCompleted || s == MatchStatusCancelled || s == MatchStatusAbandoned
}

// MatchFormat selects how many round wins end the match.
type MatchFormat string

const (
	FormatBestOf3 MatchFormat = "best_of_3"
	FormatBestOf5 MatchFormat = "best_of_5"
)

// RoundsToWin returns the win threshold for the format.
func (f MatchFormat) RoundsToWin() int {
	if f == FormatBestOf5 {
		return 3
	}
	return 2
}

// EndReason explains how a completed/cancelled match reached its terminal state.
type EndReason string

const (
	EndReasonVictory           EndReason = "victory"
	EndReasonForfeit           EndReason = "forfeit"
	EndReasonDisconnectTimeout EndReason = "disconnect_timeout"
	EndReasonMoveTimeout       EndReason = "move_timeout"
)

// Match is the aggregate root for a single fight between two players.
type Match struct {
	ID             string      `gorm:"primaryKey;type:uuid" json:"id"`
	Player1Address string      `gorm:"index;not null" json:"player1_address"`
	Player2Address *string     `gorm:"index" json:"player2_address,omitempty"` // nil until the seat is filled
	Status         MatchStatus `gorm:"index;not null;default:'waiting'" json:"status"`
	Format         MatchFormat `gorm:"not null;default:'best_of_3'" json:"format"`

	Player1Ready bool `gorm:"default:false" json:"player1_ready"`
	Player2Ready bool `gorm:"default:false" json:"player2_ready"`

	Player1RoundsWon int `gorm:"default:0" json:"player1_rounds_won"`
	Player2RoundsWon int `gorm:"default:0" json:"player2_rounds_won"`

	WinnerAddress *string   `json:"winner_address,omitempty"`
	EndReason     EndReason `json:"end_reason,omitempty"`
	SettlementTx  string    `json:"settlement_tx,omitempty"` // hub tx hash, empty if settlement was skipped
	ArchiveURL    string    `json:"archive_url,omitempty"`

	SelectionDeadlineAt      *time.Time `json:"selection_deadline_at,omitempty"`
	Player1DisconnectedAt    *time.Time `json:"player1_disconnected_at,omitempty"`
	Player2DisconnectedAt    *time.Time `json:"player2_disconnected_at,omitempty"`
	DisconnectTimeoutSeconds int        `gorm:"default:30" json:"disconnect_timeout_seconds"`

	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// HasPlayer reports whether the address occupies one of the two seats.
func (m *Match) HasPlayer(address string) bool {
	if m.Player1Address == address {
		return true
	}
	return m.Player2Address != nil && *m.Player2Address == address
}

// OpponentOf returns the other seat's address, or "" when the seat is empty
// or the address is not a participant.
func (m *Match) OpponentOf(address string) string {
	if m.Player1Address == address && m.Player2Address != nil {
		return *m.Player2Address
	}
	if m.Player2Address != nil && *m.Player2Address == address {
		return m.Player1Address
	}
	return ""
}
