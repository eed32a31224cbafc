package models

import (
	"fmt"
	"time"
)

// Event names form a closed set. Every broadcast payload is one of the
// typed variants below — no free-form maps cross the publish boundary.
const (
	EventMatchFound         = "match_found"
	EventRoundStarting      = "round_starting"
	EventMoveSubmitted      = "move_submitted"
	EventMoveConfirmed      = "move_confirmed"
	EventRoundResolved      = "round_resolved"
	EventMatchEnded         = "match_ended"
	EventMatchCancelled     = "match_cancelled"
	EventPlayerDisconnected = "player_disconnected"
	EventPlayerReconnected  = "player_reconnected"
)

// Event is implemented by every broadcast payload variant.
type Event interface {
	EventName() string
}

// MatchChannel is the per-match broadcast channel key.
func MatchChannel(matchID string) string {
	return fmt.Sprintf("match:%s", matchID)
}

// PlayerChannel is the per-player broadcast channel key.
func PlayerChannel(address string) string {
	return fmt.Sprintf("player:%s", address)
}

type MatchFoundEvent struct {
	MatchID         string      `json:"match_id"`
	OpponentAddress string      `json:"opponent_address"`
	OpponentRating  int         `json:"opponent_rating"`
	Format          MatchFormat `json:"format"`
}

func (MatchFoundEvent) EventName() string { return EventMatchFound }

type RoundStartingEvent struct {
	MatchID         string    `json:"match_id"`
	Round           int       `json:"round"`
	CountdownEndsAt time.Time `json:"countdown_ends_at"`
	MoveDeadlineAt  time.Time `json:"move_deadline_at"`
}

func (RoundStartingEvent) EventName() string { return EventRoundStarting }

// MoveSubmittedEvent tells the opponent a move is locked in. The move
// itself stays hidden until the turn resolves.
type MoveSubmittedEvent struct {
	MatchID string `json:"match_id"`
	Round   int    `json:"round"`
	Turn    int    `json:"turn"`
	Address string `json:"address"`
}

func (MoveSubmittedEvent) EventName() string { return EventMoveSubmitted }

// MoveConfirmedEvent echoes the submitter's own move back to them.
type MoveConfirmedEvent struct {
	MatchID string `json:"match_id"`
	Round   int    `json:"round"`
	Turn    int    `json:"turn"`
	Move    string `json:"move"`
}

func (MoveConfirmedEvent) EventName() string { return EventMoveConfirmed }

type RoundResolvedEvent struct {
	MatchID            string  `json:"match_id"`
	Round              int     `json:"round"`
	Turn               int     `json:"turn"`
	Player1Move        string  `json:"player1_move"`
	Player2Move        string  `json:"player2_move"`
	Player1Outcome     string  `json:"player1_outcome"`
	Player2Outcome     string  `json:"player2_outcome"`
	Player1Damage      int     `json:"player1_damage"`
	Player2Damage      int     `json:"player2_damage"`
	Player1HealthAfter int     `json:"player1_health_after"`
	Player2HealthAfter int     `json:"player2_health_after"`
	RoundOver          bool    `json:"round_over"`
	RoundWinner        *string `json:"round_winner,omitempty"`
	Player1RoundsWon   int     `json:"player1_rounds_won"`
	Player2RoundsWon   int     `json:"player2_rounds_won"`
}

func (RoundResolvedEvent) EventName() string { return EventRoundResolved }

type MatchEndedEvent struct {
	MatchID       string    `json:"match_id"`
	WinnerAddress string    `json:"winner_address"`
	Reason        EndReason `json:"reason"`
	SettlementTx  string    `json:"settlement_tx,omitempty"`
	SkippedReason string    `json:"skipped_reason,omitempty"` // set when settlement was skipped
}

func (MatchEndedEvent) EventName() string { return EventMatchEnded }

type MatchCancelledEvent struct {
	MatchID string `json:"match_id"`
	Reason  string `json:"reason"`
}

func (MatchCancelledEvent) EventName() string { return EventMatchCancelled }

type PlayerDisconnectedEvent struct {
	MatchID        string    `json:"match_id"`
	Address        string    `json:"address"`
	DisconnectedAt time.Time `json:"disconnected_at"`
	GraceSeconds   int       `json:"grace_seconds"`
}

func (PlayerDisconnectedEvent) EventName() string { return EventPlayerDisconnected }

type PlayerReconnectedEvent struct {
	MatchID string `json:"match_id"`
	Address string `json:"address"`
}

func (PlayerReconnectedEvent) EventName() string { return EventPlayerReconnected }

// MatchEvent is the persisted form of a published event: one row per
// (channel, event). Delivery is at-least-once and best-effort; consumers
// read their channel's rows in created order via the SSE stream.
type MatchEvent struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	ChannelKey string    `gorm:"index;not null" json:"channel_key"`
	EventName  string    `gorm:"not null" json:"event_name"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	CreatedAt  time.Time `gorm:"index;autoCreateTime" json:"created_at"`
}
