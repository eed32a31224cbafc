package models

import (
	"time"
)

// QueueStatus is the lifecycle of a matchmaking queue row.
type QueueStatus string

const (
	QueueStatusSearching QueueStatus = "searching"
	QueueStatusMatched   QueueStatus = "matched"
)

// QueueEntry is one player waiting for (or claimed into) a pairing.
// At most one row exists per address — joins are upserts on Address.
type QueueEntry struct {
	Address     string      `gorm:"primaryKey" json:"address"`
	Rating      int         `gorm:"index;not null" json:"rating"`
	Format      MatchFormat `gorm:"not null;default:'best_of_3'" json:"format"`
	Status      QueueStatus `gorm:"index;not null;default:'searching'" json:"status"`
	MatchedWith *string     `json:"matched_with,omitempty"` // set by the claiming opponent
	JoinedAt    time.Time   `gorm:"index;not null" json:"joined_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}
