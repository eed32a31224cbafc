package models

import (
	"time"
)

// DefaultRating is where unrated players enter the ladder.
const DefaultRating = 1000

// RatingFloor is the lowest a rating can fall; losses never push below it.
const RatingFloor = 100

// PlayerRating stores the ladder standing for an address.
type PlayerRating struct {
	Address     string    `gorm:"primaryKey" json:"address"`
	Rating      int       `gorm:"index;not null;default:1000" json:"rating"`
	Wins        int       `gorm:"default:0" json:"wins"`
	Losses      int       `gorm:"default:0" json:"losses"`
	GamesPlayed int       `gorm:"default:0" json:"games_played"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
