package services

import (
	"errors"
	"math"
	"time"

	"brawl-match-engine/models"

	"gorm.io/gorm"
)

// eloK is the rating volatility constant.
const eloK = 32

// AdjustRatings computes the Elo-style post-match ratings for a result.
// Changes are floored toward zero and the loser never drops below the
// rating floor.
func AdjustRatings(winnerRating, loserRating int) (int, int) {
	expected := 1.0 / (1.0 + math.Pow(10, float64(loserRating-winnerRating)/400.0))
	delta := int(math.Floor(eloK * (1.0 - expected)))

	newWinner := winnerRating + delta
	newLoser := loserRating - delta
	if newLoser < models.RatingFloor {
		newLoser = models.RatingFloor
	}
	return newWinner, newLoser
}

// getOrCreateRating loads the ladder row for an address, creating it at the
// default rating on first contact.
func getOrCreateRating(db *gorm.DB, address string) (models.PlayerRating, error) {
	var r models.PlayerRating
	err := db.First(&r, "address = ?", address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r = models.PlayerRating{Address: address, Rating: models.DefaultRating}
		if err := db.Create(&r).Error; err != nil {
			return r, err
		}
		return r, nil
	}
	return r, err
}

// applyMatchResult moves both ladder rows for a decided match.
func applyMatchResult(db *gorm.DB, winnerAddr, loserAddr string) error {
	winner, err := getOrCreateRating(db, winnerAddr)
	if err != nil {
		return err
	}
	loser, err := getOrCreateRating(db, loserAddr)
	if err != nil {
		return err
	}

	newWinner, newLoser := AdjustRatings(winner.Rating, loser.Rating)
	now := time.Now()

	if err := db.Model(&models.PlayerRating{}).Where("address = ?", winnerAddr).Updates(map[string]interface{}{
		"rating":       newWinner,
		"wins":         gorm.Expr("wins + 1"),
		"games_played": gorm.Expr("games_played + 1"),
		"updated_at":   now,
	}).Error; err != nil {
		return err
	}
	return db.Model(&models.PlayerRating{}).Where("address = ?", loserAddr).Updates(map[string]interface{}{
		"rating":       newLoser,
		"losses":       gorm.Expr("losses + 1"),
		"games_played": gorm.Expr("games_played + 1"),
		"updated_at":   now,
	}).Error
}
