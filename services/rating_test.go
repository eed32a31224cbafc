package services

import (
	"testing"

	"brawl-match-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustRatingsEvenMatch(t *testing.T) {
	w, l := AdjustRatings(1000, 1000)
	assert.Equal(t, 1016, w)
	assert.Equal(t, 984, l)
}

func TestAdjustRatingsUpsetPaysMore(t *testing.T) {
	w, l := AdjustRatings(1000, 1400)
	// Beating a much stronger opponent moves both sides further.
	assert.Greater(t, w-1000, 16)
	assert.Equal(t, w-1000, 1400-l)
}

func TestAdjustRatingsFavoritePaysLess(t *testing.T) {
	w, _ := AdjustRatings(1400, 1000)
	assert.Less(t, w-1400, 16)
}

func TestAdjustRatingsLoserNeverDropsBelowFloor(t *testing.T) {
	// A near-even pairing just above the floor: the raw delta (16) would
	// push the loser to 89 without the clamp.
	w, l := AdjustRatings(100, models.RatingFloor+5)
	assert.Equal(t, 116, w)
	assert.Equal(t, models.RatingFloor, l)
}

func TestApplyMatchResultMovesLadders(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, applyMatchResult(db, "alice", "bob"))

	var winner, loser models.PlayerRating
	require.NoError(t, db.First(&winner, "address = ?", "alice").Error)
	require.NoError(t, db.First(&loser, "address = ?", "bob").Error)
	assert.Equal(t, 1016, winner.Rating)
	assert.Equal(t, 984, loser.Rating)
	assert.Equal(t, 1, winner.Wins)
	assert.Equal(t, 0, winner.Losses)
	assert.Equal(t, 1, loser.Losses)
	assert.Equal(t, 1, winner.GamesPlayed)
	assert.Equal(t, 1, loser.GamesPlayed)
}
