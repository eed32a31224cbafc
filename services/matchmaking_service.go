package services

import (
	"errors"
	"log"
	"time"

	"brawl-match-engine/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Rating-window tuning: short waits pick tightly-rated opponents, long waits
// widen the net linearly. This is a backoff, not a full matchmaking rating
// system.
const (
	initialRatingRange = 100
	maxRatingRange     = 500
	minWaitSeconds     = 10
	rangeExpansionRate = 5 // rating points per second past minWaitSeconds
)

const (
	// pairingGraceWindow is how long a half-created match is trusted before
	// a re-poll treats it as a partial failure and cancels it.
	pairingGraceWindow = 5 * time.Second

	// claimRecoveryWindow is how long a matched queue row may sit without a
	// visible match before the maintenance job resets it to searching.
	claimRecoveryWindow = 15 * time.Second

	// maxQueueAge is when an idle queue row counts as stale and is purged.
	maxQueueAge = 30 * time.Minute

	// selectionWindow is how long a fresh pairing has for character select.
	selectionWindow = 60 * time.Second

	defaultDisconnectTimeoutSeconds = 30
)

// MatchmakingService owns the queue and the pairing algorithm.
type MatchmakingService struct {
	DB     *gorm.DB
	Events Broadcaster
}

func NewMatchmakingService(db *gorm.DB, events Broadcaster) *MatchmakingService {
	return &MatchmakingService{DB: db, Events: events}
}

// Join upserts the caller's queue row: idempotent, and re-joining always
// resets any stale claim back to searching. A zero rating means "use the
// ladder rating".
func (s *MatchmakingService) Join(address string, rating int, format models.MatchFormat) error {
	if rating == 0 {
		ladder, err := getOrCreateRating(s.DB, address)
		if err != nil {
			return err
		}
		rating = ladder.Rating
	}
	if format != models.FormatBestOf5 {
		format = models.FormatBestOf3
	}

	entry := models.QueueEntry{
		Address:  address,
		Rating:   rating,
		Format:   format,
		Status:   models.QueueStatusSearching,
		JoinedAt: time.Now(),
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"rating", "format", "status", "matched_with", "joined_at", "updated_at",
		}),
	}).Create(&entry).Error
}

// Leave removes the caller's queue row; a missing row is a no-op.
func (s *MatchmakingService) Leave(address string) error {
	return s.DB.Delete(&models.QueueEntry{}, "address = ?", address).Error
}

// AttemptPair is one poll of the pairing algorithm. It returns the caller's
// match when one exists or was just created, or nil when the caller should
// keep polling. Only the lexicographically smaller side of a candidate pair
// performs the creation, so two concurrent polls can never produce two
// matches for the same pair — the larger side simply waits for the claim to
// become visible.
func (s *MatchmakingService) AttemptPair(address string) (*models.Match, error) {
	now := time.Now()

	// Idempotent re-poll: an active match involving the caller wins over
	// any queue state. A half-created one past the grace window is a
	// partial failure we cancel before pairing again.
	var existing models.Match
	err := s.DB.Where("status IN ?", models.ActiveStatuses).
		Where("player1_address = ? OR player2_address = ?", address, address).
		Order("created_at DESC").
		First(&existing).Error
	switch {
	case err == nil && existing.Player2Address != nil:
		// Pairing succeeded. The caller may still hold a claimed queue row
		// if the initiator surfaced the match before deleting both rows.
		if err := s.DB.Delete(&models.QueueEntry{}, "address = ?", address).Error; err != nil {
			log.Printf("[Matchmaking] failed to clear queue row for %s: %v", address, err)
		}
		return &existing, nil
	case err == nil:
		if now.Sub(existing.CreatedAt) <= pairingGraceWindow {
			return &existing, nil
		}
		res := s.DB.Model(&models.Match{}).
			Where("id = ? AND status IN ?", existing.ID, models.ActiveStatuses).
			Updates(map[string]interface{}{"status": models.MatchStatusCancelled, "completed_at": now})
		if res.Error != nil {
			return nil, res.Error
		}
		log.Printf("[Matchmaking] cancelled half-created match %s for %s", existing.ID, address)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	var entry models.QueueEntry
	if err := s.DB.First(&entry, "address = ?", address).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // not queued
		}
		return nil, err
	}

	// A claim flag means an initiator picked us: surface their match once
	// its write is visible. Stale claims are reset by the maintenance job.
	if entry.Status == models.QueueStatusMatched && entry.MatchedWith != nil {
		match, err := s.findMatchForPair(address, *entry.MatchedWith)
		if err != nil {
			return nil, err
		}
		if match != nil {
			s.DB.Delete(&models.QueueEntry{}, "address = ?", address)
			return match, nil
		}
		return nil, nil
	}

	rng := ratingRange(int(now.Sub(entry.JoinedAt).Seconds()))
	var candidate models.QueueEntry
	err = s.DB.Where("address <> ? AND status = ?", address, models.QueueStatusSearching).
		Where("rating BETWEEN ? AND ?", entry.Rating-rng, entry.Rating+rng).
		Order("joined_at ASC").
		First(&candidate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	// Deterministic initiation: the smaller address creates, the other side
	// keeps polling until the claim shows up.
	if address >= candidate.Address {
		return nil, nil
	}

	return s.initiatePairing(&entry, &candidate)
}

// ratingRange widens the acceptable window with wait time.
func ratingRange(waitSeconds int) int {
	rng := initialRatingRange
	if waitSeconds > minWaitSeconds {
		rng += (waitSeconds - minWaitSeconds) * rangeExpansionRate
	}
	if rng > maxRatingRange {
		rng = maxRatingRange
	}
	return rng
}

func (s *MatchmakingService) findMatchForPair(a, b string) (*models.Match, error) {
	var m models.Match
	err := s.DB.Where("status IN ?", models.ActiveStatuses).
		Where("(player1_address = ? AND player2_address = ?) OR (player1_address = ? AND player2_address = ?)", a, b, b, a).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// initiatePairing claims the candidate, marks the initiator, creates the
// match and cleans up the queue. Every write is conditional; losing any race
// aborts the attempt and leaves the queue recoverable.
func (s *MatchmakingService) initiatePairing(entry, candidate *models.QueueEntry) (*models.Match, error) {
	// Claim the candidate first. The status guard is what prevents
	// double-claiming someone another initiator just took.
	claim := s.DB.Model(&models.QueueEntry{}).
		Where("address = ? AND status = ?", candidate.Address, models.QueueStatusSearching).
		Updates(map[string]interface{}{"status": models.QueueStatusMatched, "matched_with": entry.Address})
	if claim.Error != nil {
		return nil, claim.Error
	}
	if claim.RowsAffected == 0 {
		return nil, nil // candidate was just paired by someone else
	}

	self := s.DB.Model(&models.QueueEntry{}).
		Where("address = ? AND status = ?", entry.Address, models.QueueStatusSearching).
		Updates(map[string]interface{}{"status": models.QueueStatusMatched, "matched_with": candidate.Address})
	if self.Error != nil || self.RowsAffected == 0 {
		s.resetPair(entry.Address, candidate.Address)
		return nil, self.Error
	}

	deadline := time.Now().Add(selectionWindow)
	opponent := candidate.Address
	match := models.Match{
		ID:                       uuid.NewString(),
		Player1Address:           entry.Address,
		Player2Address:           &opponent,
		Status:                   models.MatchStatusCharacterSelect,
		Format:                   entry.Format,
		SelectionDeadlineAt:      &deadline,
		DisconnectTimeoutSeconds: defaultDisconnectTimeoutSeconds,
	}
	if err := s.DB.Create(&match).Error; err != nil {
		// Roll the claim back so the pair can be reformed.
		s.resetPair(entry.Address, candidate.Address)
		return nil, err
	}

	s.Events.Publish(models.PlayerChannel(entry.Address), models.MatchFoundEvent{
		MatchID:         match.ID,
		OpponentAddress: candidate.Address,
		OpponentRating:  candidate.Rating,
		Format:          match.Format,
	})
	s.Events.Publish(models.PlayerChannel(candidate.Address), models.MatchFoundEvent{
		MatchID:         match.ID,
		OpponentAddress: entry.Address,
		OpponentRating:  entry.Rating,
		Format:          match.Format,
	})

	if err := s.DB.Delete(&models.QueueEntry{}, "address IN ?", []string{entry.Address, candidate.Address}).Error; err != nil {
		log.Printf("[Matchmaking] failed to clear queue rows for %s/%s: %v", entry.Address, candidate.Address, err)
	}

	log.Printf("[Matchmaking] paired %s vs %s into match %s", entry.Address, candidate.Address, match.ID)
	return &match, nil
}

func (s *MatchmakingService) resetPair(addresses ...string) {
	if err := s.DB.Model(&models.QueueEntry{}).
		Where("address IN ?", addresses).
		Updates(map[string]interface{}{"status": models.QueueStatusSearching, "matched_with": nil}).Error; err != nil {
		log.Printf("[Matchmaking] failed to reset queue rows %v: %v", addresses, err)
	}
}

// --- fiber handlers ---

type joinQueueRequest struct {
	Rating int    `json:"rating"`
	Format string `json:"format"`
}

// JoinQueue handles POST /queue/join.
func (s *MatchmakingService) JoinQueue(c *fiber.Ctx) error {
	address := c.Locals("player_address").(string)

	var req joinQueueRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}
	}
	if req.Rating < 0 {
		return c.Status(400).JSON(fiber.Map{"error": "rating must be non-negative"})
	}

	if err := s.Join(address, req.Rating, models.MatchFormat(req.Format)); err != nil {
		log.Printf("[Matchmaking] join failed for %s: %v", address, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to join queue"})
	}
	return c.JSON(fiber.Map{"status": "searching"})
}

// LeaveQueue handles POST /queue/leave.
func (s *MatchmakingService) LeaveQueue(c *fiber.Ctx) error {
	address := c.Locals("player_address").(string)
	if err := s.Leave(address); err != nil {
		log.Printf("[Matchmaking] leave failed for %s: %v", address, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to leave queue"})
	}
	return c.JSON(fiber.Map{"status": "left"})
}

// PollQueue handles GET /queue/poll — one pairing attempt.
func (s *MatchmakingService) PollQueue(c *fiber.Ctx) error {
	address := c.Locals("player_address").(string)

	match, err := s.AttemptPair(address)
	if err != nil {
		log.Printf("[Matchmaking] pairing attempt failed for %s: %v", address, err)
		return c.Status(500).JSON(fiber.Map{"error": "pairing attempt failed"})
	}
	if match == nil {
		return c.JSON(fiber.Map{"status": "searching", "match": nil})
	}
	return c.JSON(fiber.Map{"status": "matched", "match": match})
}

// GetRating handles GET /ratings/:address.
func (s *MatchmakingService) GetRating(c *fiber.Ctx) error {
	address := c.Params("address")
	if address == "" {
		return c.Status(400).JSON(fiber.Map{"error": "address is required"})
	}
	var rating models.PlayerRating
	if err := s.DB.First(&rating, "address = ?", address).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(models.PlayerRating{Address: address, Rating: models.DefaultRating})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(rating)
}
