package workers

import (
	"context"
	"log"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"brawl-match-engine/models"
	"brawl-match-engine/services"

	"gorm.io/gorm"
)

const (
	defaultSweepInterval = 60 * time.Second

	// pairingGrace is how long a half-created pairing (player2 seat still
	// empty) may exist before it is treated as a crashed initiator.
	pairingGrace = 5 * time.Second
)

// LifecycleSweeper rules on matches whose players stopped responding:
// expired disconnect windows, blown move deadlines, and character selects
// that never finished. It holds no state of its own — every ruling goes
// through the match service's conditional transitions, so a sweep that
// races a live request simply affects zero rows.
type LifecycleSweeper struct {
	db       *gorm.DB
	matches  *services.MatchService
	interval time.Duration
	inFlight atomic.Bool
}

func NewLifecycleSweeper(db *gorm.DB, matches *services.MatchService) *LifecycleSweeper {
	interval := defaultSweepInterval
	if raw := os.Getenv("SWEEP_INTERVAL_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			interval = time.Duration(secs) * time.Second
		} else {
			log.Printf("[Sweeper] ignoring invalid SWEEP_INTERVAL_SECONDS=%q", raw)
		}
	}
	return &LifecycleSweeper{db: db, matches: matches, interval: interval}
}

func (w *LifecycleSweeper) Start(ctx context.Context) {
	log.Printf("🔁 Starting Lifecycle Sweeper (interval %s)…", w.interval)
	go w.run(ctx)
}

func (w *LifecycleSweeper) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.SweepOnce()
		case <-ctx.Done():
			log.Println("[Sweeper] stopping")
			return
		}
	}
}

// SweepOnce walks every active match and applies the timeout rules. A slow
// sweep overlapping the next tick is skipped rather than stacked.
func (w *LifecycleSweeper) SweepOnce() {
	if !w.inFlight.CompareAndSwap(false, true) {
		log.Println("[Sweeper] previous sweep still running, skipping tick")
		return
	}
	defer w.inFlight.Store(false)

	var matches []models.Match
	if err := w.db.Where("status IN ?", models.ActiveStatuses).Find(&matches).Error; err != nil {
		log.Printf("[Sweeper] failed to load active matches: %v", err)
		return
	}

	now := time.Now()
	for i := range matches {
		w.sweepMatch(&matches[i], now)
	}
}

func (w *LifecycleSweeper) sweepMatch(m *models.Match, now time.Time) {
	// Half-created pairing whose initiator never attached an opponent.
	if m.Player2Address == nil {
		if now.Sub(m.CreatedAt) > pairingGrace {
			w.matches.Cancel(m, "pairing_incomplete")
		}
		return
	}

	if done := w.sweepDisconnects(m, now); done {
		return
	}

	switch m.Status {
	case models.MatchStatusCharacterSelect:
		w.sweepSelection(m, now)
	case models.MatchStatusInProgress:
		w.sweepMoveDeadline(m, now)
	}
}

// sweepDisconnects rules on expired disconnect windows. Both expired voids
// the match; one expired while the opponent is still connected awards it.
func (w *LifecycleSweeper) sweepDisconnects(m *models.Match, now time.Time) bool {
	window := time.Duration(m.DisconnectTimeoutSeconds) * time.Second
	p1Expired := m.Player1DisconnectedAt != nil && now.Sub(*m.Player1DisconnectedAt) > window
	p2Expired := m.Player2DisconnectedAt != nil && now.Sub(*m.Player2DisconnectedAt) > window

	switch {
	case p1Expired && p2Expired:
		w.matches.Cancel(m, "both_disconnected")
		return true
	case p1Expired && m.Player2DisconnectedAt == nil:
		w.matches.ResolveForfeit(m, *m.Player2Address, models.EndReasonDisconnectTimeout)
		return true
	case p2Expired && m.Player1DisconnectedAt == nil:
		w.matches.ResolveForfeit(m, m.Player1Address, models.EndReasonDisconnectTimeout)
		return true
	}
	// One window expired but the other player is also mid-grace: wait for
	// their window to run out too before ruling.
	return p1Expired || p2Expired
}

// sweepSelection handles character selects that outlived their deadline.
// A lone ready player wins by forfeit; if neither committed, the match is
// voided.
func (w *LifecycleSweeper) sweepSelection(m *models.Match, now time.Time) {
	if m.SelectionDeadlineAt == nil || now.Before(*m.SelectionDeadlineAt) {
		return
	}
	switch {
	case m.Player1Ready && !m.Player2Ready:
		w.matches.ResolveForfeit(m, m.Player1Address, models.EndReasonForfeit)
	case m.Player2Ready && !m.Player1Ready:
		w.matches.ResolveForfeit(m, *m.Player2Address, models.EndReasonForfeit)
	default:
		// Neither ready. Both-ready matches transition out of character
		// select on the second ready call, so this also covers the sliver
		// where that transition lost a race and never happened.
		w.matches.Cancel(m, "selection_timeout")
	}
}

// sweepMoveDeadline handles blown move deadlines mid-fight. The player who
// committed in time wins; if neither did, the match is voided.
func (w *LifecycleSweeper) sweepMoveDeadline(m *models.Match, now time.Time) {
	var fs models.FightState
	if err := w.db.First(&fs, "match_id = ?", m.ID).Error; err != nil {
		log.Printf("[Sweeper] no fight state for in-progress match %s: %v", m.ID, err)
		return
	}
	if fs.MoveDeadlineAt == nil || now.Before(*fs.MoveDeadlineAt) {
		return
	}
	switch {
	case fs.Player1HasSubmittedMove && !fs.Player2HasSubmittedMove:
		w.matches.ResolveForfeit(m, m.Player1Address, models.EndReasonMoveTimeout)
	case fs.Player2HasSubmittedMove && !fs.Player1HasSubmittedMove:
		w.matches.ResolveForfeit(m, *m.Player2Address, models.EndReasonMoveTimeout)
	case !fs.Player1HasSubmittedMove && !fs.Player2HasSubmittedMove:
		w.matches.Cancel(m, "move_timeout")
	default:
		// Both submitted but the turn has not advanced yet: resolution is
		// in flight, leave it alone.
	}
}
