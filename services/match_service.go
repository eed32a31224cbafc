package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"brawl-match-engine/combat"
	"brawl-match-engine/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// moveWindow is how long each side has to commit a move once a turn
	// opens. Enforced by the sweeper, not by in-memory timers.
	moveWindow = 30 * time.Second

	// roundCountdown is the client-facing countdown before a round's first
	// turn opens.
	roundCountdown = 5 * time.Second

	settlementTimeout = 30 * time.Second
)

// TranscriptArchiver stores a completed match's transcript somewhere
// durable. Uploads are best-effort; a nil archiver disables archiving.
type TranscriptArchiver interface {
	Upload(key string, data []byte, contentType string) (string, error)
}

// MatchService drives a match from character select through settlement. All
// of its writes are conditioned on the match still being in an active
// status: losing a race against the opponent's request, the sweeper, or an
// overlapping instance means the write affects zero rows and the call
// degrades to a no-op that returns current state.
type MatchService struct {
	DB         *gorm.DB
	Events     Broadcaster
	Settlement Settlement
	Archive    TranscriptArchiver
}

func NewMatchService(db *gorm.DB, events Broadcaster, settlement Settlement, archive TranscriptArchiver) *MatchService {
	return &MatchService{DB: db, Events: events, Settlement: settlement, Archive: archive}
}

func (s *MatchService) getMatch(id string) (*models.Match, error) {
	var m models.Match
	if err := s.DB.First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MatchService) getFightState(matchID string) (*models.FightState, error) {
	var fs models.FightState
	if err := s.DB.First(&fs, "match_id = ?", matchID).Error; err != nil {
		return nil, err
	}
	return &fs, nil
}

// Ready marks a player ready during character select; when both seats are
// ready the fight starts. Re-sending ready is a benign no-op.
func (s *MatchService) Ready(matchID, address string) (*models.Match, error) {
	match, err := s.getMatch(matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasPlayer(address) {
		return nil, fmt.Errorf("address %s is not a participant of match %s", address, matchID)
	}
	if match.Status != models.MatchStatusCharacterSelect {
		return match, nil
	}

	col := "player1_ready"
	if match.Player1Address != address {
		col = "player2_ready"
	}
	if err := s.DB.Model(&models.Match{}).
		Where("id = ? AND status = ?", matchID, models.MatchStatusCharacterSelect).
		Update(col, true).Error; err != nil {
		return nil, err
	}

	match, err = s.getMatch(matchID)
	if err != nil {
		return nil, err
	}
	if match.Player1Ready && match.Player2Ready {
		if err := s.startFight(match); err != nil {
			return nil, err
		}
		return s.getMatch(matchID)
	}
	return match, nil
}

// startFight flips the match to in_progress and seeds the live state.
func (s *MatchService) startFight(match *models.Match) error {
	res := s.DB.Model(&models.Match{}).
		Where("id = ? AND status = ?", match.ID, models.MatchStatusCharacterSelect).
		Update("status", models.MatchStatusInProgress)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil // another request started it first, or the sweeper resolved it
	}

	now := time.Now()
	countdown := now.Add(roundCountdown)
	deadline := countdown.Add(moveWindow)
	initial := combat.InitialPlayerState()
	fs := models.FightState{
		MatchID:         match.ID,
		Player1Health:   initial.Health,
		Player2Health:   initial.Health,
		Player1Energy:   initial.Energy,
		Player2Energy:   initial.Energy,
		CurrentRound:    1,
		CurrentTurn:     1,
		CountdownEndsAt: &countdown,
		MoveDeadlineAt:  &deadline,
	}
	if err := s.DB.Create(&fs).Error; err != nil {
		return fmt.Errorf("failed to create fight state for match %s: %w", match.ID, err)
	}

	s.Events.PublishToMatch(match.ID, models.RoundStartingEvent{
		MatchID:         match.ID,
		Round:           1,
		CountdownEndsAt: countdown,
		MoveDeadlineAt:  deadline,
	})
	log.Printf("[Match] %s started (%s vs %s)", match.ID, match.Player1Address, *match.Player2Address)
	return nil
}

// SubmitMove commits one side's move for the current turn. Wrong-turn and
// double submissions are benign no-ops that return the authoritative state;
// when the second move lands the turn resolves synchronously.
func (s *MatchService) SubmitMove(matchID, address, rawMove string, round, turn int) (*models.FightState, error) {
	move, err := combat.ParseMove(rawMove)
	if err != nil {
		return nil, err
	}

	match, err := s.getMatch(matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasPlayer(address) {
		return nil, fmt.Errorf("address %s is not a participant of match %s", address, matchID)
	}
	fs, err := s.getFightState(matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusInProgress || fs.CurrentRound != round || fs.CurrentTurn != turn {
		return fs, nil // stale or already-resolved turn
	}

	isP1 := match.Player1Address == address
	submittedCol, moveCol := "player1_has_submitted_move", "player1_pending_move"
	if !isP1 {
		submittedCol, moveCol = "player2_has_submitted_move", "player2_pending_move"
	}

	// The submitted-flag guard is the double-submit lock.
	res := s.DB.Model(&models.FightState{}).
		Where("match_id = ? AND current_round = ? AND current_turn = ? AND "+submittedCol+" = ?", matchID, round, turn, false).
		Updates(map[string]interface{}{submittedCol: true, moveCol: string(move)})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return s.getFightState(matchID)
	}

	s.Events.Publish(models.PlayerChannel(address), models.MoveConfirmedEvent{
		MatchID: matchID, Round: round, Turn: turn, Move: string(move),
	})
	s.Events.PublishToMatch(matchID, models.MoveSubmittedEvent{
		MatchID: matchID, Round: round, Turn: turn, Address: address,
	})

	fs, err = s.getFightState(matchID)
	if err != nil {
		return nil, err
	}
	if fs.Player1HasSubmittedMove && fs.Player2HasSubmittedMove {
		if err := s.resolveTurn(match, fs); err != nil {
			return nil, err
		}
		return s.getFightState(matchID)
	}
	return fs, nil
}

// SubmitSurge records a power surge pick for the current round. One card per
// player per round; a second pick is a benign no-op.
func (s *MatchService) SubmitSurge(matchID, address, rawCard string, round int) (*models.FightState, error) {
	card, err := combat.ParseModifier(rawCard)
	if err != nil {
		return nil, err
	}
	match, err := s.getMatch(matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasPlayer(address) {
		return nil, fmt.Errorf("address %s is not a participant of match %s", address, matchID)
	}
	fs, err := s.getFightState(matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusInProgress || fs.CurrentRound != round {
		return fs, nil
	}

	col := "player1_modifier"
	if match.Player1Address != address {
		col = "player2_modifier"
	}
	res := s.DB.Model(&models.FightState{}).
		Where("match_id = ? AND current_round = ? AND "+col+" IS NULL", matchID, round).
		Update(col, string(card))
	if res.Error != nil {
		return nil, res.Error
	}
	return s.getFightState(matchID)
}

// resolveTurn runs the combat engine over the two pending moves and advances
// the state machine. The append-only round record's uniqueness constraint is
// the serialization point: if another resolver already wrote this turn, the
// insert fails and the whole call is a no-op.
func (s *MatchService) resolveTurn(match *models.Match, fs *models.FightState) error {
	if fs.Player1PendingMove == nil || fs.Player2PendingMove == nil {
		return nil
	}

	in := combat.TurnInput{
		P1: combat.PlayerState{
			Health: fs.Player1Health, Energy: fs.Player1Energy, Guard: fs.Player1Guard,
			Stunned: fs.Player1IsStunned, Modifier: toModifier(fs.Player1Modifier),
		},
		P2: combat.PlayerState{
			Health: fs.Player2Health, Energy: fs.Player2Energy, Guard: fs.Player2Guard,
			Stunned: fs.Player2IsStunned, Modifier: toModifier(fs.Player2Modifier),
		},
		P1Move: combat.Move(*fs.Player1PendingMove),
		P2Move: combat.Move(*fs.Player2PendingMove),
	}
	out := combat.ResolveTurn(in)

	roundOver := out.RoundOver
	winnerSide := out.Winner
	if !roundOver && fs.CurrentTurn >= combat.MaxTurnsPerRound {
		// All-guard stalemate: judge the round rather than letting it run
		// forever.
		roundOver = true
		winnerSide = combat.JudgeStalemate(
			combat.PlayerState{Health: out.P1.Health, Energy: out.P1.Energy, Guard: out.P1.Guard},
			combat.PlayerState{Health: out.P2.Health, Energy: out.P2.Energy, Guard: out.P2.Guard},
		)
	}

	var roundWinner *string
	if roundOver {
		addr := match.Player1Address
		if winnerSide == combat.Side2 {
			addr = *match.Player2Address
		}
		roundWinner = &addr
	}

	record := models.MatchRound{
		ID:                 uuid.NewString(),
		MatchID:            match.ID,
		Round:              fs.CurrentRound,
		Turn:               fs.CurrentTurn,
		Player1Move:        string(out.P1.Move),
		Player2Move:        string(out.P2.Move),
		Player1Outcome:     string(out.P1.Outcome),
		Player2Outcome:     string(out.P2.Outcome),
		Player1Damage:      out.P1.DamageDealt,
		Player2Damage:      out.P2.DamageDealt,
		Player1HealthAfter: out.P1.Health,
		Player2HealthAfter: out.P2.Health,
		Player1EnergyAfter: out.P1.Energy,
		Player2EnergyAfter: out.P2.Energy,
		RoundOver:          roundOver,
		RoundWinner:        roundWinner,
	}
	if err := s.DB.Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Unique (match, round, turn) violated: someone else resolved
			// this turn first. Not an error.
			log.Printf("[Match] turn %d/%d of %s already resolved", fs.CurrentRound, fs.CurrentTurn, match.ID)
			return nil
		}
		return fmt.Errorf("failed to record resolved turn for match %s: %w", match.ID, err)
	}

	if roundOver {
		if err := s.finishRound(match, fs, *roundWinner); err != nil {
			return err
		}
	} else {
		if err := s.advanceTurn(fs, out); err != nil {
			return err
		}
	}

	// Re-read the counters so the broadcast carries the post-round tally.
	updated, err := s.getMatch(match.ID)
	if err != nil {
		return err
	}
	s.Events.PublishToMatch(match.ID, models.RoundResolvedEvent{
		MatchID:            match.ID,
		Round:              record.Round,
		Turn:               record.Turn,
		Player1Move:        record.Player1Move,
		Player2Move:        record.Player2Move,
		Player1Outcome:     record.Player1Outcome,
		Player2Outcome:     record.Player2Outcome,
		Player1Damage:      record.Player1Damage,
		Player2Damage:      record.Player2Damage,
		Player1HealthAfter: record.Player1HealthAfter,
		Player2HealthAfter: record.Player2HealthAfter,
		RoundOver:          roundOver,
		RoundWinner:        roundWinner,
		Player1RoundsWon:   updated.Player1RoundsWon,
		Player2RoundsWon:   updated.Player2RoundsWon,
	})
	return nil
}

// advanceTurn carries the resolved resources into the next turn of the same
// round.
func (s *MatchService) advanceTurn(fs *models.FightState, out combat.TurnResult) error {
	deadline := time.Now().Add(moveWindow)
	res := s.DB.Model(&models.FightState{}).
		Where("match_id = ? AND current_round = ? AND current_turn = ?", fs.MatchID, fs.CurrentRound, fs.CurrentTurn).
		Updates(map[string]interface{}{
			"player1_health": out.P1.Health, "player2_health": out.P2.Health,
			"player1_energy": out.P1.Energy, "player2_energy": out.P2.Energy,
			"player1_guard": out.P1.Guard, "player2_guard": out.P2.Guard,
			"player1_is_stunned": out.P1.StunnedNext, "player2_is_stunned": out.P2.StunnedNext,
			"current_turn":               fs.CurrentTurn + 1,
			"player1_has_submitted_move": false, "player2_has_submitted_move": false,
			"player1_pending_move": nil, "player2_pending_move": nil,
			"move_deadline_at": deadline,
		})
	return res.Error
}

// finishRound credits the round, and either opens the next round or ends
// the match.
func (s *MatchService) finishRound(match *models.Match, fs *models.FightState, winnerAddr string) error {
	col := "player1_rounds_won"
	if winnerAddr != match.Player1Address {
		col = "player2_rounds_won"
	}
	res := s.DB.Model(&models.Match{}).
		Where("id = ? AND status = ?", match.ID, models.MatchStatusInProgress).
		Update(col, gorm.Expr(col+" + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil // resolved elsewhere in the meantime
	}

	updated, err := s.getMatch(match.ID)
	if err != nil {
		return err
	}
	need := updated.Format.RoundsToWin()
	if updated.Player1RoundsWon >= need || updated.Player2RoundsWon >= need {
		s.FinishMatch(updated, winnerAddr, models.EndReasonVictory)
		return nil
	}

	now := time.Now()
	countdown := now.Add(roundCountdown)
	deadline := countdown.Add(moveWindow)
	initial := combat.InitialPlayerState()
	reset := s.DB.Model(&models.FightState{}).
		Where("match_id = ? AND current_round = ?", fs.MatchID, fs.CurrentRound).
		Updates(map[string]interface{}{
			"player1_health": initial.Health, "player2_health": initial.Health,
			"player1_energy": initial.Energy, "player2_energy": initial.Energy,
			"player1_guard": 0, "player2_guard": 0,
			"player1_is_stunned": false, "player2_is_stunned": false,
			"current_round": fs.CurrentRound + 1, "current_turn": 1,
			"player1_has_submitted_move": false, "player2_has_submitted_move": false,
			"player1_pending_move": nil, "player2_pending_move": nil,
			"player1_modifier": nil, "player2_modifier": nil,
			"countdown_ends_at": countdown, "move_deadline_at": deadline,
		})
	if reset.Error != nil {
		return reset.Error
	}

	s.Events.PublishToMatch(match.ID, models.RoundStartingEvent{
		MatchID:         match.ID,
		Round:           fs.CurrentRound + 1,
		CountdownEndsAt: countdown,
		MoveDeadlineAt:  deadline,
	})
	return nil
}

// Forfeit resolves the match against the surrendering player.
func (s *MatchService) Forfeit(matchID, address string) (*models.Match, error) {
	match, err := s.getMatch(matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasPlayer(address) {
		return nil, fmt.Errorf("address %s is not a participant of match %s", address, matchID)
	}
	if match.Status.IsTerminal() || match.Player2Address == nil {
		return match, nil
	}
	s.ResolveForfeit(match, match.OpponentOf(address), models.EndReasonForfeit)
	return s.getMatch(matchID)
}

// ResolveForfeit awards the match to winnerAddr without further rounds: the
// winner's tally jumps straight to the format's win threshold. Used by the
// manual forfeit path and by the sweeper's timeout/disconnect rulings.
// Returns false when the match was already resolved by someone else.
func (s *MatchService) ResolveForfeit(match *models.Match, winnerAddr string, reason models.EndReason) bool {
	col := "player1_rounds_won"
	if winnerAddr != match.Player1Address {
		col = "player2_rounds_won"
	}
	now := time.Now()
	res := s.DB.Model(&models.Match{}).
		Where("id = ? AND status IN ?", match.ID, models.ActiveStatuses).
		Updates(map[string]interface{}{
			col:              match.Format.RoundsToWin(),
			"status":         models.MatchStatusCompleted,
			"winner_address": winnerAddr,
			"end_reason":     reason,
			"completed_at":   now,
		})
	if res.Error != nil {
		log.Printf("[Match] forfeit update failed for %s: %v", match.ID, res.Error)
		return false
	}
	if res.RowsAffected == 0 {
		return false
	}
	s.settleAndAnnounce(match, winnerAddr, reason)
	return true
}

// FinishMatch marks a decided match completed and runs the post-terminal
// side effects. Returns false when someone else resolved the match first.
func (s *MatchService) FinishMatch(match *models.Match, winnerAddr string, reason models.EndReason) bool {
	now := time.Now()
	res := s.DB.Model(&models.Match{}).
		Where("id = ? AND status IN ?", match.ID, models.ActiveStatuses).
		Updates(map[string]interface{}{
			"status":         models.MatchStatusCompleted,
			"winner_address": winnerAddr,
			"end_reason":     reason,
			"completed_at":   now,
		})
	if res.Error != nil {
		log.Printf("[Match] completion update failed for %s: %v", match.ID, res.Error)
		return false
	}
	if res.RowsAffected == 0 {
		return false
	}
	s.settleAndAnnounce(match, winnerAddr, reason)
	return true
}

// settleAndAnnounce runs every post-terminal side effect: rating movement,
// hub settlement, the match_ended broadcast, and the transcript archive.
// External failures are logged and surfaced as a skipped reason — they never
// undo the local transition.
func (s *MatchService) settleAndAnnounce(match *models.Match, winnerAddr string, reason models.EndReason) {
	loserAddr := match.OpponentOf(winnerAddr)
	if loserAddr != "" {
		if err := applyMatchResult(s.DB, winnerAddr, loserAddr); err != nil {
			log.Printf("[Match] rating update failed for %s: %v", match.ID, err)
		}
	}

	var txHash, skipped string
	if s.Settlement != nil && match.Player2Address != nil {
		ctx, cancel := context.WithTimeout(context.Background(), settlementTimeout)
		defer cancel()
		receipt, err := s.Settlement.ReportResult(ctx, match.ID, match.Player1Address, *match.Player2Address, winnerAddr)
		if err != nil {
			code := ClassifySettlementError(err)
			skipped = string(code)
			log.Printf("[Match] settlement skipped for %s (%s): %v", match.ID, code, err)
		} else {
			txHash = receipt.TxHash
			if err := s.DB.Model(&models.Match{}).Where("id = ?", match.ID).
				Update("settlement_tx", txHash).Error; err != nil {
				log.Printf("[Match] failed to record settlement tx for %s: %v", match.ID, err)
			}
		}
	}

	ev := models.MatchEndedEvent{
		MatchID:       match.ID,
		WinnerAddress: winnerAddr,
		Reason:        reason,
		SettlementTx:  txHash,
		SkippedReason: skipped,
	}
	s.Events.PublishToMatch(match.ID, ev)
	s.Events.PublishToPlayers(ev, match.Player1Address, derefOrEmpty(match.Player2Address))

	s.archiveTranscript(match.ID)
	log.Printf("[Match] %s completed, winner %s (%s)", match.ID, winnerAddr, reason)
}

// Cancel voids a match with no winner: both-disconnected, both-timed-out,
// or half-created pairings. A best-effort hub cancellation follows; a
// missing session is benign because the on-chain session may never have
// been opened.
func (s *MatchService) Cancel(match *models.Match, reason string) bool {
	now := time.Now()
	res := s.DB.Model(&models.Match{}).
		Where("id = ? AND status IN ?", match.ID, models.ActiveStatuses).
		Updates(map[string]interface{}{
			"status":       models.MatchStatusCancelled,
			"completed_at": now,
		})
	if res.Error != nil {
		log.Printf("[Match] cancel update failed for %s: %v", match.ID, res.Error)
		return false
	}
	if res.RowsAffected == 0 {
		return false
	}

	// Clear the live round state; the append-only history stays.
	if err := s.DB.Delete(&models.FightState{}, "match_id = ?", match.ID).Error; err != nil {
		log.Printf("[Match] failed to clear fight state for %s: %v", match.ID, err)
	}

	if s.Settlement != nil {
		ctx, cancel := context.WithTimeout(context.Background(), settlementTimeout)
		defer cancel()
		if _, err := s.Settlement.Cancel(ctx, match.ID); err != nil {
			code := ClassifySettlementError(err)
			if code != SettleErrSessionMissing {
				log.Printf("[Match] hub cancel failed for %s (%s): %v", match.ID, code, err)
			}
		}
	}

	ev := models.MatchCancelledEvent{MatchID: match.ID, Reason: reason}
	s.Events.PublishToMatch(match.ID, ev)
	s.Events.PublishToPlayers(ev, match.Player1Address, derefOrEmpty(match.Player2Address))
	log.Printf("[Match] %s cancelled (%s)", match.ID, reason)
	return true
}

// MarkDisconnected stamps a player's disconnect; the match keeps running
// until the grace window expires and the sweeper rules on it.
func (s *MatchService) MarkDisconnected(matchID, address string) (*models.Match, error) {
	match, err := s.getMatch(matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasPlayer(address) {
		return nil, fmt.Errorf("address %s is not a participant of match %s", address, matchID)
	}
	col := "player1_disconnected_at"
	if match.Player1Address != address {
		col = "player2_disconnected_at"
	}
	now := time.Now()
	res := s.DB.Model(&models.Match{}).
		Where("id = ? AND status IN ? AND "+col+" IS NULL", matchID, models.ActiveStatuses).
		Update(col, now)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		s.Events.PublishToMatch(matchID, models.PlayerDisconnectedEvent{
			MatchID:        matchID,
			Address:        address,
			DisconnectedAt: now,
			GraceSeconds:   match.DisconnectTimeoutSeconds,
		})
	}
	return s.getMatch(matchID)
}

// MarkReconnected clears a player's disconnect stamp.
func (s *MatchService) MarkReconnected(matchID, address string) (*models.Match, error) {
	match, err := s.getMatch(matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasPlayer(address) {
		return nil, fmt.Errorf("address %s is not a participant of match %s", address, matchID)
	}
	col := "player1_disconnected_at"
	if match.Player1Address != address {
		col = "player2_disconnected_at"
	}
	res := s.DB.Model(&models.Match{}).
		Where("id = ? AND status IN ? AND "+col+" IS NOT NULL", matchID, models.ActiveStatuses).
		Update(col, nil)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		s.Events.PublishToMatch(matchID, models.PlayerReconnectedEvent{MatchID: matchID, Address: address})
	}
	return s.getMatch(matchID)
}

// archiveTranscript serializes the round-by-round history and uploads it.
func (s *MatchService) archiveTranscript(matchID string) {
	if s.Archive == nil {
		return
	}
	match, err := s.getMatch(matchID)
	if err != nil {
		log.Printf("[Match] archive skipped for %s: %v", matchID, err)
		return
	}
	var rounds []models.MatchRound
	if err := s.DB.Where("match_id = ?", matchID).
		Order("round ASC, turn ASC").
		Find(&rounds).Error; err != nil {
		log.Printf("[Match] archive skipped for %s: %v", matchID, err)
		return
	}

	payload, err := json.Marshal(fiber.Map{"match": match, "rounds": rounds})
	if err != nil {
		log.Printf("[Match] archive encode failed for %s: %v", matchID, err)
		return
	}
	url, err := s.Archive.Upload(fmt.Sprintf("matches/%s.json", matchID), payload, "application/json")
	if err != nil {
		log.Printf("[Match] archive upload failed for %s: %v", matchID, err)
		return
	}
	if err := s.DB.Model(&models.Match{}).Where("id = ?", matchID).
		Update("archive_url", url).Error; err != nil {
		log.Printf("[Match] failed to record archive url for %s: %v", matchID, err)
	}
}

func toModifier(raw *string) combat.Modifier {
	if raw == nil {
		return combat.ModifierNone
	}
	return combat.Modifier(*raw)
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// --- fiber handlers ---

// GetMatch handles GET /matches/:id — the full authoritative view.
func (s *MatchService) GetMatch(c *fiber.Ctx) error {
	match, err := s.getMatch(c.Params("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "match not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	resp := fiber.Map{"match": match}
	if fs, err := s.getFightState(match.ID); err == nil {
		resp["fight_state"] = fs
	}
	var rounds []models.MatchRound
	if err := s.DB.Where("match_id = ?", match.ID).
		Order("round ASC, turn ASC").Find(&rounds).Error; err == nil {
		resp["rounds"] = rounds
	}
	return c.JSON(resp)
}

// ReadyHandler handles POST /matches/:id/ready.
func (s *MatchService) ReadyHandler(c *fiber.Ctx) error {
	address := c.Locals("player_address").(string)
	match, err := s.Ready(c.Params("id"), address)
	if err != nil {
		return matchError(c, err)
	}
	return c.JSON(fiber.Map{"match": match})
}

type submitMoveRequest struct {
	Move  string `json:"move"`
	Round int    `json:"round"`
	Turn  int    `json:"turn"`
}

// SubmitMoveHandler handles POST /matches/:id/moves.
func (s *MatchService) SubmitMoveHandler(c *fiber.Ctx) error {
	address := c.Locals("player_address").(string)

	var req submitMoveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.Move == "" || req.Round < 1 || req.Turn < 1 {
		return c.Status(400).JSON(fiber.Map{"error": "move, round, and turn are required"})
	}

	fs, err := s.SubmitMove(c.Params("id"), address, req.Move, req.Round, req.Turn)
	if err != nil {
		return matchError(c, err)
	}
	return c.JSON(fiber.Map{"fight_state": fs})
}

type submitSurgeRequest struct {
	Card  string `json:"card"`
	Round int    `json:"round"`
}

// SubmitSurgeHandler handles POST /matches/:id/surge.
func (s *MatchService) SubmitSurgeHandler(c *fiber.Ctx) error {
	address := c.Locals("player_address").(string)

	var req submitSurgeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.Card == "" || req.Round < 1 {
		return c.Status(400).JSON(fiber.Map{"error": "card and round are required"})
	}

	fs, err := s.SubmitSurge(c.Params("id"), address, req.Card, req.Round)
	if err != nil {
		return matchError(c, err)
	}
	return c.JSON(fiber.Map{"fight_state": fs})
}

// ForfeitHandler handles POST /matches/:id/forfeit.
func (s *MatchService) ForfeitHandler(c *fiber.Ctx) error {
	address := c.Locals("player_address").(string)
	match, err := s.Forfeit(c.Params("id"), address)
	if err != nil {
		return matchError(c, err)
	}
	return c.JSON(fiber.Map{"match": match})
}

// DisconnectHandler handles POST /matches/:id/disconnect.
func (s *MatchService) DisconnectHandler(c *fiber.Ctx) error {
	address := c.Locals("player_address").(string)
	match, err := s.MarkDisconnected(c.Params("id"), address)
	if err != nil {
		return matchError(c, err)
	}
	return c.JSON(fiber.Map{"match": match})
}

// ReconnectHandler handles POST /matches/:id/reconnect.
func (s *MatchService) ReconnectHandler(c *fiber.Ctx) error {
	address := c.Locals("player_address").(string)
	match, err := s.MarkReconnected(c.Params("id"), address)
	if err != nil {
		return matchError(c, err)
	}
	return c.JSON(fiber.Map{"match": match})
}

func matchError(c *fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "match not found"})
	}
	return c.Status(400).JSON(fiber.Map{"error": err.Error()})
}
