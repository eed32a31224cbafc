package services

import (
	"testing"
	"time"

	"brawl-match-engine/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMatchFixture(t *testing.T) (*MatchService, *recordingBroadcaster, *stubSettlement) {
	t.Helper()
	events := &recordingBroadcaster{}
	hub := &stubSettlement{}
	return NewMatchService(newTestDB(t), events, hub, nil), events, hub
}

func createPairedMatch(t *testing.T, svc *MatchService) *models.Match {
	t.Helper()
	bob := "bob"
	deadline := time.Now().Add(60 * time.Second)
	m := models.Match{
		ID:                       uuid.NewString(),
		Player1Address:           "alice",
		Player2Address:           &bob,
		Status:                   models.MatchStatusCharacterSelect,
		Format:                   models.FormatBestOf3,
		SelectionDeadlineAt:      &deadline,
		DisconnectTimeoutSeconds: 30,
	}
	require.NoError(t, svc.DB.Create(&m).Error)
	return &m
}

func startFight(t *testing.T, svc *MatchService) *models.Match {
	t.Helper()
	m := createPairedMatch(t, svc)
	_, err := svc.Ready(m.ID, "alice")
	require.NoError(t, err)
	m2, err := svc.Ready(m.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, models.MatchStatusInProgress, m2.Status)
	return m2
}

func TestReadyBothSidesStartsFight(t *testing.T) {
	svc, events, _ := newMatchFixture(t)
	m := createPairedMatch(t, svc)

	after, err := svc.Ready(m.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCharacterSelect, after.Status)
	assert.True(t, after.Player1Ready)
	assert.False(t, after.Player2Ready)

	after, err = svc.Ready(m.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusInProgress, after.Status)

	var fs models.FightState
	require.NoError(t, svc.DB.First(&fs, "match_id = ?", m.ID).Error)
	assert.Equal(t, 100, fs.Player1Health)
	assert.Equal(t, 100, fs.Player2Health)
	assert.Equal(t, 50, fs.Player1Energy)
	assert.Equal(t, 50, fs.Player2Energy)
	assert.Equal(t, 1, fs.CurrentRound)
	assert.Equal(t, 1, fs.CurrentTurn)
	require.NotNil(t, fs.MoveDeadlineAt)

	assert.Equal(t, 1, events.count(models.EventRoundStarting))
}

func TestReadyIsIdempotent(t *testing.T) {
	svc, events, _ := newMatchFixture(t)
	m := createPairedMatch(t, svc)

	_, err := svc.Ready(m.ID, "alice")
	require.NoError(t, err)
	_, err = svc.Ready(m.ID, "alice")
	require.NoError(t, err)

	var match models.Match
	require.NoError(t, svc.DB.First(&match, "id = ?", m.ID).Error)
	assert.Equal(t, models.MatchStatusCharacterSelect, match.Status)
	assert.Zero(t, events.count(models.EventRoundStarting))
}

func TestReadyRejectsOutsider(t *testing.T) {
	svc, _, _ := newMatchFixture(t)
	m := createPairedMatch(t, svc)

	_, err := svc.Ready(m.ID, "mallory")
	require.Error(t, err)
}

func TestSubmitMoveResolvesTurnWhenBothCommit(t *testing.T) {
	svc, events, _ := newMatchFixture(t)
	m := startFight(t, svc)

	fs, err := svc.SubmitMove(m.ID, "alice", "punch", 1, 1)
	require.NoError(t, err)
	assert.True(t, fs.Player1HasSubmittedMove)
	assert.False(t, fs.Player2HasSubmittedMove)
	assert.Equal(t, 1, events.count(models.EventMoveConfirmed))
	assert.Equal(t, 1, events.count(models.EventMoveSubmitted))

	fs, err = svc.SubmitMove(m.ID, "bob", "kick", 1, 1)
	require.NoError(t, err)

	// Punch beats kick: alice lands 10, bob is countered.
	assert.Equal(t, 100, fs.Player1Health)
	assert.Equal(t, 90, fs.Player2Health)
	assert.Equal(t, 40, fs.Player1Energy) // 50 - punch cost
	assert.Equal(t, 35, fs.Player2Energy) // 50 - kick cost
	assert.Equal(t, 1, fs.CurrentRound)
	assert.Equal(t, 2, fs.CurrentTurn)
	assert.False(t, fs.Player1HasSubmittedMove)
	assert.False(t, fs.Player2HasSubmittedMove)
	assert.Nil(t, fs.Player1PendingMove)
	assert.Nil(t, fs.Player2PendingMove)

	var record models.MatchRound
	require.NoError(t, svc.DB.First(&record, "match_id = ? AND round = 1 AND turn = 1", m.ID).Error)
	assert.Equal(t, "punch", record.Player1Move)
	assert.Equal(t, "kick", record.Player2Move)
	assert.Equal(t, "hit", record.Player1Outcome)
	assert.Equal(t, "staggered", record.Player2Outcome)
	assert.Equal(t, 10, record.Player1Damage)
	assert.Equal(t, 0, record.Player2Damage)
	assert.False(t, record.RoundOver)

	assert.Equal(t, 1, events.count(models.EventRoundResolved))
}

func TestSubmitMoveDoubleSubmitKeepsFirst(t *testing.T) {
	svc, _, _ := newMatchFixture(t)
	m := startFight(t, svc)

	_, err := svc.SubmitMove(m.ID, "alice", "punch", 1, 1)
	require.NoError(t, err)
	fs, err := svc.SubmitMove(m.ID, "alice", "kick", 1, 1)
	require.NoError(t, err)

	require.NotNil(t, fs.Player1PendingMove)
	assert.Equal(t, "punch", *fs.Player1PendingMove)
}

func TestSubmitMoveWrongTurnIsNoOp(t *testing.T) {
	svc, _, _ := newMatchFixture(t)
	m := startFight(t, svc)

	fs, err := svc.SubmitMove(m.ID, "alice", "punch", 1, 5)
	require.NoError(t, err)
	assert.False(t, fs.Player1HasSubmittedMove)
}

func TestResolveSkipsTurnAnotherResolverRecorded(t *testing.T) {
	svc, _, _ := newMatchFixture(t)
	m := startFight(t, svc)

	// The turn's record already exists, as if a concurrent resolver won.
	require.NoError(t, svc.DB.Create(&models.MatchRound{
		ID:             uuid.NewString(),
		MatchID:        m.ID,
		Round:          1,
		Turn:           1,
		Player1Move:    "punch",
		Player2Move:    "punch",
		Player1Outcome: "hit",
		Player2Outcome: "hit",
	}).Error)

	_, err := svc.SubmitMove(m.ID, "alice", "kick", 1, 1)
	require.NoError(t, err)
	fs, err := svc.SubmitMove(m.ID, "bob", "kick", 1, 1)
	require.NoError(t, err, "losing the record race is benign")

	// The turn was not advanced and the existing record was not overwritten.
	assert.Equal(t, 1, fs.CurrentTurn)
	var count int64
	require.NoError(t, svc.DB.Model(&models.MatchRound{}).Where("match_id = ?", m.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	var record models.MatchRound
	require.NoError(t, svc.DB.First(&record, "match_id = ? AND round = 1 AND turn = 1", m.ID).Error)
	assert.Equal(t, "punch", record.Player1Move)
}

func TestResolveSurfacesRecordWriteFailure(t *testing.T) {
	svc, _, _ := newMatchFixture(t)
	m := startFight(t, svc)

	// Break the history table so the record insert fails for a reason other
	// than a lost race.
	require.NoError(t, svc.DB.Migrator().DropTable(&models.MatchRound{}))

	_, err := svc.SubmitMove(m.ID, "alice", "punch", 1, 1)
	require.NoError(t, err)
	_, err = svc.SubmitMove(m.ID, "bob", "kick", 1, 1)
	require.Error(t, err, "a failed history write must not pass for a resolved turn")
}

func TestSubmitMoveRejectsUnknownMove(t *testing.T) {
	svc, _, _ := newMatchFixture(t)
	m := startFight(t, svc)

	_, err := svc.SubmitMove(m.ID, "alice", "headbutt", 1, 1)
	require.Error(t, err)
}

func TestKnockoutEndsRoundAndResetsState(t *testing.T) {
	svc, events, _ := newMatchFixture(t)
	m := startFight(t, svc)

	// Put bob in special range.
	require.NoError(t, svc.DB.Model(&models.FightState{}).
		Where("match_id = ?", m.ID).Update("player2_health", 20).Error)

	_, err := svc.SubmitMove(m.ID, "alice", "special", 1, 1)
	require.NoError(t, err)
	fs, err := svc.SubmitMove(m.ID, "bob", "punch", 1, 1)
	require.NoError(t, err)

	var record models.MatchRound
	require.NoError(t, svc.DB.First(&record, "match_id = ? AND round = 1 AND turn = 1", m.ID).Error)
	assert.True(t, record.RoundOver)
	require.NotNil(t, record.RoundWinner)
	assert.Equal(t, "alice", *record.RoundWinner)
	assert.Equal(t, 0, record.Player2HealthAfter)

	after, err := svc.getMatch(m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusInProgress, after.Status)
	assert.Equal(t, 1, after.Player1RoundsWon)

	// Fresh round: resources reset, surge picks cleared.
	assert.Equal(t, 2, fs.CurrentRound)
	assert.Equal(t, 1, fs.CurrentTurn)
	assert.Equal(t, 100, fs.Player2Health)
	assert.Equal(t, 50, fs.Player1Energy)
	assert.Nil(t, fs.Player1Modifier)

	// Initial round start plus the next round's.
	assert.Equal(t, 2, events.count(models.EventRoundStarting))
}

func TestFinalRoundWinCompletesMatch(t *testing.T) {
	svc, events, hub := newMatchFixture(t)
	m := startFight(t, svc)

	require.NoError(t, svc.DB.Model(&models.Match{}).
		Where("id = ?", m.ID).Update("player1_rounds_won", 1).Error)
	require.NoError(t, svc.DB.Model(&models.FightState{}).
		Where("match_id = ?", m.ID).Update("player2_health", 20).Error)

	_, err := svc.SubmitMove(m.ID, "alice", "special", 1, 1)
	require.NoError(t, err)
	_, err = svc.SubmitMove(m.ID, "bob", "punch", 1, 1)
	require.NoError(t, err)

	after, err := svc.getMatch(m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCompleted, after.Status)
	require.NotNil(t, after.WinnerAddress)
	assert.Equal(t, "alice", *after.WinnerAddress)
	assert.Equal(t, models.EndReasonVictory, after.EndReason)
	assert.Equal(t, "0xstub", after.SettlementTx)
	require.NotNil(t, after.CompletedAt)

	require.Len(t, hub.reported, 1)
	assert.Equal(t, m.ID, hub.reported[0])

	// Elo moved both ladders off the default.
	var winner, loser models.PlayerRating
	require.NoError(t, svc.DB.First(&winner, "address = ?", "alice").Error)
	require.NoError(t, svc.DB.First(&loser, "address = ?", "bob").Error)
	assert.Equal(t, 1016, winner.Rating)
	assert.Equal(t, 984, loser.Rating)
	assert.Equal(t, 1, winner.Wins)
	assert.Equal(t, 1, loser.Losses)

	// Match channel plus both player channels.
	assert.Equal(t, 3, events.count(models.EventMatchEnded))
}

func TestSettlementFailureDoesNotRevertCompletion(t *testing.T) {
	svc, events, hub := newMatchFixture(t)
	hub.reportErr = &SettlementError{Code: SettleErrAlreadySettled, Message: "duplicate"}
	m := startFight(t, svc)

	require.NoError(t, svc.DB.Model(&models.Match{}).
		Where("id = ?", m.ID).Update("player1_rounds_won", 1).Error)
	require.NoError(t, svc.DB.Model(&models.FightState{}).
		Where("match_id = ?", m.ID).Update("player2_health", 20).Error)

	_, err := svc.SubmitMove(m.ID, "alice", "special", 1, 1)
	require.NoError(t, err)
	_, err = svc.SubmitMove(m.ID, "bob", "punch", 1, 1)
	require.NoError(t, err)

	after, err := svc.getMatch(m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCompleted, after.Status)
	assert.Empty(t, after.SettlementTx)

	var found bool
	for _, p := range events.published {
		if ev, ok := p.Event.(models.MatchEndedEvent); ok {
			found = true
			assert.Equal(t, string(SettleErrAlreadySettled), ev.SkippedReason)
		}
	}
	assert.True(t, found)
}

func TestStalemateAtTurnCapJudgesRound(t *testing.T) {
	svc, _, _ := newMatchFixture(t)
	m := startFight(t, svc)

	require.NoError(t, svc.DB.Model(&models.FightState{}).
		Where("match_id = ?", m.ID).Update("current_turn", 30).Error)

	_, err := svc.SubmitMove(m.ID, "alice", "block", 1, 30)
	require.NoError(t, err)
	_, err = svc.SubmitMove(m.ID, "bob", "block", 1, 30)
	require.NoError(t, err)

	var record models.MatchRound
	require.NoError(t, svc.DB.First(&record, "match_id = ? AND round = 1 AND turn = 30", m.ID).Error)
	assert.True(t, record.RoundOver)
	require.NotNil(t, record.RoundWinner)
	// Identical states fall back to seat order.
	assert.Equal(t, "alice", *record.RoundWinner)

	after, err := svc.getMatch(m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.Player1RoundsWon)
}

func TestSurgeOncePerRound(t *testing.T) {
	svc, _, _ := newMatchFixture(t)
	m := startFight(t, svc)

	fs, err := svc.SubmitSurge(m.ID, "alice", "berserker_pact", 1)
	require.NoError(t, err)
	require.NotNil(t, fs.Player1Modifier)
	assert.Equal(t, "berserker_pact", *fs.Player1Modifier)

	fs, err = svc.SubmitSurge(m.ID, "alice", "ghost_step", 1)
	require.NoError(t, err)
	assert.Equal(t, "berserker_pact", *fs.Player1Modifier)

	_, err = svc.SubmitSurge(m.ID, "alice", "double_damage", 1)
	require.Error(t, err)
}

func TestSurgeAppliesToResolution(t *testing.T) {
	svc, _, _ := newMatchFixture(t)
	m := startFight(t, svc)

	_, err := svc.SubmitSurge(m.ID, "alice", "berserker_pact", 1)
	require.NoError(t, err)

	_, err = svc.SubmitMove(m.ID, "alice", "punch", 1, 1)
	require.NoError(t, err)
	fs, err := svc.SubmitMove(m.ID, "bob", "kick", 1, 1)
	require.NoError(t, err)

	// Berserker pact: alice's punch deals 15 instead of 10.
	assert.Equal(t, 85, fs.Player2Health)
}

func TestForfeitAwardsOpponent(t *testing.T) {
	svc, events, hub := newMatchFixture(t)
	m := startFight(t, svc)

	after, err := svc.Forfeit(m.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCompleted, after.Status)
	require.NotNil(t, after.WinnerAddress)
	assert.Equal(t, "bob", *after.WinnerAddress)
	assert.Equal(t, models.EndReasonForfeit, after.EndReason)
	assert.Equal(t, 2, after.Player2RoundsWon)

	require.Len(t, hub.reported, 1)
	assert.Equal(t, 3, events.count(models.EventMatchEnded))
}

func TestForfeitOnCompletedMatchIsNoOp(t *testing.T) {
	svc, _, hub := newMatchFixture(t)
	m := startFight(t, svc)

	_, err := svc.Forfeit(m.ID, "alice")
	require.NoError(t, err)
	_, err = svc.Forfeit(m.ID, "bob")
	require.NoError(t, err)

	after, err := svc.getMatch(m.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", *after.WinnerAddress)
	assert.Len(t, hub.reported, 1)
}

func TestCancelClearsStateAndNotifiesHub(t *testing.T) {
	svc, events, hub := newMatchFixture(t)
	m := startFight(t, svc)

	require.True(t, svc.Cancel(m, "both_disconnected"))
	require.False(t, svc.Cancel(m, "both_disconnected"), "second cancel loses the status guard")

	after, err := svc.getMatch(m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCancelled, after.Status)

	var count int64
	require.NoError(t, svc.DB.Model(&models.FightState{}).Where("match_id = ?", m.ID).Count(&count).Error)
	assert.Zero(t, count)

	require.Len(t, hub.cancelled, 1)
	assert.Equal(t, 3, events.count(models.EventMatchCancelled))
}

func TestDisconnectAndReconnect(t *testing.T) {
	svc, events, _ := newMatchFixture(t)
	m := startFight(t, svc)

	after, err := svc.MarkDisconnected(m.ID, "bob")
	require.NoError(t, err)
	require.NotNil(t, after.Player2DisconnectedAt)

	// Repeat does not re-stamp or re-announce.
	_, err = svc.MarkDisconnected(m.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, events.count(models.EventPlayerDisconnected))

	after, err = svc.MarkReconnected(m.ID, "bob")
	require.NoError(t, err)
	assert.Nil(t, after.Player2DisconnectedAt)
	assert.Equal(t, 1, events.count(models.EventPlayerReconnected))
}

func TestDowngradedMoveIsRecorded(t *testing.T) {
	svc, _, _ := newMatchFixture(t)
	m := startFight(t, svc)

	// alice can't afford a special.
	require.NoError(t, svc.DB.Model(&models.FightState{}).
		Where("match_id = ?", m.ID).Update("player1_energy", 10).Error)

	_, err := svc.SubmitMove(m.ID, "alice", "special", 1, 1)
	require.NoError(t, err)
	fs, err := svc.SubmitMove(m.ID, "bob", "kick", 1, 1)
	require.NoError(t, err)

	var record models.MatchRound
	require.NoError(t, svc.DB.First(&record, "match_id = ? AND round = 1 AND turn = 1", m.ID).Error)
	assert.Equal(t, "block", record.Player1Move, "unaffordable special downgrades to block")

	// Kick pierces the downgraded block; block regen still applies.
	assert.Equal(t, 85, fs.Player1Health)
	assert.Equal(t, 18, fs.Player1Energy)
}
