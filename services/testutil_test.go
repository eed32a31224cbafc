package services

import (
	"context"
	"testing"

	"brawl-match-engine/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.QueueEntry{},
		&models.Match{},
		&models.FightState{},
		&models.MatchRound{},
		&models.PlayerRating{},
		&models.MatchEvent{},
	))
	return db
}

// recordingBroadcaster captures published events for assertions.
type recordingBroadcaster struct {
	published []publishedEvent
}

type publishedEvent struct {
	Channel string
	Event   models.Event
}

func (b *recordingBroadcaster) Publish(channelKey string, event models.Event) {
	b.published = append(b.published, publishedEvent{Channel: channelKey, Event: event})
}

func (b *recordingBroadcaster) PublishToMatch(matchID string, event models.Event) {
	b.Publish(models.MatchChannel(matchID), event)
}

func (b *recordingBroadcaster) PublishToPlayers(event models.Event, addresses ...string) {
	for _, addr := range addresses {
		if addr != "" {
			b.Publish(models.PlayerChannel(addr), event)
		}
	}
}

func (b *recordingBroadcaster) names() []string {
	var out []string
	for _, p := range b.published {
		out = append(out, p.Event.EventName())
	}
	return out
}

func (b *recordingBroadcaster) count(eventName string) int {
	n := 0
	for _, p := range b.published {
		if p.Event.EventName() == eventName {
			n++
		}
	}
	return n
}

// stubSettlement lets tests script hub behavior.
type stubSettlement struct {
	reportErr   error
	cancelErr   error
	reported    []string
	cancelled   []string
	receiptHash string
}

func (s *stubSettlement) ReportResult(_ context.Context, matchID, _, _, _ string) (*SettlementReceipt, error) {
	s.reported = append(s.reported, matchID)
	if s.reportErr != nil {
		return nil, s.reportErr
	}
	hash := s.receiptHash
	if hash == "" {
		hash = "0xstub"
	}
	return &SettlementReceipt{TxHash: hash}, nil
}

func (s *stubSettlement) Cancel(_ context.Context, matchID string) (*SettlementReceipt, error) {
	s.cancelled = append(s.cancelled, matchID)
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	return &SettlementReceipt{}, nil
}
