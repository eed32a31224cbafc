package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"brawl-match-engine/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Broadcaster is the event publish channel the engine emits into. Delivery
// is at-least-once and best-effort: a failed publish is logged, never fatal,
// and no ordering is guaranteed across channels.
type Broadcaster interface {
	Publish(channelKey string, event models.Event)
	PublishToMatch(matchID string, event models.Event)
	PublishToPlayers(event models.Event, addresses ...string)
}

// EventService is the repository-backed Broadcaster. Events are persisted as
// MatchEvent rows and streamed to clients over SSE, so delivery survives a
// process restart and works across server instances.
type EventService struct {
	DB *gorm.DB
}

func NewEventService(db *gorm.DB) *EventService {
	return &EventService{DB: db}
}

// Publish serializes the typed event variant and appends it to the channel.
func (s *EventService) Publish(channelKey string, event models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Events] failed to encode %s for %s: %v", event.EventName(), channelKey, err)
		return
	}
	row := models.MatchEvent{
		ID:         uuid.NewString(),
		ChannelKey: channelKey,
		EventName:  event.EventName(),
		Payload:    string(payload),
	}
	if err := s.DB.Create(&row).Error; err != nil {
		log.Printf("[Events] failed to publish %s to %s: %v", event.EventName(), channelKey, err)
	}
}

// PublishToMatch emits on the per-match channel.
func (s *EventService) PublishToMatch(matchID string, event models.Event) {
	s.Publish(models.MatchChannel(matchID), event)
}

// PublishToPlayers emits the same event on each player's channel.
func (s *EventService) PublishToPlayers(event models.Event, addresses ...string) {
	for _, addr := range addresses {
		if addr != "" {
			s.Publish(models.PlayerChannel(addr), event)
		}
	}
}

// PruneBefore deletes events older than the cutoff. Called by the retention
// job; events are a delivery channel, not the system of record.
func (s *EventService) PruneBefore(cutoff time.Time) (int64, error) {
	res := s.DB.Where("created_at < ?", cutoff).Delete(&models.MatchEvent{})
	return res.RowsAffected, res.Error
}

// StreamChannelSSE streams a channel's events as server-sent events. Clients
// pass ?channel=match:<id> or ?channel=player:<address>. The cursor-poll
// shape keeps the endpoint stateless across instances.
func (s *EventService) StreamChannelSSE(c *fiber.Ctx) error {
	channel := c.Query("channel")
	if channel == "" {
		return c.Status(400).JSON(fiber.Map{"error": "channel query parameter is required"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		var cursor time.Time
		var latest models.MatchEvent
		if err := s.DB.
			Where("channel_key = ?", channel).
			Order("created_at DESC").
			First(&latest).Error; err == nil {
			cursor = latest.CreatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[Events] SSE init error for %s: %v", channel, err)
		}

		// Initial keepalive so proxies open the stream.
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				var rows []models.MatchEvent
				err := s.DB.
					Where("channel_key = ? AND created_at > ?", channel, cursor).
					Order("created_at ASC").
					Find(&rows).Error
				if err != nil {
					log.Printf("[Events] SSE query error for %s: %v", channel, err)
					continue
				}
				if len(rows) == 0 {
					continue
				}
				cursor = rows[len(rows)-1].CreatedAt

				for _, ev := range rows {
					fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.EventName, ev.Payload)
				}
				if err := w.Flush(); err != nil {
					// Client disconnected.
					return
				}

			case <-c.Context().Done():
				return
			}
		}
	})

	return nil
}
