// services/scheduler.go
package services

import (
	"log"
	"time"

	"brawl-match-engine/models"

	"github.com/go-co-op/gocron/v2"
)

const eventRetention = 24 * time.Hour

// StartMaintenanceScheduler runs the periodic queue and event hygiene jobs:
// purging abandoned queue rows, releasing claims whose match never
// materialized, and trimming old event rows.
func (s *MatchmakingService) StartMaintenanceScheduler(events *EventService) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: drop searching entries nobody has polled for too long.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			cutoff := time.Now().Add(-maxQueueAge)
			res := s.DB.Where("status = ? AND joined_at < ?", models.QueueStatusSearching, cutoff).
				Delete(&models.QueueEntry{})
			if res.Error != nil {
				log.Printf("[Scheduler] stale queue purge failed: %v", res.Error)
				return
			}
			if res.RowsAffected > 0 {
				log.Printf("✅ Purged %d stale queue entries", res.RowsAffected)
			}
		}),
	)

	// Every minute: release matched claims whose pairing never produced a
	// visible match. The claimant either crashed mid-pairing or its match
	// creation failed and the reset was lost; putting the row back to
	// searching lets the player be paired again.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			cutoff := time.Now().Add(-claimRecoveryWindow)
			var entries []models.QueueEntry
			err := s.DB.Where("status = ? AND updated_at < ?", models.QueueStatusMatched, cutoff).
				Find(&entries).Error
			if err != nil {
				log.Printf("[Scheduler] claim recovery query failed: %v", err)
				return
			}

			for _, e := range entries {
				if e.MatchedWith != nil {
					if m, err := s.findMatchForPair(e.Address, *e.MatchedWith); err == nil && m != nil {
						// The match exists; the entry just outlived its
						// delete. Clean it up.
						s.DB.Delete(&models.QueueEntry{}, "address = ?", e.Address)
						continue
					}
				}
				res := s.DB.Model(&models.QueueEntry{}).
					Where("address = ? AND status = ?", e.Address, models.QueueStatusMatched).
					Updates(map[string]interface{}{
						"status":       models.QueueStatusSearching,
						"matched_with": nil,
					})
				if res.Error != nil {
					log.Printf("[Scheduler] failed to release claim for %s: %v", e.Address, res.Error)
				} else if res.RowsAffected > 0 {
					log.Printf("✅ Released stuck queue claim for %s", e.Address)
				}
			}
		}),
	)

	// Every hour: trim delivered events past retention.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			pruned, err := events.PruneBefore(time.Now().Add(-eventRetention))
			if err != nil {
				log.Printf("[Scheduler] event prune failed: %v", err)
				return
			}
			if pruned > 0 {
				log.Printf("✅ Pruned %d old events", pruned)
			}
		}),
	)
}
