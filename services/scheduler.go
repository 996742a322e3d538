// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartRolloverScheduler re-arms expired daily/weekly mission instances every
// minute so the next window starts with clean progress.
func (s *MissionService) StartRolloverScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			rearmed, err := s.RearmExpired()
			if err != nil {
				log.Printf("[Scheduler] mission rollover error: %v", err)
				return
			}
			if rearmed > 0 {
				log.Printf("✅ Re-armed %d expired mission(s)", rearmed)
			}
		}),
	)
}
