package queue

import (
	"context"
	"sync"
	"time"

	"github.com/videoflix/videoflix-api/cache"
	"github.com/videoflix/videoflix-api/log"
)

// Scheduler publishes a fresh job on a fixed interval. Registrations
// are idempotent by name, so repeated startup paths cannot double a
// schedule.
type Scheduler struct {
	publisher Publisher
	ctx       context.Context
	cancel    context.CancelFunc
	tasks     *cache.Cache[time.Duration]
	wg        sync.WaitGroup
}

func NewScheduler(publisher Publisher) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		publisher: publisher,
		ctx:       ctx,
		cancel:    cancel,
		tasks:     cache.New[time.Duration](),
	}
}

// RegisterPeriodic starts publishing makeJob() every interval under the
// given name. Returns false, without starting anything, when the name
// is already registered. The schedule starts now: the first publish
// happens at registration, not one interval later.
func (s *Scheduler) RegisterPeriodic(name string, interval time.Duration, makeJob func() Job) bool {
	if !s.tasks.StoreIfAbsent(name, interval) {
		return false
	}

	publish := func() {
		job := makeJob()
		if err := s.publisher.Publish(s.ctx, job); err != nil {
			log.LogError(job.ID, "error publishing scheduled job", err, "schedule", name)
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		publish()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				publish()
			}
		}
	}()
	return true
}

// Stop ends all schedules and waits for the publishing goroutines to
// exit.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}
