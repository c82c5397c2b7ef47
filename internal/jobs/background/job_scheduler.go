package background

import (
	"context"
	"log"
	"time"

	"kompello/internal/jobs"

	"github.com/go-co-op/gocron/v2"
)

// JobScheduler runs the periodic background jobs.
type JobScheduler struct {
	scheduler gocron.Scheduler
	refresher *jobs.StatsRefresher
}

func NewJobScheduler(refresher *jobs.StatsRefresher, statsInterval time.Duration) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	js := &JobScheduler{
		scheduler: scheduler,
		refresher: refresher,
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(statsInterval),
		gocron.NewTask(js.refreshTenantStats),
		gocron.WithName("tenant-stats-refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	return js, nil
}

func (js *JobScheduler) Start() {
	log.Printf("Starting background job scheduler")
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	log.Printf("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) refreshTenantStats() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := js.refresher.Refresh(ctx); err != nil {
		log.Printf("Tenant stats refresh failed: %v", err)
	}
}
