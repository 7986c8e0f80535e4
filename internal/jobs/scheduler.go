package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Job interface that all scheduled jobs must implement
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobScheduler runs maintenance jobs on intervals or cron schedules
type JobScheduler struct {
	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewJobScheduler creates a new job scheduler
func NewJobScheduler() (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &JobScheduler{scheduler: scheduler, ctx: ctx, cancel: cancel}, nil
}

// Every registers job to run at a fixed interval
func (s *JobScheduler) Every(interval time.Duration, job Job) error {
	return s.register(gocron.DurationJob(interval), job)
}

// Cron registers job on a standard five-field cron expression
func (s *JobScheduler) Cron(expr string, job Job) error {
	return s.register(gocron.CronJob(expr, false), job)
}

func (s *JobScheduler) register(def gocron.JobDefinition, job Job) error {
	_, err := s.scheduler.NewJob(
		def,
		gocron.NewTask(func() { s.runJob(job) }),
		gocron.WithName(job.Name()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", job.Name(), err)
	}

	log.Printf("✅ [SCHEDULER] Registered job: %s", job.Name())
	return nil
}

// runJob executes a job and logs its outcome
func (s *JobScheduler) runJob(job Job) {
	log.Printf("▶️  [SCHEDULER] Running job: %s", job.Name())
	startTime := time.Now()

	if err := job.Run(s.ctx); err != nil {
		log.Printf("❌ [SCHEDULER] Job '%s' failed: %v", job.Name(), err)
		return
	}

	log.Printf("✅ [SCHEDULER] Job '%s' completed in %v", job.Name(), time.Since(startTime))
}

// Start begins running all registered jobs
func (s *JobScheduler) Start() {
	log.Printf("🚀 [SCHEDULER] Starting job scheduler with %d jobs", len(s.scheduler.Jobs()))
	s.scheduler.Start()
}

// Stop cancels running jobs and waits for them to return
func (s *JobScheduler) Stop() error {
	log.Println("🛑 [SCHEDULER] Stopping job scheduler...")
	s.cancel()
	return s.scheduler.Shutdown()
}
