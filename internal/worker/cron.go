package worker

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/martinsuchenak/assetd/internal/log"
)

// Sweeper runs recurring discovery sweeps on a cron schedule. Each firing
// invokes the run function with a context that is cancelled when the
// sweeper stops; overlapping runs are skipped rather than queued.
type Sweeper struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	running chan struct{}
}

// NewSweeper creates a sweeper with standard cron expression parsing
// (plus the @every descriptor).
func NewSweeper() *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		cron:    cron.New(),
		ctx:     ctx,
		cancel:  cancel,
		running: make(chan struct{}, 1),
	}
}

// Schedule registers a recurring sweep. The spec accepts standard cron
// syntax ("*/10 * * * *") or descriptors ("@every 1h").
func (s *Sweeper) Schedule(spec string, run func(ctx context.Context)) (cron.EntryID, error) {
	return s.cron.AddFunc(spec, func() {
		select {
		case s.running <- struct{}{}:
		default:
			log.Warn("Skipping sweep, previous run still in progress", "schedule", spec)
			return
		}
		defer func() { <-s.running }()

		log.Info("Starting scheduled sweep", "schedule", spec)
		run(s.ctx)
	})
}

// Start begins firing scheduled sweeps.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop cancels the sweep context and waits for the cron runner to wind
// down. A sweep that is mid-run observes the cancellation through its
// context and finalizes.
func (s *Sweeper) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
