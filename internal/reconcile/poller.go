package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Loader is anything the poller can refresh.
type Loader interface {
	Name() string
	Load(ctx context.Context) error
}

// Poller reloads collections on fixed intervals. A tick is skipped while
// the previous load of the same collection is still running.
type Poller struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func NewPoller(logger *slog.Logger) *Poller {
	return &Poller{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger: logger,
	}
}

// Every schedules l.Load every interval. Each load is bounded by the
// interval itself.
func (p *Poller) Every(interval time.Duration, l Loader) error {
	if interval < time.Second {
		return fmt.Errorf("poll interval %s for %s is below one second", interval, l.Name())
	}

	_, err := p.cron.AddFunc("@every "+interval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		if err := l.Load(ctx); err != nil {
			p.logger.Error("poll failed", "collection", l.Name(), "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s poll: %w", l.Name(), err)
	}

	p.logger.Info("scheduled poll", "collection", l.Name(), "interval", interval.String())
	return nil
}

func (p *Poller) Start() {
	p.cron.Start()
}

// Stop waits for running loads to finish.
func (p *Poller) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
}
