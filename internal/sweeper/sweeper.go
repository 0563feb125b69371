// Package sweeper periodically persists the derived completed status for
// confirmed bookings whose interval has elapsed. Reads never depend on it;
// it exists so reporting queries see the terminal state without deriving.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type completer interface {
	CompleteFinished(ctx context.Context) (int64, error)
}

type Sweeper struct {
	cron *cron.Cron
	log  *slog.Logger
}

// New schedules the sweep on a cron expression (e.g. "@every 10m"). The sweep
// is
// skipped entirely when schedule is empty.
func New(svc completer, schedule string, timeout time.Duration, log *slog.Logger) (*Sweeper, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "sweeper"))

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		n, err := svc.CompleteFinished(ctx)
		if err != nil {
			log.Error("completed sweep failed", slog.Any("err", err))
			return
		}
		if n > 0 {
			log.Info("completed sweep", slog.Int64("bookings", n))
		}
	})
	if err != nil {
		return nil, err
	}
	return &Sweeper{cron: c, log: log}, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}
