// Package scheduler runs periodic maintenance, currently the purge of
// stale persisted conversations.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	spec    string
	purgeFn func(ctx context.Context) (int, error)
}

func New(spec string) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		ctx:    ctx,
		cancel: cancel,
		spec:   spec,
	}
}

// SetPurgeFunction installs the stale-session purge callback.
func (s *Scheduler) SetPurgeFunction(f func(ctx context.Context) (int, error)) {
	s.purgeFn = f
}

func (s *Scheduler) Start() error {
	if s.purgeFn == nil {
		log.Println("purge function not set, scheduler will not run")
		return nil
	}

	_, err := s.cron.AddFunc(s.spec, func() {
		n, err := s.purgeFn(s.ctx)
		if err != nil {
			log.Printf("session purge failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("purged %d stale sessions", n)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("scheduler started, purge runs on %q", s.spec)
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
