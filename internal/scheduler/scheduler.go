package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler drives the reminder tick and the daily report off one cron instance.
type Scheduler struct {
	cron         *cron.Cron
	ctx          context.Context
	cancel       context.CancelFunc
	interval     time.Duration
	reportSpec   string
	reminderFunc func(ctx context.Context) error
	reportFunc   func(ctx context.Context) error
}

// New creates a scheduler. interval is the reminder polling period, reportSpec a
// five-field cron expression evaluated in UTC.
func New(interval time.Duration, reportSpec string) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	logger := cron.VerbosePrintfLogger(log.Default())

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(logger),
			// A slow tick must never overlap the next one.
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		ctx:        ctx,
		cancel:     cancel,
		interval:   interval,
		reportSpec: reportSpec,
	}
}

func (s *Scheduler) SetReminderFunction(f func(ctx context.Context) error) {
	s.reminderFunc = f
}

func (s *Scheduler) SetReportFunction(f func(ctx context.Context) error) {
	s.reportFunc = f
}

func (s *Scheduler) Start() error {
	if s.reminderFunc == nil && s.reportFunc == nil {
		log.Println("⚠️ No scheduled functions set, scheduler will not run")
		return nil
	}

	if s.reminderFunc != nil {
		if s.interval < time.Second {
			return fmt.Errorf("reminder interval %s is below one second", s.interval)
		}
		_, err := s.cron.AddFunc("@every "+s.interval.String(), func() {
			if err := s.reminderFunc(s.ctx); err != nil {
				log.Printf("❌ Reminder tick failed: %v", err)
			}
		})
		if err != nil {
			return err
		}
	}

	if s.reportFunc != nil && s.reportSpec != "" {
		_, err := s.cron.AddFunc(s.reportSpec, func() {
			log.Printf("🕘 Triggered daily report (%s UTC)", s.reportSpec)
			if err := s.reportFunc(s.ctx); err != nil {
				log.Printf("❌ Daily report generation failed: %v", err)
			}
		})
		if err != nil {
			return err
		}
	}

	s.cron.Start()
	log.Printf("📅 Scheduler started - reminders every %s, report at %q UTC", s.interval, s.reportSpec)
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
	log.Println("📅 Scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
