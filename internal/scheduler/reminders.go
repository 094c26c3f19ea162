package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"mindcare/internal/notify"
	"mindcare/internal/store"
)

// Windows bounds when each milestone may fire, relative to the event time.
type Windows struct {
	// "before" fires while BeforeMin < timeUntil <= Before.
	BeforeMin time.Duration
	Before    time.Duration
	// "after" fires while AfterDelay <= timeSince <= AfterMax. AfterMax <= 0 means unbounded.
	AfterDelay time.Duration
	AfterMax   time.Duration
}

func DefaultWindows() Windows {
	return Windows{Before: 5 * time.Minute, AfterDelay: 2 * time.Minute, AfterMax: 2 * time.Hour}
}

// DueMilestones lists the milestones of ev that should fire at now and have not fired yet.
func DueMilestones(ev store.Event, now time.Time, w Windows) []store.Milestone {
	until := ev.At().Sub(now)
	var due []store.Milestone

	lower := w.BeforeMin
	if lower < 0 {
		lower = 0
	}
	if !ev.Notified.Before && until > lower && until <= w.Before {
		due = append(due, store.MilestoneBefore)
	}

	since := -until
	if !ev.Notified.After && since >= w.AfterDelay && (w.AfterMax <= 0 || since <= w.AfterMax) {
		due = append(due, store.MilestoneAfter)
	}
	return due
}

// BuildNotification renders the push for a milestone.
func BuildNotification(ev store.Event, m store.Milestone) notify.Notification {
	n := notify.Notification{
		Data: map[string]string{
			"eventId":   ev.ID,
			"milestone": string(m),
			"title":     ev.Title,
		},
	}
	switch m {
	case store.MilestoneBefore:
		n.Title = fmt.Sprintf("⏰ %s soon", ev.Title)
		n.Body = fmt.Sprintf("Your %s starts in a few minutes. You've got this 💙", ev.Title)
	default:
		n.Title = "🧠 MindCare"
		n.Body = fmt.Sprintf("How was your %s? 😤💙", ev.Title)
	}
	return n
}

type TickReport struct {
	Due     int `json:"due"`
	Fired   int `json:"fired"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Dispatcher scans every stored event once per Tick and pushes due milestones.
type Dispatcher struct {
	store   store.Store
	pusher  notify.Pusher
	windows Windows
	timeout time.Duration
	now     func() time.Time

	mu sync.Mutex
}

func NewDispatcher(st store.Store, p notify.Pusher, w Windows, pushTimeout time.Duration) *Dispatcher {
	return &Dispatcher{store: st, pusher: p, windows: w, timeout: pushTimeout, now: time.Now}
}

// WithClock replaces the time source; used by tests and the tick CLI.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Tick delivers every due milestone. A failed delivery leaves the flag unset so the
// next tick retries while the window is open. A successful delivery is persisted
// before moving on. Store errors abort the tick.
func (d *Dispatcher) Tick(ctx context.Context) (TickReport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var report TickReport
	now := d.now()
	doc, err := d.store.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load store: %w", err)
	}

	for _, identity := range doc.Identities() {
		for _, ev := range doc.Users[identity].Events {
			for _, m := range DueMilestones(ev, now, d.windows) {
				report.Due++
				fired, err := d.alreadyFired(ctx, identity, ev.ID, m)
				if err != nil {
					return report, fmt.Errorf("re-read %s flag for event %s: %w", m, ev.ID, err)
				}
				if fired {
					report.Skipped++
					continue
				}
				if err := d.deliver(ctx, identity, ev, m); err != nil {
					report.Failed++
					log.Printf("❌ %s reminder for %q to %s failed: %v", m, ev.Title, notify.Redact(identity), err)
					continue
				}
				dup, err := d.markFired(ctx, identity, ev.ID, m)
				if err != nil {
					return report, fmt.Errorf("persist %s flag for event %s: %w", m, ev.ID, err)
				}
				if dup {
					log.Printf("⚠️ %s reminder for %q to %s was also sent by another writer", m, ev.Title, notify.Redact(identity))
				}
				report.Fired++
				log.Printf("🔔 %s reminder sent for %q to %s", m, ev.Title, notify.Redact(identity))
			}
		}
	}
	return report, nil
}

// Run adapts Tick to the scheduler callback signature.
func (d *Dispatcher) Run(ctx context.Context) error {
	report, err := d.Tick(ctx)
	if report.Due > 0 {
		log.Printf("⏰ Reminder tick: due=%d fired=%d failed=%d", report.Due, report.Fired, report.Failed)
	}
	return err
}

func (d *Dispatcher) deliver(ctx context.Context, identity string, ev store.Event, m store.Milestone) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return d.pusher.Push(ctx, identity, BuildNotification(ev, m))
}

// alreadyFired reads the latest flag for one milestone, since the tick snapshot may be stale.
func (d *Dispatcher) alreadyFired(ctx context.Context, identity, eventID string, m store.Milestone) (bool, error) {
	rec, err := store.Snapshot(ctx, d.store, identity)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	ev := rec.EventByID(eventID)
	return ev != nil && ev.Notified.Has(m), nil
}

// markFired sets the flag inside a store transaction and reports whether it was already set.
func (d *Dispatcher) markFired(ctx context.Context, identity, eventID string, m store.Milestone) (bool, error) {
	var dup bool
	err := d.store.Update(ctx, func(doc *store.Document) error {
		rec, ok := doc.Users[identity]
		if !ok {
			return nil
		}
		ev := rec.EventByID(eventID)
		if ev == nil {
			return nil
		}
		if ev.Notified.Has(m) {
			dup = true
			return nil
		}
		ev.Notified.Mark(m)
		return nil
	})
	return dup, err
}
