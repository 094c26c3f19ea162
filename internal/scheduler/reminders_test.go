package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare/internal/notify"
	"mindcare/internal/store"
)

var base = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type pushCall struct {
	token string
	n     notify.Notification
}

type fakePusher struct {
	mu    sync.Mutex
	calls []pushCall
	fail  map[string]error
}

func (f *fakePusher) Push(_ context.Context, token string, n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[token]; err != nil {
		return err
	}
	f.calls = append(f.calls, pushCall{token: token, n: n})
	return nil
}

func newStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewFileStore(filepath.Join(t.TempDir(), "memory.json"))
	require.NoError(t, err)
	return s
}

func seed(t *testing.T, s store.Store, identity string, events ...store.Event) {
	t.Helper()
	require.NoError(t, store.UpdateUser(context.Background(), s, identity, base, func(rec *store.UserRecord) error {
		for _, ev := range events {
			rec.AddEvent(ev)
		}
		return nil
	}))
}

func event(id, title string, at time.Time) store.Event {
	return store.Event{ID: id, Title: title, Timestamp: at.UnixMilli(), CreatedAt: base.Add(-time.Hour).UnixMilli()}
}

func flags(t *testing.T, s store.Store, identity, id string) store.Notified {
	t.Helper()
	rec, err := store.Snapshot(context.Background(), s, identity)
	require.NoError(t, err)
	ev := rec.EventByID(id)
	require.NotNil(t, ev)
	return ev.Notified
}

func TestDueMilestones(t *testing.T) {
	w := DefaultWindows()
	ev := event("e", "exam", base)
	cases := []struct {
		name string
		now  time.Time
		want []store.Milestone
	}{
		{"far before", base.Add(-10 * time.Minute), nil},
		{"window edge", base.Add(-5 * time.Minute), []store.Milestone{store.MilestoneBefore}},
		{"inside window", base.Add(-time.Minute), []store.Milestone{store.MilestoneBefore}},
		{"at event", base, nil},
		{"too soon after", base.Add(time.Minute), nil},
		{"after delay", base.Add(2 * time.Minute), []store.Milestone{store.MilestoneAfter}},
		{"late but bounded", base.Add(2 * time.Hour), []store.Milestone{store.MilestoneAfter}},
		{"stale", base.Add(3 * time.Hour), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DueMilestones(ev, tc.now, w))
		})
	}
}

func TestDueMilestones_RespectsFlagsAndBounds(t *testing.T) {
	ev := event("e", "exam", base)
	ev.Notified = store.Notified{Before: true, After: true}
	assert.Empty(t, DueMilestones(ev, base.Add(-time.Minute), DefaultWindows()))
	assert.Empty(t, DueMilestones(ev, base.Add(5*time.Minute), DefaultWindows()))

	unbounded := DefaultWindows()
	unbounded.AfterMax = 0
	fresh := event("e", "exam", base)
	assert.Equal(t, []store.Milestone{store.MilestoneAfter}, DueMilestones(fresh, base.Add(72*time.Hour), unbounded))

	narrow := Windows{BeforeMin: 3 * time.Minute, Before: 5 * time.Minute}
	assert.Empty(t, DueMilestones(fresh, base.Add(-2*time.Minute), narrow), "below lower bound")
}

// Scenario C: 4 minutes to go, window (3,5] -> fires once; a tick 10s later does not.
func TestTick_BeforeFiresExactlyOnce(t *testing.T) {
	s := newStore(t)
	seed(t, s, "tok-a", event("e1", "exam", base.Add(4*time.Minute)))
	p := &fakePusher{}
	now := base
	d := NewDispatcher(s, p, Windows{BeforeMin: 3 * time.Minute, Before: 5 * time.Minute, AfterDelay: 2 * time.Minute}, time.Second).
		WithClock(func() time.Time { return now })

	report, err := d.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickReport{Due: 1, Fired: 1}, report)
	require.Len(t, p.calls, 1)
	assert.Equal(t, "tok-a", p.calls[0].token)
	assert.Equal(t, "before", p.calls[0].n.Data["milestone"])
	assert.Equal(t, "e1", p.calls[0].n.Data["eventId"])
	assert.Contains(t, p.calls[0].n.Body, "exam")
	assert.True(t, flags(t, s, "tok-a", "e1").Before)

	now = base.Add(10 * time.Second)
	report, err = d.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickReport{}, report)
	assert.Len(t, p.calls, 1)
}

func TestTick_AfterMilestone(t *testing.T) {
	s := newStore(t)
	seed(t, s, "tok-a", event("e1", "interview", base.Add(-3*time.Minute)))
	p := &fakePusher{}
	d := NewDispatcher(s, p, DefaultWindows(), 0).WithClock(func() time.Time { return base })

	_, err := d.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, p.calls, 1)
	assert.Equal(t, "How was your interview? 😤💙", p.calls[0].n.Body)
	got := flags(t, s, "tok-a", "e1")
	assert.True(t, got.After)
	assert.False(t, got.Before, "a missed before window stays unfired")

	_, err = d.Tick(context.Background())
	require.NoError(t, err)
	assert.Len(t, p.calls, 1)
}

func TestTick_FailureIsRetriedAndDoesNotBlockOthers(t *testing.T) {
	s := newStore(t)
	seed(t, s, "tok-bad", event("b1", "quiz", base.Add(3*time.Minute)))
	seed(t, s, "tok-good", event("g1", "test", base.Add(3*time.Minute)))
	p := &fakePusher{fail: map[string]error{"tok-bad": errors.New("provider down")}}
	now := base
	d := NewDispatcher(s, p, DefaultWindows(), time.Second).WithClock(func() time.Time { return now })

	report, err := d.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickReport{Due: 2, Fired: 1, Failed: 1}, report)
	assert.False(t, flags(t, s, "tok-bad", "b1").Before)
	assert.True(t, flags(t, s, "tok-good", "g1").Before)

	// Provider recovers while the window is still open.
	p.fail = nil
	now = base.Add(30 * time.Second)
	report, err = d.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickReport{Due: 1, Fired: 1}, report)
	assert.True(t, flags(t, s, "tok-bad", "b1").Before)
}

func TestTick_ConcurrentTicksDeliverOnce(t *testing.T) {
	s := newStore(t)
	seed(t, s, "tok", event("e1", "exam", base.Add(2*time.Minute)))
	p := &fakePusher{}
	d := NewDispatcher(s, p, DefaultWindows(), time.Second).WithClock(func() time.Time { return base })

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Tick(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, p.calls, 1)
}

// staleStore hands out an old document on its first Load, like a tick that started before
// another process persisted a flag.
type staleStore struct {
	store.Store
	stale *store.Document
	once  sync.Once
}

func (s *staleStore) Load(ctx context.Context) (*store.Document, error) {
	var doc *store.Document
	s.once.Do(func() { doc = s.stale })
	if doc != nil {
		return doc, nil
	}
	return s.Store.Load(ctx)
}

func TestTick_SkipsMilestoneFiredSinceSnapshot(t *testing.T) {
	s := newStore(t)
	seed(t, s, "tok", event("e1", "exam", base.Add(2*time.Minute)))
	old, err := s.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.UpdateUser(context.Background(), s, "tok", base, func(rec *store.UserRecord) error {
		rec.EventByID("e1").Notified.Mark(store.MilestoneBefore)
		return nil
	}))

	p := &fakePusher{}
	d := NewDispatcher(&staleStore{Store: s, stale: old}, p, DefaultWindows(), time.Second).
		WithClock(func() time.Time { return base })
	report, err := d.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickReport{Due: 1, Skipped: 1}, report)
	assert.Empty(t, p.calls)
}

// markingPusher persists the flag while delivering, as a second dispatcher would.
type markingPusher struct {
	fakePusher
	st store.Store
}

func (m *markingPusher) Push(ctx context.Context, token string, n notify.Notification) error {
	err := store.UpdateUser(ctx, m.st, token, base, func(rec *store.UserRecord) error {
		rec.EventByID(n.Data["eventId"]).Notified.Mark(store.Milestone(n.Data["milestone"]))
		return nil
	})
	if err != nil {
		return err
	}
	return m.fakePusher.Push(ctx, token, n)
}

func TestMarkFired_RechecksInsideTransaction(t *testing.T) {
	s := newStore(t)
	seed(t, s, "tok", event("e1", "exam", base.Add(2*time.Minute)))
	d := NewDispatcher(s, &markingPusher{st: s}, DefaultWindows(), time.Second)

	dup, err := d.markFired(context.Background(), "tok", "e1", store.MilestoneBefore)
	require.NoError(t, err)
	assert.False(t, dup)
	dup, err = d.markFired(context.Background(), "tok", "e1", store.MilestoneBefore)
	require.NoError(t, err)
	assert.True(t, dup)

	seed(t, s, "tok", event("e2", "viva", base.Add(3*time.Minute)))
	report, err := d.WithClock(func() time.Time { return base }).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickReport{Due: 1, Fired: 1}, report)
	assert.True(t, flags(t, s, "tok", "e2").Before)
}

type brokenStore struct{ store.Store }

func (brokenStore) Load(context.Context) (*store.Document, error) {
	return nil, errors.New("disk gone")
}

func TestTick_LoadErrorAborts(t *testing.T) {
	d := NewDispatcher(brokenStore{}, &fakePusher{}, DefaultWindows(), 0)
	_, err := d.Tick(context.Background())
	assert.Error(t, err)
	assert.Error(t, d.Run(context.Background()))
}

func TestBuildNotification(t *testing.T) {
	ev := event("e9", "viva", base)
	n := BuildNotification(ev, store.MilestoneBefore)
	assert.Equal(t, "⏰ viva soon", n.Title)
	assert.Equal(t, map[string]string{"eventId": "e9", "milestone": "before", "title": "viva"}, n.Data)
}
