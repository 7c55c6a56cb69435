package listening

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadenza-audio/cadenza/internal/infra/store"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestTracker(t *testing.T) (*Tracker, *fakeClock, *store.MemStore) {
	t.Helper()
	clock := newFakeClock()
	s := store.NewMemStore()
	tr := NewTracker(s, 10*time.Minute, WithClock(clock.Now))
	t.Cleanup(tr.Close)
	return tr, clock, s
}

func TestTracker_FirstAdDueImmediately(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	assert.True(t, tr.ShouldPlayAd())
}

func TestTracker_AdCadence(t *testing.T) {
	tr, clock, _ := newTestTracker(t)
	tr.StartTracking()

	tr.MarkAdPlayed()
	assert.False(t, tr.ShouldPlayAd(), "not due immediately after marking played")

	clock.Advance(9 * time.Minute)
	assert.False(t, tr.ShouldPlayAd(), "not due before the interval elapses")

	clock.Advance(1 * time.Minute)
	assert.True(t, tr.ShouldPlayAd(), "due once listening time reaches the threshold")
}

func TestTracker_PauseStopsAccumulation(t *testing.T) {
	tr, clock, _ := newTestTracker(t)
	tr.StartTracking()

	clock.Advance(2 * time.Minute)
	tr.PauseTracking()
	assert.Equal(t, 2*time.Minute, tr.TotalListeningTime())

	// Time passing while paused does not count
	clock.Advance(30 * time.Minute)
	assert.Equal(t, 2*time.Minute, tr.TotalListeningTime())

	tr.ResumeTracking()
	clock.Advance(3 * time.Minute)
	assert.Equal(t, 5*time.Minute, tr.TotalListeningTime())
}

func TestTracker_StartStopIdempotent(t *testing.T) {
	tr, clock, _ := newTestTracker(t)

	tr.StartTracking()
	tr.StartTracking()
	clock.Advance(time.Minute)
	tr.StopTracking()
	tr.StopTracking()

	assert.Equal(t, time.Minute, tr.TotalListeningTime())

	// Pause/resume outside tracking are no-ops
	tr.PauseTracking()
	tr.ResumeTracking()
	assert.Equal(t, time.Minute, tr.TotalListeningTime())
}

func TestTracker_PersistenceAcrossRestart(t *testing.T) {
	clock := newFakeClock()
	s := store.NewMemStore()

	tr := NewTracker(s, 10*time.Minute, WithClock(clock.Now))
	tr.StartTracking()
	clock.Advance(4 * time.Minute)
	tr.MarkAdPlayed()
	sessionID := tr.SessionID()
	tr.Close()

	// Restart: a fresh tracker on the same store picks up where we left off
	tr2 := NewTracker(s, 10*time.Minute, WithClock(clock.Now))
	defer tr2.Close()

	assert.Equal(t, sessionID, tr2.SessionID())
	assert.Equal(t, 4*time.Minute, tr2.TotalListeningTime())
	assert.Equal(t, 14*time.Minute, tr2.NextAdAt())
	assert.False(t, tr2.ShouldPlayAd())
}

func TestTracker_CorruptStateResets(t *testing.T) {
	clock := newFakeClock()
	s := store.NewMemStore()
	require.NoError(t, s.Set("listening:session", []byte("{garbage")))
	require.NoError(t, s.Set("listening:schedule", []byte("not json")))

	tr := NewTracker(s, 10*time.Minute, WithClock(clock.Now))
	defer tr.Close()

	assert.Equal(t, time.Duration(0), tr.TotalListeningTime())
	assert.True(t, tr.ShouldPlayAd(), "fresh state means first ad is due immediately")
}

func TestTracker_SubscribeAndUnsubscribe(t *testing.T) {
	tr, clock, _ := newTestTracker(t)

	var mu sync.Mutex
	var updates []Update
	unsubscribe := tr.Subscribe(func(u Update) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, u)
	})

	tr.StartTracking()
	clock.Advance(time.Minute)
	tr.MarkAdPlayed()

	mu.Lock()
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	mu.Unlock()
	assert.Equal(t, time.Minute, last.TotalTime)
	assert.False(t, last.AdDue)

	unsubscribe()
	mu.Lock()
	n := len(updates)
	mu.Unlock()

	tr.MarkAdPlayed()
	mu.Lock()
	assert.Equal(t, n, len(updates), "no updates after unsubscribe")
	mu.Unlock()
}

func TestTracker_SubscriberPanicIsolated(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	tr.Subscribe(func(Update) {
		panic("listener bug")
	})

	var called bool
	tr.Subscribe(func(Update) {
		called = true
	})

	// Must not panic into the caller, and other subscribers still run
	assert.NotPanics(t, func() { tr.MarkAdPlayed() })
	assert.True(t, called)
}

func TestTracker_TickRenotifiesWhileTracking(t *testing.T) {
	clock := newFakeClock()
	s := store.NewMemStore()
	tr := NewTracker(s, 10*time.Minute,
		WithClock(clock.Now), WithTickInterval(20*time.Millisecond))
	t.Cleanup(tr.Close)

	var mu sync.Mutex
	var count int
	tr.Subscribe(func(Update) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	tr.StartTracking()

	// Updates keep arriving from the tick loop with no mutating calls
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 2
	}, 2*time.Second, 5*time.Millisecond)

	tr.StopTracking()
	mu.Lock()
	after := count
	mu.Unlock()

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, count, after+1, "ticks stop after tracking stops")
}
