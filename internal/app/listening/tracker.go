// Package listening provides cumulative listening-time tracking and ad
// cadence decisions.
package listening

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/cadenza-audio/cadenza/internal/infra/store"
)

const (
	sessionKey  = "listening:session"
	scheduleKey = "listening:schedule"

	// DefaultAdInterval is the cadence between scheduled ads.
	DefaultAdInterval = 10 * time.Minute

	// DefaultTickInterval re-notifies subscribers while tracking is active
	// so the UI can show time-until-next-ad without new playback events.
	DefaultTickInterval = 30 * time.Second
)

// Update is delivered to subscribers on every tracker change.
type Update struct {
	TotalTime time.Duration
	AdDue     bool
}

// persistedSession is the stored shape of the listening session.
type persistedSession struct {
	SessionID string `json:"sessionId"`
	StartedAt int64  `json:"startedAt"`
	TotalMs   int64  `json:"totalMs"`
}

// persistedSchedule is the stored shape of the ad schedule.
type persistedSchedule struct {
	NextAdAtMs   int64 `json:"nextAdAtMs"`
	AdIntervalMs int64 `json:"adIntervalMs"`
}

// Tracker measures cumulative active listening time and decides when an ad
// is due. State survives restarts through the store; corrupt or missing
// state silently resets to zero.
type Tracker struct {
	mu sync.Mutex

	store        store.Store
	adInterval   time.Duration
	tickInterval time.Duration
	now          func() time.Time

	sessionID   string
	startedAt   time.Time
	accumulated time.Duration
	nextAdAt    time.Duration // Cumulative threshold; 0 means the first ad fires immediately

	tracking      bool
	paused        bool
	intervalStart time.Time

	subscribers map[string]func(Update)
	tickCancel  context.CancelFunc
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the tracker's time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithTickInterval overrides the periodic re-notify cadence. Used in tests.
func WithTickInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.tickInterval = d
		}
	}
}

// NewTracker creates a tracker, rehydrating persisted state from s.
func NewTracker(s store.Store, adInterval time.Duration, opts ...Option) *Tracker {
	if adInterval <= 0 {
		adInterval = DefaultAdInterval
	}

	t := &Tracker{
		store:        s,
		adInterval:   adInterval,
		tickInterval: DefaultTickInterval,
		now:          time.Now,
		subscribers:  make(map[string]func(Update)),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.rehydrate()
	return t
}

// rehydrate loads persisted session and schedule state, falling back to a
// fresh zeroed state on any failure.
func (t *Tracker) rehydrate() {
	t.sessionID = uuid.New().String()
	t.startedAt = t.now()

	if data, err := t.store.Get(sessionKey); err == nil {
		var ps persistedSession
		if err := json.Unmarshal(data, &ps); err == nil && ps.SessionID != "" {
			t.sessionID = ps.SessionID
			t.startedAt = time.Unix(ps.StartedAt, 0)
			t.accumulated = time.Duration(ps.TotalMs) * time.Millisecond
		} else {
			zlog.Warn().Msgf("listening: discarding corrupt session state: %v", err)
		}
	}

	if data, err := t.store.Get(scheduleKey); err == nil {
		var sc persistedSchedule
		if err := json.Unmarshal(data, &sc); err == nil {
			t.nextAdAt = time.Duration(sc.NextAdAtMs) * time.Millisecond
		} else {
			zlog.Warn().Msgf("listening: discarding corrupt schedule state: %v", err)
		}
	}
}

// StartTracking begins active measurement. No-op if already tracking.
func (t *Tracker) StartTracking() {
	t.mu.Lock()
	if t.tracking {
		t.mu.Unlock()
		return
	}
	t.tracking = true
	t.paused = false
	t.intervalStart = t.now()

	ctx, cancel := context.WithCancel(context.Background())
	t.tickCancel = cancel
	t.persistLocked()
	t.mu.Unlock()

	go t.tickLoop(ctx)
}

// StopTracking ends active measurement. No-op if not tracking.
func (t *Tracker) StopTracking() {
	t.mu.Lock()
	if !t.tracking {
		t.mu.Unlock()
		return
	}
	if !t.paused {
		t.accumulated += t.now().Sub(t.intervalStart)
	}
	t.tracking = false
	t.paused = false
	if t.tickCancel != nil {
		t.tickCancel()
		t.tickCancel = nil
	}
	t.persistLocked()
	t.mu.Unlock()

	t.notify()
}

// PauseTracking folds the current active interval into the accumulated
// total. Driven by the playback isPlaying flag, not user intent, so that
// external pauses are captured too.
func (t *Tracker) PauseTracking() {
	t.mu.Lock()
	if !t.tracking || t.paused {
		t.mu.Unlock()
		return
	}
	t.accumulated += t.now().Sub(t.intervalStart)
	t.paused = true
	t.persistLocked()
	t.mu.Unlock()

	t.notify()
}

// ResumeTracking restarts the active interval marker after a pause.
func (t *Tracker) ResumeTracking() {
	t.mu.Lock()
	if !t.tracking || !t.paused {
		t.mu.Unlock()
		return
	}
	t.paused = false
	t.intervalStart = t.now()
	t.mu.Unlock()

	t.notify()
}

// TotalListeningTime returns accumulated time plus the in-flight active
// interval when tracking.
func (t *Tracker) TotalListeningTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalLocked()
}

func (t *Tracker) totalLocked() time.Duration {
	total := t.accumulated
	if t.tracking && !t.paused {
		total += t.now().Sub(t.intervalStart)
	}
	return total
}

// ShouldPlayAd reports whether an ad is due. The first ad (threshold zero)
// fires immediately; afterwards an ad is due whenever the cumulative
// listening time reaches the next threshold.
func (t *Tracker) ShouldPlayAd() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shouldPlayAdLocked()
}

func (t *Tracker) shouldPlayAdLocked() bool {
	if t.nextAdAt == 0 {
		return true
	}
	return t.totalLocked() >= t.nextAdAt
}

// MarkAdPlayed advances the schedule: the next ad is due one interval of
// listening time from now.
func (t *Tracker) MarkAdPlayed() {
	t.mu.Lock()
	t.nextAdAt = t.totalLocked() + t.adInterval
	t.persistLocked()
	t.mu.Unlock()

	t.notify()
}

// NextAdAt returns the cumulative-time threshold for the next ad.
func (t *Tracker) NextAdAt() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextAdAt
}

// SessionID returns the listening session ID.
func (t *Tracker) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Subscribe registers a listener for tracker updates and returns an
// unsubscribe function. Listener panics are isolated and logged.
func (t *Tracker) Subscribe(cb func(Update)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := uuid.New().String()
	t.subscribers[id] = cb
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subscribers, id)
	}
}

// Close stops tracking and persists final state.
func (t *Tracker) Close() {
	t.StopTracking()
}

// notify delivers the current update to all subscribers outside the lock.
func (t *Tracker) notify() {
	t.mu.Lock()
	update := Update{
		TotalTime: t.totalLocked(),
		AdDue:     t.shouldPlayAdLocked(),
	}
	subs := make([]func(Update), 0, len(t.subscribers))
	for _, cb := range t.subscribers {
		subs = append(subs, cb)
	}
	t.mu.Unlock()

	for _, cb := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					zlog.Error().Msgf("listening: subscriber panicked: %v", r)
				}
			}()
			cb(update)
		}()
	}
}

// tickLoop re-notifies subscribers periodically while tracking is active.
func (t *Tracker) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(t.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.notify()
		}
	}
}

// persistLocked serializes session and schedule state to the store.
// Must be called with the lock held.
func (t *Tracker) persistLocked() {
	ps := persistedSession{
		SessionID: t.sessionID,
		StartedAt: t.startedAt.Unix(),
		TotalMs:   t.totalLocked().Milliseconds(),
	}
	if data, err := json.Marshal(ps); err == nil {
		if err := t.store.Set(sessionKey, data); err != nil {
			zlog.Warn().Msgf("listening: failed to persist session: %v", err)
		}
	}

	sc := persistedSchedule{
		NextAdAtMs:   t.nextAdAt.Milliseconds(),
		AdIntervalMs: t.adInterval.Milliseconds(),
	}
	if data, err := json.Marshal(sc); err == nil {
		if err := t.store.Set(scheduleKey, data); err != nil {
			zlog.Warn().Msgf("listening: failed to persist schedule: %v", err)
		}
	}
}
