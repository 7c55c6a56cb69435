package player

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/cadenza-audio/cadenza/internal/app/audio"
	"github.com/cadenza-audio/cadenza/internal/domain/account"
	"github.com/cadenza-audio/cadenza/internal/domain/ad"
	"github.com/cadenza-audio/cadenza/internal/domain/track"
	"github.com/cadenza-audio/cadenza/internal/infra/metrics"
)

// DefaultAdFallbackDuration is the blocking window honored when an ad is due
// but no playable ad asset is available.
const DefaultAdFallbackDuration = 10 * time.Second

const discoveryFetchLimit = 10

// AdScheduler is the ad-catalog collaborator consumed by the player.
type AdScheduler interface {
	ShouldPlayAd() bool
	PlayNextAd() *ad.Ad
	FinishCurrentAd()
}

// ListeningTracker drives listening-time measurement from playback state.
type ListeningTracker interface {
	StartTracking()
	StopTracking()
	PauseTracking()
	ResumeTracking()
}

// SkipBudget gates skip-to-next for throttled accounts.
type SkipBudget interface {
	Limit() int
	Count() int
	TryConsume() bool
}

// StreamResolver resolves the canonical streaming endpoint for a track ID.
type StreamResolver interface {
	StreamEndpoint(trackID string) string
}

// TrackFinder supplies replacement tracks when the queue runs out.
type TrackFinder interface {
	Tracks(ctx context.Context, limit int, excludeIDs map[string]bool) ([]track.Track, error)
}

// Snapshot is the full observable player state handed to subscribers.
type Snapshot struct {
	State              State
	CurrentSong        *track.Track
	IsPlaying          bool
	IsAdPlaying        bool
	CurrentAd          *ad.Ad
	Position           time.Duration
	Duration           time.Duration
	Volume             float64
	Queue              []track.Track
	CurrentIndex       int
	QueueSource        track.QueueSource
	Shuffled           bool
	SkipCount          int
	SkipLimit          int
	ShowSkipLimitModal bool
}

// Config holds player configuration.
type Config struct {
	AdFallbackDuration time.Duration // Blocking window when an ad asset is unavailable
	Seed               int64         // Shuffle/pick seed, 0 means time-based
}

// Player is the playback orchestrator. All state mutation is serialized
// through its lock; the shared audio engine is only ever touched from here.
type Player struct {
	engine    *audio.Engine
	scheduler AdScheduler
	tracker   ListeningTracker
	budget    SkipBudget
	account   account.Source
	resolver  StreamResolver
	finder    TrackFinder // May be nil when no discovery chain is configured

	adFallback time.Duration

	mu                 sync.Mutex
	state              State
	queue              *Queue
	current            *track.Track
	currentAd          *ad.Ad
	pendingSong        *track.Track
	adTimerCancel      func()
	shuffled           bool
	showSkipLimitModal bool
	token              uint64 // Latest play-request token issued by this player
	rng                *rand.Rand

	subsMu sync.RWMutex
	subs   map[string]func(Snapshot)

	notifyCh chan Snapshot

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a player and starts consuming engine events.
func New(engine *audio.Engine, scheduler AdScheduler, tracker ListeningTracker, budget SkipBudget, acct account.Source, resolver StreamResolver, finder TrackFinder, cfg Config) *Player {
	if cfg.AdFallbackDuration <= 0 {
		cfg.AdFallbackDuration = DefaultAdFallbackDuration
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		engine:     engine,
		scheduler:  scheduler,
		tracker:    tracker,
		budget:     budget,
		account:    acct,
		resolver:   resolver,
		finder:     finder,
		adFallback: cfg.AdFallbackDuration,
		state:      StateIdle,
		queue:      NewQueue(),
		rng:        rand.New(rand.NewSource(seed)),
		subs:       make(map[string]func(Snapshot)),
		notifyCh:   make(chan Snapshot, 64),
		ctx:        ctx,
		cancel:     cancel,
	}

	go p.eventLoop(ctx)
	go p.notifyLoop(ctx)
	return p
}

// Close stops the event loop and releases the engine and tracker.
func (p *Player) Close() {
	p.mu.Lock()
	p.cancelAdTimerLocked()
	p.mu.Unlock()

	p.cancel()
	p.tracker.StopTracking()
	p.engine.Close()
}

// PlaySong requests playback of a track. For ad-gated accounts a due ad (or
// its blocking window) plays first and the track is stored as the pending
// song; the ad-to-song handoff then happens asynchronously. Local sources
// are never ad-gated.
func (p *Player) PlaySong(ctx context.Context, t track.Track) error {
	p.mu.Lock()
	acct := p.account.Account()
	if !t.IsLocal() && !acct.AdExempt() && p.scheduler.ShouldPlayAd() {
		p.startAdLocked(t)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	return p.startSong(ctx, t)
}

// PlayQueue replaces the queue wholesale, resets the shuffle flag, and plays
// the track at startIndex.
func (p *Player) PlayQueue(ctx context.Context, tracks []track.Track, startIndex int, source track.QueueSource) error {
	if len(tracks) == 0 {
		return errors.New("cannot play an empty queue")
	}

	p.mu.Lock()
	p.queue.Replace(tracks, startIndex, source)
	p.shuffled = false
	t, _ := p.queue.At(p.queue.Index())
	p.mu.Unlock()

	return p.PlaySong(ctx, t)
}

// Pause halts playback. The listening tracker is paused off the isPlaying
// transition so external pauses count too.
func (p *Player) Pause() {
	p.engine.Pause()

	p.mu.Lock()
	if p.state == StatePlayingSong {
		p.state = StatePaused
	}
	p.tracker.PauseTracking()
	p.notifyLocked()
	p.mu.Unlock()
}

// Resume restarts a paused song.
func (p *Player) Resume() error {
	p.mu.Lock()
	if p.state != StatePaused {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.engine.Resume(); err != nil {
		return errors.Wrap(err, "failed to resume playback")
	}

	p.mu.Lock()
	p.state = StatePlayingSong
	p.tracker.ResumeTracking()
	p.notifyLocked()
	p.mu.Unlock()
	return nil
}

// Stop halts playback and resets the position to the start.
func (p *Player) Stop() {
	p.engine.Stop()

	p.mu.Lock()
	p.state = StateIdle
	p.tracker.PauseTracking()
	p.notifyLocked()
	p.mu.Unlock()
}

// Seek moves the playback position.
func (p *Player) Seek(pos time.Duration) {
	p.engine.Seek(pos)

	p.mu.Lock()
	p.notifyLocked()
	p.mu.Unlock()
}

// SetVolume clamps v to [0,1] and applies it.
func (p *Player) SetVolume(v float64) {
	p.engine.SetVolume(v)

	p.mu.Lock()
	p.notifyLocked()
	p.mu.Unlock()
}

// Next advances to the next track. Throttled accounts consume skip budget
// first; an exhausted budget surfaces the skip-limit signal and aborts
// without advancing.
func (p *Player) Next(ctx context.Context) error {
	p.mu.Lock()
	acct := p.account.Account()
	if acct.SkipLimited() {
		if !p.budget.TryConsume() {
			zlog.Info().Msgf("skip blocked by daily limit: count=%d limit=%d", p.budget.Count(), p.budget.Limit())
			metrics.SkipLimitHitsTotal.Inc()
			p.showSkipLimitModal = true
			p.notifyLocked()
			p.mu.Unlock()
			return nil
		}
		metrics.SkipsTotal.Inc()
	}
	p.mu.Unlock()

	return p.advance(ctx)
}

// Previous rewinds or goes back. More than 3 seconds into the current track
// it restarts the track instead of moving queue position; at queue start it
// also just restarts.
func (p *Player) Previous(ctx context.Context) error {
	if p.engine.Position() > 3*time.Second {
		p.Seek(0)
		return nil
	}

	p.mu.Lock()
	prev, ok := p.queue.At(p.queue.Index() - 1)
	p.mu.Unlock()

	if !ok {
		p.Seek(0)
		return nil
	}
	return p.PlaySong(ctx, prev)
}

// ToggleShuffle flips the shuffle flag. Turning shuffle on reorders the
// queue with the currently-playing track pinned to its slot; turning it off
// is a flag flip only, the original order is not retained.
func (p *Player) ToggleShuffle() {
	p.mu.Lock()
	if !p.shuffled && p.queue.Len() > 0 {
		p.queue.Shuffle(p.rng)
	}
	p.shuffled = !p.shuffled
	p.notifyLocked()
	p.mu.Unlock()
}

// AddToQueue appends a track.
func (p *Player) AddToQueue(t track.Track) {
	p.mu.Lock()
	p.queue.Append(t)
	p.notifyLocked()
	p.mu.Unlock()
}

// RemoveFromQueue deletes the track at the given position.
func (p *Player) RemoveFromQueue(index int) {
	p.mu.Lock()
	p.queue.Remove(index)
	p.notifyLocked()
	p.mu.Unlock()
}

// ClearQueue empties the queue.
func (p *Player) ClearQueue() {
	p.mu.Lock()
	p.queue.Clear()
	p.notifyLocked()
	p.mu.Unlock()
}

// DismissAd cancels any in-progress ad immediately: the pending timer is
// stopped, the element paused, and the scheduler told the ad finished. The
// pending song is dropped rather than started; playback stays stopped until
// the user acts. Idempotent.
func (p *Player) DismissAd() {
	p.mu.Lock()
	if p.state != StatePlayingAd {
		p.mu.Unlock()
		return
	}

	p.cancelAdTimerLocked()
	p.state = StateIdle
	p.currentAd = nil
	p.pendingSong = nil
	p.token = p.engine.NextToken() // Invalidate any in-flight ad audio attempt
	p.scheduler.FinishCurrentAd()
	metrics.RecordAdPlay("dismissed")
	p.notifyLocked()
	p.mu.Unlock()

	p.engine.Pause()
}

// AcknowledgeSkipLimit clears the skip-limit signal after the UI has shown it.
func (p *Player) AcknowledgeSkipLimit() {
	p.mu.Lock()
	p.showSkipLimitModal = false
	p.notifyLocked()
	p.mu.Unlock()
}

// Snapshot returns the current observable state.
func (p *Player) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Subscribe registers a listener invoked on every state change. The returned
// function unsubscribes. A panicking listener is isolated and logged, never
// propagated into the player.
func (p *Player) Subscribe(cb func(Snapshot)) func() {
	id := uuid.NewString()
	p.subsMu.Lock()
	p.subs[id] = cb
	p.subsMu.Unlock()

	return func() {
		p.subsMu.Lock()
		delete(p.subs, id)
		p.subsMu.Unlock()
	}
}

// startAdLocked begins the ad phase for a requested track: the track becomes
// the pending song, an ad plays if one is available, and a timer bounds the
// ad window. When no ad asset is available the full fallback window still
// blocks, preserving the monetization cadence.
func (p *Player) startAdLocked(t track.Track) {
	a := p.scheduler.PlayNextAd()

	p.pendingSong = &t
	p.currentAd = a
	p.state = StatePlayingAd

	window := p.adFallback
	if a != nil && a.Duration > 0 {
		window = a.Duration
	}

	p.cancelAdTimerLocked()
	p.adTimerCancel = startWallClockTimer(window, func() {
		p.finishAd("timer")
	})

	if a == nil {
		zlog.Warn().Msg("ad due but none available, blocking for fallback window")
		metrics.RecordAdPlay("unavailable")
		p.notifyLocked()
		return
	}

	zlog.Info().Msgf("playing ad: id=%s title=%s duration=%s", a.ID, a.Title, window)
	token := p.engine.NextToken()
	p.token = token
	adURL := a.AudioURL

	go func() {
		err := p.engine.PlayCandidates(p.ctx, token, []string{adURL})
		if err != nil && !errors.Is(err, audio.ErrSuperseded) {
			// The timer still honors the full window; only the asset failed.
			zlog.Warn().Msgf("ad audio failed, holding blocking window: error=%v", err)
			metrics.RecordAdPlay("failed")
		}
	}()

	p.notifyLocked()
}

// finishAd performs the ad-to-song handoff. The timer, the element's natural
// ended event and an explicit dismiss all race here; the state check makes
// the transition at-most-once.
func (p *Player) finishAd(cause string) {
	p.mu.Lock()
	if p.state != StatePlayingAd {
		p.mu.Unlock()
		return
	}

	zlog.Debug().Msgf("ad finished: cause=%s", cause)
	p.cancelAdTimerLocked()
	p.currentAd = nil
	p.state = StateIdle
	pending := p.pendingSong
	p.pendingSong = nil
	p.scheduler.FinishCurrentAd()
	metrics.RecordAdPlay("completed")
	p.notifyLocked()
	p.mu.Unlock()

	if pending != nil {
		if err := p.startSong(p.ctx, *pending); err != nil {
			zlog.Warn().Msgf("failed to play pending song after ad: track=%s error=%v", pending.ID, err)
		}
	}
}

// startSong resolves candidate URLs and drives the engine. A superseding
// play request aborts silently with no state mutation.
func (p *Player) startSong(ctx context.Context, t track.Track) error {
	token := p.engine.NextToken()
	p.mu.Lock()
	p.token = token
	p.mu.Unlock()

	urls := t.CandidateURLs(p.resolver.StreamEndpoint(t.ID))

	err := p.engine.PlayCandidates(ctx, token, urls)
	if errors.Is(err, audio.ErrSuperseded) {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != token {
		// A newer request took over while we were finishing up.
		return nil
	}

	if err != nil {
		p.state = StateIdle
		metrics.RecordPlay("failure")
		p.notifyLocked()
		return errors.Wrapf(err, "failed to play track %s", t.ID)
	}

	p.queue.Ensure(t)
	p.current = &t
	p.state = StatePlayingSong
	p.tracker.StartTracking()
	p.tracker.ResumeTracking()
	metrics.RecordPlay("success")
	p.notifyLocked()
	return nil
}

// advance moves playback forward: next queued track, then the liked-songs
// loop, then discovery, then an in-queue wrap as the last resort. Discovery
// failures are treated as end-of-content, never surfaced as errors.
func (p *Player) advance(ctx context.Context) error {
	p.mu.Lock()
	next, ok := p.queue.At(p.queue.Index() + 1)
	p.mu.Unlock()

	if ok {
		if err := p.PlaySong(ctx, next); err == nil {
			return nil
		}
		// Fall through to discovery rather than stopping on a dead track.
	}

	p.mu.Lock()
	loop := p.queue.Source() == track.SourceLiked && p.queue.Len() > 0
	first, _ := p.queue.At(0)
	p.mu.Unlock()

	if !ok && loop {
		return p.PlaySong(ctx, first)
	}

	if t, found := p.discoverNext(ctx); found {
		p.mu.Lock()
		p.queue.Append(t)
		p.mu.Unlock()
		return p.PlaySong(ctx, t)
	}

	// Absolute last resort: wrap within the existing queue.
	p.mu.Lock()
	n := p.queue.Len()
	var wrapped track.Track
	if n > 0 {
		wrapped, _ = p.queue.At((p.queue.Index() + 1) % n)
	}
	p.mu.Unlock()

	if n > 0 {
		return p.PlaySong(ctx, wrapped)
	}

	zlog.Info().Msg("no next track available, playback stalls")
	return nil
}

// discoverNext asks the discovery chain for replacements, excludes tracks
// already queued, and picks uniformly at random among the rest.
func (p *Player) discoverNext(ctx context.Context) (track.Track, bool) {
	if p.finder == nil {
		return track.Track{}, false
	}

	p.mu.Lock()
	exclude := p.queue.IDSet()
	p.mu.Unlock()

	candidates, err := p.finder.Tracks(ctx, discoveryFetchLimit, exclude)
	if err != nil {
		zlog.Warn().Msgf("discovery failed: error=%v", err)
		return track.Track{}, false
	}
	if len(candidates) == 0 {
		return track.Track{}, false
	}

	p.mu.Lock()
	pick := candidates[p.rng.Intn(len(candidates))]
	p.mu.Unlock()
	return pick, true
}

// eventLoop consumes engine events: ad/song completion and position updates.
func (p *Player) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-p.engine.Events():
			if !ok {
				return
			}
			p.handleEvent(ev)
		}
	}
}

func (p *Player) handleEvent(ev audio.Event) {
	switch ev.Type {
	case audio.EventEnded:
		p.mu.Lock()
		st := p.state
		p.mu.Unlock()

		if st == StatePlayingAd {
			p.finishAd("ended")
			return
		}
		if st == StatePlayingSong {
			// Natural end of song: advance without consuming skip budget.
			if err := p.advance(p.ctx); err != nil {
				zlog.Warn().Msgf("auto-advance failed: error=%v", err)
			}
		}

	case audio.EventTimeUpdate:
		p.mu.Lock()
		p.notifyLocked()
		p.mu.Unlock()

	case audio.EventError:
		zlog.Warn().Msgf("playback element error: %v", ev.Err)
	}
}

func (p *Player) snapshotLocked() Snapshot {
	return Snapshot{
		State:              p.state,
		CurrentSong:        p.current,
		IsPlaying:          p.state == StatePlayingSong,
		IsAdPlaying:        p.state == StatePlayingAd,
		CurrentAd:          p.currentAd,
		Position:           p.engine.Position(),
		Duration:           p.engine.Duration(),
		Volume:             p.engine.Volume(),
		Queue:              p.queue.Tracks(),
		CurrentIndex:       p.queue.Index(),
		QueueSource:        p.queue.Source(),
		Shuffled:           p.shuffled,
		SkipCount:          p.budget.Count(),
		SkipLimit:          p.budget.Limit(),
		ShowSkipLimitModal: p.showSkipLimitModal,
	}
}

// notifyLocked enqueues the current snapshot for the dispatch loop. Must be
// called with the state lock held. When the queue is full the oldest snapshot
// is dropped so subscribers always converge on the latest state.
func (p *Player) notifyLocked() {
	snap := p.snapshotLocked()
	for {
		select {
		case p.notifyCh <- snap:
			return
		default:
		}
		select {
		case <-p.notifyCh:
		default:
		}
	}
}

// notifyLoop delivers snapshots to subscribers in the order they were taken.
// A single goroutine owns delivery so listeners never observe state changes
// out of order.
func (p *Player) notifyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-p.notifyCh:
			p.subsMu.RLock()
			subs := make([]func(Snapshot), 0, len(p.subs))
			for _, cb := range p.subs {
				subs = append(subs, cb)
			}
			p.subsMu.RUnlock()

			for _, cb := range subs {
				func() {
					defer func() {
						if r := recover(); r != nil {
							zlog.Error().Msgf("player subscriber panicked: %v", r)
						}
					}()
					cb(snap)
				}()
			}
		}
	}
}

func (p *Player) cancelAdTimerLocked() {
	if p.adTimerCancel != nil {
		p.adTimerCancel()
		p.adTimerCancel = nil
	}
}

// startWallClockTimer triggers callback after duration measured on the wall
// clock, so suspend/resume of the host does not shorten ad windows. Returns
// a cancel function.
func startWallClockTimer(duration time.Duration, callback func()) func() {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		end := toWallTime(time.Now()).Add(duration)
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !toWallTime(time.Now()).Before(end) {
					callback()
					return
				}
			}
		}
	}()

	return cancel
}

// toWallTime strips the monotonic clock reading so differences use wall
// clock time.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
