package audio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/cadenza-audio/cadenza/internal/infra/metrics"
)

// Errors
var (
	// ErrNoPlayableSource is returned when every candidate URL failed.
	ErrNoPlayableSource = errors.New("no playable source")
	// ErrSuperseded is returned when a newer play request overtook this one.
	// Expected control flow, never surfaced or logged as an error.
	ErrSuperseded = errors.New("play request superseded")
)

// DefaultCanPlayTimeout bounds the wait for media readiness per candidate.
const DefaultCanPlayTimeout = 5 * time.Second

// Engine wraps the shared media element: it resolves candidate source URLs
// with fallback and retry, and exposes transport controls. Overlapping play
// requests have last-call-wins semantics via a monotonic request token.
type Engine struct {
	element        Element
	canPlayTimeout time.Duration

	token uint64 // Monotonic play-request token

	mu     sync.Mutex
	waiter chan Event // Pending readiness waiter for the in-flight attempt
	volume float64

	events chan Event
	cancel context.CancelFunc
}

// NewEngine creates an engine over the given element and starts its event
// dispatch loop.
func NewEngine(element Element, canPlayTimeout time.Duration) *Engine {
	if canPlayTimeout <= 0 {
		canPlayTimeout = DefaultCanPlayTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		element:        element,
		canPlayTimeout: canPlayTimeout,
		volume:         1.0,
		events:         make(chan Event, 16),
		cancel:         cancel,
	}
	go e.dispatchLoop(ctx)
	return e
}

// Events returns the engine's event stream: ended, error and time-update
// events not consumed by an in-flight play attempt.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// NextToken invalidates all in-flight play attempts and returns the token
// for a new one.
func (e *Engine) NextToken() uint64 {
	return atomic.AddUint64(&e.token, 1)
}

// isCurrent reports whether the token still identifies the newest play request.
func (e *Engine) isCurrent(token uint64) bool {
	return atomic.LoadUint64(&e.token) == token
}

// PlayCandidates attempts each candidate URL in order against the element:
// assign, try to play, and on immediate failure wait (bounded) for readiness
// before retrying once. It stops at the first success. Every step re-checks
// the request token and aborts with ErrSuperseded when a newer request has
// taken over; total failure returns ErrNoPlayableSource.
func (e *Engine) PlayCandidates(ctx context.Context, token uint64, urls []string) error {
	if len(urls) == 0 {
		return ErrNoPlayableSource
	}

	for _, url := range urls {
		if !e.isCurrent(token) {
			return ErrSuperseded
		}

		ready := e.armWaiter()
		e.element.Load(url)

		err := e.element.Play()
		if err == nil {
			e.disarmWaiter(ready)
			return nil
		}
		zlog.Debug().Msgf("audio: immediate play failed, awaiting readiness: url=%s error=%v", url, err)

		ev, ok := e.awaitReady(ctx, ready)
		e.disarmWaiter(ready)

		if !e.isCurrent(token) {
			return ErrSuperseded
		}

		if ok && ev.Type == EventCanPlay {
			if err := e.element.Play(); err == nil {
				return nil
			}
		}

		metrics.SourceFallbacksTotal.Inc()
		zlog.Debug().Msgf("audio: candidate failed, falling back: url=%s", url)
	}

	return ErrNoPlayableSource
}

// awaitReady waits for the armed readiness event, bounded by the can-play
// timeout and the caller's context.
func (e *Engine) awaitReady(ctx context.Context, ready <-chan Event) (Event, bool) {
	timer := time.NewTimer(e.canPlayTimeout)
	defer timer.Stop()

	select {
	case ev := <-ready:
		return ev, true
	case <-timer.C:
		return Event{}, false
	case <-ctx.Done():
		return Event{}, false
	}
}

// Pause halts playback.
func (e *Engine) Pause() {
	e.element.Pause()
}

// Resume restarts playback of the current source.
func (e *Engine) Resume() error {
	return e.element.Play()
}

// Stop halts playback and resets the position to the start.
func (e *Engine) Stop() {
	e.element.Pause()
	e.element.Seek(0)
}

// Seek moves the playback position.
func (e *Engine) Seek(pos time.Duration) {
	e.element.Seek(pos)
}

// SetVolume clamps v to [0,1] and applies it.
func (e *Engine) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	e.mu.Lock()
	e.volume = v
	e.mu.Unlock()
	e.element.SetVolume(v)
}

// Volume returns the last applied volume.
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// Position returns the element's playback position.
func (e *Engine) Position() time.Duration {
	return e.element.Position()
}

// Duration returns the current source duration.
func (e *Engine) Duration() time.Duration {
	return e.element.Duration()
}

// Close stops the dispatch loop.
func (e *Engine) Close() {
	e.cancel()
}

// armWaiter registers a buffered channel to capture the next readiness
// event for an in-flight play attempt.
func (e *Engine) armWaiter() chan Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.waiter = make(chan Event, 1)
	return e.waiter
}

// disarmWaiter clears the readiness waiter, but only if it still belongs to
// this attempt. A superseding request may have armed its own waiter already;
// an unwinding older attempt must not clobber it.
func (e *Engine) disarmWaiter(ready chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.waiter == ready {
		e.waiter = nil
	}
}

// dispatchLoop routes element events: readiness events feed an armed play
// attempt, everything else is forwarded to the engine's own stream.
func (e *Engine) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-e.element.Events():
			if !ok {
				return
			}

			if ev.Type == EventCanPlay || ev.Type == EventError {
				e.mu.Lock()
				w := e.waiter
				e.mu.Unlock()
				if w != nil {
					select {
					case w <- ev:
					default:
					}
					continue
				}
				if ev.Type == EventCanPlay {
					// Nobody is waiting to start playback
					continue
				}
			}

			select {
			case e.events <- ev:
			default:
				// Consumer is behind, drop rather than stall the element
			}
		}
	}
}
