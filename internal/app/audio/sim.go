package audio

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

const simTickInterval = 500 * time.Millisecond

// SimElement is a wall-clock simulated media element for headless
// operation: any assigned source becomes ready immediately and "plays" in
// real time for the configured clip duration.
type SimElement struct {
	mu sync.Mutex

	src          string
	pos          time.Duration
	clipDuration time.Duration
	playing      bool
	volume       float64

	events chan Event
	cancel context.CancelFunc
}

// NewSimElement creates a simulated element. clipDuration is the play time
// of any source without a known duration.
func NewSimElement(clipDuration time.Duration) *SimElement {
	if clipDuration <= 0 {
		clipDuration = 30 * time.Second
	}
	return &SimElement{
		clipDuration: clipDuration,
		volume:       1.0,
		events:       make(chan Event, 16),
	}
}

// Load resets the element and assigns a new source. Readiness is signalled
// asynchronously, as a real element would.
func (s *SimElement) Load(src string) {
	s.mu.Lock()
	s.stopTickerLocked()
	s.src = src
	s.pos = 0
	s.playing = false
	s.mu.Unlock()

	if src != "" {
		s.emit(Event{Type: EventCanPlay})
	}
}

// Play starts simulated playback of the current source.
func (s *SimElement) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.src == "" {
		return errors.New("no source assigned")
	}
	if s.playing {
		return nil
	}
	s.playing = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.tickLoop(ctx)
	return nil
}

// Pause halts playback, keeping the position.
func (s *SimElement) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTickerLocked()
	s.playing = false
}

// Seek moves the playback position.
func (s *SimElement) Seek(pos time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pos < 0 {
		pos = 0
	}
	s.pos = pos
}

// SetVolume applies a volume.
func (s *SimElement) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
}

// Position returns the current playback position.
func (s *SimElement) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Duration returns the simulated clip duration.
func (s *SimElement) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.src == "" {
		return 0
	}
	return s.clipDuration
}

// Source returns the currently assigned source URL.
func (s *SimElement) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src
}

// Events returns the element's event stream.
func (s *SimElement) Events() <-chan Event {
	return s.events
}

// Close stops any in-flight playback.
func (s *SimElement) Close() {
	s.Pause()
}

// tickLoop advances the position in wall-clock time until the clip ends.
func (s *SimElement) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(simTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if !s.playing {
				s.mu.Unlock()
				return
			}
			s.pos += simTickInterval
			ended := s.pos >= s.clipDuration
			if ended {
				s.pos = s.clipDuration
				s.playing = false
				s.stopTickerLocked()
			}
			s.mu.Unlock()

			if ended {
				s.emit(Event{Type: EventEnded})
				return
			}
			s.emit(Event{Type: EventTimeUpdate, Position: s.Position()})
		}
	}
}

// stopTickerLocked cancels the tick goroutine.
// Must be called with the lock held.
func (s *SimElement) stopTickerLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// emit delivers an event without blocking.
func (s *SimElement) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}
