// Package audio provides the playback engine over a single media element.
package audio

import "time"

// EventType represents a media element event type.
type EventType int

const (
	EventCanPlay    EventType = iota // Element buffered enough to start
	EventEnded                       // Playback reached the end of the source
	EventError                       // Source failed to load or decode
	EventTimeUpdate                  // Playback position advanced
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventCanPlay:
		return "can_play"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	case EventTimeUpdate:
		return "time_update"
	default:
		return "unknown"
	}
}

// Event represents a media element event.
type Event struct {
	Type     EventType
	Err      error         // Set for EventError
	Position time.Duration // Set for EventTimeUpdate
}

// Element is the single shared playable media resource. Assigning a new
// source with Load implicitly invalidates whatever was previously loading.
// Implementations deliver events on the channel returned by Events; sends
// must never block playback.
type Element interface {
	// Load resets the element and assigns a new source.
	Load(src string)
	// Play attempts to start playback of the current source. A failure is
	// commonly transient (source not yet buffered) and worth one retry
	// after EventCanPlay.
	Play() error
	// Pause halts playback, keeping the position.
	Pause()
	// Seek moves the playback position. No bounds checking beyond what the
	// element itself enforces.
	Seek(pos time.Duration)
	// SetVolume applies a volume in [0,1].
	SetVolume(v float64)
	// Position returns the current playback position.
	Position() time.Duration
	// Duration returns the duration of the current source, 0 if unknown.
	Duration() time.Duration
	// Source returns the currently assigned source URL.
	Source() string
	// Events returns the element's event stream.
	Events() <-chan Event
}
