// Package player orchestrates playback: queue advancement, ad gating,
// skip-limit enforcement and transport control over the shared audio engine.
package player

// State represents the playback state.
type State int

const (
	StateIdle        State = iota // Nothing playing
	StatePlayingAd                // An ad (or its blocking window) is in progress
	StatePlayingSong              // A song is playing
	StatePaused                   // A song is paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlayingAd:
		return "playing_ad"
	case StatePlayingSong:
		return "playing_song"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}
