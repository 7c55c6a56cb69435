package player

import (
	"math/rand"

	"github.com/cadenza-audio/cadenza/internal/domain/track"
)

// Queue is an ordered sequence of tracks with a current-position index and a
// provenance tag. It is not safe for concurrent use; the Player serializes
// access through its own lock.
type Queue struct {
	tracks []track.Track
	index  int
	source track.QueueSource
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		tracks: make([]track.Track, 0),
		source: track.SourceManual,
	}
}

// Replace swaps in a whole new queue positioned at startIndex. An out-of-range
// startIndex is clamped to the queue bounds.
func (q *Queue) Replace(tracks []track.Track, startIndex int, source track.QueueSource) {
	q.tracks = make([]track.Track, len(tracks))
	copy(q.tracks, tracks)
	q.source = source

	if startIndex < 0 {
		startIndex = 0
	}
	if startIndex >= len(q.tracks) {
		startIndex = len(q.tracks) - 1
	}
	q.index = startIndex
}

// Len returns the number of queued tracks.
func (q *Queue) Len() int {
	return len(q.tracks)
}

// Index returns the current position. Undefined when the queue is empty.
func (q *Queue) Index() int {
	return q.index
}

// Source returns the queue's provenance tag.
func (q *Queue) Source() track.QueueSource {
	return q.source
}

// Tracks returns a copy of the queued tracks.
func (q *Queue) Tracks() []track.Track {
	out := make([]track.Track, len(q.tracks))
	copy(out, q.tracks)
	return out
}

// At returns the track at position i.
func (q *Queue) At(i int) (track.Track, bool) {
	if i < 0 || i >= len(q.tracks) {
		return track.Track{}, false
	}
	return q.tracks[i], true
}

// Contains reports whether a track with the given ID is queued.
func (q *Queue) Contains(id string) bool {
	return q.indexOf(id) >= 0
}

// IDSet returns the queued track IDs as a set, for duplicate exclusion.
func (q *Queue) IDSet() map[string]bool {
	ids := make(map[string]bool, len(q.tracks))
	for _, t := range q.tracks {
		ids[t.ID] = true
	}
	return ids
}

// Append adds a track to the end of the queue.
func (q *Queue) Append(t track.Track) {
	q.tracks = append(q.tracks, t)
}

// Ensure makes t the current track: if already queued the index moves to it,
// otherwise it is appended and the index points at the new tail.
func (q *Queue) Ensure(t track.Track) {
	if i := q.indexOf(t.ID); i >= 0 {
		q.index = i
		return
	}
	q.tracks = append(q.tracks, t)
	q.index = len(q.tracks) - 1
}

// Remove deletes the track at position i. Removing an entry before the
// current index decrements the index so it keeps pointing at the same
// logical track.
func (q *Queue) Remove(i int) {
	if i < 0 || i >= len(q.tracks) {
		return
	}
	q.tracks = append(q.tracks[:i], q.tracks[i+1:]...)

	switch {
	case i < q.index:
		q.index--
	case q.index >= len(q.tracks) && len(q.tracks) > 0:
		q.index = len(q.tracks) - 1
	}
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.tracks = q.tracks[:0]
	q.index = 0
}

// Shuffle performs a Fisher-Yates shuffle, then swaps whatever track landed
// in the current-index slot back with the originally-current track so
// shuffling never interrupts what is playing.
func (q *Queue) Shuffle(rng *rand.Rand) {
	if len(q.tracks) < 2 {
		return
	}

	currentID := q.tracks[q.index].ID

	rng.Shuffle(len(q.tracks), func(i, j int) {
		q.tracks[i], q.tracks[j] = q.tracks[j], q.tracks[i]
	})

	if q.tracks[q.index].ID != currentID {
		if i := q.indexOf(currentID); i >= 0 {
			q.tracks[q.index], q.tracks[i] = q.tracks[i], q.tracks[q.index]
		}
	}
}

func (q *Queue) indexOf(id string) int {
	for i, t := range q.tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
