// Package track provides the Track domain entity.
package track

import (
	"strings"
	"time"
)

// Track represents a playable unit from the catalog.
// Tracks are fetched externally (API, search, library) and are referenced,
// never owned, by the playback queue.
type Track struct {
	ID         string        // Catalog track ID
	Title      string        // Track title
	Artist     string        // Artist name
	ArtworkURL string        // Album art URL
	Duration   time.Duration // Track duration (0 if unknown)
	AudioURL   string        // Direct audio URL (optional)
	StreamURL  string        // Streaming URL (optional)
	PreviewURL string        // Preview clip URL (optional)
	LocalURL   string        // Local downloaded source, file: or blob: scheme (optional)
}

// IsLocal reports whether the track plays from a local downloaded source.
// Local sources are never subject to ad scheduling.
func (t *Track) IsLocal() bool {
	return strings.HasPrefix(t.LocalURL, "file:") || strings.HasPrefix(t.LocalURL, "blob:")
}

// CandidateURLs returns the playable source candidates in strict priority
// order: the canonical stream endpoint for the track ID, then the direct
// audio URL, stream URL and preview URL. Empty entries are dropped.
// A local track yields exactly its local URL.
func (t *Track) CandidateURLs(streamEndpoint string) []string {
	if t.IsLocal() {
		return []string{t.LocalURL}
	}

	candidates := make([]string, 0, 4)
	for _, u := range []string{streamEndpoint, t.AudioURL, t.StreamURL, t.PreviewURL} {
		if u != "" {
			candidates = append(candidates, u)
		}
	}
	return candidates
}

// HasSource reports whether at least one resolvable audio source exists.
func (t *Track) HasSource() bool {
	return t.AudioURL != "" || t.StreamURL != "" || t.PreviewURL != "" || t.IsLocal()
}

// QueueSource tags the provenance of a playback queue.
type QueueSource string

const (
	SourceLiked          QueueSource = "liked"
	SourcePlaylist       QueueSource = "playlist"
	SourceSearch         QueueSource = "search"
	SourceRecommendation QueueSource = "recommendation"
	SourceManual         QueueSource = "manual"
)
