// Package discovery provides fallback track discovery strategies used when
// the play queue runs dry.
package discovery

import (
	"context"

	"github.com/cadenza-audio/cadenza/internal/domain/track"
)

// Provider is the interface for track discovery providers. Different
// implementations source tracks through various strategies (personalized
// recommendations, popularity charts, curated playlists, etc.).
type Provider interface {
	// Tracks retrieves discovery candidates.
	// limit: the number of candidates to retrieve
	// excludeIDs: tracks already queued or recently played (for duplicate avoidance)
	Tracks(ctx context.Context, limit int, excludeIDs map[string]bool) ([]track.Track, error)

	// Name returns the provider name (used in config).
	Name() string
}

// CatalogClient defines the catalog operations needed by discovery providers.
type CatalogClient interface {
	Recommendations(ctx context.Context, limit int) ([]track.Track, error)
	Popular(ctx context.Context, limit int) ([]track.Track, error)
	Random(ctx context.Context, limit int) ([]track.Track, error)
}

// SpotifyClient defines the Spotify operations needed by discovery providers.
type SpotifyClient interface {
	PlaylistTracksRandom(ctx context.Context, playlistURL string, count int) ([]track.Track, error)
}
