package discovery

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/cadenza-audio/cadenza/internal/domain/track"
)

type SpotifyPlaylistProviderConfig struct {
	PlaylistURL string `yaml:"playlist_url" mapstructure:"playlist_url" validate:"required"`
}

// SpotifyPlaylistProvider sources tracks by randomly sampling a configured
// Spotify playlist. It maintains an internal cache to minimize API calls.
type SpotifyPlaylistProvider struct {
	spotify SpotifyClient
	cache   []track.Track
	config  *SpotifyPlaylistProviderConfig
}

// NewSpotifyPlaylistProvider creates a new SpotifyPlaylistProvider.
func NewSpotifyPlaylistProvider(spotify SpotifyClient, settings map[string]any) (*SpotifyPlaylistProvider, error) {
	var config SpotifyPlaylistProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("spotify playlist provider config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &SpotifyPlaylistProvider{
		spotify: spotify,
		cache:   make([]track.Track, 0),
		config:  &config,
	}, nil
}

// Tracks retrieves random tracks from the configured playlist. A cache holds
// surplus fetches so repeated calls do not hammer the API.
func (p *SpotifyPlaylistProvider) Tracks(ctx context.Context, limit int, excludeIDs map[string]bool) ([]track.Track, error) {
	if limit <= 0 {
		return []track.Track{}, nil
	}

	available := make([]track.Track, 0)
	for _, t := range p.cache {
		if !excludeIDs[t.ID] {
			available = append(available, t)
		}
	}

	if len(available) < limit {
		fetched, err := p.spotify.PlaylistTracksRandom(ctx, p.config.PlaylistURL, limit*2)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get random tracks from playlist")
		}

		for _, t := range fetched {
			if !excludeIDs[t.ID] && !containsTrack(available, t.ID) && t.HasSource() {
				available = append(available, t)
			}
		}
	}

	if len(available) == 0 {
		return []track.Track{}, nil
	}

	n := limit
	if n > len(available) {
		n = len(available)
	}

	result := available[:n]
	p.cache = available[n:]

	return result, nil
}

// Name returns the provider name.
func (p *SpotifyPlaylistProvider) Name() string {
	return "spotify_playlist"
}

func containsTrack(tracks []track.Track, id string) bool {
	for _, t := range tracks {
		if t.ID == id {
			return true
		}
	}
	return false
}
