package discovery

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/cadenza-audio/cadenza/internal/domain/account"
	"github.com/cadenza-audio/cadenza/internal/infra/config"
)

// NewChainFromConfig creates a provider chain from configuration. The
// spotify client may be nil when no spotify_playlist provider is configured.
func NewChainFromConfig(cfg *config.Config, catalog CatalogClient, spotify SpotifyClient, acct account.Source) (*Chain, error) {
	if len(cfg.Discovery.Providers) == 0 {
		return nil, errors.New("no discovery providers configured")
	}

	var providers []ProviderWithMetadata

	for i, pcfg := range cfg.Discovery.Providers {
		var provider Provider
		var err error
		zlog.Debug().Msgf("creating discovery provider: index=%d type=%s settings=%+v", i+1, pcfg.Type, pcfg.Settings)
		switch pcfg.Type {
		case "recommendations":
			provider = NewRecommendationsProvider(catalog, acct)

		case "popular":
			provider = NewPopularProvider(catalog)

		case "random":
			provider = NewRandomProvider(catalog)

		case "spotify_playlist":
			if spotify == nil {
				return nil, errors.Newf("spotify_playlist provider configured without a spotify client (provider index %d)", i)
			}
			provider, err = NewSpotifyPlaylistProvider(spotify, pcfg.Settings)

		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		providers = append(providers, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: pcfg.DisplayName,
		})

		zlog.Info().Msgf("registered discovery provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, pcfg.DisplayName)
	}

	return NewChain(providers), nil
}
