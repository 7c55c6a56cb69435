package discovery

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/cadenza-audio/cadenza/internal/domain/track"
	"github.com/cadenza-audio/cadenza/internal/infra/metrics"
)

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// Chain tries providers in configured order and stops at the first one that
// returns candidates.
type Chain struct {
	providers []ProviderWithMetadata
}

// NewChain creates a new provider chain.
func NewChain(providers []ProviderWithMetadata) *Chain {
	return &Chain{
		providers: providers,
	}
}

// Tracks retrieves candidates from the first provider that succeeds. A
// provider that errors or comes back empty falls through to the next.
func (c *Chain) Tracks(ctx context.Context, limit int, excludeIDs map[string]bool) ([]track.Track, error) {
	for i, pm := range c.providers {
		zlog.Debug().Msgf("trying discovery provider: index=%d total=%d name=%s provider_type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		candidates, err := pm.Provider.Tracks(ctx, limit, excludeIDs)
		if err != nil {
			zlog.Warn().Msgf("discovery provider failed, trying next: provider=%s error=%v", pm.DisplayName, err)
			metrics.DiscoveryFallbacksTotal.WithLabelValues(pm.Provider.Name()).Inc()
			continue
		}

		if len(candidates) == 0 {
			zlog.Debug().Msgf("discovery provider returned no candidates: provider=%s", pm.DisplayName)
			metrics.DiscoveryFallbacksTotal.WithLabelValues(pm.Provider.Name()).Inc()
			continue
		}

		zlog.Info().Msgf("discovery provider returned candidates: provider=%s count=%d",
			pm.DisplayName, len(candidates))
		return candidates, nil
	}

	return nil, errors.New("all discovery providers failed to return candidates")
}

// Name returns the chain name.
func (c *Chain) Name() string {
	return "chain"
}
