package discovery

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/cadenza-audio/cadenza/internal/domain/account"
	"github.com/cadenza-audio/cadenza/internal/domain/track"
)

// RecommendationsProvider sources personalized recommendations from the
// catalog. It only applies to authenticated accounts: recommendations are
// derived from listening history, which anonymous sessions do not have.
type RecommendationsProvider struct {
	catalog CatalogClient
	account account.Source
}

// NewRecommendationsProvider creates a new RecommendationsProvider.
func NewRecommendationsProvider(catalog CatalogClient, acct account.Source) *RecommendationsProvider {
	return &RecommendationsProvider{
		catalog: catalog,
		account: acct,
	}
}

// Tracks retrieves personalized recommendations, excluding known IDs.
func (p *RecommendationsProvider) Tracks(ctx context.Context, limit int, excludeIDs map[string]bool) ([]track.Track, error) {
	if !p.account.Account().Authenticated {
		return nil, errors.New("recommendations require an authenticated account")
	}

	tracks, err := p.catalog.Recommendations(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get recommendations")
	}
	return filterExcluded(tracks, excludeIDs), nil
}

// Name returns the provider name.
func (p *RecommendationsProvider) Name() string {
	return "recommendations"
}

// PopularProvider sources tracks from the catalog's popularity charts.
type PopularProvider struct {
	catalog CatalogClient
}

// NewPopularProvider creates a new PopularProvider.
func NewPopularProvider(catalog CatalogClient) *PopularProvider {
	return &PopularProvider{catalog: catalog}
}

// Tracks retrieves popular tracks, excluding known IDs.
func (p *PopularProvider) Tracks(ctx context.Context, limit int, excludeIDs map[string]bool) ([]track.Track, error) {
	tracks, err := p.catalog.Popular(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get popular tracks")
	}
	return filterExcluded(tracks, excludeIDs), nil
}

// Name returns the provider name.
func (p *PopularProvider) Name() string {
	return "popular"
}

// RandomProvider sources a random catalog sample. It sits last in a typical
// chain as the always-available fallback.
type RandomProvider struct {
	catalog CatalogClient
}

// NewRandomProvider creates a new RandomProvider.
func NewRandomProvider(catalog CatalogClient) *RandomProvider {
	return &RandomProvider{catalog: catalog}
}

// Tracks retrieves random tracks, excluding known IDs.
func (p *RandomProvider) Tracks(ctx context.Context, limit int, excludeIDs map[string]bool) ([]track.Track, error) {
	tracks, err := p.catalog.Random(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get random tracks")
	}
	return filterExcluded(tracks, excludeIDs), nil
}

// Name returns the provider name.
func (p *RandomProvider) Name() string {
	return "random"
}

// filterExcluded drops tracks whose ID is in the exclude set and tracks with
// no playable source.
func filterExcluded(tracks []track.Track, excludeIDs map[string]bool) []track.Track {
	result := make([]track.Track, 0, len(tracks))
	for _, t := range tracks {
		if excludeIDs[t.ID] {
			continue
		}
		if !t.HasSource() {
			continue
		}
		result = append(result, t)
	}
	return result
}
