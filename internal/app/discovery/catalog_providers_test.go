package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadenza-audio/cadenza/internal/domain/account"
	"github.com/cadenza-audio/cadenza/internal/domain/track"
)

// fakeCatalog serves canned responses for each catalog endpoint.
type fakeCatalog struct {
	recommendations []track.Track
	popular         []track.Track
	random          []track.Track
}

func (f *fakeCatalog) Recommendations(_ context.Context, _ int) ([]track.Track, error) {
	return f.recommendations, nil
}

func (f *fakeCatalog) Popular(_ context.Context, _ int) ([]track.Track, error) {
	return f.popular, nil
}

func (f *fakeCatalog) Random(_ context.Context, _ int) ([]track.Track, error) {
	return f.random, nil
}

func TestRecommendationsProvider_RequiresAuth(t *testing.T) {
	cat := &fakeCatalog{recommendations: someTracks("a")}
	p := NewRecommendationsProvider(cat, account.StaticSource{Acct: account.Account{Authenticated: false}})

	_, err := p.Tracks(context.Background(), 1, nil)
	assert.Error(t, err)
}

func TestRecommendationsProvider_ExcludesKnownIDs(t *testing.T) {
	cat := &fakeCatalog{recommendations: someTracks("a", "b", "c")}
	p := NewRecommendationsProvider(cat, account.StaticSource{Acct: account.Account{Authenticated: true}})

	got, err := p.Tracks(context.Background(), 3, map[string]bool{"b": true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestPopularProvider_DropsSourcelessTracks(t *testing.T) {
	cat := &fakeCatalog{popular: []track.Track{
		{ID: "a", AudioURL: "https://cdn/a"},
		{ID: "b"}, // metadata only, nothing playable
	}}
	p := NewPopularProvider(cat)

	got, err := p.Tracks(context.Background(), 2, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestRandomProvider_Name(t *testing.T) {
	p := NewRandomProvider(&fakeCatalog{})
	assert.Equal(t, "random", p.Name())
}
