package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
catalog:
  base_url: https://api.example.com
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 5, cfg.Player.SkipLimit)
	assert.Equal(t, 10*time.Minute, cfg.Player.AdInterval())
	assert.Equal(t, 10*time.Second, cfg.Player.AdFallbackDuration())
	assert.Equal(t, 5*time.Second, cfg.Player.CanPlayTimeout())
	assert.Equal(t, 1.0, cfg.Player.Volume)
}

func TestLoad_MissingCatalogURL(t *testing.T) {
	path := writeConfig(t, `
player:
  skip_limit: 3
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
catalog:
  base_url: https://api.example.com
  token: file-token
account:
  authenticated: true
  premium: false
player:
  skip_limit: 3
  ad_interval_min: 5
ads:
  catalog_file: /etc/cadenza/campaigns.yaml
  watch: true
discovery:
  providers:
    - type: recommendations
      display_name: For you
    - type: popular
      display_name: Charts
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.Account.Authenticated)
	assert.False(t, cfg.Account.Premium)
	assert.Equal(t, 3, cfg.Player.SkipLimit)
	assert.Equal(t, 5*time.Minute, cfg.Player.AdInterval())
	assert.True(t, cfg.Ads.Watch)
	require.Len(t, cfg.Discovery.Providers, 2)
	assert.Equal(t, "recommendations", cfg.Discovery.Providers[0].Type)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CATALOG_TOKEN", "env-token")

	path := writeConfig(t, `
catalog:
  base_url: https://api.example.com
  token: file-token
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Catalog.Token)
}

func TestLoad_SpotifyProviderRequiresCredentials(t *testing.T) {
	path := writeConfig(t, `
catalog:
  base_url: https://api.example.com
discovery:
  providers:
    - type: spotify_playlist
      display_name: DJ selection
      settings:
        playlist_url: https://open.spotify.com/playlist/abc123
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "spotify credentials")
}

func TestLoad_InvalidSkipLimit(t *testing.T) {
	path := writeConfig(t, `
catalog:
  base_url: https://api.example.com
player:
  skip_limit: -1
`)

	_, err := Load(path)
	assert.Error(t, err)
}
