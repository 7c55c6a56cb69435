package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_StreamEndpoint(t *testing.T) {
	c, err := New(Config{BaseURL: "https://api.example.com/"})
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/v1/tracks/track-1/stream", c.StreamEndpoint("track-1"))
	assert.Equal(t, "", c.StreamEndpoint(""))
}

func TestClient_Popular(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tracks/popular", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tracks":[
			{"id":"track-1","title":"Song One","artist":"Artist A","durationMs":180000,"audioUrl":"https://cdn.example.com/1.mp3"},
			{"id":"track-2","title":"Song Two","artist":"Artist B","durationMs":210000,"previewUrl":"https://cdn.example.com/2p.mp3"}
		]}`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	tracks, err := c.Popular(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "track-1", tracks[0].ID)
	assert.Equal(t, "Song One", tracks[0].Title)
	assert.Equal(t, 3*time.Minute, tracks[0].Duration)
	assert.Equal(t, "https://cdn.example.com/2p.mp3", tracks[1].PreviewURL)
}

func TestClient_Recommendations_SendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"tracks":[]}`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Token: "secret-token"})
	require.NoError(t, err)

	tracks, err := c.Recommendations(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, tracks)
}

func TestClient_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"code":503,"message":"catalog unavailable"}`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Random(context.Background(), 5)
	assert.ErrorContains(t, err, "catalog unavailable")
}

func TestClient_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Popular(context.Background(), 5)
	assert.Error(t, err)
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
