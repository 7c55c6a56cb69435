package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrack_IsLocal(t *testing.T) {
	tests := []struct {
		name     string
		localURL string
		expected bool
	}{
		{
			name:     "no local source",
			localURL: "",
			expected: false,
		},
		{
			name:     "file scheme",
			localURL: "file:///downloads/track-1.mp3",
			expected: true,
		},
		{
			name:     "blob scheme",
			localURL: "blob:c0ffee-1234",
			expected: true,
		},
		{
			name:     "http url is not local",
			localURL: "https://cdn.example.com/track-1.mp3",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trk := Track{ID: "track-1", LocalURL: tt.localURL}
			assert.Equal(t, tt.expected, trk.IsLocal())
		})
	}
}

func TestTrack_CandidateURLs(t *testing.T) {
	tests := []struct {
		name           string
		track          Track
		streamEndpoint string
		expected       []string
	}{
		{
			name: "all sources present, priority order",
			track: Track{
				ID:         "track-1",
				AudioURL:   "https://cdn.example.com/audio.mp3",
				StreamURL:  "https://cdn.example.com/stream.m3u8",
				PreviewURL: "https://cdn.example.com/preview.mp3",
			},
			streamEndpoint: "https://api.example.com/tracks/track-1/stream",
			expected: []string{
				"https://api.example.com/tracks/track-1/stream",
				"https://cdn.example.com/audio.mp3",
				"https://cdn.example.com/stream.m3u8",
				"https://cdn.example.com/preview.mp3",
			},
		},
		{
			name: "empty entries dropped",
			track: Track{
				ID:         "track-2",
				PreviewURL: "https://cdn.example.com/preview.mp3",
			},
			streamEndpoint: "",
			expected:       []string{"https://cdn.example.com/preview.mp3"},
		},
		{
			name:           "no sources at all",
			track:          Track{ID: "track-3"},
			streamEndpoint: "",
			expected:       []string{},
		},
		{
			name: "local track short-circuits to its single source",
			track: Track{
				ID:       "track-4",
				AudioURL: "https://cdn.example.com/audio.mp3",
				LocalURL: "file:///downloads/track-4.mp3",
			},
			streamEndpoint: "https://api.example.com/tracks/track-4/stream",
			expected:       []string{"file:///downloads/track-4.mp3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.track.CandidateURLs(tt.streamEndpoint))
		})
	}
}

func TestTrack_HasSource(t *testing.T) {
	tests := []struct {
		name     string
		track    Track
		expected bool
	}{
		{
			name:     "no sources",
			track:    Track{ID: "track-1"},
			expected: false,
		},
		{
			name:     "audio url only",
			track:    Track{ID: "track-1", AudioURL: "https://cdn.example.com/a.mp3"},
			expected: true,
		},
		{
			name:     "preview only",
			track:    Track{ID: "track-1", PreviewURL: "https://cdn.example.com/p.mp3"},
			expected: true,
		},
		{
			name:     "local only",
			track:    Track{ID: "track-1", LocalURL: "file:///downloads/t.mp3"},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.track.HasSource())
		})
	}
}
