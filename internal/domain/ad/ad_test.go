package ad

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCampaign_IsActiveAt(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		campaign Campaign
		expected bool
	}{
		{
			name: "window contains now with active ad",
			campaign: Campaign{
				StartDate: now.AddDate(0, -1, 0),
				EndDate:   now.AddDate(0, 1, 0),
				Ads:       []Ad{{ID: "ad-1", Active: true}},
			},
			expected: true,
		},
		{
			name: "window not yet started",
			campaign: Campaign{
				StartDate: now.AddDate(0, 0, 1),
				EndDate:   now.AddDate(0, 1, 0),
				Ads:       []Ad{{ID: "ad-1", Active: true}},
			},
			expected: false,
		},
		{
			name: "window already ended",
			campaign: Campaign{
				StartDate: now.AddDate(0, -2, 0),
				EndDate:   now.AddDate(0, -1, 0),
				Ads:       []Ad{{ID: "ad-1", Active: true}},
			},
			expected: false,
		},
		{
			name: "no active ads",
			campaign: Campaign{
				StartDate: now.AddDate(0, -1, 0),
				EndDate:   now.AddDate(0, 1, 0),
				Ads:       []Ad{{ID: "ad-1", Active: false}, {ID: "ad-2", Active: false}},
			},
			expected: false,
		},
		{
			name: "no ads at all",
			campaign: Campaign{
				StartDate: now.AddDate(0, -1, 0),
				EndDate:   now.AddDate(0, 1, 0),
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.campaign.IsActiveAt(now))
		})
	}
}

func TestCampaign_ActiveAds(t *testing.T) {
	c := Campaign{
		Ads: []Ad{
			{ID: "ad-1", Active: true},
			{ID: "ad-2", Active: false},
			{ID: "ad-3", Active: true},
		},
	}

	ads := c.ActiveAds()
	assert.Len(t, ads, 2)
	assert.Equal(t, "ad-1", ads[0].ID)
	assert.Equal(t, "ad-3", ads[1].ID)
}
