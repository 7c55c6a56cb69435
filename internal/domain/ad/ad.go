// Package ad provides the advertising domain entities.
package ad

import "time"

// Type represents the ad creative type.
type Type string

const (
	TypeAudio   Type = "audio"
	TypeVideo   Type = "video"
	TypeDisplay Type = "display"
)

// Ad represents a single ad creative within a campaign.
type Ad struct {
	ID          string
	Title       string
	Description string
	AudioURL    string
	Duration    time.Duration
	Type        Type
	Priority    int // Higher is preferred
	Active      bool
}

// Campaign represents a named ad campaign with a validity window.
type Campaign struct {
	ID        string
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Ads       []Ad
}

// IsActiveAt reports whether the campaign contributes ads at the given time.
// The validity window must contain now and at least one ad must be active.
func (c *Campaign) IsActiveAt(now time.Time) bool {
	if now.Before(c.StartDate) || now.After(c.EndDate) {
		return false
	}
	for i := range c.Ads {
		if c.Ads[i].Active {
			return true
		}
	}
	return false
}

// ActiveAds returns the campaign's active ads.
func (c *Campaign) ActiveAds() []Ad {
	ads := make([]Ad, 0, len(c.Ads))
	for _, a := range c.Ads {
		if a.Active {
			ads = append(ads, a)
		}
	}
	return ads
}
