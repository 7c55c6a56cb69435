package ads

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadenza-audio/cadenza/internal/domain/ad"
	"github.com/cadenza-audio/cadenza/internal/infra/store"
)

// fakeDecider is a scripted AdDecider.
type fakeDecider struct {
	due    bool
	marked int
}

func (d *fakeDecider) ShouldPlayAd() bool { return d.due }
func (d *fakeDecider) MarkAdPlayed()      { d.marked++; d.due = false }

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

func campaignWith(id string, ads ...ad.Ad) ad.Campaign {
	return ad.Campaign{
		ID:        id,
		Name:      id,
		StartDate: testNow.AddDate(0, -1, 0),
		EndDate:   testNow.AddDate(0, 1, 0),
		Ads:       ads,
	}
}

func newTestScheduler(t *testing.T, decider *fakeDecider) *Scheduler {
	t.Helper()
	return NewScheduler(decider, store.NewMemStore(), WithClock(testClock), WithSeed(1))
}

func TestScheduler_SeedsDefaultCampaign(t *testing.T) {
	s := newTestScheduler(t, &fakeDecider{due: true})

	campaigns := s.Campaigns()
	require.Len(t, campaigns, 1)
	assert.Equal(t, "house", campaigns[0].ID)
	assert.NotNil(t, s.NextAd())
}

func TestScheduler_PlayNextAd_PriorityOrder(t *testing.T) {
	decider := &fakeDecider{due: true}
	s := newTestScheduler(t, decider)

	// Default house campaign: premium has priority 10, discover 5
	first := s.PlayNextAd()
	require.NotNil(t, first)
	assert.Equal(t, "house-premium", first.ID)
	assert.Equal(t, 1, decider.marked, "schedule advanced exactly once")

	s.FinishCurrentAd()
	second := s.PlayNextAd()
	require.NotNil(t, second)
	assert.Equal(t, "house-discover", second.ID)
}

func TestScheduler_PlayNextAd_WhileAdInFlight(t *testing.T) {
	decider := &fakeDecider{due: true}
	s := newTestScheduler(t, decider)

	first := s.PlayNextAd()
	require.NotNil(t, first)

	assert.Nil(t, s.PlayNextAd(), "second play while ad in flight must fail")
	assert.Equal(t, 1, decider.marked)
	assert.False(t, s.ShouldPlayAd(), "not due while an ad is playing")
}

func TestScheduler_FinishCurrentAd_Idempotent(t *testing.T) {
	s := newTestScheduler(t, &fakeDecider{due: true})

	require.NotNil(t, s.PlayNextAd())
	s.FinishCurrentAd()
	assert.Nil(t, s.CurrentAd())

	// Second finish is a safe no-op
	assert.NotPanics(t, func() { s.FinishCurrentAd() })
	assert.Nil(t, s.CurrentAd())
}

func TestScheduler_SkipCurrentAd(t *testing.T) {
	s := newTestScheduler(t, &fakeDecider{due: true})

	// No-op with nothing playing
	s.SkipCurrentAd()
	assert.Nil(t, s.CurrentAd())

	require.NotNil(t, s.PlayNextAd())
	s.SkipCurrentAd()
	assert.Nil(t, s.CurrentAd())
}

func TestScheduler_QueueRebuild_FiltersAndOrders(t *testing.T) {
	s := newTestScheduler(t, &fakeDecider{due: true})
	s.RemoveCampaign("house")

	expired := ad.Campaign{
		ID:        "expired",
		StartDate: testNow.AddDate(0, -2, 0),
		EndDate:   testNow.AddDate(0, -1, 0),
		Ads:       []ad.Ad{{ID: "old", Priority: 99, Active: true}},
	}
	noActive := campaignWith("dormant", ad.Ad{ID: "off", Priority: 50, Active: false})
	live := campaignWith("live",
		ad.Ad{ID: "low-a", Priority: 1, Active: true},
		ad.Ad{ID: "high", Priority: 9, Active: true},
		ad.Ad{ID: "low-b", Priority: 1, Active: true},
		ad.Ad{ID: "inactive", Priority: 9, Active: false},
	)

	s.AddCampaign(expired)
	s.AddCampaign(noActive)
	s.AddCampaign(live)

	var played []string
	for {
		a := s.PlayNextAd()
		if a == nil {
			break
		}
		played = append(played, a.ID)
		s.FinishCurrentAd()
		if len(played) > 10 {
			t.Fatal("queue did not drain")
		}
	}

	require.Len(t, played, 3)
	assert.Equal(t, "high", played[0], "highest priority first")
	assert.ElementsMatch(t, []string{"low-a", "low-b"}, played[1:], "same-priority group follows in shuffled order")
}

func TestScheduler_NoEligibleAds(t *testing.T) {
	s := newTestScheduler(t, &fakeDecider{due: true})
	s.RemoveCampaign("house")

	assert.Nil(t, s.NextAd())
	assert.Nil(t, s.PlayNextAd())
}

func TestScheduler_PersistsCatalogAcrossRestart(t *testing.T) {
	st := store.NewMemStore()
	s := NewScheduler(&fakeDecider{}, st, WithClock(testClock), WithSeed(1))
	s.AddCampaign(campaignWith("spring", ad.Ad{ID: "spring-1", Priority: 3, Active: true}))

	s2 := NewScheduler(&fakeDecider{}, st, WithClock(testClock), WithSeed(1))
	ids := make([]string, 0)
	for _, c := range s2.Campaigns() {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{"house", "spring"}, ids)
}

func TestScheduler_SubscriberSeesAdThenNil(t *testing.T) {
	s := newTestScheduler(t, &fakeDecider{due: true})

	var events []*ad.Ad
	unsubscribe := s.Subscribe(func(a *ad.Ad) {
		events = append(events, a)
	})
	defer unsubscribe()

	played := s.PlayNextAd()
	require.NotNil(t, played)
	s.FinishCurrentAd()

	require.Len(t, events, 2)
	require.NotNil(t, events[0])
	assert.Equal(t, played.ID, events[0].ID)
	assert.Nil(t, events[1])
}
