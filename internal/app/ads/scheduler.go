// Package ads provides the ad catalog and priority-ordered ad scheduling.
package ads

import (
	"encoding/json"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/cadenza-audio/cadenza/internal/domain/ad"
	"github.com/cadenza-audio/cadenza/internal/infra/store"
)

const catalogKey = "ads:campaigns"

// AdDecider reports whether an ad is due. Implemented by listening.Tracker.
type AdDecider interface {
	ShouldPlayAd() bool
	MarkAdPlayed()
}

// Scheduler owns the campaign catalog and hands out the next ad in priority
// order. The derived play queue is priority-sorted descending, shuffled
// within equal priorities, and rebuilt whenever campaigns change.
type Scheduler struct {
	mu sync.Mutex

	tracker AdDecider
	store   store.Store
	now     func() time.Time
	rng     *rand.Rand

	campaigns map[string]ad.Campaign
	queue     []ad.Ad
	current   *ad.Ad

	subscribers map[string]func(*ad.Ad)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the scheduler's time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithSeed fixes the shuffle seed. Used in tests.
func WithSeed(seed int64) Option {
	return func(s *Scheduler) {
		s.rng = rand.New(rand.NewSource(seed))
	}
}

// NewScheduler creates a scheduler. Persisted campaigns are rehydrated from
// st; when none exist the default house campaign is seeded.
func NewScheduler(tracker AdDecider, st store.Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		tracker:     tracker,
		store:       st,
		now:         time.Now,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		campaigns:   make(map[string]ad.Campaign),
		subscribers: make(map[string]func(*ad.Ad)),
	}
	for _, opt := range opts {
		opt(s)
	}

	if !s.rehydrate() {
		c := defaultCampaign(s.now())
		s.campaigns[c.ID] = c
	}
	s.rebuildQueueLocked()
	return s
}

// defaultCampaign is the house campaign seeded on first start.
func defaultCampaign(now time.Time) ad.Campaign {
	return ad.Campaign{
		ID:        "house",
		Name:      "House ads",
		StartDate: now.AddDate(0, 0, -1),
		EndDate:   now.AddDate(1, 0, 0),
		Ads: []ad.Ad{
			{
				ID:          "house-premium",
				Title:       "Go Premium",
				Description: "Ad-free listening and unlimited skips",
				AudioURL:    "https://ads.cadenza.audio/house/premium.mp3",
				Duration:    15 * time.Second,
				Type:        ad.TypeAudio,
				Priority:    10,
				Active:      true,
			},
			{
				ID:          "house-discover",
				Title:       "Discover Weekly",
				Description: "A fresh mix every Monday",
				AudioURL:    "https://ads.cadenza.audio/house/discover.mp3",
				Duration:    10 * time.Second,
				Type:        ad.TypeAudio,
				Priority:    5,
				Active:      true,
			},
		},
	}
}

// rehydrate loads the persisted catalog, returning false when nothing
// usable was stored.
func (s *Scheduler) rehydrate() bool {
	data, err := s.store.Get(catalogKey)
	if err != nil {
		return false
	}
	var campaigns []ad.Campaign
	if err := json.Unmarshal(data, &campaigns); err != nil {
		zlog.Warn().Msgf("ads: discarding corrupt campaign catalog: %v", err)
		return false
	}
	if len(campaigns) == 0 {
		return false
	}
	for _, c := range campaigns {
		s.campaigns[c.ID] = c
	}
	return true
}

// ShouldPlayAd reports whether an ad is due and none is currently playing.
func (s *Scheduler) ShouldPlayAd() bool {
	s.mu.Lock()
	playing := s.current != nil
	s.mu.Unlock()

	return !playing && s.tracker.ShouldPlayAd()
}

// NextAd returns the head of the ad queue without consuming it, rebuilding
// the queue first if it is empty. Returns nil when no ad is eligible.
func (s *Scheduler) NextAd() *ad.Ad {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		s.rebuildQueueLocked()
	}
	if len(s.queue) == 0 {
		return nil
	}
	head := s.queue[0]
	return &head
}

// PlayNextAd pops the head ad, marks it playing, advances the listening
// schedule and notifies subscribers. Returns nil when an ad is already in
// flight or none is available.
func (s *Scheduler) PlayNextAd() *ad.Ad {
	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		zlog.Warn().Msg("ads: play requested while an ad is already playing")
		return nil
	}

	if len(s.queue) == 0 {
		s.rebuildQueueLocked()
	}
	if len(s.queue) == 0 {
		s.mu.Unlock()
		zlog.Info().Msg("ads: no eligible ads available")
		return nil
	}

	next := s.queue[0]
	s.queue = s.queue[1:]
	s.current = &next
	s.mu.Unlock()

	s.tracker.MarkAdPlayed()
	s.notify(&next)

	zlog.Info().Msgf("ads: playing ad: id=%s title=%q duration=%v", next.ID, next.Title, next.Duration)
	return &next
}

// FinishCurrentAd clears the current-ad state and notifies subscribers.
// Idempotent: finishing with no current ad is a safe no-op.
func (s *Scheduler) FinishCurrentAd() {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return
	}
	finished := s.current
	s.current = nil
	s.mu.Unlock()

	zlog.Debug().Msgf("ads: finished ad: id=%s", finished.ID)
	s.notify(nil)
}

// SkipCurrentAd finishes the active ad; no-op when none is playing.
func (s *Scheduler) SkipCurrentAd() {
	s.FinishCurrentAd()
}

// CurrentAd returns the ad currently playing, or nil.
func (s *Scheduler) CurrentAd() *ad.Ad {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}
	c := *s.current
	return &c
}

// AddCampaign inserts or replaces a campaign and rebuilds the queue.
func (s *Scheduler) AddCampaign(c ad.Campaign) {
	s.mu.Lock()
	s.campaigns[c.ID] = c
	s.rebuildQueueLocked()
	s.persistLocked()
	s.mu.Unlock()

	zlog.Info().Msgf("ads: campaign added: id=%s name=%q ads=%d", c.ID, c.Name, len(c.Ads))
}

// RemoveCampaign deletes a campaign by ID and rebuilds the queue.
func (s *Scheduler) RemoveCampaign(id string) {
	s.mu.Lock()
	delete(s.campaigns, id)
	s.rebuildQueueLocked()
	s.persistLocked()
	s.mu.Unlock()

	zlog.Info().Msgf("ads: campaign removed: id=%s", id)
}

// Campaigns returns a snapshot of the catalog.
func (s *Scheduler) Campaigns() []ad.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ad.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Subscribe registers a listener invoked with the ad that started playing,
// or nil when an ad finishes. Returns an unsubscribe function; listener
// panics are isolated and logged.
func (s *Scheduler) Subscribe(cb func(*ad.Ad)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.subscribers[id] = cb
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// rebuildQueueLocked derives the play queue: campaigns active now with at
// least one active ad contribute their active ads, grouped by priority,
// shuffled within each group, concatenated from highest to lowest priority.
// Must be called with the lock held.
func (s *Scheduler) rebuildQueueLocked() {
	now := s.now()

	groups := make(map[int][]ad.Ad)
	for _, c := range s.campaigns {
		if !c.IsActiveAt(now) {
			continue
		}
		for _, a := range c.ActiveAds() {
			groups[a.Priority] = append(groups[a.Priority], a)
		}
	}

	priorities := make([]int, 0, len(groups))
	for p := range groups {
		priorities = append(priorities, p)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(priorities)))

	queue := make([]ad.Ad, 0)
	for _, p := range priorities {
		group := groups[p]
		s.rng.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})
		queue = append(queue, group...)
	}
	s.queue = queue
}

// persistLocked serializes the catalog to the store.
// Must be called with the lock held.
func (s *Scheduler) persistLocked() {
	campaigns := make([]ad.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		campaigns = append(campaigns, c)
	}
	data, err := json.Marshal(campaigns)
	if err != nil {
		return
	}
	if err := s.store.Set(catalogKey, data); err != nil {
		zlog.Warn().Msgf("ads: failed to persist campaign catalog: %v", err)
	}
}

// notify delivers the current ad (or nil) to all subscribers outside the lock.
func (s *Scheduler) notify(a *ad.Ad) {
	s.mu.Lock()
	subs := make([]func(*ad.Ad), 0, len(s.subscribers))
	for _, cb := range s.subscribers {
		subs = append(subs, cb)
	}
	s.mu.Unlock()

	for _, cb := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					zlog.Error().Msgf("ads: subscriber panicked: %v", r)
				}
			}()
			cb(a)
		}()
	}
}
