// Package skip provides the daily skip budget for free-tier accounts.
package skip

import (
	"encoding/json"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/cadenza-audio/cadenza/internal/infra/store"
)

const (
	budgetKey = "skip:budget"

	// DefaultLimit is the number of skips a free-tier account gets per day.
	DefaultLimit = 5

	dateLayout = "2006-01-02"
)

// persistedBudget is the stored shape of the skip counter.
type persistedBudget struct {
	Count int    `json:"count"`
	Date  string `json:"date"` // Calendar day the count belongs to
}

// Budget is a per-day skip counter. The count resets to zero on the first
// access after midnight; malformed stored state resets to a fresh counter.
type Budget struct {
	mu sync.Mutex

	store store.Store
	limit int
	now   func() time.Time
}

// Option configures a Budget.
type Option func(*Budget)

// WithClock overrides the budget's time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(b *Budget) {
		b.now = now
	}
}

// NewBudget creates a skip budget backed by s.
func NewBudget(s store.Store, limit int, opts ...Option) *Budget {
	if limit <= 0 {
		limit = DefaultLimit
	}
	b := &Budget{store: s, limit: limit, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Limit returns the daily skip limit.
func (b *Budget) Limit() int {
	return b.limit
}

// Count returns today's skip count.
func (b *Budget) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loadLocked().Count
}

// Remaining returns the number of skips left today.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	remaining := b.limit - b.loadLocked().Count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TryConsume spends one skip. Returns false, without mutating state, when
// the budget is exhausted.
func (b *Budget) TryConsume() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	pb := b.loadLocked()
	if pb.Count >= b.limit {
		return false
	}
	pb.Count++
	b.persistLocked(pb)
	return true
}

// loadLocked reads the stored counter, applying the daily reset.
// Must be called with the lock held.
func (b *Budget) loadLocked() persistedBudget {
	today := b.now().Format(dateLayout)
	fresh := persistedBudget{Count: 0, Date: today}

	data, err := b.store.Get(budgetKey)
	if err != nil {
		return fresh
	}

	var pb persistedBudget
	if err := json.Unmarshal(data, &pb); err != nil {
		zlog.Warn().Msgf("skip: discarding corrupt budget state: %v", err)
		return fresh
	}
	if pb.Date != today {
		// First access after midnight resets the counter
		b.persistLocked(fresh)
		return fresh
	}
	return pb
}

// persistLocked writes the counter to the store.
// Must be called with the lock held.
func (b *Budget) persistLocked(pb persistedBudget) {
	data, err := json.Marshal(pb)
	if err != nil {
		return
	}
	if err := b.store.Set(budgetKey, data); err != nil {
		zlog.Warn().Msgf("skip: failed to persist budget: %v", err)
	}
}
