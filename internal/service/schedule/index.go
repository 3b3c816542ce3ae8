package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/chairside-api/internal/model"
	"github.com/jwalitptl/chairside-api/internal/repository"
	"github.com/jwalitptl/chairside-api/pkg/metrics"
	"github.com/jwalitptl/chairside-api/pkg/timegrid"
)

// Index serves occupancy for (doctor, day) keys from a cache that is flushed
// on every lead mutation.
type Index struct {
	leads   repository.LeadRepository
	cache   *cache.Cache
	loc     *time.Location
	metrics *metrics.Metrics

	mu  sync.Mutex
	gen uint64
}

func NewIndex(leads repository.LeadRepository, ttl time.Duration, loc *time.Location, m *metrics.Metrics) *Index {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if loc == nil {
		loc = time.Local
	}
	return &Index{
		leads:   leads,
		cache:   cache.New(ttl, 2*ttl),
		loc:     loc,
		metrics: m,
	}
}

// Location is the zone used to normalize days.
func (i *Index) Location() *time.Location { return i.loc }

func cacheKey(doctor string, day time.Time) string {
	return doctor + "|" + day.Format(timegrid.DateLayout)
}

// Occupied returns the occupancy of doctor on day. Lookups with a non-nil
// excludeID are computed fresh and never cached.
func (i *Index) Occupied(ctx context.Context, doctor string, day time.Time, excludeID uuid.UUID) (Occupancy, error) {
	day = timegrid.Day(day, i.loc)
	key := cacheKey(doctor, day)

	if excludeID == uuid.Nil {
		if v, ok := i.cache.Get(key); ok {
			i.metrics.OccupancyCache.WithLabelValues("hit").Inc()
			return v.(Occupancy).clone(), nil
		}
		i.metrics.OccupancyCache.WithLabelValues("miss").Inc()
	}

	i.mu.Lock()
	gen := i.gen
	i.mu.Unlock()

	leads, err := i.leads.List(ctx, &model.LeadFilters{
		Status:    model.LeadStatusBooked,
		Doctor:    doctor,
		DateRange: &model.DateRange{Start: day, End: day.AddDate(0, 0, 1)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load bookings: %w", err)
	}
	occupied := OccupiedMinutes(doctor, day, leads, excludeID)

	if excludeID == uuid.Nil {
		i.mu.Lock()
		// a mutation that landed while we were reading makes this result stale
		if gen == i.gen {
			i.cache.SetDefault(key, occupied.clone())
		}
		i.mu.Unlock()
	}
	return occupied, nil
}

// Invalidate drops every cached entry.
func (i *Index) Invalidate() {
	i.mu.Lock()
	i.gen++
	i.cache.Flush()
	i.mu.Unlock()
}

// Len is the number of cached keys.
func (i *Index) Len() int {
	return i.cache.ItemCount()
}
