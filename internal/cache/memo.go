package cache

import (
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tasklens/tasklens/internal/balance"
	"github.com/tasklens/tasklens/internal/priority"
	"github.com/tasklens/tasklens/internal/tlmodel"
	"github.com/tasklens/tasklens/internal/tltime"
	"github.com/tasklens/tasklens/internal/visibility"
)

// Revision identifies a document snapshot. internal/store bumps it on
// every Store.Save; it is
// the cache-invalidation unit, standing in for the teacher's per-issue
// modified-at comparison.
type Revision uint64

// PrioritizeKey builds the memoization key for one Prioritize call. Two
// calls against the same revision with the same filter/options always
// produce the same key, so a concurrent flood of identical requests
// collapses onto a single evaluation.
func PrioritizeKey(rev Revision, filter visibility.ViewFilter, opts priority.Options) string {
	place := "All"
	if filter.PlaceID != nil {
		place = string(*filter.PlaceID)
	}
	ctxPlace := "none"
	if opts.Context.CurrentPlaceID != nil {
		ctxPlace = string(*opts.Context.CurrentPlaceID)
	}
	return fmt.Sprintf("prioritize:%d:place=%s:mode=%s:hidden=%t:fb=%s:ctxplace=%s:ctxtime=%d:now=%d",
		rev, place, opts.Mode, opts.IncludeHidden,
		strconv.FormatFloat(opts.FeedbackSensitivity, 'g', -1, 64),
		ctxPlace, opts.Context.CurrentTime, opts.Now)
}

// BalanceKey builds the memoization key for one balance.Compute call.
func BalanceKey(rev Revision, now tltime.EpochMillis) string {
	return fmt.Sprintf("balance:%d:now=%d", rev, now)
}

// Projections memoizes the two derived-projection computations the
// engine re-runs on every read: Prioritize and balance.Compute. Results
// are cached per revision and evicted wholesale when a new revision
// invalidates them, the same coarse invalidation granularity as the
// teacher's n.cache.Clear() on every mutating FUSE write.
type Projections struct {
	prioritize *Cache[[]priority.ComputedTask]
	balances   *Cache[balance.Data]
	group      singleflight.Group
}

// NewProjections returns a memoizer whose entries expire after ttl, or
// sooner if InvalidateRevision drops a stale one first.
func NewProjections(ttl time.Duration) *Projections {
	return &Projections{
		prioritize: New[[]priority.ComputedTask](ttl, 256),
		balances:   New[balance.Data](ttl, 64),
	}
}

// Prioritize returns priority.Prioritize(d, filter, opts), memoized by
// (rev, filter, opts). Concurrent callers requesting the same key block
// on one underlying computation instead of each repeating the tree walk.
func (p *Projections) Prioritize(d *tlmodel.DocumentState, rev Revision, filter visibility.ViewFilter, opts priority.Options) []priority.ComputedTask {
	key := PrioritizeKey(rev, filter, opts)
	if v, ok := p.prioritize.Get(key); ok {
		return v
	}
	v, _, _ := p.group.Do(key, func() (any, error) {
		if v, ok := p.prioritize.Get(key); ok {
			return v, nil
		}
		result := priority.Prioritize(d, filter, opts)
		p.prioritize.Set(key, result)
		return result, nil
	})
	return v.([]priority.ComputedTask)
}

// Balance returns balance.Compute(d, now), memoized by (rev, now).
func (p *Projections) Balance(d *tlmodel.DocumentState, rev Revision, now tltime.EpochMillis) balance.Data {
	key := BalanceKey(rev, now)
	if v, ok := p.balances.Get(key); ok {
		return v
	}
	v, _, _ := p.group.Do(key, func() (any, error) {
		if v, ok := p.balances.Get(key); ok {
			return v, nil
		}
		result := balance.Compute(d, now)
		p.balances.Set(key, result)
		return result, nil
	})
	return v.(balance.Data)
}

// InvalidateRevision drops every entry for a revision that is no longer
// current. internal/replsync calls it after each merge for the revisions
// it replaces, mirroring the teacher's n.cache.Clear() after a write.
func (p *Projections) InvalidateRevision(rev Revision) {
	p.prioritize.DeleteByPrefix(fmt.Sprintf("prioritize:%d:", rev))
	p.balances.DeleteByPrefix(fmt.Sprintf("balance:%d:", rev))
}

// Stop tears down both underlying caches' background eviction loops.
func (p *Projections) Stop() {
	p.prioritize.Stop()
	p.balances.Stop()
}
