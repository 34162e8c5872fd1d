// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"log"
	"sort"
	"sync/atomic"

	"github.com/naka-gawa/github-audience/internal/domain"
	"github.com/naka-gawa/github-audience/internal/gateway"
	"golang.org/x/sync/errgroup"
)

// DefaultProfileConcurrency bounds parallel profile lookups.
const DefaultProfileConcurrency = 4

// AggregatorOptions tunes the IdentityAggregator.
type AggregatorOptions struct {
	// ProfileConcurrency bounds parallel profile lookups.
	ProfileConcurrency int
	// InlineProfiles uses contact fields carried by relation pages instead of
	// looking them up separately.
	InlineProfiles bool
	// CrossReferenceWatchers makes watch events only flag accounts that
	// already forked or starred; watcher-only accounts get no record.
	CrossReferenceWatchers bool
}

// Aggregation is the merged view of one run, keyed by LoginKey.
type Aggregation struct {
	Records         map[string]*domain.AggregateRecord
	ProfileFailures int
}

// Sorted returns the records ordered by login, case-insensitively.
func (a *Aggregation) Sorted() []*domain.AggregateRecord {
	keys := make([]string, 0, len(a.Records))
	for key := range a.Records {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]*domain.AggregateRecord, 0, len(keys))
	for _, key := range keys {
		out = append(out, a.Records[key])
	}
	return out
}

// IdentityAggregator merges fork, star and watch events into one record per account.
type IdentityAggregator struct {
	profiles gateway.ProfileFetcher
	logger   *log.Logger
	opts     AggregatorOptions
}

// NewIdentityAggregator creates a new IdentityAggregator instance.
func NewIdentityAggregator(profiles gateway.ProfileFetcher, logger *log.Logger, opts AggregatorOptions) *IdentityAggregator {
	if opts.ProfileConcurrency <= 0 {
		opts.ProfileConcurrency = DefaultProfileConcurrency
	}
	return &IdentityAggregator{
		profiles: profiles,
		logger:   logger,
		opts:     opts,
	}
}

// Aggregate merges the three relations, forks first, then stars, then
// watches. Each login's profile is looked up at most once; a failed lookup
// leaves the contact fields empty but keeps the record.
func (a *IdentityAggregator) Aggregate(ctx context.Context, forks, stars, watches []domain.RelationEvent) *Aggregation {
	a.logger.Println("Usecase: Merging relations...")

	records := make(map[string]*domain.AggregateRecord)
	resolved := make(map[string]bool)
	var pending []*domain.AggregateRecord

	for _, events := range [][]domain.RelationEvent{forks, stars, watches} {
		for _, ev := range events {
			if ev.Login == "" {
				continue
			}
			key := domain.LoginKey(ev.Login)
			rec, ok := records[key]
			if !ok {
				if ev.Kind == domain.Watch && a.opts.CrossReferenceWatchers {
					continue
				}
				rec = &domain.AggregateRecord{Login: ev.Login}
				records[key] = rec
				pending = append(pending, rec)
			}
			rec.Mark(ev.Kind)
			if a.opts.InlineProfiles && ev.Profile != nil && !resolved[key] {
				rec.Email, rec.Twitter = ev.Profile.Email, ev.Profile.Twitter
				resolved[key] = true
			}
		}
	}

	var failures atomic.Int64
	var eg errgroup.Group
	eg.SetLimit(a.opts.ProfileConcurrency)
	for _, rec := range pending {
		if resolved[domain.LoginKey(rec.Login)] {
			continue
		}
		// Each goroutine owns exactly one record.
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				failures.Add(1)
				return nil
			}
			profile, err := a.profiles.FetchProfile(ctx, rec.Login)
			if err != nil {
				a.logger.Printf("  Profile lookup for %s failed: %v", rec.Login, err)
				failures.Add(1)
				return nil
			}
			rec.Email, rec.Twitter = profile.Email, profile.Twitter
			return nil
		})
	}
	_ = eg.Wait()

	a.logger.Printf("Usecase: Merged %d accounts (%d profile lookups failed).", len(records), failures.Load())
	return &Aggregation{
		Records:         records,
		ProfileFailures: int(failures.Load()),
	}
}
