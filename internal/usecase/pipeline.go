package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/github-audience/internal/domain"
	"github.com/naka-gawa/github-audience/internal/gateway"
	"github.com/naka-gawa/github-audience/internal/metrics"
)

// DefaultWindowDays is how far back a run looks when the request does not say.
const DefaultWindowDays = 7

// Options configures a Pipeline.
type Options struct {
	PageSize    int
	PageTimeout time.Duration
	RunTimeout  time.Duration
	// EarlyStopThreshold of zero means DefaultEarlyStopThreshold; a negative
	// value such as EarlyStopDisabled turns early stop off.
	EarlyStopThreshold int
	// RequireWatchers turns an empty watcher set into ErrNoWatchers.
	RequireWatchers bool
	Aggregator      AggregatorOptions
}

// RunRequest selects the repository and window of one run.
// A zero Now means the current time.
type RunRequest struct {
	Repo domain.RepoRef
	Days int
	Now  time.Time
}

// Pipeline is the use case for building an audience report.
// It orchestrates the three relation traversals and their aggregation.
type Pipeline struct {
	collector  *Collector
	aggregator *IdentityAggregator
	logger     *log.Logger
	opts       Options
}

// NewPipeline creates a new Pipeline instance.
func NewPipeline(fetcher gateway.Fetcher, logger *log.Logger, opts Options) *Pipeline {
	if opts.EarlyStopThreshold == 0 {
		opts.EarlyStopThreshold = DefaultEarlyStopThreshold
	}
	return &Pipeline{
		collector:  NewCollector(fetcher, logger, opts.PageSize, opts.PageTimeout),
		aggregator: NewIdentityAggregator(fetcher, logger, opts.Aggregator),
		logger:     logger,
		opts:       opts,
	}
}

type relationResult struct {
	kind   domain.RelationKind
	events []domain.RelationEvent
	err    error
}

// Run performs one aggregation run. Invalid input fails before any request
// is made. A relation whose traversal fails midway contributes the events it
// collected and is listed in Summary.PartialRelations.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (report *domain.Report, err error) {
	if err := req.Repo.Validate(); err != nil {
		return nil, err
	}
	if req.Days < 0 {
		return nil, fmt.Errorf("%w: window of %d days", domain.ErrInvalidInput, req.Days)
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	windowStart := WindowStart(now, req.Days)
	runID := uuid.NewString()

	started := time.Now()
	defer func() {
		metrics.RunDuration.Observe(time.Since(started).Seconds())
		if err != nil {
			metrics.RunsTotal.WithLabelValues("error").Inc()
		} else {
			metrics.RunsTotal.WithLabelValues("ok").Inc()
		}
	}()

	if p.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.RunTimeout)
		defer cancel()
	}

	p.logger.Printf("Usecase: Run %s for %s since %s", runID, req.Repo, windowStart.Format("2006-01-02"))

	// Traversals share nothing; each writes only its own slot.
	results := make([]relationResult, len(domain.RelationKinds))
	var eg errgroup.Group
	for i, kind := range domain.RelationKinds {
		eg.Go(func() error {
			results[i] = p.collectRelation(ctx, req.Repo, kind, windowStart)
			return nil
		})
	}
	_ = eg.Wait()

	if err := deadlineError(ctx); err != nil {
		return nil, err
	}

	summary := domain.Summary{}
	for _, res := range results {
		if res.err == nil {
			continue
		}
		if errors.Is(res.err, domain.ErrRepositoryNotFound) || errors.Is(res.err, domain.ErrQuotaExceeded) {
			return nil, res.err
		}
		p.logger.Printf("Usecase: %s collected partially (%d events): %v", res.kind, len(res.events), res.err)
		summary.PartialRelations = append(summary.PartialRelations, res.kind.String())
	}

	forks, stars, watches := results[0].events, results[1].events, results[2].events
	if p.opts.RequireWatchers && len(watches) == 0 && results[2].err == nil {
		return nil, fmt.Errorf("%s: %w", req.Repo, domain.ErrNoWatchers)
	}

	agg := p.aggregator.Aggregate(ctx, forks, stars, watches)
	if err := deadlineError(ctx); err != nil {
		return nil, err
	}

	summary.Forks = len(forks)
	summary.Stars = len(stars)
	summary.Watchers = len(watches)
	summary.Accounts = len(agg.Records)
	summary.ProfileFailures = agg.ProfileFailures
	summary.MedianAgeDays = medianAgeDays(now, forks, stars)

	p.logger.Println("Usecase: Run complete.")
	return &domain.Report{
		RunID:       runID,
		Repo:        req.Repo,
		WindowStart: windowStart,
		GeneratedAt: now,
		Records:     agg.Sorted(),
		Summary:     summary,
	}, nil
}

// collectRelation drains one relation, filtering timestamped relations
// through the window and stopping early once they run out of it.
func (p *Pipeline) collectRelation(ctx context.Context, repo domain.RepoRef, kind domain.RelationKind, windowStart time.Time) relationResult {
	res := relationResult{kind: kind}
	tracker := NewEarlyStopTracker(p.opts.EarlyStopThreshold)
	scanned := 0
	for ev, err := range p.collector.Collect(ctx, repo, kind) {
		if err != nil {
			res.err = err
			break
		}
		scanned++
		if !kind.Timestamped() {
			res.events = append(res.events, ev)
			continue
		}
		keep, stop := tracker.Observe(ev.OccurredAt, windowStart)
		if keep {
			res.events = append(res.events, ev)
		}
		if stop {
			metrics.EarlyStops.WithLabelValues(kind.String()).Inc()
			p.logger.Printf("  %s: %d consecutive entries outside the window, stopping", kind, tracker.Misses())
			break
		}
	}
	p.logger.Printf("  %s: kept %d of %d scanned", kind, len(res.events), scanned)
	return res
}

func deadlineError(ctx context.Context) error {
	switch ctx.Err() {
	case nil:
		return nil
	case context.DeadlineExceeded:
		return fmt.Errorf("%w: run deadline exceeded", domain.ErrTimeout)
	default:
		return ctx.Err()
	}
}

// medianAgeDays is the median age, in days, of the in-window forks and stars.
func medianAgeDays(now time.Time, forks, stars []domain.RelationEvent) float64 {
	var ages stats.Float64Data
	for _, events := range [][]domain.RelationEvent{forks, stars} {
		for _, ev := range events {
			if ev.HasTimestamp() {
				ages = append(ages, now.Sub(ev.OccurredAt).Hours()/24)
			}
		}
	}
	median, err := stats.Median(ages)
	if err != nil {
		return 0
	}
	rounded, _ := stats.Round(median, 2)
	return rounded
}
