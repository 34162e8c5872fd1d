package usecase

import (
	"context"
	"iter"
	"log"
	"time"

	"github.com/naka-gawa/github-audience/internal/domain"
	"github.com/naka-gawa/github-audience/internal/gateway"
)

// Collector walks a cursor-paginated relation of a repository.
type Collector struct {
	pager       gateway.RelationPager
	logger      *log.Logger
	pageSize    int
	pageTimeout time.Duration
}

// NewCollector creates a Collector. A zero pageTimeout disables the per-page timeout.
func NewCollector(pager gateway.RelationPager, logger *log.Logger, pageSize int, pageTimeout time.Duration) *Collector {
	if pageSize <= 0 || pageSize > gateway.MaxPageSize {
		pageSize = gateway.MaxPageSize
	}
	return &Collector{
		pager:       pager,
		logger:      logger,
		pageSize:    pageSize,
		pageTimeout: pageTimeout,
	}
}

// Collect returns a lazy sequence over every event of the relation. Pages are
// requested only as the consumer ranges, so breaking out of the loop stops
// further requests. A failed page yields its error once and ends the sequence;
// events yielded before it remain valid. The sequence starts from the first
// page each time it is ranged over.
func (c *Collector) Collect(ctx context.Context, repo domain.RepoRef, kind domain.RelationKind) iter.Seq2[domain.RelationEvent, error] {
	return func(yield func(domain.RelationEvent, error) bool) {
		cursor := ""
		for n := 1; ; n++ {
			page, err := c.fetchPage(ctx, repo, kind, cursor)
			if err != nil {
				yield(domain.RelationEvent{}, err)
				return
			}
			for _, ev := range page.Events {
				if !yield(ev, nil) {
					return
				}
			}
			switch {
			case !page.HasNextPage:
				return
			case page.EdgeCount == 0, page.EndCursor == "", page.EndCursor == cursor:
				c.logger.Printf("  Page %d of %s for %s reported more pages without progress; stopping", n, kind, repo)
				return
			}
			cursor = page.EndCursor
		}
	}
}

func (c *Collector) fetchPage(ctx context.Context, repo domain.RepoRef, kind domain.RelationKind, cursor string) (*gateway.Page, error) {
	if c.pageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.pageTimeout)
		defer cancel()
	}
	return c.pager.FetchRelationPage(ctx, repo, kind, gateway.PageRequest{Size: c.pageSize, Cursor: cursor})
}
