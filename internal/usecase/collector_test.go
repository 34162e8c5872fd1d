package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/github-audience/internal/domain"
)

func drain(c *Collector, kind domain.RelationKind) ([]string, error) {
	var logins []string
	for ev, err := range c.Collect(context.Background(), testRepo, kind) {
		if err != nil {
			return logins, err
		}
		logins = append(logins, ev.Login)
	}
	return logins, nil
}

func TestCollector_Collect(t *testing.T) {
	t.Run("follows cursors until the last page", func(t *testing.T) {
		fetcher := new(mockFetcher)
		fetcher.On("FetchRelationPage", mock.Anything, testRepo, domain.Watch, pageReq("")).Return(newPage("c1", watch("a"), watch("b")), nil).Once()
		fetcher.On("FetchRelationPage", mock.Anything, testRepo, domain.Watch, pageReq("c1")).Return(newPage("", watch("c")), nil).Once()

		logins, err := drain(NewCollector(fetcher, testLogger, 0, 0), domain.Watch)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, logins)
		fetcher.AssertExpectations(t)
	})

	t.Run("stopping the consumer stops paging", func(t *testing.T) {
		fetcher := new(mockFetcher)
		fetcher.On("FetchRelationPage", mock.Anything, testRepo, domain.Fork, pageReq("")).Return(newPage("c1", fork("a", testNow), fork("b", testNow)), nil).Once()

		c := NewCollector(fetcher, testLogger, 100, 0)
		for range c.Collect(context.Background(), testRepo, domain.Fork) {
			break
		}
		fetcher.AssertNumberOfCalls(t, "FetchRelationPage", 1)
	})

	t.Run("page failure keeps earlier events", func(t *testing.T) {
		fetcher := new(mockFetcher)
		boom := errors.New("boom")
		fetcher.On("FetchRelationPage", mock.Anything, testRepo, domain.Star, pageReq("")).Return(newPage("c1", star("a", testNow)), nil).Once()
		fetcher.On("FetchRelationPage", mock.Anything, testRepo, domain.Star, pageReq("c1")).Return(nil, boom).Once()

		logins, err := drain(NewCollector(fetcher, testLogger, 0, 0), domain.Star)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []string{"a"}, logins)
		fetcher.AssertExpectations(t)
	})

	t.Run("empty page ends traversal even if more pages are announced", func(t *testing.T) {
		fetcher := new(mockFetcher)
		fetcher.On("FetchRelationPage", mock.Anything, testRepo, domain.Watch, pageReq("")).Return(newPage("c1"), nil).Once()

		logins, err := drain(NewCollector(fetcher, testLogger, 0, 0), domain.Watch)
		require.NoError(t, err)
		assert.Empty(t, logins)
		fetcher.AssertNumberOfCalls(t, "FetchRelationPage", 1)
	})

	t.Run("repeated cursor ends traversal", func(t *testing.T) {
		fetcher := new(mockFetcher)
		fetcher.On("FetchRelationPage", mock.Anything, testRepo, domain.Watch, pageReq("")).Return(newPage("c1", watch("a")), nil).Once()
		fetcher.On("FetchRelationPage", mock.Anything, testRepo, domain.Watch, pageReq("c1")).Return(newPage("c1", watch("b")), nil).Once()

		logins, err := drain(NewCollector(fetcher, testLogger, 0, 0), domain.Watch)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, logins)
		fetcher.AssertExpectations(t)
	})

	t.Run("ranging again restarts from the first page", func(t *testing.T) {
		fetcher := new(mockFetcher)
		fetcher.On("FetchRelationPage", mock.Anything, testRepo, domain.Watch, pageReq("")).Return(newPage("", watch("a")), nil).Twice()

		c := NewCollector(fetcher, testLogger, 0, 0)
		first, _ := drain(c, domain.Watch)
		second, _ := drain(c, domain.Watch)
		assert.Equal(t, first, second)
		fetcher.AssertExpectations(t)
	})

	t.Run("page size is capped", func(t *testing.T) {
		fetcher := new(mockFetcher)
		fetcher.On("FetchRelationPage", mock.Anything, testRepo, domain.Watch, pageReq("")).Return(newPage(""), nil).Once()

		_, err := drain(NewCollector(fetcher, testLogger, 1000, 0), domain.Watch)
		require.NoError(t, err)
		fetcher.AssertExpectations(t)
	})
}
