package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/github-audience/internal/domain"
)

// TestIdentityAggregator_Aggregate uses a table-driven approach to test the aggregator.
func TestIdentityAggregator_Aggregate(t *testing.T) {
	notFound := fmt.Errorf("lookup: %w", domain.ErrProfileNotFound)
	testCases := []struct {
		name             string
		opts             AggregatorOptions
		forks            []domain.RelationEvent
		stars            []domain.RelationEvent
		watches          []domain.RelationEvent
		profiles         map[string]*domain.Profile
		profileErrs      map[string]error
		expected         []*domain.AggregateRecord
		expectedFailures int
	}{
		{
			name:     "happy path - one record per login with merged flags",
			forks:    []domain.RelationEvent{fork("alice", testNow)},
			stars:    []domain.RelationEvent{star("alice", testNow), star("bob", testNow)},
			watches:  []domain.RelationEvent{watch("alice")},
			profiles: map[string]*domain.Profile{"alice": {Email: "a@example.com", Twitter: "a_tw"}, "bob": {}},
			expected: []*domain.AggregateRecord{
				{Login: "alice", Forked: true, Starred: true, Watching: true, Email: "a@example.com", Twitter: "a_tw"},
				{Login: "bob", Starred: true},
			},
		},
		{
			name:        "failing profile lookup keeps the record",
			forks:       []domain.RelationEvent{fork("carol", testNow)},
			stars:       []domain.RelationEvent{star("carol", testNow)},
			profileErrs: map[string]error{"carol": notFound},
			expected: []*domain.AggregateRecord{
				{Login: "carol", Forked: true, Starred: true},
			},
			expectedFailures: 1,
		},
		{
			name:     "logins differing only in case share a record",
			forks:    []domain.RelationEvent{fork("Dave", testNow)},
			watches:  []domain.RelationEvent{watch("dave"), watch("DAVE")},
			profiles: map[string]*domain.Profile{"Dave": {Email: "d@example.com"}},
			expected: []*domain.AggregateRecord{
				{Login: "Dave", Forked: true, Watching: true, Email: "d@example.com"},
			},
		},
		{
			name:     "watch discovered before nothing else still flags watching",
			watches:  []domain.RelationEvent{watch("erin")},
			stars:    []domain.RelationEvent{star("erin", testNow)},
			profiles: map[string]*domain.Profile{"erin": {}},
			expected: []*domain.AggregateRecord{
				{Login: "erin", Starred: true, Watching: true},
			},
		},
		{
			name: "inline profiles skip lookups",
			opts: AggregatorOptions{InlineProfiles: true},
			forks: []domain.RelationEvent{
				{Kind: domain.Fork, Login: "frank", OccurredAt: testNow, Profile: &domain.Profile{Email: "f@example.com", Twitter: "f_tw"}},
				{Kind: domain.Fork, Login: "acme", OccurredAt: testNow},
			},
			stars:    []domain.RelationEvent{{Kind: domain.Star, Login: "frank", OccurredAt: testNow, Profile: &domain.Profile{Email: "other@example.com"}}},
			profiles: map[string]*domain.Profile{"acme": {}},
			expected: []*domain.AggregateRecord{
				{Login: "acme", Forked: true},
				{Login: "frank", Forked: true, Starred: true, Email: "f@example.com", Twitter: "f_tw"},
			},
		},
		{
			name:     "cross-referenced watchers only flag known accounts",
			opts:     AggregatorOptions{CrossReferenceWatchers: true},
			stars:    []domain.RelationEvent{star("gina", testNow)},
			watches:  []domain.RelationEvent{watch("gina"), watch("henry")},
			profiles: map[string]*domain.Profile{"gina": {}},
			expected: []*domain.AggregateRecord{
				{Login: "gina", Starred: true, Watching: true},
			},
		},
		{
			name:     "empty case - no relations at all",
			expected: []*domain.AggregateRecord{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Arrange ---
			fetcher := new(mockFetcher)
			for login, p := range tc.profiles {
				fetcher.On("FetchProfile", mock.Anything, login).Return(p, nil).Once()
			}
			for login, err := range tc.profileErrs {
				fetcher.On("FetchProfile", mock.Anything, login).Return(nil, err).Once()
			}
			aggregator := NewIdentityAggregator(fetcher, testLogger, tc.opts)

			// --- Act ---
			agg := aggregator.Aggregate(context.Background(), tc.forks, tc.stars, tc.watches)

			// --- Assert ---
			assert.Equal(t, tc.expected, agg.Sorted())
			assert.Equal(t, tc.expectedFailures, agg.ProfileFailures)
			assert.Len(t, agg.Records, len(tc.expected))
			// Every expectation is registered with Once, so this also proves no duplicate lookups.
			fetcher.AssertExpectations(t)
		})
	}
}

// countingProfiles records lookups per login and the peak number in flight.
type countingProfiles struct {
	mu       sync.Mutex
	calls    map[string]int
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (c *countingProfiles) FetchProfile(ctx context.Context, login string) (*domain.Profile, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	c.mu.Lock()
	c.calls[login]++
	c.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	if login == "user-3" {
		return nil, errors.New("transport down")
	}
	return &domain.Profile{Email: login + "@example.com"}, nil
}

func TestIdentityAggregator_LookupsAreDedupedAndBounded(t *testing.T) {
	profiles := &countingProfiles{calls: make(map[string]int)}
	aggregator := NewIdentityAggregator(profiles, testLogger, AggregatorOptions{ProfileConcurrency: 2})

	var forks, stars, watches []domain.RelationEvent
	for i := 0; i < 12; i++ {
		login := fmt.Sprintf("user-%d", i)
		forks = append(forks, fork(login, testNow))
		stars = append(stars, star(login, testNow))
		watches = append(watches, watch(login))
	}

	agg := aggregator.Aggregate(context.Background(), forks, stars, watches)

	require.Len(t, agg.Records, 12)
	assert.Equal(t, 1, agg.ProfileFailures)
	for login, n := range profiles.calls {
		assert.Equal(t, 1, n, "login %s looked up %d times", login, n)
	}
	assert.Len(t, profiles.calls, 12)
	assert.LessOrEqual(t, profiles.peak.Load(), int32(2))
	assert.Equal(t, "", agg.Records["user-3"].Email)
	assert.Equal(t, "user-4@example.com", agg.Records["user-4"].Email)
}

func TestIdentityAggregator_CancelledContextSkipsLookups(t *testing.T) {
	fetcher := new(mockFetcher)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agg := NewIdentityAggregator(fetcher, testLogger, AggregatorOptions{}).
		Aggregate(ctx, []domain.RelationEvent{fork("alice", testNow)}, nil, nil)

	assert.Equal(t, 1, agg.ProfileFailures)
	assert.Equal(t, []*domain.AggregateRecord{{Login: "alice", Forked: true}}, agg.Sorted())
	fetcher.AssertNotCalled(t, "FetchProfile", mock.Anything, mock.Anything)
}
