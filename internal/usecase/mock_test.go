package usecase

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/naka-gawa/github-audience/internal/domain"
	"github.com/naka-gawa/github-audience/internal/gateway"
)

// mockFetcher is a mock implementation of the gateway.Fetcher interface.
// It allows us to simulate the behavior of the GitHub gateway without making real API calls.
type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchRelationPage(ctx context.Context, repo domain.RepoRef, kind domain.RelationKind, req gateway.PageRequest) (*gateway.Page, error) {
	args := m.Called(ctx, repo, kind, req)
	// We need to handle the case where the returned page is nil (e.g., when an error occurs).
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Page), args.Error(1)
}

func (m *mockFetcher) FetchProfile(ctx context.Context, login string) (*domain.Profile, error) {
	args := m.Called(ctx, login)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

var (
	testRepo   = domain.RepoRef{Owner: "wasmedge", Name: "wasmedge"}
	testNow    = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	testLogger = log.New(io.Discard, "", 0)
)

// daysAgo returns a timestamp n days before testNow.
func daysAgo(n int) time.Time {
	return testNow.AddDate(0, 0, -n)
}

func fork(login string, at time.Time) domain.RelationEvent {
	return domain.RelationEvent{Kind: domain.Fork, Login: login, OccurredAt: at}
}

func star(login string, at time.Time) domain.RelationEvent {
	return domain.RelationEvent{Kind: domain.Star, Login: login, OccurredAt: at}
}

func watch(login string) domain.RelationEvent {
	return domain.RelationEvent{Kind: domain.Watch, Login: login}
}

func newPage(next string, events ...domain.RelationEvent) *gateway.Page {
	return &gateway.Page{
		Events:      events,
		EdgeCount:   len(events),
		EndCursor:   next,
		HasNextPage: next != "",
	}
}

func pageReq(cursor string) gateway.PageRequest {
	return gateway.PageRequest{Size: gateway.MaxPageSize, Cursor: cursor}
}
