// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/github-audience/internal/domain"
	"github.com/naka-gawa/github-audience/internal/metrics"
)

// MaxPageSize is the largest page the GraphQL API serves for a connection.
const MaxPageSize = 100

// PageRequest selects one page of a relation connection.
// An empty Cursor starts from the beginning.
type PageRequest struct {
	Size   int
	Cursor string
}

// Page is one page of relation events. EdgeCount counts raw edges, including
// the ones that could not be turned into an event.
type Page struct {
	Events      []domain.RelationEvent
	EdgeCount   int
	EndCursor   string
	HasNextPage bool
}

// ProfileFetcher resolves a login to its public contact info.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, login string) (*domain.Profile, error)
}

// RelationPager fetches one page of a repository relation.
type RelationPager interface {
	FetchRelationPage(ctx context.Context, repo domain.RepoRef, kind domain.RelationKind, req PageRequest) (*Page, error)
}

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
type Fetcher interface {
	RelationPager
	ProfileFetcher
}

// GistCreator publishes a single-file gist and returns its URL.
type GistCreator interface {
	CreateGist(ctx context.Context, filename, description, content string, public bool) (string, error)
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *log.Logger
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(token string, logger *log.Logger) (*GitHubGateway, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}
	return &GitHubGateway{
		restClient:    github.NewClient(httpClient),
		graphqlClient: githubv4.NewClient(httpClient),
		logger:        logger,
	}, nil
}

// FetchRelationPage fetches one page of forks, stargazers or watchers.
// Forks and stargazers come newest first so callers can stop early.
func (g *GitHubGateway) FetchRelationPage(ctx context.Context, repo domain.RepoRef, kind domain.RelationKind, req PageRequest) (*Page, error) {
	size := req.Size
	if size <= 0 || size > MaxPageSize {
		size = MaxPageSize
	}
	variables := map[string]interface{}{
		"owner":  githubv4.String(repo.Owner),
		"name":   githubv4.String(repo.Name),
		"first":  githubv4.Int(size),
		"cursor": (*githubv4.String)(nil),
	}
	if req.Cursor != "" {
		variables["cursor"] = githubv4.NewString(githubv4.String(req.Cursor))
	}

	var (
		page *Page
		err  error
	)
	switch kind {
	case domain.Fork:
		variables["order"] = githubv4.RepositoryOrder{Field: githubv4.RepositoryOrderFieldCreatedAt, Direction: githubv4.OrderDirectionDesc}
		page, err = runPageQuery(ctx, g.graphqlClient, variables, func(q *forksQuery) *connection[forkEdge] { return &q.Repository.Forks }, forkEvent)
	case domain.Star:
		variables["order"] = githubv4.StarOrder{Field: githubv4.StarOrderFieldStarredAt, Direction: githubv4.OrderDirectionDesc}
		page, err = runPageQuery(ctx, g.graphqlClient, variables, func(q *stargazersQuery) *connection[starEdge] { return &q.Repository.Stargazers }, starEvent)
	case domain.Watch:
		page, err = runPageQuery(ctx, g.graphqlClient, variables, func(q *watchersQuery) *connection[watchEdge] { return &q.Repository.Watchers }, watchEvent)
	default:
		return nil, fmt.Errorf("%w: unsupported relation %s", domain.ErrInvalidInput, kind)
	}
	if err != nil {
		metrics.PageErrors.WithLabelValues(kind.String()).Inc()
		return nil, fmt.Errorf("failed to execute GraphQL query for %s of %s: %w", kind, repo, err)
	}
	metrics.PagesFetched.WithLabelValues(kind.String()).Inc()
	g.logger.Printf("  Fetched %d %s of %s (next page: %t)", page.EdgeCount, kind, repo, page.HasNextPage)
	return page, nil
}

// FetchProfile looks up a user's public email and Twitter handle using the REST API.
func (g *GitHubGateway) FetchProfile(ctx context.Context, login string) (*domain.Profile, error) {
	user, resp, err := g.restClient.Users.Get(ctx, login)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			metrics.ProfileLookups.WithLabelValues("not_found").Inc()
			return nil, fmt.Errorf("failed to fetch profile of %s: %w", login, domain.ErrProfileNotFound)
		}
		metrics.ProfileLookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to fetch profile of %s: %w", login, classifyRESTError(err))
	}
	if user == nil || user.GetLogin() == "" {
		metrics.ProfileLookups.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("failed to fetch profile of %s: %w", login, domain.ErrProfileNotFound)
	}
	metrics.ProfileLookups.WithLabelValues("ok").Inc()
	return &domain.Profile{
		Email:   user.GetEmail(),
		Twitter: user.GetTwitterUsername(),
	}, nil
}

// CreateGist uploads content as a single-file gist.
func (g *GitHubGateway) CreateGist(ctx context.Context, filename, description, content string, public bool) (string, error) {
	gist := &github.Gist{
		Description: github.String(description),
		Public:      github.Bool(public),
		Files: map[github.GistFilename]github.GistFile{
			github.GistFilename(filename): {Content: github.String(content)},
		},
	}
	created, _, err := g.restClient.Gists.Create(ctx, gist)
	if err != nil {
		return "", fmt.Errorf("failed to create gist: %w", classifyRESTError(err))
	}
	g.logger.Printf("Created gist %s", created.GetHTMLURL())
	return created.GetHTMLURL(), nil
}

// classifyRESTError maps go-github errors onto the domain error taxonomy.
func classifyRESTError(err error) error {
	var (
		rateErr   *github.RateLimitError
		abuseErr  *github.AbuseRateLimitError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		return fmt.Errorf("%w: %w", domain.ErrQuotaExceeded, err)
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %w", domain.ErrDeserialize, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrFetch, err)
}

// classifyGraphQLError maps githubv4 errors onto the domain error taxonomy.
// The GraphQL client reports API-level failures as plain messages.
func classifyGraphQLError(err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, io.ErrUnexpectedEOF), strings.Contains(msg, "to unmarshal"):
		return fmt.Errorf("%w: %w", domain.ErrDeserialize, err)
	case strings.Contains(msg, "could not resolve to a repository"):
		return fmt.Errorf("%w: %w", domain.ErrRepositoryNotFound, err)
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "rate_limited"):
		return fmt.Errorf("%w: %w", domain.ErrQuotaExceeded, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrFetch, err)
}
