package gateway

import (
	"context"

	"github.com/shurcooL/githubv4"

	"github.com/naka-gawa/github-audience/internal/domain"
)

// connection is the shared shape of every relation connection we traverse.
type connection[E any] struct {
	PageInfo struct {
		HasNextPage bool
		EndCursor   githubv4.String
	}
	Edges []E
}

// contactFields are requested inline on user nodes so most logins never need
// a separate profile lookup.
type contactFields struct {
	Email           string
	TwitterUsername *string
}

type userNode struct {
	Login string
	contactFields
}

type forkEdge struct {
	Node struct {
		CreatedAt githubv4.DateTime
		Owner     struct {
			Typename string `graphql:"__typename"`
			Login    string
			User     contactFields `graphql:"... on User"`
		}
	}
}

type starEdge struct {
	StarredAt githubv4.DateTime
	Node      userNode
}

type watchEdge struct {
	Node userNode
}

type forksQuery struct {
	Repository struct {
		Forks connection[forkEdge] `graphql:"forks(first: $first, after: $cursor, orderBy: $order)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

type stargazersQuery struct {
	Repository struct {
		Stargazers connection[starEdge] `graphql:"stargazers(first: $first, after: $cursor, orderBy: $order)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

type watchersQuery struct {
	Repository struct {
		Watchers connection[watchEdge] `graphql:"watchers(first: $first, after: $cursor)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

func (c contactFields) profile() *domain.Profile {
	p := &domain.Profile{Email: c.Email}
	if c.TwitterUsername != nil {
		p.Twitter = *c.TwitterUsername
	}
	return p
}

func forkEvent(e forkEdge) (domain.RelationEvent, bool) {
	owner := e.Node.Owner
	if owner.Login == "" {
		return domain.RelationEvent{}, false
	}
	ev := domain.RelationEvent{
		Kind:       domain.Fork,
		Login:      owner.Login,
		OccurredAt: e.Node.CreatedAt.Time,
	}
	// Organisations have no public email or Twitter handle on this type.
	if owner.Typename == "User" {
		ev.Profile = owner.User.profile()
	}
	return ev, true
}

func starEvent(e starEdge) (domain.RelationEvent, bool) {
	if e.Node.Login == "" {
		return domain.RelationEvent{}, false
	}
	return domain.RelationEvent{
		Kind:       domain.Star,
		Login:      e.Node.Login,
		OccurredAt: e.StarredAt.Time,
		Profile:    e.Node.profile(),
	}, true
}

func watchEvent(e watchEdge) (domain.RelationEvent, bool) {
	if e.Node.Login == "" {
		return domain.RelationEvent{}, false
	}
	return domain.RelationEvent{
		Kind:    domain.Watch,
		Login:   e.Node.Login,
		Profile: e.Node.profile(),
	}, true
}

// runPageQuery executes one relation query and converts its edges.
func runPageQuery[Q any, E any](
	ctx context.Context,
	client *githubv4.Client,
	variables map[string]interface{},
	conn func(*Q) *connection[E],
	convert func(E) (domain.RelationEvent, bool),
) (*Page, error) {
	var q Q
	if err := client.Query(ctx, &q, variables); err != nil {
		return nil, classifyGraphQLError(err)
	}
	c := conn(&q)
	page := &Page{
		Events:      make([]domain.RelationEvent, 0, len(c.Edges)),
		EdgeCount:   len(c.Edges),
		EndCursor:   string(c.PageInfo.EndCursor),
		HasNextPage: c.PageInfo.HasNextPage,
	}
	for _, edge := range c.Edges {
		if ev, ok := convert(edge); ok {
			page.Events = append(page.Events, ev)
		}
	}
	return page, nil
}
