// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// RelationKind is one of the edges an account can have to the tracked repository.
type RelationKind int

const (
	Fork RelationKind = iota
	Star
	Watch
)

// RelationKinds lists every relation in processing order.
var RelationKinds = []RelationKind{Fork, Star, Watch}

func (k RelationKind) String() string {
	switch k {
	case Fork:
		return "forks"
	case Star:
		return "stargazers"
	case Watch:
		return "watchers"
	default:
		return fmt.Sprintf("relation(%d)", int(k))
	}
}

// Timestamped reports whether events of this kind carry an occurrence time.
// Watch edges never do.
func (k RelationKind) Timestamped() bool {
	return k == Fork || k == Star
}

// Profile is the public contact info of an account. Empty fields mean "not published".
type Profile struct {
	Email   string `json:"email"`
	Twitter string `json:"twitter"`
}

// RelationEvent is one observed edge from the repository to an account.
// A zero OccurredAt means the upstream API did not provide a timestamp.
// Profile is non-nil when the page query carried the contact fields inline.
type RelationEvent struct {
	Kind       RelationKind
	Login      string
	OccurredAt time.Time
	Profile    *Profile
}

// HasTimestamp reports whether the event carries an occurrence time.
func (e RelationEvent) HasTimestamp() bool {
	return !e.OccurredAt.IsZero()
}

// AggregateRecord is one row of the final report.
type AggregateRecord struct {
	Login    string `json:"login"`
	Forked   bool   `json:"forked"`
	Starred  bool   `json:"starred"`
	Watching bool   `json:"watching"`
	Email    string `json:"email"`
	Twitter  string `json:"twitter"`
}

// Mark sets the flag that corresponds to kind.
func (r *AggregateRecord) Mark(kind RelationKind) {
	switch kind {
	case Fork:
		r.Forked = true
	case Star:
		r.Starred = true
	case Watch:
		r.Watching = true
	}
}

// LoginKey is the deduplication key for a login. GitHub logins are
// case-insensitive, so two spellings of the same login share one record.
func LoginKey(login string) string {
	return strings.ToLower(login)
}

// Summary describes a run in numbers.
type Summary struct {
	Forks            int      `json:"forks"`
	Stars            int      `json:"stars"`
	Watchers         int      `json:"watchers"`
	Accounts         int      `json:"accounts"`
	ProfileFailures  int      `json:"profile_failures"`
	PartialRelations []string `json:"partial_relations,omitempty"`
	MedianAgeDays    float64  `json:"median_age_days"`
}

// Report is the outcome of one aggregation run.
type Report struct {
	RunID       string             `json:"run_id"`
	Repo        RepoRef            `json:"repo"`
	WindowStart time.Time          `json:"window_start"`
	GeneratedAt time.Time          `json:"generated_at"`
	Records     []*AggregateRecord `json:"records"`
	Summary     Summary            `json:"summary"`
}
