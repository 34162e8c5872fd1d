package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	ownerPattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})$`)
	namePattern  = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)
)

// RepoRef identifies a GitHub repository.
type RepoRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

func (r RepoRef) String() string {
	return r.Owner + "/" + r.Name
}

// Validate checks owner and name against the characters GitHub allows.
func (r RepoRef) Validate() error {
	if r.Owner == "" || r.Name == "" {
		return fmt.Errorf("%w: owner and repo are required", ErrInvalidInput)
	}
	if !ownerPattern.MatchString(r.Owner) {
		return fmt.Errorf("%w: invalid owner %q", ErrInvalidInput, r.Owner)
	}
	if !namePattern.MatchString(r.Name) || r.Name == "." || r.Name == ".." {
		return fmt.Errorf("%w: invalid repo %q", ErrInvalidInput, r.Name)
	}
	return nil
}

// ParseRepoRef parses "owner/repo".
func ParseRepoRef(s string) (RepoRef, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return RepoRef{}, fmt.Errorf("%w: expected owner/repo, got %q", ErrInvalidInput, s)
	}
	ref := RepoRef{Owner: owner, Name: name}
	if err := ref.Validate(); err != nil {
		return RepoRef{}, err
	}
	return ref, nil
}

// ResolveRepoRef combines separate owner/repo values, accepting a combined
// "owner/repo" in repo when owner is empty.
func ResolveRepoRef(owner, repo string) (RepoRef, error) {
	owner, repo = strings.TrimSpace(owner), strings.TrimSpace(repo)
	if owner == "" && strings.Contains(repo, "/") {
		return ParseRepoRef(repo)
	}
	ref := RepoRef{Owner: owner, Name: repo}
	if err := ref.Validate(); err != nil {
		return RepoRef{}, err
	}
	return ref, nil
}
