package sink

import (
	"context"
	"io"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/github-audience/internal/domain"
)

func TestPostgresSink(t *testing.T) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := NewPostgresSink(ctx, databaseURL, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Health(ctx))

	rep := testReport(&domain.AggregateRecord{Login: "alice", Forked: true})
	rep.Repo = domain.RepoRef{Owner: "sink-test", Name: "postgres"}
	where, err := s.Publish(ctx, rep)
	require.NoError(t, err)
	assert.Equal(t, "postgres:audience_records(sink-test/postgres)", where)
	_, err = s.pool.Exec(ctx, "DELETE FROM audience_records WHERE owner = $1", rep.Repo.Owner)
	require.NoError(t, err)
}
