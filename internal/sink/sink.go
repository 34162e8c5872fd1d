// Package sink publishes rendered reports to their destination.
package sink

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/naka-gawa/github-audience/internal/domain"
	"github.com/naka-gawa/github-audience/internal/gateway"
	"github.com/naka-gawa/github-audience/internal/report"
)

// Sink publishes a report and returns where it went.
type Sink interface {
	Publish(ctx context.Context, r *domain.Report) (string, error)
	Close() error
}

// Options carries what the individual sinks need.
type Options struct {
	Format      report.Format
	Stdout      io.Writer
	Gists       gateway.GistCreator
	GistPublic  bool
	DatabaseURL string
	Logger      *log.Logger
}

// New builds a sink from a target such as "stdout", "file:<path>", "gist",
// "postgres" or "sqlite:<path>".
func New(ctx context.Context, target string, opts Options) (Sink, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	kind, arg, _ := strings.Cut(strings.TrimSpace(target), ":")
	switch kind {
	case "", "stdout":
		out := opts.Stdout
		if out == nil {
			out = os.Stdout
		}
		return NewWriterSink(out, opts.Format), nil
	case "file":
		if arg == "" {
			return nil, fmt.Errorf("%w: file sink needs a path", domain.ErrInvalidInput)
		}
		return NewFileSink(arg, opts.Format), nil
	case "gist":
		if opts.Gists == nil {
			return nil, fmt.Errorf("%w: gist sink needs a GitHub client", domain.ErrInvalidInput)
		}
		return NewGistSink(opts.Gists, opts.Format, opts.GistPublic), nil
	case "postgres", "postgresql":
		dsn := opts.DatabaseURL
		switch {
		case strings.HasPrefix(arg, "//"):
			// The target is itself a postgres:// URL.
			dsn = strings.TrimSpace(target)
		case arg != "":
			dsn = arg
		}
		if dsn == "" {
			return nil, fmt.Errorf("%w: postgres sink needs DATABASE_URL", domain.ErrInvalidInput)
		}
		s, err := NewPostgresSink(ctx, dsn, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		if arg == "" {
			return nil, fmt.Errorf("%w: sqlite sink needs a path", domain.ErrInvalidInput)
		}
		s, err := NewSQLiteSink(arg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: unknown sink %q", domain.ErrInvalidInput, target)
}
