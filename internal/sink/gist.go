package sink

import (
	"bytes"
	"context"
	"fmt"

	"github.com/naka-gawa/github-audience/internal/domain"
	"github.com/naka-gawa/github-audience/internal/gateway"
	"github.com/naka-gawa/github-audience/internal/report"
)

// GistSink uploads each report as a new gist.
type GistSink struct {
	gists  gateway.GistCreator
	format report.Format
	public bool
}

func NewGistSink(gists gateway.GistCreator, format report.Format, public bool) *GistSink {
	return &GistSink{gists: gists, format: format, public: public}
}

func (s *GistSink) Publish(ctx context.Context, r *domain.Report) (string, error) {
	var buf bytes.Buffer
	if err := report.Render(&buf, s.format, r); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	description := fmt.Sprintf("Audience of %s since %s (%d accounts)", r.Repo, r.WindowStart.Format("2006-01-02"), len(r.Records))
	return s.gists.CreateGist(ctx, report.Filename(r, s.format), description, buf.String(), s.public)
}

func (s *GistSink) Close() error { return nil }
