package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/naka-gawa/github-audience/internal/domain"
	"github.com/naka-gawa/github-audience/internal/report"
)

// WriterSink renders reports onto an io.Writer.
type WriterSink struct {
	w      io.Writer
	format report.Format
}

func NewWriterSink(w io.Writer, format report.Format) *WriterSink {
	return &WriterSink{w: w, format: format}
}

func (s *WriterSink) Publish(ctx context.Context, r *domain.Report) (string, error) {
	if err := report.Render(s.w, s.format, r); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return "stdout", nil
}

func (s *WriterSink) Close() error { return nil }

// FileSink writes each report to a file. When path is a directory the file
// is named after the repository and the run date.
type FileSink struct {
	path   string
	format report.Format
}

func NewFileSink(path string, format report.Format) *FileSink {
	return &FileSink{path: path, format: format}
}

func (s *FileSink) Publish(ctx context.Context, r *domain.Report) (string, error) {
	var buf bytes.Buffer
	if err := report.Render(&buf, s.format, r); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	path := s.path
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, report.Filename(r, s.format))
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

func (s *FileSink) Close() error { return nil }
