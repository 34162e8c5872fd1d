// Package report renders aggregate records as CSV, Markdown or JSON and
// parses the tabular formats back.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/naka-gawa/github-audience/internal/domain"
)

// Format is an output format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// Header is the column order of the tabular formats.
var Header = []string{"Login", "Forked", "Starred", "Watching", "Email", "Twitter"}

// ParseFormat accepts a format name or its usual file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unknown report format %q", domain.ErrInvalidInput, s)
}

// Extension is the file extension, without the dot.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// ContentType is the HTTP content type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// Render writes the report in the given format.
func Render(w io.Writer, f Format, r *domain.Report) error {
	switch f {
	case FormatCSV:
		return RenderCSV(w, r.Records)
	case FormatMarkdown:
		return RenderMarkdown(w, r.Records)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	return fmt.Errorf("%w: unknown report format %q", domain.ErrInvalidInput, f)
}

// Filename names a report file for a repository.
func Filename(r *domain.Report, f Format) string {
	return fmt.Sprintf("%s-%s-%s.%s", r.Repo.Owner, r.Repo.Name, r.GeneratedAt.UTC().Format("20060102"), f.Extension())
}

func row(rec *domain.AggregateRecord, yes, no string) []string {
	flag := func(b bool) string {
		if b {
			return yes
		}
		return no
	}
	return []string{rec.Login, flag(rec.Forked), flag(rec.Starred), flag(rec.Watching), rec.Email, rec.Twitter}
}

func fromRow(fields []string, parseFlag func(string) (bool, error)) (*domain.AggregateRecord, error) {
	if len(fields) != len(Header) {
		return nil, fmt.Errorf("%w: expected %d columns, got %d", domain.ErrDeserialize, len(Header), len(fields))
	}
	rec := &domain.AggregateRecord{Login: fields[0], Email: fields[4], Twitter: fields[5]}
	for i, dst := range []*bool{&rec.Forked, &rec.Starred, &rec.Watching} {
		b, err := parseFlag(fields[i+1])
		if err != nil {
			return nil, fmt.Errorf("%w: column %s: %v", domain.ErrDeserialize, Header[i+1], err)
		}
		*dst = b
	}
	return rec, nil
}

func parseBool(s string) (bool, error) {
	return strconv.ParseBool(strings.TrimSpace(s))
}
