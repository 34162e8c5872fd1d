package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/naka-gawa/github-audience/internal/domain"
)

const (
	mdYes = "yes"
	mdNo  = "no"
)

// mdEscaper keeps every cell on one line; splitMarkdownRow reverses it.
var mdEscaper = strings.NewReplacer(`\`, `\\`, `|`, `\|`, "\n", `\n`, "\r", `\r`)

// RenderMarkdown writes a GitHub-flavoured Markdown table.
func RenderMarkdown(w io.Writer, records []*domain.AggregateRecord) error {
	bw := bufio.NewWriter(w)
	writeRow := func(cells []string) {
		bw.WriteString("|")
		for _, c := range cells {
			bw.WriteString(" " + mdEscaper.Replace(c) + " |")
		}
		bw.WriteString("\n")
	}
	writeRow(Header)
	sep := make([]string, len(Header))
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(sep)
	for _, rec := range records {
		writeRow(row(rec, mdYes, mdNo))
	}
	return bw.Flush()
}

// ParseMarkdown reads the table written by RenderMarkdown. Lines outside the
// table are ignored.
func ParseMarkdown(r io.Reader) ([]*domain.AggregateRecord, error) {
	sc := bufio.NewScanner(r)
	records := []*domain.AggregateRecord{}
	seenHeader, seenSep := false, false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "|") {
			continue
		}
		cells := splitMarkdownRow(line)
		switch {
		case !seenHeader:
			if len(cells) == 0 || strings.TrimSpace(cells[0]) != Header[0] {
				return nil, fmt.Errorf("%w: unexpected table header %q", domain.ErrDeserialize, line)
			}
			seenHeader = true
		case !seenSep:
			seenSep = true
		default:
			rec, err := fromRow(cells, parseMarkdownFlag)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDeserialize, err)
	}
	if !seenHeader {
		return nil, fmt.Errorf("%w: no table found", domain.ErrDeserialize)
	}
	return records, nil
}

func parseMarkdownFlag(s string) (bool, error) {
	switch s {
	case mdYes:
		return true, nil
	case mdNo:
		return false, nil
	}
	return false, fmt.Errorf("invalid flag %q", s)
}

// splitMarkdownRow splits "| a | b\|c |" into cells, honouring escapes.
// Only the single padding space on each side of a cell is removed.
func splitMarkdownRow(line string) []string {
	line = strings.TrimPrefix(line, "|")
	var (
		cells []string
		cur   strings.Builder
	)
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case c == '\\' && i+1 < len(line):
			i++
			switch line[i] {
			case 'n':
				cur.WriteByte('\n')
			case 'r':
				cur.WriteByte('\r')
			default:
				cur.WriteByte(line[i])
			}
		case c == '|':
			cells = append(cells, unpad(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if rest := cur.String(); strings.TrimSpace(rest) != "" {
		cells = append(cells, unpad(rest))
	}
	return cells
}

func unpad(cell string) string {
	return strings.TrimSuffix(strings.TrimPrefix(cell, " "), " ")
}
