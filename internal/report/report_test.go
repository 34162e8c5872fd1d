package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/github-audience/internal/domain"
)

func sampleRecords() []*domain.AggregateRecord {
	return []*domain.AggregateRecord{
		{Login: "alice", Forked: true, Starred: true, Watching: true, Email: "alice@example.com", Twitter: "alice_tw"},
		{Login: "Bob", Starred: true},
		{Login: "carol", Watching: true, Email: `"quoted", with comma`, Twitter: `pipe|and\backslash`},
		{Login: "dave", Forked: true, Email: " padded@example.com ", Twitter: "line1\nline2 " + `\n`},
	}
}

func TestRoundTrip(t *testing.T) {
	testCases := []struct {
		name   string
		render func(*bytes.Buffer, []*domain.AggregateRecord) error
		parse  func(*bytes.Buffer) ([]*domain.AggregateRecord, error)
	}{
		{
			name:   "csv",
			render: func(b *bytes.Buffer, r []*domain.AggregateRecord) error { return RenderCSV(b, r) },
			parse:  func(b *bytes.Buffer) ([]*domain.AggregateRecord, error) { return ParseCSV(b) },
		},
		{
			name:   "markdown",
			render: func(b *bytes.Buffer, r []*domain.AggregateRecord) error { return RenderMarkdown(b, r) },
			parse:  func(b *bytes.Buffer) ([]*domain.AggregateRecord, error) { return ParseMarkdown(b) },
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for _, records := range [][]*domain.AggregateRecord{sampleRecords(), {}} {
				var buf bytes.Buffer
				require.NoError(t, tc.render(&buf, records))
				parsed, err := tc.parse(&buf)
				require.NoError(t, err)
				assert.Equal(t, records, parsed)
			}
		})
	}
}

func TestEmptyReportRendersHeaderOnly(t *testing.T) {
	var csvBuf, mdBuf bytes.Buffer
	require.NoError(t, RenderCSV(&csvBuf, nil))
	require.NoError(t, RenderMarkdown(&mdBuf, nil))

	assert.Equal(t, "Login,Forked,Starred,Watching,Email,Twitter\n", csvBuf.String())
	assert.Equal(t, "| Login | Forked | Starred | Watching | Email | Twitter |\n| --- | --- | --- | --- | --- | --- |\n", mdBuf.String())
}

func TestRenderMarkdown_Rows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderMarkdown(&buf, sampleRecords()[:2]))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "| alice | yes | yes | yes | alice@example.com | alice_tw |", lines[2])
	assert.Equal(t, "| Bob | no | yes | no |  |  |", lines[3])
}

func TestRenderMarkdown_KeepsCellsOnOneLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderMarkdown(&buf, sampleRecords()[3:]))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `| dave | yes | no | no |  padded@example.com  | line1\nline2 \\n |`, lines[2])
}

func TestParseErrors(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, domain.ErrDeserialize)

	_, err = ParseCSV(strings.NewReader("Login,Forked,Starred,Watching,Email,Twitter\nalice,maybe,true,true,,\n"))
	assert.ErrorIs(t, err, domain.ErrDeserialize)

	_, err = ParseMarkdown(strings.NewReader("no table here"))
	assert.ErrorIs(t, err, domain.ErrDeserialize)

	_, err = ParseMarkdown(strings.NewReader("| Login | Forked | Starred | Watching | Email | Twitter |\n| --- | --- | --- | --- | --- | --- |\n| a | yes | no |\n"))
	assert.ErrorIs(t, err, domain.ErrDeserialize)
}

func TestRender(t *testing.T) {
	r := &domain.Report{
		RunID:       "run-1",
		Repo:        domain.RepoRef{Owner: "wasmedge", Name: "wasmedge"},
		GeneratedAt: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		Records:     sampleRecords()[:1],
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatJSON, r))
	var decoded domain.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, r.Records, decoded.Records)
	assert.Equal(t, "run-1", decoded.RunID)

	assert.Error(t, Render(&buf, Format("xml"), r))
	assert.Equal(t, "wasmedge-wasmedge-20261019.md", Filename(r, FormatMarkdown))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatMarkdown, "md": FormatMarkdown, "CSV": FormatCSV, "json": FormatJSON} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xlsx")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
