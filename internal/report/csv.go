package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/naka-gawa/github-audience/internal/domain"
)

// RenderCSV writes a header row followed by one row per record.
func RenderCSV(w io.Writer, records []*domain.AggregateRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(row(rec, strconv.FormatBool(true), strconv.FormatBool(false))); err != nil {
			return fmt.Errorf("failed to write CSV row for %s: %w", rec.Login, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParseCSV reads records written by RenderCSV.
func ParseCSV(r io.Reader) ([]*domain.AggregateRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty CSV", domain.ErrDeserialize)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrDeserialize, err)
	}
	if header[0] != Header[0] {
		return nil, fmt.Errorf("%w: unexpected CSV header %v", domain.ErrDeserialize, header)
	}
	records := []*domain.AggregateRecord{}
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrDeserialize, err)
		}
		rec, err := fromRow(fields, parseBool)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}
