// Package corpus loads labeled ticket histories for training.
package corpus

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Veraticus/dispatch/internal/model"
)

// ErrMissingColumn is returned when a CSV header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

const (
	colID          = "id"
	colTitle       = "title"
	colDescription = "description"
	colLabels      = "labels"
	colAssignee    = "assignee"
)

// ReadCSV parses a ticket export with a header row. Column order is free and
// matching is case-insensitive; only assignee is required. Rows whose labels
// are not a JSON array are recovered with ParseLabels' fallback.
func ReadCSV(r io.Reader) ([]model.TicketRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}
	if _, ok := columns[colAssignee]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, colAssignee)
	}

	field := func(row []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []model.TicketRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", len(records)+2, err)
		}

		rec := model.TicketRecord{
			ID:          strings.TrimSpace(field(row, colID)),
			Title:       field(row, colTitle),
			Description: field(row, colDescription),
			Assignee:    strings.TrimSpace(field(row, colAssignee)),
		}

		raw := field(row, colLabels)
		labels, ok := ParseLabels(raw)
		if !ok {
			slog.Warn("labels are not a JSON array, using fallback split",
				"id", rec.ID,
				"labels", raw,
				"parsed", labels)
		}
		rec.Labels = labels

		records = append(records, rec)
	}

	slog.Debug("Loaded training samples", "count", len(records))
	return records, nil
}

// ReadCSVFile opens path and parses it with ReadCSV.
func ReadCSVFile(path string) ([]model.TicketRecord, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Error("failed to close corpus file", "path", path, "error", closeErr)
		}
	}()

	records, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// ParseLabels decodes a labels cell. The expected form is a JSON array of
// strings, possibly wrapped in an extra pair of quotes with escaped inner
// quotes. Anything else falls back to stripping brackets, quotes and
// backslashes and splitting on commas; ok is false when the fallback ran.
// A blank cell yields no labels.
func ParseLabels(raw string) (labels []string, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, true
	}

	unwrapped := s
	if len(unwrapped) >= 2 && strings.HasPrefix(unwrapped, `"`) && strings.HasSuffix(unwrapped, `"`) {
		unwrapped = unwrapped[1 : len(unwrapped)-1]
	}
	unwrapped = strings.ReplaceAll(unwrapped, `\"`, `"`)

	if err := json.Unmarshal([]byte(unwrapped), &labels); err == nil {
		return labels, true
	}

	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '"', '\\':
			return -1
		}
		return r
	}, s)

	labels = nil
	for _, part := range strings.Split(cleaned, ",") {
		if part = strings.TrimSpace(part); part != "" {
			labels = append(labels, part)
		}
	}
	return labels, false
}
