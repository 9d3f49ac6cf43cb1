package corpus

import (
	"context"
	"fmt"

	"github.com/Veraticus/dispatch/internal/model"
	"github.com/Veraticus/dispatch/internal/service"
)

// CSVSource reads the training corpus from a CSV export on every run.
type CSVSource struct {
	path string
}

// NewCSVSource returns a source backed by the CSV file at path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Records implements service.CorpusSource.
func (s *CSVSource) Records(ctx context.Context) ([]model.TicketRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadCSVFile(s.path)
}

func (s *CSVSource) String() string {
	return "csv:" + s.path
}

// StoreSource reads the training corpus from the ticket database.
type StoreSource struct {
	store service.TicketStore
}

// NewStoreSource returns a source backed by store.
func NewStoreSource(store service.TicketStore) *StoreSource {
	return &StoreSource{store: store}
}

// Records implements service.CorpusSource.
func (s *StoreSource) Records(ctx context.Context) ([]model.TicketRecord, error) {
	records, err := s.store.GetTickets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tickets: %w", err)
	}
	return records, nil
}

func (s *StoreSource) String() string {
	return "db"
}

var (
	_ service.CorpusSource = (*CSVSource)(nil)
	_ service.CorpusSource = (*StoreSource)(nil)
)
