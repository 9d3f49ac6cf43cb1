// Package trainer builds assignee models from historical tickets.
package trainer

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Veraticus/dispatch/internal/common"
	"github.com/Veraticus/dispatch/internal/model"
	"github.com/Veraticus/dispatch/internal/normalize"
)

type options struct {
	clock   func() time.Time
	version string
}

// Option customizes a training run.
type Option func(*options)

// WithClock overrides the time source used for Metadata.TrainedAt.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithVersion overrides the schema version written into the metadata.
func WithVersion(version string) Option {
	return func(o *options) {
		o.version = version
	}
}

// Train aggregates the records into per-assignee term statistics.
// It fails without producing a model if the corpus is empty or any record
// has no assignee.
func Train(records []model.TicketRecord, opts ...Option) (*model.Model, error) {
	cfg := options{
		clock:   time.Now,
		version: model.SchemaVersion,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(records) == 0 {
		return nil, common.ErrEmptyCorpus
	}

	var assignees []string
	stats := make(map[string]*model.AssigneeStats)
	for i, rec := range records {
		if !rec.HasAssignee() {
			return nil, fmt.Errorf("%w: record %d (id %q)", common.ErrMissingAssignee, i, rec.ID)
		}
		if _, ok := stats[rec.Assignee]; !ok {
			assignees = append(assignees, rec.Assignee)
			stats[rec.Assignee] = &model.AssigneeStats{TermFreqs: make(map[string]int)}
		}
	}

	vocabulary := make(map[string]struct{})
	for _, rec := range records {
		s := stats[rec.Assignee]
		s.Count++
		for _, token := range normalize.Document(rec) {
			s.TermFreqs[token]++
			s.TotalTerms++
			vocabulary[token] = struct{}{}
		}
	}

	if len(vocabulary) == 0 {
		return nil, fmt.Errorf("%w: %d records contain no tokens", common.ErrEmptyCorpus, len(records))
	}

	frozen := make(map[string]model.AssigneeStats, len(stats))
	for assignee, s := range stats {
		frozen[assignee] = *s
	}

	m := &model.Model{
		Assignees:     assignees,
		AssigneeStats: frozen,
		Vocabulary:    sortedVocabulary(vocabulary),
		Metadata: model.Metadata{
			TrainedAt: cfg.clock().UTC(),
			Version:   cfg.version,
			Framework: model.Framework,
		},
	}

	for _, assignee := range assignees {
		s := frozen[assignee]
		slog.Debug("Assignee stats",
			"assignee", assignee,
			"count", s.Count,
			"unique_terms", len(s.TermFreqs),
			"total_terms", s.TotalTerms)
	}
	slog.Info("Trained model",
		"samples", len(records),
		"assignees", len(assignees),
		"vocabulary_size", m.VocabularySize())

	return m, nil
}

func sortedVocabulary(set map[string]struct{}) model.Vocabulary {
	vocab := make(model.Vocabulary, 0, len(set))
	for token := range set {
		vocab = append(vocab, token)
	}
	sort.Strings(vocab)
	return vocab
}
