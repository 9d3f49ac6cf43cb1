package model

import (
	"fmt"
	"time"

	"github.com/Veraticus/dispatch/internal/common"
)

const (
	// SchemaVersion is written into every trained artifact.
	SchemaVersion = "1.0.0"
	// Framework identifies the implementation that produced an artifact.
	Framework = "go-dispatch"
)

// AssigneeStats holds the term statistics accumulated for one assignee.
type AssigneeStats struct {
	TermFreqs  map[string]int `json:"termFreqs"`
	Count      int            `json:"count"`
	TotalTerms int            `json:"totalTerms"`
}

// Vocabulary is the sorted set of distinct tokens seen across a training corpus.
type Vocabulary []string

// Size returns the number of distinct tokens.
func (v Vocabulary) Size() int {
	return len(v)
}

// Metadata describes when and how a model was produced.
type Metadata struct {
	TrainedAt time.Time `json:"trainedAt"`
	Version   string    `json:"version"`
	Framework string    `json:"framework,omitempty"`
}

// Model is a trained artifact. It is never mutated after training; a
// retrain produces a new value.
type Model struct {
	AssigneeStats map[string]AssigneeStats `json:"assigneeStats"`
	Metadata      Metadata                 `json:"metadata"`
	Assignees     []string                 `json:"assignees"`
	Vocabulary    Vocabulary               `json:"vocabulary"`
}

// AssigneeList returns a copy of the assignees in first-seen order.
func (m *Model) AssigneeList() []string {
	out := make([]string, len(m.Assignees))
	copy(out, m.Assignees)
	return out
}

// VocabularySize returns the cardinality of the global vocabulary.
func (m *Model) VocabularySize() int {
	return m.Vocabulary.Size()
}

// TrainingSamples returns the number of tickets the model was trained on.
func (m *Model) TrainingSamples() int {
	total := 0
	for _, stats := range m.AssigneeStats {
		total += stats.Count
	}
	return total
}

// Stats returns the statistics for one assignee.
func (m *Model) Stats(assignee string) (AssigneeStats, bool) {
	stats, ok := m.AssigneeStats[assignee]
	return stats, ok
}

// Validate checks the structural invariants of a model, typically after it
// has been loaded from disk.
func (m *Model) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil model", common.ErrInvalidModel)
	}
	if len(m.Assignees) == 0 {
		return fmt.Errorf("%w: no assignees", common.ErrInvalidModel)
	}
	if len(m.Assignees) != len(m.AssigneeStats) {
		return fmt.Errorf("%w: %d assignees but %d stats entries",
			common.ErrInvalidModel, len(m.Assignees), len(m.AssigneeStats))
	}

	seen := make(map[string]bool, len(m.Assignees))
	terms := make(map[string]bool)
	for _, assignee := range m.Assignees {
		if seen[assignee] {
			return fmt.Errorf("%w: duplicate assignee %q", common.ErrInvalidModel, assignee)
		}
		seen[assignee] = true

		stats, ok := m.AssigneeStats[assignee]
		if !ok {
			return fmt.Errorf("%w: no stats for assignee %q", common.ErrInvalidModel, assignee)
		}

		sum := 0
		for term, freq := range stats.TermFreqs {
			sum += freq
			terms[term] = true
		}
		if sum != stats.TotalTerms {
			return fmt.Errorf("%w: assignee %q totalTerms %d does not match term sum %d",
				common.ErrInvalidModel, assignee, stats.TotalTerms, sum)
		}
	}

	if m.Vocabulary.Size() == 0 {
		return fmt.Errorf("%w: empty vocabulary", common.ErrInvalidModel)
	}
	if m.Vocabulary.Size() != len(terms) {
		return fmt.Errorf("%w: vocabulary size %d does not match %d distinct terms",
			common.ErrInvalidModel, m.Vocabulary.Size(), len(terms))
	}
	vocab := make(map[string]bool, m.Vocabulary.Size())
	for _, term := range m.Vocabulary {
		if vocab[term] {
			return fmt.Errorf("%w: duplicate vocabulary term %q", common.ErrInvalidModel, term)
		}
		vocab[term] = true
		if !terms[term] {
			return fmt.Errorf("%w: vocabulary term %q not seen in any assignee", common.ErrInvalidModel, term)
		}
	}

	return nil
}
