// Package scorer predicts the assignee for new ticket text from a trained model.
//
// Each assignee a is scored as
//
//	log(count_a / N) + Σ_t log((f_a(t) + 1) / (totalTerms_a + |V|))
//
// where N is the number of assignees and |V| the global vocabulary size. The
// first term is not a normalized prior.
package scorer

import (
	"math"

	"github.com/Veraticus/dispatch/internal/common"
	"github.com/Veraticus/dispatch/internal/model"
	"github.com/Veraticus/dispatch/internal/normalize"
)

// Scorer evaluates text against one immutable model. It is safe for
// concurrent use.
type Scorer struct {
	model *model.Model
}

// New creates a scorer for m. A nil model yields a scorer that reports
// common.ErrModelNotLoaded.
func New(m *model.Model) *Scorer {
	return &Scorer{model: m}
}

// Model returns the model the scorer reads from.
func (s *Scorer) Model() *model.Model {
	return s.model
}

// Predict returns the highest-scoring assignee for text.
func (s *Scorer) Predict(text string) (string, error) {
	tokens, err := s.tokens(text)
	if err != nil {
		return "", err
	}

	best := ""
	bestScore := math.Inf(-1)
	for i, assignee := range s.model.Assignees {
		score := s.score(assignee, tokens)
		if i == 0 || score > bestScore {
			best, bestScore = assignee, score
		}
	}
	return best, nil
}

// Rank returns every assignee's score, sorted best first.
func (s *Scorer) Rank(text string) (model.AssigneeRankings, error) {
	tokens, err := s.tokens(text)
	if err != nil {
		return nil, err
	}

	rankings := make(model.AssigneeRankings, 0, len(s.model.Assignees))
	for i, assignee := range s.model.Assignees {
		rankings = append(rankings, model.AssigneeRanking{
			Assignee: assignee,
			Score:    s.score(assignee, tokens),
			Order:    i,
		})
	}
	rankings.Sort()
	return rankings, nil
}

func (s *Scorer) tokens(text string) ([]string, error) {
	if s == nil || s.model == nil {
		return nil, common.ErrModelNotLoaded
	}
	tokens := normalize.Tokenize(text)
	if len(tokens) == 0 {
		return nil, common.ErrEmptyInput
	}
	return tokens, nil
}

func (s *Scorer) score(assignee string, tokens []string) float64 {
	stats := s.model.AssigneeStats[assignee]
	vocabSize := s.model.VocabularySize()

	score := math.Log(float64(stats.Count) / float64(len(s.model.AssigneeStats)))
	for _, token := range tokens {
		score += math.Log(TermProbability(stats, token, vocabSize))
	}
	return score
}

// TermProbability is the add-one smoothed probability of token under stats.
func TermProbability(stats model.AssigneeStats, token string, vocabSize int) float64 {
	freq := stats.TermFreqs[token]
	return float64(freq+1) / float64(stats.TotalTerms+vocabSize)
}
