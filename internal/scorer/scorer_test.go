package scorer_test

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/dispatch/internal/common"
	"github.com/Veraticus/dispatch/internal/model"
	"github.com/Veraticus/dispatch/internal/scorer"
	"github.com/Veraticus/dispatch/internal/trainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
}

func trainModel(t *testing.T, records []model.TicketRecord) *model.Model {
	t.Helper()
	m, err := trainer.Train(records, trainer.WithClock(fixedClock))
	require.NoError(t, err)
	return m
}

func aliceBobModel(t *testing.T) *model.Model {
	t.Helper()
	return trainModel(t, []model.TicketRecord{
		{Title: "login error", Assignee: "alice"},
		{Title: "api 500 backend", Assignee: "bob"},
	})
}

func TestPredict_EndToEnd(t *testing.T) {
	s := scorer.New(aliceBobModel(t))

	tests := []struct {
		text string
		want string
	}{
		{text: "login broken", want: "alice"},
		{text: "backend api down", want: "bob"},
		{text: "LOGIN Error", want: "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := s.Predict(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPredict_Errors(t *testing.T) {
	t.Run("nil model", func(t *testing.T) {
		_, err := scorer.New(nil).Predict("login broken")
		assert.ErrorIs(t, err, common.ErrModelNotLoaded)

		_, err = scorer.New(nil).Rank("login broken")
		assert.ErrorIs(t, err, common.ErrModelNotLoaded)
	})

	t.Run("nil scorer", func(t *testing.T) {
		var s *scorer.Scorer
		_, err := s.Predict("login")
		assert.ErrorIs(t, err, common.ErrModelNotLoaded)
	})

	s := scorer.New(aliceBobModel(t))
	for _, text := range []string{"", "   ", "\t\n  "} {
		_, err := s.Predict(text)
		assert.ErrorIs(t, err, common.ErrEmptyInput, "text %q", text)

		_, err = s.Rank(text)
		assert.ErrorIs(t, err, common.ErrEmptyInput, "text %q", text)
	}
}

func TestPredict_TieBreaksOnFirstSeenOrder(t *testing.T) {
	carolFirst := trainModel(t, []model.TicketRecord{
		{Title: "printer jam", Assignee: "carol"},
		{Title: "printer jam", Assignee: "dave"},
	})
	daveFirst := trainModel(t, []model.TicketRecord{
		{Title: "printer jam", Assignee: "dave"},
		{Title: "printer jam", Assignee: "carol"},
	})

	got, err := scorer.New(carolFirst).Predict("printer")
	require.NoError(t, err)
	assert.Equal(t, "carol", got)

	got, err = scorer.New(daveFirst).Predict("printer")
	require.NoError(t, err)
	assert.Equal(t, "dave", got)

	rankings, err := scorer.New(carolFirst).Rank("printer")
	require.NoError(t, err)
	require.Len(t, rankings, 2)
	assert.Equal(t, rankings[0].Score, rankings[1].Score)
	assert.Equal(t, "carol", rankings[0].Assignee)
}

func TestRank_MatchesFormula(t *testing.T) {
	m := aliceBobModel(t)
	rankings, err := scorer.New(m).Rank("login broken")
	require.NoError(t, err)
	require.Len(t, rankings, 2)

	// |V| = 5; alice has 2 terms, bob has 3; N = 2.
	wantAlice := math.Log(1.0/2.0) + math.Log(2.0/7.0) + math.Log(1.0/7.0)
	wantBob := math.Log(1.0/2.0) + math.Log(1.0/8.0) + math.Log(1.0/8.0)

	assert.Equal(t, "alice", rankings[0].Assignee)
	assert.InDelta(t, wantAlice, rankings[0].Score, 1e-12)
	assert.Equal(t, "bob", rankings[1].Assignee)
	assert.InDelta(t, wantBob, rankings[1].Score, 1e-12)
}

func TestRank_PriorUsesAssigneeCount(t *testing.T) {
	m := trainModel(t, []model.TicketRecord{
		{Title: "a", Assignee: "alice"},
		{Title: "a", Assignee: "alice"},
		{Title: "a", Assignee: "alice"},
		{Title: "b", Assignee: "bob"},
	})

	rankings, err := scorer.New(m).Rank("c")
	require.NoError(t, err)

	// alice: log(3/2) + log(1/(3+2)); bob: log(1/2) + log(1/(1+2)).
	byName := map[string]float64{}
	for _, r := range rankings {
		byName[r.Assignee] = r.Score
	}
	assert.InDelta(t, math.Log(3.0/2.0)+math.Log(1.0/5.0), byName["alice"], 1e-12)
	assert.InDelta(t, math.Log(1.0/2.0)+math.Log(1.0/3.0), byName["bob"], 1e-12)
}

func TestTermProbability_Smoothing(t *testing.T) {
	m := trainModel(t, []model.TicketRecord{
		{Title: "login error login", Assignee: "alice"},
		{Title: "api 500 backend", Assignee: "bob"},
	})
	vocab := m.VocabularySize()

	for _, assignee := range m.Assignees {
		stats, _ := m.Stats(assignee)
		for _, token := range []string{"never-seen", "unknown"} {
			p := scorer.TermProbability(stats, token, vocab)
			assert.InDelta(t, 1.0/float64(stats.TotalTerms+vocab), p, 1e-15)
			assert.Greater(t, p, 0.0)
		}
	}

	alice, _ := m.Stats("alice")
	assert.InDelta(t, 3.0/float64(3+vocab), scorer.TermProbability(alice, "login", vocab), 1e-15)
}

func TestPredict_Deterministic(t *testing.T) {
	s := scorer.New(aliceBobModel(t))

	first, err := s.Rank("login api backend error")
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := s.Rank("login api backend error")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestPredict_ConcurrentReaders(t *testing.T) {
	s := scorer.New(aliceBobModel(t))

	var wg sync.WaitGroup
	results := make([]string, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := s.Predict("login broken")
			if err == nil {
				results[i] = got
			}
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, "alice", got)
	}
}
