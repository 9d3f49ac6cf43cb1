package trainer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/dispatch/internal/common"
	"github.com/Veraticus/dispatch/internal/model"
	"github.com/Veraticus/dispatch/internal/normalize"
	"github.com/Veraticus/dispatch/internal/scorer"
)

const sampleSize = 3

// Prediction pairs a model's answer with the recorded owner of a ticket.
type Prediction struct {
	ID        string
	Predicted string
	Actual    string
	Correct   bool
}

// Evaluation summarizes how well a model reproduces a labeled corpus.
type Evaluation struct {
	Samples  []Prediction
	Total    int
	Correct  int
	Skipped  int
	Accuracy float64
}

// Evaluate predicts every record with m and compares against its assignee.
// Records with no tokens are skipped since they cannot be scored.
func Evaluate(m *model.Model, records []model.TicketRecord) (Evaluation, error) {
	s := scorer.New(m)

	var eval Evaluation
	for _, rec := range records {
		text := normalize.CombineText(rec.Title, rec.Description, rec.Labels)
		predicted, err := s.Predict(text)
		if errors.Is(err, common.ErrEmptyInput) {
			eval.Skipped++
			continue
		}
		if err != nil {
			return Evaluation{}, fmt.Errorf("failed to evaluate record %q: %w", rec.ID, err)
		}

		p := Prediction{
			ID:        rec.ID,
			Predicted: predicted,
			Actual:    rec.Assignee,
			Correct:   predicted == rec.Assignee,
		}
		eval.Total++
		if p.Correct {
			eval.Correct++
		}
		if len(eval.Samples) < sampleSize {
			eval.Samples = append(eval.Samples, p)
		}
	}

	if eval.Total > 0 {
		eval.Accuracy = float64(eval.Correct) / float64(eval.Total)
	}

	slog.Info("Training accuracy",
		"accuracy", fmt.Sprintf("%.2f%%", eval.Accuracy*100),
		"correct", eval.Correct,
		"total", eval.Total,
		"skipped", eval.Skipped)

	return eval, nil
}
