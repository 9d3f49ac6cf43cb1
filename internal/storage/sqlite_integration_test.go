package storage

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/dispatch/internal/model"
	"github.com/Veraticus/dispatch/internal/trainer"
)

func TestSQLiteStorage_FullWorkflow(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	// Step 1: Import two exports that overlap on one ticket
	t.Log("Step 1: Importing tickets")
	first := []model.TicketRecord{
		{ID: "101", Title: "Fix login bug", Description: "Error on login page", Labels: []string{"bug", "urgent"}, Assignee: "alice"},
		{ID: "102", Title: "API endpoint broken", Description: "Backend returns 500 error", Labels: []string{"backend", "bug"}, Assignee: "bob"},
		{ID: "103", Title: "Add dark mode", Description: "Users want a dark theme", Labels: []string{"feature", "ui"}, Assignee: "carol"},
	}
	second := []model.TicketRecord{
		{ID: "103", Title: "Add dark mode", Description: "Users want a dark theme", Labels: []string{"feature", "ui"}, Assignee: "carol"},
		{ID: "104", Title: "Login page slow", Description: "Login takes ten seconds", Labels: []string{"performance"}, Assignee: "alice"},
		{ID: "105", Title: "Database timeout", Description: "Backend queries time out", Labels: []string{"backend"}, Assignee: "bob"},
	}

	result, err := store.SaveTickets(ctx, first, "export-1.csv")
	if err != nil {
		t.Fatalf("Failed to save first export: %v", err)
	}
	if result.Inserted != 3 {
		t.Errorf("Expected 3 inserted, got %d", result.Inserted)
	}

	result, err = store.SaveTickets(ctx, second, "export-2.csv")
	if err != nil {
		t.Fatalf("Failed to save second export: %v", err)
	}
	if result.Inserted != 2 || result.Duplicates != 1 {
		t.Errorf("Expected 2 inserted and 1 duplicate, got %+v", result)
	}

	// Step 2: Read the corpus back in import order
	t.Log("Step 2: Loading corpus")
	tickets, err := store.GetTickets(ctx)
	if err != nil {
		t.Fatalf("Failed to get tickets: %v", err)
	}
	if len(tickets) != 5 {
		t.Fatalf("Expected 5 tickets, got %d", len(tickets))
	}
	wantOrder := []string{"101", "102", "103", "104", "105"}
	for i, id := range wantOrder {
		if tickets[i].ID != id {
			t.Errorf("Ticket %d: expected ID %s, got %s", i, id, tickets[i].ID)
		}
	}

	counts, err := store.GetAssigneeCounts(ctx)
	if err != nil {
		t.Fatalf("Failed to get assignee counts: %v", err)
	}
	if len(counts) != 3 || counts[0].Tickets != 2 {
		t.Errorf("Unexpected assignee counts: %+v", counts)
	}

	// Step 3: Open a training run
	t.Log("Step 3: Starting training run")
	started := time.Now().UTC().Truncate(time.Second)
	run := &model.TrainingRun{
		ID:        "workflow-run",
		Source:    "db",
		Status:    model.TrainingRunRunning,
		StartedAt: started,
	}
	if err := store.CreateTrainingRun(ctx, run); err != nil {
		t.Fatalf("Failed to create training run: %v", err)
	}

	// Step 4: Train and evaluate on the stored corpus
	t.Log("Step 4: Training model")
	m, err := trainer.Train(tickets)
	if err != nil {
		t.Fatalf("Failed to train: %v", err)
	}
	if m.TrainingSamples() != 5 {
		t.Errorf("Expected 5 training samples, got %d", m.TrainingSamples())
	}
	if len(m.AssigneeList()) != 3 {
		t.Errorf("Expected 3 assignees, got %v", m.AssigneeList())
	}

	eval, err := trainer.Evaluate(m, tickets)
	if err != nil {
		t.Fatalf("Failed to evaluate: %v", err)
	}

	// Step 5: Close the run with the training outcome
	t.Log("Step 5: Finishing training run")
	finished := started.Add(250 * time.Millisecond)
	run.Status = model.TrainingRunSucceeded
	run.FinishedAt = &finished
	run.Samples = m.TrainingSamples()
	run.Assignees = len(m.AssigneeList())
	run.VocabularySize = m.VocabularySize()
	run.Accuracy = eval.Accuracy
	run.ArtifactPath = "/var/lib/dispatch/ticket_assigner.json"
	run.Digest = "blake3:workflow"
	if err := store.FinishTrainingRun(ctx, run); err != nil {
		t.Fatalf("Failed to finish training run: %v", err)
	}

	// Step 6: Verify history
	t.Log("Step 6: Verifying run history")
	runs, err := store.ListTrainingRuns(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to list training runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.Status != model.TrainingRunSucceeded {
		t.Errorf("Expected succeeded run, got %s", got.Status)
	}
	if got.VocabularySize != m.VocabularySize() {
		t.Errorf("Expected vocabulary size %d, got %d", m.VocabularySize(), got.VocabularySize)
	}
	if got.Duration() != 250*time.Millisecond {
		t.Errorf("Expected 250ms duration, got %v", got.Duration())
	}

	// A finished run is not swept up as abandoned.
	failed, err := store.FailAbandonedRuns(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to sweep abandoned runs: %v", err)
	}
	if failed != 0 {
		t.Errorf("Expected no abandoned runs, got %d", failed)
	}
}
