package testutil

import (
	"fmt"
	"time"

	"github.com/Veraticus/dispatch/internal/model"
)

// FixedTime is the clock value fixtures train with.
var FixedTime = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

// FixedClock always returns FixedTime.
func FixedClock() time.Time {
	return FixedTime
}

// SampleCorpus mirrors the mock issue export: five tickets across three
// assignees, each predicted correctly by a model trained on them.
func SampleCorpus() []model.TicketRecord {
	return []model.TicketRecord{
		{ID: "1", Title: "Fix login bug", Description: "Error on login page", Labels: []string{"bug", "urgent"}, Assignee: "alice"},
		{ID: "2", Title: "API endpoint broken", Description: "Backend service returns 500", Labels: []string{"bug", "backend"}, Assignee: "bob"},
		{ID: "3", Title: "New feature request", Description: "Add dark mode support", Labels: []string{"feature", "ui"}, Assignee: "carol"},
		{ID: "4", Title: "UI not responsive", Description: "Dashboard UI not adjusting to screen", Labels: []string{"frontend", "ui"}, Assignee: "alice"},
		{ID: "5", Title: "Database timeout", Description: "Backend queries slow", Labels: []string{"backend"}, Assignee: "bob"},
	}
}

// SampleCSV is SampleCorpus in the CSV export format.
const SampleCSV = `id,title,description,labels,assignee
1,Fix login bug,Error on login page,"[""bug"",""urgent""]",alice
2,API endpoint broken,Backend service returns 500,"[""bug"",""backend""]",bob
3,New feature request,Add dark mode support,"[""feature"",""ui""]",carol
4,UI not responsive,Dashboard UI not adjusting to screen,"[""frontend"",""ui""]",alice
5,Database timeout,Backend queries slow,"[""backend""]",bob
`

// TicketBuilder assembles ticket corpora for tests.
type TicketBuilder struct {
	tickets []model.TicketRecord
}

// NewTicketBuilder returns an empty builder.
func NewTicketBuilder() *TicketBuilder {
	return &TicketBuilder{}
}

// WithSampleCorpus appends SampleCorpus.
func (b *TicketBuilder) WithSampleCorpus() *TicketBuilder {
	b.tickets = append(b.tickets, SampleCorpus()...)
	return b
}

// WithTicket appends a ticket with a generated ID.
func (b *TicketBuilder) WithTicket(assignee, title, description string, labels ...string) *TicketBuilder {
	b.tickets = append(b.tickets, model.TicketRecord{
		ID:          fmt.Sprintf("t-%d", len(b.tickets)+1),
		Title:       title,
		Description: description,
		Labels:      labels,
		Assignee:    assignee,
	})
	return b
}

// Build returns a copy of the assembled tickets.
func (b *TicketBuilder) Build() []model.TicketRecord {
	out := make([]model.TicketRecord, len(b.tickets))
	copy(out, b.tickets)
	return out
}
