package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Veraticus/dispatch/internal/model"
)

// ImportResult reports what a ticket import changed.
type ImportResult struct {
	Inserted   int
	Duplicates int
}

// AssigneeCount is the number of stored tickets owned by one assignee.
type AssigneeCount struct {
	Assignee string
	Tickets  int
}

// SaveTickets stores tickets, ignoring any whose key is already present.
// Tickets without an ID are keyed by their content hash.
func (s *SQLiteStorage) SaveTickets(ctx context.Context, tickets []model.TicketRecord, source string) (ImportResult, error) {
	if err := validateContext(ctx); err != nil {
		return ImportResult{}, err
	}
	if err := validateTickets(tickets); err != nil {
		return ImportResult{}, err
	}

	var result ImportResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO tickets (id, title, description, labels, assignee, source)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, ticket := range tickets {
			labels := ticket.Labels
			if labels == nil {
				labels = []string{}
			}
			labelsJSON, err := json.Marshal(labels)
			if err != nil {
				return fmt.Errorf("failed to encode labels for ticket %s: %w", ticket.Key(), err)
			}

			res, err := stmt.ExecContext(ctx,
				ticket.Key(),
				ticket.Title,
				ticket.Description,
				string(labelsJSON),
				ticket.Assignee,
				source,
			)
			if err != nil {
				return fmt.Errorf("failed to insert ticket %s: %w", ticket.Key(), err)
			}

			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to check insert result: %w", err)
			}
			if affected == 0 {
				result.Duplicates++
			} else {
				result.Inserted++
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	slog.Debug("Saved tickets",
		"source", source,
		"inserted", result.Inserted,
		"duplicates", result.Duplicates)

	return result, nil
}

// GetTickets returns the whole corpus in import order, which is the order
// training sees assignees in.
func (s *SQLiteStorage) GetTickets(ctx context.Context) ([]model.TicketRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, labels, assignee
		FROM tickets
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tickets []model.TicketRecord
	for rows.Next() {
		var ticket model.TicketRecord
		var labelsJSON string
		if err := rows.Scan(&ticket.ID, &ticket.Title, &ticket.Description, &labelsJSON, &ticket.Assignee); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		if err := json.Unmarshal([]byte(labelsJSON), &ticket.Labels); err != nil {
			slog.Warn("ignoring unreadable stored labels", "ticket", ticket.ID, "error", err)
			ticket.Labels = nil
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tickets: %w", err)
	}

	return tickets, nil
}

// CountTickets returns the number of stored tickets.
func (s *SQLiteStorage) CountTickets(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tickets").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tickets: %w", err)
	}
	return count, nil
}

// GetAssigneeCounts returns how many tickets each assignee owns, busiest first.
func (s *SQLiteStorage) GetAssigneeCounts(ctx context.Context) ([]AssigneeCount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT assignee, COUNT(*) AS tickets
		FROM tickets
		GROUP BY assignee
		ORDER BY tickets DESC, assignee
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignee counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []AssigneeCount
	for rows.Next() {
		var c AssigneeCount
		if err := rows.Scan(&c.Assignee, &c.Tickets); err != nil {
			return nil, fmt.Errorf("failed to scan assignee count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
