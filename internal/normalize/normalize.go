// Package normalize turns ticket text into the bag-of-words tokens the model is built on.
package normalize

import (
	"strings"

	"github.com/Veraticus/dispatch/internal/model"
)

// CombineText joins title, description and labels with single spaces.
func CombineText(title, description string, labels []string) string {
	return title + " " + description + " " + strings.Join(labels, " ")
}

// Tokenize lowercases text and splits it on runs of whitespace.
// The result never contains empty tokens and is nil for blank input.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Document returns the normalized token sequence of a ticket record.
func Document(rec model.TicketRecord) []string {
	return Tokenize(CombineText(rec.Title, rec.Description, rec.Labels))
}
