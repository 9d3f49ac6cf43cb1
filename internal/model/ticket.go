package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// TicketRecord is one historical ticket with its known owner.
type TicketRecord struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Assignee    string   `json:"assignee"`
	Labels      []string `json:"labels"`
}

// HasAssignee reports whether the record names a non-blank assignee.
func (r TicketRecord) HasAssignee() bool {
	return strings.TrimSpace(r.Assignee) != ""
}

// GenerateHash creates a content hash for duplicate detection of tickets
// that arrive without an ID.
func (r TicketRecord) GenerateHash() string {
	data := fmt.Sprintf("%s\x00%s\x00%s\x00%s",
		r.Title,
		r.Description,
		strings.Join(r.Labels, "\x1f"),
		r.Assignee)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// Key returns the identity used when storing the ticket: its ID when set,
// otherwise its content hash.
func (r TicketRecord) Key() string {
	if id := strings.TrimSpace(r.ID); id != "" {
		return id
	}
	return r.GenerateHash()
}
