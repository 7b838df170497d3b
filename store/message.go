package store

import (
	"strings"
	"time"

	"github.com/pborman/uuid"
)

// Status is the delivery state of a message as seen by the local party.
type Status string

const (
	// StatusSending marks a provisional record: rendered locally, not yet
	// confirmed by the server.
	StatusSending Status = "sending"
	// StatusSent marks a canonical record accepted by the server.
	StatusSent Status = "sent"
	// StatusFailed marks a record whose send retry budget is exhausted.
	// The user can manually resend from this state.
	StatusFailed Status = "failed"
)

// provisionalPrefix marks locally generated, non-durable ids.
const provisionalPrefix = "local:"

// LeadCard is a property-lead payload attached to a chat message.
type LeadCard struct {
	LeadID   string `json:"leadId"`
	Title    string `json:"title,omitempty"`
	Address  string `json:"address,omitempty"`
	PriceINR int64  `json:"priceInr,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Message is one record in a thread's ordered sequence.
//
// ID is either provisional (generated by NewProvisionalID before server
// confirmation) or canonical (assigned by the server). ClientRef carries
// the provisional id out to the server; servers that echo it back enable
// exact reconciliation instead of the body+sender heuristic.
type Message struct {
	ID          string     `json:"id"`
	ClientRef   string     `json:"clientRef,omitempty"`
	ThreadID    string     `json:"chatId"`
	From        string     `json:"from"`
	To          string     `json:"to"`
	Text        string     `json:"text,omitempty"`
	Attachments []string   `json:"attachments,omitempty"`
	LeadCards   []LeadCard `json:"leadCards,omitempty"`
	Status      Status     `json:"status,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Provisional reports whether the record still carries a locally
// generated id.
func (m *Message) Provisional() bool {
	return strings.HasPrefix(m.ID, provisionalPrefix)
}

// NewProvisionalID generates a fresh local-only message id.
func NewProvisionalID() string {
	return provisionalPrefix + strings.ReplaceAll(uuid.New(), "-", "")
}
