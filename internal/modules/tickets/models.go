package tickets

import (
	"time"

	"github.com/google/uuid"

	"github.com/wappdesk/backend/internal/models"
)

// Ticket statuses.
const (
	StatusOpen     = "open"
	StatusPending  = "pending"
	StatusResolved = "resolved"
	StatusClosed   = "closed"
)

// Message directions and delivery statuses.
const (
	DirectionIn  = "in"
	DirectionOut = "out"

	MessageQueued    = "queued"
	MessageSent      = "sent"
	MessageDelivered = "delivered"
	MessageRead      = "read"
	MessageFailed    = "failed"
)

// Ticket is one WhatsApp conversation with a contact. The contact may or
// may not exist as a prospect; inbound messages from unknown numbers
// create both.
type Ticket struct {
	ID            uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID      uuid.UUID    `gorm:"type:uuid;not null;index:idx_tickets_client_phone" json:"client_id"`
	ContactPhone  string       `gorm:"not null;size:30;index:idx_tickets_client_phone" json:"contact_phone"`
	ContactName   string       `gorm:"size:255" json:"contact_name,omitempty"`
	ProspectID    *uuid.UUID   `gorm:"type:uuid" json:"prospect_id,omitempty"`
	Status        string       `gorm:"size:20;not null;default:'open';index" json:"status"`
	AssigneeID    *uuid.UUID   `gorm:"type:uuid;index" json:"assignee_id,omitempty"`
	Assignee      *models.User `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	LastMessageAt *time.Time   `json:"last_message_at,omitempty"`
	ClosedAt      *time.Time   `json:"closed_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Message is one inbound or outbound message on a ticket. MediaKey points
// into object storage when the message carried an attachment.
type Message struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"client_id"`
	TicketID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"ticket_id"`
	Direction   string     `gorm:"size:3;not null" json:"direction"`
	Body        string     `gorm:"type:text" json:"body,omitempty"`
	MediaKey    string     `gorm:"size:512" json:"media_key,omitempty"`
	MediaType   string     `gorm:"size:50" json:"media_type,omitempty"`
	WaMessageID string     `gorm:"size:100;index" json:"wa_message_id,omitempty"`
	Status      string     `gorm:"size:20;not null;default:'queued'" json:"status"`
	SenderID    *uuid.UUID `gorm:"type:uuid" json:"sender_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
