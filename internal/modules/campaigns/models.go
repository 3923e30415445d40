package campaigns

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Campaign statuses. Completed, error and cancelled are terminal.
const (
	StatusDraft      = "draft"
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
	StatusCancelled  = "cancelled"
)

// Recipient statuses.
const (
	RecipientPending = "pending"
	RecipientSent    = "sent"
	RecipientFailed  = "failed"
)

// Campaign is a persisted bulk-send job. Queued campaigns survive a
// restart; a worker claims one with a lease and walks its recipients.
// A crashed worker's lease expires and another worker picks the job up,
// so delivery is at least once per recipient.
type Campaign struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"client_id"`
	CreatedBy    uuid.UUID  `gorm:"type:uuid;not null" json:"created_by"`
	Name         string     `gorm:"not null;size:255" json:"name"`
	TemplateName string     `gorm:"size:255" json:"template_name"`
	LanguageCode string     `gorm:"size:10;default:'es_MX'" json:"language_code"`
	Body         string     `gorm:"type:text" json:"body,omitempty"`
	Status       string     `gorm:"size:20;not null;default:'draft';index" json:"status"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
	Attempts     int        `gorm:"default:0" json:"attempts"`
	LeaseOwner   string     `gorm:"size:100" json:"-"`
	LeaseExpires *time.Time `json:"-"`
	Total        int        `gorm:"default:0" json:"total"`
	SentCount    int        `gorm:"default:0" json:"sent_count"`
	FailedCount  int        `gorm:"default:0" json:"failed_count"`
	ErrorSummary string     `gorm:"type:text" json:"error_summary,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Recipient is one target of a campaign. WaMessageID links the row to
// delivery-status callbacks from the webhook.
type Recipient struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CampaignID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"campaign_id"`
	Phone          string         `gorm:"not null;size:30" json:"phone"`
	Name           string         `gorm:"size:255" json:"name,omitempty"`
	Params         datatypes.JSON `gorm:"type:jsonb;default:'[]'" json:"params"`
	Status         string         `gorm:"size:20;not null;default:'pending';index" json:"status"`
	WaMessageID    string         `gorm:"size:100;index" json:"wa_message_id,omitempty"`
	DeliveryStatus string         `gorm:"size:20" json:"delivery_status,omitempty"`
	Attempts       int            `gorm:"default:0" json:"attempts"`
	LastError      string         `gorm:"size:500" json:"last_error,omitempty"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (Recipient) TableName() string {
	return "campaign_recipients"
}
