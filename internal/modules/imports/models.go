package imports

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Import statuses. Completed, error and cancelled are terminal.
const (
	StatusPending    = "pending"
	StatusMapping    = "mapping"
	StatusValidating = "validating"
	StatusValidated  = "validated"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
	StatusCancelled  = "cancelled"
)

// Import types.
const (
	TypeUser     = "user"
	TypeProspect = "prospect"
	TypeFoh      = "foh"
)

// Import is one CSV upload job. The raw payload lives in object storage
// under ObjectKey; staging rows live in import_rows.
type Import struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"client_id"`
	UploadedBy   uuid.UUID      `gorm:"type:uuid;not null" json:"uploaded_by"`
	Type         string         `gorm:"size:20;not null" json:"type"`
	Status       string         `gorm:"size:20;not null;default:'pending';index" json:"status"`
	FileName     string         `gorm:"size:255" json:"file_name"`
	ObjectKey    string         `gorm:"size:512" json:"-"`
	Headers      datatypes.JSON `gorm:"type:jsonb;default:'[]'" json:"headers"`
	Mapping      datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"mapping"`
	TotalRows    int            `gorm:"default:0" json:"total_rows"`
	ValidRows    int            `gorm:"default:0" json:"valid_rows"`
	InvalidRows  int            `gorm:"default:0" json:"invalid_rows"`
	Progress     int            `gorm:"default:0" json:"progress"`
	ErrorSummary string         `gorm:"type:text" json:"error_summary,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ImportRow is one staging row of an Import, pending validation and commit.
// Phone is stored normalized and Email lowercased so duplicate comparisons
// are plain equality.
type ImportRow struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ImportID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"import_id"`
	RowIndex     int            `gorm:"not null" json:"row_index"`
	Code         string         `gorm:"size:50" json:"code,omitempty"`
	Name         string         `gorm:"size:255" json:"name"`
	Phone        string         `gorm:"size:30;index" json:"phone"`
	PhoneCountry string         `gorm:"size:5" json:"phone_country,omitempty"`
	Email        string         `gorm:"size:255;index" json:"email,omitempty"`
	ManagerEmail string         `gorm:"size:255" json:"manager_email,omitempty"`
	Role         string         `gorm:"size:20" json:"role,omitempty"`
	CrmFields    datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"crm_fields"`
	ErrorMessage string         `gorm:"size:500" json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (ImportRow) TableName() string {
	return "import_rows"
}

// MappingTemplate is a named, reusable column mapping for one tenant.
// Templates are matched against new uploads by comparing header sets.
type MappingTemplate struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"client_id"`
	Name      string         `gorm:"not null;size:100" json:"name"`
	IsFoh     bool           `gorm:"default:false" json:"is_foh"`
	Mapping   datatypes.JSON `gorm:"type:jsonb;not null" json:"mapping"`
	Headers   datatypes.JSON `gorm:"type:jsonb;not null" json:"headers"`
	CreatedAt time.Time      `json:"created_at"`
}

func (MappingTemplate) TableName() string {
	return "import_mapping_templates"
}

// Valid reports whether the row currently has no validation error.
func (r *ImportRow) Valid() bool {
	return r.ErrorMessage == ""
}
