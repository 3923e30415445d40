package models

import (
	"time"

	"github.com/google/uuid"
)

// ClientSetting is a per-tenant key/value configuration entry.
// Unset keys fall back to platform defaults at read time.
type ClientSetting struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_client_settings_key" json:"client_id"`
	Key       string     `gorm:"size:100;not null;uniqueIndex:idx_client_settings_key" json:"key"`
	Value     string     `gorm:"type:text" json:"value"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid" json:"updated_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
