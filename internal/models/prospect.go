package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Prospect is a lead that has not been promoted to a full User account.
// Created by hand, from inbound messages, or by an import commit.
type Prospect struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID     uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:idx_prospects_client_phone" json:"client_id"`
	Name         string         `gorm:"size:255" json:"name"`
	Phone        string         `gorm:"not null;size:30;uniqueIndex:idx_prospects_client_phone" json:"phone"`
	PhoneCountry string         `gorm:"size:5" json:"phone_country,omitempty"`
	Email        string         `gorm:"size:255;index" json:"email,omitempty"`
	Source       string         `gorm:"size:30;default:'manual'" json:"source"`
	CrmFields    datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"crm_fields"`
	PromotedTo   *uuid.UUID     `gorm:"type:uuid" json:"promoted_to,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}
