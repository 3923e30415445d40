package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User is an agent or supervisor account belonging to one client.
// Platform admins have a nil ClientID.
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID     *uuid.UUID     `gorm:"type:uuid;index;uniqueIndex:idx_users_client_email;uniqueIndex:idx_users_client_phone" json:"client_id,omitempty"`
	Code         string         `gorm:"size:50" json:"code,omitempty"`
	Name         string         `gorm:"not null;size:255" json:"name"`
	Email        string         `gorm:"size:255;uniqueIndex:idx_users_client_email" json:"email,omitempty"`
	Phone        string         `gorm:"size:30;uniqueIndex:idx_users_client_phone" json:"phone"`
	PhoneCountry string         `gorm:"size:5" json:"phone_country,omitempty"`
	Password     string         `gorm:"not null" json:"-"`
	Role         string         `gorm:"size:20;default:'agent'" json:"role"`
	ManagerID    *uuid.UUID     `gorm:"type:uuid;index" json:"manager_id,omitempty"`
	CrmFields    datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"crm_fields"`
	Active       bool           `gorm:"default:true" json:"active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	// Optional references resolved eagerly by the query layer.
	Manager *User `gorm:"foreignKey:ManagerID" json:"manager,omitempty"`
}

// Roles. Admin is platform-level; supervisor and agent are tenant-level.
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleAgent      = "agent"
)
