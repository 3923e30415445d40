package imports

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wappdesk/backend/internal/models"
	"github.com/wappdesk/backend/internal/tenant"
)

// dbBatchIndex is the persisted-rows BatchIndex used by targeted
// revalidation. It answers the same question as memIndex, against the
// import_rows table.
type dbBatchIndex struct {
	db       *gorm.DB
	importID uuid.UUID
}

func (d *dbBatchIndex) HasEarlierPhone(rowIndex int, value string) (bool, error) {
	var count int64
	err := d.db.Model(&ImportRow{}).
		Where("import_id = ? AND row_index < ? AND phone = ?", d.importID, rowIndex, value).
		Count(&count).Error
	return count > 0, err
}

func (d *dbBatchIndex) HasEarlierEmail(rowIndex int, value string) (bool, error) {
	var count int64
	err := d.db.Model(&ImportRow{}).
		Where("import_id = ? AND row_index < ? AND email = ?", d.importID, rowIndex, value).
		Count(&count).Error
	return count > 0, err
}

// dbExistingChecker checks uniqueness against the tenant's persisted
// records. User and front-of-house imports land in the users table,
// prospect imports in prospects (which carry no email).
type dbExistingChecker struct {
	db         *gorm.DB
	clientID   uuid.UUID
	importType string
}

func (d *dbExistingChecker) PhoneRegistered(value string) (bool, error) {
	var count int64
	q := d.db.Scopes(tenant.ForTenant(d.clientID))
	if d.importType == TypeProspect {
		q = q.Model(&models.Prospect{})
	} else {
		q = q.Model(&models.User{})
	}
	err := q.Where("phone = ?", value).Count(&count).Error
	return count > 0, err
}

func (d *dbExistingChecker) EmailRegistered(value string) (bool, error) {
	if d.importType == TypeProspect {
		return false, nil
	}
	var count int64
	err := d.db.Scopes(tenant.ForTenant(d.clientID)).Model(&models.User{}).
		Where("email = ?", value).Count(&count).Error
	return count > 0, err
}
