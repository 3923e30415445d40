package imports

import (
	"gorm.io/gorm"
)

// Revalidator re-runs validation after a staged row is edited or deleted,
// touching only the rows whose result could have changed: any row whose
// phone or email equals one of the values involved in the change. Each
// affected row goes through the same rule set as batch validation, backed
// by the persisted rows, so the outcome is identical to revalidating the
// whole import.
type Revalidator struct {
	db *gorm.DB
}

func NewRevalidator(db *gorm.DB) *Revalidator {
	return &Revalidator{db: db}
}

// Revalidate reprocesses the rows affected by a change that moved a row's
// phone/email from the old values to the new ones (deletion passes empty
// new values). It then refreshes the import's counters.
func (r *Revalidator) Revalidate(imp *Import, oldPhone, newPhone, oldEmail, newEmail string) error {
	phones := distinctNonEmpty(oldPhone, newPhone)
	emails := distinctNonEmpty(oldEmail, newEmail)
	if len(phones) == 0 && len(emails) == 0 {
		return r.refreshCounters(imp)
	}

	q := r.db.Where("import_id = ?", imp.ID)
	switch {
	case len(phones) > 0 && len(emails) > 0:
		q = q.Where("phone IN ? OR email IN ?", phones, emails)
	case len(phones) > 0:
		q = q.Where("phone IN ?", phones)
	default:
		q = q.Where("email IN ?", emails)
	}

	var affected []ImportRow
	if err := q.Order("row_index ASC").Find(&affected).Error; err != nil {
		return err
	}

	validator := NewRowValidator(imp.Type,
		&dbBatchIndex{db: r.db, importID: imp.ID},
		&dbExistingChecker{db: r.db, clientID: imp.ClientID, importType: imp.Type})

	for i := range affected {
		row := &affected[i]
		before := row.ErrorMessage
		if err := validator.Validate(row); err != nil {
			return err
		}
		if row.ErrorMessage != before {
			if err := r.db.Model(&ImportRow{}).Where("id = ?", row.ID).
				Update("error_message", row.ErrorMessage).Error; err != nil {
				return err
			}
		}
	}
	return r.refreshCounters(imp)
}

func (r *Revalidator) refreshCounters(imp *Import) error {
	var total, invalid int64
	if err := r.db.Model(&ImportRow{}).
		Where("import_id = ?", imp.ID).Count(&total).Error; err != nil {
		return err
	}
	if err := r.db.Model(&ImportRow{}).
		Where("import_id = ? AND error_message <> ''", imp.ID).
		Count(&invalid).Error; err != nil {
		return err
	}

	imp.TotalRows = int(total)
	imp.InvalidRows = int(invalid)
	imp.ValidRows = int(total - invalid)
	if imp.InvalidRows == 0 && imp.TotalRows > 0 {
		imp.Status = StatusValidated
	} else {
		imp.Status = StatusValidating
	}
	return r.db.Model(&Import{}).Where("id = ?", imp.ID).Updates(map[string]interface{}{
		"total_rows":   imp.TotalRows,
		"valid_rows":   imp.ValidRows,
		"invalid_rows": imp.InvalidRows,
		"status":       imp.Status,
	}).Error
}

func distinctNonEmpty(values ...string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
