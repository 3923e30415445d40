package imports

import (
	"net/mail"
	"sort"
	"strings"

	"github.com/wappdesk/backend/internal/phone"
)

// Row error messages. Stored verbatim on the row, surfaced to the UI.
const (
	errPhoneRequired = "phone is required"
	errNameRequired  = "name is required"
	errPhoneInvalid  = "phone must be 8 to 15 digits"
	errEmailInvalid  = "email is not a valid address"
	errPhoneDupBatch = "phone duplicates an earlier row in this file"
	errEmailDupBatch = "email duplicates an earlier row in this file"
	errPhoneExists   = "phone already registered"
	errEmailExists   = "email already registered"
	errRoleInvalid   = "role must be agent or supervisor"
)

// BatchIndex answers whether a value already appears on an earlier row of
// the same import. "Earlier" means a lower row index, regardless of whether
// that row itself validates; this keeps targeted revalidation and full
// batch validation in exact agreement.
type BatchIndex interface {
	HasEarlierPhone(rowIndex int, phone string) (bool, error)
	HasEarlierEmail(rowIndex int, email string) (bool, error)
}

// ExistingChecker answers whether a value is already taken by a persisted
// record in the tenant.
type ExistingChecker interface {
	PhoneRegistered(phone string) (bool, error)
	EmailRegistered(email string) (bool, error)
}

// RowValidator applies the validation rules for one import. Rules run in a
// fixed order and the first failure wins, so a row carries at most one
// error message at a time.
type RowValidator struct {
	importType string
	batch      BatchIndex
	existing   ExistingChecker
}

func NewRowValidator(importType string, batch BatchIndex, existing ExistingChecker) *RowValidator {
	return &RowValidator{importType: importType, batch: batch, existing: existing}
}

// Validate sets row.ErrorMessage to the first failing rule, or clears it.
// The row's Phone and Email are expected already normalized (digits only,
// lowercase) as NormalizeRow leaves them.
func (v *RowValidator) Validate(row *ImportRow) error {
	msg, err := v.check(row)
	if err != nil {
		return err
	}
	row.ErrorMessage = msg
	return nil
}

func (v *RowValidator) check(row *ImportRow) (string, error) {
	if row.Phone == "" {
		return errPhoneRequired, nil
	}
	if row.Name == "" && v.importType != TypeFoh {
		return errNameRequired, nil
	}
	if !phone.Valid(row.Phone) {
		return errPhoneInvalid, nil
	}
	if row.Email != "" {
		if _, err := mail.ParseAddress(row.Email); err != nil {
			return errEmailInvalid, nil
		}
	}
	if v.importType != TypeProspect && row.Role != "" {
		if row.Role != "agent" && row.Role != "supervisor" {
			return errRoleInvalid, nil
		}
	}

	dup, err := v.batch.HasEarlierPhone(row.RowIndex, row.Phone)
	if err != nil {
		return "", err
	}
	if dup {
		return errPhoneDupBatch, nil
	}
	if row.Email != "" {
		dup, err = v.batch.HasEarlierEmail(row.RowIndex, row.Email)
		if err != nil {
			return "", err
		}
		if dup {
			return errEmailDupBatch, nil
		}
	}

	taken, err := v.existing.PhoneRegistered(row.Phone)
	if err != nil {
		return "", err
	}
	if taken {
		return errPhoneExists, nil
	}
	if row.Email != "" {
		taken, err = v.existing.EmailRegistered(row.Email)
		if err != nil {
			return "", err
		}
		if taken {
			return errEmailExists, nil
		}
	}
	return "", nil
}

// NormalizeRow canonicalizes the fields duplicate checks compare on.
// Run once at staging time so every later comparison is plain equality.
func NormalizeRow(row *ImportRow) {
	row.Phone = phone.Normalize(row.Phone)
	row.Email = strings.ToLower(strings.TrimSpace(row.Email))
	row.Name = strings.TrimSpace(row.Name)
	row.Role = strings.ToLower(strings.TrimSpace(row.Role))
	row.ManagerEmail = strings.ToLower(strings.TrimSpace(row.ManagerEmail))
}

// memIndex is the in-memory BatchIndex for whole-batch validation: it
// records the first row index each value appears on.
type memIndex struct {
	firstPhone map[string]int
	firstEmail map[string]int
}

func buildMemIndex(rows []ImportRow) *memIndex {
	idx := &memIndex{
		firstPhone: make(map[string]int, len(rows)),
		firstEmail: make(map[string]int, len(rows)),
	}
	for i := range rows {
		r := &rows[i]
		if r.Phone != "" {
			if first, ok := idx.firstPhone[r.Phone]; !ok || r.RowIndex < first {
				idx.firstPhone[r.Phone] = r.RowIndex
			}
		}
		if r.Email != "" {
			if first, ok := idx.firstEmail[r.Email]; !ok || r.RowIndex < first {
				idx.firstEmail[r.Email] = r.RowIndex
			}
		}
	}
	return idx
}

func (m *memIndex) HasEarlierPhone(rowIndex int, value string) (bool, error) {
	first, ok := m.firstPhone[value]
	return ok && first < rowIndex, nil
}

func (m *memIndex) HasEarlierEmail(rowIndex int, value string) (bool, error) {
	first, ok := m.firstEmail[value]
	return ok && first < rowIndex, nil
}

// ValidateBatch validates every row of an import in row order and returns
// the valid/invalid counts. Rows are mutated in place.
func ValidateBatch(importType string, rows []ImportRow, existing ExistingChecker) (valid, invalid int, err error) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].RowIndex < rows[j].RowIndex })
	v := NewRowValidator(importType, buildMemIndex(rows), existing)
	for i := range rows {
		if err := v.Validate(&rows[i]); err != nil {
			return 0, 0, err
		}
		if rows[i].Valid() {
			valid++
		} else {
			invalid++
		}
	}
	return valid, invalid, nil
}
