package imports

import (
	"testing"
)

type fakeExisting struct {
	phones map[string]bool
	emails map[string]bool
}

func (f *fakeExisting) PhoneRegistered(v string) (bool, error) { return f.phones[v], nil }
func (f *fakeExisting) EmailRegistered(v string) (bool, error) { return f.emails[v], nil }

func noExisting() *fakeExisting {
	return &fakeExisting{phones: map[string]bool{}, emails: map[string]bool{}}
}

func stagedRow(idx int, name, phone, email string) ImportRow {
	r := ImportRow{RowIndex: idx, Name: name, Phone: phone, Email: email}
	NormalizeRow(&r)
	return r
}

func TestValidateBatchRuleOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		typ      string
		row      ImportRow
		existing *fakeExisting
		want     string
	}{
		{"missing phone", TypeUser, stagedRow(0, "Ana", "", "a@x.com"), noExisting(), errPhoneRequired},
		{"missing name", TypeUser, stagedRow(0, "", "5215512345678", ""), noExisting(), errNameRequired},
		{"foh allows missing name", TypeFoh, stagedRow(0, "", "5215512345678", ""), noExisting(), ""},
		{"short phone", TypeUser, stagedRow(0, "Ana", "12345", ""), noExisting(), errPhoneInvalid},
		{"long phone", TypeUser, stagedRow(0, "Ana", "1234567890123456", ""), noExisting(), errPhoneInvalid},
		{"bad email", TypeUser, stagedRow(0, "Ana", "5215512345678", "not-an-email"), noExisting(), errEmailInvalid},
		{"empty email ok", TypeUser, stagedRow(0, "Ana", "5215512345678", ""), noExisting(), ""},
		{"existing phone", TypeUser, stagedRow(0, "Ana", "5215512345678", ""),
			&fakeExisting{phones: map[string]bool{"5215512345678": true}, emails: map[string]bool{}}, errPhoneExists},
		{"existing email", TypeUser, stagedRow(0, "Ana", "5215512345678", "ana@x.com"),
			&fakeExisting{phones: map[string]bool{}, emails: map[string]bool{"ana@x.com": true}}, errEmailExists},
		{"phone presence beats name presence", TypeUser, stagedRow(0, "", "", ""), noExisting(), errPhoneRequired},
		{"bad role", TypeUser, func() ImportRow {
			r := stagedRow(0, "Ana", "5215512345678", "")
			r.Role = "manager"
			return r
		}(), noExisting(), errRoleInvalid},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rows := []ImportRow{tc.row}
			if _, _, err := ValidateBatch(tc.typ, rows, tc.existing); err != nil {
				t.Fatalf("ValidateBatch: %v", err)
			}
			if rows[0].ErrorMessage != tc.want {
				t.Errorf("error = %q, want %q", rows[0].ErrorMessage, tc.want)
			}
		})
	}
}

func TestValidateBatchFirstOccurrenceWins(t *testing.T) {
	t.Parallel()

	rows := []ImportRow{
		stagedRow(0, "Ana", "5215512345678", "ana@x.com"),
		stagedRow(1, "Bob", "5215512345678", "bob@x.com"),
		stagedRow(2, "Cat", "5215599999999", "ana@x.com"),
	}
	valid, invalid, err := ValidateBatch(TypeUser, rows, noExisting())
	if err != nil {
		t.Fatalf("ValidateBatch: %v", err)
	}
	if valid != 1 || invalid != 2 {
		t.Fatalf("valid=%d invalid=%d, want 1/2", valid, invalid)
	}
	if rows[0].ErrorMessage != "" {
		t.Errorf("row 0 should be clean, got %q", rows[0].ErrorMessage)
	}
	if rows[1].ErrorMessage != errPhoneDupBatch {
		t.Errorf("row 1 error = %q, want %q", rows[1].ErrorMessage, errPhoneDupBatch)
	}
	if rows[2].ErrorMessage != errEmailDupBatch {
		t.Errorf("row 2 error = %q, want %q", rows[2].ErrorMessage, errEmailDupBatch)
	}
}

func TestValidateBatchDupAgainstInvalidEarlierRow(t *testing.T) {
	t.Parallel()

	// Row 0 fails on the name rule, but row 1 still counts as a duplicate
	// of it: "earlier" is by row position, not by validity.
	rows := []ImportRow{
		stagedRow(0, "", "5215512345678", ""),
		stagedRow(1, "Bob", "5215512345678", ""),
	}
	if _, _, err := ValidateBatch(TypeUser, rows, noExisting()); err != nil {
		t.Fatalf("ValidateBatch: %v", err)
	}
	if rows[0].ErrorMessage != errNameRequired {
		t.Errorf("row 0 error = %q, want %q", rows[0].ErrorMessage, errNameRequired)
	}
	if rows[1].ErrorMessage != errPhoneDupBatch {
		t.Errorf("row 1 error = %q, want %q", rows[1].ErrorMessage, errPhoneDupBatch)
	}
}

func TestValidateBatchNormalizedComparison(t *testing.T) {
	t.Parallel()

	rows := []ImportRow{
		stagedRow(0, "Ana", "+52 1 55 1234-5678", "Ana@X.com"),
		stagedRow(1, "Bob", "5215512345678", ""),
		stagedRow(2, "Cat", "5215599999999", "ANA@x.COM"),
	}
	if _, _, err := ValidateBatch(TypeUser, rows, noExisting()); err != nil {
		t.Fatalf("ValidateBatch: %v", err)
	}
	if rows[1].ErrorMessage != errPhoneDupBatch {
		t.Errorf("formatted phone should collide with plain digits, got %q", rows[1].ErrorMessage)
	}
	if rows[2].ErrorMessage != errEmailDupBatch {
		t.Errorf("case-folded email should collide, got %q", rows[2].ErrorMessage)
	}
}

func TestValidateBatchDeterministic(t *testing.T) {
	t.Parallel()

	build := func() []ImportRow {
		return []ImportRow{
			stagedRow(0, "Ana", "5215512345678", "ana@x.com"),
			stagedRow(1, "", "5215512345678", "bob@x.com"),
			stagedRow(2, "Cat", "bad", "ana@x.com"),
			stagedRow(3, "Dan", "5215588888888", ""),
		}
	}
	first := build()
	if _, _, err := ValidateBatch(TypeUser, first, noExisting()); err != nil {
		t.Fatalf("ValidateBatch: %v", err)
	}
	for i := 0; i < 5; i++ {
		again := build()
		if _, _, err := ValidateBatch(TypeUser, again, noExisting()); err != nil {
			t.Fatalf("ValidateBatch: %v", err)
		}
		for j := range again {
			if again[j].ErrorMessage != first[j].ErrorMessage {
				t.Fatalf("run %d row %d: %q != %q", i, j, again[j].ErrorMessage, first[j].ErrorMessage)
			}
		}
	}
}

// sliceBatchIndex answers the earlier-row question by scanning a row
// slice, mirroring the SQL the persisted index runs. Used to check that
// targeted revalidation lands on the same result as a full batch pass.
type sliceBatchIndex struct {
	rows []ImportRow
}

func (s *sliceBatchIndex) HasEarlierPhone(rowIndex int, value string) (bool, error) {
	for i := range s.rows {
		if s.rows[i].RowIndex < rowIndex && s.rows[i].Phone == value {
			return true, nil
		}
	}
	return false, nil
}

func (s *sliceBatchIndex) HasEarlierEmail(rowIndex int, value string) (bool, error) {
	for i := range s.rows {
		if s.rows[i].RowIndex < rowIndex && s.rows[i].Email == value {
			return true, nil
		}
	}
	return false, nil
}

func TestTargetedRevalidationMatchesFullBatch(t *testing.T) {
	t.Parallel()

	// Start with a duplicate pair, then "edit" the first row's phone away.
	rows := []ImportRow{
		stagedRow(0, "Ana", "5215512345678", "ana@x.com"),
		stagedRow(1, "Bob", "5215512345678", "bob@x.com"),
		stagedRow(2, "Cat", "5215599999999", ""),
	}
	existing := noExisting()
	if _, _, err := ValidateBatch(TypeUser, rows, existing); err != nil {
		t.Fatalf("initial batch: %v", err)
	}
	if rows[1].ErrorMessage != errPhoneDupBatch {
		t.Fatalf("precondition: row 1 should be a duplicate")
	}

	rows[0].Phone = "5215577777777"

	// Targeted pass: only rows whose phone matched the old or new value.
	targeted := make([]ImportRow, len(rows))
	copy(targeted, rows)
	v := NewRowValidator(TypeUser, &sliceBatchIndex{rows: targeted}, existing)
	for i := range targeted {
		p := targeted[i].Phone
		if p == "5215512345678" || p == "5215577777777" {
			if err := v.Validate(&targeted[i]); err != nil {
				t.Fatalf("targeted validate: %v", err)
			}
		}
	}

	// Full pass over the same data for comparison.
	full := make([]ImportRow, len(rows))
	copy(full, rows)
	if _, _, err := ValidateBatch(TypeUser, full, existing); err != nil {
		t.Fatalf("full batch: %v", err)
	}

	for i := range full {
		if targeted[i].ErrorMessage != full[i].ErrorMessage {
			t.Errorf("row %d: targeted %q != full %q", i, targeted[i].ErrorMessage, full[i].ErrorMessage)
		}
	}
	if targeted[1].ErrorMessage != "" {
		t.Errorf("row 1 should be clean after the edit, got %q", targeted[1].ErrorMessage)
	}
}
