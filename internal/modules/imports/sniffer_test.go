package imports

import (
	"testing"
)

func TestSniffHeadersAliases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
	}{
		{"Name", FieldName},
		{"NOMBRE", FieldName},
		{"Nombre Completo", FieldName},
		{"E-Mail", FieldEmail},
		{"Correo Electrónico", FieldEmail},
		{"Teléfono", FieldPhone},
		{"WhatsApp", FieldPhone},
		{"phone_number", FieldPhone},
		{"Manager Email", FieldManagerEmail},
		{"Reports To", FieldManagerEmail},
		{"Código", FieldCode},
		{"Lada", FieldPhoneCountry},
		{"Rol", FieldRole},
		{"Origen", FieldSource},
	}
	for _, tc := range tests {
		res := SniffHeaders([]string{tc.header}, false)
		if got := res.Mapping[tc.header]; got != tc.want {
			t.Errorf("SniffHeaders(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestSniffHeadersUnmatched(t *testing.T) {
	t.Parallel()

	res := SniffHeaders([]string{"Name", "Favorite Color", "Phone"}, false)
	if len(res.Unmatched) != 1 || res.Unmatched[0] != "Favorite Color" {
		t.Errorf("Unmatched = %v", res.Unmatched)
	}
	if len(res.Mapping) != 2 {
		t.Errorf("Mapping = %v", res.Mapping)
	}
}

func TestSniffHeadersFieldAssignedOnce(t *testing.T) {
	t.Parallel()

	// Both columns alias to phone; only the first gets it.
	res := SniffHeaders([]string{"Phone", "Celular"}, false)
	if res.Mapping["Phone"] != FieldPhone {
		t.Errorf("Phone = %q", res.Mapping["Phone"])
	}
	if _, ok := res.Mapping["Celular"]; ok {
		t.Errorf("Celular should stay unmatched, got %q", res.Mapping["Celular"])
	}
	if len(res.Unmatched) != 1 {
		t.Errorf("Unmatched = %v", res.Unmatched)
	}
}

func TestSniffHeadersFohSkipsName(t *testing.T) {
	t.Parallel()

	res := SniffHeaders([]string{"Nombre", "Telefono"}, true)
	if _, ok := res.Mapping["Nombre"]; ok {
		t.Errorf("FOH sniff should not claim a name column, got %q", res.Mapping["Nombre"])
	}
	if res.Mapping["Telefono"] != FieldPhone {
		t.Errorf("Telefono = %q, want %q", res.Mapping["Telefono"], FieldPhone)
	}
	if len(res.Unmatched) != 1 || res.Unmatched[0] != "Nombre" {
		t.Errorf("Unmatched = %v", res.Unmatched)
	}
}

func TestNormalizeHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"  Name  ", "name"},
		{"Correo_Electrónico", "correo electronico"},
		{"PHONE-NUMBER", "phone number"},
		{"Código", "codigo"},
	}
	for _, tc := range tests {
		if got := normalizeHeader(tc.in); got != tc.want {
			t.Errorf("normalizeHeader(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestHeaderKeyOrderIndependent(t *testing.T) {
	t.Parallel()

	a := headerKey([]string{"Name", "Phone", "Email"})
	b := headerKey([]string{"email", "NAME", "Phone"})
	if a != b {
		t.Errorf("header keys differ: %q vs %q", a, b)
	}
	c := headerKey([]string{"Name", "Phone"})
	if a == c {
		t.Errorf("different header sets should not collide")
	}
}
