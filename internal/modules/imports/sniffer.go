package imports

import "strings"

// Canonical mapping targets. Anything a header fails to match stays
// unmapped and can be bound to a CRM custom field by hand.
const (
	FieldCode         = "code"
	FieldName         = "name"
	FieldEmail        = "email"
	FieldPhone        = "phone"
	FieldPhoneCountry = "phone_country"
	FieldManagerEmail = "manager_email"
	FieldRole         = "role"
	FieldSource       = "source"
)

// fieldAliases is checked in order; the first field whose alias list
// contains the normalized header wins, so ambiguous headers resolve
// deterministically.
var fieldAliases = []struct {
	field   string
	aliases []string
}{
	{FieldCode, []string{"code", "codigo", "employee code", "employee id", "emp code", "id"}},
	{FieldName, []string{"name", "nombre", "full name", "nombre completo", "contact name"}},
	{FieldEmail, []string{"email", "e-mail", "mail", "correo", "correo electronico", "email address"}},
	{FieldPhone, []string{"phone", "telefono", "tel", "celular", "mobile", "phone number", "numero", "whatsapp"}},
	{FieldPhoneCountry, []string{"phone country", "country code", "lada", "codigo pais", "country"}},
	{FieldManagerEmail, []string{"manager email", "manager", "jefe", "correo jefe", "supervisor email", "reports to"}},
	{FieldRole, []string{"role", "rol", "puesto", "position"}},
	{FieldSource, []string{"source", "origen", "channel", "canal"}},
}

// Aliases are written the way they appear in real files; fold them once
// so comparison against folded headers is plain equality.
func init() {
	for i := range fieldAliases {
		for j, alias := range fieldAliases[i].aliases {
			fieldAliases[i].aliases[j] = normalizeHeader(alias)
		}
	}
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n").Replace(h)
	var b strings.Builder
	lastSpace := false
	for _, ch := range h {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
			b.WriteRune(ch)
			lastSpace = false
		default:
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// SniffResult pairs a proposed header mapping with the columns nothing
// matched, which the client surfaces for manual assignment.
type SniffResult struct {
	Mapping   map[string]string `json:"mapping"`   // header -> canonical field
	Unmatched []string          `json:"unmatched"` // headers with no guess
}

// SniffHeaders guesses a column mapping from raw CSV headers. Each
// canonical field is assigned at most once; later columns that would
// match an already-taken field land in Unmatched. FOH files carry no
// member names, so in FOH mode a name-looking column is not claimed and
// stays available for manual assignment.
func SniffHeaders(headers []string, isFoh bool) SniffResult {
	res := SniffResult{Mapping: make(map[string]string)}
	taken := make(map[string]bool)
	for _, h := range headers {
		norm := normalizeHeader(h)
		matched := ""
		for _, fa := range fieldAliases {
			if taken[fa.field] {
				continue
			}
			if isFoh && fa.field == FieldName {
				continue
			}
			for _, alias := range fa.aliases {
				if norm == alias {
					matched = fa.field
					break
				}
			}
			if matched != "" {
				break
			}
		}
		if matched == "" {
			res.Unmatched = append(res.Unmatched, h)
			continue
		}
		res.Mapping[h] = matched
		taken[matched] = true
	}
	return res
}
