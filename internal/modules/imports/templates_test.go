package imports

import (
	"testing"

	"gorm.io/datatypes"
)

func tpl(name string, isFoh bool, headers string) MappingTemplate {
	return MappingTemplate{
		Name:    name,
		IsFoh:   isFoh,
		Mapping: datatypes.JSON(`{"Phone":"phone"}`),
		Headers: datatypes.JSON(headers),
	}
}

func TestMatchTemplateHeaderSetEquality(t *testing.T) {
	t.Parallel()

	templates := []MappingTemplate{
		tpl("agents", false, `["Name","Phone","Email"]`),
		tpl("short", false, `["Name","Phone"]`),
	}

	got := matchTemplate(templates, []string{"email", "PHONE", "Name"}, false)
	if got == nil || got.Name != "agents" {
		t.Fatalf("matchTemplate = %v, want agents", got)
	}
	if matchTemplate(templates, []string{"Name", "Phone", "Role"}, false) != nil {
		t.Errorf("different header set should not match")
	}
}

func TestMatchTemplateNewestWins(t *testing.T) {
	t.Parallel()

	// List returns newest first; matchTemplate keeps that order.
	templates := []MappingTemplate{
		tpl("newer", false, `["Name","Phone"]`),
		tpl("older", false, `["Phone","Name"]`),
	}
	got := matchTemplate(templates, []string{"Name", "Phone"}, false)
	if got == nil || got.Name != "newer" {
		t.Fatalf("matchTemplate = %v, want newer", got)
	}
}

func TestMatchTemplateFohSegregation(t *testing.T) {
	t.Parallel()

	templates := []MappingTemplate{
		tpl("foh list", true, `["Phone","Lada"]`),
		tpl("agent list", false, `["Phone","Lada"]`),
	}

	got := matchTemplate(templates, []string{"Phone", "Lada"}, false)
	if got == nil || got.Name != "agent list" {
		t.Fatalf("non-FOH match = %v, want agent list", got)
	}
	got = matchTemplate(templates, []string{"Phone", "Lada"}, true)
	if got == nil || got.Name != "foh list" {
		t.Fatalf("FOH match = %v, want foh list", got)
	}

	only := templates[:1]
	if matchTemplate(only, []string{"Phone", "Lada"}, false) != nil {
		t.Errorf("FOH template must not be offered for a non-FOH import")
	}
}
