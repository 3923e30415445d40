package imports

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/wappdesk/backend/internal/tenant"
)

var (
	ErrTemplateName     = errors.New("template name is required")
	ErrTemplateMapping  = errors.New("template mapping is required")
	ErrTemplateHeaders  = errors.New("template headers are required")
	ErrTemplateNotFound = errors.New("template not found")
)

// TemplateStore persists reusable column mappings per tenant.
type TemplateStore struct {
	db *gorm.DB
}

func NewTemplateStore(db *gorm.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

// Save stores a named mapping. Saving a template with an existing name
// replaces it so re-saving after a tweak does not pile up stale copies.
func (s *TemplateStore) Save(clientID uuid.UUID, name string, isFoh bool, mapping map[string]string, headers []string) (*MappingTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrTemplateName
	}
	if len(mapping) == 0 {
		return nil, ErrTemplateMapping
	}
	if len(headers) == 0 {
		return nil, ErrTemplateHeaders
	}

	mapJSON, err := json.Marshal(mapping)
	if err != nil {
		return nil, err
	}
	hdrJSON, err := json.Marshal(headers)
	if err != nil {
		return nil, err
	}

	tpl := &MappingTemplate{
		ClientID: clientID,
		Name:     name,
		IsFoh:    isFoh,
		Mapping:  datatypes.JSON(mapJSON),
		Headers:  datatypes.JSON(hdrJSON),
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(tenant.ForTenant(clientID)).
			Where("name = ?", name).Delete(&MappingTemplate{}).Error; err != nil {
			return err
		}
		return tx.Create(tpl).Error
	})
	if err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *TemplateStore) List(clientID uuid.UUID) ([]MappingTemplate, error) {
	var templates []MappingTemplate
	err := s.db.Scopes(tenant.ForTenant(clientID)).
		Order("created_at DESC").Find(&templates).Error
	return templates, err
}

func (s *TemplateStore) Delete(clientID, id uuid.UUID) error {
	res := s.db.Scopes(tenant.ForTenant(clientID)).
		Where("id = ?", id).Delete(&MappingTemplate{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// FindMatching returns the newest template whose header set equals the
// uploaded file's headers, ignoring column order, or nil if none match.
// Templates are segregated by FOH-ness so an FOH mapping (which omits
// the name column) is never offered for a user or prospect import.
func (s *TemplateStore) FindMatching(clientID uuid.UUID, headers []string, isFoh bool) (*MappingTemplate, error) {
	templates, err := s.List(clientID)
	if err != nil {
		return nil, err
	}
	return matchTemplate(templates, headers, isFoh), nil
}

func matchTemplate(templates []MappingTemplate, headers []string, isFoh bool) *MappingTemplate {
	want := headerKey(headers)
	for i := range templates {
		if templates[i].IsFoh != isFoh {
			continue
		}
		var tplHeaders []string
		if err := json.Unmarshal(templates[i].Headers, &tplHeaders); err != nil {
			continue
		}
		if headerKey(tplHeaders) == want {
			return &templates[i]
		}
	}
	return nil
}

// headerKey canonicalizes a header list for order-independent comparison.
func headerKey(headers []string) string {
	norm := make([]string, 0, len(headers))
	for _, h := range headers {
		norm = append(norm, normalizeHeader(h))
	}
	sort.Strings(norm)
	return strings.Join(norm, "\x1f")
}
