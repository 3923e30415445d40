package contacts

import (
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/wappdesk/backend/internal/models"
	"github.com/wappdesk/backend/internal/phone"
	"github.com/wappdesk/backend/internal/services"
	"github.com/wappdesk/backend/internal/tenant"
)

var (
	ErrProspectNotFound = errors.New("prospect not found")
	ErrInvalidPhone     = errors.New("phone must be 8 to 15 digits")
	ErrPhoneTaken       = errors.New("a prospect with this phone already exists")
	ErrAlreadyPromoted  = errors.New("prospect was already promoted")
)

type Service struct {
	db    *gorm.DB
	users *services.UserService
}

func NewService(db *gorm.DB, users *services.UserService) *Service {
	return &Service{db: db, users: users}
}

type ProspectRequest struct {
	Name         string            `json:"name"`
	Phone        string            `json:"phone"`
	PhoneCountry string            `json:"phone_country"`
	Email        string            `json:"email"`
	Source       string            `json:"source"`
	CrmFields    map[string]string `json:"crm_fields"`
}

func (s *Service) Create(clientID uuid.UUID, req *ProspectRequest) (*models.Prospect, error) {
	normalized := phone.Normalize(req.Phone)
	if !phone.Valid(normalized) {
		return nil, ErrInvalidPhone
	}
	var count int64
	err := s.db.Model(&models.Prospect{}).Scopes(tenant.ForTenant(clientID)).
		Where("phone = ?", normalized).Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrPhoneTaken
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = "manual"
	}
	prospect := &models.Prospect{
		ID:           uuid.New(),
		ClientID:     clientID,
		Name:         strings.TrimSpace(req.Name),
		Phone:        normalized,
		PhoneCountry: strings.TrimSpace(req.PhoneCountry),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Source:       source,
	}
	if fields := marshalFields(req.CrmFields); fields != nil {
		prospect.CrmFields = fields
	}
	if err := s.db.Create(prospect).Error; err != nil {
		return nil, err
	}
	return prospect, nil
}

type ListResponse struct {
	Prospects  []models.Prospect `json:"prospects"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}

func (s *Service) List(clientID uuid.UUID, page, limit int, search, source string) (*ListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	q := s.db.Model(&models.Prospect{}).Scopes(tenant.ForTenant(clientID))
	if search != "" {
		like := "%" + search + "%"
		q = q.Where("name ILIKE ? OR phone LIKE ? OR email ILIKE ?", like, like, like)
	}
	if source != "" {
		q = q.Where("source = ?", source)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}
	var prospects []models.Prospect
	err := q.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&prospects).Error
	if err != nil {
		return nil, err
	}
	return &ListResponse{
		Prospects:  prospects,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

func (s *Service) Get(clientID, id uuid.UUID) (*models.Prospect, error) {
	var prospect models.Prospect
	err := s.db.Scopes(tenant.ForTenant(clientID)).First(&prospect, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProspectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &prospect, nil
}

func (s *Service) Update(clientID, id uuid.UUID, req *ProspectRequest) (*models.Prospect, error) {
	prospect, err := s.Get(clientID, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = strings.TrimSpace(req.Name)
	}
	if req.Phone != "" {
		normalized := phone.Normalize(req.Phone)
		if !phone.Valid(normalized) {
			return nil, ErrInvalidPhone
		}
		if normalized != prospect.Phone {
			var count int64
			err := s.db.Model(&models.Prospect{}).Scopes(tenant.ForTenant(clientID)).
				Where("phone = ? AND id <> ?", normalized, id).Count(&count).Error
			if err != nil {
				return nil, err
			}
			if count > 0 {
				return nil, ErrPhoneTaken
			}
			updates["phone"] = normalized
		}
	}
	if req.PhoneCountry != "" {
		updates["phone_country"] = strings.TrimSpace(req.PhoneCountry)
	}
	if req.Email != "" {
		updates["email"] = strings.ToLower(strings.TrimSpace(req.Email))
	}
	if req.Source != "" {
		updates["source"] = strings.TrimSpace(req.Source)
	}
	if fields := marshalFields(req.CrmFields); fields != nil {
		updates["crm_fields"] = fields
	}
	if len(updates) > 0 {
		if err := s.db.Model(&models.Prospect{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.Get(clientID, id)
}

func (s *Service) Delete(clientID, id uuid.UUID) error {
	res := s.db.Scopes(tenant.ForTenant(clientID)).Delete(&models.Prospect{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProspectNotFound
	}
	return nil
}

// Promote turns a prospect into a full user account, consuming a seat.
// The prospect stays around with a pointer to the created user so its
// conversation history keeps resolving.
func (s *Service) Promote(clientID, id uuid.UUID, req *services.CreateUserRequest) (*models.User, error) {
	prospect, err := s.Get(clientID, id)
	if err != nil {
		return nil, err
	}
	if prospect.PromotedTo != nil {
		return nil, ErrAlreadyPromoted
	}

	if req.Name == "" {
		req.Name = prospect.Name
	}
	if req.Phone == "" {
		req.Phone = prospect.Phone
	}
	if req.Email == "" {
		req.Email = prospect.Email
	}
	if req.PhoneCountry == "" {
		req.PhoneCountry = prospect.PhoneCountry
	}

	user, err := s.users.Create(clientID, req)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Prospect{}).Where("id = ?", id).
		Update("promoted_to", user.ID).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func marshalFields(fields map[string]string) datatypes.JSON {
	if len(fields) == 0 {
		return nil
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
