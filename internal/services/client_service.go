package services

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/wappdesk/backend/internal/models"
	"github.com/wappdesk/backend/internal/tenant"
	"gorm.io/gorm"
)

var (
	ErrClientNotFound  = errors.New("client not found")
	ErrClientNameTaken = errors.New("client slug already in use")
	ErrNameRequired    = errors.New("name is required")
	ErrSeatLimit       = errors.New("client seat limit reached")
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

type CreateClientRequest struct {
	Name        string `json:"name"`
	Plan        string `json:"plan"`
	SeatLimit   int    `json:"seat_limit"`
	PhoneNumber string `json:"phone_number"`
}

type UpdateClientRequest struct {
	Name        *string `json:"name"`
	Plan        *string `json:"plan"`
	SeatLimit   *int    `json:"seat_limit"`
	PhoneNumber *string `json:"phone_number"`
	Active      *bool   `json:"active"`
}

type ClientListResponse struct {
	Clients    []models.Client `json:"clients"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}

type ClientService struct {
	db       *gorm.DB
	registry *tenant.Registry
}

func NewClientService(db *gorm.DB, registry *tenant.Registry) *ClientService {
	return &ClientService{db: db, registry: registry}
}

func (s *ClientService) Create(req *CreateClientRequest) (*models.Client, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	client := models.Client{
		ID:          uuid.New(),
		Name:        name,
		Slug:        slugify(name),
		Plan:        req.Plan,
		SeatLimit:   req.SeatLimit,
		PhoneNumber: req.PhoneNumber,
		Active:      true,
	}
	if client.Plan == "" {
		client.Plan = "standard"
	}
	if client.SeatLimit <= 0 {
		client.SeatLimit = 50
	}

	var existing models.Client
	if err := s.db.Where("slug = ?", client.Slug).First(&existing).Error; err == nil {
		return nil, ErrClientNameTaken
	}

	if err := s.db.Create(&client).Error; err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &client, nil
}

func (s *ClientService) List(page, limit int, search string) (*ClientListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	var clients []models.Client
	var total int64

	query := s.db.Model(&models.Client{})
	if search != "" {
		searchLower := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ?", searchLower)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&clients).Error; err != nil {
		return nil, err
	}

	return &ClientListResponse{
		Clients:    clients,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

func (s *ClientService) Get(id uuid.UUID) (*models.Client, error) {
	var client models.Client
	if err := s.db.First(&client, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return &client, nil
}

func (s *ClientService) Update(id uuid.UUID, req *UpdateClientRequest) (*models.Client, error) {
	updates := map[string]interface{}{}

	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" {
			return nil, ErrNameRequired
		}
		updates["name"] = trimmed
	}
	if req.Plan != nil {
		updates["plan"] = *req.Plan
	}
	if req.SeatLimit != nil && *req.SeatLimit > 0 {
		updates["seat_limit"] = *req.SeatLimit
	}
	if req.PhoneNumber != nil {
		updates["phone_number"] = *req.PhoneNumber
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	if len(updates) == 0 {
		return s.Get(id)
	}

	result := s.db.Model(&models.Client{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrClientNotFound
	}

	s.registry.Invalidate(id)
	return s.Get(id)
}

func (s *ClientService) Delete(id uuid.UUID) error {
	result := s.db.Where("id = ?", id).Delete(&models.Client{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrClientNotFound
	}
	s.registry.Invalidate(id)
	return nil
}

// CheckSeats verifies that adding n users stays within the client's seat
// limit. Called on user creation and before an import commit.
func (s *ClientService) CheckSeats(clientID uuid.UUID, adding int64) error {
	client, err := s.Get(clientID)
	if err != nil {
		return err
	}

	var current int64
	if err := s.db.Model(&models.User{}).Scopes(tenant.ForTenant(clientID)).Count(&current).Error; err != nil {
		return err
	}

	if current+adding > int64(client.SeatLimit) {
		return fmt.Errorf("%w: %d of %d seats used, cannot add %d", ErrSeatLimit, current, client.SeatLimit, adding)
	}
	return nil
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugPattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
