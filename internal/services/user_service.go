package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wappdesk/backend/internal/models"
	"github.com/wappdesk/backend/internal/phone"
	"github.com/wappdesk/backend/internal/tenant"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken      = errors.New("email already registered")
	ErrPhoneTaken      = errors.New("phone already registered")
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidPhone    = errors.New("invalid phone number")
	ErrInvalidRole     = errors.New("invalid role")
	ErrManagerNotFound = errors.New("manager not found")
)

type CreateUserRequest struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	PhoneCountry string `json:"phone_country"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	ManagerEmail string `json:"manager_email"`
}

type UpdateUserRequest struct {
	Code         *string `json:"code"`
	Name         *string `json:"name"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	PhoneCountry *string `json:"phone_country"`
	Role         *string `json:"role"`
	ManagerEmail *string `json:"manager_email"`
	Active       *bool   `json:"active"`
}

type UserListResponse struct {
	Users      []models.User `json:"users"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"total_pages"`
}

type UserService struct {
	db      *gorm.DB
	clients *ClientService
}

func NewUserService(db *gorm.DB, clients *ClientService) *UserService {
	return &UserService{db: db, clients: clients}
}

func (s *UserService) Create(clientID uuid.UUID, req *CreateUserRequest) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	normalized := phone.Normalize(req.Phone)
	if !phone.Valid(normalized) {
		return nil, ErrInvalidPhone
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, ErrInvalidEmail
		}
	}

	role := req.Role
	if role == "" {
		role = models.RoleAgent
	}
	if role != models.RoleAgent && role != models.RoleSupervisor {
		return nil, ErrInvalidRole
	}

	if err := s.clients.CheckSeats(clientID, 1); err != nil {
		return nil, err
	}

	var count int64
	scoped := s.db.Model(&models.User{}).Scopes(tenant.ForTenant(clientID))
	if email != "" {
		if err := scoped.Where("email = ?", email).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, ErrEmailTaken
		}
	}
	if err := s.db.Model(&models.User{}).Scopes(tenant.ForTenant(clientID)).Where("phone = ?", normalized).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrPhoneTaken
	}

	var managerID *uuid.UUID
	if req.ManagerEmail != "" {
		manager, err := s.findByEmail(clientID, req.ManagerEmail)
		if err != nil {
			return nil, ErrManagerNotFound
		}
		managerID = &manager.ID
	}

	password := req.Password
	if password == "" {
		// Imported users get a random password and must reset it.
		token, err := randomToken()
		if err != nil {
			return nil, err
		}
		password = token
	}
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.New(),
		ClientID:     &clientID,
		Code:         strings.TrimSpace(req.Code),
		Name:         name,
		Email:        email,
		Phone:        normalized,
		PhoneCountry: strings.TrimSpace(req.PhoneCountry),
		Password:     string(hash),
		Role:         role,
		ManagerID:    managerID,
		Active:       true,
	}

	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

func (s *UserService) List(clientID uuid.UUID, page, limit int, search, role string) (*UserListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	var users []models.User
	var total int64

	query := s.db.Model(&models.User{}).Scopes(tenant.ForTenant(clientID))
	if search != "" {
		searchLower := "%" + strings.ToLower(search) + "%"
		query = query.Where("(LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?)", searchLower, searchLower, searchLower)
	}
	if role != "" {
		query = query.Where("role = ?", role)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}
	if err := query.Preload("Manager").Order("created_at DESC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, err
	}

	return &UserListResponse{
		Users:      users,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

func (s *UserService) Get(clientID, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.Scopes(tenant.ForTenant(clientID)).Preload("Manager").First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserService) Update(clientID, id uuid.UUID, req *UpdateUserRequest) (*models.User, error) {
	updates := map[string]interface{}{}

	if req.Code != nil {
		updates["code"] = strings.TrimSpace(*req.Code)
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" {
			return nil, ErrNameRequired
		}
		updates["name"] = trimmed
	}
	if req.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*req.Email))
		if email != "" {
			if _, err := mail.ParseAddress(email); err != nil {
				return nil, ErrInvalidEmail
			}
		}
		updates["email"] = email
	}
	if req.Phone != nil {
		normalized := phone.Normalize(*req.Phone)
		if !phone.Valid(normalized) {
			return nil, ErrInvalidPhone
		}
		updates["phone"] = normalized
	}
	if req.PhoneCountry != nil {
		updates["phone_country"] = strings.TrimSpace(*req.PhoneCountry)
	}
	if req.Role != nil {
		if *req.Role != models.RoleAgent && *req.Role != models.RoleSupervisor {
			return nil, ErrInvalidRole
		}
		updates["role"] = *req.Role
	}
	if req.ManagerEmail != nil {
		if *req.ManagerEmail == "" {
			updates["manager_id"] = nil
		} else {
			manager, err := s.findByEmail(clientID, *req.ManagerEmail)
			if err != nil {
				return nil, ErrManagerNotFound
			}
			updates["manager_id"] = manager.ID
		}
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	if len(updates) == 0 {
		return s.Get(clientID, id)
	}

	result := s.db.Model(&models.User{}).Scopes(tenant.ForTenant(clientID)).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}

	return s.Get(clientID, id)
}

func (s *UserService) Delete(clientID, id uuid.UUID) error {
	result := s.db.Scopes(tenant.ForTenant(clientID)).Where("id = ?", id).Delete(&models.User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ExportCSV dumps all of a client's users for the admin console download.
func (s *UserService) ExportCSV(clientID uuid.UUID) ([]byte, error) {
	var users []models.User
	if err := s.db.Scopes(tenant.ForTenant(clientID)).Preload("Manager").Order("created_at").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)

	headers := []string{"Code", "Name", "Email", "Phone", "Phone Country", "Role", "Manager Email", "Active", "Created At"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, u := range users {
		managerEmail := ""
		if u.Manager != nil {
			managerEmail = u.Manager.Email
		}
		record := []string{
			u.Code,
			u.Name,
			u.Email,
			u.Phone,
			u.PhoneCountry,
			u.Role,
			managerEmail,
			fmt.Sprintf("%t", u.Active),
			u.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buffer.Bytes(), nil
}

func (s *UserService) findByEmail(clientID uuid.UUID, email string) (*models.User, error) {
	var user models.User
	err := s.db.Scopes(tenant.ForTenant(clientID)).
		Where("email = ?", strings.TrimSpace(strings.ToLower(email))).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
