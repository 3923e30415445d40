package campaigns

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/wappdesk/backend/internal/models"
	"github.com/wappdesk/backend/internal/phone"
	"github.com/wappdesk/backend/internal/tenant"
)

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrNameRequired     = errors.New("campaign name is required")
	ErrContentRequired  = errors.New("campaign needs a template name or a text body")
	ErrNoRecipients     = errors.New("campaign has no recipients")
	ErrBadStatus        = errors.New("operation not allowed in the campaign's current status")
	ErrAlreadyDone      = errors.New("campaign already finished")
	ErrNoSenderNumber   = errors.New("tenant has no WhatsApp phone number configured")
)

const settingPhoneNumberID = "whatsapp_phone_number_id"

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type CreateCampaignRequest struct {
	Name         string     `json:"name"`
	TemplateName string     `json:"template_name"`
	LanguageCode string     `json:"language_code"`
	Body         string     `json:"body"`
	ScheduledAt  *time.Time `json:"scheduled_at"`
}

func (s *Service) Create(clientID, userID uuid.UUID, req *CreateCampaignRequest) (*Campaign, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if strings.TrimSpace(req.TemplateName) == "" && strings.TrimSpace(req.Body) == "" {
		return nil, ErrContentRequired
	}
	lang := req.LanguageCode
	if lang == "" {
		lang = "es_MX"
	}
	campaign := &Campaign{
		ID:           uuid.New(),
		ClientID:     clientID,
		CreatedBy:    userID,
		Name:         name,
		TemplateName: strings.TrimSpace(req.TemplateName),
		LanguageCode: lang,
		Body:         req.Body,
		Status:       StatusDraft,
		ScheduledAt:  req.ScheduledAt,
	}
	if err := s.db.Create(campaign).Error; err != nil {
		return nil, err
	}
	return campaign, nil
}

type RecipientInput struct {
	Phone  string   `json:"phone"`
	Name   string   `json:"name"`
	Params []string `json:"params"`
}

type AddRecipientsRequest struct {
	Recipients []RecipientInput `json:"recipients"`
	// FromProspects adds every prospect of the tenant matching the
	// optional source filter.
	FromProspects bool   `json:"from_prospects"`
	SourceFilter  string `json:"source_filter"`
}

// AddRecipients appends targets to a draft campaign. Duplicate and invalid
// phones are dropped silently; the response carries the resulting total.
func (s *Service) AddRecipients(clientID, campaignID uuid.UUID, req *AddRecipientsRequest) (*Campaign, error) {
	campaign, err := s.Get(clientID, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != StatusDraft {
		return nil, ErrBadStatus
	}

	inputs := req.Recipients
	if req.FromProspects {
		q := s.db.Scopes(tenant.ForTenant(clientID)).Model(&models.Prospect{}).
			Where("promoted_to IS NULL")
		if req.SourceFilter != "" {
			q = q.Where("source = ?", req.SourceFilter)
		}
		var prospects []models.Prospect
		if err := q.Find(&prospects).Error; err != nil {
			return nil, err
		}
		for _, p := range prospects {
			inputs = append(inputs, RecipientInput{Phone: p.Phone, Name: p.Name})
		}
	}

	existing := make(map[string]bool)
	var current []Recipient
	if err := s.db.Select("phone").Where("campaign_id = ?", campaignID).Find(&current).Error; err != nil {
		return nil, err
	}
	for _, r := range current {
		existing[r.Phone] = true
	}

	var rows []Recipient
	for _, in := range inputs {
		normalized := phone.Normalize(in.Phone)
		if !phone.Valid(normalized) || existing[normalized] {
			continue
		}
		existing[normalized] = true
		params := datatypes.JSON([]byte("[]"))
		if len(in.Params) > 0 {
			if b, err := json.Marshal(in.Params); err == nil {
				params = datatypes.JSON(b)
			}
		}
		rows = append(rows, Recipient{
			ID:         uuid.New(),
			CampaignID: campaignID,
			Phone:      normalized,
			Name:       strings.TrimSpace(in.Name),
			Params:     params,
			Status:     RecipientPending,
		})
	}
	if len(rows) > 0 {
		if err := s.db.CreateInBatches(rows, 500).Error; err != nil {
			return nil, err
		}
	}

	var total int64
	if err := s.db.Model(&Recipient{}).Where("campaign_id = ?", campaignID).Count(&total).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&Campaign{}).Where("id = ?", campaignID).
		Update("total", total).Error; err != nil {
		return nil, err
	}
	return s.Get(clientID, campaignID)
}

// Queue moves a draft with recipients into the runnable queue. The worker
// pool picks it up once ScheduledAt (if any) has passed.
func (s *Service) Queue(clientID, campaignID uuid.UUID) (*Campaign, error) {
	campaign, err := s.Get(clientID, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != StatusDraft {
		return nil, ErrBadStatus
	}
	if campaign.Total == 0 {
		return nil, ErrNoRecipients
	}
	err = s.db.Model(&Campaign{}).
		Where("id = ? AND status = ?", campaignID, StatusDraft).
		Update("status", StatusQueued).Error
	if err != nil {
		return nil, err
	}
	return s.Get(clientID, campaignID)
}

// Cancel stops a campaign from any non-terminal state. A worker mid-run
// sees the flag between recipients and abandons the rest.
func (s *Service) Cancel(clientID, campaignID uuid.UUID) (*Campaign, error) {
	campaign, err := s.Get(clientID, campaignID)
	if err != nil {
		return nil, err
	}
	switch campaign.Status {
	case StatusCompleted, StatusError, StatusCancelled:
		return nil, ErrAlreadyDone
	}
	err = s.db.Model(&Campaign{}).
		Where("id = ? AND status NOT IN ?", campaignID,
			[]string{StatusCompleted, StatusError, StatusCancelled}).
		Update("status", StatusCancelled).Error
	if err != nil {
		return nil, err
	}
	return s.Get(clientID, campaignID)
}

type ListResponse struct {
	Campaigns  []Campaign `json:"campaigns"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPages int        `json:"total_pages"`
}

func (s *Service) List(clientID uuid.UUID, page, limit int, status string) (*ListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	q := s.db.Model(&Campaign{}).Scopes(tenant.ForTenant(clientID))
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}
	var campaigns []Campaign
	if err := q.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&campaigns).Error; err != nil {
		return nil, err
	}
	return &ListResponse{
		Campaigns:  campaigns,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

func (s *Service) Get(clientID, campaignID uuid.UUID) (*Campaign, error) {
	var campaign Campaign
	err := s.db.Scopes(tenant.ForTenant(clientID)).First(&campaign, "id = ?", campaignID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (s *Service) Recipients(clientID, campaignID uuid.UUID, page, limit int, status string) ([]Recipient, int64, error) {
	if _, err := s.Get(clientID, campaignID); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}
	q := s.db.Model(&Recipient{}).Where("campaign_id = ?", campaignID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var recipients []Recipient
	err := q.Order("created_at ASC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&recipients).Error
	return recipients, total, err
}

// ApplyDeliveryStatus records a delivery-status callback against the
// recipient carrying the WhatsApp message ID. Unknown IDs are ignored;
// the webhook also delivers statuses for conversation messages.
func (s *Service) ApplyDeliveryStatus(waMessageID, status string) error {
	if waMessageID == "" {
		return nil
	}
	res := s.db.Model(&Recipient{}).
		Where("wa_message_id = ?", waMessageID).
		Update("delivery_status", status)
	if res.Error != nil {
		return res.Error
	}
	if status == "failed" && res.RowsAffected > 0 {
		return s.db.Model(&Recipient{}).
			Where("wa_message_id = ?", waMessageID).
			Update("status", RecipientFailed).Error
	}
	return nil
}

// SettingsResolver resolves a tenant's sending number from its settings.
type SettingsResolver struct {
	db *gorm.DB
}

func NewSettingsResolver(db *gorm.DB) *SettingsResolver {
	return &SettingsResolver{db: db}
}

func (r *SettingsResolver) PhoneNumberID(clientID uuid.UUID) (string, error) {
	var setting models.ClientSetting
	err := r.db.Scopes(tenant.ForTenant(clientID)).
		First(&setting, "key = ?", settingPhoneNumberID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNoSenderNumber
	}
	if err != nil {
		return "", err
	}
	if setting.Value == "" {
		return "", ErrNoSenderNumber
	}
	return setting.Value, nil
}

var _ PhoneNumberResolver = (*SettingsResolver)(nil)
