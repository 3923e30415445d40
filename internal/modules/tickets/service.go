package tickets

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wappdesk/backend/internal/models"
	"github.com/wappdesk/backend/internal/phone"
	"github.com/wappdesk/backend/internal/storage"
	"github.com/wappdesk/backend/internal/tenant"
)

var (
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrInvalidStatus   = errors.New("status must be open, pending, resolved or closed")
	ErrAssigneeInvalid = errors.New("assignee is not an active user of this tenant")
	ErrEmptyMessage    = errors.New("message body is empty")
	ErrNoSenderNumber  = errors.New("tenant has no WhatsApp phone number configured")
	ErrNotYourTicket   = errors.New("ticket is assigned to another agent")
)

const settingPhoneNumberID = "whatsapp_phone_number_id"

// Sender is the outbound surface used when an agent replies.
type Sender interface {
	SendText(phoneNumberID, to, body string) (string, error)
}

type Service struct {
	db     *gorm.DB
	sender Sender
	files  *storage.Storage
}

func NewService(db *gorm.DB, sender Sender, files *storage.Storage) *Service {
	return &Service{db: db, sender: sender, files: files}
}

type ListResponse struct {
	Tickets    []Ticket `json:"tickets"`
	Total      int64    `json:"total"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	TotalPages int      `json:"total_pages"`
}

// List returns the tenant's tickets. Agents only see tickets assigned to
// them or unassigned ones; supervisors and admins see everything.
func (s *Service) List(clientID uuid.UUID, requesterID uuid.UUID, role string, page, limit int, status, search string) (*ListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	q := s.db.Model(&Ticket{}).Scopes(tenant.ForTenant(clientID))
	if role == models.RoleAgent {
		q = q.Where("assignee_id = ? OR assignee_id IS NULL", requesterID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if search != "" {
		like := "%" + search + "%"
		q = q.Where("contact_phone LIKE ? OR contact_name ILIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}
	var tickets []Ticket
	err := q.Preload("Assignee").
		Order("last_message_at DESC NULLS LAST").
		Offset((page - 1) * limit).Limit(limit).
		Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	return &ListResponse{
		Tickets:    tickets,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

func (s *Service) Get(clientID, ticketID uuid.UUID) (*Ticket, error) {
	var ticket Ticket
	err := s.db.Scopes(tenant.ForTenant(clientID)).
		Preload("Assignee").
		First(&ticket, "id = ?", ticketID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// Assign hands a ticket to an agent or supervisor of the same tenant.
// Passing a nil assignee unassigns it.
func (s *Service) Assign(clientID, ticketID uuid.UUID, assigneeID *uuid.UUID) (*Ticket, error) {
	if _, err := s.Get(clientID, ticketID); err != nil {
		return nil, err
	}
	if assigneeID != nil {
		var count int64
		err := s.db.Model(&models.User{}).Scopes(tenant.ForTenant(clientID)).
			Where("id = ? AND active = ?", *assigneeID, true).
			Count(&count).Error
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrAssigneeInvalid
		}
	}
	if err := s.db.Model(&Ticket{}).Where("id = ?", ticketID).
		Update("assignee_id", assigneeID).Error; err != nil {
		return nil, err
	}
	return s.Get(clientID, ticketID)
}

func (s *Service) UpdateStatus(clientID, ticketID uuid.UUID, status string) (*Ticket, error) {
	switch status {
	case StatusOpen, StatusPending, StatusResolved, StatusClosed:
	default:
		return nil, ErrInvalidStatus
	}
	if _, err := s.Get(clientID, ticketID); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{"status": status}
	if status == StatusClosed {
		updates["closed_at"] = time.Now()
	} else {
		updates["closed_at"] = nil
	}
	if err := s.db.Model(&Ticket{}).Where("id = ?", ticketID).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(clientID, ticketID)
}

func (s *Service) Messages(clientID, ticketID uuid.UUID, page, limit int) ([]Message, int64, error) {
	if _, err := s.Get(clientID, ticketID); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	var total int64
	if err := s.db.Model(&Message{}).Where("ticket_id = ?", ticketID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var messages []Message
	err := s.db.Where("ticket_id = ?", ticketID).
		Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&messages).Error
	return messages, total, err
}

// Send delivers an agent reply over WhatsApp and records it on the
// ticket. Agents may only reply on their own or unassigned tickets.
func (s *Service) Send(clientID, ticketID, senderID uuid.UUID, role, body string) (*Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyMessage
	}
	ticket, err := s.Get(clientID, ticketID)
	if err != nil {
		return nil, err
	}
	if role == models.RoleAgent && ticket.AssigneeID != nil && *ticket.AssigneeID != senderID {
		return nil, ErrNotYourTicket
	}

	phoneNumberID, err := s.phoneNumberID(clientID)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		ID:        uuid.New(),
		ClientID:  clientID,
		TicketID:  ticketID,
		Direction: DirectionOut,
		Body:      body,
		Status:    MessageQueued,
		SenderID:  &senderID,
	}
	waMessageID, sendErr := s.sender.SendText(phoneNumberID, ticket.ContactPhone, body)
	if sendErr != nil {
		msg.Status = MessageFailed
	} else {
		msg.Status = MessageSent
		msg.WaMessageID = waMessageID
	}
	if err := s.db.Create(msg).Error; err != nil {
		return nil, err
	}
	if err := s.touch(ticketID, nil); err != nil {
		return nil, err
	}
	if sendErr != nil {
		return msg, fmt.Errorf("whatsapp send: %w", sendErr)
	}
	return msg, nil
}

// AttachMedia stores an uploaded file for a ticket and records an outbound
// media message carrying a link to it.
func (s *Service) AttachMedia(ctx context.Context, clientID, ticketID, senderID uuid.UUID, role, fileName string, data []byte, contentType string) (*Message, error) {
	ticket, err := s.Get(clientID, ticketID)
	if err != nil {
		return nil, err
	}
	if role == models.RoleAgent && ticket.AssigneeID != nil && *ticket.AssigneeID != senderID {
		return nil, ErrNotYourTicket
	}

	objectKey, err := s.files.Put(ctx, clientID, "media", fmt.Sprintf("%s_%s", uuid.NewString(), fileName), data, contentType)
	if err != nil {
		return nil, fmt.Errorf("store media: %w", err)
	}

	phoneNumberID, err := s.phoneNumberID(clientID)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		ID:        uuid.New(),
		ClientID:  clientID,
		TicketID:  ticketID,
		Direction: DirectionOut,
		Body:      s.files.PublicURL(objectKey),
		MediaKey:  objectKey,
		MediaType: contentType,
		Status:    MessageQueued,
		SenderID:  &senderID,
	}
	waMessageID, sendErr := s.sender.SendText(phoneNumberID, ticket.ContactPhone, msg.Body)
	if sendErr != nil {
		msg.Status = MessageFailed
	} else {
		msg.Status = MessageSent
		msg.WaMessageID = waMessageID
	}
	if err := s.db.Create(msg).Error; err != nil {
		return nil, err
	}
	if err := s.touch(ticketID, nil); err != nil {
		return nil, err
	}
	if sendErr != nil {
		return msg, fmt.Errorf("whatsapp send: %w", sendErr)
	}
	return msg, nil
}

// Media streams a stored attachment back to the client.
func (s *Service) Media(ctx context.Context, clientID, ticketID, messageID uuid.UUID) ([]byte, string, error) {
	if _, err := s.Get(clientID, ticketID); err != nil {
		return nil, "", err
	}
	var msg Message
	err := s.db.First(&msg, "id = ? AND ticket_id = ?", messageID, ticketID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && msg.MediaKey == "") {
		return nil, "", ErrTicketNotFound
	}
	if err != nil {
		return nil, "", err
	}
	data, err := s.files.Get(ctx, msg.MediaKey)
	if err != nil {
		return nil, "", err
	}
	return data, msg.MediaType, nil
}

// RecordInbound files an incoming WhatsApp message, creating the ticket
// (and a prospect) if the contact is new. Re-delivered webhook events are
// deduplicated on the WhatsApp message ID.
func (s *Service) RecordInbound(clientID uuid.UUID, from, contactName, body, waMessageID, mediaKey, mediaType string) (*Message, error) {
	normalized := phone.Normalize(from)
	if normalized == "" {
		return nil, ErrEmptyMessage
	}
	if waMessageID != "" {
		var count int64
		if err := s.db.Model(&Message{}).
			Where("client_id = ? AND wa_message_id = ?", clientID, waMessageID).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, nil
		}
	}

	ticket, err := s.findOrCreateTicket(clientID, normalized, contactName)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		ID:          uuid.New(),
		ClientID:    clientID,
		TicketID:    ticket.ID,
		Direction:   DirectionIn,
		Body:        body,
		MediaKey:    mediaKey,
		MediaType:   mediaType,
		WaMessageID: waMessageID,
		Status:      MessageDelivered,
	}
	if err := s.db.Create(msg).Error; err != nil {
		return nil, err
	}
	// A resolved or closed conversation reopens on contact.
	if err := s.touch(ticket.ID, map[string]interface{}{"status": StatusOpen, "closed_at": nil}); err != nil {
		return nil, err
	}
	return msg, nil
}

// ApplyDeliveryStatus records a status callback for an outbound message.
func (s *Service) ApplyDeliveryStatus(waMessageID, status string) error {
	switch status {
	case MessageSent, MessageDelivered, MessageRead, MessageFailed:
	default:
		return nil
	}
	return s.db.Model(&Message{}).
		Where("wa_message_id = ? AND direction = ?", waMessageID, DirectionOut).
		Update("status", status).Error
}

func (s *Service) findOrCreateTicket(clientID uuid.UUID, contactPhone, contactName string) (*Ticket, error) {
	var ticket Ticket
	err := s.db.Scopes(tenant.ForTenant(clientID)).
		Where("contact_phone = ? AND status <> ?", contactPhone, StatusClosed).
		Order("created_at DESC").
		First(&ticket).Error
	if err == nil {
		return &ticket, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	prospectID, err := s.findOrCreateProspect(clientID, contactPhone, contactName)
	if err != nil {
		return nil, err
	}
	ticket = Ticket{
		ID:           uuid.New(),
		ClientID:     clientID,
		ContactPhone: contactPhone,
		ContactName:  contactName,
		ProspectID:   prospectID,
		Status:       StatusOpen,
	}
	if err := s.db.Create(&ticket).Error; err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (s *Service) findOrCreateProspect(clientID uuid.UUID, contactPhone, contactName string) (*uuid.UUID, error) {
	var prospect models.Prospect
	err := s.db.Scopes(tenant.ForTenant(clientID)).
		First(&prospect, "phone = ?", contactPhone).Error
	if err == nil {
		return &prospect.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	// Known users message too; don't shadow them with a prospect.
	var userCount int64
	if err := s.db.Model(&models.User{}).Scopes(tenant.ForTenant(clientID)).
		Where("phone = ?", contactPhone).Count(&userCount).Error; err != nil {
		return nil, err
	}
	if userCount > 0 {
		return nil, nil
	}
	prospect = models.Prospect{
		ID:       uuid.New(),
		ClientID: clientID,
		Name:     contactName,
		Phone:    contactPhone,
		Source:   "whatsapp",
	}
	if err := s.db.Create(&prospect).Error; err != nil {
		return nil, err
	}
	return &prospect.ID, nil
}

func (s *Service) touch(ticketID uuid.UUID, extra map[string]interface{}) error {
	updates := map[string]interface{}{"last_message_at": time.Now()}
	for k, v := range extra {
		updates[k] = v
	}
	return s.db.Model(&Ticket{}).Where("id = ?", ticketID).Updates(updates).Error
}

func (s *Service) phoneNumberID(clientID uuid.UUID) (string, error) {
	var setting models.ClientSetting
	err := s.db.Scopes(tenant.ForTenant(clientID)).
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

// CloseIdleTickets closes resolved tickets that have been quiet longer
// than the given age. Driven by the tenant's ticket_auto_close_days
// setting from a daily loop in main.
func (s *Service) CloseIdleTickets(clientID uuid.UUID, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)
	res := s.db.Model(&Ticket{}).Scopes(tenant.ForTenant(clientID)).
		Where("status = ? AND last_message_at < ?", StatusResolved, cutoff).
		Updates(map[string]interface{}{"status": StatusClosed, "closed_at": time.Now()})
	return res.RowsAffected, res.Error
}
