package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wappdesk/backend/internal/config"
	"github.com/wappdesk/backend/internal/models"
	"github.com/wappdesk/backend/internal/modules/campaigns"
	"github.com/wappdesk/backend/internal/modules/tickets"
)

// WebhookHandler receives WhatsApp Cloud API callbacks: inbound messages
// open or continue tickets, delivery statuses update both conversation
// messages and campaign recipients.
type WebhookHandler struct {
	db        *gorm.DB
	cfg       *config.Config
	tickets   *tickets.Service
	campaigns *campaigns.Service
}

func NewWebhookHandler(db *gorm.DB, cfg *config.Config, ticketService *tickets.Service, campaignService *campaigns.Service) *WebhookHandler {
	return &WebhookHandler{db: db, cfg: cfg, tickets: ticketService, campaigns: campaignService}
}

// Verify answers Meta's webhook subscription handshake.
func (h *WebhookHandler) Verify(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.cfg.WhatsAppWebhookToken {
		return c.SendString(challenge)
	}
	return c.SendStatus(fiber.StatusForbidden)
}

// Cloud API webhook payload, reduced to the fields we consume.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Metadata struct {
					PhoneNumberID string `json:"phone_number_id"`
				} `json:"metadata"`
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
					WaID string `json:"wa_id"`
				} `json:"contacts"`
				Messages []struct {
					From string `json:"from"`
					ID   string `json:"id"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
					Image struct {
						ID       string `json:"id"`
						MimeType string `json:"mime_type"`
						Caption  string `json:"caption"`
					} `json:"image"`
					Document struct {
						ID       string `json:"id"`
						MimeType string `json:"mime_type"`
						Filename string `json:"filename"`
					} `json:"document"`
					Audio struct {
						ID       string `json:"id"`
						MimeType string `json:"mime_type"`
					} `json:"audio"`
				} `json:"messages"`
				Statuses []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// Receive processes webhook events. It always answers 200; Meta retries
// on anything else and the handlers are idempotent anyway.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	var payload webhookPayload
	if err := c.BodyParser(&payload); err != nil {
		slog.Warn("webhook payload unreadable", "error", err)
		return c.SendStatus(fiber.StatusOK)
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			value := change.Value

			clientID, err := h.resolveTenant(value.Metadata.PhoneNumberID)
			if err != nil {
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					slog.Error("webhook tenant lookup failed",
						"phone_number_id", value.Metadata.PhoneNumberID, "error", err)
				}
				continue
			}

			names := make(map[string]string, len(value.Contacts))
			for _, contact := range value.Contacts {
				names[contact.WaID] = contact.Profile.Name
			}

			for _, msg := range value.Messages {
				body := msg.Text.Body
				mediaType := ""
				switch msg.Type {
				case "image":
					body = msg.Image.Caption
					mediaType = msg.Image.MimeType
				case "document":
					body = msg.Document.Filename
					mediaType = msg.Document.MimeType
				case "audio":
					mediaType = msg.Audio.MimeType
				}
				if _, err := h.tickets.RecordInbound(clientID, msg.From, names[msg.From], body, msg.ID, "", mediaType); err != nil {
					slog.Error("webhook inbound message failed",
						"client_id", clientID, "wa_message_id", msg.ID, "error", err)
				}
			}

			for _, status := range value.Statuses {
				if err := h.tickets.ApplyDeliveryStatus(status.ID, status.Status); err != nil {
					slog.Error("webhook message status failed",
						"wa_message_id", status.ID, "error", err)
				}
				if err := h.campaigns.ApplyDeliveryStatus(status.ID, status.Status); err != nil {
					slog.Error("webhook campaign status failed",
						"wa_message_id", status.ID, "error", err)
				}
			}
		}
	}
	return c.SendStatus(fiber.StatusOK)
}

// resolveTenant maps the receiving phone number ID back to the tenant
// that configured it.
func (h *WebhookHandler) resolveTenant(phoneNumberID string) (uuid.UUID, error) {
	if phoneNumberID == "" {
		return uuid.Nil, gorm.ErrRecordNotFound
	}
	var setting models.ClientSetting
	err := h.db.Where("key = ? AND value = ?", "whatsapp_phone_number_id", phoneNumberID).
		First(&setting).Error
	if err != nil {
		return uuid.Nil, err
	}
	return setting.ClientID, nil
}
