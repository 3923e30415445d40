package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/wappdesk/backend/internal/dto"
	"github.com/wappdesk/backend/internal/models"
	"github.com/wappdesk/backend/internal/tenant"
	"gorm.io/gorm"
)

// Default values returned for keys a tenant has not overridden.
var settingDefaults = map[string]string{
	"ticket_auto_close_days":   "7",
	"campaign_daily_limit":     "1000",
	"greeting_message":         "",
	"business_hours":           "09:00-18:00",
	"whatsapp_phone_number_id": "",
	"default_language":         "es",
}

// SettingsHandler manages per-tenant key/value configuration.
type SettingsHandler struct {
	db *gorm.DB
}

func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// GetSettings returns the tenant's settings merged over platform defaults.
func (h *SettingsHandler) GetSettings(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)

	var settings []models.ClientSetting
	if err := h.db.Scopes(tenant.ForTenant(clientID)).Find(&settings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to fetch settings",
		})
	}

	result := make(map[string]string, len(settingDefaults))
	for k, v := range settingDefaults {
		result[k] = v
	}
	for _, s := range settings {
		result[s.Key] = s.Value
	}

	return c.JSON(result)
}

// SetSetting upserts one settings key for the tenant.
func (h *SettingsHandler) SetSetting(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	key := c.Params("key", "")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Key parameter is required",
		})
	}

	var payload struct {
		Value string `json:"value"`
	}
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	userID, _ := tenant.GetUserID(c)

	var setting models.ClientSetting
	err := h.db.Scopes(tenant.ForTenant(clientID)).Where("key = ?", key).First(&setting).Error
	if err == gorm.ErrRecordNotFound {
		setting = models.ClientSetting{
			ID:        uuid.New(),
			ClientID:  clientID,
			Key:       key,
			Value:     payload.Value,
			UpdatedBy: &userID,
		}
		if err := h.db.Create(&setting).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Failed to create setting",
			})
		}
	} else if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to query setting",
		})
	} else {
		setting.Value = payload.Value
		setting.UpdatedBy = &userID
		if err := h.db.Save(&setting).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Failed to update setting",
			})
		}
	}

	return c.JSON(fiber.Map{
		"key":   setting.Key,
		"value": setting.Value,
	})
}

// DeleteSetting removes a tenant override, reverting the key to its default.
func (h *SettingsHandler) DeleteSetting(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	key := c.Params("key", "")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Key parameter is required",
		})
	}

	result := h.db.Scopes(tenant.ForTenant(clientID)).Where("key = ?", key).Delete(&models.ClientSetting{})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to delete setting",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Setting not found",
		})
	}

	return c.JSON(fiber.Map{"message": "Setting deleted"})
}
