package tickets

import (
	"log/slog"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/wappdesk/backend/internal/models"
)

const settingAutoCloseDays = "ticket_auto_close_days"

// StartAutoClose runs a daily goroutine that closes resolved tickets for
// every tenant that has the ticket_auto_close_days setting. Tenants
// without the setting (or with a non-positive value) are left alone.
func StartAutoClose(svc *Service, db *gorm.DB, done chan struct{}) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sweepIdleTickets(svc, db)
			case <-done:
				return
			}
		}
	}()
}

func sweepIdleTickets(svc *Service, db *gorm.DB) {
	var settings []models.ClientSetting
	if err := db.Where("key = ?", settingAutoCloseDays).Find(&settings).Error; err != nil {
		slog.Error("ticket auto-close sweep failed", "error", err)
		return
	}
	for _, setting := range settings {
		days, err := strconv.Atoi(setting.Value)
		if err != nil || days <= 0 {
			continue
		}
		closed, err := svc.CloseIdleTickets(setting.ClientID, time.Duration(days)*24*time.Hour)
		if err != nil {
			slog.Error("ticket auto-close failed", "client_id", setting.ClientID, "error", err)
			continue
		}
		if closed > 0 {
			slog.Info("tickets auto-closed", "client_id", setting.ClientID, "count", closed)
		}
	}
}
