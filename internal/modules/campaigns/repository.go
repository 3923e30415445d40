package campaigns

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoCampaign is returned by ClaimNext when no runnable campaign exists.
var ErrNoCampaign = errors.New("no campaign ready to run")

// JobRepository is the persistence surface the worker pool drives.
type JobRepository interface {
	// ClaimNext leases the oldest runnable campaign for owner. Runnable
	// means queued and due, or processing with an expired lease (a
	// previous worker died mid-run).
	ClaimNext(owner string, lease time.Duration) (*Campaign, error)
	// Heartbeat extends the lease while the owner is still working.
	Heartbeat(campaignID uuid.UUID, owner string, lease time.Duration) error
	CurrentStatus(campaignID uuid.UUID) (string, error)
	// PendingRecipients returns up to limit recipients still awaiting a
	// send, in insertion order.
	PendingRecipients(campaignID uuid.UUID, limit int) ([]Recipient, error)
	MarkSent(recipientID uuid.UUID, waMessageID string) error
	MarkFailed(recipientID uuid.UUID, reason string) error
	// Complete finalizes the campaign from its recipient counts.
	Complete(campaignID uuid.UUID) error
	// Requeue puts a crashed run back in line; once attempts reach max it
	// fails the campaign instead.
	Requeue(campaignID uuid.UUID, maxAttempts int, reason string) error
}

type gormJobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &gormJobRepository{db: db}
}

func (r *gormJobRepository) ClaimNext(owner string, lease time.Duration) (*Campaign, error) {
	var claimed *Campaign
	now := time.Now()
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var c Campaign
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("(status = ? AND (scheduled_at IS NULL OR scheduled_at <= ?))", StatusQueued, now).
			Or("(status = ? AND lease_expires < ?)", StatusProcessing, now).
			Order("created_at ASC").
			First(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoCampaign
		}
		if err != nil {
			return err
		}
		expires := now.Add(lease)
		if err := tx.Model(&Campaign{}).Where("id = ?", c.ID).Updates(map[string]interface{}{
			"status":        StatusProcessing,
			"lease_owner":   owner,
			"lease_expires": expires,
			"attempts":      gorm.Expr("attempts + 1"),
		}).Error; err != nil {
			return err
		}
		c.Status = StatusProcessing
		c.LeaseOwner = owner
		c.LeaseExpires = &expires
		c.Attempts++
		claimed = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *gormJobRepository) Heartbeat(campaignID uuid.UUID, owner string, lease time.Duration) error {
	expires := time.Now().Add(lease)
	return r.db.Model(&Campaign{}).
		Where("id = ? AND lease_owner = ? AND status = ?", campaignID, owner, StatusProcessing).
		Update("lease_expires", expires).Error
}

func (r *gormJobRepository) CurrentStatus(campaignID uuid.UUID) (string, error) {
	var c Campaign
	if err := r.db.Select("status").First(&c, "id = ?", campaignID).Error; err != nil {
		return "", err
	}
	return c.Status, nil
}

func (r *gormJobRepository) PendingRecipients(campaignID uuid.UUID, limit int) ([]Recipient, error) {
	var recipients []Recipient
	err := r.db.
		Where("campaign_id = ? AND status = ?", campaignID, RecipientPending).
		Order("created_at ASC").Limit(limit).
		Find(&recipients).Error
	return recipients, err
}

func (r *gormJobRepository) MarkSent(recipientID uuid.UUID, waMessageID string) error {
	now := time.Now()
	return r.db.Model(&Recipient{}).Where("id = ?", recipientID).
		Updates(map[string]interface{}{
			"status":        RecipientSent,
			"wa_message_id": waMessageID,
			"sent_at":       now,
			"attempts":      gorm.Expr("attempts + 1"),
		}).Error
}

func (r *gormJobRepository) MarkFailed(recipientID uuid.UUID, reason string) error {
	if len(reason) > 500 {
		reason = reason[:500]
	}
	return r.db.Model(&Recipient{}).Where("id = ?", recipientID).
		Updates(map[string]interface{}{
			"status":     RecipientFailed,
			"last_error": reason,
			"attempts":   gorm.Expr("attempts + 1"),
		}).Error
}

func (r *gormJobRepository) Complete(campaignID uuid.UUID) error {
	var sent, failed int64
	if err := r.db.Model(&Recipient{}).
		Where("campaign_id = ? AND status = ?", campaignID, RecipientSent).
		Count(&sent).Error; err != nil {
		return err
	}
	if err := r.db.Model(&Recipient{}).
		Where("campaign_id = ? AND status = ?", campaignID, RecipientFailed).
		Count(&failed).Error; err != nil {
		return err
	}
	status := StatusCompleted
	if failed > 0 && sent == 0 {
		status = StatusError
	}
	return r.db.Model(&Campaign{}).
		Where("id = ? AND status = ?", campaignID, StatusProcessing).
		Updates(map[string]interface{}{
			"status":        status,
			"sent_count":    sent,
			"failed_count":  failed,
			"lease_owner":   "",
			"lease_expires": nil,
		}).Error
}

func (r *gormJobRepository) Requeue(campaignID uuid.UUID, maxAttempts int, reason string) error {
	var c Campaign
	if err := r.db.First(&c, "id = ?", campaignID).Error; err != nil {
		return err
	}
	if c.Attempts >= maxAttempts {
		return r.db.Model(&Campaign{}).Where("id = ?", campaignID).
			Updates(map[string]interface{}{
				"status":        StatusError,
				"error_summary": reason,
				"lease_owner":   "",
				"lease_expires": nil,
			}).Error
	}
	return r.db.Model(&Campaign{}).
		Where("id = ? AND status = ?", campaignID, StatusProcessing).
		Updates(map[string]interface{}{
			"status":        StatusQueued,
			"lease_owner":   "",
			"lease_expires": nil,
		}).Error
}
