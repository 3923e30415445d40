package campaigns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wappdesk/backend/internal/config"
)

// Sender delivers one message. Satisfied by the WhatsApp Cloud API client;
// tests substitute a fake.
type Sender interface {
	SendTemplate(phoneNumberID, to, templateName, languageCode string, params []string) (string, error)
	SendText(phoneNumberID, to, body string) (string, error)
}

// PhoneNumberResolver maps a tenant to its sending phone number ID,
// normally from the tenant's settings.
type PhoneNumberResolver interface {
	PhoneNumberID(clientID uuid.UUID) (string, error)
}

// Worker is a pool of goroutines that claim queued campaigns and send to
// their recipients. Sends are throttled and the campaign's cancel flag is
// checked between recipients. Each worker heartbeats its lease so a
// surviving claim is distinguishable from a dead one.
type Worker struct {
	repo      JobRepository
	sender    Sender
	resolver  PhoneNumberResolver
	workers   int
	interval  time.Duration
	lease     time.Duration
	maxTries  int
	pollEvery time.Duration
	chunk     int

	wg sync.WaitGroup
}

func NewWorker(repo JobRepository, sender Sender, resolver PhoneNumberResolver, cfg *config.Config) *Worker {
	return &Worker{
		repo:      repo,
		sender:    sender,
		resolver:  resolver,
		workers:   cfg.CampaignWorkers,
		interval:  cfg.CampaignSendInterval,
		lease:     cfg.CampaignLeaseDuration,
		maxTries:  cfg.CampaignMaxAttempts,
		pollEvery: 5 * time.Second,
		chunk:     100,
	}
}

// Start launches the pool. It returns immediately; Wait blocks until all
// workers have drained after ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		owner := fmt.Sprintf("campaign-worker-%d", i)
		go func() {
			defer w.wg.Done()
			w.run(ctx, owner)
		}()
	}
}

func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, owner string) {
	for {
		if ctx.Err() != nil {
			return
		}
		campaign, err := w.repo.ClaimNext(owner, w.lease)
		if errors.Is(err, ErrNoCampaign) {
			if !sleepWithContext(ctx, w.pollEvery) {
				return
			}
			continue
		}
		if err != nil {
			slog.Error("campaign claim failed", "worker", owner, "error", err)
			if !sleepWithContext(ctx, w.pollEvery) {
				return
			}
			continue
		}

		if err := w.process(ctx, owner, campaign); err != nil {
			slog.Error("campaign run failed",
				"worker", owner, "campaign_id", campaign.ID, "error", err)
			if err := w.repo.Requeue(campaign.ID, w.maxTries, err.Error()); err != nil {
				slog.Error("campaign requeue failed", "campaign_id", campaign.ID, "error", err)
			}
		}
	}
}

func (w *Worker) process(ctx context.Context, owner string, campaign *Campaign) error {
	phoneNumberID, err := w.resolver.PhoneNumberID(campaign.ClientID)
	if err != nil {
		return fmt.Errorf("resolve sender number: %w", err)
	}

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go w.heartbeat(hbCtx, owner, campaign.ID)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		status, err := w.repo.CurrentStatus(campaign.ID)
		if err != nil {
			return err
		}
		if status == StatusCancelled {
			slog.Info("campaign cancelled mid-run", "campaign_id", campaign.ID)
			return nil
		}

		recipients, err := w.repo.PendingRecipients(campaign.ID, w.chunk)
		if err != nil {
			return err
		}
		if len(recipients) == 0 {
			break
		}

		for i := range recipients {
			if err := ctx.Err(); err != nil {
				return err
			}
			w.send(campaign, phoneNumberID, &recipients[i])
			if !sleepWithContext(ctx, w.interval) {
				return ctx.Err()
			}
		}
	}
	return w.repo.Complete(campaign.ID)
}

func (w *Worker) send(campaign *Campaign, phoneNumberID string, rcpt *Recipient) {
	var params []string
	if len(rcpt.Params) > 0 {
		if err := json.Unmarshal(rcpt.Params, &params); err != nil {
			params = nil
		}
	}

	var waMessageID string
	var err error
	if campaign.TemplateName != "" {
		waMessageID, err = w.sender.SendTemplate(
			phoneNumberID, rcpt.Phone, campaign.TemplateName, campaign.LanguageCode, params)
	} else {
		waMessageID, err = w.sender.SendText(phoneNumberID, rcpt.Phone, campaign.Body)
	}
	if err != nil {
		if markErr := w.repo.MarkFailed(rcpt.ID, err.Error()); markErr != nil {
			slog.Error("mark recipient failed", "recipient_id", rcpt.ID, "error", markErr)
		}
		return
	}
	if markErr := w.repo.MarkSent(rcpt.ID, waMessageID); markErr != nil {
		slog.Error("mark recipient sent", "recipient_id", rcpt.ID, "error", markErr)
	}
}

func (w *Worker) heartbeat(ctx context.Context, owner string, campaignID uuid.UUID) {
	ticker := time.NewTicker(w.lease / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.repo.Heartbeat(campaignID, owner, w.lease); err != nil {
				slog.Warn("campaign heartbeat failed", "campaign_id", campaignID, "error", err)
			}
		}
	}
}

// sleepWithContext waits for d or until ctx is done; it reports whether
// the full duration elapsed.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
