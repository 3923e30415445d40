package dashboard

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wappdesk/backend/internal/cache"
	"github.com/wappdesk/backend/internal/models"
	"github.com/wappdesk/backend/internal/modules/campaigns"
	"github.com/wappdesk/backend/internal/modules/tickets"
	"github.com/wappdesk/backend/internal/tenant"
)

const cacheTTL = 5 * time.Minute

// DayPoint is one day of KPI counters.
type DayPoint struct {
	Date            string `json:"date"`
	TicketsOpened   int64  `json:"tickets_opened"`
	TicketsResolved int64  `json:"tickets_resolved"`
	MessagesIn      int64  `json:"messages_in"`
	MessagesOut     int64  `json:"messages_out"`
	CampaignSent    int64  `json:"campaign_sent"`
	CampaignFailed  int64  `json:"campaign_failed"`
}

// Overview is the dashboard payload: totals for the range plus a per-day
// series for charting.
type Overview struct {
	From            string     `json:"from"`
	To              string     `json:"to"`
	OpenTickets     int64      `json:"open_tickets"`
	TicketsOpened   int64      `json:"tickets_opened"`
	TicketsResolved int64      `json:"tickets_resolved"`
	MessagesIn      int64      `json:"messages_in"`
	MessagesOut     int64      `json:"messages_out"`
	CampaignSent    int64      `json:"campaign_sent"`
	CampaignFailed  int64      `json:"campaign_failed"`
	NewProspects    int64      `json:"new_prospects"`
	ActiveUsers     int64      `json:"active_users"`
	Series          []DayPoint `json:"series"`
}

type Service struct {
	db    *gorm.DB
	cache *cache.Cache
}

func NewService(db *gorm.DB, c *cache.Cache) *Service {
	return &Service{db: db, cache: c}
}

// Compute builds the overview for a date range. Results are cached per
// tenant and range for a few minutes; the dashboard polls aggressively.
func (s *Service) Compute(ctx context.Context, clientID uuid.UUID, from, to time.Time) (*Overview, error) {
	from, to = NormalizeRange(from, to)
	key := cacheKey(clientID, from, to)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil && cached != nil {
			var ov Overview
			if err := json.Unmarshal(cached, &ov); err == nil {
				return &ov, nil
			}
		}
	}

	ov, err := s.compute(clientID, from, to)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if payload, err := json.Marshal(ov); err == nil {
			if err := s.cache.Set(ctx, key, payload, cacheTTL); err != nil {
				slog.Warn("dashboard cache write failed", "error", err)
			}
		}
	}
	return ov, nil
}

func (s *Service) compute(clientID uuid.UUID, from, to time.Time) (*Overview, error) {
	end := to.AddDate(0, 0, 1) // exclusive upper bound

	ov := &Overview{
		From:   from.Format("2006-01-02"),
		To:     to.Format("2006-01-02"),
		Series: emptySeries(from, to),
	}
	index := make(map[string]*DayPoint, len(ov.Series))
	for i := range ov.Series {
		index[ov.Series[i].Date] = &ov.Series[i]
	}

	if err := s.db.Model(&tickets.Ticket{}).Scopes(tenant.ForTenant(clientID)).
		Where("status IN ?", []string{tickets.StatusOpen, tickets.StatusPending}).
		Count(&ov.OpenTickets).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.User{}).Scopes(tenant.ForTenant(clientID)).
		Where("active = ?", true).Count(&ov.ActiveUsers).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Prospect{}).Scopes(tenant.ForTenant(clientID)).
		Where("created_at >= ? AND created_at < ?", from, end).
		Count(&ov.NewProspects).Error; err != nil {
		return nil, err
	}

	type dayCount struct {
		Day   time.Time
		Total int64
	}
	collect := func(query *gorm.DB, assign func(p *DayPoint, n int64), total *int64) error {
		var counts []dayCount
		if err := query.Scan(&counts).Error; err != nil {
			return err
		}
		for _, dc := range counts {
			*total += dc.Total
			if p, ok := index[dc.Day.Format("2006-01-02")]; ok {
				assign(p, dc.Total)
			}
		}
		return nil
	}

	err := collect(
		s.db.Model(&tickets.Ticket{}).Scopes(tenant.ForTenant(clientID)).
			Select("date_trunc('day', created_at) AS day, count(*) AS total").
			Where("created_at >= ? AND created_at < ?", from, end).
			Group("day"),
		func(p *DayPoint, n int64) { p.TicketsOpened = n },
		&ov.TicketsOpened)
	if err != nil {
		return nil, err
	}

	err = collect(
		s.db.Model(&tickets.Ticket{}).Scopes(tenant.ForTenant(clientID)).
			Select("date_trunc('day', updated_at) AS day, count(*) AS total").
			Where("status IN ? AND updated_at >= ? AND updated_at < ?",
				[]string{tickets.StatusResolved, tickets.StatusClosed}, from, end).
			Group("day"),
		func(p *DayPoint, n int64) { p.TicketsResolved = n },
		&ov.TicketsResolved)
	if err != nil {
		return nil, err
	}

	err = collect(
		s.db.Model(&tickets.Message{}).Scopes(tenant.ForTenant(clientID)).
			Select("date_trunc('day', created_at) AS day, count(*) AS total").
			Where("direction = ? AND created_at >= ? AND created_at < ?", tickets.DirectionIn, from, end).
			Group("day"),
		func(p *DayPoint, n int64) { p.MessagesIn = n },
		&ov.MessagesIn)
	if err != nil {
		return nil, err
	}

	err = collect(
		s.db.Model(&tickets.Message{}).Scopes(tenant.ForTenant(clientID)).
			Select("date_trunc('day', created_at) AS day, count(*) AS total").
			Where("direction = ? AND created_at >= ? AND created_at < ?", tickets.DirectionOut, from, end).
			Group("day"),
		func(p *DayPoint, n int64) { p.MessagesOut = n },
		&ov.MessagesOut)
	if err != nil {
		return nil, err
	}

	campaignJoin := s.db.Model(&campaigns.Recipient{}).
		Joins("JOIN campaigns ON campaigns.id = campaign_recipients.campaign_id").
		Where("campaigns.client_id = ?", clientID)

	err = collect(
		campaignJoin.Session(&gorm.Session{}).
			Select("date_trunc('day', campaign_recipients.sent_at) AS day, count(*) AS total").
			Where("campaign_recipients.status = ? AND campaign_recipients.sent_at >= ? AND campaign_recipients.sent_at < ?",
				campaigns.RecipientSent, from, end).
			Group("day"),
		func(p *DayPoint, n int64) { p.CampaignSent = n },
		&ov.CampaignSent)
	if err != nil {
		return nil, err
	}

	err = collect(
		campaignJoin.Session(&gorm.Session{}).
			Select("date_trunc('day', campaign_recipients.updated_at) AS day, count(*) AS total").
			Where("campaign_recipients.status = ? AND campaign_recipients.updated_at >= ? AND campaign_recipients.updated_at < ?",
				campaigns.RecipientFailed, from, end).
			Group("day"),
		func(p *DayPoint, n int64) { p.CampaignFailed = n },
		&ov.CampaignFailed)
	if err != nil {
		return nil, err
	}

	return ov, nil
}

// ExportCSV renders the daily series as a spreadsheet download.
func (s *Service) ExportCSV(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]byte, string, error) {
	ov, err := s.Compute(ctx, clientID, from, to)
	if err != nil {
		return nil, "", err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"Date", "Tickets Opened", "Tickets Resolved", "Messages In", "Messages Out", "Campaign Sent", "Campaign Failed"})
	for _, p := range ov.Series {
		w.Write([]string{
			p.Date,
			strconv.FormatInt(p.TicketsOpened, 10),
			strconv.FormatInt(p.TicketsResolved, 10),
			strconv.FormatInt(p.MessagesIn, 10),
			strconv.FormatInt(p.MessagesOut, 10),
			strconv.FormatInt(p.CampaignSent, 10),
			strconv.FormatInt(p.CampaignFailed, 10),
		})
	}
	w.Flush()
	name := fmt.Sprintf("dashboard_%s_%s.csv", ov.From, ov.To)
	return buf.Bytes(), name, nil
}

// NormalizeRange truncates both ends to whole days and repairs inverted or
// oversized ranges. An empty range defaults to the last 30 days.
func NormalizeRange(from, to time.Time) (time.Time, time.Time) {
	truncate := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	now := truncate(time.Now().UTC())
	if to.IsZero() {
		to = now
	} else {
		to = truncate(to)
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -29)
	} else {
		from = truncate(from)
	}
	if from.After(to) {
		from, to = to, from
	}
	// Cap at one year to keep the series bounded.
	if to.Sub(from) > 365*24*time.Hour {
		from = to.AddDate(-1, 0, 0)
	}
	return from, to
}

func emptySeries(from, to time.Time) []DayPoint {
	var series []DayPoint
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		series = append(series, DayPoint{Date: d.Format("2006-01-02")})
	}
	return series
}

func cacheKey(clientID uuid.UUID, from, to time.Time) string {
	return fmt.Sprintf("dashboard:%s:%s:%s",
		clientID, from.Format("2006-01-02"), to.Format("2006-01-02"))
}
