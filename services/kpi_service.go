package services

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-dashboard/models"
	"github.com/yeremiapane/restaurant-dashboard/utils"
	"gorm.io/gorm"
)

const (
	KPIBookings      = "bookings"
	KPICovers        = "covers"
	KPIOccupancy     = "occupancy"
	KPINoShowRisk    = "no_show_risk"
	KPICancellations = "cancellations"
	KPINoShows       = "no_shows"

	EventKPIsInvalidated = "kpis_invalidated"
)

type KpiCard struct {
	ID       string  `json:"id"`
	Label    string  `json:"label"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit"`
	Previous float64 `json:"previous"`
	Delta    float64 `json:"delta"`
}

type KPIMeta struct {
	Date        string `json:"date"`
	Timezone    string `json:"timezone"`
	GeneratedAt string `json:"generatedAt"`
	Cached      bool   `json:"cached"`
}

type KPIResult struct {
	Cards []KpiCard `json:"cards"`
	Meta  KPIMeta   `json:"meta"`
}

// dayStats holds the raw figures for one tenant-local day.
type dayStats struct {
	bookings      int
	covers        int
	occupancy     float64
	noShowRisk    int
	cancellations int
	noShows       int
}

type KPIService struct {
	db        *gorm.DB
	cache     KPICache
	publisher Publisher
	now       func() time.Time
}

// NewKPIService builds the service; cache and publisher may be nil.
func NewKPIService(db *gorm.DB, cache KPICache, publisher Publisher) *KPIService {
	return &KPIService{
		db:        db,
		cache:     cache,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *KPIService) SetClock(now func() time.Time) {
	s.now = now
}

// Compute returns the KPI cards for date (tenant-local, today when empty), from cache when possible.
func (s *KPIService) Compute(ctx context.Context, tenantID, date string) (*KPIResult, error) {
	tenant, err := loadTenant(ctx, s.db, tenantID)
	if err != nil {
		return nil, err
	}
	if date == "" {
		date = s.now().In(tenant.Location()).Format("2006-01-02")
	}
	if _, _, err := tenant.DayBounds(date); err != nil {
		return nil, utils.NewError(utils.CodeValidation, "date must be formatted as YYYY-MM-DD")
	}

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, tenantID, date)
		if err != nil {
			utils.ErrorLogger.WithError(err).WithField("tenant_id", tenantID).Warn("kpi cache read failed")
		}
		if ok {
			cached.Meta.Cached = true
			return cached, nil
		}
	}

	return s.compute(ctx, tenant, date)
}

// Refresh recomputes and stores the KPIs regardless of the cached value.
func (s *KPIService) Refresh(ctx context.Context, tenantID, date string) (*KPIResult, error) {
	tenant, err := loadTenant(ctx, s.db, tenantID)
	if err != nil {
		return nil, err
	}
	if date == "" {
		date = s.now().In(tenant.Location()).Format("2006-01-02")
	}
	return s.compute(ctx, tenant, date)
}

func (s *KPIService) compute(ctx context.Context, tenant *models.Tenant, date string) (*KPIResult, error) {
	current, err := s.dayStats(ctx, tenant, date)
	if err != nil {
		return nil, err
	}

	day, _ := time.Parse("2006-01-02", date)
	previousDate := day.AddDate(0, 0, -7).Format("2006-01-02")
	previous, err := s.dayStats(ctx, tenant, previousDate)
	if err != nil {
		return nil, err
	}

	result := &KPIResult{
		Cards: []KpiCard{
			newCard(KPIBookings, "Bookings", "count", float64(current.bookings), float64(previous.bookings)),
			newCard(KPICovers, "Covers", "guests", float64(current.covers), float64(previous.covers)),
			newCard(KPIOccupancy, "Occupancy", "percent", current.occupancy, previous.occupancy),
			newCard(KPINoShowRisk, "No-show risk", "count", float64(current.noShowRisk), float64(previous.noShowRisk)),
			newCard(KPICancellations, "Cancellations", "count", float64(current.cancellations), float64(previous.cancellations)),
			newCard(KPINoShows, "No-shows", "count", float64(current.noShows), float64(previous.noShows)),
		},
		Meta: KPIMeta{
			Date:        date,
			Timezone:    tenant.Location().String(),
			GeneratedAt: formatTimestamp(s.now()),
		},
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, tenant.ID, date, result); err != nil {
			utils.ErrorLogger.WithError(err).WithField("tenant_id", tenant.ID).Warn("kpi cache write failed")
		}
	}
	return result, nil
}

func (s *KPIService) dayStats(ctx context.Context, tenant *models.Tenant, date string) (*dayStats, error) {
	dayStart, dayEnd, err := tenant.DayBounds(date)
	if err != nil {
		return nil, utils.NewError(utils.CodeValidation, "date must be formatted as YYYY-MM-DD")
	}
	open, closeAt, err := tenant.ServiceWindow(date)
	if err != nil {
		return nil, utils.DatabaseError(err)
	}

	rangeEnd := dayEnd
	if closeAt.After(rangeEnd) {
		rangeEnd = closeAt
	}
	rangeStart := dayStart
	if open.Before(rangeStart) {
		rangeStart = open
	}

	var bookings []models.Booking
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND start_at < ? AND end_at > ?", tenant.ID, rangeEnd, rangeStart).
		Find(&bookings).Error; err != nil {
		return nil, utils.DatabaseError(err)
	}

	var activeTables int64
	if err := s.db.WithContext(ctx).Model(&models.RestaurantTable{}).
		Where("tenant_id = ? AND active = ?", tenant.ID, true).
		Count(&activeTables).Error; err != nil {
		return nil, utils.DatabaseError(err)
	}

	risky, err := s.priorNoShowGuests(ctx, tenant.ID, dayStart)
	if err != nil {
		return nil, err
	}

	stats := &dayStats{}
	var bookedMinutes float64
	for i := range bookings {
		b := &bookings[i]

		if b.Status != models.BookingStatusCancelled && b.Status != models.BookingStatusNoShow {
			bookedMinutes += overlapMinutes(b.StartAt, b.EndAt, open, closeAt)
		}

		if b.StartAt.Before(dayStart) || !b.StartAt.Before(dayEnd) {
			continue
		}
		switch b.Status {
		case models.BookingStatusCancelled:
			stats.cancellations++
			continue
		case models.BookingStatusNoShow:
			stats.noShows++
		case models.BookingStatusConfirmed:
			if risky[b.GuestKey()] || (b.GuestPhone == "" && b.GuestEmail == "") {
				stats.noShowRisk++
			}
			stats.covers += b.PartySize
		default:
			stats.covers += b.PartySize
		}
		stats.bookings++
	}

	capacity := float64(activeTables) * closeAt.Sub(open).Minutes()
	if capacity > 0 {
		stats.occupancy = round1(math.Min(bookedMinutes/capacity*100, 100))
	}
	return stats, nil
}

// priorNoShowGuests returns the guest keys with at least one no-show before the given instant.
func (s *KPIService) priorNoShowGuests(ctx context.Context, tenantID string, before time.Time) (map[string]bool, error) {
	var rows []models.Booking
	if err := s.db.WithContext(ctx).
		Select("guest_name", "guest_phone", "guest_email").
		Where("tenant_id = ? AND status = ? AND start_at < ?", tenantID, models.BookingStatusNoShow, before).
		Find(&rows).Error; err != nil {
		return nil, utils.DatabaseError(err)
	}
	keys := make(map[string]bool, len(rows))
	for i := range rows {
		keys[rows[i].GuestKey()] = true
	}
	return keys, nil
}

// BookingChanged drops the cached KPIs of the booking's day and of the day a week later,
// which uses it as its comparison day.
func (s *KPIService) BookingChanged(ctx context.Context, event BookingEvent) {
	date := event.LocalDate()
	if s.cache != nil {
		day, _ := time.Parse("2006-01-02", date)
		for _, d := range []string{date, day.AddDate(0, 0, 7).Format("2006-01-02")} {
			if err := s.cache.Invalidate(ctx, event.Tenant.ID, d); err != nil {
				utils.ErrorLogger.WithFields(logrus.Fields{
					"tenant_id": event.Tenant.ID,
					"date":      d,
				}).WithError(err).Warn("kpi cache invalidation failed")
			}
		}
	}
	if s.publisher != nil {
		s.publisher.Publish(event.Tenant.ID, EventKPIsInvalidated, map[string]string{"date": date})
	}
}

func newCard(id, label, unit string, value, previous float64) KpiCard {
	return KpiCard{
		ID:       id,
		Label:    label,
		Value:    value,
		Unit:     unit,
		Previous: previous,
		Delta:    round1(value - previous),
	}
}

func overlapMinutes(start, end, windowStart, windowEnd time.Time) float64 {
	if start.Before(windowStart) {
		start = windowStart
	}
	if end.After(windowEnd) {
		end = windowEnd
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start).Minutes()
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
