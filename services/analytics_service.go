package services

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/yeremiapane/restaurant-dashboard/models"
	"github.com/yeremiapane/restaurant-dashboard/utils"
	"gorm.io/gorm"
)

const maxAnalyticsDays = 366

type AnalyticsDay struct {
	Date          string `json:"date"`
	Bookings      int    `json:"bookings"`
	Covers        int    `json:"covers"`
	Cancellations int    `json:"cancellations"`
	NoShows       int    `json:"noShows"`
}

type AnalyticsTotals struct {
	Bookings         int     `json:"bookings"`
	Covers           int     `json:"covers"`
	Cancellations    int     `json:"cancellations"`
	NoShows          int     `json:"noShows"`
	AveragePartySize float64 `json:"averagePartySize"`
	CancellationRate float64 `json:"cancellationRate"`
	NoShowRate       float64 `json:"noShowRate"`
}

type ChannelCount struct {
	Channel  string `json:"channel"`
	Bookings int    `json:"bookings"`
}

type HourCount struct {
	Hour     int `json:"hour"`
	Bookings int `json:"bookings"`
}

type AnalyticsReport struct {
	From     string          `json:"from"`
	To       string          `json:"to"`
	Timezone string          `json:"timezone"`
	Days     []AnalyticsDay  `json:"days"`
	Totals   AnalyticsTotals `json:"totals"`
	Channels []ChannelCount  `json:"channels"`
	Hours    []HourCount     `json:"hours"`
}

// AnalyticsService aggregates bookings over a date range. Grouping is done in Go on the
// tenant's wall clock so results do not depend on the SQL dialect.
type AnalyticsService struct {
	db *gorm.DB
}

func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: db}
}

// Range builds the report for the inclusive local date range [from, to].
func (s *AnalyticsService) Range(ctx context.Context, tenantID, from, to string) (*AnalyticsReport, error) {
	if from == "" || to == "" {
		return nil, utils.NewError(utils.CodeMissingRequiredField, "from and to are required")
	}
	tenant, err := loadTenant(ctx, s.db, tenantID)
	if err != nil {
		return nil, err
	}
	rangeStart, _, err := tenant.DayBounds(from)
	if err != nil {
		return nil, utils.NewError(utils.CodeValidation, "from must be formatted as YYYY-MM-DD")
	}
	_, rangeEnd, err := tenant.DayBounds(to)
	if err != nil {
		return nil, utils.NewError(utils.CodeValidation, "to must be formatted as YYYY-MM-DD")
	}
	if !rangeEnd.After(rangeStart) {
		return nil, utils.NewError(utils.CodeValidation, "to must not be before from")
	}

	fromDay, _ := time.Parse("2006-01-02", from)
	toDay, _ := time.Parse("2006-01-02", to)
	if toDay.Sub(fromDay) >= maxAnalyticsDays*24*time.Hour {
		return nil, utils.Errorf(utils.CodeValidation, "range must not exceed %d days", maxAnalyticsDays)
	}

	var bookings []models.Booking
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND start_at >= ? AND start_at < ?", tenantID, rangeStart, rangeEnd).
		Order("start_at ASC").
		Find(&bookings).Error; err != nil {
		return nil, utils.DatabaseError(err)
	}

	report := &AnalyticsReport{
		From:     from,
		To:       to,
		Timezone: tenant.Location().String(),
	}

	days := make(map[string]*AnalyticsDay)
	for d := fromDay; !d.After(toDay); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		report.Days = append(report.Days, AnalyticsDay{Date: key})
	}
	for i := range report.Days {
		days[report.Days[i].Date] = &report.Days[i]
	}

	loc := tenant.Location()
	channels := make(map[string]int)
	hours := make([]int, 24)
	partyTotal := 0
	partyCount := 0

	for i := range bookings {
		b := &bookings[i]
		local := b.StartAt.In(loc)
		day, ok := days[local.Format("2006-01-02")]
		if !ok {
			continue
		}

		day.Bookings++
		report.Totals.Bookings++
		channels[b.Channel]++
		hours[local.Hour()]++

		switch b.Status {
		case models.BookingStatusCancelled:
			day.Cancellations++
			report.Totals.Cancellations++
		case models.BookingStatusNoShow:
			day.NoShows++
			report.Totals.NoShows++
		default:
			day.Covers += b.PartySize
			report.Totals.Covers += b.PartySize
			partyTotal += b.PartySize
			partyCount++
		}
	}

	if partyCount > 0 {
		report.Totals.AveragePartySize = round1(float64(partyTotal) / float64(partyCount))
	}
	if report.Totals.Bookings > 0 {
		report.Totals.CancellationRate = percent(report.Totals.Cancellations, report.Totals.Bookings)
		report.Totals.NoShowRate = percent(report.Totals.NoShows, report.Totals.Bookings)
	}

	for channel, n := range channels {
		report.Channels = append(report.Channels, ChannelCount{Channel: channel, Bookings: n})
	}
	sort.Slice(report.Channels, func(i, j int) bool {
		if report.Channels[i].Bookings != report.Channels[j].Bookings {
			return report.Channels[i].Bookings > report.Channels[j].Bookings
		}
		return report.Channels[i].Channel < report.Channels[j].Channel
	})

	for hour, n := range hours {
		if n > 0 {
			report.Hours = append(report.Hours, HourCount{Hour: hour, Bookings: n})
		}
	}
	return report, nil
}

// DaySheet lists the bookings of one local day with their tables, for the printable sheet.
func (s *AnalyticsService) DaySheet(ctx context.Context, tenantID, date string) (*models.Tenant, []models.Booking, error) {
	if date == "" {
		return nil, nil, utils.NewError(utils.CodeMissingRequiredField, "date is required")
	}
	tenant, err := loadTenant(ctx, s.db, tenantID)
	if err != nil {
		return nil, nil, err
	}
	from, to, err := tenant.DayBounds(date)
	if err != nil {
		return nil, nil, utils.NewError(utils.CodeValidation, "date must be formatted as YYYY-MM-DD")
	}

	var bookings []models.Booking
	if err := s.db.WithContext(ctx).
		Preload("Table").
		Where("tenant_id = ? AND start_at >= ? AND start_at < ? AND status <> ?", tenantID, from, to, models.BookingStatusCancelled).
		Order("start_at ASC").
		Find(&bookings).Error; err != nil {
		return nil, nil, utils.DatabaseError(err)
	}
	return tenant, bookings, nil
}

func percent(part, whole int) float64 {
	return math.Round(float64(part)/float64(whole)*1000) / 10
}
