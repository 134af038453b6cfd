package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-dashboard/models"
	"github.com/yeremiapane/restaurant-dashboard/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLSTATE raised by the bookings_no_overlap exclusion constraint.
const exclusionViolation = "23P01"

const (
	maxGuestNameLength       = 150
	maxGuestPhoneLength      = 40
	maxGuestEmailLength      = 255
	maxSpecialRequestsLength = 1000
	maxIdempotencyKeyLength  = 255
)

var validate = validator.New()

var errIdempotentRace = errors.New("idempotency key inserted concurrently")

type ReservationOptions struct {
	WindowPadding          time.Duration
	DefaultDurationMinutes int
	MinPartySize           int
	MaxPartySize           int
}

func DefaultReservationOptions() ReservationOptions {
	return ReservationOptions{
		WindowPadding:          4 * time.Hour,
		DefaultDurationMinutes: 90,
		MinPartySize:           1,
		MaxPartySize:           20,
	}
}

// CreateReservationInput is the create-reservation request after transport decoding.
// Start and End are ISO-8601 strings; a value without offset is read in the tenant's zone.
type CreateReservationInput struct {
	TableID         string `json:"tableId"`
	Start           string `json:"start"`
	End             string `json:"end"`
	PartySize       int    `json:"partySize"`
	GuestName       string `json:"guestName"`
	GuestPhone      string `json:"guestPhone"`
	GuestEmail      string `json:"guestEmail"`
	SpecialRequests string `json:"specialRequests"`
	Channel         string `json:"channel"`
	IdempotencyKey  string `json:"-"`
}

// Reservation is the normalized booking shape returned to clients.
type Reservation struct {
	ID              string `json:"id"`
	TableID         string `json:"tableId"`
	TableName       string `json:"tableName,omitempty"`
	GuestName       string `json:"guestName"`
	GuestPhone      string `json:"guestPhone,omitempty"`
	GuestEmail      string `json:"guestEmail,omitempty"`
	PartySize       int    `json:"partySize"`
	Start           string `json:"start"`
	End             string `json:"end"`
	DurationMinutes int    `json:"durationMinutes"`
	Status          string `json:"status"`
	Channel         string `json:"channel"`
	SpecialRequests string `json:"specialRequests,omitempty"`
	CreatedAt       string `json:"createdAt"`
}

func NewReservation(b *models.Booking) *Reservation {
	return &Reservation{
		ID:              b.ID,
		TableID:         b.TableID,
		TableName:       b.Table.Name,
		GuestName:       b.GuestName,
		GuestPhone:      b.GuestPhone,
		GuestEmail:      b.GuestEmail,
		PartySize:       b.PartySize,
		Start:           formatTimestamp(b.StartAt),
		End:             formatTimestamp(b.EndAt),
		DurationMinutes: b.DurationMinutes,
		Status:          b.Status,
		Channel:         b.Channel,
		SpecialRequests: b.SpecialRequests,
		CreatedAt:       formatTimestamp(b.CreatedAt),
	}
}

type ListFilters struct {
	Statuses []string `json:"status"`
	TableID  string   `json:"tableId"`
	Channel  string   `json:"channel"`
	Search   string   `json:"search"`
}

// ReservationService owns booking writes. Every create goes through the conflict guard.
type ReservationService struct {
	db        *gorm.DB
	locker    TableLocker
	opts      ReservationOptions
	observers []BookingObserver
	now       func() time.Time
}

func NewReservationService(db *gorm.DB, locker TableLocker, opts ReservationOptions) *ReservationService {
	if locker == nil {
		locker = NewLocalLocker(5 * time.Second)
	}
	return &ReservationService{
		db:     db,
		locker: locker,
		opts:   opts,
		now:    time.Now,
	}
}

// SetClock replaces the time source used for the past-start check.
func (s *ReservationService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *ReservationService) AddObserver(o BookingObserver) {
	s.observers = append(s.observers, o)
}

// Create validates and inserts a booking. The boolean result is true when an earlier booking
// with the same idempotency key was returned instead of creating a new one.
func (s *ReservationService) Create(ctx context.Context, tenantID string, in CreateReservationInput) (*Reservation, bool, error) {
	in = normalizeInput(in)
	if err := checkRequired(in); err != nil {
		return nil, false, err
	}

	existing, err := s.findByIdempotencyKey(ctx, tenantID, in.IdempotencyKey)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return NewReservation(existing), true, nil
	}

	tenant, err := loadTenant(ctx, s.db, tenantID)
	if err != nil {
		return nil, false, err
	}

	booking, err := s.buildBooking(tenant, in)
	if err != nil {
		return nil, false, err
	}

	table, err := s.findActiveTable(ctx, tenantID, in.TableID)
	if err != nil {
		return nil, false, err
	}

	unlock, err := s.locker.Lock(ctx, "table:"+table.ID)
	if err != nil {
		if errors.Is(err, ErrLockTimeout) {
			return nil, false, utils.NewError(utils.CodeReservationConflict, "table is being booked by another request, please retry")
		}
		return nil, false, utils.InternalError(err)
	}
	defer unlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.RestaurantTable
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND tenant_id = ?", table.ID, tenantID).
			First(&locked).Error; err != nil {
			return err
		}

		// a retry that queued on the lock behind the original request
		var count int64
		if err := tx.Model(&models.Booking{}).
			Where("tenant_id = ? AND idempotency_key = ?", tenantID, in.IdempotencyKey).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return gorm.ErrDuplicatedKey
		}

		conflict, err := s.findConflict(tx, booking)
		if err != nil {
			return err
		}
		if conflict != nil {
			utils.InfoLogger.WithFields(logrus.Fields{
				"tenant_id":   tenantID,
				"table_id":    table.ID,
				"conflict_id": conflict.ID,
			}).Info("reservation rejected: table already booked")
			return utils.Errorf(utils.CodeReservationConflict,
				"table %s is already booked from %s to %s",
				table.Name, formatTimestamp(conflict.StartAt), formatTimestamp(conflict.EndAt))
		}

		return tx.Create(booking).Error
	})

	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrDuplicatedKey):
		// a concurrent retry with the same key won the insert
		winner, findErr := s.findByIdempotencyKey(ctx, tenantID, in.IdempotencyKey)
		if findErr != nil {
			return nil, false, findErr
		}
		if winner == nil {
			return nil, false, utils.DatabaseError(errIdempotentRace)
		}
		return NewReservation(winner), true, nil
	case isExclusionViolation(err):
		return nil, false, utils.NewError(utils.CodeReservationConflict, "table is already booked for the requested time")
	default:
		var appErr *utils.AppError
		if errors.As(err, &appErr) {
			return nil, false, appErr
		}
		return nil, false, utils.DatabaseError(err)
	}

	booking.Table = *table
	utils.InfoLogger.WithFields(logrus.Fields{
		"tenant_id":  tenantID,
		"booking_id": booking.ID,
		"table_id":   booking.TableID,
		"start":      formatTimestamp(booking.StartAt),
		"channel":    booking.Channel,
	}).Info("reservation created")

	s.notify(ctx, BookingEvent{Type: BookingEventCreated, Tenant: tenant, Booking: booking})
	return NewReservation(booking), false, nil
}

// List returns bookings starting within the tenant-local day.
func (s *ReservationService) List(ctx context.Context, tenantID, date string, filters ListFilters) ([]Reservation, error) {
	if strings.TrimSpace(date) == "" {
		return nil, utils.NewError(utils.CodeMissingRequiredField, "date is required")
	}
	tenant, err := loadTenant(ctx, s.db, tenantID)
	if err != nil {
		return nil, err
	}
	from, to, err := tenant.DayBounds(date)
	if err != nil {
		return nil, utils.NewError(utils.CodeValidation, "date must be formatted as YYYY-MM-DD")
	}

	query := s.db.WithContext(ctx).
		Preload("Table").
		Where("tenant_id = ? AND start_at >= ? AND start_at < ?", tenantID, from, to)

	if len(filters.Statuses) > 0 {
		for _, status := range filters.Statuses {
			if !models.IsBookingStatus(status) {
				return nil, utils.Errorf(utils.CodeValidation, "unknown status %q", status)
			}
		}
		query = query.Where("status IN ?", filters.Statuses)
	}
	if filters.TableID != "" {
		query = query.Where("table_id = ?", filters.TableID)
	}
	if filters.Channel != "" {
		query = query.Where("channel = ?", filters.Channel)
	}
	if search := strings.ToLower(strings.TrimSpace(filters.Search)); search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(guest_name) LIKE ? OR guest_phone LIKE ? OR LOWER(guest_email) LIKE ?", like, like, like)
	}

	var bookings []models.Booking
	if err := query.Order("start_at ASC").Order("created_at ASC").Find(&bookings).Error; err != nil {
		return nil, utils.DatabaseError(err)
	}

	result := make([]Reservation, 0, len(bookings))
	for i := range bookings {
		result = append(result, *NewReservation(&bookings[i]))
	}
	return result, nil
}

func (s *ReservationService) Get(ctx context.Context, tenantID, bookingID string) (*Reservation, error) {
	booking, err := s.getBooking(ctx, s.db, tenantID, bookingID)
	if err != nil {
		return nil, err
	}
	return NewReservation(booking), nil
}

// UpdateStatus moves a booking along its lifecycle. The update is conditional on the status
// read, so a concurrent change surfaces as INVALID_STATUS_TRANSITION instead of being overwritten.
func (s *ReservationService) UpdateStatus(ctx context.Context, tenantID, bookingID, status string) (*Reservation, error) {
	if !models.IsBookingStatus(status) {
		return nil, utils.Errorf(utils.CodeValidation, "unknown status %q", status)
	}

	booking, err := s.getBooking(ctx, s.db, tenantID, bookingID)
	if err != nil {
		return nil, err
	}
	previous := booking.Status
	if !models.CanTransition(previous, status) {
		return nil, utils.Errorf(utils.CodeInvalidStatusTransition, "cannot change booking from %s to %s", previous, status)
	}

	result := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND tenant_id = ? AND status = ?", booking.ID, tenantID, previous).
		Update("status", status)
	if result.Error != nil {
		return nil, utils.DatabaseError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, utils.NewError(utils.CodeInvalidStatusTransition, "booking was changed by another request")
	}
	booking.Status = status

	tenant, err := loadTenant(ctx, s.db, tenantID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, BookingEvent{Type: BookingEventUpdated, Tenant: tenant, Booking: booking, PreviousStatus: previous})
	return NewReservation(booking), nil
}

func (s *ReservationService) notify(ctx context.Context, event BookingEvent) {
	for _, o := range s.observers {
		o.BookingChanged(ctx, event)
	}
}

func (s *ReservationService) buildBooking(tenant *models.Tenant, in CreateReservationInput) (*models.Booking, error) {
	if in.PartySize < s.opts.MinPartySize || in.PartySize > s.opts.MaxPartySize {
		return nil, utils.Errorf(utils.CodeValidation, "partySize must be between %d and %d", s.opts.MinPartySize, s.opts.MaxPartySize)
	}
	for _, f := range []struct {
		name  string
		value string
		limit int
	}{
		{"guestName", in.GuestName, maxGuestNameLength},
		{"guestPhone", in.GuestPhone, maxGuestPhoneLength},
		{"guestEmail", in.GuestEmail, maxGuestEmailLength},
		{"specialRequests", in.SpecialRequests, maxSpecialRequestsLength},
	} {
		if err := checkLength(f.name, f.value, f.limit); err != nil {
			return nil, err
		}
	}
	if in.GuestEmail != "" {
		if err := validate.Var(in.GuestEmail, "email"); err != nil {
			return nil, utils.NewError(utils.CodeValidation, "guestEmail must be a valid email address")
		}
	}
	channel := in.Channel
	if channel == "" {
		channel = models.ChannelDashboard
	}
	if !isChannel(channel) {
		return nil, utils.Errorf(utils.CodeValidation, "unknown channel %q", channel)
	}

	loc := tenant.Location()
	start, err := parseTimestamp(in.Start, loc)
	if err != nil {
		return nil, utils.NewError(utils.CodeValidation, "start must be an ISO-8601 timestamp")
	}

	var end time.Time
	if in.End == "" {
		minutes := tenant.DefaultDurationMinutes
		if minutes <= 0 {
			minutes = s.opts.DefaultDurationMinutes
		}
		end = start.Add(time.Duration(minutes) * time.Minute)
	} else {
		end, err = parseTimestamp(in.End, loc)
		if err != nil {
			return nil, utils.NewError(utils.CodeValidation, "end must be an ISO-8601 timestamp")
		}
	}

	if !end.After(start) {
		return nil, utils.NewError(utils.CodeReservationInvalidTime, "end must be after start")
	}
	if start.Before(s.now().UTC().Truncate(time.Second)) {
		return nil, utils.NewError(utils.CodeReservationPastTime, "reservation start is in the past")
	}

	return &models.Booking{
		TenantID:        tenant.ID,
		TableID:         in.TableID,
		GuestName:       in.GuestName,
		GuestPhone:      in.GuestPhone,
		GuestEmail:      in.GuestEmail,
		PartySize:       in.PartySize,
		StartAt:         start,
		EndAt:           end,
		DurationMinutes: int((end.Sub(start) + time.Minute - 1) / time.Minute),
		Status:          models.BookingStatusConfirmed,
		Channel:         channel,
		SpecialRequests: in.SpecialRequests,
		IdempotencyKey:  in.IdempotencyKey,
	}, nil
}

// findConflict loads the padded candidate window and applies the exact half-open overlap test.
func (s *ReservationService) findConflict(tx *gorm.DB, booking *models.Booking) (*models.Booking, error) {
	windowStart := booking.StartAt.Add(-s.opts.WindowPadding)
	windowEnd := booking.EndAt.Add(s.opts.WindowPadding)

	var candidates []models.Booking
	if err := tx.
		Where("tenant_id = ? AND table_id = ? AND status IN ?", booking.TenantID, booking.TableID, models.ActiveBookingStatuses).
		Where("start_at < ? AND end_at > ?", windowEnd, windowStart).
		Order("start_at ASC").
		Find(&candidates).Error; err != nil {
		return nil, err
	}

	for i := range candidates {
		if candidates[i].Overlaps(booking.StartAt, booking.EndAt) {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

func (s *ReservationService) findByIdempotencyKey(ctx context.Context, tenantID, key string) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.WithContext(ctx).
		Preload("Table").
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.DatabaseError(err)
	}
	return &booking, nil
}

func (s *ReservationService) findActiveTable(ctx context.Context, tenantID, tableID string) (*models.RestaurantTable, error) {
	var table models.RestaurantTable
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ? AND active = ?", tableID, tenantID, true).
		First(&table).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewError(utils.CodeNotFound, "table not found")
	}
	if err != nil {
		return nil, utils.DatabaseError(err)
	}
	return &table, nil
}

func (s *ReservationService) getBooking(ctx context.Context, db *gorm.DB, tenantID, bookingID string) (*models.Booking, error) {
	var booking models.Booking
	err := db.WithContext(ctx).
		Preload("Table").
		Where("id = ? AND tenant_id = ?", bookingID, tenantID).
		First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewError(utils.CodeNotFound, "booking not found")
	}
	if err != nil {
		return nil, utils.DatabaseError(err)
	}
	return &booking, nil
}

func loadTenant(ctx context.Context, db *gorm.DB, tenantID string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := db.WithContext(ctx).Where("id = ?", tenantID).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewError(utils.CodeTenantNotFound, "tenant not found")
	}
	if err != nil {
		return nil, utils.DatabaseError(err)
	}
	return &tenant, nil
}

func normalizeInput(in CreateReservationInput) CreateReservationInput {
	in.TableID = strings.TrimSpace(in.TableID)
	in.Start = strings.TrimSpace(in.Start)
	in.End = strings.TrimSpace(in.End)
	in.GuestName = strings.TrimSpace(in.GuestName)
	in.GuestPhone = strings.TrimSpace(in.GuestPhone)
	in.GuestEmail = strings.ToLower(strings.TrimSpace(in.GuestEmail))
	in.SpecialRequests = strings.TrimSpace(in.SpecialRequests)
	in.Channel = strings.TrimSpace(in.Channel)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	return in
}

func checkRequired(in CreateReservationInput) error {
	switch {
	case in.IdempotencyKey == "":
		return utils.NewError(utils.CodeMissingRequiredField, "x-idempotency-key header is required")
	case in.TableID == "":
		return utils.NewError(utils.CodeMissingRequiredField, "tableId is required")
	case in.Start == "":
		return utils.NewError(utils.CodeMissingRequiredField, "start is required")
	case in.GuestName == "":
		return utils.NewError(utils.CodeMissingRequiredField, "guestName is required")
	}
	return checkLength("x-idempotency-key", in.IdempotencyKey, maxIdempotencyKeyLength)
}

// checkLength counts characters, matching varchar sizing.
func checkLength(field, value string, limit int) error {
	if utf8.RuneCountInString(value) > limit {
		return utils.Errorf(utils.CodeValidation, "%s must be at most %d characters", field, limit)
	}
	return nil
}

func isChannel(channel string) bool {
	switch channel {
	case models.ChannelDashboard, models.ChannelWidget, models.ChannelPhone, models.ChannelWalkIn, models.ChannelAPI:
		return true
	}
	return false
}

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == exclusionViolation
}

// parseTimestamp accepts RFC 3339 and, for values without an offset, local wall time in loc.
// The result is UTC with second precision.
func parseTimestamp(value string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		var localErr error
		for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
			t, localErr = time.ParseInLocation(layout, value, loc)
			if localErr == nil {
				break
			}
		}
		if localErr != nil {
			return time.Time{}, err
		}
	}
	return t.UTC().Truncate(time.Second), nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
