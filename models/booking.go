package models

import "time"

const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusSeated    = "seated"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
	BookingStatusNoShow    = "no_show"
)

const (
	ChannelDashboard = "dashboard"
	ChannelWidget    = "widget"
	ChannelPhone     = "phone"
	ChannelWalkIn    = "walk_in"
	ChannelAPI       = "api"
)

// ActiveBookingStatuses hold their table; only these take part in overlap checks.
var ActiveBookingStatuses = []string{BookingStatusConfirmed, BookingStatusSeated}

var bookingTransitions = map[string][]string{
	BookingStatusConfirmed: {BookingStatusSeated, BookingStatusCancelled, BookingStatusNoShow},
	BookingStatusSeated:    {BookingStatusCompleted},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsBookingStatus(s string) bool {
	switch s {
	case BookingStatusConfirmed, BookingStatusSeated, BookingStatusCompleted, BookingStatusCancelled, BookingStatusNoShow:
		return true
	}
	return false
}

type Booking struct {
	BaseModel
	TenantID        string          `gorm:"type:char(36);not null;index:idx_booking_table_start,priority:1;uniqueIndex:idx_booking_idempotency,priority:1"`
	TableID         string          `gorm:"type:char(36);not null;index:idx_booking_table_start,priority:2"`
	Table           RestaurantTable `gorm:"foreignKey:TableID;references:ID;constraint:OnDelete:RESTRICT"`
	GuestName       string          `gorm:"type:varchar(150);not null"`
	GuestPhone      string          `gorm:"type:varchar(40);index"`
	GuestEmail      string          `gorm:"type:varchar(255);index"`
	PartySize       int             `gorm:"not null"`
	StartAt         time.Time       `gorm:"not null;index:idx_booking_table_start,priority:3"`
	EndAt           time.Time       `gorm:"not null"`
	DurationMinutes int             `gorm:"not null"`
	Status          string          `gorm:"type:varchar(20);not null;default:'confirmed';index"`
	Channel         string          `gorm:"type:varchar(20);not null;default:'dashboard'"`
	SpecialRequests string          `gorm:"type:text"`
	IdempotencyKey  string          `gorm:"type:varchar(255);not null;uniqueIndex:idx_booking_idempotency,priority:2"`
}

func (Booking) TableName() string {
	return "bookings"
}

// Overlaps is the half-open interval test [start, end).
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartAt.Before(end) && b.EndAt.After(start)
}

// GuestKey groups bookings of the same guest: phone, then email, then name.
func (b *Booking) GuestKey() string {
	switch {
	case b.GuestPhone != "":
		return "phone:" + b.GuestPhone
	case b.GuestEmail != "":
		return "email:" + b.GuestEmail
	default:
		return "name:" + b.GuestName
	}
}
