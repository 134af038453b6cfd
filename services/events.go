package services

import (
	"context"

	"github.com/yeremiapane/restaurant-dashboard/models"
)

const (
	BookingEventCreated = "booking_created"
	BookingEventUpdated = "booking_updated"
)

// BookingEvent is emitted after a booking write has committed.
type BookingEvent struct {
	Type           string
	Tenant         *models.Tenant
	Booking        *models.Booking
	PreviousStatus string
}

// LocalDate is the booking's start date in the tenant's zone.
func (e BookingEvent) LocalDate() string {
	return e.Booking.StartAt.In(e.Tenant.Location()).Format("2006-01-02")
}

// BookingObserver reacts to committed booking writes. Implementations must not block and own
// their error handling; the write has already succeeded.
type BookingObserver interface {
	BookingChanged(ctx context.Context, event BookingEvent)
}

// Publisher pushes tenant-scoped change messages to connected dashboards.
type Publisher interface {
	Publish(tenantID, event string, data interface{})
}

// RealtimeObserver forwards booking events to a Publisher.
type RealtimeObserver struct {
	publisher Publisher
}

func NewRealtimeObserver(p Publisher) *RealtimeObserver {
	return &RealtimeObserver{publisher: p}
}

func (o *RealtimeObserver) BookingChanged(_ context.Context, event BookingEvent) {
	o.publisher.Publish(event.Tenant.ID, event.Type, NewReservation(event.Booking))
}
