package services

import (
	"context"
	"sort"
	"strings"

	"github.com/yeremiapane/restaurant-dashboard/models"
	"github.com/yeremiapane/restaurant-dashboard/utils"
	"gorm.io/gorm"
)

// GuestProfile summarises every booking made under one guest identity.
type GuestProfile struct {
	Key           string `json:"key"`
	Name          string `json:"name"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	Bookings      int    `json:"bookings"`
	Visits        int    `json:"visits"`
	Covers        int    `json:"covers"`
	NoShows       int    `json:"noShows"`
	Cancellations int    `json:"cancellations"`
	FirstBooking  string `json:"firstBooking"`
	LastVisit     string `json:"lastVisit,omitempty"`
}

// GuestService derives guest profiles from bookings on read; there is no guest table.
type GuestService struct {
	db *gorm.DB
}

func NewGuestService(db *gorm.DB) *GuestService {
	return &GuestService{db: db}
}

// List returns profiles ordered by most recent visit, optionally filtered by a substring of
// name, phone or email.
func (s *GuestService) List(ctx context.Context, tenantID, search string) ([]GuestProfile, error) {
	query := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if search = strings.ToLower(strings.TrimSpace(search)); search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(guest_name) LIKE ? OR guest_phone LIKE ? OR LOWER(guest_email) LIKE ?", like, like, like)
	}

	var bookings []models.Booking
	if err := query.Order("start_at ASC").Find(&bookings).Error; err != nil {
		return nil, utils.DatabaseError(err)
	}

	profiles := make(map[string]*GuestProfile)
	order := make([]string, 0)
	for i := range bookings {
		b := &bookings[i]
		key := b.GuestKey()
		p, ok := profiles[key]
		if !ok {
			p = &GuestProfile{Key: key, FirstBooking: formatTimestamp(b.StartAt)}
			profiles[key] = p
			order = append(order, key)
		}

		// bookings are ascending, so the latest non-empty contact details win
		p.Name = b.GuestName
		if b.GuestPhone != "" {
			p.Phone = b.GuestPhone
		}
		if b.GuestEmail != "" {
			p.Email = b.GuestEmail
		}

		p.Bookings++
		switch b.Status {
		case models.BookingStatusCancelled:
			p.Cancellations++
		case models.BookingStatusNoShow:
			p.NoShows++
		case models.BookingStatusSeated, models.BookingStatusCompleted:
			p.Visits++
			p.Covers += b.PartySize
			p.LastVisit = formatTimestamp(b.StartAt)
		}
	}

	result := make([]GuestProfile, 0, len(order))
	for _, key := range order {
		result = append(result, *profiles[key])
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].LastVisit != result[j].LastVisit {
			return result[i].LastVisit > result[j].LastVisit
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}
