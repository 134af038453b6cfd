// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/yeremiapane/restaurant-dashboard/database"
	"github.com/yeremiapane/restaurant-dashboard/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database with all tables migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	// every pooled connection to :memory: is a new database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func CreateTenant(t *testing.T, db *gorm.DB, slug string) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{
		Name:                   "Tenant " + slug,
		Slug:                   slug,
		Timezone:               "UTC",
		OpenTime:               "11:00",
		CloseTime:              "23:00",
		DefaultDurationMinutes: 90,
		Status:                 models.TenantStatusActive,
	}
	if err := db.Create(tenant).Error; err != nil {
		t.Fatalf("failed to create tenant: %v", err)
	}
	return tenant
}

func CreateTable(t *testing.T, db *gorm.DB, tenantID, name string, capacity int) *models.RestaurantTable {
	t.Helper()
	table := &models.RestaurantTable{
		TenantID: tenantID,
		Name:     name,
		Capacity: capacity,
		Active:   true,
	}
	if err := db.Create(table).Error; err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	return table
}

func AddMember(t *testing.T, db *gorm.DB, tenantID, userID, role string) {
	t.Helper()
	if err := db.Create(&models.UserTenant{TenantID: tenantID, UserID: userID, Role: role}).Error; err != nil {
		t.Fatalf("failed to add member: %v", err)
	}
}

// CreateBooking inserts a booking directly, bypassing the reservation guard.
func CreateBooking(t *testing.T, db *gorm.DB, tenantID, tableID string, start time.Time, minutes int, status string) *models.Booking {
	t.Helper()
	start = start.UTC().Truncate(time.Second)
	booking := &models.Booking{
		TenantID:        tenantID,
		TableID:         tableID,
		GuestName:       "Guest",
		PartySize:       2,
		StartAt:         start,
		EndAt:           start.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes: minutes,
		Status:          status,
		Channel:         models.ChannelDashboard,
		IdempotencyKey:  fmt.Sprintf("seed-%s-%d", tableID, start.UnixNano()),
	}
	if err := db.Create(booking).Error; err != nil {
		t.Fatalf("failed to create booking: %v", err)
	}
	return booking
}

// FixedClock returns a clock stuck at now.
func FixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}
