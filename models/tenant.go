package models

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

const (
	TenantStatusActive   = "active"
	TenantStatusInactive = "inactive"
)

// Tenant is one restaurant account.
type Tenant struct {
	BaseModel
	Name                   string `gorm:"type:varchar(150);not null" json:"name"`
	Slug                   string `gorm:"type:varchar(80);uniqueIndex;not null" json:"slug"`
	Timezone               string `gorm:"type:varchar(64);not null;default:'UTC'" json:"timezone"`
	OpenTime               string `gorm:"type:varchar(5);not null;default:'11:00'" json:"openTime"`
	CloseTime              string `gorm:"type:varchar(5);not null;default:'23:00'" json:"closeTime"`
	DefaultDurationMinutes int    `gorm:"not null;default:90" json:"defaultDurationMinutes"`
	Status                 string `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
}

func (Tenant) TableName() string {
	return "tenants"
}

// Location falls back to UTC for unknown zones.
func (t *Tenant) Location() *time.Location {
	if t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DayBounds returns the UTC instants of local midnight on date and the following midnight.
func (t *Tenant) DayBounds(date string) (time.Time, time.Time, error) {
	loc := t.Location()
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return day.UTC(), day.AddDate(0, 0, 1).UTC(), nil
}

// ServiceWindow returns the opening hours of date in UTC. A close time at or before the open
// time is read as closing after midnight.
func (t *Tenant) ServiceWindow(date string) (time.Time, time.Time, error) {
	loc := t.Location()
	open, err := time.ParseInLocation("2006-01-02 15:04", fmt.Sprintf("%s %s", date, defaultString(t.OpenTime, "11:00")), loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	closeAt, err := time.ParseInLocation("2006-01-02 15:04", fmt.Sprintf("%s %s", date, defaultString(t.CloseTime, "23:00")), loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !closeAt.After(open) {
		closeAt = closeAt.AddDate(0, 0, 1)
	}
	return open.UTC(), closeAt.UTC(), nil
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
