package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	CateringStatusPending   = "pending"
	CateringStatusConfirmed = "confirmed"
	CateringStatusCompleted = "completed"
	CateringStatusCancelled = "cancelled"
)

var cateringTransitions = map[string][]string{
	CateringStatusPending:   {CateringStatusConfirmed, CateringStatusCancelled},
	CateringStatusConfirmed: {CateringStatusCompleted, CateringStatusCancelled},
}

func CanTransitionCatering(from, to string) bool {
	for _, next := range cateringTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type CateringPackage struct {
	BaseModel
	TenantID           string `gorm:"type:char(36);not null;index" json:"tenantId"`
	Name               string `gorm:"type:varchar(150);not null" json:"name"`
	Description        string `gorm:"type:text" json:"description"`
	PricePerGuestCents int64  `gorm:"not null" json:"pricePerGuestCents"`
	MinGuests          int    `gorm:"not null;default:1" json:"minGuests"`
	MaxGuests          int    `gorm:"not null;default:500" json:"maxGuests"`
	Active             bool   `gorm:"not null;default:true" json:"active"`
}

func (CateringPackage) TableName() string {
	return "catering_packages"
}

type CateringLineItem struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"priceCents"`
}

type CateringOrder struct {
	BaseModel
	TenantID     string                                `gorm:"type:char(36);not null;index" json:"tenantId"`
	PackageID    string                                `gorm:"type:char(36);not null;index" json:"packageId"`
	Package      CateringPackage                       `gorm:"foreignKey:PackageID;references:ID;constraint:OnDelete:RESTRICT" json:"-"`
	ContactName  string                                `gorm:"type:varchar(150);not null" json:"contactName"`
	ContactPhone string                                `gorm:"type:varchar(40)" json:"contactPhone"`
	ContactEmail string                                `gorm:"type:varchar(255)" json:"contactEmail"`
	EventDate    time.Time                             `gorm:"not null;index" json:"eventDate"`
	GuestCount   int                                   `gorm:"not null" json:"guestCount"`
	Items        datatypes.JSONSlice[CateringLineItem] `json:"items"`
	TotalCents   int64                                 `gorm:"not null" json:"totalCents"`
	Status       string                                `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Notes        string                                `gorm:"type:text" json:"notes"`
}

func (CateringOrder) TableName() string {
	return "catering_orders"
}
