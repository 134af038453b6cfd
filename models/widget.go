package models

import "gorm.io/datatypes"

type WidgetTheme struct {
	PrimaryColor string `json:"primaryColor"`
	FontFamily   string `json:"fontFamily"`
	BorderRadius int    `json:"borderRadius"`
	Mode         string `json:"mode"` // light or dark
}

func DefaultWidgetTheme() WidgetTheme {
	return WidgetTheme{
		PrimaryColor: "#1f2937",
		FontFamily:   "Inter",
		BorderRadius: 8,
		Mode:         "light",
	}
}

// WidgetConfig drives the embeddable booking widget of a tenant.
type WidgetConfig struct {
	BaseModel
	TenantID        string                          `gorm:"type:char(36);not null;uniqueIndex" json:"tenantId"`
	Enabled         bool                            `gorm:"not null" json:"enabled"`
	Theme           datatypes.JSONType[WidgetTheme] `json:"theme"`
	MaxPartySize    int                             `gorm:"not null;default:8" json:"maxPartySize"`
	LeadTimeMinutes int                             `gorm:"not null;default:60" json:"leadTimeMinutes"`
	WelcomeMessage  string                          `gorm:"type:varchar(500)" json:"welcomeMessage"`
	PublicKeyID     string                          `gorm:"type:varchar(64);index" json:"publicKeyId"`
	SecretHash      string                          `gorm:"type:varchar(255)" json:"-"`
}

func (WidgetConfig) TableName() string {
	return "widget_configs"
}
