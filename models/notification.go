package models

const (
	EventBookingCreated       = "booking_created"
	EventBookingCancelled     = "booking_cancelled"
	EventBookingReminder      = "booking_reminder"
	EventCateringOrderCreated = "catering_order_created"
)

var NotificationEvents = []string{
	EventBookingCreated,
	EventBookingCancelled,
	EventBookingReminder,
	EventCateringOrderCreated,
}

func IsNotificationEvent(event string) bool {
	for _, e := range NotificationEvents {
		if e == event {
			return true
		}
	}
	return false
}

// NotificationPreference controls which events send messages for a tenant.
// StaffRecipients is a comma separated list copied on every email for the event.
type NotificationPreference struct {
	BaseModel
	TenantID        string `gorm:"type:char(36);not null;uniqueIndex:idx_pref_tenant_event" json:"tenantId"`
	EventType       string `gorm:"type:varchar(40);not null;uniqueIndex:idx_pref_tenant_event" json:"eventType"`
	EmailEnabled    bool   `gorm:"not null" json:"emailEnabled"`
	SMSEnabled      bool   `gorm:"not null" json:"smsEnabled"`
	StaffRecipients string `gorm:"type:text" json:"staffRecipients"`
}

func (NotificationPreference) TableName() string {
	return "notification_preferences"
}

type EmailTemplate struct {
	BaseModel
	TenantID  string `gorm:"type:char(36);not null;uniqueIndex:idx_template_tenant_event" json:"tenantId"`
	EventType string `gorm:"type:varchar(40);not null;uniqueIndex:idx_template_tenant_event" json:"eventType"`
	Subject   string `gorm:"type:varchar(255);not null" json:"subject"`
	Body      string `gorm:"type:text;not null" json:"body"`
}

func (EmailTemplate) TableName() string {
	return "email_templates"
}
