package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-dashboard/models"
	"github.com/yeremiapane/restaurant-dashboard/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TemplateData is what email templates can reference, e.g. {{.GuestName}}.
type TemplateData struct {
	Restaurant      string
	GuestName       string
	PartySize       int
	Date            string
	Time            string
	TableName       string
	BookingID       string
	SpecialRequests string
	GuestCount      int
	Total           string
}

type defaultTemplate struct {
	Subject string
	Body    string
}

var defaultTemplates = map[string]defaultTemplate{
	models.EventBookingCreated: {
		Subject: "Your booking at {{.Restaurant}} is confirmed",
		Body:    "Hi {{.GuestName}},\n\nWe have reserved a table for {{.PartySize}} on {{.Date}} at {{.Time}}.\n\nSee you soon,\n{{.Restaurant}}",
	},
	models.EventBookingCancelled: {
		Subject: "Your booking at {{.Restaurant}} was cancelled",
		Body:    "Hi {{.GuestName}},\n\nYour booking for {{.PartySize}} on {{.Date}} at {{.Time}} has been cancelled.\n\n{{.Restaurant}}",
	},
	models.EventBookingReminder: {
		Subject: "Reminder: {{.Restaurant}} tomorrow at {{.Time}}",
		Body:    "Hi {{.GuestName}},\n\nA reminder of your booking for {{.PartySize}} on {{.Date}} at {{.Time}}.\n\n{{.Restaurant}}",
	},
	models.EventCateringOrderCreated: {
		Subject: "Catering request received by {{.Restaurant}}",
		Body:    "Hi {{.GuestName}},\n\nWe received your catering request for {{.GuestCount}} guests on {{.Date}}. Estimated total: {{.Total}}.\n\n{{.Restaurant}}",
	},
}

var sampleTemplateData = TemplateData{
	Restaurant:      "Sample Bistro",
	GuestName:       "Ada Lovelace",
	PartySize:       4,
	Date:            "2030-01-31",
	Time:            "19:30",
	TableName:       "T4",
	BookingID:       "00000000-0000-0000-0000-000000000000",
	SpecialRequests: "Window seat",
	GuestCount:      40,
	Total:           "1200.00",
}

type PreferenceInput struct {
	EventType       string   `json:"eventType" binding:"required"`
	EmailEnabled    *bool    `json:"emailEnabled"`
	SMSEnabled      *bool    `json:"smsEnabled"`
	StaffRecipients []string `json:"staffRecipients"`
}

type TemplateInput struct {
	EventType string `json:"eventType" binding:"required"`
	Subject   string `json:"subject" binding:"required,max=255"`
	Body      string `json:"body" binding:"required"`
}

type Preference struct {
	EventType       string   `json:"eventType"`
	EmailEnabled    bool     `json:"emailEnabled"`
	SMSEnabled      bool     `json:"smsEnabled"`
	StaffRecipients []string `json:"staffRecipients"`
}

type Template struct {
	EventType string `json:"eventType"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	IsDefault bool   `json:"isDefault"`
}

type RenderedEmail struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NotificationService manages per-tenant preferences and templates and turns domain events
// into queued emails.
type NotificationService struct {
	db    *gorm.DB
	queue JobQueue
}

func NewNotificationService(db *gorm.DB, queue JobQueue) *NotificationService {
	return &NotificationService{db: db, queue: queue}
}

func (s *NotificationService) ListPreferences(ctx context.Context, tenantID string) ([]Preference, error) {
	var stored []models.NotificationPreference
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&stored).Error; err != nil {
		return nil, utils.DatabaseError(err)
	}
	byEvent := make(map[string]models.NotificationPreference, len(stored))
	for _, p := range stored {
		byEvent[p.EventType] = p
	}

	result := make([]Preference, 0, len(models.NotificationEvents))
	for _, event := range models.NotificationEvents {
		if p, ok := byEvent[event]; ok {
			result = append(result, toPreference(p))
		} else {
			result = append(result, Preference{EventType: event, EmailEnabled: true, StaffRecipients: []string{}})
		}
	}
	return result, nil
}

func (s *NotificationService) UpsertPreference(ctx context.Context, tenantID string, in PreferenceInput) (*Preference, error) {
	if !models.IsNotificationEvent(in.EventType) {
		return nil, utils.Errorf(utils.CodeValidation, "unknown event type %q", in.EventType)
	}

	current, err := s.preference(ctx, tenantID, in.EventType)
	if err != nil {
		return nil, err
	}
	if in.EmailEnabled != nil {
		current.EmailEnabled = *in.EmailEnabled
	}
	if in.SMSEnabled != nil {
		current.SMSEnabled = *in.SMSEnabled
	}
	if in.StaffRecipients != nil {
		recipients := make([]string, 0, len(in.StaffRecipients))
		for _, r := range in.StaffRecipients {
			r = strings.ToLower(strings.TrimSpace(r))
			if r == "" {
				continue
			}
			if err := validate.Var(r, "email"); err != nil {
				return nil, utils.Errorf(utils.CodeValidation, "staffRecipients contains an invalid email address: %s", r)
			}
			recipients = append(recipients, r)
		}
		current.StaffRecipients = strings.Join(recipients, ",")
	}

	row := models.NotificationPreference{
		TenantID:        tenantID,
		EventType:       in.EventType,
		EmailEnabled:    current.EmailEnabled,
		SMSEnabled:      current.SMSEnabled,
		StaffRecipients: current.StaffRecipients,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "event_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"email_enabled", "sms_enabled", "staff_recipients", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return nil, utils.DatabaseError(err)
	}

	pref := toPreference(row)
	return &pref, nil
}

func (s *NotificationService) ListTemplates(ctx context.Context, tenantID string) ([]Template, error) {
	var stored []models.EmailTemplate
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&stored).Error; err != nil {
		return nil, utils.DatabaseError(err)
	}
	byEvent := make(map[string]models.EmailTemplate, len(stored))
	for _, t := range stored {
		byEvent[t.EventType] = t
	}

	result := make([]Template, 0, len(models.NotificationEvents))
	for _, event := range models.NotificationEvents {
		if t, ok := byEvent[event]; ok {
			result = append(result, Template{EventType: event, Subject: t.Subject, Body: t.Body})
		} else {
			d := defaultTemplates[event]
			result = append(result, Template{EventType: event, Subject: d.Subject, Body: d.Body, IsDefault: true})
		}
	}
	return result, nil
}

// UpsertTemplate stores a template after checking that it parses and renders against sample data.
func (s *NotificationService) UpsertTemplate(ctx context.Context, tenantID string, in TemplateInput) (*Template, error) {
	if !models.IsNotificationEvent(in.EventType) {
		return nil, utils.Errorf(utils.CodeValidation, "unknown event type %q", in.EventType)
	}
	if _, err := renderEmail(in.Subject, in.Body, sampleTemplateData); err != nil {
		return nil, err
	}

	row := models.EmailTemplate{
		TenantID:  tenantID,
		EventType: in.EventType,
		Subject:   in.Subject,
		Body:      in.Body,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "event_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"subject", "body", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return nil, utils.DatabaseError(err)
	}
	return &Template{EventType: row.EventType, Subject: row.Subject, Body: row.Body}, nil
}

// Preview renders an unsaved template against sample data.
func (s *NotificationService) Preview(ctx context.Context, tenantID string, in TemplateInput) (*RenderedEmail, error) {
	data := sampleTemplateData
	if tenant, err := loadTenant(ctx, s.db, tenantID); err == nil {
		data.Restaurant = tenant.Name
	}
	return renderEmail(in.Subject, in.Body, data)
}

// BookingChanged queues the guest email for new and cancelled bookings.
func (s *NotificationService) BookingChanged(ctx context.Context, event BookingEvent) {
	var eventType string
	switch {
	case event.Type == BookingEventCreated:
		eventType = models.EventBookingCreated
	case event.Type == BookingEventUpdated && event.Booking.Status == models.BookingStatusCancelled:
		eventType = models.EventBookingCancelled
	default:
		return
	}
	if err := s.dispatch(ctx, event.Tenant, eventType, event.Booking.GuestEmail, bookingTemplateData(event.Tenant, event.Booking)); err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"tenant_id":  event.Tenant.ID,
			"booking_id": event.Booking.ID,
			"event":      eventType,
		}).WithError(err).Error("failed to queue booking notification")
	}
}

func (s *NotificationService) CateringOrderCreated(ctx context.Context, tenant *models.Tenant, order *models.CateringOrder) {
	data := TemplateData{
		Restaurant: tenant.Name,
		GuestName:  order.ContactName,
		Date:       order.EventDate.Format("2006-01-02"),
		GuestCount: order.GuestCount,
		Total:      fmt.Sprintf("%d.%02d", order.TotalCents/100, order.TotalCents%100),
	}
	if err := s.dispatch(ctx, tenant, models.EventCateringOrderCreated, order.ContactEmail, data); err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"tenant_id": tenant.ID,
			"order_id":  order.ID,
		}).WithError(err).Error("failed to queue catering notification")
	}
}

// QueueReminder queues the reminder email for one booking.
func (s *NotificationService) QueueReminder(ctx context.Context, tenant *models.Tenant, booking *models.Booking) error {
	return s.dispatch(ctx, tenant, models.EventBookingReminder, booking.GuestEmail, bookingTemplateData(tenant, booking))
}

func (s *NotificationService) dispatch(ctx context.Context, tenant *models.Tenant, eventType, guestEmail string, data TemplateData) error {
	pref, err := s.preference(ctx, tenant.ID, eventType)
	if err != nil {
		return err
	}
	if !pref.EmailEnabled {
		return nil
	}

	to := []string{}
	if guestEmail != "" {
		to = append(to, guestEmail)
	}
	cc := splitRecipients(pref.StaffRecipients)
	if len(to) == 0 {
		to, cc = cc, nil
	}
	if len(to) == 0 {
		return nil
	}

	subject, body, err := s.templateFor(ctx, tenant.ID, eventType)
	if err != nil {
		return err
	}
	rendered, err := renderEmail(subject, body, data)
	if err != nil {
		return err
	}

	return s.queue.Enqueue(ctx, EmailJob{
		ID:        uuid.NewString(),
		TenantID:  tenant.ID,
		EventType: eventType,
		To:        to,
		Cc:        cc,
		Subject:   rendered.Subject,
		Body:      rendered.Body,
		Created:   time.Now().Unix(),
	})
}

// preference returns the stored row or the default (email on, no staff copy).
func (s *NotificationService) preference(ctx context.Context, tenantID, eventType string) (*models.NotificationPreference, error) {
	var pref models.NotificationPreference
	err := s.db.WithContext(ctx).Where("tenant_id = ? AND event_type = ?", tenantID, eventType).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.NotificationPreference{TenantID: tenantID, EventType: eventType, EmailEnabled: true}, nil
	}
	if err != nil {
		return nil, utils.DatabaseError(err)
	}
	return &pref, nil
}

func (s *NotificationService) templateFor(ctx context.Context, tenantID, eventType string) (string, string, error) {
	var tpl models.EmailTemplate
	err := s.db.WithContext(ctx).Where("tenant_id = ? AND event_type = ?", tenantID, eventType).First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		d := defaultTemplates[eventType]
		return d.Subject, d.Body, nil
	}
	if err != nil {
		return "", "", utils.DatabaseError(err)
	}
	return tpl.Subject, tpl.Body, nil
}

func renderEmail(subject, body string, data TemplateData) (*RenderedEmail, error) {
	renderedSubject, err := renderTemplate("subject", subject, data)
	if err != nil {
		return nil, err
	}
	renderedBody, err := renderTemplate("body", body, data)
	if err != nil {
		return nil, err
	}
	return &RenderedEmail{Subject: strings.TrimSpace(renderedSubject), Body: renderedBody}, nil
}

func renderTemplate(name, text string, data TemplateData) (string, error) {
	tpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", utils.Errorf(utils.CodeValidation, "%s template is invalid: %v", name, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", utils.Errorf(utils.CodeValidation, "%s template cannot be rendered: %v", name, err)
	}
	return buf.String(), nil
}

func bookingTemplateData(tenant *models.Tenant, b *models.Booking) TemplateData {
	local := b.StartAt.In(tenant.Location())
	return TemplateData{
		Restaurant:      tenant.Name,
		GuestName:       b.GuestName,
		PartySize:       b.PartySize,
		Date:            local.Format("2006-01-02"),
		Time:            local.Format("15:04"),
		TableName:       b.Table.Name,
		BookingID:       b.ID,
		SpecialRequests: b.SpecialRequests,
	}
}

func toPreference(p models.NotificationPreference) Preference {
	return Preference{
		EventType:       p.EventType,
		EmailEnabled:    p.EmailEnabled,
		SMSEnabled:      p.SMSEnabled,
		StaffRecipients: splitRecipients(p.StaffRecipients),
	}
}

func splitRecipients(s string) []string {
	result := []string{}
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			result = append(result, r)
		}
	}
	return result
}
