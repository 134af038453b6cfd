package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yeremiapane/restaurant-dashboard/models"
	"github.com/yeremiapane/restaurant-dashboard/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const widgetKeyPrefix = "wk_"

type WidgetInput struct {
	Enabled         *bool               `json:"enabled"`
	Theme           *models.WidgetTheme `json:"theme"`
	MaxPartySize    *int                `json:"maxPartySize" binding:"omitempty,min=1,max=20"`
	LeadTimeMinutes *int                `json:"leadTimeMinutes" binding:"omitempty,min=0,max=10080"`
	WelcomeMessage  *string             `json:"welcomeMessage" binding:"omitempty,max=500"`
}

// PublicWidget is the unauthenticated view served to the embedded widget.
type PublicWidget struct {
	Restaurant      string             `json:"restaurant"`
	Slug            string             `json:"slug"`
	Timezone        string             `json:"timezone"`
	OpenTime        string             `json:"openTime"`
	CloseTime       string             `json:"closeTime"`
	Theme           models.WidgetTheme `json:"theme"`
	MaxPartySize    int                `json:"maxPartySize"`
	LeadTimeMinutes int                `json:"leadTimeMinutes"`
	WelcomeMessage  string             `json:"welcomeMessage"`
}

type WidgetService struct {
	db           *gorm.DB
	reservations *ReservationService
	now          func() time.Time
}

func NewWidgetService(db *gorm.DB, reservations *ReservationService) *WidgetService {
	return &WidgetService{db: db, reservations: reservations, now: time.Now}
}

func (s *WidgetService) SetClock(now func() time.Time) {
	s.now = now
}

// Get returns the tenant's widget configuration, creating the default one on first use.
func (s *WidgetService) Get(ctx context.Context, tenantID string) (*models.WidgetConfig, error) {
	var cfg models.WidgetConfig
	err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&cfg).Error
	if err == nil {
		return &cfg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.DatabaseError(err)
	}

	cfg = models.WidgetConfig{
		TenantID:        tenantID,
		Theme:           datatypes.NewJSONType(models.DefaultWidgetTheme()),
		MaxPartySize:    8,
		LeadTimeMinutes: 60,
	}
	if err := s.db.WithContext(ctx).Create(&cfg).Error; err != nil {
		return nil, utils.DatabaseError(err)
	}
	return &cfg, nil
}

func (s *WidgetService) Update(ctx context.Context, tenantID string, in WidgetInput) (*models.WidgetConfig, error) {
	cfg, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if in.Theme != nil {
		if err := validateTheme(*in.Theme); err != nil {
			return nil, err
		}
		cfg.Theme = datatypes.NewJSONType(*in.Theme)
	}
	if in.Enabled != nil {
		cfg.Enabled = *in.Enabled
	}
	if in.MaxPartySize != nil {
		if *in.MaxPartySize < 1 || *in.MaxPartySize > 20 {
			return nil, utils.NewError(utils.CodeValidation, "maxPartySize must be between 1 and 20")
		}
		cfg.MaxPartySize = *in.MaxPartySize
	}
	if in.LeadTimeMinutes != nil {
		if *in.LeadTimeMinutes < 0 {
			return nil, utils.NewError(utils.CodeValidation, "leadTimeMinutes must not be negative")
		}
		cfg.LeadTimeMinutes = *in.LeadTimeMinutes
	}
	if in.WelcomeMessage != nil {
		cfg.WelcomeMessage = strings.TrimSpace(*in.WelcomeMessage)
	}

	if err := s.db.WithContext(ctx).Save(cfg).Error; err != nil {
		return nil, utils.DatabaseError(err)
	}
	return cfg, nil
}

func validateTheme(theme models.WidgetTheme) error {
	if err := validate.Var(theme.PrimaryColor, "required,hexcolor"); err != nil {
		return utils.NewError(utils.CodeValidation, "theme.primaryColor must be a hex colour such as #1f2937")
	}
	if err := validate.Var(theme.Mode, "oneof=light dark"); err != nil {
		return utils.NewError(utils.CodeValidation, "theme.mode must be one of: light dark")
	}
	if theme.BorderRadius < 0 || theme.BorderRadius > 32 {
		return utils.NewError(utils.CodeValidation, "theme.borderRadius must be between 0 and 32")
	}
	if f := strings.TrimSpace(theme.FontFamily); f == "" || len(f) > 64 {
		return utils.NewError(utils.CodeValidation, "theme.fontFamily must be 1 to 64 characters")
	}
	return nil
}

// RotateKey issues a new widget key. The plaintext "<keyId>.<secret>" is returned once;
// only the bcrypt hash of the secret is stored.
func (s *WidgetService) RotateKey(ctx context.Context, tenantID string) (string, error) {
	cfg, err := s.Get(ctx, tenantID)
	if err != nil {
		return "", err
	}

	keyID := widgetKeyPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	secret := strings.ReplaceAll(uuid.NewString(), "-", "")
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", utils.InternalError(err)
	}

	if err := s.db.WithContext(ctx).Model(cfg).Updates(map[string]interface{}{
		"public_key_id": keyID,
		"secret_hash":   string(hash),
	}).Error; err != nil {
		return "", utils.DatabaseError(err)
	}
	return keyID + "." + secret, nil
}

// Authenticate resolves a widget key to its tenant and configuration.
func (s *WidgetService) Authenticate(ctx context.Context, rawKey string) (*models.Tenant, *models.WidgetConfig, error) {
	keyID, secret, ok := strings.Cut(strings.TrimSpace(rawKey), ".")
	if !ok || !strings.HasPrefix(keyID, widgetKeyPrefix) || secret == "" {
		return nil, nil, utils.NewError(utils.CodeAuthInvalid, "invalid widget key")
	}

	var cfg models.WidgetConfig
	err := s.db.WithContext(ctx).Where("public_key_id = ?", keyID).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, utils.NewError(utils.CodeAuthInvalid, "invalid widget key")
	}
	if err != nil {
		return nil, nil, utils.DatabaseError(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cfg.SecretHash), []byte(secret)); err != nil {
		return nil, nil, utils.NewError(utils.CodeAuthInvalid, "invalid widget key")
	}
	if !cfg.Enabled {
		return nil, nil, utils.NewError(utils.CodeForbidden, "booking widget is disabled")
	}

	tenant, err := loadTenant(ctx, s.db, cfg.TenantID)
	if err != nil {
		return nil, nil, err
	}
	if tenant.Status != models.TenantStatusActive {
		return nil, nil, utils.NewError(utils.CodeTenantNotFound, "tenant not found")
	}
	return tenant, &cfg, nil
}

func (s *WidgetService) PublicConfig(ctx context.Context, slug string) (*PublicWidget, error) {
	var tenant models.Tenant
	err := s.db.WithContext(ctx).Where("slug = ? AND status = ?", slug, models.TenantStatusActive).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewError(utils.CodeTenantNotFound, "tenant not found")
	}
	if err != nil {
		return nil, utils.DatabaseError(err)
	}

	var cfg models.WidgetConfig
	err = s.db.WithContext(ctx).Where("tenant_id = ? AND enabled = ?", tenant.ID, true).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewError(utils.CodeNotFound, "booking widget is not enabled")
	}
	if err != nil {
		return nil, utils.DatabaseError(err)
	}

	return &PublicWidget{
		Restaurant:      tenant.Name,
		Slug:            tenant.Slug,
		Timezone:        tenant.Location().String(),
		OpenTime:        tenant.OpenTime,
		CloseTime:       tenant.CloseTime,
		Theme:           cfg.Theme.Data(),
		MaxPartySize:    cfg.MaxPartySize,
		LeadTimeMinutes: cfg.LeadTimeMinutes,
		WelcomeMessage:  cfg.WelcomeMessage,
	}, nil
}

// CreateReservation books through the conflict guard on behalf of the public widget.
func (s *WidgetService) CreateReservation(ctx context.Context, rawKey string, in CreateReservationInput) (*Reservation, bool, error) {
	tenant, cfg, err := s.Authenticate(ctx, rawKey)
	if err != nil {
		return nil, false, err
	}

	if in.PartySize > cfg.MaxPartySize {
		return nil, false, utils.Errorf(utils.CodeValidation, "online bookings are limited to %d guests, please call the restaurant", cfg.MaxPartySize)
	}
	if start, err := parseTimestamp(strings.TrimSpace(in.Start), tenant.Location()); err == nil && cfg.LeadTimeMinutes > 0 {
		earliest := s.now().Add(time.Duration(cfg.LeadTimeMinutes) * time.Minute)
		if start.After(s.now()) && start.Before(earliest) {
			return nil, false, utils.NewError(utils.CodeValidation, fmt.Sprintf("online bookings must be made at least %d minutes in advance", cfg.LeadTimeMinutes))
		}
	}

	in.Channel = models.ChannelWidget
	return s.reservations.Create(ctx, tenant.ID, in)
}
