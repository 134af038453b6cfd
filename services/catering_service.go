package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-dashboard/models"
	"github.com/yeremiapane/restaurant-dashboard/utils"
	"gorm.io/gorm"
)

const EventCateringOrderUpdated = "catering_order_updated"

type PackageInput struct {
	Name               string `json:"name" binding:"required,max=150"`
	Description        string `json:"description" binding:"max=2000"`
	PricePerGuestCents int64  `json:"pricePerGuestCents" binding:"min=0"`
	MinGuests          int    `json:"minGuests" binding:"min=0"`
	MaxGuests          int    `json:"maxGuests" binding:"min=0"`
	Active             *bool  `json:"active"`
}

type OrderInput struct {
	PackageID    string                    `json:"packageId" binding:"required"`
	ContactName  string                    `json:"contactName" binding:"required,max=150"`
	ContactPhone string                    `json:"contactPhone" binding:"max=40"`
	ContactEmail string                    `json:"contactEmail" binding:"omitempty,max=255,email"`
	EventDate    string                    `json:"eventDate" binding:"required"`
	GuestCount   int                       `json:"guestCount" binding:"required,min=1"`
	Items        []models.CateringLineItem `json:"items" binding:"dive"`
	Notes        string                    `json:"notes" binding:"max=2000"`
}

type OrderFilters struct {
	Status string
	From   string
	To     string
}

// CateringNotifier is told about new catering orders after they are stored.
type CateringNotifier interface {
	CateringOrderCreated(ctx context.Context, tenant *models.Tenant, order *models.CateringOrder)
}

type CateringService struct {
	db        *gorm.DB
	publisher Publisher
	notifier  CateringNotifier
	now       func() time.Time
}

func NewCateringService(db *gorm.DB, publisher Publisher, notifier CateringNotifier) *CateringService {
	return &CateringService{
		db:        db,
		publisher: publisher,
		notifier:  notifier,
		now:       time.Now,
	}
}

func (s *CateringService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *CateringService) ListPackages(ctx context.Context, tenantID string, includeInactive bool) ([]models.CateringPackage, error) {
	query := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if !includeInactive {
		query = query.Where("active = ?", true)
	}
	var packages []models.CateringPackage
	if err := query.Order("name ASC").Find(&packages).Error; err != nil {
		return nil, utils.DatabaseError(err)
	}
	return packages, nil
}

func (s *CateringService) CreatePackage(ctx context.Context, tenantID string, in PackageInput) (*models.CateringPackage, error) {
	pkg := &models.CateringPackage{TenantID: tenantID}
	if err := applyPackageInput(pkg, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(pkg).Error; err != nil {
		return nil, utils.DatabaseError(err)
	}
	// the column default swallows a false on insert
	if in.Active != nil && !*in.Active {
		if err := s.db.WithContext(ctx).Model(pkg).Update("active", false).Error; err != nil {
			return nil, utils.DatabaseError(err)
		}
		pkg.Active = false
	}
	return pkg, nil
}

func (s *CateringService) UpdatePackage(ctx context.Context, tenantID, packageID string, in PackageInput) (*models.CateringPackage, error) {
	pkg, err := s.getPackage(ctx, tenantID, packageID)
	if err != nil {
		return nil, err
	}
	if err := applyPackageInput(pkg, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(pkg).Error; err != nil {
		return nil, utils.DatabaseError(err)
	}
	return pkg, nil
}

func applyPackageInput(pkg *models.CateringPackage, in PackageInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return utils.NewError(utils.CodeMissingRequiredField, "name is required")
	}
	if in.PricePerGuestCents < 0 {
		return utils.NewError(utils.CodeValidation, "pricePerGuestCents must not be negative")
	}
	minGuests, maxGuests := in.MinGuests, in.MaxGuests
	if minGuests <= 0 {
		minGuests = 1
	}
	if maxGuests <= 0 {
		maxGuests = 500
	}
	if maxGuests < minGuests {
		return utils.NewError(utils.CodeValidation, "maxGuests must not be below minGuests")
	}

	pkg.Name = name
	pkg.Description = strings.TrimSpace(in.Description)
	pkg.PricePerGuestCents = in.PricePerGuestCents
	pkg.MinGuests = minGuests
	pkg.MaxGuests = maxGuests
	if in.Active != nil {
		pkg.Active = *in.Active
	} else if pkg.ID == "" {
		pkg.Active = true
	}
	return nil
}

// CreateOrder prices an order from its package and extra line items and stores it as pending.
func (s *CateringService) CreateOrder(ctx context.Context, tenantID string, in OrderInput) (*models.CateringOrder, error) {
	tenant, err := loadTenant(ctx, s.db, tenantID)
	if err != nil {
		return nil, err
	}
	pkg, err := s.getPackage(ctx, tenantID, in.PackageID)
	if err != nil {
		return nil, err
	}
	if !pkg.Active {
		return nil, utils.NewError(utils.CodeValidation, "catering package is not available")
	}
	contactName := strings.TrimSpace(in.ContactName)
	contactPhone := strings.TrimSpace(in.ContactPhone)
	contactEmail := strings.ToLower(strings.TrimSpace(in.ContactEmail))
	if err := checkLength("contactName", contactName, maxGuestNameLength); err != nil {
		return nil, err
	}
	if err := checkLength("contactPhone", contactPhone, maxGuestPhoneLength); err != nil {
		return nil, err
	}
	if err := checkLength("contactEmail", contactEmail, maxGuestEmailLength); err != nil {
		return nil, err
	}
	if in.GuestCount < pkg.MinGuests || in.GuestCount > pkg.MaxGuests {
		return nil, utils.Errorf(utils.CodeValidation, "guestCount must be between %d and %d for this package", pkg.MinGuests, pkg.MaxGuests)
	}

	eventDate, err := time.Parse("2006-01-02", in.EventDate)
	if err != nil {
		return nil, utils.NewError(utils.CodeValidation, "eventDate must be formatted as YYYY-MM-DD")
	}
	today := s.now().In(tenant.Location()).Format("2006-01-02")
	if in.EventDate < today {
		return nil, utils.NewError(utils.CodeValidation, "eventDate must not be in the past")
	}

	total := pkg.PricePerGuestCents * int64(in.GuestCount)
	for _, item := range in.Items {
		if strings.TrimSpace(item.Name) == "" || item.Quantity <= 0 || item.PriceCents < 0 {
			return nil, utils.NewError(utils.CodeValidation, "items need a name, a positive quantity and a non-negative price")
		}
		total += item.PriceCents * int64(item.Quantity)
	}

	order := &models.CateringOrder{
		TenantID:     tenantID,
		PackageID:    pkg.ID,
		ContactName:  contactName,
		ContactPhone: contactPhone,
		ContactEmail: contactEmail,
		EventDate:    eventDate,
		GuestCount:   in.GuestCount,
		Items:        in.Items,
		TotalCents:   total,
		Status:       models.CateringStatusPending,
		Notes:        strings.TrimSpace(in.Notes),
	}
	if order.Items == nil {
		order.Items = []models.CateringLineItem{}
	}
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, utils.DatabaseError(err)
	}
	order.Package = *pkg

	utils.InfoLogger.WithFields(logrus.Fields{
		"tenant_id":   tenantID,
		"order_id":    order.ID,
		"guests":      order.GuestCount,
		"total_cents": order.TotalCents,
	}).Info("catering order created")

	if s.publisher != nil {
		s.publisher.Publish(tenantID, EventCateringOrderUpdated, order)
	}
	if s.notifier != nil {
		s.notifier.CateringOrderCreated(ctx, tenant, order)
	}
	return order, nil
}

func (s *CateringService) ListOrders(ctx context.Context, tenantID string, filters OrderFilters) ([]models.CateringOrder, error) {
	query := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.From != "" {
		from, err := time.Parse("2006-01-02", filters.From)
		if err != nil {
			return nil, utils.NewError(utils.CodeValidation, "from must be formatted as YYYY-MM-DD")
		}
		query = query.Where("event_date >= ?", from)
	}
	if filters.To != "" {
		to, err := time.Parse("2006-01-02", filters.To)
		if err != nil {
			return nil, utils.NewError(utils.CodeValidation, "to must be formatted as YYYY-MM-DD")
		}
		query = query.Where("event_date <= ?", to)
	}

	var orders []models.CateringOrder
	if err := query.Order("event_date ASC").Order("created_at ASC").Find(&orders).Error; err != nil {
		return nil, utils.DatabaseError(err)
	}
	return orders, nil
}

func (s *CateringService) UpdateOrderStatus(ctx context.Context, tenantID, orderID, status string) (*models.CateringOrder, error) {
	var order models.CateringOrder
	err := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", orderID, tenantID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewError(utils.CodeNotFound, "catering order not found")
	}
	if err != nil {
		return nil, utils.DatabaseError(err)
	}
	if !models.CanTransitionCatering(order.Status, status) {
		return nil, utils.Errorf(utils.CodeInvalidStatusTransition, "cannot change catering order from %s to %s", order.Status, status)
	}

	result := s.db.WithContext(ctx).Model(&models.CateringOrder{}).
		Where("id = ? AND status = ?", order.ID, order.Status).
		Update("status", status)
	if result.Error != nil {
		return nil, utils.DatabaseError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, utils.NewError(utils.CodeInvalidStatusTransition, "catering order was changed by another request")
	}
	order.Status = status

	if s.publisher != nil {
		s.publisher.Publish(tenantID, EventCateringOrderUpdated, &order)
	}
	return &order, nil
}

func (s *CateringService) getPackage(ctx context.Context, tenantID, packageID string) (*models.CateringPackage, error) {
	var pkg models.CateringPackage
	err := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", packageID, tenantID).First(&pkg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewError(utils.CodeNotFound, "catering package not found")
	}
	if err != nil {
		return nil, utils.DatabaseError(err)
	}
	return &pkg, nil
}
