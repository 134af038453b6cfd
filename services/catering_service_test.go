package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-dashboard/models"
	"github.com/yeremiapane/restaurant-dashboard/testutil"
	"github.com/yeremiapane/restaurant-dashboard/utils"
)

type cateringRecorder struct {
	orders []*models.CateringOrder
}

func (r *cateringRecorder) CateringOrderCreated(_ context.Context, _ *models.Tenant, order *models.CateringOrder) {
	r.orders = append(r.orders, order)
}

func TestCateringPackages(t *testing.T) {
	db := testutil.NewDB(t)
	tenant := testutil.CreateTenant(t, db, "bistro")
	svc := NewCateringService(db, nil, nil)
	ctx := context.Background()

	pkg, err := svc.CreatePackage(ctx, tenant.ID, PackageInput{Name: " Buffet ", PricePerGuestCents: 2500, MinGuests: 10, MaxGuests: 80})
	require.NoError(t, err)
	assert.Equal(t, "Buffet", pkg.Name)
	assert.True(t, pkg.Active)

	inactive := false
	_, err = svc.CreatePackage(ctx, tenant.ID, PackageInput{Name: "Retired", PricePerGuestCents: 100, Active: &inactive})
	require.NoError(t, err)

	_, err = svc.CreatePackage(ctx, tenant.ID, PackageInput{Name: "Broken", MinGuests: 10, MaxGuests: 5})
	assert.True(t, utils.HasCode(err, utils.CodeValidation))

	active, err := svc.ListPackages(ctx, tenant.ID, false)
	require.NoError(t, err)
	require.Len(t, active, 1)

	all, err := svc.ListPackages(ctx, tenant.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	updated, err := svc.UpdatePackage(ctx, tenant.ID, pkg.ID, PackageInput{Name: "Buffet Deluxe", PricePerGuestCents: 3000, MinGuests: 10, MaxGuests: 80, Active: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Equal(t, int64(3000), updated.PricePerGuestCents)

	_, err = svc.UpdatePackage(ctx, "other", pkg.ID, PackageInput{Name: "x"})
	assert.True(t, utils.HasCode(err, utils.CodeNotFound))
}

func TestCateringOrderLifecycle(t *testing.T) {
	db := testutil.NewDB(t)
	tenant := testutil.CreateTenant(t, db, "bistro")
	publisher := &fakePublisher{}
	recorder := &cateringRecorder{}
	svc := NewCateringService(db, publisher, recorder)
	svc.SetClock(testutil.FixedClock(time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	pkg, err := svc.CreatePackage(ctx, tenant.ID, PackageInput{Name: "Buffet", PricePerGuestCents: 2500, MinGuests: 10, MaxGuests: 80})
	require.NoError(t, err)

	order, err := svc.CreateOrder(ctx, tenant.ID, OrderInput{
		PackageID:    pkg.ID,
		ContactName:  "Grace",
		ContactEmail: "Grace@Example.com",
		EventDate:    "2030-07-04",
		GuestCount:   20,
		Items:        []models.CateringLineItem{{Name: "Cake", Quantity: 2, PriceCents: 4000}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(20*2500+2*4000), order.TotalCents)
	assert.Equal(t, models.CateringStatusPending, order.Status)
	assert.Equal(t, "grace@example.com", order.ContactEmail)
	require.Len(t, recorder.orders, 1)
	require.Len(t, publisher.messages, 1)
	assert.Equal(t, EventCateringOrderUpdated, publisher.messages[0].event)

	var stored models.CateringOrder
	require.NoError(t, db.First(&stored, "id = ?", order.ID).Error)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "Cake", stored.Items[0].Name)

	_, err = svc.CreateOrder(ctx, tenant.ID, OrderInput{PackageID: pkg.ID, ContactName: "x", EventDate: "2030-07-04", GuestCount: 5})
	assert.True(t, utils.HasCode(err, utils.CodeValidation), "below package minimum")
	_, err = svc.CreateOrder(ctx, tenant.ID, OrderInput{PackageID: pkg.ID, ContactName: "x", EventDate: "2030-05-04", GuestCount: 20})
	assert.True(t, utils.HasCode(err, utils.CodeValidation), "past event date")
	_, err = svc.CreateOrder(ctx, tenant.ID, OrderInput{PackageID: "nope", ContactName: "x", EventDate: "2030-07-04", GuestCount: 20})
	assert.True(t, utils.HasCode(err, utils.CodeNotFound))
	_, err = svc.CreateOrder(ctx, tenant.ID, OrderInput{PackageID: pkg.ID, ContactName: "x", ContactPhone: strings.Repeat("5", 41), EventDate: "2030-07-04", GuestCount: 20})
	assert.True(t, utils.HasCode(err, utils.CodeValidation), "phone longer than its column")
	_, err = svc.CreateOrder(ctx, tenant.ID, OrderInput{PackageID: pkg.ID, ContactName: "x", ContactEmail: strings.Repeat("a", 250) + "@example.com", EventDate: "2030-07-04", GuestCount: 20})
	assert.True(t, utils.HasCode(err, utils.CodeValidation), "email longer than its column")

	orders, err := svc.ListOrders(ctx, tenant.ID, OrderFilters{Status: models.CateringStatusPending, From: "2030-07-01", To: "2030-07-31"})
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	confirmed, err := svc.UpdateOrderStatus(ctx, tenant.ID, order.ID, models.CateringStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.CateringStatusConfirmed, confirmed.Status)

	_, err = svc.UpdateOrderStatus(ctx, tenant.ID, order.ID, models.CateringStatusPending)
	assert.True(t, utils.HasCode(err, utils.CodeInvalidStatusTransition))

	_, err = svc.UpdateOrderStatus(ctx, tenant.ID, order.ID, models.CateringStatusCompleted)
	assert.NoError(t, err)
}
