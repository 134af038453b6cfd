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

func intPtr(i int) *int { return &i }

func TestWidgetConfig(t *testing.T) {
	db := testutil.NewDB(t)
	tenant := testutil.CreateTenant(t, db, "bistro")
	svc := NewWidgetService(db, nil)
	ctx := context.Background()

	cfg, err := svc.Get(ctx, tenant.ID)
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, models.DefaultWidgetTheme(), cfg.Theme.Data())

	again, err := svc.Get(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, cfg.ID, again.ID)

	theme := models.WidgetTheme{PrimaryColor: "#ff5500", FontFamily: "Lora", BorderRadius: 12, Mode: "dark"}
	updated, err := svc.Update(ctx, tenant.ID, WidgetInput{Enabled: boolPtr(true), Theme: &theme, MaxPartySize: intPtr(6)})
	require.NoError(t, err)
	assert.True(t, updated.Enabled)
	assert.Equal(t, theme, updated.Theme.Data())
	assert.Equal(t, 6, updated.MaxPartySize)

	bad := []models.WidgetTheme{
		{PrimaryColor: "orange", FontFamily: "Lora", Mode: "dark"},
		{PrimaryColor: "#fff", FontFamily: "Lora", Mode: "sepia"},
		{PrimaryColor: "#fff", FontFamily: "", Mode: "light"},
		{PrimaryColor: "#fff", FontFamily: "Lora", Mode: "light", BorderRadius: 99},
	}
	for _, th := range bad {
		th := th
		_, err := svc.Update(ctx, tenant.ID, WidgetInput{Theme: &th})
		assert.True(t, utils.HasCode(err, utils.CodeValidation), "%+v", th)
	}

	_, err = svc.Update(ctx, tenant.ID, WidgetInput{MaxPartySize: intPtr(50)})
	assert.True(t, utils.HasCode(err, utils.CodeValidation))

	public, err := svc.PublicConfig(ctx, "bistro")
	require.NoError(t, err)
	assert.Equal(t, "Tenant bistro", public.Restaurant)
	assert.Equal(t, "#ff5500", public.Theme.PrimaryColor)

	_, err = svc.PublicConfig(ctx, "unknown")
	assert.True(t, utils.HasCode(err, utils.CodeTenantNotFound))
}

func TestWidgetKeyAndReservation(t *testing.T) {
	db := testutil.NewDB(t)
	tenant := testutil.CreateTenant(t, db, "bistro")
	table := testutil.CreateTable(t, db, tenant.ID, "T1", 4)
	now := time.Date(2030, 6, 1, 9, 0, 0, 0, time.UTC)

	reservations := NewReservationService(db, NewLocalLocker(time.Second), DefaultReservationOptions())
	reservations.SetClock(testutil.FixedClock(now))
	svc := NewWidgetService(db, reservations)
	svc.SetClock(testutil.FixedClock(now))
	ctx := context.Background()

	key, err := svc.RotateKey(ctx, tenant.ID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key, widgetKeyPrefix))

	var cfg models.WidgetConfig
	require.NoError(t, db.Where("tenant_id = ?", tenant.ID).First(&cfg).Error)
	assert.NotContains(t, cfg.SecretHash, strings.SplitN(key, ".", 2)[1], "only the hash is stored")

	in := reservationInput(table.ID, "2030-06-01T19:00:00Z", "", "widget-1")

	_, _, err = svc.CreateReservation(ctx, key, in)
	assert.True(t, utils.HasCode(err, utils.CodeForbidden), "widget disabled by default")

	_, err = svc.Update(ctx, tenant.ID, WidgetInput{Enabled: boolPtr(true), MaxPartySize: intPtr(4), LeadTimeMinutes: intPtr(120)})
	require.NoError(t, err)

	r, replayed, err := svc.CreateReservation(ctx, key, in)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, models.ChannelWidget, r.Channel)

	big := reservationInput(table.ID, "2030-06-02T19:00:00Z", "", "widget-2")
	big.PartySize = 5
	_, _, err = svc.CreateReservation(ctx, key, big)
	assert.True(t, utils.HasCode(err, utils.CodeValidation))

	soon := reservationInput(table.ID, "2030-06-01T10:00:00Z", "", "widget-3")
	_, _, err = svc.CreateReservation(ctx, key, soon)
	assert.True(t, utils.HasCode(err, utils.CodeValidation))

	_, _, err = svc.CreateReservation(ctx, "wk_nothing.secret", in)
	assert.True(t, utils.HasCode(err, utils.CodeAuthInvalid))
	_, _, err = svc.CreateReservation(ctx, strings.SplitN(key, ".", 2)[0]+".wrong", in)
	assert.True(t, utils.HasCode(err, utils.CodeAuthInvalid))

	rotated, err := svc.RotateKey(ctx, tenant.ID)
	require.NoError(t, err)
	_, _, err = svc.Authenticate(ctx, key)
	assert.True(t, utils.HasCode(err, utils.CodeAuthInvalid), "old key stops working")
	_, _, err = svc.Authenticate(ctx, rotated)
	assert.NoError(t, err)
}
