package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-dashboard/config"
	"github.com/yeremiapane/restaurant-dashboard/models"
	"github.com/yeremiapane/restaurant-dashboard/realtime"
	"github.com/yeremiapane/restaurant-dashboard/services"
	"github.com/yeremiapane/restaurant-dashboard/testutil"
	"github.com/yeremiapane/restaurant-dashboard/utils"
	"gorm.io/gorm"
)

const testSecret = "router-test-secret"

type apiFixture struct {
	t      *testing.T
	db     *gorm.DB
	engine *gin.Engine
	tenant *models.Tenant
	table  *models.RestaurantTable
	owner  string
	staff  string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Auth: config.AuthConfig{JWTSecret: testSecret, Audience: "authenticated"},
		CORS: config.CORSConfig{
			AllowOrigins: []string{"https://app.example.com"},
			AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			AllowHeaders: []string{"Authorization", "Content-Type", "X-Idempotency-Key"},
		},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}

	db := testutil.NewDB(t)
	tenant := testutil.CreateTenant(t, db, "bistro")
	table := testutil.CreateTable(t, db, tenant.ID, "T1", 4)
	testutil.AddMember(t, db, tenant.ID, "owner-1", models.RoleOwner)
	testutil.AddMember(t, db, tenant.ID, "staff-1", models.RoleStaff)

	hub := realtime.NewHub(cfg.CORS.AllowOrigins, nil, "test")
	queue := services.NewMemoryQueue(100)
	kpis := services.NewKPIService(db, nil, hub)
	notifications := services.NewNotificationService(db, queue)
	reservations := services.NewReservationService(db, services.NewLocalLocker(time.Second), services.DefaultReservationOptions())
	reservations.AddObserver(services.NewRealtimeObserver(hub))
	reservations.AddObserver(kpis)
	reservations.AddObserver(notifications)

	engine := SetupRouter(Dependencies{
		Config:        cfg,
		DB:            db,
		Hub:           hub,
		Reservations:  reservations,
		KPIs:          kpis,
		Tables:        services.NewTableService(db, hub),
		Analytics:     services.NewAnalyticsService(db),
		Guests:        services.NewGuestService(db),
		Catering:      services.NewCateringService(db, hub, notifications),
		Notifications: notifications,
		Widgets:       services.NewWidgetService(db, reservations),
	})

	return &apiFixture{
		t:      t,
		db:     db,
		engine: engine,
		tenant: tenant,
		table:  table,
		owner:  bearer(t, "owner-1"),
		staff:  bearer(t, "staff-1"),
	}
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	token, err := utils.GenerateToken([]byte(testSecret), userID, "", "authenticated", time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func (f *apiFixture) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(f.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Meta  json.RawMessage  `json:"meta"`
	Error *utils.ErrorBody `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, w.Code, w.Body.String())
	env := decode(t, w)
	require.NotNil(t, env.Error, w.Body.String())
	assert.Equal(t, code, env.Error.Code)
	assert.NotEmpty(t, env.Error.Message)
	assert.Equal(t, w.Header().Get("X-Request-ID"), env.Error.RequestID)
}

// serviceDay is a date safely in the future so the past-time check never interferes.
func serviceDay() string {
	return time.Now().UTC().AddDate(0, 0, 3).Format("2006-01-02")
}

func (f *apiFixture) createReservation(key, start, end string, partySize int) *httptest.ResponseRecorder {
	body := map[string]interface{}{
		"tableId":   f.table.ID,
		"start":     start,
		"end":       end,
		"partySize": partySize,
		"guestName": "Ada Lovelace",
	}
	return f.do(http.MethodPost, "/functions/v1/create-reservation", body, map[string]string{
		"Authorization":     f.owner,
		"X-Idempotency-Key": key,
	})
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)
}

func TestCreateReservationEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	day := serviceDay()

	w := f.createReservation("k1", day+"T14:00:00Z", day+"T15:30:00Z", 2)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var first services.Reservation
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &first))
	assert.Equal(t, day+"T14:00:00Z", first.Start)
	assert.Equal(t, day+"T15:30:00Z", first.End)
	assert.Equal(t, models.BookingStatusConfirmed, first.Status)
	assert.Equal(t, "T1", first.TableName)

	w = f.createReservation("k2", day+"T15:00:00Z", day+"T16:00:00Z", 2)
	assertError(t, w, http.StatusConflict, utils.CodeReservationConflict)

	w = f.createReservation("k3", day+"T15:30:00Z", day+"T16:30:00Z", 2)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// retry of k1 replays the stored booking
	w = f.createReservation("k1", day+"T14:00:00Z", day+"T15:30:00Z", 2)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "true", w.Header().Get("Idempotent-Replayed"))
	var replay services.Reservation
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &replay))
	assert.Equal(t, first.ID, replay.ID)

	var n int64
	require.NoError(t, f.db.Model(&models.Booking{}).Count(&n).Error)
	assert.Equal(t, int64(2), n)
}

func TestCreateReservationErrors(t *testing.T) {
	f := newAPIFixture(t)
	day := serviceDay()

	w := f.do(http.MethodPost, "/functions/v1/create-reservation", map[string]interface{}{"tableId": f.table.ID}, nil)
	assertError(t, w, http.StatusUnauthorized, utils.CodeAuthRequired)

	w = f.do(http.MethodPost, "/functions/v1/create-reservation", map[string]interface{}{"tableId": f.table.ID}, map[string]string{"Authorization": "Bearer garbage"})
	assertError(t, w, http.StatusUnauthorized, utils.CodeAuthInvalid)

	w = f.createReservation("", day+"T14:00:00Z", day+"T15:00:00Z", 2)
	assertError(t, w, http.StatusBadRequest, utils.CodeMissingRequiredField)

	w = f.createReservation("big", day+"T14:00:00Z", day+"T15:00:00Z", 21)
	assertError(t, w, http.StatusBadRequest, utils.CodeValidation)

	w = f.createReservation("zero", day+"T14:00:00Z", day+"T15:00:00Z", 0)
	assertError(t, w, http.StatusBadRequest, utils.CodeValidation)

	w = f.createReservation("past", "2020-01-01T14:00:00Z", "2020-01-01T15:00:00Z", 2)
	assertError(t, w, http.StatusBadRequest, utils.CodeReservationPastTime)

	w = f.createReservation("inverted", day+"T15:00:00Z", day+"T14:00:00Z", 2)
	assertError(t, w, http.StatusBadRequest, utils.CodeReservationInvalidTime)

	w = f.createReservation(strings.Repeat("k", 256), day+"T14:00:00Z", day+"T15:00:00Z", 2)
	assertError(t, w, http.StatusBadRequest, utils.CodeValidation)

	w = f.do(http.MethodPost, "/functions/v1/create-reservation", "{not json", map[string]string{"Authorization": f.owner, "X-Idempotency-Key": "bad"})
	assertError(t, w, http.StatusBadRequest, utils.CodeValidation)

	var n int64
	require.NoError(t, f.db.Model(&models.Booking{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestListReservationsAndKPIs(t *testing.T) {
	f := newAPIFixture(t)
	day := serviceDay()
	require.Equal(t, http.StatusCreated, f.createReservation("a", day+"T12:00:00Z", day+"T13:00:00Z", 2).Code)
	require.Equal(t, http.StatusCreated, f.createReservation("b", day+"T19:00:00Z", day+"T20:00:00Z", 4).Code)

	w := f.do(http.MethodPost, "/functions/v1/list-reservations", map[string]interface{}{"date": day}, map[string]string{"Authorization": f.staff})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list []services.Reservation
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, day+"T12:00:00Z", list[0].Start)

	w = f.do(http.MethodPost, "/functions/v1/list-reservations", map[string]interface{}{
		"date":    day,
		"filters": map[string]interface{}{"search": "nobody"},
	}, map[string]string{"Authorization": f.staff})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(decode(t, w).Data))

	w = f.do(http.MethodPost, "/functions/v1/list-reservations", map[string]interface{}{}, map[string]string{"Authorization": f.staff})
	assertError(t, w, http.StatusBadRequest, utils.CodeMissingRequiredField)

	w = f.do(http.MethodGet, "/functions/v1/get-kpis?date="+day, nil, map[string]string{"Authorization": f.staff})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decode(t, w)
	var cards []services.KpiCard
	require.NoError(t, json.Unmarshal(env.Data, &cards))
	require.NotEmpty(t, cards)
	assert.Equal(t, services.KPIBookings, cards[0].ID)
	assert.Equal(t, float64(2), cards[0].Value)
	var meta services.KPIMeta
	require.NoError(t, json.Unmarshal(env.Meta, &meta))
	assert.Equal(t, day, meta.Date)

	w = f.do(http.MethodPost, "/functions/v1/get-kpis", map[string]string{"date": "June 1st"}, map[string]string{"Authorization": f.staff})
	assertError(t, w, http.StatusBadRequest, utils.CodeValidation)
}

func TestBookingStatusEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	day := serviceDay()
	w := f.createReservation("a", day+"T12:00:00Z", day+"T13:00:00Z", 2)
	require.Equal(t, http.StatusCreated, w.Code)
	var created services.Reservation
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))

	path := "/api/v1/bookings/" + created.ID + "/status"
	w = f.do(http.MethodPatch, path, map[string]string{"status": models.BookingStatusSeated}, map[string]string{"Authorization": f.staff})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodPatch, path, map[string]string{"status": models.BookingStatusCancelled}, map[string]string{"Authorization": f.staff})
	assertError(t, w, http.StatusConflict, utils.CodeInvalidStatusTransition)

	w = f.do(http.MethodGet, "/api/v1/bookings/missing", nil, map[string]string{"Authorization": f.staff})
	assertError(t, w, http.StatusNotFound, utils.CodeNotFound)
}

func TestTableEndpointsRequireManager(t *testing.T) {
	f := newAPIFixture(t)
	body := map[string]interface{}{"name": "T9", "capacity": 6}

	w := f.do(http.MethodPost, "/api/v1/tables", body, map[string]string{"Authorization": f.staff})
	assertError(t, w, http.StatusForbidden, utils.CodeForbidden)

	w = f.do(http.MethodPost, "/api/v1/tables", body, map[string]string{"Authorization": f.owner})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/api/v1/tables", map[string]interface{}{"capacity": 6}, map[string]string{"Authorization": f.owner})
	assertError(t, w, http.StatusBadRequest, utils.CodeMissingRequiredField)
	assert.Contains(t, decode(t, w).Error.Message, "name")

	w = f.do(http.MethodGet, "/api/v1/tables", nil, map[string]string{"Authorization": f.staff})
	require.Equal(t, http.StatusOK, w.Code)
	var tables []models.RestaurantTable
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &tables))
	assert.Len(t, tables, 2)
}

func TestWidgetFlow(t *testing.T) {
	f := newAPIFixture(t)
	owner := map[string]string{"Authorization": f.owner}

	w := f.do(http.MethodGet, "/widget/v1/config/bistro", nil, nil)
	assertError(t, w, http.StatusNotFound, utils.CodeNotFound)

	w = f.do(http.MethodPut, "/api/v1/widget", map[string]interface{}{"enabled": true, "maxPartySize": 4}, owner)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/api/v1/widget/rotate-key", nil, owner)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rotated struct {
		Key string `json:"key"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &rotated))

	w = f.do(http.MethodGet, "/widget/v1/config/bistro", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"maxPartySize":4`)

	day := serviceDay()
	body := map[string]interface{}{
		"tableId":   f.table.ID,
		"start":     day + "T18:00:00Z",
		"partySize": 3,
		"guestName": "Grace Hopper",
	}
	w = f.do(http.MethodPost, "/widget/v1/reservations", body, map[string]string{"X-Idempotency-Key": "w1"})
	assertError(t, w, http.StatusUnauthorized, utils.CodeAuthRequired)

	w = f.do(http.MethodPost, "/widget/v1/reservations", body, map[string]string{"X-Idempotency-Key": "w1", "X-Widget-Key": rotated.Key})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var r services.Reservation
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &r))
	assert.Equal(t, models.ChannelWidget, r.Channel)
	assert.Equal(t, day+"T19:30:00Z", r.End, "default duration applies")
}

func TestExportsAndDaySheet(t *testing.T) {
	f := newAPIFixture(t)
	day := serviceDay()
	require.Equal(t, http.StatusCreated, f.createReservation("a", day+"T12:00:00Z", day+"T13:00:00Z", 2).Code)
	auth := map[string]string{"Authorization": f.staff}

	w := f.do(http.MethodGet, "/api/v1/guests/export?format=csv", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, services.ContentTypeCSV, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "guests.csv")
	assert.Contains(t, w.Body.String(), "Ada Lovelace")

	w = f.do(http.MethodGet, "/api/v1/analytics/export?format=pdf&from="+day+"&to="+day, nil, auth)
	assertError(t, w, http.StatusBadRequest, utils.CodeValidation)

	w = f.do(http.MethodGet, "/api/v1/analytics/export?format=xlsx&from="+day+"&to="+day, nil, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, services.ContentTypeXLSX, w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	w = f.do(http.MethodGet, "/api/v1/analytics/day-sheet?date="+day, nil, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
}

func TestUnknownRouteAndCORS(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(http.MethodGet, "/nope", nil, nil)
	assertError(t, w, http.StatusNotFound, utils.CodeNotFound)

	w = f.do(http.MethodGet, "/healthz", nil, map[string]string{"Origin": "https://evil.example.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}
