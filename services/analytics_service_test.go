package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"github.com/yeremiapane/restaurant-dashboard/models"
	"github.com/yeremiapane/restaurant-dashboard/testutil"
	"github.com/yeremiapane/restaurant-dashboard/utils"
	"gorm.io/gorm"
)

func seedAnalytics(t *testing.T) (*gorm.DB, *models.Tenant) {
	t.Helper()
	db := testutil.NewDB(t)
	tenant := testutil.CreateTenant(t, db, "bistro")
	table := testutil.CreateTable(t, db, tenant.ID, "T1", 4)

	day1 := time.Date(2030, 6, 10, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	a := testutil.CreateBooking(t, db, tenant.ID, table.ID, day1.Add(12*time.Hour), 60, models.BookingStatusCompleted)
	require.NoError(t, db.Model(a).Updates(map[string]interface{}{"party_size": 4, "guest_name": "Ada", "guest_phone": "+1"}).Error)
	b := testutil.CreateBooking(t, db, tenant.ID, table.ID, day1.Add(19*time.Hour), 60, models.BookingStatusCancelled)
	require.NoError(t, db.Model(b).Updates(map[string]interface{}{"channel": models.ChannelWidget, "guest_name": "Ada", "guest_phone": "+1"}).Error)
	c := testutil.CreateBooking(t, db, tenant.ID, table.ID, day2.Add(19*time.Hour), 60, models.BookingStatusNoShow)
	require.NoError(t, db.Model(c).Updates(map[string]interface{}{"guest_name": "Bob", "guest_email": "bob@example.com"}).Error)
	d := testutil.CreateBooking(t, db, tenant.ID, table.ID, day2.Add(20*time.Hour+30*time.Minute), 60, models.BookingStatusConfirmed)
	require.NoError(t, db.Model(d).Updates(map[string]interface{}{"party_size": 3, "guest_name": "Ada", "guest_phone": "+1", "special_requests": "window seat"}).Error)

	// outside the range
	testutil.CreateBooking(t, db, tenant.ID, table.ID, day2.AddDate(0, 0, 5), 60, models.BookingStatusConfirmed)
	return db, tenant
}

func TestAnalyticsRange(t *testing.T) {
	db, tenant := seedAnalytics(t)
	svc := NewAnalyticsService(db)

	report, err := svc.Range(context.Background(), tenant.ID, "2030-06-10", "2030-06-12")
	require.NoError(t, err)

	require.Len(t, report.Days, 3)
	assert.Equal(t, AnalyticsDay{Date: "2030-06-10", Bookings: 2, Covers: 4, Cancellations: 1}, report.Days[0])
	assert.Equal(t, AnalyticsDay{Date: "2030-06-11", Bookings: 2, Covers: 3, NoShows: 1}, report.Days[1])
	assert.Equal(t, AnalyticsDay{Date: "2030-06-12"}, report.Days[2])

	assert.Equal(t, 4, report.Totals.Bookings)
	assert.Equal(t, 7, report.Totals.Covers)
	assert.Equal(t, 3.5, report.Totals.AveragePartySize)
	assert.Equal(t, 25.0, report.Totals.CancellationRate)
	assert.Equal(t, 25.0, report.Totals.NoShowRate)

	require.Len(t, report.Channels, 2)
	assert.Equal(t, ChannelCount{Channel: models.ChannelDashboard, Bookings: 3}, report.Channels[0])
	assert.Equal(t, []HourCount{{Hour: 12, Bookings: 1}, {Hour: 19, Bookings: 2}, {Hour: 20, Bookings: 1}}, report.Hours)
}

func TestAnalyticsRange_Validation(t *testing.T) {
	db, tenant := seedAnalytics(t)
	svc := NewAnalyticsService(db)
	ctx := context.Background()

	_, err := svc.Range(ctx, tenant.ID, "", "2030-06-12")
	assert.True(t, utils.HasCode(err, utils.CodeMissingRequiredField))
	_, err = svc.Range(ctx, tenant.ID, "2030-06-12", "2030-06-10")
	assert.True(t, utils.HasCode(err, utils.CodeValidation))
	_, err = svc.Range(ctx, tenant.ID, "2029-01-01", "2030-06-10")
	assert.True(t, utils.HasCode(err, utils.CodeValidation))
	_, err = svc.Range(ctx, tenant.ID, "yesterday", "2030-06-10")
	assert.True(t, utils.HasCode(err, utils.CodeValidation))
}

func TestGuestProfiles(t *testing.T) {
	db, tenant := seedAnalytics(t)
	svc := NewGuestService(db)

	guests, err := svc.List(context.Background(), tenant.ID, "")
	require.NoError(t, err)
	require.Len(t, guests, 3)

	ada := guests[0]
	assert.Equal(t, "phone:+1", ada.Key)
	assert.Equal(t, "Ada", ada.Name)
	assert.Equal(t, 3, ada.Bookings)
	assert.Equal(t, 1, ada.Visits)
	assert.Equal(t, 4, ada.Covers)
	assert.Equal(t, 1, ada.Cancellations)
	assert.Equal(t, "2030-06-10T12:00:00Z", ada.LastVisit)

	filtered, err := svc.List(context.Background(), tenant.ID, "BOB@")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, 1, filtered[0].NoShows)
	assert.Equal(t, "email:bob@example.com", filtered[0].Key)
}

func TestWriteAnalyticsCSV(t *testing.T) {
	db, tenant := seedAnalytics(t)
	report, err := NewAnalyticsService(db).Range(context.Background(), tenant.ID, "2030-06-10", "2030-06-11")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteAnalytics(&buf, ExportFormatCSV, report))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Date,Bookings,Covers,Cancellations,No-shows", lines[0])
	assert.Equal(t, "2030-06-10,2,4,1,0", lines[1])
	assert.Equal(t, "Total,4,7,1,1", lines[3])
}

func TestWriteGuestsXLSX(t *testing.T) {
	db, tenant := seedAnalytics(t)
	guests, err := NewGuestService(db).List(context.Background(), tenant.ID, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteGuests(&buf, ExportFormatXLSX, guests))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("Guests", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Name", header)
	name, err := f.GetCellValue("Guests", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Ada", name)
	bookings, err := f.GetCellValue("Guests", "D2")
	require.NoError(t, err)
	assert.Equal(t, "3", bookings)
}

func TestWriteDaySheet(t *testing.T) {
	db, tenant := seedAnalytics(t)
	svc := NewAnalyticsService(db)

	sheetTenant, bookings, err := svc.DaySheet(context.Background(), tenant.ID, "2030-06-10")
	require.NoError(t, err)
	require.Len(t, bookings, 1, "cancelled bookings are left off the sheet")
	assert.Equal(t, "T1", bookings[0].Table.Name)

	var buf bytes.Buffer
	require.NoError(t, WriteDaySheet(&buf, sheetTenant, "2030-06-10", bookings))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}
