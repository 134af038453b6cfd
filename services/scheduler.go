package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-dashboard/models"
	"github.com/yeremiapane/restaurant-dashboard/utils"
	"gorm.io/gorm"
)

const scheduledJobTimeout = 2 * time.Minute

type SchedulerOptions struct {
	KPIRefreshSpec string
	ReminderSpec   string
}

// Scheduler runs the periodic jobs: KPI cache warm-up and next-day reminder emails.
type Scheduler struct {
	db            *gorm.DB
	cron          *cron.Cron
	kpis          *KPIService
	notifications *NotificationService
	opts          SchedulerOptions
	now           func() time.Time
	isRunning     bool
}

func NewScheduler(db *gorm.DB, kpis *KPIService, notifications *NotificationService, opts SchedulerOptions) *Scheduler {
	logger := cron.PrintfLogger(utils.InfoLogger)
	return &Scheduler{
		db:            db,
		cron:          cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		kpis:          kpis,
		notifications: notifications,
		opts:          opts,
		now:           time.Now,
	}
}

func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Scheduler) Start() error {
	if s.isRunning {
		return fmt.Errorf("scheduler already running")
	}

	if s.opts.KPIRefreshSpec != "" {
		if _, err := s.cron.AddFunc(s.opts.KPIRefreshSpec, func() { s.runJob("kpi_refresh", s.RefreshKPIs) }); err != nil {
			return fmt.Errorf("invalid KPI refresh schedule %q: %w", s.opts.KPIRefreshSpec, err)
		}
	}
	if s.opts.ReminderSpec != "" {
		if _, err := s.cron.AddFunc(s.opts.ReminderSpec, func() { s.runJob("reminders", s.SendReminders) }); err != nil {
			return fmt.Errorf("invalid reminder schedule %q: %w", s.opts.ReminderSpec, err)
		}
	}

	s.cron.Start()
	s.isRunning = true
	utils.InfoLogger.WithFields(logrus.Fields{
		"kpi_refresh": s.opts.KPIRefreshSpec,
		"reminders":   s.opts.ReminderSpec,
	}).Info("scheduler started")
	return nil
}

// Stop waits for running jobs to return.
func (s *Scheduler) Stop() {
	if !s.isRunning {
		return
	}
	<-s.cron.Stop().Done()
	s.isRunning = false
	utils.InfoLogger.Info("scheduler stopped")
}

func (s *Scheduler) runJob(name string, job func(ctx context.Context) (int, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), scheduledJobTimeout)
	defer cancel()

	started := time.Now()
	n, err := job(ctx)
	entry := utils.InfoLogger.WithFields(logrus.Fields{
		"job":      name,
		"items":    n,
		"duration": time.Since(started).String(),
	})
	if err != nil {
		utils.ErrorLogger.WithField("job", name).WithError(err).Error("scheduled job failed")
		return
	}
	entry.Info("scheduled job finished")
}

// RefreshKPIs recomputes today's KPIs of every active tenant.
func (s *Scheduler) RefreshKPIs(ctx context.Context) (int, error) {
	tenants, err := s.activeTenants(ctx)
	if err != nil {
		return 0, err
	}
	refreshed := 0
	for i := range tenants {
		today := s.now().In(tenants[i].Location()).Format("2006-01-02")
		if _, err := s.kpis.Refresh(ctx, tenants[i].ID, today); err != nil {
			utils.ErrorLogger.WithField("tenant_id", tenants[i].ID).WithError(err).Warn("kpi refresh failed")
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

// SendReminders queues a reminder for every confirmed booking of the tenant's next local day
// that has a guest email.
func (s *Scheduler) SendReminders(ctx context.Context) (int, error) {
	tenants, err := s.activeTenants(ctx)
	if err != nil {
		return 0, err
	}

	queued := 0
	for i := range tenants {
		tenant := &tenants[i]
		tomorrow := s.now().In(tenant.Location()).AddDate(0, 0, 1).Format("2006-01-02")
		from, to, err := tenant.DayBounds(tomorrow)
		if err != nil {
			continue
		}

		var bookings []models.Booking
		if err := s.db.WithContext(ctx).
			Preload("Table").
			Where("tenant_id = ? AND status = ? AND guest_email <> '' AND start_at >= ? AND start_at < ?",
				tenant.ID, models.BookingStatusConfirmed, from, to).
			Find(&bookings).Error; err != nil {
			return queued, err
		}

		for j := range bookings {
			if err := s.notifications.QueueReminder(ctx, tenant, &bookings[j]); err != nil {
				utils.ErrorLogger.WithFields(logrus.Fields{
					"tenant_id":  tenant.ID,
					"booking_id": bookings[j].ID,
				}).WithError(err).Warn("failed to queue reminder")
				continue
			}
			queued++
		}
	}
	return queued, nil
}

func (s *Scheduler) activeTenants(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	if err := s.db.WithContext(ctx).Where("status = ?", models.TenantStatusActive).Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}
