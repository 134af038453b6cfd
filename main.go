package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"github.com/yeremiapane/restaurant-dashboard/config"
	"github.com/yeremiapane/restaurant-dashboard/database"
	"github.com/yeremiapane/restaurant-dashboard/realtime"
	"github.com/yeremiapane/restaurant-dashboard/router"
	"github.com/yeremiapane/restaurant-dashboard/services"
	"github.com/yeremiapane/restaurant-dashboard/utils"
	"gorm.io/gorm"
)

const shutdownTimeout = 15 * time.Second

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "restaurant-dashboard",
	Short: "Multi-tenant restaurant dashboard backend",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return utils.InitLogger(utils.LogOptions{
			Level:      cfg.Log.Level,
			Format:     cfg.Log.Format,
			FilePath:   cfg.Log.FilePath,
			MaxSize:    cfg.Log.MaxSize,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAge,
			Compress:   cfg.Log.Compress,
		})
	},
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, notification worker and scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the schema and database constraints, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		closeDatabase(db)
		return nil
	},
}

var (
	devTokenUser  string
	devTokenEmail string
	devTokenTTL   time.Duration
)

// devTokenCmd signs a token with the configured secret for local testing; production tokens
// come from the auth provider.
var devTokenCmd = &cobra.Command{
	Use:   "dev-token",
	Short: "Print a signed access token for local development",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Auth.JWTSecret == "" {
			return errors.New("JWT_SECRET is not set")
		}
		token, err := utils.GenerateToken([]byte(cfg.Auth.JWTSecret), devTokenUser, devTokenEmail, cfg.Auth.Audience, devTokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	devTokenCmd.Flags().StringVar(&devTokenUser, "user", "", "subject (user id) of the token")
	devTokenCmd.Flags().StringVar(&devTokenEmail, "email", "", "email claim")
	devTokenCmd.Flags().DurationVar(&devTokenTTL, "ttl", time.Hour, "token lifetime")
	devTokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(serveCmd, migrateCmd, devTokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openDatabase() (*gorm.DB, error) {
	db, err := config.InitDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		closeDatabase(db)
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return db, nil
}

func closeDatabase(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	redisClient, err := config.InitRedis(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		utils.InfoLogger.WithField("addr", cfg.Redis.Addr).Info("redis connected")
	} else {
		utils.InfoLogger.Info("redis disabled, using in-process lock, queue and no KPI cache")
	}

	deps, queue := buildServices(db, redisClient)

	hubCtx, cancelHub := context.WithCancel(context.Background())
	defer cancelHub()
	go deps.Hub.Run(hubCtx)

	var sender services.EmailSender = services.LogEmailSender{}
	if cfg.Notifier.APIBaseURL != "" {
		sender = services.NewAPIEmailSender(cfg.Notifier.APIBaseURL, cfg.Notifier.APIKey, cfg.Notifier.FromAddress, cfg.Notifier.Timeout)
	}
	worker := services.NewNotificationWorker(queue, sender, cfg.Notifier.Workers, cfg.Notifier.Timeout)
	worker.Start(context.Background())

	scheduler := services.NewScheduler(db, deps.KPIs, deps.Notifications, services.SchedulerOptions{
		KPIRefreshSpec: cfg.Scheduler.KPIRefreshSpec,
		ReminderSpec:   cfg.Scheduler.ReminderSpec,
	})
	if err := scheduler.Start(); err != nil {
		worker.Stop()
		return err
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.SetupRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := serveHTTP(ctx, server, shutdownTimeout)
	scheduler.Stop()
	worker.Stop()
	if mq, ok := queue.(*services.MemoryQueue); ok {
		mq.Close()
	}
	if serveErr != nil {
		return fmt.Errorf("server failed: %w", serveErr)
	}
	utils.InfoLogger.Info("Server exited")
	return nil
}

// serveHTTP runs server until ctx is done or it fails to listen, then shuts it down.
// The listen error, if any, is returned.
func serveHTTP(ctx context.Context, server *http.Server, timeout time.Duration) error {
	serverErr := make(chan error, 1)
	go func() {
		utils.InfoLogger.Infof("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var listenErr error
	select {
	case listenErr = <-serverErr:
		if listenErr != nil {
			utils.ErrorLogger.WithError(listenErr).Error("server failed")
		}
	case <-ctx.Done():
		utils.InfoLogger.Info("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		utils.ErrorLogger.WithError(err).Error("server forced to shutdown")
	}
	return listenErr
}

// buildServices wires Redis-backed implementations when a client is available and
// in-process ones otherwise.
func buildServices(db *gorm.DB, redisClient *redis.Client) (router.Dependencies, services.JobQueue) {
	prefix := cfg.Redis.Prefix

	var (
		locker services.TableLocker = services.NewLocalLocker(cfg.Reservation.LockTTL)
		cache  services.KPICache
		queue  services.JobQueue = services.NewMemoryQueue(1000)
	)
	if redisClient != nil {
		locker = services.NewRedisLocker(redisClient, prefix, cfg.Reservation.LockTTL)
		cache = services.NewRedisKPICache(redisClient, prefix, cfg.Reservation.KPICacheTTL)
		queue = services.NewRedisQueue(redisClient, prefix)
	}

	hub := realtime.NewHub(cfg.CORS.AllowOrigins, redisClient, prefix)
	kpis := services.NewKPIService(db, cache, hub)
	notifications := services.NewNotificationService(db, queue)

	reservations := services.NewReservationService(db, locker, services.ReservationOptions{
		WindowPadding:          cfg.Reservation.WindowPadding,
		DefaultDurationMinutes: cfg.Reservation.DefaultDurationMinutes,
		MinPartySize:           cfg.Reservation.MinPartySize,
		MaxPartySize:           cfg.Reservation.MaxPartySize,
	})
	reservations.AddObserver(services.NewRealtimeObserver(hub))
	reservations.AddObserver(kpis)
	reservations.AddObserver(notifications)

	return router.Dependencies{
		Config:        cfg,
		DB:            db,
		Redis:         redisClient,
		Hub:           hub,
		Reservations:  reservations,
		KPIs:          kpis,
		Tables:        services.NewTableService(db, hub),
		Analytics:     services.NewAnalyticsService(db),
		Guests:        services.NewGuestService(db),
		Catering:      services.NewCateringService(db, hub, notifications),
		Notifications: notifications,
		Widgets:       services.NewWidgetService(db, reservations),
	}, queue
}
