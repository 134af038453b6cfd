package router

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/yeremiapane/restaurant-dashboard/config"
	"github.com/yeremiapane/restaurant-dashboard/controllers"
	"github.com/yeremiapane/restaurant-dashboard/middlewares"
	"github.com/yeremiapane/restaurant-dashboard/models"
	"github.com/yeremiapane/restaurant-dashboard/realtime"
	"github.com/yeremiapane/restaurant-dashboard/services"
	"github.com/yeremiapane/restaurant-dashboard/utils"
	"gorm.io/gorm"
)

// Dependencies are the wired services the HTTP layer serves.
type Dependencies struct {
	Config        *config.Config
	DB            *gorm.DB
	Redis         *redis.Client
	Hub           *realtime.Hub
	Reservations  *services.ReservationService
	KPIs          *services.KPIService
	Tables        *services.TableService
	Analytics     *services.AnalyticsService
	Guests        *services.GuestService
	Catering      *services.CateringService
	Notifications *services.NotificationService
	Widgets       *services.WidgetService
}

func SetupRouter(deps Dependencies) *gin.Engine {
	utils.RegisterJSONTagNames()

	r := gin.New()
	r.Use(middlewares.RequestID())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.Recovery())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(deps.Config.CORS))
	r.NoRoute(middlewares.NoRoute)

	authCfg := deps.Config.Auth
	writeLimiter := middlewares.NewRateLimiter(deps.Config.RateLimit.RequestsPerSecond, deps.Config.RateLimit.Burst)
	managers := middlewares.RoleCheck(models.RoleOwner, models.RoleManager)

	healthCtrl := controllers.NewHealthController(deps.DB, deps.Redis)
	reservationCtrl := controllers.NewReservationController(deps.Reservations, deps.KPIs)
	tableCtrl := controllers.NewTableController(deps.Tables)
	analyticsCtrl := controllers.NewAnalyticsController(deps.Analytics, deps.Guests)
	cateringCtrl := controllers.NewCateringController(deps.Catering)
	notificationCtrl := controllers.NewNotificationController(deps.Notifications)
	widgetCtrl := controllers.NewWidgetController(deps.Widgets)
	realtimeCtrl := controllers.NewRealtimeController(deps.Hub)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/healthz", healthCtrl.Healthz)

	widget := r.Group("/widget/v1")
	{
		widget.GET("/config/:slug", widgetCtrl.PublicConfig)
		widget.POST("/reservations", writeLimiter.RateLimit(), widgetCtrl.CreateReservation)
	}

	r.GET("/realtime/ws", middlewares.WebSocketAuthMiddleware(deps.DB, authCfg), realtimeCtrl.Connect)

	// ----------------------------------------------------------------
	//                      EDGE FUNCTION ROUTES
	// ----------------------------------------------------------------
	functions := r.Group("/functions/v1")
	functions.Use(middlewares.AuthMiddleware(deps.DB, authCfg))
	{
		functions.POST("/list-reservations", reservationCtrl.ListReservations)
		functions.POST("/create-reservation", writeLimiter.RateLimit(), reservationCtrl.CreateReservation)
		functions.GET("/get-kpis", reservationCtrl.GetKPIs)
		functions.POST("/get-kpis", reservationCtrl.GetKPIs)
	}

	// ----------------------------------------------------------------
	//                      DASHBOARD API
	// ----------------------------------------------------------------
	api := r.Group("/api/v1")
	api.Use(middlewares.AuthMiddleware(deps.DB, authCfg))
	{
		api.GET("/tables", tableCtrl.GetAllTables)
		api.GET("/tables/:id", tableCtrl.GetTableByID)
		api.POST("/tables", managers, tableCtrl.CreateTable)
		api.PUT("/tables/:id", managers, tableCtrl.UpdateTable)
		api.DELETE("/tables/:id", managers, tableCtrl.DeactivateTable)

		api.GET("/bookings/:id", reservationCtrl.GetBooking)
		api.PATCH("/bookings/:id/status", writeLimiter.RateLimit(), reservationCtrl.UpdateBookingStatus)

		api.GET("/guests", analyticsCtrl.GetGuests)
		api.GET("/guests/export", analyticsCtrl.ExportGuests)

		api.GET("/analytics", analyticsCtrl.GetAnalytics)
		api.GET("/analytics/export", analyticsCtrl.ExportAnalytics)
		api.GET("/analytics/day-sheet", analyticsCtrl.DaySheet)

		catering := api.Group("/catering")
		{
			catering.GET("/packages", cateringCtrl.GetPackages)
			catering.POST("/packages", managers, cateringCtrl.CreatePackage)
			catering.PUT("/packages/:id", managers, cateringCtrl.UpdatePackage)
			catering.GET("/orders", cateringCtrl.GetOrders)
			catering.POST("/orders", writeLimiter.RateLimit(), cateringCtrl.CreateOrder)
			catering.PATCH("/orders/:id/status", cateringCtrl.UpdateOrderStatus)
		}

		notifications := api.Group("/notifications", managers)
		{
			notifications.GET("/preferences", notificationCtrl.GetPreferences)
			notifications.PUT("/preferences", notificationCtrl.UpdatePreference)
			notifications.GET("/templates", notificationCtrl.GetTemplates)
			notifications.PUT("/templates", notificationCtrl.UpdateTemplate)
			notifications.POST("/templates/preview", notificationCtrl.PreviewTemplate)
		}

		widgetAdmin := api.Group("/widget", managers)
		{
			widgetAdmin.GET("", widgetCtrl.GetConfig)
			widgetAdmin.PUT("", widgetCtrl.UpdateConfig)
			widgetAdmin.POST("/rotate-key", widgetCtrl.RotateKey)
		}
	}

	return r
}
