package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/yeremiapane/restaurant-dashboard/utils"
	"gorm.io/gorm"
)

type HealthController struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewHealthController(db *gorm.DB, client *redis.Client) *HealthController {
	return &HealthController{db: db, redis: client}
}

// Healthz pings the database and, when configured, Redis.
func (hc *HealthController) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"database": "ok"}
	status := http.StatusOK

	sqlDB, err := hc.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		checks["database"] = "unavailable"
		status = http.StatusServiceUnavailable
		utils.ErrorLogger.WithError(err).Error("database health check failed")
	}

	if hc.redis != nil {
		checks["redis"] = "ok"
		if err := hc.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unavailable"
			status = http.StatusServiceUnavailable
			utils.ErrorLogger.WithError(err).Error("redis health check failed")
		}
	}

	utils.RespondData(c, status, checks, gin.H{"time": time.Now().UTC().Format(time.RFC3339)})
}
