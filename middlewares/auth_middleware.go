package middlewares

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dashboard/config"
	"github.com/yeremiapane/restaurant-dashboard/models"
	"github.com/yeremiapane/restaurant-dashboard/utils"
	"gorm.io/gorm"
)

// Context keys set by the auth middlewares.
const (
	TenantIDKey = "tenant_id"
	UserIDKey   = "user_id"
	RoleKey     = "role"
)

// TenantHeader picks one tenant when a user belongs to several.
const TenantHeader = "X-Tenant-ID"

// AuthMiddleware verifies the bearer token and resolves the caller's tenant.
func AuthMiddleware(db *gorm.DB, cfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			utils.RespondError(c, utils.NewError(utils.CodeAuthRequired, "authorization header missing"))
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			utils.RespondError(c, utils.NewError(utils.CodeAuthInvalid, "authorization header must be a bearer token"))
			return
		}

		if err := authenticate(c, db, cfg, strings.TrimSpace(token)); err != nil {
			utils.RespondError(c, err)
			return
		}
		c.Next()
	}
}

// WebSocketAuthMiddleware reads the token from the query string; browsers cannot set headers
// on a websocket handshake.
func WebSocketAuthMiddleware(db *gorm.DB, cfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			utils.RespondError(c, utils.NewError(utils.CodeAuthRequired, "token query parameter missing"))
			return
		}
		if err := authenticate(c, db, cfg, token); err != nil {
			utils.RespondError(c, err)
			return
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, db *gorm.DB, cfg config.AuthConfig, token string) error {
	claims, err := utils.ParseToken([]byte(cfg.JWTSecret), token, utils.VerifyOptions{
		Audience: cfg.Audience,
		Issuer:   cfg.Issuer,
	})
	if err != nil {
		return utils.NewError(utils.CodeAuthInvalid, "invalid or expired token")
	}

	membership, err := resolveMembership(c, db, claims.Subject, c.GetHeader(TenantHeader))
	if err != nil {
		return err
	}

	c.Set(UserIDKey, claims.Subject)
	c.Set(TenantIDKey, membership.TenantID)
	c.Set(RoleKey, membership.Role)
	return nil
}

func resolveMembership(c *gin.Context, db *gorm.DB, userID, requested string) (*models.UserTenant, error) {
	query := db.WithContext(c.Request.Context()).
		Joins("JOIN tenants ON tenants.id = user_tenants.tenant_id AND tenants.status = ?", models.TenantStatusActive).
		Where("user_tenants.user_id = ?", userID)
	if requested != "" {
		query = query.Where("user_tenants.tenant_id = ?", requested)
	}

	var membership models.UserTenant
	err := query.Order("user_tenants.created_at ASC").First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewError(utils.CodeTenantNotFound, "no tenant is linked to this user")
	}
	if err != nil {
		return nil, utils.DatabaseError(err)
	}
	return &membership, nil
}

// TenantID returns the tenant resolved by the auth middleware.
func TenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}

func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
