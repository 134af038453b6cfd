package middlewares

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-dashboard/config"
	"github.com/yeremiapane/restaurant-dashboard/models"
	"github.com/yeremiapane/restaurant-dashboard/testutil"
	"github.com/yeremiapane/restaurant-dashboard/utils"
)

var authCfg = config.AuthConfig{JWTSecret: "test-secret", Audience: "authenticated"}

func init() {
	gin.SetMode(gin.TestMode)
}

func token(t *testing.T, secret, userID string) string {
	t.Helper()
	tok, err := utils.GenerateToken([]byte(secret), userID, userID+"@example.com", "authenticated", time.Hour)
	require.NoError(t, err)
	return tok
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) utils.ErrorBody {
	t.Helper()
	var body utils.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestAuthMiddleware(t *testing.T) {
	db := testutil.NewDB(t)
	first := testutil.CreateTenant(t, db, "first")
	second := testutil.CreateTenant(t, db, "second")
	testutil.AddMember(t, db, first.ID, "user-1", models.RoleOwner)
	testutil.AddMember(t, db, second.ID, "user-1", models.RoleStaff)
	testutil.AddMember(t, db, first.ID, "user-2", models.RoleStaff)

	r := gin.New()
	r.Use(RequestID())
	r.GET("/me", AuthMiddleware(db, authCfg), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tenant": TenantID(c), "user": UserID(c), "role": c.GetString(RoleKey)})
	})

	tests := []struct {
		name   string
		header string
		tenant string
		status int
		code   string
	}{
		{"missing header", "", "", http.StatusUnauthorized, utils.CodeAuthRequired},
		{"not bearer", "Basic abc", "", http.StatusUnauthorized, utils.CodeAuthInvalid},
		{"bad signature", "Bearer " + token(t, "other-secret", "user-1"), "", http.StatusUnauthorized, utils.CodeAuthInvalid},
		{"no membership", "Bearer " + token(t, authCfg.JWTSecret, "stranger"), "", http.StatusNotFound, utils.CodeTenantNotFound},
		{"foreign tenant requested", "Bearer " + token(t, authCfg.JWTSecret, "user-2"), second.ID, http.StatusNotFound, utils.CodeTenantNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.tenant != "" {
				req.Header.Set(TenantHeader, tt.tenant)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, w.Header().Get(RequestIDHeader), body.RequestID)
		})
	}

	t.Run("selects requested tenant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, authCfg.JWTSecret, "user-1"))
		req.Header.Set(TenantHeader, second.ID)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var got map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, second.ID, got["tenant"])
		assert.Equal(t, "user-1", got["user"])
		assert.Equal(t, models.RoleStaff, got["role"])
	})

	t.Run("inactive tenant is skipped", func(t *testing.T) {
		require.NoError(t, db.Model(first).Update("status", models.TenantStatusInactive).Error)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, authCfg.JWTSecret, "user-1"))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), second.ID)
	})
}

func TestWebSocketAuthMiddleware(t *testing.T) {
	db := testutil.NewDB(t)
	tenant := testutil.CreateTenant(t, db, "bistro")
	testutil.AddMember(t, db, tenant.ID, "user-1", models.RoleOwner)

	r := gin.New()
	r.GET("/ws", WebSocketAuthMiddleware(db, authCfg), func(c *gin.Context) {
		c.String(http.StatusOK, TenantID(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token="+token(t, authCfg.JWTSecret, "user-1"), nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tenant.ID, w.Body.String())
}

func TestRoleCheck(t *testing.T) {
	r := gin.New()
	r.GET("/admin", func(c *gin.Context) { c.Set(RoleKey, c.Query("role")) }, RoleCheck(models.RoleOwner, models.RoleManager), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for role, want := range map[string]int{
		models.RoleOwner:   http.StatusNoContent,
		models.RoleManager: http.StatusNoContent,
		models.RoleStaff:   http.StatusForbidden,
		"":                 http.StatusUnauthorized,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin?role="+role, nil))
		assert.Equal(t, want, w.Code, role)
	}
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.POST("/write", NewRateLimiter(0.001, 2).RateLimit(), func(c *gin.Context) { c.Status(http.StatusCreated) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/write", nil))
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			assert.Equal(t, utils.CodeRateLimited, decodeError(t, w).Code)
		}
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
}

func TestRecoveryAndNoRoute(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.NoRoute(NoRoute)
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, utils.CodeInternal, body.Code)
	assert.NotContains(t, body.Message, "boom")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, utils.CodeNotFound, decodeError(t, w).Code)
}

func TestCORSAllowList(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddlewares(config.CORSConfig{
		AllowOrigins:     []string{"https://app.example.com"},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           1,
	}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
