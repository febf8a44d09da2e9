// Package admin wires the operator-facing management API.
package admin

import (
	"net/http"
	"strings"

	"github.com/upsurgeiq/creditwatch/internal/alerts"
	"github.com/upsurgeiq/creditwatch/internal/config"
	"github.com/upsurgeiq/creditwatch/internal/http/api/admin/handlers"
	"github.com/upsurgeiq/creditwatch/internal/ledger"
	"github.com/upsurgeiq/creditwatch/internal/models"
	"github.com/upsurgeiq/creditwatch/internal/security"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers the management API under /v0/admin. Login and
// the health probe are public; everything else requires an admin JWT.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, l *ledger.Ledger, scheduler *alerts.Scheduler) {
	if r == nil || db == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	group := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	group.POST("/auth/login", authHandler.Login)

	authed := group.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg))

	thresholdHandler := handlers.NewThresholdHandler(db)
	authed.GET("/alert-thresholds", thresholdHandler.List)
	authed.POST("/alert-thresholds", thresholdHandler.Create)
	authed.GET("/alert-thresholds/:id", thresholdHandler.Get)
	authed.PUT("/alert-thresholds/:id", thresholdHandler.Update)
	authed.DELETE("/alert-thresholds/:id", thresholdHandler.Delete)
	authed.PUT("/alert-thresholds/:id/enabled", thresholdHandler.SetEnabled)

	historyHandler := handlers.NewAlertHistoryHandler(db)
	authed.GET("/alert-history", historyHandler.List)

	usageHandler := handlers.NewUsageHandler(db, l)
	authed.GET("/usage", usageHandler.List)
	authed.GET("/usage/summary", usageHandler.Summary)

	schedulerHandler := handlers.NewSchedulerHandler(scheduler)
	authed.GET("/scheduler", schedulerHandler.Status)
	authed.POST("/scheduler/check", schedulerHandler.RunNow)

	settingsHandler := handlers.NewSettingsHandler(db)
	authed.GET("/settings", settingsHandler.Get)
	authed.PUT("/settings", settingsHandler.Update)
}

// adminAuthMiddleware validates admin JWTs and loads the admin into context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin account is disabled"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Next()
	}
}
