// Package app is the composition root: it wires storage, the alerting
// engine, and the admin HTTP server from the deployment configuration.
package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/upsurgeiq/creditwatch/internal/alerts"
	"github.com/upsurgeiq/creditwatch/internal/config"
	"github.com/upsurgeiq/creditwatch/internal/db"
	adminapi "github.com/upsurgeiq/creditwatch/internal/http/api/admin"
	"github.com/upsurgeiq/creditwatch/internal/ledger"
	"github.com/upsurgeiq/creditwatch/internal/logging"
	"github.com/upsurgeiq/creditwatch/internal/mailer"
	"github.com/upsurgeiq/creditwatch/internal/models"
	"github.com/upsurgeiq/creditwatch/internal/security"
	internalsettings "github.com/upsurgeiq/creditwatch/internal/settings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(config.ResolveConfigPath(configPath))
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// Run boots the service and blocks until ctx is cancelled.
func Run(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(config.ResolveConfigPath(configPath))
	if errLoad != nil {
		return errLoad
	}
	logging.Setup(cfg.Log)

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := internalsettings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		return errRefresh
	}

	if errSeed := seedAdmin(ctx, conn, cfg.Bootstrap); errSeed != nil {
		return errSeed
	}

	notifyEmail := internalsettings.StringValue(internalsettings.AlertNotifyEmailKey, cfg.Bootstrap.NotifyEmail)
	if errSeed := alerts.EnsureDefaultThresholds(ctx, conn, notifyEmail); errSeed != nil {
		return errSeed
	}

	smtpMailer := mailer.NewSMTP(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		Timeout:  time.Duration(cfg.SMTP.TimeoutSeconds) * time.Second,
	})

	creditLedger := ledger.New(conn)
	checker := alerts.NewChecker(conn, creditLedger, alerts.NewNotifier(smtpMailer))
	scheduler := alerts.NewScheduler(checker)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	adminapi.RegisterAdminRoutes(engine, conn, cfg.JWT, creditLedger, scheduler)

	server := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("admin server listening on %s", cfg.Server.Listen)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case errServe := <-errCh:
		if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return errServe
		}
		return nil
	}

	scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return errShutdown
	}
	log.Info("shutdown complete")
	return nil
}

// seedAdmin creates the bootstrap admin account when the admins table is
// empty and credentials are configured. Later starts never touch passwords.
func seedAdmin(ctx context.Context, conn *gorm.DB, cfg config.BootstrapConfig) error {
	username := strings.TrimSpace(cfg.AdminUsername)
	password := strings.TrimSpace(cfg.AdminPassword)
	if username == "" || password == "" {
		return nil
	}

	var count int64
	if errCount := conn.WithContext(ctx).Model(&models.Admin{}).Count(&count).Error; errCount != nil {
		return errCount
	}
	if count > 0 {
		return nil
	}

	hashed, errHash := security.HashPassword(password)
	if errHash != nil {
		return errHash
	}
	now := time.Now().UTC()
	admin := models.Admin{
		Username:  username,
		Password:  hashed,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := conn.WithContext(ctx).Create(&admin).Error; errCreate != nil {
		return errCreate
	}
	log.Infof("seeded bootstrap admin %q", username)
	return nil
}
