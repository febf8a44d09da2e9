package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/upsurgeiq/creditwatch/internal/app"

	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	migrateOnly := flag.Bool("migrate", false, "run database migrations and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *migrateOnly {
		if errMigrate := app.Migrate(ctx, *configPath); errMigrate != nil {
			log.WithError(errMigrate).Error("migration failed")
			os.Exit(1)
		}
		log.Info("migrations complete")
		return
	}

	if errRun := app.Run(ctx, *configPath); errRun != nil {
		log.WithError(errRun).Error("server exited with error")
		os.Exit(1)
	}
}
