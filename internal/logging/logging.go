// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/upsurgeiq/creditwatch/internal/config"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup applies level, format, and rotation settings to the global logger.
// With no file configured, output stays on stderr.
func Setup(cfg config.LogConfig) {
	level, errLevel := log.ParseLevel(strings.TrimSpace(cfg.Level))
	if errLevel != nil || cfg.Level == "" {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if file := strings.TrimSpace(cfg.File); file != "" {
		rotator := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		if rotator.MaxSize <= 0 {
			rotator.MaxSize = 100
		}
		log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	}
}
