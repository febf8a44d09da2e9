package settings

// DB config keys and defaults for settings.
const (
	// AlertCheckIntervalSecondsKey controls the alert check cadence in seconds.
	AlertCheckIntervalSecondsKey = "ALERT_CHECK_INTERVAL_SECONDS"
	// AlertStartupDelaySecondsKey controls the delay before the first check after boot.
	AlertStartupDelaySecondsKey = "ALERT_STARTUP_DELAY_SECONDS"
	// AlertNotifyEmailKey is the fallback recipient for seeded thresholds.
	AlertNotifyEmailKey = "ALERT_NOTIFY_EMAIL"
	// DefaultAlertCheckIntervalSeconds is the fallback check cadence (hourly).
	DefaultAlertCheckIntervalSeconds = 3600
	// DefaultAlertStartupDelaySeconds is the fallback startup delay, chosen to
	// let startup-time migrations settle before the first cycle.
	DefaultAlertStartupDelaySeconds = 30
)
