package config

import (
	"time"

	"geowatch/internal/utils"
)

const (
	// TimezoneModeSchedule evaluates a schedule in its own timezone when it
	// names a loadable zone, falling back to APP_TIMEZONE.
	TimezoneModeSchedule = "schedule"
	// TimezoneModeEvaluator always evaluates in APP_TIMEZONE.
	TimezoneModeEvaluator = "evaluator"

	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

type GeofenceConfig struct {
	ViolationCooldown    time.Duration
	ScheduleTimezoneMode string
	DispatchTimeout      time.Duration
	LockBackend          string
	LockTTL              time.Duration
	PublishAlerts        bool
	CacheTTL             time.Duration // 0 disables the geofence cache
}

func loadGeofenceConfig() *GeofenceConfig {
	return &GeofenceConfig{
		ViolationCooldown:    getEnvAsDuration("GEOFENCE_VIOLATION_COOLDOWN", utils.DefaultViolationCooldown),
		ScheduleTimezoneMode: getEnv("GEOFENCE_SCHEDULE_TIMEZONE_MODE", TimezoneModeSchedule),
		DispatchTimeout:      getEnvAsDuration("GEOFENCE_DISPATCH_TIMEOUT", utils.DefaultDispatchTimeout),
		LockBackend:          getEnv("GEOFENCE_LOCK_BACKEND", LockBackendLocal),
		LockTTL:              getEnvAsDuration("GEOFENCE_LOCK_TTL", utils.DefaultLockTTL),
		PublishAlerts:        getEnvAsBool("GEOFENCE_PUBLISH_ALERTS", true),
		CacheTTL:             getEnvAsDuration("GEOFENCE_CACHE_TTL", utils.DefaultGeofenceCacheTTL),
	}
}
