package utils

import "time"

// Application Constants
const (
	AppName    = "GeoWatch"
	AppVersion = "1.0.0"

	DefaultTimeZone = "UTC"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1

	// Geofence
	DefaultViolationCooldown = 5 * time.Minute
	DefaultDispatchTimeout   = 10 * time.Second
	DefaultLockTTL           = 10 * time.Second
	DefaultGeofenceCacheTTL  = 30 * time.Second

	JWTAccessTokenTTL = 24 * time.Hour
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error Messages
const (
	ErrInvalidToken     = "invalid token"
	ErrInvalidInput     = "invalid input"
	ErrInternalServer   = "internal server error"
	ErrUnauthorized     = "unauthorized"
	ErrForbidden        = "forbidden"
	ErrNotFound         = "not found"
	ErrValidationFailed = "validation failed"
	ErrTooManyRequests  = "too many requests"
)

// Cache Keys
const (
	CacheLockPrefix         = "lock:"
	CacheAlertChannelPrefix = "geofence:alerts:"
	CacheGeofencePrefix     = "geofences:session:"
)

// Geographic Constants
const (
	EarthRadiusMeters = 6371000.0
)
