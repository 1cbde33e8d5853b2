package config

import (
	"time"
)

const (
	DatabaseDriverMongo  = "mongodb"
	DatabaseDriverSQLite = "sqlite"
	DatabaseDriverMemory = "memory"
)

type DatabaseConfig struct {
	Driver         string
	URI            string
	Database       string
	MaxPoolSize    int
	MinPoolSize    int
	ConnectTimeout time.Duration
	SocketTimeout  time.Duration
	SQLitePath     string
	// MemorySeed is a YAML fixture of sessions and geofences loaded into the
	// memory driver at startup.
	MemorySeed string
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Driver:         getEnv("DATABASE_DRIVER", DatabaseDriverMongo),
		URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017/geowatch"),
		Database:       getEnv("MONGODB_DATABASE", "geowatch"),
		MaxPoolSize:    getEnvAsInt("MONGODB_MAX_POOL_SIZE", 100),
		MinPoolSize:    getEnvAsInt("MONGODB_MIN_POOL_SIZE", 5),
		ConnectTimeout: getEnvAsDuration("MONGODB_CONNECT_TIMEOUT", 10*time.Second),
		SocketTimeout:  getEnvAsDuration("MONGODB_SOCKET_TIMEOUT", 30*time.Second),
		SQLitePath:     getEnv("SQLITE_PATH", "data/geowatch.db"),
		MemorySeed:     getEnv("DATABASE_MEMORY_SEED", ""),
	}
}
