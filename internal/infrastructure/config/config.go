package config

import (
	"os"
	"strconv"
)

type Config struct {
	Addr            string
	LogLevel        string
	CORSAllowOrigin string
	// Export envelope identity
	AppID          string
	FlutterVersion string
	Device         string
	// Profiling backend (Dart VM service). Empty disables enrichment.
	VMServiceURI string
	VMIsolateID  string
	// Session retention on the observer
	MaxSessions int
}

func FromEnv() Config {
	cfg := Config{
		Addr:            getEnv("ADDR", ":9234"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CORSAllowOrigin: getEnv("CORS_ALLOW_ORIGIN", "*"),
		AppID:           getEnv("APP_ID", ""),
		FlutterVersion:  getEnv("FLUTTER_VERSION", ""),
		Device:          getEnv("DEVICE", ""),
		VMServiceURI:    getEnv("VM_SERVICE_URI", ""),
		VMIsolateID:     getEnv("VM_ISOLATE_ID", ""),
	}
	cfg.MaxSessions = getEnvInt("MAX_SESSIONS", 500)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
