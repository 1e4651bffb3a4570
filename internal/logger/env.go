package logger

import (
	"log/slog"
	"os"
	"strings"
)

// ConfigFromEnv reads LOG_* variables through getenv. service is used when
// LOG_SERVICE and SERVICE_NAME are both unset.
func ConfigFromEnv(getenv func(string) string, service string) Config {
	return Config{
		Level:   getenvDefault(getenv, "LOG_LEVEL", "info"),
		Format:  getenvDefault(getenv, "LOG_FORMAT", "json"),
		Service: firstNonEmpty(getenv("LOG_SERVICE"), getenv("SERVICE_NAME"), service),
		Env:     firstNonEmpty(getenv("LOG_ENV"), getenv("ENV"), getenv("APP_ENV")),
		Version: getenv("VERSION"),
		Output:  getenvDefault(getenv, "LOG_OUTPUT", "stdout"),
	}
}

func InitFromEnv(service string) *slog.Logger {
	return Init(ConfigFromEnv(os.Getenv, service))
}

func getenvDefault(getenv func(string) string, key, def string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
