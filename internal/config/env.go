package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var secretsDir = "/etc/secrets"

func GetEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func ParseIntEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func ParseBoolEnv(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// ReadSecret returns the content of a mounted secret file, falling back
// to the environment variable derived from the secret name
// ("langsmith-api-key" -> LANGSMITH_API_KEY).
func ReadSecret(name string) string {
	data, err := os.ReadFile(filepath.Join(secretsDir, name))
	if err == nil {
		return strings.TrimRight(string(data), "\n")
	}
	envKey := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	return strings.TrimSpace(os.Getenv(envKey))
}
