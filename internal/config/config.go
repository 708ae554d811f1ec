package config

import (
	"os"
	"strconv"
	"strings"

	_ "github.com/joho/godotenv/autoload"
)

// Config holds environment driven configuration values. Secrets have no
// in-code defaults and must come from the environment or a .env file.
type Config struct {
	Port      string
	GinMode   string
	JWTSecret string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	AllowedOrigins []string

	AuthRatePerMinute int

	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// Load reads the configuration from the environment. Call once during boot.
func Load() Config {
	return Config{
		Port:      getenv("PORT", "8080"),
		GinMode:   getenv("GIN_MODE", "debug"),
		JWTSecret: os.Getenv("JWT_SECRET"),

		DBHost:     getenv("DB_HOST", "localhost"),
		DBPort:     getenv("DB_PORT", "5432"),
		DBUser:     getenv("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getenv("DB_NAME", "lireddit"),
		DBSSLMode:  getenv("DB_SSLMODE", "disable"),

		AllowedOrigins: splitList(getenv("ALLOWED_ORIGINS", "*")),

		AuthRatePerMinute: getint("AUTH_RATE_PER_MINUTE", 30),

		LogLevel:      getenv("LOG_LEVEL", "info"),
		LogPath:       os.Getenv("LOG_PATH"),
		LogMaxSizeMB:  getint("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getint("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays: getint("LOG_MAX_AGE_DAYS", 7),
		LogCompress:   getbool("LOG_COMPRESS", false),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getbool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
