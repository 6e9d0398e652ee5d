// config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config contains application configuration parameters
type Config struct {
	Port             string `json:"port"`
	DBDriver         string `json:"db_driver"`
	DatabaseURL      string `json:"database_url"`
	CRMBotToken      string `json:"crm_bot_token"`
	ShopBotToken     string `json:"shop_bot_token"`
	LoginBotToken    string `json:"login_bot_token"`
	LoginBotUsername string `json:"login_bot_username"`
	SessionSecret    string `json:"session_secret"`
	SecureCookies    bool   `json:"secure_cookies"`
	AdminIDs         IDSet  `json:"admin_ids"`
	SupplierIDs      IDSet  `json:"supplier_ids"`
	RedisAddr        string `json:"redis_addr"`
	RedisPassword    string `json:"redis_password"`
	StaticDir        string `json:"static_dir"`
	LogLevel         string `json:"log_level"`
	Location         *time.Location
}

// IDSet is an allow-list of Telegram user ids.
type IDSet map[int64]struct{}

// Has reports whether id is in the set.
func (s IDSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the ids in unspecified order.
func (s IDSet) IDs() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return ids
}

// ParseIDList parses a comma-separated list of numeric ids, silently
// skipping anything that is not a positive integer.
func ParseIDList(raw string) IDSet {
	set := IDSet{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

// NewConfig creates and returns a new configuration instance
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:          ":8080",
		DBDriver:      "sqlite3",
		DatabaseURL:   "file:chan.db?_foreign_keys=1",
		SessionSecret: "change-me",
		StaticDir:     "./static",
		LogLevel:      "info",
		AdminIDs:      IDSet{},
		SupplierIDs:   IDSet{},
		Location:      time.Local,
	}

	// Override with environment variables if set
	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = ":" + strings.TrimPrefix(port, ":")
	}

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.DatabaseURL = dsn
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			cfg.DBDriver = "postgres"
		}
	}

	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		cfg.DBDriver = driver
	}

	cfg.CRMBotToken = strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	cfg.ShopBotToken = strings.TrimSpace(os.Getenv("SHOP_BOT_TOKEN"))
	cfg.LoginBotToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	cfg.LoginBotUsername = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_USERNAME"))

	if secret := os.Getenv("SESSION_SECRET"); secret != "" {
		cfg.SessionSecret = secret
	}

	if secure, err := strconv.ParseBool(os.Getenv("SECURE_COOKIES")); err == nil {
		cfg.SecureCookies = secure
	}

	cfg.AdminIDs = ParseIDList(os.Getenv("ADMIN_TG_IDS"))
	cfg.SupplierIDs = ParseIDList(os.Getenv("SUPPLIER_TG_IDS"))

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if dir := os.Getenv("STATIC_DIR"); dir != "" {
		cfg.StaticDir = dir
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if tz := os.Getenv("TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, err
		}
		cfg.Location = loc
	}

	return cfg, nil
}
