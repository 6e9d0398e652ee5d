package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDList(t *testing.T) {
	set := ParseIDList(" 101, 202 ,abc,,-5, 303")
	assert.Len(t, set, 3)
	assert.True(t, set.Has(101))
	assert.True(t, set.Has(202))
	assert.True(t, set.Has(303))
	assert.False(t, set.Has(-5))

	assert.Empty(t, ParseIDList(""))
}

func TestNewConfigDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_URL", "DB_DRIVER", "BOT_TOKEN", "SESSION_SECRET", "ADMIN_TG_IDS", "TIMEZONE"} {
		t.Setenv(key, "")
	}

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, "change-me", cfg.SessionSecret)
	assert.Empty(t, cfg.CRMBotToken)
	assert.Empty(t, cfg.AdminIDs)
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/chan?sslmode=disable")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("BOT_TOKEN", " 123:abc ")
	t.Setenv("ADMIN_TG_IDS", "1,2")
	t.Setenv("SUPPLIER_TG_IDS", "3")
	t.Setenv("SECURE_COOKIES", "true")
	t.Setenv("TIMEZONE", "Europe/Moscow")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "123:abc", cfg.CRMBotToken)
	assert.True(t, cfg.AdminIDs.Has(2))
	assert.True(t, cfg.SupplierIDs.Has(3))
	assert.True(t, cfg.SecureCookies)
	assert.Equal(t, "Europe/Moscow", cfg.Location.String())
}

func TestNewConfigBadTimezone(t *testing.T) {
	t.Setenv("TIMEZONE", "Mars/Olympus")
	_, err := NewConfig()
	assert.Error(t, err)
}
