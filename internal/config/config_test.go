package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultTestConfig() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)
	cfg.SEOAPI = SEOAPIConfig{
		Backlinks: ServiceConfig{BaseURL: "https://backlinks.test"},
		Analytics: ServiceConfig{BaseURL: "https://analytics.test"},
		Position:  ServiceConfig{BaseURL: "https://position.test"},
		Keywords:  ServiceConfig{BaseURL: "https://keywords.test"},
	}
	return cfg
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg := defaultTestConfig()

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 4, cfg.Audit.WaitingWeeks)
	assert.True(t, cfg.Audit.AnalyticsEnabled)
	assert.True(t, cfg.Audit.Scope.PostsEnabled)
	assert.False(t, cfg.Audit.Scope.PagesEnabled)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsEmptyScope(t *testing.T) {
	t.Parallel()

	cfg := defaultTestConfig()
	cfg.Audit.Scope.PostsEnabled = false
	cfg.Audit.Scope.PagesEnabled = false

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in scope")
}

func TestValidateRejectsNegativeWaitingWeeks(t *testing.T) {
	t.Parallel()

	cfg := defaultTestConfig()
	cfg.Audit.WaitingWeeks = -1

	require.Error(t, cfg.Validate())
}

func TestValidateRequiresServiceURLs(t *testing.T) {
	t.Parallel()

	cfg := defaultTestConfig()
	cfg.SEOAPI.Analytics.BaseURL = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analytics")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("AUDIT_WAITING_WEEKS", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 8, cfg.Audit.WaitingWeeks)
}

func TestScopePageIDs(t *testing.T) {
	t.Parallel()

	v := viper.New()
	setDefaults(v)
	v.Set("audit.scope.pages_enabled", true)
	v.Set("audit.scope.selected_page_ids", []int{3, 9})

	cfg := fromViper(v)
	assert.Equal(t, []int64{3, 9}, cfg.Audit.Scope.SelectedPageIDs)
}
