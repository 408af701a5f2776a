package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvHelpersParse(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_FLOAT", "2.5")
	t.Setenv("TEST_DUR", "1500ms")

	n, err := envInt("TEST_INT", 0)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	b, err := envBool("TEST_BOOL", false)
	require.NoError(t, err)
	assert.True(t, b)

	f, err := envFloat("TEST_FLOAT", 0)
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	d, err := envDuration("TEST_DUR", 0)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)
}

func TestEnvHelpersFallback(t *testing.T) {
	n, err := envInt("TEST_INT_MISSING", 99)
	require.NoError(t, err)
	assert.Equal(t, 99, n)

	d, err := envDuration("TEST_DUR_MISSING", 3*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, d)

	assert.Equal(t, "fallback", envStr("TEST_STR_MISSING", "fallback"))
}

func TestEnvHelpersReportKeyAndValue(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	t.Setenv("TEST_BOOL_BAD", "maybe")
	t.Setenv("TEST_FLOAT_BAD", "fast")
	t.Setenv("TEST_DUR_BAD", "five-seconds")

	_, err := envInt("TEST_INT_BAD", 0)
	assert.EqualError(t, err, `TEST_INT_BAD="abc" is not a valid integer`)
	_, err = envBool("TEST_BOOL_BAD", false)
	assert.EqualError(t, err, `TEST_BOOL_BAD="maybe" is not a valid boolean`)
	_, err = envFloat("TEST_FLOAT_BAD", 0)
	assert.EqualError(t, err, `TEST_FLOAT_BAD="fast" is not a valid number`)
	_, err = envDuration("TEST_DUR_BAD", 0)
	assert.EqualError(t, err, `TEST_DUR_BAD="five-seconds" is not a valid duration`)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, ":8001", cfg.Addr())
	assert.Equal(t, "sqlite://digital_twin.db", cfg.DatabaseURL)
	assert.Equal(t, 3*time.Second, cfg.MetricsInterval)
	assert.False(t, cfg.MetricsAutostart)
	assert.True(t, cfg.HostStats)
	assert.True(t, cfg.RateLimitEnabled)
	assert.Empty(t, cfg.ScriptPath)
	assert.Empty(t, cfg.CORSAllowedOrigins)
	assert.Equal(t, "twin", cfg.ServiceName)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TWIN_PORT", "9000")
	t.Setenv("TWIN_DATABASE_URL", "memory")
	t.Setenv("TWIN_METRICS_INTERVAL", "500ms")
	t.Setenv("TWIN_METRICS_AUTOSTART", "true")
	t.Setenv("TWIN_CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("TWIN_LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "memory", cfg.DatabaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.MetricsInterval)
	assert.True(t, cfg.MetricsAutostart)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadReportsEveryInvalidVar(t *testing.T) {
	t.Setenv("TWIN_PORT", "abc")
	t.Setenv("TWIN_METRICS_INTERVAL", "often")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `TWIN_PORT="abc"`)
	assert.Contains(t, err.Error(), `TWIN_METRICS_INTERVAL="often"`)
}

func TestValidate(t *testing.T) {
	base, err := Load()
	require.NoError(t, err)

	cases := map[string]func(*Config){
		"port":      func(c *Config) { c.Port = 70000 },
		"database":  func(c *Config) { c.DatabaseURL = "" },
		"interval":  func(c *Config) { c.MetricsInterval = 0 },
		"body":      func(c *Config) { c.MaxRequestBodyBytes = 0 },
		"ratelimit": func(c *Config) { c.RateLimitBurst = 0 },
		"loglevel":  func(c *Config) { c.LogLevel = "chatty" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	disabled := base
	disabled.RateLimitEnabled = false
	disabled.RateLimitRPS = 0
	assert.NoError(t, disabled.Validate())
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for name, want := range cases {
		assert.Equal(t, want, Config{LogLevel: name}.SlogLevel(), name)
	}
}
