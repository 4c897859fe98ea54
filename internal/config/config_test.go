package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 30*time.Second, cfg.GetQueryTimeout())
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "foodstats.yaml", `
source: sqlite://food.db
memory: true
today: "2025-02-01"
query_timeout: 5s
http:
  addr: 127.0.0.1:9000
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite://food.db", cfg.Source)
	assert.True(t, cfg.Memory)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 5*time.Second, cfg.GetQueryTimeout())

	today, err := cfg.TodayDate()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.Local), today)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "foodstats.yaml", "source: sqlite://food.db\nlogging:\n  level: debug\n")
	t.Setenv("FOODSTATS_SOURCE", "csv://exports")
	t.Setenv("FOODSTATS_MEMORY", "true")
	t.Setenv("FOODSTATS_HTTP_ADDR", ":9999")
	t.Setenv("FOODSTATS_LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "csv://exports", cfg.Source)
	assert.True(t, cfg.Memory)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level, "file value kept when env is unset")
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "malformed yaml",
			content: "logging: [",
			wantErr: "failed to parse config",
		},
		{
			name:    "unknown level",
			content: "logging:\n  level: loud\n",
			wantErr: "invalid log level",
		},
		{
			name:    "unknown format",
			content: "logging:\n  format: xml\n",
			wantErr: "invalid log format",
		},
		{
			name:    "bad date",
			content: "today: 01/02/2025\n",
			wantErr: "invalid today",
		},
		{
			name:    "bad timeout",
			content: "query_timeout: soon\n",
			wantErr: "invalid query timeout",
		},
		{
			name:    "bad memory env",
			env:     map[string]string{"FOODSTATS_MEMORY": "maybe"},
			wantErr: "invalid FOODSTATS_MEMORY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeFile(t, "foodstats.yaml", tt.content)
			_, err := Load(path)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := writeFile(t, ".env", "FOODSTATS_LOG_LEVEL=warn\nFOODSTATS_TODAY=2025-03-01\n")
	t.Setenv("FOODSTATS_LOG_LEVEL", "error")
	// Registered so t.Setenv restores the unset state afterwards.
	t.Setenv("FOODSTATS_TODAY", "")
	require.NoError(t, os.Unsetenv("FOODSTATS_TODAY"))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "error", os.Getenv("FOODSTATS_LOG_LEVEL"), "existing variables win")
	assert.Equal(t, "2025-03-01", os.Getenv("FOODSTATS_TODAY"))

	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), ".env")))
}
