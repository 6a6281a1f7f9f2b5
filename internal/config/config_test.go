package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeTestConfig(t, `
system:
  log_level: DEBUG
  log_dir: ./logs
redis:
  host: localhost
  port: 6379
  db: 1
execution:
  mode: paper
monitor:
  enabled: true
  pop_timeout_seconds: 5
  task_timeout_seconds: 15
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.System.LogLevel)
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, 1, cfg.Redis.DB)
	assert.Equal(t, ExecutionModePaper, cfg.Execution.Mode)
	assert.Equal(t, 5, cfg.Monitor.PopTimeoutSeconds)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "非法执行模式",
			content: `
redis:
  host: localhost
  port: 6379
execution:
  mode: yolo
`,
		},
		{
			name: "实盘模式缺少API密钥",
			content: `
redis:
  host: localhost
  port: 6379
execution:
  mode: live
  binance:
    enabled: true
`,
		},
		{
			name: "缺少Redis主机",
			content: `
redis:
  port: 6379
execution:
  mode: paper
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTestConfig(t, tt.content)
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "env-key")
	t.Setenv("BINANCE_API_SECRET", "env-secret")

	path := writeTestConfig(t, `
redis:
  host: localhost
  port: 6379
execution:
  mode: live
  binance:
    enabled: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Execution.Binance.APIKey)
	assert.Equal(t, "env-secret", cfg.Execution.Binance.APISecret)
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, ExecutionModePaper, cfg.Execution.Mode)
	assert.NoError(t, validateConfig(cfg))
}
