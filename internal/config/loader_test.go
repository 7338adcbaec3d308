package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const minimalYAML = `server:
  host: "127.0.0.1"
  port: 9090

database:
  driver: "sqlite"
  path: "codelens.db"

logger:
  level: "debug"
  encoding: "console"

analysis:
  llm:
    enabled: true
    anthropic_api_key: "test-key"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1", cfg.Server.Host)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "127.0.0.1:9090", cfg.Server.Address())

	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "codelens.db", cfg.Database.Path)

	// Everything the file omits falls back to a usable default.
	require.Equal(t, "workspace", cfg.Workspace.Root)
	require.EqualValues(t, 8<<20, cfg.Workspace.MaxImportFileSize)
	require.EqualValues(t, 512<<20, cfg.Workspace.MaxImportTotal)
	require.Equal(t, 50000, cfg.Workspace.MaxImportEntries)
	require.Equal(t, 2*time.Minute, cfg.Analysis.StageTimeout)
	require.Equal(t, 64, cfg.Analysis.EventBuffer)
	require.Equal(t, 20000, cfg.Analysis.Code.MaxFiles)
	require.EqualValues(t, 2<<20, cfg.Analysis.Code.MaxFileSize)
	require.Equal(t, 90*time.Second, cfg.Analysis.LLM.Timeout)
	require.Equal(t, 24000, cfg.Analysis.LLM.MaxDigestBytes)
	require.Equal(t, "17 3 * * *", cfg.Retention.Schedule)
	require.Equal(t, 30*24*time.Hour, cfg.Retention.MaxAge)

	require.True(t, cfg.Analysis.LLM.Enabled)
	require.Equal(t, "test-key", cfg.Analysis.LLM.AnthropicAPIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "codelens",
		Password: "pw",
		Name:     "codelens",
		SSLMode:  "disable",
	}
	require.Equal(t,
		"host=db.internal port=5432 user=codelens password=pw dbname=codelens sslmode=disable",
		cfg.DSN(),
	)
}
