package core_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarvisproject/recall/pkg/core"
)

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("DATABASE_PROVIDER", "sqlite")
	t.Setenv("LLM_PROVIDER", "openai")

	cfg, err := core.LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Provider)
	assert.Equal(t, "./recall.db", cfg.Store.SQLitePath)
	assert.Equal(t, "./recall.key", cfg.Store.KeyPath)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.Model)
	assert.Equal(t, 1536, cfg.Embedder.Dimensions)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "./recall.index", cfg.Index.IndexPath)
	assert.Equal(t, "./recall.meta.json", cfg.Index.MetaPath)
	assert.Equal(t, 24, cfg.Compaction.IntervalHours)
	assert.Equal(t, 180, cfg.Compaction.CutoffDays)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnvPostgres(t *testing.T) {
	t.Setenv("DATABASE_PROVIDER", "postgres")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("POSTGRES_USER", "recall")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DATABASE", "memories")
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("COMPACTION_CUTOFF_DAYS", "90")

	cfg, err := core.LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Provider)
	assert.Equal(t, "db.internal", cfg.Store.Host)
	assert.Equal(t, 6543, cfg.Store.Port)
	assert.Equal(t, "recall", cfg.Store.User)
	assert.Equal(t, "secret", cfg.Store.Password)
	assert.Equal(t, "memories", cfg.Store.Database)
	assert.Equal(t, "disable", cfg.Store.SSLMode)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
	assert.Equal(t, "llama3.1", cfg.LLM.Model)
	assert.Equal(t, 90, cfg.Compaction.CutoffDays)
}

func TestLoadConfigFromJSON(t *testing.T) {
	cfg := &core.Config{
		Store: core.StoreConfig{
			Provider:   "sqlite",
			SQLitePath: "/data/recall.db",
			KeyPath:    "/data/recall.key",
		},
		LLM: core.LLMConfig{Provider: "openai", APIKey: "sk-test"},
		Index: core.IndexConfig{
			IndexPath: "/data/recall.index",
			MetaPath:  "/data/recall.meta.json",
		},
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := core.LoadConfigFromJSON(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Store, loaded.Store)
	assert.Equal(t, cfg.LLM, loaded.LLM)
	assert.NoError(t, loaded.Validate())

	_, err = core.LoadConfigFromJSON(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *core.Config {
		return &core.Config{
			Store: core.StoreConfig{Provider: "sqlite", SQLitePath: "./recall.db", KeyPath: "./recall.key"},
			LLM:   core.LLMConfig{Provider: "openai"},
			Index: core.IndexConfig{IndexPath: "./recall.index", MetaPath: "./recall.meta.json"},
		}
	}

	assert.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Store.Provider = "mongodb"
	assert.ErrorIs(t, cfg.Validate(), core.ErrInvalidConfig)

	cfg = valid()
	cfg.Store.KeyPath = ""
	assert.ErrorIs(t, cfg.Validate(), core.ErrInvalidConfig)

	cfg = valid()
	cfg.LLM.Provider = "mystery"
	assert.ErrorIs(t, cfg.Validate(), core.ErrInvalidConfig)

	cfg = valid()
	cfg.Index.MetaPath = ""
	assert.ErrorIs(t, cfg.Validate(), core.ErrInvalidConfig)
}
