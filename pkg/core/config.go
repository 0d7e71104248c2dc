package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config contains the complete configuration for a Recall client.
//
// It includes settings for:
//   - Record store (SQLite, PostgreSQL, or MySQL, all content-encrypted)
//   - Embedding provider (for vector generation)
//   - LLM provider (for sentiment/tag enrichment and compaction summaries)
//   - Vector index snapshot paths
//   - Background compaction
//
// Example:
//
//	config := &core.Config{
//	    Store: core.StoreConfig{
//	        Provider:   "sqlite",
//	        SQLitePath: "./recall.db",
//	        KeyPath:    "./recall.key",
//	    },
//	    Embedder: core.EmbedderConfig{
//	        APIKey:     "sk-...",
//	        Model:      "text-embedding-3-small",
//	        Dimensions: 1536,
//	    },
//	    LLM: core.LLMConfig{
//	        Provider: "openai",
//	        APIKey:   "sk-...",
//	        Model:    "gpt-4o-mini",
//	    },
//	}
type Config struct {
	// Store contains record store configuration.
	Store StoreConfig `json:"store"`

	// Embedder contains embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder"`

	// LLM contains LLM provider configuration.
	LLM LLMConfig `json:"llm"`

	// Index contains vector index snapshot configuration.
	Index IndexConfig `json:"index"`

	// Compaction contains background compaction configuration.
	Compaction CompactionConfig `json:"compaction"`
}

// StoreConfig contains configuration for the encrypted record store.
//
// Supported providers: sqlite, postgres, mysql
type StoreConfig struct {
	// Provider is the record store provider name (sqlite, postgres, mysql).
	Provider string `json:"provider"`

	// KeyPath is the path to the symmetric content-encryption key file.
	// The key is generated on first use and never regenerated.
	KeyPath string `json:"key_path"`

	// SQLitePath is the SQLite database file path (sqlite provider only).
	SQLitePath string `json:"sqlite_path,omitempty"`

	// Host is the database server hostname (postgres/mysql).
	Host string `json:"host,omitempty"`

	// Port is the database server port (postgres/mysql).
	Port int `json:"port,omitempty"`

	// User is the database user (postgres/mysql).
	User string `json:"user,omitempty"`

	// Password is the database password (postgres/mysql).
	Password string `json:"password,omitempty"`

	// Database is the database name (postgres/mysql).
	Database string `json:"database,omitempty"`

	// SSLMode is the libpq sslmode value (postgres only, default "disable").
	SSLMode string `json:"ssl_mode,omitempty"`
}

// EmbedderConfig contains configuration for the embedding provider.
type EmbedderConfig struct {
	// APIKey is the API key for the embedding provider.
	APIKey string `json:"api_key"`

	// Model is the embedding model name (e.g., "text-embedding-3-small").
	Model string `json:"model"`

	// BaseURL is the base URL for the API (optional, uses provider default if empty).
	BaseURL string `json:"base_url,omitempty"`

	// Dimensions is the dimension of the embedding vectors (e.g., 1536).
	Dimensions int `json:"dimensions,omitempty"`

	// CacheSize is the maximum number of query embeddings kept in the
	// in-process cache. 0 uses the default (4096).
	CacheSize int64 `json:"cache_size,omitempty"`
}

// LLMConfig contains configuration for the LLM provider.
//
// Supported providers: openai, ollama
type LLMConfig struct {
	// Provider is the LLM provider name (openai, ollama).
	Provider string `json:"provider"`

	// APIKey is the API key for the LLM provider (openai only).
	APIKey string `json:"api_key"`

	// Model is the model name to use (e.g., "gpt-4o-mini", "llama3.1").
	Model string `json:"model"`

	// BaseURL is the base URL for the API (optional, uses provider default if empty).
	BaseURL string `json:"base_url,omitempty"`
}

// IndexConfig contains configuration for the vector index snapshot.
type IndexConfig struct {
	// IndexPath is the path of the serialized vector file.
	IndexPath string `json:"index_path"`

	// MetaPath is the path of the JSON metadata file.
	MetaPath string `json:"meta_path"`
}

// CompactionConfig contains configuration for background compaction.
type CompactionConfig struct {
	// IntervalHours is the number of hours between compaction cycles.
	// Default: 24.
	IntervalHours int `json:"interval_hours,omitempty"`

	// CutoffDays is the record age in days beyond which records are
	// summarized and removed. Default: 180.
	CutoffDays int `json:"cutoff_days,omitempty"`
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - DATABASE_PROVIDER (sqlite, postgres, mysql)
//   - SQLITE_PATH
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD,
//     POSTGRES_DATABASE, POSTGRES_SSLMODE
//   - MYSQL_HOST, MYSQL_PORT, MYSQL_USER, MYSQL_PASSWORD, MYSQL_DATABASE
//   - EMBEDDING_API_KEY, EMBEDDING_MODEL, EMBEDDING_BASE_URL, EMBEDDING_DIMS
//   - LLM_PROVIDER, LLM_API_KEY, LLM_MODEL, LLM_BASE_URL
//   - RECALL_KEY_PATH, RECALL_INDEX_PATH, RECALL_META_PATH
//   - COMPACTION_INTERVAL_HOURS, COMPACTION_CUTOFF_DAYS
//
// Returns a Config instance, or an error if loading fails.
//
// Example:
//
//	config, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnv() (*Config, error) {
	if envPath, found := FindEnvFile(); found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	provider := getEnvOrDefault("DATABASE_PROVIDER", "sqlite")

	storeConfig := StoreConfig{
		Provider: provider,
		KeyPath:  getEnvOrDefault("RECALL_KEY_PATH", "./recall.key"),
	}
	switch provider {
	case "postgres":
		port, _ := strconv.Atoi(getEnvOrDefault("POSTGRES_PORT", "5432"))
		storeConfig.Host = getEnvOrDefault("POSTGRES_HOST", "localhost")
		storeConfig.Port = port
		storeConfig.User = getEnvOrDefault("POSTGRES_USER", "postgres")
		storeConfig.Password = os.Getenv("POSTGRES_PASSWORD")
		storeConfig.Database = getEnvOrDefault("POSTGRES_DATABASE", "recall")
		storeConfig.SSLMode = getEnvOrDefault("POSTGRES_SSLMODE", "disable")
	case "mysql":
		port, _ := strconv.Atoi(getEnvOrDefault("MYSQL_PORT", "3306"))
		storeConfig.Host = getEnvOrDefault("MYSQL_HOST", "127.0.0.1")
		storeConfig.Port = port
		storeConfig.User = getEnvOrDefault("MYSQL_USER", "root")
		storeConfig.Password = os.Getenv("MYSQL_PASSWORD")
		storeConfig.Database = getEnvOrDefault("MYSQL_DATABASE", "recall")
	default:
		storeConfig.SQLitePath = getEnvOrDefault("SQLITE_PATH", "./recall.db")
	}

	dims, _ := strconv.Atoi(getEnvOrDefault("EMBEDDING_DIMS", "1536"))

	llmProvider := getEnvOrDefault("LLM_PROVIDER", "openai")
	llmBaseURL := os.Getenv("LLM_BASE_URL")
	defaultModel := "gpt-4o-mini"
	if llmProvider == "ollama" {
		if llmBaseURL == "" {
			llmBaseURL = "http://localhost:11434"
		}
		defaultModel = "llama3.1"
	}

	intervalHours, _ := strconv.Atoi(getEnvOrDefault("COMPACTION_INTERVAL_HOURS", "24"))
	cutoffDays, _ := strconv.Atoi(getEnvOrDefault("COMPACTION_CUTOFF_DAYS", "180"))

	return &Config{
		Store: storeConfig,
		Embedder: EmbedderConfig{
			APIKey:     os.Getenv("EMBEDDING_API_KEY"),
			Model:      getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
			BaseURL:    os.Getenv("EMBEDDING_BASE_URL"),
			Dimensions: dims,
		},
		LLM: LLMConfig{
			Provider: llmProvider,
			APIKey:   os.Getenv("LLM_API_KEY"),
			Model:    getEnvOrDefault("LLM_MODEL", defaultModel),
			BaseURL:  llmBaseURL,
		},
		Index: IndexConfig{
			IndexPath: getEnvOrDefault("RECALL_INDEX_PATH", "./recall.index"),
			MetaPath:  getEnvOrDefault("RECALL_META_PATH", "./recall.meta.json"),
		},
		Compaction: CompactionConfig{
			IntervalHours: intervalHours,
			CutoffDays:    cutoffDays,
		},
	}, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
//
// Parameters:
//   - envPath: Path to the .env file
//
// Returns a Config instance, or an error if loading fails.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file.
//
// Parameters:
//   - path: Path to the JSON configuration file
//
// Returns a Config instance, or an error if loading or parsing fails.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	return &config, nil
}

// Validate validates the configuration.
//
// Checks that all required fields are set:
//   - Store provider must be one of sqlite, postgres, mysql
//   - Encryption key path must be set
//   - LLM provider must be one of openai, ollama
//   - Index snapshot paths must be set
//
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	switch c.Store.Provider {
	case "sqlite", "postgres", "mysql":
	default:
		return NewMemoryError("Validate", fmt.Errorf("%w: unknown store provider %q", ErrInvalidConfig, c.Store.Provider))
	}
	if c.Store.KeyPath == "" {
		return NewMemoryError("Validate", fmt.Errorf("%w: key path is required", ErrInvalidConfig))
	}
	switch c.LLM.Provider {
	case "openai", "ollama":
	default:
		return NewMemoryError("Validate", fmt.Errorf("%w: unknown llm provider %q", ErrInvalidConfig, c.LLM.Provider))
	}
	if c.Index.IndexPath == "" || c.Index.MetaPath == "" {
		return NewMemoryError("Validate", fmt.Errorf("%w: index snapshot paths are required", ErrInvalidConfig))
	}
	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
//
// Returns:
//   - path: Path to the found file (empty if not found)
//   - found: True if a file was found, false otherwise
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
