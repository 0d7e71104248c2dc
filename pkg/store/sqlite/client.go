// Package sqlite provides the SQLite implementation of the encrypted record
// store.
//
// SQLite is the default backend: a single local database file suits a
// personal assistant running on one machine. Content is encrypted before it
// reaches the database, so the file on disk never contains plaintext
// memories.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bwmarrin/snowflake"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jarvisproject/recall/pkg/encryption"
	"github.com/jarvisproject/recall/pkg/logging"
	"github.com/jarvisproject/recall/pkg/store"
)

// Client implements store.RecordStore using SQLite as the backend.
type Client struct {
	// db is the SQLite database connection.
	db *sql.DB

	// cipher encrypts and decrypts memory content.
	cipher *encryption.Cipher

	// node generates store-assigned monotonic ids.
	node *snowflake.Node

	// logger receives corrupt-row warnings from bulk reads.
	logger logging.Logger
}

// Config contains configuration for creating a SQLite record store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// KeyPath is the path to the symmetric key file. The key is generated
	// on first use and never regenerated once present.
	KeyPath string

	// Logger receives warnings; defaults to the standard JSON logger.
	Logger logging.Logger
}

// NewClient creates a new SQLite record store.
//
// Parameters:
//   - cfg: Configuration containing the database path and key file path
//
// Returns the client, or an error if the key cannot be loaded, the database
// cannot be opened, or table creation fails.
func NewClient(cfg *Config) (*Client, error) {
	cipher, err := encryption.NewCipherFromFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDefault()
	}

	client := &Client{db: db, cipher: cipher, node: node, logger: logger}
	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}
	return client, nil
}

// initTables creates the memories and ratings tables if they do not exist.
func (c *Client) initTables(ctx context.Context) error {
	memQuery := `
		CREATE TABLE IF NOT EXISTS memories (
			id        INTEGER PRIMARY KEY,
			content   BLOB NOT NULL,
			timestamp TEXT NOT NULL,
			tags      TEXT,
			sentiment TEXT,
			speaker   TEXT
		)
	`
	if _, err := c.db.ExecContext(ctx, memQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	ratingQuery := `
		CREATE TABLE IF NOT EXISTS ratings (
			id        INTEGER PRIMARY KEY,
			user      TEXT NOT NULL,
			item      TEXT NOT NULL,
			rating    REAL NOT NULL,
			timestamp TEXT NOT NULL
		)
	`
	if _, err := c.db.ExecContext(ctx, ratingQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	indexQuery := `CREATE INDEX IF NOT EXISTS idx_memories_speaker ON memories(speaker)`
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}
	return nil
}

// AddMemory encrypts content and inserts a new memory row.
func (c *Client) AddMemory(ctx context.Context, content string, tags []string, sentiment, speaker string) (int64, time.Time, error) {
	enc, err := c.cipher.Encrypt(content)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("AddMemory: %w", err)
	}

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("AddMemory: %w", err)
	}

	id := c.node.Generate().Int64()
	ts := time.Now().UTC().Truncate(time.Microsecond)

	query := `
		INSERT INTO memories (id, content, timestamp, tags, sentiment, speaker)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = c.db.ExecContext(ctx, query, id, enc, ts.Format(time.RFC3339Nano), string(tagsJSON), sentiment, speaker)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("AddMemory: %w", err)
	}
	return id, ts, nil
}

// GetMemory retrieves and decrypts a single memory by id.
func (c *Client) GetMemory(ctx context.Context, id int64) (*store.MemoryRecord, error) {
	query := `SELECT id, content, timestamp, tags, sentiment, speaker FROM memories WHERE id = ?`
	row := c.db.QueryRowContext(ctx, query, id)

	record, err := c.scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetMemory: %w", err)
	}
	return record, nil
}

// GetAllMemories retrieves and decrypts every memory row.
//
// Rows whose content fails decryption are skipped with a warning so a single
// corrupt row cannot take down an index rebuild.
func (c *Client) GetAllMemories(ctx context.Context) ([]*store.MemoryRecord, error) {
	query := `SELECT id, content, timestamp, tags, sentiment, speaker FROM memories ORDER BY timestamp`
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("GetAllMemories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*store.MemoryRecord
	for rows.Next() {
		record, err := c.scanMemory(rows)
		if err != nil {
			if isCorrupt(err) {
				c.logger.Warn("skipping corrupt memory row", "error", err)
				continue
			}
			return nil, fmt.Errorf("GetAllMemories: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetAllMemories: %w", err)
	}
	return records, nil
}

// DeleteMemory removes a memory row permanently.
func (c *Client) DeleteMemory(ctx context.Context, id int64) error {
	result, err := c.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("DeleteMemory: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("DeleteMemory: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AddRating inserts a rating row. Ratings are not sensitive free text and
// are stored unencrypted.
func (c *Client) AddRating(ctx context.Context, user, item string, score float64) (int64, error) {
	id := c.node.Generate().Int64()
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	query := `INSERT INTO ratings (id, user, item, rating, timestamp) VALUES (?, ?, ?, ?, ?)`
	if _, err := c.db.ExecContext(ctx, query, id, user, item, score, ts); err != nil {
		return 0, fmt.Errorf("AddRating: %w", err)
	}
	return id, nil
}

// GetAllRatings retrieves every rating row.
func (c *Client) GetAllRatings(ctx context.Context) ([]*store.Rating, error) {
	return c.queryRatings(ctx, `SELECT id, user, item, rating, timestamp FROM ratings`)
}

// GetUserRatings retrieves all ratings recorded by one user.
func (c *Client) GetUserRatings(ctx context.Context, user string) ([]*store.Rating, error) {
	return c.queryRatings(ctx, `SELECT id, user, item, rating, timestamp FROM ratings WHERE user = ?`, user)
}

func (c *Client) queryRatings(ctx context.Context, query string, args ...interface{}) ([]*store.Rating, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("queryRatings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ratings []*store.Rating
	for rows.Next() {
		var r store.Rating
		var ts string
		if err := rows.Scan(&r.ID, &r.User, &r.Item, &r.Score, &ts); err != nil {
			return nil, fmt.Errorf("queryRatings: %w", err)
		}
		r.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		ratings = append(ratings, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queryRatings: %w", err)
	}
	return ratings, nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
