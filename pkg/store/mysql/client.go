// Package mysql provides the MySQL implementation of the encrypted record
// store.
//
// It speaks the MySQL wire protocol and works against MySQL-compatible
// servers. As with the other backends, content is encrypted client-side; the
// server stores ciphertext only.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	_ "github.com/go-sql-driver/mysql"

	"github.com/jarvisproject/recall/pkg/encryption"
	"github.com/jarvisproject/recall/pkg/logging"
	"github.com/jarvisproject/recall/pkg/store"
)

// Client implements store.RecordStore using MySQL as the backend.
type Client struct {
	db     *sql.DB
	cipher *encryption.Cipher
	node   *snowflake.Node
	logger logging.Logger
}

// Config contains configuration for creating a MySQL record store.
type Config struct {
	// Host is the database server hostname.
	Host string

	// Port is the database server port (default 3306).
	Port int

	// User is the database user.
	User string

	// Password is the database password.
	Password string

	// DBName is the database name.
	DBName string

	// KeyPath is the path to the symmetric key file.
	KeyPath string

	// Logger receives corrupt-row warnings; defaults to the standard logger.
	Logger logging.Logger
}

// NewClient creates a new MySQL record store.
func NewClient(cfg *Config) (*Client, error) {
	cipher, err := encryption.NewCipherFromFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}

	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=false&charset=utf8mb4",
		cfg.User, cfg.Password, cfg.Host, port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
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

func (c *Client) initTables(ctx context.Context) error {
	memQuery := "CREATE TABLE IF NOT EXISTS memories (" +
		"id BIGINT PRIMARY KEY, " +
		"content BLOB NOT NULL, " +
		"timestamp VARCHAR(64) NOT NULL, " +
		"tags TEXT, " +
		"sentiment VARCHAR(16), " +
		"speaker VARCHAR(255), " +
		"INDEX idx_memories_speaker (speaker))"
	if _, err := c.db.ExecContext(ctx, memQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	ratingQuery := "CREATE TABLE IF NOT EXISTS ratings (" +
		"id BIGINT PRIMARY KEY, " +
		"`user` VARCHAR(255) NOT NULL, " +
		"item VARCHAR(255) NOT NULL, " +
		"rating DOUBLE NOT NULL, " +
		"timestamp VARCHAR(64) NOT NULL)"
	if _, err := c.db.ExecContext(ctx, ratingQuery); err != nil {
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

	query := `INSERT INTO memories (id, content, timestamp, tags, sentiment, speaker) VALUES (?, ?, ?, ?, ?, ?)`
	_, err = c.db.ExecContext(ctx, query, id, enc, ts.Format(time.RFC3339Nano), string(tagsJSON), sentiment, speaker)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("AddMemory: %w", err)
	}
	return id, ts, nil
}

// GetMemory retrieves and decrypts a single memory by id.
func (c *Client) GetMemory(ctx context.Context, id int64) (*store.MemoryRecord, error) {
	query := `SELECT id, content, timestamp, tags, sentiment, speaker FROM memories WHERE id = ?`
	record, err := c.scanMemory(c.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetMemory: %w", err)
	}
	return record, nil
}

// GetAllMemories retrieves and decrypts every memory row, skipping rows whose
// content fails decryption.
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
			if errors.Is(err, store.ErrCorruptRecord) || errors.Is(err, encryption.ErrDecrypt) {
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

// AddRating inserts a rating row.
func (c *Client) AddRating(ctx context.Context, user, item string, score float64) (int64, error) {
	id := c.node.Generate().Int64()
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	query := "INSERT INTO ratings (id, `user`, item, rating, timestamp) VALUES (?, ?, ?, ?, ?)"
	if _, err := c.db.ExecContext(ctx, query, id, user, item, score, ts); err != nil {
		return 0, fmt.Errorf("AddRating: %w", err)
	}
	return id, nil
}

// GetAllRatings retrieves every rating row.
func (c *Client) GetAllRatings(ctx context.Context) ([]*store.Rating, error) {
	return c.queryRatings(ctx, "SELECT id, `user`, item, rating, timestamp FROM ratings")
}

// GetUserRatings retrieves all ratings recorded by one user.
func (c *Client) GetUserRatings(ctx context.Context, user string) ([]*store.Rating, error) {
	return c.queryRatings(ctx, "SELECT id, `user`, item, rating, timestamp FROM ratings WHERE `user` = ?", user)
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

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanMemory scans one memories row and decrypts its content.
func (c *Client) scanMemory(row rowScanner) (*store.MemoryRecord, error) {
	var (
		id        int64
		enc       []byte
		ts        string
		tagsJSON  sql.NullString
		sentiment sql.NullString
		speaker   sql.NullString
	)
	if err := row.Scan(&id, &enc, &ts, &tagsJSON, &sentiment, &speaker); err != nil {
		return nil, err
	}

	content, err := c.cipher.Decrypt(enc)
	if err != nil {
		return nil, fmt.Errorf("%w: id %d: %v", store.ErrCorruptRecord, id, err)
	}

	timestamp, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("scanMemory: bad timestamp for id %d: %w", id, err)
	}

	var tags []string
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &tags); err != nil {
			return nil, fmt.Errorf("scanMemory: bad tags for id %d: %w", id, err)
		}
	}

	return &store.MemoryRecord{
		ID:        id,
		Content:   content,
		Timestamp: timestamp,
		Tags:      tags,
		Sentiment: sentiment.String,
		Speaker:   speaker.String,
	}, nil
}
