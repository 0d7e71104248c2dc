// Package store provides interfaces and types for the encrypted record store.
//
// It defines the RecordStore interface that all storage backends must satisfy.
// Memory content is encrypted at rest; timestamps, tags, sentiment and speaker
// are stored in plaintext columns so rows remain filterable without the key.
package store

import (
	"context"
	"errors"
	"time"
)

// Sentiment values recognized by the memory subsystem.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// ErrNotFound indicates that a requested record does not exist.
var ErrNotFound = errors.New("store: record not found")

// ErrCorruptRecord indicates that a row's encrypted content could not be
// decrypted. Bulk reads skip such rows with a logged warning; single-row
// reads surface this error to the caller.
var ErrCorruptRecord = errors.New("store: corrupt record")

// MemoryRecord is a single remembered statement.
//
// A record is created once by the ingestion pipeline and never mutated.
// Corrections are stored as new records; retrieval-time recency weighting
// reconciles them. Records are destroyed only by compaction (replaced by a
// summary record) or by explicit deletion from maintenance tooling.
type MemoryRecord struct {
	// ID is the store-assigned unique identifier, monotonic across inserts.
	ID int64 `json:"id"`

	// Content is the remembered statement. Plaintext in memory, encrypted
	// at rest.
	Content string `json:"content"`

	// Timestamp is the UTC creation time. Immutable after insert.
	Timestamp time.Time `json:"timestamp"`

	// Tags is an ordered list of short lowercase machine-extracted labels,
	// typically 3-6 entries. Informational, not unique.
	Tags []string `json:"tags"`

	// Sentiment is one of "positive", "negative" or "neutral".
	Sentiment string `json:"sentiment"`

	// Speaker identifies who said this, or "" when unknown.
	Speaker string `json:"speaker,omitempty"`
}

// Rating is a user's preference score for an item. Ratings are persisted in
// the same store as memories but consumed by a separate recommendation
// component; content is not sensitive and is stored unencrypted.
type Rating struct {
	// ID is the store-assigned unique identifier.
	ID int64 `json:"id"`

	// User identifies who rated.
	User string `json:"user"`

	// Item identifies what was rated.
	Item string `json:"item"`

	// Score is the preference score (e.g. 1.0 = like, 0.0 = dislike).
	Score float64 `json:"rating"`

	// Timestamp is the UTC creation time.
	Timestamp time.Time `json:"timestamp"`
}

// RecordStore defines the interface for encrypted record storage backends.
//
// All backends (SQLite, PostgreSQL, MySQL) must implement this interface.
// Implementations are safe for concurrent use.
type RecordStore interface {
	// AddMemory encrypts content and inserts a new memory row with a fresh
	// UTC timestamp. Returns the assigned id and the timestamp.
	AddMemory(ctx context.Context, content string, tags []string, sentiment, speaker string) (int64, time.Time, error)

	// GetMemory retrieves and decrypts a single memory by id.
	// Returns ErrNotFound if the row does not exist and ErrCorruptRecord
	// (wrapped) if its content cannot be decrypted.
	GetMemory(ctx context.Context, id int64) (*MemoryRecord, error)

	// GetAllMemories retrieves and decrypts every memory row. Rows that fail
	// decryption are skipped with a logged warning rather than failing the
	// whole read; full rebuilds must survive a single corrupt row.
	GetAllMemories(ctx context.Context) ([]*MemoryRecord, error)

	// DeleteMemory removes a memory row permanently. No soft delete.
	DeleteMemory(ctx context.Context, id int64) error

	// AddRating inserts a rating row and returns its assigned id.
	AddRating(ctx context.Context, user, item string, score float64) (int64, error)

	// GetAllRatings retrieves every rating row.
	GetAllRatings(ctx context.Context) ([]*Rating, error)

	// GetUserRatings retrieves all ratings recorded by one user.
	GetUserRatings(ctx context.Context, user string) ([]*Rating, error)

	// Close closes the store and releases resources.
	Close() error
}
