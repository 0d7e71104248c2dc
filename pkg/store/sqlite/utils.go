package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jarvisproject/recall/pkg/encryption"
	"github.com/jarvisproject/recall/pkg/store"
)

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

// isCorrupt reports whether err stems from a failed decryption.
func isCorrupt(err error) bool {
	return errors.Is(err, store.ErrCorruptRecord) || errors.Is(err, encryption.ErrDecrypt)
}
