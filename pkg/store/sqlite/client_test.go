package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarvisproject/recall/pkg/logging"
	"github.com/jarvisproject/recall/pkg/store"
	"github.com/jarvisproject/recall/pkg/store/sqlite"
)

func newTestStore(t *testing.T) (*sqlite.Client, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "recall.db")
	client, err := sqlite.NewClient(&sqlite.Config{
		DBPath:  dbPath,
		KeyPath: filepath.Join(dir, "recall.key"),
		Logger:  logging.NopLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, dbPath
}

func TestAddAndGetMemory(t *testing.T) {
	client, _ := newTestStore(t)
	ctx := context.Background()

	before := time.Now().UTC()
	id, ts, err := client.AddMemory(ctx, "my favorite fruit is mango", []string{"fruit", "preference"}, "positive", "jason")
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.False(t, ts.Before(before.Truncate(time.Second)))
	assert.Equal(t, time.UTC, ts.Location())

	rec, err := client.GetMemory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "my favorite fruit is mango", rec.Content)
	assert.Equal(t, []string{"fruit", "preference"}, rec.Tags)
	assert.Equal(t, "positive", rec.Sentiment)
	assert.Equal(t, "jason", rec.Speaker)
	assert.True(t, rec.Timestamp.Equal(ts))
}

func TestGetMemoryNotFound(t *testing.T) {
	client, _ := newTestStore(t)

	_, err := client.GetMemory(context.Background(), 424242)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestContentIsEncryptedAtRest(t *testing.T) {
	client, dbPath := newTestStore(t)
	ctx := context.Background()

	plaintext := "the wifi password is hunter2"
	id, _, err := client.AddMemory(ctx, plaintext, nil, "neutral", "")
	require.NoError(t, err)

	// Read the raw column; the plaintext must not appear on disk.
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var blob []byte
	require.NoError(t, db.QueryRow(`SELECT content FROM memories WHERE id = ?`, id).Scan(&blob))
	assert.NotContains(t, string(blob), plaintext)
}

func TestGetAllMemoriesSkipsCorruptRows(t *testing.T) {
	client, dbPath := newTestStore(t)
	ctx := context.Background()

	goodID, _, err := client.AddMemory(ctx, "a good memory", nil, "neutral", "jason")
	require.NoError(t, err)

	// Plant a row whose content is not a valid ciphertext.
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(
		`INSERT INTO memories (id, content, timestamp, tags, sentiment, speaker) VALUES (?, ?, ?, ?, ?, ?)`,
		999, []byte("garbage"), time.Now().UTC().Format(time.RFC3339Nano), "[]", "neutral", "jason",
	)
	require.NoError(t, err)

	// Bulk reads skip the corrupt row so index rebuilds survive it.
	records, err := client.GetAllMemories(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, goodID, records[0].ID)

	// Single-row reads surface the corruption.
	_, err = client.GetMemory(ctx, 999)
	assert.ErrorIs(t, err, store.ErrCorruptRecord)
}

func TestDeleteMemory(t *testing.T) {
	client, _ := newTestStore(t)
	ctx := context.Background()

	id, _, err := client.AddMemory(ctx, "temporary", nil, "neutral", "")
	require.NoError(t, err)

	require.NoError(t, client.DeleteMemory(ctx, id))
	_, err = client.GetMemory(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, client.DeleteMemory(ctx, id), store.ErrNotFound)
}

func TestKeyReuseAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := &sqlite.Config{
		DBPath:  filepath.Join(dir, "recall.db"),
		KeyPath: filepath.Join(dir, "recall.key"),
		Logger:  logging.NopLogger{},
	}

	first, err := sqlite.NewClient(cfg)
	require.NoError(t, err)
	id, _, err := first.AddMemory(context.Background(), "persisted across restarts", nil, "neutral", "jason")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// A new client over the same files must reuse the key and decrypt
	// existing rows.
	second, err := sqlite.NewClient(cfg)
	require.NoError(t, err)
	defer second.Close()

	rec, err := second.GetMemory(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "persisted across restarts", rec.Content)
}

func TestRatings(t *testing.T) {
	client, _ := newTestStore(t)
	ctx := context.Background()

	_, err := client.AddRating(ctx, "jason", "jazz playlist", 4.5)
	require.NoError(t, err)
	_, err = client.AddRating(ctx, "mila", "news briefing", 2.0)
	require.NoError(t, err)

	all, err := client.GetAllRatings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := client.GetUserRatings(ctx, "jason")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "jazz playlist", mine[0].Item)
	assert.Equal(t, 4.5, mine[0].Score)
}
