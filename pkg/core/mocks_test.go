package core_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jarvisproject/recall/pkg/core"
	"github.com/jarvisproject/recall/pkg/index"
	"github.com/jarvisproject/recall/pkg/llm"
	"github.com/jarvisproject/recall/pkg/logging"
	"github.com/jarvisproject/recall/pkg/store"
)

// mockEmbedder returns fixed vectors for known texts and a deterministic
// byte-sum vector otherwise. Setting fail makes every call error, which
// simulates a dead embedding endpoint.
type mockEmbedder struct {
	dims int
	vecs map[string][]float64
	fail bool
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if m.fail {
		return nil, errors.New("embedder unavailable")
	}
	if vec, ok := m.vecs[text]; ok {
		return append([]float64(nil), vec...), nil
	}
	vec := make([]float64, m.dims)
	for i, b := range []byte(text) {
		vec[i%m.dims] += float64(b)
	}
	return vec, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int { return m.dims }
func (m *mockEmbedder) Close() error    { return nil }

// mockLLM answers the three prompt kinds used by the pipeline: sentiment
// classification, tag extraction, and compaction summaries.
type mockLLM struct {
	sentiment   string
	tags        string
	summary     string
	fail        bool
	failSummary bool
}

func (m *mockLLM) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return m.GenerateWithMessages(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

func (m *mockLLM) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	if m.fail {
		return "", errors.New("llm unavailable")
	}
	system := messages[0].Content
	switch {
	case strings.Contains(system, "sentiment"):
		if m.sentiment == "" {
			return "neutral", nil
		}
		return m.sentiment, nil
	case strings.Contains(system, "tags"):
		return m.tags, nil
	default:
		if m.failSummary {
			return "", errors.New("llm unavailable")
		}
		if m.summary == "" {
			return "- condensed fact", nil
		}
		return m.summary, nil
	}
}

func (m *mockLLM) Close() error { return nil }

// mockStore is an in-memory RecordStore with caller-controlled timestamps
// for seeded records.
type mockStore struct {
	mu      sync.Mutex
	nextID  int64
	records []*store.MemoryRecord
	ratings []*store.Rating
}

func (m *mockStore) seed(content, speaker string, ts time.Time) *store.MemoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec := &store.MemoryRecord{
		ID:        m.nextID,
		Content:   content,
		Timestamp: ts,
		Sentiment: store.SentimentNeutral,
		Speaker:   speaker,
	}
	m.records = append(m.records, rec)
	return rec
}

func (m *mockStore) AddMemory(ctx context.Context, content string, tags []string, sentiment, speaker string) (int64, time.Time, error) {
	rec := m.seed(content, speaker, time.Now().UTC())
	rec.Tags = tags
	rec.Sentiment = sentiment
	return rec.ID, rec.Timestamp, nil
}

func (m *mockStore) GetMemory(ctx context.Context, id int64) (*store.MemoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) GetAllMemories(ctx context.Context) ([]*store.MemoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*store.MemoryRecord(nil), m.records...), nil
}

func (m *mockStore) DeleteMemory(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rec := range m.records {
		if rec.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *mockStore) AddRating(ctx context.Context, user, item string, score float64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.ratings = append(m.ratings, &store.Rating{
		ID:        m.nextID,
		User:      user,
		Item:      item,
		Score:     score,
		Timestamp: time.Now().UTC(),
	})
	return m.nextID, nil
}

func (m *mockStore) GetAllRatings(ctx context.Context) ([]*store.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*store.Rating(nil), m.ratings...), nil
}

func (m *mockStore) GetUserRatings(ctx context.Context, user string) ([]*store.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Rating
	for _, r := range m.ratings {
		if r.User == user {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStore) Close() error { return nil }

func (m *mockStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// newTestClient builds an index over the seeded store and assembles a
// client around the mocks.
func newTestClient(t *testing.T, st *mockStore, emb *mockEmbedder, provider *mockLLM) (*core.Client, *index.Flat) {
	t.Helper()
	dir := t.TempDir()
	idx := index.New(&index.Config{
		Store:     st,
		Embedder:  emb,
		IndexPath: filepath.Join(dir, "recall.index"),
		MetaPath:  filepath.Join(dir, "recall.meta.json"),
		Logger:    logging.NopLogger{},
	})
	require.NoError(t, idx.Build(context.Background()))

	client := core.NewClientFromComponents(&core.Config{}, st, idx, emb, provider, logging.NopLogger{})
	t.Cleanup(func() { _ = client.Close() })
	return client, idx
}
