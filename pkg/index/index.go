// Package index maintains a similarity-searchable index over the embeddings
// of all stored memory records.
//
// The index is a flat inner-product structure: embeddings are L2-normalized,
// so inner product equals cosine similarity and scores fall in [-1, 1]. The
// embedding vectors and their metadata entries are kept in parallel slices;
// position i in one always corresponds to position i in the other. That
// alignment is the central invariant of this package: every append touches
// both slices inside one critical section, and every rebuild regenerates
// both together from the record store.
//
// Index entries are derived and disposable. Whenever there is any doubt
// about alignment (a crash between snapshot writes, a count mismatch on
// load) the whole index is rebuilt from the store.
package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jarvisproject/recall/pkg/embedder"
	"github.com/jarvisproject/recall/pkg/logging"
	"github.com/jarvisproject/recall/pkg/store"
)

// embedBatchSize bounds the number of texts per embedding request during
// rebuilds.
const embedBatchSize = 50

// Entry is the metadata kept alongside one embedding vector. It mirrors the
// MemoryRecord it was derived from at build time.
type Entry struct {
	// ID is the id of the underlying memory record.
	ID int64 `json:"id"`

	// Content is the record's plaintext content.
	Content string `json:"content"`

	// Timestamp is the record's creation time.
	Timestamp time.Time `json:"timestamp"`

	// Tags are the record's tags.
	Tags []string `json:"tags"`

	// Sentiment is the record's sentiment label.
	Sentiment string `json:"sentiment"`

	// Speaker is the record's speaker, or "" when unknown.
	Speaker string `json:"speaker,omitempty"`
}

// Hit is an Entry annotated with a similarity score from a query.
type Hit struct {
	Entry

	// Score is the cosine similarity to the query in [-1, 1], before any
	// ranking boosts applied by the retrieval engine.
	Score float64 `json:"score"`
}

// Config contains configuration for creating a Flat index.
type Config struct {
	// Store is the record store the index is derived from.
	Store store.RecordStore

	// Embedder produces the vectors.
	Embedder embedder.Provider

	// IndexPath is the path of the serialized vector file.
	IndexPath string

	// MetaPath is the path of the JSON metadata file.
	MetaPath string

	// Logger receives rebuild and snapshot diagnostics.
	Logger logging.Logger
}

// Flat is a flat inner-product index with parallel metadata.
//
// One RWMutex guards vectors and metadata together: queries take the read
// lock, appends, rebuilds and snapshot writes take the write lock. Readers
// never observe a vector without its metadata or a half-rebuilt index.
type Flat struct {
	recordStore store.RecordStore
	embedder    embedder.Provider
	indexPath   string
	metaPath    string
	logger      logging.Logger

	mu      sync.RWMutex
	dim     int
	vectors [][]float64
	meta    []Entry
}

// New creates a Flat index. It performs no I/O; call Load or Build next.
func New(cfg *Config) *Flat {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDefault()
	}
	return &Flat{
		recordStore: cfg.Store,
		embedder:    cfg.Embedder,
		indexPath:   cfg.IndexPath,
		metaPath:    cfg.MetaPath,
		logger:      logger,
		dim:         cfg.Embedder.Dimensions(),
	}
}

// Build rebuilds the index from scratch: reads every record from the store,
// embeds contents in batches, normalizes, and persists the snapshot. The
// zero-record case produces a valid empty index.
//
// Build holds the write lock for the swap and the snapshot write, so
// concurrent queries see either the old index or the new one, never a
// mixture.
func (f *Flat) Build(ctx context.Context) error {
	records, err := f.recordStore.GetAllMemories(ctx)
	if err != nil {
		return fmt.Errorf("index build: %w", err)
	}

	vectors := make([][]float64, 0, len(records))
	meta := make([]Entry, 0, len(records))

	for start := 0; start < len(records); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		texts := make([]string, len(batch))
		for i, rec := range batch {
			texts[i] = rec.Content
		}
		embs, err := f.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("index build: embed batch: %w", err)
		}
		for i, rec := range batch {
			vectors = append(vectors, normalize(embs[i]))
			meta = append(meta, entryFromRecord(rec))
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors = vectors
	f.meta = meta
	if err := f.saveLocked(); err != nil {
		return err
	}
	f.logger.Info("index rebuilt", "entries", len(meta))
	return nil
}

// Load reads the persisted snapshot from disk. A missing or inconsistent
// snapshot falls back to a full Build.
func (f *Flat) Load(ctx context.Context) error {
	vectors, meta, err := f.loadSnapshot()
	if err != nil {
		f.logger.Warn("index snapshot unusable, rebuilding", "error", err)
		return f.Build(ctx)
	}

	f.mu.Lock()
	f.vectors = vectors
	f.meta = meta
	f.mu.Unlock()
	f.logger.Info("index loaded", "entries", len(meta))
	return nil
}

// Query embeds text and returns the topK nearest entries with similarity
// scores. An empty index yields an empty result, never an error.
func (f *Flat) Query(ctx context.Context, text string, topK int) ([]Hit, error) {
	if f.Len() == 0 || topK <= 0 {
		return nil, nil
	}

	queryVec, err := f.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("index query: %w", err)
	}
	queryVec = normalize(queryVec)

	f.mu.RLock()
	defer f.mu.RUnlock()

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(f.vectors))
	for i, vec := range f.vectors {
		scores[i] = scored{idx: i, score: dot(queryVec, vec)}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if topK > len(scores) {
		topK = len(scores)
	}
	hits := make([]Hit, topK)
	for i := 0; i < topK; i++ {
		hits[i] = Hit{Entry: f.meta[scores[i].idx], Score: scores[i].score}
	}
	return hits, nil
}

// Append adds one embedding and its metadata as a single logical operation
// and persists the snapshot before releasing the lock. Concurrent queries
// never observe a vector without matching metadata or vice versa.
//
// The vector is normalized internally; callers pass the raw embedding.
func (f *Flat) Append(vec []float64, entry Entry) error {
	if len(vec) != f.dim {
		return fmt.Errorf("index append: vector has dim %d, index has dim %d", len(vec), f.dim)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors = append(f.vectors, normalize(vec))
	f.meta = append(f.meta, entry)
	return f.saveLocked()
}

// Save persists the current index and metadata.
func (f *Flat) Save() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveLocked()
}

// Len returns the number of indexed entries.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.meta)
}

// Entries returns a copy of the metadata slice.
func (f *Flat) Entries() []Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]Entry(nil), f.meta...)
}

// Contents returns the content of every indexed entry, in index order.
// The ingestion pipeline seeds its duplicate cache with this.
func (f *Flat) Contents() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	contents := make([]string, len(f.meta))
	for i, e := range f.meta {
		contents[i] = e.Content
	}
	return contents
}

// Speakers returns the distinct non-empty speakers present in the index.
func (f *Flat) Speakers() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	seen := make(map[string]struct{})
	var speakers []string
	for _, e := range f.meta {
		if e.Speaker == "" {
			continue
		}
		if _, ok := seen[e.Speaker]; ok {
			continue
		}
		seen[e.Speaker] = struct{}{}
		speakers = append(speakers, e.Speaker)
	}
	return speakers
}

// HasSpeaker reports whether any indexed entry belongs to speaker.
func (f *Flat) HasSpeaker(speaker string) bool {
	if speaker == "" {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, e := range f.meta {
		if e.Speaker == speaker {
			return true
		}
	}
	return false
}

// Dimensions returns the vector dimension of the index.
func (f *Flat) Dimensions() int {
	return f.dim
}

func entryFromRecord(rec *store.MemoryRecord) Entry {
	return Entry{
		ID:        rec.ID,
		Content:   rec.Content,
		Timestamp: rec.Timestamp,
		Tags:      rec.Tags,
		Sentiment: rec.Sentiment,
		Speaker:   rec.Speaker,
	}
}

// normalize returns a unit-length copy of v. A zero vector is returned
// unchanged.
func normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// dot computes the inner product of two equal-length vectors.
func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
