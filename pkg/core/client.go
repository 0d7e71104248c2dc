package core

import (
	"context"
	"time"

	"github.com/jarvisproject/recall/pkg/embedder"
	openaiEmbedder "github.com/jarvisproject/recall/pkg/embedder/openai"
	"github.com/jarvisproject/recall/pkg/index"
	"github.com/jarvisproject/recall/pkg/intelligence"
	"github.com/jarvisproject/recall/pkg/llm"
	ollamaLLM "github.com/jarvisproject/recall/pkg/llm/ollama"
	openaiLLM "github.com/jarvisproject/recall/pkg/llm/openai"
	"github.com/jarvisproject/recall/pkg/logging"
	"github.com/jarvisproject/recall/pkg/store"
	mysqlStore "github.com/jarvisproject/recall/pkg/store/mysql"
	postgresStore "github.com/jarvisproject/recall/pkg/store/postgres"
	sqliteStore "github.com/jarvisproject/recall/pkg/store/sqlite"
)

// Client is the main Recall client: the assistant's long-term memory.
//
// It composes the encrypted record store, the vector index, the retrieval
// engine, the background ingestion pipeline, and the compaction scheduler
// behind one interface:
//
//   - Remember / RememberExact add memories (background and synchronous).
//   - RetrieveRelevant / RetrieveForSpeaker / RetrieveSimple query them.
//   - StartCompaction keeps the store bounded over months of use.
//
// The client is safe for concurrent use from multiple goroutines.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	client, _ := core.NewClient(context.Background(), config)
//	defer client.Close()
//
//	client.Remember("My favorite fruit is mango", "jason")
//	results := client.RetrieveForSpeaker(ctx, "what fruit do I like?", "jason", 3)
type Client struct {
	// config contains the client configuration.
	config *Config

	// store is the encrypted record store.
	store store.RecordStore

	// index is the vector index over all records.
	index *index.Flat

	// embedder is the embedding provider for vector generation.
	embedder embedder.Provider

	// llm is the LLM provider for enrichment and compaction summaries.
	llm llm.Provider

	// deduper tracks known fragments for duplicate suppression.
	deduper *intelligence.Deduper

	// ingestor runs the background write path.
	ingestor *Ingestor

	// compactor runs the periodic summarization loop.
	compactor *Compactor

	// logger receives diagnostics from all components.
	logger logging.Logger
}

// ClientOption customizes client construction.
type ClientOption func(*clientOptions)

type clientOptions struct {
	logger logging.Logger
	policy *intelligence.HeuristicPolicy
}

// WithLogger sets the logger used by the client and every component it
// creates. Default is a JSON slog logger on stderr.
func WithLogger(logger logging.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithHeuristicPolicy replaces the stock worth-remembering pattern set used
// by the ingestion pipeline.
func WithHeuristicPolicy(policy *intelligence.HeuristicPolicy) ClientOption {
	return func(o *clientOptions) {
		o.policy = policy
	}
}

// NewClient creates a new Recall client.
//
// The client is initialized with:
//   - Encrypted record store (SQLite, PostgreSQL, or MySQL)
//   - Embedding provider with an in-process query cache
//   - LLM provider (OpenAI or Ollama)
//   - Vector index, loaded from its snapshot or rebuilt from the store
//
// The index load may embed every stored record when the snapshot is missing
// or inconsistent, so construction can take a while on a cold start; ctx
// bounds that work.
//
// Parameters:
//   - ctx: Context for the initial index load
//   - cfg: Configuration containing store, embedding, LLM and index settings
//   - opts: Optional overrides (logger, heuristic policy)
//
// Returns a new Client instance, or an error if initialization fails.
//
// Example:
//
//	config, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := core.NewClient(context.Background(), config)
func NewClient(ctx context.Context, cfg *Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &clientOptions{}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger
	if logger == nil {
		logger = logging.NewDefault()
	}

	recordStore, err := initStore(cfg.Store, logger)
	if err != nil {
		return nil, NewMemoryError("NewClient", err)
	}

	embedderProvider, err := initEmbedder(cfg.Embedder)
	if err != nil {
		recordStore.Close()
		return nil, NewMemoryError("NewClient", err)
	}

	llmProvider, err := initLLM(cfg.LLM)
	if err != nil {
		recordStore.Close()
		embedderProvider.Close()
		return nil, NewMemoryError("NewClient", err)
	}

	idx := index.New(&index.Config{
		Store:     recordStore,
		Embedder:  embedderProvider,
		IndexPath: cfg.Index.IndexPath,
		MetaPath:  cfg.Index.MetaPath,
		Logger:    logger,
	})
	if err := idx.Load(ctx); err != nil {
		recordStore.Close()
		embedderProvider.Close()
		llmProvider.Close()
		return nil, NewMemoryError("NewClient", err)
	}

	client := assembleClient(cfg, recordStore, idx, embedderProvider, llmProvider, options.policy, logger)
	if cfg.Compaction.IntervalHours > 0 {
		client.compactor.Interval = time.Duration(cfg.Compaction.IntervalHours) * time.Hour
	}
	if cfg.Compaction.CutoffDays > 0 {
		client.compactor.CutoffDays = cfg.Compaction.CutoffDays
	}
	return client, nil
}

// NewClientFromComponents assembles a client from already-constructed
// components. The caller keeps ownership of component lifecycles except for
// the ingestion worker, which Close still stops. Intended for tests and for
// embedding scenarios that share providers between subsystems.
func NewClientFromComponents(cfg *Config, st store.RecordStore, idx *index.Flat, emb embedder.Provider, provider llm.Provider, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewDefault()
	}
	return assembleClient(cfg, st, idx, emb, provider, nil, logger)
}

func assembleClient(cfg *Config, st store.RecordStore, idx *index.Flat, emb embedder.Provider, provider llm.Provider, policy *intelligence.HeuristicPolicy, logger logging.Logger) *Client {
	deduper := intelligence.NewDeduper(0)
	deduper.Seed(idx.Contents())
	classifier := intelligence.NewClassifier(provider, logger)
	ingestor := NewIngestor(st, idx, emb, policy, deduper, classifier, logger)

	return &Client{
		config:    cfg,
		store:     st,
		index:     idx,
		embedder:  emb,
		llm:       provider,
		deduper:   deduper,
		ingestor:  ingestor,
		compactor: NewCompactor(st, idx, ingestor, provider, deduper, logger),
		logger:    logger,
	}
}

// Remember enqueues content for background ingestion and returns
// immediately. Equivalent to RememberTurn with no assistant response.
//
// Fire-and-forget: the caller gets no result and no error. Content that
// the worth-remembering heuristic rejects, or that duplicates an existing
// memory, is silently dropped.
func (c *Client) Remember(content, speaker string) {
	c.ingestor.Remember(content, "", speaker)
}

// RememberTurn enqueues a full conversational turn (user text plus
// assistant response) for background ingestion. The two are screened
// together, since the assistant's reply often confirms which fact the turn
// established.
func (c *Client) RememberTurn(userText, aiResponse, speaker string) {
	c.ingestor.Remember(userText, aiResponse, speaker)
}

// RememberExact synchronously stores and indexes content with the given
// metadata, bypassing the heuristic and LLM enrichment. Returns the new
// record id.
func (c *Client) RememberExact(ctx context.Context, content string, tags []string, sentiment, speaker string) (int64, error) {
	return c.ingestor.RememberExact(ctx, content, tags, sentiment, speaker)
}

// WaitForIngestion blocks until every turn enqueued so far has been
// processed. Useful in tests and at shutdown.
func (c *Client) WaitForIngestion() {
	c.ingestor.Wait()
}

// StartCompaction launches the periodic compaction loop.
func (c *Client) StartCompaction(ctx context.Context) {
	c.compactor.Start(ctx)
}

// RunCompaction runs one compaction cycle synchronously.
func (c *Client) RunCompaction(ctx context.Context) error {
	return c.compactor.RunCycle(ctx)
}

// RebuildIndex discards the vector index and rebuilds it from the record
// store. Recovery tool for a lost or corrupted snapshot.
func (c *Client) RebuildIndex(ctx context.Context) error {
	if err := c.index.Build(ctx); err != nil {
		return NewMemoryError("RebuildIndex", err)
	}
	c.deduper.Seed(c.index.Contents())
	return nil
}

// AddRating records user feedback about an item. Returns the new rating id.
func (c *Client) AddRating(ctx context.Context, user, item string, rating float64) (int64, error) {
	id, err := c.store.AddRating(ctx, user, item, rating)
	if err != nil {
		return 0, NewMemoryError("AddRating", err)
	}
	return id, nil
}

// GetAllRatings returns every stored rating.
func (c *Client) GetAllRatings(ctx context.Context) ([]*store.Rating, error) {
	ratings, err := c.store.GetAllRatings(ctx)
	if err != nil {
		return nil, NewMemoryError("GetAllRatings", err)
	}
	return ratings, nil
}

// GetUserRatings returns all ratings recorded for one user.
func (c *Client) GetUserRatings(ctx context.Context, user string) ([]*store.Rating, error) {
	ratings, err := c.store.GetUserRatings(ctx, user)
	if err != nil {
		return nil, NewMemoryError("GetUserRatings", err)
	}
	return ratings, nil
}

// Close shuts the client down: stops compaction, drains the ingestion
// queue, and closes the providers and the store.
func (c *Client) Close() error {
	c.compactor.Stop()
	c.ingestor.Close()

	var firstErr error
	if err := c.embedder.Close(); err != nil {
		firstErr = err
	}
	if err := c.llm.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return NewMemoryError("Close", firstErr)
}

// initStore creates the record store backend named by cfg.Provider.
func initStore(cfg StoreConfig, logger logging.Logger) (store.RecordStore, error) {
	switch cfg.Provider {
	case "sqlite":
		return sqliteStore.NewClient(&sqliteStore.Config{
			DBPath:  cfg.SQLitePath,
			KeyPath: cfg.KeyPath,
			Logger:  logger,
		})
	case "postgres":
		return postgresStore.NewClient(&postgresStore.Config{
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			DBName:   cfg.Database,
			SSLMode:  cfg.SSLMode,
			KeyPath:  cfg.KeyPath,
			Logger:   logger,
		})
	case "mysql":
		return mysqlStore.NewClient(&mysqlStore.Config{
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			DBName:   cfg.Database,
			KeyPath:  cfg.KeyPath,
			Logger:   logger,
		})
	default:
		return nil, ErrInvalidConfig
	}
}

// initEmbedder creates the embedding provider with its query cache.
func initEmbedder(cfg EmbedderConfig) (embedder.Provider, error) {
	base, err := openaiEmbedder.NewClient(&openaiEmbedder.Config{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		Dimensions: cfg.Dimensions,
	})
	if err != nil {
		return nil, err
	}
	return embedder.NewCached(base, cfg.CacheSize)
}

// initLLM creates the LLM provider named by cfg.Provider.
func initLLM(cfg LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return openaiLLM.NewClient(&openaiLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case "ollama":
		return ollamaLLM.NewClient(&ollamaLLM.Config{
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	default:
		return nil, ErrInvalidConfig
	}
}
