package core

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jarvisproject/recall/pkg/embedder"
	"github.com/jarvisproject/recall/pkg/index"
	"github.com/jarvisproject/recall/pkg/intelligence"
	"github.com/jarvisproject/recall/pkg/logging"
	"github.com/jarvisproject/recall/pkg/store"
)

// ingestQueueSize bounds the number of turns waiting to be processed.
const ingestQueueSize = 128

// ingestTask is one conversational turn queued for background processing.
type ingestTask struct {
	id         string
	userText   string
	aiResponse string
	speaker    string
}

// Ingestor runs the background write path: heuristic screening, duplicate
// detection, LLM enrichment, encrypted store write, and index append.
//
// Turns are enqueued by Remember and processed by a single worker goroutine
// in arrival order. The caller never waits on ingestion and never sees its
// errors; failures are logged and the turn is dropped. Durability order is
// store write first, index append second, so a crash in between loses only
// index state, which the next rebuild restores.
type Ingestor struct {
	store      store.RecordStore
	index      *index.Flat
	embedder   embedder.Provider
	policy     *intelligence.HeuristicPolicy
	deduper    *intelligence.Deduper
	classifier *intelligence.Classifier
	logger     logging.Logger

	queue   chan ingestTask
	pending sync.WaitGroup
	done    chan struct{}
}

// NewIngestor creates an Ingestor and starts its worker goroutine.
func NewIngestor(st store.RecordStore, idx *index.Flat, emb embedder.Provider, policy *intelligence.HeuristicPolicy, deduper *intelligence.Deduper, classifier *intelligence.Classifier, logger logging.Logger) *Ingestor {
	if policy == nil {
		policy = intelligence.DefaultHeuristicPolicy()
	}
	if logger == nil {
		logger = logging.NewDefault()
	}
	ing := &Ingestor{
		store:      st,
		index:      idx,
		embedder:   emb,
		policy:     policy,
		deduper:    deduper,
		classifier: classifier,
		logger:     logger,
		queue:      make(chan ingestTask, ingestQueueSize),
		done:       make(chan struct{}),
	}
	go ing.run()
	return ing
}

// Remember enqueues a conversational turn for background ingestion and
// returns immediately. The user text and the assistant's response are
// screened together; only turns the heuristic flags as containing durable
// facts produce memory records.
//
// A full queue drops the turn with a warning rather than blocking the
// caller's response path.
func (i *Ingestor) Remember(userText, aiResponse, speaker string) {
	task := ingestTask{
		id:         uuid.NewString(),
		userText:   userText,
		aiResponse: aiResponse,
		speaker:    speaker,
	}
	i.pending.Add(1)
	select {
	case i.queue <- task:
	default:
		i.pending.Done()
		i.logger.Warn("ingest queue full, turn dropped", "task_id", task.id)
	}
}

// RememberExact writes content as a memory record with the given metadata,
// bypassing the heuristic and LLM enrichment, and indexes it synchronously.
// Compaction uses this for summary records; it is also the right call for
// maintenance tooling that imports known facts.
//
// Returns the new record id.
func (i *Ingestor) RememberExact(ctx context.Context, content string, tags []string, sentiment, speaker string) (int64, error) {
	if content == "" {
		return 0, NewMemoryError("RememberExact", ErrInvalidInput)
	}

	id, ts, err := i.store.AddMemory(ctx, content, tags, sentiment, speaker)
	if err != nil {
		return 0, NewMemoryError("RememberExact", err)
	}

	vec, err := i.embedder.Embed(ctx, content)
	if err != nil {
		return 0, NewMemoryError("RememberExact", err)
	}
	if err := i.index.Append(vec, index.Entry{
		ID:        id,
		Content:   content,
		Timestamp: ts,
		Tags:      tags,
		Sentiment: sentiment,
		Speaker:   speaker,
	}); err != nil {
		return 0, NewMemoryError("RememberExact", err)
	}

	if i.deduper != nil {
		i.deduper.Add(content)
	}
	return id, nil
}

// Wait blocks until every turn enqueued so far has been fully processed.
// Tests use this to make the fire-and-forget pipeline deterministic.
func (i *Ingestor) Wait() {
	i.pending.Wait()
}

// Close stops the worker after draining the queue.
func (i *Ingestor) Close() {
	close(i.queue)
	<-i.done
}

func (i *Ingestor) run() {
	defer close(i.done)
	for task := range i.queue {
		i.process(context.Background(), task)
		i.pending.Done()
	}
}

// process runs the full pipeline for one turn. All failures are logged and
// swallowed; ingestion never propagates errors to the conversation.
func (i *Ingestor) process(ctx context.Context, task ingestTask) {
	remember, fragment := i.policy.ShouldRemember(task.userText, task.aiResponse)
	if !remember {
		return
	}

	for _, chunk := range intelligence.SplitIntoChunks(fragment) {
		if i.deduper != nil && i.deduper.IsDuplicate(chunk) {
			i.logger.Debug("near-duplicate fragment skipped", "task_id", task.id)
			continue
		}

		sentiment := intelligence.SentimentNeutral
		var tags []string
		if i.classifier != nil {
			sentiment = i.classifier.ClassifySentiment(ctx, chunk)
			tags = i.classifier.ExtractTags(ctx, chunk)
		}

		if _, err := i.RememberExact(ctx, chunk, tags, sentiment, task.speaker); err != nil {
			i.logger.Error("memory ingestion failed", "task_id", task.id, "error", err)
		}
	}
}
