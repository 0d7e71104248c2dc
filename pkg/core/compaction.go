package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jarvisproject/recall/pkg/index"
	"github.com/jarvisproject/recall/pkg/intelligence"
	"github.com/jarvisproject/recall/pkg/llm"
	"github.com/jarvisproject/recall/pkg/logging"
	"github.com/jarvisproject/recall/pkg/store"
)

const (
	// defaultCompactionInterval is how often the compaction loop runs.
	defaultCompactionInterval = 24 * time.Hour

	// defaultCutoffDays is the record age beyond which records are
	// condensed into a summary.
	defaultCutoffDays = 180
)

// compactionPrompt instructs the LLM to condense old memories.
const compactionPrompt = "Condense the following dated memories into 5-10 short bullet points. " +
	"Keep concrete facts, names, dates and preferences; drop filler and repetition. " +
	"Attribute facts to their speaker where one is given."

// Compactor periodically condenses old memory records into a single summary
// record, keeping the store and index bounded as conversations accumulate.
//
// A cycle selects records older than the cutoff, asks the LLM to condense
// them into bullet points, writes the summary as a normal memory record, and
// only then deletes the originals. The summary write is synchronous and
// confirmed before any deletion: a crash or LLM failure mid-cycle can leave
// extra records behind, never lose information.
type Compactor struct {
	store   store.RecordStore
	ingest  *Ingestor
	llm     llm.Provider
	deduper *intelligence.Deduper
	index   *index.Flat
	logger  logging.Logger

	// Interval is the time between cycles. Default 24h.
	Interval time.Duration

	// CutoffDays is the record age in days that triggers compaction.
	// Default 180.
	CutoffDays int

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewCompactor creates a Compactor. Call Start to begin the periodic loop,
// or RunCycle to compact once.
func NewCompactor(st store.RecordStore, idx *index.Flat, ingest *Ingestor, provider llm.Provider, deduper *intelligence.Deduper, logger logging.Logger) *Compactor {
	if logger == nil {
		logger = logging.NewDefault()
	}
	return &Compactor{
		store:      st,
		index:      idx,
		ingest:     ingest,
		llm:        provider,
		deduper:    deduper,
		logger:     logger,
		Interval:   defaultCompactionInterval,
		CutoffDays: defaultCutoffDays,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the periodic compaction loop in a background goroutine.
// The loop runs until Stop is called or ctx is canceled. Cycle errors are
// logged; the loop always continues to the next tick. Calling Start twice
// is a no-op.
func (c *Compactor) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.RunCycle(ctx); err != nil {
					c.logger.Error("compaction cycle failed", "error", err)
				}
			case <-c.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the periodic loop. Safe to call more than once; a cycle
// already in flight finishes first.
func (c *Compactor) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	if c.started.Load() {
		<-c.done
	}
}

// RunCycle compacts once: condense all records older than the cutoff into
// one summary record, then delete the originals and rebuild the index.
//
// Ordering is the safety property here. The summary is written and
// confirmed before the first delete, and an LLM or store failure aborts the
// cycle with nothing deleted. Old records are then removed individually;
// a failed delete is logged and skipped, to be retried next cycle.
//
// With no records past the cutoff the cycle is a no-op.
func (c *Compactor) RunCycle(ctx context.Context) error {
	cycleID := uuid.NewString()

	records, err := c.store.GetAllMemories(ctx)
	if err != nil {
		return NewMemoryError("RunCycle", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -c.CutoffDays)
	var old []*store.MemoryRecord
	for _, rec := range records {
		if rec.Timestamp.Before(cutoff) {
			old = append(old, rec)
		}
	}
	if len(old) == 0 {
		c.logger.Debug("no records past cutoff, compaction skipped", "cycle_id", cycleID)
		return nil
	}
	c.logger.Info("compaction cycle started", "cycle_id", cycleID, "candidates", len(old))

	summary, err := c.condense(ctx, old)
	if err != nil {
		return NewMemoryError("RunCycle", err)
	}

	// Summary first, deletes second. Written through the exact path so it
	// is encrypted, indexed and deduplicated like any other record.
	summaryText := fmt.Sprintf("Summary of %d older memories:\n%s", len(old), summary)
	if _, err := c.ingest.RememberExact(ctx, summaryText, []string{"summary", "archived"}, intelligence.SentimentNeutral, SpeakerSystem); err != nil {
		return NewMemoryError("RunCycle", err)
	}

	deleted := 0
	for _, rec := range old {
		if err := c.store.DeleteMemory(ctx, rec.ID); err != nil {
			c.logger.Warn("failed to delete compacted record", "cycle_id", cycleID, "id", rec.ID, "error", err)
			continue
		}
		deleted++
	}

	if err := c.index.Build(ctx); err != nil {
		return NewMemoryError("RunCycle", err)
	}
	if c.deduper != nil {
		c.deduper.Seed(c.index.Contents())
	}

	c.logger.Info("compaction cycle finished", "cycle_id", cycleID, "deleted", deleted)
	return nil
}

// condense asks the LLM to reduce the given records to bullet points.
func (c *Compactor) condense(ctx context.Context, records []*store.MemoryRecord) (string, error) {
	var sb strings.Builder
	for _, rec := range records {
		sb.WriteString("- [")
		sb.WriteString(rec.Timestamp.Format("2006-01-02"))
		sb.WriteString("]")
		if rec.Speaker != "" {
			sb.WriteString(" (")
			sb.WriteString(rec.Speaker)
			sb.WriteString(")")
		}
		sb.WriteString(" ")
		sb.WriteString(rec.Content)
		sb.WriteString("\n")
	}

	messages := []llm.Message{
		{Role: "system", Content: compactionPrompt},
		{Role: "user", Content: sb.String()},
	}
	summary, err := c.llm.GenerateWithMessages(ctx, messages, llm.WithTemperature(0.3))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLMOperation, err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", fmt.Errorf("%w: empty summary", ErrLLMOperation)
	}
	return summary, nil
}
