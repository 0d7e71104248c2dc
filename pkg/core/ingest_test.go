package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarvisproject/recall/pkg/core"
)

func TestRememberStoresMemorableTurn(t *testing.T) {
	st := &mockStore{}
	client, idx := newTestClient(t, st, &mockEmbedder{dims: 4}, &mockLLM{
		sentiment: "positive",
		tags:      "fruit, preference",
	})

	client.Remember("My favorite fruit is mango", "jason")
	client.WaitForIngestion()

	records, err := st.GetAllMemories(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "My favorite fruit is mango", records[0].Content)
	assert.Equal(t, "jason", records[0].Speaker)
	assert.Equal(t, "positive", records[0].Sentiment)
	assert.Equal(t, []string{"fruit", "preference"}, records[0].Tags)

	// The write is visible to retrieval immediately after ingestion.
	assert.Equal(t, 1, idx.Len())
}

func TestRememberDropsSmallTalk(t *testing.T) {
	st := &mockStore{}
	client, idx := newTestClient(t, st, &mockEmbedder{dims: 4}, &mockLLM{})

	client.Remember("How warm will it be tomorrow?", "jason")
	client.WaitForIngestion()

	assert.Equal(t, 0, st.count())
	assert.Equal(t, 0, idx.Len())
}

func TestRememberDeduplicates(t *testing.T) {
	st := &mockStore{}
	client, idx := newTestClient(t, st, &mockEmbedder{dims: 4}, &mockLLM{})

	client.Remember("My favorite fruit is mango", "jason")
	client.Remember("my favorite fruit is MANGO", "jason")
	client.WaitForIngestion()

	// The reworded repeat overlaps the cached fragment beyond the
	// threshold and is dropped.
	assert.Equal(t, 1, st.count())
	assert.Equal(t, 1, idx.Len())
}

func TestRememberDedupSeededFromIndex(t *testing.T) {
	st := &mockStore{}
	st.seed("my favorite fruit is mango", "jason", time.Now().UTC())

	client, idx := newTestClient(t, st, &mockEmbedder{dims: 4}, &mockLLM{})
	require.Equal(t, 1, idx.Len())

	// The duplicate cache is seeded from the loaded index, so repeats of
	// pre-existing memories are dropped too.
	client.Remember("My favorite fruit is mango", "jason")
	client.WaitForIngestion()

	assert.Equal(t, 1, st.count())
}

func TestRememberStoresDistinctCorrection(t *testing.T) {
	st := &mockStore{}
	client, _ := newTestClient(t, st, &mockEmbedder{dims: 4}, &mockLLM{})

	client.Remember("My favorite fruit is mango", "jason")
	client.WaitForIngestion()
	client.Remember("Actually my favorite fruit is papaya now", "jason")
	client.WaitForIngestion()

	// The correction shares words with the original but stays under the
	// duplicate threshold; both must survive.
	assert.Equal(t, 2, st.count())
}

func TestRememberTurnScreensResponseToo(t *testing.T) {
	st := &mockStore{}
	client, _ := newTestClient(t, st, &mockEmbedder{dims: 4}, &mockLLM{})

	// The trigger phrase appears only in the assistant's response; the
	// fact sentence is extracted from the user text.
	client.RememberTurn("Jason. I was born in May", "Happy early birthday!", "jason")
	client.WaitForIngestion()

	records, err := st.GetAllMemories(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "I was born in May", records[0].Content)
}

func TestRememberExact(t *testing.T) {
	st := &mockStore{}
	client, idx := newTestClient(t, st, &mockEmbedder{dims: 4}, &mockLLM{})

	id, err := client.RememberExact(context.Background(), "the wifi password is hunter2",
		[]string{"household"}, "neutral", core.SpeakerSystem)
	require.NoError(t, err)
	assert.Positive(t, id)

	rec, err := st.GetMemory(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "the wifi password is hunter2", rec.Content)
	assert.Equal(t, []string{"household"}, rec.Tags)
	assert.Equal(t, core.SpeakerSystem, rec.Speaker)
	assert.Equal(t, 1, idx.Len())
}

func TestRememberExactRejectsEmptyContent(t *testing.T) {
	client, _ := newTestClient(t, &mockStore{}, &mockEmbedder{dims: 4}, &mockLLM{})

	_, err := client.RememberExact(context.Background(), "", nil, "neutral", "jason")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestRememberSurvivesEnrichmentFailure(t *testing.T) {
	st := &mockStore{}
	client, _ := newTestClient(t, st, &mockEmbedder{dims: 4}, &mockLLM{fail: true})

	// Even with every LLM call failing, sentiment and tags fall back to
	// neutral/none and the record is still written.
	client.Remember("My name is Jason", "jason")
	client.WaitForIngestion()

	records, err := st.GetAllMemories(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "My name is Jason", records[0].Content)
}

func TestRatings(t *testing.T) {
	client, _ := newTestClient(t, &mockStore{}, &mockEmbedder{dims: 4}, &mockLLM{})
	ctx := context.Background()

	_, err := client.AddRating(ctx, "jason", "jazz playlist", 4.5)
	require.NoError(t, err)
	_, err = client.AddRating(ctx, "mila", "jazz playlist", 2.0)
	require.NoError(t, err)

	all, err := client.GetAllRatings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := client.GetUserRatings(ctx, "jason")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, 4.5, mine[0].Score)
}
