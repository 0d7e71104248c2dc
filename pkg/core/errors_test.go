package core_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jarvisproject/recall/pkg/core"
)

func TestMemoryErrorFormat(t *testing.T) {
	err := &core.MemoryError{Op: "RememberExact", Err: core.ErrEmbeddingFailed}
	assert.Equal(t, "recall: RememberExact: embedding generation failed", err.Error())
}

func TestMemoryErrorUnwrap(t *testing.T) {
	err := core.NewMemoryError("RunCycle", core.ErrLLMOperation)
	assert.ErrorIs(t, err, core.ErrLLMOperation)

	var memErr *core.MemoryError
	assert.True(t, errors.As(err, &memErr))
	assert.Equal(t, "RunCycle", memErr.Op)
}

func TestNewMemoryErrorNil(t *testing.T) {
	assert.NoError(t, core.NewMemoryError("Anything", nil))
}
