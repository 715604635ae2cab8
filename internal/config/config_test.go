package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkingConfig_ValidateSetsDefaults(t *testing.T) {
	c := &ChunkingConfig{}
	require.NoError(t, c.Validate())
	assert.Equal(t, 1000, c.ChunkSize)
	assert.Equal(t, 100, c.ChunkOverlap)
	assert.Equal(t, "semantic", c.ChunkingType)
}

func TestChunkingConfig_ValidateRejectsOverlapNotLessThanSize(t *testing.T) {
	c := &ChunkingConfig{ChunkSize: 500, ChunkOverlap: 500}
	assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
}

func TestIncrementalConfig_ValidateSetsDefault(t *testing.T) {
	c := &IncrementalConfig{}
	require.NoError(t, c.Validate())
	assert.Equal(t, 0.5, c.ForceReprocessThreshold)
}

func TestIncrementalConfig_ValidateRejectsOutOfRange(t *testing.T) {
	c := &IncrementalConfig{ForceReprocessThreshold: 1.5}
	assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
}

func TestRetrievalConfig_ValidateSetsFusionDefaults(t *testing.T) {
	c := &RetrievalConfig{}
	require.NoError(t, c.Validate())
	assert.Equal(t, 0.7, c.WeightVector)
	assert.Equal(t, 0.3, c.WeightLexical)
	assert.Equal(t, 20, c.RerankTopN)
}

func TestRetrievalConfig_ValidateRespectsExplicitWeights(t *testing.T) {
	c := &RetrievalConfig{WeightVector: 0.4, WeightLexical: 0.6, RerankTopN: 5}
	require.NoError(t, c.Validate())
	assert.Equal(t, 0.4, c.WeightVector)
	assert.Equal(t, 0.6, c.WeightLexical)
	assert.Equal(t, 5, c.RerankTopN)
}

func TestConfig_ValidatePropagatesSubsectionErrors(t *testing.T) {
	cfg := &Config{Chunking: ChunkingConfig{ChunkSize: 10, ChunkOverlap: 10}}
	assert.Error(t, cfg.Validate())
}
