package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDevelopment_SetsGlobalInstance(t *testing.T) {
	require.NoError(t, InitDevelopment())
	assert.NotNil(t, Get())
	assert.Same(t, Get(), MustGet())
}

func TestGet_FallsBackWhenUninitialized(t *testing.T) {
	instance = nil
	assert.NotNil(t, Get(), "Get must lazily build a logger rather than returning nil")
}

func TestMustGet_PanicsWhenUninitialized(t *testing.T) {
	instance = nil
	assert.Panics(t, func() { MustGet() })
}
