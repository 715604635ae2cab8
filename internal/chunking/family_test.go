package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alleneee/docingest/internal/model"
)

func TestMarkdownChunker_SmallMarkdown(t *testing.T) {
	family := NewFamily()
	content := "# Title\n\npara one.\n\npara two."

	chunks, err := family.Chunk(content, model.ChunkingParams{
		Kind:      model.ChunkingRecursiveMD,
		ChunkSize: 40,
	})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "# Title\n\npara one.", chunks[0].Text)
	assert.Equal(t, "# Title\n\npara two.", chunks[1].Text)
}

func TestMarkdownChunker_OversizedCodeBlock(t *testing.T) {
	family := NewFamily()
	body := strings.Repeat("x", 2000)
	content := "```go\n" + body + "\n```"

	chunks, err := family.Chunk(content, model.ChunkingParams{
		Kind:      model.ChunkingRecursiveMD,
		ChunkSize: 500,
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].Oversized)
	assert.Equal(t, model.BoundaryCodeBlock, chunks[0].Boundary)
	assert.Contains(t, chunks[0].Text, body)
}

func TestCodeAwareChunker_NeverSplitsFence(t *testing.T) {
	family := NewFamily()
	body := strings.Repeat("y", 2000)
	content := "Some intro text.\n\n```python\n" + body + "\n```\n\nSome trailing text."

	chunks, err := family.Chunk(content, model.ChunkingParams{
		Kind:      model.ChunkingCodeAware,
		ChunkSize: 500,
	})
	require.NoError(t, err)

	var sawOversizedFence bool
	for _, c := range chunks {
		if c.Boundary == model.BoundaryCodeBlock {
			assert.True(t, c.Oversized)
			assert.Contains(t, c.Text, body)
			sawOversizedFence = true
		}
	}
	assert.True(t, sawOversizedFence)
}

func TestTableAwareChunker_NeverSplitsRow(t *testing.T) {
	family := NewFamily()
	content := "| a | b |\n| --- | --- |\n| 1 | 2 |\n| 3 | 4 |"

	chunks, err := family.Chunk(content, model.ChunkingParams{
		Kind:      model.ChunkingTableAware,
		ChunkSize: 1000,
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, model.BoundaryTable, chunks[0].Boundary)
	assert.Equal(t, content, chunks[0].Text)
}

func TestHierarchicalChunker_EmitsHeadingPath(t *testing.T) {
	family := NewFamily()
	content := "# Top\n\nintro.\n\n## Sub\n\ndetail."

	chunks, err := family.Chunk(content, model.ChunkingParams{
		Kind:      model.ChunkingHierarchical,
		ChunkSize: 1000,
	})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.NotNil(t, c.HeadingPath)
	}
}

func TestSentenceChunker_ChineseBoundaries(t *testing.T) {
	family := NewFamily()
	content := "这是第一句。这是第二句！这是第三句？"

	chunks, err := family.Chunk(content, model.ChunkingParams{
		Kind:      model.ChunkingSentence,
		ChunkSize: 20,
		Language:  model.LanguageChinese,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 20)
	}
}

func TestFamily_UnknownKind(t *testing.T) {
	family := NewFamily()
	_, err := family.Chunk("text", model.ChunkingParams{Kind: "bogus", ChunkSize: 100})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestFamily_EmptyText(t *testing.T) {
	family := NewFamily()
	chunks, err := family.Chunk("   ", model.ChunkingParams{Kind: model.ChunkingParagraph, ChunkSize: 100})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
