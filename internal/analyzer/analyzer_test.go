package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alleneee/docingest/internal/config"
	"github.com/alleneee/docingest/internal/model"
)

func testParallelConfig() config.ParallelConfig {
	return config.ParallelConfig{
		SizeThresholdB: 5_000_000,
		TokenThreshold: 100_000,
		ChunkSize:      512,
	}
}

func TestAnalyzer_Analyze_Markdown(t *testing.T) {
	a := New(testParallelConfig())
	content := "# Title\n\n" + strings.Repeat("para one. ", 50) + "\n\n## Section\n\nmore text."

	features, plan, err := a.Analyze(model.FileTypeMD, int64(len(content)), content)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, features.HeadingDepth, 1)
	assert.Equal(t, model.ChunkingRecursiveMD, plan.Chunking.Kind)
	assert.False(t, plan.UseParallel)
}

func TestAnalyzer_Analyze_Code(t *testing.T) {
	a := New(testParallelConfig())
	content := "```go\nfunc main() {}\n```\n"

	features, plan, err := a.Analyze(model.FileTypeCode, int64(len(content)), content)
	require.NoError(t, err)

	assert.True(t, features.HasCode)
	assert.Equal(t, model.ChunkingCodeAware, plan.Chunking.Kind)
	assert.False(t, plan.ConvertToMarkdown)
}

func TestAnalyzer_Analyze_UnsupportedFileType(t *testing.T) {
	a := New(testParallelConfig())

	_, _, err := a.Analyze(model.FileTypeOther, 0, "")
	assert.ErrorIs(t, err, model.ErrUnsupportedFileType)
}

func TestAnalyzer_Analyze_UseParallelOnSize(t *testing.T) {
	a := New(testParallelConfig())
	content := strings.Repeat("word ", 10)

	_, plan, err := a.Analyze(model.FileTypeTXT, 6_000_000, content)
	require.NoError(t, err)
	assert.True(t, plan.UseParallel)
}

func TestAnalyzer_Analyze_PDFConvertsWhenComplex(t *testing.T) {
	a := New(testParallelConfig())
	var sb strings.Builder
	for i := 0; i < 2000; i++ {
		sb.WriteString("### Deeply Nested Heading\n\nSome body text describing a long and elaborate section of the document that goes on and on.\n\n")
	}
	content := sb.String()

	features, plan, err := a.Analyze(model.FileTypePDF, int64(len(content)), content)
	require.NoError(t, err)
	assert.NotEqual(t, model.ComplexityLow, features.Complexity)
	assert.True(t, plan.ConvertToMarkdown)
}
