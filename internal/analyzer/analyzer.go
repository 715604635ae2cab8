// Package analyzer implements the Document Analyzer (C2): it inspects a
// document's raw text and produces the DocumentFeatures and
// ProcessingPlan that drive every downstream stage.
package analyzer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/alleneee/docingest/internal/config"
	"github.com/alleneee/docingest/internal/model"
)

var consecutiveNewlines = regexp.MustCompile(`\n{3,}`)

// chunkSizeTable is keyed by (file_type, complexity), matching §4.1's "small
// table keyed by (file_type, complexity)". Values are chunk_size.
var chunkSizeTable = map[model.FileType]map[model.Complexity]int{
	model.FileTypeMD: {
		model.ComplexityLow: 1200, model.ComplexityMedium: 900, model.ComplexityHigh: 600,
	},
	model.FileTypePDF: {
		model.ComplexityLow: 1000, model.ComplexityMedium: 800, model.ComplexityHigh: 500,
	},
	model.FileTypeDOCX: {
		model.ComplexityLow: 1000, model.ComplexityMedium: 800, model.ComplexityHigh: 500,
	},
	model.FileTypeHTML: {
		model.ComplexityLow: 1000, model.ComplexityMedium: 800, model.ComplexityHigh: 500,
	},
	model.FileTypeTXT: {
		model.ComplexityLow: 1200, model.ComplexityMedium: 1000, model.ComplexityHigh: 700,
	},
	model.FileTypeCode: {
		model.ComplexityLow: 1500, model.ComplexityMedium: 1500, model.ComplexityHigh: 1500,
	},
	model.FileTypeTable: {
		model.ComplexityLow: 2000, model.ComplexityMedium: 2000, model.ComplexityHigh: 2000,
	},
}

const baseOverlapRatio = 0.1

// Analyzer extracts DocumentFeatures and selects a ProcessingPlan for
// one document, per §4.1.
type Analyzer struct {
	parallel config.ParallelConfig
}

// New builds an Analyzer bound to the parallel-execution thresholds
// that decide ProcessingPlan.UseParallel.
func New(parallel config.ParallelConfig) *Analyzer {
	return &Analyzer{parallel: parallel}
}

// Analyze inspects content (already-extracted text; binary formats are
// expected to have been converted upstream by a MarkdownConverter) and
// classifies the document, returning its features and the plan that
// should drive chunking, embedding and indexing.
func (a *Analyzer) Analyze(fileType model.FileType, sizeBytes int64, content string) (model.DocumentFeatures, model.ProcessingPlan, error) {
	if fileType == model.FileTypeOther && strings.TrimSpace(content) == "" {
		return model.DocumentFeatures{}, model.ProcessingPlan{}, fmt.Errorf("%w: unknown type, no extractable text", model.ErrUnsupportedFileType)
	}

	features := extractFeatures(fileType, sizeBytes, content)
	plan := a.selectPlan(fileType, features)
	return features, plan, nil
}

func extractFeatures(fileType model.FileType, sizeBytes int64, content string) model.DocumentFeatures {
	lines := strings.Split(content, "\n")
	var headingDepth int
	var codeBlocks, tables int
	inCode := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "```") {
			codeBlocks++
			inCode = !inCode
			continue
		}
		if inCode {
			continue
		}
		if d := headingLevel(trimmed); d > 0 && d > headingDepth {
			headingDepth = d
		}
		if strings.HasPrefix(trimmed, "|") && strings.Count(trimmed, "|") >= 2 {
			tables++
		}
	}

	lang := detectLanguage(content)
	sentences := splitSentences(content, lang)
	avgSentenceLen := avgLen(sentences)
	estimatedTokens := estimateTokens(content, lang)
	density := textDensity(content)
	complexity := classifyComplexity(sizeBytes, headingDepth, codeBlocks, tables, estimatedTokens)

	return model.DocumentFeatures{
		PageCount:       estimatePageCount(sizeBytes),
		SizeBytes:       sizeBytes,
		TextDensity:     density,
		HasTables:       tables > 0,
		HasCode:         codeBlocks > 0,
		HasImages:       strings.Contains(content, "!["),
		HeadingDepth:    headingDepth,
		Language:        lang,
		EstimatedTokens: estimatedTokens,
		AvgSentenceLen:  avgSentenceLen,
		Complexity:      complexity,
	}
}

func (a *Analyzer) selectPlan(fileType model.FileType, f model.DocumentFeatures) model.ProcessingPlan {
	convertToMarkdown := false
	switch fileType {
	case model.FileTypePDF, model.FileTypeDOCX, model.FileTypeHTML:
		convertToMarkdown = f.Complexity != model.ComplexityLow
	}

	kind := selectChunkingKind(fileType, f)
	chunkSize := lookupChunkSize(fileType, f.Complexity)
	overlap := int(float64(chunkSize) * baseOverlapRatio)
	if f.AvgSentenceLen > 25 {
		overlap = int(float64(chunkSize) * baseOverlapRatio * 1.5)
	}

	useParallel := f.SizeBytes >= a.parallel.SizeThresholdB || f.EstimatedTokens >= a.parallel.TokenThreshold

	return model.ProcessingPlan{
		ConvertToMarkdown: convertToMarkdown,
		Chunking: model.ChunkingParams{
			Kind:             kind,
			ChunkSize:        chunkSize,
			ChunkOverlap:     overlap,
			RespectStructure: true,
			Language:         f.Language,
		},
		UseParallel:    useParallel,
		SegmentSize:    a.parallel.ChunkSize,
		UseIncremental: true,
	}
}

func selectChunkingKind(fileType model.FileType, f model.DocumentFeatures) model.ChunkingKind {
	switch {
	case fileType == model.FileTypeMD:
		return model.ChunkingRecursiveMD
	case fileType == model.FileTypeCode:
		return model.ChunkingCodeAware
	case fileType == model.FileTypeTable || f.HasTables:
		return model.ChunkingTableAware
	case f.HeadingDepth >= 2:
		return model.ChunkingHierarchical
	default:
		return model.ChunkingSemantic
	}
}

func lookupChunkSize(fileType model.FileType, complexity model.Complexity) int {
	if byComplexity, ok := chunkSizeTable[fileType]; ok {
		if size, ok := byComplexity[complexity]; ok {
			return size
		}
	}
	return 1000
}

func classifyComplexity(sizeBytes int64, headingDepth, codeBlocks, tables, estimatedTokens int) model.Complexity {
	score := 0
	if sizeBytes > 500_000 {
		score += 2
	} else if sizeBytes > 100_000 {
		score++
	}
	if headingDepth >= 3 {
		score += 2
	} else if headingDepth >= 1 {
		score++
	}
	if codeBlocks > 0 {
		score++
	}
	if tables > 0 {
		score++
	}
	if estimatedTokens > 50_000 {
		score += 2
	} else if estimatedTokens > 10_000 {
		score++
	}

	switch {
	case score >= 5:
		return model.ComplexityHigh
	case score >= 2:
		return model.ComplexityMedium
	default:
		return model.ComplexityLow
	}
}

// headingLevel returns the ATX heading depth of a trimmed line, or 0.
func headingLevel(trimmed string) int {
	depth := 0
	for depth < len(trimmed) && trimmed[depth] == '#' {
		depth++
	}
	if depth == 0 || depth >= len(trimmed) || trimmed[depth] != ' ' {
		return 0
	}
	return depth
}

func detectLanguage(content string) model.Language {
	var han, latin int
	for _, r := range content {
		switch {
		case unicode.Is(unicode.Han, r):
			han++
		case unicode.IsLetter(r):
			latin++
		}
	}
	switch {
	case han == 0 && latin == 0:
		return model.LanguageUnknown
	case han > latin:
		return model.LanguageChinese
	default:
		return model.LanguageEnglish
	}
}

var sentenceBoundary = regexp.MustCompile(`[.!?]+[\s]+|[。！？]`)

func splitSentences(content string, lang model.Language) []string {
	normalized := consecutiveNewlines.ReplaceAllString(content, "\n\n")
	raw := sentenceBoundary.Split(normalized, -1)
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		if t := strings.TrimSpace(s); t != "" {
			sentences = append(sentences, t)
		}
	}
	return sentences
}

func avgLen(sentences []string) float64 {
	if len(sentences) == 0 {
		return 0
	}
	total := 0
	for _, s := range sentences {
		total += len([]rune(s))
	}
	return float64(total) / float64(len(sentences))
}

// estimateTokens approximates token count: ~4 characters per token for
// Latin scripts, ~1.5 characters per token for CJK (closer to actual
// tokenizer behavior, where each Han character is close to one token).
func estimateTokens(content string, lang model.Language) int {
	runes := len([]rune(content))
	if lang == model.LanguageChinese {
		return int(float64(runes) / 1.5)
	}
	return runes / 4
}

func textDensity(content string) float64 {
	if len(content) == 0 {
		return 0
	}
	nonSpace := 0
	for _, r := range content {
		if !unicode.IsSpace(r) {
			nonSpace++
		}
	}
	return float64(nonSpace) / float64(len(content))
}

func estimatePageCount(sizeBytes int64) int {
	const bytesPerPage = 3000
	pages := int(sizeBytes / bytesPerPage)
	if pages < 1 {
		return 1
	}
	return pages
}
