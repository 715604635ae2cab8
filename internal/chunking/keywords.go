package chunking

import (
	"regexp"
	"sort"
	"strings"
)

var keywordWordRegex = regexp.MustCompile(`\b\w+\b`)

// KeywordExtractor pulls the highest-frequency content words out of a
// chunk's text for retrieval metadata, filtering a bilingual stop-word
// list.
type KeywordExtractor struct {
	stopWords map[string]bool
	minLen    int
	maxTerms  int
}

// NewKeywordExtractor builds an extractor with a predefined
// English/Chinese stop-word list.
func NewKeywordExtractor() *KeywordExtractor {
	stopWords := map[string]bool{
		"的": true, "了": true, "在": true, "是": true, "我": true,
		"有": true, "和": true, "就": true, "不": true, "人": true,
		"都": true, "一": true, "个": true, "上": true, "也": true,
		"很": true, "到": true, "说": true, "要": true, "去": true, "你": true,

		"the": true, "a": true, "an": true, "and": true, "or": true,
		"but": true, "in": true, "on": true, "at": true, "to": true,
		"for": true, "of": true, "with": true, "by": true, "is": true,
		"are": true, "was": true, "were": true, "be": true, "been": true,
	}
	return &KeywordExtractor{stopWords: stopWords, minLen: 2, maxTerms: 10}
}

type wordFreq struct {
	word  string
	count int
}

// Extract returns up to maxTerms content words from content, ranked by
// descending frequency.
func (ke *KeywordExtractor) Extract(content string) []string {
	words := keywordWordRegex.FindAllString(content, -1)
	counts := make(map[string]int, len(words)/2)
	for _, w := range words {
		cleaned := strings.ToLower(strings.TrimSpace(w))
		if len(cleaned) >= ke.minLen && !ke.stopWords[cleaned] {
			counts[cleaned]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	freqs := make([]wordFreq, 0, len(counts))
	for word, count := range counts {
		freqs = append(freqs, wordFreq{word: word, count: count})
	}
	sort.Slice(freqs, func(i, j int) bool {
		if freqs[i].count != freqs[j].count {
			return freqs[i].count > freqs[j].count
		}
		return freqs[i].word < freqs[j].word
	})

	n := ke.maxTerms
	if len(freqs) < n {
		n = len(freqs)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = freqs[i].word
	}
	return out
}
