package chunking

import (
	"regexp"
	"strings"

	"github.com/alleneee/docingest/internal/model"
)

// atom is one indivisible-or-splittable span of source text tagged
// with the boundary kind that introduced it (§4.2).
type atom struct {
	text     string
	boundary model.BoundaryKind
	atomic   bool // true for fenced code / table blocks: never split internally
	heading  string
	level    int
}

var (
	fenceRegex      = regexp.MustCompile("^```|^~~~")
	headingRegex    = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	hrRegex         = regexp.MustCompile(`^(\*{3,}|-{3,}|_{3,})\s*$`)
	listItemRegex   = regexp.MustCompile(`^(\s*)([-*+]|\d+[.)])\s+`)
	quoteRegex      = regexp.MustCompile(`^\s*>`)
	tableRowRegex   = regexp.MustCompile(`^\s*\|.*\|\s*$`)
)

// splitAtoms breaks normalized markdown-ish text into an ordered list
// of atoms along the structural boundaries §4.2 names: section/heading,
// fenced code, table rows, horizontal rules, paragraphs, quotes, list
// items. Fenced code blocks and contiguous table-row runs are marked
// atomic and are never split further downstream.
func splitAtoms(text string) []atom {
	lines := strings.Split(text, "\n")
	var atoms []atom
	var buf []string
	var bufKind model.BoundaryKind

	flush := func() {
		if len(buf) == 0 {
			return
		}
		joined := strings.TrimRight(strings.Join(buf, "\n"), "\n")
		if strings.TrimSpace(joined) != "" {
			atoms = append(atoms, atom{text: joined, boundary: bufKind})
		}
		buf = nil
	}

	i := 0
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case fenceRegex.MatchString(trimmed):
			flush()
			fence := trimmed[:3]
			block := []string{line}
			i++
			for i < len(lines) {
				block = append(block, lines[i])
				if strings.HasPrefix(strings.TrimSpace(lines[i]), fence) {
					i++
					break
				}
				i++
			}
			atoms = append(atoms, atom{text: strings.Join(block, "\n"), boundary: model.BoundaryCodeBlock, atomic: true})
			continue

		case tableRowRegex.MatchString(line):
			flush()
			block := []string{line}
			i++
			for i < len(lines) && tableRowRegex.MatchString(lines[i]) {
				block = append(block, lines[i])
				i++
			}
			atoms = append(atoms, atom{text: strings.Join(block, "\n"), boundary: model.BoundaryTable, atomic: true})
			continue

		case hrRegex.MatchString(trimmed) && trimmed != "":
			flush()
			atoms = append(atoms, atom{text: line, boundary: model.BoundaryHorizontalRule})
			i++
			continue

		case headingRegex.MatchString(trimmed):
			flush()
			m := headingRegex.FindStringSubmatch(trimmed)
			atoms = append(atoms, atom{text: line, boundary: model.BoundaryHeading, heading: m[2], level: len(m[1])})
			i++
			continue

		case trimmed == "":
			flush()
			i++
			continue

		case quoteRegex.MatchString(line):
			if bufKind != model.BoundaryQuote {
				flush()
				bufKind = model.BoundaryQuote
			}
			buf = append(buf, line)
			i++
			continue

		case listItemRegex.MatchString(line):
			if bufKind != model.BoundaryListItem {
				flush()
				bufKind = model.BoundaryListItem
			}
			buf = append(buf, line)
			i++
			continue

		default:
			if bufKind != model.BoundaryParagraph {
				flush()
				bufKind = model.BoundaryParagraph
			}
			buf = append(buf, line)
			i++
		}
	}
	flush()
	return atoms
}

var (
	englishSentenceSplit = regexp.MustCompile(`(?s)([.!?]+)(\s+|$)`)
	chineseSentenceSplit = regexp.MustCompile(`([。！？；…]+)`)
)

// splitSentenceAtoms expands a paragraph atom into per-sentence atoms
// using a language-appropriate punctuation set (§4.2).
func splitSentenceAtoms(a atom, lang model.Language) []atom {
	if a.atomic {
		return []atom{a}
	}

	var parts []string
	if lang == model.LanguageChinese {
		parts = splitKeepingDelimiter(a.text, chineseSentenceSplit)
	} else {
		parts = splitKeepingDelimiter(a.text, englishSentenceSplit)
	}

	out := make([]atom, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, atom{text: p, boundary: model.BoundarySentence})
	}
	if len(out) == 0 {
		return []atom{a}
	}
	return out
}

// splitKeepingDelimiter splits s on re, keeping the matched delimiter
// attached to the end of the preceding segment.
func splitKeepingDelimiter(s string, re *regexp.Regexp) []string {
	locs := re.FindAllStringIndex(s, -1)
	if locs == nil {
		return []string{s}
	}
	var out []string
	prev := 0
	for _, loc := range locs {
		out = append(out, s[prev:loc[1]])
		prev = loc[1]
	}
	if prev < len(s) {
		out = append(out, s[prev:])
	}
	return out
}
