package chunking

import (
	"strings"

	"github.com/alleneee/docingest/internal/model"
)

// pack greedily accumulates atoms into chunks bounded by chunkSize
// characters, carrying forward up to chunkOverlap characters from the
// end of one chunk into the start of the next (§4.2). trackHeadings
// enables heading_path accumulation for the hierarchical chunker.
func pack(atoms []atom, chunkSize, chunkOverlap int, trackHeadings bool) []model.Chunk {
	var chunks []model.Chunk
	var headingStack []headingFrame

	var cur strings.Builder
	var curBoundary model.BoundaryKind
	curStart := 0
	offset := 0
	var curHeadingPath []string

	emit := func(oversized bool) {
		text := strings.TrimSpace(cur.String())
		if text == "" {
			cur.Reset()
			return
		}
		chunk := model.Chunk{
			Text:        text,
			Boundary:    curBoundary,
			Oversized:   oversized,
			StartOffset: curStart,
			EndOffset:   offset,
		}
		if trackHeadings {
			chunk.HeadingPath = append([]string(nil), curHeadingPath...)
		}
		chunks = append(chunks, chunk)
		cur.Reset()
	}

	overlapTail := func() string {
		text := chunks[len(chunks)-1].Text
		if chunkOverlap <= 0 || len(text) <= chunkOverlap {
			return ""
		}
		tail := text[len(text)-chunkOverlap:]
		if idx := strings.IndexAny(tail, ".!?\n"); idx >= 0 {
			tail = tail[idx+1:]
		}
		return strings.TrimSpace(tail)
	}

	for _, a := range atoms {
		if trackHeadings && a.boundary == model.BoundaryHeading {
			for len(headingStack) > 0 && headingStack[len(headingStack)-1].level >= a.level {
				headingStack = headingStack[:len(headingStack)-1]
			}
			headingStack = append(headingStack, headingFrame{title: a.heading, level: a.level})
			curHeadingPath = headingTitles(headingStack)
		}

		if a.atomic && len(a.text) > chunkSize {
			if cur.Len() > 0 {
				emit(false)
			}
			curStart = offset
			offset += len(a.text) + 1
			chunks = append(chunks, model.Chunk{
				Text:        a.text,
				Boundary:    a.boundary,
				Oversized:   true,
				StartOffset: curStart,
				EndOffset:   offset,
				HeadingPath: headingPathCopy(trackHeadings, curHeadingPath),
			})
			curStart = offset
			continue
		}

		candidateLen := cur.Len() + len(a.text) + 1
		if cur.Len() > 0 && candidateLen > chunkSize {
			emit(false)
			if tail := overlapTail(); tail != "" && len(tail)+len(a.text)+2 <= chunkSize {
				cur.WriteString(tail)
				cur.WriteString("\n")
			}
			curStart = offset - cur.Len()
			if curStart < 0 {
				curStart = offset
			}
		}

		if cur.Len() == 0 {
			curStart = offset
		}
		if cur.Len() > 0 {
			cur.WriteString("\n")
		}
		cur.WriteString(a.text)
		curBoundary = a.boundary
		offset += len(a.text) + 1
	}
	if cur.Len() > 0 {
		emit(false)
	}

	return chunks
}

type headingFrame struct {
	title string
	level int
}

func headingTitles(stack []headingFrame) []string {
	out := make([]string, len(stack))
	for i, f := range stack {
		out[i] = f.title
	}
	return out
}

func headingPathCopy(track bool, path []string) []string {
	if !track {
		return nil
	}
	return append([]string(nil), path...)
}
