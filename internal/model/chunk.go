package model

// BoundaryKind labels the kind of split point a chunk boundary landed
// on, along with its priority (§4.2). Higher priority wins when a
// split point must be chosen among several candidates.
type BoundaryKind string

const (
	BoundarySectionBreak    BoundaryKind = "SECTION_BREAK"
	BoundaryHeading         BoundaryKind = "HEADING"
	BoundaryCodeBlock       BoundaryKind = "CODE_BLOCK"
	BoundaryTable           BoundaryKind = "TABLE"
	BoundaryHorizontalRule  BoundaryKind = "HORIZONTAL_RULE"
	BoundaryParagraph       BoundaryKind = "PARAGRAPH"
	BoundaryQuote           BoundaryKind = "QUOTE"
	BoundaryListItem        BoundaryKind = "LIST_ITEM"
	BoundarySentence        BoundaryKind = "SENTENCE"
)

// BoundaryPriority returns the fixed priority table from §4.2. Highest
// value wins when the chunker must choose among candidate split
// points that all fit within chunk_size.
func BoundaryPriority(kind BoundaryKind) float64 {
	switch kind {
	case BoundarySectionBreak, BoundaryHeading, BoundaryCodeBlock, BoundaryTable:
		return 1.0
	case BoundaryHorizontalRule:
		return 0.9
	case BoundaryParagraph, BoundaryQuote:
		return 0.8
	case BoundaryListItem:
		return 0.7
	case BoundarySentence:
		return 0.5
	default:
		return 0.0
	}
}

// Chunk is one ordered, bounded piece of text produced by a chunker,
// prior to embedding (§4.2). Its boundary, heading path and offsets
// carry the metadata needed to later build a persisted Node.
type Chunk struct {
	Text        string
	Boundary    BoundaryKind
	Oversized   bool
	HeadingPath []string
	StartOffset int
	EndOffset   int
}

// Node is a persisted Chunk: text + embedding + metadata, owned
// exclusively by the Vector Index Adapter (C5) (§3).
// Invariant: for a given DocID, Ordinal is unique and the set of
// Ordinals forms a contiguous range [0, node_count).
type Node struct {
	ChunkID     string
	DocID       string
	Ordinal     int
	Text        string
	Embedding   []float32
	Metadata    map[string]any
	ContentHash string
}

// Segment is a coarse slice of a large document dispatched as one unit
// of work to a worker by the Parallel/Segmented Executor (C7) (§3).
type Segment struct {
	SegmentID   string
	DocID       string
	OrdinalBase int
	Text        string
	ByteStart   int
	ByteEnd     int
}

// SegmentResult is what one segment task (chunk→embed→upsert) reports
// back to the executor's join stage (§4.6 step 2).
type SegmentResult struct {
	SegmentID   string
	ChunkIDs    []string
	ChunkHashes []string
	Count       int
	Err         error
}
