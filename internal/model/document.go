package model

import "time"

// FileType enumerates the document source formats the analyzer
// recognizes (§3).
type FileType string

const (
	FileTypePDF   FileType = "pdf"
	FileTypeDOCX  FileType = "docx"
	FileTypeMD    FileType = "md"
	FileTypeTXT   FileType = "txt"
	FileTypeCode  FileType = "code"
	FileTypeHTML  FileType = "html"
	FileTypeTable FileType = "table"
	FileTypeOther FileType = "other"
)

// DocumentStatus is the lifecycle state of a Document (§3).
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCanceling  DocumentStatus = "canceling"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusPartial    DocumentStatus = "partial"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document is the persisted record for one source document (§3).
// Invariant: NodeCount equals the number of persisted chunks for DocID
// in the vector store when Status == DocumentStatusCompleted.
type Document struct {
	DocID           string
	SourcePath      string
	FileType        FileType
	Metadata        map[string]any
	Status          DocumentStatus
	SizeBytes       int64
	NodeCount       int
	LastProcessedAt time.Time
	Error           string
}

// DocumentState is C1's own persisted record, used to detect content
// deltas across re-ingests (§3, §4.8).
type DocumentState struct {
	DocID            string
	FileHash         string
	ChunkHashes      []string
	ChunkIDs         []string
	LastProcessedAt  time.Time
	MetadataSnapshot map[string]any
}

// ChunkingKind selects a member of the chunker family (§4.2).
type ChunkingKind string

const (
	ChunkingFixed            ChunkingKind = "fixed"
	ChunkingSentence         ChunkingKind = "sentence"
	ChunkingParagraph        ChunkingKind = "paragraph"
	ChunkingSemantic         ChunkingKind = "semantic"
	ChunkingHierarchical     ChunkingKind = "hierarchical"
	ChunkingRecursiveMD      ChunkingKind = "recursive_markdown"
	ChunkingCodeAware        ChunkingKind = "code_aware"
	ChunkingTableAware       ChunkingKind = "table_aware"
	ChunkingSentenceBoundary ChunkingKind = "sentence_boundary"
	ChunkingSemanticBoundary ChunkingKind = "semantic_boundary"
)

// Language is the detected natural language used for sentence
// splitting rules (§4.2).
type Language string

const (
	LanguageEnglish Language = "english"
	LanguageChinese Language = "chinese"
	LanguageUnknown Language = "unknown"
)

// ChunkingParams configures one chunker invocation (§3 ProcessingPlan.chunking).
type ChunkingParams struct {
	Kind             ChunkingKind
	ChunkSize        int
	ChunkOverlap     int
	RespectStructure bool
	Language         Language
}

// ProcessingPlan is produced by the Document Analyzer (C2) and consumed
// by the Pipeline Engine / Parallel Executor (C6/C7) (§3).
type ProcessingPlan struct {
	ConvertToMarkdown bool
	Chunking          ChunkingParams
	UseParallel       bool
	SegmentSize       int
	UseIncremental    bool
	DatasourceName    string
}

// Complexity classifies a document's structural richness (§4.1).
type Complexity string

const (
	ComplexityLow    Complexity = "LOW"
	ComplexityMedium Complexity = "MEDIUM"
	ComplexityHigh   Complexity = "HIGH"
)

// DocumentFeatures is the structural analysis produced by the Document
// Analyzer (C2) ahead of plan selection (§4.1).
type DocumentFeatures struct {
	PageCount        int
	SizeBytes        int64
	TextDensity      float64
	HasTables        bool
	HasCode          bool
	HasImages        bool
	HeadingDepth     int
	Language         Language
	EstimatedTokens  int
	AvgSentenceLen   float64
	Complexity       Complexity
}

// RetrievalResult is one ranked passage returned by the Hybrid
// Retriever (C10) (§3).
type RetrievalResult struct {
	ChunkID      string
	DocID        string
	Text         string
	Metadata     map[string]any
	VectorScore  float64
	LexicalScore float64
	FusedScore   float64
	RerankScore  *float64
	Highlight    string
}
