// Package executor implements the Parallel/Segmented Executor (C7):
// split a large document into segments bounded by segment_size,
// dispatch each through the Task Broker (C9), and join results into
// one contiguous chunk range before finalize (§4.6).
package executor

import (
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/alleneee/docingest/internal/model"
)

// segmentPayload is what one `document.segment` task carries: the
// segment's own text plus everything a worker needs to chunk, embed,
// and upsert it without any other in-memory state (§4.6 step 2).
type segmentPayload struct {
	ExecID       string               `json:"exec_id"`
	DocID        string               `json:"doc_id"`
	SegmentIndex int                  `json:"segment_index"`
	SegmentID    string               `json:"segment_id"`
	OrdinalBase  int                  `json:"ordinal_base"`
	Text         string               `json:"text"`
	Chunking     model.ChunkingParams `json:"chunking"`
	Metadata     map[string]any       `json:"metadata"`
}

// joinPayload is what the single `document.merge` task (the chord body)
// carries: enough to locate every segment's result in the cache and
// decide rollback vs. partial vs. completed (§4.6 steps 3-4).
type joinPayload struct {
	ExecID       string         `json:"exec_id"`
	DocID        string         `json:"doc_id"`
	SegmentCount int            `json:"segment_count"`
	AllowPartial bool           `json:"allow_partial"`
	FileHash     string         `json:"file_hash"`
	Metadata     map[string]any `json:"metadata"`
}

func encodePayload(v any) ([]byte, error) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode task payload: %w", err)
	}
	return data, nil
}

func decodePayload(data []byte, v any) error {
	if err := sonic.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode task payload: %w", err)
	}
	return nil
}
