// Package broker implements the Task Broker Interface (C9): named
// queues, submit with retry/backoff, per-task soft/hard timeouts,
// late ack, cancellation, and group/chain/chord composition (§4.7).
package broker

import (
	"context"
	"time"

	"github.com/alleneee/docingest/internal/model"
)

// Queue names this core dispatches onto (§4.7, §6).
const (
	QueueDefault            = "default"
	QueueDocumentProcessing = "document_processing"
	QueueDocumentSplitting  = "document_splitting"
	QueueDocumentSegment    = "document_segment"
	QueueDocumentMerging    = "document_merging"
	QueueIndex              = "index"
	QueuePriority           = "priority"
)

// SubmitOptions configures one task submission.
type SubmitOptions struct {
	Queue          string
	MaxRetries     int
	UniqueKey      string
	ProcessAt      time.Time
	SoftTimeout    time.Duration
	HardTimeout    time.Duration
	RetentionTTL   time.Duration
	GroupID        string
}

// Broker is the process-wide abstraction §4.7 names. Submit enqueues a
// named task with an opaque payload and returns the id the caller
// tracks via Status/Cancel. Handlers are registered out of band by the
// worker runtime (see Register), not by Submit's caller.
type Broker interface {
	Submit(ctx context.Context, name string, payload []byte, opts SubmitOptions) (taskID string, err error)

	// Status returns the current TaskRecord for taskID.
	Status(ctx context.Context, taskID string) (model.TaskRecord, error)

	// Cancel transitions queued->canceled immediately, or
	// running->canceling advisorily (§4.7).
	Cancel(ctx context.Context, taskID string) error

	// Group fans out independent tasks and returns their ids; callers
	// join by polling Status on each id (§4.7 group semantics).
	Group(ctx context.Context, tasks []GroupTask) (taskIDs []string, err error)

	// Chain submits the first task now and arranges for each
	// subsequent task to be submitted only after its predecessor
	// succeeds. Each step runs with its own payload; the predecessor's
	// result is not passed to it.
	Chain(ctx context.Context, tasks []GroupTask) (headTaskID string, err error)

	// Chord submits a group and arranges for the body task to be
	// submitted once every group member has succeeded.
	Chord(ctx context.Context, group []GroupTask, body GroupTask) (groupID string, err error)

	// Close releases broker-held connections.
	Close() error
}

// GroupTask is one member task of a Group/Chain/Chord call.
type GroupTask struct {
	Name    string
	Payload []byte
	Opts    SubmitOptions
}

// Handler processes one task's payload. A Handler should check
// ctx.Done() between units of work it can subdivide (e.g. between
// chunks in a segment task) so cooperative soft-cancel (§5) takes
// effect promptly, and should return model.ErrCanceled when it
// observes cancellation rather than a generic error.
type Handler func(ctx context.Context, payload []byte) error

// Registry maps task names to handlers, consulted by the worker runtime
// when a task is dequeued.
type Registry interface {
	Register(name string, h Handler)
}
