package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/alleneee/docingest/internal/cache"
	"github.com/alleneee/docingest/internal/model"
)

// Worker is the cross-process side of C9 (§5): it dequeues tasks this
// process's Submit/Group/Chain/Chord calls enqueued, runs the handler
// registered for the task's name, and carries chain/chord continuations
// forward on success.
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	client   *asynq.Client
	cache    cache.Client
	defaults Defaults
	log      *zap.Logger
}

var _ Registry = (*Worker)(nil)

// WorkerConfig mirrors the subset of config.BrokerConfig the asynq
// server needs plus the queue-priority weights §4.7's named queues use.
type WorkerConfig struct {
	Concurrency            int
	Queues                 map[string]int
	WorkerPrefetchMultiplier int
}

// DefaultQueues gives every named queue of §4.7 a priority weight,
// heavier toward segment/index work since those sit on the document
// ingest hot path; callers may override via WorkerConfig.Queues.
func DefaultQueues() map[string]int {
	return map[string]int{
		QueuePriority:           6,
		QueueIndex:              5,
		QueueDocumentProcessing: 4,
		QueueDocumentSegment:    4,
		QueueDocumentSplitting:  3,
		QueueDocumentMerging:    3,
		QueueDefault:            1,
	}
}

// NewWorker builds a worker runtime bound to the same Redis the broker
// client submits into, and the same cache client used for chord
// countdowns and the canceling marker.
func NewWorker(redisOpt asynq.RedisConnOpt, cacheClient cache.Client, wc WorkerConfig, defaults Defaults, log *zap.Logger) *Worker {
	if wc.Queues == nil {
		wc.Queues = DefaultQueues()
	}
	if wc.Concurrency <= 0 {
		wc.Concurrency = 10 * max(1, wc.WorkerPrefetchMultiplier)
	}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: wc.Concurrency,
		Queues:      wc.Queues,
		IsFailure: func(err error) bool {
			// Canceled attempts are terminal, not failures to retry.
			return !errors.Is(err, model.ErrCanceled) && !errors.Is(err, asynq.SkipRetry)
		},
	})
	return &Worker{
		server:   server,
		mux:      asynq.NewServeMux(),
		client:   asynq.NewClient(redisOpt),
		cache:    cacheClient,
		defaults: defaults,
		log:      log,
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Register wires a domain Handler under name, wrapped to unwrap the
// envelope, enforce the soft timeout cooperatively, and carry forward
// any chain/chord continuation once the handler succeeds.
func (w *Worker) Register(name string, h Handler) {
	w.mux.HandleFunc(name, w.wrap(name, h))
}

func (w *Worker) wrap(name string, h Handler) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		env, err := decodeEnvelope(task.Payload())
		if err != nil {
			return fmt.Errorf("%s: malformed envelope: %v: %w", name, err, asynq.SkipRetry)
		}

		softCtx := ctx
		var cancel context.CancelFunc
		if w.defaults.TaskSoftTimeLimit > 0 {
			softCtx, cancel = context.WithTimeout(ctx, w.defaults.TaskSoftTimeLimit)
			defer cancel()
		}

		if err := h(softCtx, env.Payload); err != nil {
			if errors.Is(err, model.ErrCanceled) || errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s: %v: %w", name, err, asynq.SkipRetry)
			}
			if errors.Is(err, model.ErrEmbedFatal) || errors.Is(err, model.ErrStoreFatal) || errors.Is(err, model.ErrValidation) {
				return fmt.Errorf("%s: %v: %w", name, err, asynq.SkipRetry)
			}
			return fmt.Errorf("%s: %w", name, err)
		}

		if err := w.continueChain(ctx, env); err != nil {
			w.log.Error("chain continuation failed", zap.String("task", name), zap.Error(err))
		}
		if err := w.continueChord(ctx, env); err != nil {
			w.log.Error("chord continuation failed", zap.String("task", name), zap.Error(err))
		}
		return nil
	}
}

func (w *Worker) continueChain(ctx context.Context, env envelope) error {
	if len(env.Remaining) == 0 {
		return nil
	}
	next := env.Remaining[0]
	rest := env.Remaining[1:]
	body, err := encodeEnvelope(envelope{Name: next.Name, Payload: next.Payload, Remaining: rest})
	if err != nil {
		return err
	}
	queue := next.Opts.Queue
	if queue == "" {
		queue = QueueDefault
	}
	info, err := w.client.EnqueueContext(ctx, asynq.NewTask(next.Name, body), asynq.Queue(queue))
	if err != nil {
		return err
	}
	return w.cache.Set(ctx, taskQueueKey(info.ID), queue, 24*time.Hour)
}

func (w *Worker) continueChord(ctx context.Context, env envelope) error {
	if env.ChordID == "" || env.ChordBody == nil {
		return nil
	}
	remaining, err := w.cache.Eval(ctx, chordDecrScript, chordKey(env.ChordID))
	if err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}
	queue := env.ChordBody.Opts.Queue
	if queue == "" {
		queue = QueueDefault
	}
	body, err := encodeEnvelope(envelope{Name: env.ChordBody.Name, Payload: env.ChordBody.Payload})
	if err != nil {
		return err
	}
	info, err := w.client.EnqueueContext(ctx, asynq.NewTask(env.ChordBody.Name, body), asynq.Queue(queue))
	if err != nil {
		return err
	}
	return w.cache.Set(ctx, taskQueueKey(info.ID), queue, 24*time.Hour)
}

// Run blocks serving tasks until the process receives a shutdown signal.
func (w *Worker) Run() error {
	return w.server.Run(w.mux)
}

// Shutdown stops accepting new tasks and waits for in-flight handlers to
// return, honoring the teacher's reverse-order-of-init teardown
// discipline for process-level singletons (§5).
func (w *Worker) Shutdown() {
	w.server.Shutdown()
	_ = w.client.Close()
}
