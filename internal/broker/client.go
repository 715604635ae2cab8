package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/alleneee/docingest/internal/cache"
	"github.com/alleneee/docingest/internal/model"
)

// chordDecrScript atomically decrements the remaining-count of a chord
// group and returns the value after decrement, so the last task to
// finish (and only that one) observes zero and fires the body.
const chordDecrScript = `return redis.call("DECR", KEYS[1])`

// Defaults mirrors config.BrokerConfig fields this broker consults when
// a SubmitOptions field is left zero (kept separate so this package
// does not import internal/config).
type Defaults struct {
	TaskTimeLimit     time.Duration
	TaskSoftTimeLimit time.Duration
	MaxRetries        int
}

// AsynqBroker implements Broker on top of github.com/hibiken/asynq.
// asynq has no in-pack usage example in this corpus (see DESIGN.md); its
// Client/Inspector/Server surface is used here per its documented public
// API, following the same request/response and queue-priority shape the
// teacher's other external clients use (base.Config-style constructors,
// ServiceName consts, wrapped sentinel errors).
type AsynqBroker struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	cache     cache.Client
	defaults  Defaults
}

var _ Broker = (*AsynqBroker)(nil)

// NewAsynqBroker builds a broker over a Redis-backed asynq instance.
// cacheClient stores the taskID->queue index Status/Cancel need (asynq's
// Inspector requires the queue name up front) and the chord countdown
// counters; it is the same rueidis client the per-document lock uses.
func NewAsynqBroker(redisOpt asynq.RedisConnOpt, cacheClient cache.Client, defaults Defaults) *AsynqBroker {
	if defaults.MaxRetries == 0 {
		defaults.MaxRetries = 5
	}
	if defaults.TaskTimeLimit == 0 {
		defaults.TaskTimeLimit = 5 * time.Minute
	}
	if defaults.TaskSoftTimeLimit == 0 {
		defaults.TaskSoftTimeLimit = 4 * time.Minute
	}
	return &AsynqBroker{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		cache:     cacheClient,
		defaults:  defaults,
	}
}

func taskQueueKey(taskID string) string { return fmt.Sprintf("broker:queue:%s", taskID) }
func chordKey(chordID string) string    { return fmt.Sprintf("broker:chord:%s", chordID) }
func cancelingKey(taskID string) string { return fmt.Sprintf("broker:canceling:%s", taskID) }

func (b *AsynqBroker) taskOptions(opts SubmitOptions) []asynq.Option {
	queue := opts.Queue
	if queue == "" {
		queue = QueueDefault
	}
	maxRetry := opts.MaxRetries
	if maxRetry == 0 {
		maxRetry = b.defaults.MaxRetries
	}
	hard := opts.HardTimeout
	if hard == 0 {
		hard = b.defaults.TaskTimeLimit
	}
	aopts := []asynq.Option{
		asynq.Queue(queue),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(hard),
	}
	if opts.RetentionTTL > 0 {
		aopts = append(aopts, asynq.Retention(opts.RetentionTTL))
	}
	if !opts.ProcessAt.IsZero() {
		aopts = append(aopts, asynq.ProcessAt(opts.ProcessAt))
	}
	if opts.UniqueKey != "" {
		ttl := opts.RetentionTTL
		if ttl == 0 {
			ttl = time.Hour
		}
		aopts = append(aopts, asynq.TaskID(opts.UniqueKey), asynq.Unique(ttl))
	}
	return aopts
}

// Submit enqueues name/payload as one asynq task, wrapped in an
// envelope so a chain/chord continuation can ride along (§4.7).
func (b *AsynqBroker) Submit(ctx context.Context, name string, payload []byte, opts SubmitOptions) (string, error) {
	if opts.SoftTimeout == 0 {
		opts.SoftTimeout = b.defaults.TaskSoftTimeLimit
	}
	body, err := encodeEnvelope(envelope{Name: name, Payload: payload})
	if err != nil {
		return "", fmt.Errorf("%w: encode task envelope: %v", model.ErrValidation, err)
	}

	task := asynq.NewTask(name, body)
	info, err := b.client.EnqueueContext(ctx, task, b.taskOptions(opts)...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrBrokerTransient, err)
	}

	queue := opts.Queue
	if queue == "" {
		queue = QueueDefault
	}
	if err := b.cache.Set(ctx, taskQueueKey(info.ID), queue, 24*time.Hour); err != nil {
		return info.ID, fmt.Errorf("%w: index task queue: %v", model.ErrBrokerTransient, err)
	}
	return info.ID, nil
}

func (b *AsynqBroker) queueFor(ctx context.Context, taskID string) (string, error) {
	queue, err := b.cache.Get(ctx, taskQueueKey(taskID))
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrBrokerTransient, err)
	}
	if queue == "" {
		return "", fmt.Errorf("task %s: %w", taskID, asynq.ErrTaskNotFound)
	}
	return queue, nil
}

// Status maps asynq's TaskInfo.State onto the TaskRecord FSM of §4.7.
// asynq has no native "canceling" state between running and canceled;
// that leg is tracked with a cache marker Cancel sets when it signals an
// active task to stop.
func (b *AsynqBroker) Status(ctx context.Context, taskID string) (model.TaskRecord, error) {
	queue, err := b.queueFor(ctx, taskID)
	if err != nil {
		return model.TaskRecord{}, err
	}
	info, err := b.inspector.GetTaskInfo(queue, taskID)
	if err != nil {
		return model.TaskRecord{}, fmt.Errorf("%w: %v", model.ErrBrokerTransient, err)
	}

	rec := model.TaskRecord{
		TaskID:     taskID,
		Name:       info.Type,
		Queue:      info.Queue,
		Attempts:   info.Retried + 1,
		FinishedAt: info.CompletedAt,
	}
	if info.LastErr != "" {
		rec.Error = info.LastErr
	}

	switch info.State {
	case asynq.TaskStatePending, asynq.TaskStateScheduled, asynq.TaskStateAggregating:
		rec.State = model.TaskQueued
	case asynq.TaskStateActive:
		rec.State = model.TaskRunning
		if canceling, _ := b.cache.Exists(ctx, cancelingKey(taskID)); canceling {
			rec.State = model.TaskCanceling
		}
	case asynq.TaskStateRetry:
		rec.State = model.TaskRetrying
	case asynq.TaskStateArchived:
		rec.State = model.TaskFailed
	case asynq.TaskStateCompleted:
		rec.State = model.TaskSucceeded
	default:
		rec.State = model.TaskQueued
	}
	return rec, nil
}

// Cancel implements §4.7's two cancellation legs: a queued task is
// deleted outright (queued->canceled immediate); an active task is sent
// a cooperative cancel signal and marked canceling, leaving the actual
// transition to canceled to the worker once the handler observes
// ctx.Done() and returns.
func (b *AsynqBroker) Cancel(ctx context.Context, taskID string) error {
	queue, err := b.queueFor(ctx, taskID)
	if err != nil {
		return err
	}
	info, err := b.inspector.GetTaskInfo(queue, taskID)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrBrokerTransient, err)
	}

	switch info.State {
	case asynq.TaskStatePending, asynq.TaskStateScheduled, asynq.TaskStateRetry, asynq.TaskStateAggregating:
		if err := b.inspector.DeleteTask(queue, taskID); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
			return fmt.Errorf("%w: %v", model.ErrBrokerTransient, err)
		}
		return nil
	case asynq.TaskStateActive:
		if err := b.inspector.CancelProcessing(taskID); err != nil {
			return fmt.Errorf("%w: %v", model.ErrBrokerTransient, err)
		}
		return b.cache.Set(ctx, cancelingKey(taskID), "1", time.Hour)
	default:
		return fmt.Errorf("task %s: cannot cancel from state %s", taskID, info.State)
	}
}

// Group fans out independent tasks; the caller joins by polling Status
// on each returned id (§4.7).
func (b *AsynqBroker) Group(ctx context.Context, tasks []GroupTask) ([]string, error) {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		id, err := b.Submit(ctx, t.Name, t.Payload, t.Opts)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Chain submits the head task now and folds the rest into its envelope
// as Remaining; the worker runtime (see Worker.wrap) submits
// each next step only after its predecessor's handler succeeds.
func (b *AsynqBroker) Chain(ctx context.Context, tasks []GroupTask) (string, error) {
	if len(tasks) == 0 {
		return "", fmt.Errorf("%w: chain requires at least one task", model.ErrValidation)
	}
	head := tasks[0]
	body, err := encodeEnvelope(envelope{Name: head.Name, Payload: head.Payload, Remaining: tasks[1:]})
	if err != nil {
		return "", fmt.Errorf("%w: encode chain envelope: %v", model.ErrValidation, err)
	}
	task := asynq.NewTask(head.Name, body)
	info, err := b.client.EnqueueContext(ctx, task, b.taskOptions(head.Opts)...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrBrokerTransient, err)
	}
	queue := head.Opts.Queue
	if queue == "" {
		queue = QueueDefault
	}
	if err := b.cache.Set(ctx, taskQueueKey(info.ID), queue, 24*time.Hour); err != nil {
		return info.ID, fmt.Errorf("%w: index task queue: %v", model.ErrBrokerTransient, err)
	}
	return info.ID, nil
}

// Chord submits every group member tagged with a shared chordID and a
// countdown seeded to len(group); the worker runtime decrements it as
// each member succeeds and submits body exactly once, when it reaches
// zero.
func (b *AsynqBroker) Chord(ctx context.Context, group []GroupTask, body GroupTask) (string, error) {
	if len(group) == 0 {
		return "", fmt.Errorf("%w: chord requires at least one group task", model.ErrValidation)
	}
	chordID := uuid.NewString()
	if err := b.cache.Set(ctx, chordKey(chordID), fmt.Sprintf("%d", len(group)), 24*time.Hour); err != nil {
		return "", fmt.Errorf("%w: seed chord counter: %v", model.ErrBrokerTransient, err)
	}

	for _, t := range group {
		env := envelope{Name: t.Name, Payload: t.Payload, ChordID: chordID, ChordBody: &body, ChordTotal: len(group)}
		data, err := encodeEnvelope(env)
		if err != nil {
			return "", fmt.Errorf("%w: encode chord envelope: %v", model.ErrValidation, err)
		}
		task := asynq.NewTask(t.Name, data)
		info, err := b.client.EnqueueContext(ctx, task, b.taskOptions(t.Opts)...)
		if err != nil {
			return "", fmt.Errorf("%w: %v", model.ErrBrokerTransient, err)
		}
		queue := t.Opts.Queue
		if queue == "" {
			queue = QueueDefault
		}
		if err := b.cache.Set(ctx, taskQueueKey(info.ID), queue, 24*time.Hour); err != nil {
			return chordID, fmt.Errorf("%w: index task queue: %v", model.ErrBrokerTransient, err)
		}
	}
	return chordID, nil
}

func (b *AsynqBroker) Close() error {
	b.inspector.Close()
	return b.client.Close()
}
