package model

import "time"

// TaskState is a node in the TaskRecord FSM (§4.7):
//
//	queued → running → succeeded
//	                 → failed  → retrying → running (until max_retries)
//	                 → canceling → canceled
//	queued → canceled
type TaskState string

const (
	TaskQueued    TaskState = "queued"
	TaskRunning   TaskState = "running"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
	TaskRetrying  TaskState = "retrying"
	TaskCanceling TaskState = "canceling"
	TaskCanceled  TaskState = "canceled"
)

// validTaskTransitions enumerates the FSM edges of §4.7; CanTransition
// is the single source of truth other packages use to validate a move.
var validTaskTransitions = map[TaskState]map[TaskState]bool{
	TaskQueued:    {TaskRunning: true, TaskCanceled: true},
	TaskRunning:   {TaskSucceeded: true, TaskFailed: true, TaskCanceling: true},
	TaskFailed:    {TaskRetrying: true},
	TaskRetrying:  {TaskRunning: true},
	TaskCanceling: {TaskCanceled: true},
}

// CanTransition reports whether moving a TaskRecord from 'from' to
// 'to' is a legal FSM edge.
func CanTransition(from, to TaskState) bool {
	return validTaskTransitions[from][to]
}

// TaskRecord is owned exclusively by the Task Broker (C9) (§3).
type TaskRecord struct {
	TaskID     string
	Name       string
	Queue      string
	State      TaskState
	Attempts   int
	StartedAt  time.Time
	FinishedAt time.Time
	ResultRef  string
	Error      string
}
