package model

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to TaskState
		want     bool
	}{
		{TaskQueued, TaskRunning, true},
		{TaskQueued, TaskCanceled, true},
		{TaskQueued, TaskSucceeded, false},
		{TaskRunning, TaskSucceeded, true},
		{TaskRunning, TaskFailed, true},
		{TaskRunning, TaskCanceling, true},
		{TaskRunning, TaskQueued, false},
		{TaskFailed, TaskRetrying, true},
		{TaskFailed, TaskSucceeded, false},
		{TaskRetrying, TaskRunning, true},
		{TaskCanceling, TaskCanceled, true},
		{TaskCanceled, TaskRunning, false},
		{TaskSucceeded, TaskFailed, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}
