package miniapp

import "time"

// Task is a scheduled callback.
type Task interface {
	// Cancel stops the task. It reports false if the task already ran or was
	// canceled before.
	Cancel() bool
}

// Clock schedules delayed callbacks.
type Clock interface {
	AfterFunc(d time.Duration, fn func()) Task
}

// SystemClock schedules on the runtime timer.
func SystemClock() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, fn func()) Task {
	return timerTask{t: time.AfterFunc(d, fn)}
}

type timerTask struct{ t *time.Timer }

func (t timerTask) Cancel() bool { return t.t.Stop() }
