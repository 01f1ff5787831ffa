package entry

import (
	"context"

	"github.com/google/uuid"
)

// Task is one background run of an entry's preview script.
type Task struct {
	ID     string
	Script Script
	Args   any

	entry *Entry
}

func newTask(e *Entry, script Script, args any) *Task {
	return &Task{
		ID:     uuid.NewString(),
		Script: script,
		Args:   args,
		entry:  e,
	}
}

// Entry returns the entry the task computes a preview for.
func (t *Task) Entry() *Entry {
	return t.entry
}

// Run executes the script. It must not be called with an entry lock held.
func (t *Task) Run(ctx context.Context) ([]any, error) {
	return t.Script.Run(ctx, t.Args)
}

// Complete delivers output to the entry. Call it exactly once per task.
func (t *Task) Complete(output []any) {
	t.entry.CompletePreviewTask(output)
}

// Dispatcher executes tasks off the UI goroutine and eventually calls
// Task.Complete. Submit is called with the entry lock held, so it must not
// block and must not call Complete before returning.
type Dispatcher interface {
	Submit(task *Task)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(task *Task)

// Submit calls f(task).
func (f DispatcherFunc) Submit(task *Task) {
	f(task)
}
