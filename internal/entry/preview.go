package entry

import "sync"

// previewState is one of noPreview, staticPreview or *asyncPreview.
type previewState interface {
	isPreviewState()
}

type noPreview struct{}

// staticPreview is written once at construction and read without locking.
type staticPreview struct {
	lines []string
}

// asyncPreview is the only variant shared with worker goroutines.
type asyncPreview struct {
	script Script
	args   any

	mu         sync.Mutex
	lines      []string
	running    *Task
	executions int
	changed    bool
}

func (noPreview) isPreviewState()     {}
func (staticPreview) isPreviewState() {}
func (*asyncPreview) isPreviewState() {}

func newPreviewState(item SourceItem) previewState {
	var lines []string
	if item.Preview != nil {
		lines = FormatLines(item.Preview)
	}

	switch {
	case item.PreviewScript != nil:
		// A static preview, if any, is shown until the first run completes.
		return &asyncPreview{script: item.PreviewScript, args: item.PreviewArgs, lines: lines}
	case lines != nil:
		return staticPreview{lines: lines}
	default:
		return noPreview{}
	}
}

// PreviewStatus describes the background preview of an entry.
type PreviewStatus struct {
	Async      bool
	Running    bool
	Executions int
}

// RefreshPreviewTask is called by the UI once per tick for each visible
// entry. The first call on an entry with a preview script submits a task to d
// and reports false. Later calls report whether a completion arrived since
// the previous call, clearing that flag.
func (e *Entry) RefreshPreviewTask(d Dispatcher) bool {
	e.isUpdated.Store(false)
	p, ok := e.preview.(*asyncPreview)
	if !ok {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running == nil && p.executions == 0 {
		if d == nil {
			return false
		}
		task := newTask(e, p.script, p.args)
		p.running = task
		d.Submit(task)
		return false
	}

	updated := p.changed
	p.changed = false
	e.isUpdated.Store(updated)
	return updated
}

// CompletePreviewTask receives the output of the task submitted by
// RefreshPreviewTask. Output whose first element is absent leaves the current
// lines in place; the completion is still counted and reported.
func (e *Entry) CompletePreviewTask(output []any) {
	p, ok := e.preview.(*asyncPreview)
	if !ok {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(output) > 0 && !isAbsent(output[0]) {
		p.lines = FormatLines(output)
	}
	p.running = nil
	p.executions++
	p.changed = true
}

// PreviewLines returns the current preview, or nil if there is none yet.
// The returned slice is shared and must not be modified.
func (e *Entry) PreviewLines() []string {
	switch p := e.preview.(type) {
	case staticPreview:
		return p.lines
	case *asyncPreview:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.lines
	default:
		return nil
	}
}

// InvalidatePreview makes the next RefreshPreviewTask run the preview script
// again. The current lines stay visible until that run completes. A
// completion that RefreshPreviewTask has not reported yet is not reported at
// all: its lines are kept, but the updated signal is cleared, so callers that
// track updates should reread PreviewLines. It returns false while a task is
// in flight or when the entry has no preview script.
func (e *Entry) InvalidatePreview() bool {
	p, ok := e.preview.(*asyncPreview)
	if !ok {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running != nil {
		return false
	}
	p.executions = 0
	p.changed = false
	return true
}

// PreviewStatus returns a consistent view of the background preview state.
func (e *Entry) PreviewStatus() PreviewStatus {
	p, ok := e.preview.(*asyncPreview)
	if !ok {
		return PreviewStatus{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return PreviewStatus{Async: true, Running: p.running != nil, Executions: p.executions}
}
