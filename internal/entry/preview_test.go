package entry

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticScript struct{ out string }

func (s staticScript) Run(context.Context, any) ([]any, error) {
	return []any{s.out}, nil
}

// recordingDispatcher keeps submitted tasks without running them.
type recordingDispatcher struct {
	mu    sync.Mutex
	tasks []*Task
	calls atomic.Int64
}

func (d *recordingDispatcher) Submit(task *Task) {
	d.calls.Add(1)
	d.mu.Lock()
	d.tasks = append(d.tasks, task)
	d.mu.Unlock()
}

func (d *recordingDispatcher) last() *Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.tasks) == 0 {
		return nil
	}
	return d.tasks[len(d.tasks)-1]
}

func newAsyncEntry() *Entry {
	return New(SourceItem{Name: "async", PreviewScript: staticScript{"out"}, PreviewArgs: []string{"--flag"}}, nil)
}

func TestRefreshPreviewTask_NoScript(t *testing.T) {
	d := &recordingDispatcher{}
	for _, e := range []*Entry{
		New(SourceItem{Name: "plain"}, nil),
		New(SourceItem{Name: "static", Preview: []any{"x"}}, nil),
	} {
		e.isUpdated.Store(true)
		assert.False(t, e.RefreshPreviewTask(d))
		assert.False(t, e.IsUpdated())
	}
	assert.Zero(t, d.calls.Load())
}

func TestRefreshPreviewTask_FirstPollSubmits(t *testing.T) {
	d := &recordingDispatcher{}
	e := newAsyncEntry()

	updated := e.RefreshPreviewTask(d)

	assert.False(t, updated)
	require.EqualValues(t, 1, d.calls.Load())
	task := d.last()
	assert.Same(t, e, task.Entry())
	assert.Equal(t, []string{"--flag"}, task.Args)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, PreviewStatus{Async: true, Running: true}, e.PreviewStatus())
}

func TestRefreshPreviewTask_SingleSubmission(t *testing.T) {
	d := &recordingDispatcher{}
	e := newAsyncEntry()

	for range 10 {
		assert.False(t, e.RefreshPreviewTask(d))
	}
	assert.EqualValues(t, 1, d.calls.Load())

	d.last().Complete([]any{"done"})
	for range 10 {
		e.RefreshPreviewTask(d)
	}
	assert.EqualValues(t, 1, d.calls.Load(), "completed entries are not resubmitted")
}

func TestRefreshPreviewTask_NilDispatcher(t *testing.T) {
	e := newAsyncEntry()

	assert.False(t, e.RefreshPreviewTask(nil))
	assert.Equal(t, PreviewStatus{Async: true}, e.PreviewStatus())
}

func TestRefreshPreviewTask_UpdateEdge(t *testing.T) {
	d := &recordingDispatcher{}
	e := newAsyncEntry()
	e.RefreshPreviewTask(d)

	assert.False(t, e.RefreshPreviewTask(d), "running without completion")

	d.last().Complete([]any{"first\nsecond"})

	assert.True(t, e.RefreshPreviewTask(d))
	assert.True(t, e.IsUpdated())
	assert.False(t, e.RefreshPreviewTask(d))
	assert.False(t, e.IsUpdated())
	assert.False(t, e.RefreshPreviewTask(d))
	assert.Equal(t, []string{"first", "second"}, e.PreviewLines())
}

func TestCompletePreviewTask_RetainsOnEmptyOutput(t *testing.T) {
	tests := []struct {
		name   string
		output []any
	}{
		{"nil", nil},
		{"empty", []any{}},
		{"first element nil", []any{nil, "ignored"}},
		{"first element typed nil", []any{(*string)(nil)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &recordingDispatcher{}
			e := newAsyncEntry()
			e.RefreshPreviewTask(d)
			d.last().Complete([]any{"kept"})
			require.Equal(t, []string{"kept"}, e.PreviewLines())

			require.True(t, e.InvalidatePreview())
			e.RefreshPreviewTask(d)
			d.last().Complete(tt.output)

			assert.Equal(t, []string{"kept"}, e.PreviewLines())
			assert.True(t, e.RefreshPreviewTask(d), "empty completions are still reported")
			assert.Equal(t, PreviewStatus{Async: true, Executions: 1}, e.PreviewStatus())
		})
	}
}

func TestCompletePreviewTask_EmptyFirstRunStaysAbsent(t *testing.T) {
	d := &recordingDispatcher{}
	e := newAsyncEntry()
	e.RefreshPreviewTask(d)

	d.last().Complete(nil)

	assert.Nil(t, e.PreviewLines())
	assert.Equal(t, PreviewStatus{Async: true, Executions: 1}, e.PreviewStatus())
}

func TestCompletePreviewTask_NoScriptIsNoop(t *testing.T) {
	e := New(SourceItem{Name: "static", Preview: []any{"static"}}, nil)

	e.CompletePreviewTask([]any{"ignored"})

	assert.Equal(t, []string{"static"}, e.PreviewLines())
	assert.False(t, e.RefreshPreviewTask(nil))
}

func TestCompletePreviewTask_ReplacesSeededStatic(t *testing.T) {
	d := &recordingDispatcher{}
	e := New(SourceItem{Name: "a", Preview: []any{"loading"}, PreviewScript: staticScript{"x"}}, nil)
	e.RefreshPreviewTask(d)

	d.last().Complete([]any{"computed"})

	assert.Equal(t, []string{"computed"}, e.PreviewLines())
}

func TestInvalidatePreview(t *testing.T) {
	d := &recordingDispatcher{}
	e := newAsyncEntry()

	assert.True(t, e.InvalidatePreview(), "idle entries can always be invalidated")

	e.RefreshPreviewTask(d)
	assert.False(t, e.InvalidatePreview(), "cannot invalidate while running")

	d.last().Complete([]any{"v1"})
	assert.True(t, e.InvalidatePreview())
	assert.False(t, e.RefreshPreviewTask(d), "invalidated completion is not reported")
	assert.EqualValues(t, 2, d.calls.Load())
	assert.Equal(t, []string{"v1"}, e.PreviewLines(), "old lines shown until the rerun completes")

	d.last().Complete([]any{"v2"})
	assert.True(t, e.RefreshPreviewTask(d))
	assert.Equal(t, []string{"v2"}, e.PreviewLines())

	assert.False(t, New(SourceItem{Name: "plain"}, nil).InvalidatePreview())
}

func TestInvalidatePreview_UnreportedCompletion(t *testing.T) {
	d := &recordingDispatcher{}
	e := newAsyncEntry()
	e.RefreshPreviewTask(d)
	d.last().Complete([]any{"fresh"})

	require.True(t, e.InvalidatePreview())

	assert.False(t, e.RefreshPreviewTask(d), "the unreported completion is dropped")
	assert.Equal(t, []string{"fresh"}, e.PreviewLines(), "its lines are kept")
	assert.Equal(t, PreviewStatus{Async: true, Running: true}, e.PreviewStatus())
}

func TestTask_Run(t *testing.T) {
	d := &recordingDispatcher{}
	e := newAsyncEntry()
	e.RefreshPreviewTask(d)

	out, err := d.last().Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []any{"out"}, out)
}

func TestDispatcherFunc(t *testing.T) {
	var got *Task
	d := DispatcherFunc(func(task *Task) { got = task })
	e := newAsyncEntry()

	e.RefreshPreviewTask(d)

	require.NotNil(t, got)
	assert.Same(t, e, got.Entry())
}

func TestPreview_ConcurrentCompletionsAndPolls(t *testing.T) {
	const completions = 200
	const polls = 200

	d := &recordingDispatcher{}
	e := newAsyncEntry()

	var wg sync.WaitGroup
	start := make(chan struct{})
	var reported atomic.Int64

	for i := range completions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			e.CompletePreviewTask([]any{i})
		}()
	}
	for range polls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if e.RefreshPreviewTask(d) {
				reported.Add(1)
			}
			_ = e.PreviewLines()
		}()
	}

	close(start)
	wg.Wait()

	status := e.PreviewStatus()
	assert.Equal(t, completions, status.Executions)
	assert.False(t, status.Running)
	assert.LessOrEqual(t, d.calls.Load(), int64(1))
	assert.LessOrEqual(t, reported.Load(), int64(completions))
	require.Len(t, e.PreviewLines(), 1)
}

func TestPreview_ConcurrentPollsSubmitOnce(t *testing.T) {
	d := &recordingDispatcher{}
	e := newAsyncEntry()

	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.RefreshPreviewTask(d)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, d.calls.Load())
}
