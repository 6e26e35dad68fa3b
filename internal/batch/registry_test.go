package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedProcessor fails the filenames listed in failures and can be
// made to block until released, so tests can hold a job mid-file.
type scriptedProcessor struct {
	mu       sync.Mutex
	failures map[string]error
	block    chan struct{} // when non-nil, ProcessFile waits here (or for ctx)
	started  chan string   // receives the filename when a file begins
	calls    []string
}

func (p *scriptedProcessor) ProcessFile(ctx context.Context, spec FileSpec) error {
	p.mu.Lock()
	p.calls = append(p.calls, spec.Filename)
	block := p.block
	failErr := p.failures[spec.Filename]
	p.mu.Unlock()

	if p.started != nil {
		p.started <- spec.Filename
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return failErr
}

func (p *scriptedProcessor) callCount(filename string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c == filename {
			n++
		}
	}
	return n
}

func newTestRegistry(p FileProcessor) *Registry {
	return NewRegistry(p, Config{MaxBatchFiles: 10}, zap.NewNop())
}

func specs(n int) []FileSpec {
	out := make([]FileSpec, n)
	for i := range out {
		out[i] = FileSpec{
			Filename: fmt.Sprintf("estimate-%d.xml", i+1),
			Data:     []byte(fmt.Sprintf("<doc>%d</doc>", i+1)),
		}
	}
	return out
}

// waitStatus polls until the job reaches want or the deadline passes
func waitStatus(t *testing.T, r *Registry, id string, want JobStatus) Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := r.Get(id)
		require.NoError(t, err)
		if snap.Status == want {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	snap, _ := r.Get(id)
	t.Fatalf("job never reached %s, stuck at %s", want, snap.Status)
	return Snapshot{}
}

func TestRegistry_SubmitValidation(t *testing.T) {
	r := newTestRegistry(&scriptedProcessor{})

	_, err := r.Submit(nil, Options{})
	assert.ErrorIs(t, err, ErrNoFiles)

	_, err = r.Submit(specs(11), Options{})
	assert.ErrorIs(t, err, ErrTooManyFiles)
}

func TestRegistry_UnknownJob(t *testing.T) {
	r := newTestRegistry(&scriptedProcessor{})

	_, err := r.Get("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = r.Start("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = r.Cancel("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRegistry_HappyPath(t *testing.T) {
	p := &scriptedProcessor{}
	r := newTestRegistry(p)

	snap, err := r.Submit(specs(3), Options{})
	require.NoError(t, err)
	assert.Equal(t, JobQueued, snap.Status)
	assert.Equal(t, 3, snap.Statistics.TotalFiles)
	assert.True(t, snap.Controls.CanCancel)
	assert.False(t, snap.Controls.CanPause)

	_, err = r.Start(snap.ID)
	require.NoError(t, err)

	final := waitStatus(t, r, snap.ID, JobCompleted)
	assert.Equal(t, 3, final.Statistics.ProcessedFiles)
	assert.Equal(t, 3, final.Statistics.SuccessfulFiles)
	assert.Equal(t, 0, final.Statistics.FailedFiles)
	assert.InDelta(t, 100.0, final.ProgressPct, 0.001)
	require.NotNil(t, final.CompletedAt)
	for _, f := range final.Files {
		assert.Equal(t, FileCompleted, f.Status)
	}

	// Files run in submission order under the default concurrency of one.
	p.mu.Lock()
	assert.Equal(t, []string{"estimate-1.xml", "estimate-2.xml", "estimate-3.xml"}, p.calls)
	p.mu.Unlock()
}

func TestRegistry_FailedFileDoesNotStopBatch(t *testing.T) {
	p := &scriptedProcessor{failures: map[string]error{
		"estimate-2.xml": errors.New("malformed XML at offset 10"),
	}}
	r := newTestRegistry(p)

	snap, err := r.Submit(specs(3), Options{})
	require.NoError(t, err)
	_, err = r.Start(snap.ID)
	require.NoError(t, err)

	final := waitStatus(t, r, snap.ID, JobCompleted)
	assert.Equal(t, 3, final.Statistics.ProcessedFiles)
	assert.Equal(t, 2, final.Statistics.SuccessfulFiles)
	assert.Equal(t, 1, final.Statistics.FailedFiles)

	assert.Equal(t, FileFailed, final.Files[1].Status)
	assert.Contains(t, final.Files[1].Error, "malformed XML")
	assert.Equal(t, FileCompleted, final.Files[0].Status)
	assert.Equal(t, FileCompleted, final.Files[2].Status)
}

func TestRegistry_PauseOnError(t *testing.T) {
	p := &scriptedProcessor{failures: map[string]error{
		"estimate-1.xml": errors.New("boom"),
	}}
	r := newTestRegistry(p)

	snap, err := r.Submit(specs(3), Options{PauseOnError: true})
	require.NoError(t, err)
	_, err = r.Start(snap.ID)
	require.NoError(t, err)

	paused := waitStatus(t, r, snap.ID, JobPaused)
	assert.Equal(t, 1, paused.Statistics.FailedFiles)
	assert.True(t, paused.Controls.CanResume)

	_, err = r.Resume(snap.ID)
	require.NoError(t, err)

	final := waitStatus(t, r, snap.ID, JobCompleted)
	assert.Equal(t, 2, final.Statistics.SuccessfulFiles)
	assert.Equal(t, 1, final.Statistics.FailedFiles)
}

func TestRegistry_PauseResumeProcessesEachFileOnce(t *testing.T) {
	p := &scriptedProcessor{
		block:   make(chan struct{}),
		started: make(chan string, 10),
	}
	r := newTestRegistry(p)

	snap, err := r.Submit(specs(3), Options{})
	require.NoError(t, err)
	_, err = r.Start(snap.ID)
	require.NoError(t, err)

	// Hold the job mid-file-1, pause, then let file 1 finish.
	<-p.started
	_, err = r.Pause(snap.ID)
	require.NoError(t, err)
	close(p.block)

	// The in-flight file settles; no new file starts while paused.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s, err := r.Get(snap.ID)
		require.NoError(t, err)
		if s.Statistics.ProcessedFiles == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	mid, err := r.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, JobPaused, mid.Status)
	assert.Equal(t, 1, mid.Statistics.ProcessedFiles)
	assert.Equal(t, 0, p.callCount("estimate-2.xml"))

	_, err = r.Resume(snap.ID)
	require.NoError(t, err)
	<-p.started
	<-p.started

	final := waitStatus(t, r, snap.ID, JobCompleted)
	assert.Equal(t, 3, final.Statistics.ProcessedFiles)
	assert.Equal(t, 3, final.Statistics.SuccessfulFiles)

	// Exactly one call per file across the pause boundary.
	for i := 1; i <= 3; i++ {
		assert.Equal(t, 1, p.callCount(fmt.Sprintf("estimate-%d.xml", i)))
	}
}

func TestRegistry_CancelSkipsPendingFiles(t *testing.T) {
	p := &scriptedProcessor{
		block:   make(chan struct{}),
		started: make(chan string, 10),
	}
	r := newTestRegistry(p)

	snap, err := r.Submit(specs(4), Options{})
	require.NoError(t, err)
	_, err = r.Start(snap.ID)
	require.NoError(t, err)

	<-p.started // file 1 in flight
	_, err = r.Cancel(snap.ID)
	require.NoError(t, err)

	final := waitStatus(t, r, snap.ID, JobCancelled)
	assert.Equal(t, 4, final.Statistics.ProcessedFiles)
	assert.Equal(t, 0, final.Statistics.SuccessfulFiles)
	assert.Equal(t, 0, final.Statistics.FailedFiles)
	assert.Equal(t, 4, final.Statistics.SkippedFiles)

	// Nothing after the in-flight file ever started.
	assert.Equal(t, 1, p.callCount("estimate-1.xml"))
	assert.Equal(t, 0, p.callCount("estimate-2.xml"))

	for _, f := range final.Files {
		assert.Equal(t, FileSkipped, f.Status)
	}
}

func TestRegistry_CancelQueuedJob(t *testing.T) {
	r := newTestRegistry(&scriptedProcessor{})

	snap, err := r.Submit(specs(2), Options{})
	require.NoError(t, err)

	cancelled, err := r.Cancel(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, JobCancelled, cancelled.Status)
	assert.Equal(t, 2, cancelled.Statistics.SkippedFiles)
	require.NotNil(t, cancelled.CompletedAt)
}

func TestRegistry_ControlIdempotency(t *testing.T) {
	p := &scriptedProcessor{
		block:   make(chan struct{}),
		started: make(chan string, 10),
	}
	r := newTestRegistry(p)

	snap, err := r.Submit(specs(2), Options{})
	require.NoError(t, err)
	_, err = r.Start(snap.ID)
	require.NoError(t, err)
	<-p.started

	// Repeated start while processing is a no-op.
	again, err := r.Start(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, JobProcessing, again.Status)

	_, err = r.Pause(snap.ID)
	require.NoError(t, err)
	twice, err := r.Pause(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, JobPaused, twice.Status)

	_, err = r.Resume(snap.ID)
	require.NoError(t, err)
	twice, err = r.Resume(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, JobProcessing, twice.Status)

	_, err = r.Cancel(snap.ID)
	require.NoError(t, err)
	twice, err = r.Cancel(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, JobCancelled, twice.Status)

	close(p.block)
}

func TestRegistry_InvalidControls(t *testing.T) {
	p := &scriptedProcessor{}
	r := newTestRegistry(p)

	snap, err := r.Submit(specs(1), Options{})
	require.NoError(t, err)

	// Queued jobs cannot be paused or resumed.
	_, err = r.Pause(snap.ID)
	assert.ErrorIs(t, err, ErrInvalidControl)
	_, err = r.Resume(snap.ID)
	assert.ErrorIs(t, err, ErrInvalidControl)

	_, err = r.Start(snap.ID)
	require.NoError(t, err)
	final := waitStatus(t, r, snap.ID, JobCompleted)

	// Terminal jobs reject every control but report state via Get.
	_, err = r.Pause(snap.ID)
	assert.ErrorIs(t, err, ErrInvalidControl)
	_, err = r.Resume(snap.ID)
	assert.ErrorIs(t, err, ErrInvalidControl)
	_, err = r.Cancel(snap.ID)
	assert.ErrorIs(t, err, ErrInvalidControl)
	assert.Equal(t, JobCompleted, final.Status)
}

func TestRegistry_ProgressIsMonotonic(t *testing.T) {
	p := &scriptedProcessor{}
	r := newTestRegistry(p)

	snap, err := r.Submit(specs(5), Options{})
	require.NoError(t, err)

	events, unsub, err := r.Subscribe(snap.ID)
	require.NoError(t, err)
	defer unsub()

	_, err = r.Start(snap.ID)
	require.NoError(t, err)

	last := -1.0
	for ev := range events {
		assert.GreaterOrEqual(t, ev.Progress, last, "progress went backwards")
		last = ev.Progress

		// Statistics at any point must balance.
		s, err := r.Get(snap.ID)
		require.NoError(t, err)
		sum := s.Statistics.SuccessfulFiles + s.Statistics.FailedFiles + s.Statistics.SkippedFiles
		assert.Equal(t, s.Statistics.ProcessedFiles, sum)
	}

	final := waitStatus(t, r, snap.ID, JobCompleted)
	assert.InDelta(t, 100.0, final.ProgressPct, 0.001)
}

func TestRegistry_SubscribeAfterTerminalGetsClosedChannel(t *testing.T) {
	r := newTestRegistry(&scriptedProcessor{})

	snap, err := r.Submit(specs(1), Options{})
	require.NoError(t, err)
	_, err = r.Start(snap.ID)
	require.NoError(t, err)
	waitStatus(t, r, snap.ID, JobCompleted)

	events, unsub, err := r.Subscribe(snap.ID)
	require.NoError(t, err)
	defer unsub()

	select {
	case _, ok := <-events:
		if ok {
			// A late event is fine; the channel must still drain.
			for range events {
			}
		}
	case <-time.After(time.Second):
		t.Fatal("subscription on finished job never settled")
	}
}
