// Package batch orchestrates multi-document import jobs: lifecycle state
// machines, pause/resume/cancel controls, progress tracking and
// non-blocking progress notification.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrJobNotFound is returned for an unknown job id
	ErrJobNotFound = errors.New("batch job not found")

	// ErrInvalidControl is returned when a control does not apply to the
	// job's current state. The job state is unchanged.
	ErrInvalidControl = errors.New("control not valid in current job state")

	// ErrNoFiles is returned for an empty submission
	ErrNoFiles = errors.New("batch submission contains no files")

	// ErrTooManyFiles is returned when a submission exceeds the limit
	ErrTooManyFiles = errors.New("batch submission exceeds file limit")
)

// FileProcessor runs the per-file pipeline. A non-nil error marks the
// file failed; the error text is recorded on the file task.
type FileProcessor interface {
	ProcessFile(ctx context.Context, spec FileSpec) error
}

// Config holds registry-level limits and defaults
type Config struct {
	MaxBatchFiles   int
	FileConcurrency int
}

// Registry is the injected batch orchestration service. Its lifetime is
// process-scoped; jobs are archived in memory after reaching a terminal
// state.
type Registry struct {
	mu        sync.RWMutex
	jobs      map[string]*job
	processor FileProcessor
	cfg       Config
	logger    *zap.Logger
}

// NewRegistry creates a batch registry
func NewRegistry(processor FileProcessor, cfg Config, logger *zap.Logger) *Registry {
	if cfg.MaxBatchFiles <= 0 {
		cfg.MaxBatchFiles = 100
	}
	if cfg.FileConcurrency <= 0 {
		cfg.FileConcurrency = 1
	}
	return &Registry{
		jobs:      make(map[string]*job),
		processor: processor,
		cfg:       cfg,
		logger:    logger,
	}
}

// Submit registers a new job in the queued state and returns its snapshot
func (r *Registry) Submit(files []FileSpec, opts Options) (Snapshot, error) {
	if len(files) == 0 {
		return Snapshot{}, ErrNoFiles
	}
	if len(files) > r.cfg.MaxBatchFiles {
		return Snapshot{}, fmt.Errorf("%w: %d > %d", ErrTooManyFiles, len(files), r.cfg.MaxBatchFiles)
	}
	if opts.FileConcurrency <= 0 {
		opts.FileConcurrency = r.cfg.FileConcurrency
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:        uuid.NewString(),
		machine:   newJobMachine(),
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		subs:      make(map[int]chan ProgressEvent),
		createdAt: time.Now(),
	}
	j.resumed = sync.NewCond(&j.mu)

	for _, f := range files {
		task := &FileTask{
			ID:        uuid.NewString(),
			Filename:  f.Filename,
			Status:    FilePending,
			SizeBytes: int64(len(f.Data)),
		}
		j.files = append(j.files, task)
		j.data = append(j.data, f.Data)
		j.stats.TotalBytes += task.SizeBytes
	}
	j.stats.TotalFiles = len(files)

	j.mu.Lock()
	_ = j.machine.Fire(TriggerEnqueue)
	snap := j.snapshotLocked()
	j.mu.Unlock()

	r.mu.Lock()
	r.jobs[j.id] = j
	r.mu.Unlock()

	r.logger.Info("Batch job submitted",
		zap.String("job_id", j.id),
		zap.Int("files", len(files)),
		zap.Int64("total_bytes", j.stats.TotalBytes))

	return snap, nil
}

// Start moves a queued job to processing and launches its runner
func (r *Registry) Start(id string) (Snapshot, error) {
	j, err := r.get(id)
	if err != nil {
		return Snapshot{}, err
	}

	j.mu.Lock()
	if j.machine.State() == JobProcessing {
		// Idempotent under repeated calls.
		snap := j.snapshotLocked()
		j.mu.Unlock()
		return snap, nil
	}
	if err := j.machine.Fire(TriggerStart); err != nil {
		j.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: start from %s", ErrInvalidControl, j.machine.State())
	}
	now := time.Now()
	j.startedAt = &now
	snap := j.snapshotLocked()
	j.mu.Unlock()

	j.emit(progressEvent(j, snap, nil))
	go r.run(j)

	return snap, nil
}

// Get returns the current snapshot for a job
func (r *Registry) Get(id string) (Snapshot, error) {
	j, err := r.get(id)
	if err != nil {
		return Snapshot{}, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshotLocked(), nil
}

// Pause requests that no new file task starts. The in-flight file
// finishes. Valid only from processing; repeated calls are no-ops.
func (r *Registry) Pause(id string) (Snapshot, error) {
	j, err := r.get(id)
	if err != nil {
		return Snapshot{}, err
	}

	j.mu.Lock()
	switch j.machine.State() {
	case JobPaused:
		snap := j.snapshotLocked()
		j.mu.Unlock()
		return snap, nil
	case JobProcessing:
		_ = j.machine.Fire(TriggerPause)
		snap := j.snapshotLocked()
		j.mu.Unlock()
		j.emit(progressEvent(j, snap, nil))
		r.logger.Info("Batch job paused", zap.String("job_id", j.id))
		return snap, nil
	default:
		state := j.machine.State()
		j.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: pause from %s", ErrInvalidControl, state)
	}
}

// Resume continues a paused job. Valid only from paused; a resume on a
// processing job is a no-op.
func (r *Registry) Resume(id string) (Snapshot, error) {
	j, err := r.get(id)
	if err != nil {
		return Snapshot{}, err
	}

	j.mu.Lock()
	switch j.machine.State() {
	case JobProcessing:
		snap := j.snapshotLocked()
		j.mu.Unlock()
		return snap, nil
	case JobPaused:
		_ = j.machine.Fire(TriggerResume)
		snap := j.snapshotLocked()
		j.resumed.Broadcast()
		j.mu.Unlock()
		j.emit(progressEvent(j, snap, nil))
		r.logger.Info("Batch job resumed", zap.String("job_id", j.id))
		return snap, nil
	default:
		state := j.machine.State()
		j.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: resume from %s", ErrInvalidControl, state)
	}
}

// Cancel aborts a job: in-flight vendor calls are cut via context,
// remaining pending files become skipped, and the job is cancelled.
// Terminal for every pending task; repeated calls are no-ops.
func (r *Registry) Cancel(id string) (Snapshot, error) {
	j, err := r.get(id)
	if err != nil {
		return Snapshot{}, err
	}

	j.mu.Lock()
	state := j.machine.State()
	if state == JobCancelled {
		snap := j.snapshotLocked()
		j.mu.Unlock()
		return snap, nil
	}
	if err := j.machine.Fire(TriggerCancel); err != nil {
		j.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: cancel from %s", ErrInvalidControl, state)
	}

	for _, f := range j.files {
		if f.Status == FilePending {
			f.Status = FileSkipped
			j.stats.SkippedFiles++
			j.stats.ProcessedFiles++
			j.stats.ProcessedBytes += f.SizeBytes
		}
	}

	wasQueued := state == JobQueued
	if wasQueued {
		now := time.Now()
		j.completedAt = &now
	}
	snap := j.snapshotLocked()
	j.resumed.Broadcast()
	j.mu.Unlock()

	j.cancel()
	j.emit(progressEvent(j, snap, nil))
	if wasQueued {
		// No runner exists to finish up.
		j.closeSubs()
	}
	r.logger.Info("Batch job cancelled", zap.String("job_id", j.id))

	return snap, nil
}

// Subscribe returns a progress event channel and an unsubscribe func.
// Events are dropped rather than delivered late to a slow consumer.
func (r *Registry) Subscribe(id string) (<-chan ProgressEvent, func(), error) {
	j, err := r.get(id)
	if err != nil {
		return nil, nil, err
	}
	ch, unsub := j.subscribe()

	j.mu.Lock()
	terminal := j.machine.State().IsTerminal()
	j.mu.Unlock()
	if terminal {
		// The job already settled; hand back a closed channel so the
		// consumer's range loop exits immediately.
		unsub()
	}

	return ch, unsub, nil
}

func (r *Registry) get(id string) (*job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j, nil
}

func progressEvent(j *job, snap Snapshot, file *FileTask) ProgressEvent {
	ev := ProgressEvent{
		JobID:     j.id,
		Status:    snap.Status,
		Progress:  snap.ProgressPct,
		Timestamp: time.Now(),
	}
	if file != nil {
		ev.FileID = file.ID
		ev.Filename = file.Filename
		ev.FileState = file.Status
	}
	return ev
}
