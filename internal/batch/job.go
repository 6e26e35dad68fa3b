package batch

import (
	"context"
	"sync"
	"time"
)

// FileSpec is one submitted file
type FileSpec struct {
	Filename string
	Data     []byte
}

// FileTask tracks one file through the pipeline
type FileTask struct {
	ID       string     `json:"id"`
	Filename string     `json:"filename"`
	Status   FileStatus `json:"status"`
	Progress int        `json:"progress"`
	Error    string     `json:"error,omitempty"`
	SizeBytes int64     `json:"size_bytes"`
}

// Statistics aggregates per-job counters. The invariant
// ProcessedFiles == SuccessfulFiles + FailedFiles + SkippedFiles holds
// at every snapshot.
type Statistics struct {
	TotalFiles      int   `json:"total_files"`
	ProcessedFiles  int   `json:"processed_files"`
	SuccessfulFiles int   `json:"successful_files"`
	FailedFiles     int   `json:"failed_files"`
	SkippedFiles    int   `json:"skipped_files"`
	TotalBytes      int64 `json:"total_bytes"`
	ProcessedBytes  int64 `json:"processed_bytes"`
}

// ControlFlags tells clients which controls currently apply
type ControlFlags struct {
	CanPause  bool `json:"can_pause"`
	CanResume bool `json:"can_resume"`
	CanCancel bool `json:"can_cancel"`
}

// Options configures one batch job
type Options struct {
	PauseOnError    bool
	FileConcurrency int
}

// Snapshot is the polled view of a job
type Snapshot struct {
	ID          string       `json:"id"`
	Status      JobStatus    `json:"status"`
	Files       []FileTask   `json:"files"`
	Statistics  Statistics   `json:"statistics"`
	ProgressPct float64      `json:"progress_pct"`
	Controls    ControlFlags `json:"controls"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// ProgressEvent is emitted on every job or file state transition
type ProgressEvent struct {
	JobID     string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	FileID    string    `json:"file_id,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	FileState FileStatus `json:"file_state,omitempty"`
	Progress  float64   `json:"progress_pct"`
	Timestamp time.Time `json:"timestamp"`
}

// job is the internal mutable record; all access goes through its mutex
type job struct {
	mu      sync.Mutex
	id      string
	machine StateMachine
	files   []*FileTask
	data    [][]byte
	stats   Statistics
	opts    Options

	ctx     context.Context
	cancel  context.CancelFunc
	resumed *sync.Cond // signalled on resume and cancel

	subsMu sync.Mutex
	subs   map[int]chan ProgressEvent
	nextSub int

	createdAt   time.Time
	startedAt   *time.Time
	completedAt *time.Time
}

// snapshotLocked builds a Snapshot; callers must hold j.mu
func (j *job) snapshotLocked() Snapshot {
	files := make([]FileTask, len(j.files))
	for i, f := range j.files {
		files[i] = *f
	}

	status := j.machine.State()
	snap := Snapshot{
		ID:         j.id,
		Status:     status,
		Files:      files,
		Statistics: j.stats,
		Controls: ControlFlags{
			CanPause:  status == JobProcessing,
			CanResume: status == JobPaused,
			CanCancel: status == JobQueued || status == JobProcessing || status == JobPaused,
		},
		CreatedAt:   j.createdAt,
		StartedAt:   j.startedAt,
		CompletedAt: j.completedAt,
	}
	if j.stats.TotalFiles > 0 {
		snap.ProgressPct = 100 * float64(j.stats.ProcessedFiles) / float64(j.stats.TotalFiles)
	}
	return snap
}

// emit delivers an event to all subscribers without ever blocking: a
// subscriber whose buffer is full misses that event and catches up on
// the next poll.
func (j *job) emit(ev ProgressEvent) {
	j.subsMu.Lock()
	defer j.subsMu.Unlock()
	for _, ch := range j.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (j *job) subscribe() (<-chan ProgressEvent, func()) {
	j.subsMu.Lock()
	defer j.subsMu.Unlock()

	id := j.nextSub
	j.nextSub++
	ch := make(chan ProgressEvent, 64)
	j.subs[id] = ch

	return ch, func() {
		j.subsMu.Lock()
		defer j.subsMu.Unlock()
		if _, ok := j.subs[id]; ok {
			delete(j.subs, id)
			close(ch)
		}
	}
}

func (j *job) closeSubs() {
	j.subsMu.Lock()
	defer j.subsMu.Unlock()
	for id, ch := range j.subs {
		delete(j.subs, id)
		close(ch)
	}
}
