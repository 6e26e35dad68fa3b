package batch

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// run drives one job to a terminal state. Files are dispatched in
// submission order; the default concurrency of one makes processing
// strictly sequential.
func (r *Registry) run(j *job) {
	defer func() {
		if p := recover(); p != nil {
			r.failJob(j, fmt.Errorf("batch runner panic: %v", p))
		}
	}()

	concurrency := j.opts.FileConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i := range j.files {
		sem <- struct{}{}
		if !r.gate(j) {
			<-sem
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			r.processFile(j, i)
		}(i)
	}
	wg.Wait()

	r.finish(j)
}

// gate blocks while the job is paused and reports whether processing
// may continue. It returns false once the job is cancelled.
func (r *Registry) gate(j *job) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for j.machine.State() == JobPaused {
		j.resumed.Wait()
	}
	return j.machine.State() == JobProcessing
}

func (r *Registry) processFile(j *job, i int) {
	j.mu.Lock()
	f := j.files[i]
	if f.Status != FilePending {
		// Already skipped by a concurrent cancel.
		j.mu.Unlock()
		return
	}
	f.Status = FileProcessing
	snap := j.snapshotLocked()
	j.mu.Unlock()
	j.emit(progressEvent(j, snap, f))

	err := r.processor.ProcessFile(j.ctx, FileSpec{Filename: f.Filename, Data: j.data[i]})

	j.mu.Lock()
	cancelled := j.machine.State() == JobCancelled

	switch {
	case err == nil:
		f.Status = FileCompleted
		f.Progress = 100
		j.stats.SuccessfulFiles++
	case cancelled:
		// The in-flight file was cut short by cancel; it joins the
		// skipped set rather than counting as a real failure.
		f.Status = FileSkipped
		j.stats.SkippedFiles++
	default:
		f.Status = FileFailed
		f.Error = err.Error()
		j.stats.FailedFiles++
	}
	j.stats.ProcessedFiles++
	j.stats.ProcessedBytes += f.SizeBytes

	pausing := err != nil && !cancelled && j.opts.PauseOnError && j.machine.State() == JobProcessing
	if pausing {
		_ = j.machine.Fire(TriggerPause)
	}
	snap = j.snapshotLocked()
	j.mu.Unlock()

	j.emit(progressEvent(j, snap, f))
	if pausing {
		r.logger.Warn("Batch job paused on file error",
			zap.String("job_id", j.id),
			zap.String("filename", f.Filename),
			zap.Error(err))
	}
}

// finish settles the job's terminal state after the dispatch loop ends
func (r *Registry) finish(j *job) {
	j.mu.Lock()
	if j.machine.State() == JobPaused {
		// All files are already settled; nothing is left to hold for.
		_ = j.machine.Fire(TriggerResume)
	}
	if j.machine.State() == JobProcessing {
		_ = j.machine.Fire(TriggerComplete)
	}
	now := time.Now()
	j.completedAt = &now
	snap := j.snapshotLocked()
	j.mu.Unlock()

	j.emit(progressEvent(j, snap, nil))
	j.closeSubs()

	r.logger.Info("Batch job finished",
		zap.String("job_id", j.id),
		zap.String("status", string(snap.Status)),
		zap.Int("successful", snap.Statistics.SuccessfulFiles),
		zap.Int("failed", snap.Statistics.FailedFiles),
		zap.Int("skipped", snap.Statistics.SkippedFiles))
}

func (r *Registry) failJob(j *job, err error) {
	j.mu.Lock()
	if j.machine.State() == JobPaused {
		_ = j.machine.Fire(TriggerResume)
	}
	if j.machine.State() == JobProcessing {
		_ = j.machine.Fire(TriggerFail)
	}
	now := time.Now()
	j.completedAt = &now
	snap := j.snapshotLocked()
	j.mu.Unlock()

	j.emit(progressEvent(j, snap, nil))
	j.closeSubs()

	r.logger.Error("Batch job failed",
		zap.String("job_id", j.id),
		zap.Error(err))
}
