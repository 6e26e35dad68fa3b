package batch

// JobStatus represents a batch job's lifecycle state
type JobStatus string

const (
	JobCreated    JobStatus = "CREATED"
	JobQueued     JobStatus = "QUEUED"
	JobProcessing JobStatus = "PROCESSING"
	JobPaused     JobStatus = "PAUSED"
	JobCompleted  JobStatus = "COMPLETED"
	JobCancelled  JobStatus = "CANCELLED"
	JobError      JobStatus = "ERROR"
)

var validJobStatuses = map[JobStatus]bool{
	JobCreated:    true,
	JobQueued:     true,
	JobProcessing: true,
	JobPaused:     true,
	JobCompleted:  true,
	JobCancelled:  true,
	JobError:      true,
}

var terminalJobStatuses = map[JobStatus]bool{
	JobCompleted: true,
	JobCancelled: true,
	JobError:     true,
}

// IsTerminal returns true when no further transitions are allowed
func (s JobStatus) IsTerminal() bool {
	return terminalJobStatuses[s]
}

// IsValid returns true for a known job status
func (s JobStatus) IsValid() bool {
	return validJobStatuses[s]
}

// String returns the string representation of the status
func (s JobStatus) String() string {
	return string(s)
}

// FileStatus represents one file task's state. Transitions are
// forward-only: pending → processing → {completed | failed | skipped}.
type FileStatus string

const (
	FilePending    FileStatus = "PENDING"
	FileProcessing FileStatus = "PROCESSING"
	FileCompleted  FileStatus = "COMPLETED"
	FileFailed     FileStatus = "FAILED"
	FileSkipped    FileStatus = "SKIPPED"
)

// IsTerminal returns true when the file task is done
func (s FileStatus) IsTerminal() bool {
	return s == FileCompleted || s == FileFailed || s == FileSkipped
}

// Trigger is an event that can cause a job state transition
type Trigger string

const (
	TriggerEnqueue  Trigger = "ENQUEUE"
	TriggerStart    Trigger = "START"
	TriggerPause    Trigger = "PAUSE"
	TriggerResume   Trigger = "RESUME"
	TriggerComplete Trigger = "COMPLETE"
	TriggerCancel   Trigger = "CANCEL"
	TriggerFail     Trigger = "FAIL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
