package batch

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a trigger is not permitted in
// the current state.
var ErrInvalidTransition = errors.New("invalid state transition")

// StateMachine tracks the current job status and validates transitions
type StateMachine interface {
	// State returns the current status
	State() JobStatus

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// Fire attempts the trigger, transitioning on success
	Fire(trigger Trigger) error

	// PermittedTriggers returns all triggers valid in the current state
	PermittedTriggers() []Trigger
}

// Builder configures the transition table for job state machines
type Builder struct {
	transitions map[JobStatus]map[Trigger]JobStatus
}

// NewBuilder creates an empty state machine builder
func NewBuilder() *Builder {
	return &Builder{transitions: make(map[JobStatus]map[Trigger]JobStatus)}
}

// Permit allows a trigger to transition from one status to another
func (b *Builder) Permit(from JobStatus, trigger Trigger, to JobStatus) *Builder {
	if !from.IsValid() {
		panic(fmt.Sprintf("invalid source status: %s", from))
	}
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target status: %s", to))
	}
	if b.transitions[from] == nil {
		b.transitions[from] = make(map[Trigger]JobStatus)
	}
	b.transitions[from][trigger] = to
	return b
}

// Build creates a state machine instance starting at initial. The
// transition table is copied so later builder changes cannot leak in.
func (b *Builder) Build(initial JobStatus) StateMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial status: %s", initial))
	}

	copied := make(map[JobStatus]map[Trigger]JobStatus, len(b.transitions))
	for from, byTrigger := range b.transitions {
		inner := make(map[Trigger]JobStatus, len(byTrigger))
		for tr, to := range byTrigger {
			inner[tr] = to
		}
		copied[from] = inner
	}

	return &stateMachine{current: initial, transitions: copied}
}

type stateMachine struct {
	current     JobStatus
	transitions map[JobStatus]map[Trigger]JobStatus
}

func (m *stateMachine) State() JobStatus {
	return m.current
}

func (m *stateMachine) CanFire(trigger Trigger) bool {
	_, ok := m.transitions[m.current][trigger]
	return ok
}

func (m *stateMachine) Fire(trigger Trigger) error {
	to, ok := m.transitions[m.current][trigger]
	if !ok {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}
	m.current = to
	return nil
}

func (m *stateMachine) PermittedTriggers() []Trigger {
	byTrigger := m.transitions[m.current]
	out := make([]Trigger, 0, len(byTrigger))
	for tr := range byTrigger {
		out = append(out, tr)
	}
	return out
}

// newJobMachine builds the batch job lifecycle:
// created → queued → processing → {paused ⇄ processing} →
// {completed | cancelled | error}.
func newJobMachine() StateMachine {
	b := NewBuilder()
	b.Permit(JobCreated, TriggerEnqueue, JobQueued)
	b.Permit(JobQueued, TriggerStart, JobProcessing)
	b.Permit(JobQueued, TriggerCancel, JobCancelled)
	b.Permit(JobProcessing, TriggerPause, JobPaused)
	b.Permit(JobProcessing, TriggerComplete, JobCompleted)
	b.Permit(JobProcessing, TriggerCancel, JobCancelled)
	b.Permit(JobProcessing, TriggerFail, JobError)
	b.Permit(JobPaused, TriggerResume, JobProcessing)
	b.Permit(JobPaused, TriggerCancel, JobCancelled)
	return b.Build(JobCreated)
}
