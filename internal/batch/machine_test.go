package batch

import (
	"errors"
	"testing"
)

func TestJobStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   JobStatus
		expected bool
	}{
		{JobCreated, false},
		{JobQueued, false},
		{JobProcessing, false},
		{JobPaused, false},
		{JobCompleted, true},
		{JobCancelled, true},
		{JobError, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.expected {
				t.Errorf("JobStatus.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestJobStatus_IsValid(t *testing.T) {
	if !JobProcessing.IsValid() {
		t.Error("JobProcessing should be valid")
	}
	if JobStatus("BOGUS").IsValid() {
		t.Error("unknown status should be invalid")
	}
}

func TestFileStatus_IsTerminal(t *testing.T) {
	for _, s := range []FileStatus{FileCompleted, FileFailed, FileSkipped} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []FileStatus{FilePending, FileProcessing} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestJobMachine_HappyPath(t *testing.T) {
	m := newJobMachine()

	for _, tr := range []Trigger{TriggerEnqueue, TriggerStart, TriggerPause, TriggerResume, TriggerComplete} {
		if err := m.Fire(tr); err != nil {
			t.Fatalf("Fire(%s) from %s: %v", tr, m.State(), err)
		}
	}

	if m.State() != JobCompleted {
		t.Errorf("final state = %s, want %s", m.State(), JobCompleted)
	}
}

func TestJobMachine_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		path    []Trigger
		invalid Trigger
	}{
		{"pause before start", []Trigger{TriggerEnqueue}, TriggerPause},
		{"resume while processing", []Trigger{TriggerEnqueue, TriggerStart}, TriggerResume},
		{"start twice", []Trigger{TriggerEnqueue, TriggerStart}, TriggerStart},
		{"cancel after complete", []Trigger{TriggerEnqueue, TriggerStart, TriggerComplete}, TriggerCancel},
		{"complete while paused", []Trigger{TriggerEnqueue, TriggerStart, TriggerPause}, TriggerComplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newJobMachine()
			for _, tr := range tt.path {
				if err := m.Fire(tr); err != nil {
					t.Fatalf("setup Fire(%s): %v", tr, err)
				}
			}
			before := m.State()
			err := m.Fire(tt.invalid)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Fire(%s) error = %v, want ErrInvalidTransition", tt.invalid, err)
			}
			if m.State() != before {
				t.Errorf("state changed on rejected transition: %s -> %s", before, m.State())
			}
		})
	}
}

func TestJobMachine_CancelFromEveryActivePhase(t *testing.T) {
	paths := map[string][]Trigger{
		"queued":     {TriggerEnqueue},
		"processing": {TriggerEnqueue, TriggerStart},
		"paused":     {TriggerEnqueue, TriggerStart, TriggerPause},
	}

	for name, path := range paths {
		t.Run(name, func(t *testing.T) {
			m := newJobMachine()
			for _, tr := range path {
				if err := m.Fire(tr); err != nil {
					t.Fatalf("setup Fire(%s): %v", tr, err)
				}
			}
			if !m.CanFire(TriggerCancel) {
				t.Fatal("CanFire(cancel) = false")
			}
			if err := m.Fire(TriggerCancel); err != nil {
				t.Fatalf("Fire(cancel): %v", err)
			}
			if m.State() != JobCancelled {
				t.Errorf("state = %s, want %s", m.State(), JobCancelled)
			}
		})
	}
}

func TestBuilder_BuildCopiesTransitions(t *testing.T) {
	b := NewBuilder()
	b.Permit(JobCreated, TriggerEnqueue, JobQueued)
	m := b.Build(JobCreated)

	// Mutating the builder afterwards must not affect built machines.
	b.Permit(JobCreated, TriggerCancel, JobCancelled)

	if m.CanFire(TriggerCancel) {
		t.Error("built machine picked up a transition added after Build")
	}
}

func TestBuilder_PanicsOnInvalidStatus(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Permit should panic on invalid status")
		}
	}()
	NewBuilder().Permit(JobStatus("BOGUS"), TriggerStart, JobProcessing)
}

func TestStateMachine_PermittedTriggers(t *testing.T) {
	m := newJobMachine()
	_ = m.Fire(TriggerEnqueue)
	_ = m.Fire(TriggerStart)

	perms := m.PermittedTriggers()
	want := map[Trigger]bool{TriggerPause: true, TriggerComplete: true, TriggerCancel: true, TriggerFail: true}
	if len(perms) != len(want) {
		t.Fatalf("PermittedTriggers() = %v, want %d triggers", perms, len(want))
	}
	for _, tr := range perms {
		if !want[tr] {
			t.Errorf("unexpected trigger %s", tr)
		}
	}
}
