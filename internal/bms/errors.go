package bms

import "fmt"

// ParseError indicates structurally broken input: malformed XML or a
// document missing the expected root element.
type ParseError struct {
	Reason string
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse error: %s", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ResourceLimitError indicates input rejected before parsing because it
// exceeds a configured limit.
type ResourceLimitError struct {
	Limit  int64
	Actual int64
}

func (e *ResourceLimitError) Error() string {
	return fmt.Sprintf("document size %d exceeds limit %d", e.Actual, e.Limit)
}
