package core

// StepStatus represents the execution status of a step
type StepStatus int

const (
	StatusPending StepStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Completed successfully
	StatusFailed                    // Assertion failed (expected behavior didn't occur)
	StatusErrored                   // Unexpected error (session, timeout, precondition)
	StatusSkipped                   // Previous step failed
	StatusWarned                    // Best-effort step failed (non-blocking)
)

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	case StatusWarned:
		return "warned"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in reports.
func (s StepStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *StepStatus) UnmarshalText(text []byte) error {
	for st := StatusPending; st <= StatusWarned; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	*s = StatusPending
	return nil
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored, StatusSkipped, StatusWarned:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the status indicates success (passed or warned)
func (s StepStatus) IsSuccess() bool {
	return s == StatusPassed || s == StatusWarned
}

// StatusFor maps an error to the status a step ends with.
// Assertion failures fail the step; everything else errors it.
func StatusFor(err error) StepStatus {
	if err == nil {
		return StatusPassed
	}
	if CategoryOf(err) == ErrCategoryAssertion {
		return StatusFailed
	}
	return StatusErrored
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone         ErrorCategory = iota // No error
	ErrCategoryAssertion                         // Element not found, text mismatch, state check failed
	ErrCategoryTimeout                           // Bounded wait expired
	ErrCategoryPrecondition                      // Mutation attempted without its required screen or state
	ErrCategorySession                           // Application not reachable, launch/terminate failure
	ErrCategoryConfig                            // Invalid configuration, missing required field
	ErrCategoryUnknown                           // Error outside the taxonomy
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryPrecondition:
		return "precondition"
	case ErrCategorySession:
		return "session"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}

// MarshalText renders the category by name in reports.
func (c ErrorCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a category name.
func (c *ErrorCategory) UnmarshalText(text []byte) error {
	for cat := ErrCategoryNone; cat <= ErrCategoryUnknown; cat++ {
		if cat.String() == string(text) {
			*c = cat
			return nil
		}
	}
	*c = ErrCategoryUnknown
	return nil
}
