package ingredient

import "fmt"

// State is one point in the job lifecycle. The directory on disk is the
// source of truth (the external program owns the real state); State makes
// the inferred machine explicit.
type State int

const (
	// Unconfigured: the job directory has no usable input set yet.
	Unconfigured State = iota
	// InputsWritten: the full input artifact set is present.
	InputsWritten
	// Locked: a writer holds the directory's advisory lock.
	Locked
	// Running: the program has started writing output but has not finished.
	Running
	// Completed: the program's completion marker indicates a finished run.
	Completed
	// Failed: the program stalled and the error scan recognized at least one
	// failure signature.
	Failed
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case InputsWritten:
		return "inputs-written"
	case Locked:
		return "locked"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status pairs the lifecycle state with the advisory error-signature count
// observed when the state was derived. ErrorCount is only nonzero for
// Failed.
type Status struct {
	State      State
	ErrorCount int
}

func (st Status) String() string {
	if st.State == Failed {
		return fmt.Sprintf("%s(%d)", st.State, st.ErrorCount)
	}
	return st.State.String()
}
