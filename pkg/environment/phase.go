package environment

// Phase is where an engine sits in its episode lifecycle.
type Phase int

const (
	// Unstarted engines reject Step until Reset is called.
	Unstarted Phase = iota
	Running
	// Terminated engines have returned done at least once this episode.
	Terminated
	// TerminatedWarned engines have also emitted the post-terminal warning.
	TerminatedWarned
)

func (p Phase) String() string {
	switch p {
	case Unstarted:
		return "unstarted"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	case TerminatedWarned:
		return "terminated (warned)"
	default:
		return "unknown"
	}
}
