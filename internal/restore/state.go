package restore

// State is the position of a Session in the restore state machine.
type State int

const (
	Idle State = iota
	Decrypting
	DiffReady
	DiffUnavailable
	DecryptFailed
	PreviewShown
	Applying
	Done
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Decrypting:
		return "decrypting"
	case DiffReady:
		return "diff-ready"
	case DiffUnavailable:
		return "diff-unavailable"
	case DecryptFailed:
		return "decrypt-failed"
	case PreviewShown:
		return "preview-shown"
	case Applying:
		return "applying"
	case Done:
		return "done"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Mode is how a restore writes remote state.
type Mode string

const (
	// ModeSelective applies only the changes approved during review.
	ModeSelective Mode = "selective"
	// ModeFullOverwrite replaces every recognized record with the remote value.
	ModeFullOverwrite Mode = "full-overwrite"
)
