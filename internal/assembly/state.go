package assembly

// State is the lifecycle position of the assembler.
type State int32

const (
	StateIdle State = iota
	StateTriggered
	StateSnapshotTaken
	StateFramesWritten
	StateEncoding
	StateVerifying
	StateMetadataCommitting
	StateCleaningUp
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTriggered:
		return "triggered"
	case StateSnapshotTaken:
		return "snapshot_taken"
	case StateFramesWritten:
		return "frames_written"
	case StateEncoding:
		return "encoding"
	case StateVerifying:
		return "verifying"
	case StateMetadataCommitting:
		return "metadata_committing"
	case StateCleaningUp:
		return "cleaning_up"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
