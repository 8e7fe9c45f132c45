package download

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// String returns the lowercase level name.
func (l ProgressLevel) String() string {
	switch l {
	case LevelVerbose:
		return "verbose"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelSuccess:
		return "success"
	default:
		return "info"
	}
}

// ProgressEvent represents a pipeline progress update.
//
// Current and Total are set on per-item events (1-based position in the
// pending list); both are zero otherwise.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
	ItemID  string
	Current int
	Total   int
}

type progressFunc func(ProgressEvent)

func (f progressFunc) emit(event ProgressEvent) {
	if f != nil {
		f(event)
	}
}
