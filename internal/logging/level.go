package logging

// Level represents a log severity.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	// LevelUnknown is the fallback for out-of-range codes from the host.
	// Unknown records are always written.
	LevelUnknown
)

// LevelFromCode decodes the severity byte the host passes across the ABI.
// 0..4 map to Trace..Error; anything else decodes to Unknown.
func LevelFromCode(code uint8) Level {
	if code > uint8(LevelError) {
		return LevelUnknown
	}
	return Level(code)
}

// String returns the record label for the level.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
