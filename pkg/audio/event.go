package audio

// Event is an audio cue request
type Event int

const (
	EventStartup Event = iota
	EventShutdown
	EventDetect
)

func (e Event) String() string {
	switch e {
	case EventStartup:
		return "startup"
	case EventShutdown:
		return "shutdown"
	case EventDetect:
		return "detect"
	default:
		return "unknown"
	}
}

// ParseEvent maps a cue name to its Event
func ParseEvent(name string) (Event, bool) {
	switch name {
	case "startup":
		return EventStartup, true
	case "shutdown":
		return EventShutdown, true
	case "detect":
		return EventDetect, true
	default:
		return 0, false
	}
}
