package tracker

// Event type that is sent in an announce request.
type Event int32

// Tracker announce events.
const (
	EventNone Event = iota
	EventCompleted
	EventStarted
	EventStopped
)

var eventNames = [...]string{
	"",
	"completed",
	"started",
	"stopped",
}

// String returns the name of event as represented in HTTP tracker protocol.
// EventNone is represented by an empty string and is not sent.
func (e Event) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return ""
	}
	return eventNames[e]
}
