package model

import "fmt"

// EventKind discriminates dataset change notifications.
type EventKind int

const (
	// EventInserted reports a new source array at Index.
	EventInserted EventKind = iota
	// EventChanged reports that the array at Index changed.
	EventChanged
	// EventReloaded reports that metadata, index array and buffer were replaced.
	EventReloaded
)

// Event is one dataset change notification. Events may be produced from any
// goroutine; they are collected by the assembled dataset and handed out only
// through a check-and-clear drain on the owner's thread.
type Event struct {
	Kind  EventKind
	Index int // valid for EventInserted and EventChanged
}

// String returns a string representation of the Event.
func (e Event) String() string {
	switch e.Kind {
	case EventInserted:
		return fmt.Sprintf("Inserted(%d)", e.Index)
	case EventChanged:
		return fmt.Sprintf("Changed(%d)", e.Index)
	case EventReloaded:
		return "Reloaded"
	default:
		return fmt.Sprintf("Event(%d)", int(e.Kind))
	}
}
