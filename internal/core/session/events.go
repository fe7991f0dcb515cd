package session

import "time"

// Phase represents the controller's current mode.
type Phase string

const (
	PhaseIdle  Phase = "idle"
	PhaseWork  Phase = "work"
	PhaseBreak Phase = "break"
)

// EventType defines the type of controller event.
type EventType string

const (
	EventPhaseChange EventType = "phase_change"
	EventProgress    EventType = "progress"
	EventBreakDue    EventType = "break_due"
	EventIdlePause   EventType = "idle_pause"
	EventIdleError   EventType = "idle_error"
)

// Event represents a controller update for observers.
type Event struct {
	Type             EventType
	Phase            Phase
	BreakDue         bool
	RemainingSeconds int
	Message          string
	At               time.Time
}
