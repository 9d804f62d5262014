package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTransition  EventType = "transition"
	EventCommand     EventType = "command"
	EventCalculation EventType = "calculation"
	EventFailure     EventType = "failure"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"type"`
	SessionKey string    `json:"session_key,omitempty"`
}

// TransitionEvent is emitted after every handled message, including re-prompts (From == To).
type TransitionEvent struct {
	EventBase
	From Step `json:"from"`
	To   Step `json:"to"`
	// Ended is true when the session was deleted (completion).
	Ended bool `json:"ended,omitempty"`
}

// CommandEvent is emitted when a global command intercepts a message.
type CommandEvent struct {
	EventBase
	Command string `json:"command"`
}

// CalculationEvent is emitted after the calculation service returns.
type CalculationEvent struct {
	EventBase
	VehicleID string        `json:"vehicle_id"`
	Region    string        `json:"region"`
	Rate      string        `json:"rate,omitempty"`
	Tax       float64       `json:"tax,omitempty"`
	Duration  time.Duration `json:"duration"`
	IsError   bool          `json:"is_error,omitempty"`
}

// FailureEvent is emitted for soft failures surfaced to the user.
type FailureEvent struct {
	EventBase
	Step Step   `json:"step"`
	Kind string `json:"kind"`
	Err  error  `json:"-"`
}

// LifecycleHooks defines callbacks for observability.
type LifecycleHooks struct {
	OnTransition  func(context.Context, *TransitionEvent)
	OnCommand     func(context.Context, *CommandEvent)
	OnCalculation func(context.Context, *CalculationEvent)
	OnFailure     func(context.Context, *FailureEvent)
}
