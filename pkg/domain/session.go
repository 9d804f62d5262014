package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Step names the position of a session in the dialogue.
type Step string

const (
	StepWelcome        Step = "welcome"
	StepMaker          Step = "maker"
	StepYear           Step = "year"
	StepModelSelection Step = "model_selection"
	StepRegion         Step = "region"
	StepResidentCheck  Step = "resident_check"

	// StepSealed marks an encrypted session at rest. It never reaches the dialogue.
	StepSealed Step = "sealed"
)

// MaxCandidates caps the vehicles offered for selection after an ambiguous search.
const MaxCandidates = 10

// Stage is the data attached to the current step.
// Each implementation holds only the fields that are valid at that step.
type Stage interface {
	Step() Step
}

// Welcome is the initial stage of a new session. It expects a maker name.
type Welcome struct{}

// AwaitingMaker is the returning variant of Welcome, used after a search with no results.
type AwaitingMaker struct{}

// AwaitingYear holds the maker while the user chooses a year (or skips it).
type AwaitingYear struct {
	Maker string `json:"maker"`
}

// AwaitingModel holds the candidates offered after an ambiguous search.
type AwaitingModel struct {
	Maker string    `json:"maker"`
	Year  *int      `json:"year,omitempty"`
	Cars  []Vehicle `json:"cars"`
}

// AwaitingRegion holds the chosen vehicle while the user picks a region.
type AwaitingRegion struct {
	Maker         string `json:"maker"`
	Year          *int   `json:"year,omitempty"`
	SelectedCarID string `json:"selectedCarId"`
}

// AwaitingResidency holds the vehicle and the special territory being confirmed.
type AwaitingResidency struct {
	SelectedCarID string `json:"selectedCarId"`
	Region        string `json:"region"`
}

// Sealed is the opaque stage written by storage encryption.
type Sealed struct {
	Ciphertext string `json:"ciphertext"`
}

// Unrecognized keeps a step label written by another version of the assistant.
// The dialogue treats it like AwaitingMaker.
type Unrecognized struct {
	Name Step `json:"-"`
}

func (Welcome) Step() Step           { return StepWelcome }
func (AwaitingMaker) Step() Step     { return StepMaker }
func (AwaitingYear) Step() Step      { return StepYear }
func (AwaitingModel) Step() Step     { return StepModelSelection }
func (AwaitingRegion) Step() Step    { return StepRegion }
func (AwaitingResidency) Step() Step { return StepResidentCheck }
func (Sealed) Step() Step            { return StepSealed }
func (u Unrecognized) Step() Step    { return u.Name }

// Session is the persisted snapshot of one conversation, keyed by the channel id of the user.
type Session struct {
	Key       string
	Stage     Stage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSession creates a session at the welcome step.
func NewSession(key string, now time.Time) *Session {
	return &Session{
		Key:       key,
		Stage:     Welcome{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Step returns the current step. A session without a stage is at the welcome step.
func (s *Session) Step() Step {
	if s == nil || s.Stage == nil {
		return StepWelcome
	}
	return s.Stage.Step()
}

// Advance returns a copy of the session moved to the given stage.
func (s *Session) Advance(stage Stage, now time.Time) *Session {
	next := *s
	next.Stage = stage
	next.UpdatedAt = now
	return &next
}

type sessionEnvelope struct {
	Key       string          `json:"key"`
	Step      Step            `json:"step"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// MarshalJSON encodes the stage under a "step" discriminator.
func (s Session) MarshalJSON() ([]byte, error) {
	env := sessionEnvelope{
		Key:       s.Key,
		Step:      s.Step(),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if s.Stage != nil {
		data, err := json.Marshal(s.Stage)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stage %s: %w", env.Step, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// UnmarshalJSON decodes a session written by MarshalJSON.
func (s *Session) UnmarshalJSON(b []byte) error {
	var env sessionEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}

	stage, err := decodeStage(env.Step, env.Data)
	if err != nil {
		return err
	}

	s.Key = env.Key
	s.Stage = stage
	s.CreatedAt = env.CreatedAt
	s.UpdatedAt = env.UpdatedAt
	return nil
}

func decodeStage(step Step, data json.RawMessage) (Stage, error) {
	switch step {
	case StepWelcome, "":
		return Welcome{}, nil
	case StepMaker:
		return AwaitingMaker{}, nil
	case StepYear:
		var st AwaitingYear
		if err := unmarshalStage(data, &st); err != nil {
			return nil, err
		}
		return st, nil
	case StepModelSelection:
		var st AwaitingModel
		if err := unmarshalStage(data, &st); err != nil {
			return nil, err
		}
		return st, nil
	case StepRegion:
		var st AwaitingRegion
		if err := unmarshalStage(data, &st); err != nil {
			return nil, err
		}
		return st, nil
	case StepResidentCheck:
		var st AwaitingResidency
		if err := unmarshalStage(data, &st); err != nil {
			return nil, err
		}
		return st, nil
	case StepSealed:
		var st Sealed
		if err := unmarshalStage(data, &st); err != nil {
			return nil, err
		}
		return st, nil
	}
	return Unrecognized{Name: step}, nil
}

func unmarshalStage(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal stage: %w", err)
	}
	return nil
}
