package dialogue

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/itpbot/internal/logging"
	"github.com/aretw0/itpbot/pkg/domain"
	"github.com/aretw0/itpbot/pkg/ports"
	"github.com/aretw0/itpbot/pkg/rates"
)

// Accepted range for the year step.
const (
	MinYear = 1990
	MaxYear = 2026
)

// Calculator computes the transfer tax for a catalog vehicle.
type Calculator interface {
	Calculate(ctx context.Context, vehicleID, region string, isResident bool) (*domain.TransferResult, error)
}

// Effect tells the caller what to do with the stored session.
type Effect int

const (
	// Keep leaves the stored session (or its absence) untouched.
	Keep Effect = iota
	// Save persists Outcome.Session.
	Save
	// Delete removes the stored session: the conversation is complete.
	Delete
)

func (e Effect) String() string {
	switch e {
	case Save:
		return "save"
	case Delete:
		return "delete"
	}
	return "keep"
}

// Outcome is the result of handling one message.
type Outcome struct {
	Effect  Effect
	Session *domain.Session
	Reply   string
	// Command is set when a global command intercepted the message.
	Command Command
	// Result is set when the message completed a calculation.
	Result *domain.TransferResult
}

// Machine interprets messages against the current step.
type Machine struct {
	catalog    ports.VehicleCatalog
	calculator Calculator
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	now        func() time.Time
	maxInput   int
}

// Option configures the Machine.
type Option func(*Machine)

// WithLogger sets the logger used for operator-facing errors.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = l
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(m *Machine) {
		m.hooks = h
	}
}

// WithClock overrides the clock used for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// WithMaxInputSize limits the accepted message size in bytes.
func WithMaxInputSize(n int) Option {
	return func(m *Machine) {
		m.maxInput = n
	}
}

// NewMachine creates a dialogue over a catalog and a calculator.
func NewMachine(catalog ports.VehicleCatalog, calculator Calculator, opts ...Option) *Machine {
	m := &Machine{
		catalog:    catalog,
		calculator: calculator,
		logger:     logging.NewNop(),
		now:        time.Now,
		maxInput:   DefaultMaxInputSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Transition handles one inbound message for the session stored under key.
// current is nil when no session is stored. Transition never fails: every error
// becomes a reply and, when needed, a logged event.
func (m *Machine) Transition(ctx context.Context, key string, current *domain.Session, input string) Outcome {
	from := current.Step()

	text, err := SanitizeInput(input, m.maxInput)
	if err != nil {
		m.fail(ctx, key, from, "invalid_input", err)
		return m.finish(ctx, key, from, Outcome{Effect: Keep, Reply: msgInvalidInput})
	}

	if cmd := ParseCommand(text); cmd != CommandNone {
		m.emitCommand(ctx, key, cmd)
		return m.finish(ctx, key, from, m.command(key, cmd))
	}

	sess := current
	if sess == nil {
		sess = domain.NewSession(key, m.now().UTC())
	}

	var out Outcome
	switch stage := sess.Stage.(type) {
	case domain.Welcome, domain.AwaitingMaker:
		out = m.onMaker(ctx, sess, text, current == nil)
	case domain.AwaitingYear:
		out = m.onYear(ctx, sess, stage, text)
	case domain.AwaitingModel:
		out = m.onModel(ctx, sess, stage, text)
	case domain.AwaitingRegion:
		out = m.onRegion(ctx, sess, stage, text)
	case domain.AwaitingResidency:
		out = m.onResidency(ctx, sess, stage, text)
	default:
		m.logger.Warn("unknown session step, asking for the maker again",
			"session_key", key, "step", sess.Step())
		out = Outcome{Effect: Save, Session: sess.Advance(domain.AwaitingMaker{}, m.now().UTC()), Reply: msgMakerPrompt}
	}
	return m.finish(ctx, key, from, out)
}

func (m *Machine) command(key string, cmd Command) Outcome {
	switch cmd {
	case CommandReset:
		return Outcome{Effect: Save, Session: domain.NewSession(key, m.now().UTC()), Reply: msgWelcome, Command: cmd}
	case CommandHelp:
		return Outcome{Effect: Keep, Reply: msgHelp, Command: cmd}
	default:
		return Outcome{Effect: Keep, Reply: rates.Render(), Command: cmd}
	}
}

func (m *Machine) onMaker(ctx context.Context, sess *domain.Session, text string, fresh bool) Outcome {
	maker := domain.NormalizeMaker(text)
	if maker == "" {
		m.fail(ctx, sess.Key, sess.Step(), "empty_maker", nil)
		if fresh {
			return Outcome{Effect: Keep, Reply: msgWelcome}
		}
		return Outcome{Effect: Keep, Reply: msgMakerPrompt}
	}
	return Outcome{
		Effect:  Save,
		Session: sess.Advance(domain.AwaitingYear{Maker: maker}, m.now().UTC()),
		Reply:   yearPrompt(maker),
	}
}

// ParseYear reads the year step input. ok is false for anything that is neither a
// skip keyword nor an integer in [MinYear, MaxYear]; year is nil when skipped.
func ParseYear(text string) (year *int, ok bool) {
	if IsSkip(text) {
		return nil, true
	}
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < MinYear || n > MaxYear {
		return nil, false
	}
	return &n, true
}

func (m *Machine) onYear(ctx context.Context, sess *domain.Session, stage domain.AwaitingYear, text string) Outcome {
	year, ok := ParseYear(text)
	if !ok {
		m.fail(ctx, sess.Key, sess.Step(), "invalid_year", nil)
		return Outcome{Effect: Keep, Reply: invalidYear()}
	}

	found, err := m.catalog.Search(ctx, stage.Maker, year)
	if err != nil {
		m.fail(ctx, sess.Key, sess.Step(), "upstream", err)
		return Outcome{Effect: Keep, Reply: msgGenericError}
	}

	now := m.now().UTC()
	switch len(found) {
	case 0:
		return Outcome{
			Effect:  Save,
			Session: domain.NewSession(sess.Key, now).Advance(domain.AwaitingMaker{}, now),
			Reply:   noResults(stage.Maker, year),
		}
	case 1:
		return Outcome{
			Effect: Save,
			Session: sess.Advance(domain.AwaitingRegion{
				Maker:         stage.Maker,
				Year:          year,
				SelectedCarID: found[0].ID,
			}, now),
			Reply: regionPrompt(found[0]),
		}
	}

	if len(found) > domain.MaxCandidates {
		found = found[:domain.MaxCandidates]
	}
	return Outcome{
		Effect: Save,
		Session: sess.Advance(domain.AwaitingModel{
			Maker: stage.Maker,
			Year:  year,
			Cars:  found,
		}, now),
		Reply: candidateList(found),
	}
}

func (m *Machine) onModel(ctx context.Context, sess *domain.Session, stage domain.AwaitingModel, text string) Outcome {
	if len(stage.Cars) == 0 {
		return Outcome{Effect: Save, Session: sess.Advance(domain.AwaitingMaker{}, m.now().UTC()), Reply: msgMakerPrompt}
	}

	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 || n > len(stage.Cars) {
		m.fail(ctx, sess.Key, sess.Step(), "invalid_selection", nil)
		return Outcome{Effect: Keep, Reply: fmtSelection(len(stage.Cars))}
	}

	chosen := stage.Cars[n-1]
	return Outcome{
		Effect: Save,
		Session: sess.Advance(domain.AwaitingRegion{
			Maker:         stage.Maker,
			Year:          stage.Year,
			SelectedCarID: chosen.ID,
		}, m.now().UTC()),
		Reply: regionPrompt(chosen),
	}
}

// ResolveRegion reads the region step input: a 1-based position in the numbered list,
// or free text matched against the region names.
func ResolveRegion(text string) (rates.Region, bool) {
	if n, err := strconv.Atoi(strings.TrimSpace(text)); err == nil {
		return rates.At(n)
	}
	return rates.Match(text)
}

func (m *Machine) onRegion(ctx context.Context, sess *domain.Session, stage domain.AwaitingRegion, text string) Outcome {
	region, ok := ResolveRegion(text)
	if !ok {
		m.fail(ctx, sess.Key, sess.Step(), "unknown_region", nil)
		return Outcome{Effect: Keep, Reply: unknownRegion()}
	}

	if rates.IsSpecialTerritory(region.Name) {
		return Outcome{
			Effect: Save,
			Session: sess.Advance(domain.AwaitingResidency{
				SelectedCarID: stage.SelectedCarID,
				Region:        region.Name,
			}, m.now().UTC()),
			Reply: residentPrompt(region.Name),
		}
	}
	return m.complete(ctx, sess, stage.SelectedCarID, region.Name, false)
}

func (m *Machine) onResidency(ctx context.Context, sess *domain.Session, stage domain.AwaitingResidency, text string) Outcome {
	return m.complete(ctx, sess, stage.SelectedCarID, stage.Region, IsAffirmative(text))
}

// complete runs the calculation. On failure the stored session is kept so the user can retry.
func (m *Machine) complete(ctx context.Context, sess *domain.Session, vehicleID, region string, resident bool) Outcome {
	start := time.Now()
	result, err := m.calculator.Calculate(ctx, vehicleID, region, resident)
	m.emitCalculation(ctx, sess.Key, vehicleID, region, result, time.Since(start), err)

	if err != nil {
		if errors.Is(err, domain.ErrVehicleNotFound) {
			m.fail(ctx, sess.Key, sess.Step(), "not_found", err)
			return Outcome{Effect: Keep, Reply: msgNotFound}
		}
		m.fail(ctx, sess.Key, sess.Step(), "upstream", err)
		return Outcome{Effect: Keep, Reply: msgGenericError}
	}

	return Outcome{Effect: Delete, Reply: FormatResult(result), Result: result}
}

func (m *Machine) finish(ctx context.Context, key string, from domain.Step, out Outcome) Outcome {
	if m.hooks.OnTransition == nil {
		return out
	}
	to := from
	switch out.Effect {
	case Save:
		to = out.Session.Step()
	case Delete:
		to = domain.StepWelcome
	}
	m.hooks.OnTransition(ctx, &domain.TransitionEvent{
		EventBase: m.event(domain.EventTransition, key),
		From:      from,
		To:        to,
		Ended:     out.Effect == Delete,
	})
	return out
}

func (m *Machine) event(t domain.EventType, key string) domain.EventBase {
	return domain.EventBase{Timestamp: m.now().UTC(), Type: t, SessionKey: key}
}

func (m *Machine) emitCommand(ctx context.Context, key string, cmd Command) {
	if m.hooks.OnCommand != nil {
		m.hooks.OnCommand(ctx, &domain.CommandEvent{
			EventBase: m.event(domain.EventCommand, key),
			Command:   string(cmd),
		})
	}
}

func (m *Machine) emitCalculation(ctx context.Context, key, vehicleID, region string, res *domain.TransferResult, d time.Duration, err error) {
	if m.hooks.OnCalculation == nil {
		return
	}
	evt := &domain.CalculationEvent{
		EventBase: m.event(domain.EventCalculation, key),
		VehicleID: vehicleID,
		Region:    region,
		Duration:  d,
		IsError:   err != nil,
	}
	if res != nil {
		evt.Region = res.Region
		evt.Rate = res.Rate
		evt.Tax = res.Tax
	}
	m.hooks.OnCalculation(ctx, evt)
}

// fail reports a soft failure. Errors are logged for operators; validation misses are not.
func (m *Machine) fail(ctx context.Context, key string, step domain.Step, kind string, err error) {
	if err != nil {
		m.logger.Error("dialogue step failed",
			"session_key", key,
			"step", step,
			"kind", kind,
			"err", err)
	}
	if m.hooks.OnFailure != nil {
		m.hooks.OnFailure(ctx, &domain.FailureEvent{
			EventBase: m.event(domain.EventFailure, key),
			Step:      step,
			Kind:      kind,
			Err:       err,
		})
	}
}
