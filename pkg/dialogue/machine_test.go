package dialogue_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/itpbot/pkg/adapters/memory"
	"github.com/aretw0/itpbot/pkg/dialogue"
	"github.com/aretw0/itpbot/pkg/domain"
	"github.com/aretw0/itpbot/pkg/tax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const key = "+34600111222"

func fixtureVehicles() []domain.Vehicle {
	vehicles := []domain.Vehicle{
		{ID: "corolla", Maker: "Toyota", Model: "Corolla", Year: 2020, FiscalPower: 11.5, FiscalValue: 18000, FuelType: domain.FuelHybrid},
		{ID: "yaris", Maker: "Toyota", Model: "Yaris", Year: 2019, FiscalPower: 9.2, FiscalValue: 11000, FuelType: domain.FuelGasoline},
		{ID: "rav4", Maker: "Toyota", Model: "RAV4", Year: 2020, FiscalPower: 14.2, FiscalValue: 27000, FuelType: domain.FuelHybrid},
		{ID: "chr", Maker: "Toyota", Model: "C-HR", Year: 2020, FiscalPower: 12.1, FiscalValue: 22000, FuelType: domain.FuelHybrid},
		{ID: "model3", Maker: "Tesla", Model: "Model 3", Year: 2021, FiscalPower: 0, FiscalValue: 35000, FuelType: domain.FuelElectric},
		{ID: "m5", Maker: "BMW", Model: "M5", Year: 2019, FiscalPower: 18, FiscalValue: 42000, FuelType: domain.FuelGasoline},
	}
	for i := 1; i <= 12; i++ {
		vehicles = append(vehicles, domain.Vehicle{
			ID: fmt.Sprintf("fiat-%d", i), Maker: "Fiat", Model: fmt.Sprintf("Modelo %d", i),
			Year: 2020, FiscalPower: 8, FiscalValue: 6000, FuelType: domain.FuelGasoline,
		})
	}
	return vehicles
}

type harness struct {
	machine *dialogue.Machine
	store   *memory.Store
	ledger  *memory.Ledger
}

func newHarness(t *testing.T, opts ...dialogue.Option) *harness {
	t.Helper()
	catalog := memory.NewCatalog()
	_, err := catalog.Seed(context.Background(), fixtureVehicles())
	require.NoError(t, err)

	ledger := memory.NewLedger()
	calc := tax.NewService(catalog, tax.WithLedger(ledger))
	return &harness{
		machine: dialogue.NewMachine(catalog, calc, opts...),
		store:   memory.NewStore(),
		ledger:  ledger,
	}
}

// say sends one message and applies the outcome to the store.
func (h *harness) say(t *testing.T, text string) dialogue.Outcome {
	t.Helper()
	ctx := context.Background()

	current, err := h.store.Load(ctx, key)
	if errors.Is(err, domain.ErrSessionNotFound) {
		current = nil
	} else {
		require.NoError(t, err)
	}

	out := h.machine.Transition(ctx, key, current, text)
	switch out.Effect {
	case dialogue.Save:
		require.NotNil(t, out.Session)
		require.NoError(t, h.store.Save(ctx, key, out.Session))
	case dialogue.Delete:
		require.NoError(t, h.store.Delete(ctx, key))
	}
	return out
}

func (h *harness) step(t *testing.T) domain.Step {
	t.Helper()
	sess, err := h.store.Load(context.Background(), key)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return ""
	}
	require.NoError(t, err)
	return sess.Step()
}

func (h *harness) stage(t *testing.T) domain.Stage {
	t.Helper()
	sess, err := h.store.Load(context.Background(), key)
	require.NoError(t, err)
	return sess.Stage
}

func TestToyota2020ListsSeededModels(t *testing.T) {
	h := newHarness(t)

	out := h.say(t, "Toyota")
	assert.Equal(t, dialogue.Save, out.Effect)
	assert.Equal(t, domain.StepYear, h.step(t))
	assert.Contains(t, out.Reply, "Toyota")

	out = h.say(t, "2020")
	assert.Equal(t, domain.StepModelSelection, h.step(t))

	stage, ok := h.stage(t).(domain.AwaitingModel)
	require.True(t, ok)
	require.Len(t, stage.Cars, 3)
	var names []string
	for _, c := range stage.Cars {
		names = append(names, c.Model)
	}
	assert.Equal(t, []string{"Corolla", "RAV4", "C-HR"}, names)
	assert.Equal(t, "toyota", stage.Maker)
	require.NotNil(t, stage.Year)
	assert.Equal(t, 2020, *stage.Year)

	assert.Contains(t, out.Reply, "1. Corolla (2020)")
	assert.Contains(t, out.Reply, "3. C-HR (2020)")
}

func TestSingleMatchSkipsSelection(t *testing.T) {
	h := newHarness(t)

	h.say(t, "tesla")
	out := h.say(t, "saltar")

	assert.Equal(t, domain.StepRegion, h.step(t))
	stage, ok := h.stage(t).(domain.AwaitingRegion)
	require.True(t, ok)
	assert.Equal(t, "model3", stage.SelectedCarID)
	assert.Nil(t, stage.Year)
	assert.Contains(t, out.Reply, "Model 3 (2021)")
	assert.Contains(t, out.Reply, "13. Madrid")
}

func TestMadridCompletion(t *testing.T) {
	h := newHarness(t)

	h.say(t, "toyota")
	h.say(t, "2020")
	h.say(t, "1")
	require.Equal(t, domain.StepRegion, h.step(t))

	out := h.say(t, "madrid")
	assert.Equal(t, dialogue.Delete, out.Effect)
	require.NotNil(t, out.Result)
	assert.Equal(t, 720.0, out.Result.Tax)
	assert.Equal(t, "4.0%", out.Result.Rate)
	assert.Contains(t, out.Reply, "4.0%")
	assert.Contains(t, out.Reply, "720.00 €")
	assert.Equal(t, domain.Step(""), h.step(t), "completion deletes the session")

	records, err := h.ledger.List(context.Background(), "corolla")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestHighPowerSurchargeInAndalucia(t *testing.T) {
	h := newHarness(t)

	h.say(t, "BMW")
	h.say(t, "cualquiera")
	require.Equal(t, domain.StepRegion, h.step(t))

	out := h.say(t, "andalu")
	require.NotNil(t, out.Result)
	assert.Equal(t, "8.0%", out.Result.Rate)
	assert.Equal(t, 3360.0, out.Result.Tax)
	assert.Contains(t, out.Reply, "15 CV")
}

func TestCeutaResident(t *testing.T) {
	h := newHarness(t)

	h.say(t, "toyota")
	h.say(t, "2020")
	h.say(t, "1")

	out := h.say(t, "Ceuta")
	assert.Equal(t, dialogue.Save, out.Effect)
	assert.Equal(t, domain.StepResidentCheck, h.step(t))
	assert.Equal(t, domain.AwaitingResidency{SelectedCarID: "corolla", Region: "Ceuta"}, h.stage(t))
	assert.Contains(t, out.Reply, "residente")

	out = h.say(t, " Sí ")
	require.NotNil(t, out.Result)
	assert.Equal(t, "2.0%", out.Result.Rate)
	assert.Equal(t, 360.0, out.Result.Tax)
	assert.Equal(t, domain.Step(""), h.step(t))
}

func TestResidentCheckDefaultsToNo(t *testing.T) {
	h := newHarness(t)

	h.say(t, "toyota")
	h.say(t, "2020")
	h.say(t, "1")
	h.say(t, "21") // Melilla by position

	require.Equal(t, domain.AwaitingResidency{SelectedCarID: "corolla", Region: "Melilla"}, h.stage(t))

	out := h.say(t, "quizás")
	require.NotNil(t, out.Result)
	assert.Equal(t, "4.0%", out.Result.Rate)
	assert.Nil(t, out.Result.Notes)
}

func TestInvalidYearReprompts(t *testing.T) {
	h := newHarness(t)
	h.say(t, "toyota")

	for _, input := range []string{"abc", "1989", "2027", "20.20", ""} {
		out := h.say(t, input)
		assert.Equal(t, dialogue.Keep, out.Effect, input)
		assert.Contains(t, out.Reply, "Año no válido", input)
		assert.Equal(t, domain.StepYear, h.step(t), input)
	}

	out := h.say(t, "1990")
	assert.Equal(t, dialogue.Save, out.Effect)
}

func TestZeroResultsReturnsToMaker(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := created
	h := newHarness(t, dialogue.WithClock(func() time.Time { return clock }))

	h.say(t, "lada")
	clock = clock.Add(time.Hour)

	out := h.say(t, "2020")
	assert.Equal(t, dialogue.Save, out.Effect)
	assert.Equal(t, domain.StepMaker, h.step(t))
	assert.Contains(t, out.Reply, "Lada del año 2020")

	sess, err := h.store.Load(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, clock, sess.CreatedAt, "the session is recreated")

	out = h.say(t, "toyota")
	assert.Equal(t, domain.StepYear, h.step(t))
	assert.Contains(t, out.Reply, "Toyota")
}

func TestModelSelectionBounds(t *testing.T) {
	h := newHarness(t)
	h.say(t, "toyota")
	h.say(t, "2020")

	for _, input := range []string{"0", "4", "-1", "uno", "1.5"} {
		out := h.say(t, input)
		assert.Equal(t, dialogue.Keep, out.Effect, input)
		assert.Contains(t, out.Reply, "del 1 al 3", input)
		assert.Equal(t, domain.StepModelSelection, h.step(t), input)
	}

	h.say(t, "3")
	stage, ok := h.stage(t).(domain.AwaitingRegion)
	require.True(t, ok)
	assert.Equal(t, "chr", stage.SelectedCarID)
	require.NotNil(t, stage.Year)
	assert.Equal(t, 2020, *stage.Year)
}

func TestCandidatesCappedAtTen(t *testing.T) {
	h := newHarness(t)
	h.say(t, "fiat")
	out := h.say(t, "2020")

	stage, ok := h.stage(t).(domain.AwaitingModel)
	require.True(t, ok)
	assert.Len(t, stage.Cars, domain.MaxCandidates)
	assert.Equal(t, "fiat-1", stage.Cars[0].ID)
	assert.Equal(t, "fiat-10", stage.Cars[9].ID)
	assert.Contains(t, out.Reply, "He encontrado 10 modelos")

	assert.Equal(t, dialogue.Keep, h.say(t, "11").Effect)
}

func TestUnknownRegionReprompts(t *testing.T) {
	h := newHarness(t)
	h.say(t, "tesla")
	h.say(t, "saltar")

	for _, input := range []string{"Narnia", "0", "22", ""} {
		out := h.say(t, input)
		assert.Equal(t, dialogue.Keep, out.Effect, input)
		assert.Contains(t, out.Reply, "1. Andalucía", input)
		assert.Equal(t, domain.StepRegion, h.step(t), input)
	}
}

func TestGlobalCommands(t *testing.T) {
	h := newHarness(t)
	h.say(t, "toyota")
	h.say(t, "2020")
	require.Equal(t, domain.StepModelSelection, h.step(t))

	out := h.say(t, "AYUDA")
	assert.Equal(t, dialogue.CommandHelp, out.Command)
	assert.Equal(t, dialogue.Keep, out.Effect)
	assert.Contains(t, out.Reply, "Comandos")
	assert.Equal(t, domain.StepModelSelection, h.step(t))

	out = h.say(t, "tarifas")
	assert.Equal(t, dialogue.CommandRates, out.Command)
	assert.True(t, strings.HasPrefix(out.Reply, "📊"))
	assert.Equal(t, domain.StepModelSelection, h.step(t))

	out = h.say(t, " Inicio ")
	assert.Equal(t, dialogue.CommandReset, out.Command)
	assert.Equal(t, dialogue.Save, out.Effect)
	assert.Equal(t, domain.StepWelcome, h.step(t))
	assert.Contains(t, out.Reply, "¡Hola!")
}

func TestHelpDoesNotCreateSession(t *testing.T) {
	h := newHarness(t)
	out := h.say(t, "help")
	assert.Equal(t, dialogue.Keep, out.Effect)
	assert.Equal(t, domain.Step(""), h.step(t))
}

func TestEmptyMaker(t *testing.T) {
	h := newHarness(t)

	out := h.say(t, "   ")
	assert.Equal(t, dialogue.Keep, out.Effect)
	assert.Contains(t, out.Reply, "¡Hola!")

	h.say(t, "reset")
	out = h.say(t, "")
	assert.Equal(t, dialogue.Keep, out.Effect)
	assert.Equal(t, domain.StepWelcome, h.step(t))
}

type failingCatalog struct {
	*memory.Catalog
	searchErr error
}

func (f failingCatalog) Search(ctx context.Context, maker string, year *int) ([]domain.Vehicle, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.Catalog.Search(ctx, maker, year)
}

type stubCalculator struct {
	err error
}

func (s stubCalculator) Calculate(context.Context, string, string, bool) (*domain.TransferResult, error) {
	return nil, s.err
}

func TestSearchFailureKeepsSession(t *testing.T) {
	catalog := failingCatalog{Catalog: memory.NewCatalog(), searchErr: errors.New("db down")}
	var failures []string
	m := dialogue.NewMachine(catalog, stubCalculator{}, dialogue.WithHooks(domain.LifecycleHooks{
		OnFailure: func(_ context.Context, e *domain.FailureEvent) { failures = append(failures, e.Kind) },
	}))

	now := time.Now().UTC()
	current := domain.NewSession(key, now).Advance(domain.AwaitingYear{Maker: "toyota"}, now)

	out := m.Transition(context.Background(), key, current, "2020")
	assert.Equal(t, dialogue.Keep, out.Effect)
	assert.Contains(t, out.Reply, "error")
	assert.Equal(t, []string{"upstream"}, failures)
}

func TestCalculationFailuresKeepSession(t *testing.T) {
	now := time.Now().UTC()
	current := domain.NewSession(key, now).Advance(domain.AwaitingRegion{Maker: "toyota", SelectedCarID: "gone"}, now)

	for _, tc := range []struct {
		err   error
		reply string
	}{
		{fmt.Errorf("vehicle %q: %w", "gone", domain.ErrVehicleNotFound), "No he podido encontrar"},
		{fmt.Errorf("%w: timeout", domain.ErrUpstream), "Ha ocurrido un error"},
	} {
		m := dialogue.NewMachine(memory.NewCatalog(), stubCalculator{err: tc.err})
		out := m.Transition(context.Background(), key, current, "Madrid")
		assert.Equal(t, dialogue.Keep, out.Effect)
		assert.Nil(t, out.Result)
		assert.Contains(t, out.Reply, tc.reply)
	}
}

func TestUnrecognizedStepAsksForMaker(t *testing.T) {
	h := newHarness(t)
	now := time.Now().UTC()
	current := domain.NewSession(key, now).Advance(domain.Unrecognized{Name: "payment"}, now)

	out := h.machine.Transition(context.Background(), key, current, "hola")
	assert.Equal(t, dialogue.Save, out.Effect)
	assert.Equal(t, domain.StepMaker, out.Session.Step())
	assert.Contains(t, out.Reply, "marca")
}

func TestOversizedInputIsRejected(t *testing.T) {
	h := newHarness(t, dialogue.WithMaxInputSize(16))
	out := h.say(t, strings.Repeat("x", 17))
	assert.Equal(t, dialogue.Keep, out.Effect)
	assert.Equal(t, domain.Step(""), h.step(t))
}

func TestTransitionHooks(t *testing.T) {
	var events []domain.TransitionEvent
	var calcs []domain.CalculationEvent
	var commands []string
	h := newHarness(t, dialogue.WithHooks(domain.LifecycleHooks{
		OnTransition:  func(_ context.Context, e *domain.TransitionEvent) { events = append(events, *e) },
		OnCalculation: func(_ context.Context, e *domain.CalculationEvent) { calcs = append(calcs, *e) },
		OnCommand:     func(_ context.Context, e *domain.CommandEvent) { commands = append(commands, e.Command) },
	}))

	h.say(t, "tesla")
	h.say(t, "abc")
	h.say(t, "skip")
	h.say(t, "precios")
	h.say(t, "galicia")

	require.Len(t, events, 5)
	assert.Equal(t, domain.StepWelcome, events[0].From)
	assert.Equal(t, domain.StepYear, events[0].To)
	assert.Equal(t, events[1].From, events[1].To, "re-prompt stays")
	assert.Equal(t, domain.StepRegion, events[2].To)
	assert.Equal(t, domain.StepRegion, events[3].To)
	assert.True(t, events[4].Ended)
	for _, e := range events {
		assert.Equal(t, key, e.SessionKey)
	}

	assert.Equal(t, []string{"rates"}, commands)
	require.Len(t, calcs, 1)
	assert.Equal(t, "Galicia", calcs[0].Region)
	assert.Equal(t, "3.0%", calcs[0].Rate)
	assert.False(t, calcs[0].IsError)
}

func TestConcurrentMessagesDoNotCrash(t *testing.T) {
	h := newHarness(t)
	h.say(t, "toyota")

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			ctx := context.Background()
			current, _ := h.store.Load(ctx, key)
			out := h.machine.Transition(ctx, key, current, "2020")
			if out.Effect == dialogue.Save {
				_ = h.store.Save(ctx, key, out.Session)
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, domain.StepModelSelection, h.step(t))
}

func TestDifferentSessionsRunInParallel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	type conversation struct {
		yearPrompt string
		result     *domain.TransferResult
		err        error
	}

	const senders = 16
	results := make([]conversation, senders)
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := fmt.Sprintf("+3460000%04d", i)
			var current *domain.Session
			for n, text := range []string{"TOYOTA", "2020", "1", "Ceuta", "SÍ"} {
				out := h.machine.Transition(ctx, sender, current, text)
				if n == 0 {
					results[i].yearPrompt = out.Reply
				}
				switch out.Effect {
				case dialogue.Save:
					if err := h.store.Save(ctx, sender, out.Session); err != nil {
						results[i].err = err
						return
					}
					current = out.Session
				case dialogue.Delete:
					results[i].result = out.Result
					current = nil
				}
			}
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		require.NoError(t, r.err, "sender %d", i)
		assert.Contains(t, r.yearPrompt, "Perfecto, Toyota.", "sender %d", i)
		require.NotNil(t, r.result, "sender %d", i)
		assert.Equal(t, "2.0%", r.result.Rate)
		assert.Equal(t, 360.0, r.result.Tax)
	}

	records, err := h.ledger.List(ctx, "corolla")
	require.NoError(t, err)
	assert.Len(t, records, senders)
}
