package runner_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aretw0/itpbot"
	"github.com/aretw0/itpbot/pkg/adapters/memory"
	"github.com/aretw0/itpbot/pkg/domain"
	"github.com/aretw0/itpbot/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBot(t *testing.T) (*itpbot.Bot, *memory.Store) {
	t.Helper()
	catalog := memory.NewCatalog()
	_, err := catalog.Seed(context.Background(), []domain.Vehicle{
		{Maker: "Toyota", Model: "Corolla", Year: 2020, FiscalPower: 11.5, FiscalValue: 18000, FuelType: domain.FuelHybrid},
	})
	require.NoError(t, err)
	store := memory.NewStore()
	bot, err := itpbot.New(catalog, itpbot.WithStore(store))
	require.NoError(t, err)
	return bot, store
}

func TestRunner_TextConversation(t *testing.T) {
	bot, store := newBot(t)
	in := strings.NewReader("toyota\n\n2020\nmadrid\n")
	var out bytes.Buffer

	r := &runner.Runner{Handler: runner.NewTextHandler(in, &out), Key: "tty"}
	require.NoError(t, r.Run(context.Background(), bot))

	text := out.String()
	assert.Contains(t, text, "¡Hola!")
	assert.Contains(t, text, "720.00 €")

	_, err := store.Load(context.Background(), "tty")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRunner_ExitWord(t *testing.T) {
	bot, store := newBot(t)
	in := strings.NewReader("toyota\nsalir\n2020\n")
	var out bytes.Buffer

	r := &runner.Runner{Handler: runner.NewTextHandler(in, &out, runner.WithPrompt("")), Key: "tty"}
	require.NoError(t, r.Run(context.Background(), bot))

	sess, err := store.Load(context.Background(), "tty")
	require.NoError(t, err)
	assert.Equal(t, domain.StepYear, sess.Step(), "input after the exit word is never read")
}

func TestRunner_Resume(t *testing.T) {
	bot, _ := newBot(t)
	ctx := context.Background()
	_, err := bot.HandleMessage(ctx, "tty", "toyota")
	require.NoError(t, err)

	var out bytes.Buffer
	r := &runner.Runner{Handler: runner.NewTextHandler(strings.NewReader("2020\n"), &out), Key: "tty", Resume: true}
	require.NoError(t, r.Run(ctx, bot))

	assert.NotContains(t, out.String(), "¡Hola!")
	assert.Contains(t, out.String(), "Corolla")
}

func TestRunner_Renderer(t *testing.T) {
	bot, _ := newBot(t)
	var out bytes.Buffer
	upper := func(s string) (string, error) { return strings.ToUpper(s), nil }

	r := &runner.Runner{Handler: runner.NewTextHandler(strings.NewReader(""), &out, runner.WithRenderer(upper))}
	require.NoError(t, r.Run(context.Background(), bot))
	assert.Contains(t, out.String(), "¡HOLA!")
}

func TestRunner_JSONLines(t *testing.T) {
	bot, _ := newBot(t)
	in := strings.NewReader("\"toyota\"\n{\"text\":\"2020\"}\nMadrid\n")
	var out bytes.Buffer

	r := &runner.Runner{Handler: runner.NewJSONHandler(in, &out), Key: "json"}
	require.NoError(t, r.Run(context.Background(), bot))

	var replies []itpbot.Reply
	dec := json.NewDecoder(&out)
	for dec.More() {
		var rep itpbot.Reply
		require.NoError(t, dec.Decode(&rep))
		replies = append(replies, rep)
	}
	require.Len(t, replies, 4)
	assert.Equal(t, domain.StepWelcome, replies[0].Step)
	assert.Equal(t, domain.StepYear, replies[1].Step)
	assert.Equal(t, domain.StepRegion, replies[2].Step)
	assert.True(t, replies[3].Ended)
	require.NotNil(t, replies[3].Result)
	assert.InDelta(t, 720.0, replies[3].Result.Tax, 0.001)
}

func TestRunner_Cancelled(t *testing.T) {
	bot, store := newBot(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &runner.Runner{Handler: runner.NewTextHandler(strings.NewReader("toyota\n"), &bytes.Buffer{}), Key: "tty"}
	require.NoError(t, r.Run(ctx, bot), "cancellation ends the loop quietly")

	sess, err := store.Load(context.Background(), "tty")
	require.NoError(t, err)
	assert.Equal(t, domain.StepWelcome, sess.Step(), "no message is read after cancellation")
}
