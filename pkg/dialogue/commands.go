package dialogue

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Command is a global instruction recognized at any step.
type Command string

const (
	CommandNone  Command = ""
	CommandReset Command = "reset"
	CommandHelp  Command = "help"
	CommandRates Command = "rates"
)

var (
	resetWords       = wordSet("reset", "inicio", "restart", "empezar")
	helpWords        = wordSet("ayuda", "help")
	ratesWords       = wordSet("tasas", "precios", "tarifas")
	affirmationWords = wordSet("si", "sí", "yes", "s")
	skipWords        = wordSet("saltar", "skip", "omitir", "cualquiera", "todos")
)

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// normalize trims and lower-cases input for keyword comparison.
func normalize(input string) string {
	return cases.Lower(language.Spanish).String(strings.TrimSpace(input))
}

func in(set map[string]struct{}, input string) bool {
	_, ok := set[normalize(input)]
	return ok
}

// ParseCommand returns the global command named by the input, if any.
func ParseCommand(input string) Command {
	switch {
	case in(resetWords, input):
		return CommandReset
	case in(helpWords, input):
		return CommandHelp
	case in(ratesWords, input):
		return CommandRates
	}
	return CommandNone
}

// IsAffirmative reports whether the input is a yes. Anything else counts as no.
func IsAffirmative(input string) bool {
	return in(affirmationWords, input)
}

// IsSkip reports whether the user declined to give a year.
func IsSkip(input string) bool {
	return in(skipWords, input)
}
