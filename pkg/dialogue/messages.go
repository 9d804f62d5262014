package dialogue

import (
	"fmt"
	"strings"

	"github.com/aretw0/itpbot/pkg/domain"
	"github.com/aretw0/itpbot/pkg/rates"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	msgWelcome = "👋 ¡Hola! Te ayudo a calcular el Impuesto de Transmisiones Patrimoniales (ITP) " +
		"de la compra de un vehículo usado.\n\n" +
		"¿De qué marca es el vehículo? (por ejemplo: Toyota)\n\n" +
		"Escribe *ayuda* para ver los comandos disponibles."

	msgMakerPrompt = "¿De qué marca es el vehículo? (por ejemplo: Toyota)"

	msgInvalidYear = "❌ Año no válido. Escribe un año entre %d y %d, o *saltar* si no lo sabes."

	msgInvalidSelection = "❌ Selección no válida. Responde con un número del 1 al %d."

	msgUnknownRegion = "❌ No reconozco esa comunidad. Escribe su nombre o su número:\n\n%s"

	msgResidentPrompt = "📍 %s tiene una bonificación para residentes.\n¿Eres residente en %s? (sí/no)"

	msgGenericError = "⚠️ Ha ocurrido un error al procesar tu solicitud. Inténtalo de nuevo en unos momentos."

	msgNotFound = "⚠️ No he podido encontrar el vehículo seleccionado. Inténtalo de nuevo o escribe *reset* para empezar."

	msgInvalidInput = "⚠️ No he podido leer tu mensaje. Prueba con un texto más corto."

	msgHelp = "ℹ️ *Comandos disponibles*\n" +
		"• *reset* / *inicio*: empezar un nuevo cálculo\n" +
		"• *tasas* / *precios*: ver los tipos de ITP por comunidad\n" +
		"• *ayuda*: mostrar este mensaje\n\n" +
		"Para calcular el impuesto, indica la marca, el año, el modelo y la comunidad autónoma."
)

// displayMaker turns a normalized maker ("mercedes-benz") into "Mercedes-Benz".
// A Caser keeps state between calls, so each call gets its own.
func displayMaker(maker string) string {
	return cases.Title(language.Spanish).String(maker)
}

func yearPrompt(maker string) string {
	return fmt.Sprintf("Perfecto, %s. ¿De qué año es el vehículo? (%d-%d)\nEscribe *saltar* si no lo sabes.",
		displayMaker(maker), MinYear, MaxYear)
}

func fmtSelection(n int) string {
	return fmt.Sprintf(msgInvalidSelection, n)
}

func invalidYear() string {
	return fmt.Sprintf(msgInvalidYear, MinYear, MaxYear)
}

func noResults(maker string, year *int) string {
	what := displayMaker(maker)
	if year != nil {
		what = fmt.Sprintf("%s del año %d", what, *year)
	}
	return fmt.Sprintf("😕 No he encontrado vehículos %s en el catálogo.\n\n%s", what, msgMakerPrompt)
}

func candidateList(cars []domain.Vehicle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "He encontrado %d modelos:\n\n", len(cars))
	for i, v := range cars {
		fmt.Fprintf(&b, "%d. %s\n", i+1, v.Label())
	}
	b.WriteString("\nResponde con el número del modelo.")
	return b.String()
}

func regionPrompt(v domain.Vehicle) string {
	return fmt.Sprintf("✅ Vehículo: %s %s\n\n¿En qué comunidad autónoma se hace la transferencia? "+
		"Escribe su nombre o su número:\n\n%s",
		displayMaker(v.Maker), v.Label(), rates.Numbered())
}

func unknownRegion() string {
	return fmt.Sprintf(msgUnknownRegion, rates.Numbered())
}

func residentPrompt(region string) string {
	return fmt.Sprintf(msgResidentPrompt, region, region)
}

func money(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2) + " €"
}

// FormatResult renders a calculation for the chat channel.
func FormatResult(r *domain.TransferResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚗 *%s %s*\n", displayMaker(r.Vehicle.Maker), r.Vehicle.Label())
	fmt.Fprintf(&b, "📍 Comunidad: %s\n", r.Region)
	fmt.Fprintf(&b, "💶 Valor fiscal: %s\n", money(r.FiscalValue))
	fmt.Fprintf(&b, "📊 Tipo aplicado: %s\n", r.Rate)
	fmt.Fprintf(&b, "💰 *ITP a pagar: %s*\n", money(r.Tax))
	for _, note := range r.Notes {
		fmt.Fprintf(&b, "ℹ️ %s\n", note)
	}
	b.WriteString("\nEscribe otra marca para hacer un nuevo cálculo.")
	return b.String()
}
