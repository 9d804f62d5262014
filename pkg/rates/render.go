package rates

import (
	"fmt"
	"sort"
	"strings"
)

// Render returns the rate table for display, sorted ascending by base rate.
// Regions with the same rate keep table order.
func Render() string {
	sorted := Regions()
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BaseRate.LessThan(sorted[j].BaseRate)
	})

	var b strings.Builder
	b.WriteString("📊 Tipos de ITP por comunidad (de menor a mayor):\n")
	for _, r := range sorted {
		fmt.Fprintf(&b, "• %s: %s%s\n", r.Name, FormatRate(r.BaseRate), annotation(r))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderMarkdown returns the same table as a markdown table, for terminal rendering.
func RenderMarkdown() string {
	sorted := Regions()
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BaseRate.LessThan(sorted[j].BaseRate)
	})

	var b strings.Builder
	b.WriteString("| Comunidad | Tipo | Reglas especiales |\n|---|---|---|\n")
	for _, r := range sorted {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", r.Name, FormatRate(r.BaseRate), strings.TrimSpace(annotation(r)))
	}
	return b.String()
}

// Numbered lists the regions in table order with their 1-based position.
func Numbered() string {
	var b strings.Builder
	for i, r := range table {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Name)
	}
	return strings.TrimRight(b.String(), "\n")
}

func annotation(r Region) string {
	switch {
	case r.HighPowerSurcharge:
		return fmt.Sprintf(" (%s si supera %s CV)", FormatRate(HighPowerRate), HighPowerThreshold.String())
	case r.ResidentDiscount:
		return " (50% menos para residentes)"
	}
	return ""
}
