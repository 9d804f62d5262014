/*
Package rates holds the static table of vehicle transfer tax (ITP) rates per region
and the function that resolves the effective rate for a vehicle.

Rates are exact decimal fractions. Only FormatRate rounds, for display.

	res := rates.Resolve("Andalucía", 18, false)
	fmt.Println(rates.FormatRate(res.Rate)) // 8.0%
*/
package rates
