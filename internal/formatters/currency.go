package formatters

import (
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var brazil = message.NewPrinter(language.BrazilianPortuguese)

// FormatSalary renders an amount with Brazilian grouping, e.g. "R$ 8.500,00".
// Currencies other than BRL use their ISO code as the symbol.
func FormatSalary(amount float64, code string) string {
	symbol := "R$"
	if code = strings.ToUpper(strings.TrimSpace(code)); code != "" && code != "BRL" {
		if unit, err := currency.ParseISO(code); err == nil {
			symbol = unit.String()
		} else {
			symbol = code
		}
	}
	return symbol + " " + brazil.Sprint(number.Decimal(amount, number.Scale(2)))
}
