// Package money formats prices for display.
package money

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders amounts in one currency with its standard number of
// decimals, e.g. "₹1,499.00".
type Formatter struct {
	unit    currency.Unit
	scale   int
	symbol  string
	printer *message.Printer
}

func New(code string) (*Formatter, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, fmt.Errorf("invalid currency %q: %w", code, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	printer := message.NewPrinter(language.English)
	return &Formatter{
		unit:    unit,
		scale:   scale,
		symbol:  printer.Sprint(currency.Symbol(unit)),
		printer: printer,
	}, nil
}

func (f *Formatter) Format(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return sign + f.symbol + f.printer.Sprint(number.Decimal(amount, number.Scale(f.scale)))
}

// Code is the ISO 4217 code.
func (f *Formatter) Code() string {
	return f.unit.String()
}
