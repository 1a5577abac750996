package billing

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/currency"
)

// Payment providers express amounts in the smallest unit of the
// currency. Most currencies carry two decimal digits, but a handful
// (JPY, KRW, ...) carry none, so the conversion has to consult the
// currency itself rather than assume cents.

func scaleFor(code string) (int, error) {
	cur, err := currency.ParseISO(code)
	if err != nil {
		return 0, fmt.Errorf("parse currency %q: %w", code, err)
	}
	digits, _ := currency.Standard.Rounding(cur)
	return digits, nil
}

// MinorUnits converts a decimal amount into provider minor units,
// rounding half away from zero.
func MinorUnits(amount float64, code string) (int64, error) {
	digits, err := scaleFor(code)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(amount * math.Pow10(digits))), nil
}

// FromMinorUnits converts provider minor units back to a decimal
// amount.
func FromMinorUnits(units int64, code string) (float64, error) {
	digits, err := scaleFor(code)
	if err != nil {
		return 0, err
	}
	return float64(units) / math.Pow10(digits), nil
}

// FormatPrice renders minor units for display, e.g. "USD 49.00" or
// "JPY 4900". Unknown codes fall back to two decimals.
func FormatPrice(units int64, code string) string {
	code = strings.ToUpper(code)
	digits, err := scaleFor(code)
	if err != nil {
		digits = 2
	}
	if digits == 0 {
		return fmt.Sprintf("%s %d", code, units)
	}
	return fmt.Sprintf("%s %.*f", code, digits, float64(units)/math.Pow10(digits))
}
