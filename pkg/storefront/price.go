package storefront

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CoercePrice turns whatever the upstream sent as a price into a decimal.
// Strings are stripped down to digits and the decimal point; anything that
// still fails to parse, or is negative, becomes zero.
func CoercePrice(raw any) decimal.Decimal {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return nonNegative(v)
	case float64:
		return nonNegative(decimal.NewFromFloat(v))
	case int:
		return nonNegative(decimal.NewFromInt(int64(v)))
	case int64:
		return nonNegative(decimal.NewFromInt(v))
	case json.Number:
		return coerceString(v.String())
	case json.RawMessage:
		return coerceRaw(v)
	case []byte:
		return coerceRaw(v)
	case string:
		return coerceString(v)
	default:
		return coerceString(fmt.Sprint(v))
	}
}

func coerceRaw(raw []byte) decimal.Decimal {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return coerceString(s)
	}
	return coerceString(string(raw))
}

func coerceString(s string) decimal.Decimal {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero
	}
	return nonNegative(d)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// FormatPeso renders an amount the way the storefront displays it, e.g.
// "₱1,200.00".
func FormatPeso(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	fixed := amount.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "₱" + b.String() + "." + frac
}
