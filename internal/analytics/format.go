package analytics

import (
	"fmt"
	"strings"
)

// FormatBRL renders a value as Brazilian currency, e.g. "R$ 1.234.567,89".
func FormatBRL(v float64) string {
	return "R$ " + formatDecimalBR(v, 2)
}

// FormatCountBR renders an integer with Brazilian thousand separators,
// e.g. "1.234.567".
func FormatCountBR(v int64) string {
	return groupThousands(fmt.Sprintf("%d", v))
}

func formatDecimalBR(v float64, decimals int) string {
	s := fmt.Sprintf("%.*f", decimals, v)

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, fracPart, _ := strings.Cut(s, ".")
	out := groupThousands(intPart)
	if fracPart != "" {
		out += "," + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	var sb strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		sb.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if sb.Len() > 0 {
			sb.WriteString(".")
		}
		sb.WriteString(digits[i : i+3])
	}
	return sb.String()
}
