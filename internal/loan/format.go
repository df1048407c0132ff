package loan

import (
	"math"
	"strconv"
)

// FormatCurrency renders a raw loan amount as a display string like
// "$1,234,567". Unparsable values render as "N/A".
func FormatCurrency(raw string) string {
	v, ok := ParseAmount(raw)
	if !ok {
		return "N/A"
	}
	return formatDollars(v)
}

func formatDollars(v float64) string {
	neg := v < 0
	s := strconv.FormatInt(int64(math.Round(math.Abs(v))), 10)

	var out []byte
	for i, d := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, d)
	}
	if neg {
		return "-$" + string(out)
	}
	return "$" + string(out)
}
