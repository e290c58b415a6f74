package reports

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseTimeframe turns a caller-facing window such as "12 months", "90 days"
// or "2 years" into a cutoff timestamp relative to now. The cutoff is bound
// as a query parameter, never interpolated.
func parseTimeframe(raw string, now time.Time) (time.Time, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(raw)))
	if len(fields) != 2 {
		return time.Time{}, fmt.Errorf("timeframe %q: expected \"<count> <unit>\"", raw)
	}

	count, err := strconv.Atoi(fields[0])
	if err != nil || count <= 0 {
		return time.Time{}, fmt.Errorf("timeframe %q: count must be a positive integer", raw)
	}

	switch strings.TrimSuffix(fields[1], "s") {
	case "day":
		return now.AddDate(0, 0, -count), nil
	case "month":
		return now.AddDate(0, -count, 0), nil
	case "year":
		return now.AddDate(-count, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("timeframe %q: unit must be days, months or years", raw)
	}
}
