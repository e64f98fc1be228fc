package utils

import (
	"time"
)

const dateLayout = "2006-01-02"

func ParseDate(dateStr string) (time.Time, error) {
	return time.Parse(dateLayout, dateStr)
}

func FormatDate(date time.Time) string {
	return date.Format(dateLayout)
}

// NormalizeDate strips the time-of-day component so dates compare and key
// consistently regardless of how the caller built them.
func NormalizeDate(date time.Time) time.Time {
	return date.UTC().Truncate(24 * time.Hour)
}

// DateRange enumerates every calendar day in the closed range [start, end].
func DateRange(start, end time.Time) []time.Time {
	start = NormalizeDate(start)
	end = NormalizeDate(end)

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}
