// Package schedule turns raw remote schedule records into a coherent
// per-waste-type calendar and computes derived facts from it.
package schedule

import (
	"log"
	"strconv"
	"strings"
	"time"
)

// DayDelimiter separates day-of-month tokens in the remote "days" field.
const DayDelimiter = ";"

// ParseDays converts a delimited day-of-month list into concrete dates in
// the given month and year. Invalid tokens (non-numeric, or out of range
// for that month) are logged and skipped; they never abort the rest of
// the list. An empty list yields no dates.
func ParseDays(days string, month, year int) []time.Time {
	if strings.TrimSpace(days) == "" {
		return nil
	}
	if month < 1 || month > 12 {
		log.Printf("Warning: skipping day list %q: month %d out of range", days, month)
		return nil
	}

	max := daysInMonth(month, year)
	var dates []time.Time
	for _, token := range strings.Split(days, DayDelimiter) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		day, err := strconv.Atoi(token)
		if err != nil {
			log.Printf("Warning: skipping malformed day token %q for %d/%d", token, month, year)
			continue
		}
		if day < 1 || day > max {
			log.Printf("Warning: skipping out-of-range day %d for %d/%d", day, month, year)
			continue
		}
		dates = append(dates, Day(year, month, day))
	}
	return dates
}

// Day builds a calendar date at midnight UTC. All schedule dates are
// normalized this way so they compare and subtract without time-of-day
// or DST effects.
func Day(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// ToDay truncates an arbitrary timestamp to its calendar date, keeping
// the year/month/day as observed in t's own location.
func ToDay(t time.Time) time.Time {
	return Day(t.Year(), int(t.Month()), t.Day())
}

func daysInMonth(month, year int) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
