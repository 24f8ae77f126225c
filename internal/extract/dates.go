package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dateRE = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})$`)

// NormalizeDate canonicalizes a loosely formatted date to MM/DD/YYYY.
// Two-digit years are assumed to be this century. Inputs that do not look
// like a date pass through unchanged.
func NormalizeDate(raw string) string {
	m := dateRE.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return strings.TrimSpace(raw)
	}
	month, day, year := m[1], m[2], m[3]
	if len(year) == 2 {
		year = "20" + year
	}
	if len(month) == 1 {
		month = "0" + month
	}
	if len(day) == 1 {
		day = "0" + day
	}
	return fmt.Sprintf("%s/%s/%s", month, day, year)
}

// ParseDate converts a normalized or raw MM/DD/YYYY-ish date to a time.Time.
// Returns the zero time and false when the string is not a parseable date.
func ParseDate(raw string) (time.Time, bool) {
	m := dateRE.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return time.Time{}, false
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if year < 100 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}
