// internal/rules/coercion.go
package rules

import (
	"strconv"
	"strings"
	"time"
)

/*
 * Value coercion for leaf matchers.
 *
 * Field values are strings. Number and date matchers coerce them and skip
 * values that do not coerce: a field holding "abc" is simply not a number,
 * never an evaluation error.
 *
 *   - integer: whitespace trimmed, base 10, optional sign; decimals rejected
 *   - date/time: tried against dateLayouts in order, first layout wins
 */

// coerceInteger parses a field value as a base-10 int64.
// Empty and whitespace-only strings are not numbers.
func coerceInteger(value string) (int64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// dateLayouts are the timestamp formats accepted for date field values.
// Zoneless layouts are interpreted in the engine's location.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
}

// coerceTime parses a field value as a timestamp.
func coerceTime(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}
