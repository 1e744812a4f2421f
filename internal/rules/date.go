// internal/rules/date.go
package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/solatis/dossier/internal/types"
)

/*
 * Date matcher.
 *
 * One comparator is built per condition from the shape of its value, then
 * applied to every parsable field value. The comparator's sign decides the
 * operator: ON = 0, BEFORE < 0, AFTER > 0.
 *
 * Value shapes:
 *   - absolute date ("2024-03-01"): compared by calendar day
 *   - ISO-8601 period ("P7D", "PT12H"): "that long ago" from the engine
 *     clock; day granularity unless the period has a time part
 *   - weekday ("monday", "mon"): compared by ISO weekday number
 *   - local time ("14:30", "14:30:15"): compared by time of day at the
 *     value's precision
 *
 * All comparisons happen in the engine's location.
 */

var isoPeriod = regexp.MustCompile(`^P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// dateComparator returns the sign of a field time relative to the target.
type dateComparator func(t time.Time) int

func (e *Engine) matchDate(c *types.DateCondition, values []string) (leafOutcome, error) {
	test, err := dateOperatorTest(c.Operator)
	if err != nil {
		return leafOutcome{}, err
	}
	cmp, err := buildDateComparator(c.Value, e.now().In(e.location), e.location)
	if err != nil {
		return leafOutcome{}, err
	}

	var out leafOutcome
	for _, v := range values {
		t, ok := coerceTime(v, e.location)
		if !ok {
			continue
		}
		if test(cmp(t)) {
			out.match = true
			out.terms = append(out.terms, v)
		}
	}
	return out, nil
}

func dateOperatorTest(op types.DateOperator) (func(sign int) bool, error) {
	switch op {
	case types.OpOn:
		return func(sign int) bool { return sign == 0 }, nil
	case types.OpBefore:
		return func(sign int) bool { return sign < 0 }, nil
	case types.OpAfter:
		return func(sign int) bool { return sign > 0 }, nil
	default:
		return nil, fmt.Errorf("%w: date operator %q", types.ErrNotImplemented, op)
	}
}

// buildDateComparator inspects the shape of value and returns the matching
// comparator.
func buildDateComparator(value string, now time.Time, loc *time.Location) (dateComparator, error) {
	value = strings.TrimSpace(value)

	upper := strings.ToUpper(value)
	if m := isoPeriod.FindStringSubmatch(upper); m != nil && upper != "P" && !strings.HasSuffix(upper, "T") {
		return periodComparator(m, now), nil
	}

	if wd, ok := weekdays[strings.ToLower(value)]; ok {
		target := isoWeekday(wd)
		return func(t time.Time) int {
			return compareInts(isoWeekday(t.In(loc).Weekday()), target)
		}, nil
	}

	if tod, precision, ok := parseTimeOfDay(value); ok {
		return func(t time.Time) int {
			t = t.In(loc)
			field := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
			return compareInts(int(field/precision), int(tod/precision))
		}, nil
	}

	if t, ok := coerceTime(value, loc); ok {
		target := truncateDay(t, loc)
		return func(v time.Time) int {
			return truncateDay(v, loc).Compare(target)
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", types.ErrInvalidDateValue, value)
}

// periodComparator compares against now minus the period.
func periodComparator(m []string, now time.Time) dateComparator {
	n := func(i int) int {
		if m[i] == "" {
			return 0
		}
		v, _ := strconv.Atoi(m[i])
		return v
	}
	years, months, weeks, days := n(1), n(2), n(3), n(4)
	hours, minutes, seconds := n(5), n(6), n(7)

	target := now.AddDate(-years, -months, -(weeks*7 + days))
	hasTime := m[5] != "" || m[6] != "" || m[7] != ""
	if hasTime {
		target = target.Add(-(time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second))
		return func(t time.Time) int { return t.Compare(target) }
	}

	loc := now.Location()
	day := truncateDay(target, loc)
	return func(t time.Time) int { return truncateDay(t, loc).Compare(day) }
}

// parseTimeOfDay parses "HH:MM" or "HH:MM:SS" and returns the offset from
// midnight with the precision the value was written in.
func parseTimeOfDay(value string) (time.Duration, time.Duration, bool) {
	for _, f := range []struct {
		layout    string
		precision time.Duration
	}{
		{"15:04:05", time.Second},
		{"15:04", time.Minute},
	} {
		t, err := time.Parse(f.layout, value)
		if err != nil {
			continue
		}
		tod := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
		return tod, f.precision, true
	}
	return 0, 0, false
}

func truncateDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// isoWeekday numbers Monday as 1 and Sunday as 7.
func isoWeekday(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
