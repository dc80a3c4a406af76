// Package schedule computes future occurrences of cron expressions.
// It is pure: no I/O, deterministic for a given start time.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts the standard five cron fields: minute, hour,
// day-of-month, month, day-of-week.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate reports whether expr is a parseable cron expression.
func Validate(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// Upcoming returns up to n instants matching expr, each strictly after
// start, in ascending order. The result is shorter than n only when the
// expression has no further matches (robfig signals exhaustion with the
// zero time).
func Upcoming(start time.Time, n int, expr string) ([]time.Time, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	out := make([]time.Time, 0, n)
	next := start
	for i := 0; i < n; i++ {
		next = sched.Next(next)
		if next.IsZero() {
			break
		}
		out = append(out, next)
	}
	return out, nil
}
