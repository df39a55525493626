// Package schedule evaluates recurring task schedules as pure functions of
// clock values, with no I/O.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts five-field cron expressions (minute hour dom month dow)
// plus descriptors such as "@hourly" and "@every 5m".
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Spec is a parsed recurring schedule.
type Spec struct {
	raw   string
	sched cron.Schedule
}

// Parse validates and compiles a schedule expression.
func Parse(raw string) (Spec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Spec{}, fmt.Errorf("schedule is empty")
	}
	sched, err := parser.Parse(raw)
	if err != nil {
		return Spec{}, fmt.Errorf("parse schedule %q: %w", raw, err)
	}
	return Spec{raw: raw, sched: sched}, nil
}

// Validate reports whether raw is an accepted schedule expression.
func Validate(raw string) error {
	_, err := Parse(raw)
	return err
}

func (s Spec) String() string { return s.raw }

// NextRun computes when the schedule fires next, anchored at the most
// recent execution attempt, or at the task's creation time if it has never
// run.
func (s Spec) NextRun(lastRun *time.Time, createdAt time.Time) time.Time {
	anchor := createdAt
	if lastRun != nil && lastRun.After(anchor) {
		anchor = *lastRun
	}
	return s.sched.Next(anchor)
}

// Due reports whether the schedule should fire at now. The boundary is
// inclusive: a next run equal to now is due.
func (s Spec) Due(lastRun *time.Time, createdAt, now time.Time) bool {
	return !s.NextRun(lastRun, createdAt).After(now)
}
