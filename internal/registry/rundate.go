package registry

import (
	"fmt"
	"time"
)

const runDateLayout = "2006_01_02"

// RunDate scopes one execution's intermediate and final artifacts. It is
// fixed once at startup and passed through every stage so partials and
// the final dataset always agree on their run.
type RunDate struct {
	t time.Time
}

// NewRunDate truncates t to its calendar day.
func NewRunDate(t time.Time) RunDate {
	year, month, day := t.Date()
	return RunDate{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseRunDate parses the underscore-separated form used in filenames.
func ParseRunDate(s string) (RunDate, error) {
	t, err := time.Parse(runDateLayout, s)
	if err != nil {
		return RunDate{}, fmt.Errorf("parse run date %q: %w", s, err)
	}
	return NewRunDate(t), nil
}

// String renders the filename form, e.g. 2026_08_29.
func (d RunDate) String() string {
	return d.t.Format(runDateLayout)
}

// IsZero reports whether the date was never set.
func (d RunDate) IsZero() bool {
	return d.t.IsZero()
}
