package utils

import "time"

// Time is the process time source. It remembers when cosmos started.
type Time struct {
	start time.Time
	now   func() time.Time
}

func NewTime() *Time {
	return NewTimeFunc(time.Now)
}

// NewTimeFunc builds a Time around a custom clock, mainly for tests.
func NewTimeFunc(now func() time.Time) *Time {
	return &Time{start: now(), now: now}
}

func (t *Time) Now() time.Time {
	return t.now()
}

func (t *Time) Started() time.Time {
	return t.start
}

func (t *Time) Uptime() time.Duration {
	return t.now().Sub(t.start)
}

// Measure runs fn and returns how long it took along with its error.
func (t *Time) Measure(fn func() error) (time.Duration, error) {
	begin := t.now()
	err := fn()
	return t.now().Sub(begin), err
}
