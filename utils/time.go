// Package utils holds small helpers shared by the stages.
package utils

import "time"

// TimeProvider supplies the current instant. Fetchers take one so the end of
// the requested history can be pinned in tests.
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider reads the system clock.
type RealTimeProvider struct{}

func (RealTimeProvider) Now() time.Time {
	return time.Now()
}

// FixedTimeProvider always returns Time.
type FixedTimeProvider struct {
	Time time.Time
}

func (p FixedTimeProvider) Now() time.Time {
	return p.Time
}
