// Package core provides the admission clock abstraction.
package core

import "time"

// Clock supplies the current time for admission decisions.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
