package clock

import "time"

// Clock abstracts time.Now so sync-window and lifecycle logic is testable.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
