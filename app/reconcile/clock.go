package reconcile

import (
	"time"
)

// Clock supplies the current time to a synchronization pass.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
