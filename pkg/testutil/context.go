package testutil

import (
	"context"
	"time"

	"teamreg/pkg/requestcontext"
)

// FixedTimeContext returns a context whose request clock is frozen at t.
func FixedTimeContext(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}
