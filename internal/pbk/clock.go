package pbk

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies the time that names backup directories, snapshots and
// history entries.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Stamp formats the current time of c with TimestampLayout.
func Stamp(c Clock) string {
	return c.Now().Format(TimestampLayout)
}

// IDGenerator assigns the IDs under which backup runs are recorded.
type IDGenerator interface {
	New() string
}

// UUIDGenerator assigns random UUIDs to runs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
