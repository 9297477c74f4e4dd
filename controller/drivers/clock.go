package drivers

import "time"

// Instant is a wall-clock reading from an already-synchronized time source.
// Epoch is shifted by the configured timezone offset, so calendar math on it
// is done in UTC. Weekday is Monday-indexed (0=Mon .. 6=Sun).
type Instant struct {
	Epoch   uint32
	Weekday int
	Hour    int
	Minute  int
}

// Clock is the time source consumed by the dosing engine.
type Clock interface {
	Now() Instant
}

type wallClock struct {
	offset func() int32 // timezone offset in seconds
}

// NewClock returns a clock that applies the offset returned by the given
// function to every reading. The offset is read per call so timezone changes
// take effect immediately.
func NewClock(offset func() int32) Clock {
	return &wallClock{offset: offset}
}

func (c *wallClock) Now() Instant {
	t := time.Now().UTC().Add(time.Duration(c.offset()) * time.Second)
	return InstantFromTime(t)
}

// InstantFromTime converts an already-shifted time into an Instant.
func InstantFromTime(t time.Time) Instant {
	return Instant{
		Epoch:   uint32(t.Unix()),
		Weekday: (int(t.Weekday()) + 6) % 7,
		Hour:    t.Hour(),
		Minute:  t.Minute(),
	}
}
