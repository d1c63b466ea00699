package timeutil

import (
	"fmt"
	"time"
)

// InZone returns t on the wall clock of the named tz database zone. An empty
// name or "Local" keeps the host zone.
func InZone(t time.Time, name string) (time.Time, error) {
	switch name {
	case "", "Local":
		return t.Local(), nil
	case "UTC":
		return t.UTC(), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return t, fmt.Errorf("failed to load timezone %s: %w", name, err)
	}
	return t.In(loc), nil
}
