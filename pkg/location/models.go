package location

import "time"

// Location is a single fix as produced by a location source.
type Location struct {
	Latitude         float64 // Decimal degrees
	Longitude        float64 // Decimal degrees
	Altitude         float64 // Meters above mean sea level
	Accuracy         float32 // Horizontal accuracy radius in meters
	VerticalAccuracy float32 // Vertical accuracy in meters, 0 if unknown
	Speed            float32 // Ground speed in meters per second
	Time             int64   // Milliseconds since the Unix epoch
	Provider         string  // Name of the source that produced the fix
}

// Priority hints how much power the provider may spend on a fix.
type Priority int

const (
	PriorityHighAccuracy Priority = iota
	PriorityBalancedPowerAccuracy
	PriorityLowPower
)

// Request describes a periodic location subscription.
type Request struct {
	Interval    time.Duration
	MaxWaitTime time.Duration
	Priority    Priority
}

// Result is a batch of fixes delivered to a Callback, oldest first.
type Result struct {
	Locations []Location
}

// LastLocation returns the most recent fix in the batch, or nil if empty.
func (r Result) LastLocation() *Location {
	if len(r.Locations) == 0 {
		return nil
	}
	loc := r.Locations[len(r.Locations)-1]
	return &loc
}
