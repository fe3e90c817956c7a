package model

import (
	"math"
	"time"
)

// Unknown marks an optional float field (heading, altitude) as absent.
// NaN never compares true against a threshold, so an unknown heading can
// never satisfy a turn check by accident.
var Unknown = math.NaN()

// Position represents a single GPS fix.
type Position struct {
	Lat       float64   // Degrees, WGS84
	Lon       float64   // Degrees, WGS84
	Altitude  float64   // Meters MSL, Unknown if not reported
	Heading   float64   // Degrees true [0, 360), Unknown if not reported
	Speed     float64   // Meters per second, >= 0
	Accuracy  float64   // Horizontal accuracy in meters, 0 if not reported
	Timestamp time.Time // Fix time
}

// HasHeading reports whether the fix carries a usable heading.
func (p Position) HasHeading() bool {
	return !math.IsNaN(p.Heading)
}

// HasAltitude reports whether the fix carries a usable altitude.
func (p Position) HasAltitude() bool {
	return !math.IsNaN(p.Altitude)
}

// SpeedKmh returns the speed over ground in km/h.
func (p Position) SpeedKmh() float64 {
	return p.Speed * 3.6
}

// Reason identifies why the decision engine kept a candidate.
type Reason int

const (
	ReasonStart Reason = iota
	ReasonDistance
	ReasonTurn
	ReasonTime
)

func (r Reason) String() string {
	switch r {
	case ReasonStart:
		return "start"
	case ReasonDistance:
		return "distance"
	case ReasonTurn:
		return "turn"
	case ReasonTime:
		return "time"
	}
	return "unknown"
}

// TrackPoint is an accepted position together with the evidence that
// caused its acceptance. Append-only once created.
type TrackPoint struct {
	Position

	Reason     Reason
	AcceptedAt time.Time

	// Evidence relative to the previously accepted point. Zero for the
	// start point.
	Distance  float64       // Meters
	TurnAngle float64       // Degrees
	Elapsed   time.Duration // Since previous acceptance
}
