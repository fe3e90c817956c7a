package sparsify

import (
	"time"

	"tracklog/pkg/geo"
	"tracklog/pkg/model"
)

// Thresholds configures the acceptance heuristics.
type Thresholds struct {
	Distance     float64       // Meters between accepted points
	TurnAngle    float64       // Degrees of heading change
	TurnMinSpeed float64       // Meters per second; turns below this are noise
	MinTime      time.Duration // Elapsed time between accepted points
}

// DefaultThresholds returns the stock tuning: a quarter mile, 35 degrees
// above 8 km/h, and two minutes.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Distance:     402.336, // 0.25 mi
		TurnAngle:    35,
		TurnMinSpeed: 8.0 / 3.6, // 8 km/h
		MinTime:      120 * time.Second,
	}
}

// Memory is the decision baseline: the last accepted position. It is owned
// by exactly one session and must only be updated through its accept path.
type Memory struct {
	last model.Position
	set  bool
}

// Last returns the last accepted position, if any.
func (m *Memory) Last() (model.Position, bool) {
	return m.last, m.set
}

// Update records p as the new baseline.
func (m *Memory) Update(p model.Position) {
	m.last = p
	m.set = true
}

// Reset clears the baseline.
func (m *Memory) Reset() {
	m.last = model.Position{}
	m.set = false
}

// Decision is the outcome of evaluating one candidate.
type Decision struct {
	Accept bool
	Reason model.Reason

	// Evidence, filled when a baseline exists.
	Distance  float64       // Meters from the baseline
	TurnAngle float64       // Degrees, 0 when heading is unknown
	Elapsed   time.Duration // Since the baseline was accepted
}

// Decider applies the sparsification heuristics. It is stateless; the
// caller owns the Memory and must update it on accept before evaluating
// the next candidate.
type Decider struct {
	thr Thresholds
}

// New creates a Decider with the given thresholds.
func New(thr Thresholds) *Decider {
	return &Decider{thr: thr}
}

// Thresholds returns the active tuning.
func (d *Decider) Thresholds() Thresholds {
	return d.thr
}

// Decide evaluates a candidate against the baseline in mem. It never
// mutates mem. Checks run in priority order: first fix, distance, turn,
// elapsed time. The time check stands on its own: a slow drift that never
// crosses the distance threshold still produces a point every MinTime.
func (d *Decider) Decide(mem *Memory, cand model.Position) Decision {
	last, ok := mem.Last()
	if !ok {
		return Decision{Accept: true, Reason: model.ReasonStart}
	}

	dec := Decision{
		Distance: geo.Distance(geo.Point{Lat: last.Lat, Lon: last.Lon}, geo.Point{Lat: cand.Lat, Lon: cand.Lon}),
		Elapsed:  cand.Timestamp.Sub(last.Timestamp),
	}

	if dec.Distance >= d.thr.Distance {
		dec.Accept = true
		dec.Reason = model.ReasonDistance
		return dec
	}

	if cand.Speed > d.thr.TurnMinSpeed && cand.HasHeading() && last.HasHeading() {
		// NaN-safe: HeadingDelta is only consulted when both headings are
		// known, so an unknown heading can never register as a turn.
		delta := geo.HeadingDelta(cand.Heading, last.Heading)
		dec.TurnAngle = delta
		if delta > d.thr.TurnAngle {
			dec.Accept = true
			dec.Reason = model.ReasonTurn
			return dec
		}
	}

	if dec.Elapsed >= d.thr.MinTime {
		dec.Accept = true
		dec.Reason = model.ReasonTime
		return dec
	}

	return dec
}
