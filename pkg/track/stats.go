package track

import (
	"sync/atomic"

	"tracklog/pkg/model"
)

// counters holds per-reason accept counts plus rejects.
// Fields are accessed atomically so Stats never blocks Submit.
type counters struct {
	start    atomic.Int64
	distance atomic.Int64
	turn     atomic.Int64
	elapsed  atomic.Int64
	rejected atomic.Int64
}

func (c *counters) accepted(r model.Reason) {
	switch r {
	case model.ReasonStart:
		c.start.Add(1)
	case model.ReasonDistance:
		c.distance.Add(1)
	case model.ReasonTurn:
		c.turn.Add(1)
	case model.ReasonTime:
		c.elapsed.Add(1)
	}
}

// Stats is a snapshot of the session counters.
type Stats struct {
	Start    int64
	Distance int64
	Turn     int64
	Time     int64
	Rejected int64
}

// Accepted returns the total number of logged points.
func (s Stats) Accepted() int64 {
	return s.Start + s.Distance + s.Turn + s.Time
}

func (c *counters) snapshot() Stats {
	return Stats{
		Start:    c.start.Load(),
		Distance: c.distance.Load(),
		Turn:     c.turn.Load(),
		Time:     c.elapsed.Load(),
		Rejected: c.rejected.Load(),
	}
}
