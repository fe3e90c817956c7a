package geo

import (
	"math"
	"testing"
)

func TestDistanceSymmetry(t *testing.T) {
	pairs := []struct {
		name string
		a, b Point
	}{
		{"Equator", Point{0, 0}, Point{0, 0.01}},
		{"MidLatitude", Point{52.52, 13.405}, Point{48.8566, 2.3522}},
		{"Antimeridian", Point{10, 179.95}, Point{10, -179.95}},
		{"Poles", Point{90, 0}, Point{-90, 0}},
	}

	for _, tt := range pairs {
		t.Run(tt.name, func(t *testing.T) {
			ab := Distance(tt.a, tt.b)
			ba := Distance(tt.b, tt.a)
			if math.Abs(ab-ba) > 1e-9 {
				t.Errorf("Distance not symmetric: %f vs %f", ab, ba)
			}
			if ab < 0 {
				t.Errorf("Distance negative: %f", ab)
			}
		})
	}
}

func TestDistanceIdentity(t *testing.T) {
	points := []Point{{0, 0}, {52.52, 13.405}, {-33.86, 151.2}, {90, 0}}
	for _, p := range points {
		if d := Distance(p, p); d != 0 {
			t.Errorf("Distance(%v, %v) = %f, want 0", p, p, d)
		}
	}
}

func TestDistanceKnownValues(t *testing.T) {
	// One degree of longitude at the equator is ~111.19 km (spherical model).
	d := Distance(Point{0, 0}, Point{0, 1})
	if d < 111100 || d > 111300 {
		t.Errorf("equator degree = %f m, want ~111195", d)
	}

	// 0.01 degrees east at the equator, ~1112 m. Used by the session
	// end-to-end tests as a clearly above-threshold displacement.
	d = Distance(Point{0, 0}, Point{0, 0.01})
	if d < 1100 || d > 1125 {
		t.Errorf("0.01 degree = %f m, want ~1112", d)
	}

	// Across the antimeridian the short way, not the long way around.
	d = Distance(Point{0, 179.95}, Point{0, -179.95})
	if d > 12000 {
		t.Errorf("antimeridian distance = %f m, want ~11120", d)
	}
}

func TestHeadingDelta(t *testing.T) {
	tests := []struct {
		name   string
		h1, h2 float64
		want   float64
	}{
		{"Same", 123.4, 123.4, 0},
		{"WrapNorth", 350, 10, 20},
		{"WrapNorthReversed", 10, 350, 20},
		{"Opposite", 0, 180, 180},
		{"Quarter", 90, 180, 90},
		{"SmallWrap", 359, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HeadingDelta(tt.h1, tt.h2)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("HeadingDelta(%v, %v) = %v, want %v", tt.h1, tt.h2, got, tt.want)
			}
			if got < 0 || got > 180 {
				t.Errorf("HeadingDelta out of range [0,180]: %v", got)
			}
		})
	}
}

func TestHeadingDeltaUnknown(t *testing.T) {
	if !math.IsNaN(HeadingDelta(math.NaN(), 90)) {
		t.Error("HeadingDelta with NaN h1 should be NaN")
	}
	if !math.IsNaN(HeadingDelta(90, math.NaN())) {
		t.Error("HeadingDelta with NaN h2 should be NaN")
	}
	// A NaN delta must never pass a threshold comparison.
	if HeadingDelta(math.NaN(), 90) > 35 {
		t.Error("NaN delta compared true against threshold")
	}
}

func TestNormalizeAngle(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{180, 180},
		{190, -170},
		{-190, 170},
		{540, 180},
		{-360, 0},
	}
	for _, tt := range tests {
		if got := NormalizeAngle(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("NormalizeAngle(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBearing(t *testing.T) {
	// Due east along the equator.
	if b := Bearing(Point{0, 0}, Point{0, 1}); math.Abs(b-90) > 1e-6 {
		t.Errorf("Bearing east = %v, want 90", b)
	}
	// Due north.
	if b := Bearing(Point{0, 0}, Point{1, 0}); math.Abs(b) > 1e-6 {
		t.Errorf("Bearing north = %v, want 0", b)
	}
}
