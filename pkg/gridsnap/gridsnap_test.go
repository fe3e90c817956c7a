package gridsnap

import (
	"errors"
	"math"
	"testing"
	"time"

	"tracklog/pkg/model"
)

func TestSnapCenters(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		size     float64
		wantLat  float64
		wantLon  float64
	}{
		{"Origin", 0.001, 0.001, 0.01, 0.005, 0.005},
		{"Negative", -0.001, -0.001, 0.01, -0.005, -0.005},
		{"CellEdge", 0.01, 0.02, 0.01, 0.015, 0.025},
		{"Coarse", 52.52, 13.405, 1.0, 52.5, 13.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Snap(model.Position{Lat: tt.lat, Lon: tt.lon}, tt.size)
			if err != nil {
				t.Fatalf("Snap returned error: %v", err)
			}
			if math.Abs(got.Lat-tt.wantLat) > 1e-9 || math.Abs(got.Lon-tt.wantLon) > 1e-9 {
				t.Errorf("Snap = (%v, %v), want (%v, %v)", got.Lat, got.Lon, tt.wantLat, tt.wantLon)
			}
		})
	}
}

func TestSnapIdempotent(t *testing.T) {
	positions := []model.Position{
		{Lat: 0.0033, Lon: 0.0071},
		{Lat: -45.1234, Lon: 170.9876},
		{Lat: 89.9999, Lon: -179.9999},
	}
	const size = 0.01

	for _, p := range positions {
		once, err := Snap(p, size)
		if err != nil {
			t.Fatalf("Snap: %v", err)
		}
		twice, err := Snap(once, size)
		if err != nil {
			t.Fatalf("Snap (second): %v", err)
		}
		if once.Lat != twice.Lat || once.Lon != twice.Lon {
			t.Errorf("Snap not idempotent: (%v,%v) vs (%v,%v)", once.Lat, once.Lon, twice.Lat, twice.Lon)
		}
	}
}

func TestSnapPreservesFields(t *testing.T) {
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	p := model.Position{
		Lat: 52.5, Lon: 13.4,
		Altitude: 35.0, Heading: 278.5, Speed: 4.2, Accuracy: 8,
		Timestamp: ts,
	}
	got, err := Snap(p, 0.05)
	if err != nil {
		t.Fatalf("Snap: %v", err)
	}
	if got.Altitude != p.Altitude || got.Heading != p.Heading || got.Speed != p.Speed ||
		got.Accuracy != p.Accuracy || !got.Timestamp.Equal(ts) {
		t.Errorf("Snap mutated non-positional fields: %+v", got)
	}
}

func TestSnapInvalidCellSize(t *testing.T) {
	for _, size := range []float64{0, -0.01} {
		if _, err := Snap(model.Position{Lat: 1, Lon: 1}, size); !errors.Is(err, ErrInvalidCellSize) {
			t.Errorf("Snap(size=%v) error = %v, want ErrInvalidCellSize", size, err)
		}
		if _, err := CellBound(model.Position{Lat: 1, Lon: 1}, size); !errors.Is(err, ErrInvalidCellSize) {
			t.Errorf("CellBound(size=%v) error = %v, want ErrInvalidCellSize", size, err)
		}
	}
}

func TestCellBoundContainsSnapped(t *testing.T) {
	p := model.Position{Lat: 52.5213, Lon: 13.4051}
	const size = 0.01

	snapped, err := Snap(p, size)
	if err != nil {
		t.Fatalf("Snap: %v", err)
	}
	bound, err := CellBound(p, size)
	if err != nil {
		t.Fatalf("CellBound: %v", err)
	}

	if snapped.Lon < bound.Min[0] || snapped.Lon > bound.Max[0] ||
		snapped.Lat < bound.Min[1] || snapped.Lat > bound.Max[1] {
		t.Errorf("snapped center (%v, %v) outside bound %v", snapped.Lon, snapped.Lat, bound)
	}
}

func TestSnapH3(t *testing.T) {
	p := model.Position{Lat: 52.5213, Lon: 13.4051, Speed: 3}

	got, err := SnapH3(p, 8)
	if err != nil {
		t.Fatalf("SnapH3: %v", err)
	}
	// Cell center must be close to the input at res 8 (~460m edge).
	if math.Abs(got.Lat-p.Lat) > 0.02 || math.Abs(got.Lon-p.Lon) > 0.02 {
		t.Errorf("SnapH3 moved too far: (%v, %v)", got.Lat, got.Lon)
	}
	if got.Speed != p.Speed {
		t.Error("SnapH3 mutated non-positional fields")
	}

	// Idempotent: the center of a cell snaps to itself.
	twice, err := SnapH3(got, 8)
	if err != nil {
		t.Fatalf("SnapH3 (second): %v", err)
	}
	if math.Abs(twice.Lat-got.Lat) > 1e-9 || math.Abs(twice.Lon-got.Lon) > 1e-9 {
		t.Errorf("SnapH3 not idempotent: (%v,%v) vs (%v,%v)", got.Lat, got.Lon, twice.Lat, twice.Lon)
	}
}

func TestSnapH3InvalidResolution(t *testing.T) {
	if _, err := SnapH3(model.Position{Lat: 1, Lon: 1}, 99); err == nil {
		t.Error("SnapH3 with invalid resolution should fail")
	}
}
