package gpx

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"tracklog/pkg/model"
)

func TestBuildShape(t *testing.T) {
	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	points := []model.TrackPoint{
		{
			Position: model.Position{Lat: 0, Lon: 0, Altitude: model.Unknown, Heading: 90, Speed: 5, Timestamp: created},
			Reason:   model.ReasonStart,
		},
		{
			Position: model.Position{Lat: 0, Lon: 0.01, Altitude: 12.5, Heading: model.Unknown, Speed: 0, Timestamp: created.Add(10 * time.Second)},
			Reason:   model.ReasonDistance,
		},
	}

	doc := Build("Morning ride", "recorded by tracklog", created, points)

	if len(doc.Tracks) != 1 {
		t.Fatalf("want exactly 1 track, got %d", len(doc.Tracks))
	}
	if len(doc.Tracks[0].Segments) != 1 {
		t.Fatalf("want exactly 1 segment, got %d", len(doc.Tracks[0].Segments))
	}
	if got := len(doc.Tracks[0].Segments[0].Points); got != 2 {
		t.Fatalf("want 2 points, got %d", got)
	}

	p0 := doc.Tracks[0].Segments[0].Points[0]
	if p0.Elevation != nil {
		t.Error("unknown altitude must not be emitted")
	}
	if p0.Extensions == nil || p0.Extensions.Course == nil || *p0.Extensions.Course != 90 {
		t.Error("known heading must be emitted as course")
	}
	if p0.Extensions.Speed == nil || *p0.Extensions.Speed != 5 {
		t.Error("positive speed must be emitted")
	}

	p1 := doc.Tracks[0].Segments[0].Points[1]
	if p1.Elevation == nil || *p1.Elevation != 12.5 {
		t.Error("known altitude must be emitted as ele")
	}
	if p1.Extensions != nil {
		t.Error("unknown heading and zero speed must produce no extensions block")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	points := []model.TrackPoint{
		{Position: model.Position{Lat: 52.52, Lon: 13.405, Altitude: 35, Heading: 278.5, Speed: 4.2, Timestamp: created}},
		{Position: model.Position{Lat: 52.53, Lon: 13.41, Altitude: model.Unknown, Heading: model.Unknown, Speed: 0, Timestamp: created.Add(time.Minute)}},
	}
	doc := Build("track_2025-06-01T10-00-00Z", "", created, points)

	var buf bytes.Buffer
	if err := doc.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out := buf.String()

	if !strings.HasPrefix(out, "<?xml") {
		t.Error("missing XML header")
	}
	for _, want := range []string{
		`xmlns="http://www.topografix.com/GPX/1/1"`,
		`creator="tracklog"`,
		`lat="52.52"`,
		`<course>278.5</course>`,
		`<speed>4.2</speed>`,
		`<ele>35</ele>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}

	parsed, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(parsed.Tracks) != 1 || len(parsed.Tracks[0].Segments) != 1 {
		t.Fatal("round trip lost track/segment structure")
	}
	got := parsed.Tracks[0].Segments[0].Points
	if len(got) != 2 {
		t.Fatalf("round trip lost points: %d", len(got))
	}
	if !got[0].Time.Equal(created) {
		t.Errorf("point time = %v, want %v", got[0].Time, created)
	}
	if got[1].Extensions != nil {
		t.Error("second point should have no extensions after round trip")
	}
}

func TestBuildEmpty(t *testing.T) {
	doc := Build("empty", "", time.Now(), nil)
	if got := len(doc.Tracks[0].Segments[0].Points); got != 0 {
		t.Errorf("want 0 points, got %d", got)
	}
}
