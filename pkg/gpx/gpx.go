package gpx

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"time"

	"tracklog/pkg/model"
)

// Namespace is the GPX 1.1 schema namespace. Files we emit stay readable
// by generic GPS-track tooling.
const Namespace = "http://www.topografix.com/GPX/1/1"

// GPX is the root of a track document: one metadata block, one track,
// one segment.
type GPX struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	XMLNS   string   `xml:"xmlns,attr"`

	Metadata Metadata `xml:"metadata"`
	Tracks   []Track  `xml:"trk"`
}

// Metadata describes the recording session.
type Metadata struct {
	Name        string    `xml:"name,omitempty"`
	Description string    `xml:"desc,omitempty"`
	Time        time.Time `xml:"time"`
}

// Track holds the segments of one recording.
type Track struct {
	Name        string    `xml:"name,omitempty"`
	Description string    `xml:"desc,omitempty"`
	Segments    []Segment `xml:"trkseg"`
}

// Segment is an ordered run of track points.
type Segment struct {
	Points []Point `xml:"trkpt"`
}

// Point is a single logged position.
type Point struct {
	Lat        float64     `xml:"lat,attr"`
	Lon        float64     `xml:"lon,attr"`
	Elevation  *float64    `xml:"ele,omitempty"`
	Time       time.Time   `xml:"time"`
	Extensions *Extensions `xml:"extensions,omitempty"`
}

// Extensions carries the optional course/speed fields some trackers
// (and this one) attach to points.
type Extensions struct {
	Course *float64 `xml:"course,omitempty"` // Degrees true
	Speed  *float64 `xml:"speed,omitempty"`  // Meters per second
}

// Build renders a finalized point sequence into a track document.
// Elevation is emitted only when known, course only when finite, and
// speed only when positive.
func Build(name, description string, created time.Time, points []model.TrackPoint) *GPX {
	seg := Segment{Points: make([]Point, 0, len(points))}
	for _, tp := range points {
		pt := Point{
			Lat:  tp.Lat,
			Lon:  tp.Lon,
			Time: tp.Timestamp.UTC(),
		}
		if tp.HasAltitude() {
			ele := tp.Altitude
			pt.Elevation = &ele
		}
		var ext Extensions
		if tp.HasHeading() && !math.IsInf(tp.Heading, 0) {
			course := tp.Heading
			ext.Course = &course
		}
		if tp.Speed > 0 {
			speed := tp.Speed
			ext.Speed = &speed
		}
		if ext.Course != nil || ext.Speed != nil {
			pt.Extensions = &ext
		}
		seg.Points = append(seg.Points, pt)
	}

	return &GPX{
		Version: "1.1",
		Creator: "tracklog",
		XMLNS:   Namespace,
		Metadata: Metadata{
			Name:        name,
			Description: description,
			Time:        created.UTC(),
		},
		Tracks: []Track{{
			Name:     name,
			Segments: []Segment{seg},
		}},
	}
}

// Encode writes the document as indented XML with the standard header.
func (g *GPX) Encode(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("gpx: write header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(g); err != nil {
		return fmt.Errorf("gpx: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("gpx: close encoder: %w", err)
	}
	// Trailing newline so the file ends cleanly for line-based tools.
	_, err := io.WriteString(w, "\n")
	return err
}

// Decode parses a track document, for recovery tooling and tests.
func Decode(r io.Reader) (*GPX, error) {
	var g GPX
	if err := xml.NewDecoder(r).Decode(&g); err != nil {
		return nil, fmt.Errorf("gpx: decode: %w", err)
	}
	return &g, nil
}
