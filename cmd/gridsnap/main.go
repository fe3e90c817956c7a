// Utility to snap coordinates to grid cells. Reads "lat,lon" lines from
// stdin (or files given as arguments) and prints the snapped coordinates,
// one pair per line. Useful for binning track files into heat-map cells.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"tracklog/pkg/gridsnap"
	"tracklog/pkg/model"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("gridsnap", flag.ContinueOnError)
	flags.SetOutput(stderr)
	cellDeg := flags.Float64("cell", 0.01, "Cell size in degrees for fixed-grid snapping")
	h3Res := flags.Int("h3", -1, "H3 resolution (0-15); overrides -cell when set")
	bounds := flags.Bool("bounds", false, "Emit cell extents as minLon,minLat,maxLon,maxLat instead of centers")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if *bounds && *h3Res >= 0 {
		fmt.Fprintln(stderr, "-bounds applies to fixed-grid cells only, not -h3")
		return 2
	}

	readers := []io.Reader{stdin}
	if flags.NArg() > 0 {
		readers = readers[:0]
		for _, path := range flags.Args() {
			f, err := os.Open(path)
			if err != nil {
				fmt.Fprintf(stderr, "Failed to open %s: %v\n", path, err)
				return 1
			}
			defer f.Close()
			readers = append(readers, f)
		}
	}

	lines := 0
	bad := 0
	out := bufio.NewWriter(stdout)
	// Flushed explicitly on every return path; a deferred flush would be
	// skipped if a caller exited the process.
	for _, r := range readers {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			lines++

			p, err := parseLine(line)
			if err != nil {
				bad++
				fmt.Fprintf(stderr, "Line %d: %v\n", lines, err)
				continue
			}
			if err := emit(out, p, *cellDeg, *h3Res, *bounds); err != nil {
				bad++
				fmt.Fprintf(stderr, "Line %d: %v\n", lines, err)
			}
		}
		if err := scanner.Err(); err != nil {
			out.Flush()
			fmt.Fprintf(stderr, "Read failed: %v\n", err)
			return 1
		}
	}

	out.Flush()
	if bad > 0 {
		fmt.Fprintf(stderr, "%d of %d lines skipped\n", bad, lines)
		return 1
	}
	return 0
}

func parseLine(line string) (model.Position, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return model.Position{}, fmt.Errorf("expected lat,lon, got %q", line)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return model.Position{}, fmt.Errorf("bad latitude %q", parts[0])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return model.Position{}, fmt.Errorf("bad longitude %q", parts[1])
	}
	return model.Position{Lat: lat, Lon: lon}, nil
}

func emit(out io.Writer, p model.Position, cellDeg float64, h3Res int, bounds bool) error {
	if bounds {
		b, err := gridsnap.CellBound(p, cellDeg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%.6f,%.6f,%.6f,%.6f\n", b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat())
		return nil
	}
	if h3Res >= 0 {
		snapped, err := gridsnap.SnapH3(p, h3Res)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%.6f,%.6f\n", snapped.Lat, snapped.Lon)
		return nil
	}
	snapped, err := gridsnap.Snap(p, cellDeg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%.6f,%.6f\n", snapped.Lat, snapped.Lon)
	return nil
}
