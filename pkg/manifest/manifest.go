// Package manifest reads train manifests.
//
// A manifest has one train per line:
//
//	<code> <loadTime> <crossTime>
//
// where code is e (East, Normal), E (East, High), w (West, Normal) or
// W (West, High), and both times are non-negative integers in tenths of
// a second. Trains are numbered from 0 in file order. Blank lines are
// skipped.
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/anggasct/mts"
)

// ParseError reports a malformed manifest line
type ParseError struct {
	// Line is 1-based.
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("manifest line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// Parse reads every train of a manifest. No trains are returned if any
// line is malformed.
func Parse(r io.Reader) ([]mts.TrainSpec, error) {
	var specs []mts.TrainSpec
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		spec, err := parseLine(line)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: err.Error()}
		}
		specs = append(specs, spec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return specs, nil
}

// ParseFile opens and parses the manifest at path
func ParseFile(path string) ([]mts.TrainSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func parseLine(line string) (mts.TrainSpec, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return mts.TrainSpec{}, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}
	d, p, err := ParseCode(fields[0])
	if err != nil {
		return mts.TrainSpec{}, err
	}
	load, err := parseTenths("load time", fields[1])
	if err != nil {
		return mts.TrainSpec{}, err
	}
	cross, err := parseTenths("cross time", fields[2])
	if err != nil {
		return mts.TrainSpec{}, err
	}
	return mts.TrainSpec{
		Direction: d,
		Priority:  p,
		LoadTime:  mts.Tenths(load),
		CrossTime: mts.Tenths(cross),
	}, nil
}

// ParseCode decodes a direction/priority code
func ParseCode(code string) (mts.Direction, mts.Priority, error) {
	switch code {
	case "e":
		return mts.East, mts.Normal, nil
	case "E":
		return mts.East, mts.High, nil
	case "w":
		return mts.West, mts.Normal, nil
	case "W":
		return mts.West, mts.High, nil
	}
	return mts.NoDirection, mts.Normal, fmt.Errorf("unknown train code %q", code)
}

// Code encodes a direction and priority, the inverse of ParseCode
func Code(d mts.Direction, p mts.Priority) string {
	code := "e"
	if d == mts.West {
		code = "w"
	}
	if p == mts.High {
		code = strings.ToUpper(code)
	}
	return code
}

// maxTenths is the largest time that still fits a time.Duration
const maxTenths = math.MaxInt64 / int64(mts.Tenth)

func parseTenths(name, field string) (int, error) {
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not an integer", name, field)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s %d is negative", name, n)
	}
	if int64(n) > maxTenths {
		return 0, fmt.Errorf("%s %d is too large", name, n)
	}
	return n, nil
}
