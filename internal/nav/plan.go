package nav

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrEmptyPlan is returned when the plan source contains no data rows.
var ErrEmptyPlan = errors.New("plan contains no waypoints")

// MalformedRowError is returned when a required field of a plan row does not
// parse as a floating-point number. Row is the CSV line number, counting the
// header as line 1.
type MalformedRowError struct {
	Row int
	Err error
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed plan row %d: %v", e.Row, e.Err)
}

func (e *MalformedRowError) Unwrap() error { return e.Err }

// ExcessiveLegError is returned when the displacement between consecutive
// waypoints exceeds the platform's maximum commandable distance. Index is
// the waypoint at the far end of the offending leg.
type ExcessiveLegError struct {
	Index    int
	Distance float64
	Limit    float64
}

func (e *ExcessiveLegError) Error() string {
	return fmt.Sprintf("leg to waypoint %d is %.2fm, above the %.2fm limit", e.Index, e.Distance, e.Limit)
}

// Plan is an ordered, validated sequence of waypoints. It is read-only after
// a successful load.
type Plan []Waypoint

// Length returns the total flown path length in meters, starting from the
// NED origin the vehicle holds at mission start.
func (p Plan) Length() float64 {
	var total float64
	prev := PositionNED{}
	for _, wp := range p {
		total += prev.Distance(wp.Position)
		prev = wp.Position
	}
	return total
}

// LoadPlan reads a waypoint plan from CSV. The first row is a header and is
// discarded; every remaining row must carry at least three fields parseable
// as float64 (north, east, down in meters), extra fields are ignored. Any
// malformed row or any consecutive displacement above maxLeg rejects the
// whole plan: a mission is either fully flyable up front or not loaded at
// all. The first leg is measured from the NED origin, where the vehicle
// holds position before the mission starts.
func LoadPlan(r io.Reader, maxLeg float64) (Plan, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // rows may carry trailing extra fields

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyPlan
		}
		return nil, fmt.Errorf("reading plan header: %w", err)
	}

	var plan Plan
	prev := PositionNED{}
	line := 1 // header
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, &MalformedRowError{Row: line, Err: err}
		}

		if len(record) < 3 {
			return nil, &MalformedRowError{Row: line, Err: fmt.Errorf("expected at least 3 fields, got %d", len(record))}
		}

		var pos PositionNED
		for i, dst := range []*float64{&pos.North, &pos.East, &pos.Down} {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
			if err != nil {
				return nil, &MalformedRowError{Row: line, Err: err}
			}
			*dst = v
		}

		index := len(plan)
		if dist := prev.Distance(pos); dist > maxLeg {
			return nil, &ExcessiveLegError{Index: index, Distance: dist, Limit: maxLeg}
		}

		plan = append(plan, Waypoint{Index: index, Row: line, Position: pos})
		prev = pos
	}

	if len(plan) == 0 {
		return nil, ErrEmptyPlan
	}
	return plan, nil
}

// LoadPlanFile loads a waypoint plan from a CSV file on disk.
func LoadPlanFile(path string, maxLeg float64) (Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening plan: %w", err)
	}
	defer f.Close()

	plan, err := LoadPlan(f, maxLeg)
	if err != nil {
		return nil, fmt.Errorf("loading plan %s: %w", path, err)
	}
	return plan, nil
}
