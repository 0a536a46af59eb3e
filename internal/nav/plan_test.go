package nav

import (
	"errors"
	"strings"
	"testing"
)

const validPlan = `N,E,D
0,0,-5
5,0,-5
5,5,-5
`

func TestLoadPlanValid(t *testing.T) {
	plan, err := LoadPlan(strings.NewReader(validPlan), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan) != 3 {
		t.Fatalf("expected 3 waypoints, got %d", len(plan))
	}

	want := []PositionNED{
		{North: 0, East: 0, Down: -5},
		{North: 5, East: 0, Down: -5},
		{North: 5, East: 5, Down: -5},
	}
	for i, wp := range plan {
		if wp.Index != i {
			t.Errorf("waypoint %d: expected index %d, got %d", i, i, wp.Index)
		}
		if wp.Position != want[i] {
			t.Errorf("waypoint %d: expected %+v, got %+v", i, want[i], wp.Position)
		}
	}
}

func TestLoadPlanIdempotent(t *testing.T) {
	first, err := LoadPlan(strings.NewReader(validPlan), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := LoadPlan(strings.NewReader(validPlan), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("expected identical plans, got lengths %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("waypoint %d differs between loads: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestLoadPlanExtraFieldsIgnored(t *testing.T) {
	src := "N,E,D,comment\n1,2,-3,hover here,extra\n"
	plan, err := LoadPlan(strings.NewReader(src), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := (PositionNED{North: 1, East: 2, Down: -3}); plan[0].Position != want {
		t.Errorf("expected %+v, got %+v", want, plan[0].Position)
	}
}

func TestLoadPlanMalformedRow(t *testing.T) {
	src := "N,E,D\nnot,a,number\n5,0,-5\n"
	_, err := LoadPlan(strings.NewReader(src), 50)

	var malformed *MalformedRowError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedRowError, got %v", err)
	}
	if malformed.Row != 2 {
		t.Errorf("expected failure at row 2, got %d", malformed.Row)
	}
}

func TestLoadPlanTooFewFields(t *testing.T) {
	src := "N,E,D\n1,2\n"
	var malformed *MalformedRowError
	if _, err := LoadPlan(strings.NewReader(src), 50); !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedRowError, got %v", err)
	}
}

func TestLoadPlanEmpty(t *testing.T) {
	for _, src := range []string{"", "N,E,D\n"} {
		if _, err := LoadPlan(strings.NewReader(src), 50); !errors.Is(err, ErrEmptyPlan) {
			t.Errorf("source %q: expected ErrEmptyPlan, got %v", src, err)
		}
	}
}

func TestLoadPlanExcessiveLeg(t *testing.T) {
	// The leg from waypoint 1 to 2 is 100m; every other row is valid.
	src := "N,E,D\n1,0,0\n2,0,0\n102,0,0\n103,0,0\n"
	_, err := LoadPlan(strings.NewReader(src), 50)

	var excessive *ExcessiveLegError
	if !errors.As(err, &excessive) {
		t.Fatalf("expected ExcessiveLegError, got %v", err)
	}
	if excessive.Index != 2 {
		t.Errorf("expected offending waypoint 2, got %d", excessive.Index)
	}
	if excessive.Distance != 100 {
		t.Errorf("expected distance 100, got %v", excessive.Distance)
	}
}

func TestLoadPlanExcessiveFirstLeg(t *testing.T) {
	// The first leg is measured from the origin the vehicle starts at.
	src := "N,E,D\n60,0,0\n"
	var excessive *ExcessiveLegError
	if _, err := LoadPlan(strings.NewReader(src), 50); !errors.As(err, &excessive) {
		t.Fatalf("expected ExcessiveLegError, got %v", err)
	}
}

func TestLoadPlanDisplacementInvariant(t *testing.T) {
	const maxLeg = 50.0
	plan, err := LoadPlan(strings.NewReader(validPlan), maxLeg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prev := PositionNED{}
	for _, wp := range plan {
		if d := prev.Distance(wp.Position); d > maxLeg {
			t.Errorf("leg to waypoint %d is %v, above %v", wp.Index, d, maxLeg)
		}
		prev = wp.Position
	}
}
