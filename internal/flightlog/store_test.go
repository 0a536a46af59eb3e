package flightlog

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rollpitchyall/printinflight/internal/nav"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	s := New(filepath.Join(t.TempDir(), "flight.sqlite"))
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing store: %v", err)
		}
	})
	return s
}

func TestStoreMissionRoundTrip(t *testing.T) {
	s := testStore(t)

	id, err := s.CreateMission("coordinates.csv", map[string]any{"threshold": 0.15})
	if err != nil {
		t.Fatalf("creating mission: %v", err)
	}

	plan := nav.Plan{
		{Index: 0, Row: 2, Position: nav.PositionNED{North: 1, East: 2, Down: -3}},
		{Index: 1, Row: 3, Position: nav.PositionNED{North: 4, East: 5, Down: -6}},
	}
	if err := s.InsertWaypoints(id, plan); err != nil {
		t.Fatalf("inserting waypoints: %v", err)
	}

	mission, err := s.Mission(id)
	if err != nil {
		t.Fatalf("reading mission: %v", err)
	}
	if mission.PlanPath != "coordinates.csv" {
		t.Errorf("expected plan path round trip, got %q", mission.PlanPath)
	}
	if !mission.Config.Valid {
		t.Error("expected config to be stored")
	}

	got, err := s.Waypoints(id)
	if err != nil {
		t.Fatalf("reading waypoints: %v", err)
	}
	if len(got) != len(plan) {
		t.Fatalf("expected %d waypoints, got %d", len(plan), len(got))
	}
	for i := range plan {
		if got[i] != plan[i] {
			t.Errorf("waypoint %d: expected %+v, got %+v", i, plan[i], got[i])
		}
	}
}

func TestStoreEventsAndTrack(t *testing.T) {
	s := testStore(t)

	id, err := s.CreateMission("coordinates.csv", nil)
	if err != nil {
		t.Fatalf("creating mission: %v", err)
	}

	idx := 1
	base := time.Now()
	if err := s.RecordEvent(id, base, "ACTIVE", &idx, "reached waypoint 1 of 3"); err != nil {
		t.Fatalf("recording event: %v", err)
	}
	if err := s.RecordEvent(id, base.Add(time.Second), "ABORTED", nil, "battery critical"); err != nil {
		t.Fatalf("recording event: %v", err)
	}

	events, err := s.Events(id)
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Phase != "ACTIVE" || !events[0].WaypointIdx.Valid || events[0].WaypointIdx.Int64 != 1 {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].Phase != "ABORTED" || events[1].WaypointIdx.Valid {
		t.Errorf("unexpected second event: %+v", events[1])
	}

	points := []TrackPoint{
		{MissionID: id, Timestamp: base, North: 0.5, East: 0, Down: -2,
			Battery: sql.NullFloat64{Float64: 0.9, Valid: true}, FlightMode: sql.NullString{String: "OFFBOARD", Valid: true}},
		{MissionID: id, Timestamp: base.Add(200 * time.Millisecond), North: 1.0, East: 0.1, Down: -2},
	}
	if err := s.BatchInsertTrack(points); err != nil {
		t.Fatalf("inserting track: %v", err)
	}

	track, err := s.Track(id)
	if err != nil {
		t.Fatalf("reading track: %v", err)
	}
	if len(track) != 2 {
		t.Fatalf("expected 2 track points, got %d", len(track))
	}
	if track[0].North != 0.5 || !track[0].Battery.Valid {
		t.Errorf("unexpected first track point: %+v", track[0])
	}
	if track[1].Battery.Valid || track[1].FlightMode.Valid {
		t.Errorf("expected null battery/mode on second point: %+v", track[1])
	}
}

func TestStoreMissionsOrdered(t *testing.T) {
	s := testStore(t)

	first, err := s.CreateMission("a.csv", nil)
	if err != nil {
		t.Fatalf("creating mission: %v", err)
	}
	second, err := s.CreateMission("b.csv", nil)
	if err != nil {
		t.Fatalf("creating mission: %v", err)
	}

	missions, err := s.Missions()
	if err != nil {
		t.Fatalf("reading missions: %v", err)
	}
	if len(missions) != 2 {
		t.Fatalf("expected 2 missions, got %d", len(missions))
	}
	if missions[0].ID != first || missions[1].ID != second {
		t.Errorf("unexpected mission order: %+v", missions)
	}
}
