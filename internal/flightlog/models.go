package flightlog

import (
	"database/sql"
	"time"
)

// MissionRecord is one recorded mission run.
type MissionRecord struct {
	ID        int64
	StartTime time.Time
	PlanPath  string
	Config    sql.NullString
}

// EventRecord is one mission progress event (phase transition, arrival,
// abort).
type EventRecord struct {
	ID          int64
	MissionID   int64
	Timestamp   time.Time
	Phase       string
	WaypointIdx sql.NullInt64
	Detail      sql.NullString
}

// TrackPoint is one sampled vehicle state. Battery and FlightMode are null
// when the sample was taken during a transient telemetry gap.
type TrackPoint struct {
	ID         int64
	MissionID  int64
	Timestamp  time.Time
	North      float64
	East       float64
	Down       float64
	Battery    sql.NullFloat64
	FlightMode sql.NullString
}
