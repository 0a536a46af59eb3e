// Package flightlog persists mission runs to sqlite: the plan that was
// flown, the progress events the controller emitted, and a sampled track of
// the vehicle's actual path. The pilot writes it during flight; trackplot
// reads it afterwards.
package flightlog

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rollpitchyall/printinflight/internal/nav"
)

//go:embed schema.sql
var schemaSQL string

const (
	insertMissionSQL = `
INSERT INTO missions (start_time, plan_path, config)
VALUES (CURRENT_TIMESTAMP, ?, ?)`

	insertWaypointSQL = `
INSERT INTO waypoints (mission_id, idx, row, north, east, down)
VALUES (?, ?, ?, ?, ?, ?)`

	insertEventSQL = `
INSERT INTO events (mission_id, timestamp, phase, waypoint_idx, detail)
VALUES (?, ?, ?, ?, ?)`

	insertTrackSQL = `
INSERT INTO track (mission_id, timestamp, north, east, down, battery, flight_mode)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	selectMissionSQL = `
SELECT id, start_time, plan_path, config
FROM missions
WHERE id = ?`

	selectMissionsSQL = `
SELECT id, start_time, plan_path, config
FROM missions
ORDER BY start_time, id`

	selectWaypointsSQL = `
SELECT idx, row, north, east, down
FROM waypoints
WHERE mission_id = ?
ORDER BY idx`

	selectEventsSQL = `
SELECT id, mission_id, timestamp, phase, waypoint_idx, detail
FROM events
WHERE mission_id = ?
ORDER BY timestamp`

	selectTrackSQL = `
SELECT id, mission_id, timestamp, north, east, down, battery, flight_mode
FROM track
WHERE mission_id = ?
ORDER BY timestamp`
)

// Store handles flight log database operations. Connections are opened
// lazily: a write connection with WAL journaling for the pilot, a read-only
// connection for trackplot.
type Store struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// New creates a store over the database at dbPath. The schema is applied on
// first write.
func New(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", s.dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
		if err != nil {
			s.writeDBErr = err
			return
		}

		if _, err = db.Exec(schemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = err
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *Store) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", "file:"+s.dbPath+"?mode=ro")
		if err != nil {
			s.readDBErr = err
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// CreateMission records a new mission run and returns its ID. config may be
// a string, []byte or any JSON-serializable value.
func (s *Store) CreateMission(planPath string, config any) (missionID int64, err error) {
	var configData sql.NullString
	if config != nil {
		switch v := config.(type) {
		case string:
			configData = sql.NullString{String: v, Valid: true}
		case []byte:
			configData = sql.NullString{String: string(v), Valid: true}
		default:
			p, err := json.Marshal(config)
			if err != nil {
				return 0, fmt.Errorf("marshaling config: %w", err)
			}
			configData = sql.NullString{String: string(p), Valid: true}
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		return 0, fmt.Errorf("getting write connection: %w", err)
	}

	result, err := db.Exec(insertMissionSQL, planPath, configData)
	if err != nil {
		return 0, fmt.Errorf("inserting mission: %w", err)
	}
	return result.LastInsertId()
}

// InsertWaypoints stores the planned waypoint sequence in one transaction.
func (s *Store) InsertWaypoints(missionID int64, plan nav.Plan) (err error) {
	if len(plan) == 0 {
		return nil
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if cErr := tx.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && err == nil {
			err = fmt.Errorf("rolling back transaction: %w", cErr)
		}
	}()

	stmt, err := tx.Prepare(insertWaypointSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer func() {
		if cErr := stmt.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing statement: %w", cErr)
		}
	}()

	for _, wp := range plan {
		if _, err = stmt.Exec(missionID, wp.Index, wp.Row, wp.Position.North, wp.Position.East, wp.Position.Down); err != nil {
			return fmt.Errorf("inserting waypoint %d: %w", wp.Index, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// RecordEvent stores one mission progress event.
func (s *Store) RecordEvent(missionID int64, timestamp time.Time, phase string, waypointIdx *int, detail string) error {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	var idx sql.NullInt64
	if waypointIdx != nil {
		idx = sql.NullInt64{Int64: int64(*waypointIdx), Valid: true}
	}
	var d sql.NullString
	if detail != "" {
		d = sql.NullString{String: detail, Valid: true}
	}

	if _, err = db.Exec(insertEventSQL, missionID, timestamp.UTC(), phase, idx, d); err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// BatchInsertTrack stores sampled track points in a single transaction.
func (s *Store) BatchInsertTrack(points []TrackPoint) (err error) {
	if len(points) == 0 {
		return nil
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if cErr := tx.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && err == nil {
			err = fmt.Errorf("rolling back transaction: %w", cErr)
		}
	}()

	stmt, err := tx.Prepare(insertTrackSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer func() {
		if cErr := stmt.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing statement: %w", cErr)
		}
	}()

	for _, p := range points {
		_, err = stmt.Exec(p.MissionID, p.Timestamp.UTC(), p.North, p.East, p.Down, p.Battery, p.FlightMode)
		if err != nil {
			return fmt.Errorf("inserting track point: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Mission returns a mission by its ID.
func (s *Store) Mission(id int64) (*MissionRecord, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	var m MissionRecord
	if err = db.QueryRow(selectMissionSQL, id).Scan(&m.ID, &m.StartTime, &m.PlanPath, &m.Config); err != nil {
		return nil, fmt.Errorf("scanning mission: %w", err)
	}
	return &m, nil
}

// Missions returns all recorded missions ordered by start time.
func (s *Store) Missions() (missions []MissionRecord, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.Query(selectMissionsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying missions: %w", err)
	}
	defer func() {
		if cErr := rows.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cErr)
		}
	}()

	for rows.Next() {
		var m MissionRecord
		if err = rows.Scan(&m.ID, &m.StartTime, &m.PlanPath, &m.Config); err != nil {
			return nil, fmt.Errorf("scanning mission: %w", err)
		}
		missions = append(missions, m)
	}
	return missions, rows.Err()
}

// Waypoints returns the planned waypoints for a mission in order.
func (s *Store) Waypoints(missionID int64) (plan nav.Plan, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.Query(selectWaypointsSQL, missionID)
	if err != nil {
		return nil, fmt.Errorf("querying waypoints: %w", err)
	}
	defer func() {
		if cErr := rows.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cErr)
		}
	}()

	for rows.Next() {
		var wp nav.Waypoint
		if err = rows.Scan(&wp.Index, &wp.Row, &wp.Position.North, &wp.Position.East, &wp.Position.Down); err != nil {
			return nil, fmt.Errorf("scanning waypoint: %w", err)
		}
		plan = append(plan, wp)
	}
	return plan, rows.Err()
}

// Events returns the recorded events for a mission in order.
func (s *Store) Events(missionID int64) (events []EventRecord, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.Query(selectEventsSQL, missionID)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer func() {
		if cErr := rows.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cErr)
		}
	}()

	for rows.Next() {
		var ev EventRecord
		if err = rows.Scan(&ev.ID, &ev.MissionID, &ev.Timestamp, &ev.Phase, &ev.WaypointIdx, &ev.Detail); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Track returns the sampled track for a mission in time order.
func (s *Store) Track(missionID int64) (points []TrackPoint, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.Query(selectTrackSQL, missionID)
	if err != nil {
		return nil, fmt.Errorf("querying track: %w", err)
	}
	defer func() {
		if cErr := rows.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cErr)
		}
	}()

	for rows.Next() {
		var p TrackPoint
		if err = rows.Scan(&p.ID, &p.MissionID, &p.Timestamp, &p.North, &p.East, &p.Down, &p.Battery, &p.FlightMode); err != nil {
			return nil, fmt.Errorf("scanning track point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Close closes the database connections. Safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}
		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		switch {
		case writeErr != nil && readErr != nil:
			s.closeErr = errors.Join(writeErr, readErr)
		case writeErr != nil:
			s.closeErr = writeErr
		case readErr != nil:
			s.closeErr = readErr
		}
	})

	return s.closeErr
}
