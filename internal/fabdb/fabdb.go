// Package fabdb persists run history to sqlite: cycle completions and
// sampled controller telemetry. The database is observability for
// operators; run progress durability lives in the fabrication ledger.
package fabdb

import (
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/atelier-fab/claymore/internal/monitoring"
	"github.com/atelier-fab/claymore/internal/telemetry"
)

type DB struct {
	*sql.DB
	runID string
}

// NewDB opens (creating if needed) the run database at path and scopes
// all writes to runID.
func NewDB(path, runID string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS cycles (
			run_id TEXT,
			unit_id TEXT,
			sequence INTEGER,
			cycle_time DOUBLE,
			placed_at TIMESTAMP,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS telemetry (
			run_id TEXT,
			controller_time DOUBLE,
			joint_0 DOUBLE, joint_1 DOUBLE, joint_2 DOUBLE,
			joint_3 DOUBLE, joint_4 DOUBLE, joint_5 DOUBLE,
			force_x DOUBLE, force_y DOUBLE, force_z DOUBLE,
			pose_x DOUBLE, pose_y DOUBLE, pose_z DOUBLE,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{DB: db, runID: runID}, nil
}

// RecordCycle stores one completed unit cycle.
func (db *DB) RecordCycle(unitID string, sequence int, cycleTime time.Duration, placedAt time.Time) error {
	_, err := db.Exec(
		"INSERT INTO cycles (run_id, unit_id, sequence, cycle_time, placed_at) VALUES (?, ?, ?, ?, ?)",
		db.runID, unitID, sequence, cycleTime.Seconds(), placedAt.UTC(),
	)
	if err != nil {
		return err
	}
	return nil
}

// RecordFrame stores a sampled telemetry frame. Joints are the actual
// positions in degrees; forces and pose keep their wire units.
func (db *DB) RecordFrame(f telemetry.Frame) error {
	_, err := db.Exec(
		`INSERT INTO telemetry (
			run_id, controller_time,
			joint_0, joint_1, joint_2, joint_3, joint_4, joint_5,
			force_x, force_y, force_z,
			pose_x, pose_y, pose_z
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		db.runID, f.ControllerTime,
		f.ActualJoints[0], f.ActualJoints[1], f.ActualJoints[2],
		f.ActualJoints[3], f.ActualJoints[4], f.ActualJoints[5],
		f.Forces[0], f.Forces[1], f.Forces[2],
		f.Pose[0], f.Pose[1], f.Pose[2],
	)
	if err != nil {
		return err
	}
	return nil
}

// Cycle is one completed unit cycle as read back from the database.
type Cycle struct {
	RunID     string
	UnitID    string
	Sequence  int
	CycleTime float64
}

func (c *Cycle) String() string {
	return fmt.Sprintf("Run: %s, Unit: %s, Sequence: %d, CycleTime: %fs", c.RunID, c.UnitID, c.Sequence, c.CycleTime)
}

// Cycles returns the cycles of the given run in placement order. An
// empty runID returns the most recent cycles across all runs.
func (db *DB) Cycles(runID string) ([]Cycle, error) {
	query := "SELECT run_id, unit_id, sequence, cycle_time FROM cycles ORDER BY timestamp DESC LIMIT 500"
	args := []any{}
	if runID != "" {
		query = "SELECT run_id, unit_id, sequence, cycle_time FROM cycles WHERE run_id = ? ORDER BY sequence"
		args = append(args, runID)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cycles []Cycle
	for rows.Next() {
		var c Cycle
		if err := rows.Scan(&c.RunID, &c.UnitID, &c.Sequence, &c.CycleTime); err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return cycles, nil
}

// AttachAdminRoutes mounts the live SQL console and a backup endpoint on
// the debug mux.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://claymore.db", db.DB, &tailsql.DBOptions{
		Label: "Fabrication DB",
	})

	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unixTime := time.Now().Unix()
		backupPath := fmt.Sprintf("backup-%d.db", unixTime)
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				monitoring.Logf("Failed to remove backup file: %v", err)
			}
		}()

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()
		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))
	return nil
}
