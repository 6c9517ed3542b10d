// Package store keeps a history of check runs in a sqlite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/CZERTAINLY/netcheck/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
)

type Run struct {
	UUID     string
	Started  time.Time
	Finished time.Time
	Hosts    int
	Up       int
}

type RunRow struct {
	Run
	ID int
}

func (r RunRow) String() string {
	return fmt.Sprintf("uuid: %q, started: %s, finished: %s, up: %d/%d",
		r.UUID, r.Started.Format(time.RFC3339), r.Finished.Format(time.RFC3339), r.Up, r.Hosts)
}

type HostRow struct {
	Position   int
	Host       string
	PingUp     bool
	Up         bool
	Overridden bool
	OpenPorts  []uint16
}

// Open opens (and creates if needed) the history database at dbPath.
func Open(ctx context.Context, dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uuid TEXT NOT NULL UNIQUE,
			started INTEGER NOT NULL,
			finished INTEGER NOT NULL,
			hosts INTEGER NOT NULL,
			up INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS hosts (
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			host TEXT NOT NULL,
			ping_up BOOLEAN NOT NULL,
			up BOOLEAN NOT NULL,
			overridden BOOLEAN NOT NULL,
			open_ports TEXT NOT NULL,
			PRIMARY KEY (run_id, position)
		)`,
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return db, nil
}

// SaveReport stores a finished report with all its hosts in one transaction.
func SaveReport(ctx context.Context, db *sql.DB, r model.Report) error {
	uuid := r.ID.String()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(ctx, tx, uuid)

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (uuid, started, finished, hosts, up) VALUES (?,?,?,?,?);`,
		uuid, r.Started.UnixNano(), r.Finished.UnixNano(), len(r.Hosts), r.UpCount(),
	)
	if err != nil {
		return fmt.Errorf("executing sql insert failed: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("fetching run id failed: %w", err)
	}

	for i, h := range r.Hosts {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO hosts (run_id, position, host, ping_up, up, overridden, open_ports)
			 VALUES (?,?,?,?,?,?,?);`,
			runID, i, h.Target.Host, h.PingUp, h.Up, h.Overridden, formatPorts(h.OpenPorts()),
		)
		if err != nil {
			return fmt.Errorf("executing sql insert of host %q failed: %w", h.Target.Host, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction failed: %w", err)
	}
	return nil
}

// Runs returns up to limit most recent runs, newest first.
func Runs(ctx context.Context, db *sql.DB, limit int) ([]RunRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, uuid, started, finished, hosts, up FROM runs ORDER BY started DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("executing sql query failed: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ret []RunRow
	for rows.Next() {
		row, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading runs failed: %w", err)
	}
	return ret, nil
}

// Get returns a run identified by 'uuid' with its hosts in report order,
// ErrNotFound when it does not exist, error otherwise.
func Get(ctx context.Context, db *sql.DB, uuid string) (RunRow, []HostRow, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, uuid, started, finished, hosts, up FROM runs WHERE uuid=?`, uuid,
	)
	run, err := scanRun(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return RunRow{}, nil, ErrNotFound
	case err != nil:
		return RunRow{}, nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT position, host, ping_up, up, overridden, open_ports FROM hosts WHERE run_id=? ORDER BY position`, run.ID,
	)
	if err != nil {
		return RunRow{}, nil, fmt.Errorf("executing sql query failed: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var hosts []HostRow
	for rows.Next() {
		var h HostRow
		var ports string
		if err := rows.Scan(&h.Position, &h.Host, &h.PingUp, &h.Up, &h.Overridden, &ports); err != nil {
			return RunRow{}, nil, fmt.Errorf("scanning host failed: %w", err)
		}
		h.OpenPorts, err = parsePorts(ports)
		if err != nil {
			return RunRow{}, nil, err
		}
		hosts = append(hosts, h)
	}
	if err := rows.Err(); err != nil {
		return RunRow{}, nil, fmt.Errorf("reading hosts failed: %w", err)
	}
	return run, hosts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (RunRow, error) {
	var r RunRow
	var started, finished int64
	err := s.Scan(&r.ID, &r.UUID, &started, &finished, &r.Hosts, &r.Up)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRow{}, err
	}
	if err != nil {
		return RunRow{}, fmt.Errorf("scanning run failed: %w", err)
	}
	r.Started = time.Unix(0, started)
	r.Finished = time.Unix(0, finished)
	return r, nil
}

func rollback(ctx context.Context, tx *sql.Tx, uuid string) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.ErrorContext(ctx, "Calling `tx.Rollback()` failed.", slog.String("uuid", uuid), slog.Any("error", err))
	}
}

func formatPorts(ports []uint16) string {
	s := make([]string, len(ports))
	for i, p := range ports {
		s[i] = strconv.Itoa(int(p))
	}
	return strings.Join(s, ",")
}

func parsePorts(s string) ([]uint16, error) {
	if s == "" {
		return nil, nil
	}
	var ret []uint16
	for _, f := range strings.Split(s, ",") {
		p, err := strconv.ParseUint(f, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("parsing stored port %q: %w", f, err)
		}
		ret = append(ret, uint16(p))
	}
	return ret, nil
}
