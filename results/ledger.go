// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package results

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS results (
    u_in TEXT NOT NULL,
    u_out TEXT NOT NULL,
    n_runs INTEGER NOT NULL,
    cls_mean REAL,
    cont_mean REAL,
    cont_std REAL,
    silent INTEGER DEFAULT 0,
    file TEXT,
    created_at TEXT NOT NULL,
    PRIMARY KEY (u_in, u_out)
);
`

// Entry is one completed configuration in the ledger.
type Entry struct {
	UIn, UOut Threshold
	NRuns     int
	ClsMean   float64
	ContMean  float64
	ContStd   float64
	Silent    int
	File      string
	Created   time.Time
}

// Ledger records completed configurations in a SQLite database, so an
// interrupted sweep can skip what is already done.  Safe for concurrent use.
type Ledger struct {
	db   *sql.DB
	path string
}

// OpenLedger opens or creates the ledger database at path.
func OpenLedger(ctx context.Context, path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}
	return &Ledger{db: db, path: path}, nil
}

// Path returns the database file.
func (lg *Ledger) Path() string {
	return lg.path
}

// Put records rc as complete, written to file.  An existing entry for the
// same thresholds is replaced.
func (lg *Ledger) Put(ctx context.Context, rc *Record, file string) error {
	_, err := lg.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO results (
			u_in, u_out, n_runs, cls_mean, cont_mean, cont_std, silent, file, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rc.UIn.String(), rc.UOut.String(), rc.NRuns, rc.ClsMean, rc.ContMean, rc.ContStd,
		rc.Silent, file, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record U_in %v U_out %v: %w", rc.UIn, rc.UOut, err)
	}
	return nil
}

// Has returns true if the threshold pair completed with at least nRuns runs.
func (lg *Ledger) Has(ctx context.Context, uin, uout float32, nRuns int) (bool, error) {
	var n int
	err := lg.db.QueryRowContext(ctx, `SELECT n_runs FROM results WHERE u_in = ? AND u_out = ?`,
		Threshold(uin).String(), Threshold(uout).String()).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query ledger: %w", err)
	}
	return n >= nRuns, nil
}

// List returns all entries, oldest first.
func (lg *Ledger) List(ctx context.Context) ([]Entry, error) {
	rows, err := lg.db.QueryContext(ctx, `
		SELECT u_in, u_out, n_runs, cls_mean, cont_mean, cont_std, silent, file, created_at
		FROM results ORDER BY created_at, u_in, u_out`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	defer rows.Close()
	var ents []Entry
	for rows.Next() {
		var e Entry
		var uin, uout, created string
		if err := rows.Scan(&uin, &uout, &e.NRuns, &e.ClsMean, &e.ContMean, &e.ContStd, &e.Silent, &e.File, &created); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		ui, err := strconv.ParseFloat(uin, 32)
		if err != nil {
			return nil, fmt.Errorf("bad ledger threshold %q: %w", uin, err)
		}
		uo, err := strconv.ParseFloat(uout, 32)
		if err != nil {
			return nil, fmt.Errorf("bad ledger threshold %q: %w", uout, err)
		}
		e.UIn, e.UOut = Threshold(ui), Threshold(uo)
		if e.Created, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("bad ledger time for U_in %s U_out %s: %w", uin, uout, err)
		}
		ents = append(ents, e)
	}
	return ents, rows.Err()
}

// Close closes the database.
func (lg *Ledger) Close() error {
	return lg.db.Close()
}
