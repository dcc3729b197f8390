package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Machine statuses as stored in machines.status.
const (
	MachineAvailable = "available"
	MachineInUse     = "in_use"
	MachineBreakdown = "breakdown"
)

type Machine struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BreakdownEntry is one row of the breakdown history. An open entry has
// EndTime nil; at most one entry per machine is open at a time.
type BreakdownEntry struct {
	ID                  int64      `json:"id"`
	MachineID           int64      `json:"machine_id"`
	StartTime           time.Time  `json:"start_time"`
	EndTime             *time.Time `json:"end_time,omitempty"`
	ReportedBySessionID *int64     `json:"reported_by_session_id,omitempty"`
	Notes               string     `json:"notes"`
}

func (db *DB) CreateMachine(m *Machine) error {
	if m.Status == "" {
		m.Status = MachineAvailable
	}
	result, err := db.Exec(db.Q(`INSERT INTO machines (name, status, active) VALUES (?, ?, ?)`),
		m.Name, m.Status, m.Active)
	if err != nil {
		return fmt.Errorf("create machine: %w", err)
	}
	m.ID, err = result.LastInsertId()
	return err
}

func scanMachine(row interface{ Scan(...any) error }) (*Machine, error) {
	var m Machine
	var createdAt, updatedAt any
	if err := row.Scan(&m.ID, &m.Name, &m.Status, &m.Active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return &m, nil
}

func (db *DB) GetMachine(id int64) (*Machine, error) {
	row := db.QueryRow(db.Q(`SELECT id, name, status, active, created_at, updated_at FROM machines WHERE id=?`), id)
	return scanMachine(row)
}

func (db *DB) GetMachineByName(name string) (*Machine, error) {
	row := db.QueryRow(db.Q(`SELECT id, name, status, active, created_at, updated_at FROM machines WHERE name=?`), name)
	return scanMachine(row)
}

func (db *DB) ListMachines() ([]*Machine, error) {
	rows, err := db.Query(db.Q(`SELECT id, name, status, active, created_at, updated_at FROM machines ORDER BY name`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var machines []*Machine
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, err
		}
		machines = append(machines, m)
	}
	return machines, rows.Err()
}

func (db *DB) UpdateMachineStatus(id int64, status string) error {
	_, err := db.Exec(db.Q(`UPDATE machines SET status=?, updated_at=datetime('now','localtime') WHERE id=?`), status, id)
	return err
}

func (db *DB) SetMachineActive(id int64, active bool) error {
	_, err := db.Exec(db.Q(`UPDATE machines SET active=?, updated_at=datetime('now','localtime') WHERE id=?`), active, id)
	return err
}

// OpenBreakdown inserts a breakdown entry with no end time.
func (db *DB) OpenBreakdown(machineID int64, sessionID *int64, notes string) (int64, error) {
	var sid any
	if sessionID != nil {
		sid = *sessionID
	}
	result, err := db.Exec(db.Q(`INSERT INTO machine_breakdown_log (machine_id, reported_by_session_id, notes) VALUES (?, ?, ?)`),
		machineID, sid, notes)
	if err != nil {
		return 0, fmt.Errorf("open breakdown: %w", err)
	}
	return result.LastInsertId()
}

// GetOpenBreakdown returns the machine's open breakdown entry, or
// sql.ErrNoRows if the machine is healthy.
func (db *DB) GetOpenBreakdown(machineID int64) (*BreakdownEntry, error) {
	row := db.QueryRow(db.Q(`SELECT id, machine_id, start_time, end_time, reported_by_session_id, notes
		FROM machine_breakdown_log WHERE machine_id=? AND end_time IS NULL ORDER BY id DESC LIMIT 1`), machineID)
	return scanBreakdown(row)
}

func scanBreakdown(row interface{ Scan(...any) error }) (*BreakdownEntry, error) {
	var b BreakdownEntry
	var start, end any
	var sid sql.NullInt64
	if err := row.Scan(&b.ID, &b.MachineID, &start, &end, &sid, &b.Notes); err != nil {
		return nil, err
	}
	b.StartTime = parseTime(start)
	b.EndTime = parseTimePtr(end)
	if sid.Valid {
		b.ReportedBySessionID = &sid.Int64
	}
	return &b, nil
}

// CloseBreakdown stamps end_time on the machine's open breakdown entry.
func (db *DB) CloseBreakdown(machineID int64) error {
	result, err := db.Exec(db.Q(`UPDATE machine_breakdown_log SET end_time=datetime('now','localtime') WHERE machine_id=? AND end_time IS NULL`), machineID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListBreakdownsOverlapping returns breakdown entries that overlap the
// [from, to] window. Open entries count as extending to now.
func (db *DB) ListBreakdownsOverlapping(machineID int64, from, to time.Time) ([]*BreakdownEntry, error) {
	rows, err := db.Query(db.Q(`SELECT id, machine_id, start_time, end_time, reported_by_session_id, notes
		FROM machine_breakdown_log
		WHERE machine_id=? AND start_time <= ? AND (end_time IS NULL OR end_time >= ?)
		ORDER BY start_time`), machineID, to, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*BreakdownEntry
	for rows.Next() {
		b, err := scanBreakdown(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, b)
	}
	return entries, rows.Err()
}
