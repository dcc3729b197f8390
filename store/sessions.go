package store

import (
	"database/sql"
	"fmt"
	"time"
)

// OperatorSession ties an operator to a machine for a shift. The session's
// active drawing is what most workstation actions operate against.
type OperatorSession struct {
	ID              int64      `json:"id"`
	OperatorName    string     `json:"operator_name"`
	MachineID       int64      `json:"machine_id"`
	Shift           string     `json:"shift"`
	ActiveDrawingID *int64     `json:"active_drawing_id,omitempty"`
	LoginTime       time.Time  `json:"login_time"`
	LogoutTime      *time.Time `json:"logout_time,omitempty"`
	IsActive        bool       `json:"is_active"`
}

func (db *DB) CreateOperatorSession(s *OperatorSession) error {
	result, err := db.Exec(db.Q(`INSERT INTO operator_sessions (operator_name, machine_id, shift) VALUES (?, ?, ?)`),
		s.OperatorName, s.MachineID, s.Shift)
	if err != nil {
		return fmt.Errorf("create operator session: %w", err)
	}
	s.ID, err = result.LastInsertId()
	s.IsActive = true
	return err
}

func scanSession(row interface{ Scan(...any) error }) (*OperatorSession, error) {
	var s OperatorSession
	var login, logout any
	var drawingID sql.NullInt64
	if err := row.Scan(&s.ID, &s.OperatorName, &s.MachineID, &s.Shift, &drawingID, &login, &logout, &s.IsActive); err != nil {
		return nil, err
	}
	if drawingID.Valid {
		s.ActiveDrawingID = &drawingID.Int64
	}
	s.LoginTime = parseTime(login)
	s.LogoutTime = parseTimePtr(logout)
	return &s, nil
}

const sessionCols = `id, operator_name, machine_id, shift, active_drawing_id, login_time, logout_time, is_active`

func (db *DB) GetOperatorSession(id int64) (*OperatorSession, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM operator_sessions WHERE id=?`, sessionCols)), id)
	return scanSession(row)
}

// GetActiveSessionForMachine returns the newest active session on a machine.
func (db *DB) GetActiveSessionForMachine(machineID int64) (*OperatorSession, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM operator_sessions WHERE machine_id=? AND is_active=? ORDER BY id DESC LIMIT 1`, sessionCols)),
		machineID, true)
	return scanSession(row)
}

func (db *DB) SetSessionActiveDrawing(sessionID int64, drawingID *int64) error {
	var did any
	if drawingID != nil {
		did = *drawingID
	}
	_, err := db.Exec(db.Q(`UPDATE operator_sessions SET active_drawing_id=? WHERE id=?`), did, sessionID)
	return err
}

func (db *DB) CloseOperatorSession(id int64) error {
	_, err := db.Exec(db.Q(`UPDATE operator_sessions SET is_active=?, logout_time=datetime('now','localtime'), active_drawing_id=NULL WHERE id=?`), false, id)
	return err
}

func (db *DB) ListActiveSessions() ([]*OperatorSession, error) {
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM operator_sessions WHERE is_active=? ORDER BY machine_id`, sessionCols)), true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []*OperatorSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
