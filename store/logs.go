package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ProductionLog is one machining run of a drawing on a machine. The
// workflow package owns the status vocabulary; the store treats
// current_status as an opaque string so it never imports workflow.
type ProductionLog struct {
	ID                  int64      `json:"id"`
	MachineID           int64      `json:"machine_id"`
	DrawingID           int64      `json:"drawing_id"`
	OperatorSessionID   int64      `json:"operator_session_id"`
	CurrentStatus       string     `json:"current_status"`
	FPIStatus           string     `json:"fpi_status"`
	LPIStatus           string     `json:"lpi_status"`
	ProductionHoldFPI   bool       `json:"production_hold_fpi"`
	RunPlannedQty       int64      `json:"run_planned_quantity"`
	RunCompletedQty     int64      `json:"run_completed_quantity"`
	RunRejectedQtyFPI   int64      `json:"run_rejected_quantity_fpi"`
	RunRejectedQtyLPI   int64      `json:"run_rejected_quantity_lpi"`
	BatchNumber         string     `json:"batch_number"`
	SourceReworkItemID  *int64     `json:"source_rework_item_id,omitempty"`
	SetupStartTime      *time.Time `json:"setup_start_time,omitempty"`
	SetupEndTime        *time.Time `json:"setup_end_time,omitempty"`
	FirstCycleStartTime *time.Time `json:"first_cycle_start_time,omitempty"`
	LastCycleStartTime  *time.Time `json:"last_cycle_start_time,omitempty"`
	LastCycleEndTime    *time.Time `json:"last_cycle_end_time,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	ClosedAt            *time.Time `json:"closed_at,omitempty"`
}

// HistoryEntry is an append-only record of one status transition.
type HistoryEntry struct {
	ID         int64     `json:"id"`
	LogID      int64     `json:"log_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

// LogCycle is one completed machining loop and its piece count.
type LogCycle struct {
	ID          int64     `json:"id"`
	LogID       int64     `json:"log_id"`
	Quantity    int64     `json:"quantity"`
	CompletedAt time.Time `json:"completed_at"`
}

const logCols = `id, machine_id, drawing_id, operator_session_id, current_status, fpi_status, lpi_status,
	production_hold_fpi, run_planned_quantity, run_completed_quantity, run_rejected_quantity_fpi,
	run_rejected_quantity_lpi, batch_number, source_rework_item_id, setup_start_time, setup_end_time,
	first_cycle_start_time, last_cycle_start_time, last_cycle_end_time, created_at, closed_at`

func scanLog(row interface{ Scan(...any) error }) (*ProductionLog, error) {
	var l ProductionLog
	var srcRework sql.NullInt64
	var setupStart, setupEnd, firstCycle, lastCycleStart, lastCycleEnd, createdAt, closedAt any
	err := row.Scan(&l.ID, &l.MachineID, &l.DrawingID, &l.OperatorSessionID, &l.CurrentStatus,
		&l.FPIStatus, &l.LPIStatus, &l.ProductionHoldFPI, &l.RunPlannedQty, &l.RunCompletedQty,
		&l.RunRejectedQtyFPI, &l.RunRejectedQtyLPI, &l.BatchNumber, &srcRework,
		&setupStart, &setupEnd, &firstCycle, &lastCycleStart, &lastCycleEnd, &createdAt, &closedAt)
	if err != nil {
		return nil, err
	}
	if srcRework.Valid {
		l.SourceReworkItemID = &srcRework.Int64
	}
	l.SetupStartTime = parseTimePtr(setupStart)
	l.SetupEndTime = parseTimePtr(setupEnd)
	l.FirstCycleStartTime = parseTimePtr(firstCycle)
	l.LastCycleStartTime = parseTimePtr(lastCycleStart)
	l.LastCycleEndTime = parseTimePtr(lastCycleEnd)
	l.CreatedAt = parseTime(createdAt)
	l.ClosedAt = parseTimePtr(closedAt)
	return &l, nil
}

// CreateProductionLog inserts a fresh log with setup_start_time stamped now.
func (db *DB) CreateProductionLog(l *ProductionLog) error {
	var srcRework any
	if l.SourceReworkItemID != nil {
		srcRework = *l.SourceReworkItemID
	}
	result, err := db.Exec(db.Q(`INSERT INTO production_logs
		(machine_id, drawing_id, operator_session_id, current_status, run_planned_quantity, batch_number, source_rework_item_id, setup_start_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now','localtime'))`),
		l.MachineID, l.DrawingID, l.OperatorSessionID, l.CurrentStatus, l.RunPlannedQty, l.BatchNumber, srcRework)
	if err != nil {
		return fmt.Errorf("create production log: %w", err)
	}
	l.ID, err = result.LastInsertId()
	return err
}

func (db *DB) GetProductionLog(id int64) (*ProductionLog, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM production_logs WHERE id=?`, logCols)), id)
	return scanLog(row)
}

// UpdateLogStatus moves a log between statuses and appends the history row
// in one transaction. The WHERE current_status=? guard makes concurrent
// writers lose cleanly instead of double-applying a transition.
func (db *DB) UpdateLogStatus(id int64, from, to, detail string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.Exec(db.Q(`UPDATE production_logs SET current_status=? WHERE id=? AND current_status=?`), to, id, from)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("log %d not in status %s: %w", id, from, sql.ErrNoRows)
	}
	_, err = tx.Exec(db.Q(`INSERT INTO log_history (log_id, from_status, to_status, detail) VALUES (?, ?, ?, ?)`),
		id, from, to, detail)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// AppendLogHistory records a non-transition event against a log (quality
// checks, hold changes, admin actions).
func (db *DB) AppendLogHistory(logID int64, status, detail string) error {
	_, err := db.Exec(db.Q(`INSERT INTO log_history (log_id, from_status, to_status, detail) VALUES (?, ?, ?, ?)`),
		logID, status, status, detail)
	return err
}

func (db *DB) ListLogHistory(logID int64) ([]*HistoryEntry, error) {
	rows, err := db.Query(db.Q(`SELECT id, log_id, from_status, to_status, detail, created_at FROM log_history WHERE log_id=? ORDER BY id`), logID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var createdAt any
		if err := rows.Scan(&e.ID, &e.LogID, &e.FromStatus, &e.ToStatus, &e.Detail, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// CountLogsInStates counts a machine's open logs in any of the given
// statuses. Used to enforce one production-active log per machine.
func (db *DB) CountLogsInStates(machineID int64, states []string) (int, error) {
	if len(states) == 0 {
		return 0, nil
	}
	query := `SELECT COUNT(*) FROM production_logs WHERE machine_id=? AND current_status IN (`
	args := []any{machineID}
	for i, s := range states {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args = append(args, s)
	}
	query += ")"
	var n int
	err := db.QueryRow(db.Q(query), args...).Scan(&n)
	return n, err
}

// GetLogInStates returns the newest log on a machine in any of the given
// statuses, or sql.ErrNoRows.
func (db *DB) GetLogInStates(machineID int64, states []string) (*ProductionLog, error) {
	if len(states) == 0 {
		return nil, sql.ErrNoRows
	}
	query := fmt.Sprintf(`SELECT %s FROM production_logs WHERE machine_id=? AND current_status IN (`, logCols)
	args := []any{machineID}
	for i, s := range states {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args = append(args, s)
	}
	query += ") ORDER BY id DESC LIMIT 1"
	row := db.QueryRow(db.Q(query), args...)
	return scanLog(row)
}

// GetCurrentLogForDrawing returns the newest log for a session+drawing pair.
func (db *DB) GetCurrentLogForDrawing(sessionID, drawingID int64) (*ProductionLog, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM production_logs
		WHERE operator_session_id=? AND drawing_id=? ORDER BY id DESC LIMIT 1`, logCols)),
		sessionID, drawingID)
	return scanLog(row)
}

func (db *DB) ListLogsByDrawing(drawingID int64, limit int) ([]*ProductionLog, error) {
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM production_logs WHERE drawing_id=? ORDER BY id DESC LIMIT ?`, logCols)),
		drawingID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLogs(rows)
}

func (db *DB) ListLogsByMachine(machineID int64, limit int) ([]*ProductionLog, error) {
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM production_logs WHERE machine_id=? ORDER BY id DESC LIMIT ?`, logCols)),
		machineID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLogs(rows)
}

// ListOpenLogs returns every log not yet closed, oldest first.
func (db *DB) ListOpenLogs() ([]*ProductionLog, error) {
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM production_logs WHERE closed_at IS NULL ORDER BY id`, logCols)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLogs(rows)
}

// ListOpenLogsBySession returns a session's logs that are not yet closed.
func (db *DB) ListOpenLogsBySession(sessionID int64) ([]*ProductionLog, error) {
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM production_logs WHERE operator_session_id=? AND closed_at IS NULL ORDER BY id`, logCols)),
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLogs(rows)
}

func collectLogs(rows *sql.Rows) ([]*ProductionLog, error) {
	var logs []*ProductionLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// MarkSetupDone stamps setup_end_time.
func (db *DB) MarkSetupDone(id int64) error {
	_, err := db.Exec(db.Q(`UPDATE production_logs SET setup_end_time=datetime('now','localtime') WHERE id=?`), id)
	return err
}

// MarkCycleStart stamps last_cycle_start_time and, on the first loop only,
// first_cycle_start_time.
func (db *DB) MarkCycleStart(id int64) error {
	_, err := db.Exec(db.Q(`UPDATE production_logs SET
		first_cycle_start_time = COALESCE(first_cycle_start_time, datetime('now','localtime')),
		last_cycle_start_time = datetime('now','localtime')
		WHERE id=?`), id)
	return err
}

// RecordCycleComplete adds the loop quantity to the run total, stamps
// last_cycle_end_time, and appends the per-loop row. Completed quantity
// only ever grows.
func (db *DB) RecordCycleComplete(id int64, qty int64) error {
	if qty < 0 {
		return fmt.Errorf("cycle quantity must be >= 0, got %d", qty)
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(db.Q(`UPDATE production_logs SET
		run_completed_quantity = run_completed_quantity + ?,
		last_cycle_end_time = datetime('now','localtime')
		WHERE id=?`), qty, id)
	if err != nil {
		return err
	}
	_, err = tx.Exec(db.Q(`INSERT INTO log_cycles (log_id, quantity) VALUES (?, ?)`), id, qty)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) ListLogCycles(logID int64) ([]*LogCycle, error) {
	rows, err := db.Query(db.Q(`SELECT id, log_id, quantity, completed_at FROM log_cycles WHERE log_id=? ORDER BY id`), logID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cycles []*LogCycle
	for rows.Next() {
		var c LogCycle
		var completedAt any
		if err := rows.Scan(&c.ID, &c.LogID, &c.Quantity, &completedAt); err != nil {
			return nil, err
		}
		c.CompletedAt = parseTime(completedAt)
		cycles = append(cycles, &c)
	}
	return cycles, rows.Err()
}

func (db *DB) SetLogHoldFlag(id int64, hold bool) error {
	_, err := db.Exec(db.Q(`UPDATE production_logs SET production_hold_fpi=? WHERE id=?`), hold, id)
	return err
}

func (db *DB) SetLogFPIStatus(id int64, status string) error {
	_, err := db.Exec(db.Q(`UPDATE production_logs SET fpi_status=? WHERE id=?`), status, id)
	return err
}

func (db *DB) SetLogLPIStatus(id int64, status string) error {
	_, err := db.Exec(db.Q(`UPDATE production_logs SET lpi_status=? WHERE id=?`), status, id)
	return err
}

// AddRejectedQuantity accumulates rejected pieces against the FPI or LPI
// counter. checkType is "fpi" or "lpi".
func (db *DB) AddRejectedQuantity(id int64, checkType string, qty int64) error {
	var col string
	switch checkType {
	case "fpi":
		col = "run_rejected_quantity_fpi"
	case "lpi":
		col = "run_rejected_quantity_lpi"
	default:
		return fmt.Errorf("unknown check type: %s", checkType)
	}
	_, err := db.Exec(db.Q(fmt.Sprintf(`UPDATE production_logs SET %s = %s + ? WHERE id=?`, col, col)), qty, id)
	return err
}

// CloseProductionLog stamps closed_at. Terminal statuses are set through
// UpdateLogStatus first.
func (db *DB) CloseProductionLog(id int64) error {
	_, err := db.Exec(db.Q(`UPDATE production_logs SET closed_at=datetime('now','localtime') WHERE id=? AND closed_at IS NULL`), id)
	return err
}
