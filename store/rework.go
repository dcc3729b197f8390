package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Rework queue statuses.
const (
	ReworkPendingApproval = "pending_approval"
	ReworkApproved        = "manager_approved"
	ReworkRejected        = "manager_rejected"
	ReworkInProgress      = "in_progress"
	ReworkCompleted       = "completed"
	ReworkScrapped        = "scrapped"
)

type ReworkItem struct {
	ID                  int64      `json:"id"`
	SourceLogID         int64      `json:"source_log_id"`
	QualityCheckID      int64      `json:"quality_check_id"`
	DrawingID           int64      `json:"drawing_id"`
	QuantityToRework    int64      `json:"quantity_to_rework"`
	Status              string     `json:"status"`
	RejectionReason     string     `json:"rejection_reason"`
	ManagerApprovedBy   string     `json:"manager_approved_by"`
	ManagerApprovalTime *time.Time `json:"manager_approval_time,omitempty"`
	ManagerNotes        string     `json:"manager_notes"`
	AssignedLogID       *int64     `json:"assigned_log_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (db *DB) CreateReworkItem(r *ReworkItem) error {
	if r.Status == "" {
		r.Status = ReworkPendingApproval
	}
	result, err := db.Exec(db.Q(`INSERT INTO rework_queue
		(source_log_id, quality_check_id, drawing_id, quantity_to_rework, status, rejection_reason)
		VALUES (?, ?, ?, ?, ?, ?)`),
		r.SourceLogID, r.QualityCheckID, r.DrawingID, r.QuantityToRework, r.Status, r.RejectionReason)
	if err != nil {
		return fmt.Errorf("create rework item: %w", err)
	}
	r.ID, err = result.LastInsertId()
	return err
}

const reworkCols = `id, source_log_id, quality_check_id, drawing_id, quantity_to_rework, status,
	rejection_reason, manager_approved_by, manager_approval_time, manager_notes, assigned_log_id,
	created_at, updated_at`

func scanRework(row interface{ Scan(...any) error }) (*ReworkItem, error) {
	var r ReworkItem
	var approvalTime, createdAt, updatedAt any
	var assignedLog sql.NullInt64
	err := row.Scan(&r.ID, &r.SourceLogID, &r.QualityCheckID, &r.DrawingID, &r.QuantityToRework,
		&r.Status, &r.RejectionReason, &r.ManagerApprovedBy, &approvalTime, &r.ManagerNotes,
		&assignedLog, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	r.ManagerApprovalTime = parseTimePtr(approvalTime)
	if assignedLog.Valid {
		r.AssignedLogID = &assignedLog.Int64
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

func (db *DB) GetReworkItem(id int64) (*ReworkItem, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM rework_queue WHERE id=?`, reworkCols)), id)
	return scanRework(row)
}

// UpdateReworkStatus moves an item between queue statuses with a
// compare-and-set on the current status.
func (db *DB) UpdateReworkStatus(id int64, from, to string) error {
	result, err := db.Exec(db.Q(`UPDATE rework_queue SET status=?, updated_at=datetime('now','localtime') WHERE id=? AND status=?`),
		to, id, from)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("rework item %d not in status %s: %w", id, from, sql.ErrNoRows)
	}
	return nil
}

// RecordManagerDecision stamps the approval fields alongside the status move.
func (db *DB) RecordManagerDecision(id int64, from, to, manager, notes string) error {
	result, err := db.Exec(db.Q(`UPDATE rework_queue SET status=?, manager_approved_by=?, manager_notes=?,
		manager_approval_time=datetime('now','localtime'), updated_at=datetime('now','localtime')
		WHERE id=? AND status=?`),
		to, manager, notes, id, from)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("rework item %d not in status %s: %w", id, from, sql.ErrNoRows)
	}
	return nil
}

// AssignReworkLog links an approved item to the production log reworking
// it. The UNIQUE constraint on assigned_log_id keeps one item per log.
func (db *DB) AssignReworkLog(id, logID int64) error {
	_, err := db.Exec(db.Q(`UPDATE rework_queue SET assigned_log_id=?, updated_at=datetime('now','localtime') WHERE id=?`),
		logID, id)
	return err
}

// UnassignReworkLog detaches an item from a log, freeing it for another
// run after the assigned log was cancelled.
func (db *DB) UnassignReworkLog(id int64) error {
	_, err := db.Exec(db.Q(`UPDATE rework_queue SET assigned_log_id=NULL, updated_at=datetime('now','localtime') WHERE id=?`), id)
	return err
}

func (db *DB) GetReworkByAssignedLog(logID int64) (*ReworkItem, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM rework_queue WHERE assigned_log_id=?`, reworkCols)), logID)
	return scanRework(row)
}

func (db *DB) ListReworkByStatus(status string) ([]*ReworkItem, error) {
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM rework_queue WHERE status=? ORDER BY id`, reworkCols)), status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRework(rows)
}

// ListApprovedReworkForDrawing returns approved, unassigned items for a
// drawing, oldest first. These are what an operator can pick up.
func (db *DB) ListApprovedReworkForDrawing(drawingID int64) ([]*ReworkItem, error) {
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM rework_queue
		WHERE drawing_id=? AND status=? AND assigned_log_id IS NULL ORDER BY id`, reworkCols)),
		drawingID, ReworkApproved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRework(rows)
}

func collectRework(rows *sql.Rows) ([]*ReworkItem, error) {
	var items []*ReworkItem
	for rows.Next() {
		r, err := scanRework(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
