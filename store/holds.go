package store

import (
	"database/sql"
	"time"
)

// DrawingHold pins a drawing while its first piece awaits inspection.
// At most one hold per drawing; the SQL row is the source of truth and
// the Redis mirror in holdstate is rebuilt from it on startup.
type DrawingHold struct {
	DrawingID     int64     `json:"drawing_id"`
	BlockingLogID int64     `json:"blocking_log_id"`
	SetAt         time.Time `json:"set_at"`
}

// SetDrawingHold upserts the hold row for a drawing.
func (db *DB) SetDrawingHold(drawingID, blockingLogID int64) error {
	if db.driver == "postgres" {
		_, err := db.Exec(db.Q(`INSERT INTO drawing_holds (drawing_id, blocking_log_id) VALUES (?, ?)
			ON CONFLICT (drawing_id) DO UPDATE SET blocking_log_id=EXCLUDED.blocking_log_id, set_at=NOW()`),
			drawingID, blockingLogID)
		return err
	}
	_, err := db.Exec(db.Q(`INSERT INTO drawing_holds (drawing_id, blocking_log_id) VALUES (?, ?)
		ON CONFLICT (drawing_id) DO UPDATE SET blocking_log_id=excluded.blocking_log_id, set_at=datetime('now','localtime')`),
		drawingID, blockingLogID)
	return err
}

// GetDrawingHold returns the hold on a drawing, or sql.ErrNoRows.
func (db *DB) GetDrawingHold(drawingID int64) (*DrawingHold, error) {
	row := db.QueryRow(db.Q(`SELECT drawing_id, blocking_log_id, set_at FROM drawing_holds WHERE drawing_id=?`), drawingID)
	var h DrawingHold
	var setAt any
	if err := row.Scan(&h.DrawingID, &h.BlockingLogID, &setAt); err != nil {
		return nil, err
	}
	h.SetAt = parseTime(setAt)
	return &h, nil
}

// ClearDrawingHold removes the hold. Clearing an absent hold is not an error.
func (db *DB) ClearDrawingHold(drawingID int64) error {
	_, err := db.Exec(db.Q(`DELETE FROM drawing_holds WHERE drawing_id=?`), drawingID)
	return err
}

// ClearDrawingHoldByLog removes a hold only if the given log imposed it.
// Returns sql.ErrNoRows when no such hold exists.
func (db *DB) ClearDrawingHoldByLog(drawingID, blockingLogID int64) error {
	result, err := db.Exec(db.Q(`DELETE FROM drawing_holds WHERE drawing_id=? AND blocking_log_id=?`),
		drawingID, blockingLogID)
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

func (db *DB) ListDrawingHolds() ([]*DrawingHold, error) {
	rows, err := db.Query(db.Q(`SELECT drawing_id, blocking_log_id, set_at FROM drawing_holds ORDER BY drawing_id`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var holds []*DrawingHold
	for rows.Next() {
		var h DrawingHold
		var setAt any
		if err := rows.Scan(&h.DrawingID, &h.BlockingLogID, &setAt); err != nil {
			return nil, err
		}
		h.SetAt = parseTime(setAt)
		holds = append(holds, &h)
	}
	return holds, rows.Err()
}
