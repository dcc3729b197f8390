package store

import (
	"fmt"
	"time"
)

// Downtime categories an operator can book against a log. Planned
// categories are scheduled pauses and do not count against availability.
const (
	DowntimeToolChange     = "tool_change"
	DowntimeInspectionWait = "inspection_wait"
	DowntimeMinorStoppage  = "minor_stoppage"
	DowntimeTeaBreak       = "tea_break"
	DowntimeTBT            = "tbt"
	DowntimeLunch          = "lunch"
	DowntimeFiveS          = "five_s"
	DowntimePM             = "pm"
)

// PlannedDowntimeCategories are excluded from availability loss.
var PlannedDowntimeCategories = []string{
	DowntimeTeaBreak, DowntimeTBT, DowntimeLunch, DowntimeFiveS, DowntimePM,
}

func ValidDowntimeCategory(c string) bool {
	switch c {
	case DowntimeToolChange, DowntimeInspectionWait, DowntimeMinorStoppage,
		DowntimeTeaBreak, DowntimeTBT, DowntimeLunch, DowntimeFiveS, DowntimePM:
		return true
	}
	return false
}

type DowntimeEntry struct {
	ID        int64     `json:"id"`
	LogID     int64     `json:"log_id"`
	Category  string    `json:"category"`
	Minutes   float64   `json:"minutes"`
	NotedBy   string    `json:"noted_by"`
	CreatedAt time.Time `json:"created_at"`
}

func (db *DB) AddDowntime(e *DowntimeEntry) error {
	if !ValidDowntimeCategory(e.Category) {
		return fmt.Errorf("unknown downtime category: %s", e.Category)
	}
	if e.Minutes < 0 {
		return fmt.Errorf("downtime minutes must be >= 0, got %v", e.Minutes)
	}
	result, err := db.Exec(db.Q(`INSERT INTO downtime_entries (log_id, category, minutes, noted_by) VALUES (?, ?, ?, ?)`),
		e.LogID, e.Category, e.Minutes, e.NotedBy)
	if err != nil {
		return fmt.Errorf("add downtime: %w", err)
	}
	e.ID, err = result.LastInsertId()
	return err
}

func (db *DB) ListDowntimeByLog(logID int64) ([]*DowntimeEntry, error) {
	rows, err := db.Query(db.Q(`SELECT id, log_id, category, minutes, noted_by, created_at FROM downtime_entries WHERE log_id=? ORDER BY id`), logID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*DowntimeEntry
	for rows.Next() {
		var e DowntimeEntry
		var createdAt any
		if err := rows.Scan(&e.ID, &e.LogID, &e.Category, &e.Minutes, &e.NotedBy, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// SumDowntimeMinutes totals a log's downtime for the given categories.
func (db *DB) SumDowntimeMinutes(logID int64, categories []string) (float64, error) {
	if len(categories) == 0 {
		return 0, nil
	}
	query := `SELECT COALESCE(SUM(minutes), 0) FROM downtime_entries WHERE log_id=? AND category IN (`
	args := []any{logID}
	for i, c := range categories {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args = append(args, c)
	}
	query += ")"
	var total float64
	err := db.QueryRow(db.Q(query), args...).Scan(&total)
	return total, err
}
