package store

import (
	"fmt"
	"time"
)

// Quality check types and results as stored in quality_checks.
const (
	CheckFPI = "fpi"
	CheckLPI = "lpi"

	ResultPass = "pass"
	ResultFail = "fail"
)

type QualityCheck struct {
	ID                int64     `json:"id"`
	LogID             int64     `json:"log_id"`
	CheckType         string    `json:"check_type"`
	Result            string    `json:"result"`
	Inspector         string    `json:"inspector"`
	QuantityInspected int64     `json:"quantity_inspected"`
	QuantityRejected  int64     `json:"quantity_rejected"`
	QuantityToRework  int64     `json:"quantity_to_rework"`
	RejectionReason   string    `json:"rejection_reason"`
	CreatedAt         time.Time `json:"created_at"`
}

type ScrapRecord struct {
	ID               int64     `json:"id"`
	QualityCheckID   int64     `json:"quality_check_id"`
	LogID            *int64    `json:"log_id,omitempty"`
	DrawingID        int64     `json:"drawing_id"`
	QuantityScrapped int64     `json:"quantity_scrapped"`
	Reason           string    `json:"reason"`
	ScrappedBy       string    `json:"scrapped_by"`
	CreatedAt        time.Time `json:"created_at"`
}

func (db *DB) CreateQualityCheck(qc *QualityCheck) error {
	result, err := db.Exec(db.Q(`INSERT INTO quality_checks
		(log_id, check_type, result, inspector, quantity_inspected, quantity_rejected, quantity_to_rework, rejection_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		qc.LogID, qc.CheckType, qc.Result, qc.Inspector,
		qc.QuantityInspected, qc.QuantityRejected, qc.QuantityToRework, qc.RejectionReason)
	if err != nil {
		return fmt.Errorf("create quality check: %w", err)
	}
	qc.ID, err = result.LastInsertId()
	return err
}

const qualityCheckCols = `id, log_id, check_type, result, inspector, quantity_inspected, quantity_rejected, quantity_to_rework, rejection_reason, created_at`

func scanQualityCheck(row interface{ Scan(...any) error }) (*QualityCheck, error) {
	var qc QualityCheck
	var createdAt any
	err := row.Scan(&qc.ID, &qc.LogID, &qc.CheckType, &qc.Result, &qc.Inspector,
		&qc.QuantityInspected, &qc.QuantityRejected, &qc.QuantityToRework, &qc.RejectionReason, &createdAt)
	if err != nil {
		return nil, err
	}
	qc.CreatedAt = parseTime(createdAt)
	return &qc, nil
}

func (db *DB) GetQualityCheck(id int64) (*QualityCheck, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM quality_checks WHERE id=?`, qualityCheckCols)), id)
	return scanQualityCheck(row)
}

func (db *DB) ListQualityChecks(logID int64) ([]*QualityCheck, error) {
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM quality_checks WHERE log_id=? ORDER BY id`, qualityCheckCols)), logID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var checks []*QualityCheck
	for rows.Next() {
		qc, err := scanQualityCheck(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, qc)
	}
	return checks, rows.Err()
}

func (db *DB) CreateScrapRecord(s *ScrapRecord) error {
	var logID any
	if s.LogID != nil {
		logID = *s.LogID
	}
	result, err := db.Exec(db.Q(`INSERT INTO scrap_log
		(quality_check_id, log_id, drawing_id, quantity_scrapped, reason, scrapped_by)
		VALUES (?, ?, ?, ?, ?, ?)`),
		s.QualityCheckID, logID, s.DrawingID, s.QuantityScrapped, s.Reason, s.ScrappedBy)
	if err != nil {
		return fmt.Errorf("create scrap record: %w", err)
	}
	s.ID, err = result.LastInsertId()
	return err
}

func (db *DB) ListScrapByDrawing(drawingID int64) ([]*ScrapRecord, error) {
	rows, err := db.Query(db.Q(`SELECT id, quality_check_id, log_id, drawing_id, quantity_scrapped, reason, scrapped_by, created_at
		FROM scrap_log WHERE drawing_id=? ORDER BY id DESC`), drawingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []*ScrapRecord
	for rows.Next() {
		var s ScrapRecord
		var logID, createdAt any
		if err := rows.Scan(&s.ID, &s.QualityCheckID, &logID, &s.DrawingID, &s.QuantityScrapped, &s.Reason, &s.ScrappedBy, &createdAt); err != nil {
			return nil, err
		}
		if id, ok := logID.(int64); ok {
			s.LogID = &id
		}
		s.CreatedAt = parseTime(createdAt)
		records = append(records, &s)
	}
	return records, rows.Err()
}
