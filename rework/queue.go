// Package rework manages the manager-facing side of the rework queue:
// approving, declining or scrapping pieces the quality gate set aside.
// The operator-facing side (picking up an approved item) lives in
// workflow.StartRework.
package rework

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"chipsight/store"
)

// Emitter receives queue events; the engine package bridges it onto the
// event bus.
type Emitter interface {
	StatusChanged(item *store.ReworkItem, from, to string)
}

type NopEmitter struct{}

func (NopEmitter) StatusChanged(*store.ReworkItem, string, string) {}

type Queue struct {
	db      *store.DB
	emitter Emitter
	logf    func(format string, args ...any)
}

func NewQueue(db *store.DB, emitter Emitter) *Queue {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &Queue{db: db, emitter: emitter, logf: log.Printf}
}

func (q *Queue) SetLogFunc(f func(format string, args ...any)) { q.logf = f }

// Approve releases an item for operators to pick up.
func (q *Queue) Approve(itemID int64, manager, notes string) (*store.ReworkItem, error) {
	return q.decide(itemID, store.ReworkApproved, manager, notes)
}

// Decline refuses the rework; the pieces are written off to scrap under
// the original quality check.
func (q *Queue) Decline(itemID int64, manager, notes string) (*store.ReworkItem, error) {
	item, err := q.decide(itemID, store.ReworkRejected, manager, notes)
	if err != nil {
		return nil, err
	}
	s := &store.ScrapRecord{
		QualityCheckID:   item.QualityCheckID,
		LogID:            &item.SourceLogID,
		DrawingID:        item.DrawingID,
		QuantityScrapped: item.QuantityToRework,
		Reason:           fmt.Sprintf("rework declined: %s", notes),
		ScrappedBy:       manager,
	}
	if err := q.db.CreateScrapRecord(s); err != nil {
		return nil, err
	}
	q.logf("rework: item %d declined by %s, %d piece(s) scrapped", itemID, manager, item.QuantityToRework)
	return item, nil
}

func (q *Queue) decide(itemID int64, to, manager, notes string) (*store.ReworkItem, error) {
	item, err := q.get(itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != store.ReworkPendingApproval {
		return nil, fmt.Errorf("rework item %d is %s, not awaiting approval", itemID, item.Status)
	}
	if err := q.db.RecordManagerDecision(itemID, store.ReworkPendingApproval, to, manager, notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("rework item %d decided concurrently", itemID)
		}
		return nil, err
	}
	q.logf("rework: item %d %s -> %s by %s", itemID, store.ReworkPendingApproval, to, manager)
	fresh, err := q.get(itemID)
	if err != nil {
		return nil, err
	}
	q.emitter.StatusChanged(fresh, store.ReworkPendingApproval, to)
	return fresh, nil
}

// Complete marks an in-progress item done. Called when the rework log
// closes cleanly.
func (q *Queue) Complete(itemID int64) error {
	if err := q.db.UpdateReworkStatus(itemID, store.ReworkInProgress, store.ReworkCompleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("rework item %d is not in progress", itemID)
		}
		return err
	}
	q.logf("rework: item %d completed", itemID)
	if item, err := q.get(itemID); err == nil {
		q.emitter.StatusChanged(item, store.ReworkInProgress, store.ReworkCompleted)
	}
	return nil
}

// Release returns an in-progress item to the approved pool after its
// assigned log was cancelled, so another run can pick it up.
func (q *Queue) Release(itemID int64) error {
	if err := q.db.UpdateReworkStatus(itemID, store.ReworkInProgress, store.ReworkApproved); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("rework item %d is not in progress", itemID)
		}
		return err
	}
	if err := q.db.UnassignReworkLog(itemID); err != nil {
		return err
	}
	q.logf("rework: item %d released back to approved pool", itemID)
	if item, err := q.get(itemID); err == nil {
		q.emitter.StatusChanged(item, store.ReworkInProgress, store.ReworkApproved)
	}
	return nil
}

func (q *Queue) Pending() ([]*store.ReworkItem, error) {
	return q.db.ListReworkByStatus(store.ReworkPendingApproval)
}

func (q *Queue) ApprovedForDrawing(drawingID int64) ([]*store.ReworkItem, error) {
	return q.db.ListApprovedReworkForDrawing(drawingID)
}

func (q *Queue) ByStatus(status string) ([]*store.ReworkItem, error) {
	return q.db.ListReworkByStatus(status)
}

func (q *Queue) get(itemID int64) (*store.ReworkItem, error) {
	item, err := q.db.GetReworkItem(itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("rework item %d not found", itemID)
		}
		return nil, err
	}
	return item, nil
}
