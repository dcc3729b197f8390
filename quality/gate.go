// Package quality records first-piece (FPI) and last-piece (LPI)
// inspection results and moves production logs through the inspection
// statuses. It shares the workflow lock set so an inspector's verdict and
// an operator's action on the same log never interleave.
package quality

import (
	"database/sql"
	"errors"
	"log"

	"chipsight/store"
	"chipsight/workflow"
)

// Dispositions for rejected pieces.
const (
	DispositionRework = "rework"
	DispositionScrap  = "scrap"
)

// Emitter receives quality events; the engine package bridges it onto
// the event bus.
type Emitter interface {
	CheckRecorded(qc *store.QualityCheck, l *store.ProductionLog)
	LogTransition(l *store.ProductionLog, from, to workflow.Status, detail string)
	HoldChanged(drawingID, blockingLogID int64, held bool)
	ReworkQueued(item *store.ReworkItem)
	ScrapRecorded(s *store.ScrapRecord)
}

type NopEmitter struct{}

func (NopEmitter) CheckRecorded(*store.QualityCheck, *store.ProductionLog)                      {}
func (NopEmitter) LogTransition(*store.ProductionLog, workflow.Status, workflow.Status, string) {}
func (NopEmitter) HoldChanged(int64, int64, bool)                                               {}
func (NopEmitter) ReworkQueued(*store.ReworkItem)                                               {}
func (NopEmitter) ScrapRecorded(*store.ScrapRecord)                                             {}

type Gate struct {
	db      *store.DB
	holds   workflow.HoldStore
	locks   *workflow.LockSet
	emitter Emitter
	logf    func(format string, args ...any)
}

func NewGate(db *store.DB, holds workflow.HoldStore, locks *workflow.LockSet, emitter Emitter) *Gate {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &Gate{db: db, holds: holds, locks: locks, emitter: emitter, logf: log.Printf}
}

func (g *Gate) SetLogFunc(f func(format string, args ...any)) { g.logf = f }

// FPIResult is an inspector's verdict on the first piece.
type FPIResult struct {
	Inspector       string
	Pass            bool
	RejectionReason string
	// Disposition routes the rejected first piece on a fail: rework queues
	// it for manager approval, scrap writes it off. Empty leaves the piece
	// undispositioned (it stays counted as rejected).
	Disposition string
}

// RecordFPI judges the first piece. A pass releases the drawing-wide
// hold and readies the log for cycling; a fail sends the log back for
// corrective setup while the hold stays up. A repeat verdict is accepted
// from fpi_failed_setup_pending, covering the re-measure case where the
// inspector reverses a fail without a re-cut.
func (g *Gate) RecordFPI(logID int64, in FPIResult) (*store.QualityCheck, error) {
	unlock := g.locks.Lock(workflow.LogKey(logID))
	defer unlock()

	l, err := g.getLog(logID)
	if err != nil {
		return nil, err
	}
	from := workflow.Status(l.CurrentStatus)
	if from != workflow.StatusCycleCompletedPendingFPI && from != workflow.StatusFPIFailedSetupPending {
		return nil, workflow.Reject(workflow.KindInvalidTransition, "no first piece awaiting inspection on log %d (status %s)", logID, from)
	}
	if !in.Pass && in.Disposition != "" && in.Disposition != DispositionRework && in.Disposition != DispositionScrap {
		return nil, workflow.Reject(workflow.KindBadRequest, "unknown disposition %q", in.Disposition)
	}

	result := store.ResultFail
	if in.Pass {
		result = store.ResultPass
	}
	qc := &store.QualityCheck{
		LogID:             logID,
		CheckType:         store.CheckFPI,
		Result:            result,
		Inspector:         in.Inspector,
		QuantityInspected: 1,
		RejectionReason:   in.RejectionReason,
	}

	if in.Pass {
		if err := g.db.SetLogFPIStatus(logID, store.ResultPass); err != nil {
			return nil, err
		}
		if err := g.transition(l, from, workflow.StatusFPIPassedReadyForCycle, "FPI pass by "+in.Inspector); err != nil {
			return nil, err
		}
		if err := g.db.CreateQualityCheck(qc); err != nil {
			return nil, err
		}
		g.releaseHold(l)
	} else {
		qc.QuantityRejected = 1
		if in.Disposition == DispositionRework {
			qc.QuantityToRework = 1
		}
		if err := g.db.SetLogFPIStatus(logID, store.ResultFail); err != nil {
			return nil, err
		}
		if err := g.db.AddRejectedQuantity(logID, store.CheckFPI, 1); err != nil {
			return nil, err
		}
		if from == workflow.StatusCycleCompletedPendingFPI {
			if err := g.transition(l, from, workflow.StatusFPIFailedSetupPending, "FPI fail: "+in.RejectionReason); err != nil {
				return nil, err
			}
		} else if err := g.db.AppendLogHistory(logID, string(from), "repeat FPI fail: "+in.RejectionReason); err != nil {
			return nil, err
		}
		if err := g.db.CreateQualityCheck(qc); err != nil {
			return nil, err
		}
		if err := g.disposition(qc, l, 1, in.Disposition, in.Inspector, in.RejectionReason); err != nil {
			return nil, err
		}
	}

	g.logf("quality: FPI %s on log %d by %s", result, logID, in.Inspector)
	g.emitter.CheckRecorded(qc, l)
	return qc, nil
}

// LPIResult is an inspector's verdict on the completed run.
type LPIResult struct {
	Inspector         string
	Pass              bool
	QuantityInspected int64
	QuantityToRework  int64
	QuantityToScrap   int64
	RejectionReason   string
}

// RecordLPI judges the last pieces of a run. Pass or fail, the log moves
// to lpi_completed: the run is over either way, and the verdict lives in
// lpi_status and the rejected counters. Rejected pieces split between the
// rework queue and the scrap log.
func (g *Gate) RecordLPI(logID int64, in LPIResult) (*store.QualityCheck, error) {
	unlock := g.locks.Lock(workflow.LogKey(logID))
	defer unlock()

	l, err := g.getLog(logID)
	if err != nil {
		return nil, err
	}
	from := workflow.Status(l.CurrentStatus)
	if from != workflow.StatusCycleCompletedPendingLPI {
		return nil, workflow.Reject(workflow.KindInvalidTransition, "no last piece awaiting inspection on log %d (status %s)", logID, from)
	}
	rejected := in.QuantityToRework + in.QuantityToScrap
	if in.QuantityInspected <= 0 {
		return nil, workflow.Reject(workflow.KindBadRequest, "quantity inspected must be > 0")
	}
	if rejected > in.QuantityInspected {
		return nil, workflow.Reject(workflow.KindBadRequest, "rejected %d exceeds inspected %d", rejected, in.QuantityInspected)
	}
	if in.Pass && rejected > 0 {
		return nil, workflow.Reject(workflow.KindBadRequest, "a passing LPI cannot reject pieces")
	}
	if !in.Pass && rejected == 0 {
		return nil, workflow.Reject(workflow.KindBadRequest, "a failing LPI must reject at least one piece")
	}

	result := store.ResultFail
	lpiStatus := store.ResultFail
	if in.Pass {
		result = store.ResultPass
		lpiStatus = store.ResultPass
	}
	qc := &store.QualityCheck{
		LogID:             logID,
		CheckType:         store.CheckLPI,
		Result:            result,
		Inspector:         in.Inspector,
		QuantityInspected: in.QuantityInspected,
		QuantityRejected:  rejected,
		QuantityToRework:  in.QuantityToRework,
		RejectionReason:   in.RejectionReason,
	}

	if err := g.db.SetLogLPIStatus(logID, lpiStatus); err != nil {
		return nil, err
	}
	if rejected > 0 {
		if err := g.db.AddRejectedQuantity(logID, store.CheckLPI, rejected); err != nil {
			return nil, err
		}
	}
	if err := g.transition(l, from, workflow.StatusLPICompleted, "LPI "+result+" by "+in.Inspector); err != nil {
		return nil, err
	}
	if err := g.db.CreateQualityCheck(qc); err != nil {
		return nil, err
	}
	if in.QuantityToRework > 0 {
		if err := g.disposition(qc, l, in.QuantityToRework, DispositionRework, in.Inspector, in.RejectionReason); err != nil {
			return nil, err
		}
	}
	if in.QuantityToScrap > 0 {
		if err := g.disposition(qc, l, in.QuantityToScrap, DispositionScrap, in.Inspector, in.RejectionReason); err != nil {
			return nil, err
		}
	}

	g.logf("quality: LPI %s on log %d by %s (%d inspected, %d rejected)",
		result, logID, in.Inspector, in.QuantityInspected, rejected)
	g.emitter.CheckRecorded(qc, l)
	return qc, nil
}

func (g *Gate) disposition(qc *store.QualityCheck, l *store.ProductionLog, qty int64, disposition, actor, reason string) error {
	switch disposition {
	case DispositionRework:
		item := &store.ReworkItem{
			SourceLogID:      l.ID,
			QualityCheckID:   qc.ID,
			DrawingID:        l.DrawingID,
			QuantityToRework: qty,
			RejectionReason:  reason,
		}
		if err := g.db.CreateReworkItem(item); err != nil {
			return err
		}
		g.logf("quality: %d piece(s) from log %d queued for rework approval", qty, l.ID)
		g.emitter.ReworkQueued(item)
	case DispositionScrap:
		s := &store.ScrapRecord{
			QualityCheckID:   qc.ID,
			LogID:            &l.ID,
			DrawingID:        l.DrawingID,
			QuantityScrapped: qty,
			Reason:           reason,
			ScrappedBy:       actor,
		}
		if err := g.db.CreateScrapRecord(s); err != nil {
			return err
		}
		g.logf("quality: %d piece(s) from log %d scrapped", qty, l.ID)
		g.emitter.ScrapRecorded(s)
	}
	return nil
}

// releaseHold drops the drawing hold this log imposed, if any.
func (g *Gate) releaseHold(l *store.ProductionLog) {
	unlock := g.locks.Lock(workflow.DrawingKey(l.DrawingID))
	defer unlock()
	blocking, held, err := g.holds.Held(l.DrawingID)
	if err != nil {
		g.logf("quality: hold lookup failed for drawing %d: %v", l.DrawingID, err)
		return
	}
	if !held || blocking != l.ID {
		return
	}
	if err := g.holds.Clear(l.DrawingID, l.ID); err != nil {
		g.logf("quality: hold clear failed for drawing %d: %v", l.DrawingID, err)
		return
	}
	if err := g.db.SetLogHoldFlag(l.ID, false); err != nil {
		g.logf("quality: hold flag clear failed for log %d: %v", l.ID, err)
	}
	g.logf("quality: hold on drawing %d released by FPI pass on log %d", l.DrawingID, l.ID)
	g.emitter.HoldChanged(l.DrawingID, l.ID, false)
}

func (g *Gate) transition(l *store.ProductionLog, from, to workflow.Status, detail string) error {
	if !workflow.CanTransition(from, to) {
		return workflow.Reject(workflow.KindInvalidTransition, "%s -> %s is not a legal move", from, to)
	}
	if err := g.db.UpdateLogStatus(l.ID, string(from), string(to), detail); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workflow.Reject(workflow.KindInvalidTransition, "log %d moved out of %s concurrently", l.ID, from)
		}
		return err
	}
	fresh := *l
	fresh.CurrentStatus = string(to)
	g.emitter.LogTransition(&fresh, from, to, detail)
	return nil
}

func (g *Gate) getLog(logID int64) (*store.ProductionLog, error) {
	l, err := g.db.GetProductionLog(logID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, workflow.Reject(workflow.KindNotFound, "log %d not found", logID)
		}
		return nil, err
	}
	return l, nil
}
