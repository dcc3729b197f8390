package workflow

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"chipsight/store"
)

// Engine executes shop-floor actions against the store under the keyed
// locks. It owns no goroutines; callers (HTTP handlers, the quality gate)
// invoke it synchronously.
type Engine struct {
	db      *store.DB
	holds   HoldStore
	locks   *LockSet
	emitter Emitter
	logf    func(format string, args ...any)
}

func New(db *store.DB, holds HoldStore, locks *LockSet, emitter Emitter) *Engine {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &Engine{
		db:      db,
		holds:   holds,
		locks:   locks,
		emitter: emitter,
		logf:    log.Printf,
	}
}

// SetLogFunc overrides the engine's logger, mainly to quiet tests.
func (e *Engine) SetLogFunc(f func(format string, args ...any)) { e.logf = f }

// SelectDrawing resolves a drawing number and pins it as the session's
// active drawing. It does not create a log; StartSetup does.
func (e *Engine) SelectDrawing(sessionID int64, drawingNumber string) (*store.Drawing, error) {
	s, err := e.db.GetOperatorSession(sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, Reject(KindNotFound, "session %d not found", sessionID)
		}
		return nil, err
	}
	if !s.IsActive {
		return nil, Reject(KindSessionInactive, "session %d is logged out", sessionID)
	}
	d, err := e.db.GetDrawingByNumber(drawingNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, Reject(KindNotFound, "drawing %q not found", drawingNumber)
		}
		return nil, err
	}
	if err := e.db.SetSessionActiveDrawing(sessionID, &d.ID); err != nil {
		return nil, err
	}
	e.logf("workflow: session %d selected drawing %s", sessionID, d.DrawingNumber)
	return d, nil
}

// StartSetup opens a new production log for the session's machine and
// drawing. The machine must be healthy and idle, and the drawing must not
// be under a first-piece hold.
func (e *Engine) StartSetup(sessionID, drawingID int64, batchNumber string) (*store.ProductionLog, error) {
	unlock := e.locks.Lock(DrawingKey(drawingID))
	defer unlock()

	s, err := e.db.GetOperatorSession(sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, Reject(KindNotFound, "session %d not found", sessionID)
		}
		return nil, err
	}
	if !s.IsActive {
		return nil, Reject(KindSessionInactive, "session %d is logged out", sessionID)
	}
	if err := e.checkMachineHealthy(s.MachineID); err != nil {
		return nil, err
	}
	if blockingLog, held, err := e.holds.Held(drawingID); err != nil {
		return nil, err
	} else if held {
		return nil, Reject(KindDrawingHeld, "drawing %d is held pending FPI on log %d", drawingID, blockingLog)
	}

	unlockMachine := e.locks.Lock(MachineKey(s.MachineID))
	defer unlockMachine()
	n, err := e.db.CountLogsInStates(s.MachineID, productionActiveStrings())
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, Reject(KindMachineBusy, "machine %d already has an active production log", s.MachineID)
	}

	ep, err := e.db.EndProductForDrawing(drawingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, Reject(KindNotFound, "drawing %d not found", drawingID)
		}
		return nil, err
	}

	l := &store.ProductionLog{
		MachineID:         s.MachineID,
		DrawingID:         drawingID,
		OperatorSessionID: sessionID,
		CurrentStatus:     string(StatusSetupStarted),
		RunPlannedQty:     ep.Quantity,
		BatchNumber:       batchNumber,
	}
	if err := e.db.CreateProductionLog(l); err != nil {
		return nil, err
	}
	if err := e.db.AppendLogHistory(l.ID, string(StatusSetupStarted), "setup started"); err != nil {
		return nil, err
	}
	if err := e.db.UpdateMachineStatus(s.MachineID, store.MachineInUse); err != nil {
		return nil, err
	}
	e.logf("workflow: log %d opened on machine %d for drawing %d", l.ID, s.MachineID, drawingID)
	e.emitter.LogCreated(l)
	e.emitter.MachineStatus(s.MachineID, store.MachineInUse)
	return l, nil
}

// StartRework opens a production log against an approved rework item.
// The new log carries the item's quantity as its plan and is exempt from
// the normal first-piece sequence only insofar as its plan differs; FPI
// still applies if the product requires it.
func (e *Engine) StartRework(sessionID, reworkItemID int64, batchNumber string) (*store.ProductionLog, error) {
	r, err := e.db.GetReworkItem(reworkItemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, Reject(KindNotFound, "rework item %d not found", reworkItemID)
		}
		return nil, err
	}
	if r.Status != store.ReworkApproved {
		return nil, Reject(KindInvalidTransition, "rework item %d is %s, needs manager approval", reworkItemID, r.Status)
	}
	if r.AssignedLogID != nil {
		return nil, Reject(KindInvalidTransition, "rework item %d already assigned to log %d", reworkItemID, *r.AssignedLogID)
	}

	unlock := e.locks.Lock(DrawingKey(r.DrawingID))
	defer unlock()

	s, err := e.db.GetOperatorSession(sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, Reject(KindNotFound, "session %d not found", sessionID)
		}
		return nil, err
	}
	if !s.IsActive {
		return nil, Reject(KindSessionInactive, "session %d is logged out", sessionID)
	}
	if err := e.checkMachineHealthy(s.MachineID); err != nil {
		return nil, err
	}
	if blockingLog, held, err := e.holds.Held(r.DrawingID); err != nil {
		return nil, err
	} else if held {
		return nil, Reject(KindDrawingHeld, "drawing %d is held pending FPI on log %d", r.DrawingID, blockingLog)
	}

	unlockMachine := e.locks.Lock(MachineKey(s.MachineID))
	defer unlockMachine()
	n, err := e.db.CountLogsInStates(s.MachineID, productionActiveStrings())
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, Reject(KindMachineBusy, "machine %d already has an active production log", s.MachineID)
	}

	l := &store.ProductionLog{
		MachineID:          s.MachineID,
		DrawingID:          r.DrawingID,
		OperatorSessionID:  sessionID,
		CurrentStatus:      string(StatusSetupStarted),
		RunPlannedQty:      r.QuantityToRework,
		BatchNumber:        batchNumber,
		SourceReworkItemID: &r.ID,
	}
	if err := e.db.CreateProductionLog(l); err != nil {
		return nil, err
	}
	if err := e.db.AssignReworkLog(r.ID, l.ID); err != nil {
		return nil, err
	}
	if err := e.db.UpdateReworkStatus(r.ID, store.ReworkApproved, store.ReworkInProgress); err != nil {
		return nil, err
	}
	if err := e.db.AppendLogHistory(l.ID, string(StatusSetupStarted), fmt.Sprintf("rework setup started for item %d", r.ID)); err != nil {
		return nil, err
	}
	if err := e.db.UpdateMachineStatus(s.MachineID, store.MachineInUse); err != nil {
		return nil, err
	}
	e.logf("workflow: rework log %d opened for item %d on machine %d", l.ID, r.ID, s.MachineID)
	e.emitter.LogCreated(l)
	e.emitter.MachineStatus(s.MachineID, store.MachineInUse)
	return l, nil
}

// SetupDone marks setup complete. Valid from setup_started and from
// fpi_failed_setup_pending, which is the corrective re-setup after a
// failed first piece.
func (e *Engine) SetupDone(logID int64) (*store.ProductionLog, error) {
	unlock := e.locks.Lock(LogKey(logID))
	defer unlock()

	l, err := e.getLog(logID)
	if err != nil {
		return nil, err
	}
	from := Status(l.CurrentStatus)
	if from != StatusSetupStarted && from != StatusFPIFailedSetupPending {
		return nil, Reject(KindInvalidTransition, "cannot finish setup from %s", from)
	}
	if err := e.transition(l, from, StatusSetupDone, ""); err != nil {
		return nil, err
	}
	if err := e.db.MarkSetupDone(logID); err != nil {
		return nil, err
	}
	return e.db.GetProductionLog(logID)
}

// CycleStart begins (or resumes) machining. Valid from setup_done,
// fpi_passed_ready_for_cycle and cycle_paused. When the first piece has
// not yet passed FPI the start is allowed: that piece is what the
// inspector will judge. Other logs on the drawing stay blocked by the
// hold instead.
func (e *Engine) CycleStart(logID int64) (*store.ProductionLog, error) {
	unlock := e.locks.Lock(LogKey(logID))
	defer unlock()

	l, err := e.getLog(logID)
	if err != nil {
		return nil, err
	}
	from := Status(l.CurrentStatus)
	switch from {
	case StatusSetupDone, StatusFPIPassedReadyForCycle, StatusCyclePaused:
	default:
		return nil, Reject(KindInvalidTransition, "cannot start cycle from %s", from)
	}
	if err := e.checkMachineHealthy(l.MachineID); err != nil {
		return nil, err
	}
	// A hold imposed by a different log blocks this one; the blocking log
	// itself keeps moving through its own inspection sequence. The drawing
	// lock covers the read through the status move so a hold raised
	// concurrently cannot slip between them.
	unlockDrawing := e.locks.Lock(DrawingKey(l.DrawingID))
	defer unlockDrawing()
	if blockingLog, held, err := e.holds.Held(l.DrawingID); err != nil {
		return nil, err
	} else if held && blockingLog != l.ID {
		return nil, Reject(KindDrawingHeld, "drawing %d is held pending FPI on log %d", l.DrawingID, blockingLog)
	}

	if err := e.transition(l, from, StatusCycleStarted, ""); err != nil {
		return nil, err
	}
	if err := e.db.MarkCycleStart(logID); err != nil {
		return nil, err
	}
	return e.db.GetProductionLog(logID)
}

// CycleComplete records a finished machining loop of qty pieces and
// routes the log onward:
//
//   - first piece with FPI still pending parks the log for inspection and
//     raises the drawing-wide hold
//   - an intermediate loop leaves the log in cycle_started
//   - the loop reaching the planned quantity parks the log for LPI, or
//     closes it when the product needs no last-piece inspection
func (e *Engine) CycleComplete(logID, qty int64) (*store.ProductionLog, error) {
	if qty <= 0 {
		return nil, Reject(KindBadRequest, "cycle quantity must be > 0, got %d", qty)
	}
	unlock := e.locks.Lock(LogKey(logID))
	defer unlock()

	l, err := e.getLog(logID)
	if err != nil {
		return nil, err
	}
	if Status(l.CurrentStatus) != StatusCycleStarted {
		return nil, Reject(KindInvalidTransition, "cannot complete cycle from %s", l.CurrentStatus)
	}
	// Another log's hold blocks completion the same way it blocks starts.
	// The drawing lock is held through the status move and any hold this
	// completion raises.
	unlockDrawing := e.locks.Lock(DrawingKey(l.DrawingID))
	defer unlockDrawing()
	if blockingLog, held, err := e.holds.Held(l.DrawingID); err != nil {
		return nil, err
	} else if held && blockingLog != l.ID {
		return nil, Reject(KindDrawingHeld, "drawing %d is held pending FPI on log %d", l.DrawingID, blockingLog)
	}
	ep, err := e.db.EndProductForDrawing(l.DrawingID)
	if err != nil {
		return nil, err
	}

	// Until the first piece passes inspection every completed piece is a
	// first piece; a re-cut after a failed FPI goes back to the inspector.
	firstPiece := ep.FPIRequired && l.FPIStatus != store.ResultPass
	if firstPiece && qty != 1 {
		return nil, Reject(KindBadRequest, "first piece loop must complete exactly 1 piece, got %d", qty)
	}
	if l.RunCompletedQty+qty > l.RunPlannedQty {
		return nil, Reject(KindQuantityExceeded, "completing %d pieces would exceed plan (%d of %d done)",
			qty, l.RunCompletedQty, l.RunPlannedQty)
	}

	if err := e.db.RecordCycleComplete(logID, qty); err != nil {
		return nil, err
	}
	done := l.RunCompletedQty + qty

	switch {
	case firstPiece:
		if err := e.transition(l, StatusCycleStarted, StatusCycleCompletedPendingFPI, "first piece to inspection"); err != nil {
			return nil, err
		}
		if err := e.raiseHold(l.DrawingID, l.ID); err != nil {
			return nil, err
		}
	case done >= l.RunPlannedQty && ep.LPIRequired:
		if err := e.transition(l, StatusCycleStarted, StatusCycleCompletedPendingLPI, "last piece to inspection"); err != nil {
			return nil, err
		}
	case done >= l.RunPlannedQty:
		if err := e.transition(l, StatusCycleStarted, StatusClosed, "plan complete, no LPI required"); err != nil {
			return nil, err
		}
		if err := e.db.CloseProductionLog(logID); err != nil {
			return nil, err
		}
	default:
		// Loop within the run: quantity moved, status unchanged.
	}
	return e.db.GetProductionLog(logID)
}

// CyclePause parks a running cycle and, when a downtime category is
// given, books the stoppage against the log.
func (e *Engine) CyclePause(logID int64, category string, minutes float64, notedBy string) (*store.ProductionLog, error) {
	unlock := e.locks.Lock(LogKey(logID))
	defer unlock()

	l, err := e.getLog(logID)
	if err != nil {
		return nil, err
	}
	if Status(l.CurrentStatus) != StatusCycleStarted {
		return nil, Reject(KindInvalidTransition, "cannot pause from %s", l.CurrentStatus)
	}
	if err := e.transition(l, StatusCycleStarted, StatusCyclePaused, category); err != nil {
		return nil, err
	}
	if category != "" {
		if err := e.logDowntime(l, category, minutes, notedBy); err != nil {
			return nil, err
		}
	}
	return e.db.GetProductionLog(logID)
}

// LogDowntime books downtime against a log outside of a pause, e.g. a
// tool change noted after the fact.
func (e *Engine) LogDowntime(logID int64, category string, minutes float64, notedBy string) error {
	unlock := e.locks.Lock(LogKey(logID))
	defer unlock()

	l, err := e.getLog(logID)
	if err != nil {
		return err
	}
	return e.logDowntime(l, category, minutes, notedBy)
}

func (e *Engine) logDowntime(l *store.ProductionLog, category string, minutes float64, notedBy string) error {
	if !store.ValidDowntimeCategory(category) {
		return Reject(KindBadRequest, "unknown downtime category %q", category)
	}
	entry := &store.DowntimeEntry{LogID: l.ID, Category: category, Minutes: minutes, NotedBy: notedBy}
	if err := e.db.AddDowntime(entry); err != nil {
		return err
	}
	e.emitter.DowntimeLogged(entry)
	return nil
}

// CancelLog abandons a log from any non-terminal status except
// lpi_completed, which already passed inspection and can only be closed.
// A hold the log imposed is released; the abandoned first piece is the
// inspector's problem no longer.
func (e *Engine) CancelLog(logID int64, actor, reason string) (*store.ProductionLog, error) {
	return e.closeOut(logID, StatusCancelled, actor, reason)
}

// CloseLog is the operator close after last-piece inspection.
func (e *Engine) CloseLog(logID int64) (*store.ProductionLog, error) {
	unlock := e.locks.Lock(LogKey(logID))
	defer unlock()

	l, err := e.getLog(logID)
	if err != nil {
		return nil, err
	}
	if Status(l.CurrentStatus) != StatusLPICompleted {
		return nil, Reject(KindInvalidTransition, "cannot close from %s", l.CurrentStatus)
	}
	if err := e.transition(l, StatusLPICompleted, StatusClosed, ""); err != nil {
		return nil, err
	}
	if err := e.db.CloseProductionLog(logID); err != nil {
		return nil, err
	}
	if l.SourceReworkItemID != nil {
		if err := e.db.UpdateReworkStatus(*l.SourceReworkItemID, store.ReworkInProgress, store.ReworkCompleted); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		e.logf("workflow: rework item %d completed by log %d", *l.SourceReworkItemID, logID)
	}
	return e.db.GetProductionLog(logID)
}

// CloseSpecificLog force-closes one log from any non-terminal status.
// Supervisor action; the closure is recorded as admin_closed.
func (e *Engine) CloseSpecificLog(logID int64, actor, reason string) (*store.ProductionLog, error) {
	return e.closeOut(logID, StatusAdminClosed, actor, reason)
}

// CloseAllActiveLogs force-closes every open log, typically at shift
// change after an outage. Runs that already passed last-piece inspection
// close normally; already-terminal logs are skipped.
func (e *Engine) CloseAllActiveLogs(actor, reason string) (int, error) {
	open, err := e.db.ListOpenLogs()
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, l := range open {
		switch {
		case IsTerminal(Status(l.CurrentStatus)):
			// Terminal but not yet stamped closed; just stamp it.
			if err := e.db.CloseProductionLog(l.ID); err != nil {
				return closed, err
			}
			continue
		case Status(l.CurrentStatus) == StatusLPICompleted:
			// Already inspected: a finished run, not an abandoned one. The
			// normal close keeps its rework item completed.
			if _, err := e.CloseLog(l.ID); err != nil {
				return closed, err
			}
		default:
			if _, err := e.closeOut(l.ID, StatusAdminClosed, actor, reason); err != nil {
				return closed, err
			}
		}
		closed++
	}
	e.logf("workflow: admin-closed %d active logs (%s)", closed, actor)
	return closed, nil
}

func (e *Engine) closeOut(logID int64, terminal Status, actor, reason string) (*store.ProductionLog, error) {
	unlock := e.locks.Lock(LogKey(logID))
	defer unlock()

	l, err := e.getLog(logID)
	if err != nil {
		return nil, err
	}
	from := Status(l.CurrentStatus)
	if IsTerminal(from) {
		return nil, Reject(KindInvalidTransition, "log %d already %s", logID, from)
	}
	if from == StatusLPICompleted {
		return nil, Reject(KindInvalidTransition, "log %d passed final inspection; close it instead", logID)
	}
	detail := reason
	if actor != "" {
		detail = fmt.Sprintf("%s (by %s)", reason, actor)
	}
	if err := e.transition(l, from, terminal, detail); err != nil {
		return nil, err
	}
	if err := e.db.CloseProductionLog(logID); err != nil {
		return nil, err
	}

	// A rework run that dies before completing returns its item to the
	// approved pool for another attempt.
	if l.SourceReworkItemID != nil {
		if err := e.db.UpdateReworkStatus(*l.SourceReworkItemID, store.ReworkInProgress, store.ReworkApproved); err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, err
			}
		} else {
			if err := e.db.UnassignReworkLog(*l.SourceReworkItemID); err != nil {
				return nil, err
			}
			e.logf("workflow: rework item %d released, log %d closed as %s", *l.SourceReworkItemID, logID, terminal)
		}
	}

	// Release a hold this log imposed so the drawing is not blocked by a
	// run that will never be inspected.
	unlockDrawing := e.locks.Lock(DrawingKey(l.DrawingID))
	defer unlockDrawing()
	if blockingLog, held, err := e.holds.Held(l.DrawingID); err != nil {
		return nil, err
	} else if held && blockingLog == l.ID {
		if err := e.holds.Clear(l.DrawingID, l.ID); err != nil {
			return nil, err
		}
		if err := e.db.SetLogHoldFlag(l.ID, false); err != nil {
			return nil, err
		}
		e.logf("workflow: hold on drawing %d released, blocking log %d closed as %s", l.DrawingID, l.ID, terminal)
		e.emitter.HoldChanged(l.DrawingID, l.ID, false)
	}
	return e.db.GetProductionLog(logID)
}

func (e *Engine) raiseHold(drawingID, logID int64) error {
	if err := e.holds.Set(drawingID, logID); err != nil {
		return err
	}
	if err := e.db.SetLogHoldFlag(logID, true); err != nil {
		return err
	}
	e.logf("workflow: hold raised on drawing %d by log %d", drawingID, logID)
	e.emitter.HoldChanged(drawingID, logID, true)
	return nil
}

// transition applies a validated status move and emits it. The store's
// compare-and-set catches writers racing past the keyed lock (e.g. an
// admin close from another path).
func (e *Engine) transition(l *store.ProductionLog, from, to Status, detail string) error {
	if !CanTransition(from, to) {
		return Reject(KindInvalidTransition, "%s -> %s is not a legal move", from, to)
	}
	if err := e.db.UpdateLogStatus(l.ID, string(from), string(to), detail); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Reject(KindInvalidTransition, "log %d moved out of %s concurrently", l.ID, from)
		}
		return err
	}
	e.logf("workflow: log %d %s -> %s %s", l.ID, from, to, detail)
	fresh := *l
	fresh.CurrentStatus = string(to)
	e.emitter.LogTransition(&fresh, from, to, detail)
	return nil
}

func (e *Engine) getLog(logID int64) (*store.ProductionLog, error) {
	l, err := e.db.GetProductionLog(logID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, Reject(KindNotFound, "log %d not found", logID)
		}
		return nil, err
	}
	return l, nil
}

func (e *Engine) checkMachineHealthy(machineID int64) error {
	m, err := e.db.GetMachine(machineID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Reject(KindNotFound, "machine %d not found", machineID)
		}
		return err
	}
	if !m.Active {
		return Reject(KindMachineDown, "machine %s is deactivated", m.Name)
	}
	if m.Status == store.MachineBreakdown {
		return Reject(KindMachineDown, "machine %s is broken down", m.Name)
	}
	return nil
}
