package workflow

import (
	"database/sql"
	"errors"

	"chipsight/store"
)

// Machine registry actions. Breakdown state is double-bookkept: the
// machines.status column for quick reads, and machine_breakdown_log for
// the history OEE availability draws on.

// ReportBreakdown flags a machine down. Reporting an already-broken
// machine is refused so the open breakdown entry keeps its start time.
func (e *Engine) ReportBreakdown(machineID int64, sessionID *int64, notes string) error {
	unlock := e.locks.Lock(MachineKey(machineID))
	defer unlock()

	m, err := e.db.GetMachine(machineID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Reject(KindNotFound, "machine %d not found", machineID)
		}
		return err
	}
	if m.Status == store.MachineBreakdown {
		return Reject(KindAlreadyBroken, "machine %s is already reported down", m.Name)
	}
	if _, err := e.db.OpenBreakdown(machineID, sessionID, notes); err != nil {
		return err
	}
	if err := e.db.UpdateMachineStatus(machineID, store.MachineBreakdown); err != nil {
		return err
	}
	e.logf("workflow: machine %s reported down: %s", m.Name, notes)
	e.emitter.MachineStatus(machineID, store.MachineBreakdown)
	return nil
}

// MarkHealthy ends a breakdown. Refused when the machine was never
// reported down, so a stray double-tap cannot fabricate repair history.
// The machine returns to in_use when a frozen production log still owns
// it, otherwise to available.
func (e *Engine) MarkHealthy(machineID int64) error {
	unlock := e.locks.Lock(MachineKey(machineID))
	defer unlock()

	m, err := e.db.GetMachine(machineID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Reject(KindNotFound, "machine %d not found", machineID)
		}
		return err
	}
	if m.Status != store.MachineBreakdown {
		return Reject(KindNotBroken, "machine %s is not reported down", m.Name)
	}
	if err := e.db.CloseBreakdown(machineID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	n, err := e.db.CountLogsInStates(machineID, productionActiveStrings())
	if err != nil {
		return err
	}
	status := store.MachineAvailable
	if n > 0 {
		status = store.MachineInUse
	}
	if err := e.db.UpdateMachineStatus(machineID, status); err != nil {
		return err
	}
	e.logf("workflow: machine %s back in service (%s)", m.Name, status)
	e.emitter.MachineStatus(machineID, status)
	return nil
}
