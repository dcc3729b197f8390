// Package workflow drives the production log state machine: one log per
// machining run, moved through setup, first-piece inspection, cycling and
// close-out. All shop-floor actions funnel through Engine so the machine
// exclusivity and drawing hold rules hold under concurrent operators.
package workflow

// Status is the lifecycle state of a production log.
type Status string

const (
	StatusSetupStarted             Status = "setup_started"
	StatusSetupDone                Status = "setup_done"
	StatusCycleStarted             Status = "cycle_started"
	StatusCyclePaused              Status = "cycle_paused"
	StatusCycleCompletedPendingFPI Status = "cycle_completed_pending_fpi"
	StatusFPIPassedReadyForCycle   Status = "fpi_passed_ready_for_cycle"
	StatusFPIFailedSetupPending    Status = "fpi_failed_setup_pending"
	StatusCycleCompletedPendingLPI Status = "cycle_completed_pending_lpi"
	StatusLPICompleted             Status = "lpi_completed"
	StatusClosed                   Status = "closed"
	StatusCancelled                Status = "cancelled"
	StatusAdminClosed              Status = "admin_closed"
)

// transitions is the closed set of legal moves. Terminal statuses have no
// outgoing edges. cancelled/admin_closed edges are added uniformly below.
var transitions = map[Status][]Status{
	StatusSetupStarted:             {StatusSetupDone},
	StatusSetupDone:                {StatusCycleStarted},
	StatusCycleStarted:             {StatusCyclePaused, StatusCycleCompletedPendingFPI, StatusCycleCompletedPendingLPI, StatusClosed},
	StatusCyclePaused:              {StatusCycleStarted},
	StatusCycleCompletedPendingFPI: {StatusFPIPassedReadyForCycle, StatusFPIFailedSetupPending},
	StatusFPIFailedSetupPending:    {StatusSetupDone, StatusFPIPassedReadyForCycle},
	StatusFPIPassedReadyForCycle:   {StatusCycleStarted},
	StatusCycleCompletedPendingLPI: {StatusLPICompleted},
	StatusLPICompleted:             {StatusClosed},
}

// CanTransition reports whether from -> to is a legal move. Any
// non-terminal status may be cancelled or admin-closed, except
// lpi_completed: that run passed its final inspection, so the only move
// left is the operator close.
func CanTransition(from, to Status) bool {
	if IsTerminal(from) {
		return false
	}
	if to == StatusCancelled || to == StatusAdminClosed {
		return from != StatusLPICompleted
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsTerminal(s Status) bool {
	switch s {
	case StatusClosed, StatusCancelled, StatusAdminClosed:
		return true
	}
	return false
}

// ProductionActiveStatuses are the statuses in which a log owns its
// machine: at most one log per machine may be in any of these. Logs
// parked waiting on an inspector do not block the machine.
var ProductionActiveStatuses = []Status{
	StatusSetupStarted,
	StatusSetupDone,
	StatusCycleStarted,
	StatusCyclePaused,
	StatusFPIPassedReadyForCycle,
}

func IsProductionActive(s Status) bool {
	for _, a := range ProductionActiveStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// productionActiveStrings is the store-facing form of the exclusivity set.
func productionActiveStrings() []string {
	out := make([]string, len(ProductionActiveStatuses))
	for i, s := range ProductionActiveStatuses {
		out[i] = string(s)
	}
	return out
}

// ValidStatus reports whether s is in the closed status vocabulary.
func ValidStatus(s Status) bool {
	if IsTerminal(s) {
		return true
	}
	_, ok := transitions[s]
	return ok
}
