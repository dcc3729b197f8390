package engine

import (
	"context"
	"log"
	"time"

	"chipsight/config"
	"chipsight/holdstate"
	"chipsight/messaging"
	"chipsight/oee"
	"chipsight/quality"
	"chipsight/rework"
	"chipsight/store"
	"chipsight/workflow"
)

type LogFunc func(format string, args ...any)

// source tag stamped on everything the engine publishes.
const sourceCore = "chipsight-core"

type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	DB         *store.DB
	Holds      *holdstate.Manager
	MsgClient  *messaging.Client
	LogFunc    LogFunc
	Debug      bool
}

// Engine owns the shop-floor state machines and the event plumbing
// around them. The workflow engine, quality gate, and rework queue all
// share one lock set, and report through the event bus; subscribers
// turn events into audit rows and outbox messages.
type Engine struct {
	cfg          *config.Config
	configPath   string
	db           *store.DB
	holds        *holdstate.Manager
	msgClient    *messaging.Client
	locks        *workflow.LockSet
	workflow     *workflow.Engine
	quality      *quality.Gate
	rework       *rework.Queue
	Events       *EventBus
	logFn        LogFunc
	stopChan     chan struct{}
	msgConnected bool
}

func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	e := &Engine{
		cfg:        c.AppConfig,
		configPath: c.ConfigPath,
		db:         c.DB,
		holds:      c.Holds,
		msgClient:  c.MsgClient,
		Events:     NewEventBus(),
		logFn:      logFn,
		stopChan:   make(chan struct{}),
	}

	locks := workflow.NewLockSet()
	e.locks = locks
	e.workflow = workflow.New(c.DB, c.Holds, locks, &workflowEmitter{bus: e.Events})
	e.quality = quality.NewGate(c.DB, c.Holds, locks, &qualityEmitter{bus: e.Events})
	e.rework = rework.NewQueue(c.DB, &reworkEmitter{bus: e.Events})
	if c.LogFunc != nil {
		e.workflow.SetLogFunc(c.LogFunc)
		e.quality.SetLogFunc(c.LogFunc)
		e.rework.SetLogFunc(c.LogFunc)
	}
	return e
}

func (e *Engine) Start() {
	// Wire event handlers
	e.wireEventHandlers()

	// The Redis hold mirror may be stale after a restart; rebuild it
	// from the SQL rows before anything reads it.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := e.holds.Rebuild(ctx); err != nil {
		e.logFn("engine: rebuild hold mirror: %v", err)
	}
	cancel()

	// Emit initial connection status
	e.checkConnectionStatus()

	// Start periodic connection health check
	go e.connectionHealthLoop()

	e.logFn("engine: started")
}

func (e *Engine) Stop() {
	select {
	case e.stopChan <- struct{}{}:
	default:
	}
	e.logFn("engine: stopped")
}

// Accessors
func (e *Engine) DB() *store.DB                { return e.db }
func (e *Engine) AppConfig() *config.Config    { return e.cfg }
func (e *Engine) ConfigPath() string           { return e.configPath }
func (e *Engine) Workflow() *workflow.Engine   { return e.workflow }
func (e *Engine) Quality() *quality.Gate       { return e.quality }
func (e *Engine) Rework() *rework.Queue        { return e.rework }
func (e *Engine) Holds() *holdstate.Manager    { return e.holds }
func (e *Engine) MsgClient() *messaging.Client { return e.msgClient }

func (e *Engine) checkConnectionStatus() {
	if e.msgClient == nil {
		return
	}
	if e.msgClient.IsConnected() {
		if !e.msgConnected {
			e.msgConnected = true
			e.Events.Emit(Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: "messaging connected"}})
		}
	} else {
		if e.msgConnected {
			e.msgConnected = false
			e.Events.Emit(Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: "messaging disconnected"}})
		}
	}
}

func (e *Engine) connectionHealthLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.checkConnectionStatus()
		}
	}
}

// ReconfigureMessaging reconnects messaging with current config.
func (e *Engine) ReconfigureMessaging() {
	if e.msgClient == nil {
		return
	}
	if err := e.msgClient.Reconfigure(&e.cfg.Messaging); err != nil {
		e.logFn("engine: messaging reconfigure error: %v", err)
	} else {
		e.logFn("engine: messaging reconfigured")
	}
	e.checkConnectionStatus()
}

// --- Inbound commands from the plant bus ---

// HandleBreakdownCommand lets a maintenance system report or clear a
// breakdown without touching the operator UI.
func (e *Engine) HandleBreakdownCommand(env *messaging.Envelope, cmd messaging.BreakdownCommand) {
	switch cmd.Action {
	case "report":
		if err := e.workflow.ReportBreakdown(cmd.MachineID, nil, cmd.Notes); err != nil {
			e.logFn("engine: breakdown report for machine %d from %s: %v", cmd.MachineID, env.Source, err)
		}
	case "clear":
		if err := e.workflow.MarkHealthy(cmd.MachineID); err != nil {
			e.logFn("engine: breakdown clear for machine %d from %s: %v", cmd.MachineID, env.Source, err)
		}
	default:
		e.logFn("engine: unknown breakdown action %q from %s", cmd.Action, env.Source)
	}
}

// HandleShiftCloseCommand closes every open production log, typically
// fired by a scheduler at shift end.
func (e *Engine) HandleShiftCloseCommand(env *messaging.Envelope, cmd messaging.ShiftCloseCommand) {
	actor := cmd.Actor
	if actor == "" {
		actor = env.Source
	}
	n, err := e.workflow.CloseAllActiveLogs(actor, cmd.Reason)
	if err != nil {
		e.logFn("engine: shift close from %s: %v", env.Source, err)
		return
	}
	e.logFn("engine: shift close from %s closed %d log(s)", env.Source, n)
}

// --- OEE ---

// ComputeOEE assembles the OEE input for one production run from stored
// timings and counts. Breakdown minutes overlapping the run count as
// unplanned downtime on top of the operator-booked entries.
func (e *Engine) ComputeOEE(logID int64) (*oee.Result, error) {
	l, err := e.db.GetProductionLog(logID)
	if err != nil {
		return nil, err
	}
	ep, err := e.db.EndProductForDrawing(l.DrawingID)
	if err != nil {
		return nil, err
	}

	planned, err := e.db.SumDowntimeMinutes(logID, store.PlannedDowntimeCategories)
	if err != nil {
		return nil, err
	}
	unplanned, err := e.db.SumDowntimeMinutes(logID, []string{
		store.DowntimeToolChange, store.DowntimeInspectionWait, store.DowntimeMinorStoppage,
	})
	if err != nil {
		return nil, err
	}

	from := l.CreatedAt
	to := time.Now()
	if l.ClosedAt != nil {
		to = *l.ClosedAt
	}
	breakdowns, err := e.db.ListBreakdownsOverlapping(l.MachineID, from, to)
	if err != nil {
		return nil, err
	}
	for _, b := range breakdowns {
		unplanned += overlapMinutes(b.StartTime, b.EndTime, from, to)
	}

	var runTime float64
	if l.FirstCycleStartTime != nil && l.LastCycleEndTime != nil {
		runTime = l.LastCycleEndTime.Sub(*l.FirstCycleStartTime).Minutes()
	}

	good := l.RunCompletedQty - l.RunRejectedQtyFPI - l.RunRejectedQtyLPI
	if good < 0 {
		good = 0
	}

	r := oee.Compute(oee.Input{
		ShiftMinutes:             float64(e.cfg.Plant.ShiftMinutes),
		PlannedDowntimeMinutes:   planned,
		UnplannedDowntimeMinutes: unplanned,
		RunTimeMinutes:           runTime,
		IdealCycleTimeMinutes:    ep.CycleTimeStd,
		TotalCount:               l.RunCompletedQty,
		GoodCount:                good,
	})
	for _, w := range r.Warnings {
		e.logFn("engine: oee warning for log %d: %s", logID, w)
	}
	return &r, nil
}

// overlapMinutes measures how much of [start, end] falls inside
// [from, to]. A nil end means the breakdown is still open.
func overlapMinutes(start time.Time, end *time.Time, from, to time.Time) float64 {
	e := to
	if end != nil && end.Before(to) {
		e = *end
	}
	s := start
	if s.Before(from) {
		s = from
	}
	if !e.After(s) {
		return 0
	}
	return e.Sub(s).Minutes()
}
