package engine

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"chipsight/config"
	"chipsight/holdstate"
	"chipsight/messaging"
	"chipsight/quality"
	"chipsight/store"
	"chipsight/workflow"
)

func testEngine(t *testing.T) (*Engine, *store.DB) {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	holds := holdstate.New(db, nil)
	holds.SetLogFunc(t.Logf)
	e := New(Config{
		AppConfig: config.Defaults(),
		DB:        db,
		Holds:     holds,
		LogFunc:   t.Logf,
	})
	// Wire handlers without Start so no health-check goroutine runs.
	e.wireEventHandlers()
	return e, db
}

func seedRun(t *testing.T, db *store.DB, qty int64, fpi, lpi bool) (drawingID, machineID, sessionID int64) {
	t.Helper()
	p := &store.Project{ProjectCode: "PRJ-E", ProjectName: "Engine Test"}
	if err := db.CreateProject(p); err != nil {
		t.Fatal(err)
	}
	ep := &store.EndProduct{ProjectID: p.ID, Name: "Part E", SAPID: "SAP-E",
		Quantity: qty, CycleTimeStd: 10, FPIRequired: fpi, LPIRequired: lpi}
	if err := db.CreateEndProduct(ep); err != nil {
		t.Fatal(err)
	}
	d := &store.Drawing{DrawingNumber: "DWG-E", SAPID: "SAP-E"}
	if err := db.CreateDrawing(d); err != nil {
		t.Fatal(err)
	}
	m := &store.Machine{Name: "VMC-E", Active: true}
	if err := db.CreateMachine(m); err != nil {
		t.Fatal(err)
	}
	s := &store.OperatorSession{OperatorName: "op-e", MachineID: m.ID, Shift: "A"}
	if err := db.CreateOperatorSession(s); err != nil {
		t.Fatal(err)
	}
	return d.ID, m.ID, s.ID
}

func TestRunWritesAuditAndOutbox(t *testing.T) {
	e, db := testEngine(t)
	drawing, _, session := seedRun(t, db, 3, false, false)

	l, err := e.Workflow().StartSetup(session, drawing, "B-E1")
	if err != nil {
		t.Fatalf("start setup: %v", err)
	}
	if _, err := e.Workflow().SetupDone(l.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Workflow().CycleStart(l.ID); err != nil {
		t.Fatal(err)
	}
	got, err := e.Workflow().CycleComplete(l.ID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if workflow.Status(got.CurrentStatus) != workflow.StatusClosed {
		t.Fatalf("status = %s, want closed", got.CurrentStatus)
	}

	audit, err := db.ListEntityAudit("log", l.ID)
	if err != nil {
		t.Fatal(err)
	}
	// created + three transitions (setup_done, cycle_started, closed).
	if len(audit) != 4 {
		t.Errorf("audit rows = %d, want 4", len(audit))
	}

	msgs, err := db.ListPendingOutbox(50)
	if err != nil {
		t.Fatal(err)
	}
	var transitions, machineStatus int
	for _, m := range msgs {
		if m.Topic != e.cfg.Messaging.TransitionsTopic {
			t.Errorf("topic = %s", m.Topic)
		}
		switch m.MsgType {
		case messaging.TypeLogTransition:
			transitions++
			env, err := messaging.DecodeEnvelope(m.Payload)
			if err != nil {
				t.Fatalf("decode outbox payload: %v", err)
			}
			msg, ok := env.Payload.(messaging.LogTransitionMsg)
			if !ok {
				t.Fatalf("payload type = %T", env.Payload)
			}
			if msg.LogID != l.ID {
				t.Errorf("log_id = %d, want %d", msg.LogID, l.ID)
			}
		case messaging.TypeMachineStatus:
			machineStatus++
		default:
			t.Errorf("unexpected msg_type %s", m.MsgType)
		}
	}
	if transitions != 3 {
		t.Errorf("transition messages = %d, want 3", transitions)
	}
	// in_use when setup opened, available when the run closed.
	if machineStatus != 2 {
		t.Errorf("machine status messages = %d, want 2", machineStatus)
	}
}

func TestQualityEventsRouteToQualityTopic(t *testing.T) {
	e, db := testEngine(t)
	drawing, _, session := seedRun(t, db, 2, true, false)

	l, err := e.Workflow().StartSetup(session, drawing, "B-E2")
	if err != nil {
		t.Fatal(err)
	}
	e.Workflow().SetupDone(l.ID)
	e.Workflow().CycleStart(l.ID)
	if _, err := e.Workflow().CycleComplete(l.ID, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Quality().RecordFPI(l.ID, quality.FPIResult{Inspector: "insp-e", Pass: true}); err != nil {
		t.Fatalf("record FPI: %v", err)
	}

	msgs, err := db.ListPendingOutbox(50)
	if err != nil {
		t.Fatal(err)
	}
	var qualityMsgs int
	for _, m := range msgs {
		if m.Topic == e.cfg.Messaging.QualityTopic {
			qualityMsgs++
			if m.MsgType != messaging.TypeQualityCheck {
				t.Errorf("msg_type = %s", m.MsgType)
			}
		}
	}
	if qualityMsgs != 1 {
		t.Errorf("quality topic messages = %d, want 1", qualityMsgs)
	}
}

func TestHoldLiftsAfterFirstPieceRepass(t *testing.T) {
	e, db := testEngine(t)
	drawing, _, session := seedRun(t, db, 4, true, false)
	m2 := &store.Machine{Name: "VMC-E5", Active: true}
	if err := db.CreateMachine(m2); err != nil {
		t.Fatal(err)
	}
	s2 := &store.OperatorSession{OperatorName: "op-e5", MachineID: m2.ID, Shift: "A"}
	if err := db.CreateOperatorSession(s2); err != nil {
		t.Fatal(err)
	}

	a, err := e.Workflow().StartSetup(session, drawing, "B-A")
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Workflow().StartSetup(s2.ID, drawing, "B-B")
	if err != nil {
		t.Fatal(err)
	}
	e.Workflow().SetupDone(b.ID)

	e.Workflow().SetupDone(a.ID)
	e.Workflow().CycleStart(a.ID)
	if _, err := e.Workflow().CycleComplete(a.ID, 1); err != nil {
		t.Fatal(err)
	}

	// The parked first piece holds the whole drawing.
	_, err = e.Workflow().CycleStart(b.ID)
	if workflow.KindOf(err) != workflow.KindDrawingHeld {
		t.Fatalf("cycle start err = %v, want drawing held", err)
	}

	// A failed verdict keeps the hold up.
	if _, err := e.Quality().RecordFPI(a.ID, quality.FPIResult{Inspector: "insp-e", Pass: false, RejectionReason: "oversize"}); err != nil {
		t.Fatal(err)
	}
	_, err = e.Workflow().CycleStart(b.ID)
	if workflow.KindOf(err) != workflow.KindDrawingHeld {
		t.Fatalf("cycle start after fail err = %v, want drawing held", err)
	}

	// The re-measure pass releases it and the second run proceeds.
	if _, err := e.Quality().RecordFPI(a.ID, quality.FPIResult{Inspector: "insp-e", Pass: true}); err != nil {
		t.Fatalf("re-pass: %v", err)
	}
	if _, err := e.Workflow().CycleStart(b.ID); err != nil {
		t.Fatalf("cycle start after re-pass: %v", err)
	}
}

func TestBreakdownCommand(t *testing.T) {
	e, db := testEngine(t)
	_, machine, _ := seedRun(t, db, 1, false, false)

	env := &messaging.Envelope{Source: "maintenance-system"}
	e.HandleBreakdownCommand(env, messaging.BreakdownCommand{
		MachineID: machine, Action: "report", Notes: "coolant leak",
	})
	m, err := db.GetMachine(machine)
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != store.MachineBreakdown {
		t.Fatalf("status = %s, want breakdown", m.Status)
	}

	e.HandleBreakdownCommand(env, messaging.BreakdownCommand{MachineID: machine, Action: "clear"})
	m, _ = db.GetMachine(machine)
	if m.Status != store.MachineAvailable {
		t.Errorf("status = %s, want available", m.Status)
	}
}

func TestShiftCloseCommand(t *testing.T) {
	e, db := testEngine(t)
	drawing, _, session := seedRun(t, db, 5, false, false)

	l, err := e.Workflow().StartSetup(session, drawing, "B-E3")
	if err != nil {
		t.Fatal(err)
	}
	e.HandleShiftCloseCommand(&messaging.Envelope{Source: "shift-scheduler"},
		messaging.ShiftCloseCommand{Actor: "scheduler", Reason: "end of shift"})

	got, _ := db.GetProductionLog(l.ID)
	if !workflow.IsTerminal(workflow.Status(got.CurrentStatus)) {
		t.Errorf("status = %s, want terminal", got.CurrentStatus)
	}
}

func TestComputeOEE(t *testing.T) {
	e, db := testEngine(t)
	drawing, _, session := seedRun(t, db, 2, false, false)

	l, err := e.Workflow().StartSetup(session, drawing, "B-E4")
	if err != nil {
		t.Fatal(err)
	}
	e.Workflow().SetupDone(l.ID)
	e.Workflow().CycleStart(l.ID)
	if _, err := e.Workflow().CycleComplete(l.ID, 2); err != nil {
		t.Fatal(err)
	}
	if err := db.AddDowntime(&store.DowntimeEntry{LogID: l.ID, Category: store.DowntimeLunch, Minutes: 30, NotedBy: "op-e"}); err != nil {
		t.Fatal(err)
	}
	if err := db.AddDowntime(&store.DowntimeEntry{LogID: l.ID, Category: store.DowntimeToolChange, Minutes: 15, NotedBy: "op-e"}); err != nil {
		t.Fatal(err)
	}

	r, err := e.ComputeOEE(l.ID)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	// 480 shift - 30 planned = 450; 450 - 15 unplanned = 435.
	if want := 435.0 / 450.0; !near(r.Availability, want) {
		t.Errorf("availability = %v, want %v", r.Availability, want)
	}
	// No rejections, so every produced piece is good.
	if r.Quality != 1 {
		t.Errorf("quality = %v, want 1", r.Quality)
	}
	if r.OEE < 0 || r.OEE > 1 {
		t.Errorf("oee = %v out of range", r.OEE)
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded["availability"]; !ok {
		t.Error("availability missing from JSON")
	}
}

func near(got, want float64) bool {
	d := got - want
	return d > -1e-9 && d < 1e-9
}
