package quality

import (
	"path/filepath"
	"testing"

	"chipsight/config"
	"chipsight/holdstate"
	"chipsight/store"
	"chipsight/workflow"
)

type fixture struct {
	db      *store.DB
	gate    *Gate
	engine  *workflow.Engine
	holds   *holdstate.Manager
	drawing int64
	machine int64
	session int64
}

func newFixture(t *testing.T, qty int64, fpi, lpi bool) *fixture {
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
	locks := workflow.NewLockSet()
	eng := workflow.New(db, holds, locks, nil)
	eng.SetLogFunc(t.Logf)
	gate := NewGate(db, holds, locks, nil)
	gate.SetLogFunc(t.Logf)

	p := &store.Project{ProjectCode: "PRJ-Q", ProjectName: "Quality Test"}
	if err := db.CreateProject(p); err != nil {
		t.Fatal(err)
	}
	ep := &store.EndProduct{ProjectID: p.ID, Name: "Part Q", SAPID: "SAP-Q",
		Quantity: qty, FPIRequired: fpi, LPIRequired: lpi}
	if err := db.CreateEndProduct(ep); err != nil {
		t.Fatal(err)
	}
	d := &store.Drawing{DrawingNumber: "DWG-Q", SAPID: "SAP-Q"}
	if err := db.CreateDrawing(d); err != nil {
		t.Fatal(err)
	}
	m := &store.Machine{Name: "VMC-Q", Active: true}
	if err := db.CreateMachine(m); err != nil {
		t.Fatal(err)
	}
	s := &store.OperatorSession{OperatorName: "op-q", MachineID: m.ID, Shift: "A"}
	if err := db.CreateOperatorSession(s); err != nil {
		t.Fatal(err)
	}
	return &fixture{db: db, gate: gate, engine: eng, holds: holds,
		drawing: d.ID, machine: m.ID, session: s.ID}
}

// toFirstPiece drives a fresh log up to cycle_completed_pending_fpi.
func (f *fixture) toFirstPiece(t *testing.T) *store.ProductionLog {
	t.Helper()
	l, err := f.engine.StartSetup(f.session, f.drawing, "B-Q")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.SetupDone(l.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.CycleStart(l.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.CycleComplete(l.ID, 1); err != nil {
		t.Fatal(err)
	}
	got, err := f.db.GetProductionLog(l.ID)
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func TestFPIPassReleasesHoldAndReadiesCycle(t *testing.T) {
	f := newFixture(t, 5, true, true)
	l := f.toFirstPiece(t)

	if _, held, _ := f.holds.Held(f.drawing); !held {
		t.Fatal("hold should be up before the verdict")
	}

	qc, err := f.gate.RecordFPI(l.ID, FPIResult{Inspector: "insp-1", Pass: true})
	if err != nil {
		t.Fatalf("record FPI: %v", err)
	}
	if qc.Result != store.ResultPass || qc.QuantityInspected != 1 {
		t.Errorf("check = %+v", qc)
	}

	got, _ := f.db.GetProductionLog(l.ID)
	if workflow.Status(got.CurrentStatus) != workflow.StatusFPIPassedReadyForCycle {
		t.Errorf("status = %s", got.CurrentStatus)
	}
	if got.FPIStatus != store.ResultPass {
		t.Errorf("fpi_status = %s", got.FPIStatus)
	}
	if got.ProductionHoldFPI {
		t.Error("hold flag should be cleared")
	}
	if _, held, _ := f.holds.Held(f.drawing); held {
		t.Error("drawing hold should be released on pass")
	}

	// Cycling resumes and runs to the LPI gate.
	if _, err := f.engine.CycleStart(l.ID); err != nil {
		t.Fatalf("cycle after pass: %v", err)
	}
	got, err = f.engine.CycleComplete(l.ID, 4)
	if err != nil {
		t.Fatal(err)
	}
	if workflow.Status(got.CurrentStatus) != workflow.StatusCycleCompletedPendingLPI {
		t.Errorf("status = %s, want pending LPI", got.CurrentStatus)
	}
}

func TestFPIFailSendsBackToSetupAndKeepsHold(t *testing.T) {
	f := newFixture(t, 5, true, true)
	l := f.toFirstPiece(t)

	qc, err := f.gate.RecordFPI(l.ID, FPIResult{
		Inspector: "insp-1", Pass: false,
		RejectionReason: "bore undersize", Disposition: DispositionRework,
	})
	if err != nil {
		t.Fatalf("record FPI: %v", err)
	}
	if qc.QuantityRejected != 1 || qc.QuantityToRework != 1 {
		t.Errorf("check = %+v", qc)
	}

	got, _ := f.db.GetProductionLog(l.ID)
	if workflow.Status(got.CurrentStatus) != workflow.StatusFPIFailedSetupPending {
		t.Errorf("status = %s", got.CurrentStatus)
	}
	if got.FPIStatus != store.ResultFail {
		t.Errorf("fpi_status = %s", got.FPIStatus)
	}
	if got.RunRejectedQtyFPI != 1 {
		t.Errorf("rejected fpi = %d", got.RunRejectedQtyFPI)
	}
	if _, held, _ := f.holds.Held(f.drawing); !held {
		t.Error("hold must stay up after a fail")
	}

	// The rejected piece is queued for manager approval.
	items, _ := f.db.ListReworkByStatus(store.ReworkPendingApproval)
	if len(items) != 1 || items[0].SourceLogID != l.ID {
		t.Fatalf("rework queue = %+v", items)
	}

	// Inspector can reverse the verdict without a re-cut.
	if _, err := f.gate.RecordFPI(l.ID, FPIResult{Inspector: "insp-2", Pass: true}); err != nil {
		t.Fatalf("re-inspect: %v", err)
	}
	got, _ = f.db.GetProductionLog(l.ID)
	if workflow.Status(got.CurrentStatus) != workflow.StatusFPIPassedReadyForCycle {
		t.Errorf("status after reversal = %s", got.CurrentStatus)
	}
	if _, held, _ := f.holds.Held(f.drawing); held {
		t.Error("hold should drop on the reversed pass")
	}
}

func TestFPIFailThenCorrectiveResetup(t *testing.T) {
	f := newFixture(t, 5, true, false)
	l := f.toFirstPiece(t)

	if _, err := f.gate.RecordFPI(l.ID, FPIResult{Inspector: "insp-1", Pass: false,
		RejectionReason: "face runout", Disposition: DispositionScrap}); err != nil {
		t.Fatal(err)
	}
	scrap, _ := f.db.ListScrapByDrawing(f.drawing)
	if len(scrap) != 1 || scrap[0].QuantityScrapped != 1 {
		t.Fatalf("scrap = %+v", scrap)
	}

	// Corrective loop: re-setup, cut another first piece, pass it.
	if _, err := f.engine.SetupDone(l.ID); err != nil {
		t.Fatalf("re-setup: %v", err)
	}
	if _, err := f.engine.CycleStart(l.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.CycleComplete(l.ID, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := f.gate.RecordFPI(l.ID, FPIResult{Inspector: "insp-1", Pass: true}); err != nil {
		t.Fatalf("second FPI: %v", err)
	}
	got, _ := f.db.GetProductionLog(l.ID)
	if got.FPIStatus != store.ResultPass {
		t.Errorf("fpi_status = %s", got.FPIStatus)
	}
}

func TestFPIRejectedWhenNothingPending(t *testing.T) {
	f := newFixture(t, 5, true, true)
	l, err := f.engine.StartSetup(f.session, f.drawing, "B-Q")
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.gate.RecordFPI(l.ID, FPIResult{Inspector: "insp-1", Pass: true})
	if workflow.KindOf(err) != workflow.KindInvalidTransition {
		t.Fatalf("err = %v, want invalid transition", err)
	}
}

func TestLPISplitsReworkAndScrap(t *testing.T) {
	f := newFixture(t, 5, false, true)

	l, _ := f.engine.StartSetup(f.session, f.drawing, "B-Q")
	f.engine.SetupDone(l.ID)
	f.engine.CycleStart(l.ID)
	got, err := f.engine.CycleComplete(l.ID, 5)
	if err != nil {
		t.Fatal(err)
	}
	if workflow.Status(got.CurrentStatus) != workflow.StatusCycleCompletedPendingLPI {
		t.Fatalf("status = %s", got.CurrentStatus)
	}

	qc, err := f.gate.RecordLPI(l.ID, LPIResult{
		Inspector:         "insp-1",
		Pass:              false,
		QuantityInspected: 5,
		QuantityToRework:  2,
		QuantityToScrap:   1,
		RejectionReason:   "surface finish",
	})
	if err != nil {
		t.Fatalf("record LPI: %v", err)
	}
	if qc.QuantityRejected != 3 {
		t.Errorf("rejected = %d, want 3", qc.QuantityRejected)
	}

	got, _ = f.db.GetProductionLog(l.ID)
	if workflow.Status(got.CurrentStatus) != workflow.StatusLPICompleted {
		t.Errorf("status = %s, want lpi_completed", got.CurrentStatus)
	}
	if got.LPIStatus != store.ResultFail {
		t.Errorf("lpi_status = %s", got.LPIStatus)
	}
	if got.RunRejectedQtyLPI != 3 {
		t.Errorf("rejected lpi = %d", got.RunRejectedQtyLPI)
	}

	items, _ := f.db.ListReworkByStatus(store.ReworkPendingApproval)
	if len(items) != 1 || items[0].QuantityToRework != 2 {
		t.Fatalf("rework queue = %+v", items)
	}
	scrap, _ := f.db.ListScrapByDrawing(f.drawing)
	if len(scrap) != 1 || scrap[0].QuantityScrapped != 1 {
		t.Fatalf("scrap = %+v", scrap)
	}

	// The run is over either way; operator closes out.
	closed, err := f.engine.CloseLog(l.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if workflow.Status(closed.CurrentStatus) != workflow.StatusClosed {
		t.Errorf("status = %s", closed.CurrentStatus)
	}
}

func TestLPIValidation(t *testing.T) {
	f := newFixture(t, 3, false, true)

	l, _ := f.engine.StartSetup(f.session, f.drawing, "B-Q")
	f.engine.SetupDone(l.ID)
	f.engine.CycleStart(l.ID)
	if _, err := f.engine.CycleComplete(l.ID, 3); err != nil {
		t.Fatal(err)
	}

	cases := []LPIResult{
		{Inspector: "i", Pass: true, QuantityInspected: 0},
		{Inspector: "i", Pass: true, QuantityInspected: 3, QuantityToRework: 1},
		{Inspector: "i", Pass: false, QuantityInspected: 3},
		{Inspector: "i", Pass: false, QuantityInspected: 2, QuantityToRework: 2, QuantityToScrap: 1},
	}
	for i, c := range cases {
		if _, err := f.gate.RecordLPI(l.ID, c); workflow.KindOf(err) != workflow.KindBadRequest {
			t.Errorf("case %d: err = %v, want bad request", i, err)
		}
	}

	// Still pending after the bad submissions.
	got, _ := f.db.GetProductionLog(l.ID)
	if workflow.Status(got.CurrentStatus) != workflow.StatusCycleCompletedPendingLPI {
		t.Errorf("status = %s", got.CurrentStatus)
	}
}
