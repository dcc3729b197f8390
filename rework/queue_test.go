package rework

import (
	"path/filepath"
	"testing"

	"chipsight/config"
	"chipsight/store"
)

func testQueue(t *testing.T) (*Queue, *store.DB, *store.ReworkItem) {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	p := &store.Project{ProjectCode: "PRJ-R", ProjectName: "Rework Test"}
	if err := db.CreateProject(p); err != nil {
		t.Fatal(err)
	}
	ep := &store.EndProduct{ProjectID: p.ID, Name: "Part R", SAPID: "SAP-R", Quantity: 10}
	if err := db.CreateEndProduct(ep); err != nil {
		t.Fatal(err)
	}
	d := &store.Drawing{DrawingNumber: "DWG-R", SAPID: "SAP-R"}
	if err := db.CreateDrawing(d); err != nil {
		t.Fatal(err)
	}
	m := &store.Machine{Name: "VMC-R", Active: true}
	if err := db.CreateMachine(m); err != nil {
		t.Fatal(err)
	}
	s := &store.OperatorSession{OperatorName: "op-r", MachineID: m.ID}
	if err := db.CreateOperatorSession(s); err != nil {
		t.Fatal(err)
	}
	l := &store.ProductionLog{MachineID: m.ID, DrawingID: d.ID, OperatorSessionID: s.ID,
		CurrentStatus: "setup_started", RunPlannedQty: 10}
	if err := db.CreateProductionLog(l); err != nil {
		t.Fatal(err)
	}
	qc := &store.QualityCheck{LogID: l.ID, CheckType: store.CheckLPI, Result: store.ResultFail,
		QuantityInspected: 10, QuantityRejected: 3, QuantityToRework: 3, RejectionReason: "chatter marks"}
	if err := db.CreateQualityCheck(qc); err != nil {
		t.Fatal(err)
	}
	item := &store.ReworkItem{SourceLogID: l.ID, QualityCheckID: qc.ID, DrawingID: d.ID,
		QuantityToRework: 3, RejectionReason: "chatter marks"}
	if err := db.CreateReworkItem(item); err != nil {
		t.Fatal(err)
	}

	q := NewQueue(db, nil)
	q.SetLogFunc(t.Logf)
	return q, db, item
}

func TestApprove(t *testing.T) {
	q, _, item := testQueue(t)

	pending, err := q.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}

	got, err := q.Approve(item.ID, "mgr", "ok to rework")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Status != store.ReworkApproved {
		t.Errorf("status = %s", got.Status)
	}
	if got.ManagerApprovedBy != "mgr" || got.ManagerApprovalTime == nil {
		t.Errorf("approval fields = %+v", got)
	}

	// A decided item cannot be decided again.
	if _, err := q.Approve(item.ID, "mgr2", ""); err == nil {
		t.Fatal("second decision should fail")
	}

	approved, err := q.ApprovedForDrawing(item.DrawingID)
	if err != nil {
		t.Fatal(err)
	}
	if len(approved) != 1 {
		t.Errorf("approved = %d, want 1", len(approved))
	}
}

func TestDeclineScrapsThePieces(t *testing.T) {
	q, db, item := testQueue(t)

	got, err := q.Decline(item.ID, "mgr", "beyond salvage")
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if got.Status != store.ReworkRejected {
		t.Errorf("status = %s", got.Status)
	}
	scrap, err := db.ListScrapByDrawing(item.DrawingID)
	if err != nil {
		t.Fatal(err)
	}
	if len(scrap) != 1 || scrap[0].QuantityScrapped != 3 {
		t.Fatalf("scrap = %+v", scrap)
	}
}

func TestCompleteAndRelease(t *testing.T) {
	q, db, item := testQueue(t)

	if _, err := q.Approve(item.ID, "mgr", ""); err != nil {
		t.Fatal(err)
	}
	// Complete requires in_progress.
	if err := q.Complete(item.ID); err == nil {
		t.Fatal("complete from approved should fail")
	}
	if err := db.UpdateReworkStatus(item.ID, store.ReworkApproved, store.ReworkInProgress); err != nil {
		t.Fatal(err)
	}
	if err := q.Complete(item.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, _ := db.GetReworkItem(item.ID)
	if got.Status != store.ReworkCompleted {
		t.Errorf("status = %s", got.Status)
	}
}

func TestReleaseReturnsToApprovedPool(t *testing.T) {
	q, db, item := testQueue(t)

	if _, err := q.Approve(item.ID, "mgr", ""); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateReworkStatus(item.ID, store.ReworkApproved, store.ReworkInProgress); err != nil {
		t.Fatal(err)
	}
	if err := q.Release(item.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	got, _ := db.GetReworkItem(item.ID)
	if got.Status != store.ReworkApproved {
		t.Errorf("status = %s", got.Status)
	}
	if got.AssignedLogID != nil {
		t.Error("assignment should be cleared")
	}
}
