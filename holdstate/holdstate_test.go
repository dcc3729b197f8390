package holdstate

import (
	"path/filepath"
	"testing"

	"chipsight/config"
	"chipsight/store"
)

func testManager(t *testing.T) (*Manager, *store.DB) {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	m := New(db, nil)
	m.SetLogFunc(t.Logf)
	return m, db
}

func seed(t *testing.T, db *store.DB) (drawingID, logID int64) {
	t.Helper()
	p := &store.Project{ProjectCode: "PRJ-1", ProjectName: "Test"}
	if err := db.CreateProject(p); err != nil {
		t.Fatal(err)
	}
	ep := &store.EndProduct{ProjectID: p.ID, Name: "Part", SAPID: "SAP-1", Quantity: 10}
	if err := db.CreateEndProduct(ep); err != nil {
		t.Fatal(err)
	}
	d := &store.Drawing{DrawingNumber: "DWG-1", SAPID: "SAP-1"}
	if err := db.CreateDrawing(d); err != nil {
		t.Fatal(err)
	}
	m := &store.Machine{Name: "M-1", Active: true}
	if err := db.CreateMachine(m); err != nil {
		t.Fatal(err)
	}
	s := &store.OperatorSession{OperatorName: "op", MachineID: m.ID}
	if err := db.CreateOperatorSession(s); err != nil {
		t.Fatal(err)
	}
	l := &store.ProductionLog{MachineID: m.ID, DrawingID: d.ID, OperatorSessionID: s.ID,
		CurrentStatus: "setup_started", RunPlannedQty: 10}
	if err := db.CreateProductionLog(l); err != nil {
		t.Fatal(err)
	}
	return d.ID, l.ID
}

func TestHoldSetAndClear(t *testing.T) {
	m, db := testManager(t)
	drawingID, logID := seed(t, db)

	if _, held, err := m.Held(drawingID); err != nil || held {
		t.Fatalf("fresh drawing: held=%v err=%v", held, err)
	}

	if err := m.Set(drawingID, logID); err != nil {
		t.Fatalf("set: %v", err)
	}
	blocking, held, err := m.Held(drawingID)
	if err != nil {
		t.Fatalf("held: %v", err)
	}
	if !held || blocking != logID {
		t.Errorf("held=%v blocking=%d, want true/%d", held, blocking, logID)
	}

	if err := m.Clear(drawingID, logID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, held, _ := m.Held(drawingID); held {
		t.Error("hold should be cleared")
	}
	// Idempotent clear.
	if err := m.Clear(drawingID, logID); err != nil {
		t.Errorf("second clear: %v", err)
	}
}

func TestHoldClearWrongLogKeepsHold(t *testing.T) {
	m, db := testManager(t)
	drawingID, logID := seed(t, db)

	if err := m.Set(drawingID, logID); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.Clear(drawingID, logID+42); err != nil {
		t.Fatalf("clear wrong log: %v", err)
	}
	if _, held, _ := m.Held(drawingID); !held {
		t.Error("hold must survive a clear by a non-blocking log")
	}
}
