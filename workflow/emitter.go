package workflow

import "chipsight/store"

// Emitter receives workflow events. The engine package bridges this onto
// its event bus; tests plug in a recorder.
type Emitter interface {
	LogCreated(l *store.ProductionLog)
	LogTransition(l *store.ProductionLog, from, to Status, detail string)
	MachineStatus(machineID int64, status string)
	HoldChanged(drawingID, blockingLogID int64, held bool)
	DowntimeLogged(e *store.DowntimeEntry)
}

// NopEmitter drops all events.
type NopEmitter struct{}

func (NopEmitter) LogCreated(*store.ProductionLog)                            {}
func (NopEmitter) LogTransition(*store.ProductionLog, Status, Status, string) {}
func (NopEmitter) MachineStatus(int64, string)                                {}
func (NopEmitter) HoldChanged(int64, int64, bool)                             {}
func (NopEmitter) DowntimeLogged(*store.DowntimeEntry)                        {}


// HoldStore is the drawing hold surface workflow needs: read to gate
// actions, write when a first piece goes out for inspection. Implemented
// by holdstate.Manager.
type HoldStore interface {
	Held(drawingID int64) (blockingLogID int64, held bool, err error)
	Set(drawingID, blockingLogID int64) error
	Clear(drawingID, blockingLogID int64) error
}
