package engine

import (
	"chipsight/store"
	"chipsight/workflow"
)

// workflowEmitter bridges the workflow package's emitter interface to the EventBus.
type workflowEmitter struct {
	bus *EventBus
}

func (e *workflowEmitter) LogCreated(l *store.ProductionLog) {
	e.bus.Emit(Event{Type: EventLogCreated, Payload: LogCreatedEvent{Log: l}})
}

func (e *workflowEmitter) LogTransition(l *store.ProductionLog, from, to workflow.Status, detail string) {
	e.bus.Emit(Event{Type: EventLogTransition, Payload: LogTransitionEvent{
		Log:    l,
		From:   string(from),
		To:     string(to),
		Detail: detail,
	}})
}

func (e *workflowEmitter) MachineStatus(machineID int64, status string) {
	e.bus.Emit(Event{Type: EventMachineStatusChanged, Payload: MachineStatusEvent{
		MachineID: machineID,
		Status:    status,
	}})
}

func (e *workflowEmitter) HoldChanged(drawingID, blockingLogID int64, held bool) {
	e.bus.Emit(Event{Type: EventHoldChanged, Payload: HoldChangedEvent{
		DrawingID:     drawingID,
		BlockingLogID: blockingLogID,
		Held:          held,
	}})
}

func (e *workflowEmitter) DowntimeLogged(entry *store.DowntimeEntry) {
	e.bus.Emit(Event{Type: EventDowntimeLogged, Payload: DowntimeEvent{Entry: entry}})
}

// qualityEmitter bridges the quality gate's emitter interface to the EventBus.
type qualityEmitter struct {
	bus *EventBus
}

func (e *qualityEmitter) CheckRecorded(qc *store.QualityCheck, l *store.ProductionLog) {
	e.bus.Emit(Event{Type: EventQualityCheckRecorded, Payload: QualityCheckEvent{Check: qc, Log: l}})
}

func (e *qualityEmitter) LogTransition(l *store.ProductionLog, from, to workflow.Status, detail string) {
	e.bus.Emit(Event{Type: EventLogTransition, Payload: LogTransitionEvent{
		Log:    l,
		From:   string(from),
		To:     string(to),
		Detail: detail,
	}})
}

func (e *qualityEmitter) HoldChanged(drawingID, blockingLogID int64, held bool) {
	e.bus.Emit(Event{Type: EventHoldChanged, Payload: HoldChangedEvent{
		DrawingID:     drawingID,
		BlockingLogID: blockingLogID,
		Held:          held,
	}})
}

func (e *qualityEmitter) ReworkQueued(item *store.ReworkItem) {
	e.bus.Emit(Event{Type: EventReworkQueued, Payload: ReworkQueuedEvent{Item: item}})
}

func (e *qualityEmitter) ScrapRecorded(s *store.ScrapRecord) {
	e.bus.Emit(Event{Type: EventScrapRecorded, Payload: ScrapEvent{Record: s}})
}

// reworkEmitter bridges the rework queue's emitter interface to the EventBus.
type reworkEmitter struct {
	bus *EventBus
}

func (e *reworkEmitter) StatusChanged(item *store.ReworkItem, from, to string) {
	e.bus.Emit(Event{Type: EventReworkStatusChanged, Payload: ReworkStatusEvent{
		Item: item,
		From: from,
		To:   to,
	}})
}
