package engine

import (
	"fmt"

	"chipsight/messaging"
	"chipsight/store"
	"chipsight/workflow"
)

// wireEventHandlers turns domain events into audit rows and outbox
// messages. Publishing goes through the outbox so a bus outage never
// loses a transition; the drainer retries until the broker takes it.
func (e *Engine) wireEventHandlers() {
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(LogCreatedEvent)
		e.db.AppendAudit("log", ev.Log.ID, "created", "",
			fmt.Sprintf("drawing=%d machine=%d batch=%s planned=%d",
				ev.Log.DrawingID, ev.Log.MachineID, ev.Log.BatchNumber, ev.Log.RunPlannedQty), "system")
	}, EventLogCreated)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(LogTransitionEvent)
		e.db.AppendAudit("log", ev.Log.ID, "transition", ev.From, ev.To, "system")
		e.enqueue(e.cfg.Messaging.TransitionsTopic, messaging.TypeLogTransition, messaging.LogTransitionMsg{
			LogID:      ev.Log.ID,
			MachineID:  ev.Log.MachineID,
			DrawingID:  ev.Log.DrawingID,
			FromStatus: ev.From,
			ToStatus:   ev.To,
			Detail:     ev.Detail,
			Completed:  ev.Log.RunCompletedQty,
			Planned:    ev.Log.RunPlannedQty,
		})
	}, EventLogTransition)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(LogTransitionEvent)
		if workflow.IsProductionActive(workflow.Status(ev.From)) != workflow.IsProductionActive(workflow.Status(ev.To)) {
			e.syncMachineStatus(ev.Log.MachineID)
		}
	}, EventLogTransition)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(MachineStatusEvent)
		e.db.AppendAudit("machine", ev.MachineID, "status", "", ev.Status, "system")
		e.enqueue(e.cfg.Messaging.TransitionsTopic, messaging.TypeMachineStatus, messaging.MachineStatusMsg{
			MachineID: ev.MachineID,
			Status:    ev.Status,
		})
	}, EventMachineStatusChanged)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(HoldChangedEvent)
		action := "hold_released"
		if ev.Held {
			action = "hold_raised"
		}
		e.db.AppendAudit("drawing", ev.DrawingID, action, "", fmt.Sprintf("log=%d", ev.BlockingLogID), "system")
		e.enqueue(e.cfg.Messaging.TransitionsTopic, messaging.TypeHoldChanged, messaging.HoldChangedMsg{
			DrawingID:     ev.DrawingID,
			BlockingLogID: ev.BlockingLogID,
			Held:          ev.Held,
		})
	}, EventHoldChanged)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(QualityCheckEvent)
		e.db.AppendAudit("log", ev.Check.LogID, "quality_check", "",
			fmt.Sprintf("%s %s by %s", ev.Check.CheckType, ev.Check.Result, ev.Check.Inspector), ev.Check.Inspector)
		e.enqueue(e.cfg.Messaging.QualityTopic, messaging.TypeQualityCheck, messaging.QualityCheckMsg{
			CheckID:           ev.Check.ID,
			LogID:             ev.Check.LogID,
			CheckType:         ev.Check.CheckType,
			Result:            ev.Check.Result,
			Inspector:         ev.Check.Inspector,
			QuantityInspected: ev.Check.QuantityInspected,
			QuantityRejected:  ev.Check.QuantityRejected,
			RejectionReason:   ev.Check.RejectionReason,
		})
	}, EventQualityCheckRecorded)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ReworkQueuedEvent)
		e.db.AppendAudit("rework", ev.Item.ID, "queued", "",
			fmt.Sprintf("drawing=%d qty=%d reason=%s", ev.Item.DrawingID, ev.Item.QuantityToRework, ev.Item.RejectionReason), "system")
		e.enqueue(e.cfg.Messaging.QualityTopic, messaging.TypeReworkStatus, messaging.ReworkStatusMsg{
			ItemID:    ev.Item.ID,
			DrawingID: ev.Item.DrawingID,
			ToStatus:  ev.Item.Status,
			Quantity:  ev.Item.QuantityToRework,
		})
	}, EventReworkQueued)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ReworkStatusEvent)
		e.db.AppendAudit("rework", ev.Item.ID, "status", ev.From, ev.To, ev.Item.ManagerApprovedBy)
		e.enqueue(e.cfg.Messaging.QualityTopic, messaging.TypeReworkStatus, messaging.ReworkStatusMsg{
			ItemID:     ev.Item.ID,
			DrawingID:  ev.Item.DrawingID,
			FromStatus: ev.From,
			ToStatus:   ev.To,
			Quantity:   ev.Item.QuantityToRework,
		})
	}, EventReworkStatusChanged)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ScrapEvent)
		e.db.AppendAudit("drawing", ev.Record.DrawingID, "scrap", "",
			fmt.Sprintf("qty=%d reason=%s", ev.Record.QuantityScrapped, ev.Record.Reason), ev.Record.ScrappedBy)
		var logID int64
		if ev.Record.LogID != nil {
			logID = *ev.Record.LogID
		}
		e.enqueue(e.cfg.Messaging.QualityTopic, messaging.TypeScrap, messaging.ScrapMsg{
			DrawingID: ev.Record.DrawingID,
			LogID:     logID,
			Quantity:  ev.Record.QuantityScrapped,
			Reason:    ev.Record.Reason,
		})
	}, EventScrapRecorded)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(DowntimeEvent)
		e.db.AppendAudit("log", ev.Entry.LogID, "downtime", "",
			fmt.Sprintf("%s %.1fmin", ev.Entry.Category, ev.Entry.Minutes), ev.Entry.NotedBy)
		msg := messaging.DowntimeMsg{
			LogID:    ev.Entry.LogID,
			Category: ev.Entry.Category,
			Minutes:  ev.Entry.Minutes,
		}
		if l, err := e.db.GetProductionLog(ev.Entry.LogID); err == nil {
			msg.MachineID = l.MachineID
		}
		e.enqueue(e.cfg.Messaging.TransitionsTopic, messaging.TypeDowntime, msg)
	}, EventDowntimeLogged)
}

// syncMachineStatus re-derives machines.status from log activity after a
// transition moves a log in or out of the production-active set.
// Breakdown is owned by the registry and never overwritten here.
func (e *Engine) syncMachineStatus(machineID int64) {
	unlock := e.locks.Lock(workflow.MachineKey(machineID))
	defer unlock()

	m, err := e.db.GetMachine(machineID)
	if err != nil {
		e.logFn("engine: machine %d lookup for status sync: %v", machineID, err)
		return
	}
	if m.Status == store.MachineBreakdown {
		return
	}
	n, err := e.db.CountLogsInStates(machineID, activeStates())
	if err != nil {
		e.logFn("engine: count active logs on machine %d: %v", machineID, err)
		return
	}
	status := store.MachineAvailable
	if n > 0 {
		status = store.MachineInUse
	}
	if m.Status == status {
		return
	}
	if err := e.db.UpdateMachineStatus(machineID, status); err != nil {
		e.logFn("engine: machine %d status sync: %v", machineID, err)
		return
	}
	e.Events.Emit(Event{Type: EventMachineStatusChanged, Payload: MachineStatusEvent{
		MachineID: machineID,
		Status:    status,
	}})
}

func activeStates() []string {
	out := make([]string, len(workflow.ProductionActiveStatuses))
	for i, s := range workflow.ProductionActiveStatuses {
		out[i] = string(s)
	}
	return out
}

// enqueue wraps a payload in an envelope and stores it for the drainer.
func (e *Engine) enqueue(topic, msgType string, payload any) {
	env := messaging.NewEnvelope(msgType, sourceCore, e.cfg.Messaging.PlantID, payload)
	data, err := env.Encode()
	if err != nil {
		e.logFn("engine: encode %s envelope: %v", msgType, err)
		return
	}
	if err := e.db.EnqueueOutbox(topic, data, msgType, sourceCore); err != nil {
		e.logFn("engine: enqueue %s to %s: %v", msgType, topic, err)
	}
}
