package engine

import "chipsight/store"

const (
	EventLogCreated EventType = iota + 1
	EventLogTransition
	EventMachineStatusChanged
	EventHoldChanged
	EventQualityCheckRecorded
	EventReworkQueued
	EventReworkStatusChanged
	EventScrapRecorded
	EventDowntimeLogged
	EventMessagingConnected
	EventMessagingDisconnected
)

// --- Event payloads ---

type LogCreatedEvent struct {
	Log *store.ProductionLog
}

type LogTransitionEvent struct {
	Log    *store.ProductionLog
	From   string
	To     string
	Detail string
}

type MachineStatusEvent struct {
	MachineID int64
	Status    string
}

type HoldChangedEvent struct {
	DrawingID     int64
	BlockingLogID int64
	Held          bool
}

type QualityCheckEvent struct {
	Check *store.QualityCheck
	Log   *store.ProductionLog
}

type ReworkQueuedEvent struct {
	Item *store.ReworkItem
}

type ReworkStatusEvent struct {
	Item *store.ReworkItem
	From string
	To   string
}

type ScrapEvent struct {
	Record *store.ScrapRecord
}

type DowntimeEvent struct {
	Entry *store.DowntimeEntry
}

type ConnectionEvent struct {
	Detail string
}
