package messaging

import "time"

// Envelope is the typed message wrapper for everything published to or
// consumed from the plant bus.
type Envelope struct {
	MsgType   string    `json:"msg_type"`
	MsgID     string    `json:"msg_id"`
	Source    string    `json:"source"`
	PlantID   string    `json:"plant_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// --- Outbound payloads (engine -> plant bus) ---

type LogTransitionMsg struct {
	LogID      int64  `json:"log_id"`
	MachineID  int64  `json:"machine_id"`
	DrawingID  int64  `json:"drawing_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Detail     string `json:"detail,omitempty"`
	Completed  int64  `json:"completed_qty"`
	Planned    int64  `json:"planned_qty"`
}

type QualityCheckMsg struct {
	CheckID           int64  `json:"check_id"`
	LogID             int64  `json:"log_id"`
	CheckType         string `json:"check_type"` // fpi, lpi
	Result            string `json:"result"`     // pass, fail
	Inspector         string `json:"inspector"`
	QuantityInspected int64  `json:"quantity_inspected"`
	QuantityRejected  int64  `json:"quantity_rejected"`
	RejectionReason   string `json:"rejection_reason,omitempty"`
}

type HoldChangedMsg struct {
	DrawingID     int64 `json:"drawing_id"`
	BlockingLogID int64 `json:"blocking_log_id"`
	Held          bool  `json:"held"`
}

type MachineStatusMsg struct {
	MachineID int64  `json:"machine_id"`
	Status    string `json:"status"` // available, in_use, breakdown
}

type ReworkStatusMsg struct {
	ItemID     int64  `json:"item_id"`
	DrawingID  int64  `json:"drawing_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Quantity   int64  `json:"quantity"`
}

type ScrapMsg struct {
	DrawingID int64  `json:"drawing_id"`
	LogID     int64  `json:"log_id"`
	Quantity  int64  `json:"quantity"`
	Reason    string `json:"reason"`
}

type DowntimeMsg struct {
	LogID     int64   `json:"log_id"`
	MachineID int64   `json:"machine_id"`
	Category  string  `json:"category"`
	Minutes   float64 `json:"minutes"`
}

// --- Inbound payloads (supervisory systems -> engine) ---

// BreakdownCommand reports or clears a machine breakdown from outside
// the operator UI, e.g. a maintenance system.
type BreakdownCommand struct {
	MachineID  int64  `json:"machine_id"`
	Action     string `json:"action"` // report, clear
	ReportedBy string `json:"reported_by"`
	Notes      string `json:"notes,omitempty"`
}

// ShiftCloseCommand asks the engine to close every open production log,
// typically fired by a scheduler at end of shift.
type ShiftCloseCommand struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}
