package messaging

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDecodeEnvelope_LogTransition(t *testing.T) {
	data := []byte(`{
		"msg_type": "log_transition",
		"msg_id": "abc-123",
		"source": "chipsight-core",
		"plant_id": "plant-1",
		"timestamp": "2026-08-20T12:00:00Z",
		"payload": {
			"log_id": 7,
			"machine_id": 3,
			"drawing_id": 12,
			"from_status": "cycle_started",
			"to_status": "cycle_completed_pending_fpi",
			"detail": "first piece",
			"completed_qty": 1,
			"planned_qty": 50
		}
	}`)

	env, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.MsgType != TypeLogTransition {
		t.Errorf("msg_type = %q, want %q", env.MsgType, TypeLogTransition)
	}
	if env.MsgID != "abc-123" {
		t.Errorf("msg_id = %q, want %q", env.MsgID, "abc-123")
	}
	if env.Source != "chipsight-core" {
		t.Errorf("source = %q, want %q", env.Source, "chipsight-core")
	}
	if env.PlantID != "plant-1" {
		t.Errorf("plant_id = %q, want %q", env.PlantID, "plant-1")
	}

	msg, ok := env.Payload.(LogTransitionMsg)
	if !ok {
		t.Fatalf("payload type = %T, want LogTransitionMsg", env.Payload)
	}
	if msg.LogID != 7 {
		t.Errorf("log_id = %d, want 7", msg.LogID)
	}
	if msg.ToStatus != "cycle_completed_pending_fpi" {
		t.Errorf("to_status = %q", msg.ToStatus)
	}
	if msg.Completed != 1 || msg.Planned != 50 {
		t.Errorf("quantities = %d/%d, want 1/50", msg.Completed, msg.Planned)
	}
}

func TestDecodeEnvelope_QualityCheck(t *testing.T) {
	data := []byte(`{
		"msg_type": "quality_check",
		"msg_id": "msg-2",
		"source": "chipsight-core",
		"plant_id": "plant-1",
		"timestamp": "2026-08-20T12:00:00Z",
		"payload": {
			"check_id": 4,
			"log_id": 7,
			"check_type": "lpi",
			"result": "fail",
			"inspector": "insp-1",
			"quantity_inspected": 50,
			"quantity_rejected": 3,
			"rejection_reason": "surface finish"
		}
	}`)

	env, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	msg, ok := env.Payload.(QualityCheckMsg)
	if !ok {
		t.Fatalf("payload type = %T, want QualityCheckMsg", env.Payload)
	}
	if msg.CheckType != "lpi" || msg.Result != "fail" {
		t.Errorf("check = %+v", msg)
	}
	if msg.QuantityRejected != 3 {
		t.Errorf("quantity_rejected = %d, want 3", msg.QuantityRejected)
	}
}

func TestDecodeEnvelope_BreakdownCommand(t *testing.T) {
	data := []byte(`{
		"msg_type": "breakdown_command",
		"msg_id": "msg-3",
		"source": "maintenance-system",
		"plant_id": "plant-1",
		"timestamp": "2026-08-20T12:00:00Z",
		"payload": {"machine_id": 3, "action": "report", "reported_by": "mtc-1", "notes": "spindle vibration"}
	}`)

	env, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	cmd, ok := env.Payload.(BreakdownCommand)
	if !ok {
		t.Fatalf("payload type = %T, want BreakdownCommand", env.Payload)
	}
	if cmd.MachineID != 3 {
		t.Errorf("machine_id = %d, want 3", cmd.MachineID)
	}
	if cmd.Action != "report" {
		t.Errorf("action = %q, want %q", cmd.Action, "report")
	}
	if cmd.Notes != "spindle vibration" {
		t.Errorf("notes = %q", cmd.Notes)
	}
}

func TestDecodeEnvelope_ShiftCloseCommand(t *testing.T) {
	data := []byte(`{
		"msg_type": "shift_close",
		"msg_id": "msg-4",
		"source": "shift-scheduler",
		"plant_id": "plant-1",
		"timestamp": "2026-08-20T12:00:00Z",
		"payload": {"actor": "scheduler", "reason": "end of shift A"}
	}`)

	env, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	cmd, ok := env.Payload.(ShiftCloseCommand)
	if !ok {
		t.Fatalf("payload type = %T, want ShiftCloseCommand", env.Payload)
	}
	if cmd.Actor != "scheduler" {
		t.Errorf("actor = %q, want %q", cmd.Actor, "scheduler")
	}
}

func TestDecodeEnvelope_UnknownType(t *testing.T) {
	data := []byte(`{
		"msg_type": "bogus",
		"msg_id": "msg-x",
		"source": "chipsight-core",
		"plant_id": "plant-1",
		"timestamp": "2026-08-20T12:00:00Z",
		"payload": {}
	}`)

	_, err := DecodeEnvelope(data)
	if err == nil {
		t.Fatal("expected error for unknown msg_type")
	}
}

func TestDecodeEnvelope_InvalidJSON(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`not json`))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestDecodeEnvelope_InvalidPayload(t *testing.T) {
	data := []byte(`{
		"msg_type": "hold_changed",
		"msg_id": "msg-y",
		"source": "chipsight-core",
		"plant_id": "plant-1",
		"timestamp": "2026-08-20T12:00:00Z",
		"payload": "not an object"
	}`)

	_, err := DecodeEnvelope(data)
	if err == nil {
		t.Fatal("expected error for invalid payload")
	}
}

func TestNewEnvelope(t *testing.T) {
	payload := HoldChangedMsg{DrawingID: 12, BlockingLogID: 7, Held: true}
	env := NewEnvelope(TypeHoldChanged, "chipsight-core", "plant-1", payload)

	if env.MsgType != TypeHoldChanged {
		t.Errorf("msg_type = %q, want %q", env.MsgType, TypeHoldChanged)
	}
	if env.Source != "chipsight-core" {
		t.Errorf("source = %q, want %q", env.Source, "chipsight-core")
	}
	if env.PlantID != "plant-1" {
		t.Errorf("plant_id = %q, want %q", env.PlantID, "plant-1")
	}
	if env.MsgID == "" {
		t.Error("msg_id should not be empty")
	}
	if env.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}

	hold, ok := env.Payload.(HoldChangedMsg)
	if !ok {
		t.Fatalf("payload type = %T, want HoldChangedMsg", env.Payload)
	}
	if hold.BlockingLogID != 7 {
		t.Errorf("blocking_log_id = %d, want 7", hold.BlockingLogID)
	}
}

func TestEnvelopeEncode(t *testing.T) {
	env := NewEnvelope(TypeMachineStatus, "chipsight-core", "plant-1", MachineStatusMsg{
		MachineID: 3,
		Status:    "breakdown",
	})

	data, err := env.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal encoded: %v", err)
	}

	if decoded["msg_type"] != TypeMachineStatus {
		t.Errorf("msg_type = %v, want %q", decoded["msg_type"], TypeMachineStatus)
	}
	payload, ok := decoded["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload type = %T, want map", decoded["payload"])
	}
	if payload["status"] != "breakdown" {
		t.Errorf("status = %v, want %q", payload["status"], "breakdown")
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	original := NewEnvelope(TypeReworkStatus, "chipsight-core", "plant-1", ReworkStatusMsg{
		ItemID:     9,
		DrawingID:  12,
		FromStatus: "pending_approval",
		ToStatus:   "manager_approved",
		Quantity:   2,
	})

	data, err := original.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.MsgType != original.MsgType {
		t.Errorf("msg_type = %q, want %q", decoded.MsgType, original.MsgType)
	}
	if decoded.Source != original.Source {
		t.Errorf("source = %q, want %q", decoded.Source, original.Source)
	}

	msg, ok := decoded.Payload.(ReworkStatusMsg)
	if !ok {
		t.Fatalf("payload type = %T, want ReworkStatusMsg", decoded.Payload)
	}
	if msg.ToStatus != "manager_approved" {
		t.Errorf("to_status = %q", msg.ToStatus)
	}
	if msg.Quantity != 2 {
		t.Errorf("quantity = %d, want 2", msg.Quantity)
	}
}

func TestEnvelopeTimestampParsing(t *testing.T) {
	ts := "2026-08-20T12:30:45Z"
	data := []byte(`{
		"msg_type": "downtime",
		"msg_id": "msg-ts",
		"source": "chipsight-core",
		"plant_id": "plant-1",
		"timestamp": "` + ts + `",
		"payload": {"log_id": 7, "machine_id": 3, "category": "tool_change", "minutes": 12.5}
	}`)

	env, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	expected, _ := time.Parse(time.RFC3339, ts)
	if !env.Timestamp.Equal(expected) {
		t.Errorf("timestamp = %v, want %v", env.Timestamp, expected)
	}
}
