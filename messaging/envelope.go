package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message type identifiers carried in Envelope.MsgType.
const (
	TypeLogTransition = "log_transition"
	TypeQualityCheck  = "quality_check"
	TypeHoldChanged   = "hold_changed"
	TypeMachineStatus = "machine_status"
	TypeReworkStatus  = "rework_status"
	TypeScrap         = "scrap"
	TypeDowntime      = "downtime"
	TypeBreakdownCmd  = "breakdown_command"
	TypeShiftCloseCmd = "shift_close"
)

// RawEnvelope is used for two-stage unmarshalling: first decode the envelope,
// then decode payload based on msg_type.
type RawEnvelope struct {
	MsgType   string          `json:"msg_type"`
	MsgID     string          `json:"msg_id"`
	Source    string          `json:"source"`
	PlantID   string          `json:"plant_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// DecodeEnvelope unmarshals a raw message into a typed Envelope with the correct payload type.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var raw RawEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	env := &Envelope{
		MsgType:   raw.MsgType,
		MsgID:     raw.MsgID,
		Source:    raw.Source,
		PlantID:   raw.PlantID,
		Timestamp: raw.Timestamp,
	}

	var payload any
	switch raw.MsgType {
	case TypeLogTransition:
		var p LogTransitionMsg
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode log_transition payload: %w", err)
		}
		payload = p
	case TypeQualityCheck:
		var p QualityCheckMsg
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode quality_check payload: %w", err)
		}
		payload = p
	case TypeHoldChanged:
		var p HoldChangedMsg
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode hold_changed payload: %w", err)
		}
		payload = p
	case TypeMachineStatus:
		var p MachineStatusMsg
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode machine_status payload: %w", err)
		}
		payload = p
	case TypeReworkStatus:
		var p ReworkStatusMsg
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode rework_status payload: %w", err)
		}
		payload = p
	case TypeScrap:
		var p ScrapMsg
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode scrap payload: %w", err)
		}
		payload = p
	case TypeDowntime:
		var p DowntimeMsg
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode downtime payload: %w", err)
		}
		payload = p
	case TypeBreakdownCmd:
		var p BreakdownCommand
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode breakdown_command payload: %w", err)
		}
		payload = p
	case TypeShiftCloseCmd:
		var p ShiftCloseCommand
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode shift_close payload: %w", err)
		}
		payload = p
	default:
		return nil, fmt.Errorf("unknown msg_type: %s", raw.MsgType)
	}
	env.Payload = payload
	return env, nil
}

// NewEnvelope creates an outbound envelope with a new UUID and timestamp.
func NewEnvelope(msgType, source, plantID string, payload any) *Envelope {
	return &Envelope{
		MsgType:   msgType,
		MsgID:     uuid.New().String(),
		Source:    source,
		PlantID:   plantID,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// Encode marshals an envelope to JSON.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
