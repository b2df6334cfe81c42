package paystack

import (
	"encoding/json"
	"fmt"
)

const (
	EventChargeSuccess = "charge.success"
	EventChargeFailed  = "charge.failed"
)

// Event is a webhook delivery. Only charge events are decoded into Data.
type Event struct {
	Event string `json:"event"`
	Data  Charge `json:"data"`
}

func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("paystack: decode event: %w", err)
	}
	if ev.Event == "" {
		return nil, fmt.Errorf("paystack: event without type")
	}
	return &ev, nil
}

// DedupKey identifies a delivery. Paystack retries deliver the same event and reference.
func (e *Event) DedupKey() string {
	return e.Event + ":" + e.Data.Reference
}
