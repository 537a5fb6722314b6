package logging

import (
	"encoding/json"
	"time"
)

// Event is the structured record emitted by the dispatcher and the HTTP
// surface. Required fields: Timestamp, VmmID, EventType, Summary.
type Event struct {
	Timestamp time.Time       `json:"ts"`
	VmmID     string          `json:"vmm_id"`
	Version   string          `json:"version,omitempty"`
	EventType string          `json:"event_type"`
	Summary   string          `json:"summary"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Event type constants.
const (
	EventDispatcherStart = "dispatcher_start"
	EventDispatcherStop  = "dispatcher_stop"
	EventApiRequest      = "api_request"
	EventApiError        = "api_error"
	EventVmState         = "vm_state"
	EventHTTPRequest     = "http_request"
)

// ApiRequestData is the data payload for api_request and api_error events.
type ApiRequestData struct {
	Kind       string `json:"kind"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// VmStateData is the data payload for vm_state events.
type VmStateData struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// HTTPRequestData is the data payload for http_request events.
type HTTPRequestData struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	StatusCode int    `json:"status_code"`
	DurationMS int64  `json:"duration_ms"`
}
