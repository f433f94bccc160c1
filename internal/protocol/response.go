package protocol

import (
	"encoding/json"
	"fmt"
)

// Worker response status values.
const (
	StatusReady   = "ready"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Terminal is the final response for a command. Result fields beyond the
// known ones are preserved in Extra so payload schemas can grow on the worker
// side without bridge changes.
type Terminal struct {
	Status    string
	Message   string
	RequestID string
	Extra     map[string]json.RawMessage
}

// Succeeded reports whether the worker completed the command.
func (t *Terminal) Succeeded() bool { return t.Status == StatusSuccess }

// Err converts an error-status terminal into an ErrApplication-tagged error.
// Success terminals return nil.
func (t *Terminal) Err() error {
	if t.Succeeded() {
		return nil
	}
	return Wrap(ErrApplication, "worker", "", t.Message, nil)
}

// Field returns a raw result field, or nil when absent.
func (t *Terminal) Field(name string) json.RawMessage {
	return t.Extra[name]
}

// BoolField decodes a boolean result field. The second return is false when
// the field is absent or not a boolean.
func (t *Terminal) BoolField(name string) (bool, bool) {
	raw, ok := t.Extra[name]
	if !ok {
		return false, false
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, false
	}
	return v, true
}

// UnmarshalJSON keeps unrecognized fields in Extra.
func (t *Terminal) UnmarshalJSON(data []byte) error {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*t = Terminal{}
	if raw, ok := fields["status"]; ok {
		if err := json.Unmarshal(raw, &t.Status); err != nil {
			return fmt.Errorf("terminal: status: %w", err)
		}
		delete(fields, "status")
	}
	if raw, ok := fields["message"]; ok {
		if err := json.Unmarshal(raw, &t.Message); err != nil {
			return fmt.Errorf("terminal: message: %w", err)
		}
		delete(fields, "message")
	}
	if raw, ok := fields["request_id"]; ok {
		if err := json.Unmarshal(raw, &t.RequestID); err != nil {
			return fmt.Errorf("terminal: request_id: %w", err)
		}
		delete(fields, "request_id")
	}
	if len(fields) > 0 {
		t.Extra = fields
	}
	return nil
}

// MarshalJSON emits known fields plus preserved extras.
func (t Terminal) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(t.Extra)+3)
	for k, v := range t.Extra {
		fields[k] = v
	}
	status, err := json.Marshal(t.Status)
	if err != nil {
		return nil, err
	}
	fields["status"] = status
	if t.Message != "" {
		msg, err := json.Marshal(t.Message)
		if err != nil {
			return nil, err
		}
		fields["message"] = msg
	}
	if t.RequestID != "" {
		id, err := json.Marshal(t.RequestID)
		if err != nil {
			return nil, err
		}
		fields["request_id"] = id
	}
	return json.Marshal(fields)
}

// Progress is an intermediate streaming response. Percent is expected to be
// monotonically non-decreasing within one command.
type Progress struct {
	Percent float64 `json:"progress"`
	File    string  `json:"file,omitempty"`
	FPS     float64 `json:"fps,omitempty"`
	Speed   string  `json:"speed,omitempty"`
	ETA     string  `json:"eta,omitempty"`
}

// Classify inspects one response line and returns either a terminal or a
// progress response. A line carrying a top-level status field is terminal;
// one carrying progress is intermediate; anything else is a framing fault.
func Classify(data []byte) (*Terminal, *Progress, error) {
	probe := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, nil, Wrap(ErrFraming, "response", "classify", "not a JSON object", err)
	}
	if _, ok := probe["status"]; ok {
		var term Terminal
		if err := json.Unmarshal(data, &term); err != nil {
			return nil, nil, Wrap(ErrFraming, "response", "classify", "malformed terminal", err)
		}
		return &term, nil, nil
	}
	if _, ok := probe["progress"]; ok {
		var prog Progress
		if err := json.Unmarshal(data, &prog); err != nil {
			return nil, nil, Wrap(ErrFraming, "response", "classify", "malformed progress", err)
		}
		return nil, &prog, nil
	}
	return nil, nil, Wrap(ErrFraming, "response", "classify", "line carries neither status nor progress", nil)
}

// ParseHandshake validates the single ready line a worker must emit at
// startup.
func ParseHandshake(data []byte) error {
	var line struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &line); err != nil {
		return Wrap(ErrStartup, "handshake", "decode", "", err)
	}
	if line.Status != StatusReady {
		return Wrap(ErrStartup, "handshake", "", fmt.Sprintf("unexpected status %q", line.Status), nil)
	}
	return nil
}
