package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Envelope is one command written to a worker: an action tag, a correlation
// id, and the action-specific parameters. The wire protocol itself correlates
// by strict per-worker ordering; the request id is a compatibility-preserving
// extension workers echo back when they support it.
type Envelope struct {
	Action    Action
	RequestID string
	Payload   Payload
}

// NewEnvelope wraps a payload with its action tag and a fresh request id.
func NewEnvelope(payload Payload) (Envelope, error) {
	if payload == nil {
		return Envelope{}, fmt.Errorf("envelope: payload required")
	}
	action := payload.BridgeAction()
	if !action.Valid() {
		return Envelope{}, fmt.Errorf("envelope: unknown action %q", action)
	}
	return Envelope{
		Action:    action,
		RequestID: uuid.NewString(),
		Payload:   payload,
	}, nil
}

// MarshalJSON flattens the payload fields alongside the action tag so the
// worker sees a single object per line.
func (e Envelope) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal payload: %w", err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("envelope: flatten payload: %w", err)
	}
	actionTag, err := json.Marshal(e.Action)
	if err != nil {
		return nil, err
	}
	fields["action"] = actionTag
	if e.RequestID != "" {
		id, err := json.Marshal(e.RequestID)
		if err != nil {
			return nil, err
		}
		fields["request_id"] = id
	}
	return json.Marshal(fields)
}

// DecodeEnvelope parses a command object into its typed payload. The action
// tag selects the variant; unknown actions are rejected at this boundary so
// malformed commands never travel further into the pipeline.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var head struct {
		Action    Action `json:"action"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Envelope{}, Wrap(ErrFraming, "envelope", "decode", "", err)
	}
	payload, err := payloadFor(head.Action)
	if err != nil {
		return Envelope{}, err
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return Envelope{}, fmt.Errorf("envelope: decode %s payload: %w", head.Action, err)
	}
	return Envelope{
		Action:    head.Action,
		RequestID: head.RequestID,
		Payload:   deref(payload),
	}, nil
}

func payloadFor(action Action) (any, error) {
	switch action {
	case ActionCheckFFmpeg:
		return &CheckFFmpeg{}, nil
	case ActionScanDirectory:
		return &ScanDirectory{}, nil
	case ActionGetFileInfo:
		return &GetFileInfo{}, nil
	case ActionConvertFiles:
		return &ConvertFiles{}, nil
	case ActionGenerateSubtitles:
		return &GenerateSubtitles{}, nil
	case ActionDownloadSubtitles:
		return &DownloadSubtitles{}, nil
	case ActionSearchSubtitles:
		return &SearchSubtitles{}, nil
	case ActionPreviewRename:
		return &PreviewRename{}, nil
	case ActionRenameFiles:
		return &RenameFiles{}, nil
	case ActionUpdateSettings:
		return &UpdateSettings{}, nil
	case ActionStop:
		return &Stop{}, nil
	case ActionShutdown:
		return &Shutdown{}, nil
	default:
		return nil, fmt.Errorf("envelope: unknown action %q", action)
	}
}

func deref(payload any) Payload {
	switch p := payload.(type) {
	case *CheckFFmpeg:
		return *p
	case *ScanDirectory:
		return *p
	case *GetFileInfo:
		return *p
	case *ConvertFiles:
		return *p
	case *GenerateSubtitles:
		return *p
	case *DownloadSubtitles:
		return *p
	case *SearchSubtitles:
		return *p
	case *PreviewRename:
		return *p
	case *RenameFiles:
		return *p
	case *UpdateSettings:
		return *p
	case *Stop:
		return *p
	case *Shutdown:
		return *p
	default:
		return nil
	}
}
