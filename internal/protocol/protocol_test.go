package protocol_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"mediabridge/internal/protocol"
)

func TestEnvelopeMarshalFlattensPayload(t *testing.T) {
	env, err := protocol.NewEnvelope(protocol.ConvertFiles{
		FilePaths: []string{"a.mkv", "b.mkv"},
		Settings:  json.RawMessage(`{"codec":"av1"}`),
	})
	if err != nil {
		t.Fatalf("NewEnvelope returned error: %v", err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if got := string(fields["action"]); got != `"convert_files"` {
		t.Fatalf("unexpected action tag: %s", got)
	}
	if _, ok := fields["file_paths"]; !ok {
		t.Fatal("expected file_paths flattened into envelope")
	}
	if _, ok := fields["request_id"]; !ok {
		t.Fatal("expected request_id on envelope")
	}
	if got := string(fields["settings"]); got != `{"codec":"av1"}` {
		t.Fatalf("settings not passed through opaquely: %s", got)
	}
}

func TestDecodeEnvelopeRoundTrip(t *testing.T) {
	env, err := protocol.NewEnvelope(protocol.DownloadSubtitles{
		FilePaths: []string{"a.mkv"},
		Languages: []string{"en", "fi"},
		Provider:  "opensubtitles",
	})
	if err != nil {
		t.Fatalf("NewEnvelope returned error: %v", err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := protocol.DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("DecodeEnvelope returned error: %v", err)
	}
	if decoded.Action != protocol.ActionDownloadSubtitles {
		t.Fatalf("unexpected action: %s", decoded.Action)
	}
	if decoded.RequestID != env.RequestID {
		t.Fatalf("request id not preserved: got %q want %q", decoded.RequestID, env.RequestID)
	}
	payload, ok := decoded.Payload.(protocol.DownloadSubtitles)
	if !ok {
		t.Fatalf("unexpected payload type %T", decoded.Payload)
	}
	if payload.Provider != "opensubtitles" || len(payload.Languages) != 2 {
		t.Fatalf("payload fields lost: %+v", payload)
	}
}

func TestDecodeEnvelopeCoversEveryAction(t *testing.T) {
	payloads := []protocol.Payload{
		protocol.CheckFFmpeg{},
		protocol.ScanDirectory{Path: "/media"},
		protocol.GetFileInfo{FilePath: "a.mkv"},
		protocol.ConvertFiles{FilePaths: []string{"a.mkv"}},
		protocol.GenerateSubtitles{FilePaths: []string{"a.mkv"}, Language: "en"},
		protocol.DownloadSubtitles{FilePaths: []string{"a.mkv"}},
		protocol.SearchSubtitles{Query: "alpha", Languages: []string{"en"}},
		protocol.PreviewRename{FilePaths: []string{"a.mkv"}},
		protocol.RenameFiles{FilePaths: []string{"a.mkv"}},
		protocol.UpdateSettings{},
		protocol.Stop{},
		protocol.Shutdown{},
	}
	for _, payload := range payloads {
		env, err := protocol.NewEnvelope(payload)
		if err != nil {
			t.Fatalf("NewEnvelope(%s): %v", payload.BridgeAction(), err)
		}
		data, err := json.Marshal(env)
		if err != nil {
			t.Fatalf("marshal %s: %v", payload.BridgeAction(), err)
		}
		decoded, err := protocol.DecodeEnvelope(data)
		if err != nil {
			t.Fatalf("DecodeEnvelope(%s): %v", payload.BridgeAction(), err)
		}
		if decoded.Action != payload.BridgeAction() {
			t.Fatalf("action changed in transit: got %s want %s", decoded.Action, payload.BridgeAction())
		}
	}
}

func TestDecodeEnvelopeRejectsUnknownAction(t *testing.T) {
	if _, err := protocol.DecodeEnvelope([]byte(`{"action":"defragment"}`)); err == nil {
		t.Fatal("expected unknown action error")
	}
}

func TestClassifyTerminalAndProgress(t *testing.T) {
	term, prog, err := protocol.Classify([]byte(`{"status":"success","ffmpeg_available":true}`))
	if err != nil {
		t.Fatalf("classify terminal: %v", err)
	}
	if term == nil || prog != nil {
		t.Fatalf("expected terminal, got term=%v prog=%v", term, prog)
	}
	if !term.Succeeded() {
		t.Fatal("expected success status")
	}
	if available, ok := term.BoolField("ffmpeg_available"); !ok || !available {
		t.Fatalf("expected ffmpeg_available=true, got %v ok=%v", available, ok)
	}

	term, prog, err = protocol.Classify([]byte(`{"progress":42.5,"file":"a.mkv","fps":24.0,"speed":"1.8x","eta":"00:01:30"}`))
	if err != nil {
		t.Fatalf("classify progress: %v", err)
	}
	if prog == nil || term != nil {
		t.Fatal("expected progress response")
	}
	if prog.Percent != 42.5 || prog.File != "a.mkv" || prog.Speed != "1.8x" {
		t.Fatalf("progress fields lost: %+v", prog)
	}
}

func TestClassifyRejectsUnframedLine(t *testing.T) {
	if _, _, err := protocol.Classify([]byte(`{"hello":"world"}`)); !errors.Is(err, protocol.ErrFraming) {
		t.Fatalf("expected framing error, got %v", err)
	}
	if _, _, err := protocol.Classify([]byte(`not json`)); !errors.Is(err, protocol.ErrFraming) {
		t.Fatalf("expected framing error for invalid JSON, got %v", err)
	}
}

func TestTerminalPreservesUnknownFields(t *testing.T) {
	raw := []byte(`{"status":"success","message":"done","files_converted":3,"details":{"codec":"av1"}}`)
	var term protocol.Terminal
	if err := json.Unmarshal(raw, &term); err != nil {
		t.Fatalf("unmarshal terminal: %v", err)
	}
	out, err := json.Marshal(term)
	if err != nil {
		t.Fatalf("marshal terminal: %v", err)
	}
	var a, b map[string]any
	if err := json.Unmarshal(raw, &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(out, &b); err != nil {
		t.Fatal(err)
	}
	if len(a) != len(b) {
		t.Fatalf("field count changed: %v vs %v", a, b)
	}
	if string(term.Field("details")) != `{"codec":"av1"}` {
		t.Fatalf("details field not preserved: %s", term.Field("details"))
	}
}

func TestTerminalErrClassification(t *testing.T) {
	term := &protocol.Terminal{Status: protocol.StatusError, Message: "ffmpeg not found"}
	err := term.Err()
	if !errors.Is(err, protocol.ErrApplication) {
		t.Fatalf("expected application error, got %v", err)
	}
	if protocol.TransportFault(err) {
		t.Fatal("application errors are not transport faults")
	}
	if !strings.Contains(err.Error(), "ffmpeg not found") {
		t.Fatalf("message lost: %v", err)
	}
	ok := &protocol.Terminal{Status: protocol.StatusSuccess}
	if ok.Err() != nil {
		t.Fatal("success terminal must not produce an error")
	}
}

func TestParseHandshake(t *testing.T) {
	if err := protocol.ParseHandshake([]byte(`{"status":"ready"}`)); err != nil {
		t.Fatalf("ready handshake rejected: %v", err)
	}
	err := protocol.ParseHandshake([]byte(`{"status":"starting"}`))
	if !errors.Is(err, protocol.ErrStartup) {
		t.Fatalf("expected startup failure, got %v", err)
	}
}

func TestTransportFaultCoversPlumbingOnly(t *testing.T) {
	for _, sentinel := range []error{protocol.ErrStartup, protocol.ErrFraming, protocol.ErrTimeout, protocol.ErrCrash} {
		if !protocol.TransportFault(protocol.Wrap(sentinel, "x", "y", "", nil)) {
			t.Fatalf("expected %v to classify as transport fault", sentinel)
		}
	}
	if protocol.TransportFault(protocol.Wrap(protocol.ErrSaturated, "pool", "dispatch", "", nil)) {
		t.Fatal("saturation is a scheduling outcome, not a transport fault")
	}
	if protocol.TransportFault(protocol.Wrap(protocol.ErrCanceled, "bridge", "convert_files", "", nil)) {
		t.Fatal("caller cancellation is not a transport fault")
	}
}

func TestNormalizeLanguages(t *testing.T) {
	langs, err := protocol.NormalizeLanguages([]string{"EN-us", "eng", "fi", ""})
	if err != nil {
		t.Fatalf("normalize returned error: %v", err)
	}
	want := []string{"en", "fi"}
	if len(langs) != len(want) {
		t.Fatalf("unexpected languages: %v", langs)
	}
	for i := range want {
		if langs[i] != want[i] {
			t.Fatalf("unexpected languages: got %v want %v", langs, want)
		}
	}
	if _, err := protocol.NormalizeLanguages([]string{"no-such-lang-tag-%%"}); err == nil {
		t.Fatal("expected parse error for invalid tag")
	}
}
