package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/neuroforge/trainlink/internal/testutil/testlog"
)

func TestNewCommandCarriesPayloadAndID(t *testing.T) {
	testlog.Start(t)
	env, err := NewCommand(CommandTrain, TrainCommand{
		ModelID:         "mdl_1",
		Epochs:          10,
		DatasetID:       "ds1",
		ValidationSplit: 0.2,
	}, "req-1")
	if err != nil {
		t.Fatalf("new command: %v", err)
	}
	if env.MessageType != MessageCommand || env.CommandType != CommandTrain {
		t.Fatalf("unexpected discriminators: %+v", env)
	}
	if env.RequestID != "req-1" {
		t.Fatalf("unexpected requestId: %q", env.RequestID)
	}
	if env.Timestamp == 0 {
		t.Fatalf("timestamp should be set")
	}

	raw, err := env.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, key := range []string{`"messageType"`, `"commandType"`, `"requestId"`, `"timestamp"`, `"modelId"`, `"validationSplit"`} {
		if !bytes.Contains(raw, []byte(key)) {
			t.Fatalf("wire frame missing key %s: %s", key, raw)
		}
	}
}

func TestNewCommandNilPayloadHasNoDataLeg(t *testing.T) {
	testlog.Start(t)
	env, err := NewCommand(CommandPing, nil, "req-ping")
	if err != nil {
		t.Fatalf("new command: %v", err)
	}
	if len(env.Data) != 0 {
		t.Fatalf("ping should carry no payload, got %s", env.Data)
	}
	raw, err := env.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if bytes.Contains(raw, []byte(`"data"`)) {
		t.Fatalf("empty data leg should be omitted: %s", raw)
	}
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	testlog.Start(t)
	if _, err := Decode([]byte(`{not json`)); !errors.Is(err, ErrMalformedEnvelope) {
		t.Fatalf("expected malformed envelope, got %v", err)
	}
	if _, err := Decode([]byte(`{"messageType":"broadcast","commandType":"train"}`)); !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("expected unknown message type, got %v", err)
	}
	if _, err := Decode([]byte(`{"messageType":"response","commandType":""}`)); !errors.Is(err, ErrUnknownCommandType) {
		t.Fatalf("expected unknown command type, got %v", err)
	}
	huge := make([]byte, MaxEnvelopeBytes+1)
	if _, err := Decode(huge); !errors.Is(err, ErrEnvelopeTooLarge) {
		t.Fatalf("expected envelope too large, got %v", err)
	}
}

func TestDecodeToleratesUnknownCommandType(t *testing.T) {
	testlog.Start(t)
	env, err := Decode([]byte(`{"messageType":"response","commandType":"checkpoint","data":{"status":"success"},"timestamp":1}`))
	if err != nil {
		t.Fatalf("unknown command type on inbound must decode: %v", err)
	}
	if env.CommandType != "checkpoint" {
		t.Fatalf("unexpected command type: %q", env.CommandType)
	}
}

func TestProbeStatus(t *testing.T) {
	testlog.Start(t)
	probe, ok := ProbeStatus(json.RawMessage(`{"status":"error","message":"boom","errorCode":"E42","extra":1}`))
	if !ok {
		t.Fatalf("expected probe ok")
	}
	if probe.Status != StatusError || probe.Message != "boom" || probe.ErrorCode != "E42" {
		t.Fatalf("unexpected probe: %+v", probe)
	}
	if _, ok := ProbeStatus(nil); ok {
		t.Fatalf("nil payload should not probe")
	}
	if _, ok := ProbeStatus(json.RawMessage(`[1,2]`)); ok {
		t.Fatalf("non-object payload should not probe")
	}
}

func TestDecodeDataRequiresPayload(t *testing.T) {
	testlog.Start(t)
	env := Envelope{MessageType: MessageResponse, CommandType: CommandPing}
	var out PingResult
	if err := env.DecodeData(&out); !errors.Is(err, ErrMissingPayload) {
		t.Fatalf("expected missing payload, got %v", err)
	}
}
