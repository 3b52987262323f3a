package session

import (
	"errors"
	"testing"

	"github.com/neuroforge/trainlink/internal/protocol"
	"github.com/neuroforge/trainlink/internal/testutil/testlog"
)

func TestPendingSetResolveSuccess(t *testing.T) {
	testlog.Start(t)
	p := newPendingSet()
	pr := p.add("req-1", protocol.CommandQuery)

	resp, err := protocol.NewResponse(protocol.CommandQuery, protocol.QueryResult{
		Status:  protocol.StatusSuccess,
		LayerID: "l1",
	}, "req-1")
	if err != nil {
		t.Fatalf("new response: %v", err)
	}
	if !p.resolve(resp) {
		t.Fatalf("expected resolution")
	}
	out := <-pr.done
	if out.err != nil {
		t.Fatalf("unexpected error: %v", out.err)
	}
	if p.count() != 0 {
		t.Fatalf("resolved request still tracked")
	}
	// First match wins; the id is gone afterwards.
	if p.resolve(resp) {
		t.Fatalf("second resolution for the same id")
	}
}

func TestPendingSetResolveErrorStatus(t *testing.T) {
	testlog.Start(t)
	p := newPendingSet()
	pr := p.add("req-2", protocol.CommandInit)

	resp, err := protocol.NewResponse(protocol.CommandInit, protocol.InitResult{
		Status:  protocol.StatusError,
		Message: "duplicate model",
	}, "req-2")
	if err != nil {
		t.Fatalf("new response: %v", err)
	}
	if !p.resolve(resp) {
		t.Fatalf("expected resolution")
	}
	out := <-pr.done
	var remote *RemoteError
	if !errors.As(out.err, &remote) {
		t.Fatalf("expected remote error, got %v", out.err)
	}
	if remote.Message != "duplicate model" {
		t.Fatalf("unexpected message: %q", remote.Message)
	}
}

func TestPendingSetErrorStatusWithoutMessage(t *testing.T) {
	testlog.Start(t)
	p := newPendingSet()
	pr := p.add("req-3", protocol.CommandTrain)

	resp, err := protocol.NewResponse(protocol.CommandTrain, protocol.TrainResult{
		Status: protocol.StatusError,
	}, "req-3")
	if err != nil {
		t.Fatalf("new response: %v", err)
	}
	p.resolve(resp)
	out := <-pr.done
	var remote *RemoteError
	if !errors.As(out.err, &remote) {
		t.Fatalf("expected remote error, got %v", out.err)
	}
	if remote.Message != "unknown error" {
		t.Fatalf("missing server message should fall back, got %q", remote.Message)
	}
}

func TestPendingSetRemoveAndList(t *testing.T) {
	testlog.Start(t)
	p := newPendingSet()
	p.add("req-b", protocol.CommandPing)
	p.add("req-a", protocol.CommandQuery)

	list := p.list()
	if len(list) != 2 || list[0].RequestID != "req-a" || list[1].RequestID != "req-b" {
		t.Fatalf("unexpected list: %+v", list)
	}
	if !p.remove("req-a") {
		t.Fatalf("remove should report tracked id")
	}
	if p.remove("req-a") {
		t.Fatalf("second remove should report untracked id")
	}
	if p.count() != 1 {
		t.Fatalf("unexpected count: %d", p.count())
	}
}
