package session

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/neuroforge/trainlink/internal/protocol"
)

// outcome is the settled result of one pending request.
type outcome struct {
	data json.RawMessage
	err  error
}

// pendingRequest tracks one in-flight command awaiting its correlated
// response. The done channel is buffered so a resolver never blocks on
// a caller that already gave up.
type pendingRequest struct {
	requestID string
	command   protocol.CommandType
	createdAt time.Time
	done      chan outcome
}

// PendingInfo is a read-only snapshot of one tracked request.
type PendingInfo struct {
	RequestID string
	Command   protocol.CommandType
	CreatedAt time.Time
}

// pendingSet stores pending requests keyed by requestId. Exactly one
// entry exists per outstanding id; whichever of resolve/remove pops the
// entry first settles the request.
type pendingSet struct {
	mu    sync.Mutex
	items map[string]*pendingRequest
}

func newPendingSet() *pendingSet {
	return &pendingSet{
		items: make(map[string]*pendingRequest),
	}
}

func (p *pendingSet) add(requestID string, command protocol.CommandType) *pendingRequest {
	pr := &pendingRequest{
		requestID: requestID,
		command:   command,
		createdAt: time.Now(),
		done:      make(chan outcome, 1),
	}
	p.mu.Lock()
	p.items[requestID] = pr
	p.mu.Unlock()
	return pr
}

// remove drops the entry and reports whether it was still tracked.
func (p *pendingSet) remove(requestID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.items[requestID]; !ok {
		return false
	}
	delete(p.items, requestID)
	return true
}

// resolve settles the request matching the response's requestId, if one
// is tracked. A payload with status error settles the request with a
// RemoteError carrying the server message.
func (p *pendingSet) resolve(env protocol.Envelope) bool {
	p.mu.Lock()
	pr, ok := p.items[env.RequestID]
	if ok {
		delete(p.items, env.RequestID)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}

	probe, _ := protocol.ProbeStatus(env.Data)
	if probe.Status == protocol.StatusError {
		msg := probe.Message
		if msg == "" {
			msg = "unknown error"
		}
		pr.done <- outcome{err: &RemoteError{
			Command:   env.CommandType,
			Message:   msg,
			ErrorCode: probe.ErrorCode,
		}}
		return true
	}
	pr.done <- outcome{data: env.Data}
	return true
}

func (p *pendingSet) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

func (p *pendingSet) list() []PendingInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PendingInfo, 0, len(p.items))
	for _, pr := range p.items {
		out = append(out, PendingInfo{
			RequestID: pr.requestID,
			Command:   pr.command,
			CreatedAt: pr.createdAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestID < out[j].RequestID
	})
	return out
}
