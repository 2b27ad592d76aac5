package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

type reply struct {
	raw string
	err error
}

func ok(raw string) reply  { return reply{raw: raw} }
func fail(err error) reply { return reply{err: err} }
func plan(tasks ...string) reply {
	data, _ := json.Marshal(map[string]any{"tasks": tasks})
	return ok(string(data))
}
func pick(tool string, args map[string]any) reply {
	data, _ := json.Marshal(map[string]any{"tool": tool, "arguments": args})
	return ok(string(data))
}
func verdict(done bool) reply {
	return ok(fmt.Sprintf(`{"done": %t}`, done))
}
func answer(text string) reply {
	data, _ := json.Marshal(map[string]string{"answer": text})
	return ok(string(data))
}

// scriptedReasoning replays queued replies per purpose. When a queue runs dry
// the last reply repeats.
type scriptedReasoning struct {
	mu       sync.Mutex
	queues   map[Purpose][]reply
	last     map[Purpose]reply
	requests []Request
}

func newScriptedReasoning() *scriptedReasoning {
	return &scriptedReasoning{
		queues: map[Purpose][]reply{},
		last:   map[Purpose]reply{},
	}
}

func (s *scriptedReasoning) on(p Purpose, replies ...reply) *scriptedReasoning {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[p] = append(s.queues[p], replies...)
	return s
}

func (s *scriptedReasoning) Complete(_ context.Context, req Request) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)

	var r reply
	if q := s.queues[req.Purpose]; len(q) > 0 {
		r = q[0]
		s.queues[req.Purpose] = q[1:]
		s.last[req.Purpose] = r
	} else if prev, ok := s.last[req.Purpose]; ok {
		r = prev
	} else {
		return nil, errors.New("no scripted reply for " + string(req.Purpose))
	}
	if r.err != nil {
		return nil, r.err
	}
	return json.RawMessage(r.raw), nil
}

func (s *scriptedReasoning) calls(p Purpose) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Purpose == p {
			n++
		}
	}
	return n
}

// slowAnswers delays answer calls until delay passes or ctx is done.
type slowAnswers struct {
	*scriptedReasoning
	delay time.Duration
}

func (s slowAnswers) Complete(ctx context.Context, req Request) (json.RawMessage, error) {
	if req.Purpose == PurposeAnswer {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.scriptedReasoning.Complete(ctx, req)
}

type mockTools struct {
	mock.Mock
}

func (m *mockTools) Invoke(_ context.Context, name string, args map[string]any) (string, error) {
	called := m.Called(name, args)
	return called.String(0), called.Error(1)
}

// catalogTools is a mockTools that also describes its tools.
type catalogTools struct {
	mockTools
	specs []ToolSpec
}

func (c *catalogTools) Tools() []ToolSpec { return c.specs }

// recorder captures every event and snapshot a run emits.
type recorder struct {
	mu     sync.Mutex
	events []Event
	snaps  []Snapshot
}

func (r *recorder) progress(ev Event, snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	r.snaps = append(r.snaps, snap)
}

func (r *recorder) last() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snaps[len(r.snaps)-1]
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type tokenRedactor struct{}

func (tokenRedactor) Redact(s string) string {
	return strings.ReplaceAll(s, "secret-token", "[REDACTED]")
}

func testConfig() RunConfig {
	cfg := DefaultRunConfig()
	cfg.ReasoningTimeout = 0
	cfg.ToolTimeout = 0
	return cfg
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("run-%d", n)
	}
}
