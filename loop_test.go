package scout

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

// --- fakes ---

// scriptedStream replays a fixed fragment sequence, then EOF (or failErr).
type scriptedStream struct {
	frags   []Fragment
	i       int
	failErr error
	closed  bool
}

func (s *scriptedStream) Recv() (Fragment, error) {
	if s.i >= len(s.frags) {
		if s.failErr != nil {
			return Fragment{}, s.failErr
		}
		return Fragment{}, io.EOF
	}
	f := s.frags[s.i]
	s.i++
	return f, nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

// scriptedProvider hands out one scripted stream per call.
type scriptedProvider struct {
	streams  []*scriptedStream
	requests []ChatRequest
}

func (p *scriptedProvider) StreamChat(_ context.Context, req ChatRequest) (FragmentStream, error) {
	p.requests = append(p.requests, req)
	if len(p.requests) > len(p.streams) {
		return nil, errors.New("no scripted stream left")
	}
	return p.streams[len(p.requests)-1], nil
}

type storedMsg struct {
	role       string
	content    string
	toolCalls  []ToolCall
	toolCallID string
}

// memStore records AddMessage calls; the rest of the interface is inert.
type memStore struct {
	mu    sync.Mutex
	added []storedMsg
}

func (m *memStore) AddMessage(_ context.Context, _ string, role, content string, toolCalls []ToolCall, toolCallID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added = append(m.added, storedMsg{role, content, toolCalls, toolCallID})
	return nil
}

func (m *memStore) CreateSession(context.Context) (SessionSummary, error) {
	return SessionSummary{}, nil
}
func (m *memStore) ListSessions(context.Context) ([]SessionSummary, error) { return nil, nil }
func (m *memStore) GetSession(context.Context, string) (*SessionDetail, error) {
	return nil, nil
}
func (m *memStore) DeleteSession(context.Context, string) (bool, error) { return false, nil }
func (m *memStore) UpdateSessionTitle(context.Context, string, string) (*SessionSummary, error) {
	return nil, nil
}
func (m *memStore) SessionExists(context.Context, string) (bool, error)  { return true, nil }
func (m *memStore) AutoTitleIfNeeded(context.Context, string, string) error { return nil }
func (m *memStore) GetMessages(context.Context, string) ([]ChatMessage, error) {
	return nil, nil
}
func (m *memStore) GetMessageEvents(context.Context, string) ([]MessageEvent, error) {
	return nil, nil
}
func (m *memStore) Init(context.Context) error { return nil }
func (m *memStore) Close() error               { return nil }

type fakeTool struct {
	name    string
	confirm bool
	result  string
	gotArgs []json.RawMessage
}

func (f *fakeTool) Name() string                { return f.name }
func (f *fakeTool) Description() string         { return "fake" }
func (f *fakeTool) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (f *fakeTool) RequiresConfirmation() bool  { return f.confirm }
func (f *fakeTool) Execute(_ context.Context, args json.RawMessage, _ string) string {
	f.gotArgs = append(f.gotArgs, args)
	return f.result
}

// collectEvents drives RunLoop to completion and returns everything emitted.
func collectEvents(t *testing.T, cfg LoopConfig, history []ChatMessage) []Event {
	t.Helper()
	ch := make(chan Event)
	done := make(chan struct{})
	var events []Event
	go func() {
		for ev := range ch {
			events = append(events, ev)
		}
		close(done)
	}()
	RunLoop(context.Background(), cfg, history, ch)
	close(ch)
	<-done
	return events
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

// --- tests ---

func TestLoopTextOnlyTurn(t *testing.T) {
	provider := &scriptedProvider{streams: []*scriptedStream{{
		frags: []Fragment{
			{TextDelta: "Hel", Model: "gpt-4o-mini-2024"},
			{TextDelta: "lo"},
			{FinishReason: FinishStop},
		},
	}}}
	store := &memStore{}

	events := collectEvents(t, LoopConfig{
		Provider:  provider,
		Registry:  NewRegistry(),
		Store:     store,
		SessionID: "s1",
		Model:     "gpt-4o-mini",
	}, []ChatMessage{UserMessage("hi")})

	want := []EventType{EventTextDelta, EventTextDelta, EventDone}
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("event types = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event types = %v, want %v", got, want)
		}
	}

	done := events[2].Data.(DoneEvent)
	if done.Model != "gpt-4o-mini-2024" {
		t.Errorf("done model = %q, want resolved provider name", done.Model)
	}

	if len(store.added) != 1 || store.added[0].role != "assistant" || store.added[0].content != "Hello" {
		t.Errorf("persisted messages = %+v, want one assistant 'Hello'", store.added)
	}
}

func TestLoopDoneModelFallback(t *testing.T) {
	provider := &scriptedProvider{streams: []*scriptedStream{{
		frags: []Fragment{{TextDelta: "ok"}, {FinishReason: FinishStop}},
	}}}

	events := collectEvents(t, LoopConfig{
		Provider: provider,
		Registry: NewRegistry(),
		Store:    &memStore{},
		Model:    "gpt-4o",
	}, nil)

	done := events[len(events)-1].Data.(DoneEvent)
	if done.Model != "gpt-4o" {
		t.Errorf("done model = %q, want requested model when provider omits it", done.Model)
	}
}

func TestLoopToolCallRoundTrip(t *testing.T) {
	provider := &scriptedProvider{streams: []*scriptedStream{
		{frags: []Fragment{
			{ToolCallDeltas: []ToolCallDelta{{Index: 0, ID: "call_1", Name: "lookup", ArgumentsDelta: `{"q":`}}},
			{ToolCallDeltas: []ToolCallDelta{{Index: 0, ArgumentsDelta: `"x"}`}}},
			{FinishReason: FinishToolCalls},
		}},
		{frags: []Fragment{{TextDelta: "found it"}, {FinishReason: FinishStop}}},
	}}
	tool := &fakeTool{name: "lookup", result: "42"}
	reg := NewRegistry()
	reg.Register(tool)
	store := &memStore{}

	events := collectEvents(t, LoopConfig{
		Provider:  provider,
		Registry:  reg,
		Store:     store,
		SessionID: "s1",
		Model:     "gpt-4o",
	}, []ChatMessage{UserMessage("look up x")})

	want := []EventType{EventToolCall, EventToolResult, EventTextDelta, EventDone}
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("event types = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event types = %v, want %v", got, want)
		}
	}

	call := events[0].Data.(ToolCallEvent)
	if call.ID != "call_1" || call.Name != "lookup" || call.Arguments != `{"q":"x"}` {
		t.Errorf("tool-call event = %+v, arguments not accumulated", call)
	}

	result := events[1].Data.(ToolResultEvent)
	if result.Content != "42" || result.IsError {
		t.Errorf("tool-result = %+v", result)
	}

	if len(tool.gotArgs) != 1 || string(tool.gotArgs[0]) != `{"q":"x"}` {
		t.Errorf("tool received args %v", tool.gotArgs)
	}

	// Assistant tool-call turn, tool result, final assistant text.
	if len(store.added) != 3 {
		t.Fatalf("persisted %d messages, want 3: %+v", len(store.added), store.added)
	}
	if store.added[0].role != "assistant" || len(store.added[0].toolCalls) != 1 {
		t.Errorf("first persisted message = %+v, want assistant with tool calls", store.added[0])
	}
	if store.added[1].role != "tool" || store.added[1].toolCallID != "call_1" {
		t.Errorf("second persisted message = %+v, want tool result", store.added[1])
	}

	// The second provider call must carry the tool exchange.
	if len(provider.requests) != 2 {
		t.Fatalf("provider called %d times, want 2", len(provider.requests))
	}
	msgs := provider.requests[1].Messages
	last := msgs[len(msgs)-1]
	if last.Role != "tool" || last.Content != "42" || last.ToolCallID != "call_1" {
		t.Errorf("last history message = %+v, want the tool result", last)
	}
}

func TestLoopUnknownTool(t *testing.T) {
	provider := &scriptedProvider{streams: []*scriptedStream{
		{frags: []Fragment{
			{ToolCallDeltas: []ToolCallDelta{{Index: 0, ID: "call_1", Name: "nope", ArgumentsDelta: `{}`}}},
			{FinishReason: FinishToolCalls},
		}},
		{frags: []Fragment{{FinishReason: FinishStop}}},
	}}

	events := collectEvents(t, LoopConfig{
		Provider: provider,
		Registry: NewRegistry(),
		Store:    &memStore{},
		Model:    "gpt-4o",
	}, nil)

	var result ToolResultEvent
	for _, ev := range events {
		if ev.Type == EventToolResult {
			result = ev.Data.(ToolResultEvent)
		}
	}
	if result.Content != "Error: unknown tool 'nope'." || !result.IsError {
		t.Errorf("tool-result = %+v", result)
	}
}

func TestLoopMalformedArguments(t *testing.T) {
	provider := &scriptedProvider{streams: []*scriptedStream{
		{frags: []Fragment{
			{ToolCallDeltas: []ToolCallDelta{{Index: 0, ID: "call_1", Name: "lookup", ArgumentsDelta: `{"q":`}}},
			{FinishReason: FinishToolCalls},
		}},
		{frags: []Fragment{{FinishReason: FinishStop}}},
	}}
	tool := &fakeTool{name: "lookup", result: "42"}
	reg := NewRegistry()
	reg.Register(tool)

	events := collectEvents(t, LoopConfig{
		Provider: provider,
		Registry: reg,
		Store:    &memStore{},
		Model:    "gpt-4o",
	}, nil)

	var result ToolResultEvent
	for _, ev := range events {
		if ev.Type == EventToolResult {
			result = ev.Data.(ToolResultEvent)
		}
	}
	if !result.IsError || !strings.Contains(result.Content, "failed to parse arguments for tool 'lookup'") {
		t.Errorf("tool-result = %+v", result)
	}
	if len(tool.gotArgs) != 0 {
		t.Error("tool must not run on malformed arguments")
	}
}

func TestLoopEmptyArgumentsDefaultToObject(t *testing.T) {
	provider := &scriptedProvider{streams: []*scriptedStream{
		{frags: []Fragment{
			{ToolCallDeltas: []ToolCallDelta{{Index: 0, ID: "call_1", Name: "lookup"}}},
			{FinishReason: FinishToolCalls},
		}},
		{frags: []Fragment{{FinishReason: FinishStop}}},
	}}
	tool := &fakeTool{name: "lookup", result: "ok"}
	reg := NewRegistry()
	reg.Register(tool)

	collectEvents(t, LoopConfig{
		Provider: provider,
		Registry: reg,
		Store:    &memStore{},
		Model:    "gpt-4o",
	}, nil)

	if len(tool.gotArgs) != 1 || string(tool.gotArgs[0]) != "{}" {
		t.Errorf("tool received args %v, want implicit empty object", tool.gotArgs)
	}
}

func TestLoopConfirmationDenied(t *testing.T) {
	provider := &scriptedProvider{streams: []*scriptedStream{
		{frags: []Fragment{
			{ToolCallDeltas: []ToolCallDelta{{Index: 0, ID: "call_1", Name: "external", ArgumentsDelta: `{}`}}},
			{FinishReason: FinishToolCalls},
		}},
		{frags: []Fragment{{TextDelta: "understood"}, {FinishReason: FinishStop}}},
	}}
	tool := &fakeTool{name: "external", confirm: true, result: "secret"}
	reg := NewRegistry()
	reg.Register(tool)

	var confirmedID string
	events := collectEvents(t, LoopConfig{
		Provider: provider,
		Registry: reg,
		Store:    &memStore{},
		Model:    "gpt-4o",
		Confirm: func(_ context.Context, toolCallID string) bool {
			confirmedID = toolCallID
			return false
		},
	}, nil)

	got := eventTypes(events)
	want := []EventType{EventToolCall, EventToolConfirm, EventToolResult, EventTextDelta, EventDone}
	if len(got) != len(want) {
		t.Fatalf("event types = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event types = %v, want %v", got, want)
		}
	}

	if confirmedID != "call_1" {
		t.Errorf("confirm resolver got id %q", confirmedID)
	}
	result := events[2].Data.(ToolResultEvent)
	if result.Content != declinedResultText || !result.IsError {
		t.Errorf("tool-result = %+v", result)
	}
	if len(tool.gotArgs) != 0 {
		t.Error("denied tool must not execute")
	}
}

func TestLoopConfirmationApproved(t *testing.T) {
	provider := &scriptedProvider{streams: []*scriptedStream{
		{frags: []Fragment{
			{ToolCallDeltas: []ToolCallDelta{{Index: 0, ID: "call_1", Name: "external", ArgumentsDelta: `{}`}}},
			{FinishReason: FinishToolCalls},
		}},
		{frags: []Fragment{{FinishReason: FinishStop}}},
	}}
	tool := &fakeTool{name: "external", confirm: true, result: "contents"}
	reg := NewRegistry()
	reg.Register(tool)

	events := collectEvents(t, LoopConfig{
		Provider: provider,
		Registry: reg,
		Store:    &memStore{},
		Model:    "gpt-4o",
		Confirm:  func(context.Context, string) bool { return true },
	}, nil)

	var result ToolResultEvent
	for _, ev := range events {
		if ev.Type == EventToolResult {
			result = ev.Data.(ToolResultEvent)
		}
	}
	if result.Content != "contents" || result.IsError {
		t.Errorf("tool-result = %+v", result)
	}
}

func TestLoopNoConfirmResolverDenies(t *testing.T) {
	provider := &scriptedProvider{streams: []*scriptedStream{
		{frags: []Fragment{
			{ToolCallDeltas: []ToolCallDelta{{Index: 0, ID: "call_1", Name: "external", ArgumentsDelta: `{}`}}},
			{FinishReason: FinishToolCalls},
		}},
		{frags: []Fragment{{FinishReason: FinishStop}}},
	}}
	tool := &fakeTool{name: "external", confirm: true, result: "secret"}
	reg := NewRegistry()
	reg.Register(tool)

	events := collectEvents(t, LoopConfig{
		Provider: provider,
		Registry: reg,
		Store:    &memStore{},
		Model:    "gpt-4o",
	}, nil)

	var result ToolResultEvent
	for _, ev := range events {
		if ev.Type == EventToolResult {
			result = ev.Data.(ToolResultEvent)
		}
	}
	if result.Content != declinedResultText {
		t.Errorf("tool-result content = %q, want auto-decline", result.Content)
	}
}

func TestLoopProviderCallError(t *testing.T) {
	provider := &scriptedProvider{} // no streams: first call fails

	events := collectEvents(t, LoopConfig{
		Provider: provider,
		Registry: NewRegistry(),
		Store:    &memStore{},
		Model:    "gpt-4o",
	}, nil)

	if len(events) != 1 || events[0].Type != EventError {
		t.Fatalf("events = %v, want a single error", eventTypes(events))
	}
}

func TestLoopStreamFailureSalvagesPartialText(t *testing.T) {
	provider := &scriptedProvider{streams: []*scriptedStream{{
		frags:   []Fragment{{TextDelta: "partial "}, {TextDelta: "answer"}},
		failErr: errors.New("connection reset"),
	}}}
	store := &memStore{}

	events := collectEvents(t, LoopConfig{
		Provider:  provider,
		Registry:  NewRegistry(),
		Store:     store,
		SessionID: "s1",
		Model:     "gpt-4o",
	}, nil)

	last := events[len(events)-1]
	if last.Type != EventError {
		t.Fatalf("last event = %v, want error", last.Type)
	}
	if len(store.added) != 1 || store.added[0].content != "partial answer" {
		t.Errorf("persisted = %+v, want salvaged partial text", store.added)
	}
}

func TestLoopDisconnectAbandonsSilently(t *testing.T) {
	provider := &scriptedProvider{streams: []*scriptedStream{{
		frags: []Fragment{{TextDelta: "never seen"}, {FinishReason: FinishStop}},
	}}}
	store := &memStore{}

	events := collectEvents(t, LoopConfig{
		Provider:       provider,
		Registry:       NewRegistry(),
		Store:          store,
		Model:          "gpt-4o",
		IsDisconnected: func() bool { return true },
	}, nil)

	if len(events) != 0 {
		t.Errorf("events = %v, want none after disconnect", eventTypes(events))
	}
	if len(store.added) != 0 {
		t.Errorf("persisted = %+v, want nothing", store.added)
	}
	if !provider.streams[0].closed {
		t.Error("provider stream must be closed on abandon")
	}
}

func TestLoopIterationCap(t *testing.T) {
	mkStream := func() *scriptedStream {
		return &scriptedStream{frags: []Fragment{
			{ToolCallDeltas: []ToolCallDelta{{Index: 0, ID: "call_x", Name: "lookup", ArgumentsDelta: `{}`}}},
			{FinishReason: FinishToolCalls},
		}}
	}
	provider := &scriptedProvider{streams: []*scriptedStream{mkStream(), mkStream()}}
	tool := &fakeTool{name: "lookup", result: "again"}
	reg := NewRegistry()
	reg.Register(tool)

	events := collectEvents(t, LoopConfig{
		Provider:      provider,
		Registry:      reg,
		Store:         &memStore{},
		Model:         "gpt-4o",
		MaxIterations: 2,
	}, nil)

	last := events[len(events)-1]
	if last.Type != EventError {
		t.Fatalf("last event = %v, want error", last.Type)
	}
	msg := last.Data.(ErrorEvent).Message
	if msg != "Agent loop exceeded maximum iterations (2)." {
		t.Errorf("error message = %q", msg)
	}
	if len(provider.requests) != 2 {
		t.Errorf("provider called %d times, want exactly the cap", len(provider.requests))
	}
}

func TestLoopSendsFullToolListEveryIteration(t *testing.T) {
	provider := &scriptedProvider{streams: []*scriptedStream{
		{frags: []Fragment{
			{ToolCallDeltas: []ToolCallDelta{{Index: 0, ID: "c1", Name: "a", ArgumentsDelta: `{}`}}},
			{FinishReason: FinishToolCalls},
		}},
		{frags: []Fragment{{FinishReason: FinishStop}}},
	}}
	reg := NewRegistry()
	reg.Register(&fakeTool{name: "a", result: "1"})
	reg.Register(&fakeTool{name: "b", result: "2"})

	collectEvents(t, LoopConfig{
		Provider: provider,
		Registry: reg,
		Store:    &memStore{},
		Model:    "gpt-4o",
	}, nil)

	for i, req := range provider.requests {
		if len(req.Tools) != 2 {
			t.Errorf("request %d carried %d tools, want 2", i, len(req.Tools))
		}
	}
}
