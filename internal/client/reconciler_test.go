package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/naavyaberiwal-glitch/myAI3/internal/domain"
)

// memStore is an in-memory Store for session tests.
type memStore struct {
	mu           sync.Mutex
	conversation domain.Conversation
	durations    domain.DurationMap
	initState    domain.InitState
	saves        int
	loadErr      error
}

func newMemStore() *memStore {
	return &memStore{durations: domain.DurationMap{}, initState: domain.InitStateEmpty}
}

func (m *memStore) Load() (domain.Conversation, domain.DurationMap, domain.InitState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, nil, domain.InitStateEmpty, m.loadErr
	}
	conv := make(domain.Conversation, len(m.conversation))
	copy(conv, m.conversation)
	durs := domain.DurationMap{}
	for k, v := range m.durations {
		durs[k] = v
	}
	return conv, durs, m.initState, nil
}

func (m *memStore) Save(conversation domain.Conversation, durations domain.DurationMap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversation = make(domain.Conversation, len(conversation))
	copy(m.conversation, conversation)
	m.durations = domain.DurationMap{}
	for k, v := range durations {
		m.durations[k] = v
	}
	m.saves++
	return nil
}

func (m *memStore) SetInitState(state domain.InitState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initState = state
	return nil
}

func (m *memStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversation = nil
	m.durations = domain.DurationMap{}
	m.initState = domain.InitStateEmpty
	return nil
}

// scriptedStreamer plays back a fixed event sequence synchronously.
type scriptedStreamer struct {
	events []domain.StreamEvent
	err    error
}

func (s *scriptedStreamer) Stream(ctx context.Context, history []domain.Message, handler EventHandler) error {
	for _, ev := range s.events {
		if err := handler(ev); err != nil {
			return err
		}
	}
	return s.err
}

func answerEvents(segID string, deltas ...string) []domain.StreamEvent {
	events := []domain.StreamEvent{domain.StartEvent(), domain.TextStartEvent(segID)}
	for _, d := range deltas {
		events = append(events, domain.TextDeltaEvent(segID, d))
	}
	events = append(events, domain.TextEndEvent(segID), domain.FinishEvent())
	return events
}

func submitAndWait(t *testing.T, s *Session, text string) {
	t.Helper()
	done, err := s.Submit(text)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("turn did not complete")
	}
}

func TestSessionFoldsStreamIntoOneAssistantMessage(t *testing.T) {
	store := newMemStore()
	store.initState = domain.InitStateActive // suppress welcome
	streamer := &scriptedStreamer{events: answerEvents("seg1", "Use ", "recycled ", "paper.")}

	s := NewSession(streamer, store)
	s.Hydrate()
	submitAndWait(t, s, "what paper should I buy?")

	conv := s.Conversation()
	if len(conv) != 2 {
		t.Fatalf("expected user + assistant message, got %d messages", len(conv))
	}
	assistant := conv[1]
	if assistant.Role != domain.RoleAssistant {
		t.Fatalf("second message role = %s", assistant.Role)
	}
	if got := assistant.Text(); got != "Use recycled paper." {
		t.Fatalf("assistant text = %q", got)
	}
	if s.Status() != StatusReady {
		t.Fatalf("status = %s, want ready", s.Status())
	}
	if _, ok := s.Durations()[assistant.ID]; !ok {
		t.Fatal("finished turn must record a duration for the assistant message")
	}
}

func TestSessionAppendsToolPartsInOrder(t *testing.T) {
	store := newMemStore()
	store.initState = domain.InitStateActive
	input := json.RawMessage(`{"query":"paper"}`)
	output := json.RawMessage(`{"results":[{"title":"hit"}]}`)
	streamer := &scriptedStreamer{events: []domain.StreamEvent{
		domain.StartEvent(),
		domain.ToolInvocationEvent("supplierSearch", input),
		domain.ToolResultEvent("supplierSearch", output),
		domain.TextStartEvent("seg1"),
		domain.TextDeltaEvent("seg1", "Found one."),
		domain.TextEndEvent("seg1"),
		domain.FinishEvent(),
	}}

	s := NewSession(streamer, store)
	s.Hydrate()
	submitAndWait(t, s, "find suppliers")

	assistant := s.Conversation()[1]
	if len(assistant.Parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(assistant.Parts))
	}
	if assistant.Parts[0].Type != domain.PartTypeToolInvocation {
		t.Fatalf("part 0 type = %s", assistant.Parts[0].Type)
	}
	if assistant.Parts[1].Type != domain.PartTypeToolResult {
		t.Fatalf("part 1 type = %s", assistant.Parts[1].Type)
	}
	if string(assistant.Parts[1].Payload) != string(output) {
		t.Fatalf("tool result payload altered: %s", assistant.Parts[1].Payload)
	}
	if assistant.Parts[2].Type != domain.PartTypeText || assistant.Parts[2].Text != "Found one." {
		t.Fatalf("part 2 = %+v", assistant.Parts[2])
	}
}

func TestSessionTextSegmentKeepsStartPosition(t *testing.T) {
	// A segment opened before a tool call keeps its position even though
	// its deltas arrive after the tool result.
	store := newMemStore()
	store.initState = domain.InitStateActive
	streamer := &scriptedStreamer{events: []domain.StreamEvent{
		domain.StartEvent(),
		domain.TextStartEvent("pre"),
		domain.TextDeltaEvent("pre", "Checking"),
		domain.ToolInvocationEvent("webSearch", json.RawMessage(`{"query":"x"}`)),
		domain.ToolResultEvent("webSearch", json.RawMessage(`{"results":[]}`)),
		domain.TextDeltaEvent("pre", " now."),
		domain.TextEndEvent("pre"),
		domain.FinishEvent(),
	}}

	s := NewSession(streamer, store)
	s.Hydrate()
	submitAndWait(t, s, "go")

	assistant := s.Conversation()[1]
	if assistant.Parts[0].Type != domain.PartTypeText || assistant.Parts[0].Text != "Checking now." {
		t.Fatalf("part 0 = %+v, want the full segment text at its opening position", assistant.Parts[0])
	}
	if assistant.Parts[1].Type != domain.PartTypeToolInvocation {
		t.Fatalf("part 1 type = %s", assistant.Parts[1].Type)
	}
}

func TestSessionErrorEventKeepsPartialContent(t *testing.T) {
	store := newMemStore()
	store.initState = domain.InitStateActive
	streamer := &scriptedStreamer{events: []domain.StreamEvent{
		domain.StartEvent(),
		domain.TextStartEvent("seg1"),
		domain.TextDeltaEvent("seg1", "partial"),
		{Type: domain.EventTypeError, Error: "upstream failed"},
	}}

	s := NewSession(streamer, store)
	s.Hydrate()
	submitAndWait(t, s, "hello")

	if s.Status() != StatusError {
		t.Fatalf("status = %s, want error", s.Status())
	}
	assistant := s.Conversation()[1]
	if assistant.Text() != "partial" {
		t.Fatalf("partial content lost: %q", assistant.Text())
	}

	// Resubmission is allowed from the error status.
	streamer.events = answerEvents("seg2", "retry ok")
	submitAndWait(t, s, "try again")
	if s.Status() != StatusReady {
		t.Fatalf("status after retry = %s, want ready", s.Status())
	}
}

func TestSessionTransportFailureSetsErrorStatus(t *testing.T) {
	store := newMemStore()
	store.initState = domain.InitStateActive
	streamer := &scriptedStreamer{
		events: []domain.StreamEvent{
			domain.StartEvent(),
			domain.TextStartEvent("seg1"),
			domain.TextDeltaEvent("seg1", "half an ans"),
		},
		err: fmt.Errorf("connection reset"),
	}

	s := NewSession(streamer, store)
	s.Hydrate()

	done, err := s.Submit("hello")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := <-done; err == nil {
		t.Fatal("expected transport error from done channel")
	}
	if s.Status() != StatusError {
		t.Fatalf("status = %s, want error", s.Status())
	}
	if got := s.Conversation()[1].Text(); got != "half an ans" {
		t.Fatalf("partial content lost: %q", got)
	}
}

// gatedStreamer emits a first batch, signals, then blocks until released
// before emitting the rest. It lets a test act mid-stream.
type gatedStreamer struct {
	first   []domain.StreamEvent
	rest    []domain.StreamEvent
	midway  chan struct{}
	release chan struct{}
}

func (s *gatedStreamer) Stream(ctx context.Context, history []domain.Message, handler EventHandler) error {
	for _, ev := range s.first {
		if err := handler(ev); err != nil {
			return err
		}
	}
	close(s.midway)
	<-s.release
	for _, ev := range s.rest {
		if err := handler(ev); err != nil {
			return err
		}
	}
	return nil
}

func TestSessionStopDiscardsLaterEvents(t *testing.T) {
	store := newMemStore()
	store.initState = domain.InitStateActive
	streamer := &gatedStreamer{
		first: []domain.StreamEvent{
			domain.StartEvent(),
			domain.TextStartEvent("seg1"),
			domain.TextDeltaEvent("seg1", "kept"),
		},
		rest: []domain.StreamEvent{
			domain.TextDeltaEvent("seg1", " DISCARDED"),
			domain.TextEndEvent("seg1"),
			domain.FinishEvent(),
		},
		midway:  make(chan struct{}),
		release: make(chan struct{}),
	}

	s := NewSession(streamer, store)
	s.Hydrate()
	done, err := s.Submit("hello")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	<-streamer.midway
	s.Stop()
	close(streamer.release)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("turn did not resolve after stop")
	}

	if s.Status() != StatusReady {
		t.Fatalf("status after stop = %s, want ready", s.Status())
	}
	assistant := s.Conversation()[1]
	if assistant.Text() != "kept" {
		t.Fatalf("post-stop events were applied: %q", assistant.Text())
	}
	if _, ok := s.Durations()[assistant.ID]; ok {
		t.Fatal("stopped turn must not record a duration")
	}

	// A new submission is allowed immediately after stop.
	s2 := &scriptedStreamer{events: answerEvents("seg2", "fresh")}
	s.streamer = s2
	submitAndWait(t, s, "again")
	if got := s.Conversation().LastMessage().Text(); got != "fresh" {
		t.Fatalf("follow-up turn text = %q", got)
	}
}

func TestSessionFoldIsDeterministic(t *testing.T) {
	// The same event sequence folds to the same conversation shape,
	// regardless of the session it is applied in.
	events := []domain.StreamEvent{
		domain.StartEvent(),
		domain.ToolInvocationEvent("webSearch", json.RawMessage(`{"query":"x"}`)),
		domain.ToolResultEvent("webSearch", json.RawMessage(`{"results":[]}`)),
		domain.TextStartEvent("seg1"),
		domain.TextDeltaEvent("seg1", "same "),
		domain.TextDeltaEvent("seg1", "answer"),
		domain.TextEndEvent("seg1"),
		domain.FinishEvent(),
	}

	fold := func() domain.Message {
		store := newMemStore()
		store.initState = domain.InitStateActive
		s := NewSession(&scriptedStreamer{events: events}, store)
		s.Hydrate()
		submitAndWait(t, s, "hi")
		return s.Conversation()[1]
	}

	first, second := fold(), fold()
	if first.Text() != second.Text() {
		t.Fatalf("texts diverged: %q vs %q", first.Text(), second.Text())
	}
	if len(first.Parts) != len(second.Parts) {
		t.Fatalf("part counts diverged: %d vs %d", len(first.Parts), len(second.Parts))
	}
	for i := range first.Parts {
		if first.Parts[i].Type != second.Parts[i].Type {
			t.Fatalf("part %d type diverged: %s vs %s", i, first.Parts[i].Type, second.Parts[i].Type)
		}
	}
}

func TestSessionDiscardsEventsAfterFinish(t *testing.T) {
	store := newMemStore()
	store.initState = domain.InitStateActive
	events := answerEvents("seg1", "done")
	events = append(events,
		domain.TextStartEvent("late"),
		domain.TextDeltaEvent("late", " STRAGGLER"),
	)
	streamer := &scriptedStreamer{events: events}

	s := NewSession(streamer, store)
	s.Hydrate()
	submitAndWait(t, s, "hi")

	assistant := s.Conversation()[1]
	if got := assistant.Text(); got != "done" {
		t.Fatalf("events after finish were applied: %q", got)
	}
	if s.Status() != StatusReady {
		t.Fatalf("status = %s, want ready", s.Status())
	}
}

// callStreamer routes each Stream call to a per-call script.
type callStreamer struct {
	mu    sync.Mutex
	calls int
	run   func(call int, handler EventHandler) error
}

func (s *callStreamer) Stream(ctx context.Context, history []domain.Message, handler EventHandler) error {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	return s.run(call, handler)
}

func TestSessionStragglerFromStoppedTurnCannotTouchNextTurn(t *testing.T) {
	store := newMemStore()
	store.initState = domain.InitStateActive

	t1Mid := make(chan struct{})
	t1Release := make(chan struct{})
	t2Mid := make(chan struct{})
	t2Release := make(chan struct{})

	streamer := &callStreamer{run: func(call int, h EventHandler) error {
		switch call {
		case 1:
			h(domain.StartEvent())
			h(domain.TextStartEvent("seg1"))
			h(domain.TextDeltaEvent("seg1", "stale"))
			close(t1Mid)
			<-t1Release
			// Stragglers arriving after stop, while the next turn streams.
			h(domain.TextDeltaEvent("seg1", " MORE"))
			h(domain.FinishEvent())
			return nil
		default:
			h(domain.StartEvent())
			close(t2Mid)
			<-t2Release
			h(domain.TextStartEvent("seg2"))
			h(domain.TextDeltaEvent("seg2", "second answer"))
			h(domain.TextEndEvent("seg2"))
			h(domain.FinishEvent())
			return nil
		}
	}}

	s := NewSession(streamer, store)
	s.Hydrate()

	done1, err := s.Submit("first")
	if err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	<-t1Mid
	s.Stop()

	done2, err := s.Submit("second")
	if err != nil {
		t.Fatalf("second Submit failed: %v", err)
	}
	<-t2Mid

	// Deliver the stopped turn's stragglers, including its finish.
	close(t1Release)
	select {
	case <-done1:
	case <-time.After(5 * time.Second):
		t.Fatal("stopped turn did not resolve")
	}

	if s.Status() != StatusStreaming {
		t.Fatalf("status = %s after straggler finish, want streaming", s.Status())
	}
	if _, err := s.Submit("third"); err != ErrTurnInFlight {
		t.Fatalf("expected ErrTurnInFlight while second turn streams, got %v", err)
	}

	close(t2Release)
	select {
	case <-done2:
	case <-time.After(5 * time.Second):
		t.Fatal("second turn did not complete")
	}

	if s.Status() != StatusReady {
		t.Fatalf("status = %s, want ready", s.Status())
	}
	last := s.Conversation().LastMessage()
	if got := last.Text(); got != "second answer" {
		t.Fatalf("second turn's answer = %q", got)
	}
	// The stopped turn's message kept only what was applied before stop.
	conv := s.Conversation()
	stopped := conv[len(conv)-3]
	if got := stopped.Text(); got != "stale" {
		t.Fatalf("stopped turn's text = %q, want the pre-stop content only", got)
	}
}

func TestSessionSnapshotIsStableDuringStreaming(t *testing.T) {
	store := newMemStore()
	store.initState = domain.InitStateActive
	streamer := &gatedStreamer{
		first: []domain.StreamEvent{
			domain.StartEvent(),
			domain.TextStartEvent("seg1"),
			domain.TextDeltaEvent("seg1", "before"),
		},
		rest: []domain.StreamEvent{
			domain.TextDeltaEvent("seg1", " after"),
			domain.TextEndEvent("seg1"),
			domain.FinishEvent(),
		},
		midway:  make(chan struct{}),
		release: make(chan struct{}),
	}

	s := NewSession(streamer, store)
	s.Hydrate()
	done, err := s.Submit("hello")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	<-streamer.midway
	snapshot := s.Conversation()
	close(streamer.release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("turn did not complete")
	}

	// The snapshot must not see deltas applied after it was taken.
	if got := snapshot.LastMessage().Text(); got != "before" {
		t.Fatalf("snapshot mutated by later deltas: %q", got)
	}
	if got := s.Conversation().LastMessage().Text(); got != "before after" {
		t.Fatalf("live conversation = %q", got)
	}
}

func TestSessionRejectsConcurrentSubmit(t *testing.T) {
	store := newMemStore()
	store.initState = domain.InitStateActive
	streamer := &gatedStreamer{
		first:   []domain.StreamEvent{domain.StartEvent()},
		rest:    []domain.StreamEvent{domain.FinishEvent()},
		midway:  make(chan struct{}),
		release: make(chan struct{}),
	}

	s := NewSession(streamer, store)
	s.Hydrate()
	done, err := s.Submit("first")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	<-streamer.midway

	if _, err := s.Submit("second"); err != ErrTurnInFlight {
		t.Fatalf("expected ErrTurnInFlight, got %v", err)
	}

	close(streamer.release)
	<-done
}

func TestSessionSubmitBeforeHydrate(t *testing.T) {
	s := NewSession(&scriptedStreamer{}, newMemStore())
	if _, err := s.Submit("hello"); err != ErrNotHydrated {
		t.Fatalf("expected ErrNotHydrated, got %v", err)
	}
}

func TestSessionWelcomeShownOnceAcrossReloads(t *testing.T) {
	store := newMemStore()

	s := NewSession(&scriptedStreamer{}, store)
	s.Hydrate()

	conv := s.Conversation()
	if len(conv) != 1 || conv[0].Role != domain.RoleAssistant || conv[0].Text() != WelcomeMessage {
		t.Fatalf("expected a single welcome message, got %+v", conv)
	}
	if store.initState != domain.InitStateWelcomeShown {
		t.Fatalf("persisted init state = %s, want welcome_shown", store.initState)
	}
	if _, ok := s.Durations()[conv[0].ID]; ok {
		t.Fatal("welcome message must not have a duration")
	}

	// A second session over the same store must not add another welcome.
	s2 := NewSession(&scriptedStreamer{}, store)
	s2.Hydrate()
	if got := len(s2.Conversation()); got != 1 {
		t.Fatalf("expected 1 message after reload, got %d", got)
	}
}

func TestSessionHydrateFallsBackOnLoadError(t *testing.T) {
	store := newMemStore()
	store.loadErr = fmt.Errorf("disk corrupt")

	s := NewSession(&scriptedStreamer{}, store)
	s.Hydrate()

	// A broken store degrades to a fresh conversation.
	conv := s.Conversation()
	if len(conv) != 1 || conv[0].Text() != WelcomeMessage {
		t.Fatalf("expected fresh conversation with welcome, got %+v", conv)
	}
}

func TestSessionClearResetsAndRewelcomes(t *testing.T) {
	store := newMemStore()
	streamer := &scriptedStreamer{events: answerEvents("seg1", "answer")}

	s := NewSession(streamer, store)
	s.Hydrate()
	submitAndWait(t, s, "hello")

	s.Clear()

	conv := s.Conversation()
	if len(conv) != 1 || conv[0].Text() != WelcomeMessage {
		t.Fatalf("expected only the welcome message after clear, got %+v", conv)
	}
	if len(s.Durations()) != 0 {
		t.Fatalf("durations not cleared: %v", s.Durations())
	}
	if s.Status() != StatusReady {
		t.Fatalf("status = %s, want ready", s.Status())
	}
}

func TestSessionObserverSeesAppliedEventsInOrder(t *testing.T) {
	store := newMemStore()
	store.initState = domain.InitStateActive
	streamer := &scriptedStreamer{events: answerEvents("seg1", "a", "b")}

	s := NewSession(streamer, store)
	var mu sync.Mutex
	var seen []domain.EventType
	s.SetObserver(func(ev domain.StreamEvent) {
		mu.Lock()
		seen = append(seen, ev.Type)
		mu.Unlock()
	})
	s.Hydrate()
	submitAndWait(t, s, "hi")

	mu.Lock()
	defer mu.Unlock()
	want := []domain.EventType{
		domain.EventTypeStart,
		domain.EventTypeTextStart,
		domain.EventTypeTextDelta,
		domain.EventTypeTextDelta,
		domain.EventTypeTextEnd,
		domain.EventTypeFinish,
	}
	if len(seen) != len(want) {
		t.Fatalf("observed %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("observed event %d = %s, want %s", i, seen[i], want[i])
		}
	}
}

func TestSessionPersistsAfterEveryAppliedEvent(t *testing.T) {
	store := newMemStore()
	store.initState = domain.InitStateActive
	streamer := &scriptedStreamer{events: answerEvents("seg1", "x")}

	s := NewSession(streamer, store)
	s.Hydrate()
	before := store.saves
	submitAndWait(t, s, "hi")

	// One save for the user message plus one per applied event.
	gotSaves := store.saves - before
	if gotSaves != 1+len(streamer.events) {
		t.Fatalf("saves = %d, want %d", gotSaves, 1+len(streamer.events))
	}
	if store.conversation.LastMessage().Text() != "x" {
		t.Fatalf("persisted conversation out of date: %+v", store.conversation)
	}
}
