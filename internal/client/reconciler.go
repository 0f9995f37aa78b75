package client

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/naavyaberiwal-glitch/myAI3/internal/domain"
)

// Status is the client-side composer status.
type Status string

const (
	// StatusReady means idle; a new message can be submitted.
	StatusReady Status = "ready"
	// StatusSubmitted means the request was sent but no bytes arrived yet.
	StatusSubmitted Status = "submitted"
	// StatusStreaming means the first content byte was received.
	StatusStreaming Status = "streaming"
	// StatusError means the last turn failed in transport; the partial
	// content is kept and resubmission is allowed.
	StatusError Status = "error"
)

// WelcomeMessage is shown once on first hydration of an empty conversation.
const WelcomeMessage = "Hi, I'm Greanly! Tell me about your business and I'll suggest practical, " +
	"measurable sustainability steps you can take today."

// ErrTurnInFlight is returned when submitting while a turn is streaming.
var ErrTurnInFlight = fmt.Errorf("a turn is already in flight")

// ErrNotHydrated is returned when submitting before Hydrate.
var ErrNotHydrated = fmt.Errorf("session is not hydrated")

// Streamer runs one turn against the orchestrator.
type Streamer interface {
	Stream(ctx context.Context, history []domain.Message, handler EventHandler) error
}

// Store is the local persistence contract. All operations are best-effort
// from the session's point of view: failures are logged, never surfaced.
type Store interface {
	Load() (domain.Conversation, domain.DurationMap, domain.InitState, error)
	Save(conversation domain.Conversation, durations domain.DurationMap) error
	SetInitState(state domain.InitState) error
	Clear() error
}

// turnState tracks the assistant message being reconstructed from the
// current event stream.
type turnState struct {
	msgID       string
	submittedAt time.Time
	// segIndex maps an open text segment id to its part position inside
	// the assistant message, preserving text-start order.
	segIndex  map[string]int
	finished  bool
	cancelled bool
	cancel    context.CancelFunc
	done      chan error
}

// Session owns one conversation: it submits turns, folds the event stream
// into conversation state, tracks composer status and persists after every
// mutation once hydrated. Events are applied atomically under one lock; no
// two events are ever applied concurrently.
type Session struct {
	mu       sync.Mutex
	streamer Streamer
	store    Store

	conversation domain.Conversation
	durations    domain.DurationMap
	status       Status
	initState    domain.InitState
	hydrated     bool

	observer func(domain.StreamEvent)

	turn *turnState
}

// NewSession creates a session. Call Hydrate before submitting.
func NewSession(streamer Streamer, store Store) *Session {
	return &Session{
		streamer:  streamer,
		store:     store,
		durations: domain.DurationMap{},
		status:    StatusReady,
		initState: domain.InitStateEmpty,
	}
}

// SetObserver registers a callback invoked for every applied event, in
// application order. Discarded events (after stop or finish) are not
// observed. Intended for renderers.
func (s *Session) SetObserver(fn func(domain.StreamEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

// Hydrate loads persisted state. A missing or corrupt store yields an empty
// conversation, never an error. The first hydration of an empty
// conversation appends the welcome message; the persisted init state keeps
// a reload from replaying it.
func (s *Session) Hydrate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversation, durations, initState, err := s.store.Load()
	if err != nil {
		log.Printf("WARN: failed to load stored conversation: %v", err)
		conversation, durations, initState = nil, domain.DurationMap{}, domain.InitStateEmpty
	}
	if durations == nil {
		durations = domain.DurationMap{}
	}
	s.conversation = conversation
	s.durations = durations
	s.initState = initState
	s.hydrated = true

	if len(s.conversation) == 0 && s.initState == domain.InitStateEmpty {
		s.showWelcomeLocked()
	}
}

// showWelcomeLocked appends the welcome message. No duration is recorded
// for it.
func (s *Session) showWelcomeLocked() {
	welcome := domain.Message{
		ID:    "welcome_" + uuid.New().String()[:8],
		Role:  domain.RoleAssistant,
		Parts: []domain.Part{domain.TextPart(WelcomeMessage)},
	}
	s.conversation = append(s.conversation, welcome)
	s.initState = domain.InitStateWelcomeShown
	s.persistLocked()
	s.persistInitLocked()
}

// Submit sends a user message and starts consuming the response stream in
// the background. The returned channel yields the turn's terminal error (or
// nil) exactly once. Submission is rejected while a turn is in flight; after
// Stop a new submission is allowed immediately.
func (s *Session) Submit(text string) (<-chan error, error) {
	s.mu.Lock()
	if !s.hydrated {
		s.mu.Unlock()
		return nil, ErrNotHydrated
	}
	if s.status == StatusSubmitted || s.status == StatusStreaming {
		s.mu.Unlock()
		return nil, ErrTurnInFlight
	}

	s.conversation = append(s.conversation, domain.NewUserMessage(text))
	if s.initState != domain.InitStateActive {
		s.initState = domain.InitStateActive
		s.persistInitLocked()
	}
	s.persistLocked()

	ctx, cancel := context.WithCancel(context.Background())
	turn := &turnState{
		submittedAt: time.Now(),
		segIndex:    map[string]int{},
		cancel:      cancel,
		done:        make(chan error, 1),
	}
	s.turn = turn
	s.status = StatusSubmitted

	history := make([]domain.Message, len(s.conversation))
	copy(history, s.conversation)
	s.mu.Unlock()

	go func() {
		err := s.streamer.Stream(ctx, history, func(ev domain.StreamEvent) error {
			return s.apply(turn, ev)
		})
		s.finishTurn(turn, err)
		turn.done <- err
	}()

	return turn.done, nil
}

// apply folds one stream event into the session. It is the only place
// conversation state mutates during a turn. Events are bound to the turn
// whose stream produced them; a straggler from a stopped or finished turn
// can never touch a later turn's state.
func (s *Session) apply(turn *turnState, ev domain.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.turn != turn || turn.cancelled || turn.finished {
		// Stopped, already terminal, or superseded: discard.
		return nil
	}

	switch ev.Type {
	case domain.EventTypeStart:
		turn.msgID = domain.NewMessageID()
		s.conversation = append(s.conversation, domain.NewAssistantMessage(turn.msgID))
		s.status = StatusStreaming

	case domain.EventTypeTextStart:
		msg := s.currentAssistantLocked(turn)
		if msg == nil {
			return nil
		}
		turn.segIndex[ev.ID] = len(msg.Parts)
		msg.Parts = append(msg.Parts, domain.TextPart(""))

	case domain.EventTypeTextDelta:
		msg := s.currentAssistantLocked(turn)
		if msg == nil {
			return nil
		}
		idx, ok := turn.segIndex[ev.ID]
		if !ok || idx >= len(msg.Parts) {
			return nil
		}
		msg.Parts[idx].Text += ev.Delta

	case domain.EventTypeTextEnd:
		// The part sits at its text-start position already; closing the
		// segment just stops accepting deltas for this id.
		delete(turn.segIndex, ev.ID)

	case domain.EventTypeToolInvocation:
		msg := s.currentAssistantLocked(turn)
		if msg == nil {
			return nil
		}
		msg.Parts = append(msg.Parts, domain.Part{
			Type:    domain.PartTypeToolInvocation,
			Payload: ev.Input,
		})

	case domain.EventTypeToolResult:
		msg := s.currentAssistantLocked(turn)
		if msg == nil {
			return nil
		}
		msg.Parts = append(msg.Parts, domain.Part{
			Type:    domain.PartTypeToolResult,
			Payload: ev.Output,
		})

	case domain.EventTypeError:
		turn.finished = true
		s.status = StatusError
		s.turn = nil
		s.persistLocked()
		if s.observer != nil {
			s.observer(ev)
		}
		return nil

	case domain.EventTypeFinish:
		turn.finished = true
		if turn.msgID != "" {
			s.durations[turn.msgID] = time.Since(turn.submittedAt).Milliseconds()
		}
		s.status = StatusReady
		s.turn = nil

	default:
		// Unknown event types are pass-through.
		return nil
	}

	s.persistLocked()
	if s.observer != nil {
		s.observer(ev)
	}
	return nil
}

// finishTurn resolves the terminal status when the stream ends without a
// finish event: a transport failure leaves the partial content in place and
// surfaces the error status.
func (s *Session) finishTurn(turn *turnState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.turn != turn {
		// Already finished, stopped, or superseded.
		return
	}
	s.turn = nil
	if turn.cancelled {
		s.status = StatusReady
		return
	}
	if err != nil || !turn.finished {
		log.Printf("ERROR: stream failed: %v", err)
		s.status = StatusError
		s.persistLocked()
		return
	}
}

// Stop cancels the in-flight turn. Applied partial content is kept; any
// further events of the cancelled turn are discarded. A new submission is
// allowed immediately.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.turn == nil {
		return
	}
	s.turn.cancelled = true
	s.turn.cancel()
	s.turn = nil
	s.status = StatusReady
	s.persistLocked()
}

// Clear empties the conversation and duration map atomically, then shows
// the welcome message again for the fresh chat.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.turn != nil {
		s.turn.cancelled = true
		s.turn.cancel()
		s.turn = nil
	}
	s.conversation = nil
	s.durations = domain.DurationMap{}
	s.status = StatusReady
	s.initState = domain.InitStateEmpty
	if err := s.store.Clear(); err != nil {
		log.Printf("WARN: failed to clear store: %v", err)
	}
	if s.hydrated {
		s.showWelcomeLocked()
	}
}

// Status returns the composer status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Conversation returns a snapshot of the conversation. Parts are copied so
// the snapshot stays stable while a streaming turn keeps mutating the live
// message in place.
func (s *Session) Conversation() domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(domain.Conversation, len(s.conversation))
	for i, msg := range s.conversation {
		parts := make([]domain.Part, len(msg.Parts))
		copy(parts, msg.Parts)
		msg.Parts = parts
		out[i] = msg
	}
	return out
}

// Durations returns a snapshot of the duration map.
func (s *Session) Durations() domain.DurationMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(domain.DurationMap, len(s.durations))
	for k, v := range s.durations {
		out[k] = v
	}
	return out
}

func (s *Session) currentAssistantLocked(turn *turnState) *domain.Message {
	if turn.msgID == "" || len(s.conversation) == 0 {
		return nil
	}
	last := &s.conversation[len(s.conversation)-1]
	if last.ID != turn.msgID {
		return nil
	}
	return last
}

// persistLocked saves conversation and durations. Saving before hydration
// would overwrite stored state with the transient empty state, so it is
// skipped.
func (s *Session) persistLocked() {
	if !s.hydrated {
		return
	}
	if err := s.store.Save(s.conversation, s.durations); err != nil {
		log.Printf("WARN: failed to save conversation: %v", err)
	}
}

func (s *Session) persistInitLocked() {
	if !s.hydrated {
		return
	}
	if err := s.store.SetInitState(s.initState); err != nil {
		log.Printf("WARN: failed to save init state: %v", err)
	}
}
