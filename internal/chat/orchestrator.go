package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"foodseer/internal/backend"
	"foodseer/internal/session"
	"foodseer/internal/speech"
	"foodseer/internal/storage"
)

// Step index at which the guided phase ends and freeform begins.
const guidedSteps = 3

const (
	apologyMessage   = "Sorry, I encountered an error. Please try again in a moment."
	alternateRequest = "Can you suggest something else?"
)

var (
	// ErrBusy is returned while a completion call is in flight.
	ErrBusy = errors.New("a request is already in progress")
	// ErrNoRecommendation is returned by OrderRecommended without an active recommendation.
	ErrNoRecommendation = errors.New("no active recommendation")
)

// Backend is the slice of the FoodSeer REST API the orchestrator needs.
type Backend interface {
	CurrentUser(ctx context.Context) (backend.UserProfile, error)
	AllFoods(ctx context.Context) ([]backend.FoodItem, error)
	CreateOrder(ctx context.Context, req backend.OrderRequest) error
}

// Orchestrator drives one user's conversation: it records guided answers,
// asks the next question, runs the recommendation cycle and keeps the
// persisted session in sync. All exported methods are safe for concurrent
// use; overlapping sends are rejected with ErrBusy rather than queued.
type Orchestrator struct {
	userID    int64
	store     session.Store
	backend   Backend
	completer Completer
	sequencer Sequencer
	synth     speech.Synthesizer
	recorder  storage.Recorder

	mu     sync.Mutex
	busy   bool
	loaded bool
	state  *session.State
}

func NewOrchestrator(userID int64, store session.Store, be Backend, completer Completer, seq Sequencer, synth speech.Synthesizer, rec storage.Recorder) *Orchestrator {
	if synth == nil {
		synth = speech.Noop{}
	}
	return &Orchestrator{
		userID:    userID,
		store:     store,
		backend:   be,
		completer: completer,
		sequencer: seq,
		synth:     synth,
		recorder:  rec,
		state:     session.NewState(),
	}
}

// Start loads the persisted session, seeding a fresh conversation with the
// greeting and the first guided question when nothing usable is stored.
func (o *Orchestrator) Start(ctx context.Context) {
	if err := o.begin(); err != nil {
		return
	}
	defer o.end()

	if st, ok := o.store.Load(o.userID); ok {
		o.setState(st)
	}
	o.mu.Lock()
	o.loaded = true
	empty := len(o.state.Messages) == 0
	o.mu.Unlock()

	if empty {
		o.seed(ctx)
	}
}

func (o *Orchestrator) seed(ctx context.Context) {
	profile := o.profile(ctx)
	q := o.sequencer.NextQuestion(ctx, []session.Message{{Role: session.RoleAssistant, Content: Greeting}}, profile, session.Answers{})
	o.mutate(func(s *session.State) {
		s.Append(session.RoleAssistant, Greeting)
		s.Append(session.RoleAssistant, q)
	})
}

// SendMessage handles one user submission. During the guided phase it
// records the answer for the current step; past it, the input is routed
// through the freeform path.
func (o *Orchestrator) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if err := o.begin(); err != nil {
		return err
	}
	defer o.end()

	if o.step() >= guidedSteps {
		o.freeform(ctx, text)
		return nil
	}

	o.mutate(func(s *session.State) {
		s.Append(session.RoleUser, text)
		switch s.Step {
		case 0:
			s.Answers.Mood = text
		case 1:
			s.Answers.Hunger = text
		case 2:
			s.Answers.Preference = text
		}
		s.Step++
	})

	if o.step() < guidedSteps {
		profile := o.profile(ctx)
		q := o.sequencer.NextQuestion(ctx, o.transcript(), profile, o.answers())
		o.mutate(func(s *session.State) { s.Append(session.RoleAssistant, q) })
		o.record(text, q, nil)
		return nil
	}

	reply := o.recommend(ctx, "")
	o.record(text, reply, o.RecommendedFood())
	return nil
}

// SendFreeformQuestion passes user input straight to the completion
// service with full history and the user's id; no local prompt is built.
func (o *Orchestrator) SendFreeformQuestion(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if err := o.begin(); err != nil {
		return err
	}
	defer o.end()
	o.freeform(ctx, text)
	return nil
}

func (o *Orchestrator) freeform(ctx context.Context, text string) {
	history := o.chatHistory()
	o.mutate(func(s *session.State) { s.Append(session.RoleUser, text) })

	reply, err := o.completer.Complete(ctx, backend.ChatRequest{
		Message: text,
		Mode:    backend.ModeAuto,
		History: history,
		UserID:  o.userID,
	})
	if err != nil {
		log.Printf("freeform completion failed for user %d: %v", o.userID, err)
		o.mutate(func(s *session.State) { s.Append(session.RoleAssistant, apologyMessage) })
		return
	}

	o.mutate(func(s *session.State) { s.Append(session.RoleAssistant, reply.Message) })
	o.applyMatch(ctx, reply)
	o.record(text, reply.Message, o.RecommendedFood())
}

// Restart discards the whole conversation and reseeds it. The reset state
// is persisted before the method returns.
func (o *Orchestrator) Restart(ctx context.Context) error {
	if err := o.begin(); err != nil {
		return err
	}
	defer o.end()

	o.setState(session.NewState())
	o.seed(ctx)
	return nil
}

// RequestAlternateSuggestion drops the current recommendation and runs the
// recommendation cycle again. Collected answers and the step stay as they are.
func (o *Orchestrator) RequestAlternateSuggestion(ctx context.Context) error {
	if err := o.begin(); err != nil {
		return err
	}
	defer o.end()

	previous := o.RecommendedFood()
	extra := ""
	if previous != nil {
		extra = fmt.Sprintf("\nThe user turned down %s; pick a different item.", previous.FoodName)
	}
	o.mutate(func(s *session.State) {
		s.RecommendedFood = nil
		s.Append(session.RoleUser, alternateRequest)
	})

	reply := o.recommend(ctx, extra)
	o.record(alternateRequest, reply, o.RecommendedFood())
	return nil
}

// OrderRecommended hands the active recommendation to the order flow.
func (o *Orchestrator) OrderRecommended(ctx context.Context) error {
	food := o.RecommendedFood()
	if food == nil {
		return ErrNoRecommendation
	}
	if err := o.backend.CreateOrder(ctx, backend.OrderRequest{
		Items: []backend.OrderItem{{FoodID: food.ID, Quantity: 1}},
	}); err != nil {
		return fmt.Errorf("order recommended food: %w", err)
	}
	return nil
}

// recommend runs builder -> completion -> matcher and appends the outcome.
// It returns the assistant text that entered the transcript.
func (o *Orchestrator) recommend(ctx context.Context, extraInstruction string) string {
	profile, foods, err := o.profileAndCatalog(ctx)
	if err != nil {
		log.Printf("failed to prepare recommendation for user %d: %v", o.userID, err)
		o.mutate(func(s *session.State) { s.Append(session.RoleAssistant, apologyMessage) })
		return apologyMessage
	}

	prompt := BuildRecommendationPrompt(o.answers(), profile, foods) + extraInstruction
	reply, err := o.completer.Complete(ctx, backend.ChatRequest{Message: prompt})
	if err != nil {
		log.Printf("recommendation completion failed for user %d: %v", o.userID, err)
		o.mutate(func(s *session.State) { s.Append(session.RoleAssistant, apologyMessage) })
		return apologyMessage
	}

	o.mutate(func(s *session.State) { s.Append(session.RoleAssistant, reply.Message) })
	o.speak(reply.Message)

	if food, ok := MatchFood(reply, FilterCatalog(profile, foods)); ok {
		o.mutate(func(s *session.State) {
			s.RecommendedFood = &food
			s.AppendCard(food)
		})
	}
	return reply.Message
}

// applyMatch resolves a freeform reply's matched id (or name mention)
// against the live catalog and appends a card on success.
func (o *Orchestrator) applyMatch(ctx context.Context, reply Reply) {
	if reply.MatchedFoodID == nil {
		return
	}
	foods, err := o.backend.AllFoods(ctx)
	if err != nil {
		log.Printf("failed to fetch catalog for match: %v", err)
		return
	}
	if food, ok := MatchFood(reply, foods); ok {
		o.mutate(func(s *session.State) {
			s.RecommendedFood = &food
			s.AppendCard(food)
		})
	}
}

// Observable state for the presentation layer.

func (o *Orchestrator) Messages() []session.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]session.Message{}, o.state.Messages...)
}

func (o *Orchestrator) IsBusy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

func (o *Orchestrator) RecommendedFood() *backend.FoodItem {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.RecommendedFood == nil {
		return nil
	}
	cp := *o.state.RecommendedFood
	return &cp
}

func (o *Orchestrator) Step() int { return o.step() }

func (o *Orchestrator) Answers() session.Answers { return o.answers() }

// Internals.

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		return ErrBusy
	}
	o.busy = true
	return nil
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	o.busy = false
	o.mu.Unlock()
}

// mutate applies fn to the state and persists the result. Persistence is
// best-effort: failures are logged, never propagated. Saves are skipped
// until the initial load completed so that empty defaults cannot clobber
// a stored session.
func (o *Orchestrator) mutate(fn func(*session.State)) {
	o.mu.Lock()
	fn(o.state)
	loaded := o.loaded
	cp := *o.state
	cp.Messages = append([]session.Message{}, o.state.Messages...)
	o.mu.Unlock()

	if !loaded {
		return
	}
	if err := o.store.Save(o.userID, &cp); err != nil {
		log.Printf("failed to save session for user %d: %v", o.userID, err)
	}
}

func (o *Orchestrator) setState(st *session.State) {
	o.mu.Lock()
	o.state = st
	loaded := o.loaded
	cp := *st
	cp.Messages = append([]session.Message{}, st.Messages...)
	o.mu.Unlock()

	if !loaded {
		return
	}
	if err := o.store.Save(o.userID, &cp); err != nil {
		log.Printf("failed to save session for user %d: %v", o.userID, err)
	}
}

func (o *Orchestrator) step() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Step
}

func (o *Orchestrator) answers() session.Answers {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Answers
}

func (o *Orchestrator) transcript() []session.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]session.Message{}, o.state.Messages...)
}

// chatHistory flattens the transcript for the completion payload,
// skipping recommendation cards.
func (o *Orchestrator) chatHistory() []backend.ChatMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]backend.ChatMessage, 0, len(o.state.Messages))
	for _, m := range o.state.Messages {
		if m.Role == session.RoleSystem {
			continue
		}
		out = append(out, backend.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func (o *Orchestrator) profile(ctx context.Context) backend.UserProfile {
	profile, err := o.backend.CurrentUser(ctx)
	if err != nil {
		log.Printf("failed to fetch profile for user %d: %v", o.userID, err)
		return backend.UserProfile{}
	}
	return profile
}

func (o *Orchestrator) profileAndCatalog(ctx context.Context) (backend.UserProfile, []backend.FoodItem, error) {
	profile, err := o.backend.CurrentUser(ctx)
	if err != nil {
		return backend.UserProfile{}, nil, fmt.Errorf("fetch profile: %w", err)
	}
	foods, err := o.backend.AllFoods(ctx)
	if err != nil {
		return backend.UserProfile{}, nil, fmt.Errorf("fetch catalog: %w", err)
	}
	return profile, foods, nil
}

// speak is opportunistic; a missing or failing synthesizer never affects
// the conversation.
func (o *Orchestrator) speak(text string) {
	if !o.synth.Supported() {
		return
	}
	if err := o.synth.Speak(text); err != nil {
		log.Printf("speech synthesis failed: %v", err)
	}
}

func (o *Orchestrator) record(userMsg, assistantMsg string, food *backend.FoodItem) {
	if o.recorder == nil {
		return
	}
	ev := storage.Event{
		Timestamp:         time.Now().UTC(),
		UserID:            o.userID,
		UserMessage:       userMsg,
		AssistantResponse: assistantMsg,
	}
	if food != nil {
		id := food.ID
		ev.RecommendedFoodID = &id
	}
	if err := o.recorder.AppendInteraction(ev); err != nil {
		log.Printf("failed to record interaction: %v", err)
	}
}
