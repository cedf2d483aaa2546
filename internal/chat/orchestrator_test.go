package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"foodseer/internal/backend"
	"foodseer/internal/session"
)

type fakeBackend struct {
	profile   backend.UserProfile
	foods     []backend.FoodItem
	userErr   error
	foodsErr  error
	orderErr  error
	orders    []backend.OrderRequest
	foodCalls int
}

func (f *fakeBackend) CurrentUser(_ context.Context) (backend.UserProfile, error) {
	if f.userErr != nil {
		return backend.UserProfile{}, f.userErr
	}
	return f.profile, nil
}

func (f *fakeBackend) AllFoods(_ context.Context) ([]backend.FoodItem, error) {
	f.foodCalls++
	if f.foodsErr != nil {
		return nil, f.foodsErr
	}
	return f.foods, nil
}

func (f *fakeBackend) CreateOrder(_ context.Context, req backend.OrderRequest) error {
	if f.orderErr != nil {
		return f.orderErr
	}
	f.orders = append(f.orders, req)
	return nil
}

type queueCompleter struct {
	replies  []Reply
	err      error
	requests []backend.ChatRequest
	block    chan struct{}
}

func (c *queueCompleter) Complete(_ context.Context, req backend.ChatRequest) (Reply, error) {
	if c.block != nil {
		<-c.block
	}
	c.requests = append(c.requests, req)
	if c.err != nil {
		return Reply{}, c.err
	}
	if len(c.replies) == 0 {
		return Reply{Message: "ok"}, nil
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r, nil
}

type failingSynth struct{ spoken int }

func (s *failingSynth) Supported() bool { return true }

func (s *failingSynth) Speak(text string) error {
	s.spoken++
	return errors.New("no audio device")
}

func testCatalog() []backend.FoodItem {
	return []backend.FoodItem{
		{ID: 1, FoodName: "Mac and Cheese", Price: 8, Allergies: []string{"dairy"}},
		{ID: 2, FoodName: "Veggie Bowl", Price: 9},
	}
}

func newTestOrchestrator(be *fakeBackend, comp Completer) (*Orchestrator, *session.MemoryStore) {
	store := session.NewMemoryStore()
	o := NewOrchestrator(42, store, be, comp, StaticSequencer{}, nil, nil)
	o.Start(context.Background())
	return o, store
}

func TestStartSeedsGreetingAndFirstQuestion(t *testing.T) {
	be := &fakeBackend{profile: backend.UserProfile{CostPreference: "budget"}, foods: testCatalog()}
	o, _ := newTestOrchestrator(be, &queueCompleter{})

	msgs := o.Messages()
	if len(msgs) != 2 {
		t.Fatalf("want greeting + first question, got %d messages", len(msgs))
	}
	if msgs[0].Content != Greeting || msgs[1].Content != questionMood {
		t.Fatalf("seed mismatch: %+v", msgs)
	}
	if o.Step() != 0 {
		t.Fatalf("fresh conversation must start at step 0")
	}
}

func TestGuidedStepsBindAnswerFields(t *testing.T) {
	ctx := context.Background()
	be := &fakeBackend{profile: backend.UserProfile{CostPreference: "moderate"}, foods: testCatalog()}
	comp := &queueCompleter{replies: []Reply{{Message: "I recommend Veggie Bowl! Light and fresh, just right."}}}
	o, _ := newTestOrchestrator(be, comp)

	if err := o.SendMessage(ctx, "tired"); err != nil {
		t.Fatalf("step 0: %v", err)
	}
	a := o.Answers()
	if a.Mood != "tired" || a.Hunger != "" || a.Preference != "" {
		t.Fatalf("step 0 must set only mood: %+v", a)
	}
	if o.Step() != 1 {
		t.Fatalf("want step 1, got %d", o.Step())
	}
	msgs := o.Messages()
	if msgs[len(msgs)-1].Content != questionHunger {
		t.Fatalf("want hunger question next, got %q", msgs[len(msgs)-1].Content)
	}

	if err := o.SendMessage(ctx, "starving"); err != nil {
		t.Fatalf("step 1: %v", err)
	}
	a = o.Answers()
	if a.Hunger != "starving" || a.Preference != "" {
		t.Fatalf("step 1 must set only hunger: %+v", a)
	}

	if err := o.SendMessage(ctx, "something light"); err != nil {
		t.Fatalf("step 2: %v", err)
	}
	a = o.Answers()
	if a.Preference != "something light" {
		t.Fatalf("step 2 must set preference: %+v", a)
	}
	if o.Step() != 3 {
		t.Fatalf("guided phase must end at step 3, got %d", o.Step())
	}

	rec := o.RecommendedFood()
	if rec == nil || rec.ID != 2 {
		t.Fatalf("want Veggie Bowl recommended, got %+v", rec)
	}
	msgs = o.Messages()
	last := msgs[len(msgs)-1]
	if last.Role != session.RoleSystem || last.Content != session.RecommendationCard || last.Food == nil || last.Food.ID != 2 {
		t.Fatalf("want recommendation card last, got %+v", last)
	}

	// The recommendation prompt is built locally from the collected answers.
	prompt := comp.requests[0].Message
	for _, want := range []string{"User's mood: tired", "User's hunger level: starving", "User's preference: something light"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestEmptyInputIsIgnored(t *testing.T) {
	be := &fakeBackend{foods: testCatalog()}
	o, _ := newTestOrchestrator(be, &queueCompleter{})
	before := len(o.Messages())
	if err := o.SendMessage(context.Background(), "   "); err != nil {
		t.Fatalf("blank input must be a no-op: %v", err)
	}
	if len(o.Messages()) != before || o.Step() != 0 {
		t.Fatalf("blank input mutated state")
	}
}

func TestRestartResetsEverythingAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	be := &fakeBackend{profile: backend.UserProfile{CostPreference: "budget"}, foods: testCatalog()}
	comp := &queueCompleter{replies: []Reply{{Message: "I recommend Veggie Bowl! Enjoy."}}}
	o, _ := newTestOrchestrator(be, comp)

	for _, text := range []string{"tired", "starving", "light"} {
		if err := o.SendMessage(ctx, text); err != nil {
			t.Fatalf("send %q: %v", text, err)
		}
	}
	if o.RecommendedFood() == nil {
		t.Fatalf("precondition: expected a recommendation")
	}

	if err := o.Restart(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	first := snapshot(o)

	if err := o.Restart(ctx); err != nil {
		t.Fatalf("second restart: %v", err)
	}
	second := snapshot(o)

	if first != second {
		t.Fatalf("restart must be idempotent:\n%q\n%q", first, second)
	}
	if o.Step() != 0 {
		t.Fatalf("restart must reset step, got %d", o.Step())
	}
	if a := o.Answers(); a != (session.Answers{}) {
		t.Fatalf("restart must clear answers: %+v", a)
	}
	if o.RecommendedFood() != nil {
		t.Fatalf("restart must clear the recommendation")
	}
	msgs := o.Messages()
	if len(msgs) != 2 || msgs[0].Content != Greeting {
		t.Fatalf("restart must leave exactly the seed messages: %+v", msgs)
	}
}

// snapshot flattens the observable state, ignoring message ids.
func snapshot(o *Orchestrator) string {
	var b strings.Builder
	for _, m := range o.Messages() {
		b.WriteString(m.Role + "|" + m.Content + ";")
	}
	return b.String()
}

func TestCompletionFailureAppendsApologyAndClearsBusy(t *testing.T) {
	ctx := context.Background()
	be := &fakeBackend{profile: backend.UserProfile{CostPreference: "budget"}, foods: testCatalog()}
	comp := &queueCompleter{err: errors.New("completion service unreachable")}
	o, _ := newTestOrchestrator(be, comp)

	for _, text := range []string{"tired", "starving", "light"} {
		if err := o.SendMessage(ctx, text); err != nil {
			t.Fatalf("send %q: %v", text, err)
		}
	}

	msgs := o.Messages()
	last := msgs[len(msgs)-1]
	if last.Role != session.RoleAssistant || last.Content != apologyMessage {
		t.Fatalf("want apology in transcript, got %+v", last)
	}
	if o.IsBusy() {
		t.Fatalf("busy flag stuck after failure")
	}
	if o.RecommendedFood() != nil {
		t.Fatalf("no recommendation should survive a failed call")
	}
}

func TestDynamicSeedingFailureFallsBackToStaticMoodQuestion(t *testing.T) {
	be := &fakeBackend{profile: backend.UserProfile{}, foods: testCatalog()}
	comp := &queueCompleter{err: errors.New("completion service unreachable")}
	store := session.NewMemoryStore()
	o := NewOrchestrator(42, store, be, comp, DynamicSequencer{Completer: comp}, nil, nil)
	o.Start(context.Background())

	msgs := o.Messages()
	if len(msgs) != 2 {
		t.Fatalf("want greeting + exactly one fallback question, got %d messages", len(msgs))
	}
	if msgs[1].Content != questionMood {
		t.Fatalf("want static mood fallback, got %q", msgs[1].Content)
	}
	if o.IsBusy() {
		t.Fatalf("busy flag stuck after fallback")
	}
}

func TestOverlappingSendIsRejected(t *testing.T) {
	ctx := context.Background()
	be := &fakeBackend{profile: backend.UserProfile{CostPreference: "budget"}, foods: testCatalog()}
	comp := &queueCompleter{
		replies: []Reply{{Message: "I recommend Veggie Bowl!"}},
		block:   make(chan struct{}),
	}
	o, _ := newTestOrchestrator(be, comp)

	if err := o.SendMessage(ctx, "tired"); err != nil {
		t.Fatalf("step 0: %v", err)
	}
	if err := o.SendMessage(ctx, "starving"); err != nil {
		t.Fatalf("step 1: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- o.SendMessage(ctx, "light") }()

	// Wait until the in-flight call is blocked inside the completer.
	for !o.IsBusy() {
		time.Sleep(time.Millisecond)
	}
	if err := o.SendMessage(ctx, "another"); !errors.Is(err, ErrBusy) {
		t.Fatalf("want ErrBusy for overlapping send, got %v", err)
	}
	if err := o.Restart(ctx); !errors.Is(err, ErrBusy) {
		t.Fatalf("want ErrBusy for restart during in-flight call, got %v", err)
	}

	close(comp.block)
	if err := <-done; err != nil {
		t.Fatalf("in-flight send: %v", err)
	}
	if o.IsBusy() {
		t.Fatalf("busy flag stuck after resolve")
	}
}

func TestFreeformPassthrough(t *testing.T) {
	ctx := context.Background()
	be := &fakeBackend{profile: backend.UserProfile{}, foods: testCatalog()}
	matched := int64(1)
	comp := &queueCompleter{replies: []Reply{{Message: "You could try the Mac and Cheese.", MatchedFoodID: &matched}}}
	store := session.NewMemoryStore()
	o := NewOrchestrator(42, store, be, comp, StaticSequencer{}, nil, nil)
	o.Start(ctx)

	if err := o.SendFreeformQuestion(ctx, "what goes well with soup?"); err != nil {
		t.Fatalf("freeform: %v", err)
	}

	req := comp.requests[0]
	if req.Mode != backend.ModeAuto {
		t.Fatalf("want explicit mode hint, got %q", req.Mode)
	}
	if req.UserID != 42 {
		t.Fatalf("want user id in freeform payload, got %d", req.UserID)
	}
	if req.Message != "what goes well with soup?" {
		t.Fatalf("freeform must pass input through untouched, got %q", req.Message)
	}
	if len(req.History) == 0 || req.History[0].Content != Greeting {
		t.Fatalf("freeform must carry conversation history: %+v", req.History)
	}

	rec := o.RecommendedFood()
	if rec == nil || rec.ID != 1 {
		t.Fatalf("matched id from completion must set the recommendation: %+v", rec)
	}
	msgs := o.Messages()
	if msgs[len(msgs)-1].Content != session.RecommendationCard {
		t.Fatalf("want card after freeform match, got %+v", msgs[len(msgs)-1])
	}
}

func TestAlternateSuggestionKeepsAnswersAndStep(t *testing.T) {
	ctx := context.Background()
	be := &fakeBackend{profile: backend.UserProfile{CostPreference: "budget"}, foods: testCatalog()}
	comp := &queueCompleter{replies: []Reply{
		{Message: "I recommend Mac and Cheese! Warm and filling."},
		{Message: "I recommend Veggie Bowl! A lighter take."},
	}}
	o, _ := newTestOrchestrator(be, comp)

	for _, text := range []string{"tired", "starving", "comfort food"} {
		if err := o.SendMessage(ctx, text); err != nil {
			t.Fatalf("send %q: %v", text, err)
		}
	}
	first := o.RecommendedFood()
	if first == nil || first.ID != 1 {
		t.Fatalf("precondition: want Mac and Cheese first, got %+v", first)
	}
	answersBefore := o.Answers()
	stepBefore := o.Step()

	if err := o.RequestAlternateSuggestion(ctx); err != nil {
		t.Fatalf("alternate: %v", err)
	}

	if o.Answers() != answersBefore || o.Step() != stepBefore {
		t.Fatalf("alternate suggestion must not touch answers or step")
	}
	second := o.RecommendedFood()
	if second == nil || second.ID != 2 {
		t.Fatalf("want a fresh recommendation, got %+v", second)
	}
	prompt := comp.requests[len(comp.requests)-1].Message
	if !strings.Contains(prompt, "turned down Mac and Cheese") {
		t.Fatalf("alternate prompt should mention the declined item:\n%s", prompt)
	}
	var sawSynthetic bool
	for _, m := range o.Messages() {
		if m.Role == session.RoleUser && m.Content == alternateRequest {
			sawSynthetic = true
		}
	}
	if !sawSynthetic {
		t.Fatalf("alternate suggestion must append a synthetic user request")
	}
}

func TestOrderRecommended(t *testing.T) {
	ctx := context.Background()
	be := &fakeBackend{profile: backend.UserProfile{CostPreference: "budget"}, foods: testCatalog()}
	comp := &queueCompleter{replies: []Reply{{Message: "I recommend Veggie Bowl!"}}}
	o, _ := newTestOrchestrator(be, comp)

	if err := o.OrderRecommended(ctx); !errors.Is(err, ErrNoRecommendation) {
		t.Fatalf("want ErrNoRecommendation, got %v", err)
	}

	for _, text := range []string{"tired", "starving", "light"} {
		if err := o.SendMessage(ctx, text); err != nil {
			t.Fatalf("send %q: %v", text, err)
		}
	}
	if err := o.OrderRecommended(ctx); err != nil {
		t.Fatalf("order: %v", err)
	}
	if len(be.orders) != 1 || be.orders[0].Items[0].FoodID != 2 {
		t.Fatalf("order payload mismatch: %+v", be.orders)
	}
}

func TestSpeechFailureDoesNotAffectRecommendation(t *testing.T) {
	ctx := context.Background()
	be := &fakeBackend{profile: backend.UserProfile{CostPreference: "budget"}, foods: testCatalog()}
	comp := &queueCompleter{replies: []Reply{{Message: "I recommend Veggie Bowl!"}}}
	synth := &failingSynth{}
	store := session.NewMemoryStore()
	o := NewOrchestrator(42, store, be, comp, StaticSequencer{}, synth, nil)
	o.Start(ctx)

	for _, text := range []string{"tired", "starving", "light"} {
		if err := o.SendMessage(ctx, text); err != nil {
			t.Fatalf("send %q: %v", text, err)
		}
	}
	if synth.spoken != 1 {
		t.Fatalf("synthesizer should have been tried once, got %d", synth.spoken)
	}
	if o.RecommendedFood() == nil {
		t.Fatalf("speech failure must not break the recommendation")
	}
}

func TestStatePersistsAcrossOrchestrators(t *testing.T) {
	ctx := context.Background()
	be := &fakeBackend{profile: backend.UserProfile{CostPreference: "budget"}, foods: testCatalog()}
	store := session.NewMemoryStore()

	o := NewOrchestrator(42, store, be, &queueCompleter{}, StaticSequencer{}, nil, nil)
	o.Start(ctx)
	if err := o.SendMessage(ctx, "tired"); err != nil {
		t.Fatalf("send: %v", err)
	}

	// Simulate a reload: a fresh orchestrator over the same store.
	o2 := NewOrchestrator(42, store, be, &queueCompleter{}, StaticSequencer{}, nil, nil)
	o2.Start(ctx)
	if o2.Step() != 1 || o2.Answers().Mood != "tired" {
		t.Fatalf("persisted state not resumed: step=%d answers=%+v", o2.Step(), o2.Answers())
	}
	if len(o2.Messages()) != len(o.Messages()) {
		t.Fatalf("transcript not resumed")
	}

	// A different user must get a fresh conversation.
	o3 := NewOrchestrator(7, store, be, &queueCompleter{}, StaticSequencer{}, nil, nil)
	o3.Start(ctx)
	if o3.Step() != 0 || len(o3.Messages()) != 2 {
		t.Fatalf("state leaked across users")
	}
}
