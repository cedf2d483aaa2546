package chat

import (
	"context"
	"fmt"
	"log"
	"strings"

	"foodseer/internal/backend"
	"foodseer/internal/session"
)

// Greeting opens every fresh conversation.
const Greeting = "Hi! I'm your FoodSeer assistant. I'll ask you a few questions to find the perfect meal for you!"

const (
	questionMood       = "How are you feeling today? (e.g., tired, energetic, stressed, happy)"
	questionHunger     = "How hungry are you right now? (e.g., very hungry, a bit peckish, just want a snack)"
	questionPreference = "What kind of food are you in the mood for? (e.g., something light, comfort food, healthy, sweet)"
	questionExtra      = "Is there anything else you'd like to tell me about your food preferences?"
)

// Sequencer produces the next assistant question of the guided phase.
// It must never ask for a field that is already answered.
type Sequencer interface {
	NextQuestion(ctx context.Context, history []session.Message, profile backend.UserProfile, answers session.Answers) string
}

// StaticSequencer walks the fixed three-question script.
type StaticSequencer struct{}

func (StaticSequencer) NextQuestion(_ context.Context, _ []session.Message, _ backend.UserProfile, answers session.Answers) string {
	return staticQuestion(answers)
}

func staticQuestion(answers session.Answers) string {
	switch {
	case answers.Mood == "":
		return questionMood
	case answers.Hunger == "":
		return questionHunger
	case answers.Preference == "":
		return questionPreference
	default:
		return questionExtra
	}
}

// DynamicSequencer asks the completion service to phrase each question
// from the conversation so far. Any failure falls back to the static
// question for the same field; the transcript never sees an error.
type DynamicSequencer struct {
	Completer Completer
}

func (d DynamicSequencer) NextQuestion(ctx context.Context, history []session.Message, profile backend.UserProfile, answers session.Answers) string {
	prompt := buildQuestionPrompt(history, profile, answers)
	reply, err := d.Completer.Complete(ctx, backend.ChatRequest{Message: prompt})
	if err != nil {
		log.Printf("failed to generate question, using static fallback: %v", err)
		return staticQuestion(answers)
	}
	q := strings.TrimSpace(reply.Message)
	if q == "" {
		return staticQuestion(answers)
	}
	return q
}

func buildQuestionPrompt(history []session.Message, profile backend.UserProfile, answers session.Answers) string {
	var known []string
	if answers.Mood != "" {
		known = append(known, fmt.Sprintf("Mood: %s", answers.Mood))
	}
	if answers.Hunger != "" {
		known = append(known, fmt.Sprintf("Hunger level: %s", answers.Hunger))
	}
	if answers.Preference != "" {
		known = append(known, fmt.Sprintf("Food preference: %s", answers.Preference))
	}

	var needed []string
	if answers.Mood == "" {
		needed = append(needed, "their current mood/feeling")
	}
	if answers.Hunger == "" {
		needed = append(needed, "their hunger level")
	}
	if answers.Preference == "" {
		needed = append(needed, "what kind of food they want")
	}

	// Last 4 turns give the model enough context without drowning it.
	turns := history
	if len(turns) > 4 {
		turns = turns[len(turns)-4:]
	}
	var ctxLines []string
	for _, m := range turns {
		role := "Assistant"
		if m.Role == session.RoleUser {
			role = "User"
		}
		ctxLines = append(ctxLines, fmt.Sprintf("%s: %s", role, m.Content))
	}

	knownText := "Nothing yet"
	if len(known) > 0 {
		knownText = strings.Join(known, ", ")
	}
	budget := profile.CostPreference
	if budget == "" {
		budget = "moderate"
	}
	dietary := profile.DietaryRestrictions
	if dietary == "" {
		dietary = "none"
	}
	target := "what they want"
	if len(needed) > 0 {
		target = needed[0]
	}

	return fmt.Sprintf(`You are a friendly food recommendation assistant. Based on the conversation so far, ask ONE natural, conversational question to learn more about the user.

Conversation so far:
%s

What we already know: %s
What we still need to know: %s

User's profile: Budget preference: %s, Dietary restrictions: %s

Generate a single, friendly, conversational question (1-2 sentences max) that feels natural and helps you understand %s. Be specific and engaging based on what they've already told you. Do NOT include any explanations or prefixes, just the question itself.`,
		strings.Join(ctxLines, "\n"), knownText, strings.Join(needed, ", "), budget, dietary, target)
}
