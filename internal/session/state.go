package session

import (
	"time"

	"github.com/google/uuid"

	"foodseer/internal/backend"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// RecommendationCard marks a system message carrying a food snapshot for
// the presentation layer to render as a card.
const RecommendationCard = "recommendation-card"

// Message is one transcript entry. Food is only set on recommendation-card
// system messages and holds a snapshot, not a live catalog reference.
type Message struct {
	ID      string            `json:"id"`
	Role    string            `json:"role"`
	Content string            `json:"content"`
	Food    *backend.FoodItem `json:"food,omitempty"`
}

type Answers struct {
	Mood       string `json:"mood"`
	Hunger     string `json:"hunger"`
	Preference string `json:"preference"`
}

// State is one user's conversation document.
// Step 0..2 is the guided phase (mood, hunger, preference); >=3 is freeform.
// Messages are append-only; insertion order is display order.
type State struct {
	Messages        []Message         `json:"messages"`
	Step            int               `json:"step"`
	Answers         Answers           `json:"answers"`
	RecommendedFood *backend.FoodItem `json:"recommendedFood,omitempty"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func NewState() *State {
	return &State{UpdatedAt: time.Now().UTC()}
}

func (s *State) Append(role, content string) {
	s.Messages = append(s.Messages, Message{ID: uuid.NewString(), Role: role, Content: content})
	s.UpdatedAt = time.Now().UTC()
}

func (s *State) AppendCard(food backend.FoodItem) {
	snapshot := food
	s.Messages = append(s.Messages, Message{
		ID:      uuid.NewString(),
		Role:    RoleSystem,
		Content: RecommendationCard,
		Food:    &snapshot,
	})
	s.UpdatedAt = time.Now().UTC()
}
