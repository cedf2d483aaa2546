package backend

// FoodItem is a single orderable item from the backend catalog.
// The catalog owns these; the assistant only reads them.
type FoodItem struct {
	ID        int64    `json:"id"`
	FoodName  string   `json:"foodName"`
	Price     float64  `json:"price"`
	Allergies []string `json:"allergies"`
}

// UserProfile is the slice of the user record the assistant needs.
// CostPreference is one of "budget", "moderate", "premium".
// DietaryRestrictions is a comma-separated allergen list.
type UserProfile struct {
	ID                  int64  `json:"id"`
	Username            string `json:"username"`
	CostPreference      string `json:"costPreference"`
	DietaryRestrictions string `json:"dietaryRestrictions"`
}

// Chat modes accepted by the completion endpoint.
const (
	ModeAuto      = "auto"
	ModeFreeform  = "freeform"
	ModeRecommend = "recommend"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the payload for the completion endpoint. Guided-phase
// calls send only Message; freeform calls fill the rest.
type ChatRequest struct {
	Message string        `json:"message"`
	Mode    string        `json:"mode,omitempty"`
	History []ChatMessage `json:"history,omitempty"`
	UserID  int64         `json:"userId,omitempty"`
}

// ChatReply is the completion endpoint's answer. MatchedFoodID is set when
// the backend already resolved the recommendation to a catalog item.
type ChatReply struct {
	Message       string `json:"message"`
	Clarify       bool   `json:"clarify,omitempty"`
	MatchedFoodID *int64 `json:"matchedFoodId,omitempty"`
}

type OrderItem struct {
	FoodID   int64 `json:"foodId"`
	Quantity int   `json:"quantity"`
}

type OrderRequest struct {
	Items []OrderItem `json:"items"`
}
