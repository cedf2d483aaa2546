package chat

import (
	"strings"

	"foodseer/internal/backend"
)

// MatchFood resolves a completion reply to a catalog item. A structured
// matched id always wins; without one, the first catalog item whose name
// appears (case-insensitively) in the reply text is taken, in catalog
// order. The catalog-order tie-break on overlapping names is deliberate,
// documented behavior. No match is a valid outcome, not an error.
func MatchFood(reply Reply, catalog []backend.FoodItem) (backend.FoodItem, bool) {
	if reply.MatchedFoodID != nil {
		for _, f := range catalog {
			if f.ID == *reply.MatchedFoodID {
				return f, true
			}
		}
		return backend.FoodItem{}, false
	}

	text := strings.ToLower(reply.Message)
	for _, f := range catalog {
		if f.FoodName == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(f.FoodName)) {
			return f, true
		}
	}
	return backend.FoodItem{}, false
}
