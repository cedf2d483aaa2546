package chat

import (
	"fmt"
	"strings"

	"foodseer/internal/backend"
	"foodseer/internal/session"
)

// Budget ceilings per cost-preference tier. The tiers are cumulative:
// premium admits everything moderate does, and so on down.
func budgetLimit(costPreference string) float64 {
	switch strings.ToLower(costPreference) {
	case "budget":
		return 10
	case "premium":
		return 35
	default: // unknown tiers read as moderate
		return 20
	}
}

// ParseAllergens splits a comma-separated dietary-restrictions string into
// a normalized allergen list: trimmed, lowercased, empties dropped.
func ParseAllergens(dietaryRestrictions string) []string {
	if strings.TrimSpace(dietaryRestrictions) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(dietaryRestrictions, ",") {
		a := strings.ToLower(strings.TrimSpace(part))
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// FilterCatalog drops items over the profile's budget ceiling and items
// whose allergy tags intersect the profile's allergen set.
func FilterCatalog(profile backend.UserProfile, catalog []backend.FoodItem) []backend.FoodItem {
	limit := budgetLimit(profile.CostPreference)
	allergens := ParseAllergens(profile.DietaryRestrictions)

	var out []backend.FoodItem
	for _, food := range catalog {
		if food.Price > limit {
			continue
		}
		if containsAllergen(food.Allergies, allergens) {
			continue
		}
		out = append(out, food)
	}
	return out
}

func containsAllergen(tags, allergens []string) bool {
	if len(tags) == 0 || len(allergens) == 0 {
		return false
	}
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		for _, a := range allergens {
			if t == a {
				return true
			}
		}
	}
	return false
}

// BuildRecommendationPrompt assembles the constrained instruction block for
// the completion service once all guided answers are in. An empty filtered
// catalog still yields a well-formed prompt.
func BuildRecommendationPrompt(answers session.Answers, profile backend.UserProfile, catalog []backend.FoodItem) string {
	budget := profile.CostPreference
	if budget == "" {
		budget = "moderate"
	}
	allergens := ParseAllergens(profile.DietaryRestrictions)
	allergensText := "none"
	if len(allergens) > 0 {
		allergensText = strings.Join(allergens, ", ")
	}

	available := FilterCatalog(profile, catalog)
	items := make([]string, 0, len(available))
	for _, f := range available {
		items = append(items, fmt.Sprintf("%s ($%v)", f.FoodName, f.Price))
	}

	return fmt.Sprintf(`You are a helpful food recommendation assistant. Based on the following information, recommend ONE specific food item from the available menu.

User's mood: %s
User's hunger level: %s
User's preference: %s
User's budget: %s
User's dietary restrictions: %s

Available foods that match their budget and dietary restrictions: %s

Please recommend exactly ONE food item from the available list that best matches their mood, hunger level, and preferences.
Explain in 2-3 sentences why this food is perfect for them right now. Be conversational and friendly.
Format your response as: "I recommend [FOOD NAME]! [Explanation]"`,
		answers.Mood, answers.Hunger, answers.Preference, budget, allergensText, strings.Join(items, ", "))
}
