package service

import (
	"context"
	"fmt"
	"strings"

	"mealbot/internal/constants"
	"mealbot/internal/models"

	"github.com/sirupsen/logrus"
)

// Catalog is the external meal search collaborator. Ranking and matching
// heuristics live behind it; this package only filters the results.
type Catalog interface {
	SearchMeals(ctx context.Context, query string, criteria models.SearchCriteria) ([]models.Meal, error)
}

// fallbackMeals guarantees the pipeline never replies with zero options.
var fallbackMeals = []models.Meal{
	{
		Name:             "Dal Rice",
		Cuisine:          "north_indian",
		DietType:         models.DietVeg,
		Ingredients:      []string{"lentils", "rice", "turmeric", "cumin"},
		Tags:             []string{"comfort", "quick"},
		EstimatedTimeMin: 30,
	},
	{
		Name:             "Vegetable Stir Fry",
		Cuisine:          "chinese",
		DietType:         models.DietVeg,
		Ingredients:      []string{"mixed vegetables", "soy sauce", "garlic", "ginger"},
		Tags:             []string{"healthy", "quick"},
		EstimatedTimeMin: 20,
	},
	{
		Name:             "Egg Curry",
		Cuisine:          "north_indian",
		DietType:         models.DietNonVeg,
		Ingredients:      []string{"eggs", "onion", "tomato", "garam masala"},
		Tags:             []string{"protein", "comfort"},
		EstimatedTimeMin: 35,
	},
}

// Recommender filters catalog candidates against the user's diet and
// allergy constraints.
type Recommender struct {
	catalog Catalog
	logger  *logrus.Logger
}

func NewRecommender(catalog Catalog, logger *logrus.Logger) *Recommender {
	return &Recommender{
		catalog: catalog,
		logger:  logger,
	}
}

// Recommend returns at most the configured number of meals, never zero.
// Strict filtering applies diet and allergies; if that empties the list a
// relaxed pass keeps only the diet constraint before falling back to the
// built-in set.
func (r *Recommender) Recommend(ctx context.Context, user *models.User, intent models.Intent, text string) []models.Meal {
	criteria := criteriaFor(user, intent, text)

	var candidates []models.Meal
	if r.catalog != nil {
		found, err := r.catalog.SearchMeals(ctx, text, criteria)
		if err != nil {
			r.logger.WithError(err).WithField(LogFieldUserID, user.ID).
				Warn("Catalog search failed, serving fallback suggestions")
		} else {
			candidates = found
		}
	}

	candidates = prioritizeByTags(candidates, criteria.MoodTags)

	meals := FilterMeals(candidates, criteria.Diet, criteria.Allergies)
	if len(meals) == 0 {
		meals = FilterMeals(candidates, criteria.Diet, nil)
	}
	if len(meals) == 0 {
		meals = FilterMeals(fallbackMeals, criteria.Diet, criteria.Allergies)
	}
	if len(meals) == 0 {
		// Veg entries in the fallback set survive any diet constraint, so
		// only an allergy covering them can reach this point.
		meals = FilterMeals(fallbackMeals, criteria.Diet, nil)
	}

	if len(meals) > constants.DefaultMaxRecommendations {
		meals = meals[:constants.DefaultMaxRecommendations]
	}
	return meals
}

// FilterMeals removes diet conflicts for vegetarian users and any meal
// whose ingredient or tag text contains one of the allergens.
func FilterMeals(meals []models.Meal, diet string, allergies []string) []models.Meal {
	filtered := make([]models.Meal, 0, len(meals))
	for _, meal := range meals {
		if diet == models.DietVeg && meal.DietType == models.DietNonVeg {
			continue
		}
		if containsAllergen(meal, allergies) {
			continue
		}
		filtered = append(filtered, meal)
	}
	return filtered
}

func containsAllergen(meal models.Meal, allergies []string) bool {
	if len(allergies) == 0 {
		return false
	}

	var haystack strings.Builder
	for _, ing := range meal.Ingredients {
		haystack.WriteString(strings.ToLower(ing))
		haystack.WriteByte(' ')
	}
	for _, tag := range meal.Tags {
		haystack.WriteString(strings.ToLower(tag))
		haystack.WriteByte(' ')
	}
	text := haystack.String()

	for _, allergen := range allergies {
		needle := strings.ToLower(strings.ReplaceAll(allergen, "_", " "))
		if needle == "" {
			continue
		}
		if strings.Contains(text, needle) {
			return true
		}
		// Compound allergen names also match on their parts, so
		// "milk_dairy" catches both "milk" and "dairy".
		for _, part := range strings.Fields(needle) {
			if strings.Contains(text, part) {
				return true
			}
		}
	}
	return false
}

// moodWords maps craving vocabulary to catalog tags.
var moodWords = map[string]string{
	"spicy":   "spicy",
	"sweet":   "sweet",
	"comfort": "comfort",
	"light":   "light",
	"healthy": "healthy",
	"quick":   "quick",
	"filling": "filling",
}

func criteriaFor(user *models.User, intent models.Intent, text string) models.SearchCriteria {
	criteria := models.SearchCriteria{
		Diet:          user.Diet,
		CuisinePref:   user.CuisinePref,
		Allergies:     user.Allergies,
		HouseholdSize: user.HouseholdSize,
	}

	lower := strings.ToLower(text)

	switch intent {
	case models.IntentDietaryQuery:
		if strings.Contains(lower, "vegan") || strings.Contains(lower, "vegetarian") {
			criteria.Diet = models.DietVeg
		}
	case models.IntentMood:
		for word, tag := range moodWords {
			if strings.Contains(lower, word) {
				criteria.MoodTags = append(criteria.MoodTags, tag)
			}
		}
	}

	return criteria
}

// prioritizeByTags moves meals carrying any of the requested tags to the
// front, preserving relative order within both groups.
func prioritizeByTags(meals []models.Meal, tags []string) []models.Meal {
	if len(tags) == 0 || len(meals) == 0 {
		return meals
	}

	wanted := make(map[string]bool, len(tags))
	for _, tag := range tags {
		wanted[tag] = true
	}

	matched := make([]models.Meal, 0, len(meals))
	var rest []models.Meal
	for _, meal := range meals {
		hit := false
		for _, tag := range meal.Tags {
			if wanted[strings.ToLower(tag)] {
				hit = true
				break
			}
		}
		if hit {
			matched = append(matched, meal)
		} else {
			rest = append(rest, meal)
		}
	}
	return append(matched, rest...)
}

// FormatMeals renders the suggestion list for a WhatsApp reply.
func FormatMeals(lead string, meals []models.Meal) string {
	var sb strings.Builder
	sb.WriteString(lead)
	sb.WriteString("\n")
	for i, meal := range meals {
		sb.WriteString(fmt.Sprintf("\n%d. %s", i+1, meal.Name))
		var details []string
		if meal.Cuisine != "" {
			details = append(details, strings.ReplaceAll(meal.Cuisine, "_", " "))
		}
		if meal.EstimatedTimeMin > 0 {
			details = append(details, fmt.Sprintf("%d min", meal.EstimatedTimeMin))
		}
		if len(meal.Tags) > 0 {
			details = append(details, strings.Join(meal.Tags, ", "))
		}
		if len(details) > 0 {
			sb.WriteString(" (" + strings.Join(details, " | ") + ")")
		}
	}
	return sb.String()
}
