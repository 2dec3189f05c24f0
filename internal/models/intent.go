package models

// Intent is one label from the closed classification set.
type Intent string

const (
	IntentWhatsDinner   Intent = "WHATSDINNER"
	IntentPlanWeek      Intent = "PLANWEEK"
	IntentUploadImage   Intent = "UPLOAD_IMAGE"
	IntentMood          Intent = "MOOD"
	IntentRecipeRequest Intent = "RECIPE_REQUEST"
	IntentPantryHelp    Intent = "PANTRY_HELP"
	IntentDietaryQuery  Intent = "DIETARY_QUERY"
	IntentOnboarding    Intent = "ONBOARDING"
	IntentOther         Intent = "OTHER"
)

// ValidIntents is the closed label set, used to validate model replies.
var ValidIntents = map[Intent]bool{
	IntentWhatsDinner:   true,
	IntentPlanWeek:      true,
	IntentUploadImage:   true,
	IntentMood:          true,
	IntentRecipeRequest: true,
	IntentPantryHelp:    true,
	IntentDietaryQuery:  true,
	IntentOnboarding:    true,
	IntentOther:         true,
}

// Meal is one catalog item as returned by the external meal catalog.
type Meal struct {
	Name             string   `json:"name"`
	Cuisine          string   `json:"cuisine"`
	DietType         string   `json:"diet_type"`
	Ingredients      []string `json:"ingredients"`
	Tags             []string `json:"tags"`
	RecipeText       string   `json:"recipe_text,omitempty"`
	EstimatedTimeMin int      `json:"estimated_time_min,omitempty"`
}

// SearchCriteria carries the user constraints handed to the meal catalog.
// MoodTags are soft preferences used for ordering, not filtering.
type SearchCriteria struct {
	Diet          string
	CuisinePref   string
	Allergies     []string
	HouseholdSize string
	MoodTags      []string
}
