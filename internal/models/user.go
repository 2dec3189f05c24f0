package models

import (
	"time"
)

// OnboardingStep is the user's position in the fixed five-question setup flow.
// A nil *OnboardingStep on User means the flow is complete.
type OnboardingStep int

const (
	StepName OnboardingStep = iota
	StepDiet
	StepCuisine
	StepAllergies
	StepHousehold
)

func (s OnboardingStep) String() string {
	switch s {
	case StepName:
		return "name"
	case StepDiet:
		return "diet"
	case StepCuisine:
		return "cuisine"
	case StepAllergies:
		return "allergies"
	case StepHousehold:
		return "household"
	default:
		return "unknown"
	}
}

// Diet preference values.
const (
	DietVeg    = "veg"
	DietNonVeg = "non-veg"
	DietBoth   = "both"
)

// Cuisines ordered by the numeric index offered during onboarding.
var Cuisines = []string{
	"north_indian",
	"south_indian",
	"chinese",
	"italian",
	"punjabi",
	"gujarati",
	"bengali",
	"international",
	"surprise",
}

// HouseholdSizes ordered by the numeric index offered during onboarding.
var HouseholdSizes = []string{
	"single",
	"couple",
	"small_family",
	"big_family",
	"shared",
}

// User is a chat identity with its stored profile and onboarding position.
type User struct {
	ID             int64           `db:"id"`
	ExternalID     string          `db:"external_id"`
	DisplayName    string          `db:"display_name"`
	Diet           string          `db:"diet"`
	CuisinePref    string          `db:"cuisine_pref"`
	Allergies      []string        `db:"allergies"`
	HouseholdSize  string          `db:"household_size"`
	OnboardingStep *OnboardingStep `db:"onboarding_step"`
	CreatedAt      time.Time       `db:"created_at"`
	LastActive     time.Time       `db:"last_active"`
}

// Onboarded reports whether the user has finished the setup flow.
func (u *User) Onboarded() bool {
	return u.OnboardingStep == nil
}
