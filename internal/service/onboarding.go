package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"mealbot/internal/constants"
	"mealbot/internal/models"

	"github.com/sirupsen/logrus"
)

// UserStore is the persistence surface the onboarding flow depends on.
// Every field update carries the next step so one write covers both.
type UserStore interface {
	GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
	CreateUser(ctx context.Context, externalID string) (*models.User, error)
	UpdateUserNameAndStep(ctx context.Context, userID int64, name string, step *models.OnboardingStep) error
	UpdateUserDietAndStep(ctx context.Context, userID int64, diet string, step *models.OnboardingStep) error
	UpdateUserCuisineAndStep(ctx context.Context, userID int64, cuisine string, step *models.OnboardingStep) error
	UpdateUserAllergiesAndStep(ctx context.Context, userID int64, allergies []string, step *models.OnboardingStep) error
	UpdateUserHouseholdAndStep(ctx context.Context, userID int64, household string, step *models.OnboardingStep) error
}

const (
	namePrompt = "Hey! I'm Mambo, your meal planning buddy 🍲 What should I call you? (reply \"skip\" if you'd rather not say)"

	dietPromptFmt = "Nice to meet you, %s! What's your diet?\n1. Veg\n2. Non-veg\n3. Both"

	cuisinePrompt = "Got it! Which cuisine do you enjoy most?\n" +
		"1. North Indian\n2. South Indian\n3. Chinese\n4. Italian\n5. Punjabi\n" +
		"6. Gujarati\n7. Bengali\n8. International\n9. Surprise me!"

	allergiesPrompt = "Any allergies I should know about?\n" +
		"1. None\n2. Milk/Dairy\n3. Egg\n4. Peanut\n5. Tree nuts\n" +
		"6. Gluten/Wheat\n7. Soy\n8. Fish\n9. Shellfish\n10. Sesame\n" +
		"You can also type them, comma separated."

	householdPrompt = "Last one! Who am I cooking for?\n" +
		"1. Just me\n2. Couple\n3. Small family (3-4)\n4. Big family (5+)\n5. Shared flat"
)

// allergenByCode maps the numeric menu options to canonical allergen names.
// Code 1 means "none" and is handled before the lookup.
var allergenByCode = map[int]string{
	2:  "milk_dairy",
	3:  "egg",
	4:  "peanut",
	5:  "tree_nuts",
	6:  "gluten_wheat",
	7:  "soy",
	8:  "fish",
	9:  "shellfish",
	10: "sesame",
}

// OnboardingService advances users through the five-question setup flow.
type OnboardingService struct {
	store  UserStore
	logger *logrus.Logger
}

func NewOnboardingService(store UserStore, logger *logrus.Logger) *OnboardingService {
	return &OnboardingService{
		store:  store,
		logger: logger,
	}
}

// Start creates a user at the first step and returns the opening prompt.
func (s *OnboardingService) Start(ctx context.Context, externalID string) (*models.User, string, error) {
	user, err := s.store.CreateUser(ctx, externalID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		LogFieldUserID: user.ID,
		LogFieldStep:   models.StepName.String(),
	}).Info("Onboarding started")

	return user, namePrompt, nil
}

// Handle consumes one message for a user inside the flow and returns the
// next prompt. If persistence fails the step is not advanced and the same
// question is returned alongside the error, so the provider retry can
// re-attempt the transition.
func (s *OnboardingService) Handle(ctx context.Context, user *models.User, msg models.Message) (string, error) {
	if user.OnboardingStep == nil {
		return "", fmt.Errorf("user %d is not in the onboarding flow", user.ID)
	}

	step := *user.OnboardingStep
	body := strings.TrimSpace(msg.Text)

	var (
		reply string
		err   error
	)

	switch step {
	case models.StepName:
		reply, err = s.handleName(ctx, user, body)
	case models.StepDiet:
		reply, err = s.handleDiet(ctx, user, body)
	case models.StepCuisine:
		reply, err = s.handleCuisine(ctx, user, body)
	case models.StepAllergies:
		reply, err = s.handleAllergies(ctx, user, body)
	case models.StepHousehold:
		reply, err = s.handleHousehold(ctx, user, body)
	default:
		return "", fmt.Errorf("unknown onboarding step %d for user %d", step, user.ID)
	}

	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			LogFieldUserID: user.ID,
			LogFieldStep:   step.String(),
		}).Error("Failed to persist onboarding transition")
		return s.promptFor(step, user), err
	}

	return reply, nil
}

func (s *OnboardingService) handleName(ctx context.Context, user *models.User, body string) (string, error) {
	if body == "" {
		return namePrompt, nil
	}

	name := body
	if strings.EqualFold(name, "skip") {
		name = "Guest"
	}
	if runes := []rune(name); len(runes) > constants.MaxDisplayNameLength {
		name = string(runes[:constants.MaxDisplayNameLength])
	}

	next := models.StepDiet
	if err := s.store.UpdateUserNameAndStep(ctx, user.ID, name, &next); err != nil {
		return "", err
	}

	user.DisplayName = name
	user.OnboardingStep = &next
	return fmt.Sprintf(dietPromptFmt, name), nil
}

func (s *OnboardingService) handleDiet(ctx context.Context, user *models.User, body string) (string, error) {
	diet := models.DietBoth
	switch strings.ToLower(body) {
	case "1", "veg":
		diet = models.DietVeg
	case "2", "non-veg", "nonveg", "non veg":
		diet = models.DietNonVeg
	case "3", "both":
		diet = models.DietBoth
	}

	next := models.StepCuisine
	if err := s.store.UpdateUserDietAndStep(ctx, user.ID, diet, &next); err != nil {
		return "", err
	}

	user.Diet = diet
	user.OnboardingStep = &next
	return cuisinePrompt, nil
}

func (s *OnboardingService) handleCuisine(ctx context.Context, user *models.User, body string) (string, error) {
	cuisine := "surprise"
	if idx, err := strconv.Atoi(body); err == nil && idx >= 1 && idx <= len(models.Cuisines) {
		cuisine = models.Cuisines[idx-1]
	} else if body != "" {
		cuisine = strings.ToLower(body)
	}

	next := models.StepAllergies
	if err := s.store.UpdateUserCuisineAndStep(ctx, user.ID, cuisine, &next); err != nil {
		return "", err
	}

	user.CuisinePref = cuisine
	user.OnboardingStep = &next
	return allergiesPrompt, nil
}

func (s *OnboardingService) handleAllergies(ctx context.Context, user *models.User, body string) (string, error) {
	allergies := parseAllergies(body)

	next := models.StepHousehold
	if err := s.store.UpdateUserAllergiesAndStep(ctx, user.ID, allergies, &next); err != nil {
		return "", err
	}

	user.Allergies = allergies
	user.OnboardingStep = &next
	return householdPrompt, nil
}

func (s *OnboardingService) handleHousehold(ctx context.Context, user *models.User, body string) (string, error) {
	household := "single"
	if idx, err := strconv.Atoi(body); err == nil && idx >= 1 && idx <= len(models.HouseholdSizes) {
		household = models.HouseholdSizes[idx-1]
	} else if body != "" {
		household = strings.ToLower(body)
	}

	if err := s.store.UpdateUserHouseholdAndStep(ctx, user.ID, household, nil); err != nil {
		return "", err
	}

	user.HouseholdSize = household
	user.OnboardingStep = nil

	s.logger.WithField(LogFieldUserID, user.ID).Info("Onboarding completed")

	return profileSummary(user), nil
}

// parseAllergies interprets the allergy reply: the "none" option clears the
// set, numeric menu codes map to canonical names, and any other token is
// taken as a free-text allergy name.
func parseAllergies(body string) []string {
	lower := strings.ToLower(body)
	if body == "" || body == "1" || strings.Contains(lower, "none") {
		return []string{}
	}

	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})

	allergies := make([]string, 0, len(tokens))
	seen := make(map[string]bool)
	for _, token := range tokens {
		name := token
		if code, err := strconv.Atoi(token); err == nil {
			mapped, ok := allergenByCode[code]
			if !ok {
				continue
			}
			name = mapped
		}
		if !seen[name] {
			seen[name] = true
			allergies = append(allergies, name)
		}
	}
	return allergies
}

func (s *OnboardingService) promptFor(step models.OnboardingStep, user *models.User) string {
	switch step {
	case models.StepName:
		return namePrompt
	case models.StepDiet:
		return fmt.Sprintf(dietPromptFmt, displayName(user))
	case models.StepCuisine:
		return cuisinePrompt
	case models.StepAllergies:
		return allergiesPrompt
	case models.StepHousehold:
		return householdPrompt
	default:
		return namePrompt
	}
}

func profileSummary(user *models.User) string {
	allergies := "none"
	if len(user.Allergies) > 0 {
		allergies = strings.Join(user.Allergies, ", ")
	}

	return fmt.Sprintf(
		"You're all set, %s! 🎉 Here's what I've got:\n"+
			"• Diet: %s\n• Cuisine: %s\n• Allergies: %s\n• Household: %s\n"+
			"Ask me \"what's for dinner\" anytime!",
		displayName(user), user.Diet, user.CuisinePref, allergies, user.HouseholdSize,
	)
}

func displayName(user *models.User) string {
	if user.DisplayName == "" {
		return "there"
	}
	return user.DisplayName
}
