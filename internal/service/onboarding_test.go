package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"mealbot/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func textMsg(body string) models.Message {
	return models.Message{Kind: models.TextMessage, Text: body}
}

func TestOnboarding_FullFlow(t *testing.T) {
	store := newFakeStore()
	svc := NewOnboardingService(store, quietLogger())
	ctx := context.Background()

	user, reply, err := svc.Start(ctx, "+919876543210")
	require.NoError(t, err)
	assert.Contains(t, reply, "Mambo")
	require.NotNil(t, user.OnboardingStep)
	assert.Equal(t, models.StepName, *user.OnboardingStep)

	reply, err = svc.Handle(ctx, user, textMsg("Priya"))
	require.NoError(t, err)
	assert.Contains(t, reply, "Priya")
	assert.Equal(t, models.StepDiet, *user.OnboardingStep)

	reply, err = svc.Handle(ctx, user, textMsg("2"))
	require.NoError(t, err)
	assert.Contains(t, reply, "cuisine")
	assert.Equal(t, models.DietNonVeg, user.Diet)
	assert.Equal(t, models.StepCuisine, *user.OnboardingStep)

	reply, err = svc.Handle(ctx, user, textMsg("5"))
	require.NoError(t, err)
	assert.Contains(t, reply, "allergies")
	assert.Equal(t, "punjabi", user.CuisinePref)

	reply, err = svc.Handle(ctx, user, textMsg("4, 6"))
	require.NoError(t, err)
	assert.Contains(t, reply, "cooking for")
	assert.Equal(t, []string{"peanut", "gluten_wheat"}, user.Allergies)

	reply, err = svc.Handle(ctx, user, textMsg("3"))
	require.NoError(t, err)
	assert.Nil(t, user.OnboardingStep)
	assert.Equal(t, "small_family", user.HouseholdSize)
	assert.Contains(t, reply, "all set")
	assert.Contains(t, reply, "Priya")

	// Stored row matches the in-memory view.
	stored, err := store.GetUserByExternalID(ctx, "+919876543210")
	require.NoError(t, err)
	assert.True(t, stored.Onboarded())
	assert.Equal(t, models.DietNonVeg, stored.Diet)
}

func TestOnboarding_NameStep(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantName string
		advances bool
	}{
		{"plain name", "Ravi", "Ravi", true},
		{"skip maps to guest", "skip", "Guest", true},
		{"skip case insensitive", "SKIP", "Guest", true},
		{"empty body re-asks", "", "", false},
		{"long name truncated", strings.Repeat("a", 100), strings.Repeat("a", 64), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			svc := NewOnboardingService(store, quietLogger())
			ctx := context.Background()

			user, _, err := svc.Start(ctx, "+1555")
			require.NoError(t, err)

			reply, err := svc.Handle(ctx, user, textMsg(tt.body))
			require.NoError(t, err)

			if tt.advances {
				assert.Equal(t, tt.wantName, user.DisplayName)
				assert.Equal(t, models.StepDiet, *user.OnboardingStep)
			} else {
				assert.Equal(t, namePrompt, reply)
				assert.Equal(t, models.StepName, *user.OnboardingStep)
			}
		})
	}
}

func TestOnboarding_DietMappings(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"1", models.DietVeg},
		{"veg", models.DietVeg},
		{"2", models.DietNonVeg},
		{"nonveg", models.DietNonVeg},
		{"non veg", models.DietNonVeg},
		{"3", models.DietBoth},
		{"both", models.DietBoth},
		{"whatever", models.DietBoth},
		{"", models.DietBoth},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			store := newFakeStore()
			svc := NewOnboardingService(store, quietLogger())
			ctx := context.Background()

			user, _, err := svc.Start(ctx, "+1555")
			require.NoError(t, err)
			_, err = svc.Handle(ctx, user, textMsg("Ravi"))
			require.NoError(t, err)

			_, err = svc.Handle(ctx, user, textMsg(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, user.Diet)
			assert.Equal(t, models.StepCuisine, *user.OnboardingStep)
		})
	}
}

func TestParseAllergies(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"menu none", "1", []string{}},
		{"contains none", "None for me", []string{}},
		{"empty", "", []string{}},
		{"numeric codes", "2,4", []string{"milk_dairy", "peanut"}},
		{"free text", "mushroom, Peanut", []string{"mushroom", "peanut"}},
		{"mixed tokens", "3 shellfish", []string{"egg", "shellfish"}},
		{"unknown code skipped", "2, 99", []string{"milk_dairy"}},
		{"duplicates collapsed", "4 4 peanut", []string{"peanut"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseAllergies(tt.body))
		})
	}
}

func TestOnboarding_CuisineFreeText(t *testing.T) {
	store := newFakeStore()
	svc := NewOnboardingService(store, quietLogger())
	ctx := context.Background()

	user, _, err := svc.Start(ctx, "+1555")
	require.NoError(t, err)
	_, err = svc.Handle(ctx, user, textMsg("Ravi"))
	require.NoError(t, err)
	_, err = svc.Handle(ctx, user, textMsg("1"))
	require.NoError(t, err)

	_, err = svc.Handle(ctx, user, textMsg("Thai"))
	require.NoError(t, err)
	assert.Equal(t, "thai", user.CuisinePref)
}

func TestOnboarding_PersistenceFailureDoesNotAdvance(t *testing.T) {
	store := newFakeStore()
	svc := NewOnboardingService(store, quietLogger())
	ctx := context.Background()

	user, _, err := svc.Start(ctx, "+1555")
	require.NoError(t, err)
	_, err = svc.Handle(ctx, user, textMsg("Ravi"))
	require.NoError(t, err)

	store.updateErr = errors.New("disk full")
	reply, err := svc.Handle(ctx, user, textMsg("1"))
	require.Error(t, err)
	assert.Contains(t, reply, "diet")
	assert.Equal(t, models.StepDiet, *user.OnboardingStep)
	assert.Empty(t, user.Diet)

	// Next attempt with a healthy store succeeds from the same step.
	store.updateErr = nil
	_, err = svc.Handle(ctx, user, textMsg("1"))
	require.NoError(t, err)
	assert.Equal(t, models.DietVeg, user.Diet)
	assert.Equal(t, models.StepCuisine, *user.OnboardingStep)
}

func TestOnboarding_MonotonicSteps(t *testing.T) {
	store := newFakeStore()
	svc := NewOnboardingService(store, quietLogger())
	ctx := context.Background()

	user, _, err := svc.Start(ctx, "+1555")
	require.NoError(t, err)

	inputs := []string{"Ravi", "1", "2", "none", "1"}
	prev := int(*user.OnboardingStep)
	for _, input := range inputs {
		_, err := svc.Handle(ctx, user, textMsg(input))
		require.NoError(t, err)
		if user.OnboardingStep == nil {
			break
		}
		current := int(*user.OnboardingStep)
		assert.Equal(t, prev+1, current)
		prev = current
	}
	assert.Nil(t, user.OnboardingStep)
}
