package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	apperrors "mealbot/internal/errors"
	"mealbot/internal/models"
	"mealbot/internal/retry"
	"mealbot/pkg/llm"

	"github.com/sirupsen/logrus"
)

// Stage 1: high-precision phrasings. First match wins, so recipe
// instructions outrank the broader meal-suggestion rules below.
var patternRules = []struct {
	intent   models.Intent
	patterns []*regexp.Regexp
}{
	{models.IntentRecipeRequest, compileAll(
		`\bhow\s+(to|do)\s+(make|cook|prepare)\s+`,
		`\brecipe\s+for\s+`,
		`\bsteps\s+to\s+(make|cook|prepare)\s+`,
		`\bcooking\s+(method|instructions)\s+for\s+`,
	)},
	{models.IntentPantryHelp, compileAll(
		`\bwhat\s+can\s+i\s+(make|cook)\s+with\s+`,
		`\bi\s+have\s+.*?\s+(what|kya)\s+can\s+i\s+(make|cook)`,
		`\bwith\s+these\s+(ingredients|items)\s+`,
		`\buse\s+up\s+(these|leftover|remaining)\s+`,
		`\bfrom\s+my\s+(pantry|fridge|kitchen)\s+`,
	)},
	{models.IntentWhatsDinner, compileAll(
		`\bwhat\s+(should|can)\s+i\s+(eat|cook|make)\s+for\s+(breakfast|lunch|dinner)`,
		`\b(breakfast|lunch|dinner)\s+(idea|suggestion|option)`,
		`\bwhat\s+for\s+(breakfast|lunch|dinner)`,
	)},
	{models.IntentDietaryQuery, compileAll(
		`\b(without|no|avoid|skip)\s+(dairy|gluten|meat|eggs)`,
		`\b(vegan|vegetarian|keto|low.carb)\s+(option|meal|food)`,
		`\ballergy.free\s+`,
		`\bsubstitute\s+for\s+`,
	)},
	{models.IntentUploadImage, compileAll(
		`\bsend\s+(photo|picture|image)`,
		`\bupload\s+(photo|picture|image)`,
		`\bcheck\s+this\s+(photo|picture|image)`,
		`\bwhat.s\s+in\s+this\s+(photo|picture|image)`,
	)},
}

// Stage 2: word-boundary phrase table. Order is fixed so precedence between
// overlapping phrases stays deterministic. Entries containing ".*" are raw
// regular expressions.
var keywordRules = []struct {
	intent  models.Intent
	phrases []string
}{
	{models.IntentRecipeRequest, []string{
		"recipe for", "how to make", "how do I cook", "how to prepare",
		"cooking method", "cooking steps", "preparation steps",
		"ingredients needed for", "cooking time for", "cooking instructions for",
	}},
	{models.IntentPantryHelp, []string{
		"what can I make with", "using these ingredients", "I have.*what can I",
		"use up these", "leftover.*what to", "ingredients at home",
		"with what I have", "from my pantry", "available ingredients.*make",
	}},
	{models.IntentDietaryQuery, []string{
		"vegan option", "vegetarian option", "gluten free", "dairy free",
		"low carb", "keto friendly", "healthy option", "diet food",
		"low calorie", "sugar free", "allergy free", "without dairy",
		"substitute for", "avoid.*because",
	}},
	{models.IntentPlanWeek, []string{
		"plan my week", "weekly plan", "meal plan", "weekly meal plan",
		"plan meals for week", "week meal plan", "7 day plan", "weekly menu",
		"meal planning", "plan ahead", "weekly cooking", "menu planning",
		"plan food for week", "organize weekly meals", "meal schedule",
		"weekly schedule",
	}},
	{models.IntentUploadImage, []string{
		"send photo", "upload image", "picture of food", "food photo",
		"recognize this", "identify this", "scan this", "check this image",
		"what's in this picture", "analyze photo", "image recognition",
	}},
	{models.IntentMood, []string{
		"in the mood for", "craving something", "fancy something",
		"feel like eating", "want something spicy", "want something sweet",
		"craving", "feeling like", "dying for", "really want something",
		"comfort food", "something filling", "something light",
	}},
	{models.IntentWhatsDinner, []string{
		"what should I eat", "meal suggestion", "suggest meal", "dinner ideas",
		"food suggestions", "what should I cook", "suggest something to eat",
		"recommend meal", "food idea", "cooking ideas", "meal ideas",
		"what for dinner", "what for lunch", "what for breakfast",
		"cook something", "make something to eat", "prepare food",
		"cooking inspiration", "kitchen help", "food help",
	}},
	{models.IntentOnboarding, []string{
		"getting started", "how to use", "setup preferences",
		"configure profile", "reset preferences", "change settings",
		"update profile", "help me start", "how does this work",
	}},
}

// Stage 3: romanized Hindi patterns, kept separate from stage 1 so their
// lower precision cannot shadow the English rules.
var hinglishRules = []struct {
	intent   models.Intent
	patterns []*regexp.Regexp
}{
	{models.IntentWhatsDinner, compileAll(
		`\b(aaj|aj)\s+kya\s+(banau|pakau|khana)`,
		`\bkya\s+(banau|pakau|khana)\s+(banau|banana|hai)`,
		`\b(khane|khaane)\s+(mein|me)\s+kya`,
		`\b(nashta|breakfast)\s+(mein|me)\s+kya`,
		`\b(dinner|lunch)\s+(mein|me)\s+kya\s+(banau|khau)`,
		`\bkuch\s+(suggest|bata|batao|karo)\s+`,
	)},
	{models.IntentPantryHelp, compileAll(
		`\bmere\s+paas\s+.*?\s+(hai|he)\s+.*?kya\s+(bana|banau)`,
		`\bse\s+kya\s+(bana|banau)\s+(sakta|sakti)`,
		`\byeh\s+ingredients\s+se\s+kya\s+(bana|banau)`,
	)},
	{models.IntentRecipeRequest, compileAll(
		`\b(kaise|kese)\s+(banate|banaye|banau)\s+(hai|he)`,
		`\b(banane\s+ka|ka)\s+(tarika|method)`,
		`\brecipe\s+(batao|bata|kya)\s+hai`,
	)},
}

// Stage 4: tolerant substring table for common misspellings.
var fuzzyRules = []struct {
	intent     models.Intent
	substrings []string
}{
	{models.IntentWhatsDinner, []string{
		"wat to eat", "wat should i eat", "food suggest", "meal suggest",
		"wat to cook", "wat for dinner", "dinner suggest", "food idea",
	}},
	{models.IntentMood, []string{
		"want spicy", "want sweet", "craving spic", "want hot food",
		"feel like eating", "mood for", "fancy eating",
	}},
	{models.IntentPlanWeek, []string{
		"plan week", "week plan", "meal plan week", "weekly food",
	}},
}

// Stage 6: last-resort single-word lexicon used when the model is
// unavailable or exhausted its retries.
var heuristicRules = []struct {
	intent models.Intent
	words  []string
}{
	{models.IntentRecipeRequest, []string{"recipe"}},
	{models.IntentPlanWeek, []string{"plan"}},
	{models.IntentMood, []string{"craving", "mood"}},
	{models.IntentWhatsDinner, []string{"eat", "cook", "food", "dinner", "lunch", "breakfast", "hungry", "khana"}},
	{models.IntentOnboarding, []string{"help", "start"}},
}

var compiledKeywordRules = compileKeywordRules()

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

func compileKeywordRules() []struct {
	intent   models.Intent
	patterns []*regexp.Regexp
} {
	compiled := make([]struct {
		intent   models.Intent
		patterns []*regexp.Regexp
	}, len(keywordRules))

	for i, rule := range keywordRules {
		patterns := make([]*regexp.Regexp, len(rule.phrases))
		for j, phrase := range rule.phrases {
			phrase = strings.ToLower(phrase)
			if strings.Contains(phrase, ".*") {
				patterns[j] = regexp.MustCompile(phrase)
			} else {
				patterns[j] = regexp.MustCompile(`\b` + regexp.QuoteMeta(phrase) + `\b`)
			}
		}
		compiled[i].intent = rule.intent
		compiled[i].patterns = patterns
	}
	return compiled
}

// Classifier resolves free text to an intent label through a strict
// precedence chain: rules first, the model only as a fallback, and a
// deterministic guess when the model cannot answer.
type Classifier struct {
	model   llm.IntentModel
	backoff *retry.Backoff
	logger  *logrus.Logger
}

// NewClassifier creates a classifier. A nil model disables the LLM stage.
func NewClassifier(model llm.IntentModel, retryCfg models.RetryConfig, logger *logrus.Logger) *Classifier {
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(retryCfg.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(retryCfg.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  retryCfg.MaxAttempts,
		Jitter:       true,
	})

	return &Classifier{
		model:   model,
		backoff: backoff,
		logger:  logger,
	}
}

// Classify runs the staged chain and always produces a label.
func (c *Classifier) Classify(ctx context.Context, text string) models.Intent {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return models.IntentOther
	}

	if intent, ok := matchPatterns(lower); ok {
		c.logStage(lower, "pattern", intent)
		return intent
	}
	if intent, ok := matchKeywords(lower); ok {
		c.logStage(lower, "keyword", intent)
		return intent
	}
	if intent, ok := matchHinglish(lower); ok {
		c.logStage(lower, "hinglish", intent)
		return intent
	}
	if intent, ok := matchFuzzy(lower); ok {
		c.logStage(lower, "fuzzy", intent)
		return intent
	}

	if c.model != nil {
		if intent, ok := c.classifyWithModel(ctx, text); ok {
			c.logStage(lower, "llm", intent)
			return intent
		}
	}

	intent := heuristicGuess(lower)
	c.logStage(lower, "heuristic", intent)
	return intent
}

func matchPatterns(text string) (models.Intent, bool) {
	for _, rule := range patternRules {
		for _, pattern := range rule.patterns {
			if pattern.MatchString(text) {
				return rule.intent, true
			}
		}
	}
	return models.IntentOther, false
}

func matchKeywords(text string) (models.Intent, bool) {
	for _, rule := range compiledKeywordRules {
		for _, pattern := range rule.patterns {
			if pattern.MatchString(text) {
				return rule.intent, true
			}
		}
	}
	return models.IntentOther, false
}

func matchHinglish(text string) (models.Intent, bool) {
	for _, rule := range hinglishRules {
		for _, pattern := range rule.patterns {
			if pattern.MatchString(text) {
				return rule.intent, true
			}
		}
	}
	return models.IntentOther, false
}

func matchFuzzy(text string) (models.Intent, bool) {
	for _, rule := range fuzzyRules {
		for _, sub := range rule.substrings {
			if strings.Contains(text, sub) {
				return rule.intent, true
			}
		}
	}
	return models.IntentOther, false
}

// classifyWithModel asks the LLM with bounded retries. The second return
// value is false when the model could not be reached, handing control to
// the deterministic fallback.
func (c *Classifier) classifyWithModel(ctx context.Context, text string) (models.Intent, bool) {
	var label string
	err := c.backoff.RetryWithPredicate(ctx, func() error {
		var callErr error
		label, callErr = c.model.ClassifyIntent(ctx, text)
		return callErr
	}, apperrors.IsRetryable)

	if err != nil {
		c.logger.WithError(err).WithField(LogFieldErrorCode, string(apperrors.GetCode(err))).
			Warn("Model classification failed, falling back to heuristics")
		return models.IntentOther, false
	}

	intent := models.Intent(label)
	if !models.ValidIntents[intent] {
		return models.IntentOther, true
	}
	return intent, true
}

func heuristicGuess(text string) models.Intent {
	for _, rule := range heuristicRules {
		for _, word := range rule.words {
			if strings.Contains(text, word) {
				return rule.intent
			}
		}
	}
	return models.IntentOther
}

func (c *Classifier) logStage(text, stage string, intent models.Intent) {
	c.logger.WithFields(logrus.Fields{
		LogFieldStage:  stage,
		LogFieldIntent: string(intent),
		LogFieldSize:   len(text),
	}).Debug("Intent classified")
}
