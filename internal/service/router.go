package service

import (
	"context"
	"encoding/json"
	"fmt"

	"mealbot/internal/dedup"
	"mealbot/internal/models"
	"mealbot/internal/privacy"
	"mealbot/internal/validation"

	"github.com/sirupsen/logrus"
)

// MessageStore is the persistence surface the router depends on.
type MessageStore interface {
	GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
	RecordIncoming(ctx context.Context, messageID string, userID *int64, fromIdentity, rawPayload string) (*models.IncomingMessageRecord, bool, error)
	AttachIncomingUser(ctx context.Context, messageID string, userID int64) error
	MarkProcessed(ctx context.Context, messageID string) error
	SaveSession(ctx context.Context, userID int64, prompt, response string) error
}

// Stage is one executed pipeline step, recorded for the debug trace.
type Stage struct {
	Name   string `json:"name"`
	Detail string `json:"detail,omitempty"`
}

// PipelineResult summarizes one webhook's trip through the pipeline.
type PipelineResult struct {
	MessageID string        `json:"message_id"`
	Duplicate bool          `json:"duplicate"`
	Intent    models.Intent `json:"intent,omitempty"`
	Reply     string        `json:"reply,omitempty"`
	Stages    []Stage       `json:"stages"`
	Err       error         `json:"-"`
}

func (r *PipelineResult) addStage(name, detail string) {
	r.Stages = append(r.Stages, Stage{Name: name, Detail: detail})
}

const apologyReply = "Oops, something went wrong on my side 🙈 Please try that again in a bit."

// Router wires the pipeline: dedup, idempotent record, normalize, route to
// onboarding or classification, reply, audit, mark processed.
type Router struct {
	cache       *dedup.Cache
	store       MessageStore
	onboarding  *OnboardingService
	classifier  *Classifier
	recommender *Recommender
	sender      Sender
	logger      *logrus.Logger
}

func NewRouter(cache *dedup.Cache, store MessageStore, onboarding *OnboardingService, classifier *Classifier, recommender *Recommender, sender Sender, logger *logrus.Logger) *Router {
	return &Router{
		cache:       cache,
		store:       store,
		onboarding:  onboarding,
		classifier:  classifier,
		recommender: recommender,
		sender:      sender,
		logger:      logger,
	}
}

// HandleWebhook processes one inbound delivery end to end. It never returns
// an error to the HTTP layer; failures are captured in the result so the
// provider still receives its acknowledgment.
func (r *Router) HandleWebhook(ctx context.Context, payload models.WebhookPayload) *PipelineResult {
	msg := NormalizeWebhook(payload)

	result := &PipelineResult{MessageID: msg.MessageID}
	result.addStage("received", privacy.MaskMessageID(msg.MessageID))

	log := r.logger.WithFields(logrus.Fields{
		LogFieldMessageID: privacy.MaskMessageID(msg.MessageID),
		LogFieldSenderID:  privacy.MaskSenderID(msg.SenderID),
	})

	// The cache is a fast-path filter only; the store row below is the
	// authoritative idempotency boundary.
	firstSeen := r.cache.Add(msg.MessageID)

	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("{}")
	}

	record, created, recordErr := r.store.RecordIncoming(ctx, msg.MessageID, nil, msg.SenderID, string(raw))
	if recordErr != nil {
		log.WithError(recordErr).Error("Failed to record incoming message")
	}

	switch {
	case record != nil && !created && record.Processed:
		result.Duplicate = true
		result.addStage("deduped", "already_processed")
		log.Info("Duplicate delivery ignored")
		return result
	case !firstSeen && !created:
		// Warm cache with no fresh row: an earlier pass is either still
		// working on this delivery or dropped it as invalid. Passes that
		// fail midway evict their key, so they are never absorbed here.
		result.Duplicate = true
		result.addStage("deduped", "cache_hit")
		log.Info("Rapid redelivery ignored")
		return result
	case record != nil && !created:
		result.addStage("deduped", "replay_unprocessed")
		log.Warn("Replaying delivery that never completed")
	default:
		result.addStage("deduped", "new")
	}

	result.addStage("normalized", string(msg.Kind))

	if err := validation.ValidateSenderID(msg.SenderID); err != nil {
		log.WithError(err).Warn("Dropping message with invalid sender identity")
		result.Err = err
		return result
	}
	if err := validation.ValidateMessageBody(msg.Text); err != nil {
		log.WithError(err).Warn("Dropping message with oversized body")
		result.Err = err
		return result
	}

	user, err := r.store.GetUserByExternalID(ctx, msg.SenderID)
	if err != nil {
		log.WithError(err).Error("Failed to look up user")
		result.Err = err
		r.reply(ctx, result, nil, msg.SenderID, apologyReply)
		r.cache.Remove(msg.MessageID)
		return result
	}

	var (
		reply      string
		handleErr  error
		classified bool
	)

	switch {
	case user == nil:
		user, reply, handleErr = r.onboarding.Start(ctx, msg.SenderID)
		result.addStage("routed", "onboarding_start")
	case !user.Onboarded():
		result.addStage("routed", "onboarding_"+user.OnboardingStep.String())
		reply, handleErr = r.onboarding.Handle(ctx, user, msg)
	default:
		result.addStage("routed", "classify")
		intent := r.resolveIntent(ctx, msg)
		result.Intent = intent
		result.addStage("classified", string(intent))
		classified = true
		reply = r.buildReply(ctx, user, intent, msg)
	}

	if handleErr != nil {
		result.Err = handleErr
		if reply == "" {
			reply = apologyReply
		}
	}

	if user != nil && record != nil && record.UserID == nil {
		if err := r.store.AttachIncomingUser(ctx, msg.MessageID, user.ID); err != nil {
			log.WithError(err).Warn("Failed to attach user to incoming record")
		}
	}

	var userID *int64
	if user != nil {
		userID = &user.ID
	}

	sent := r.reply(ctx, result, userID, msg.SenderID, reply)

	if classified && user != nil && sent {
		if err := r.store.SaveSession(ctx, user.ID, msg.Text, reply); err != nil {
			log.WithError(err).Warn("Failed to persist session audit")
		}
	}

	// Processed flips only after a fully successful pass, so a provider
	// retry can re-attempt anything that failed midway. Evicting the
	// cache key on failure keeps the fast path from absorbing that retry.
	if sent && handleErr == nil && recordErr == nil {
		if err := r.store.MarkProcessed(ctx, msg.MessageID); err != nil {
			log.WithError(err).Error("Failed to mark message processed")
		}
	} else {
		r.cache.Remove(msg.MessageID)
	}

	return result
}

// resolveIntent classifies the message. Media deliveries map straight to
// the image flow without burning a model call.
func (r *Router) resolveIntent(ctx context.Context, msg models.Message) models.Intent {
	if msg.Kind == models.MediaMessage {
		return models.IntentUploadImage
	}
	return r.classifier.Classify(ctx, msg.Text)
}

func (r *Router) buildReply(ctx context.Context, user *models.User, intent models.Intent, msg models.Message) string {
	switch intent {
	case models.IntentWhatsDinner:
		meals := r.recommender.Recommend(ctx, user, intent, msg.Text)
		return FormatMeals("Here's what I'd cook today 🍽️", meals)
	case models.IntentMood:
		meals := r.recommender.Recommend(ctx, user, intent, msg.Text)
		return FormatMeals("Something to match that craving 😋", meals)
	case models.IntentPantryHelp:
		meals := r.recommender.Recommend(ctx, user, intent, msg.Text)
		return FormatMeals("With what you've got, try one of these:", meals)
	case models.IntentDietaryQuery:
		meals := r.recommender.Recommend(ctx, user, intent, msg.Text)
		return FormatMeals("These should fit your diet:", meals)
	case models.IntentPlanWeek:
		meals := r.recommender.Recommend(ctx, user, intent, msg.Text)
		return FormatMeals("Let's start your week with these:", meals) +
			"\n\nTell me \"plan my week\" again tomorrow and I'll keep it going!"
	case models.IntentRecipeRequest:
		return r.recipeReply(ctx, user, msg.Text)
	case models.IntentUploadImage:
		return "Love the photo! 📸 I can't see images just yet, so type out the ingredients and I'll suggest what to cook."
	case models.IntentOnboarding:
		return profileSummary(user) + "\nTo change anything, just tell me!"
	default:
		return "I'm Mambo, your meal buddy! Ask me \"what's for dinner\", say \"plan my week\", or tell me what's in your pantry 🍳"
	}
}

func (r *Router) recipeReply(ctx context.Context, user *models.User, text string) string {
	meals := r.recommender.Recommend(ctx, user, models.IntentRecipeRequest, text)
	for _, meal := range meals {
		if meal.RecipeText != "" {
			return fmt.Sprintf("%s\n\n%s", meal.Name, meal.RecipeText)
		}
	}
	return FormatMeals("I don't have that exact recipe, but I can suggest:", meals)
}

// reply sends the outbound text and records the stage. Returns true when
// the provider accepted the message.
func (r *Router) reply(ctx context.Context, result *PipelineResult, userID *int64, to, body string) bool {
	if body == "" {
		return false
	}

	result.Reply = body
	outcome := r.sender.SendText(ctx, userID, to, body)
	if !outcome.OK {
		result.addStage("replied", "failed")
		if result.Err == nil {
			result.Err = outcome.Err
		}
		return false
	}

	result.addStage("replied", "sent")
	return true
}
