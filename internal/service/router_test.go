package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mealbot/internal/dedup"
	"mealbot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routerFixture struct {
	router *Router
	store  *fakeStore
	sender *mockSender
	model  *mockIntentModel
	cache  *dedup.Cache
}

func newRouterFixture() *routerFixture {
	logger := quietLogger()
	store := newFakeStore()
	sender := &mockSender{}
	model := &mockIntentModel{label: "OTHER"}
	cache := dedup.NewCache(16)

	router := NewRouter(
		cache,
		store,
		NewOnboardingService(store, logger),
		NewClassifier(model, fastRetryConfig(), logger),
		NewRecommender(&mockCatalog{}, logger),
		sender,
		logger,
	)

	return &routerFixture{router: router, store: store, sender: sender, model: model, cache: cache}
}

func textPayload(sid, from, body string) models.WebhookPayload {
	return models.WebhookPayload{
		MessageSid: sid,
		From:       "whatsapp:" + from,
		To:         "whatsapp:+14155238886",
		Body:       body,
	}
}

// finishOnboarding walks a fresh sender through all five questions.
func (f *routerFixture) finishOnboarding(t *testing.T, from string) {
	t.Helper()
	answers := []string{"hi", "Priya", "1", "2", "1", "2"}
	for i, body := range answers {
		f.router.HandleWebhook(context.Background(), textPayload(sidFor(i), from, body))
	}
	user, err := f.store.GetUserByExternalID(context.Background(), from)
	require.NoError(t, err)
	require.NotNil(t, user)
	require.True(t, user.Onboarded())
}

func sidFor(i int) string {
	return "SMsetup000000000000000000000000000" + string(rune('a'+i))
}

func TestHandleWebhook_NewSenderStartsOnboarding(t *testing.T) {
	f := newRouterFixture()

	result := f.router.HandleWebhook(context.Background(), textPayload("SM1", "+919876543210", "hi"))

	assert.False(t, result.Duplicate)
	assert.NoError(t, result.Err)
	assert.Contains(t, result.Reply, "call you")

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "+919876543210", f.sender.sent[0].to)

	user, err := f.store.GetUserByExternalID(context.Background(), "+919876543210")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.False(t, user.Onboarded())

	record := f.store.incoming["SM1"]
	require.NotNil(t, record)
	assert.True(t, record.Processed)
	require.NotNil(t, record.UserID)
	assert.Equal(t, user.ID, *record.UserID)
}

func TestHandleWebhook_ShortSenderStartsOnboarding(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()

	result := f.router.HandleWebhook(ctx, textPayload("SM1", "+1555", "Hi"))

	assert.NoError(t, result.Err)
	assert.False(t, result.Duplicate)
	assert.Contains(t, result.Reply, "call you")
	require.Len(t, f.sender.sent, 1)

	user, err := f.store.GetUserByExternalID(ctx, "+1555")
	require.NoError(t, err)
	require.NotNil(t, user)
	require.NotNil(t, user.OnboardingStep)
	assert.Equal(t, models.StepName, *user.OnboardingStep)
}

func TestHandleWebhook_DuplicateDeliveryShortCircuits(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()
	payload := textPayload("SM1", "+919876543210", "hi")

	first := f.router.HandleWebhook(ctx, payload)
	require.False(t, first.Duplicate)

	second := f.router.HandleWebhook(ctx, payload)
	assert.True(t, second.Duplicate)

	// The replay produced no side effects.
	assert.Len(t, f.sender.sent, 1)
	assert.Len(t, f.store.incoming, 1)
	assert.Len(t, f.store.users, 1)

	user, _ := f.store.GetUserByExternalID(ctx, "+919876543210")
	require.NotNil(t, user)
	assert.Equal(t, models.StepName, *user.OnboardingStep)
}

func TestHandleWebhook_RapidRedeliveryShortCircuits(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()

	// A first delivery is mid-pipeline: row inserted and key cached, but
	// not yet marked processed.
	_, created, err := f.store.RecordIncoming(ctx, "SM1", nil, "+919876543210", "{}")
	require.NoError(t, err)
	require.True(t, created)
	f.cache.Add("SM1")

	result := f.router.HandleWebhook(ctx, textPayload("SM1", "+919876543210", "hi"))

	assert.True(t, result.Duplicate)
	assert.Empty(t, f.sender.sent)
	assert.Empty(t, f.store.users)

	last := result.Stages[len(result.Stages)-1]
	assert.Equal(t, "deduped", last.Name)
	assert.Equal(t, "cache_hit", last.Detail)
}

func TestHandleWebhook_CacheAbsorbsRetryDuringStoreOutage(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()

	f.cache.Add("SM1")
	f.store.recordErr = errors.New("db locked")

	result := f.router.HandleWebhook(ctx, textPayload("SM1", "+919876543210", "hi"))

	assert.True(t, result.Duplicate)
	assert.Empty(t, f.sender.sent)
}

func TestHandleWebhook_OnboardingAdvancesStep(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()

	f.router.HandleWebhook(ctx, textPayload("SM1", "+919876543210", "hi"))
	f.router.HandleWebhook(ctx, textPayload("SM2", "+919876543210", "Priya"))
	result := f.router.HandleWebhook(ctx, textPayload("SM3", "+919876543210", "2"))

	assert.Contains(t, result.Reply, "cuisine")

	user, _ := f.store.GetUserByExternalID(ctx, "+919876543210")
	require.NotNil(t, user)
	assert.Equal(t, "non-veg", user.Diet)
	assert.Equal(t, models.StepCuisine, *user.OnboardingStep)
}

func TestHandleWebhook_OnboardedTextIsClassified(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()
	f.finishOnboarding(t, "+919876543210")

	result := f.router.HandleWebhook(ctx, textPayload("SMclassify1", "+919876543210", "what should I eat for dinner"))

	assert.Equal(t, models.IntentWhatsDinner, result.Intent)
	assert.NotEmpty(t, result.Reply)
	assert.True(t, f.store.incoming["SMclassify1"].Processed)

	require.NotEmpty(t, f.store.sessions)
	last := f.store.sessions[len(f.store.sessions)-1]
	assert.Equal(t, "what should I eat for dinner", last[0])
	assert.Equal(t, result.Reply, last[1])
}

func TestHandleWebhook_MediaSkipsClassifier(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()
	f.finishOnboarding(t, "+919876543210")
	f.model.calls = 0

	payload := textPayload("SMmedia1", "+919876543210", "")
	payload.NumMedia = 1
	payload.MediaURLs = []string{"https://api.twilio.com/media/1.jpg"}

	result := f.router.HandleWebhook(ctx, payload)

	assert.Equal(t, models.IntentUploadImage, result.Intent)
	assert.Contains(t, result.Reply, "photo")
	assert.Equal(t, 0, f.model.calls)
}

func TestHandleWebhook_SendFailureLeavesUnprocessed(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()
	f.sender.outcome = &Outcome{OK: false, Err: errors.New("provider down")}

	result := f.router.HandleWebhook(ctx, textPayload("SM1", "+919876543210", "hi"))

	assert.Error(t, result.Err)
	record := f.store.incoming["SM1"]
	require.NotNil(t, record)
	assert.False(t, record.Processed)

	// The failed pass evicted its cache key, so the provider's retry is
	// not absorbed by the fast path once sending works again.
	assert.False(t, f.cache.Contains("SM1"))
	f.sender.outcome = nil
	replay := f.router.HandleWebhook(ctx, textPayload("SM1", "+919876543210", "hi"))
	assert.False(t, replay.Duplicate)
	assert.True(t, f.store.incoming["SM1"].Processed)
}

func TestHandleWebhook_UserLookupFailureApologizes(t *testing.T) {
	f := newRouterFixture()
	f.store.getUserErr = errors.New("db locked")

	result := f.router.HandleWebhook(context.Background(), textPayload("SM1", "+919876543210", "hi"))

	assert.Error(t, result.Err)
	assert.Equal(t, apologyReply, result.Reply)
	require.Len(t, f.sender.sent, 1)
	assert.False(t, f.store.incoming["SM1"].Processed)
	assert.False(t, f.cache.Contains("SM1"))
}

func TestHandleWebhook_InvalidSenderDropped(t *testing.T) {
	payloads := []models.WebhookPayload{
		{MessageSid: "SM1", Body: "hi"},
		textPayload("SM2", "not-a-number", "hi"),
	}

	for _, payload := range payloads {
		f := newRouterFixture()
		result := f.router.HandleWebhook(context.Background(), payload)

		assert.Error(t, result.Err)
		assert.Empty(t, f.sender.sent)
		assert.Empty(t, f.store.users)
	}
}

func TestHandleWebhook_OversizedBodyDropped(t *testing.T) {
	f := newRouterFixture()
	payload := textPayload("SM1", "+919876543210", strings.Repeat("x", 5000))

	result := f.router.HandleWebhook(context.Background(), payload)

	assert.Error(t, result.Err)
	assert.Empty(t, f.sender.sent)
}

func TestHandleWebhook_EmptySidGetsSyntheticID(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()

	first := f.router.HandleWebhook(ctx, textPayload("", "+919876543210", "hi"))
	second := f.router.HandleWebhook(ctx, textPayload("", "+919876543210", "hello"))

	assert.NotEqual(t, first.MessageID, second.MessageID)
	assert.False(t, second.Duplicate)
	assert.Len(t, f.store.incoming, 2)
}

func TestHandleWebhook_StageTrace(t *testing.T) {
	f := newRouterFixture()

	result := f.router.HandleWebhook(context.Background(), textPayload("SM1", "+919876543210", "hi"))

	var names []string
	for _, stage := range result.Stages {
		names = append(names, stage.Name)
	}
	assert.Equal(t, []string{"received", "deduped", "normalized", "routed", "replied"}, names)
}
