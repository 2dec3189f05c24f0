package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "mealbot/internal/errors"
	"mealbot/internal/models"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const classifierSystemPrompt = `You are an intent classifier for a meal planning WhatsApp bot called Mambo. Classify the user's message into one of these intents:
- WHATSDINNER: General meal suggestions, recipe ideas, what to cook
- PLANWEEK: Weekly meal planning, meal schedule requests
- UPLOAD_IMAGE: Image recognition, ingredient identification
- MOOD: Cravings, taste preferences, comfort food requests
- RECIPE_REQUEST: Specific recipe instructions, cooking methods
- PANTRY_HELP: Using available ingredients, leftover management
- DIETARY_QUERY: Diet restrictions, allergy-free options
- ONBOARDING: Setup, preferences, help requests
- OTHER: Anything else

Return only the intent name.`

// IntentModel classifies free text into an intent label.
type IntentModel interface {
	ClassifyIntent(ctx context.Context, text string) (string, error)
}

type client struct {
	api     openai.Client
	model   string
	timeout time.Duration
}

// NewClient creates an intent classification client backed by the OpenAI
// chat completions API. Extra request options are applied after the API
// key, which lets tests point the client at a local server.
func NewClient(cfg models.OpenAIConfig, opts ...option.RequestOption) IntentModel {
	requestOpts := append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	return &client{
		api:     openai.NewClient(requestOpts...),
		model:   cfg.Model,
		timeout: time.Duration(cfg.TimeoutSec) * time.Second,
	}
}

// ClassifyIntent sends the message to the model and returns the raw label,
// trimmed and uppercased. Callers validate it against the closed intent set.
func (c *client) ClassifyIntent(ctx context.Context, text string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	completion, err := c.api.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(classifierSystemPrompt),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", apperrors.NewOpenAIError(apiErr.StatusCode, err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", apperrors.WrapRetryable(err, apperrors.ErrCodeTimeout, "model call timed out")
		}
		return "", apperrors.WrapRetryable(err, apperrors.ErrCodeOpenAIAPI, "model call failed")
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}

	return strings.ToUpper(strings.TrimSpace(completion.Choices[0].Message.Content)), nil
}
