package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "mealbot/internal/errors"
	"mealbot/internal/models"
)

const apiVersion = "2010-04-01"

type apiClient struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	client     *http.Client
}

// NewClient creates a Twilio REST client for the configured account.
func NewClient(cfg models.TwilioConfig) Client {
	return &apiClient{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
	}
}

// SendText posts a WhatsApp text message to the destination number.
// Both addresses are channel-qualified before the call.
func (c *apiClient) SendText(ctx context.Context, to, body string) (*MessageResponse, error) {
	form := url.Values{}
	form.Set("From", qualifyWhatsApp(c.fromNumber))
	form.Set("To", qualifyWhatsApp(to))
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/%s/Accounts/%s/Messages.json", c.baseURL, apiVersion, c.accountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if err := json.Unmarshal(respBody, &apiErr); err != nil || apiErr.Message == "" {
			return nil, apperrors.NewTwilioError(0, resp.StatusCode,
				fmt.Errorf("request failed with status %d", resp.StatusCode))
		}
		return nil, apperrors.NewTwilioError(apiErr.Code, resp.StatusCode,
			fmt.Errorf("twilio error %d: %s", apiErr.Code, apiErr.Message))
	}

	var result MessageResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// HealthCheck verifies credentials by fetching the account resource.
func (c *apiClient) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/%s/Accounts/%s.json", c.baseURL, apiVersion, c.accountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return apperrors.NewTwilioError(apperrors.TwilioCodeAuthFailure, resp.StatusCode,
			fmt.Errorf("account fetch returned status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("account fetch returned status %d", resp.StatusCode)
	}

	return nil
}

func qualifyWhatsApp(number string) string {
	if strings.HasPrefix(number, WhatsAppPrefix) {
		return number
	}
	return WhatsAppPrefix + number
}
