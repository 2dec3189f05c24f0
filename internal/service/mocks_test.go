package service

import (
	"context"
	"sync"

	"mealbot/internal/models"
	"mealbot/pkg/twilio"
)

// fakeStore is an in-memory stand-in for the SQLite store. It implements
// UserStore, MessageStore and OutboxStore with the same semantics the
// real store guarantees (idempotent inserts, nil for missing users).
type fakeStore struct {
	mu sync.Mutex

	users    map[string]*models.User
	nextID   int64
	incoming map[string]*models.IncomingMessageRecord
	outgoing []*models.OutgoingMessageRecord
	sessions [][2]string

	updateErr  error
	recordErr  error
	getUserErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]*models.User),
		incoming: make(map[string]*models.IncomingMessageRecord),
	}
}

func (s *fakeStore) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getUserErr != nil {
		return nil, s.getUserErr
	}
	user, ok := s.users[externalID]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (s *fakeStore) CreateUser(ctx context.Context, externalID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[externalID]; ok {
		copied := *existing
		return &copied, nil
	}
	s.nextID++
	step := models.StepName
	user := &models.User{
		ID:             s.nextID,
		ExternalID:     externalID,
		Allergies:      []string{},
		OnboardingStep: &step,
	}
	s.users[externalID] = user
	copied := *user
	return &copied, nil
}

func (s *fakeStore) userByID(id int64) *models.User {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (s *fakeStore) update(userID int64, apply func(*models.User), step *models.OnboardingStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	user := s.userByID(userID)
	if user == nil {
		return nil
	}
	apply(user)
	user.OnboardingStep = step
	return nil
}

func (s *fakeStore) UpdateUserNameAndStep(ctx context.Context, userID int64, name string, step *models.OnboardingStep) error {
	return s.update(userID, func(u *models.User) { u.DisplayName = name }, step)
}

func (s *fakeStore) UpdateUserDietAndStep(ctx context.Context, userID int64, diet string, step *models.OnboardingStep) error {
	return s.update(userID, func(u *models.User) { u.Diet = diet }, step)
}

func (s *fakeStore) UpdateUserCuisineAndStep(ctx context.Context, userID int64, cuisine string, step *models.OnboardingStep) error {
	return s.update(userID, func(u *models.User) { u.CuisinePref = cuisine }, step)
}

func (s *fakeStore) UpdateUserAllergiesAndStep(ctx context.Context, userID int64, allergies []string, step *models.OnboardingStep) error {
	return s.update(userID, func(u *models.User) { u.Allergies = allergies }, step)
}

func (s *fakeStore) UpdateUserHouseholdAndStep(ctx context.Context, userID int64, household string, step *models.OnboardingStep) error {
	return s.update(userID, func(u *models.User) { u.HouseholdSize = household }, step)
}

func (s *fakeStore) TouchUserActivity(ctx context.Context, userID int64) error {
	return nil
}

func (s *fakeStore) RecordIncoming(ctx context.Context, messageID string, userID *int64, fromIdentity, rawPayload string) (*models.IncomingMessageRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return nil, false, s.recordErr
	}
	if existing, ok := s.incoming[messageID]; ok {
		copied := *existing
		return &copied, false, nil
	}
	record := &models.IncomingMessageRecord{
		ID:           int64(len(s.incoming) + 1),
		MessageID:    messageID,
		UserID:       userID,
		FromIdentity: fromIdentity,
		RawPayload:   rawPayload,
	}
	s.incoming[messageID] = record
	copied := *record
	return &copied, true, nil
}

func (s *fakeStore) AttachIncomingUser(ctx context.Context, messageID string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.incoming[messageID]; ok && record.UserID == nil {
		record.UserID = &userID
	}
	return nil
}

func (s *fakeStore) MarkProcessed(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.incoming[messageID]; ok {
		record.Processed = true
	}
	return nil
}

func (s *fakeStore) SaveSession(ctx context.Context, userID int64, prompt, response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, [2]string{prompt, response})
	return nil
}

func (s *fakeStore) SaveOutgoingMessage(ctx context.Context, record *models.OutgoingMessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outgoing = append(s.outgoing, record)
	return nil
}

// mockSender records outbound replies without touching the provider.
type mockSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	outcome *Outcome
}

type sentMessage struct {
	userID *int64
	to     string
	body   string
}

func (m *mockSender) SendText(ctx context.Context, userID *int64, to, body string) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{userID: userID, to: to, body: body})
	if m.outcome != nil {
		return *m.outcome
	}
	return Outcome{OK: true, ProviderMessageID: "SMmock"}
}

// mockCatalog serves a canned meal list.
type mockCatalog struct {
	meals []models.Meal
	err   error
}

func (m *mockCatalog) SearchMeals(ctx context.Context, query string, criteria models.SearchCriteria) ([]models.Meal, error) {
	return m.meals, m.err
}

// mockIntentModel scripts LLM replies and counts attempts.
type mockIntentModel struct {
	mu    sync.Mutex
	label string
	err   error
	calls int
}

func (m *mockIntentModel) ClassifyIntent(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.label, nil
}

// mockTwilioClient scripts provider responses per attempt.
type mockTwilioClient struct {
	mu        sync.Mutex
	responses []twilioAttempt
	calls     int
}

type twilioAttempt struct {
	resp *twilio.MessageResponse
	err  error
}

func (m *mockTwilioClient) SendText(ctx context.Context, to, body string) (*twilio.MessageResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	attempt := m.responses[len(m.responses)-1]
	if m.calls < len(m.responses) {
		attempt = m.responses[m.calls]
	}
	m.calls++
	return attempt.resp, attempt.err
}

func (m *mockTwilioClient) HealthCheck(ctx context.Context) error {
	return nil
}
