package database

// User queries
const (
	insertUserQuery = `
		INSERT INTO users (external_id, onboarding_step, created_at, last_active)
		VALUES (?, 0, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(external_id) DO UPDATE SET last_active = CURRENT_TIMESTAMP
	`

	selectUserByExternalIDQuery = `
		SELECT id, external_id, display_name, diet, cuisine_pref, allergies,
		       household_size, onboarding_step, created_at, last_active
		FROM users
		WHERE external_id = ?
	`

	selectUserByIDQuery = `
		SELECT id, external_id, display_name, diet, cuisine_pref, allergies,
		       household_size, onboarding_step, created_at, last_active
		FROM users
		WHERE id = ?
	`

	updateUserNameAndStepQuery = `
		UPDATE users
		SET display_name = ?, onboarding_step = ?, last_active = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	updateUserDietAndStepQuery = `
		UPDATE users
		SET diet = ?, onboarding_step = ?, last_active = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	updateUserCuisineAndStepQuery = `
		UPDATE users
		SET cuisine_pref = ?, onboarding_step = ?, last_active = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	updateUserAllergiesAndStepQuery = `
		UPDATE users
		SET allergies = ?, onboarding_step = ?, last_active = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	updateUserHouseholdAndStepQuery = `
		UPDATE users
		SET household_size = ?, onboarding_step = ?, last_active = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	touchUserActivityQuery = `
		UPDATE users
		SET last_active = CURRENT_TIMESTAMP
		WHERE id = ?
	`
)

// Incoming message queries
const (
	insertIncomingMessageQuery = `
		INSERT INTO incoming_messages (message_id, user_id, from_identity, raw_payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(message_id) DO NOTHING
	`

	selectIncomingMessageQuery = `
		SELECT id, message_id, user_id, from_identity, raw_payload,
		       processed, created_at, processed_at
		FROM incoming_messages
		WHERE message_id = ?
	`

	attachIncomingUserQuery = `
		UPDATE incoming_messages
		SET user_id = ?
		WHERE message_id = ? AND user_id IS NULL
	`

	markProcessedQuery = `
		UPDATE incoming_messages
		SET processed = 1, processed_at = CURRENT_TIMESTAMP
		WHERE message_id = ?
	`
)

// Outgoing message and session queries
const (
	insertOutgoingMessageQuery = `
		INSERT INTO outgoing_messages (user_id, to_identity, body, provider_message_id, status, raw_response)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	insertSessionQuery = `
		INSERT INTO sessions (user_id, prompt, response)
		VALUES (?, ?, ?)
	`
)
