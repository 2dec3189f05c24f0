package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"mealbot/internal/migrations"
	"mealbot/internal/models"
	"mealbot/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

type Database struct {
	db *sql.DB
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// HealthCheck reports whether the store is reachable.
func (d *Database) HealthCheck(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// User operations

// GetUserByExternalID returns the user for a chat identity, or nil when the
// identity has never been seen.
func (d *Database) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	row := d.db.QueryRowContext(ctx, selectUserByExternalIDQuery, externalID)
	return scanUser(row)
}

// GetUserByID returns the user row for an internal id, or nil when absent.
func (d *Database) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := d.db.QueryRowContext(ctx, selectUserByIDQuery, id)
	return scanUser(row)
}

// CreateUser inserts a user at onboarding step zero. The insert is an upsert
// on external_id so two concurrent first messages resolve to one row.
func (d *Database) CreateUser(ctx context.Context, externalID string) (*models.User, error) {
	err := retryableDBOperation(ctx, func() error {
		_, execErr := d.db.ExecContext(ctx, insertUserQuery, externalID)
		return execErr
	}, "create user")
	if err != nil {
		return nil, err
	}

	user, err := d.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user missing after upsert: %s", externalID)
	}
	return user, nil
}

// UpdateUserNameAndStep persists the display name and the next onboarding
// step in one statement so the stored profile never runs ahead of the step.
func (d *Database) UpdateUserNameAndStep(ctx context.Context, userID int64, name string, step *models.OnboardingStep) error {
	return d.updateUserField(ctx, updateUserNameAndStepQuery, name, step, userID, "update user name")
}

func (d *Database) UpdateUserDietAndStep(ctx context.Context, userID int64, diet string, step *models.OnboardingStep) error {
	return d.updateUserField(ctx, updateUserDietAndStepQuery, diet, step, userID, "update user diet")
}

func (d *Database) UpdateUserCuisineAndStep(ctx context.Context, userID int64, cuisine string, step *models.OnboardingStep) error {
	return d.updateUserField(ctx, updateUserCuisineAndStepQuery, cuisine, step, userID, "update user cuisine")
}

func (d *Database) UpdateUserAllergiesAndStep(ctx context.Context, userID int64, allergies []string, step *models.OnboardingStep) error {
	if allergies == nil {
		allergies = []string{}
	}
	encoded, err := json.Marshal(allergies)
	if err != nil {
		return fmt.Errorf("failed to encode allergies: %w", err)
	}
	return d.updateUserField(ctx, updateUserAllergiesAndStepQuery, string(encoded), step, userID, "update user allergies")
}

func (d *Database) UpdateUserHouseholdAndStep(ctx context.Context, userID int64, household string, step *models.OnboardingStep) error {
	return d.updateUserField(ctx, updateUserHouseholdAndStepQuery, household, step, userID, "update user household")
}

// TouchUserActivity refreshes last_active after a successful outbound send.
func (d *Database) TouchUserActivity(ctx context.Context, userID int64) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, touchUserActivityQuery, userID)
		return err
	}, "touch user activity")
}

func (d *Database) updateUserField(ctx context.Context, query, value string, step *models.OnboardingStep, userID int64, operation string) error {
	return retryableDBOperation(ctx, func() error {
		result, err := d.db.ExecContext(ctx, query, value, stepValue(step), userID)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("no user with id %d", userID)
		}
		return nil
	}, operation)
}

// Incoming message operations

// RecordIncoming inserts the idempotency row for a message id, or fetches
// the existing row on a duplicate delivery. The second return value reports
// whether the row was newly created.
func (d *Database) RecordIncoming(ctx context.Context, messageID string, userID *int64, fromIdentity, rawPayload string) (*models.IncomingMessageRecord, bool, error) {
	var created bool
	err := retryableDBOperation(ctx, func() error {
		result, execErr := d.db.ExecContext(ctx, insertIncomingMessageQuery, messageID, userIDValue(userID), fromIdentity, rawPayload)
		if execErr != nil {
			return execErr
		}
		rows, execErr := result.RowsAffected()
		if execErr != nil {
			return execErr
		}
		created = rows > 0
		return nil
	}, "record incoming message")
	if err != nil {
		return nil, false, err
	}

	record, err := d.GetIncomingMessage(ctx, messageID)
	if err != nil {
		return nil, false, err
	}
	if record == nil {
		return nil, false, fmt.Errorf("incoming message missing after insert: %s", messageID)
	}
	return record, created, nil
}

// GetIncomingMessage returns the record for a message id, or nil when absent.
func (d *Database) GetIncomingMessage(ctx context.Context, messageID string) (*models.IncomingMessageRecord, error) {
	record := &models.IncomingMessageRecord{}
	var userID sql.NullInt64
	var processed int
	var processedAt sql.NullTime

	err := d.db.QueryRowContext(ctx, selectIncomingMessageQuery, messageID).Scan(
		&record.ID,
		&record.MessageID,
		&userID,
		&record.FromIdentity,
		&record.RawPayload,
		&processed,
		&record.CreatedAt,
		&processedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get incoming message: %w", err)
	}

	if userID.Valid {
		record.UserID = &userID.Int64
	}
	record.Processed = processed != 0
	if processedAt.Valid {
		t := processedAt.Time
		record.ProcessedAt = &t
	}
	return record, nil
}

// AttachIncomingUser resolves the nullable user_id once the sender is known.
func (d *Database) AttachIncomingUser(ctx context.Context, messageID string, userID int64) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, attachIncomingUserQuery, userID, messageID)
		return err
	}, "attach incoming user")
}

// MarkProcessed flips the processed flag for a message id. Calling it twice
// is safe; the second call rewrites the same terminal state.
func (d *Database) MarkProcessed(ctx context.Context, messageID string) error {
	return retryableDBOperation(ctx, func() error {
		result, err := d.db.ExecContext(ctx, markProcessedQuery, messageID)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("no incoming message with id %s", messageID)
		}
		return nil
	}, "mark processed")
}

// Audit operations

// SaveOutgoingMessage appends one send-attempt audit row.
func (d *Database) SaveOutgoingMessage(ctx context.Context, record *models.OutgoingMessageRecord) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, insertOutgoingMessageQuery,
			userIDValue(record.UserID),
			record.ToIdentity,
			record.Body,
			record.ProviderMessageID,
			record.Status,
			record.RawResponse,
		)
		return err
	}, "save outgoing message")
}

// SaveSession appends one prompt/response audit row.
func (d *Database) SaveSession(ctx context.Context, userID int64, prompt, response string) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, insertSessionQuery, userID, prompt, response)
		return err
	}, "save session")
}

// scanUser is the single normalization boundary between store rows and the
// canonical User type. Nullable step and JSON-encoded allergies are decoded
// here and nowhere else.
func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var step sql.NullInt64
	var allergies string

	err := row.Scan(
		&user.ID,
		&user.ExternalID,
		&user.DisplayName,
		&user.Diet,
		&user.CuisinePref,
		&allergies,
		&user.HouseholdSize,
		&step,
		&user.CreatedAt,
		&user.LastActive,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	if step.Valid {
		s := models.OnboardingStep(step.Int64)
		user.OnboardingStep = &s
	}

	if allergies != "" {
		if err := json.Unmarshal([]byte(allergies), &user.Allergies); err != nil {
			return nil, fmt.Errorf("failed to decode allergies: %w", err)
		}
	}
	if user.Allergies == nil {
		user.Allergies = []string{}
	}

	return user, nil
}

func stepValue(step *models.OnboardingStep) interface{} {
	if step == nil {
		return nil
	}
	return int64(*step)
}

func userIDValue(id *int64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}
