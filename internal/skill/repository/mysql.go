package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DenisKhanov/CommuteBot/internal/skill/models"
	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
)

const queryTimeout = 5 * time.Second

// MySQLUserStore persists user profiles in a MySQL table. Destinations are
// stored as a JSON document in a text column.
type MySQLUserStore struct {
	db *sql.DB
}

// NewMySQLUserStore opens the database, verifies the connection and creates
// the profile table if it does not exist.
// Arguments:
//   - dsn: MySQL data source name.
//
// Returns a pointer to a MySQLUserStore or an error if the database is unreachable.
func NewMySQLUserStore(dsn string) (*MySQLUserStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &MySQLUserStore{db: db}
	if err = store.ensureSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

func (m *MySQLUserStore) ensureSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS transit_users (
			user_id      VARCHAR(255) NOT NULL PRIMARY KEY,
			home_address TEXT         NOT NULL,
			time_zone    VARCHAR(64)  NOT NULL DEFAULT '',
			destinations TEXT         NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create transit_users table: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (m *MySQLUserStore) Close() error {
	return m.db.Close()
}

// GetUser retrieves the profile of the given user.
// Returns models.ErrUserNotFound when no row exists.
func (m *MySQLUserStore) GetUser(userID string) (*models.TransitUser, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var user models.TransitUser
	var destinationsJSON string
	err := m.db.QueryRowContext(ctx,
		"SELECT user_id, home_address, time_zone, destinations FROM transit_users WHERE user_id = ?",
		userID,
	).Scan(&user.UserID, &user.HomeAddress, &user.TimeZone, &destinationsJSON)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		logrus.WithError(err).Errorf("Failed to query profile for user: %s", userID)
		return nil, fmt.Errorf("failed to query user %s: %w", userID, err)
	}

	if destinationsJSON != "" {
		if err = json.Unmarshal([]byte(destinationsJSON), &user.Destinations); err != nil {
			logrus.WithError(err).Errorf("Corrupted destinations column for user: %s", userID)
			return nil, fmt.Errorf("failed to unmarshal destinations of user %s: %w", userID, err)
		}
	}
	return &user, nil
}

// UpsertUser creates or replaces the full profile of a user.
func (m *MySQLUserStore) UpsertUser(userID, homeAddress string, destinations map[string]string, timezone string) (*models.TransitUser, error) {
	destinationsJSON, err := json.Marshal(destinations)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal destinations: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO transit_users (user_id, home_address, time_zone, destinations)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			home_address = VALUES(home_address),
			time_zone    = VALUES(time_zone),
			destinations = VALUES(destinations)`,
		userID, homeAddress, timezone, string(destinationsJSON))
	if err != nil {
		logrus.WithError(err).Errorf("Failed to upsert profile for user: %s", userID)
		return nil, fmt.Errorf("failed to upsert user %s: %w", userID, err)
	}

	return &models.TransitUser{
		UserID:       userID,
		HomeAddress:  homeAddress,
		TimeZone:     timezone,
		Destinations: destinations,
	}, nil
}

// UpdateHomeAddress replaces the home address of an existing user.
func (m *MySQLUserStore) UpdateHomeAddress(userID, homeAddress string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	result, err := m.db.ExecContext(ctx,
		"UPDATE transit_users SET home_address = ? WHERE user_id = ?",
		homeAddress, userID)
	if err != nil {
		logrus.WithError(err).Errorf("Failed to update home address for user: %s", userID)
		return fmt.Errorf("failed to update home address of user %s: %w", userID, err)
	}
	return m.ensureRowExisted(result, userID)
}

// AddOrUpdateDestination sets one named destination of an existing user. The
// destinations document is rewritten as a whole inside a transaction so
// concurrent updates to different destinations do not lose each other.
func (m *MySQLUserStore) AddOrUpdateDestination(userID, name, address string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err = tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			logrus.WithError(err).Error("Failed to roll back destination update")
		}
	}()

	var destinationsJSON string
	err = tx.QueryRowContext(ctx,
		"SELECT destinations FROM transit_users WHERE user_id = ? FOR UPDATE",
		userID,
	).Scan(&destinationsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read destinations of user %s: %w", userID, err)
	}

	destinations := make(map[string]string)
	if destinationsJSON != "" {
		if err = json.Unmarshal([]byte(destinationsJSON), &destinations); err != nil {
			return fmt.Errorf("failed to unmarshal destinations of user %s: %w", userID, err)
		}
	}
	destinations[name] = address

	updatedJSON, err := json.Marshal(destinations)
	if err != nil {
		return fmt.Errorf("failed to marshal destinations: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE transit_users SET destinations = ? WHERE user_id = ?",
		string(updatedJSON), userID); err != nil {
		return fmt.Errorf("failed to update destinations of user %s: %w", userID, err)
	}
	return tx.Commit()
}

// AddOrUpdateTimezone sets the timezone of an existing user.
func (m *MySQLUserStore) AddOrUpdateTimezone(userID, timezone string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	result, err := m.db.ExecContext(ctx,
		"UPDATE transit_users SET time_zone = ? WHERE user_id = ?",
		timezone, userID)
	if err != nil {
		logrus.WithError(err).Errorf("Failed to update timezone for user: %s", userID)
		return fmt.Errorf("failed to update timezone of user %s: %w", userID, err)
	}
	return m.ensureRowExisted(result, userID)
}

// DeleteUser removes the profile of a user. Deleting an unknown user is a no-op.
func (m *MySQLUserStore) DeleteUser(userID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if _, err := m.db.ExecContext(ctx,
		"DELETE FROM transit_users WHERE user_id = ?", userID); err != nil {
		logrus.WithError(err).Errorf("Failed to delete profile for user: %s", userID)
		return fmt.Errorf("failed to delete user %s: %w", userID, err)
	}
	return nil
}

// ContainsUser reports whether a profile exists for the given user.
func (m *MySQLUserStore) ContainsUser(userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var exists bool
	err := m.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM transit_users WHERE user_id = ?)", userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check existence of user %s: %w", userID, err)
	}
	return exists, nil
}

// ensureRowExisted distinguishes a missing row from a same-value update. The
// driver reports changed rows, not matched rows, so an UPDATE that rewrites
// the current value affects zero rows even though the user exists.
func (m *MySQLUserStore) ensureRowExisted(result sql.Result, userID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected > 0 {
		return nil
	}

	exists, err := m.ContainsUser(userID)
	if err != nil {
		return err
	}
	if !exists {
		return models.ErrUserNotFound
	}
	return nil
}
