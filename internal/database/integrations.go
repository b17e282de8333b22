// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/vitalsync/internal/models"
)

// IntegrationStore persists integrations. Access and refresh tokens are
// encrypted on write and decrypted on read.
type IntegrationStore struct {
	db *DB
}

const integrationColumns = `id, user_id, provider, access_token_encrypted, refresh_token_encrypted,
	expires_at, scope, token_type, status, last_synced_at, sync_error_message,
	created_at, updated_at`

// FindByID returns the integration or *models.IntegrationNotFoundError.
func (s *IntegrationStore) FindByID(ctx context.Context, id string) (*models.Integration, error) {
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE id = ?`, id)
	integ, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.IntegrationNotFoundError{ID: id}
	}
	return integ, err
}

// FindByUserAndProvider returns the user's integration for p, or an error
// matching models.ErrIntegrationNotFound.
func (s *IntegrationStore) FindByUserAndProvider(ctx context.Context, userID string, p models.Provider) (*models.Integration, error) {
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE user_id = ? AND provider = ?`, userID, string(p))
	integ, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s integration for user %s: %w", p, userID, models.ErrIntegrationNotFound)
	}
	return integ, err
}

// FindByUser lists the user's integrations, oldest first.
func (s *IntegrationStore) FindByUser(ctx context.Context, userID string) ([]models.Integration, error) {
	return s.query(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE user_id = ? ORDER BY created_at, id`, userID)
}

// FindDueForSync returns up to limit ACTIVE or ERROR integrations that were
// never synced or last synced before before, never-synced first.
func (s *IntegrationStore) FindDueForSync(ctx context.Context, before time.Time, limit int) ([]models.Integration, error) {
	return s.query(ctx,
		`SELECT `+integrationColumns+` FROM integrations
		WHERE status IN (?, ?) AND (last_synced_at IS NULL OR last_synced_at < ?)
		ORDER BY last_synced_at ASC NULLS FIRST, created_at ASC, id ASC
		LIMIT ?`,
		string(models.IntegrationActive), string(models.IntegrationError), before.UTC(), limit)
}

// Create inserts integ. A second integration for the same user and
// provider returns *models.DuplicateIntegrationError.
func (s *IntegrationStore) Create(ctx context.Context, integ *models.Integration) error {
	access, refresh, err := s.seal(&integ.Credentials)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if integ.CreatedAt.IsZero() {
		integ.CreatedAt = now
	}
	if integ.UpdatedAt.IsZero() {
		integ.UpdatedAt = integ.CreatedAt
	}

	_, err = s.db.conn.ExecContext(ctx, `INSERT INTO integrations (`+integrationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		integ.ID, integ.UserID, string(integ.Provider), access, refresh,
		integ.Credentials.ExpiresAt.UTC(), integ.Credentials.Scope, integ.Credentials.TokenType,
		string(integ.Status), nullableTime(integ.LastSyncedAt), nullableString(integ.SyncErrorMessage),
		integ.CreatedAt.UTC(), integ.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &models.DuplicateIntegrationError{UserID: integ.UserID, Provider: integ.Provider}
		}
		return fmt.Errorf("failed to create integration: %w", err)
	}
	return nil
}

// UpdateCredentials replaces the tokens, sets ACTIVE and clears the error.
func (s *IntegrationStore) UpdateCredentials(ctx context.Context, id string, creds models.OAuthCredentials) error {
	access, refresh, err := s.seal(&creds)
	if err != nil {
		return err
	}
	return s.exec(ctx, id, `UPDATE integrations SET
		access_token_encrypted = ?, refresh_token_encrypted = ?, expires_at = ?,
		scope = ?, token_type = ?, status = ?, sync_error_message = NULL, updated_at = ?
		WHERE id = ?`,
		access, refresh, creds.ExpiresAt.UTC(), creds.Scope, creds.TokenType,
		string(models.IntegrationActive), time.Now().UTC(), id)
}

// UpdateStatus sets the status and error message.
func (s *IntegrationStore) UpdateStatus(ctx context.Context, id string, status models.IntegrationStatus, message *string) error {
	return s.exec(ctx, id,
		`UPDATE integrations SET status = ?, sync_error_message = ?, updated_at = ? WHERE id = ?`,
		string(status), nullableString(message), time.Now().UTC(), id)
}

// UpdateLastSynced records a successful sync: ACTIVE, no error, lastSyncedAt = at.
func (s *IntegrationStore) UpdateLastSynced(ctx context.Context, id string, at time.Time) error {
	return s.exec(ctx, id, `UPDATE integrations SET
		last_synced_at = ?, status = ?, sync_error_message = NULL, updated_at = ?
		WHERE id = ?`,
		at.UTC(), string(models.IntegrationActive), time.Now().UTC(), id)
}

// RecordSyncError sets ERROR with message. lastSyncedAt is left alone so the
// integration stays due for the next batch.
func (s *IntegrationStore) RecordSyncError(ctx context.Context, id string, message string) error {
	return s.exec(ctx, id,
		`UPDATE integrations SET status = ?, sync_error_message = ?, updated_at = ? WHERE id = ?`,
		string(models.IntegrationError), message, time.Now().UTC(), id)
}

// Delete removes the integration. Its health records are kept.
func (s *IntegrationStore) Delete(ctx context.Context, id string) error {
	return s.exec(ctx, id, `DELETE FROM integrations WHERE id = ?`, id)
}

// exec runs a single-row statement and maps "no row" to not found.
func (s *IntegrationStore) exec(ctx context.Context, id, query string, args ...any) error {
	result, err := s.db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update integration %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return &models.IntegrationNotFoundError{ID: id}
	}
	return nil
}

func (s *IntegrationStore) seal(creds *models.OAuthCredentials) (access, refresh string, err error) {
	if access, err = s.db.encryptor.Encrypt(creds.AccessToken); err != nil {
		return "", "", fmt.Errorf("failed to encrypt access token: %w", err)
	}
	if refresh, err = s.db.encryptor.Encrypt(creds.RefreshToken); err != nil {
		return "", "", fmt.Errorf("failed to encrypt refresh token: %w", err)
	}
	return access, refresh, nil
}

func (s *IntegrationStore) query(ctx context.Context, query string, args ...any) ([]models.Integration, error) {
	rows, err := s.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query integrations: %w", err)
	}
	defer closeWithLog(rows, "integration rows")

	out := make([]models.Integration, 0)
	for rows.Next() {
		integ, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *integ)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating integrations: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *IntegrationStore) scan(row rowScanner) (*models.Integration, error) {
	var (
		integ                   models.Integration
		provider, status        string
		access                  string
		refresh, scope, tokType sql.NullString
		lastSynced              sql.NullTime
		syncErr                 sql.NullString
	)
	err := row.Scan(&integ.ID, &integ.UserID, &provider, &access, &refresh,
		&integ.Credentials.ExpiresAt, &scope, &tokType, &status, &lastSynced, &syncErr,
		&integ.CreatedAt, &integ.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan integration: %w", err)
	}

	integ.Provider = models.Provider(provider)
	integ.Status = models.IntegrationStatus(status)
	integ.Credentials.Scope = scope.String
	integ.Credentials.TokenType = tokType.String
	integ.Credentials.ExpiresAt = integ.Credentials.ExpiresAt.UTC()
	integ.CreatedAt = integ.CreatedAt.UTC()
	integ.UpdatedAt = integ.UpdatedAt.UTC()
	integ.LastSyncedAt = timePtr(lastSynced)
	integ.SyncErrorMessage = stringPtr(syncErr)

	if integ.Credentials.AccessToken, err = s.db.encryptor.DecryptOptional(access); err != nil {
		return nil, fmt.Errorf("failed to decrypt access token for integration %s: %w", integ.ID, err)
	}
	if integ.Credentials.RefreshToken, err = s.db.encryptor.DecryptOptional(refresh.String); err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token for integration %s: %w", integ.ID, err)
	}
	return &integ, nil
}
