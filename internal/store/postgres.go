package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skilltreehq/mentor-platform/pkg/logger"
)

const sessionColumns = `id, subject_email, subject_object_id, session_key, created_at, last_used_at, active`

// PostgresStore implements SessionStore on a pgx connection pool.
type PostgresStore struct {
	db  *pgxpool.Pool
	log logger.Logger
}

// NewPostgresStore creates a session store backed by the given pool.
func NewPostgresStore(db *pgxpool.Pool, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:  db,
		log: log,
	}
}

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.SubjectEmail, &s.SubjectObjectID, &s.SessionKey, &s.CreatedAt, &s.LastUsedAt, &s.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// FindActiveByEmail returns the most recently created active session for the
// email, or nil when none exists. Duplicate active rows can exist transiently;
// ordering by created_at makes the newest one canonical.
func (s *PostgresStore) FindActiveByEmail(ctx context.Context, email string) (*Session, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM graph_sessions
		WHERE lower(subject_email) = lower($1) AND active
		ORDER BY created_at DESC
		LIMIT 1`, email)

	session, err := scanSession(row)
	if err != nil {
		s.log.Error("failed to look up session by email", logger.ErrorField(err), logger.SubjectField(email))
		return nil, fmt.Errorf("find active session by email: %w", err)
	}
	return session, nil
}

// FindActiveBySubjectID returns the most recently created active session for
// the opaque subject id, or nil when none exists.
func (s *PostgresStore) FindActiveBySubjectID(ctx context.Context, subjectID string) (*Session, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM graph_sessions
		WHERE subject_object_id = $1 AND active
		ORDER BY created_at DESC
		LIMIT 1`, subjectID)

	session, err := scanSession(row)
	if err != nil {
		s.log.Error("failed to look up session by subject id", logger.ErrorField(err), logger.SubjectField(subjectID))
		return nil, fmt.Errorf("find active session by subject id: %w", err)
	}
	return session, nil
}

// Create inserts a new active session, deactivating previous actives for the
// same subject in the same transaction so at most one row stays canonical.
func (s *PostgresStore) Create(ctx context.Context, params CreateSessionParams) (*Session, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create session: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		UPDATE graph_sessions
		SET active = false
		WHERE active AND (lower(subject_email) = lower($1) OR subject_object_id = $2)`,
		params.SubjectEmail, params.SubjectObjectID)
	if err != nil {
		return nil, fmt.Errorf("deactivate previous sessions: %w", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO graph_sessions (id, subject_email, subject_object_id, session_key, created_at, last_used_at, active)
		VALUES ($1, $2, $3, $4, now(), now(), true)
		RETURNING `+sessionColumns,
		uuid.New(), params.SubjectEmail, params.SubjectObjectID, params.SessionKey)

	session, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create session: %w", err)
	}

	s.log.Info("created delegated session",
		logger.StringField("session_id", session.ID.String()),
		logger.SubjectField(params.SubjectEmail))
	return session, nil
}

// Touch updates last_used_at after a successful use of the session.
func (s *PostgresStore) Touch(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE graph_sessions SET last_used_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("touch session: no session with id %s", id)
	}
	return nil
}

// DeactivateAllForSubject marks every active session for the subject
// inactive. A revoked consent invalidates every handle for that identity, so
// the subject is matched against both lookup keys.
func (s *PostgresStore) DeactivateAllForSubject(ctx context.Context, subject string) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE graph_sessions
		SET active = false
		WHERE active AND (lower(subject_email) = lower($1) OR subject_object_id = $1)`, subject)
	if err != nil {
		s.log.Error("failed to deactivate sessions", logger.ErrorField(err), logger.SubjectField(subject))
		return 0, fmt.Errorf("deactivate sessions: %w", err)
	}

	if tag.RowsAffected() > 0 {
		s.log.Warn("deactivated delegated sessions after reauth signal",
			logger.SubjectField(subject),
			logger.Int64Field("count", tag.RowsAffected()))
	}
	return tag.RowsAffected(), nil
}

// Ping reports whether the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
