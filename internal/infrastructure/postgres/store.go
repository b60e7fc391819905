package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/dist-job-scheduler/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements repository.Store against PostgreSQL via pgx.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) ListConnectors(ctx context.Context) ([]*domain.Connector, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, config, disabled, refresh_freq
		FROM connectors
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list connectors: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*domain.Connector)
	var ordered []*domain.Connector
	for rows.Next() {
		c := &domain.Connector{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Config, &c.Disabled, &c.RefreshFreq); err != nil {
			return nil, fmt.Errorf("scan connector: %w", err)
		}
		byID[c.ID] = c
		ordered = append(ordered, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list connectors: %w", err)
	}

	// Eagerly load credential associations in one extra query instead of
	// lazily navigating per-connector (spec §9).
	assocRows, err := s.pool.Query(ctx, `
		SELECT connector_id, credential_id FROM credential_associations ORDER BY connector_id`)
	if err != nil {
		return nil, fmt.Errorf("list credential associations: %w", err)
	}
	defer assocRows.Close()

	for assocRows.Next() {
		var connectorID, credentialID int64
		if err := assocRows.Scan(&connectorID, &credentialID); err != nil {
			return nil, fmt.Errorf("scan credential association: %w", err)
		}
		c, ok := byID[connectorID]
		if !ok {
			continue
		}
		c.Credentials = append(c.Credentials, domain.CredentialAssociation{
			ConnectorID:  connectorID,
			CredentialID: credentialID,
			Credential:   domain.Credential{ID: credentialID},
		})
	}
	if err := assocRows.Err(); err != nil {
		return nil, fmt.Errorf("list credential associations: %w", err)
	}

	return ordered, nil
}

func (s *Store) ListCCPairs(ctx context.Context) ([]*domain.CCPair, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT connector_id, credential_id, attempt_status FROM cc_pairs ORDER BY connector_id, credential_id`)
	if err != nil {
		return nil, fmt.Errorf("list cc pairs: %w", err)
	}
	defer rows.Close()

	var pairs []*domain.CCPair
	for rows.Next() {
		p := &domain.CCPair{}
		if err := rows.Scan(&p.ConnectorID, &p.CredentialID, &p.AttemptStatus); err != nil {
			return nil, fmt.Errorf("scan cc pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

func (s *Store) CurrentModel(ctx context.Context) (*domain.EmbeddingModel, error) {
	return s.modelByStatus(ctx, domain.ModelPresent)
}

func (s *Store) SecondaryModel(ctx context.Context) (*domain.EmbeddingModel, error) {
	m, err := s.modelByStatus(ctx, domain.ModelFuture)
	if errors.Is(err, domain.ErrNoCurrentModel) {
		return nil, nil
	}
	return m, err
}

func (s *Store) modelByStatus(ctx context.Context, status domain.ModelStatus) (*domain.EmbeddingModel, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, status FROM embedding_models WHERE status = $1`, status)
	m := &domain.EmbeddingModel{}
	if err := row.Scan(&m.ID, &m.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoCurrentModel
		}
		return nil, fmt.Errorf("get model by status: %w", err)
	}
	return m, nil
}

func (s *Store) GetAttempt(ctx context.Context, attemptID int64) (*domain.IndexAttempt, error) {
	row := s.pool.QueryRow(ctx, attemptSelect+` WHERE a.id = $1`, attemptID)
	return scanAttempt(row)
}

func (s *Store) LastAttempt(ctx context.Context, connectorID, credentialID, modelID int64) (*domain.IndexAttempt, error) {
	row := s.pool.QueryRow(ctx, attemptSelect+`
		WHERE a.connector_id = $1 AND a.credential_id = $2 AND a.embedding_model_id = $3
		ORDER BY a.time_created DESC
		LIMIT 1`, connectorID, credentialID, modelID)
	a, err := scanAttempt(row)
	if errors.Is(err, domain.ErrAttemptNotFound) {
		return nil, nil
	}
	return a, err
}

func (s *Store) AttemptsNotStarted(ctx context.Context) ([]*domain.IndexAttempt, error) {
	return s.queryAttempts(ctx, attemptSelect+` WHERE a.status = $1`, domain.AttemptNotStarted)
}

func (s *Store) AttemptsInProgress(ctx context.Context, connectorID int64) ([]*domain.IndexAttempt, error) {
	return s.queryAttempts(ctx, attemptSelect+` WHERE a.connector_id = $1 AND a.status = $2`, connectorID, domain.AttemptInProgress)
}

func (s *Store) queryAttempts(ctx context.Context, query string, args ...any) ([]*domain.IndexAttempt, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*domain.IndexAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (s *Store) CountDistinctCCPairsAttempted(ctx context.Context, modelID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT (connector_id, credential_id))
		FROM index_attempts
		WHERE embedding_model_id = $1 AND status IN ($2, $3)`,
		modelID, domain.AttemptSuccess, domain.AttemptFailed).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count distinct cc pairs attempted: %w", err)
	}
	return count, nil
}

func (s *Store) CreateAttempt(ctx context.Context, connectorID, credentialID, modelID int64) (*domain.IndexAttempt, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO index_attempts (connector_id, credential_id, embedding_model_id, status, time_created, time_updated)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id`, connectorID, credentialID, modelID, domain.AttemptNotStarted)

	var id int64
	if err := row.Scan(&id); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	return s.GetAttempt(ctx, id)
}

func (s *Store) MarkAttemptFailed(ctx context.Context, attempt *domain.IndexAttempt, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE index_attempts
		SET status = $2, failure_reason = $3, time_updated = NOW()
		WHERE id = $1 AND status NOT IN ($4, $5)`,
		attempt.ID, domain.AttemptFailed, reason, domain.AttemptSuccess, domain.AttemptFailed)
	if err != nil {
		return fmt.Errorf("mark attempt failed: %w", err)
	}
	return nil
}

func (s *Store) UpdateCCPairStatus(ctx context.Context, connectorID, credentialID int64, status domain.AttemptStatus) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE cc_pairs SET attempt_status = $3
		WHERE connector_id = $1 AND credential_id = $2`, connectorID, credentialID, status)
	if err != nil {
		return fmt.Errorf("update cc pair status: %w", err)
	}
	return nil
}

func (s *Store) SetModelStatus(ctx context.Context, modelID int64, status domain.ModelStatus) error {
	_, err := s.pool.Exec(ctx, `UPDATE embedding_models SET status = $2 WHERE id = $1`, modelID, status)
	if err != nil {
		return fmt.Errorf("set model status: %w", err)
	}
	return nil
}

func (s *Store) ResyncCCPair(ctx context.Context, pair *domain.CCPair) error {
	// Recomputes the cc-pair's mirrored status from the latest attempt
	// against the now-PRESENT model, so a just-completed swap is reflected
	// immediately rather than waiting on the next attempt for that pair.
	row := s.pool.QueryRow(ctx, `
		SELECT a.status
		FROM index_attempts a
		JOIN embedding_models m ON m.id = a.embedding_model_id
		WHERE a.connector_id = $1 AND a.credential_id = $2 AND m.status = $3
		ORDER BY a.time_created DESC
		LIMIT 1`, pair.ConnectorID, pair.CredentialID, domain.ModelPresent)

	var status domain.AttemptStatus
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("resync cc pair: %w", err)
	}
	return s.UpdateCCPairStatus(ctx, pair.ConnectorID, pair.CredentialID, status)
}

func (s *Store) MarkAllInProgressCCPairsFailed(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE cc_pairs SET attempt_status = $1 WHERE attempt_status = $2`,
		domain.AttemptFailed, domain.AttemptInProgress)
	if err != nil {
		return fmt.Errorf("mark all in progress cc pairs failed: %w", err)
	}
	return nil
}

func (s *Store) DBNow(ctx context.Context) (time.Time, error) {
	var now time.Time
	if err := s.pool.QueryRow(ctx, `SELECT NOW()`).Scan(&now); err != nil {
		return time.Time{}, fmt.Errorf("db now: %w", err)
	}
	return now, nil
}

const attemptSelect = `
	SELECT a.id, a.connector_id, a.credential_id, a.embedding_model_id, m.status,
	       a.status, a.time_created, a.time_updated, a.failure_reason,
	       c.id, c.name, c.config, c.disabled, c.refresh_freq,
	       cr.id
	FROM index_attempts a
	JOIN embedding_models m ON m.id = a.embedding_model_id
	LEFT JOIN connectors c ON c.id = a.connector_id
	LEFT JOIN credentials cr ON cr.id = a.credential_id`

func scanAttempt(row rowScanner) (*domain.IndexAttempt, error) {
	a := &domain.IndexAttempt{}
	var connID, credID sql.Null[int64]
	var connName sql.Null[string]
	var connConfig []byte
	var connDisabled sql.Null[bool]
	var connRefresh sql.Null[int64]

	err := row.Scan(
		&a.ID, &a.ConnectorID, &a.CredentialID, &a.EmbeddingModel.ID, &a.EmbeddingModel.Status,
		&a.Status, &a.TimeCreated, &a.TimeUpdated, &a.FailureReason,
		&connID, &connName, &connConfig, &connDisabled, &connRefresh,
		&credID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("scan attempt: %w", err)
	}

	if connID.Valid {
		a.Connector = &domain.Connector{
			ID:       connID.V,
			Name:     connName.V,
			Config:   connConfig,
			Disabled: connDisabled.V,
		}
		if connRefresh.Valid {
			v := connRefresh.V
			a.Connector.RefreshFreq = &v
		}
	}
	if credID.Valid {
		a.Credential = &domain.Credential{ID: credID.V}
	}

	return a, nil
}
