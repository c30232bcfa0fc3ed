package status

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Service records indexer successes and failures.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a status ledger backed by the indexer_status table.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "indexer-status").Logger(),
		now:    time.Now,
	}
}

// Get returns the status for an indexer. Indexers with no record yet get an
// empty status.
func (s *Service) Get(ctx context.Context, indexerID int64) (*IndexerStatus, error) {
	row := s.db.QueryRowContext(ctx, selectStatus+` WHERE indexer_id = ?`, indexerID)
	st, err := scanStatus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return &IndexerStatus{IndexerID: indexerID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get indexer status: %w", err)
	}
	return st, nil
}

// All returns every recorded status keyed by indexer id.
func (s *Service) All(ctx context.Context) (map[int64]*IndexerStatus, error) {
	rows, err := s.db.QueryContext(ctx, selectStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexer status: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]*IndexerStatus)
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan indexer status: %w", err)
		}
		out[st.IndexerID] = st
	}
	return out, rows.Err()
}

// RecordSuccess clears the failure streak and stamps the operation time.
func (s *Service) RecordSuccess(ctx context.Context, indexerID int64, op Operation) error {
	now := s.now().UTC()
	column := "last_rss_sync"
	if op == OperationSearch {
		column = "last_search"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO indexer_status (indexer_id, last_success, `+column+`)
		VALUES (?, ?, ?)
		ON CONFLICT(indexer_id) DO UPDATE SET
			consecutive_failures = 0,
			initial_failure = NULL,
			last_error = '',
			last_success = excluded.last_success,
			`+column+` = excluded.`+column,
		indexerID, now, now)
	if err != nil {
		return fmt.Errorf("failed to record indexer success: %w", err)
	}
	return nil
}

// RecordFailure extends the failure streak. The first failure of a streak
// sets initial_failure.
func (s *Service) RecordFailure(ctx context.Context, indexerID int64, opErr error) error {
	now := s.now().UTC()
	msg := ""
	if opErr != nil {
		msg = opErr.Error()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO indexer_status (indexer_id, consecutive_failures, initial_failure, most_recent_failure, last_error)
		VALUES (?, 1, ?, ?, ?)
		ON CONFLICT(indexer_id) DO UPDATE SET
			consecutive_failures = consecutive_failures + 1,
			initial_failure = COALESCE(initial_failure, excluded.initial_failure),
			most_recent_failure = excluded.most_recent_failure,
			last_error = excluded.last_error`,
		indexerID, now, now, msg)
	if err != nil {
		return fmt.Errorf("failed to record indexer failure: %w", err)
	}
	s.logger.Debug().Int64("indexerId", indexerID).Err(opErr).Msg("Recorded indexer failure")
	return nil
}

// Clear forgets an indexer's ledger row.
func (s *Service) Clear(ctx context.Context, indexerID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM indexer_status WHERE indexer_id = ?`, indexerID); err != nil {
		return fmt.Errorf("failed to clear indexer status: %w", err)
	}
	return nil
}

const selectStatus = `
	SELECT indexer_id, consecutive_failures, initial_failure, most_recent_failure,
		last_error, last_success, last_rss_sync, last_search
	FROM indexer_status`

type scanner interface {
	Scan(dest ...any) error
}

func scanStatus(row scanner) (*IndexerStatus, error) {
	var (
		st                                    IndexerStatus
		initial, recent, success, rss, search sql.NullTime
	)
	if err := row.Scan(&st.IndexerID, &st.ConsecutiveFailures, &initial, &recent,
		&st.LastError, &success, &rss, &search); err != nil {
		return nil, err
	}
	st.InitialFailure = timePtr(initial)
	st.MostRecentFailure = timePtr(recent)
	st.LastSuccess = timePtr(success)
	st.LastRSSSync = timePtr(rss)
	st.LastSearch = timePtr(search)
	return &st, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
