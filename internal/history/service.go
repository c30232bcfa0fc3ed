package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/slipstream/gamearr/internal/candidate"
)

const eventColumns = `id, title_id, event_type, source_title, download_id, quality, data, date`

// Service provides the append-only history ledger.
type Service struct {
	db        *sql.DB
	logger    zerolog.Logger
	now       func() time.Time
	retention RetentionSettings
}

// NewService creates a new history service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:        db,
		logger:    logger.With().Str("component", "history").Logger(),
		now:       time.Now,
		retention: DefaultRetentionSettings(),
	}
}

// Record appends an event. A zero Date is set to now. The stored id and
// date are written back to e.
func (s *Service) Record(ctx context.Context, e *Event) error {
	if e.Date.IsZero() {
		e.Date = s.now()
	}
	e.Date = e.Date.UTC()

	var qualityJSON, dataJSON sql.NullString
	if e.Quality != nil {
		bytes, err := json.Marshal(e.Quality)
		if err != nil {
			return fmt.Errorf("failed to encode history quality: %w", err)
		}
		qualityJSON = sql.NullString{String: string(bytes), Valid: true}
	}
	if e.Data != nil {
		bytes, err := json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("failed to encode history data: %w", err)
		}
		dataJSON = sql.NullString{String: string(bytes), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO history (title_id, event_type, source_title, download_id, quality, data, date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.TitleID, string(e.EventType), e.SourceTitle, e.DownloadID, qualityJSON, dataJSON, e.Date)
	if err != nil {
		return fmt.Errorf("failed to record history event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id

	s.logger.Debug().
		Int64("titleId", e.TitleID).
		Str("eventType", string(e.EventType)).
		Str("downloadId", e.DownloadID).
		Msg("Recorded history event")
	return nil
}

// MostRecentForTitle returns the newest event for a title.
func (s *Service) MostRecentForTitle(ctx context.Context, titleID int64) (*Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM history
		WHERE title_id = ? ORDER BY date DESC, id DESC LIMIT 1`, titleID)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// ListByTitle returns a title's events, newest first.
func (s *Service) ListByTitle(ctx context.Context, titleID int64) ([]*Event, error) {
	return s.query(ctx, `SELECT `+eventColumns+` FROM history
		WHERE title_id = ? ORDER BY date DESC, id DESC`, titleID)
}

// Since returns events at or after t, oldest first.
func (s *Service) Since(ctx context.Context, t time.Time) ([]*Event, error) {
	return s.query(ctx, `SELECT `+eventColumns+` FROM history
		WHERE date >= ? ORDER BY date ASC, id ASC`, t.UTC())
}

// FindByDownloadID returns events for a download client id, newest first.
func (s *Service) FindByDownloadID(ctx context.Context, downloadID string) ([]*Event, error) {
	if downloadID == "" {
		return nil, nil
	}
	return s.query(ctx, `SELECT `+eventColumns+` FROM history
		WHERE download_id = ? ORDER BY date DESC, id DESC`, downloadID)
}

// HasEvent reports whether an event of the given type was already recorded
// for a download id.
func (s *Service) HasEvent(ctx context.Context, downloadID string, eventType EventType) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history WHERE download_id = ? AND event_type = ?`,
		downloadID, string(eventType)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check history: %w", err)
	}
	return count > 0, nil
}

// List lists history events with pagination and filtering, newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResponse, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 50
	}
	if opts.PageSize > 100 {
		opts.PageSize = 100
	}

	var where []string
	var args []any
	if opts.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, opts.EventType)
	}
	if opts.TitleID > 0 {
		where = append(where, "title_id = ?")
		args = append(args, opts.TitleID)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var totalCount int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history`+clause, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to count history: %w", err)
	}

	offset := (opts.Page - 1) * opts.PageSize
	items, err := s.query(ctx, `SELECT `+eventColumns+` FROM history`+clause+
		` ORDER BY date DESC, id DESC LIMIT ? OFFSET ?`, append(args, opts.PageSize, offset)...)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Event{}
	}

	totalPages := int(totalCount) / opts.PageSize
	if int(totalCount)%opts.PageSize > 0 {
		totalPages++
	}

	return &ListResponse{
		Items:      items,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalCount: totalCount,
		TotalPages: totalPages,
	}, nil
}

// Purge deletes all history events.
func (s *Service) Purge(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("failed to purge history: %w", err)
	}
	s.logger.Info().Msg("Purged history")
	return nil
}

// Trim deletes events older than olderThan and returns how many were removed.
func (s *Service) Trim(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE date < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to trim history: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *Service) query(ctx context.Context, q string, args ...any) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*Event, error) {
	var (
		e             Event
		eventType     string
		quality, data sql.NullString
	)
	if err := row.Scan(&e.ID, &e.TitleID, &eventType, &e.SourceTitle, &e.DownloadID, &quality, &data, &e.Date); err != nil {
		return nil, err
	}
	e.EventType = EventType(eventType)
	if quality.Valid {
		var q candidate.Quality
		if err := json.Unmarshal([]byte(quality.String), &q); err == nil {
			e.Quality = &q
		}
	}
	if data.Valid {
		var m map[string]any
		if err := json.Unmarshal([]byte(data.String), &m); err == nil {
			e.Data = m
		}
	}
	return &e, nil
}
