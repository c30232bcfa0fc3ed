// Package blocklist records releases that must never be grabbed again.
package blocklist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/slipstream/gamearr/internal/events"
)

var ErrNotFound = errors.New("blocklist entry not found")

// Entry is a blocked release.
type Entry struct {
	ID          int64     `json:"id"`
	TitleID     int64     `json:"titleId"`
	SourceTitle string    `json:"sourceTitle"`
	IndexerID   int64     `json:"indexerId,omitempty"`
	GUID        string    `json:"guid,omitempty"`
	Protocol    string    `json:"protocol,omitempty"`
	Message     string    `json:"message,omitempty"`
	Date        time.Time `json:"date"`
}

// Service provides blocklist persistence.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewService creates a new blocklist service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "blocklist").Logger(),
	}
}

// Notify implements events.Observer: a failed download blocks the release
// that produced it so it is not grabbed again.
func (s *Service) Notify(ctx context.Context, e events.Event) {
	if e.Type != events.DownloadFailed {
		return
	}
	failure, ok := e.Payload.(events.DownloadFailure)
	if !ok || failure.Candidate == nil {
		return
	}
	c := failure.Candidate
	entry := &Entry{
		TitleID:     e.TitleID,
		SourceTitle: c.Title,
		IndexerID:   c.IndexerID,
		GUID:        c.GUID,
		Protocol:    string(c.Protocol),
		Message:     failure.Message,
	}
	if err := s.Add(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("release", c.Title).Msg("Failed to blocklist failed download")
		return
	}
	s.logger.Info().Str("release", c.Title).Str("client", failure.ClientName).Msg("Blocklisted failed download")
}

// Add blocks a release.
func (s *Service) Add(ctx context.Context, e *Entry) error {
	if e.Date.IsZero() {
		e.Date = time.Now()
	}
	e.Date = e.Date.UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO blocklist (title_id, source_title, indexer_id, guid, protocol, message, date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.TitleID, e.SourceTitle, e.IndexerID, e.GUID, e.Protocol, e.Message, e.Date)
	if err != nil {
		return fmt.Errorf("failed to add blocklist entry: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	s.logger.Info().Int64("titleId", e.TitleID).Str("release", e.SourceTitle).Msg("Blocklisted release")
	return nil
}

// IsBlocked reports whether a release for the title is blocked, matching
// on indexer and guid when known, otherwise on the release title.
func (s *Service) IsBlocked(ctx context.Context, titleID, indexerID int64, guid, sourceTitle string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM blocklist
		WHERE title_id = ? AND ((guid != '' AND indexer_id = ? AND guid = ?) OR source_title = ?)`,
		titleID, indexerID, guid, sourceTitle).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check blocklist: %w", err)
	}
	return count > 0, nil
}

// List returns all entries, newest first.
func (s *Service) List(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title_id, source_title, indexer_id, guid, protocol, message, date
		FROM blocklist ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocklist: %w", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TitleID, &e.SourceTitle, &e.IndexerID, &e.GUID, &e.Protocol, &e.Message, &e.Date); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Delete removes an entry.
func (s *Service) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blocklist WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete blocklist entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
