// Package library stores the games tracked for acquisition.
package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
)

var (
	ErrTitleNotFound = errors.New("title not found")
	ErrInvalidTitle  = errors.New("invalid title data")
)

// Service provides title library operations.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewService creates a new library service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "library").Logger(),
	}
}

const titleColumns = `id, name, clean_name, year, monitored, minimum_availability,
	announced_date, early_access_date, release_date, original_language, tags, profile,
	created_at, updated_at`

// Get retrieves a title by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Title, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+titleColumns+` FROM titles WHERE id = ?`, id)
	t, err := scanTitle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTitleNotFound
		}
		return nil, fmt.Errorf("failed to get title: %w", err)
	}
	return t, nil
}

// List returns all titles ordered by name.
func (s *Service) List(ctx context.Context) ([]*Title, error) {
	return s.query(ctx, `SELECT `+titleColumns+` FROM titles ORDER BY clean_name, id`)
}

// ListMonitored returns monitored titles.
func (s *Service) ListMonitored(ctx context.Context) ([]*Title, error) {
	return s.query(ctx, `SELECT `+titleColumns+` FROM titles WHERE monitored = 1 ORDER BY clean_name, id`)
}

// FindByCleanName returns titles whose clean name equals name after cleaning.
func (s *Service) FindByCleanName(ctx context.Context, name string) ([]*Title, error) {
	return s.query(ctx, `SELECT `+titleColumns+` FROM titles WHERE clean_name = ? ORDER BY id`, CleanName(name))
}

// Create inserts a new title.
func (s *Service) Create(ctx context.Context, input CreateTitleInput) (*Title, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ErrInvalidTitle
	}
	if input.MinimumAvailability == "" {
		input.MinimumAvailability = AvailabilityReleased
	}
	tags, profile, err := encodeTitleJSON(input.Tags, input.Profile)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO titles (name, clean_name, year, monitored, minimum_availability,
			announced_date, early_access_date, release_date, original_language, tags, profile)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		input.Name, CleanName(input.Name), input.Year, input.Monitored, string(input.MinimumAvailability),
		input.AnnouncedDate, input.EarlyAccessDate, input.ReleaseDate,
		strings.ToLower(input.OriginalLanguage), tags, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to create title: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("titleId", id).Str("name", input.Name).Msg("Added title")
	return s.Get(ctx, id)
}

// SetMonitored toggles the monitored flag.
func (s *Service) SetMonitored(ctx context.Context, id int64, monitored bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE titles SET monitored = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, monitored, id)
	if err != nil {
		return fmt.Errorf("failed to update title: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTitleNotFound
	}
	return nil
}

// Delete removes a title.
func (s *Service) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM titles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete title: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTitleNotFound
	}
	return nil
}

func (s *Service) query(ctx context.Context, q string, args ...any) ([]*Title, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list titles: %w", err)
	}
	defer rows.Close()

	var titles []*Title
	for rows.Next() {
		t, err := scanTitle(rows)
		if err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTitle(row scanner) (*Title, error) {
	var (
		t                          Title
		availability               string
		announced, early, released sql.NullTime
		tags, profile              string
	)
	err := row.Scan(&t.ID, &t.Name, &t.CleanName, &t.Year, &t.Monitored, &availability,
		&announced, &early, &released, &t.OriginalLanguage, &tags, &profile,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.MinimumAvailability = MinimumAvailability(availability)
	if announced.Valid {
		t.AnnouncedDate = &announced.Time
	}
	if early.Valid {
		t.EarlyAccessDate = &early.Time
	}
	if released.Valid {
		t.ReleaseDate = &released.Time
	}
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode title tags: %w", err)
	}
	if err := json.Unmarshal([]byte(profile), &t.Profile); err != nil {
		return nil, fmt.Errorf("failed to decode title profile: %w", err)
	}
	if t.Tags == nil {
		t.Tags = []int64{}
	}
	return &t, nil
}

func encodeTitleJSON(tags []int64, profile QualityProfile) (string, string, error) {
	if tags == nil {
		tags = []int64{}
	}
	tagBytes, err := json.Marshal(tags)
	if err != nil {
		return "", "", err
	}
	profileBytes, err := json.Marshal(profile)
	if err != nil {
		return "", "", err
	}
	return string(tagBytes), string(profileBytes), nil
}

// CleanName normalises a title for matching: lower case, letters and digits
// only.
func CleanName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
