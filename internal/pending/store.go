package pending

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/delay"
	"github.com/slipstream/gamearr/internal/downloader"
	"github.com/slipstream/gamearr/internal/events"
	"github.com/slipstream/gamearr/internal/metrics"
)

// Grabber hands a candidate to a download client.
type Grabber interface {
	Grab(ctx context.Context, c *candidate.Candidate, userInvoked bool) (*downloader.GrabResult, error)
}

// TitleLocker serialises grabs per title across every grab path.
type TitleLocker interface {
	TryLock(titleID int64) (unlock func(), ok bool)
}

// Store persists pending releases. Every mutation is serialised and
// publishes PendingReleasesUpdated.
type Store struct {
	db        *sql.DB
	grabber   Grabber
	publisher *events.Publisher
	locks     TitleLocker
	logger    zerolog.Logger
	now       func() time.Time

	mu sync.Mutex
}

// NewStore creates a new pending release store.
func NewStore(db *sql.DB, grabber Grabber, publisher *events.Publisher, logger zerolog.Logger) *Store {
	return &Store{
		db:        db,
		grabber:   grabber,
		publisher: publisher,
		logger:    logger.With().Str("component", "pending").Logger(),
		now:       time.Now,
	}
}

// SetTitleLock shares the per-title grab lock with the other grab paths.
func (s *Store) SetTitleLock(l TitleLocker) {
	s.locks = l
}

// Add holds a candidate. If a release is already pending for the same title
// the better of the two is kept; a worse newcomer is ignored and the existing
// release is returned.
func (s *Store) Add(ctx context.Context, c *candidate.Candidate, policy *delay.Policy, reason Reason) (*Release, error) {
	titleID := c.TitleID()
	if titleID == 0 {
		return nil, fmt.Errorf("cannot hold unmatched release %q", c.Title)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.listWhere(ctx, "WHERE title_id = ?", titleID)
	if err != nil {
		return nil, err
	}
	for _, r := range existing {
		if r.Candidate.Key() != c.Key() && candidate.Compare(c, r.Candidate) <= 0 {
			s.logger.Debug().Str("release", c.Title).Str("pending", r.Candidate.Title).
				Msg("Ignoring release, a better one is already pending")
			return r, nil
		}
	}

	now := s.now().UTC()
	rel := &Release{
		TitleID:   titleID,
		Candidate: c,
		Reason:    reason,
		Added:     now,
	}
	if policy != nil {
		rel.Policy = policy.Clone()
	}
	rel.ReleaseAt = releaseAt(c, policy, reason, now).UTC()

	candJSON, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode candidate: %w", err)
	}
	policyJSON, err := json.Marshal(rel.Policy)
	if err != nil {
		return nil, fmt.Errorf("failed to encode policy: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_releases WHERE title_id = ?`, titleID); err != nil {
		return nil, fmt.Errorf("failed to remove superseded releases: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO pending_releases (title_id, candidate_key, release_title, candidate, policy, reason, added, release_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		titleID, c.Key(), c.Title, string(candJSON), string(policyJSON), string(reason), rel.Added, rel.ReleaseAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert pending release: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit pending release: %w", err)
	}

	rel.ID, _ = res.LastInsertId()
	metrics.GrabsTotal.WithLabelValues("pending").Inc()
	s.logger.Info().Str("release", c.Title).Int64("titleId", titleID).Str("reason", string(reason)).
		Time("releaseAt", rel.ReleaseAt).Msg("Release held")
	s.notify(ctx, titleID)
	return rel, nil
}

// List returns every pending release ordered by ID.
func (s *Store) List(ctx context.Context) ([]*Release, error) {
	return s.listWhere(ctx, "")
}

// ListForTitle returns the pending releases for one title.
func (s *Store) ListForTitle(ctx context.Context, titleID int64) ([]*Release, error) {
	return s.listWhere(ctx, "WHERE title_id = ?", titleID)
}

// Get returns a pending release by ID.
func (s *Store) Get(ctx context.Context, id int64) (*Release, error) {
	releases, err := s.listWhere(ctx, "WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(releases) == 0 {
		return nil, ErrNotFound
	}
	return releases[0], nil
}

// Ready returns releases whose hold has expired at now.
func (s *Store) Ready(ctx context.Context, now time.Time) ([]*Release, error) {
	return s.listWhere(ctx, "WHERE release_at <= ?", now.UTC())
}

// Remove deletes one pending release.
func (s *Store) Remove(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_releases WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pending release: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.notify(ctx, 0)
	return nil
}

// RemoveByIDs deletes several pending releases in one transaction. Unknown
// IDs are ignored.
func (s *Store) RemoveByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_releases WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete pending release %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.notify(ctx, 0)
	return nil
}

// RemoveForTitle drops everything pending for a title, typically after a
// grab made the hold pointless.
func (s *Store) RemoveForTitle(ctx context.Context, titleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_releases WHERE title_id = ?`, titleID)
	if err != nil {
		return fmt.Errorf("failed to delete pending releases for title: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.notify(ctx, titleID)
	}
	return nil
}

// ForceGrab grabs a pending release now, regardless of its hold. When no
// client is available the release stays pending with reason Manual.
func (s *Store) ForceGrab(ctx context.Context, id int64) (*downloader.GrabResult, error) {
	rel, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	result, err := s.promote(ctx, rel, true)
	if errors.Is(err, downloader.ErrClientUnavailable) {
		s.setReason(ctx, rel, ReasonManual)
	}
	return result, err
}

// ProcessReady grabs every release whose hold has expired. Releases whose
// client is unavailable stay pending; other failures drop the release.
// Returns the number grabbed.
func (s *Store) ProcessReady(ctx context.Context) (int, error) {
	ready, err := s.Ready(ctx, s.now())
	if err != nil {
		return 0, err
	}

	grabbed := 0
	for _, rel := range ready {
		if ctx.Err() != nil {
			return grabbed, ctx.Err()
		}
		_, err := s.promote(ctx, rel, false)
		switch {
		case err == nil:
			grabbed++
		case errors.Is(err, ErrTitleBusy):
			s.logger.Debug().Int64("titleId", rel.TitleID).Msg("Title busy, keeping release pending")
		case errors.Is(err, downloader.ErrClientUnavailable):
			s.setReason(ctx, rel, ReasonDownloadClientUnavailable)
		default:
			s.logger.Warn().Err(err).Str("release", rel.Candidate.Title).Msg("Dropping pending release after failed grab")
			if err := s.Remove(ctx, rel.ID); err != nil && !errors.Is(err, ErrNotFound) {
				s.logger.Error().Err(err).Int64("id", rel.ID).Msg("Failed to drop pending release")
			}
		}
	}
	return grabbed, nil
}

func (s *Store) promote(ctx context.Context, rel *Release, userInvoked bool) (*downloader.GrabResult, error) {
	if s.grabber == nil {
		return nil, downloader.ErrClientUnavailable
	}
	if s.locks != nil {
		unlock, ok := s.locks.TryLock(rel.TitleID)
		if !ok {
			return nil, ErrTitleBusy
		}
		defer unlock()
	}
	result, err := s.grabber.Grab(ctx, rel.Candidate, userInvoked)
	if err != nil {
		return nil, err
	}
	if err := s.RemoveForTitle(ctx, rel.TitleID); err != nil {
		s.logger.Error().Err(err).Int64("titleId", rel.TitleID).Msg("Failed to clear pending releases after grab")
	}
	return result, nil
}

func (s *Store) setReason(ctx context.Context, rel *Release, reason Reason) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `UPDATE pending_releases SET reason = ? WHERE id = ?`, string(reason), rel.ID); err != nil {
		s.logger.Error().Err(err).Int64("id", rel.ID).Msg("Failed to update pending reason")
		return
	}
	if rel.Reason != reason {
		rel.Reason = reason
		s.notify(ctx, rel.TitleID)
	}
}

func (s *Store) notify(ctx context.Context, titleID int64) {
	s.publisher.Publish(ctx, events.Event{Type: events.PendingReleasesUpdated, TitleID: titleID})
}

func (s *Store) listWhere(ctx context.Context, where string, args ...any) ([]*Release, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title_id, candidate, policy, reason, added, release_at
		FROM pending_releases `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending releases: %w", err)
	}
	defer rows.Close()

	var releases []*Release
	for rows.Next() {
		var (
			r                   Release
			candJSON, policyRaw string
			reason              string
		)
		if err := rows.Scan(&r.ID, &r.TitleID, &candJSON, &policyRaw, &reason, &r.Added, &r.ReleaseAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending release: %w", err)
		}
		r.Reason = Reason(reason)
		if err := json.Unmarshal([]byte(candJSON), &r.Candidate); err != nil {
			return nil, fmt.Errorf("failed to decode pending candidate %d: %w", r.ID, err)
		}
		if policyRaw != "" && policyRaw != "null" {
			if err := json.Unmarshal([]byte(policyRaw), &r.Policy); err != nil {
				return nil, fmt.Errorf("failed to decode pending policy %d: %w", r.ID, err)
			}
		}
		releases = append(releases, &r)
	}
	return releases, rows.Err()
}
