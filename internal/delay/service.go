package delay

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/slipstream/gamearr/internal/database"
)

const policyColumns = `id, sort_order, tags, enable_torrent, enable_usenet, preferred_protocol,
	torrent_delay_seconds, usenet_delay_seconds, bypass_if_highest_quality, is_default`

// Service stores delay policies and resolves them for tag sets. Resolution
// holds the read lock; every renumbering runs in one transaction under the
// write lock, so readers never see a partially reordered list.
type Service struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger zerolog.Logger
}

// NewService creates a new delay policy service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "delay").Logger(),
	}
}

// EnsureDefault creates the default policy if it does not exist.
func (s *Service) EnsureDefault(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM delay_policies WHERE is_default = 1`).Scan(&count); err != nil {
		return fmt.Errorf("failed to check default delay policy: %w", err)
	}
	if count > 0 {
		return nil
	}

	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO delay_policies (sort_order, tags, enable_torrent, enable_usenet, preferred_protocol,
				torrent_delay_seconds, usenet_delay_seconds, bypass_if_highest_quality, is_default)
			VALUES (?, '[]', 1, 1, ?, 0, 0, 0, 1)`, 1<<30, ProtocolUsenet); err != nil {
			return fmt.Errorf("failed to create default delay policy: %w", err)
		}
		s.logger.Info().Msg("Created default delay policy")
		return s.renumber(ctx, tx)
	})
}

// List returns all policies in order.
func (s *Service) List(ctx context.Context) ([]*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(ctx, s.db)
}

// Get returns a policy by id.
func (s *Service) Get(ctx context.Context, id int64) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(ctx, s.db, id)
}

// BestForTags returns the lowest-ordered policy sharing a tag with tags, or
// the default policy when none does.
func (s *Service) BestForTags(ctx context.Context, tags []int64) (*Policy, error) {
	policies, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var fallback *Policy
	for _, p := range policies {
		if p.IsDefault {
			fallback = p
			continue
		}
		if p.Intersects(tags) {
			return p, nil
		}
	}
	if fallback == nil {
		return nil, fmt.Errorf("%w: default policy missing", ErrNotFound)
	}
	return fallback, nil
}

// AllForTags returns every policy sharing a tag with tags, plus the default.
func (s *Service) AllForTags(ctx context.Context, tags []int64) ([]*Policy, error) {
	policies, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]*Policy, 0, len(policies))
	for _, p := range policies {
		if p.IsDefault || p.Intersects(tags) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// AllForTag returns only the policies explicitly tagged with tag.
func (s *Service) AllForTag(ctx context.Context, tag int64) ([]*Policy, error) {
	policies, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]*Policy, 0, len(policies))
	for _, p := range policies {
		if !p.IsDefault && slices.Contains(p.Tags, tag) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// Create adds a tagged policy directly ahead of the default.
func (s *Service) Create(ctx context.Context, input PolicyInput) (*Policy, error) {
	if err := input.validate(false); err != nil {
		return nil, err
	}
	tags, err := encodeTags(input.Tags)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		// Sorts after every tagged policy and before the default until renumbered.
		res, err := tx.ExecContext(ctx, `
			INSERT INTO delay_policies (sort_order, tags, enable_torrent, enable_usenet, preferred_protocol,
				torrent_delay_seconds, usenet_delay_seconds, bypass_if_highest_quality, is_default)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
			1<<29, tags, input.EnableTorrent, input.EnableUsenet, input.PreferredProtocol,
			input.TorrentDelay*60, input.UsenetDelay*60, input.BypassIfHighestQuality)
		if err != nil {
			return fmt.Errorf("failed to create delay policy: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		return s.renumber(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("id", id).Ints64("tags", input.Tags).Msg("Created delay policy")
	return s.get(ctx, s.db, id)
}

// Update replaces a policy's settings, keeping its position.
func (s *Service) Update(ctx context.Context, id int64, input PolicyInput) (*Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.get(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(existing.IsDefault); err != nil {
		return nil, err
	}
	tags, err := encodeTags(input.Tags)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE delay_policies SET tags = ?, enable_torrent = ?, enable_usenet = ?, preferred_protocol = ?,
			torrent_delay_seconds = ?, usenet_delay_seconds = ?, bypass_if_highest_quality = ?
		WHERE id = ?`,
		tags, input.EnableTorrent, input.EnableUsenet, input.PreferredProtocol,
		input.TorrentDelay*60, input.UsenetDelay*60, input.BypassIfHighestQuality, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update delay policy: %w", err)
	}
	return s.get(ctx, s.db, id)
}

// Delete removes a tagged policy and closes the gap in the ordering.
func (s *Service) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.get(ctx, s.db, id)
	if err != nil {
		return err
	}
	if existing.IsDefault {
		return ErrDefaultPolicy
	}

	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM delay_policies WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete delay policy: %w", err)
		}
		return s.renumber(ctx, tx)
	})
	if err != nil {
		return err
	}
	s.logger.Info().Int64("id", id).Msg("Deleted delay policy")
	return nil
}

// Reorder moves a policy to newIndex and renumbers every policy densely.
// An unknown id, or the default policy, leaves the list unchanged. The index
// is clamped so the default policy stays last.
func (s *Service) Reorder(ctx context.Context, id int64, newIndex int) ([]*Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	policies, err := s.list(ctx, s.db)
	if err != nil {
		return nil, err
	}

	from := slices.IndexFunc(policies, func(p *Policy) bool { return p.ID == id })
	if from < 0 || policies[from].IsDefault {
		return policies, nil
	}

	moved := policies[from]
	reordered := slices.Delete(slices.Clone(policies), from, from+1)

	maxIndex := len(reordered)
	if n := len(reordered); n > 0 && reordered[n-1].IsDefault {
		maxIndex = n - 1
	}
	newIndex = max(0, min(newIndex, maxIndex))
	reordered = slices.Insert(reordered, newIndex, moved)

	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for i, p := range reordered {
			if _, err := tx.ExecContext(ctx, `UPDATE delay_policies SET sort_order = ? WHERE id = ?`, i, p.ID); err != nil {
				return fmt.Errorf("failed to reorder delay policies: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, p := range reordered {
		p.Order = i
	}
	s.logger.Debug().Int64("id", id).Int("index", newIndex).Msg("Reordered delay policy")
	return reordered, nil
}

// renumber assigns dense orders, tagged policies first and the default last.
func (s *Service) renumber(ctx context.Context, tx *sql.Tx) error {
	policies, err := s.list(ctx, tx)
	if err != nil {
		return err
	}
	slices.SortStableFunc(policies, func(a, b *Policy) int {
		if a.IsDefault != b.IsDefault {
			if a.IsDefault {
				return 1
			}
			return -1
		}
		return a.Order - b.Order
	})
	for i, p := range policies {
		if p.Order == i {
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE delay_policies SET sort_order = ? WHERE id = ?`, i, p.ID); err != nil {
			return fmt.Errorf("failed to renumber delay policies: %w", err)
		}
	}
	return nil
}

func (s *Service) list(ctx context.Context, q database.Querier) ([]*Policy, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+policyColumns+` FROM delay_policies ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list delay policies: %w", err)
	}
	defer rows.Close()

	var policies []*Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

func (s *Service) get(ctx context.Context, q database.Querier, id int64) (*Policy, error) {
	row := q.QueryRowContext(ctx, `SELECT `+policyColumns+` FROM delay_policies WHERE id = ?`, id)
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row scanner) (*Policy, error) {
	var (
		p                       Policy
		tags                    string
		torrentSecs, usenetSecs int64
	)
	err := row.Scan(&p.ID, &p.Order, &tags, &p.EnableTorrent, &p.EnableUsenet, &p.PreferredProtocol,
		&torrentSecs, &usenetSecs, &p.BypassIfHighestQuality, &p.IsDefault)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode delay policy tags: %w", err)
	}
	p.TorrentDelay = time.Duration(torrentSecs) * time.Second
	p.UsenetDelay = time.Duration(usenetSecs) * time.Second
	return &p, nil
}

func encodeTags(tags []int64) (string, error) {
	if tags == nil {
		tags = []int64{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
