package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}
	return nil
}

// ResolveEntity looks an active entity up by uuid or slug. An id match wins
// over a slug that happens to spell another entity's uuid. It returns
// sql.ErrNoRows when nothing matches.
func (s *PostgresStore) ResolveEntity(ctx context.Context, key string) (Entity, error) {
	const query = `
		SELECT id, type, slug, display_name, is_active
		FROM entities
		WHERE (id::text = $1 OR slug = $1) AND is_active
		ORDER BY (id::text = $1) DESC
		LIMIT 1
	`
	var entity Entity
	err := s.db.QueryRowContext(ctx, query, key).Scan(&entity.ID, &entity.Type, &entity.Slug, &entity.DisplayName, &entity.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entity{}, err
		}
		return Entity{}, fmt.Errorf("resolve entity: %w", err)
	}
	return entity, nil
}

// MeetingEntityID returns the entity that owns the meeting's board.
func (s *PostgresStore) MeetingEntityID(ctx context.Context, meetingID string) (string, error) {
	const query = `
		SELECT b.entity_id
		FROM board_meetings bm
		JOIN boards b ON b.id = bm.board_id
		WHERE bm.id = $1
	`
	var entityID string
	err := s.db.QueryRowContext(ctx, query, meetingID).Scan(&entityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("read meeting entity: %w", err)
	}
	return entityID, nil
}

func (s *PostgresStore) IsGlobalAdmin(ctx context.Context, principalID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM global_admins WHERE user_id=$1)`, principalID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check global admin: %w", err)
	}
	return ok, nil
}

func (s *PostgresStore) IsEntityAdmin(ctx context.Context, entityID, principalID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM entity_admins WHERE entity_id=$1 AND user_id=$2)
	`, entityID, principalID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check entity admin: %w", err)
	}
	return ok, nil
}

// IsBoardChair reports whether the principal chairs any board of the entity.
func (s *PostgresStore) IsBoardChair(ctx context.Context, entityID, principalID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1
			FROM board_members bm
			JOIN boards b ON b.id = bm.board_id
			WHERE b.entity_id = $1
				AND bm.user_id = $2
				AND bm.role = 'chair'
				AND bm.is_active
		)
	`, entityID, principalID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check board chair: %w", err)
	}
	return ok, nil
}
