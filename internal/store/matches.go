package store

import (
	"context"
	"errors"
	"fmt"

	"soulconnect-chat/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MatchStore defines persistence for likes and matches.
type MatchStore interface {
	// CreateLike records from -> to and, when the like is mutual, the match.
	CreateLike(ctx context.Context, from, to uuid.UUID, message string) (*models.Match, error)
	GetMatchByID(ctx context.Context, id uuid.UUID) (*models.Match, error)
	ListActiveMatches(ctx context.Context, profileID uuid.UUID) ([]*models.Match, error)
	// Unmatch ends an active match that by takes part in and deactivates its conversation.
	Unmatch(ctx context.Context, matchID, by uuid.UUID) (*models.Match, error)
}

// PostgresMatchStore implements MatchStore with PostgreSQL.
type PostgresMatchStore struct {
	db *pgxpool.Pool
}

func NewPostgresMatchStore(db *pgxpool.Pool) *PostgresMatchStore {
	return &PostgresMatchStore{db: db}
}

const matchColumns = `id, profile1_id, profile2_id, status, chat_unlocked, matched_at,
	unmatched_by, unmatched_at, chat_unlocked_at`

func scanMatch(row pgx.Row) (*models.Match, error) {
	m := &models.Match{}
	err := row.Scan(
		&m.ID,
		&m.Profile1ID,
		&m.Profile2ID,
		&m.Status,
		&m.ChatUnlocked,
		&m.MatchedAt,
		&m.UnmatchedBy,
		&m.UnmatchedAt,
		&m.ChatUnlockedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PostgresMatchStore) CreateLike(ctx context.Context, from, to uuid.UUID, message string) (*models.Match, error) {
	if from == to {
		return nil, ErrSelfLike
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO likes (id, from_profile_id, to_profile_id, message, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, uuid.New(), from, to, message)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch {
			case pgErr.Code == "23505" && pgErr.ConstraintName == "likes_pair_key":
				return nil, ErrAlreadyLiked
			case pgErr.Code == "23503":
				return nil, ErrProfileNotFound
			}
		}
		return nil, fmt.Errorf("failed to create like: %w", err)
	}

	var mutual bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM likes WHERE from_profile_id = $1 AND to_profile_id = $2)
	`, to, from).Scan(&mutual)
	if err != nil {
		return nil, fmt.Errorf("failed to check reciprocal like: %w", err)
	}

	var match *models.Match
	if mutual {
		p1, p2 := models.OrderedPair(from, to)
		match, err = scanMatch(tx.QueryRow(ctx, `
			INSERT INTO matches (id, profile1_id, profile2_id, status, chat_unlocked, matched_at)
			VALUES ($1, $2, $3, 'active', FALSE, NOW())
			ON CONFLICT ON CONSTRAINT matches_pair_key
			DO UPDATE SET status = 'active'
			RETURNING `+matchColumns, uuid.New(), p1, p2))
		if err != nil {
			return nil, fmt.Errorf("failed to create match: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return match, nil
}

func (s *PostgresMatchStore) GetMatchByID(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	m, err := scanMatch(s.db.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %s: %w", id, err)
	}
	return m, nil
}

func (s *PostgresMatchStore) ListActiveMatches(ctx context.Context, profileID uuid.UUID) ([]*models.Match, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE (profile1_id = $1 OR profile2_id = $1) AND status = 'active'
		ORDER BY matched_at DESC
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match rows: %w", err)
	}
	return matches, nil
}

func (s *PostgresMatchStore) Unmatch(ctx context.Context, matchID, by uuid.UUID) (*models.Match, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	m, err := scanMatch(tx.QueryRow(ctx, `
		UPDATE matches SET status = 'unmatched', unmatched_by = $2, unmatched_at = NOW()
		WHERE id = $1 AND (profile1_id = $2 OR profile2_id = $2) AND status = 'active'
		RETURNING `+matchColumns, matchID, by))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to unmatch %s: %w", matchID, err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE conversations SET is_active = FALSE, updated_at = NOW() WHERE match_id = $1
	`, matchID); err != nil {
		return nil, fmt.Errorf("failed to deactivate conversation for match %s: %w", matchID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return m, nil
}

var (
	ErrMatchNotFound = errors.New("match not found")
	ErrAlreadyLiked  = errors.New("profile already liked")
	ErrSelfLike      = errors.New("cannot like own profile")
)
