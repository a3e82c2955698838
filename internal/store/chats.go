package store

import (
	"context"
	"errors"
	"fmt"

	"soulconnect-chat/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChatStore defines persistence for conversations and their read state.
type ChatStore interface {
	GetConversationByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	GetOrCreateForMatch(ctx context.Context, match *models.Match) (*models.Conversation, bool, error)
	ListForParticipant(ctx context.Context, profileID uuid.UUID, limit, offset int) ([]*models.Conversation, int, error)
	// MarkAsRead flips received messages to read and zeroes the caller's counter.
	MarkAsRead(ctx context.Context, conversationID, profileID uuid.UUID) (int64, error)
	TotalUnread(ctx context.Context, profileID uuid.UUID) (int, error)
}

// PostgresChatStore implements ChatStore with PostgreSQL.
type PostgresChatStore struct {
	db *pgxpool.Pool
}

func NewPostgresChatStore(db *pgxpool.Pool) *PostgresChatStore {
	return &PostgresChatStore{db: db}
}

const conversationColumns = `id, match_id, participant1_id, participant2_id, last_message, last_message_at,
	last_message_by, unread_count_1, unread_count_2, is_active, created_at`

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := row.Scan(
		&c.ID,
		&c.MatchID,
		&c.Participant1,
		&c.Participant2,
		&c.LastMessage,
		&c.LastMessageAt,
		&c.LastMessageBy,
		&c.Unread1,
		&c.Unread2,
		&c.IsActive,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresChatStore) GetConversationByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	c, err := scanConversation(s.db.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}
	return c, nil
}

// GetOrCreateForMatch returns the conversation bound to match, creating it on first use.
// The bool reports whether a row was created.
func (s *PostgresChatStore) GetOrCreateForMatch(ctx context.Context, match *models.Match) (*models.Conversation, bool, error) {
	c, err := scanConversation(s.db.QueryRow(ctx, `
		INSERT INTO conversations (id, match_id, participant1_id, participant2_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
		ON CONFLICT (match_id) DO NOTHING
		RETURNING `+conversationColumns,
		uuid.New(), match.ID, match.Profile1ID, match.Profile2ID))
	if err == nil {
		return c, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create conversation for match %s: %w", match.ID, err)
	}

	c, err = scanConversation(s.db.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE match_id = $1`, match.ID))
	if err != nil {
		return nil, false, fmt.Errorf("failed to load conversation for match %s: %w", match.ID, err)
	}
	return c, false, nil
}

// ListForParticipant pages through active conversations, most recent activity first.
func (s *PostgresChatStore) ListForParticipant(ctx context.Context, profileID uuid.UUID, limit, offset int) ([]*models.Conversation, int, error) {
	var total int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM conversations
		WHERE (participant1_id = $1 OR participant2_id = $1) AND is_active
	`, profileID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count conversations: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE (participant1_id = $1 OR participant2_id = $1) AND is_active
		ORDER BY last_message_at DESC NULLS LAST, created_at DESC
		LIMIT $2 OFFSET $3
	`, profileID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]*models.Conversation, 0)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating conversation rows: %w", err)
	}
	return conversations, total, nil
}

func (s *PostgresChatStore) MarkAsRead(ctx context.Context, conversationID, profileID uuid.UUID) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE messages SET is_read = TRUE, read_at = NOW()
		WHERE conversation_id = $1 AND sender_id <> $2 AND NOT is_read
	`, conversationID, profileID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE conversations SET
			unread_count_1 = CASE WHEN participant1_id = $2 THEN 0 ELSE unread_count_1 END,
			unread_count_2 = CASE WHEN participant2_id = $2 THEN 0 ELSE unread_count_2 END
		WHERE id = $1
	`, conversationID, profileID)
	if err != nil {
		return 0, fmt.Errorf("failed to reset unread counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresChatStore) TotalUnread(ctx context.Context, profileID uuid.UUID) (int, error) {
	var total int
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN participant1_id = $1 THEN unread_count_1 ELSE unread_count_2 END), 0)
		FROM conversations
		WHERE (participant1_id = $1 OR participant2_id = $1) AND is_active
	`, profileID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum unread counters: %w", err)
	}
	return total, nil
}

var (
	ErrChatNotFound = errors.New("conversation not found")
)
