package store

import (
	"context"
	"fmt"
	"slices"
	"unicode/utf8"

	"soulconnect-chat/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// previewLength caps the denormalized last_message copy on a conversation.
const previewLength = 100

// MessageStore defines persistence operations for messages.
type MessageStore interface {
	// CreateMessage stores msg and updates the conversation preview and the
	// recipient's unread counter in the same transaction.
	CreateMessage(ctx context.Context, msg *models.Message) error
	// ListMessages returns messages in chronological order. limit <= 0 returns all.
	ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.Message, error)
}

// PostgresMessageStore implements MessageStore with PostgreSQL.
type PostgresMessageStore struct {
	db *pgxpool.Pool
}

func NewPostgresMessageStore(db *pgxpool.Pool) *PostgresMessageStore {
	return &PostgresMessageStore{db: db}
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var msg models.Message
	var first, last string
	err := row.Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&msg.Type,
		&msg.Content,
		&msg.Image,
		&msg.IsRead,
		&msg.ReadAt,
		&msg.CreatedAt,
		&first,
		&last,
	)
	if err != nil {
		return nil, err
	}
	msg.SenderName = first
	if last != "" {
		msg.SenderName += " " + last
	}
	return &msg, nil
}

func (s *PostgresMessageStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, message_type, content, image_url, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
	`, msg.ID, msg.ConversationID, msg.SenderID, msg.Type, msg.Content, msg.Image, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE conversations SET
			last_message = $2,
			last_message_at = $3,
			last_message_by = $4,
			unread_count_1 = CASE WHEN participant1_id <> $4 THEN unread_count_1 + 1 ELSE unread_count_1 END,
			unread_count_2 = CASE WHEN participant2_id <> $4 THEN unread_count_2 + 1 ELSE unread_count_2 END,
			updated_at = NOW()
		WHERE id = $1
	`, msg.ConversationID, Preview(msg), msg.CreatedAt, msg.SenderID)
	if err != nil {
		return fmt.Errorf("failed to update conversation preview: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrChatNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresMessageStore) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.Message, error) {
	query := `
		SELECT m.id, m.conversation_id, m.sender_id, m.message_type, m.content, m.image_url,
		       m.is_read, m.read_at, m.created_at, u.first_name, u.last_name
		FROM messages m
		JOIN profiles p ON p.id = m.sender_id
		JOIN users u ON u.id = p.user_id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at DESC, m.id DESC
	`
	args := []any{conversationID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*models.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	slices.Reverse(messages)
	return messages, nil
}

// Preview is the text stored as a conversation's last_message.
func Preview(msg *models.Message) string {
	if msg.Type == models.MessageImage {
		return "[image]"
	}
	if utf8.RuneCountInString(msg.Content) <= previewLength {
		return msg.Content
	}
	return string([]rune(msg.Content)[:previewLength])
}
