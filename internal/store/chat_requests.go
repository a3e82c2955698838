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

// ChatRequestStore defines persistence for requests to unlock a match's chat.
type ChatRequestStore interface {
	// CreateChatRequest stores a pending request. A second pending request
	// between the same two profiles fails with ErrChatRequestExists.
	CreateChatRequest(ctx context.Context, req *models.ChatRequest) error
	ListPendingChatRequests(ctx context.Context, toProfileID uuid.UUID) ([]*models.ChatRequest, error)
	// RespondChatRequest settles a pending request addressed to responder.
	// Accepting it unlocks chat on the request's match.
	RespondChatRequest(ctx context.Context, requestID, responder uuid.UUID, accept bool) (*models.ChatRequest, error)
}

// PostgresChatRequestStore implements ChatRequestStore with PostgreSQL.
type PostgresChatRequestStore struct {
	db *pgxpool.Pool
}

func NewPostgresChatRequestStore(db *pgxpool.Pool) *PostgresChatRequestStore {
	return &PostgresChatRequestStore{db: db}
}

const chatRequestColumns = `id, from_profile_id, to_profile_id, match_id, message, status, created_at, responded_at`

func scanChatRequest(row pgx.Row) (*models.ChatRequest, error) {
	r := &models.ChatRequest{}
	if err := row.Scan(&r.ID, &r.FromProfileID, &r.ToProfileID, &r.MatchID, &r.Message, &r.Status, &r.CreatedAt, &r.RespondedAt); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresChatRequestStore) CreateChatRequest(ctx context.Context, req *models.ChatRequest) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO chat_requests (id, from_profile_id, to_profile_id, match_id, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', NOW())
		RETURNING status, created_at
	`, req.ID, req.FromProfileID, req.ToProfileID, req.MatchID, req.Message).Scan(&req.Status, &req.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrChatRequestExists
		}
		return fmt.Errorf("failed to create chat request: %w", err)
	}
	return nil
}

func (s *PostgresChatRequestStore) ListPendingChatRequests(ctx context.Context, toProfileID uuid.UUID) ([]*models.ChatRequest, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+chatRequestColumns+`
		FROM chat_requests
		WHERE to_profile_id = $1 AND status = 'pending'
		ORDER BY created_at DESC
	`, toProfileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat requests: %w", err)
	}
	defer rows.Close()

	requests := make([]*models.ChatRequest, 0)
	for rows.Next() {
		r, err := scanChatRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat request row: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat request rows: %w", err)
	}
	return requests, nil
}

func (s *PostgresChatRequestStore) RespondChatRequest(ctx context.Context, requestID, responder uuid.UUID, accept bool) (*models.ChatRequest, error) {
	status := models.ChatRequestDeclined
	if accept {
		status = models.ChatRequestAccepted
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	r, err := scanChatRequest(tx.QueryRow(ctx, `
		UPDATE chat_requests SET status = $3, responded_at = NOW()
		WHERE id = $1 AND to_profile_id = $2 AND status = 'pending'
		RETURNING `+chatRequestColumns, requestID, responder, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChatRequestNotFound
		}
		return nil, fmt.Errorf("failed to respond to chat request %s: %w", requestID, err)
	}

	if accept {
		if _, err := tx.Exec(ctx, `
			UPDATE matches SET chat_unlocked = TRUE, chat_unlocked_at = NOW() WHERE id = $1
		`, r.MatchID); err != nil {
			return nil, fmt.Errorf("failed to unlock chat for match %s: %w", r.MatchID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return r, nil
}

var (
	ErrChatRequestNotFound = errors.New("chat request not found")
	ErrChatRequestExists   = errors.New("chat request already sent")
)
