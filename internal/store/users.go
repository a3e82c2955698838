package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"soulconnect-chat/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserStore defines account and profile persistence.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User, profile *models.Profile) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	TouchLastActive(ctx context.Context, id uuid.UUID) error

	GetProfileSummaries(ctx context.Context, profileIDs []uuid.UUID) (map[uuid.UUID]*models.ProfileSummary, error)
	SearchProfiles(ctx context.Context, query string, exclude uuid.UUID, limit int) ([]*models.ProfileSummary, error)
	AddPhoto(ctx context.Context, profileID uuid.UUID, photo *models.Photo) error
}

// PostgresUserStore implements UserStore using PostgreSQL.
type PostgresUserStore struct {
	db *pgxpool.Pool
}

func NewPostgresUserStore(db *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

// CreateUser inserts the user and its profile in one transaction.
// IDs and timestamps are expected to be set by the caller.
func (s *PostgresUserStore) CreateUser(ctx context.Context, user *models.User, profile *models.Profile) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, email, first_name, last_name, hashed_password, last_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.Email, user.FirstName, user.LastName, user.HashedPassword, user.LastActive, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "users_email_key" {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO profiles (id, user_id, city, about_me, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, profile.ID, user.ID, profile.City, profile.AboutMe, profile.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	user.ProfileID = profile.ID
	return nil
}

const userColumns = `u.id, u.email, u.first_name, u.last_name, u.hashed_password, u.last_active, u.created_at, u.updated_at, p.id`

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.HashedPassword,
		&user.LastActive,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.ProfileID,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (s *PostgresUserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u JOIN profiles p ON p.user_id = u.id WHERE lower(u.email) = lower($1)`
	user, err := scanUser(s.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by id.
func (s *PostgresUserStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u JOIN profiles p ON p.user_id = u.id WHERE u.id = $1`
	user, err := scanUser(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

func (s *PostgresUserStore) TouchLastActive(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `UPDATE users SET last_active = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to update last_active for %s: %w", id, err)
	}
	return nil
}

const profileSummarySelect = `
	SELECT p.id, p.city, u.id, u.first_name, u.last_name,
	       COALESCE(
	           (SELECT jsonb_agg(jsonb_build_object(
	                'id', ph.id,
	                'image_url', ph.image_url,
	                'thumbnail_url', ph.thumbnail_url,
	                'is_primary', ph.is_primary,
	                'is_approved', ph.is_approved,
	                'display_order', ph.display_order,
	                'uploaded_at', ph.uploaded_at
	            ) ORDER BY ph.display_order, ph.uploaded_at)
	            FROM profile_photos ph
	            WHERE ph.profile_id = p.id AND ph.is_approved),
	           '[]'::jsonb)
	FROM profiles p
	JOIN users u ON u.id = p.user_id
`

func scanProfileSummary(row pgx.Row) (*models.ProfileSummary, error) {
	ps := &models.ProfileSummary{}
	var photos []models.Photo
	if err := row.Scan(&ps.ID, &ps.City, &ps.User.ID, &ps.User.FirstName, &ps.User.LastName, &photos); err != nil {
		return nil, err
	}
	if photos == nil {
		photos = []models.Photo{}
	}
	ps.Photos = photos
	ps.FullName = strings.TrimSpace(ps.User.FirstName + " " + ps.User.LastName)
	ps.PrimaryPhoto = models.PickPrimaryPhoto(ps.Photos)
	return ps, nil
}

// GetProfileSummaries loads listing views for the given profiles keyed by profile id.
// Unknown ids are absent from the result.
func (s *PostgresUserStore) GetProfileSummaries(ctx context.Context, profileIDs []uuid.UUID) (map[uuid.UUID]*models.ProfileSummary, error) {
	out := make(map[uuid.UUID]*models.ProfileSummary, len(profileIDs))
	if len(profileIDs) == 0 {
		return out, nil
	}
	rows, err := s.db.Query(ctx, profileSummarySelect+` WHERE p.id = ANY($1)`, profileIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query profile summaries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		ps, err := scanProfileSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile summary: %w", err)
		}
		out[ps.ID] = ps
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profile summaries: %w", err)
	}
	return out, nil
}

// SearchProfiles matches profiles by first or last name.
func (s *PostgresUserStore) SearchProfiles(ctx context.Context, query string, exclude uuid.UUID, limit int) ([]*models.ProfileSummary, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.Query(ctx, profileSummarySelect+`
		WHERE p.id <> $1 AND (lower(u.first_name) LIKE $2 OR lower(u.last_name) LIKE $2)
		ORDER BY u.first_name, u.last_name
		LIMIT $3`, exclude, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]*models.ProfileSummary, 0)
	for rows.Next() {
		ps, err := scanProfileSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile summary: %w", err)
		}
		profiles = append(profiles, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profile rows: %w", err)
	}
	return profiles, nil
}

// AddPhoto stores a photo. A new primary photo demotes the previous one.
func (s *PostgresUserStore) AddPhoto(ctx context.Context, profileID uuid.UUID, photo *models.Photo) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if photo.IsPrimary {
		if _, err := tx.Exec(ctx, `UPDATE profile_photos SET is_primary = FALSE WHERE profile_id = $1`, profileID); err != nil {
			return fmt.Errorf("failed to demote primary photo: %w", err)
		}
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO profile_photos (id, profile_id, image_url, thumbnail_url, is_primary, is_approved, display_order, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6,
		        (SELECT COALESCE(MAX(display_order) + 1, 0) FROM profile_photos WHERE profile_id = $2), $7)
		RETURNING display_order
	`, photo.ID, profileID, photo.ImageURL, photo.ThumbnailURL, photo.IsPrimary, photo.IsApproved, photo.UploadedAt).Scan(&photo.DisplayOrder)
	if err != nil {
		return fmt.Errorf("failed to insert photo: %w", err)
	}
	return tx.Commit(ctx)
}

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrProfileNotFound = errors.New("profile not found")
	ErrEmailExists     = errors.New("email already exists")
)
