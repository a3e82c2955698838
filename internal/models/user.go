package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account holder.
type User struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Email          string    `json:"email" db:"email"`
	FirstName      string    `json:"first_name" db:"first_name"`
	LastName       string    `json:"last_name" db:"last_name"`
	HashedPassword string    `json:"-" db:"hashed_password"`
	LastActive     time.Time `json:"last_active" db:"last_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`

	// ProfileID is the profile owned by this user. Chat identity is the profile.
	ProfileID uuid.UUID `json:"profile_id" db:"-"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return joinName(u.FirstName, u.LastName)
}

// PublicUser is the account view returned by auth endpoints.
type PublicUser struct {
	ID         uuid.UUID `json:"id"`
	ProfileID  uuid.UUID `json:"profile_id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	FullName   string    `json:"full_name"`
	LastActive time.Time `json:"last_active"`
	CreatedAt  time.Time `json:"created_at"`
}

func (u *User) ToPublicUser() *PublicUser {
	return &PublicUser{
		ID:         u.ID,
		ProfileID:  u.ProfileID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		FullName:   u.FullName(),
		LastActive: u.LastActive,
		CreatedAt:  u.CreatedAt,
	}
}

// UserBasic is the short user block nested inside profile listings.
type UserBasic struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	IsOnline  bool      `json:"is_online"`
}

// RegisterRequest captures registration input.
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
	FirstName string `json:"first_name" binding:"required,max=150"`
	LastName  string `json:"last_name" binding:"max=150"`
}

// LoginRequest captures login input.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries a refresh token for rotation or logout.
type RefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// TokenPair is the access/refresh pair issued at login.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Message string      `json:"message"`
	User    *PublicUser `json:"user"`
	Tokens  TokenPair   `json:"tokens"`
}

// AccessResponse is returned by token refresh.
type AccessResponse struct {
	Access string `json:"access"`
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}
