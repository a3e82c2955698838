package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	MatchActive    MatchStatus = "active"
	MatchArchived  MatchStatus = "archived"
	MatchUnmatched MatchStatus = "unmatched"
)

// Match is a mutual like between two profiles. Profile1 sorts before Profile2.
type Match struct {
	ID           uuid.UUID   `json:"id" db:"id"`
	Profile1ID   uuid.UUID   `json:"profile1" db:"profile1_id"`
	Profile2ID   uuid.UUID   `json:"profile2" db:"profile2_id"`
	Status       MatchStatus `json:"status" db:"status"`
	ChatUnlocked bool        `json:"chat_unlocked" db:"chat_unlocked"`
	MatchedAt    time.Time   `json:"matched_at" db:"matched_at"`

	UnmatchedBy    *uuid.UUID `json:"unmatched_by,omitempty" db:"unmatched_by"`
	UnmatchedAt    *time.Time `json:"unmatched_at,omitempty" db:"unmatched_at"`
	ChatUnlockedAt *time.Time `json:"chat_unlocked_at,omitempty" db:"chat_unlocked_at"`
}

// Involves reports whether profileID is one side of the match.
func (m *Match) Involves(profileID uuid.UUID) bool {
	return m.Profile1ID == profileID || m.Profile2ID == profileID
}

// Other returns the side of the match that is not profileID.
func (m *Match) Other(profileID uuid.UUID) uuid.UUID {
	if m.Profile1ID == profileID {
		return m.Profile2ID
	}
	return m.Profile1ID
}

// MatchSummary is the match listing shape.
type MatchSummary struct {
	ID           uuid.UUID       `json:"id"`
	OtherProfile *ProfileSummary `json:"other_profile"`
	Status       MatchStatus     `json:"status"`
	MatchedAt    time.Time       `json:"matched_at"`
	ChatUnlocked bool            `json:"chat_unlocked"`
}

// LikeRequest is the body of a like.
type LikeRequest struct {
	ProfileID uuid.UUID `json:"profile_id" binding:"required"`
	Message   string    `json:"message" binding:"max=500"`
}

// LikeResponse reports whether the like completed a match.
type LikeResponse struct {
	Message string        `json:"message"`
	IsMatch bool          `json:"is_match"`
	Match   *MatchSummary `json:"match,omitempty"`
}

// OrderedPair returns a and b sorted so that a pair of profiles maps to one row.
func OrderedPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() < b.String() {
		return a, b
	}
	return b, a
}
