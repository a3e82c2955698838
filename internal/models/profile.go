package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the public persona a user is matched and chats as.
type Profile struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	City      string    `json:"city" db:"city"`
	AboutMe   string    `json:"about_me" db:"about_me"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Photo is a profile picture.
type Photo struct {
	ID           uuid.UUID `json:"id"`
	ImageURL     string    `json:"image_url"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	IsPrimary    bool      `json:"is_primary"`
	IsApproved   bool      `json:"is_approved"`
	DisplayOrder int       `json:"display_order"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// ProfileSummary is the listing shape used wherever another profile is embedded.
type ProfileSummary struct {
	ID           uuid.UUID `json:"id"`
	User         UserBasic `json:"user"`
	FullName     string    `json:"full_name"`
	City         string    `json:"city,omitempty"`
	Photos       []Photo   `json:"photos"`
	PrimaryPhoto *Photo    `json:"primary_photo"`
}

// PickPrimaryPhoto returns the photo flagged primary, else the first one.
func PickPrimaryPhoto(photos []Photo) *Photo {
	for i := range photos {
		if photos[i].IsPrimary {
			return &photos[i]
		}
	}
	if len(photos) > 0 {
		return &photos[0]
	}
	return nil
}
