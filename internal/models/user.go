// Package models contains data structures for the application's domain models.
package models

import "time"

// User is an account identity. Password holds a bcrypt hash.
type User struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	Username  string       `gorm:"uniqueIndex;not null;size:30" json:"username"`
	Email     string       `gorm:"uniqueIndex;not null;size:254" json:"email"`
	Password  string       `gorm:"not null" json:"-"`
	IsActive  bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Profile   *UserProfile `gorm:"foreignKey:UserID" json:"profile,omitempty"`
}

// UserProfile is the public face of a user. Slug identifies the blog in URLs.
type UserProfile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Slug      string    `gorm:"not null;uniqueIndex;size:64" json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// BlogSlug returns the profile slug, or an empty string when the profile is not loaded.
func (u *User) BlogSlug() string {
	if u == nil || u.Profile == nil {
		return ""
	}
	return u.Profile.Slug
}
