package models

import (
	"fmt"
	"strings"
	"time"
)

// PostKind is the closed set of post variants.
type PostKind string

const (
	// PostKindText is a plain text post.
	PostKindText PostKind = "text"
	// PostKindPhoto is a post that embeds an image by URL.
	PostKindPhoto PostKind = "photo"
	// PostKindVideo is a post that embeds a video by URL.
	PostKindVideo PostKind = "video"
)

// ParsePostKind converts untrusted input into a PostKind.
func ParsePostKind(raw string) (PostKind, error) {
	k := PostKind(strings.ToLower(strings.TrimSpace(raw)))
	switch k {
	case PostKindText, PostKindPhoto, PostKindVideo:
		return k, nil
	}
	return "", NewValidationError(fmt.Sprintf("Unknown post kind %q", raw))
}

// HasMedia reports whether posts of this kind carry a media URL.
func (k PostKind) HasMedia() bool {
	return k == PostKindPhoto || k == PostKindVideo
}

// Post is a blog entry. A reblog is a copy owned by the reblogging user
// with ReblogID pointing at the post it was copied from.
type Post struct {
	ID       uint     `gorm:"primaryKey" json:"id"`
	UserID   uint     `gorm:"not null;index;uniqueIndex:idx_posts_user_reblog,priority:1" json:"user_id"`
	User     User     `gorm:"foreignKey:UserID" json:"user"`
	Kind     PostKind `gorm:"type:varchar(10);not null;default:'text'" json:"kind"`
	Title    string   `gorm:"size:300" json:"title"`
	Content  string   `gorm:"type:text" json:"content"`
	MediaURL string   `json:"media_url,omitempty"`
	Slug     string   `gorm:"size:300;index" json:"slug"`
	ReblogID *uint    `gorm:"index;uniqueIndex:idx_posts_user_reblog,priority:2" json:"reblog_id,omitempty"`
	Reblog   *Post    `gorm:"foreignKey:ReblogID" json:"reblog,omitempty"`
	Tags     []Tag    `gorm:"many2many:post_tags" json:"tags"`
	// NotesCount is not persisted; likes plus reblogs computed at query time
	NotesCount int `gorm:"->;-:migration" json:"notes_count"`
	// Liked indicates whether the viewing user liked this post (computed)
	Liked     bool      `gorm:"->;-:migration" json:"liked"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// IsReblog reports whether the post is a reblog copy.
func (p *Post) IsReblog() bool {
	return p.ReblogID != nil
}

// Tag labels posts. Name is unique as typed; lookups ignore case.
type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null;uniqueIndex;size:100" json:"name"`
	Slug      string    `gorm:"not null;index;size:100" json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// PostTag is the join row between posts and tags.
type PostTag struct {
	PostID uint `gorm:"primaryKey"`
	TagID  uint `gorm:"primaryKey;index"`
}

// TableName specifies the table name for GORM
func (PostTag) TableName() string {
	return "post_tags"
}
