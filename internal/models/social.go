package models

import "time"

// Like represents a user's like on a post.
// The combination of UserID and PostID must be unique.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_post;index" json:"post_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user"`
	Post Post `gorm:"foreignKey:PostID" json:"-"`
}

// Follow is a directed edge: Follower reads Following's posts.
type Follow struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FollowerID  uint      `gorm:"not null;uniqueIndex:idx_follows_pair" json:"follower_id"`
	FollowingID uint      `gorm:"not null;uniqueIndex:idx_follows_pair;index" json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`

	// Relationships
	Follower  User `gorm:"foreignKey:FollowerID" json:"follower,omitempty"`
	Following User `gorm:"foreignKey:FollowingID" json:"following,omitempty"`
}

// TableName specifies the table name for GORM
func (Follow) TableName() string {
	return "follows"
}

// NoteKind distinguishes the entries of a post's notes.
type NoteKind string

const (
	// NoteKindLike is a like on the post.
	NoteKindLike NoteKind = "like"
	// NoteKindReblog is a reblog of the post.
	NoteKindReblog NoteKind = "reblog"
)

// Note is one entry of a post's activity. For reblogs PostID is the reblog copy.
type Note struct {
	Kind      NoteKind  `json:"kind"`
	User      User      `json:"user"`
	PostID    uint      `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}
