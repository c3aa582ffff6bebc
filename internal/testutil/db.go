// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mtum/internal/database"
	"mtum/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB opens a private in-memory SQLite database with foreign keys enforced and the schema migrated.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared&_foreign_keys=on", dbSeq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// NewRedis starts a miniredis server and returns a client bound to it.
func NewRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// CreateUser inserts an active user whose blog slug equals the lowercased username.
// The stored password is not a usable hash.
func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    strings.ToLower(username) + "@example.com",
		Password: "not-a-hash",
		IsActive: true,
	}
	if err := db.Omit("Profile").Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	profile := &models.UserProfile{UserID: user.ID, Slug: strings.ToLower(username)}
	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("create profile %s: %v", username, err)
	}
	user.Profile = profile
	return user
}

// PostOption customizes a fixture post.
type PostOption func(*models.Post)

// WithCreatedAt pins the post's creation time.
func WithCreatedAt(ts time.Time) PostOption {
	return func(p *models.Post) { p.CreatedAt = ts }
}

// WithTags attaches tags by name, creating them as needed.
func WithTags(names ...string) PostOption {
	return func(p *models.Post) {
		for _, n := range names {
			p.Tags = append(p.Tags, models.Tag{Name: n, Slug: strings.ToLower(n)})
		}
	}
}

// WithReblogOf marks the post as a reblog of source.
func WithReblogOf(source *models.Post) PostOption {
	return func(p *models.Post) {
		id := source.ID
		p.ReblogID = &id
		p.Kind = source.Kind
		p.Title = source.Title
		p.Content = source.Content
		p.MediaURL = source.MediaURL
		p.Slug = source.Slug
	}
}

// CreatePost inserts a text post titled title for author.
func CreatePost(t testing.TB, db *gorm.DB, author *models.User, title string, opts ...PostOption) *models.Post {
	t.Helper()
	post := &models.Post{
		UserID:  author.ID,
		Kind:    models.PostKindText,
		Title:   title,
		Content: title + " body",
		Slug:    strings.ReplaceAll(strings.ToLower(title), " ", "-"),
	}
	for _, opt := range opts {
		opt(post)
	}

	tags := post.Tags
	post.Tags = nil
	if err := db.Omit(clause.Associations).Create(post).Error; err != nil {
		t.Fatalf("create post %q: %v", title, err)
	}
	for i := range tags {
		if err := db.Where(models.Tag{Name: tags[i].Name}).Attrs(models.Tag{Slug: tags[i].Slug}).FirstOrCreate(&tags[i]).Error; err != nil {
			t.Fatalf("create tag %q: %v", tags[i].Name, err)
		}
		if err := db.Create(&models.PostTag{PostID: post.ID, TagID: tags[i].ID}).Error; err != nil {
			t.Fatalf("link tag %q: %v", tags[i].Name, err)
		}
	}
	post.Tags = tags
	return post
}

// Like inserts a like, optionally at a fixed time.
func Like(t testing.TB, db *gorm.DB, user *models.User, post *models.Post, at ...time.Time) {
	t.Helper()
	like := &models.Like{UserID: user.ID, PostID: post.ID}
	if len(at) > 0 {
		like.CreatedAt = at[0]
	}
	if err := db.Omit(clause.Associations).Create(like).Error; err != nil {
		t.Fatalf("create like: %v", err)
	}
}

// Follow inserts a follow edge.
func Follow(t testing.TB, db *gorm.DB, follower, following *models.User) {
	t.Helper()
	if err := db.Omit(clause.Associations).Create(&models.Follow{FollowerID: follower.ID, FollowingID: following.ID}).Error; err != nil {
		t.Fatalf("create follow: %v", err)
	}
}

// Count returns the number of rows in model matching the optional condition.
func Count(t testing.TB, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
