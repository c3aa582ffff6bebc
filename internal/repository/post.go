package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mtum/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostQuery selects posts for a listing. Zero fields do not filter.
type PostQuery struct {
	// AuthorID keeps posts written by this user.
	AuthorID uint
	// FollowedBy keeps posts whose author this user follows.
	FollowedBy uint
	// IncludeSelf widens FollowedBy to the follower's own posts.
	IncludeSelf bool
	// LikedBy keeps posts this user liked, ordered by like time.
	LikedBy uint
	// TagSlug keeps posts carrying a tag with this slug, ignoring case.
	TagSlug string
	// TagName keeps posts carrying a tag with this name, ignoring case.
	TagName string
	// ViewerID fills Post.Liked for the viewing user.
	ViewerID uint
	Limit    int
	Offset   int
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post, tagNames []string) error
	CreateReblog(ctx context.Context, source *models.Post, userID uint) (*models.Post, error)
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	FindReblog(ctx context.Context, userID, sourceID uint) (*models.Post, error)
	List(ctx context.Context, q PostQuery) ([]models.Post, error)
	CountByAuthor(ctx context.Context, userID uint) (int64, error)
	NthByAuthor(ctx context.Context, userID uint, n int) (*models.Post, error)
	ListReblogsOf(ctx context.Context, postID uint) ([]models.Post, error)
	Delete(ctx context.Context, id uint) error
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts the post and links it to the named tags, creating missing tags, in one transaction.
func (r *postRepository) Create(ctx context.Context, post *models.Post, tagNames []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := findOrCreateTags(tx, tagNames)
		if err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			return err
		}
		if err := linkTags(tx, post.ID, tags); err != nil {
			return err
		}
		post.Tags = tags
		return nil
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// CreateReblog copies source for userID. It returns ErrDuplicate when the user already reblogged source.
func (r *postRepository) CreateReblog(ctx context.Context, source *models.Post, userID uint) (*models.Post, error) {
	sourceID := source.ID
	reblog := &models.Post{
		UserID:   userID,
		Kind:     source.Kind,
		Title:    source.Title,
		Content:  source.Content,
		MediaURL: source.MediaURL,
		Slug:     source.Slug,
		ReblogID: &sourceID,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tags []models.Tag
		if err := tx.Model(&models.Tag{}).
			Joins("JOIN post_tags ON post_tags.tag_id = tags.id").
			Where("post_tags.post_id = ?", sourceID).
			Order("tags.id").
			Find(&tags).Error; err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(reblog).Error; err != nil {
			return err
		}
		if err := linkTags(tx, reblog.ID, tags); err != nil {
			return err
		}
		reblog.Tags = tags
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, models.NewInternalError(err)
	}
	return reblog, nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := r.withDetails(r.db.WithContext(ctx), viewerID).First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

// FindReblog returns the user's reblog of sourceID, or nil when there is none.
func (r *postRepository) FindReblog(ctx context.Context, userID, sourceID uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Where("user_id = ? AND reblog_id = ?", userID, sourceID).First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

// List returns posts newest first, or by like time when LikedBy is set.
// It fetches Limit+1 rows so callers can tell whether another page exists.
func (r *postRepository) List(ctx context.Context, q PostQuery) ([]models.Post, error) {
	limit := normalizeLimit(q.Limit)
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	db := r.withDetails(r.db.WithContext(ctx).Model(&models.Post{}), q.ViewerID)

	switch {
	case q.FollowedBy != 0 && q.IncludeSelf:
		db = db.Where("(posts.user_id = ? OR posts.user_id IN (?))", q.FollowedBy, followingSubquery(r.db, q.FollowedBy))
	case q.FollowedBy != 0:
		db = db.Where("posts.user_id IN (?)", followingSubquery(r.db, q.FollowedBy))
	}
	if q.AuthorID != 0 {
		db = db.Where("posts.user_id = ?", q.AuthorID)
	}
	if q.TagSlug != "" {
		db = db.Where("posts.id IN (?)", taggedSubquery(r.db, "slug", q.TagSlug))
	}
	if q.TagName != "" {
		db = db.Where("posts.id IN (?)", taggedSubquery(r.db, "name", q.TagName))
	}
	if q.LikedBy != 0 {
		db = db.Joins("JOIN likes AS liked_by ON liked_by.post_id = posts.id AND liked_by.user_id = ?", q.LikedBy).
			Order("liked_by.created_at DESC").Order("liked_by.id DESC")
	} else {
		db = db.Order("posts.created_at DESC").Order("posts.id DESC")
	}

	var posts []models.Post
	if err := db.Limit(limit + 1).Offset(offset).Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) CountByAuthor(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// NthByAuthor returns the user's post at zero-based position n in id order.
func (r *postRepository) NthByAuthor(ctx context.Context, userID uint, n int) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Preload("User.Profile").
		Where("user_id = ?", userID).
		Order("id").
		Offset(n).
		Limit(1).
		Find(&post).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if post.ID == 0 {
		return nil, models.NewNotFoundError("Post", fmt.Sprintf("#%d of user %d", n, userID))
	}
	return &post, nil
}

// ListReblogsOf returns the direct reblogs of postID with their authors.
func (r *postRepository) ListReblogsOf(ctx context.Context, postID uint) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Preload("User.Profile").
		Where("reblog_id = ?", postID).
		Order("created_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// Delete removes the post, its likes and tag links, and every reblog made from it.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Post{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.NewNotFoundError("Post", id)
		}
		return deletePostTrees(tx, []uint{id})
	})
	if err != nil {
		if models.IsNotFound(err) {
			return err
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) withDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "posts.*, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) + " +
		"(SELECT COUNT(*) FROM posts AS reblogs WHERE reblogs.reblog_id = posts.id) AS notes_count"

	if viewerID != 0 {
		db = db.Select(selectQuery+", EXISTS(SELECT 1 FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) AS liked", viewerID)
	} else {
		db = db.Select(selectQuery + ", false AS liked")
	}

	return db.
		Preload("User.Profile").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.id") }).
		Preload("Reblog.User.Profile")
}

func followingSubquery(db *gorm.DB, followerID uint) *gorm.DB {
	return db.Model(&models.Follow{}).Select("following_id").Where("follower_id = ?", followerID)
}

func taggedSubquery(db *gorm.DB, column, value string) *gorm.DB {
	return db.Table("post_tags").
		Select("post_tags.post_id").
		Joins("JOIN tags ON tags.id = post_tags.tag_id").
		Where("LOWER(tags."+column+") = ?", strings.ToLower(value))
}

// deletePostTrees removes roots and all reblogs descending from them, leaves first.
func deletePostTrees(tx *gorm.DB, roots []uint) error {
	if len(roots) == 0 {
		return nil
	}

	levels := [][]uint{roots}
	frontier := roots
	for len(frontier) > 0 {
		var children []uint
		if err := tx.Model(&models.Post{}).Where("reblog_id IN ?", frontier).Pluck("id", &children).Error; err != nil {
			return fmt.Errorf("collect reblogs: %w", err)
		}
		if len(children) == 0 {
			break
		}
		levels = append(levels, children)
		frontier = children
	}

	for i := len(levels) - 1; i >= 0; i-- {
		ids := levels[i]
		if err := tx.Where("post_id IN ?", ids).Delete(&models.Like{}).Error; err != nil {
			return fmt.Errorf("delete likes: %w", err)
		}
		if err := tx.Where("post_id IN ?", ids).Delete(&models.PostTag{}).Error; err != nil {
			return fmt.Errorf("delete tag links: %w", err)
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.Post{}).Error; err != nil {
			return fmt.Errorf("delete posts: %w", err)
		}
	}
	return nil
}
