package repository

import (
	"context"
	"errors"
	"strings"

	"mtum/internal/models"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagRepository defines lookups over tags. Tags are created through PostRepository.Create.
type TagRepository interface {
	GetBySlug(ctx context.Context, slug string) (*models.Tag, error)
	GetByName(ctx context.Context, name string) (*models.Tag, error)
	FindOrCreate(ctx context.Context, names []string) ([]models.Tag, error)
}

type tagRepository struct {
	db *gorm.DB
}

// NewTagRepository returns a new TagRepository implementation.
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

// GetBySlug returns the oldest tag whose slug matches, ignoring case.
func (r *tagRepository) GetBySlug(ctx context.Context, s string) (*models.Tag, error) {
	return r.first(ctx, "LOWER(slug) = ?", s)
}

// GetByName returns the oldest tag whose name matches, ignoring case.
func (r *tagRepository) GetByName(ctx context.Context, name string) (*models.Tag, error) {
	return r.first(ctx, "LOWER(name) = ?", name)
}

func (r *tagRepository) first(ctx context.Context, query, value string) (*models.Tag, error) {
	var tag models.Tag
	err := r.db.WithContext(ctx).Where(query, strings.ToLower(value)).Order("id").First(&tag).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Tag", value)
		}
		return nil, models.NewInternalError(err)
	}
	return &tag, nil
}

func (r *tagRepository) FindOrCreate(ctx context.Context, names []string) ([]models.Tag, error) {
	var tags []models.Tag
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		tags, err = findOrCreateTags(tx, names)
		return err
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return tags, nil
}

// findOrCreateTags inserts missing names, skipping rows a concurrent writer created first,
// and returns the tags in the order of names.
func findOrCreateTags(tx *gorm.DB, names []string) ([]models.Tag, error) {
	if len(names) == 0 {
		return nil, nil
	}

	candidates := make([]models.Tag, 0, len(names))
	for _, name := range names {
		candidates = append(candidates, models.Tag{Name: name, Slug: slug.Make(name)})
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&candidates).Error; err != nil {
		return nil, err
	}

	var found []models.Tag
	if err := tx.Where("name IN ?", names).Find(&found).Error; err != nil {
		return nil, err
	}
	byName := make(map[string]models.Tag, len(found))
	for _, t := range found {
		byName[t.Name] = t
	}

	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		if t, ok := byName[name]; ok {
			tags = append(tags, t)
		}
	}
	return tags, nil
}

func linkTags(tx *gorm.DB, postID uint, tags []models.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	links := make([]models.PostTag, 0, len(tags))
	for _, t := range tags {
		links = append(links, models.PostTag{PostID: postID, TagID: t.ID})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
}
