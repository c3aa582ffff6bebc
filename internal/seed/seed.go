package seed

import (
	"context"
	"fmt"
	"log/slog"

	"mtum/internal/middleware"
	"mtum/internal/models"
	"mtum/internal/repository"
	"mtum/internal/service"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	Users          int
	PostsPerUser   int
	FollowsPerUser int
	LikesPerUser   int
	ReblogsPerUser int
	// MaxDays spreads post creation times over the last MaxDays days.
	MaxDays    int
	SkipBcrypt bool
	// RandSeed makes a run reproducible. Zero picks a random seed.
	RandSeed int64
}

func (o Options) withDefaults() Options {
	if o.Users <= 0 {
		o.Users = 20
	}
	if o.PostsPerUser < 0 {
		o.PostsPerUser = 0
	}
	if o.MaxDays <= 0 {
		o.MaxDays = 90
	}
	return o
}

// Result counts the rows present after a run.
type Result struct {
	Users   int64
	Posts   int64
	Follows int64
	Likes   int64
	Reblogs int64
}

// Seeder populates a database with a small social network.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	social  *service.SocialService
}

// NewSeeder returns a Seeder writing to db.
func NewSeeder(db *gorm.DB, opts Options) (*Seeder, error) {
	f, err := NewFactory(db, opts)
	if err != nil {
		return nil, err
	}
	social := service.NewSocialService(
		repository.NewPostRepository(db),
		repository.NewUserRepository(db),
		repository.NewLikeRepository(db),
		repository.NewFollowRepository(db),
		nil,
	)
	return &Seeder{db: db, factory: f, social: social}, nil
}

// ClearAll deletes every row of every persistent table, dependents first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	tables := []interface{}{
		&models.Like{}, &models.PostTag{}, &models.Follow{}, &models.Post{},
		&models.Tag{}, &models.UserProfile{}, &models.User{},
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range tables {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return fmt.Errorf("clear %T: %w", m, err)
			}
		}
		return nil
	})
}

// Run creates users and posts, then follows, likes and reblogs between them.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	opts := s.factory.opts
	middleware.Logger.Info("seeding database",
		slog.Int("users", opts.Users), slog.Int("posts_per_user", opts.PostsPerUser))

	users := make([]*models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		u, err := s.factory.CreateUser(ctx)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	var posts []*models.Post
	for _, u := range users {
		for i := 0; i < opts.PostsPerUser; i++ {
			p, err := s.factory.CreatePost(ctx, u, s.pickKind())
			if err != nil {
				return nil, err
			}
			posts = append(posts, p)
		}
	}

	for _, u := range users {
		for i := 0; i < opts.FollowsPerUser; i++ {
			target := users[s.factory.Intn(len(users))]
			if err := s.social.Follow(ctx, u.ID, target.BlogSlug()); err != nil {
				return nil, fmt.Errorf("seed follow: %w", err)
			}
		}
		if len(posts) == 0 {
			continue
		}
		for i := 0; i < opts.LikesPerUser; i++ {
			if err := s.social.Like(ctx, u.ID, posts[s.factory.Intn(len(posts))].ID); err != nil {
				return nil, fmt.Errorf("seed like: %w", err)
			}
		}
		for i := 0; i < opts.ReblogsPerUser; i++ {
			if err := s.social.Reblog(ctx, u.ID, posts[s.factory.Intn(len(posts))].ID); err != nil {
				return nil, fmt.Errorf("seed reblog: %w", err)
			}
		}
	}

	res, err := s.count(ctx)
	if err != nil {
		return nil, err
	}
	middleware.Logger.Info("seeding complete",
		slog.Int64("users", res.Users),
		slog.Int64("posts", res.Posts),
		slog.Int64("follows", res.Follows),
		slog.Int64("likes", res.Likes),
		slog.Int64("reblogs", res.Reblogs))
	return res, nil
}

// pickKind returns text 60%, photo 25% and video 15% of the time.
func (s *Seeder) pickKind() models.PostKind {
	switch n := s.factory.Intn(100); {
	case n < 60:
		return models.PostKindText
	case n < 85:
		return models.PostKindPhoto
	default:
		return models.PostKindVideo
	}
}

func (s *Seeder) count(ctx context.Context) (*Result, error) {
	db := s.db.WithContext(ctx)
	var res Result
	counts := []struct {
		dest  *int64
		model interface{}
		where string
	}{
		{&res.Users, &models.User{}, ""},
		{&res.Posts, &models.Post{}, ""},
		{&res.Follows, &models.Follow{}, ""},
		{&res.Likes, &models.Like{}, ""},
		{&res.Reblogs, &models.Post{}, "reblog_id IS NOT NULL"},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.where != "" {
			q = q.Where(c.where)
		}
		if err := q.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("count %T: %w", c.model, err)
		}
	}
	return &res, nil
}
