// Package seed creates demo data for development databases. Everything goes through the
// repositories and services so seeded rows obey the same invariants as real ones.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mtum/internal/models"
	"mtum/internal/repository"
	"mtum/internal/service"
	"mtum/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "password123"

// Factory builds domain entities and persists them to the database.
type Factory struct {
	faker    *gofakeit.Faker
	opts     Options
	users    repository.UserRepository
	posts    repository.PostRepository
	password string
}

// NewFactory creates a Factory bound to db.
func NewFactory(db *gorm.DB, opts Options) (*Factory, error) {
	opts = opts.withDefaults()
	f := &Factory{
		faker: gofakeit.New(opts.RandSeed),
		opts:  opts,
		users: repository.NewUserRepository(db),
		posts: repository.NewPostRepository(db),
	}

	// Password handling: allow skipping bcrypt in dev fast mode
	if opts.SkipBcrypt {
		f.password = DemoPassword
	} else {
		hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash demo password: %w", err)
		}
		f.password = string(hash)
	}
	return f, nil
}

// Intn returns a pseudo-random int in [0, n) from the factory's source.
func (f *Factory) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return f.faker.IntRange(0, n-1)
}

// CreateUser persists a user with a fake username and its blog profile.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		Username: f.username(),
		Email:    strings.ToLower(f.faker.Username()) + fmt.Sprintf("%d@example.com", f.faker.Number(1000, 9999)),
		Password: f.password,
		IsActive: true,
	}
	for _, override := range overrides {
		override(user)
	}

	if err := f.users.CreateWithProfile(ctx, user, service.BlogSlugFor(user.Username)); err != nil {
		return nil, fmt.Errorf("create user %s: %w", user.Username, err)
	}
	return user, nil
}

func (f *Factory) username() string {
	for {
		name := fmt.Sprintf("%s%d", f.faker.Username(), f.faker.Number(100, 999))
		if len(name) > validation.UsernameMax {
			name = name[len(name)-validation.UsernameMax:]
		}
		if validation.ValidateUsername(name) == nil {
			return name
		}
	}
}

// BuildPost constructs an unsaved post of kind for user with a created_at spread over MaxDays.
func (f *Factory) BuildPost(user *models.User, kind models.PostKind, overrides ...func(*models.Post)) *models.Post {
	title := strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 7)), ".")
	post := &models.Post{
		UserID: user.ID,
		Kind:   kind,
		Title:  title,
		Slug:   service.PostSlug(title),
	}

	daysBack := f.Intn(f.opts.MaxDays)
	minsBack := f.Intn(24 * 60)
	post.CreatedAt = time.Now().Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(minsBack)*time.Minute)

	switch kind {
	case models.PostKindPhoto:
		post.MediaURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", f.faker.UUID())
		post.Content = f.faker.Sentence(12)
	case models.PostKindVideo:
		youtubeIDs := []string{"dQw4w9WgXcQ", "9bZkp7q19f0", "3JZ_D3ELwOQ", "L_jWHffIx5E", "kXYiU_JCYtU"}
		post.MediaURL = "https://www.youtube.com/watch?v=" + youtubeIDs[f.Intn(len(youtubeIDs))]
		post.Content = f.faker.Sentence(12)
	default:
		post.Content = f.faker.Paragraph(1, 3, 8, "\n\n")
	}

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost persists a post built by BuildPost with one to three tags from the tag pool.
func (f *Factory) CreatePost(ctx context.Context, user *models.User, kind models.PostKind, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(user, kind, overrides...)
	if err := f.posts.Create(ctx, post, f.tags()); err != nil {
		return nil, fmt.Errorf("create post for %s: %w", user.Username, err)
	}
	return post, nil
}

var tagPool = []string{
	"art", "photography", "travel", "food", "music", "movies", "books", "gaming",
	"nature", "cats", "dogs", "design", "fashion", "science", "history", "coffee",
	"programming", "golang", "summer", "winter", "aesthetic", "vintage", "poetry", "quotes",
}

func (f *Factory) tags() []string {
	n := 1 + f.Intn(3)
	picked := make([]string, 0, n)
	for len(picked) < n {
		tag := tagPool[f.Intn(len(tagPool))]
		if f.Intn(4) == 0 {
			tag = f.faker.Hobby()
		}
		picked = append(picked, tag)
	}
	return service.ParseTags(strings.Join(picked, ","))
}
