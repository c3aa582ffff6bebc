package service

import (
	"context"
	"errors"
	"testing"

	"mtum/internal/models"
	"mtum/internal/notifications"
	"mtum/internal/repository"
	"mtum/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	createWithProfileFn func(context.Context, *models.User, string) error
	getByIDFn           func(context.Context, uint) (*models.User, error)
	getByUsernameFn     func(context.Context, string) (*models.User, error)
	getBySlugFn         func(context.Context, string) (*models.User, error)
	usernameTakenFn     func(context.Context, string) (bool, error)
	emailTakenFn        func(context.Context, string) (bool, error)
	slugTakenFn         func(context.Context, string) (bool, error)
	deleteFn            func(context.Context, uint) error
}

func (s *userRepoStub) CreateWithProfile(ctx context.Context, user *models.User, slug string) error {
	return s.createWithProfileFn(ctx, user, slug)
}
func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) GetBySlug(ctx context.Context, slug string) (*models.User, error) {
	return s.getBySlugFn(ctx, slug)
}
func (s *userRepoStub) UsernameTaken(ctx context.Context, username string) (bool, error) {
	return s.usernameTakenFn(ctx, username)
}
func (s *userRepoStub) EmailTaken(ctx context.Context, email string) (bool, error) {
	return s.emailTakenFn(ctx, email)
}
func (s *userRepoStub) SlugTaken(ctx context.Context, slug string) (bool, error) {
	return s.slugTakenFn(ctx, slug)
}
func (s *userRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		createWithProfileFn: func(_ context.Context, u *models.User, slug string) error {
			u.ID = 1
			u.Profile = &models.UserProfile{UserID: 1, Slug: slug}
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Profile: &models.UserProfile{UserID: id, Slug: "author"}}, nil
		},
		getByUsernameFn: func(_ context.Context, name string) (*models.User, error) {
			return nil, models.NewNotFoundError("User", name)
		},
		getBySlugFn: func(_ context.Context, slug string) (*models.User, error) {
			return nil, models.NewNotFoundError("Blog", slug)
		},
		usernameTakenFn: func(_ context.Context, _ string) (bool, error) { return false, nil },
		emailTakenFn:    func(_ context.Context, _ string) (bool, error) { return false, nil },
		slugTakenFn:     func(_ context.Context, _ string) (bool, error) { return false, nil },
		deleteFn:        func(_ context.Context, _ uint) error { return nil },
	}
}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn        func(context.Context, *models.Post, []string) error
	createReblogFn  func(context.Context, *models.Post, uint) (*models.Post, error)
	getByIDFn       func(context.Context, uint, uint) (*models.Post, error)
	findReblogFn    func(context.Context, uint, uint) (*models.Post, error)
	listFn          func(context.Context, repository.PostQuery) ([]models.Post, error)
	countByAuthorFn func(context.Context, uint) (int64, error)
	nthByAuthorFn   func(context.Context, uint, int) (*models.Post, error)
	listReblogsOfFn func(context.Context, uint) ([]models.Post, error)
	deleteFn        func(context.Context, uint) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post, tagNames []string) error {
	return s.createFn(ctx, post, tagNames)
}
func (s *postRepoStub) CreateReblog(ctx context.Context, source *models.Post, userID uint) (*models.Post, error) {
	return s.createReblogFn(ctx, source, userID)
}
func (s *postRepoStub) GetByID(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id, viewerID)
}
func (s *postRepoStub) FindReblog(ctx context.Context, userID, sourceID uint) (*models.Post, error) {
	return s.findReblogFn(ctx, userID, sourceID)
}
func (s *postRepoStub) List(ctx context.Context, q repository.PostQuery) ([]models.Post, error) {
	return s.listFn(ctx, q)
}
func (s *postRepoStub) CountByAuthor(ctx context.Context, userID uint) (int64, error) {
	return s.countByAuthorFn(ctx, userID)
}
func (s *postRepoStub) NthByAuthor(ctx context.Context, userID uint, n int) (*models.Post, error) {
	return s.nthByAuthorFn(ctx, userID, n)
}
func (s *postRepoStub) ListReblogsOf(ctx context.Context, postID uint) ([]models.Post, error) {
	return s.listReblogsOfFn(ctx, postID)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn: func(_ context.Context, p *models.Post, _ []string) error {
			p.ID = 42
			return nil
		},
		createReblogFn:  func(_ context.Context, _ *models.Post, _ uint) (*models.Post, error) { return &models.Post{ID: 99}, nil },
		getByIDFn:       func(_ context.Context, id, _ uint) (*models.Post, error) { return &models.Post{ID: id, UserID: 1}, nil },
		findReblogFn:    func(_ context.Context, _, _ uint) (*models.Post, error) { return nil, nil },
		listFn:          func(_ context.Context, _ repository.PostQuery) ([]models.Post, error) { return nil, nil },
		countByAuthorFn: func(_ context.Context, _ uint) (int64, error) { return 0, nil },
		nthByAuthorFn:   func(_ context.Context, _ uint, _ int) (*models.Post, error) { return &models.Post{}, nil },
		listReblogsOfFn: func(_ context.Context, _ uint) ([]models.Post, error) { return nil, nil },
		deleteFn:        func(_ context.Context, _ uint) error { return nil },
	}
}

// publisherStub records published events.
type publisherStub struct {
	events []publishedEvent
	err    error
}

type publishedEvent struct {
	recipientID uint
	ev          notifications.Event
}

func (p *publisherStub) PublishUser(_ context.Context, recipientID uint, ev notifications.Event) error {
	p.events = append(p.events, publishedEvent{recipientID: recipientID, ev: ev})
	return p.err
}

// repos bundles the GORM repositories over one test database.
type repos struct {
	db      *gorm.DB
	users   repository.UserRepository
	posts   repository.PostRepository
	tags    repository.TagRepository
	likes   repository.LikeRepository
	follows repository.FollowRepository
}

func newRepos(t *testing.T) repos {
	t.Helper()
	db := testutil.NewDB(t)
	return repos{
		db:      db,
		users:   repository.NewUserRepository(db),
		posts:   repository.NewPostRepository(db),
		tags:    repository.NewTagRepository(db),
		likes:   repository.NewLikeRepository(db),
		follows: repository.NewFollowRepository(db),
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}
