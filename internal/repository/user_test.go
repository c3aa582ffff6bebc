package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"mtum/internal/models"
	"mtum/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestUserRepository_CreateWithProfile_SQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"is_active", "id"}).AddRow(true, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "user_profiles"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	user := &models.User{Username: "alice", Email: "alice@example.com", Password: "hash", IsActive: true}
	require.NoError(t, repo.CreateWithProfile(context.Background(), user, "alice"))
	assert.Equal(t, "alice", user.BlogSlug())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID_DatabaseError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
		WithArgs(1, 1).
		WillReturnError(errors.New("connection timeout"))

	user, err := repo.GetByID(context.Background(), 1)
	assert.Error(t, err)
	assert.Equal(t, models.CodeInternal, models.ErrorCode(err))
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateWithProfile_Duplicates(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateWithProfile(ctx, &models.User{Username: "alice", Email: "a@example.com", Password: "h"}, "alice"))

	err := repo.CreateWithProfile(ctx, &models.User{Username: "alice", Email: "b@example.com", Password: "h"}, "alice-2")
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	err = repo.CreateWithProfile(ctx, &models.User{Username: "Alice_", Email: "c@example.com", Password: "h"}, "alice")
	assert.ErrorIs(t, err, ErrSlugTaken)

	// the failed transactions leave nothing behind
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.User{}, ""))
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.UserProfile{}, ""))
}

func TestUserRepository_Lookups(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "Alice")

	got, err := repo.GetBySlug(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)
	assert.Equal(t, "alice", got.BlogSlug())

	_, err = repo.GetBySlug(ctx, "nobody")
	assert.True(t, models.IsNotFound(err))

	got, err = repo.GetByUsername(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "not-a-hash", got.Password)

	_, err = repo.GetByUsername(ctx, "alice")
	assert.True(t, models.IsNotFound(err), "username lookup is exact")

	got, err = repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.BlogSlug())

	taken, err := repo.UsernameTaken(ctx, "ALICE")
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = repo.EmailTaken(ctx, "Alice@Example.com")
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = repo.SlugTaken(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestUserRepository_DeleteCascades(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")

	alicePost := testutil.CreatePost(t, db, alice, "hello", testutil.WithTags("go"))
	bobPost := testutil.CreatePost(t, db, bob, "bob post")
	bobReblog := testutil.CreatePost(t, db, bob, "hello", testutil.WithReblogOf(alicePost))
	carolReblog := testutil.CreatePost(t, db, carol, "hello", testutil.WithReblogOf(bobReblog))
	testutil.Like(t, db, bob, alicePost)
	testutil.Like(t, db, alice, bobPost)
	testutil.Like(t, db, carol, carolReblog)
	testutil.Follow(t, db, alice, bob)
	testutil.Follow(t, db, carol, alice)

	require.NoError(t, repo.Delete(ctx, alice.ID))

	assert.Zero(t, testutil.Count(t, db, &models.User{}, "id = ?", alice.ID))
	assert.Zero(t, testutil.Count(t, db, &models.UserProfile{}, "user_id = ?", alice.ID))
	assert.Zero(t, testutil.Count(t, db, &models.Like{}, "user_id = ?", alice.ID))
	assert.Zero(t, testutil.Count(t, db, &models.Follow{}, "follower_id = ? OR following_id = ?", alice.ID, alice.ID))
	assert.Zero(t, testutil.Count(t, db, &models.Post{}, "id IN ?", []uint{alicePost.ID, bobReblog.ID, carolReblog.ID}))
	assert.Zero(t, testutil.Count(t, db, &models.PostTag{}, "post_id = ?", alicePost.ID))
	assert.Zero(t, testutil.Count(t, db, &models.Like{}, ""))

	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Post{}, "id = ?", bobPost.ID))
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Tag{}, "name = ?", "go"), "tags outlive posts")

	assert.True(t, models.IsNotFound(repo.Delete(ctx, alice.ID)))
}
