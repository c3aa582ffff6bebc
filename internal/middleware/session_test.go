package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"mtum/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "session-test-secret-at-least-32-chars"

func TestSessionManager_IssueAndParse(t *testing.T) {
	m := NewSessionManager(testSecret, time.Hour, false, nil)

	token, sess, err := m.Issue(&models.User{ID: 7, Username: "alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)

	parsed, err := m.Parse(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), parsed.UserID)
	assert.Equal(t, "alice", parsed.Username)
	assert.Equal(t, sess.ID, parsed.ID)
}

func TestSessionManager_RejectsForeignAndExpiredTokens(t *testing.T) {
	m := NewSessionManager(testSecret, time.Hour, false, nil)
	other := NewSessionManager("another-secret-that-is-long-enough!!", time.Hour, false, nil)

	foreign, _, err := other.Issue(&models.User{ID: 1, Username: "bob"})
	require.NoError(t, err)
	_, err = m.Parse(context.Background(), foreign)
	assert.Error(t, err)

	token, _, err := m.Issue(&models.User{ID: 1, Username: "bob"})
	require.NoError(t, err)
	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = m.Parse(context.Background(), token)
	assert.Error(t, err)
}

func TestSessionManager_Revoke(t *testing.T) {
	mr, rdb := newTestRedis(t)
	m := NewSessionManager(testSecret, time.Hour, false, rdb)
	ctx := context.Background()

	token, sess, err := m.Issue(&models.User{ID: 3, Username: "carol"})
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, sess))
	assert.True(t, mr.Exists("blacklist:"+sess.ID))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL("blacklist:"+sess.ID).Seconds(), 5)

	_, err = m.Parse(ctx, token)
	assert.ErrorIs(t, err, errSessionRevoked)
}

func TestSessionManager_RevokeUser(t *testing.T) {
	mr, rdb := newTestRedis(t)
	m := NewSessionManager(testSecret, time.Hour, false, rdb)
	ctx := context.Background()

	first, _, err := m.Issue(&models.User{ID: 4, Username: "erin"})
	require.NoError(t, err)
	second, _, err := m.Issue(&models.User{ID: 4, Username: "erin"})
	require.NoError(t, err)
	other, _, err := m.Issue(&models.User{ID: 9, Username: "frank"})
	require.NoError(t, err)

	require.NoError(t, m.RevokeUser(ctx, 4))
	assert.True(t, mr.Exists("session_cutoff:4"))

	_, err = m.Parse(ctx, first)
	assert.ErrorIs(t, err, errSessionRevoked)
	_, err = m.Parse(ctx, second)
	assert.ErrorIs(t, err, errSessionRevoked)
	_, err = m.Parse(ctx, other)
	assert.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(time.Minute) }
	later, _, err := m.Issue(&models.User{ID: 4, Username: "erin"})
	require.NoError(t, err)
	_, err = m.Parse(ctx, later)
	assert.NoError(t, err)
}

func TestLoadSession_DropsMissingUser(t *testing.T) {
	m := NewSessionManager(testSecret, time.Hour, false, nil)
	lookup := func(_ context.Context, id uint) (*models.User, error) {
		if id == 5 {
			return &models.User{ID: 5, Username: "dave"}, nil
		}
		return nil, models.NewNotFoundError("User", id)
	}

	app := fiber.New()
	app.Use(m.LoadSession(lookup))
	app.Get("/likes", AuthRequired(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	gone, _, err := m.Issue(&models.User{ID: 6, Username: "gone"})
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/likes", nil)
	req.Header.Set("Cookie", SessionCookie+"="+gone)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?next=%2Flikes", resp.Header.Get("Location"))
	assert.Contains(t, resp.Header.Get("Set-Cookie"), SessionCookie+"=;")

	live, _, err := m.Issue(&models.User{ID: 5, Username: "dave"})
	require.NoError(t, err)
	req = httptest.NewRequest("GET", "/likes", nil)
	req.Header.Set("Cookie", SessionCookie+"="+live)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthRequired_RedirectsToLogin(t *testing.T) {
	m := NewSessionManager(testSecret, time.Hour, false, nil)

	app := fiber.New()
	app.Use(m.LoadSession(nil))
	app.Get("/likes", AuthRequired(), func(c *fiber.Ctx) error {
		uid, _ := CurrentUserID(c)
		return c.SendString(fmt.Sprintf("%s:%d", c.Locals(LocalUsername), uid))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/likes?page=2", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?next=%2Flikes%3Fpage%3D2", resp.Header.Get("Location"))

	token, _, err := m.Issue(&models.User{ID: 5, Username: "dave"})
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/likes", nil)
	req.Header.Set("Cookie", SessionCookie+"="+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "dave:5", string(body))
}

func TestLoadSession_ClearsBadCookie(t *testing.T) {
	m := NewSessionManager(testSecret, time.Hour, false, nil)

	app := fiber.New()
	app.Use(m.LoadSession(nil))
	app.Get("/", func(c *fiber.Ctx) error {
		_, ok := CurrentUserID(c)
		if ok {
			return c.SendString("user")
		}
		return c.SendString("anon")
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Cookie", SessionCookie+"=garbage")
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "anon", string(body))
	assert.Contains(t, resp.Header.Get("Set-Cookie"), SessionCookie+"=;")
}

func TestSafeNext(t *testing.T) {
	tests := []struct {
		next string
		want string
	}{
		{"/likes", "/likes"},
		{"/blog/alice?page=2", "/blog/alice?page=2"},
		{"", "/dashboard"},
		{"//evil.example", "/dashboard"},
		{"/\\evil.example", "/dashboard"},
		{"https://evil.example", "/dashboard"},
		{"likes", "/dashboard"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeNext(tt.next, "/dashboard"), tt.next)
	}
}
