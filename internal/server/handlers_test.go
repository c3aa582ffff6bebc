package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"mtum/internal/models"
	"mtum/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePost(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice")
	cookie := e.login(t, "alice")

	resp := e.get(t, "/new/photo", cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), `name="media_url"`)

	resp = e.do(t, formRequest("/new/text", url.Values{
		"title":   {"Hello World"},
		"content": {"first post"},
		"tags":    {"Go, go, news"},
	}), cookie)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	var post models.Post
	require.NoError(t, e.db.Preload("Tags").First(&post).Error)
	assert.Equal(t, fmt.Sprintf("/blog/alice/post/%d/hello-world", post.ID), resp.Header.Get(fiber.HeaderLocation))
	assert.Len(t, post.Tags, 3)

	resp = e.get(t, resp.Header.Get(fiber.HeaderLocation), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Hello World")
}

func TestCreatePost_Validation(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice")
	cookie := e.login(t, "alice")

	resp := e.do(t, formRequest("/new/photo", url.Values{"media_url": {"ftp://nope"}}), cookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body(t, resp), "media_url must be an http or https URL")

	resp = e.do(t, formRequest("/new/text", url.Values{"title": {"no body"}}), cookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var count int64
	require.NoError(t, e.db.Model(&models.Post{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestNewPost_UnknownKind(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice")
	cookie := e.login(t, "alice")

	resp := e.get(t, "/new/audio", cookie)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.do(t, formRequest("/new/audio", url.Values{"content": {"x"}}), cookie)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeletePost(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice")
	bob := e.register(t, "bob")
	post := testutil.CreatePost(t, e.db, bob, "bob post")

	alice := e.login(t, "alice")
	resp := e.get(t, fmt.Sprintf("/delete/%d", post.ID), alice)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	bobCookie := e.login(t, "bob")
	req := httpGet(fmt.Sprintf("/delete/%d", post.ID), "/mine")
	resp = e.do(t, req, bobCookie)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/mine", resp.Header.Get(fiber.HeaderLocation))

	resp = e.get(t, "/delete/not-a-number", bobCookie)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLikeAndUnlike(t *testing.T) {
	e := newTestEnv(t)
	alice := e.register(t, "alice")
	bob := e.register(t, "bob")
	post := testutil.CreatePost(t, e.db, bob, "likeable")
	cookie := e.login(t, "alice")

	ref := "/blog/bob"
	for i := 0; i < 2; i++ {
		resp := e.do(t, httpGet(fmt.Sprintf("/like/%d", post.ID), ref), cookie)
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, ref, resp.Header.Get(fiber.HeaderLocation))
	}

	var count int64
	require.NoError(t, e.db.Model(&models.Like{}).Where("user_id = ? AND post_id = ?", alice.ID, post.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	resp := e.get(t, fmt.Sprintf("/unlike/%d", post.ID), cookie)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get(fiber.HeaderLocation))

	require.NoError(t, e.db.Model(&models.Like{}).Where("user_id = ?", alice.ID).Count(&count).Error)
	assert.Zero(t, count)

	resp = e.get(t, "/like/9999", cookie)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReblog(t *testing.T) {
	e := newTestEnv(t)
	alice := e.register(t, "alice")
	bob := e.register(t, "bob")
	post := testutil.CreatePost(t, e.db, bob, "worth sharing")
	cookie := e.login(t, "alice")

	for i := 0; i < 2; i++ {
		resp := e.get(t, fmt.Sprintf("/reblog/%d", post.ID), cookie)
		assert.Equal(t, http.StatusFound, resp.StatusCode)
	}

	var count int64
	require.NoError(t, e.db.Model(&models.Post{}).Where("user_id = ? AND reblog_id = ?", alice.ID, post.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	resp := e.get(t, "/blog/bob/post/"+fmt.Sprint(post.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "reblogged this")
}

func TestFollowAndUnfollow(t *testing.T) {
	e := newTestEnv(t)
	alice := e.register(t, "alice")
	bob := e.register(t, "bob")
	testutil.CreatePost(t, e.db, bob, "from bob")
	cookie := e.login(t, "alice")

	resp := e.do(t, httpGet("/follow/bob", "/blog/bob"), cookie)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/blog/bob", resp.Header.Get(fiber.HeaderLocation))

	resp = e.get(t, "/following", cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "from bob")

	resp = e.get(t, "/blog/bob", cookie)
	assert.Contains(t, body(t, resp), "/unfollow/bob")

	resp = e.get(t, "/unfollow/bob", cookie)
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	var count int64
	require.NoError(t, e.db.Model(&models.Follow{}).Where("follower_id = ?", alice.ID).Count(&count).Error)
	assert.Zero(t, count)

	resp = e.get(t, "/follow/nobody", cookie)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBlogListings(t *testing.T) {
	e := newTestEnv(t)
	bob := e.register(t, "bob")
	testutil.CreatePost(t, e.db, bob, "tagged one", testutil.WithTags("Music"))
	testutil.CreatePost(t, e.db, bob, "plain one")

	resp := e.get(t, "/blog/bob", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	page := body(t, resp)
	assert.Contains(t, page, "tagged one")
	assert.Contains(t, page, "plain one")

	resp = e.get(t, "/blog/bob/tagged/music", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	page = body(t, resp)
	assert.Contains(t, page, "tagged one")
	assert.NotContains(t, page, "plain one")

	resp = e.get(t, "/blog/bob/tagged/unknown", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.get(t, "/blog/nobody", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.get(t, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "plain one")
}

func TestBlogSearch(t *testing.T) {
	e := newTestEnv(t)
	bob := e.register(t, "bob")
	testutil.CreatePost(t, e.db, bob, "road trip", testutil.WithTags("Summer Fun"))

	resp := e.get(t, "/blog/bob/search?q=summer+fun", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/blog/bob/search/summer%20fun", resp.Header.Get(fiber.HeaderLocation))

	resp = e.get(t, "/blog/bob/search/summer%20fun", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "road trip")

	resp = e.get(t, "/blog/bob/search?q=", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/blog/bob", resp.Header.Get(fiber.HeaderLocation))

	resp = e.do(t, httpGet("/blog/bob/search?q=+", "/blog/bob/tagged/summer-fun"), nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/blog/bob/tagged/summer-fun", resp.Header.Get(fiber.HeaderLocation))

	resp = e.get(t, "/blog/bob/search/%20", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/blog/bob", resp.Header.Get(fiber.HeaderLocation))

	resp = e.get(t, "/search?q=Summer+Fun", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/tagged/Summer%20Fun", resp.Header.Get(fiber.HeaderLocation))

	resp = e.get(t, "/tagged/Summer%20Fun", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "road trip")

	// malformed escapes are shown as typed
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.URL.Opaque = "/tagged/100%zz"
	resp = e.do(t, req, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Posts tagged 100%zz")
}

func TestRandomPost(t *testing.T) {
	e := newTestEnv(t)
	bob := e.register(t, "bob")

	resp := e.get(t, "/blog/bob/random", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	post := testutil.CreatePost(t, e.db, bob, "only post")
	resp = e.get(t, "/blog/bob/random", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/blog/bob/post/%d/only-post", post.ID), resp.Header.Get(fiber.HeaderLocation))
}

func TestPostDetail_WrongBlogOrSlug(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice")
	bob := e.register(t, "bob")
	post := testutil.CreatePost(t, e.db, bob, "detail")

	resp := e.get(t, fmt.Sprintf("/blog/bob/post/%d/detail", post.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.get(t, fmt.Sprintf("/blog/alice/post/%d", post.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.get(t, fmt.Sprintf("/blog/bob/post/%d/other-slug", post.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDashboardPagination(t *testing.T) {
	e := newTestEnv(t)
	alice := e.register(t, "alice")
	for i := 0; i < 12; i++ {
		testutil.CreatePost(t, e.db, alice, fmt.Sprintf("post %02d", i))
	}
	cookie := e.login(t, "alice")

	resp := e.get(t, "/mine", cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	first := body(t, resp)
	assert.Equal(t, 10, strings.Count(first, `class="post"`))
	assert.Contains(t, first, "/mine?page=2")

	resp = e.get(t, "/mine?page=2", cookie)
	second := body(t, resp)
	assert.Equal(t, 2, strings.Count(second, `class="post"`))
	assert.Contains(t, second, "/mine?page=1")
}

func httpGet(path, referer string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if referer != "" {
		req.Header.Set(fiber.HeaderReferer, referer)
	}
	return req
}
