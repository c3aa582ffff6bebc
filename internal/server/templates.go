package server

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"time"

	"mtum/internal/models"
	"mtum/internal/service"

	"github.com/gofiber/template/html/v2"
)

//go:embed templates
var templateFS embed.FS

// postCard is what partials/post renders: the post plus who is looking at it.
type postCard struct {
	Post   models.Post
	Viewer *models.User
}

// Own reports whether the viewer wrote this copy of the post.
func (p postCard) Own() bool {
	return p.Viewer != nil && p.Viewer.ID == p.Post.UserID
}

func newViews() (*html.Engine, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFuncMap(map[string]interface{}{
		"postURL": func(v interface{}) string {
			p := asPost(v)
			if p == nil {
				return "/"
			}
			return service.PostURL(p.User.BlogSlug(), p)
		},
		"blogURL": func(v interface{}) string {
			return "/blog/" + asUser(v).BlogSlug()
		},
		"tagURL": func(v interface{}, t models.Tag) string {
			return "/blog/" + asUser(v).BlogSlug() + "/tagged/" + url.PathEscape(t.Slug)
		},
		"pageURL": func(path string, n int) string {
			return fmt.Sprintf("%s?page=%d", path, n)
		},
		"add": func(a, b int) int { return a + b },
		"formatTime": func(t time.Time) string {
			return t.Format("Jan 2, 2006 15:04")
		},
		"card": func(v interface{}, viewer *models.User) postCard {
			card := postCard{Viewer: viewer}
			if p := asPost(v); p != nil {
				card.Post = *p
			}
			return card
		},
	})
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	return engine, nil
}

// Template values arrive both as structs and as pointers.
func asPost(v interface{}) *models.Post {
	switch p := v.(type) {
	case models.Post:
		return &p
	case *models.Post:
		return p
	}
	return nil
}

func asUser(v interface{}) *models.User {
	switch u := v.(type) {
	case models.User:
		return &u
	case *models.User:
		return u
	}
	return nil
}
