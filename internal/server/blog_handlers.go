package server

import (
	"net/url"
	"strings"

	"mtum/internal/models"
	"mtum/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Index is the explore page: latest posts from everyone.
func (s *Server) Index(c *fiber.Ctx) error {
	page, err := s.blogs.Explore(c.UserContext(), viewerID(c), parsePage(c))
	if err != nil {
		return err
	}
	return s.renderPosts(c, "Explore", "", page)
}

// Search handles GET /search?q= by redirecting to the canonical tag search URL.
func (s *Server) Search(c *fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return redirectBack(c)
	}
	return c.Redirect("/tagged/"+url.PathEscape(q), fiber.StatusFound)
}

// Tagged lists posts from every blog tagged with :keyword.
func (s *Server) Tagged(c *fiber.Ctx) error {
	keyword := c.Params("keyword")
	page, err := s.blogs.SearchAllPosts(c.UserContext(), viewerID(c), keyword, parsePage(c))
	if err != nil {
		return err
	}
	kw := service.SearchKeyword(keyword)
	return s.renderPosts(c, "Posts tagged "+kw, kw, page)
}

// Dashboard returns the handler for one of the signed-in user's dashboards.
func (s *Server) Dashboard(filter service.DashboardFilter) fiber.Handler {
	titles := map[service.DashboardFilter]string{
		service.DashboardAll:       "Dashboard",
		service.DashboardMine:      "My posts",
		service.DashboardLikes:     "Likes",
		service.DashboardFollowing: "Following",
	}
	return func(c *fiber.Ctx) error {
		page, err := s.blogs.Dashboard(c.UserContext(), viewerID(c), filter, parsePage(c))
		if err != nil {
			return err
		}
		return s.renderPosts(c, titles[filter], "", page)
	}
}

func (s *Server) renderPosts(c *fiber.Ctx, title, keyword string, page models.Page[models.Post]) error {
	return s.render(c, "posts", title, fiber.Map{
		"Heading":  title,
		"Keyword":  keyword,
		"Posts":    page,
		"PagePath": c.Path(),
	})
}

// Blog lists a user's posts.
func (s *Server) Blog(c *fiber.Ctx) error {
	bp, err := s.blogs.ListUserPosts(c.UserContext(), viewerID(c), c.Params("slug"), "", parsePage(c))
	if err != nil {
		return err
	}
	return s.renderBlog(c, bp)
}

// BlogTagged lists a user's posts with the given tag slug.
func (s *Server) BlogTagged(c *fiber.Ctx) error {
	bp, err := s.blogs.ListUserPosts(c.UserContext(), viewerID(c), c.Params("slug"), c.Params("tag"), parsePage(c))
	if err != nil {
		return err
	}
	return s.renderBlog(c, bp)
}

// RandomPost redirects to a random post of the blog.
func (s *Server) RandomPost(c *fiber.Ctx) error {
	post, err := s.blogs.RandomPost(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}
	return c.Redirect(service.PostURL(post.User.BlogSlug(), post), fiber.StatusFound)
}

// BlogSearchRedirect turns the search form's ?q= into the canonical search path.
func (s *Server) BlogSearchRedirect(c *fiber.Ctx) error {
	slug := c.Params("slug")
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return c.Redirect(backURL(c, "/blog/"+slug), fiber.StatusFound)
	}
	return c.Redirect("/blog/"+slug+"/search/"+url.PathEscape(q), fiber.StatusFound)
}

// BlogSearch lists a user's posts tagged with :keyword, ignoring case. A blank keyword
// goes back to the blog.
func (s *Server) BlogSearch(c *fiber.Ctx) error {
	slug := c.Params("slug")
	if service.SearchKeyword(c.Params("keyword")) == "" {
		return c.Redirect("/blog/"+slug, fiber.StatusFound)
	}
	bp, err := s.blogs.SearchUserPosts(c.UserContext(), viewerID(c), slug, c.Params("keyword"), parsePage(c))
	if err != nil {
		return err
	}
	return s.renderBlog(c, bp)
}

func (s *Server) renderBlog(c *fiber.Ctx, bp *service.BlogPage) error {
	title := bp.Owner.Username
	switch {
	case bp.Tag != nil:
		title += " #" + bp.Tag.Name
	case bp.Keyword != "":
		title += " search: " + bp.Keyword
	}
	return s.render(c, "blog", title, fiber.Map{
		"Blog":     bp,
		"Posts":    bp.Posts,
		"PagePath": c.Path(),
	})
}

// PostDetail shows a post with its notes.
func (s *Server) PostDetail(c *fiber.Ctx) error {
	id, err := parsePostID(c, "id")
	if err != nil {
		return err
	}
	d, err := s.blogs.PostDetail(c.UserContext(), viewerID(c), c.Params("slug"), id, c.Params("postSlug"))
	if err != nil {
		return err
	}
	title := d.Post.Title
	if title == "" {
		title = d.Owner.Username
	}
	return s.render(c, "post", title, fiber.Map{
		"Detail": d,
	})
}
