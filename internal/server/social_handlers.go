package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// postAction adapts a per-post social operation to a redirect-back handler.
func (s *Server) postAction(op func(ctx context.Context, actorID, postID uint) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parsePostID(c, "id")
		if err != nil {
			return err
		}
		if err := op(c.UserContext(), viewerID(c), id); err != nil {
			return err
		}
		return redirectBack(c)
	}
}

// blogAction adapts a per-blog social operation to a redirect-back handler.
func (s *Server) blogAction(op func(ctx context.Context, actorID uint, slug string) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := op(c.UserContext(), viewerID(c), c.Params("slug")); err != nil {
			return err
		}
		return redirectBack(c)
	}
}

// Like handles GET /like/:id.
func (s *Server) Like(c *fiber.Ctx) error { return s.postAction(s.social.Like)(c) }

// Unlike handles GET /unlike/:id.
func (s *Server) Unlike(c *fiber.Ctx) error { return s.postAction(s.social.Unlike)(c) }

// Reblog handles GET /reblog/:id.
func (s *Server) Reblog(c *fiber.Ctx) error { return s.postAction(s.social.Reblog)(c) }

// Follow handles GET /follow/:slug.
func (s *Server) Follow(c *fiber.Ctx) error { return s.blogAction(s.social.Follow)(c) }

// Unfollow handles GET /unfollow/:slug.
func (s *Server) Unfollow(c *fiber.Ctx) error { return s.blogAction(s.social.Unfollow)(c) }
