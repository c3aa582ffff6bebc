package server

import (
	"mtum/internal/middleware"
	"mtum/internal/models"
	"mtum/internal/service"
	"mtum/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// routeKind parses the :kind param. An unknown kind is a missing page, not a bad request.
func routeKind(c *fiber.Ctx) (models.PostKind, error) {
	kind, err := models.ParsePostKind(c.Params("kind"))
	if err != nil {
		return "", models.NewNotFoundError("Page", c.Path())
	}
	return kind, nil
}

// ShowNewPost renders the form for the requested post kind.
func (s *Server) ShowNewPost(c *fiber.Ctx) error {
	kind, err := routeKind(c)
	if err != nil {
		return err
	}
	return s.render(c, "new_post", "New "+string(kind)+" post", fiber.Map{
		"Kind":   kind,
		"Form":   service.CreatePostInput{Kind: kind},
		"Errors": validation.FieldErrors{},
	})
}

// CreatePost handles POST /new/:kind and redirects to the new post.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	kind, err := routeKind(c)
	if err != nil {
		return err
	}

	var in service.CreatePostInput
	if err := c.BodyParser(&in); err != nil {
		return models.NewValidationError("Invalid form body")
	}
	in.AuthorID, _ = middleware.CurrentUserID(c)
	in.Kind = kind

	_, target, err := s.posts.CreatePost(c.UserContext(), in)
	if err != nil {
		if models.ErrorCode(err) != models.CodeValidation {
			return err
		}
		fields := validation.Fields(err)
		if fields == nil {
			fields = validation.FieldErrors{"form": err.Error()}
		}
		c.Status(fiber.StatusBadRequest)
		return s.render(c, "new_post", "New "+string(kind)+" post", fiber.Map{
			"Kind":   kind,
			"Form":   in,
			"Errors": fields,
		})
	}

	return c.Redirect(target, fiber.StatusFound)
}

// DeletePost handles GET /delete/:id. Only the author may delete.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parsePostID(c, "id")
	if err != nil {
		return err
	}
	if err := s.posts.DeletePost(c.UserContext(), viewerID(c), id); err != nil {
		return err
	}
	return redirectBack(c)
}
