package server

import (
	"strconv"

	"mtum/internal/middleware"
	"mtum/internal/models"
	"mtum/internal/service"

	"github.com/gofiber/fiber/v2"
)

// parsePage reads ?page=N and ?limit=N. Garbage values fall back to defaults.
func parsePage(c *fiber.Ctx) service.PageRequest {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	size := c.QueryInt("limit", service.DefaultPageSize)
	if size < 1 {
		size = service.DefaultPageSize
	}
	if size > service.MaxPageSize {
		size = service.MaxPageSize
	}
	return service.PageRequest{Number: page, Size: size}
}

// parsePostID reads a numeric route param. Anything unparsable is a missing post.
func parsePostID(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, models.NewNotFoundError("Post", raw)
	}
	return uint(id), nil
}

// redirectBack sends the client to the Referer, or / when there is none.
func redirectBack(c *fiber.Ctx) error {
	return c.Redirect(backURL(c, "/"), fiber.StatusFound)
}

func backURL(c *fiber.Ctx, fallback string) string {
	if ref := c.Get(fiber.HeaderReferer); ref != "" {
		return ref
	}
	return fallback
}

// viewerID is 0 for anonymous requests.
func viewerID(c *fiber.Ctx) uint {
	uid, _ := middleware.CurrentUserID(c)
	return uid
}

// render fills the layout fields shared by every page.
func (s *Server) render(c *fiber.Ctx, view, title string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	data["Title"] = title
	if _, ok := data["Viewer"]; !ok {
		data["Viewer"] = s.viewer(c)
	}
	return c.Render(view, data)
}
