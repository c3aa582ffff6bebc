package server

import (
	"errors"
	"net/url"

	"mtum/internal/middleware"
	"mtum/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is the single error boundary: AppErrors map to status pages and unknown errors
// render as 500. StructuredLogger records the outcome.
func (s *Server) ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case models.CodeUnauthorized:
			return c.Redirect("/login?next="+url.QueryEscape(c.OriginalURL()), fiber.StatusFound)
		case models.CodeNotFound:
			return s.renderError(c, fiber.StatusNotFound, appErr.Message)
		case models.CodeForbidden:
			return s.renderError(c, fiber.StatusForbidden, appErr.Message)
		case models.CodeValidation:
			return s.renderError(c, fiber.StatusBadRequest, appErr.Message)
		case models.CodeAuthentication:
			return s.renderError(c, fiber.StatusUnauthorized, appErr.Message)
		}
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return s.renderError(c, fe.Code, fe.Message)
	}

	return s.renderError(c, fiber.StatusInternalServerError, "Something went wrong.")
}

// renderError writes the error page. When the template itself fails, a plain text body is sent.
func (s *Server) renderError(c *fiber.Ctx, status int, message string) error {
	c.Status(status)
	err := c.Render("error", fiber.Map{
		"Title":   "Error",
		"Status":  status,
		"Message": message,
		"Viewer":  s.viewer(c),
	})
	if err != nil {
		middleware.Logger.ErrorContext(c.UserContext(), "render error page", "error", err)
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Status(status).SendString(message)
	}
	return nil
}
