package server

import (
	"strings"

	"mtum/internal/middleware"
	"mtum/internal/models"
	"mtum/internal/service"
	"mtum/internal/validation"

	"github.com/gofiber/fiber/v2"
)

const loginFallback = "/dashboard"

type loginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
	Next     string `form:"next"`
}

// ShowRegister renders the sign-up form.
func (s *Server) ShowRegister(c *fiber.Ctx) error {
	return s.render(c, "register", "Sign up", fiber.Map{
		"Form":   service.RegisterInput{},
		"Errors": validation.FieldErrors{},
	})
}

// Register handles POST /register. Input errors re-render the form with field messages.
func (s *Server) Register(c *fiber.Ctx) error {
	var in service.RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return models.NewValidationError("Invalid form body")
	}

	if _, err := s.accounts.Register(c.UserContext(), in); err != nil {
		if models.ErrorCode(err) != models.CodeValidation {
			return err
		}
		fields := validation.Fields(err)
		if fields == nil {
			fields = validation.FieldErrors{"form": err.Error()}
		}
		in.Password = ""
		c.Status(fiber.StatusBadRequest)
		return s.render(c, "register", "Sign up", fiber.Map{
			"Form":   in,
			"Errors": fields,
		})
	}

	return c.Redirect("/login", fiber.StatusFound)
}

// ShowLogin renders the login form, carrying ?next= through.
func (s *Server) ShowLogin(c *fiber.Ctx) error {
	if _, ok := middleware.CurrentUserID(c); ok {
		return c.Redirect(middleware.SafeNext(c.Query("next"), loginFallback), fiber.StatusFound)
	}
	return s.render(c, "login", "Log in", fiber.Map{
		"Next": c.Query("next"),
	})
}

// Login handles POST /login.
func (s *Server) Login(c *fiber.Ctx) error {
	var form loginForm
	if err := c.BodyParser(&form); err != nil {
		return models.NewValidationError("Invalid form body")
	}
	if form.Next == "" {
		form.Next = c.Query("next")
	}

	user, err := s.accounts.Authenticate(c.UserContext(), strings.TrimSpace(form.Username), form.Password)
	if err != nil {
		if models.ErrorCode(err) != models.CodeAuthentication {
			return err
		}
		c.Status(fiber.StatusUnauthorized)
		return s.render(c, "login", "Log in", fiber.Map{
			"Next":     form.Next,
			"Username": form.Username,
			"Error":    "Invalid username or password.",
		})
	}

	token, sess, err := s.sessions.Issue(user)
	if err != nil {
		return models.NewInternalError(err)
	}
	s.sessions.SetCookie(c, token, sess)

	middleware.Logger.InfoContext(c.UserContext(), "user logged in", "user_id", user.ID)
	return c.Redirect(middleware.SafeNext(form.Next, loginFallback), fiber.StatusFound)
}

// Logout revokes the session and clears the cookie. Anonymous calls just redirect.
func (s *Server) Logout(c *fiber.Ctx) error {
	s.endSession(c)
	return c.Redirect("/", fiber.StatusFound)
}

// ForgotPassword is a static page.
func (s *Server) ForgotPassword(c *fiber.Ctx) error {
	return s.render(c, "forgot_password", "Forgot password", nil)
}

// ShowDeleteAccount asks for confirmation.
func (s *Server) ShowDeleteAccount(c *fiber.Ctx) error {
	return s.render(c, "delete_account", "Delete account", nil)
}

// DeleteAccount removes the signed-in user and everything they own, then ends all of their sessions.
func (s *Server) DeleteAccount(c *fiber.Ctx) error {
	uid, _ := middleware.CurrentUserID(c)
	if err := s.accounts.DeleteAccount(c.UserContext(), uid); err != nil {
		return err
	}
	if err := s.sessions.RevokeUser(c.UserContext(), uid); err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "failed to revoke user sessions", "error", err)
	}
	s.endSession(c)
	return c.Redirect("/", fiber.StatusFound)
}

func (s *Server) endSession(c *fiber.Ctx) {
	if sess := middleware.CurrentSession(c); sess != nil {
		if err := s.sessions.Revoke(c.UserContext(), sess); err != nil {
			middleware.Logger.WarnContext(c.UserContext(), "failed to revoke session", "error", err)
		}
	}
	s.sessions.ClearCookie(c)
}
