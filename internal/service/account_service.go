// Package service holds the business rules behind the HTML handlers. Every operation
// takes the acting user's id explicitly; handlers resolve it from the session.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mtum/internal/models"
	"mtum/internal/observability"
	"mtum/internal/repository"
	"mtum/internal/validation"

	"github.com/gosimple/slug"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
)

// maxSlugAttempts bounds the numeric suffixes tried for a new blog slug.
const maxSlugAttempts = 100

// AccountService registers, authenticates and deletes accounts.
type AccountService struct {
	userRepo repository.UserRepository
	hashCost int
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Username string `form:"username" validate:"required,username"`
	Email    string `form:"email" validate:"required,email,max=254"`
	Password string `form:"password" validate:"required,password"`
}

// NewAccountService returns an AccountService hashing with bcrypt.DefaultCost.
func NewAccountService(userRepo repository.UserRepository) *AccountService {
	return &AccountService{userRepo: userRepo, hashCost: bcrypt.DefaultCost}
}

// Register creates the user and its blog profile.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (user *models.User, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "AccountService", "Register")
	defer func() { observability.EndSpan(span, err) }()

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	fields := validation.FieldErrors{}
	taken, err := s.userRepo.UsernameTaken(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		fields["username"] = "Username is already taken"
	}
	taken, err = s.userRepo.EmailTaken(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		fields["email"] = "Email is already registered"
	}
	if len(fields) > 0 {
		return nil, validation.Failed(fields)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user = &models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: string(hash),
		IsActive: true,
	}

	base := BlogSlugFor(in.Username)
	for n := 1; n <= maxSlugAttempts; n++ {
		candidate := base
		if n > 1 {
			candidate = fmt.Sprintf("%s-%d", base, n)
		}
		taken, err := s.userRepo.SlugTaken(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}
		err = s.userRepo.CreateWithProfile(ctx, user, candidate)
		if errors.Is(err, repository.ErrSlugTaken) {
			// lost a race for the slug; the user row was rolled back
			user.ID = 0
			continue
		}
		if err != nil {
			return nil, err
		}
		span.SetAttributes(attribute.Int64("user.id", int64(user.ID)))
		return user, nil
	}
	return nil, models.NewInternalError(fmt.Errorf("no free blog slug for %q", in.Username))
}

// BlogSlugFor derives the base blog slug for a username.
func BlogSlugFor(username string) string {
	s := slug.Make(username)
	if s == "" {
		return "blog"
	}
	return s
}

// Authenticate returns the user when the credentials match an active account.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (user *models.User, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "AccountService", "Authenticate")
	defer func() { observability.EndSpan(span, err) }()

	user, err = s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if models.IsNotFound(err) {
			return nil, models.NewAuthenticationError()
		}
		return nil, err
	}
	if cmpErr := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); cmpErr != nil {
		return nil, models.NewAuthenticationError()
	}
	if !user.IsActive {
		return nil, models.NewAuthenticationError()
	}
	return user, nil
}

// DeleteAccount removes the actor and everything they own.
func (s *AccountService) DeleteAccount(ctx context.Context, actorID uint) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, "AccountService", "DeleteAccount",
		attribute.Int64("user.id", int64(actorID)))
	defer func() { observability.EndSpan(span, err) }()

	return s.userRepo.Delete(ctx, actorID)
}
