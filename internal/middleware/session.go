// Package middleware provides request logging, tracing, rate limiting and session handling.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"mtum/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// SessionCookie names the cookie carrying the signed session token.
	SessionCookie = "mtum_session"

	sessionIssuer   = "mtum"
	sessionAudience = "mtum-web"
)

var errSessionRevoked = errors.New("session has been revoked")

// UserLookup resolves the session subject. It returns a NOT_FOUND AppError once the account is gone.
type UserLookup func(ctx context.Context, id uint) (*models.User, error)

// Session is a validated login session.
type Session struct {
	UserID    uint
	Username  string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SessionManager issues, validates and revokes cookie sessions.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	rdb    *redis.Client
	now    func() time.Time
}

// NewSessionManager returns a manager signing with secret. rdb may be nil, in which case
// revocation only clears the cookie.
func NewSessionManager(secret string, ttl time.Duration, secure bool, rdb *redis.Client) *SessionManager {
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
		rdb:    rdb,
		now:    time.Now,
	}
}

// Issue signs a session token for user.
func (m *SessionManager) Issue(user *models.User) (string, *Session, error) {
	if len(m.secret) == 0 {
		return "", nil, fmt.Errorf("session secret not configured")
	}

	now := m.now()
	sess := &Session{
		UserID:    user.ID,
		Username:  user.Username,
		ID:        fmt.Sprintf("%d-%s", now.Unix(), uuid.NewString()),
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(user.ID), 10),
		"username": user.Username,
		"iss":      sessionIssuer,
		"aud":      sessionAudience,
		"exp":      sess.ExpiresAt.Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      sess.ID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session: %w", err)
	}
	return signed, sess, nil
}

// Parse validates a token and checks it against the revocation list and the user's revocation cutoff.
func (m *SessionManager) Parse(ctx context.Context, tokenString string) (*Session, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(sessionIssuer),
		jwt.WithAudience(sessionAudience),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid session claims")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, err
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid session subject: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, err
	}
	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return nil, errors.New("invalid session issue time")
	}
	username, _ := claims["username"].(string)
	jti, _ := claims["jti"].(string)

	if m.rdb != nil {
		if jti != "" {
			n, err := m.rdb.Exists(ctx, blacklistKey(jti)).Result()
			if err == nil && n > 0 {
				return nil, errSessionRevoked
			}
		}
		cutoff, err := m.rdb.Get(ctx, userCutoffKey(uint(userID))).Int64()
		if err == nil && iat.Unix() <= cutoff {
			return nil, errSessionRevoked
		}
	}

	return &Session{
		UserID:    uint(userID),
		Username:  username,
		ID:        jti,
		IssuedAt:  iat.Time,
		ExpiresAt: exp.Time,
	}, nil
}

// Revoke blacklists the session id until the token would have expired.
func (m *SessionManager) Revoke(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" || m.rdb == nil {
		return nil
	}
	ttl := sess.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return nil
	}
	return m.rdb.Set(ctx, blacklistKey(sess.ID), "1", ttl).Err()
}

// RevokeUser invalidates every session issued to userID up to now. The cutoff outlives the
// longest possible session.
func (m *SessionManager) RevokeUser(ctx context.Context, userID uint) error {
	if m.rdb == nil {
		return nil
	}
	return m.rdb.Set(ctx, userCutoffKey(userID), m.now().Unix(), m.ttl).Err()
}

// SetCookie writes the session cookie.
func (m *SessionManager) SetCookie(c *fiber.Ctx, token string, sess *Session) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HTTPOnly: true,
		Secure:   m.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (m *SessionManager) ClearCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   m.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// LoadSession attaches the session user to the request when a valid cookie is present.
// Invalid or revoked cookies, and cookies whose user no longer exists, are cleared and the
// request continues anonymously. lookup may be nil to trust the signed token alone.
func (m *SessionManager) LoadSession(lookup UserLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(SessionCookie)
		if raw == "" {
			return c.Next()
		}

		sess, err := m.Parse(c.UserContext(), raw)
		if err != nil {
			m.ClearCookie(c)
			return c.Next()
		}

		if lookup != nil {
			if _, err := lookup(c.UserContext(), sess.UserID); err != nil {
				if !models.IsNotFound(err) {
					return err
				}
				m.ClearCookie(c)
				return c.Next()
			}
		}

		c.Locals(LocalUserID, sess.UserID)
		c.Locals(LocalUsername, sess.Username)
		c.Locals(LocalSession, sess)
		c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, sess.UserID))
		return c.Next()
	}
}

// AuthRequired redirects anonymous requests to the login page, preserving the original URI in next.
func AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := c.Locals(LocalUserID).(uint); ok {
			return c.Next()
		}
		return c.Redirect("/login?next="+url.QueryEscape(c.OriginalURL()), fiber.StatusFound)
	}
}

// CurrentUserID returns the session user id, if any.
func CurrentUserID(c *fiber.Ctx) (uint, bool) {
	uid, ok := c.Locals(LocalUserID).(uint)
	return uid, ok
}

// CurrentSession returns the loaded session, if any.
func CurrentSession(c *fiber.Ctx) *Session {
	sess, _ := c.Locals(LocalSession).(*Session)
	return sess
}

// SafeNext returns next when it is a local absolute path, otherwise fallback.
func SafeNext(next, fallback string) string {
	if len(next) == 0 || next[0] != '/' {
		return fallback
	}
	if len(next) > 1 && (next[1] == '/' || next[1] == '\\') {
		return fallback
	}
	return next
}

func blacklistKey(jti string) string {
	return "blacklist:" + jti
}

func userCutoffKey(userID uint) string {
	return "session_cutoff:" + strconv.FormatUint(uint64(userID), 10)
}
