package middlewares

import (
	"errors"
	"strings"
	"time"

	"virtualbank-gateway/apperrors"
	"virtualbank-gateway/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
	principalKey = "principal"
)

// Claims is our custom JWT payload: subject, granted roles and session id.
type Claims struct {
	Roles     []string `json:"roles"`
	SessionID string   `json:"sid"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller of a request.
type Principal struct {
	ID        string
	Roles     []string
	SessionID string
	// AllRoles is set when authentication is disabled.
	AllRoles bool
}

func (p Principal) HasRole(role string) bool {
	if p.AllRoles {
		return true
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// PrincipalFrom returns the principal stored by Authenticate.
func PrincipalFrom(c *fiber.Ctx) (Principal, bool) {
	p, ok := c.Locals(principalKey).(Principal)
	return p, ok
}

// Authenticate accepts either an API key (checked against bcrypt hashes) plus
// a session header, or a Bearer HS256 JWT carrying roles and a session id.
// With authentication disabled every request passes with all roles.
func Authenticate(cfg config.AuthConfig) fiber.Handler {
	apiKeyHeader := cfg.APIKeyHeader
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	sessionHeader := cfg.SessionHeader
	if sessionHeader == "" {
		sessionHeader = "X-Session-Id"
	}
	secret := []byte(cfg.JWTSecret)

	return func(c *fiber.Ctx) error {
		session := strings.TrimSpace(c.Get(sessionHeader))
		if !cfg.Enabled {
			c.Locals(principalKey, Principal{ID: "anonymous", SessionID: session, AllRoles: true})
			return c.Next()
		}

		if raw := strings.TrimSpace(c.Get(apiKeyHeader)); raw != "" {
			key, ok := matchAPIKey(cfg.APIKeys, raw)
			if !ok {
				return apperrors.New(apperrors.KindUnauthorized, "invalid API key")
			}
			if session == "" {
				return apperrors.New(apperrors.KindUnauthorized, "missing "+sessionHeader+" header")
			}
			c.Locals(principalKey, Principal{ID: key.ID, Roles: key.Roles, SessionID: session})
			return c.Next()
		}

		h := c.Get(authHeader)
		if h == "" || !strings.HasPrefix(strings.ToLower(h), strings.ToLower(bearerPrefix)) {
			return apperrors.New(apperrors.KindUnauthorized, "missing credentials")
		}
		if len(secret) == 0 {
			return apperrors.New(apperrors.KindUnauthorized, "bearer tokens are not accepted")
		}
		raw := strings.TrimSpace(h[len(bearerPrefix):])
		claims, err := ParseJWT(secret, raw)
		if err != nil {
			return apperrors.Wrap(apperrors.KindUnauthorized, "invalid or expired token", err)
		}
		sid := claims.SessionID
		if sid == "" {
			sid = session
		}
		if strings.TrimSpace(claims.Subject) == "" || sid == "" {
			return apperrors.New(apperrors.KindUnauthorized, "token missing subject or session")
		}
		c.Locals(principalKey, Principal{ID: claims.Subject, Roles: claims.Roles, SessionID: sid})
		return c.Next()
	}
}

// RequireRoles rejects callers lacking any of roles. It must run after
// Authenticate.
func RequireRoles(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := PrincipalFrom(c)
		if !ok {
			return apperrors.New(apperrors.KindUnauthorized, "unauthenticated")
		}
		for _, role := range roles {
			if !p.HasRole(role) {
				return apperrors.New(apperrors.KindForbidden, "missing role "+role)
			}
		}
		return c.Next()
	}
}

func matchAPIKey(keys []config.APIKey, presented string) (config.APIKey, bool) {
	for _, k := range keys {
		if bcrypt.CompareHashAndPassword([]byte(k.Hash), []byte(presented)) == nil {
			return k, true
		}
	}
	return config.APIKey{}, false
}

// ParseJWT validates an HS256 token and returns its claims.
func ParseJWT(secret []byte, raw string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	var claims Claims
	token, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	return &claims, nil
}

// GenerateJWT signs a new HS256 token for subject with the given roles.
func GenerateJWT(secret []byte, subject, sessionID string, roles []string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("JWT secret not configured (set JWT_SECRET_KEY or JWT_SECRET)")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := &Claims{
		Roles:     roles,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
