package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tenxcards/tenxcards-backend/internal/http/response"
	"github.com/tenxcards/tenxcards-backend/internal/platform/apierr"
	"github.com/tenxcards/tenxcards-backend/internal/platform/ctxutil"
	"github.com/tenxcards/tenxcards-backend/internal/platform/logger"
)

type AuthConfig struct {
	// Secret verifies HS256 signatures on platform-issued access tokens.
	Secret   string
	Audience string
}

// Claims is the subset of the auth platform's access token we rely on.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type AuthMiddleware struct {
	log    *logger.Logger
	cfg    AuthConfig
	parser *jwt.Parser
}

func NewAuthMiddleware(log *logger.Logger, cfg AuthConfig) *AuthMiddleware {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if aud := strings.TrimSpace(cfg.Audience); aud != "" {
		opts = append(opts, jwt.WithAudience(aud))
	}
	return &AuthMiddleware{
		log:    log.With("middleware", "AuthMiddleware"),
		cfg:    cfg,
		parser: jwt.NewParser(opts...),
	}
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller in the request context.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractBearer(c)
		if tokenString == "" {
			response.RespondError(c, apierr.Unauthorized("missing bearer token"))
			return
		}
		rd, err := am.parse(tokenString)
		if err != nil {
			am.log.Debug("Rejected access token", "error", err)
			response.RespondError(c, apierr.Unauthorized("invalid or expired token"))
			return
		}
		c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}

func (am *AuthMiddleware) parse(tokenString string) (*ctxutil.RequestData, error) {
	claims := &Claims{}
	tok, err := am.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(am.cfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("token not valid")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return nil, errors.New("subject is not a user id")
	}
	return &ctxutil.RequestData{
		TokenString: tokenString,
		UserID:      userID,
		Role:        claims.Role,
	}, nil
}

func extractBearer(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
