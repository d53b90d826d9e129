package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/erp/clinicsync/internal/infrastructure/logger"
	"github.com/erp/clinicsync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
	// IngressSubjectKey holds the authenticated sender in the gin context
	IngressSubjectKey = "ingress_subject"
	// IngressScope is the scope granted to event senders and operators
	IngressScope = "events"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidScope = errors.New("token lacks the events scope")
)

// IngressClaims are the claims carried by service tokens for the event API
type IngressClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// IngressAuthConfig holds configuration for the bearer token middleware
type IngressAuthConfig struct {
	Secret           []byte
	Issuer           string
	SkipPaths        []string
	SkipPathPrefixes []string
	Logger           *zap.Logger
}

// IngressAuth authenticates event senders with HS256 service tokens.
func IngressAuth(cfg IngressAuthConfig) gin.HandlerFunc {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(c *gin.Context) {
		if skipAuth(c.Request.URL.Path, cfg) {
			c.Next()
			return
		}

		claims, err := parseBearer(parser, cfg.Secret, c.GetHeader(AuthHeaderKey))
		if err != nil {
			abortUnauthorized(c, cfg.Logger, err)
			return
		}

		c.Set(IngressSubjectKey, claims.Subject)
		logger.L(c.Request.Context()).Debug("Ingress authenticated",
			zap.String("subject", claims.Subject))
		c.Next()
	}
}

func skipAuth(path string, cfg IngressAuthConfig) bool {
	for _, p := range cfg.SkipPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range cfg.SkipPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func parseBearer(parser *jwt.Parser, secret []byte, header string) (*IngressClaims, error) {
	if !strings.HasPrefix(header, BearerPrefix) {
		return nil, ErrMissingToken
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	if raw == "" {
		return nil, ErrMissingToken
	}

	claims := &IngressClaims{}
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims.Scope != IngressScope {
		return nil, ErrInvalidScope
	}
	return claims, nil
}

func abortUnauthorized(c *gin.Context, log *zap.Logger, err error) {
	code, message := dto.ErrCodeTokenInvalid, "Invalid token"
	switch {
	case errors.Is(err, ErrMissingToken):
		code, message = dto.ErrCodeUnauthorized, "Authentication required"
	case errors.Is(err, jwt.ErrTokenExpired):
		code, message = dto.ErrCodeTokenExpired, "Token has expired"
	}

	if log != nil {
		log.Warn("Ingress authentication failed",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponseWithRequestID(code, message, c.GetString(RequestIDKey)))
}

// IssueServiceToken signs a token accepted by IngressAuth.
func IssueServiceToken(secret []byte, issuer, subject string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("signing secret is empty")
	}
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}
	now := time.Now()
	claims := IngressClaims{
		Scope: IngressScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// IngressSubject returns the authenticated sender, empty when auth is off.
func IngressSubject(c *gin.Context) string {
	return c.GetString(IngressSubjectKey)
}
