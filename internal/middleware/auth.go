package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/evura/portal-api/internal/handler"
	"github.com/evura/portal-api/internal/model"
	apperrors "github.com/evura/portal-api/pkg/errors"
)

const ContextPrincipal = "principal"

type principalKey struct{}

// TokenValidator resolves a bearer token to the principal it was issued for.
type TokenValidator interface {
	Validate(token string) (*model.Principal, error)
}

type AuthMiddleware struct {
	tokens TokenValidator
}

func NewAuthMiddleware(tokens TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authenticate verifies the bearer token and attaches the principal to the
// gin context and to the request context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			handler.Error(c, apperrors.NewUnauthorized("missing or malformed authorization header", nil))
			return
		}

		principal, err := m.tokens.Validate(token)
		if err != nil {
			handler.Error(c, apperrors.NewUnauthorized("invalid or expired token", err))
			return
		}

		c.Set(ContextPrincipal, principal)
		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(c *gin.Context) (string, bool) {
	scheme, token, found := strings.Cut(c.GetHeader("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireRole lets the request through only for the given roles. It must run
// after Authenticate.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			handler.Error(c, apperrors.NewUnauthorized("authentication required", nil))
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		handler.Error(c, apperrors.NewForbidden("this action is not available to "+string(p.Role)+"s"))
	}
}

func PatientOnly() gin.HandlerFunc { return RequireRole(model.RolePatient) }

func DoctorOnly() gin.HandlerFunc { return RequireRole(model.RoleDoctor) }

func PrincipalFrom(c *gin.Context) (*model.Principal, bool) {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return nil, false
	}
	p, ok := v.(*model.Principal)
	return p, ok && p != nil
}

func WithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (*model.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*model.Principal)
	return p, ok && p != nil
}
