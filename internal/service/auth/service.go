package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/pkg/auth"
	apperrors "github.com/evura/portal-api/pkg/errors"
)

var ErrRevokedToken = errors.New("token revoked")

const denylistCleanup = 10 * time.Minute

// Service issues session tokens and keeps a denylist of logged out ones.
// Revocations are held in memory until the token would have expired.
type Service struct {
	jwt     auth.JWTService
	revoked *cache.Cache
	now     func() time.Time
}

func NewService(jwt auth.JWTService) *Service {
	return &Service{
		jwt:     jwt,
		revoked: cache.New(cache.NoExpiration, denylistCleanup),
		now:     time.Now,
	}
}

func (s *Service) Issue(p *model.Principal) (*model.LoginResponse, error) {
	token, claims, err := s.jwt.GenerateAccessToken(p.UserID.String(), string(p.Role), p.Username)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return &model.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   claims.ExpiresAt.Time,
		Principal:   *p,
	}, nil
}

// Validate returns the principal carried by a live token.
func (s *Service) Validate(token string) (*model.Principal, error) {
	claims, err := s.claims(token)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	return principalFrom(claims)
}

// Revoke denies the token for the rest of its lifetime.
func (s *Service) Revoke(token string) error {
	claims, err := s.claims(token)
	if err != nil {
		return apperrors.Unauthorized(err)
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Time.Sub(s.now())
	}
	if ttl > 0 {
		s.revoked.Set(claims.ID, struct{}{}, ttl)
	}
	return nil
}

func (s *Service) claims(token string) (*auth.Claims, error) {
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, auth.ErrInvalidToken
	}
	if _, revoked := s.revoked.Get(claims.ID); revoked {
		return nil, ErrRevokedToken
	}
	return claims, nil
}

func principalFrom(c *auth.Claims) (*model.Principal, error) {
	id, err := uuid.Parse(c.UserID)
	if err != nil {
		return nil, apperrors.Unauthorized(fmt.Errorf("%w: bad subject", auth.ErrInvalidToken))
	}
	role := model.Role(c.Role)
	if !role.Valid() {
		return nil, apperrors.Unauthorized(fmt.Errorf("%w: unknown role %q", auth.ErrInvalidToken, c.Role))
	}
	return &model.Principal{UserID: id, Role: role, Username: c.Username}, nil
}
