package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/pkg/auth"
	apperrors "github.com/evura/portal-api/pkg/errors"
)

func newService() *Service {
	return NewService(auth.NewJWTManager("0123456789abcdef0123456789abcdef", "evura-test", time.Hour))
}

func TestIssueAndValidate(t *testing.T) {
	s := newService()
	p := &model.Principal{UserID: uuid.New(), Role: model.RoleDoctor, Username: "house"}

	resp, err := s.Issue(p)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, 5*time.Second)

	got, err := s.Validate(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, *p, *got)
}

func TestRevokedTokenIsRejected(t *testing.T) {
	s := newService()
	resp, err := s.Issue(&model.Principal{UserID: uuid.New(), Role: model.RolePatient, Username: "alice"})
	require.NoError(t, err)

	require.NoError(t, s.Revoke(resp.AccessToken))

	_, err = s.Validate(resp.AccessToken)
	assert.ErrorIs(t, err, ErrRevokedToken)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

	// A second logout with the same token is unauthorized too.
	assert.Error(t, s.Revoke(resp.AccessToken))
}

func TestValidateRejectsGarbage(t *testing.T) {
	s := newService()
	_, err := s.Validate("not.a.token")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}
