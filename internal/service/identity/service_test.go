package identity

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/repository/memory"
	apperrors "github.com/evura/portal-api/pkg/errors"
	"github.com/evura/portal-api/pkg/security"
)

func newService() *Service {
	store := memory.NewStore()
	return NewService(store.Patients, store.Doctors, store.Appointments, security.NewBcryptHasher(4))
}

func registerReq(username, email, password string) *model.RegisterRequest {
	return &model.RegisterRequest{Username: username, Email: email, Password: password}
}

func TestRegisterValidation(t *testing.T) {
	s := newService()
	ctx := context.Background()

	_, err := s.RegisterPatient(ctx, registerReq("ab", "a@example.com", "secret1"))
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	_, err = s.RegisterPatient(ctx, registerReq("alice", "a@example.com", "12345"))
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	// Trimmed before the length check.
	_, err = s.RegisterPatient(ctx, registerReq("  ab  ", "a@example.com", "secret1"))
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestRegisterLengthLimits(t *testing.T) {
	s := newService()
	ctx := context.Background()

	_, err := s.RegisterPatient(ctx, registerReq("alice", "a@example.com", strings.Repeat("p", 80)))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
	assert.Contains(t, err.Error(), "at most 72 bytes")

	// Multi-byte characters count once.
	_, err = s.RegisterPatient(ctx, registerReq("aé", "b@example.com", "secret1"))
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	_, err = s.RegisterPatient(ctx, registerReq(strings.Repeat("u", 81), "c@example.com", "secret1"))
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	_, err = s.RegisterPatient(ctx, registerReq("alice", strings.Repeat("e", 120)+"@example.com", "secret1"))
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	p, err := s.RegisterPatient(ctx, registerReq("zoë", "d@example.com", strings.Repeat("p", 72)))
	require.NoError(t, err)
	assert.Equal(t, "zoë", p.Username)
}

func TestRegisterConflictsArePerRole(t *testing.T) {
	s := newService()
	ctx := context.Background()

	p, err := s.RegisterPatient(ctx, registerReq(" alice ", " Alice@Example.com ", "secret1"))
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, "alice@example.com", p.Email)
	assert.NotEqual(t, "secret1", p.PasswordHash)

	_, err = s.RegisterPatient(ctx, registerReq("alice2", "alice@example.com", "secret1"))
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	_, err = s.RegisterPatient(ctx, registerReq("alice", "other@example.com", "secret1"))
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	d, err := s.RegisterDoctor(ctx, &model.RegisterDoctorRequest{
		RegisterRequest: *registerReq("alice", "alice@example.com", "secret1"),
		Hospital:        " King Faisal ",
	})
	require.NoError(t, err)
	assert.Equal(t, "King Faisal", d.Hospital)
}

func TestAuthenticate(t *testing.T) {
	s := newService()
	ctx := context.Background()

	p, err := s.RegisterPatient(ctx, registerReq("alice", "alice@example.com", "secret1"))
	require.NoError(t, err)

	principal, err := s.Authenticate(ctx, model.RolePatient, "ALICE@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, model.Principal{UserID: p.ID, Role: model.RolePatient, Username: "alice"}, *principal)

	_, err = s.Authenticate(ctx, model.RolePatient, "alice@example.com", "wrong!!")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

	// The account exists only as a patient.
	_, err = s.Authenticate(ctx, model.RoleDoctor, "alice@example.com", "secret1")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestUpdateDoctorProfileYears(t *testing.T) {
	s := newService()
	ctx := context.Background()

	d, err := s.RegisterDoctor(ctx, &model.RegisterDoctorRequest{RegisterRequest: *registerReq("house", "house@example.com", "secret1")})
	require.NoError(t, err)

	years := 12
	updated, err := s.UpdateDoctorProfile(ctx, d.ID, &model.UpdateDoctorProfileRequest{Hospital: "PPTH", YearsExperience: &years})
	require.NoError(t, err)
	assert.Equal(t, 12, updated.YearsExperience)

	negative := -3
	updated, err = s.UpdateDoctorProfile(ctx, d.ID, &model.UpdateDoctorProfileRequest{Hospital: "PPTH", YearsExperience: &negative})
	require.NoError(t, err)
	assert.Equal(t, 12, updated.YearsExperience)

	profile, err := s.DoctorProfile(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "PPTH", profile.Doctor.Hospital)
	assert.Zero(t, profile.Stats.TotalAppointments)
}

func TestUpdatePatientProfile(t *testing.T) {
	s := newService()
	ctx := context.Background()

	p, err := s.RegisterPatient(ctx, registerReq("alice", "alice@example.com", "secret1"))
	require.NoError(t, err)

	updated, err := s.UpdatePatientProfile(ctx, p.ID, &model.UpdatePatientProfileRequest{ChronicConditions: "  asthma "})
	require.NoError(t, err)
	assert.Equal(t, "asthma", updated.ChronicConditions)
	assert.True(t, updated.HasChronicConditions())

	got, err := s.Patient(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "asthma", got.ChronicConditions)
}
