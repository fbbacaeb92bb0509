package identity

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/repository"
	apperrors "github.com/evura/portal-api/pkg/errors"
	"github.com/evura/portal-api/pkg/security"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 80
	maxEmailLen    = 120
)

// accounts is the per-role view of the identity tables used by Register.
type accounts interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
}

type Service struct {
	patients     repository.PatientRepository
	doctors      repository.DoctorRepository
	appointments repository.AppointmentRepository
	hasher       security.PasswordHasher
}

func NewService(
	patients repository.PatientRepository,
	doctors repository.DoctorRepository,
	appointments repository.AppointmentRepository,
	hasher security.PasswordHasher,
) *Service {
	return &Service{
		patients:     patients,
		doctors:      doctors,
		appointments: appointments,
		hasher:       hasher,
	}
}

func (s *Service) RegisterPatient(ctx context.Context, req *model.RegisterRequest) (*model.Patient, error) {
	hash, err := s.prepare(ctx, s.patients, req)
	if err != nil {
		return nil, err
	}

	patient := &model.Patient{Username: req.Username, Email: req.Email, PasswordHash: hash}
	if err := s.patients.Create(ctx, patient); err != nil {
		return nil, registrationError(err)
	}
	return patient, nil
}

func (s *Service) RegisterDoctor(ctx context.Context, req *model.RegisterDoctorRequest) (*model.Doctor, error) {
	hash, err := s.prepare(ctx, s.doctors, &req.RegisterRequest)
	if err != nil {
		return nil, err
	}

	doctor := &model.Doctor{
		Username:       req.Username,
		Email:          req.Email,
		PasswordHash:   hash,
		Specialization: strings.TrimSpace(req.Specialization),
		LicenseNumber:  strings.TrimSpace(req.LicenseNumber),
		Hospital:       strings.TrimSpace(req.Hospital),
	}
	if err := s.doctors.Create(ctx, doctor); err != nil {
		return nil, registrationError(err)
	}
	return doctor, nil
}

// prepare validates the registration against one role's table and returns
// the password hash.
func (s *Service) prepare(ctx context.Context, repo accounts, req *model.RegisterRequest) (string, error) {
	req.Normalize()
	switch n := utf8.RuneCountInString(req.Username); {
	case n < minUsernameLen:
		return "", apperrors.NewValidation("username must be at least 3 characters")
	case n > maxUsernameLen:
		return "", apperrors.NewValidation("username must be at most 80 characters")
	}
	if utf8.RuneCountInString(req.Email) > maxEmailLen {
		return "", apperrors.NewValidation("email must be at most 120 characters")
	}
	if utf8.RuneCountInString(req.Password) < security.MinPasswordLen {
		return "", apperrors.NewValidation("password must be at least 6 characters")
	}
	// bcrypt counts bytes.
	if len(req.Password) > security.MaxPasswordBytes {
		return "", apperrors.NewValidation("password must be at most 72 bytes")
	}

	exists, err := repo.EmailExists(ctx, req.Email)
	if err != nil {
		return "", apperrors.NewStorage("check email", err)
	}
	if exists {
		return "", apperrors.NewConflict("email already registered")
	}
	exists, err = repo.UsernameExists(ctx, req.Username)
	if err != nil {
		return "", apperrors.NewStorage("check username", err)
	}
	if exists {
		return "", apperrors.NewConflict("username already taken")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return "", apperrors.NewInternal(err)
	}
	return hash, nil
}

func registrationError(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return apperrors.NewConflict("email or username already registered")
	}
	return apperrors.NewStorage("create account", err)
}

var errInvalidCredentials = apperrors.NewUnauthorized("invalid email or password", nil)

// Authenticate verifies credentials against the role's table.
func (s *Service) Authenticate(ctx context.Context, role model.Role, email, password string) (*model.Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var (
		id       uuid.UUID
		username string
		hash     string
	)
	switch role {
	case model.RolePatient:
		p, err := s.patients.GetByEmail(ctx, email)
		if err != nil {
			return nil, credentialError(err)
		}
		id, username, hash = p.ID, p.Username, p.PasswordHash
	case model.RoleDoctor:
		d, err := s.doctors.GetByEmail(ctx, email)
		if err != nil {
			return nil, credentialError(err)
		}
		id, username, hash = d.ID, d.Username, d.PasswordHash
	default:
		return nil, apperrors.NewValidation("role must be patient or doctor")
	}

	if err := s.hasher.Compare(hash, password); err != nil {
		return nil, errInvalidCredentials
	}
	return &model.Principal{UserID: id, Role: role, Username: username}, nil
}

func credentialError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errInvalidCredentials
	}
	return apperrors.NewStorage("look up account", err)
}

func (s *Service) Patient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	p, err := s.patients.Get(ctx, id)
	if err != nil {
		return nil, lookupError("patient", err)
	}
	return p, nil
}

func (s *Service) Doctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	d, err := s.doctors.Get(ctx, id)
	if err != nil {
		return nil, lookupError("doctor", err)
	}
	return d, nil
}

func (s *Service) UpdatePatientProfile(ctx context.Context, id uuid.UUID, req *model.UpdatePatientProfileRequest) (*model.Patient, error) {
	p, err := s.Patient(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Apply(p)
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, lookupError("patient", err)
	}
	return p, nil
}

func (s *Service) UpdateDoctorProfile(ctx context.Context, id uuid.UUID, req *model.UpdateDoctorProfileRequest) (*model.Doctor, error) {
	d, err := s.Doctor(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Apply(d)
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, lookupError("doctor", err)
	}
	return d, nil
}

func (s *Service) ListDoctors(ctx context.Context) ([]*model.Doctor, error) {
	doctors, err := s.doctors.List(ctx)
	if err != nil {
		return nil, apperrors.NewStorage("list doctors", err)
	}
	return doctors, nil
}

// DoctorProfile returns the doctor with appointment statistics.
func (s *Service) DoctorProfile(ctx context.Context, id uuid.UUID) (*model.DoctorProfile, error) {
	d, err := s.Doctor(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.appointments.DoctorStats(ctx, id)
	if err != nil {
		return nil, apperrors.NewStorage("load doctor stats", err)
	}
	return &model.DoctorProfile{Doctor: d, Stats: *stats}, nil
}

// DoctorPatients lists the distinct patients who booked with the doctor.
func (s *Service) DoctorPatients(ctx context.Context, doctorID uuid.UUID) ([]*model.Patient, error) {
	patients, err := s.appointments.PatientsOfDoctor(ctx, doctorID)
	if err != nil {
		return nil, apperrors.NewStorage("list doctor patients", err)
	}
	return patients, nil
}

func lookupError(resource string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, err)
	}
	return apperrors.NewStorage("load "+resource, err)
}
