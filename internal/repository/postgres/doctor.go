package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/repository"
)

type doctorRepository struct {
	BaseRepository
}

func NewDoctorRepository(base BaseRepository) repository.DoctorRepository {
	return &doctorRepository{base}
}

const doctorColumns = `id, username, email, password_hash, phone, specialization,
	license_number, hospital, years_experience, created_at`

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (` + doctorColumns + `)
		VALUES (:id, :username, :email, :password_hash, :phone, :specialization,
			:license_number, :hospital, :years_experience, :created_at)
	`
	if doctor.ID == uuid.Nil {
		doctor.ID = uuid.New()
	}
	doctor.CreatedAt = time.Now().UTC()

	_, err := r.db.NamedExecContext(ctx, query, doctor)
	return mapError("create doctor", err)
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	var doctor model.Doctor
	err := r.db.GetContext(ctx, &doctor, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id)
	if err != nil {
		return nil, mapError("get doctor", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) GetByEmail(ctx context.Context, email string) (*model.Doctor, error) {
	var doctor model.Doctor
	err := r.db.GetContext(ctx, &doctor, `SELECT `+doctorColumns+` FROM doctors WHERE email = $1`, email)
	if err != nil {
		return nil, mapError("get doctor by email", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM doctors WHERE email = $1)`, email)
	return exists, mapError("check doctor email", err)
}

func (r *doctorRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM doctors WHERE username = $1)`, username)
	return exists, mapError("check doctor username", err)
}

func (r *doctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	query := `
		UPDATE doctors
		SET phone = :phone, specialization = :specialization, hospital = :hospital,
			years_experience = :years_experience
		WHERE id = :id
	`
	res, err := r.db.NamedExecContext(ctx, query, doctor)
	if err != nil {
		return mapError("update doctor", err)
	}
	return expectRows("update doctor", res)
}

func (r *doctorRepository) List(ctx context.Context) ([]*model.Doctor, error) {
	doctors := []*model.Doctor{}
	err := r.db.SelectContext(ctx, &doctors, `SELECT `+doctorColumns+` FROM doctors ORDER BY username`)
	if err != nil {
		return nil, mapError("list doctors", err)
	}
	return doctors, nil
}
