package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uagrm-posgrado/admin-api/internal/models"
)

const studentColumns = `s.id, s.registro, s.password_hash, s.full_name, s.email, s.carnet, s.carnet_extension, s.phone, s.address, s.birth_date, s.photo_url, s.student_type, s.active, s.created_at, s.updated_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters. Filtering by course
// joins through enrollments, so "students of a course" is always derived from
// the enrollments that exist right now.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students s"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.CourseID != "" {
		base += " INNER JOIN enrollments e ON e.student_id = s.id"
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d AND e.status <> $%d", len(args)+1, len(args)+2))
		args = append(args, filter.CourseID, models.EnrollmentCancelled)
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("s.student_type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("s.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%d OR LOWER(s.registro) LIKE $%d OR LOWER(COALESCE(s.carnet, '')) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY s.created_at DESC LIMIT %d OFFSET %d", studentColumns, base, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(DISTINCT s.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students s WHERE s.id = $1 LIMIT 1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by id: %w", err)
	}
	return &student, nil
}

// FindByRegistro fetches a student by registro number.
func (r *StudentRepository) FindByRegistro(ctx context.Context, registro string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students s WHERE s.registro = $1 LIMIT 1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, registro); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by registro: %w", err)
	}
	return &student, nil
}

// ExistsByRegistro checks if a registro is taken, optionally excluding an ID.
func (r *StudentRepository) ExistsByRegistro(ctx context.Context, registro, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE registro = $1"
	args := []interface{}{registro}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check registro: %w", err)
	}
	return true, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, registro, password_hash, full_name, email, carnet, carnet_extension, phone, address, birth_date, photo_url, student_type, active, created_at, updated_at)
        VALUES (:id, :registro, :password_hash, :full_name, :email, :carnet, :carnet_extension, :phone, :address, :birth_date, :photo_url, :student_type, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET registro = :registro, full_name = :full_name, email = :email, carnet = :carnet, carnet_extension = :carnet_extension, phone = :phone, address = :address, birth_date = :birth_date, student_type = :student_type, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *StudentRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE students SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update student password: %w", err)
	}
	return nil
}

// UpdatePhotoURL stores the profile photo location.
func (r *StudentRepository) UpdatePhotoURL(ctx context.Context, id, url string) error {
	const query = `UPDATE students SET photo_url = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, url, time.Now().UTC()); err != nil {
		return fmt.Errorf("update student photo: %w", err)
	}
	return nil
}

// Deactivate marks a student as inactive.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE students SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}
