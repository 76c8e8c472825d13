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

// CourseRepository manages courses and their requisito templates.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses matching the provided filters.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	baseQuery := "FROM courses WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT id, name, modality, price_internal, price_external, discount_pct, active, created_at, updated_at %s ORDER BY created_at DESC LIMIT %d OFFSET %d", baseQuery, size, offset)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID fetches a course and its requisito templates.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, name, modality, price_internal, price_external, discount_pct, active, created_at, updated_at FROM courses WHERE id = $1 LIMIT 1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course by id: %w", err)
	}
	templates, err := r.ListTemplates(ctx, id)
	if err != nil {
		return nil, err
	}
	course.RequisitoTemplates = templates
	return &course, nil
}

// ListTemplates returns the ordered requisito templates of a course.
func (r *CourseRepository) ListTemplates(ctx context.Context, courseID string) ([]models.RequisitoTemplate, error) {
	const query = `SELECT course_id, position, description FROM course_requisito_templates WHERE course_id = $1 ORDER BY position`
	templates := []models.RequisitoTemplate{}
	if err := r.db.SelectContext(ctx, &templates, query, courseID); err != nil {
		return nil, fmt.Errorf("list requisito templates: %w", err)
	}
	return templates, nil
}

// Create inserts a course together with its requisito templates.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create course: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `INSERT INTO courses (id, name, modality, price_internal, price_external, discount_pct, active, created_at, updated_at)
        VALUES (:id, :name, :modality, :price_internal, :price_external, :discount_pct, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	if err := insertTemplates(ctx, tx, course.ID, course.RequisitoTemplates); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create course: %w", err)
	}
	return nil
}

// Update modifies a course and replaces its requisito templates. Existing
// enrollments keep the requisito copies they were created with.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update course: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `UPDATE courses SET name = :name, modality = :modality, price_internal = :price_internal, price_external = :price_external, discount_pct = :discount_pct, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM course_requisito_templates WHERE course_id = $1`, course.ID); err != nil {
		return fmt.Errorf("clear requisito templates: %w", err)
	}
	if err := insertTemplates(ctx, tx, course.ID, course.RequisitoTemplates); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update course: %w", err)
	}
	return nil
}

func insertTemplates(ctx context.Context, tx *sqlx.Tx, courseID string, templates []models.RequisitoTemplate) error {
	const query = `INSERT INTO course_requisito_templates (course_id, position, description) VALUES ($1, $2, $3)`
	for i, tpl := range templates {
		if _, err := tx.ExecContext(ctx, query, courseID, i, tpl.Description); err != nil {
			return fmt.Errorf("insert requisito template: %w", err)
		}
	}
	return nil
}

// Deactivate marks a course as inactive.
func (r *CourseRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE courses SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate course: %w", err)
	}
	return nil
}

// CountEnrollments returns the number of non-cancelled enrollments of a course.
func (r *CourseRepository) CountEnrollments(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status <> $2`
	var total int
	if err := r.db.GetContext(ctx, &total, query, id, models.EnrollmentCancelled); err != nil {
		return 0, fmt.Errorf("count course enrollments: %w", err)
	}
	return total, nil
}

// Roster returns the per-student financial report of a course, ordered by
// student name.
func (r *CourseRepository) Roster(ctx context.Context, courseID string) ([]models.CourseStudentReport, error) {
	const query = `SELECT s.id AS student_id, s.registro, s.full_name, s.carnet, s.phone, s.email, s.student_type,
        e.enrolled_at, e.status, e.total_payable, e.amount_paid, e.balance
        FROM enrollments e
        INNER JOIN students s ON s.id = e.student_id
        WHERE e.course_id = $1 AND e.status <> $2
        ORDER BY s.full_name`
	rows := []models.CourseStudentReport{}
	if err := r.db.SelectContext(ctx, &rows, query, courseID, models.EnrollmentCancelled); err != nil {
		return nil, fmt.Errorf("course roster: %w", err)
	}
	return rows, nil
}
