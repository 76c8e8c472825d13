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
	appErrors "github.com/uagrm-posgrado/admin-api/pkg/errors"
)

const enrollmentColumns = `e.id, e.student_id, e.course_id, e.enrolled_at, e.status, e.base_price, e.course_discount_pct, e.custom_discount_pct, e.total_payable, e.amount_paid, e.balance, e.created_by, e.updated_at`

// EnrollmentRepository manages enrollments and their requisito checklists.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs an EnrollmentRepository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollment details matching the provided filters.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := "FROM enrollments e INNER JOIN students s ON s.id = e.student_id INNER JOIN courses c ON c.id = e.course_id"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%d OR LOWER(s.registro) LIKE $%d OR LOWER(c.name) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
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

	query := fmt.Sprintf(`SELECT %s, s.full_name AS student_name, s.registro AS student_registro, c.name AS course_name
        %s ORDER BY e.enrolled_at DESC LIMIT %d OFFSET %d`, enrollmentColumns, base, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID fetches an enrollment with its requisitos.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments e WHERE e.id = $1 LIMIT 1", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment by id: %w", err)
	}
	requisitos, err := r.ListRequisitos(ctx, id)
	if err != nil {
		return nil, err
	}
	enrollment.Requisitos = requisitos
	return &enrollment, nil
}

// FindDetailByID fetches an enrollment with student/course info and requisitos.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s, s.full_name AS student_name, s.registro AS student_registro, c.name AS course_name
        FROM enrollments e
        INNER JOIN students s ON s.id = e.student_id
        INNER JOIN courses c ON c.id = e.course_id
        WHERE e.id = $1 LIMIT 1`, enrollmentColumns)
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment detail: %w", err)
	}
	requisitos, err := r.ListRequisitos(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Requisitos = requisitos
	return &detail, nil
}

// ExistsNonCancelled reports whether the student already has a live
// enrollment in the course. The partial unique index backs this check
// against concurrent creates.
func (r *EnrollmentRepository) ExistsNonCancelled(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status <> $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, models.EnrollmentCancelled); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment exists: %w", err)
	}
	return true, nil
}

// Create inserts an enrollment and its requisito rows in one transaction.
// The requisito set comes from the course templates snapshotted by the
// service; later template edits do not touch existing enrollments.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	enrollment.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create enrollment: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `INSERT INTO enrollments (id, student_id, course_id, enrolled_at, status, base_price, course_discount_pct, custom_discount_pct, total_payable, amount_paid, balance, created_by, updated_at)
        VALUES (:id, :student_id, :course_id, :enrolled_at, :status, :base_price, :course_discount_pct, :custom_discount_pct, :total_payable, :amount_paid, :balance, :created_by, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, enrollment); err != nil {
		if isUniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrConflict, "student already enrolled in this course")
		}
		return fmt.Errorf("create enrollment: %w", err)
	}

	const reqQuery = `INSERT INTO enrollment_requisitos (enrollment_id, position, description, status) VALUES ($1, $2, $3, $4)`
	for i, req := range enrollment.Requisitos {
		enrollment.Requisitos[i].EnrollmentID = enrollment.ID
		enrollment.Requisitos[i].Position = i
		if _, err := tx.ExecContext(ctx, reqQuery, enrollment.ID, i, req.Description, models.RequisitoPending); err != nil {
			return fmt.Errorf("create enrollment requisito: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create enrollment: %w", err)
	}
	return nil
}

// UpdatePricing stores a recomputed custom discount and total in one statement.
func (r *EnrollmentRepository) UpdatePricing(ctx context.Context, id string, customPct *float64, total, balance float64) error {
	const query = `UPDATE enrollments SET custom_discount_pct = $2, total_payable = $3, balance = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, customPct, total, balance, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment pricing: %w", err)
	}
	return nil
}

// UpdateStatus records a lifecycle transition. The transition itself is
// validated by the service; the expected current status guards against a
// concurrent change having won in between.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, from, to models.EnrollmentStatus) (bool, error) {
	const query = `UPDATE enrollments SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update enrollment status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update enrollment status: %w", err)
	}
	return affected == 1, nil
}

// ListRequisitos returns the ordered requisito rows of an enrollment.
func (r *EnrollmentRepository) ListRequisitos(ctx context.Context, enrollmentID string) ([]models.Requisito, error) {
	const query = `SELECT enrollment_id, position, description, status, document_url, reject_reason, reviewed_by, uploaded_at
        FROM enrollment_requisitos WHERE enrollment_id = $1 ORDER BY position`
	requisitos := []models.Requisito{}
	if err := r.db.SelectContext(ctx, &requisitos, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list requisitos: %w", err)
	}
	return requisitos, nil
}

// GetRequisito returns one requisito row by its position.
func (r *EnrollmentRepository) GetRequisito(ctx context.Context, enrollmentID string, position int) (*models.Requisito, error) {
	const query = `SELECT enrollment_id, position, description, status, document_url, reject_reason, reviewed_by, uploaded_at
        FROM enrollment_requisitos WHERE enrollment_id = $1 AND position = $2 LIMIT 1`
	var requisito models.Requisito
	if err := r.db.GetContext(ctx, &requisito, query, enrollmentID, position); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get requisito: %w", err)
	}
	return &requisito, nil
}

// SetRequisitoDocument records an uploaded document and moves the requisito
// to review, clearing any previous rejection.
func (r *EnrollmentRepository) SetRequisitoDocument(ctx context.Context, enrollmentID string, position int, url string, uploadedAt time.Time) error {
	const query = `UPDATE enrollment_requisitos SET status = $3, document_url = $4, uploaded_at = $5, reject_reason = NULL
        WHERE enrollment_id = $1 AND position = $2`
	if _, err := r.db.ExecContext(ctx, query, enrollmentID, position, models.RequisitoInReview, url, uploadedAt); err != nil {
		return fmt.Errorf("set requisito document: %w", err)
	}
	return nil
}

// SetRequisitoReview stores the reviewer's verdict on a single requisito row.
// Rows of other requisitos are untouched, so parallel reviews of different
// positions never clobber each other.
func (r *EnrollmentRepository) SetRequisitoReview(ctx context.Context, enrollmentID string, position int, status models.RequisitoStatus, reason *string, reviewedBy string) error {
	const query = `UPDATE enrollment_requisitos SET status = $3, reject_reason = $4, reviewed_by = $5
        WHERE enrollment_id = $1 AND position = $2`
	if _, err := r.db.ExecContext(ctx, query, enrollmentID, position, status, reason, reviewedBy); err != nil {
		return fmt.Errorf("set requisito review: %w", err)
	}
	return nil
}
