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

// DiscountRepository manages discounts and their student assignments.
type DiscountRepository struct {
	db *sqlx.DB
}

// NewDiscountRepository constructs a DiscountRepository.
func NewDiscountRepository(db *sqlx.DB) *DiscountRepository {
	return &DiscountRepository{db: db}
}

// List returns discounts matching the provided filters.
func (r *DiscountRepository) List(ctx context.Context, filter models.DiscountFilter) ([]models.Discount, int, error) {
	baseQuery := "FROM discounts WHERE 1=1"
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

	query := fmt.Sprintf("SELECT id, name, percentage, active, created_at, updated_at %s ORDER BY created_at DESC LIMIT %d OFFSET %d", baseQuery, size, offset)

	var discounts []models.Discount
	if err := r.db.SelectContext(ctx, &discounts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list discounts: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count discounts: %w", err)
	}
	return discounts, total, nil
}

// FindByID fetches a discount and its assigned student IDs.
func (r *DiscountRepository) FindByID(ctx context.Context, id string) (*models.Discount, error) {
	const query = `SELECT id, name, percentage, active, created_at, updated_at FROM discounts WHERE id = $1 LIMIT 1`
	var discount models.Discount
	if err := r.db.GetContext(ctx, &discount, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find discount by id: %w", err)
	}
	ids, err := r.ListStudentIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	discount.StudentIDs = ids
	return &discount, nil
}

// ListStudentIDs returns the students a discount is assigned to.
func (r *DiscountRepository) ListStudentIDs(ctx context.Context, discountID string) ([]string, error) {
	const query = `SELECT student_id FROM discount_students WHERE discount_id = $1`
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, query, discountID); err != nil {
		return nil, fmt.Errorf("list discount students: %w", err)
	}
	return ids, nil
}

// FindBestForStudent returns the highest active discount percentage assigned
// to a student, or nil when none applies.
func (r *DiscountRepository) FindBestForStudent(ctx context.Context, studentID string) (*float64, error) {
	const query = `SELECT MAX(d.percentage) FROM discounts d
        INNER JOIN discount_students ds ON ds.discount_id = d.id
        WHERE ds.student_id = $1 AND d.active = TRUE`
	var pct *float64
	if err := r.db.GetContext(ctx, &pct, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find student discount: %w", err)
	}
	return pct, nil
}

// Create inserts a discount with its student assignments.
func (r *DiscountRepository) Create(ctx context.Context, discount *models.Discount) error {
	if discount.ID == "" {
		discount.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if discount.CreatedAt.IsZero() {
		discount.CreatedAt = now
	}
	discount.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create discount: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `INSERT INTO discounts (id, name, percentage, active, created_at, updated_at) VALUES (:id, :name, :percentage, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, discount); err != nil {
		return fmt.Errorf("create discount: %w", err)
	}
	if err := insertDiscountStudents(ctx, tx, discount.ID, discount.StudentIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create discount: %w", err)
	}
	return nil
}

// Update modifies a discount and replaces its student assignments.
func (r *DiscountRepository) Update(ctx context.Context, discount *models.Discount) error {
	discount.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update discount: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `UPDATE discounts SET name = :name, percentage = :percentage, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, discount); err != nil {
		return fmt.Errorf("update discount: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM discount_students WHERE discount_id = $1`, discount.ID); err != nil {
		return fmt.Errorf("clear discount students: %w", err)
	}
	if err := insertDiscountStudents(ctx, tx, discount.ID, discount.StudentIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update discount: %w", err)
	}
	return nil
}

func insertDiscountStudents(ctx context.Context, tx *sqlx.Tx, discountID string, studentIDs []string) error {
	const query = `INSERT INTO discount_students (discount_id, student_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for _, studentID := range studentIDs {
		if _, err := tx.ExecContext(ctx, query, discountID, studentID); err != nil {
			return fmt.Errorf("assign discount student: %w", err)
		}
	}
	return nil
}

// AddStudent assigns a discount to a single student. Assigning twice is a
// no-op.
func (r *DiscountRepository) AddStudent(ctx context.Context, discountID, studentID string) error {
	const query = `INSERT INTO discount_students (discount_id, student_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, discountID, studentID); err != nil {
		return fmt.Errorf("assign discount student: %w", err)
	}
	return nil
}

// RemoveStudent revokes a discount from a single student.
func (r *DiscountRepository) RemoveStudent(ctx context.Context, discountID, studentID string) error {
	const query = `DELETE FROM discount_students WHERE discount_id = $1 AND student_id = $2`
	if _, err := r.db.ExecContext(ctx, query, discountID, studentID); err != nil {
		return fmt.Errorf("revoke discount student: %w", err)
	}
	return nil
}

// Deactivate marks a discount as inactive. Assignments are kept so the
// discount can be reactivated later.
func (r *DiscountRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE discounts SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate discount: %w", err)
	}
	return nil
}
