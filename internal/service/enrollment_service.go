package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uagrm-posgrado/admin-api/internal/models"
	appErrors "github.com/uagrm-posgrado/admin-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsNonCancelled(ctx context.Context, studentID, courseID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdatePricing(ctx context.Context, id string, customPct *float64, total, balance float64) error
	UpdateStatus(ctx context.Context, id string, from, to models.EnrollmentStatus) (bool, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type studentDiscountReader interface {
	FindBestForStudent(ctx context.Context, studentID string) (*float64, error)
}

// CreateEnrollmentRequest describes enrollment creation payload.
type CreateEnrollmentRequest struct {
	StudentID         string   `json:"estudiante_id" validate:"required"`
	CourseID          string   `json:"curso_id" validate:"required"`
	CustomDiscountPct *float64 `json:"descuento_personalizado" validate:"omitempty,gte=0,lte=100"`
}

// UpdateEnrollmentDiscountRequest sets or clears the custom discount.
type UpdateEnrollmentDiscountRequest struct {
	CustomDiscountPct *float64 `json:"descuento_personalizado" validate:"omitempty,gte=0,lte=100"`
}

// ChangeEnrollmentStatusRequest moves an enrollment through its lifecycle.
type ChangeEnrollmentStatusRequest struct {
	Status models.EnrollmentStatus `json:"estado" validate:"required"`
}

// EnrollmentService orchestrates enrollment workflows: creation with price
// snapshotting, discount updates and lifecycle transitions.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentReader
	courses   courseReader
	discounts studentDiscountReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, students studentReader, courses courseReader, discounts studentDiscountReader, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, students: students, courses: courses, discounts: discounts, validator: validate, logger: logger}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.PageMeta, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, models.NewPageMeta(filter.Page, filter.PageSize, total), nil
}

// ListByStudent returns the enrollments of one student.
func (s *EnrollmentService) ListByStudent(ctx context.Context, studentID string, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.PageMeta, error) {
	filter.StudentID = studentID
	return s.List(ctx, filter)
}

// ListByCourse returns the enrollments of one course.
func (s *EnrollmentService) ListByCourse(ctx context.Context, courseID string, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.PageMeta, error) {
	filter.CourseID = courseID
	return s.List(ctx, filter)
}

// Get returns one enrollment with its requisitos and joined names.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// Create registers a student in a course. Base price and course discount are
// snapshotted from the course at this moment. An explicit custom discount in
// the payload wins; otherwise, if the student has an active assigned
// discount, its percentage is seeded as the custom discount. The
// course's requisito templates are copied into the enrollment checklist.
func (s *EnrollmentService) Create(ctx context.Context, req CreateEnrollmentRequest, createdBy string) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "student inactive")
	}
	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "course inactive")
	}
	exists, err := s.repo.ExistsNonCancelled(ctx, req.StudentID, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in course")
	}

	customPct := req.CustomDiscountPct
	if customPct == nil {
		customPct, err = s.discounts.FindBestForStudent(ctx, req.StudentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student discount")
		}
	}

	basePrice := course.PriceFor(student.Type)
	total := ComputeTotal(basePrice, course.DiscountPct, customPct)

	requisitos := make([]models.Requisito, 0, len(course.RequisitoTemplates))
	for _, tpl := range course.RequisitoTemplates {
		requisitos = append(requisitos, models.Requisito{Description: tpl.Description, Status: models.RequisitoPending})
	}

	enrollment := &models.Enrollment{
		StudentID:         req.StudentID,
		CourseID:          req.CourseID,
		Status:            models.EnrollmentPendingPayment,
		BasePrice:         basePrice,
		CourseDiscountPct: course.DiscountPct,
		CustomDiscountPct: customPct,
		TotalPayable:      total,
		AmountPaid:        0,
		Balance:           total,
		CreatedBy:         createdBy,
		Requisitos:        requisitos,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		var typed *appErrors.Error
		if errors.As(err, &typed) {
			return nil, typed
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.logger.Info("enrollment created",
		zap.String("enrollmentId", enrollment.ID),
		zap.String("studentId", req.StudentID),
		zap.String("courseId", req.CourseID),
		zap.Float64("total", total))

	return s.Get(ctx, enrollment.ID)
}

// UpdateDiscount sets or clears the custom discount and recomputes the total
// from the snapshotted base price. Terminal enrollments are immutable.
func (s *EnrollmentService) UpdateDiscount(ctx context.Context, id string, req UpdateEnrollmentDiscountRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid discount payload")
	}
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status == models.EnrollmentCompleted || enrollment.Status == models.EnrollmentCancelled {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "enrollment is closed")
	}

	total := ComputeTotal(enrollment.BasePrice, enrollment.CourseDiscountPct, req.CustomDiscountPct)
	balance := total - enrollment.AmountPaid
	if err := s.repo.UpdatePricing(ctx, id, req.CustomDiscountPct, total, balance); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update discount")
	}

	s.logger.Info("enrollment discount updated", zap.String("enrollmentId", id), zap.Float64("total", total))
	return s.Get(ctx, id)
}

// ChangeStatus moves an enrollment through its lifecycle. The update is
// guarded on the current status so a concurrent transition is reported as a
// conflict instead of silently winning.
func (s *EnrollmentService) ChangeStatus(ctx context.Context, id string, req ChangeEnrollmentStatusRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !models.ValidStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown enrollment status")
	}
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if !models.CanTransition(enrollment.Status, req.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "transition not allowed from current status")
	}
	changed, err := s.repo.UpdateStatus(ctx, id, enrollment.Status, req.Status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
	}
	if !changed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment status changed concurrently")
	}

	s.logger.Info("enrollment status changed",
		zap.String("enrollmentId", id),
		zap.String("from", string(enrollment.Status)),
		zap.String("to", string(req.Status)))

	return s.Get(ctx, id)
}
