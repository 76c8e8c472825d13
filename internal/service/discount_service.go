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

type discountRepository interface {
	List(ctx context.Context, filter models.DiscountFilter) ([]models.Discount, int, error)
	FindByID(ctx context.Context, id string) (*models.Discount, error)
	Create(ctx context.Context, discount *models.Discount) error
	Update(ctx context.Context, discount *models.Discount) error
	Deactivate(ctx context.Context, id string) error
	AddStudent(ctx context.Context, discountID, studentID string) error
	RemoveStudent(ctx context.Context, discountID, studentID string) error
}

type discountStudentChecker interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// CreateDiscountRequest describes discount creation payload.
type CreateDiscountRequest struct {
	Name       string   `json:"nombre" validate:"required,min=3,max=100"`
	Percentage float64  `json:"porcentaje" validate:"gte=0,lte=100"`
	StudentIDs []string `json:"estudiantes_ids"`
}

// UpdateDiscountRequest describes discount update payload.
type UpdateDiscountRequest struct {
	Name       string   `json:"nombre" validate:"required,min=3,max=100"`
	Percentage float64  `json:"porcentaje" validate:"gte=0,lte=100"`
	Active     *bool    `json:"activo"`
	StudentIDs []string `json:"estudiantes_ids"`
}

// DiscountService manages discounts and their student assignments. Changing
// a discount never touches existing enrollments; the percentage is applied
// when an enrollment is created.
type DiscountService struct {
	repo      discountRepository
	students  discountStudentChecker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDiscountService constructs DiscountService.
func NewDiscountService(repo discountRepository, students discountStudentChecker, validate *validator.Validate, logger *zap.Logger) *DiscountService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscountService{repo: repo, students: students, validator: validate, logger: logger}
}

// List returns discounts with pagination metadata.
func (s *DiscountService) List(ctx context.Context, filter models.DiscountFilter) ([]models.Discount, *models.PageMeta, error) {
	discounts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list discounts")
	}
	return discounts, models.NewPageMeta(filter.Page, filter.PageSize, total), nil
}

// Get returns one discount with its assigned students.
func (s *DiscountService) Get(ctx context.Context, id string) (*models.Discount, error) {
	discount, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "discount not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load discount")
	}
	return discount, nil
}

// Create registers a discount and assigns it to the given students.
func (s *DiscountService) Create(ctx context.Context, req CreateDiscountRequest) (*models.Discount, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid discount payload")
	}
	if err := s.checkStudents(ctx, req.StudentIDs); err != nil {
		return nil, err
	}
	discount := &models.Discount{
		Name:       req.Name,
		Percentage: req.Percentage,
		Active:     true,
		StudentIDs: req.StudentIDs,
	}
	if err := s.repo.Create(ctx, discount); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create discount")
	}
	s.logger.Info("discount created", zap.String("discountId", discount.ID), zap.Float64("percentage", discount.Percentage))
	return discount, nil
}

// Update modifies a discount and replaces its assignments.
func (s *DiscountService) Update(ctx context.Context, id string, req UpdateDiscountRequest) (*models.Discount, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid discount payload")
	}
	discount, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkStudents(ctx, req.StudentIDs); err != nil {
		return nil, err
	}
	discount.Name = req.Name
	discount.Percentage = req.Percentage
	if req.Active != nil {
		discount.Active = *req.Active
	}
	discount.StudentIDs = req.StudentIDs

	if err := s.repo.Update(ctx, discount); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update discount")
	}
	return discount, nil
}

// Delete deactivates a discount.
func (s *DiscountService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate discount")
	}
	s.logger.Info("discount deactivated", zap.String("discountId", id))
	return nil
}

// AssignStudent grants a discount to one student without replacing the rest
// of the assignments.
func (s *DiscountService) AssignStudent(ctx context.Context, discountID, studentID string) (*models.Discount, error) {
	if _, err := s.Get(ctx, discountID); err != nil {
		return nil, err
	}
	if err := s.checkStudents(ctx, []string{studentID}); err != nil {
		return nil, err
	}
	if err := s.repo.AddStudent(ctx, discountID, studentID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign discount")
	}
	s.logger.Info("discount assigned", zap.String("discountId", discountID), zap.String("studentId", studentID))
	return s.Get(ctx, discountID)
}

// RevokeStudent removes one student from a discount.
func (s *DiscountService) RevokeStudent(ctx context.Context, discountID, studentID string) (*models.Discount, error) {
	if _, err := s.Get(ctx, discountID); err != nil {
		return nil, err
	}
	if err := s.repo.RemoveStudent(ctx, discountID, studentID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke discount")
	}
	s.logger.Info("discount revoked", zap.String("discountId", discountID), zap.String("studentId", studentID))
	return s.Get(ctx, discountID)
}

func (s *DiscountService) checkStudents(ctx context.Context, studentIDs []string) error {
	for _, studentID := range studentIDs {
		if _, err := s.students.FindByID(ctx, studentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "assigned student not found: "+studentID)
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student")
		}
	}
	return nil
}
