package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uagrm-posgrado/admin-api/internal/models"
	appErrors "github.com/uagrm-posgrado/admin-api/pkg/errors"
	"github.com/uagrm-posgrado/admin-api/pkg/export"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Deactivate(ctx context.Context, id string) error
	Roster(ctx context.Context, courseID string) ([]models.CourseStudentReport, error)
}

// CreateCourseRequest describes course creation payload.
type CreateCourseRequest struct {
	Name          string   `json:"nombre" validate:"required,min=3,max=200"`
	Modality      string   `json:"modalidad" validate:"max=50"`
	PriceInternal float64  `json:"precio_interno" validate:"gte=0"`
	PriceExternal float64  `json:"precio_externo" validate:"gte=0"`
	DiscountPct   float64  `json:"descuento_pct" validate:"gte=0,lte=100"`
	Requisitos    []string `json:"requisitos" validate:"dive,min=1,max=200"`
}

// UpdateCourseRequest describes course update payload.
type UpdateCourseRequest struct {
	Name          string   `json:"nombre" validate:"required,min=3,max=200"`
	Modality      string   `json:"modalidad" validate:"max=50"`
	PriceInternal float64  `json:"precio_interno" validate:"gte=0"`
	PriceExternal float64  `json:"precio_externo" validate:"gte=0"`
	DiscountPct   float64  `json:"descuento_pct" validate:"gte=0,lte=100"`
	Active        *bool    `json:"activo"`
	Requisitos    []string `json:"requisitos" validate:"dive,min=1,max=200"`
}

// CourseService manages courses, their requisito templates and the per-course
// financial roster.
type CourseService struct {
	repo      courseRepository
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, csv: export.NewCSVExporter(), pdf: export.NewPDFExporter(), validator: validate, logger: logger}
}

// List returns courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.PageMeta, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, models.NewPageMeta(filter.Page, filter.PageSize, total), nil
}

// Get returns one course with its requisito templates.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create registers a new course.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course := &models.Course{
		Name:               req.Name,
		Modality:           req.Modality,
		PriceInternal:      req.PriceInternal,
		PriceExternal:      req.PriceExternal,
		DiscountPct:        req.DiscountPct,
		Active:             true,
		RequisitoTemplates: templatesFromDescriptions(req.Requisitos),
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.logger.Info("course created", zap.String("courseId", course.ID), zap.String("name", course.Name))
	return course, nil
}

// Update modifies a course. Template changes only affect future enrollments.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	course.Name = req.Name
	course.Modality = req.Modality
	course.PriceInternal = req.PriceInternal
	course.PriceExternal = req.PriceExternal
	course.DiscountPct = req.DiscountPct
	if req.Active != nil {
		course.Active = *req.Active
	}
	course.RequisitoTemplates = templatesFromDescriptions(req.Requisitos)

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// Delete deactivates a course. Enrollments referencing it are untouched.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate course")
	}
	s.logger.Info("course deactivated", zap.String("courseId", id))
	return nil
}

// Report returns the roster of a course with payment progress per student.
func (s *CourseService) Report(ctx context.Context, courseID string) (*models.Course, []models.CourseStudentReport, error) {
	course, err := s.Get(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}
	roster, err := s.repo.Roster(ctx, courseID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build course report")
	}
	for i := range roster {
		if roster[i].TotalPayable > 0 {
			pct := roster[i].AmountPaid / roster[i].TotalPayable * 100
			roster[i].ProgressPct = math.RoundToEven(pct*100) / 100
		}
	}
	return course, roster, nil
}

// Export renders the course roster as CSV or PDF.
func (s *CourseService) Export(ctx context.Context, courseID, format string) ([]byte, string, error) {
	course, roster, err := s.Report(ctx, courseID)
	if err != nil {
		return nil, "", err
	}

	headers := []string{"Registro", "Nombre", "Carnet", "Celular", "Tipo", "Estado", "Total", "Pagado", "Saldo", "Avance %"}
	rows := make([]map[string]string, 0, len(roster))
	for _, row := range roster {
		rows = append(rows, map[string]string{
			"Registro": row.Registro,
			"Nombre":   row.FullName,
			"Carnet":   derefString(row.Carnet),
			"Celular":  derefString(row.Phone),
			"Tipo":     string(row.Type),
			"Estado":   string(row.Status),
			"Total":    fmt.Sprintf("%.2f", row.TotalPayable),
			"Pagado":   fmt.Sprintf("%.2f", row.AmountPaid),
			"Saldo":    fmt.Sprintf("%.2f", row.Balance),
			"Avance %": fmt.Sprintf("%.2f", row.ProgressPct),
		})
	}
	dataset := export.Dataset{Headers: headers, Rows: rows}

	stamp := time.Now().UTC().Format("20060102")
	switch format {
	case "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, fmt.Sprintf("reporte_%s_%s.csv", course.ID, stamp), nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, course.Name)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, fmt.Sprintf("reporte_%s_%s.pdf", course.ID, stamp), nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func templatesFromDescriptions(descriptions []string) []models.RequisitoTemplate {
	templates := make([]models.RequisitoTemplate, 0, len(descriptions))
	for i, description := range descriptions {
		templates = append(templates, models.RequisitoTemplate{Position: i, Description: description})
	}
	return templates
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
