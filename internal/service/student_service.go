package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/uagrm-posgrado/admin-api/internal/models"
	appErrors "github.com/uagrm-posgrado/admin-api/pkg/errors"
	"github.com/uagrm-posgrado/admin-api/pkg/storage"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByRegistro(ctx context.Context, registro, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	UpdatePhotoURL(ctx context.Context, id, url string) error
	Deactivate(ctx context.Context, id string) error
}

// CreateStudentRequest describes student creation payload. When no password
// is provided the registro number is used as the initial password.
type CreateStudentRequest struct {
	Registro        string             `json:"registro" validate:"required,min=3,max=20"`
	Password        string             `json:"password" validate:"omitempty,min=6"`
	FullName        string             `json:"nombre" validate:"required,min=3,max=200"`
	Email           *string            `json:"email" validate:"omitempty,email"`
	Carnet          *string            `json:"carnet"`
	CarnetExtension *string            `json:"extension"`
	Phone           *string            `json:"celular"`
	Address         *string            `json:"domicilio"`
	BirthDate       *time.Time         `json:"fecha_nacimiento"`
	Type            models.StudentType `json:"tipo_estudiante" validate:"omitempty,oneof=INTERNAL EXTERNAL"`
}

// UpdateStudentRequest describes student update payload.
type UpdateStudentRequest struct {
	Registro        string             `json:"registro" validate:"required,min=3,max=20"`
	FullName        string             `json:"nombre" validate:"required,min=3,max=200"`
	Email           *string            `json:"email" validate:"omitempty,email"`
	Carnet          *string            `json:"carnet"`
	CarnetExtension *string            `json:"extension"`
	Phone           *string            `json:"celular"`
	Address         *string            `json:"domicilio"`
	BirthDate       *time.Time         `json:"fecha_nacimiento"`
	Type            models.StudentType `json:"tipo_estudiante" validate:"omitempty,oneof=INTERNAL EXTERNAL"`
	Active          *bool              `json:"activo"`
}

// StudentService manages student records and profile photos.
type StudentService struct {
	repo      studentRepository
	store     storage.DocumentStore
	limits    storage.Limits
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, store storage.DocumentStore, limits storage.Limits, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, store: store, limits: limits, validator: validate, logger: logger}
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.PageMeta, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, models.NewPageMeta(filter.Page, filter.PageSize, total), nil
}

// Get returns one student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	exists, err := s.repo.ExistsByRegistro(ctx, req.Registro, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check registro")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "registro already registered")
	}

	password := req.Password
	if password == "" {
		password = req.Registro
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	studentType := req.Type
	if studentType == "" {
		studentType = models.StudentExternal
	}

	student := &models.Student{
		Registro:        req.Registro,
		PasswordHash:    string(hash),
		FullName:        req.FullName,
		Email:           req.Email,
		Carnet:          req.Carnet,
		CarnetExtension: req.CarnetExtension,
		Phone:           req.Phone,
		Address:         req.Address,
		BirthDate:       req.BirthDate,
		Type:            studentType,
		Active:          true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.logger.Info("student created", zap.String("studentId", student.ID), zap.String("registro", student.Registro))
	return student, nil
}

// Update modifies a student record.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Registro != student.Registro {
		exists, err := s.repo.ExistsByRegistro(ctx, req.Registro, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check registro")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "registro already registered")
		}
	}

	student.Registro = req.Registro
	student.FullName = req.FullName
	student.Email = req.Email
	student.Carnet = req.Carnet
	student.CarnetExtension = req.CarnetExtension
	student.Phone = req.Phone
	student.Address = req.Address
	student.BirthDate = req.BirthDate
	if req.Type != "" {
		student.Type = req.Type
	}
	if req.Active != nil {
		student.Active = *req.Active
	}

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Delete deactivates a student account.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	s.logger.Info("student deactivated", zap.String("studentId", id))
	return nil
}

// UploadPhoto stores a student profile photo and records its URL.
func (s *StudentService) UploadPhoto(ctx context.Context, id string, file storage.File) (*models.Student, error) {
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := storage.ClassifyImage(file.ContentType, file.Size, s.limits); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("foto_%s", student.ID)
	url, err := s.store.Store(ctx, file, "estudiantes", name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store photo")
	}
	previous := student.PhotoURL
	if err := s.repo.UpdatePhotoURL(ctx, id, url); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record photo")
	}
	if previous != nil && *previous != url {
		if !s.store.Delete(ctx, *previous) {
			s.logger.Warn("previous photo not removed", zap.String("url", *previous))
		}
	}
	student.PhotoURL = &url
	return student, nil
}
