package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/uagrm-posgrado/admin-api/internal/models"
	appErrors "github.com/uagrm-posgrado/admin-api/pkg/errors"
	"github.com/uagrm-posgrado/admin-api/pkg/storage"
)

type requisitoRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ListRequisitos(ctx context.Context, enrollmentID string) ([]models.Requisito, error)
	GetRequisito(ctx context.Context, enrollmentID string, position int) (*models.Requisito, error)
	SetRequisitoDocument(ctx context.Context, enrollmentID string, position int, url string, uploadedAt time.Time) error
	SetRequisitoReview(ctx context.Context, enrollmentID string, position int, status models.RequisitoStatus, reason *string, reviewedBy string) error
}

// RejectRequisitoRequest carries the mandatory rejection reason.
type RejectRequisitoRequest struct {
	Reason string `json:"motivo" validate:"required,min=1,max=500"`
}

// RequisitoService drives the document checklist of an enrollment: student
// uploads and admin review verdicts.
type RequisitoService struct {
	repo   requisitoRepository
	store  storage.DocumentStore
	limits storage.Limits
	logger *zap.Logger
}

// NewRequisitoService constructs RequisitoService.
func NewRequisitoService(repo requisitoRepository, store storage.DocumentStore, limits storage.Limits, logger *zap.Logger) *RequisitoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequisitoService{repo: repo, store: store, limits: limits, logger: logger}
}

// load fetches the enrollment and enforces student ownership. Admins may act
// on any enrollment; a student only on their own.
func (s *RequisitoService) load(ctx context.Context, enrollmentID string, claims *models.JWTClaims) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if claims.IsStudent() && claims.StudentID != enrollment.StudentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
	}
	return enrollment, nil
}

// Summary returns the checklist with per-state counts.
func (s *RequisitoService) Summary(ctx context.Context, enrollmentID string, claims *models.JWTClaims) (*models.RequisitoSummary, error) {
	if _, err := s.load(ctx, enrollmentID, claims); err != nil {
		return nil, err
	}
	requisitos, err := s.repo.ListRequisitos(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requisitos")
	}
	summary := models.Summarize(requisitos)
	return &summary, nil
}

// Upload stores a document for one requisito and moves it to IN_REVIEW. Only
// the enrolled student uploads; admins review. Any state but APPROVED accepts
// a new upload; re-uploading after a rejection clears the previous reason. An
// approved requisito is final.
func (s *RequisitoService) Upload(ctx context.Context, enrollmentID string, position int, file storage.File, claims *models.JWTClaims) (*models.Requisito, error) {
	if !claims.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the enrolled student can upload documents")
	}
	enrollment, err := s.load(ctx, enrollmentID, claims)
	if err != nil {
		return nil, err
	}
	if enrollment.Status == models.EnrollmentCancelled {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "enrollment is cancelled")
	}
	requisito, err := s.repo.GetRequisito(ctx, enrollmentID, position)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrValidation, "requisito position out of range")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requisito")
	}
	if requisito.Status == models.RequisitoApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "requisito already approved")
	}
	if _, _, err := storage.Classify(file.ContentType, file.Size, s.limits); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%s_req_%d", enrollmentID, position)
	url, err := s.store.Store(ctx, file, "requisitos", name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store document")
	}
	previous := requisito.DocumentURL

	uploadedAt := time.Now().UTC()
	if err := s.repo.SetRequisitoDocument(ctx, enrollmentID, position, url, uploadedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record document")
	}
	if previous != nil && *previous != url {
		if !s.store.Delete(ctx, *previous) {
			s.logger.Warn("previous document not removed", zap.String("url", *previous))
		}
	}

	s.logger.Info("requisito document uploaded",
		zap.String("enrollmentId", enrollmentID),
		zap.Int("position", position))

	return s.repo.GetRequisito(ctx, enrollmentID, position)
}

// Approve marks a requisito as accepted. Only documents that are in review,
// or previously rejected but still carrying a document, can be approved.
func (s *RequisitoService) Approve(ctx context.Context, enrollmentID string, position int, claims *models.JWTClaims) (*models.Requisito, error) {
	requisito, err := s.reviewable(ctx, enrollmentID, position, claims)
	if err != nil {
		return nil, err
	}
	if requisito.Status != models.RequisitoInReview && requisito.Status != models.RequisitoRejected {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "requisito has no document pending review")
	}
	if err := s.repo.SetRequisitoReview(ctx, enrollmentID, position, models.RequisitoApproved, nil, claims.Username); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve requisito")
	}
	s.logger.Info("requisito approved", zap.String("enrollmentId", enrollmentID), zap.Int("position", position))
	return s.repo.GetRequisito(ctx, enrollmentID, position)
}

// Reject marks a requisito as rejected with a mandatory reason. Only a
// document currently in review can be rejected.
func (s *RequisitoService) Reject(ctx context.Context, enrollmentID string, position int, reason string, claims *models.JWTClaims) (*models.Requisito, error) {
	if reason == "" || len(reason) > 500 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason must be 1 to 500 characters")
	}
	requisito, err := s.reviewable(ctx, enrollmentID, position, claims)
	if err != nil {
		return nil, err
	}
	if requisito.Status != models.RequisitoInReview {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "requisito is not in review")
	}
	if err := s.repo.SetRequisitoReview(ctx, enrollmentID, position, models.RequisitoRejected, &reason, claims.Username); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject requisito")
	}
	s.logger.Info("requisito rejected", zap.String("enrollmentId", enrollmentID), zap.Int("position", position))
	return s.repo.GetRequisito(ctx, enrollmentID, position)
}

func (s *RequisitoService) reviewable(ctx context.Context, enrollmentID string, position int, claims *models.JWTClaims) (*models.Requisito, error) {
	if !claims.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators review requisitos")
	}
	if _, err := s.load(ctx, enrollmentID, claims); err != nil {
		return nil, err
	}
	requisito, err := s.repo.GetRequisito(ctx, enrollmentID, position)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrValidation, "requisito position out of range")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requisito")
	}
	if requisito.DocumentURL == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "requisito has no document")
	}
	return requisito, nil
}
