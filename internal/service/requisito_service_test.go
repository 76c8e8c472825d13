package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uagrm-posgrado/admin-api/internal/models"
	appErrors "github.com/uagrm-posgrado/admin-api/pkg/errors"
	"github.com/uagrm-posgrado/admin-api/pkg/storage"
)

type mockRequisitoRepo struct {
	enrollments map[string]models.Enrollment
	requisitos  map[string]map[int]models.Requisito
	deleted     []string
}

func (m *mockRequisitoRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRequisitoRepo) ListRequisitos(ctx context.Context, enrollmentID string) ([]models.Requisito, error) {
	byPos := m.requisitos[enrollmentID]
	list := make([]models.Requisito, 0, len(byPos))
	for i := 0; i < len(byPos); i++ {
		list = append(list, byPos[i])
	}
	return list, nil
}

func (m *mockRequisitoRepo) GetRequisito(ctx context.Context, enrollmentID string, position int) (*models.Requisito, error) {
	if r, ok := m.requisitos[enrollmentID][position]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRequisitoRepo) SetRequisitoDocument(ctx context.Context, enrollmentID string, position int, url string, uploadedAt time.Time) error {
	r := m.requisitos[enrollmentID][position]
	r.Status = models.RequisitoInReview
	r.DocumentURL = &url
	r.UploadedAt = &uploadedAt
	r.RejectReason = nil
	m.requisitos[enrollmentID][position] = r
	return nil
}

func (m *mockRequisitoRepo) SetRequisitoReview(ctx context.Context, enrollmentID string, position int, status models.RequisitoStatus, reason *string, reviewedBy string) error {
	r := m.requisitos[enrollmentID][position]
	r.Status = status
	r.RejectReason = reason
	r.ReviewedBy = &reviewedBy
	m.requisitos[enrollmentID][position] = r
	return nil
}

type mockDocumentStore struct {
	stored  int
	deleted []string
}

func (m *mockDocumentStore) Store(ctx context.Context, file storage.File, folder, name string) (string, error) {
	m.stored++
	return "https://files.example/" + folder + "/" + name, nil
}

func (m *mockDocumentStore) Delete(ctx context.Context, rawURL string) bool {
	m.deleted = append(m.deleted, rawURL)
	return true
}

func requisitoFixture() (*mockRequisitoRepo, *mockDocumentStore, *RequisitoService) {
	url := "https://files.example/requisitos/e1_req_1"
	repo := &mockRequisitoRepo{
		enrollments: map[string]models.Enrollment{
			"e1": {ID: "e1", StudentID: "s1", Status: models.EnrollmentPendingPayment},
		},
		requisitos: map[string]map[int]models.Requisito{
			"e1": {
				0: {EnrollmentID: "e1", Position: 0, Description: "Fotocopia de carnet", Status: models.RequisitoPending},
				1: {EnrollmentID: "e1", Position: 1, Description: "Titulo de licenciatura", Status: models.RequisitoInReview, DocumentURL: &url},
			},
		},
	}
	store := &mockDocumentStore{}
	limits := storage.Limits{MaxImageBytes: 5 << 20, MaxPDFBytes: 10 << 20}
	svc := NewRequisitoService(repo, store, limits, zap.NewNop())
	return repo, store, svc
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "u1", Username: "admin", Role: models.RoleAdmin}
}

func studentClaims(studentID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: studentID, Username: "218045678", Role: models.RoleStudent, StudentID: studentID}
}

func pdfUpload(size int64) storage.File {
	return storage.File{Reader: strings.NewReader("%PDF-1.4"), Size: size, ContentType: "application/pdf"}
}

func TestRequisitoServiceUploadMovesToReview(t *testing.T) {
	repo, store, svc := requisitoFixture()

	requisito, err := svc.Upload(context.Background(), "e1", 0, pdfUpload(1024), studentClaims("s1"))
	require.NoError(t, err)
	assert.Equal(t, models.RequisitoInReview, requisito.Status)
	require.NotNil(t, requisito.DocumentURL)
	assert.Equal(t, 1, store.stored)
	assert.Nil(t, repo.requisitos["e1"][0].RejectReason)
}

func TestRequisitoServiceUploadRejectsForeignStudent(t *testing.T) {
	_, _, svc := requisitoFixture()

	_, err := svc.Upload(context.Background(), "e1", 0, pdfUpload(1024), studentClaims("other"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRequisitoServiceUploadForbiddenForAdmins(t *testing.T) {
	_, store, svc := requisitoFixture()

	_, err := svc.Upload(context.Background(), "e1", 0, pdfUpload(1024), adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, store.stored)
}

func TestRequisitoServiceUploadPositionOutOfRange(t *testing.T) {
	_, _, svc := requisitoFixture()

	_, err := svc.Upload(context.Background(), "e1", 5, pdfUpload(1024), studentClaims("s1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRequisitoServiceUploadRejectsApproved(t *testing.T) {
	repo, _, svc := requisitoFixture()
	url := "https://files.example/requisitos/e1_req_0"
	repo.requisitos["e1"][0] = models.Requisito{EnrollmentID: "e1", Position: 0, Status: models.RequisitoApproved, DocumentURL: &url}

	_, err := svc.Upload(context.Background(), "e1", 0, pdfUpload(1024), studentClaims("s1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestRequisitoServiceUploadRejectsOversizedPDF(t *testing.T) {
	_, _, svc := requisitoFixture()

	_, err := svc.Upload(context.Background(), "e1", 0, pdfUpload(11<<20), studentClaims("s1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrFileTooLarge.Code, appErrors.FromError(err).Code)
}

func TestRequisitoServiceUploadReplacesRejectedDocument(t *testing.T) {
	repo, store, svc := requisitoFixture()
	oldURL := "https://files.example/requisitos/old"
	reason := "ilegible"
	repo.requisitos["e1"][0] = models.Requisito{EnrollmentID: "e1", Position: 0, Status: models.RequisitoRejected, DocumentURL: &oldURL, RejectReason: &reason}

	requisito, err := svc.Upload(context.Background(), "e1", 0, pdfUpload(1024), studentClaims("s1"))
	require.NoError(t, err)
	assert.Equal(t, models.RequisitoInReview, requisito.Status)
	assert.Nil(t, requisito.RejectReason)
	assert.Contains(t, store.deleted, oldURL)
}

func TestRequisitoServiceApprove(t *testing.T) {
	repo, _, svc := requisitoFixture()

	requisito, err := svc.Approve(context.Background(), "e1", 1, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RequisitoApproved, requisito.Status)
	require.NotNil(t, repo.requisitos["e1"][1].ReviewedBy)
	assert.Equal(t, "admin", *repo.requisitos["e1"][1].ReviewedBy)
}

func TestRequisitoServiceApproveRequiresDocument(t *testing.T) {
	_, _, svc := requisitoFixture()

	_, err := svc.Approve(context.Background(), "e1", 0, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestRequisitoServiceApprovePositionOutOfRange(t *testing.T) {
	_, _, svc := requisitoFixture()

	_, err := svc.Approve(context.Background(), "e1", 9, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRequisitoServiceApproveForbiddenForStudents(t *testing.T) {
	_, _, svc := requisitoFixture()

	_, err := svc.Approve(context.Background(), "e1", 1, studentClaims("s1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRequisitoServiceReject(t *testing.T) {
	repo, _, svc := requisitoFixture()

	requisito, err := svc.Reject(context.Background(), "e1", 1, "documento ilegible", adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RequisitoRejected, requisito.Status)
	require.NotNil(t, requisito.RejectReason)
	assert.Equal(t, "documento ilegible", *requisito.RejectReason)
	assert.Equal(t, models.RequisitoRejected, repo.requisitos["e1"][1].Status)
}

func TestRequisitoServiceRejectRequiresReason(t *testing.T) {
	_, _, svc := requisitoFixture()

	_, err := svc.Reject(context.Background(), "e1", 1, "", adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Reject(context.Background(), "e1", 1, strings.Repeat("x", 501), adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRequisitoServiceRejectOnlyInReview(t *testing.T) {
	repo, _, svc := requisitoFixture()
	url := "https://files.example/requisitos/e1_req_1"
	repo.requisitos["e1"][1] = models.Requisito{EnrollmentID: "e1", Position: 1, Status: models.RequisitoApproved, DocumentURL: &url}

	_, err := svc.Reject(context.Background(), "e1", 1, "motivo", adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestRequisitoServiceSummary(t *testing.T) {
	_, _, svc := requisitoFixture()

	summary, err := svc.Summary(context.Background(), "e1", studentClaims("s1"))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Pending)
	assert.Equal(t, 1, summary.InReview)
	assert.Equal(t, 0, summary.Approved)
}
