package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uagrm-posgrado/admin-api/internal/models"
	appErrors "github.com/uagrm-posgrado/admin-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	existing    map[string]bool
	created     *models.Enrollment
	statusFrom  models.EnrollmentStatus
	statusTo    models.EnrollmentStatus
	statusOK    bool
	pricing     *float64
	lastTotal   float64
	lastFilter  models.EnrollmentFilter
	createErr   error
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	m.lastFilter = filter
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if e, ok := m.enrollments[id]; ok {
		return &models.EnrollmentDetail{Enrollment: e}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) ExistsNonCancelled(ctx context.Context, studentID, courseID string) (bool, error) {
	return m.existing[studentID+courseID], nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = "new-enroll"
	}
	m.enrollments[enrollment.ID] = *enrollment
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) UpdatePricing(ctx context.Context, id string, customPct *float64, total, balance float64) error {
	m.pricing = customPct
	m.lastTotal = total
	if e, ok := m.enrollments[id]; ok {
		e.CustomDiscountPct = customPct
		e.TotalPayable = total
		e.Balance = balance
		m.enrollments[id] = e
	}
	return nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, id string, from, to models.EnrollmentStatus) (bool, error) {
	m.statusFrom = from
	m.statusTo = to
	if !m.statusOK {
		return false, nil
	}
	if e, ok := m.enrollments[id]; ok {
		e.Status = to
		m.enrollments[id] = e
	}
	return true, nil
}

type mockStudentReader struct {
	students map[string]*models.Student
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockCourseReader struct {
	courses map[string]*models.Course
}

func (m *mockCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

type mockDiscountReader struct {
	best map[string]*float64
}

func (m *mockDiscountReader) FindBestForStudent(ctx context.Context, studentID string) (*float64, error) {
	return m.best[studentID], nil
}

func newEnrollmentFixture() (*mockEnrollmentRepo, *mockStudentReader, *mockCourseReader, *mockDiscountReader) {
	repo := &mockEnrollmentRepo{statusOK: true}
	students := &mockStudentReader{students: map[string]*models.Student{
		"s1": {ID: "s1", Registro: "218045678", Type: models.StudentExternal, Active: true},
	}}
	courses := &mockCourseReader{courses: map[string]*models.Course{
		"c1": {
			ID: "c1", Name: "Maestria en Finanzas", PriceInternal: 8000, PriceExternal: 10000, DiscountPct: 10, Active: true,
			RequisitoTemplates: []models.RequisitoTemplate{
				{Position: 0, Description: "Fotocopia de carnet"},
				{Position: 1, Description: "Titulo de licenciatura"},
			},
		},
	}}
	discounts := &mockDiscountReader{best: map[string]*float64{}}
	return repo, students, courses, discounts
}

func TestEnrollmentServiceCreateSnapshotsPricing(t *testing.T) {
	repo, students, courses, discounts := newEnrollmentFixture()
	svc := NewEnrollmentService(repo, students, courses, discounts, validator.New(), zap.NewNop())

	detail, err := svc.Create(context.Background(), CreateEnrollmentRequest{StudentID: "s1", CourseID: "c1"}, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentPendingPayment, detail.Status)
	assert.Equal(t, 10000.0, detail.BasePrice)
	assert.Equal(t, 10.0, detail.CourseDiscountPct)
	assert.Nil(t, detail.CustomDiscountPct)
	assert.Equal(t, 9000.0, detail.TotalPayable)
	assert.Equal(t, 9000.0, detail.Balance)
	require.Len(t, repo.created.Requisitos, 2)
	assert.Equal(t, models.RequisitoPending, repo.created.Requisitos[0].Status)
}

func TestEnrollmentServiceCreateSeedsAssignedDiscount(t *testing.T) {
	repo, students, courses, discounts := newEnrollmentFixture()
	half := 50.0
	discounts.best["s1"] = &half
	svc := NewEnrollmentService(repo, students, courses, discounts, validator.New(), zap.NewNop())

	detail, err := svc.Create(context.Background(), CreateEnrollmentRequest{StudentID: "s1", CourseID: "c1"}, "admin")
	require.NoError(t, err)
	require.NotNil(t, detail.CustomDiscountPct)
	assert.Equal(t, 50.0, *detail.CustomDiscountPct)
	assert.Equal(t, 5000.0, detail.TotalPayable)
}

func TestEnrollmentServiceCreateExplicitDiscountWinsOverAssigned(t *testing.T) {
	repo, students, courses, discounts := newEnrollmentFixture()
	half := 50.0
	discounts.best["s1"] = &half
	svc := NewEnrollmentService(repo, students, courses, discounts, validator.New(), zap.NewNop())

	twenty := 20.0
	detail, err := svc.Create(context.Background(), CreateEnrollmentRequest{StudentID: "s1", CourseID: "c1", CustomDiscountPct: &twenty}, "admin")
	require.NoError(t, err)
	require.NotNil(t, detail.CustomDiscountPct)
	assert.Equal(t, 20.0, *detail.CustomDiscountPct)
	assert.Equal(t, 8000.0, detail.TotalPayable)
}

func TestEnrollmentServiceCreateSurfacesInsertConflict(t *testing.T) {
	repo, students, courses, discounts := newEnrollmentFixture()
	repo.createErr = appErrors.Clone(appErrors.ErrConflict, "student already enrolled in this course")
	svc := NewEnrollmentService(repo, students, courses, discounts, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateEnrollmentRequest{StudentID: "s1", CourseID: "c1"}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceListByStudentForcesFilter(t *testing.T) {
	repo, students, courses, discounts := newEnrollmentFixture()
	svc := NewEnrollmentService(repo, students, courses, discounts, validator.New(), zap.NewNop())

	_, meta, err := svc.ListByStudent(context.Background(), "s1", models.EnrollmentFilter{StudentID: "intruso", Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "s1", repo.lastFilter.StudentID)
}

func TestEnrollmentServiceListByCourseForcesFilter(t *testing.T) {
	repo, students, courses, discounts := newEnrollmentFixture()
	svc := NewEnrollmentService(repo, students, courses, discounts, validator.New(), zap.NewNop())

	_, _, err := svc.ListByCourse(context.Background(), "c1", models.EnrollmentFilter{Status: models.EnrollmentActive})
	require.NoError(t, err)
	assert.Equal(t, "c1", repo.lastFilter.CourseID)
	assert.Equal(t, models.EnrollmentActive, repo.lastFilter.Status)
}

func TestEnrollmentServiceCreateRejectsDuplicate(t *testing.T) {
	repo, students, courses, discounts := newEnrollmentFixture()
	repo.existing = map[string]bool{"s1c1": true}
	svc := NewEnrollmentService(repo, students, courses, discounts, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateEnrollmentRequest{StudentID: "s1", CourseID: "c1"}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceCreateRejectsInactiveCourse(t *testing.T) {
	repo, students, courses, discounts := newEnrollmentFixture()
	courses.courses["c1"].Active = false
	svc := NewEnrollmentService(repo, students, courses, discounts, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateEnrollmentRequest{StudentID: "s1", CourseID: "c1"}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceUpdateDiscountRecomputesTotal(t *testing.T) {
	repo, students, courses, discounts := newEnrollmentFixture()
	repo.enrollments = map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", CourseID: "c1", Status: models.EnrollmentActive, BasePrice: 10000, CourseDiscountPct: 10, TotalPayable: 9000, AmountPaid: 2000, Balance: 7000},
	}
	svc := NewEnrollmentService(repo, students, courses, discounts, validator.New(), zap.NewNop())

	quarter := 25.0
	detail, err := svc.UpdateDiscount(context.Background(), "e1", UpdateEnrollmentDiscountRequest{CustomDiscountPct: &quarter})
	require.NoError(t, err)
	assert.Equal(t, 7500.0, detail.TotalPayable)
	assert.Equal(t, 5500.0, detail.Balance)

	detail, err = svc.UpdateDiscount(context.Background(), "e1", UpdateEnrollmentDiscountRequest{CustomDiscountPct: nil})
	require.NoError(t, err)
	assert.Equal(t, 9000.0, detail.TotalPayable)
	assert.Nil(t, detail.CustomDiscountPct)
}

func TestEnrollmentServiceUpdateDiscountRejectsClosed(t *testing.T) {
	repo, students, courses, discounts := newEnrollmentFixture()
	repo.enrollments = map[string]models.Enrollment{
		"e1": {ID: "e1", Status: models.EnrollmentCancelled, BasePrice: 10000},
	}
	svc := NewEnrollmentService(repo, students, courses, discounts, validator.New(), zap.NewNop())

	_, err := svc.UpdateDiscount(context.Background(), "e1", UpdateEnrollmentDiscountRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceChangeStatus(t *testing.T) {
	repo, students, courses, discounts := newEnrollmentFixture()
	repo.enrollments = map[string]models.Enrollment{
		"e1": {ID: "e1", Status: models.EnrollmentPendingPayment},
	}
	svc := NewEnrollmentService(repo, students, courses, discounts, validator.New(), zap.NewNop())

	detail, err := svc.ChangeStatus(context.Background(), "e1", ChangeEnrollmentStatusRequest{Status: models.EnrollmentActive})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentActive, detail.Status)
	assert.Equal(t, models.EnrollmentPendingPayment, repo.statusFrom)
}

func TestEnrollmentServiceChangeStatusRejectsIllegalTransition(t *testing.T) {
	repo, students, courses, discounts := newEnrollmentFixture()
	repo.enrollments = map[string]models.Enrollment{
		"e1": {ID: "e1", Status: models.EnrollmentCompleted},
	}
	svc := NewEnrollmentService(repo, students, courses, discounts, validator.New(), zap.NewNop())

	_, err := svc.ChangeStatus(context.Background(), "e1", ChangeEnrollmentStatusRequest{Status: models.EnrollmentCancelled})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceChangeStatusReportsConcurrentChange(t *testing.T) {
	repo, students, courses, discounts := newEnrollmentFixture()
	repo.statusOK = false
	repo.enrollments = map[string]models.Enrollment{
		"e1": {ID: "e1", Status: models.EnrollmentPendingPayment},
	}
	svc := NewEnrollmentService(repo, students, courses, discounts, validator.New(), zap.NewNop())

	_, err := svc.ChangeStatus(context.Background(), "e1", ChangeEnrollmentStatusRequest{Status: models.EnrollmentCancelled})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
