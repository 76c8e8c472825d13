package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/uagrm-posgrado/admin-api/internal/models"
	appErrors "github.com/uagrm-posgrado/admin-api/pkg/errors"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryExistsNonCancelled(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status <> $3 LIMIT 1")).
		WithArgs("stu-1", "course-1", models.EnrollmentCancelled).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsNonCancelled(context.Background(), "stu-1", "course-1")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateInsertsRequisitos(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	enrollment := &models.Enrollment{
		StudentID:         "stu-1",
		CourseID:          "course-1",
		Status:            models.EnrollmentPendingPayment,
		BasePrice:         1000,
		CourseDiscountPct: 10,
		TotalPayable:      900,
		Balance:           900,
		CreatedBy:         "admin",
		Requisitos: []models.Requisito{
			{Description: "Fotocopia de carnet"},
			{Description: "Titulo de licenciatura"},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollment_requisitos (enrollment_id, position, description, status) VALUES ($1, $2, $3, $4)")).
		WithArgs(sqlmock.AnyArg(), 0, "Fotocopia de carnet", models.RequisitoPending).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollment_requisitos (enrollment_id, position, description, status) VALUES ($1, $2, $3, $4)")).
		WithArgs(sqlmock.AnyArg(), 1, "Titulo de licenciatura", models.RequisitoPending).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), enrollment)
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.ID)
	require.Equal(t, enrollment.ID, enrollment.Requisitos[1].EnrollmentID)
	require.Equal(t, 1, enrollment.Requisitos[1].Position)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDuplicateEnrollment(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_enrollment_student_course"})
	mock.ExpectRollback()

	enrollment := &models.Enrollment{
		StudentID: "stu-1",
		CourseID:  "course-1",
		Status:    models.EnrollmentPendingPayment,
	}
	err := repo.Create(context.Background(), enrollment)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatusGuardsCurrent(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2")).
		WithArgs("enr-1", models.EnrollmentPendingPayment, models.EnrollmentActive, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.UpdateStatus(context.Background(), "enr-1", models.EnrollmentPendingPayment, models.EnrollmentActive)
	require.NoError(t, err)
	require.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositorySetRequisitoDocument(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	uploadedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollment_requisitos SET status = $3, document_url = $4, uploaded_at = $5, reject_reason = NULL")).
		WithArgs("enr-1", 2, models.RequisitoInReview, "https://files.example/doc.pdf", uploadedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetRequisitoDocument(context.Background(), "enr-1", 2, "https://files.example/doc.pdf", uploadedAt)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryGetRequisito(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"enrollment_id", "position", "description", "status", "document_url", "reject_reason", "reviewed_by", "uploaded_at"}).
		AddRow("enr-1", 0, "Fotocopia de carnet", models.RequisitoPending, nil, nil, nil, nil)
	mock.ExpectQuery("SELECT enrollment_id, position, description, status").
		WithArgs("enr-1", 0).
		WillReturnRows(rows)

	requisito, err := repo.GetRequisito(context.Background(), "enr-1", 0)
	require.NoError(t, err)
	require.Equal(t, models.RequisitoPending, requisito.Status)
	require.Nil(t, requisito.DocumentURL)
	require.NoError(t, mock.ExpectationsWereMet())
}
