package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/uagrm-posgrado/admin-api/internal/models"
)

func newCourseRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCourseRepositoryFindByIDLoadsTemplates(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	courseRows := sqlmock.NewRows([]string{"id", "name", "modality", "price_internal", "price_external", "discount_pct", "active", "created_at", "updated_at"}).
		AddRow("course-1", "Maestria en Finanzas", "VIRTUAL", 8000.0, 10000.0, 5.0, true, now, now)
	mock.ExpectQuery("SELECT id, name, modality, price_internal").
		WithArgs("course-1").
		WillReturnRows(courseRows)

	templateRows := sqlmock.NewRows([]string{"course_id", "position", "description"}).
		AddRow("course-1", 0, "Fotocopia de carnet").
		AddRow("course-1", 1, "Titulo de licenciatura")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT course_id, position, description FROM course_requisito_templates WHERE course_id = $1 ORDER BY position")).
		WithArgs("course-1").
		WillReturnRows(templateRows)

	course, err := repo.FindByID(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, course.RequisitoTemplates, 2)
	require.Equal(t, "Titulo de licenciatura", course.RequisitoTemplates[1].Description)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUpdateReplacesTemplates(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	course := &models.Course{
		ID:            "course-1",
		Name:          "Maestria en Finanzas",
		PriceInternal: 8000,
		PriceExternal: 10000,
		Active:        true,
		RequisitoTemplates: []models.RequisitoTemplate{
			{Description: "Fotocopia de carnet"},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE courses SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM course_requisito_templates WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_requisito_templates (course_id, position, description) VALUES ($1, $2, $3)")).
		WithArgs("course-1", 0, "Fotocopia de carnet").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Update(context.Background(), course)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryRoster(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "registro", "full_name", "carnet", "phone", "email", "student_type", "enrolled_at", "status", "total_payable", "amount_paid", "balance"}).
		AddRow("stu-1", "218045678", "Ana Rojas", nil, nil, nil, models.StudentExternal, time.Now(), models.EnrollmentActive, 9500.0, 4000.0, 5500.0)
	mock.ExpectQuery("SELECT s.id AS student_id, s.registro").
		WithArgs("course-1", models.EnrollmentCancelled).
		WillReturnRows(rows)

	roster, err := repo.Roster(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, roster, 1)
	require.Equal(t, 5500.0, roster[0].Balance)
	require.NoError(t, mock.ExpectationsWereMet())
}
