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

type mockDiscountRepo struct {
	discounts map[string]models.Discount
	assigned  map[string][]string
}

func (m *mockDiscountRepo) List(ctx context.Context, filter models.DiscountFilter) ([]models.Discount, int, error) {
	return nil, 0, nil
}

func (m *mockDiscountRepo) FindByID(ctx context.Context, id string) (*models.Discount, error) {
	if d, ok := m.discounts[id]; ok {
		d.StudentIDs = append([]string{}, m.assigned[id]...)
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDiscountRepo) Create(ctx context.Context, discount *models.Discount) error {
	if discount.ID == "" {
		discount.ID = "new-discount"
	}
	m.discounts[discount.ID] = *discount
	m.assigned[discount.ID] = discount.StudentIDs
	return nil
}

func (m *mockDiscountRepo) Update(ctx context.Context, discount *models.Discount) error {
	m.discounts[discount.ID] = *discount
	m.assigned[discount.ID] = discount.StudentIDs
	return nil
}

func (m *mockDiscountRepo) Deactivate(ctx context.Context, id string) error {
	d := m.discounts[id]
	d.Active = false
	m.discounts[id] = d
	return nil
}

func (m *mockDiscountRepo) AddStudent(ctx context.Context, discountID, studentID string) error {
	for _, existing := range m.assigned[discountID] {
		if existing == studentID {
			return nil
		}
	}
	m.assigned[discountID] = append(m.assigned[discountID], studentID)
	return nil
}

func (m *mockDiscountRepo) RemoveStudent(ctx context.Context, discountID, studentID string) error {
	kept := m.assigned[discountID][:0]
	for _, existing := range m.assigned[discountID] {
		if existing != studentID {
			kept = append(kept, existing)
		}
	}
	m.assigned[discountID] = kept
	return nil
}

func newDiscountFixture() (*mockDiscountRepo, *DiscountService) {
	repo := &mockDiscountRepo{
		discounts: map[string]models.Discount{
			"d1": {ID: "d1", Name: "Beca docente", Percentage: 30, Active: true},
		},
		assigned: map[string][]string{"d1": {"s1"}},
	}
	students := &mockStudentReader{students: map[string]*models.Student{
		"s1": {ID: "s1", Registro: "218045678", Active: true},
		"s2": {ID: "s2", Registro: "219012345", Active: true},
	}}
	svc := NewDiscountService(repo, students, validator.New(), zap.NewNop())
	return repo, svc
}

func TestDiscountServiceAssignStudent(t *testing.T) {
	repo, svc := newDiscountFixture()

	discount, err := svc.AssignStudent(context.Background(), "d1", "s2")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s2"}, discount.StudentIDs)
	assert.ElementsMatch(t, []string{"s1", "s2"}, repo.assigned["d1"])
}

func TestDiscountServiceAssignStudentIdempotent(t *testing.T) {
	repo, svc := newDiscountFixture()

	discount, err := svc.AssignStudent(context.Background(), "d1", "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, discount.StudentIDs)
	assert.Len(t, repo.assigned["d1"], 1)
}

func TestDiscountServiceAssignStudentUnknownStudent(t *testing.T) {
	_, svc := newDiscountFixture()

	_, err := svc.AssignStudent(context.Background(), "d1", "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDiscountServiceAssignStudentUnknownDiscount(t *testing.T) {
	_, svc := newDiscountFixture()

	_, err := svc.AssignStudent(context.Background(), "missing", "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDiscountServiceRevokeStudent(t *testing.T) {
	repo, svc := newDiscountFixture()

	discount, err := svc.RevokeStudent(context.Background(), "d1", "s1")
	require.NoError(t, err)
	assert.Empty(t, discount.StudentIDs)
	assert.Empty(t, repo.assigned["d1"])
}

func TestDiscountServiceUpdateReplacesAssignments(t *testing.T) {
	repo, svc := newDiscountFixture()

	discount, err := svc.Update(context.Background(), "d1", UpdateDiscountRequest{
		Name:       "Beca docente",
		Percentage: 40,
		StudentIDs: []string{"s2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 40.0, discount.Percentage)
	assert.Equal(t, []string{"s2"}, repo.assigned["d1"])
}
