package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uagrm-posgrado/admin-api/internal/models"
	appErrors "github.com/uagrm-posgrado/admin-api/pkg/errors"
	"github.com/uagrm-posgrado/admin-api/pkg/storage"
)

type mockPaymentConfigRepo struct {
	active      *models.PaymentConfig
	deactivated string
	qrURL       string
}

func (m *mockPaymentConfigRepo) FindActive(ctx context.Context) (*models.PaymentConfig, error) {
	if m.active == nil {
		return nil, sql.ErrNoRows
	}
	cfg := *m.active
	return &cfg, nil
}

func (m *mockPaymentConfigRepo) FindByID(ctx context.Context, id string) (*models.PaymentConfig, error) {
	if m.active != nil && m.active.ID == id {
		cfg := *m.active
		return &cfg, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentConfigRepo) Create(ctx context.Context, cfg *models.PaymentConfig) error {
	cfg.ID = "cfg-1"
	m.active = cfg
	return nil
}

func (m *mockPaymentConfigRepo) Update(ctx context.Context, cfg *models.PaymentConfig) error {
	m.active = cfg
	return nil
}

func (m *mockPaymentConfigRepo) Deactivate(ctx context.Context, id, updatedBy string) error {
	m.deactivated = id
	m.active = nil
	return nil
}

func (m *mockPaymentConfigRepo) UpdateQR(ctx context.Context, id, qrURL, updatedBy string) error {
	m.qrURL = qrURL
	return nil
}

func paymentConfigFixture() (*mockPaymentConfigRepo, *mockDocumentStore, *PaymentConfigService) {
	repo := &mockPaymentConfigRepo{}
	store := &mockDocumentStore{}
	cache := NewCacheService(nil, nil, 0, zap.NewNop(), false)
	limits := storage.Limits{MaxImageBytes: 5 << 20, MaxPDFBytes: 10 << 20}
	svc := NewPaymentConfigService(repo, cache, store, limits, validator.New(), zap.NewNop())
	return repo, store, svc
}

func TestPaymentConfigServiceCreate(t *testing.T) {
	repo, _, svc := paymentConfigFixture()

	cfg, err := svc.Create(context.Background(), CreatePaymentConfigRequest{AccountNumber: "100-200-300"}, "admin")
	require.NoError(t, err)
	assert.True(t, cfg.IsActive)
	assert.Equal(t, "100-200-300", repo.active.AccountNumber)
}

func TestPaymentConfigServiceCreateRejectsSecond(t *testing.T) {
	repo, _, svc := paymentConfigFixture()
	repo.active = &models.PaymentConfig{ID: "cfg-1", AccountNumber: "100", IsActive: true}

	_, err := svc.Create(context.Background(), CreatePaymentConfigRequest{AccountNumber: "200"}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestPaymentConfigServiceGetWithoutConfig(t *testing.T) {
	_, _, svc := paymentConfigFixture()

	_, err := svc.Get(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPaymentConfigServiceUpdatePartial(t *testing.T) {
	repo, _, svc := paymentConfigFixture()
	bank := "Banco Union"
	repo.active = &models.PaymentConfig{ID: "cfg-1", AccountNumber: "100", Bank: &bank, IsActive: true}

	holder := "UAGRM Posgrado"
	cfg, err := svc.Update(context.Background(), UpdatePaymentConfigRequest{Holder: &holder}, "admin")
	require.NoError(t, err)
	assert.Equal(t, "100", cfg.AccountNumber)
	require.NotNil(t, cfg.Bank)
	assert.Equal(t, "Banco Union", *cfg.Bank)
	require.NotNil(t, cfg.Holder)
	assert.Equal(t, "UAGRM Posgrado", *cfg.Holder)
}

func TestPaymentConfigServiceUploadQR(t *testing.T) {
	repo, store, svc := paymentConfigFixture()
	repo.active = &models.PaymentConfig{ID: "cfg-1", AccountNumber: "100", IsActive: true}

	file := storage.File{Reader: strings.NewReader("png"), Size: 1024, ContentType: "image/png"}
	cfg, err := svc.UploadQR(context.Background(), file, "admin")
	require.NoError(t, err)
	require.NotNil(t, cfg.QRURL)
	assert.Equal(t, 1, store.stored)
	assert.Equal(t, *cfg.QRURL, repo.qrURL)
}

func TestPaymentConfigServiceUploadQRRejectsPDF(t *testing.T) {
	repo, _, svc := paymentConfigFixture()
	repo.active = &models.PaymentConfig{ID: "cfg-1", AccountNumber: "100", IsActive: true}

	file := storage.File{Reader: strings.NewReader("%PDF"), Size: 1024, ContentType: "application/pdf"}
	_, err := svc.UploadQR(context.Background(), file, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnsupportedMedia.Code, appErrors.FromError(err).Code)
}

func TestPaymentConfigServiceDelete(t *testing.T) {
	repo, _, svc := paymentConfigFixture()
	repo.active = &models.PaymentConfig{ID: "cfg-1", AccountNumber: "100", IsActive: true}

	require.NoError(t, svc.Delete(context.Background(), "admin"))
	assert.Equal(t, "cfg-1", repo.deactivated)

	err := svc.Delete(context.Background(), "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
