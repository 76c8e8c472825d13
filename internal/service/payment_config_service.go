package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uagrm-posgrado/admin-api/internal/models"
	appErrors "github.com/uagrm-posgrado/admin-api/pkg/errors"
	"github.com/uagrm-posgrado/admin-api/pkg/storage"
)

const paymentConfigCacheKey = "payment_config:active"

type paymentConfigRepository interface {
	FindActive(ctx context.Context) (*models.PaymentConfig, error)
	FindByID(ctx context.Context, id string) (*models.PaymentConfig, error)
	Create(ctx context.Context, cfg *models.PaymentConfig) error
	Update(ctx context.Context, cfg *models.PaymentConfig) error
	Deactivate(ctx context.Context, id, updatedBy string) error
	UpdateQR(ctx context.Context, id, qrURL, updatedBy string) error
}

// CreatePaymentConfigRequest creates the payment configuration.
type CreatePaymentConfigRequest struct {
	AccountNumber string  `json:"numero_cuenta" validate:"required"`
	Bank          *string `json:"banco"`
	Holder        *string `json:"titular"`
	AccountType   *string `json:"tipo_cuenta"`
	Notes         *string `json:"notas"`
}

// UpdatePaymentConfigRequest partially updates the configuration. Nil fields
// are left untouched.
type UpdatePaymentConfigRequest struct {
	AccountNumber *string `json:"numero_cuenta"`
	Bank          *string `json:"banco"`
	Holder        *string `json:"titular"`
	AccountType   *string `json:"tipo_cuenta"`
	Notes         *string `json:"notas"`
}

// PaymentConfigService manages the payment configuration singleton. The
// active configuration is cached since every student consults it.
type PaymentConfigService struct {
	repo      paymentConfigRepository
	cache     *CacheService
	store     storage.DocumentStore
	limits    storage.Limits
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentConfigService constructs PaymentConfigService.
func NewPaymentConfigService(repo paymentConfigRepository, cache *CacheService, store storage.DocumentStore, limits storage.Limits, validate *validator.Validate, logger *zap.Logger) *PaymentConfigService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentConfigService{repo: repo, cache: cache, store: store, limits: limits, validator: validate, logger: logger}
}

// Get returns the active configuration, serving from cache when possible.
func (s *PaymentConfigService) Get(ctx context.Context) (*models.PaymentConfig, error) {
	var cached models.PaymentConfig
	if hit, _ := s.cache.Get(ctx, paymentConfigCacheKey, &cached); hit {
		return &cached, nil
	}

	cfg, err := s.repo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment configuration not set")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment configuration")
	}
	if err := s.cache.Set(ctx, paymentConfigCacheKey, cfg, 0); err != nil {
		s.logger.Warn("failed to cache payment configuration", zap.Error(err))
	}
	return cfg, nil
}

// Create sets up the configuration. Only one active configuration may exist;
// a second create is rejected.
func (s *PaymentConfigService) Create(ctx context.Context, req CreatePaymentConfigRequest, createdBy string) (*models.PaymentConfig, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment configuration payload")
	}

	if _, err := s.repo.FindActive(ctx); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an active payment configuration already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check payment configuration")
	}

	cfg := &models.PaymentConfig{
		AccountNumber: req.AccountNumber,
		Bank:          req.Bank,
		Holder:        req.Holder,
		AccountType:   req.AccountType,
		Notes:         req.Notes,
		IsActive:      true,
		CreatedBy:     &createdBy,
	}
	if err := s.repo.Create(ctx, cfg); err != nil {
		var typed *appErrors.Error
		if errors.As(err, &typed) {
			return nil, typed
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment configuration")
	}
	s.invalidate(ctx)
	s.logger.Info("payment configuration created", zap.String("configId", cfg.ID))
	return cfg, nil
}

// Update partially modifies the active configuration.
func (s *PaymentConfigService) Update(ctx context.Context, req UpdatePaymentConfigRequest, updatedBy string) (*models.PaymentConfig, error) {
	cfg, err := s.repo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment configuration not set")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment configuration")
	}

	if req.AccountNumber != nil {
		if *req.AccountNumber == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "account number cannot be empty")
		}
		cfg.AccountNumber = *req.AccountNumber
	}
	if req.Bank != nil {
		cfg.Bank = req.Bank
	}
	if req.Holder != nil {
		cfg.Holder = req.Holder
	}
	if req.AccountType != nil {
		cfg.AccountType = req.AccountType
	}
	if req.Notes != nil {
		cfg.Notes = req.Notes
	}
	cfg.UpdatedBy = &updatedBy

	if err := s.repo.Update(ctx, cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment configuration")
	}
	s.invalidate(ctx)
	return cfg, nil
}

// Delete retires the active configuration.
func (s *PaymentConfigService) Delete(ctx context.Context, updatedBy string) error {
	cfg, err := s.repo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment configuration not set")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment configuration")
	}
	if err := s.repo.Deactivate(ctx, cfg.ID, updatedBy); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate payment configuration")
	}
	s.invalidate(ctx)
	s.logger.Info("payment configuration deactivated", zap.String("configId", cfg.ID))
	return nil
}

// UploadQR stores the payment QR image and records its URL.
func (s *PaymentConfigService) UploadQR(ctx context.Context, file storage.File, updatedBy string) (*models.PaymentConfig, error) {
	cfg, err := s.repo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment configuration not set")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment configuration")
	}
	if _, err := storage.ClassifyImage(file.ContentType, file.Size, s.limits); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("qr_%s", cfg.ID)
	url, err := s.store.Store(ctx, file, "pagos", name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store QR image")
	}
	previous := cfg.QRURL
	if err := s.repo.UpdateQR(ctx, cfg.ID, url, updatedBy); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record QR image")
	}
	if previous != nil && *previous != url {
		if !s.store.Delete(ctx, *previous) {
			s.logger.Warn("previous QR image not removed", zap.String("url", *previous))
		}
	}
	s.invalidate(ctx)

	cfg.QRURL = &url
	cfg.UpdatedBy = &updatedBy
	return cfg, nil
}

func (s *PaymentConfigService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, paymentConfigCacheKey); err != nil {
		s.logger.Warn("failed to invalidate payment configuration cache", zap.Error(err))
	}
}
