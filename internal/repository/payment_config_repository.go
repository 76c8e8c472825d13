package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uagrm-posgrado/admin-api/internal/models"
	appErrors "github.com/uagrm-posgrado/admin-api/pkg/errors"
)

const paymentConfigColumns = `id, account_number, bank, holder, account_type, qr_url, notes, is_active, created_by, updated_by, created_at, updated_at`

// PaymentConfigRepository manages the payment configuration singleton.
type PaymentConfigRepository struct {
	db *sqlx.DB
}

// NewPaymentConfigRepository constructs a PaymentConfigRepository.
func NewPaymentConfigRepository(db *sqlx.DB) *PaymentConfigRepository {
	return &PaymentConfigRepository{db: db}
}

// FindActive returns the active configuration, or sql.ErrNoRows when none.
func (r *PaymentConfigRepository) FindActive(ctx context.Context) (*models.PaymentConfig, error) {
	query := fmt.Sprintf("SELECT %s FROM payment_config WHERE is_active LIMIT 1", paymentConfigColumns)
	var cfg models.PaymentConfig
	if err := r.db.GetContext(ctx, &cfg, query); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find active payment config: %w", err)
	}
	return &cfg, nil
}

// FindByID returns a configuration row by identifier.
func (r *PaymentConfigRepository) FindByID(ctx context.Context, id string) (*models.PaymentConfig, error) {
	query := fmt.Sprintf("SELECT %s FROM payment_config WHERE id = $1 LIMIT 1", paymentConfigColumns)
	var cfg models.PaymentConfig
	if err := r.db.GetContext(ctx, &cfg, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment config by id: %w", err)
	}
	return &cfg, nil
}

// Create inserts a configuration. The partial unique index on is_active
// rejects a second active row, so a concurrent create loses cleanly.
func (r *PaymentConfigRepository) Create(ctx context.Context, cfg *models.PaymentConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now
	const query = `INSERT INTO payment_config (id, account_number, bank, holder, account_type, qr_url, notes, is_active, created_by, updated_by, created_at, updated_at)
        VALUES (:id, :account_number, :bank, :holder, :account_type, :qr_url, :notes, :is_active, :created_by, :updated_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, cfg); err != nil {
		if isUniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrConflict, "an active payment configuration already exists")
		}
		return fmt.Errorf("create payment config: %w", err)
	}
	return nil
}

// Update modifies the stored configuration.
func (r *PaymentConfigRepository) Update(ctx context.Context, cfg *models.PaymentConfig) error {
	cfg.UpdatedAt = time.Now().UTC()
	const query = `UPDATE payment_config SET account_number = :account_number, bank = :bank, holder = :holder, account_type = :account_type, qr_url = :qr_url, notes = :notes, updated_by = :updated_by, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, cfg); err != nil {
		return fmt.Errorf("update payment config: %w", err)
	}
	return nil
}

// Deactivate retires a configuration, keeping the row for history.
func (r *PaymentConfigRepository) Deactivate(ctx context.Context, id, updatedBy string) error {
	const query = `UPDATE payment_config SET is_active = FALSE, updated_by = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, updatedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate payment config: %w", err)
	}
	return nil
}

// UpdateQR stores the uploaded QR image location.
func (r *PaymentConfigRepository) UpdateQR(ctx context.Context, id, qrURL, updatedBy string) error {
	const query = `UPDATE payment_config SET qr_url = $2, updated_by = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, qrURL, updatedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("update payment config qr: %w", err)
	}
	return nil
}
