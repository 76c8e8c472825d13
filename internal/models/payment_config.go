package models

import "time"

// PaymentConfig holds the bank account and QR students pay against.
// Singleton: at most one row may have is_active=true, enforced by a partial
// unique index in addition to the service-level check. Deactivated rows are
// kept for audit history.
type PaymentConfig struct {
	ID            string    `db:"id" json:"id"`
	AccountNumber string    `db:"account_number" json:"numero_cuenta"`
	Bank          *string   `db:"bank" json:"banco,omitempty"`
	Holder        *string   `db:"holder" json:"titular,omitempty"`
	AccountType   *string   `db:"account_type" json:"tipo_cuenta,omitempty"`
	QRURL         *string   `db:"qr_url" json:"qr_url,omitempty"`
	Notes         *string   `db:"notes" json:"notas,omitempty"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	CreatedBy     *string   `db:"created_by" json:"creado_por,omitempty"`
	UpdatedBy     *string   `db:"updated_by" json:"actualizado_por,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
