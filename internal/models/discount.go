package models

import "time"

// Discount is an admin-managed percentage discount assignable to students.
type Discount struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"nombre"`
	Percentage float64   `db:"percentage" json:"porcentaje"`
	Active     bool      `db:"active" json:"activo"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`

	// IDs of students the discount is assigned to (discount_students).
	StudentIDs []string `db:"-" json:"estudiantes_ids"`
}

// DiscountFilter captures list filters for discounts.
type DiscountFilter struct {
	Active   *bool
	Search   string
	Page     int
	PageSize int
}
