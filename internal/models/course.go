package models

import "time"

// Course represents a postgraduate course offering with tiered pricing.
type Course struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"nombre"`
	Modality      string    `db:"modality" json:"modalidad"`
	PriceInternal float64   `db:"price_internal" json:"precio_interno"`
	PriceExternal float64   `db:"price_external" json:"precio_externo"`
	DiscountPct   float64   `db:"discount_pct" json:"descuento_pct"`
	Active        bool      `db:"active" json:"activo"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`

	// Requisito templates defined by the course, ordered by position.
	// Copied into every new enrollment; loaded from a child table.
	RequisitoTemplates []RequisitoTemplate `db:"-" json:"requisitos"`
}

// RequisitoTemplate declares a document the course demands from enrollees.
type RequisitoTemplate struct {
	CourseID    string `db:"course_id" json:"-"`
	Position    int    `db:"position" json:"-"`
	Description string `db:"description" json:"descripcion"`
}

// PriceFor returns the base price for a student type.
func (c *Course) PriceFor(t StudentType) float64 {
	if t == StudentInternal {
		return c.PriceInternal
	}
	return c.PriceExternal
}

// CourseFilter captures list filters for courses.
type CourseFilter struct {
	Search   string
	Active   *bool
	Page     int
	PageSize int
}

// CourseStudentReport is one roster row of the per-course financial report.
type CourseStudentReport struct {
	StudentID    string           `db:"student_id" json:"estudiante_id"`
	Registro     string           `db:"registro" json:"registro"`
	FullName     string           `db:"full_name" json:"nombre"`
	Carnet       *string          `db:"carnet" json:"carnet,omitempty"`
	Phone        *string          `db:"phone" json:"celular,omitempty"`
	Email        *string          `db:"email" json:"email,omitempty"`
	Type         StudentType      `db:"student_type" json:"tipo_estudiante"`
	EnrolledAt   time.Time        `db:"enrolled_at" json:"fecha_inscripcion"`
	Status       EnrollmentStatus `db:"status" json:"estado"`
	TotalPayable float64          `db:"total_payable" json:"total_a_pagar"`
	AmountPaid   float64          `db:"amount_paid" json:"monto_pagado"`
	Balance      float64          `db:"balance" json:"saldo"`
	ProgressPct  float64          `db:"-" json:"avance_pct"`
}
