package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentPendingPayment EnrollmentStatus = "PENDING_PAYMENT"
	EnrollmentActive         EnrollmentStatus = "ACTIVE"
	EnrollmentCompleted      EnrollmentStatus = "COMPLETED"
	EnrollmentCancelled      EnrollmentStatus = "CANCELLED"
)

// legalTransitions maps each status to the statuses reachable from it.
// COMPLETED and CANCELLED are terminal.
var legalTransitions = map[EnrollmentStatus][]EnrollmentStatus{
	EnrollmentPendingPayment: {EnrollmentActive, EnrollmentCancelled},
	EnrollmentActive:         {EnrollmentCompleted, EnrollmentCancelled},
	EnrollmentCompleted:      {},
	EnrollmentCancelled:      {},
}

// ValidStatus reports whether s is a known enrollment status.
func ValidStatus(s EnrollmentStatus) bool {
	_, ok := legalTransitions[s]
	return ok
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to EnrollmentStatus) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Enrollment is the record of a student's registration in a course. Pricing
// is snapshotted at creation; the total is recomputed only when an admin
// changes the custom discount.
type Enrollment struct {
	ID                string           `db:"id" json:"id"`
	StudentID         string           `db:"student_id" json:"estudiante_id"`
	CourseID          string           `db:"course_id" json:"curso_id"`
	EnrolledAt        time.Time        `db:"enrolled_at" json:"fecha_inscripcion"`
	Status            EnrollmentStatus `db:"status" json:"estado"`
	BasePrice         float64          `db:"base_price" json:"precio_base"`
	CourseDiscountPct float64          `db:"course_discount_pct" json:"descuento_curso"`
	CustomDiscountPct *float64         `db:"custom_discount_pct" json:"descuento_personalizado,omitempty"`
	TotalPayable      float64          `db:"total_payable" json:"total_a_pagar"`
	AmountPaid        float64          `db:"amount_paid" json:"monto_pagado"`
	Balance           float64          `db:"balance" json:"saldo"`
	CreatedBy         string           `db:"created_by" json:"creado_por"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`

	// Ordered requisito checklist, loaded from enrollment_requisitos.
	Requisitos []Requisito `db:"-" json:"requisitos,omitempty"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName     string `db:"student_name" json:"estudiante_nombre"`
	StudentRegistro string `db:"student_registro" json:"estudiante_registro"`
	CourseName      string `db:"course_name" json:"curso_nombre"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Status    EnrollmentStatus
	Search    string
	Page      int
	PageSize  int
}

// RequisitoStatus tracks a single document requirement through review.
type RequisitoStatus string

// Requisito workflow states.
const (
	RequisitoPending  RequisitoStatus = "PENDING"
	RequisitoInReview RequisitoStatus = "IN_REVIEW"
	RequisitoApproved RequisitoStatus = "APPROVED"
	RequisitoRejected RequisitoStatus = "REJECTED"
)

// Requisito is one document requirement of an enrollment, addressed by its
// position. Rows live in enrollment_requisitos; the set is fixed at
// enrollment creation, only the embedded review state mutates.
type Requisito struct {
	EnrollmentID string          `db:"enrollment_id" json:"-"`
	Position     int             `db:"position" json:"-"`
	Description  string          `db:"description" json:"descripcion"`
	Status       RequisitoStatus `db:"status" json:"estado"`
	DocumentURL  *string         `db:"document_url" json:"url,omitempty"`
	RejectReason *string         `db:"reject_reason" json:"motivo_rechazo,omitempty"`
	ReviewedBy   *string         `db:"reviewed_by" json:"revisado_por,omitempty"`
	UploadedAt   *time.Time      `db:"uploaded_at" json:"fecha_subida,omitempty"`
}

// RequisitoSummary aggregates an enrollment's checklist for completion
// tracking.
type RequisitoSummary struct {
	Total      int         `json:"total"`
	Pending    int         `json:"pendientes"`
	InReview   int         `json:"en_proceso"`
	Approved   int         `json:"aprobados"`
	Rejected   int         `json:"rechazados"`
	Requisitos []Requisito `json:"requisitos"`
}

// Summarize builds the per-state counts over an ordered requisito list.
func Summarize(requisitos []Requisito) RequisitoSummary {
	summary := RequisitoSummary{Total: len(requisitos), Requisitos: requisitos}
	for _, r := range requisitos {
		switch r.Status {
		case RequisitoPending:
			summary.Pending++
		case RequisitoInReview:
			summary.InReview++
		case RequisitoApproved:
			summary.Approved++
		case RequisitoRejected:
			summary.Rejected++
		}
	}
	return summary
}
