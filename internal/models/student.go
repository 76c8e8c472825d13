package models

import "time"

// StudentType determines which course price tier applies.
type StudentType string

const (
	StudentInternal StudentType = "INTERNAL"
	StudentExternal StudentType = "EXTERNAL"
)

// Student represents a person who can enroll in postgraduate courses.
// The registro number doubles as the login credential.
type Student struct {
	ID              string      `db:"id" json:"id"`
	Registro        string      `db:"registro" json:"registro"`
	PasswordHash    string      `db:"password_hash" json:"-"`
	FullName        string      `db:"full_name" json:"nombre"`
	Email           *string     `db:"email" json:"email,omitempty"`
	Carnet          *string     `db:"carnet" json:"carnet,omitempty"`
	CarnetExtension *string     `db:"carnet_extension" json:"extension,omitempty"`
	Phone           *string     `db:"phone" json:"celular,omitempty"`
	Address         *string     `db:"address" json:"domicilio,omitempty"`
	BirthDate       *time.Time  `db:"birth_date" json:"fecha_nacimiento,omitempty"`
	PhotoURL        *string     `db:"photo_url" json:"foto_url,omitempty"`
	Type            StudentType `db:"student_type" json:"tipo_estudiante"`
	Active          bool        `db:"active" json:"activo"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search   string
	Type     *StudentType
	Active   *bool
	CourseID string
	Page     int
	PageSize int
}
