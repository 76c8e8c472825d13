package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/uagrm-posgrado/admin-api/internal/models"
	"github.com/uagrm-posgrado/admin-api/internal/service"
	appErrors "github.com/uagrm-posgrado/admin-api/pkg/errors"
	"github.com/uagrm-posgrado/admin-api/pkg/response"
)

// EnrollmentHandler exposes enrollment and requisito endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	requisitos  *service.RequisitoService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService, requisitos *service.RequisitoService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, requisitos: requisitos}
}

// List godoc
// @Summary List enrollments
// @Description Students only see their own enrollments regardless of filters
// @Tags Enrollments
// @Produce json
// @Param estudiante_id query string false "Filter by student"
// @Param curso_id query string false "Filter by course"
// @Param estado query string false "Filter by status"
// @Param search query string false "Search by student name or registro"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /inscripciones [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	var filter models.EnrollmentFilter
	filter.StudentID = c.Query("estudiante_id")
	filter.CourseID = c.Query("curso_id")
	filter.Status = models.EnrollmentStatus(c.Query("estado"))
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	if claims := claimsFromContext(c); claims.IsStudent() {
		filter.StudentID = claims.StudentID
	}

	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// ListByStudent godoc
// @Summary List enrollments of a student
// @Tags Enrollments
// @Produce json
// @Param id path string true "Student ID"
// @Param estado query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /inscripciones/estudiante/{id} [get]
func (h *EnrollmentHandler) ListByStudent(c *gin.Context) {
	filter := pageFilter(c)
	enrollments, pagination, err := h.enrollments.ListByStudent(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// ListByCourse godoc
// @Summary List enrollments of a course
// @Tags Enrollments
// @Produce json
// @Param id path string true "Course ID"
// @Param estado query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /inscripciones/curso/{id} [get]
func (h *EnrollmentHandler) ListByCourse(c *gin.Context) {
	filter := pageFilter(c)
	enrollments, pagination, err := h.enrollments.ListByCourse(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

func pageFilter(c *gin.Context) models.EnrollmentFilter {
	var filter models.EnrollmentFilter
	filter.Status = models.EnrollmentStatus(c.Query("estado"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	return filter
}

// Get godoc
// @Summary Get enrollment detail
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /inscripciones/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	enrollment, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if claims := claimsFromContext(c); claims.IsStudent() && claims.StudentID != enrollment.StudentID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Create godoc
// @Summary Create enrollment
// @Description Enroll a student into a course, snapshotting price and requisitos
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.CreateEnrollmentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /inscripciones [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.Create(c.Request.Context(), req, claims.Username)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, enrollment, nil)
}

// UpdateDiscount godoc
// @Summary Set or clear the custom discount
// @Description Replaces the course discount for this enrollment and recomputes the total
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.UpdateEnrollmentDiscountRequest true "Discount payload"
// @Success 200 {object} response.Envelope
// @Router /inscripciones/{id}/descuento [put]
func (h *EnrollmentHandler) UpdateDiscount(c *gin.Context) {
	var req service.UpdateEnrollmentDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.UpdateDiscount(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// ChangeStatus godoc
// @Summary Change enrollment status
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.ChangeEnrollmentStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /inscripciones/{id}/estado [put]
func (h *EnrollmentHandler) ChangeStatus(c *gin.Context) {
	var req service.ChangeEnrollmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.ChangeStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Requisitos godoc
// @Summary Requisito checklist summary
// @Tags Requisitos
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /inscripciones/{id}/requisitos [get]
func (h *EnrollmentHandler) Requisitos(c *gin.Context) {
	summary, err := h.requisitos.Summary(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// UploadRequisito godoc
// @Summary Upload requisito document
// @Description Attach a PDF or image to the requisito at the given position
// @Tags Requisitos
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param index path int true "Requisito position"
// @Param file formData file true "Document (PDF, JPEG, PNG or WEBP)"
// @Success 200 {object} response.Envelope
// @Router /inscripciones/{id}/requisitos/{index} [put]
func (h *EnrollmentHandler) UploadRequisito(c *gin.Context) {
	position, err := strconv.Atoi(c.Param("index"))
	if err != nil || position < 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid requisito position"))
		return
	}
	file, cleanup, err := fileFromForm(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer cleanup()

	requisito, err := h.requisitos.Upload(c.Request.Context(), c.Param("id"), position, file, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requisito, nil)
}

// ApproveRequisito godoc
// @Summary Approve requisito
// @Tags Requisitos
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param index path int true "Requisito position"
// @Success 200 {object} response.Envelope
// @Router /inscripciones/{id}/requisitos/{index}/aprobar [put]
func (h *EnrollmentHandler) ApproveRequisito(c *gin.Context) {
	position, err := strconv.Atoi(c.Param("index"))
	if err != nil || position < 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid requisito position"))
		return
	}
	requisito, err := h.requisitos.Approve(c.Request.Context(), c.Param("id"), position, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requisito, nil)
}

// RejectRequisito godoc
// @Summary Reject requisito
// @Tags Requisitos
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param index path int true "Requisito position"
// @Param payload body service.RejectRequisitoRequest true "Rejection payload"
// @Success 200 {object} response.Envelope
// @Router /inscripciones/{id}/requisitos/{index}/rechazar [put]
func (h *EnrollmentHandler) RejectRequisito(c *gin.Context) {
	position, err := strconv.Atoi(c.Param("index"))
	if err != nil || position < 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid requisito position"))
		return
	}
	var req service.RejectRequisitoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	requisito, err := h.requisitos.Reject(c.Request.Context(), c.Param("id"), position, req.Reason, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requisito, nil)
}
