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

// DiscountHandler exposes discount endpoints.
type DiscountHandler struct {
	discounts *service.DiscountService
}

// NewDiscountHandler constructs DiscountHandler.
func NewDiscountHandler(discounts *service.DiscountService) *DiscountHandler {
	return &DiscountHandler{discounts: discounts}
}

// List godoc
// @Summary List discounts
// @Tags Discounts
// @Produce json
// @Param search query string false "Search by name"
// @Param active query bool false "Filter by active state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /descuentos [get]
func (h *DiscountHandler) List(c *gin.Context) {
	var filter models.DiscountFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if active := c.Query("active"); active != "" {
		if active == "true" {
			v := true
			filter.Active = &v
		} else if active == "false" {
			v := false
			filter.Active = &v
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	discounts, pagination, err := h.discounts.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discounts, pagination)
}

// Get godoc
// @Summary Get discount detail
// @Tags Discounts
// @Produce json
// @Param id path string true "Discount ID"
// @Success 200 {object} response.Envelope
// @Router /descuentos/{id} [get]
func (h *DiscountHandler) Get(c *gin.Context) {
	discount, err := h.discounts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discount, nil)
}

// Create godoc
// @Summary Create discount
// @Tags Discounts
// @Accept json
// @Produce json
// @Param payload body service.CreateDiscountRequest true "Discount payload"
// @Success 201 {object} response.Envelope
// @Router /descuentos [post]
func (h *DiscountHandler) Create(c *gin.Context) {
	var req service.CreateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	discount, err := h.discounts.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, discount, nil)
}

// Update godoc
// @Summary Update discount
// @Tags Discounts
// @Accept json
// @Produce json
// @Param id path string true "Discount ID"
// @Param payload body service.UpdateDiscountRequest true "Discount payload"
// @Success 200 {object} response.Envelope
// @Router /descuentos/{id} [put]
func (h *DiscountHandler) Update(c *gin.Context) {
	var req service.UpdateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	discount, err := h.discounts.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discount, nil)
}

// AssignStudent godoc
// @Summary Assign discount to a student
// @Tags Discounts
// @Produce json
// @Param id path string true "Discount ID"
// @Param student_id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /descuentos/{id}/estudiantes/{student_id} [post]
func (h *DiscountHandler) AssignStudent(c *gin.Context) {
	discount, err := h.discounts.AssignStudent(c.Request.Context(), c.Param("id"), c.Param("student_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discount, nil)
}

// RevokeStudent godoc
// @Summary Revoke discount from a student
// @Tags Discounts
// @Produce json
// @Param id path string true "Discount ID"
// @Param student_id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /descuentos/{id}/estudiantes/{student_id} [delete]
func (h *DiscountHandler) RevokeStudent(c *gin.Context) {
	discount, err := h.discounts.RevokeStudent(c.Request.Context(), c.Param("id"), c.Param("student_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discount, nil)
}

// Delete godoc
// @Summary Deactivate discount
// @Tags Discounts
// @Produce json
// @Param id path string true "Discount ID"
// @Success 204
// @Router /descuentos/{id} [delete]
func (h *DiscountHandler) Delete(c *gin.Context) {
	if err := h.discounts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
