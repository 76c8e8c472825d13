package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uagrm-posgrado/admin-api/internal/service"
	appErrors "github.com/uagrm-posgrado/admin-api/pkg/errors"
	"github.com/uagrm-posgrado/admin-api/pkg/response"
)

// PaymentConfigHandler exposes the payment configuration singleton.
type PaymentConfigHandler struct {
	config *service.PaymentConfigService
}

// NewPaymentConfigHandler constructs PaymentConfigHandler.
func NewPaymentConfigHandler(config *service.PaymentConfigService) *PaymentConfigHandler {
	return &PaymentConfigHandler{config: config}
}

// Get godoc
// @Summary Get active payment configuration
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /configuracion-pago [get]
func (h *PaymentConfigHandler) Get(c *gin.Context) {
	cfg, err := h.config.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// Create godoc
// @Summary Create payment configuration
// @Description Only one active configuration may exist at a time
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.CreatePaymentConfigRequest true "Configuration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /configuracion-pago [post]
func (h *PaymentConfigHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreatePaymentConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	cfg, err := h.config.Create(c.Request.Context(), req, claims.Username)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, cfg, nil)
}

// Update godoc
// @Summary Update payment configuration
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.UpdatePaymentConfigRequest true "Configuration payload"
// @Success 200 {object} response.Envelope
// @Router /configuracion-pago [put]
func (h *PaymentConfigHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdatePaymentConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	cfg, err := h.config.Update(c.Request.Context(), req, claims.Username)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// Delete godoc
// @Summary Deactivate payment configuration
// @Tags Payments
// @Produce json
// @Success 204
// @Router /configuracion-pago [delete]
func (h *PaymentConfigHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.config.Delete(c.Request.Context(), claims.Username); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadQR godoc
// @Summary Upload payment QR image
// @Tags Payments
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "QR image (JPEG, PNG or WEBP)"
// @Success 200 {object} response.Envelope
// @Router /configuracion-pago/qr [put]
func (h *PaymentConfigHandler) UploadQR(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	file, cleanup, err := fileFromForm(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer cleanup()

	cfg, err := h.config.UploadQR(c.Request.Context(), file, claims.Username)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}
