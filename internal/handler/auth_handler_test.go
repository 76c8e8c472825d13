package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uagrm-posgrado/admin-api/internal/middleware"
	"github.com/uagrm-posgrado/admin-api/internal/models"
	"github.com/uagrm-posgrado/admin-api/internal/service"
)

func TestAuthHandlerLoginInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&service.AuthService{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Login(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerLogoutWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&service.AuthService{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(map[string]string{"refresh_token": "abc"})
	req, _ := http.NewRequest(http.MethodPost, "/auth/logout", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Logout(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerChangePasswordWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&service.AuthService{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(service.ChangePasswordRequest{OldPassword: "old", NewPassword: "newpassword"})
	req, _ := http.NewRequest(http.MethodPut, "/auth/password", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.ChangePassword(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerMeReturnsPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&service.AuthService{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/auth/me", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{
		UserID:    "s1",
		Username:  "220045678",
		Role:      models.RoleStudent,
		StudentID: "st-1",
	})

	handler.Me(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.Principal `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "s1", envelope.Data.ID)
	assert.Equal(t, models.RoleStudent, envelope.Data.Role)
	assert.Equal(t, "st-1", envelope.Data.StudentID)
}
