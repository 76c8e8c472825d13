package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/uagrm-posgrado/admin-api/internal/models"
)

func performRBAC(t *testing.T, claims *models.JWTClaims, paramID string, allowed ...string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/resource/"+paramID, nil)
	c.Request = req
	if paramID != "" {
		c.Params = gin.Params{{Key: "id", Value: paramID}}
	}
	if claims != nil {
		c.Set(ContextUserKey, claims)
	}

	passed := false
	handlers := gin.HandlersChain{RBAC(allowed...), func(c *gin.Context) { passed = true }}
	for _, h := range handlers {
		if c.IsAborted() {
			break
		}
		h(c)
	}
	return w, passed
}

func TestRBACAllowsMatchingRole(t *testing.T) {
	_, passed := performRBAC(t, &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}, "x", string(models.RoleAdmin))
	assert.True(t, passed)
}

func TestRBACRejectsMissingClaims(t *testing.T) {
	w, passed := performRBAC(t, nil, "x", string(models.RoleAdmin))
	assert.False(t, passed)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRBACRejectsForbiddenRole(t *testing.T) {
	w, passed := performRBAC(t, &models.JWTClaims{UserID: "u1", Role: models.RoleStudent, StudentID: "st-1"}, "st-2", string(models.RoleAdmin))
	assert.False(t, passed)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACSelfMatchesOwnStudentID(t *testing.T) {
	_, passed := performRBAC(t, &models.JWTClaims{UserID: "u1", Role: models.RoleStudent, StudentID: "st-1"}, "st-1", string(models.RoleAdmin), "SELF")
	assert.True(t, passed)
}

func TestRBACSelfRejectsOtherStudent(t *testing.T) {
	w, passed := performRBAC(t, &models.JWTClaims{UserID: "u1", Role: models.RoleStudent, StudentID: "st-1"}, "st-2", string(models.RoleAdmin), "SELF")
	assert.False(t, passed)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
