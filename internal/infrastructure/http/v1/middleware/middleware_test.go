package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticValidator struct {
	user *appctx.UserContext
}

func (v staticValidator) ValidateToken(token string) (*appctx.UserContext, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return v.user, nil
}

func newEngine(user *appctx.UserContext, handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(), Trace(), ErrorHandler(), Auth(staticValidator{user: user}), Scope())
	r.GET("/x", handlers...)
	return r
}

func serve(r *gin.Engine, token string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func ok(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }

func TestAuth(t *testing.T) {
	r := newEngine(&appctx.UserContext{UserID: "u1"}, ok)

	w, body := serve(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperror.CodeUnauthorized, body["code"])

	w, _ = serve(r, "bad")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = serve(r, "good")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequirePermission(t *testing.T) {
	perm := security.PermissionClosePeriod

	w, body := serve(newEngine(&appctx.UserContext{UserID: "u1"}, RequirePermission(perm), ok), "good")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(perm), body["details"].(map[string]any)["permission"])

	w, _ = serve(newEngine(&appctx.UserContext{UserID: "u1", Permissions: []string{string(perm)}}, RequirePermission(perm), ok), "good")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = serve(newEngine(&appctx.UserContext{UserID: "root", IsAdmin: true}, RequirePermission(perm), ok), "good")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = serve(newEngine(&appctx.UserContext{UserID: "u1", Permissions: []string{string(security.PermissionReadReports)}},
		RequireAnyPermission(perm, security.PermissionReadReports), ok), "good")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestScope_ReachesHandlers(t *testing.T) {
	var scope *security.AccessScope
	r := newEngine(&appctx.UserContext{UserID: "u1", OrgIDs: []string{"org-1"}}, func(c *gin.Context) {
		scope = security.GetScope(c.Request.Context())
		ok(c)
	})

	w, _ := serve(r, "good")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, scope)
	assert.Equal(t, "u1", scope.UserID)
	assert.True(t, scope.CanAccessOrg("org-1"))
	assert.False(t, scope.CanAccessOrg("org-2"))
}

func TestErrorHandler_HidesInternalErrors(t *testing.T) {
	r := newEngine(&appctx.UserContext{UserID: "u1"}, func(c *gin.Context) {
		_ = c.Error(errors.New("pq: relation does not exist"))
	})

	w, body := serve(r, "good")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeInternal, body["code"])
	assert.NotContains(t, w.Body.String(), "relation")
	assert.Equal(t, w.Header().Get(HeaderRequestID), body["details"].(map[string]any)["request_id"])
}

func TestRecovery(t *testing.T) {
	r := newEngine(&appctx.UserContext{UserID: "u1"}, func(c *gin.Context) {
		panic("boom")
	})

	w, body := serve(r, "good")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeInternal, body["code"])
}

func TestTrace_EchoesRequestID(t *testing.T) {
	var requestID string
	r := newEngine(&appctx.UserContext{UserID: "u1"}, func(c *gin.Context) {
		requestID = appctx.GetRequestID(c.Request.Context())
		ok(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer good")
	req.Header.Set(HeaderRequestID, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", requestID)
	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
	assert.NotEmpty(t, w.Header().Get(HeaderTraceID))
}
