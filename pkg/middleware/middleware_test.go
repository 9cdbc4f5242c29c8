package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"marketplace-backend/pkg/errutil"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Error())
	return r
}

func TestAuth_SetsCaller(t *testing.T) {
	r := newTestRouter()

	var got Caller
	r.GET("/probe", Auth(), func(c *gin.Context) {
		got = CallerFromGin(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(headerAppID, "app-1")
	req.Header.Set(headerAppUserID, "user-1")
	req.Header.Set(headerDeviceID, "device-1")
	req.Header.Set(headerWalletAddress, "wallet-1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, Caller{
		AppID:         "app-1",
		UserID:        "user-1",
		DeviceID:      "device-1",
		WalletAddress: "wallet-1",
	}, got)
}

func TestAuth_RejectsIncompleteIdentity(t *testing.T) {
	r := newTestRouter()
	r.GET("/probe", Auth(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(headerAppID, "app-1") // user and device missing

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "UNAUTHORIZED")
}

func TestErrorMiddleware_RendersBaseError(t *testing.T) {
	r := newTestRouter()
	r.GET("/conflict", func(c *gin.Context) {
		c.Error(errutil.Conflict("offer capacity exhausted"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conflict", nil))

	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), "offer capacity exhausted")
	require.Contains(t, w.Body.String(), "CONFLICT")
}

func TestErrorMiddleware_UnknownErrorIs500(t *testing.T) {
	r := newTestRouter()
	r.GET("/boom", func(c *gin.Context) {
		c.Error(http.ErrServerClosed)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCallerFromContext_Absent(t *testing.T) {
	_, ok := CallerFromContext(t.Context())
	require.False(t, ok)
}
