package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"marketplace-backend/pkg/errutil"
)

// Headers the auth edge injects after validating the client token. Token
// validation itself lives in front of this service; by the time a request
// lands here the triple is trusted.
const (
	headerAppID         = "X-App-Id"
	headerAppUserID     = "X-App-User-Id"
	headerDeviceID      = "X-Device-Id"
	headerWalletAddress = "X-Wallet-Address"
)

// Caller is the validated request identity. It travels by explicit value,
// never through package-level state.
type Caller struct {
	AppID         string
	UserID        string
	DeviceID      string
	WalletAddress string
}

type callerKey struct{}

// WithCaller returns a context carrying the caller.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFromContext returns the caller set by the auth middleware.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

// CallerFromGin returns the caller attached by Auth. Handlers behind Auth may
// assume it is present; the zero value only appears in unauthenticated tests.
func CallerFromGin(c *gin.Context) Caller {
	caller, _ := CallerFromContext(c.Request.Context())
	return caller
}

// Auth extracts the validated caller triple from request headers and aborts
// with 401 when it is incomplete.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := Caller{
			AppID:         c.GetHeader(headerAppID),
			UserID:        c.GetHeader(headerAppUserID),
			DeviceID:      c.GetHeader(headerDeviceID),
			WalletAddress: c.GetHeader(headerWalletAddress),
		}

		if caller.AppID == "" || caller.UserID == "" || caller.DeviceID == "" {
			err := errutil.Unauthorized("missing caller identity")
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(WithCaller(c.Request.Context(), caller))
		c.Next()
	}
}
