package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/surgicast/surgicast/internal/platform/auth"
)

const HeaderSessionID = "X-Session-ID"

type contextKey string

const sessionIDKey contextKey = "session_id"

// IDFromContext returns the dashboard session id bound by Middleware.
func IDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(sessionIDKey).(string)
	return sid
}

// WithID binds a dashboard session id to ctx.
func WithID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sid)
}

// Middleware binds the dashboard session named by X-Session-ID (minting one
// when absent), reconciles it with the authenticated identity and puts the
// resolved role on the request context. It must run after the JWT middleware.
func Middleware(store *Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sid := c.Request().Header.Get(HeaderSessionID)
			if sid == "" || len(sid) > 128 {
				sid = uuid.NewString()
			}
			c.Set("session_id", sid)
			c.Response().Header().Set(HeaderSessionID, sid)

			ctx := c.Request().Context()
			sess, err := store.Observe(ctx, sid, auth.IdentityFromContext(ctx))
			if err != nil {
				// The session is still usable without a role.
				store.logger.Warn().Err(err).Str("session_id", sid).Msg("session observe failed")
			}

			ctx = WithID(ctx, sid)
			if sess.Role != "" {
				ctx = auth.WithRole(ctx, sess.Role)
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
