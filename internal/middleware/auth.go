package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/book-market-backend/internal/reqctx"
	"go.uber.org/zap"
)

// DebugUIDHeader names the acting customer when authentication is disabled.
const DebugUIDHeader = "X-Debug-UID"

// TokenVerifier is satisfied by *auth.Client.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type AuthMiddleware struct {
	verifier   TokenVerifier
	authClient *auth.Client
	logger     *zap.Logger
}

func NewAuthMiddleware(ctx context.Context, projectID string, logger *zap.Logger) (*AuthMiddleware, error) {
	if projectID == "" {
		return nil, errors.New("FIREBASE_PROJECT_ID is not set")
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return &AuthMiddleware{verifier: client, authClient: client, logger: logger}, nil
}

// NewAuthMiddlewareWithVerifier is used by tests and by callers that already hold a client.
func NewAuthMiddlewareWithVerifier(v TokenVerifier, logger *zap.Logger) *AuthMiddleware {
	m := &AuthMiddleware{verifier: v, logger: logger}
	if c, ok := v.(*auth.Client); ok {
		m.authClient = c
	}
	return m
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authz := c.Request().Header.Get("Authorization")
		if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}
		tokenStr := strings.TrimPrefix(authz, "Bearer ")
		token, err := m.verifier.VerifyIDToken(c.Request().Context(), tokenStr)
		if err != nil {
			m.logger.Debug("id token rejected", zap.String("rid", reqctx.RID(c.Request().Context())), zap.Error(err))
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
		}
		setUID(c, token.UID)
		return next(c)
	}
}

// Client returns the Firebase client, or nil when built from a plain verifier.
func (m *AuthMiddleware) Client() *auth.Client {
	return m.authClient
}

// DevAuth trusts the X-Debug-UID header. Only for local development with AUTH_DISABLED=true.
func DevAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		uid := strings.TrimSpace(c.Request().Header.Get(DebugUIDHeader))
		if uid == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}
		setUID(c, uid)
		return next(c)
	}
}

func setUID(c echo.Context, uid string) {
	c.Set("uid", uid)
	req := c.Request()
	c.SetRequest(req.WithContext(reqctx.WithUID(req.Context(), uid)))
}
