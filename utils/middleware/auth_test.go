package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/voicetutor/api/utils/auth"
)

func newTestAuthMiddleware() *AuthMiddleware {
	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret:        "test-secret",
		Expiry:        time.Hour,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "test",
	})
	// The db is never reached: every request in these tests is rejected
	// before the blacklist or user lookup.
	return NewAuthMiddleware(jwtManager, nil)
}

func requestWithAuth(t *testing.T, app *fiber.App, authHeader string) int {
	t.Helper()
	req := httptest.NewRequest("GET", "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp.StatusCode
}

func TestRequiredStopsChainOnRejectedRequests(t *testing.T) {
	m := newTestAuthMiddleware()

	cases := []struct {
		name       string
		authHeader string
	}{
		{"missing header", ""},
		{"malformed header", "Basic dXNlcjpwYXNz"},
		{"invalid token", "Bearer not-a-token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			handlerRan := false
			app.Get("/protected", m.Required(), func(c *fiber.Ctx) error {
				handlerRan = true
				return c.SendString("ok")
			})

			status := requestWithAuth(t, app, tc.authHeader)
			if status != fiber.StatusUnauthorized {
				t.Errorf("status = %d, want %d", status, fiber.StatusUnauthorized)
			}
			if handlerRan {
				t.Error("downstream handler ran for an unauthenticated request")
			}
		})
	}
}

func TestRequiredRejectsRefreshToken(t *testing.T) {
	m := newTestAuthMiddleware()
	refreshToken, _, err := m.jwtManager.GenerateRefreshToken(1, "parent@example.com", "parent", 0)
	if err != nil {
		t.Fatalf("GenerateRefreshToken failed: %v", err)
	}

	app := fiber.New()
	handlerRan := false
	app.Get("/protected", m.Required(), func(c *fiber.Ctx) error {
		handlerRan = true
		return c.SendString("ok")
	})

	status := requestWithAuth(t, app, "Bearer "+refreshToken)
	if status != fiber.StatusUnauthorized {
		t.Errorf("status = %d, want %d", status, fiber.StatusUnauthorized)
	}
	if handlerRan {
		t.Error("downstream handler ran for a refresh token")
	}
}

func TestRequireAdminStopsChainWithoutToken(t *testing.T) {
	m := newTestAuthMiddleware()
	app := fiber.New()
	handlerRan := false
	app.Post("/protected", m.RequireAdmin(), func(c *fiber.Ctx) error {
		handlerRan = true
		return c.SendString("ok")
	})

	req := httptest.NewRequest("POST", "/protected", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusUnauthorized)
	}
	if handlerRan {
		t.Error("downstream handler ran for an unauthenticated request")
	}
}
