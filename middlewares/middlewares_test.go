package middlewares

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"virtualbank-gateway/apperrors"
	"virtualbank-gateway/config"
)

func call(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]any, http.Header) {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	body := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}
	return resp.StatusCode, body, resp.Header
}

func TestErrorHandlerRendersKinds(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		retryAfter bool
	}{
		{"validation", apperrors.New(apperrors.KindValidation, "bad"), 422, "validation_error", false},
		{"bad request", apperrors.BadRequest("invalid request body", errors.New("eof")), 400, "validation_error", false},
		{"conflict", apperrors.New(apperrors.KindInFlightConflict, "busy"), 409, "in_flight_conflict", true},
		{"store down", apperrors.New(apperrors.KindStoreUnavailable, "down"), 503, "store_unavailable", true},
		{"fiber 404", fiber.ErrNotFound, 404, "not_found", false},
		{"unknown", errors.New("boom"), 500, "internal", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
			app.Get("/", func(c *fiber.Ctx) error { return tc.err })

			status, body, header := call(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
			if status != tc.wantStatus {
				t.Fatalf("status = %d, want %d", status, tc.wantStatus)
			}
			if body["error"] != tc.wantKind {
				t.Fatalf("error = %v, want %s", body["error"], tc.wantKind)
			}
			if got := header.Get(fiber.HeaderRetryAfter) != ""; got != tc.retryAfter {
				t.Fatalf("Retry-After present = %v", got)
			}
		})
	}
}

func TestErrorHandlerMasksInternalMessages(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/", func(c *fiber.Ctx) error {
		return apperrors.Wrap(apperrors.KindInternal, "pq: password authentication failed", errors.New("x"))
	})
	_, body, _ := call(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	if body["message"] != "internal server error" {
		t.Fatalf("internal message leaked: %v", body["message"])
	}
}

type amountDTO struct {
	Account string          `json:"accountId" validate:"required"`
	Amount  decimal.Decimal `json:"amount" validate:"required,gt=0"`
}

func TestBindAndValidate(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Post("/", func(c *fiber.Ctx) error {
		var in amountDTO
		if err := BindAndValidate(c, &in); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"accountId": in.Account, "amount": in.Amount.String()})
	})

	post := func(body string) (int, map[string]any) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		status, out, _ := call(t, app, req)
		return status, out
	}

	status, body := post(`{"accountId":"  acc-1 ","amount":"10.005"}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d %v", status, body)
	}
	if body["accountId"] != "acc-1" || body["amount"] != "10.01" {
		t.Fatalf("input not normalized: %v", body)
	}

	status, body = post(`{"accountId":"acc-1","amount":"-3"}`)
	if status != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", status)
	}
	fields, _ := body["fields"].(map[string]any)
	if fields["amount"] != "gt=0" {
		t.Fatalf("unexpected fields %v", body["fields"])
	}

	if status, _ = post(`not json`); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for unparsable body, got %d", status)
	}
}

func authApp(cfg config.AuthConfig, roles ...string) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/", Authenticate(cfg), RequireRoles(roles...), func(c *fiber.Ctx) error {
		p, _ := PrincipalFrom(c)
		return c.JSON(fiber.Map{"id": p.ID, "session": p.SessionID})
	})
	return app
}

func TestAuthenticateAPIKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	cfg := config.AuthConfig{
		Enabled:       true,
		APIKeys:       []config.APIKey{{ID: "teller", Hash: string(hash), Roles: []string{"bank:transfers:write"}}},
		APIKeyHeader:  "X-API-Key",
		SessionHeader: "X-Session-Id",
	}
	app := authApp(cfg, "bank:transfers:write")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "s3cret")
	req.Header.Set("X-Session-Id", "sess-9")
	status, body, _ := call(t, app, req)
	if status != fiber.StatusOK || body["id"] != "teller" || body["session"] != "sess-9" {
		t.Fatalf("valid key rejected: %d %v", status, body)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "s3cret")
	if status, _, _ = call(t, app, req); status != fiber.StatusUnauthorized {
		t.Fatalf("missing session should be 401, got %d", status)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "wrong")
	req.Header.Set("X-Session-Id", "sess-9")
	if status, _, _ = call(t, app, req); status != fiber.StatusUnauthorized {
		t.Fatalf("wrong key should be 401, got %d", status)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "s3cret")
	req.Header.Set("X-Session-Id", "sess-9")
	if status, _, _ = call(t, authApp(cfg, "market:orders:write"), req); status != fiber.StatusForbidden {
		t.Fatalf("missing role should be 403, got %d", status)
	}
}

func TestAuthenticateJWT(t *testing.T) {
	secret := []byte("jwt-secret")
	cfg := config.AuthConfig{Enabled: true, JWTSecret: string(secret), SessionHeader: "X-Session-Id"}
	app := authApp(cfg, "bank:credits:read")

	good, err := GenerateJWT(secret, "player-1", "sess-1", []string{"bank:credits:read"}, time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+good)
	status, body, _ := call(t, app, req)
	if status != fiber.StatusOK || body["id"] != "player-1" || body["session"] != "sess-1" {
		t.Fatalf("valid token rejected: %d %v", status, body)
	}

	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		SessionID: "sess-1",
		Roles:     []string{"bank:credits:read"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "player-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString(secret)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	if status, _, _ = call(t, app, req); status != fiber.StatusUnauthorized {
		t.Fatalf("expired token should be 401, got %d", status)
	}

	forged, _ := GenerateJWT([]byte("other"), "player-1", "sess-1", []string{"bank:credits:read"}, time.Minute)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	if status, _, _ = call(t, app, req); status != fiber.StatusUnauthorized {
		t.Fatalf("forged token should be 401, got %d", status)
	}

	noSession, _ := GenerateJWT(secret, "player-1", "", []string{"bank:credits:read"}, time.Minute)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+noSession)
	req.Header.Set("X-Session-Id", "from-header")
	status, body, _ = call(t, app, req)
	if status != fiber.StatusOK || body["session"] != "from-header" {
		t.Fatalf("session header fallback failed: %d %v", status, body)
	}
}

func TestAuthenticateDisabledGrantsEverything(t *testing.T) {
	app := authApp(config.AuthConfig{Enabled: false}, "market:orders:write")
	status, body, _ := call(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	if status != fiber.StatusOK || body["id"] != "anonymous" {
		t.Fatalf("disabled auth should pass: %d %v", status, body)
	}
}
