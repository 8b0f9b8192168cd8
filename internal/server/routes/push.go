package routes

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pawtrail/pushgate/internal/app/ports"
	"github.com/pawtrail/pushgate/internal/ingress"
	"github.com/pawtrail/pushgate/internal/observability"
)

const (
	// SignatureHeader is the HMAC signature header.
	SignatureHeader = "X-Push-Signature"
	// AuthorizationHeader contains the bearer token.
	AuthorizationHeader = "Authorization"
	// BearerPrefix prefixes the auth token.
	BearerPrefix = "Bearer "

	// maxBodyBytes caps how much of the request body is ever read. The
	// router applies the configured per-tenant payload limit on top.
	maxBodyBytes = 1 << 20
)

var errUnauthorized = errors.New("unauthorized")

// PushRoutes exposes the webhook ingestion endpoint.
type PushRoutes struct {
	tenants ports.TenantDirectory
	router  *ingress.Router
	log     *slog.Logger
}

// NewPushRoutes constructs webhook ingestion routes.
func NewPushRoutes(tenants ports.TenantDirectory, router *ingress.Router, log *slog.Logger) *PushRoutes {
	return &PushRoutes{tenants: tenants, router: router, log: log}
}

// RegisterRoutes registers ingestion endpoints.
func (p *PushRoutes) RegisterRoutes(s *echo.Echo) {
	s.POST("/push/webhook", p.handleWebhook)
}

func (p *PushRoutes) handleWebhook(c echo.Context) error {
	token, err := bearerToken(c.Request().Header.Get(AuthorizationHeader))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing auth token"})
	}

	ctx := c.Request().Context()
	tenant, err := p.tenants.GetTenantByAuthToken(ctx, token)
	if err != nil {
		if errors.Is(err, ports.ErrTenantNotFound) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid auth token"})
		}
		p.log.ErrorContext(ctx, "tenant lookup failed", slog.Any("error", err))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "tenant lookup unavailable"})
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable payload"})
	}
	if tenant.WebhookSecret != "" && !validSignature(body, tenant.WebhookSecret, c.Request().Header.Get(SignatureHeader)) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
	}

	ctx = observability.WithTenant(ctx, tenant.Slug)
	event := ingress.DecodeJSON(body, ports.ChannelWebhook)
	result := p.router.Process(ctx, tenant.Slug, event)
	return c.JSON(result.StatusCode, result)
}

func bearerToken(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, BearerPrefix) {
		return "", errUnauthorized
	}
	token := strings.TrimSpace(strings.TrimPrefix(trimmed, BearerPrefix))
	if token == "" {
		return "", errUnauthorized
	}
	return token, nil
}

func validSignature(body []byte, secret, signature string) bool {
	signature = strings.ToLower(strings.TrimSpace(signature))
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
