package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightsurety/internal/flight"
	jwttoken "flightsurety/internal/jwt_token"
	"flightsurety/internal/operations/service"
	"flightsurety/internal/platform/config"
	"flightsurety/internal/platform/metrics"
	"flightsurety/pkg/domain"
)

const owner = domain.Principal("0xd2dc39c7f744112815aa081aab301d9e031c8097")

func testRouter(t *testing.T, health func(context.Context) error) (http.Handler, *jwttoken.JWTService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := service.New(service.Config{Owner: owner}, service.WithLogger(logger))
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	jwtService := jwttoken.NewJWTService("test-key", "flightsurety", "flightsurety-api")
	return newRouter(routerDeps{
		logger:      logger,
		service:     svc,
		validator:   jwttoken.NewJWTServiceAdapter(jwtService),
		revocations: jwttoken.NewMemoryRevocationList(),
		metrics:     metrics.New(reg),
		registry:    reg,
		cfg:         config.Server{RequestTimeout: time.Second},
		health:      health,
	}), jwtService
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router, _ := testRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `flightsurety_http_requests_total{method="GET",route="/v1/status",status="200"} 1`)
}

func TestRouterUnhealthy(t *testing.T) {
	router, _ := testRouter(t, func(context.Context) error { return errors.New("down") })
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouterAuthenticatedFunding(t *testing.T) {
	router, jwtService := testRouter(t, nil)
	token, err := jwtService.GenerateAccessToken(owner, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/airlines/fund", strings.NewReader(`{"amount":10000000000}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/v1/airlines/fund", strings.NewReader(`amount=1`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestFlightKeyCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"flight-key",
		"--airline", owner.String(),
		"--code", " abc123 ",
		"--departure", "2026-11-03T14:30:00Z",
	})
	require.NoError(t, root.Execute())

	want := flight.Key(owner, "ABC123", time.Date(2026, 11, 3, 14, 30, 0, 0, time.UTC))
	assert.Equal(t, want.String(), strings.TrimSpace(out.String()))
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("FLIGHTSURETY_AUTH_SIGNING_KEY", "cli-key")
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"token", "--principal", owner.String(), "--ttl", "5m"})
	require.NoError(t, root.Execute())

	claims, err := jwttoken.NewJWTService("cli-key", "flightsurety", "flightsurety-api").ValidateToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	p, err := claims.Principal()
	require.NoError(t, err)
	assert.Equal(t, owner, p)
}

func TestServiceConfig(t *testing.T) {
	cfg, err := serviceConfig(config.Ledger{
		Owner:            owner.String(),
		Oracles:          []string{"0xd4be1d51b294788d728e31429601824a201ad424"},
		FundingThreshold: 42,
		BootstrapSize:    4,
	})
	require.NoError(t, err)
	assert.Equal(t, owner, cfg.Owner)
	assert.Equal(t, domain.Amount(42), cfg.FundingThreshold)
	assert.Len(t, cfg.Oracles, 1)

	_, err = serviceConfig(config.Ledger{Owner: "bo gus"})
	assert.Error(t, err)
}
