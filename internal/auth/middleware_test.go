package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/user-access-service/internal/domain"
	"github.com/spec-kit/user-access-service/internal/observability"
	apperrors "github.com/spec-kit/user-access-service/pkg/util/errorutil"
)

type stubRevocations struct {
	revoked map[string]bool
	err     error
	calls   int
}

func (s *stubRevocations) Revoke(_ context.Context, token string, _ time.Duration) error {
	if s.err != nil {
		return s.err
	}
	s.revoked[token] = true
	return nil
}

func (s *stubRevocations) IsRevoked(_ context.Context, token string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.revoked[token], nil
}

type gateFixture struct {
	app     *fiber.App
	tokens  *TokenManager
	clock   *fakeClock
	store   *stubRevocations
	metrics *observability.Metrics
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	tokens, clock := newTestTokens(t, 30*time.Minute)
	store := &stubRevocations{revoked: map[string]bool{}}
	metrics := observability.NewMetrics()
	gate := NewAuthenticator(tokens, store, metrics, nil)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(de.Body())
		},
	})
	app.Get("/me", gate.Handle, func(c *fiber.Ctx) error {
		p, ok := PrincipalFromContext(c)
		if !ok {
			return errors.New("principal missing")
		}
		tok, ok := TokenFromContext(c)
		if !ok {
			return errors.New("token missing")
		}
		return c.JSON(fiber.Map{"id": p.SubjectID, "role": p.Role, "jti": tok.ID})
	})
	return &gateFixture{app: app, tokens: tokens, clock: clock, store: store, metrics: metrics}
}

func (f *gateFixture) do(t *testing.T, header string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestAuthenticatorAcceptsValidToken(t *testing.T) {
	f := newGateFixture(t)
	tok, err := f.tokens.Issue(domain.Principal{SubjectID: "ID1", Role: domain.UserRoleUser})
	require.NoError(t, err)

	status, body := f.do(t, "Bearer "+tok.Raw)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ID1", body["id"])
	assert.Equal(t, "user", body["role"])
	assert.Equal(t, tok.ID, body["jti"])
	assert.Equal(t, int64(1), f.metrics.Snapshot().Auth[observability.AuthOutcomeAuthenticated])
}

func TestAuthenticatorMissingToken(t *testing.T) {
	f := newGateFixture(t)
	want := map[string]any{"message": "Unauthorized", "error": "No token provided"}

	for _, header := range []string{"", "InvalidFormat", "InvalidTokenFormat", "Basic abc", "Bearer ", "bearer abc"} {
		status, body := f.do(t, header)
		assert.Equal(t, http.StatusUnauthorized, status, header)
		assert.Equal(t, want, body, header)
	}
	assert.Zero(t, f.store.calls)
}

func TestAuthenticatorCollapsesCodecFailures(t *testing.T) {
	f := newGateFixture(t)
	want := map[string]any{"message": "Unauthorized", "error": "Invalid or expired token"}

	other, err := NewTokenManager("other", time.Minute)
	require.NoError(t, err)
	forged, err := other.WithClock(f.clock.Now).Issue(domain.Principal{SubjectID: "ID1", Role: domain.UserRoleAdmin})
	require.NoError(t, err)

	expired, err := f.tokens.IssueWithTTL(domain.Principal{SubjectID: "ID1", Role: domain.UserRoleUser}, time.Minute)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)

	for _, raw := range []string{"invalidToken", forged.Raw, expired.Raw} {
		status, body := f.do(t, "Bearer "+raw)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, want, body)
	}
	assert.Zero(t, f.store.calls, "revocation lookup must not run for unverified tokens")
}

func TestAuthenticatorRejectsRevoked(t *testing.T) {
	f := newGateFixture(t)
	tok, err := f.tokens.Issue(domain.Principal{SubjectID: "ID1", Role: domain.UserRoleUser})
	require.NoError(t, err)
	f.store.revoked[tok.Raw] = true

	status, body := f.do(t, "Bearer "+tok.Raw)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, map[string]any{"message": "Unauthorized", "error": "Token is blacklisted"}, body)
}

func TestAuthenticatorFailsClosedOnStoreError(t *testing.T) {
	f := newGateFixture(t)
	f.store.err = errors.Join(ErrRevocationUnavailable, errors.New("i/o timeout"))
	tok, err := f.tokens.Issue(domain.Principal{SubjectID: "ID1", Role: domain.UserRoleUser})
	require.NoError(t, err)

	status, body := f.do(t, "Bearer "+tok.Raw)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.NotContains(t, body["error"], "timeout")
	assert.Equal(t, int64(1), f.metrics.Snapshot().Auth[observability.AuthOutcomeStoreUnavailable])
}

func TestBearerToken(t *testing.T) {
	raw, ok := bearerToken("Bearer abc.def.ghi")
	assert.True(t, ok)
	assert.Equal(t, "abc.def.ghi", raw)

	_, ok = bearerToken("Bearer")
	assert.False(t, ok)
}
