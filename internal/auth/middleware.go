package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/user-access-service/internal/domain"
	"github.com/spec-kit/user-access-service/internal/observability"
	apperrors "github.com/spec-kit/user-access-service/pkg/util/errorutil"
)

const (
	principalKey = "auth_principal"
	tokenKey     = "auth_token"
	bearerPrefix = "Bearer "
)

// Gate failures returned by Authenticate in addition to the codec errors.
var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrRevoked      = errors.New("token revoked")
)

// Authenticator validates bearer tokens and resolves principals.
type Authenticator struct {
	tokens      *TokenManager
	revocations RevocationStore
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewAuthenticator constructs the request gate.
func NewAuthenticator(tokens *TokenManager, revocations RevocationStore, metrics *observability.Metrics, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{tokens: tokens, revocations: revocations, metrics: metrics, logger: logger}
}

// Authenticate runs the stateless check and then the revocation lookup.
// The revocation lookup happens only for tokens that verified.
func (a *Authenticator) Authenticate(ctx context.Context, authHeader string) (domain.Token, error) {
	raw, ok := bearerToken(authHeader)
	if !ok {
		return domain.Token{}, ErrMissingToken
	}

	tok, err := a.tokens.Verify(raw)
	if err != nil {
		return domain.Token{}, err
	}

	revoked, err := a.revocations.IsRevoked(ctx, raw)
	if err != nil {
		return domain.Token{}, err
	}
	if revoked {
		return domain.Token{}, ErrRevoked
	}
	return tok, nil
}

// Handle enforces authentication for protected routes.
func (a *Authenticator) Handle(c *fiber.Ctx) error {
	tok, err := a.Authenticate(c.UserContext(), c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return a.reject(c, err)
	}

	a.metrics.RecordAuth(observability.AuthOutcomeAuthenticated)
	principal := tok.Principal
	c.Locals(principalKey, &principal)
	c.Locals(tokenKey, tok)
	return c.Next()
}

func (a *Authenticator) reject(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrMissingToken):
		a.metrics.RecordAuth(observability.AuthOutcomeMissingToken)
		return apperrors.NewUnauthorized(apperrors.ReasonNoToken)
	case errors.Is(err, ErrRevoked):
		a.metrics.RecordAuth(observability.AuthOutcomeRevoked)
		a.logger.Info("revoked token presented", zap.String("path", c.Path()))
		return apperrors.NewUnauthorized(apperrors.ReasonRevoked)
	case errors.Is(err, ErrRevocationUnavailable):
		a.metrics.RecordAuth(observability.AuthOutcomeStoreUnavailable)
		a.logger.Error("revocation check failed", zap.Error(err))
		return apperrors.NewUnavailable(err)
	default:
		a.metrics.RecordAuth(observability.AuthOutcomeInvalidToken)
		a.logger.Debug("token rejected", zap.Error(err))
		return apperrors.NewUnauthorized(apperrors.ReasonInvalidToken)
	}
}

func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if raw == "" {
		return "", false
	}
	return raw, true
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	principal, ok := c.Locals(principalKey).(*domain.Principal)
	return principal, ok && principal != nil
}

// TokenFromContext retrieves the token the request authenticated with.
func TokenFromContext(c *fiber.Ctx) (domain.Token, bool) {
	tok, ok := c.Locals(tokenKey).(domain.Token)
	return tok, ok
}
