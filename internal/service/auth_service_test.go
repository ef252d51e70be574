package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/user-access-service/internal/auth"
	"github.com/spec-kit/user-access-service/internal/domain"
	"github.com/spec-kit/user-access-service/internal/events"
	"github.com/spec-kit/user-access-service/internal/repository/repositorytest"
	apperrors "github.com/spec-kit/user-access-service/pkg/util/errorutil"
)

const testPassword = "correct-horse-battery"

type countingVerifier struct {
	calls int
}

func (v *countingVerifier) Matches(plain, stored string) bool {
	v.calls++
	return auth.BcryptVerifier{}.Matches(plain, stored)
}

type authFixture struct {
	svc      *AuthService
	verifier *countingVerifier
	users    *repositorytest.Users
	tokens   *auth.TokenManager
	store    *auth.RedisRevocationStore
	mr       *miniredis.Miniredis
	now      time.Time
	seen     []events.Event
	logs     *observer.ObservedLogs
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	core, logs := observer.New(zapcore.InfoLevel)
	f := &authFixture{
		logs:     logs,
		verifier: &countingVerifier{},
		users:    repositorytest.NewUsers(),
		store:    auth.NewRedisRevocationStore(rdb, 200*time.Millisecond),
		mr:       mr,
		now:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	tokens, err := auth.NewTokenManager("test-secret", 30*time.Minute)
	require.NoError(t, err)
	f.tokens = tokens.WithClock(func() time.Time { return f.now })

	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range []events.EventType{events.EventUserLoggedIn, events.EventTokenRevoked} {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			f.seen = append(f.seen, e)
			return nil
		})
	}

	f.svc = NewAuthService(AuthDependencies{
		Identities:  f.users,
		Verifier:    f.verifier,
		Tokens:      f.tokens,
		Revocations: f.store,
		Dispatcher:  dispatcher,
		Logger:      zap.New(core),
	})
	return f
}

func (f *authFixture) seedUser(t *testing.T, email string, role domain.UserRole, status domain.UserStatus) domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	return f.users.Seed(domain.User{
		Surname:      "Ivanov",
		Name:         "Ivan",
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Status:       status,
	})
}

func TestLoginIssuesToken(t *testing.T) {
	f := newAuthFixture(t)
	u := f.seedUser(t, "ivan@test.test", domain.UserRoleUser, domain.UserStatusActive)

	tok, err := f.svc.Login(context.Background(), domain.Credentials{Email: "ivan@test.test", Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, domain.Principal{SubjectID: u.ID, Role: domain.UserRoleUser}, tok.Principal)
	assert.Equal(t, f.now.Add(30*time.Minute), tok.ExpiresAt)

	verified, err := f.tokens.Verify(tok.Raw)
	require.NoError(t, err)
	assert.Equal(t, u.ID, verified.Principal.SubjectID)

	require.Len(t, f.seen, 1)
	assert.Equal(t, events.EventUserLoggedIn, f.seen[0].Type)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "active@test.test", domain.UserRoleUser, domain.UserStatusActive)
	f.seedUser(t, "blocked@test.test", domain.UserRoleUser, domain.UserStatusInactive)

	attempts := []domain.Credentials{
		{Email: "nobody@test.test", Password: testPassword},
		{Email: "blocked@test.test", Password: testPassword},
		{Email: "active@test.test", Password: "wrong-password"},
	}

	var bodies []any
	for _, creds := range attempts {
		_, err := f.svc.Login(context.Background(), creds)
		require.Error(t, err)
		de := apperrors.ToDomainError(err)
		assert.Equal(t, apperrors.CodeAuthenticationFailed, de.Code)
		bodies = append(bodies, de.Body())
	}
	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, bodies[1], bodies[2])
	assert.Empty(t, f.seen)
}

func TestLoginComparesSecretOnEveryPath(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "active@test.test", domain.UserRoleUser, domain.UserStatusActive)
	f.seedUser(t, "blocked@test.test", domain.UserRoleUser, domain.UserStatusInactive)

	for _, creds := range []domain.Credentials{
		{Email: "nobody@test.test", Password: "wrong-password"},
		{Email: "blocked@test.test", Password: "wrong-password"},
		{Email: "blocked@test.test", Password: testPassword},
		{Email: "active@test.test", Password: "wrong-password"},
	} {
		before := f.verifier.calls
		_, err := f.svc.Login(context.Background(), creds)
		require.Error(t, err)
		assert.Equal(t, before+1, f.verifier.calls, creds.Email)
		assert.Equal(t, apperrors.CodeAuthenticationFailed, apperrors.ToDomainError(err).Code)
	}
}

func TestLoginStoreErrorIsInternal(t *testing.T) {
	f := newAuthFixture(t)
	f.users.Err = errors.New("connection reset")

	_, err := f.svc.Login(context.Background(), domain.Credentials{Email: "a@b.cc", Password: testPassword})
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeInternal, de.Code)
	assert.Equal(t, map[string]any{"message": "Internal Server Error"}, map[string]any(de.Body()))
}

func TestLoginCancelledBeforeIssue(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "ivan@test.test", domain.UserRoleUser, domain.UserStatusActive)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Login(ctx, domain.Credentials{Email: "ivan@test.test", Password: testPassword})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.seen)
}

func TestSelfRevokeOnlyForOwnSubject(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	principal := domain.Principal{SubjectID: "U1", Role: domain.UserRoleUser}
	tok, err := f.tokens.Issue(principal)
	require.NoError(t, err)

	revoked, err := f.svc.SelfRevokeOnStateChange(ctx, principal, "U2", tok)
	require.NoError(t, err)
	assert.False(t, revoked)
	isRevoked, err := f.store.IsRevoked(ctx, tok.Raw)
	require.NoError(t, err)
	assert.False(t, isRevoked)

	revoked, err = f.svc.SelfRevokeOnStateChange(ctx, principal, "U1", tok)
	require.NoError(t, err)
	assert.True(t, revoked)
	isRevoked, err = f.store.IsRevoked(ctx, tok.Raw)
	require.NoError(t, err)
	assert.True(t, isRevoked)
}

func TestSelfRevokeUsesConfiguredLifetime(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	principal := domain.Principal{SubjectID: "U1", Role: domain.UserRoleUser}
	tok, err := f.tokens.Issue(principal)
	require.NoError(t, err)

	// 20 of 30 minutes used; the marker still lives the full 30.
	f.now = f.now.Add(20 * time.Minute)
	_, err = f.svc.SelfRevokeOnStateChange(ctx, principal, "U1", tok)
	require.NoError(t, err)

	keys := f.mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, 30*time.Minute, f.mr.TTL(keys[0]))
}

func TestSelfRevokeNeverShorterThanToken(t *testing.T) {
	f := newAuthFixture(t)
	principal := domain.Principal{SubjectID: "U1", Role: domain.UserRoleUser}
	long, err := f.tokens.IssueWithTTL(principal, 2*time.Hour)
	require.NoError(t, err)

	_, err = f.svc.SelfRevokeOnStateChange(context.Background(), principal, "U1", long)
	require.NoError(t, err)

	keys := f.mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, 2*time.Hour, f.mr.TTL(keys[0]))
}

func TestSelfRevokeSurvivesClientCancel(t *testing.T) {
	f := newAuthFixture(t)
	principal := domain.Principal{SubjectID: "U1", Role: domain.UserRoleUser}
	tok, err := f.tokens.Issue(principal)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	revoked, err := f.svc.SelfRevokeOnStateChange(ctx, principal, "U1", tok)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestSelfRevokeStoreDown(t *testing.T) {
	f := newAuthFixture(t)
	principal := domain.Principal{SubjectID: "U1", Role: domain.UserRoleUser}
	tok, err := f.tokens.Issue(principal)
	require.NoError(t, err)
	f.mr.Close()

	_, err = f.svc.SelfRevokeOnStateChange(context.Background(), principal, "U1", tok)
	require.Error(t, err)
	assert.True(t, apperrors.Retryable(err))

	entries := f.logs.FilterMessage("token revocation failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "U1", fields["subject_id"])
	assert.Equal(t, tok.ID, fields["token_id"])
	assert.Equal(t, "self_state_change", fields["reason"])
}

func TestLogoutRevokesForRemainingLifetime(t *testing.T) {
	f := newAuthFixture(t)
	principal := domain.Principal{SubjectID: "U1", Role: domain.UserRoleUser}
	tok, err := f.tokens.Issue(principal)
	require.NoError(t, err)

	f.now = f.now.Add(10 * time.Minute)
	require.NoError(t, f.svc.Logout(context.Background(), principal, tok))

	keys := f.mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, 20*time.Minute, f.mr.TTL(keys[0]))

	require.Len(t, f.seen, 1)
	payload, ok := f.seen[0].Payload.(events.TokenRevokedPayload)
	require.True(t, ok)
	assert.Equal(t, tok.ID, payload.TokenID)
	assert.Equal(t, "logout", payload.Reason)

	f.mr.FastForward(20 * time.Minute)
	revoked, err := f.store.IsRevoked(context.Background(), tok.Raw)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestLogoutHonoursCancellation(t *testing.T) {
	f := newAuthFixture(t)
	principal := domain.Principal{SubjectID: "U1", Role: domain.UserRoleUser}
	tok, err := f.tokens.Issue(principal)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, f.svc.Logout(ctx, principal, tok), context.Canceled)
	assert.Empty(t, f.mr.Keys())
}
