package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jjudge-oj/practice/config"
	"github.com/jjudge-oj/practice/internal/mailer"
	"github.com/jjudge-oj/practice/internal/session"
	"github.com/jjudge-oj/practice/internal/store"
	"github.com/jjudge-oj/practice/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeUsers struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]types.User
	calls  int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{nextID: 1, byID: map[int]types.User{}}
}

func (f *fakeUsers) GetByID(_ context.Context, id int) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	u, ok := f.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUsers) Create(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, u := range f.byID {
		if u.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	user.ID = f.nextID
	f.nextID++
	f.byID[user.ID] = user
	return user, nil
}

func (f *fakeUsers) Update(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if _, ok := f.byID[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	f.byID[user.ID] = user
	return user, nil
}

func (f *fakeUsers) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}

type fakeVerifications struct {
	mu     sync.Mutex
	tokens map[string]types.VerificationToken
}

func newFakeVerifications() *fakeVerifications {
	return &fakeVerifications{tokens: map[string]types.VerificationToken{}}
}

func (f *fakeVerifications) Create(_ context.Context, token types.VerificationToken) (types.VerificationToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token.Token] = token
	return token, nil
}

func (f *fakeVerifications) Consume(_ context.Context, token string) (types.VerificationToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vt, ok := f.tokens[token]
	if !ok {
		return types.VerificationToken{}, store.ErrNotFound
	}
	delete(f.tokens, token)
	return vt, nil
}

func (f *fakeVerifications) DeleteForUser(_ context.Context, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, vt := range f.tokens {
		if vt.UserID == userID {
			delete(f.tokens, k)
		}
	}
	return nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	jobs []mailer.VerificationEmail
	err  error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, channel string, value any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	if channel == mailer.VerificationChannel {
		p.jobs = append(p.jobs, value.(mailer.VerificationEmail))
	}
	return "id", nil
}

type identityFixture struct {
	svc       *IdentityService
	users     *fakeUsers
	verifs    *fakeVerifications
	publisher *recordingPublisher
	changes   []session.Change
}

func newIdentityFixture(t *testing.T) *identityFixture {
	t.Helper()
	f := &identityFixture{
		users:     newFakeUsers(),
		verifs:    newFakeVerifications(),
		publisher: &recordingPublisher{},
	}
	f.svc = NewIdentityService(IdentityDeps{
		Users:         f.users,
		Verifications: f.verifs,
		Publisher:     f.publisher,
	}, config.AuthConfig{
		JWTSecret:         "test-secret",
		TokenTTL:          time.Hour,
		VerificationTTL:   48 * time.Hour,
		LoginAttemptsPerM: 60,
		LoginBurst:        3,
	}, "http://localhost:8080/")
	t.Cleanup(f.svc.Subscribe(func(c session.Change) { f.changes = append(f.changes, c) }))
	return f
}

func authCode(t *testing.T, err error) AuthCode {
	t.Helper()
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	return authErr.Code
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("password mismatch is rejected before the store", func(t *testing.T) {
		f := newIdentityFixture(t)
		_, _, err := f.svc.SignUp(ctx, "ada@example.com", "secret1", "secret2", "ada")
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "Passwords do not match", verr.Message)
		assert.Zero(t, f.users.calls)
	})

	t.Run("malformed email", func(t *testing.T) {
		f := newIdentityFixture(t)
		for _, email := range []string{"", "ada", "ada@", "Ada <ada@example.com>", "ada@localhost"} {
			_, _, err := f.svc.SignUp(ctx, email, "secret1", "secret1", "ada")
			assert.Equal(t, AuthMalformedEmail, authCode(t, err), email)
		}
	})

	t.Run("weak password", func(t *testing.T) {
		f := newIdentityFixture(t)
		_, _, err := f.svc.SignUp(ctx, "ada@example.com", "12345", "12345", "ada")
		assert.Equal(t, AuthWeakPassword, authCode(t, err))
	})

	t.Run("creates an unverified session and queues the email", func(t *testing.T) {
		f := newIdentityFixture(t)
		s, token, err := f.svc.SignUp(ctx, " Ada@Example.com ", "secret1", "secret1", "")
		require.NoError(t, err)
		require.NotEmpty(t, token)
		require.True(t, s.Present())
		assert.False(t, s.EmailVerified)
		assert.Equal(t, "ada@example.com", s.Identity.Email)
		assert.Equal(t, "ada", s.Identity.Username)
		assert.Equal(t, session.RedirectTo(session.VerifyView), session.CanAccess(s))

		stored := f.users.byID[s.Identity.ID]
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")))

		require.Len(t, f.publisher.jobs, 1)
		job := f.publisher.jobs[0]
		assert.Equal(t, "ada@example.com", job.Email)
		assert.Contains(t, job.Link, "http://localhost:8080/auth/verify?token=")
		assert.Len(t, f.verifs.tokens, 1)

		require.Len(t, f.changes, 1)
		assert.Empty(t, f.changes[0].Session.Identity.TokenID)
	})

	t.Run("existing email", func(t *testing.T) {
		f := newIdentityFixture(t)
		_, _, err := f.svc.SignUp(ctx, "ada@example.com", "secret1", "secret1", "ada")
		require.NoError(t, err)
		_, _, err = f.svc.SignUp(ctx, "ADA@example.com", "secret2", "secret2", "ada2")
		assert.Equal(t, AuthEmailInUse, authCode(t, err))
	})

	t.Run("broker failure does not fail sign up", func(t *testing.T) {
		f := newIdentityFixture(t)
		f.publisher.err = errors.New("broker down")
		s, _, err := f.svc.SignUp(ctx, "ada@example.com", "secret1", "secret1", "ada")
		require.NoError(t, err)
		assert.True(t, s.Present())
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	f := newIdentityFixture(t)
	_, _, err := f.svc.SignUp(ctx, "ada@example.com", "secret1", "secret1", "ada")
	require.NoError(t, err)

	_, _, err = f.svc.Login(ctx, "nobody@example.com", "secret1")
	assert.Equal(t, AuthInvalidCredentials, authCode(t, err))

	_, _, err = f.svc.Login(ctx, "ada@example.com", "wrong-pass")
	assert.Equal(t, AuthInvalidCredentials, authCode(t, err))

	s, token, err := f.svc.Login(ctx, "ADA@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "ada@example.com", s.Identity.Email)
}

func TestLoginIsRateLimitedPerEmail(t *testing.T) {
	ctx := context.Background()
	f := newIdentityFixture(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_, _, err := f.svc.Login(ctx, "ada@example.com", "wrong-pass")
		assert.Equal(t, AuthInvalidCredentials, authCode(t, err))
	}
	_, _, err := f.svc.Login(ctx, "ada@example.com", "wrong-pass")
	assert.Equal(t, AuthRateLimited, authCode(t, err))

	_, _, err = f.svc.Login(ctx, "grace@example.com", "wrong-pass")
	assert.Equal(t, AuthInvalidCredentials, authCode(t, err), "other emails keep their own bucket")

	now = now.Add(time.Second)
	_, _, err = f.svc.Login(ctx, "ada@example.com", "wrong-pass")
	assert.Equal(t, AuthInvalidCredentials, authCode(t, err))
}

func TestAuthenticateAndLogout(t *testing.T) {
	ctx := context.Background()
	f := newIdentityFixture(t)
	signed, token, err := f.svc.SignUp(ctx, "ada@example.com", "secret1", "secret1", "ada")
	require.NoError(t, err)

	s, err := f.svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, signed.Identity.ID, s.Identity.ID)
	assert.Equal(t, signed.Identity.TokenID, s.Identity.TokenID)

	_, err = f.svc.Authenticate(ctx, "garbage")
	assert.Equal(t, AuthInvalidToken, authCode(t, err))

	holder := session.NewHolder(s, f.svc.Notifier(), nil)
	defer holder.Close()

	require.NoError(t, f.svc.Logout(ctx, token))
	assert.False(t, holder.Current().Present())

	_, err = f.svc.Authenticate(ctx, token)
	assert.Equal(t, AuthInvalidToken, authCode(t, err))

	assert.NoError(t, f.svc.Logout(ctx, "garbage"))
}

func TestAuthenticateExpiredToken(t *testing.T) {
	ctx := context.Background()
	f := newIdentityFixture(t)
	_, token, err := f.svc.SignUp(ctx, "ada@example.com", "secret1", "secret1", "ada")
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = f.svc.Authenticate(ctx, token)
	assert.Equal(t, AuthInvalidToken, authCode(t, err))
}

func TestConfirmEmailNotifiesHolders(t *testing.T) {
	ctx := context.Background()
	f := newIdentityFixture(t)
	s, _, err := f.svc.SignUp(ctx, "ada@example.com", "secret1", "secret1", "ada")
	require.NoError(t, err)

	var pushed []session.Session
	holder := session.NewHolder(s, f.svc.Notifier(), func(next session.Session) { pushed = append(pushed, next) })
	defer holder.Close()

	_, err = f.svc.ConfirmEmail(ctx, "unknown")
	assert.Equal(t, AuthInvalidToken, authCode(t, err))

	var token string
	for k := range f.verifs.tokens {
		token = k
	}
	confirmed, err := f.svc.ConfirmEmail(ctx, token)
	require.NoError(t, err)
	assert.True(t, confirmed.EmailVerified)

	require.Len(t, pushed, 1)
	assert.True(t, holder.Current().EmailVerified)
	assert.Equal(t, s.Identity.TokenID, holder.Current().Identity.TokenID)
	assert.True(t, session.CanAccess(holder.Current()).IsAllowed())

	_, err = f.svc.ConfirmEmail(ctx, token)
	assert.Equal(t, AuthInvalidToken, authCode(t, err), "tokens are single use")
}

func TestResendVerification(t *testing.T) {
	ctx := context.Background()
	f := newIdentityFixture(t)
	s, _, err := f.svc.SignUp(ctx, "ada@example.com", "secret1", "secret1", "ada")
	require.NoError(t, err)

	require.NoError(t, f.svc.ResendVerification(ctx, s.Identity))
	assert.Len(t, f.publisher.jobs, 2)
	assert.Len(t, f.verifs.tokens, 1, "older tokens are replaced")

	u := f.users.byID[s.Identity.ID]
	u.EmailVerified = true
	f.users.byID[u.ID] = u
	require.NoError(t, f.svc.ResendVerification(ctx, s.Identity))
	assert.Len(t, f.publisher.jobs, 2, "verified users get nothing")

	assert.Error(t, f.svc.ResendVerification(ctx, nil))
}

func TestReloadIdentity(t *testing.T) {
	ctx := context.Background()
	f := newIdentityFixture(t)
	s, _, err := f.svc.SignUp(ctx, "ada@example.com", "secret1", "secret1", "ada")
	require.NoError(t, err)

	u := f.users.byID[s.Identity.ID]
	u.EmailVerified = true
	f.users.byID[u.ID] = u

	reloaded, err := f.svc.ReloadIdentity(ctx, s.Identity)
	require.NoError(t, err)
	assert.True(t, reloaded.EmailVerified)
	assert.Equal(t, s.Identity.TokenID, reloaded.Identity.TokenID)
	assert.True(t, f.changes[len(f.changes)-1].Session.EmailVerified)
}

func TestResendAndReloadForDeletedAccount(t *testing.T) {
	ctx := context.Background()
	f := newIdentityFixture(t)
	s, _, err := f.svc.SignUp(ctx, "ada@example.com", "secret1", "secret1", "ada")
	require.NoError(t, err)
	delete(f.users.byID, s.Identity.ID)

	assert.Equal(t, AuthInvalidToken, authCode(t, f.svc.ResendVerification(ctx, s.Identity)))
	_, err = f.svc.ReloadIdentity(ctx, s.Identity)
	assert.Equal(t, AuthInvalidToken, authCode(t, err))
}
