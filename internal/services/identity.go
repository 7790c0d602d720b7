package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jjudge-oj/practice/config"
	"github.com/jjudge-oj/practice/internal/mailer"
	"github.com/jjudge-oj/practice/internal/session"
	"github.com/jjudge-oj/practice/internal/store"
	"github.com/jjudge-oj/practice/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

const (
	minPasswordLength = 6
	passwordMismatch  = "Passwords do not match"
)

type VerificationRepository interface {
	Create(ctx context.Context, token types.VerificationToken) (types.VerificationToken, error)
	Consume(ctx context.Context, token string) (types.VerificationToken, error)
	DeleteForUser(ctx context.Context, userID int) error
}

// Publisher queues background jobs.
type Publisher interface {
	PublishJSON(ctx context.Context, channel string, value any) (string, error)
}

// IdentityDeps are the collaborators of an IdentityService.
type IdentityDeps struct {
	Users         UserRepository
	Verifications VerificationRepository
	Publisher     Publisher
	Bus           session.Bus
	Notifier      *session.Notifier
	Revoker       session.Revoker
	Logger        *zap.Logger
}

// IdentityService signs users up and in, issues session tokens and notifies
// subscribers about identity changes.
type IdentityService struct {
	deps            IdentityDeps
	secret          []byte
	tokenTTL        time.Duration
	verificationTTL time.Duration
	publicURL       string
	limiter         *loginLimiter
	now             func() time.Time
}

func NewIdentityService(deps IdentityDeps, cfg config.AuthConfig, publicURL string) *IdentityService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = session.NewNotifier()
	}
	if deps.Bus == nil {
		deps.Bus = session.NewLocalBus(deps.Notifier)
	}
	if deps.Revoker == nil {
		deps.Revoker = session.NewMemoryRevoker()
	}
	perMinute := cfg.LoginAttemptsPerM
	if perMinute <= 0 {
		perMinute = 10
	}
	burst := cfg.LoginBurst
	if burst <= 0 {
		burst = 5
	}
	return &IdentityService{
		deps:            deps,
		secret:          []byte(cfg.JWTSecret),
		tokenTTL:        cfg.TokenTTL,
		verificationTTL: cfg.VerificationTTL,
		publicURL:       strings.TrimSuffix(publicURL, "/"),
		limiter:         newLoginLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
		now:             time.Now,
	}
}

// SignUp creates an account, queues its verification email and returns a
// session with a fresh token.
func (s *IdentityService) SignUp(ctx context.Context, email, password, confirm, username string) (session.Session, string, error) {
	if password != confirm {
		return session.Anonymous, "", &ValidationError{Field: "confirm", Message: passwordMismatch}
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return session.Anonymous, "", newAuthError(AuthMalformedEmail, err)
	}
	if len(password) < minPasswordLength {
		return session.Anonymous, "", newAuthError(AuthWeakPassword, nil)
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = email[:strings.IndexByte(email, '@')]
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return session.Anonymous, "", newAuthError(AuthUnknown, err)
	}

	user, err := s.deps.Users.Create(ctx, types.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return session.Anonymous, "", newAuthError(AuthEmailInUse, err)
		}
		return session.Anonymous, "", newAuthError(AuthUnknown, err)
	}

	if err := s.sendVerification(ctx, user); err != nil {
		s.deps.Logger.Warn("queue verification email", zap.Int("user_id", user.ID), zap.Error(err))
	}

	return s.startSession(ctx, user)
}

// Login checks credentials and returns a session with a fresh token.
func (s *IdentityService) Login(ctx context.Context, email, password string) (session.Session, string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return session.Anonymous, "", newAuthError(AuthMalformedEmail, err)
	}
	if !s.limiter.allow(email, s.now()) {
		return session.Anonymous, "", newAuthError(AuthRateLimited, nil)
	}

	user, err := s.deps.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return session.Anonymous, "", newAuthError(AuthInvalidCredentials, nil)
		}
		return session.Anonymous, "", newAuthError(AuthUnknown, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return session.Anonymous, "", newAuthError(AuthInvalidCredentials, nil)
	}

	return s.startSession(ctx, user)
}

// Logout revokes token until it would have expired and tells clients holding
// it that the identity is gone. Invalid tokens are already logged out.
func (s *IdentityService) Logout(ctx context.Context, token string) error {
	claims, err := s.parseClaims(token)
	if err != nil {
		return nil
	}
	userID, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return nil
	}
	if err := s.deps.Revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.publish(ctx, session.Change{UserID: userID, TokenID: claims.ID, Session: session.Anonymous})
	return nil
}

// Authenticate resolves a bearer token to the session it belongs to.
func (s *IdentityService) Authenticate(ctx context.Context, token string) (session.Session, error) {
	claims, err := s.parseClaims(token)
	if err != nil {
		return session.Anonymous, newAuthError(AuthInvalidToken, err)
	}
	revoked, err := s.deps.Revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return session.Anonymous, newAuthError(AuthUnknown, err)
	}
	if revoked {
		return session.Anonymous, newAuthError(AuthInvalidToken, errors.New("token revoked"))
	}
	userID, err := strconv.Atoi(claims.Subject)
	if err != nil || userID < 1 {
		return session.Anonymous, newAuthError(AuthInvalidToken, errors.New("invalid subject"))
	}

	user, err := s.deps.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return session.Anonymous, newAuthError(AuthInvalidToken, err)
		}
		return session.Anonymous, newAuthError(AuthUnknown, err)
	}
	return sessionFor(user, claims.ID), nil
}

// ResendVerification queues a new verification email. Verified users are
// left alone.
func (s *IdentityService) ResendVerification(ctx context.Context, identity *session.Identity) error {
	user, err := s.lookupIdentity(ctx, identity)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return nil
	}
	if err := s.deps.Verifications.DeleteForUser(ctx, user.ID); err != nil {
		return err
	}
	return s.sendVerification(ctx, user)
}

// ReloadIdentity rereads the user behind identity and notifies subscribers
// with the fresh state.
func (s *IdentityService) ReloadIdentity(ctx context.Context, identity *session.Identity) (session.Session, error) {
	user, err := s.lookupIdentity(ctx, identity)
	if err != nil {
		return session.Anonymous, err
	}
	next := sessionFor(user, identity.TokenID)
	s.publish(ctx, session.Change{UserID: user.ID, Session: withoutToken(next)})
	return next, nil
}

// lookupIdentity loads the account behind identity. A deleted account makes
// the token invalid.
func (s *IdentityService) lookupIdentity(ctx context.Context, identity *session.Identity) (types.User, error) {
	if identity == nil {
		return types.User{}, newAuthError(AuthInvalidToken, errors.New("no identity"))
	}
	user, err := s.deps.Users.GetByID(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, newAuthError(AuthInvalidToken, err)
		}
		return types.User{}, err
	}
	return user, nil
}

// ConfirmEmail consumes a verification token and marks its user verified.
func (s *IdentityService) ConfirmEmail(ctx context.Context, token string) (session.Session, error) {
	vt, err := s.deps.Verifications.Consume(ctx, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return session.Anonymous, newAuthError(AuthInvalidToken, err)
		}
		return session.Anonymous, err
	}
	user, err := s.deps.Users.GetByID(ctx, vt.UserID)
	if err != nil {
		return session.Anonymous, err
	}
	if !user.EmailVerified {
		user.EmailVerified = true
		if user, err = s.deps.Users.Update(ctx, user); err != nil {
			return session.Anonymous, err
		}
	}
	next := sessionFor(user, "")
	s.publish(ctx, session.Change{UserID: user.ID, Session: next})
	return next, nil
}

// Subscribe registers callback for identity changes of any user.
func (s *IdentityService) Subscribe(callback func(session.Change)) (unsubscribe func()) {
	return s.deps.Notifier.Subscribe(callback)
}

// Notifier exposes the change notifier that session holders attach to.
func (s *IdentityService) Notifier() *session.Notifier {
	return s.deps.Notifier
}

func (s *IdentityService) startSession(ctx context.Context, user types.User) (session.Session, string, error) {
	token, tokenID, err := s.issueToken(user.ID)
	if err != nil {
		return session.Anonymous, "", newAuthError(AuthUnknown, err)
	}
	next := sessionFor(user, tokenID)
	s.publish(ctx, session.Change{UserID: user.ID, Session: withoutToken(next)})
	return next, token, nil
}

func (s *IdentityService) sendVerification(ctx context.Context, user types.User) error {
	vt, err := s.deps.Verifications.Create(ctx, types.VerificationToken{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.verificationTTL),
	})
	if err != nil {
		return fmt.Errorf("create verification token: %w", err)
	}
	if s.deps.Publisher == nil {
		return errors.New("no publisher configured")
	}
	_, err = s.deps.Publisher.PublishJSON(ctx, mailer.VerificationChannel, mailer.VerificationEmail{
		UserID:    user.ID,
		Email:     user.Email,
		Username:  user.Username,
		Link:      s.publicURL + "/auth/verify?token=" + vt.Token,
		ExpiresAt: vt.ExpiresAt,
	})
	return err
}

func (s *IdentityService) publish(ctx context.Context, change session.Change) {
	if err := s.deps.Bus.Publish(ctx, change); err != nil {
		s.deps.Logger.Warn("publish identity change", zap.Int("user_id", change.UserID), zap.Error(err))
	}
}

func (s *IdentityService) issueToken(userID int) (string, string, error) {
	now := s.now()
	tokenID := uuid.NewString()
	claims := jwt.RegisteredClaims{
		ID:        tokenID,
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", "", err
	}
	return signed, tokenID, nil
}

func (s *IdentityService) parseClaims(tokenString string) (jwt.RegisteredClaims, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return jwt.RegisteredClaims{}, err
	}
	if !token.Valid {
		return jwt.RegisteredClaims{}, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.ID == "" {
		return jwt.RegisteredClaims{}, errors.New("missing subject or id")
	}
	return claims, nil
}

func sessionFor(user types.User, tokenID string) session.Session {
	return session.Session{
		Identity: &session.Identity{
			ID:       user.ID,
			Email:    user.Email,
			Username: user.Username,
			PhotoURL: user.PhotoURL,
			TokenID:  tokenID,
		},
		EmailVerified: user.EmailVerified,
	}
}

func withoutToken(s session.Session) session.Session {
	if s.Identity == nil {
		return s
	}
	identity := *s.Identity
	identity.TokenID = ""
	s.Identity = &identity
	return s
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return "", err
	}
	if addr.Address != email || !strings.Contains(email[strings.IndexByte(email, '@')+1:], ".") {
		return "", fmt.Errorf("malformed email %q", raw)
	}
	return email, nil
}

const limiterIdle = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// loginLimiter keeps one token bucket per email.
type loginLimiter struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	entries map[string]*limiterEntry
}

func newLoginLimiter(every rate.Limit, burst int) *loginLimiter {
	return &loginLimiter{every: every, burst: burst, entries: make(map[string]*limiterEntry)}
}

func (l *loginLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		if len(l.entries) > 1024 {
			l.prune(now)
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(l.every, l.burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *loginLimiter) prune(now time.Time) {
	for key, entry := range l.entries {
		if now.Sub(entry.lastSeen) > limiterIdle {
			delete(l.entries, key)
		}
	}
}
