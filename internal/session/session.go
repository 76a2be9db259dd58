package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"smartgreenhouse/internal/utils"
)

// Session is the operator's persisted client state
type Session struct {
	Token     string `json:"token"`
	Role      string `json:"role"`
	UserID    int    `json:"user_id"`
	ExpiresIn int64  `json:"expires_in"`
}

// LoggedIn reports whether the session carries a token.
func (s Session) LoggedIn() bool {
	return s.Token != ""
}

// Provider persists a single session. Load returns a zero Session when
// nothing is stored.
type Provider interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// TokenExpired reports whether a JWT's exp claim is in the past. Tokens that
// are not JWTs or carry no exp are never considered expired; the authority
// stays the judge of validity.
func TokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}

// Keeper owns the in-process copy of the session with an explicit
// load-at-init / clear-at-logout lifecycle.
type Keeper struct {
	mu       sync.RWMutex
	provider Provider
	current  Session
	logger   *zap.Logger
	nowFn    func() time.Time
}

// NewKeeper creates a keeper over the given provider
func NewKeeper(provider Provider, logger *zap.Logger) *Keeper {
	return &Keeper{
		provider: provider,
		logger:   utils.OrNop(logger),
		nowFn:    time.Now,
	}
}

// Init loads the stored session. An expired token is cleared.
func (k *Keeper) Init(ctx context.Context) error {
	s, err := k.provider.Load(ctx)
	if err != nil {
		return err
	}
	if s.LoggedIn() && TokenExpired(s.Token, k.nowFn()) {
		k.logger.Info("Stored session token expired, clearing", zap.Int("user_id", s.UserID))
		if err := k.provider.Clear(ctx); err != nil {
			return err
		}
		s = Session{}
	}

	k.mu.Lock()
	k.current = s
	k.mu.Unlock()
	return nil
}

// Login stores a new session.
func (k *Keeper) Login(ctx context.Context, s Session) error {
	if !s.LoggedIn() {
		return errors.New("session: empty token")
	}
	if err := k.provider.Save(ctx, s); err != nil {
		return err
	}
	k.mu.Lock()
	k.current = s
	k.mu.Unlock()
	return nil
}

// Logout clears the stored and in-memory session.
func (k *Keeper) Logout(ctx context.Context) error {
	k.mu.Lock()
	k.current = Session{}
	k.mu.Unlock()
	return k.provider.Clear(ctx)
}

// Current returns the in-memory session.
func (k *Keeper) Current() Session {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.current
}

// Token returns the bearer token, empty when logged out.
func (k *Keeper) Token() string {
	return k.Current().Token
}

// MemoryProvider keeps the session in process memory
type MemoryProvider struct {
	mu sync.Mutex
	s  Session
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{}
}

func (m *MemoryProvider) Load(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s, nil
}

func (m *MemoryProvider) Save(ctx context.Context, s Session) error {
	m.mu.Lock()
	m.s = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryProvider) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.s = Session{}
	m.mu.Unlock()
	return nil
}
