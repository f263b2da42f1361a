package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/fieldstore-go/internal/core/domain"
	"github.com/yndnr/fieldstore-go/internal/storage"
)

// AuthService verifies user passwords for the external login UI.
type AuthService struct {
	store    Store
	opts     Options
	limiters *RateLimiterRegistry
	cfg      AuthServiceConfig
}

// AuthServiceConfig configures login attempt limiting.
type AuthServiceConfig struct {
	// AttemptsPerMinute is the sustained login attempt rate per user code.
	AttemptsPerMinute int
	// Burst is the number of attempts allowed back to back.
	Burst int
}

// DefaultAuthServiceConfig returns the default configuration.
func DefaultAuthServiceConfig() AuthServiceConfig {
	return AuthServiceConfig{
		AttemptsPerMinute: 6,
		Burst:             5,
	}
}

// NewAuthService creates a new AuthService.
func NewAuthService(store Store, cfg AuthServiceConfig, opts Options) *AuthService {
	if cfg.AttemptsPerMinute <= 0 {
		cfg.AttemptsPerMinute = DefaultAuthServiceConfig().AttemptsPerMinute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultAuthServiceConfig().Burst
	}
	return &AuthService{
		store:    store,
		opts:     opts.withDefaults(),
		limiters: NewRateLimiterRegistry(),
		cfg:      cfg,
	}
}

// Authenticate checks password against the stored hash of user code.
// Unknown users, inactive users, users without password and wrong
// passwords all fail with ErrInvalidCredentials. Returns the user with the
// hash removed.
func (s *AuthService) Authenticate(ctx context.Context, code int64, password string) (*domain.User, error) {
	limiter := s.limiters.GetOrCreate(code, s.cfg.AttemptsPerMinute, s.cfg.Burst)
	if !limiter.Allow() {
		s.opts.Logger.Warn("login attempt rate limited", "code", code)
		return nil, domain.ErrTooManyAttempts.WithDetailsf("user %d", code)
	}

	var u *domain.User
	err := s.store.View(ctx, func(tx storage.Tables) error {
		var err error
		u, err = tx.User(code)
		return err
	})
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !u.Active || u.PasswordHash == "" || !domain.VerifyPassword(password, u.PasswordHash) {
		s.opts.Logger.Info("login rejected", "code", code)
		return nil, domain.ErrInvalidCredentials
	}

	s.limiters.Delete(code)
	out := u.Clone()
	out.PasswordHash = ""
	return out, nil
}

// ============================================================================
// RateLimiterRegistry - Rate Limiter Management
// ============================================================================

// RateLimiterRegistry manages login rate limiters per user code.
type RateLimiterRegistry struct {
	mu       sync.RWMutex
	limiters map[int64]*rate.Limiter
}

// NewRateLimiterRegistry creates a new RateLimiterRegistry.
func NewRateLimiterRegistry() *RateLimiterRegistry {
	return &RateLimiterRegistry{
		limiters: make(map[int64]*rate.Limiter),
	}
}

// GetOrCreate retrieves an existing rate limiter or creates a new one
// allowing perMinute attempts per minute with the given burst.
func (r *RateLimiterRegistry) GetOrCreate(code int64, perMinute, burst int) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[code]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := r.limiters[code]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
	r.limiters[code] = limiter
	return limiter
}

// Delete removes the rate limiter of a user code.
func (r *RateLimiterRegistry) Delete(code int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.limiters, code)
}

// Clear removes all rate limiters.
func (r *RateLimiterRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.limiters = make(map[int64]*rate.Limiter)
}
