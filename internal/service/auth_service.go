package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/auth"
	"github.com/spec-kit/ticket-desk/internal/cache"
	"github.com/spec-kit/ticket-desk/internal/clock"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/ticketbase"
	apperrors "github.com/spec-kit/ticket-desk/pkg/util"
)

// Authenticator exchanges credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (ticketbase.LoginResult, error)
}

// AuthService coordinates login, logout and the persisted token.
type AuthService struct {
	remote Authenticator
	tokens auth.TokenStore
	cache  *cache.Cache
	clock  clock.Clock
	logger *zap.Logger

	mu       sync.Mutex
	current  *domain.Token
	loaded   bool
	onLogout []func()
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Remote Authenticator
	Tokens auth.TokenStore
	Cache  *cache.Cache
	Clock  clock.Clock
	Logger *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	s := &AuthService{
		remote: deps.Remote,
		tokens: deps.Tokens,
		cache:  deps.Cache,
		clock:  deps.Clock,
		logger: deps.Logger,
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Login authenticates against the ticketing API and persists the token.
func (s *AuthService) Login(ctx context.Context, username, password string) (domain.Technician, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.Technician{}, apperrors.NewValidationError("username and password are required", nil)
	}

	res, err := s.remote.Login(ctx, username, password)
	if err != nil {
		var apiErr *ticketbase.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			msg := apiErr.Message
			if msg == "" {
				msg = "invalid credentials"
			}
			return domain.Technician{}, apperrors.NewUnauthorized(msg)
		}
		return domain.Technician{}, fmt.Errorf("login: %w", err)
	}

	tech := res.Technician
	if claims, ok := auth.InspectToken(res.Token); ok {
		tech = auth.ApplyClaims(tech, claims)
	}
	if tech.ID == 0 {
		return domain.Technician{}, fmt.Errorf("login: %w: no technician id", ticketbase.ErrMalformed)
	}

	tok := domain.Token{Value: res.Token, Technician: tech, IssuedAt: s.clock.Now()}
	if err := s.tokens.Save(tok); err != nil {
		return domain.Technician{}, fmt.Errorf("login: %w", err)
	}

	s.mu.Lock()
	s.current = &tok
	s.loaded = true
	s.mu.Unlock()

	s.logger.Info("technician logged in", zap.Int64("user_id", tech.ID), zap.String("name", tech.Name))
	return tech, nil
}

// Current returns the logged-in technician. An expired token counts as
// logged out.
func (s *AuthService) Current(_ context.Context) (domain.Technician, error) {
	tok, ok := s.token()
	if !ok {
		return domain.Technician{}, auth.ErrNotAuthenticated
	}
	return tok.Technician, nil
}

// Token returns the bearer token for API calls, or "" when logged out.
func (s *AuthService) Token() string {
	tok, ok := s.token()
	if !ok {
		return ""
	}
	return tok.Value
}

// Logout removes the stored token, clears the cache and runs the logout hooks.
func (s *AuthService) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.loaded = true
	hooks := append([]func(){}, s.onLogout...)
	s.mu.Unlock()

	err := s.tokens.Clear()
	if s.cache != nil {
		s.cache.Clear(ctx)
	}
	for _, hook := range hooks {
		hook()
	}
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.logger.Info("technician logged out")
	return nil
}

// OnLogout registers fn to run after every logout.
func (s *AuthService) OnLogout(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogout = append(s.onLogout, fn)
}

func (s *AuthService) token() (domain.Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.loaded = true
		tok, err := s.tokens.Load()
		switch {
		case err == nil:
			s.current = &tok
		case !errors.Is(err, auth.ErrNoToken):
			s.logger.Warn("stored token unreadable", zap.Error(err))
		}
	}
	if s.current == nil || s.current.Expired(s.clock.Now()) {
		return domain.Token{}, false
	}
	return *s.current, true
}
