// Package services – AuthService
//
// This file implements the phone login flow for a user's platform account:
// request a verification code, sign in with it, inspect the current account,
// and log out. Per-user progress is tracked as a small state machine:
//
//	Unauthenticated -> CodeRequested -> Authenticated
//
// CodeRequested may loop on itself when a new code is requested. The
// phone_code_hash issued by RequestCode is stored as a pending sign-in and
// must be echoed back verbatim; a stale or consumed hash is rejected before
// the platform is contacted.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/width"
	"gorm.io/gorm"

	"github.com/tbourn/tg-analytics-gateway/internal/domain"
	"github.com/tbourn/tg-analytics-gateway/internal/platform"
)

// AuthState is the login progress of one user.
type AuthState string

const (
	StateUnauthenticated AuthState = "unauthenticated"
	StateCodeRequested   AuthState = "code_requested"
	StateAuthenticated   AuthState = "authenticated"
)

// SignInRepo defines the persistence contract for pending sign-ins.
type SignInRepo interface {
	// SavePendingSignIn upserts the single pending row for the user.
	SavePendingSignIn(ctx context.Context, db *gorm.DB, userID, phone, hash string) (*domain.PendingSignIn, error)
	// GetPendingSignIn returns the pending row or a not-found error.
	GetPendingSignIn(ctx context.Context, db *gorm.DB, userID string) (*domain.PendingSignIn, error)
	// DeletePendingSignIn removes the pending row, if any.
	DeletePendingSignIn(ctx context.Context, db *gorm.DB, userID string) error
}

// AuthService drives the login state machine on top of the registry.
type AuthService struct {
	DB       *gorm.DB
	Repo     SignInRepo
	Registry *ClientRegistry

	mu     sync.Mutex
	states map[string]AuthState
}

// NewAuthService wires an AuthService.
func NewAuthService(db *gorm.DB, r SignInRepo, reg *ClientRegistry) *AuthService {
	return &AuthService{DB: db, Repo: r, Registry: reg, states: make(map[string]AuthState)}
}

// Setup replaces the user's client with one built from creds and reports
// whether the existing session blob is already authorized. Any pending code
// request is abandoned.
func (s *AuthService) Setup(ctx context.Context, userID string, creds domain.Credentials) (bool, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Setup",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("api.id", creds.APIID),
		),
	)
	defer span.End()

	client, err := s.Registry.Reset(ctx, userID, creds)
	if err != nil {
		return false, err
	}
	if derr := s.Repo.DeletePendingSignIn(ctx, s.DB, userID); derr != nil {
		log.Warn().Err(derr).Str("user_id", userID).Msg("delete pending sign-in")
	}

	cctx, cancel := s.Registry.callContext(ctx)
	defer cancel()
	authorized, err := client.IsAuthorized(cctx)
	if err != nil {
		span.RecordError(err)
		return false, fromPlatform(err)
	}
	if authorized {
		s.setState(userID, StateAuthenticated)
	} else {
		s.setState(userID, StateUnauthenticated)
	}
	return authorized, nil
}

// RequestCode asks the platform to send a login code to phone and returns the
// phone_code_hash the caller must present to SignIn.
func (s *AuthService) RequestCode(ctx context.Context, userID, phone string, creds *domain.Credentials) (string, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "RequestCode",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	phone = NormalizePhone(phone)
	if phone == "" {
		return "", configError("phone is required")
	}

	client, err := s.Registry.Acquire(ctx, userID, creds)
	if err != nil {
		return "", err
	}

	cctx, cancel := s.Registry.callContext(ctx)
	defer cancel()
	hash, err := client.SendCode(cctx, phone)
	if err != nil {
		span.RecordError(err)
		return "", fromPlatform(err)
	}

	if _, err := s.Repo.SavePendingSignIn(ctx, s.DB, userID, phone, hash); err != nil {
		return "", fmt.Errorf("save pending sign-in: %w", err)
	}
	s.setState(userID, StateCodeRequested)
	log.Info().Str("user_id", userID).Msg("login code requested")
	return hash, nil
}

// SignIn completes the login with the code the user received.
func (s *AuthService) SignIn(ctx context.Context, userID, phone, code, hash string, creds *domain.Credentials) (*domain.Identity, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "SignIn",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	phone = NormalizePhone(phone)
	code = strings.TrimSpace(code)
	hash = strings.TrimSpace(hash)
	if phone == "" || code == "" || hash == "" {
		return nil, configError("phone, code and phone_code_hash are required")
	}

	pending, err := s.Repo.GetPendingSignIn(ctx, s.DB, userID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, authError("no pending code request; request a new code", nil)
	case err != nil:
		return nil, fmt.Errorf("load pending sign-in: %w", err)
	case pending.PhoneCodeHash != hash:
		return nil, authError("phone_code_hash does not match the latest code request", nil)
	case pending.PhoneNumber != phone:
		return nil, authError("phone does not match the latest code request", nil)
	}

	client, err := s.Registry.Acquire(ctx, userID, creds)
	if err != nil {
		return nil, err
	}

	cctx, cancel := s.Registry.callContext(ctx)
	defer cancel()
	id, err := client.SignIn(cctx, phone, code, hash)
	if err != nil {
		span.RecordError(err)
		return nil, signInError(err)
	}

	if err := s.Repo.DeletePendingSignIn(ctx, s.DB, userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("delete pending sign-in")
	}
	s.setState(userID, StateAuthenticated)
	log.Info().Str("user_id", userID).Int64("account_id", id.ID).Msg("signed in")
	return id, nil
}

// CurrentUser returns the identity of the authorized account.
func (s *AuthService) CurrentUser(ctx context.Context, userID string, creds *domain.Credentials) (*domain.Identity, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "CurrentUser",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	client, err := s.Registry.Acquire(ctx, userID, creds)
	if err != nil {
		return nil, err
	}
	cctx, cancel := s.Registry.callContext(ctx)
	defer cancel()
	if err := ensureAuthorized(cctx, client); err != nil {
		return nil, err
	}
	id, err := client.Self(cctx)
	if err != nil {
		return nil, fromPlatform(err)
	}
	s.setState(userID, StateAuthenticated)
	return id, nil
}

// Logout signs the account out and forgets any pending code request. It
// reports false when the user had no client.
func (s *AuthService) Logout(ctx context.Context, userID string) (bool, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Logout",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	had, err := s.Registry.Logout(ctx, userID)
	if derr := s.Repo.DeletePendingSignIn(ctx, s.DB, userID); derr != nil {
		log.Warn().Err(derr).Str("user_id", userID).Msg("delete pending sign-in")
	}
	s.setState(userID, StateUnauthenticated)
	return had, err
}

// Status reports whether userID has a client and whether it is authorized.
// It never creates a client and never fails; check errors read as not
// authorized.
func (s *AuthService) Status(ctx context.Context, userID string) (configured, authorized bool) {
	client, ok := s.Registry.Peek(userID)
	if !ok {
		return false, false
	}
	cctx, cancel := s.Registry.callContext(ctx)
	defer cancel()
	authorized, err := client.IsAuthorized(cctx)
	if err != nil {
		return true, false
	}
	return true, authorized
}

// State returns the login state recorded for userID.
func (s *AuthService) State(userID string) AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[userID]; ok {
		return st
	}
	return StateUnauthenticated
}

func (s *AuthService) setState(userID string, st AuthState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st == StateUnauthenticated {
		delete(s.states, userID)
		return
	}
	s.states[userID] = st
}

// ensureAuthorized fails with ErrAuth unless client holds an authorized
// session.
func ensureAuthorized(ctx context.Context, client platform.Client) error {
	ok, err := client.IsAuthorized(ctx)
	if err != nil {
		return fromPlatform(err)
	}
	if !ok {
		return authError("Telegram account not authorized; sign in first", nil)
	}
	return nil
}

// signInError maps a platform sign-in failure. Anything the server rejected
// is an auth failure; transport problems keep their own kind.
func signInError(err error) error {
	switch {
	case errors.Is(err, platform.ErrPasswordRequired):
		return authError("two-step verification is enabled for this account; password sign-in is not supported", err)
	case errors.Is(err, platform.ErrInvalidCode):
		return authError("invalid verification code", err)
	case errors.Is(err, platform.ErrCodeExpired):
		return authError("verification code expired; request a new code", err)
	case errors.Is(err, platform.ErrNotConnected),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return fromPlatform(err)
	default:
		return authError("", err)
	}
}

// NormalizePhone folds full-width characters and keeps only digits and a
// leading '+'. It returns "" when no digits remain.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(width.Narrow.String(s))
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if strings.TrimPrefix(out, "+") == "" {
		return ""
	}
	return out
}
