// Package services – ClientRegistry
//
// This file implements ClientRegistry, the owner of every live platform
// client. It keeps at most one connected client per user, reuses it across
// requests, and replaces it when the caller's api_id changes or the connection
// cannot be revived.
//
// Acquire, Reset and Logout for one user are serialized by a per-user lock
// that is held for the whole check, discard, create, install sequence.
// Operations for different users only share the short critical sections that
// guard the maps.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/tg-analytics-gateway/internal/domain"
	"github.com/tbourn/tg-analytics-gateway/internal/platform"
)

// errRegistryClosed is the cause reported after ShutdownAll.
var errRegistryClosed = errors.New("registry is shut down")

// SessionStore is the subset of session.Store the registry needs.
type SessionStore interface {
	// Path returns the blob path for userID, creating the directory.
	Path(userID string) (string, error)
	// Remove deletes the blob for userID; a missing blob is not an error.
	Remove(userID string) error
}

// RegistryOptions tunes timeouts and the per-user connect breaker.
type RegistryOptions struct {
	ConnectTimeout  time.Duration
	PlatformTimeout time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
}

func (o RegistryOptions) withDefaults() RegistryOptions {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 20 * time.Second
	}
	if o.PlatformTimeout <= 0 {
		o.PlatformTimeout = 30 * time.Second
	}
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = 5
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 30 * time.Second
	}
	return o
}

type clientEntry struct {
	userID string
	client platform.Client
	creds  domain.Credentials
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// ClientRegistry maps user ids to connected platform clients.
type ClientRegistry struct {
	factory  platform.Factory
	sessions SessionStore
	opts     RegistryOptions

	mu       sync.Mutex
	entries  map[string]*clientEntry
	locks    map[string]*userLock
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
	closed   bool
}

// NewClientRegistry builds an empty registry.
func NewClientRegistry(factory platform.Factory, sessions SessionStore, opts RegistryOptions) *ClientRegistry {
	return &ClientRegistry{
		factory:  factory,
		sessions: sessions,
		opts:     opts.withDefaults(),
		entries:  make(map[string]*clientEntry),
		locks:    make(map[string]*userLock),
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// PlatformTimeout is the bound applied to individual platform calls.
func (r *ClientRegistry) PlatformTimeout() time.Duration { return r.opts.PlatformTimeout }

// Acquire returns the connected client for userID, creating or replacing it
// as needed. creds may be nil when an entry already exists.
func (r *ClientRegistry) Acquire(ctx context.Context, userID string, creds *domain.Credentials) (platform.Client, error) {
	ctx, span := otel.Tracer("services/ClientRegistry").Start(ctx, "Acquire",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Bool("credentials.supplied", creds != nil),
		),
	)
	defer span.End()

	if userID == "" {
		return nil, configError("user id is required")
	}
	unlock := r.lock(userID)
	defer unlock()

	c, err := r.acquireLocked(ctx, userID, creds)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return c, err
}

func (r *ClientRegistry) acquireLocked(ctx context.Context, userID string, creds *domain.Credentials) (platform.Client, error) {
	if r.isClosed() {
		return nil, connectionError(errRegistryClosed)
	}

	if e := r.entry(userID); e != nil {
		switch {
		case creds != nil && creds.APIID != e.creds.APIID:
			log.Info().Str("user_id", userID).Msg("api_id changed, recreating client")
			r.discard(ctx, e)
			clientEvents.WithLabelValues("recreated").Inc()
		case r.revive(ctx, e):
			clientEvents.WithLabelValues("reused").Inc()
			return e.client, nil
		default:
			log.Warn().Str("user_id", userID).Msg("client unreachable, discarding")
			r.discard(ctx, e)
		}
	}

	if creds == nil || !creds.Valid() {
		return nil, configError("Telegram not configured: api_id and api_hash are required")
	}
	return r.create(ctx, userID, *creds)
}

// Reset discards any client for userID and creates a fresh one with creds.
func (r *ClientRegistry) Reset(ctx context.Context, userID string, creds domain.Credentials) (platform.Client, error) {
	ctx, span := otel.Tracer("services/ClientRegistry").Start(ctx, "Reset",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if userID == "" {
		return nil, configError("user id is required")
	}
	if !creds.Valid() {
		return nil, configError("api_id and api_hash are required")
	}
	unlock := r.lock(userID)
	defer unlock()

	if r.isClosed() {
		return nil, connectionError(errRegistryClosed)
	}
	if e := r.entry(userID); e != nil {
		r.discard(ctx, e)
		clientEvents.WithLabelValues("recreated").Inc()
	}
	return r.create(ctx, userID, creds)
}

// Logout signs the user out and removes the entry. It reports false when
// there was no entry. The entry is removed even when sign-out fails.
func (r *ClientRegistry) Logout(ctx context.Context, userID string) (bool, error) {
	ctx, span := otel.Tracer("services/ClientRegistry").Start(ctx, "Logout",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	unlock := r.lock(userID)
	defer unlock()

	e := r.entry(userID)
	if e == nil || !r.claim(e) {
		return false, nil
	}

	pctx, cancel := context.WithTimeout(ctx, r.opts.PlatformTimeout)
	defer cancel()
	outErr := e.client.LogOut(pctx)
	if err := e.client.Disconnect(pctx); err != nil && outErr == nil {
		outErr = err
	}
	clientEvents.WithLabelValues("logged_out").Inc()
	if outErr != nil {
		span.RecordError(outErr)
		log.Warn().Err(outErr).Str("user_id", userID).Msg("logout did not complete cleanly")
		return true, platformError(outErr)
	}
	log.Info().Str("user_id", userID).Msg("client logged out")
	return true, nil
}

// Peek returns the current client for userID without creating one.
func (r *ClientRegistry) Peek(userID string) (platform.Client, bool) {
	e := r.entry(userID)
	if e == nil {
		return nil, false
	}
	return e.client, true
}

// Len reports the number of live entries.
func (r *ClientRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// ShutdownAll disconnects every client and rejects further acquires.
// Disconnect failures are logged only.
func (r *ClientRegistry) ShutdownAll(ctx context.Context) {
	r.mu.Lock()
	r.closed = true
	entries := make([]*clientEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.entries = make(map[string]*clientEntry)
	r.mu.Unlock()
	clientsActive.Set(0)

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *clientEntry) {
			defer wg.Done()
			if err := e.client.Disconnect(ctx); err != nil {
				log.Error().Err(err).Str("user_id", e.userID).Msg("disconnect on shutdown failed")
			}
		}(e)
	}
	wg.Wait()
	log.Info().Int("clients", len(entries)).Msg("client registry shut down")
}

// revive reports whether e is usable, reconnecting it once if the health
// check fails. A reconnect only counts when the client is healthy again
// afterwards.
func (r *ClientRegistry) revive(ctx context.Context, e *clientEntry) bool {
	if r.healthy(ctx, e.client) {
		return true
	}

	cctx, cancel := context.WithTimeout(ctx, r.opts.ConnectTimeout)
	err := e.client.Connect(cctx)
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("user_id", e.userID).Msg("reconnect failed")
		return false
	}
	if !r.healthy(ctx, e.client) {
		log.Warn().Str("user_id", e.userID).Msg("client still unhealthy after reconnect")
		return false
	}
	log.Info().Str("user_id", e.userID).Msg("client reconnected")
	return true
}

func (r *ClientRegistry) healthy(ctx context.Context, c platform.Client) bool {
	pctx, cancel := context.WithTimeout(ctx, r.opts.PlatformTimeout)
	defer cancel()
	return c.IsConnected(pctx)
}

// create connects a new client and installs it. The caller holds the user
// lock and has already discarded any previous entry.
func (r *ClientRegistry) create(ctx context.Context, userID string, creds domain.Credentials) (platform.Client, error) {
	path, err := r.sessions.Path(userID)
	if err != nil {
		return nil, connectionError(err)
	}
	client, err := r.factory(path, creds)
	if err != nil {
		return nil, newError(ErrConfiguration, "", err)
	}

	start := time.Now()
	_, err = r.breaker(userID).Execute(func() (struct{}, error) {
		cctx, cancel := context.WithTimeout(ctx, r.opts.ConnectTimeout)
		defer cancel()
		return struct{}{}, client.Connect(cctx)
	})
	connectDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		clientEvents.WithLabelValues("connect_failed").Inc()
		dctx, cancel := context.WithTimeout(context.Background(), r.opts.PlatformTimeout)
		_ = client.Disconnect(dctx)
		cancel()

		rejected := errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
		// The blob may be corrupt. Skip removal when nothing was attempted or
		// the caller went away.
		if !rejected && ctx.Err() == nil {
			if rmErr := r.sessions.Remove(userID); rmErr != nil {
				log.Warn().Err(rmErr).Str("user_id", userID).Msg("remove session blob")
			}
		}
		log.Warn().Err(err).Str("user_id", userID).Bool("breaker_open", rejected).Msg("connect failed")
		return nil, connectionError(err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		dctx, cancel := context.WithTimeout(context.Background(), r.opts.PlatformTimeout)
		_ = client.Disconnect(dctx)
		cancel()
		return nil, connectionError(errRegistryClosed)
	}
	r.entries[userID] = &clientEntry{userID: userID, client: client, creds: creds}
	n := len(r.entries)
	r.mu.Unlock()

	clientsActive.Set(float64(n))
	clientEvents.WithLabelValues("created").Inc()
	log.Info().Str("user_id", userID).Int("api_id", creds.APIID).Msg("client created")
	return client, nil
}

// discard removes e from the map and disconnects it.
func (r *ClientRegistry) discard(ctx context.Context, e *clientEntry) {
	if !r.claim(e) {
		return
	}
	dctx, cancel := context.WithTimeout(ctx, r.opts.PlatformTimeout)
	defer cancel()
	if err := e.client.Disconnect(dctx); err != nil {
		log.Warn().Err(err).Str("user_id", e.userID).Msg("disconnect discarded client")
	}
	clientEvents.WithLabelValues("discarded").Inc()
}

func (r *ClientRegistry) entry(userID string) *clientEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[userID]
}

// claim removes e from the map if it is still the installed entry. Only the
// caller that claims an entry may disconnect it.
func (r *ClientRegistry) claim(e *clientEntry) bool {
	r.mu.Lock()
	cur, ok := r.entries[e.userID]
	if ok && cur == e {
		delete(r.entries, e.userID)
	}
	n := len(r.entries)
	r.mu.Unlock()
	if !ok || cur != e {
		return false
	}
	clientsActive.Set(float64(n))
	return true
}

func (r *ClientRegistry) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// lock acquires the per-user lock and returns its release function. Locks are
// reference counted and dropped from the map once unused.
func (r *ClientRegistry) lock(userID string) func() {
	r.mu.Lock()
	l, ok := r.locks[userID]
	if !ok {
		l = &userLock{}
		r.locks[userID] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, userID)
		}
		r.mu.Unlock()
	}
}

// breaker returns the connect breaker for userID, creating it on first use.
func (r *ClientRegistry) breaker(userID string) *gobreaker.CircuitBreaker[struct{}] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[userID]; ok {
		return cb
	}
	threshold := uint32(r.opts.BreakerFailures)
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "connect:" + userID,
		MaxRequests: 1,
		Timeout:     r.opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("connect breaker state change")
		},
	})
	r.breakers[userID] = cb
	return cb
}

// callContext bounds a single platform call.
func (r *ClientRegistry) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opts.PlatformTimeout)
}
