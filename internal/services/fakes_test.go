package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/tg-analytics-gateway/internal/domain"
	"github.com/tbourn/tg-analytics-gateway/internal/platform"
	"github.com/tbourn/tg-analytics-gateway/internal/repo"
)

// ----- Fake platform client -----

type fakeClient struct {
	seq   int
	creds domain.Credentials
	path  string

	mu          sync.Mutex
	connected   bool
	stalled     bool // running, but the server no longer answers
	keepStalled bool // Connect is a no-op while connected
	connectErr  error
	connectWait time.Duration

	authorized bool
	authErr    error

	sendHash  string
	sendErr   error
	signInErr error
	identity  *domain.Identity
	logOutErr error
	discErr   error

	messages map[string]*domain.Message
	getErrs  map[string]error
	dialogs  []domain.Dialog
	refs     []domain.PeerRef

	connects    atomic.Int32
	disconnects atomic.Int32
	logouts     atomic.Int32
	gets        atomic.Int32
}

func msgKey(ref domain.PeerRef, id int) string { return fmt.Sprintf("%s/%d", ref.String(), id) }

func (c *fakeClient) Connect(ctx context.Context) error {
	c.connects.Add(1)
	if c.connectWait > 0 {
		select {
		case <-time.After(c.connectWait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr != nil {
		return c.connectErr
	}
	if c.connected && c.keepStalled {
		return nil
	}
	c.connected, c.stalled = true, false
	return nil
}

func (c *fakeClient) Disconnect(context.Context) error {
	c.disconnects.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected, c.stalled = false, false
	return c.discErr
}

func (c *fakeClient) IsConnected(context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && !c.stalled
}

// stall simulates a live connection whose pings fail.
func (c *fakeClient) stall(keep bool) {
	c.mu.Lock()
	c.stalled, c.keepStalled = true, keep
	c.mu.Unlock()
}

// drop simulates a connection that died silently.
func (c *fakeClient) drop() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *fakeClient) IsAuthorized(context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authorized, c.authErr
}

func (c *fakeClient) SendCode(_ context.Context, phone string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return "", c.sendErr
	}
	if c.sendHash != "" {
		return c.sendHash, nil
	}
	return "hash-for-" + phone, nil
}

func (c *fakeClient) SignIn(_ context.Context, phone, code, hash string) (*domain.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.signInErr != nil {
		return nil, c.signInErr
	}
	c.authorized = true
	if c.identity != nil {
		return c.identity, nil
	}
	return &domain.Identity{ID: 42, Username: "ada", FirstName: "Ada"}, nil
}

func (c *fakeClient) Self(context.Context) (*domain.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity != nil {
		return c.identity, nil
	}
	return &domain.Identity{ID: 42, Username: "ada", FirstName: "Ada"}, nil
}

func (c *fakeClient) LogOut(context.Context) error {
	c.logouts.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authorized = false
	return c.logOutErr
}

func (c *fakeClient) GetMessage(_ context.Context, ref domain.PeerRef, id int) (*domain.Message, error) {
	c.gets.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs = append(c.refs, ref)
	if err, ok := c.getErrs[msgKey(ref, id)]; ok {
		return nil, err
	}
	if err, ok := c.getErrs[ref.String()]; ok {
		return nil, err
	}
	return c.messages[msgKey(ref, id)], nil
}

func (c *fakeClient) GetDialogs(_ context.Context, limit int) ([]domain.Dialog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit < len(c.dialogs) {
		return c.dialogs[:limit], nil
	}
	return c.dialogs, nil
}

// ----- Fake factory -----

type fakeFactory struct {
	mu      sync.Mutex
	clients []*fakeClient
	setup   func(c *fakeClient)
	err     error
}

func (f *fakeFactory) New(path string, creds domain.Credentials) (platform.Client, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	c := &fakeClient{seq: len(f.clients) + 1, creds: creds, path: path, authorized: true}
	f.clients = append(f.clients, c)
	setup := f.setup
	f.mu.Unlock()
	if setup != nil {
		setup(c)
	}
	return c, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func (f *fakeFactory) last() *fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.clients) == 0 {
		return nil
	}
	return f.clients[len(f.clients)-1]
}

// ----- Fake session store -----

type fakeSessions struct {
	mu      sync.Mutex
	pathErr error
	removed []string
}

func (s *fakeSessions) Path(userID string) (string, error) {
	if s.pathErr != nil {
		return "", s.pathErr
	}
	return "/sessions/session_" + userID + ".json", nil
}

func (s *fakeSessions) Remove(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, userID)
	return nil
}

func (s *fakeSessions) removals() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.removed)
}

// ----- Fake repos -----

type fakeSignInRepo struct {
	mu      sync.Mutex
	rows    map[string]domain.PendingSignIn
	saveErr error
}

func newFakeSignInRepo() *fakeSignInRepo {
	return &fakeSignInRepo{rows: make(map[string]domain.PendingSignIn)}
}

func (r *fakeSignInRepo) SavePendingSignIn(_ context.Context, _ *gorm.DB, userID, phone, hash string) (*domain.PendingSignIn, error) {
	if r.saveErr != nil {
		return nil, r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p := domain.PendingSignIn{UserID: userID, PhoneNumber: phone, PhoneCodeHash: hash, CreatedAt: time.Now().UTC()}
	r.rows[userID] = p
	return &p, nil
}

func (r *fakeSignInRepo) GetPendingSignIn(_ context.Context, _ *gorm.DB, userID string) (*domain.PendingSignIn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *fakeSignInRepo) DeletePendingSignIn(_ context.Context, _ *gorm.DB, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, userID)
	return nil
}

type fakeSnapshotRepo struct {
	mu        sync.Mutex
	rows      map[string]map[repo.SnapshotKey]domain.AnalyticsRecord
	upsertErr error
	countErr  error
	calls     int
}

func newFakeSnapshotRepo() *fakeSnapshotRepo {
	return &fakeSnapshotRepo{rows: make(map[string]map[repo.SnapshotKey]domain.AnalyticsRecord)}
}

func (r *fakeSnapshotRepo) UpsertSnapshots(_ context.Context, _ *gorm.DB, userID string, recs map[repo.SnapshotKey]domain.AnalyticsRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.upsertErr != nil {
		return r.upsertErr
	}
	if r.rows[userID] == nil {
		r.rows[userID] = make(map[repo.SnapshotKey]domain.AnalyticsRecord)
	}
	for k, v := range recs {
		r.rows[userID][k] = v
	}
	return nil
}

func (r *fakeSnapshotRepo) CountSnapshots(_ context.Context, _ *gorm.DB, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.countErr != nil {
		return 0, r.countErr
	}
	return int64(len(r.rows[userID])), nil
}

func (r *fakeSnapshotRepo) ListSnapshotsPage(_ context.Context, _ *gorm.DB, userID string, offset, limit int) ([]domain.AnalyticsSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AnalyticsSnapshot, 0, len(r.rows[userID]))
	for k, v := range r.rows[userID] {
		out = append(out, domain.AnalyticsSnapshot{
			UserID: userID, ChatRef: k.ChatRef, MessageID: k.MessageID,
			Views: v.Views, Forwards: v.Forwards, Replies: v.Replies, Reactions: v.Reactions, Voters: v.Voters,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	if offset >= len(out) {
		return []domain.AnalyticsSnapshot{}, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

// ----- Helpers -----

var errBoom = errors.New("boom")

func creds(id int) *domain.Credentials {
	return &domain.Credentials{APIID: id, APIHash: "hash"}
}

func intp(n int) *int { return &n }

func newTestRegistry(f *fakeFactory, s *fakeSessions) *ClientRegistry {
	return NewClientRegistry(f.New, s, RegistryOptions{
		ConnectTimeout:  time.Second,
		PlatformTimeout: time.Second,
		BreakerFailures: 100,
		BreakerCooldown: time.Minute,
	})
}
