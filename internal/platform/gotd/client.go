// Package gotd implements platform.Client on top of github.com/gotd/td.
//
// A gotd telegram.Client is driven by Run, which blocks for the lifetime of
// the connection. Client.Connect starts Run in a goroutine and returns once
// the connection is ready; Disconnect cancels it and waits for Run to exit.
// Each Connect builds a fresh telegram.Client over the same file session
// storage, so a dropped connection can be re-established in place.
package gotd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tbourn/tg-analytics-gateway/internal/domain"
	"github.com/tbourn/tg-analytics-gateway/internal/platform"
)

// Options tunes every client produced by NewFactory.
type Options struct {
	// PeerCacheSize bounds the per-client resolved peer cache.
	PeerCacheSize int
	// DialogsLimit is the page size used when warming the peer cache.
	DialogsLimit int
}

func (o Options) withDefaults() Options {
	if o.PeerCacheSize <= 0 {
		o.PeerCacheSize = 1024
	}
	if o.DialogsLimit <= 0 {
		o.DialogsLimit = 100
	}
	return o
}

// NewFactory returns a platform.Factory producing gotd-backed clients.
func NewFactory(opts Options) platform.Factory {
	return func(sessionPath string, creds domain.Credentials) (platform.Client, error) {
		return New(sessionPath, creds, opts)
	}
}

// Client is a platform.Client backed by gotd.
type Client struct {
	appID       int
	appHash     string
	sessionPath string
	opts        Options
	peers       *lru.Cache[string, tg.InputPeerClass]

	mu     sync.Mutex
	tc     *telegram.Client
	api    *tg.Client
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds an unconnected client bound to sessionPath.
func New(sessionPath string, creds domain.Credentials, opts Options) (*Client, error) {
	if !creds.Valid() {
		return nil, errors.New("gotd: api_id and api_hash are required")
	}
	opts = opts.withDefaults()
	cache, err := lru.New[string, tg.InputPeerClass](opts.PeerCacheSize)
	if err != nil {
		return nil, fmt.Errorf("gotd: peer cache: %w", err)
	}
	return &Client{
		appID:       creds.APIID,
		appHash:     creds.APIHash,
		sessionPath: sessionPath,
		opts:        opts,
		peers:       cache,
	}, nil
}

// Connect starts the connection and blocks until it is ready, Run fails, or
// ctx is done. A running connection that no longer answers a ping is torn
// down and rebuilt.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runningLocked() {
		if c.tc.Ping(ctx) == nil {
			return nil
		}
		if err := c.stopLocked(ctx); err != nil {
			return fmt.Errorf("gotd: reconnect: %w", err)
		}
	}

	tc := telegram.NewClient(c.appID, c.appHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: c.sessionPath},
		NoUpdates:      true,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan struct{})
	var runErr error
	go func() {
		defer close(done)
		runErr = tc.Run(runCtx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return nil
		})
	}()

	select {
	case <-ready:
	case <-done:
		cancel()
		if runErr == nil {
			runErr = platform.ErrNotConnected
		}
		return fmt.Errorf("gotd: connect: %w", runErr)
	case <-ctx.Done():
		cancel()
		<-done
		return fmt.Errorf("gotd: connect: %w", ctx.Err())
	}

	c.tc, c.api, c.cancel, c.done = tc, tc.API(), cancel, done
	return nil
}

// Disconnect stops the connection and waits for it to wind down.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.stopLocked(ctx); err != nil {
		return fmt.Errorf("gotd: disconnect: %w", err)
	}
	return nil
}

// IsConnected reports whether Run is alive and the server answers a ping.
func (c *Client) IsConnected(ctx context.Context) bool {
	tc, _, err := c.live()
	if err != nil {
		return false
	}
	return tc.Ping(ctx) == nil
}

// IsAuthorized reports whether the session holds an authorized account.
func (c *Client) IsAuthorized(ctx context.Context) (bool, error) {
	tc, _, err := c.live()
	if err != nil {
		return false, err
	}
	st, err := tc.Auth().Status(ctx)
	if err != nil {
		return false, mapError(err)
	}
	return st.Authorized, nil
}

// SendCode asks Telegram to deliver a login code to phone.
func (c *Client) SendCode(ctx context.Context, phone string) (string, error) {
	tc, _, err := c.live()
	if err != nil {
		return "", err
	}
	sent, err := tc.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return "", mapError(err)
	}
	switch v := sent.(type) {
	case *tg.AuthSentCode:
		return v.PhoneCodeHash, nil
	default:
		return "", fmt.Errorf("gotd: unexpected sent code %T", sent)
	}
}

// SignIn completes the phone login.
func (c *Client) SignIn(ctx context.Context, phone, code, phoneCodeHash string) (*domain.Identity, error) {
	tc, _, err := c.live()
	if err != nil {
		return nil, err
	}
	a, err := tc.Auth().SignIn(ctx, phone, code, phoneCodeHash)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordAuthNeeded) {
			return nil, platform.ErrPasswordRequired
		}
		return nil, mapError(err)
	}
	u, ok := a.User.AsNotEmpty()
	if !ok {
		return nil, errors.New("gotd: sign in returned empty user")
	}
	return identityFromTG(u), nil
}

// Self returns the authorized account.
func (c *Client) Self(ctx context.Context) (*domain.Identity, error) {
	tc, _, err := c.live()
	if err != nil {
		return nil, err
	}
	u, err := tc.Self(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return identityFromTG(u), nil
}

// LogOut terminates the authorization server-side.
func (c *Client) LogOut(ctx context.Context) error {
	_, api, err := c.live()
	if err != nil {
		return err
	}
	if _, err := api.AuthLogOut(ctx); err != nil {
		return mapError(err)
	}
	c.peers.Purge()
	return nil
}

// GetMessage fetches one message. It returns (nil, nil) when absent.
func (c *Client) GetMessage(ctx context.Context, ref domain.PeerRef, id int) (*domain.Message, error) {
	_, api, err := c.live()
	if err != nil {
		return nil, err
	}
	peer, err := c.resolve(ctx, api, ref)
	if err != nil {
		return nil, err
	}
	ids := []tg.InputMessageClass{&tg.InputMessageID{ID: id}}

	var res tg.MessagesMessagesClass
	if ch, ok := peer.(*tg.InputPeerChannel); ok {
		res, err = api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: &tg.InputChannel{ChannelID: ch.ChannelID, AccessHash: ch.AccessHash},
			ID:      ids,
		})
	} else {
		res, err = api.MessagesGetMessages(ctx, ids)
	}
	if err != nil {
		return nil, mapError(err)
	}
	return findMessage(res, id), nil
}

// GetDialogs lists up to limit dialogs and warms the peer cache with them.
func (c *Client) GetDialogs(ctx context.Context, limit int) ([]domain.Dialog, error) {
	_, api, err := c.live()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = c.opts.DialogsLimit
	}
	res, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      limit,
	})
	if err != nil {
		return nil, mapError(err)
	}

	var (
		dialogs []tg.DialogClass
		chats   []tg.ChatClass
		users   []tg.UserClass
	)
	switch v := res.(type) {
	case *tg.MessagesDialogs:
		dialogs, chats, users = v.Dialogs, v.Chats, v.Users
	case *tg.MessagesDialogsSlice:
		dialogs, chats, users = v.Dialogs, v.Chats, v.Users
	default:
		return []domain.Dialog{}, nil
	}

	peers := peersFromTG(chats, users)
	c.remember(peers)
	return dialogsFromTG(dialogs, peers), nil
}

// live returns the current connection or ErrNotConnected.
func (c *Client) live() (*telegram.Client, *tg.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.runningLocked() {
		return nil, nil, platform.ErrNotConnected
	}
	return c.tc, c.api, nil
}

// stopLocked cancels Run and waits for it to exit. State is cleared even if
// ctx expires first; the old goroutine still exits on its own.
func (c *Client) stopLocked(ctx context.Context) error {
	cancel, done := c.cancel, c.done
	c.tc, c.api, c.cancel, c.done = nil, nil, nil, nil
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) runningLocked() bool {
	if c.done == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}
