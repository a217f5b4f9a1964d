package gotd

import (
	"context"
	"fmt"

	"github.com/gotd/td/tg"

	"github.com/tbourn/tg-analytics-gateway/internal/domain"
	"github.com/tbourn/tg-analytics-gateway/internal/platform"
)

// resolve turns a chat reference into an input peer. Handles are resolved
// through contacts.resolveUsername; numeric ids need an access hash, which
// only the dialog list provides, so a cache miss warms the cache from it.
func (c *Client) resolve(ctx context.Context, api *tg.Client, ref domain.PeerRef) (tg.InputPeerClass, error) {
	if !ref.Numeric() {
		return c.resolveUsername(ctx, api, ref.Username)
	}

	if p, ok := c.peers.Get(idKey(ref.ID)); ok {
		return p, nil
	}
	if kind, id := unmark(ref.ID); kind == kindChat {
		// Basic groups need no access hash.
		return &tg.InputPeerChat{ChatID: id}, nil
	}
	if _, err := c.GetDialogs(ctx, c.opts.DialogsLimit); err != nil {
		return nil, err
	}
	if p, ok := c.peers.Get(idKey(ref.ID)); ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %d", platform.ErrEntityNotFound, ref.ID)
}

func (c *Client) resolveUsername(ctx context.Context, api *tg.Client, name string) (tg.InputPeerClass, error) {
	key := nameKey(name)
	if p, ok := c.peers.Get(key); ok {
		return p, nil
	}
	res, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: name})
	if err != nil {
		return nil, mapError(err)
	}
	marked, ok := markedPeerID(res.Peer)
	if !ok {
		return nil, fmt.Errorf("%w: %s", platform.ErrEntityNotFound, name)
	}
	peers := peersFromTG(res.Chats, res.Users)
	c.remember(peers)
	p, ok := peers[marked]
	if !ok {
		return nil, fmt.Errorf("%w: %s", platform.ErrEntityNotFound, name)
	}
	c.peers.Add(key, p.input)
	return p.input, nil
}

// remember caches input peers by marked id and by username.
func (c *Client) remember(peers map[int64]resolvedPeer) {
	for marked, p := range peers {
		c.peers.Add(idKey(marked), p.input)
		if p.dialog.Username != "" {
			c.peers.Add(nameKey(p.dialog.Username), p.input)
		}
	}
}
