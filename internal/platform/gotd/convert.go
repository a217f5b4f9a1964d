package gotd

import (
	"strconv"
	"strings"

	"github.com/gotd/td/tg"

	"github.com/tbourn/tg-analytics-gateway/internal/domain"
)

// channelMarker offsets channel ids in the marked (-100...) form.
const channelMarker int64 = 1_000_000_000_000

type peerKind int

const (
	kindUser peerKind = iota
	kindChat
	kindChannel
)

// unmark splits a marked peer id into its kind and bare id.
func unmark(marked int64) (peerKind, int64) {
	switch {
	case marked <= -channelMarker:
		return kindChannel, -marked - channelMarker
	case marked < 0:
		return kindChat, -marked
	default:
		return kindUser, marked
	}
}

func markChannel(id int64) int64 { return -(channelMarker + id) }
func markChat(id int64) int64    { return -id }

func idKey(marked int64) string { return "id:" + strconv.FormatInt(marked, 10) }
func nameKey(name string) string {
	return "@" + strings.ToLower(strings.TrimPrefix(name, "@"))
}

// messageFromTG projects a tg message into the domain shape. Only fields with
// their presence flag set are carried over.
func messageFromTG(m *tg.Message) *domain.Message {
	out := &domain.Message{ID: m.ID}
	if v, ok := m.GetViews(); ok {
		out.Views = &v
	}
	if v, ok := m.GetForwards(); ok {
		out.Forwards = &v
	}
	if r, ok := m.GetReplies(); ok {
		out.Replies = &domain.ReplyThread{Count: r.Replies}
	}
	if r, ok := m.GetReactions(); ok {
		for _, rc := range r.Results {
			g := domain.ReactionGroup{Count: rc.Count}
			if e, ok := rc.Reaction.(*tg.ReactionEmoji); ok {
				g.Emoticon = e.Emoticon
			}
			out.Reactions = append(out.Reactions, g)
		}
	}
	if media, ok := m.GetMedia(); ok {
		if mp, ok := media.(*tg.MessageMediaPoll); ok {
			res := &domain.PollResults{}
			if tv, ok := mp.Results.GetTotalVoters(); ok {
				res.TotalVoters = &tv
			}
			out.Media = &domain.Media{Poll: res}
		}
	}
	return out
}

// findMessage picks message id out of a getMessages response. It returns nil
// when the server answered with an empty placeholder or omitted the id.
func findMessage(res tg.MessagesMessagesClass, id int) *domain.Message {
	var msgs []tg.MessageClass
	switch v := res.(type) {
	case *tg.MessagesMessages:
		msgs = v.Messages
	case *tg.MessagesMessagesSlice:
		msgs = v.Messages
	case *tg.MessagesChannelMessages:
		msgs = v.Messages
	default:
		return nil
	}
	for _, mc := range msgs {
		m, ok := mc.(*tg.Message)
		if !ok || m.ID != id {
			continue
		}
		return messageFromTG(m)
	}
	return nil
}

// resolvedPeer is one dialog/peer decoded from a users+chats payload.
type resolvedPeer struct {
	dialog domain.Dialog
	input  tg.InputPeerClass
}

// peersFromTG indexes users and chats by marked id.
func peersFromTG(chats []tg.ChatClass, users []tg.UserClass) map[int64]resolvedPeer {
	out := make(map[int64]resolvedPeer, len(chats)+len(users))
	for _, uc := range users {
		u, ok := uc.(*tg.User)
		if !ok {
			continue
		}
		name := strings.TrimSpace(u.FirstName + " " + u.LastName)
		out[u.ID] = resolvedPeer{
			dialog: domain.Dialog{
				TelegramID: strconv.FormatInt(u.ID, 10),
				Name:       name,
				Username:   u.Username,
				Type:       domain.DialogUser,
				AccessHash: u.AccessHash,
			},
			input: &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash},
		}
	}
	for _, cc := range chats {
		switch c := cc.(type) {
		case *tg.Chat:
			marked := markChat(c.ID)
			out[marked] = resolvedPeer{
				dialog: domain.Dialog{
					TelegramID: strconv.FormatInt(marked, 10),
					Name:       c.Title,
					Type:       domain.DialogGroup,
				},
				input: &tg.InputPeerChat{ChatID: c.ID},
			}
		case *tg.Channel:
			marked := markChannel(c.ID)
			kind := domain.DialogChannel
			if c.Megagroup || c.Gigagroup {
				kind = domain.DialogGroup
			}
			out[marked] = resolvedPeer{
				dialog: domain.Dialog{
					TelegramID: strconv.FormatInt(marked, 10),
					Name:       c.Title,
					Username:   c.Username,
					Type:       kind,
					AccessHash: c.AccessHash,
				},
				input: &tg.InputPeerChannel{ChannelID: c.ID, AccessHash: c.AccessHash},
			}
		}
	}
	return out
}

// markedPeerID converts a tg peer to the marked id form.
func markedPeerID(p tg.PeerClass) (int64, bool) {
	switch v := p.(type) {
	case *tg.PeerUser:
		return v.UserID, true
	case *tg.PeerChat:
		return markChat(v.ChatID), true
	case *tg.PeerChannel:
		return markChannel(v.ChannelID), true
	}
	return 0, false
}

// dialogsFromTG keeps the server's dialog order.
func dialogsFromTG(dialogs []tg.DialogClass, peers map[int64]resolvedPeer) []domain.Dialog {
	out := make([]domain.Dialog, 0, len(dialogs))
	for _, dc := range dialogs {
		d, ok := dc.(*tg.Dialog)
		if !ok {
			continue
		}
		marked, ok := markedPeerID(d.Peer)
		if !ok {
			continue
		}
		if p, ok := peers[marked]; ok {
			out = append(out, p.dialog)
		}
	}
	return out
}

func identityFromTG(u *tg.User) *domain.Identity {
	return &domain.Identity{ID: u.ID, Username: u.Username, FirstName: u.FirstName}
}
