package gotd

import (
	"testing"

	"github.com/gotd/td/tg"

	"github.com/tbourn/tg-analytics-gateway/internal/domain"
)

func TestUnmarkAndMark(t *testing.T) {
	cases := []struct {
		marked int64
		kind   peerKind
		id     int64
	}{
		{-1001234567890, kindChannel, 1234567890},
		{-4567, kindChat, 4567},
		{777000, kindUser, 777000},
	}
	for _, tc := range cases {
		kind, id := unmark(tc.marked)
		if kind != tc.kind || id != tc.id {
			t.Errorf("unmark(%d) = (%v,%d); want (%v,%d)", tc.marked, kind, id, tc.kind, tc.id)
		}
	}
	if got := markChannel(1234567890); got != -1001234567890 {
		t.Fatalf("markChannel = %d", got)
	}
	if got := markChat(4567); got != -4567 {
		t.Fatalf("markChat = %d", got)
	}
}

func TestNameKey_CaseAndAt(t *testing.T) {
	if nameKey("@SomeChannel") != nameKey("somechannel") {
		t.Fatalf("nameKey should fold case and leading @")
	}
}

func TestMessageFromTG_Full(t *testing.T) {
	m := &tg.Message{ID: 5}
	m.SetViews(100)
	m.SetForwards(7)
	m.SetReplies(tg.MessageReplies{Replies: 3})
	m.SetReactions(tg.MessageReactions{Results: []tg.ReactionCount{
		{Reaction: &tg.ReactionEmoji{Emoticon: "👍"}, Count: 4},
		{Reaction: &tg.ReactionCustomEmoji{DocumentID: 1}, Count: 2},
	}})
	res := tg.PollResults{}
	res.SetTotalVoters(9)
	m.SetMedia(&tg.MessageMediaPoll{Results: res})

	got := messageFromTG(m)
	if got.ID != 5 || got.Views == nil || *got.Views != 100 || got.Forwards == nil || *got.Forwards != 7 {
		t.Fatalf("views/forwards not carried: %+v", got)
	}
	if got.Replies == nil || got.Replies.Count != 3 {
		t.Fatalf("replies = %+v", got.Replies)
	}
	if len(got.Reactions) != 2 || got.Reactions[0].Emoticon != "👍" || got.Reactions[1].Count != 2 {
		t.Fatalf("reactions = %+v", got.Reactions)
	}
	if got.Media == nil || got.Media.Poll == nil || got.Media.Poll.TotalVoters == nil || *got.Media.Poll.TotalVoters != 9 {
		t.Fatalf("media poll = %+v", got.Media)
	}
}

func TestMessageFromTG_Bare(t *testing.T) {
	got := messageFromTG(&tg.Message{ID: 9})
	if got.Views != nil || got.Forwards != nil || got.Replies != nil || got.Reactions != nil || got.Media != nil || got.Poll != nil {
		t.Fatalf("bare message should carry no optional fields: %+v", got)
	}
}

func TestFindMessage(t *testing.T) {
	res := &tg.MessagesChannelMessages{Messages: []tg.MessageClass{
		&tg.MessageEmpty{ID: 4},
		&tg.Message{ID: 5},
	}}
	if m := findMessage(res, 5); m == nil || m.ID != 5 {
		t.Fatalf("expected message 5, got %+v", m)
	}
	if m := findMessage(res, 4); m != nil {
		t.Fatalf("empty placeholder should be absent, got %+v", m)
	}
	if m := findMessage(&tg.MessagesMessagesNotModified{}, 5); m != nil {
		t.Fatalf("not-modified should be absent")
	}
}

func TestPeersAndDialogsFromTG(t *testing.T) {
	users := []tg.UserClass{
		&tg.User{ID: 10, AccessHash: 111, FirstName: "Ada", LastName: "L", Username: "ada"},
		&tg.UserEmpty{ID: 11},
	}
	chats := []tg.ChatClass{
		&tg.Chat{ID: 20, Title: "Basic"},
		&tg.Channel{ID: 30, AccessHash: 333, Title: "News", Username: "news"},
		&tg.Channel{ID: 40, AccessHash: 444, Title: "Talk", Megagroup: true},
	}
	peers := peersFromTG(chats, users)
	if len(peers) != 4 {
		t.Fatalf("expected 4 peers, got %d", len(peers))
	}
	if p := peers[markChannel(30)]; p.dialog.Type != domain.DialogChannel || p.dialog.TelegramID != "-1000000000030" {
		t.Fatalf("channel peer = %+v", p.dialog)
	}
	if p := peers[markChannel(40)]; p.dialog.Type != domain.DialogGroup {
		t.Fatalf("megagroup should be a group, got %+v", p.dialog)
	}
	if in, ok := peers[10].input.(*tg.InputPeerUser); !ok || in.AccessHash != 111 {
		t.Fatalf("user input peer = %#v", peers[10].input)
	}

	dialogs := []tg.DialogClass{
		&tg.Dialog{Peer: &tg.PeerChannel{ChannelID: 30}},
		&tg.Dialog{Peer: &tg.PeerUser{UserID: 10}},
		&tg.Dialog{Peer: &tg.PeerChat{ChatID: 20}},
		&tg.Dialog{Peer: &tg.PeerUser{UserID: 999}}, // unknown -> skipped
	}
	got := dialogsFromTG(dialogs, peers)
	if len(got) != 3 {
		t.Fatalf("expected 3 dialogs, got %d", len(got))
	}
	if got[0].Name != "News" || got[1].Name != "Ada L" || got[2].Type != domain.DialogGroup {
		t.Fatalf("dialog order/content unexpected: %+v", got)
	}
}
