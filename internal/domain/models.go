// Package domain defines the core types shared by the platform adapter, the
// service layer, and the HTTP transport: API credentials, the normalized
// analytics record, the platform-agnostic message shape, identities, and
// dialogs. Persistence models mapped with GORM live in records.go.
package domain

// Credentials are the Telegram application credentials (api_id / api_hash)
// supplied by the caller. They are used to construct a platform client and
// are never persisted by this service.
type Credentials struct {
	APIID   int
	APIHash string
}

// Valid reports whether both halves of the credential pair are present.
func (c Credentials) Valid() bool {
	return c.APIID > 0 && c.APIHash != ""
}

// AnalyticsRecord is the single normalized output shape for analytics
// lookups. Every field is always present and non-negative, regardless of
// which optional structures the source message carried.
type AnalyticsRecord struct {
	Views     int `json:"views"     example:"1520"`
	Forwards  int `json:"forwards"  example:"12"`
	Replies   int `json:"replies"   example:"4"`
	Reactions int `json:"reactions" example:"37"`
	Voters    int `json:"voters"    example:"0"`
}

// Identity describes the Telegram account behind an authorized session.
type Identity struct {
	ID        int64  `json:"id"         example:"777000"`
	Username  string `json:"username"   example:"analytics_bot_owner"`
	FirstName string `json:"first_name" example:"Ada"`
}

// Dialog types reported by GET /dialogs.
const (
	DialogUser    = "user"
	DialogGroup   = "group"
	DialogChannel = "channel"
)

// Dialog is a conversation visible to the authorized account.
//
// TelegramID uses the marked form understood by ParseChatRef: users are
// positive, basic groups are negated, and channels/supergroups carry the
// -100 prefix. AccessHash is encoded as a JSON string to survive JavaScript
// number precision.
type Dialog struct {
	TelegramID string `json:"telegramId"        example:"-1001234567890"`
	Name       string `json:"name"              example:"Release notes"`
	Username   string `json:"username"          example:"somechannel"`
	Type       string `json:"type"              example:"channel"`
	AccessHash int64  `json:"accessHash,string" example:"-4518472648103843"`
}

// Message is the platform-agnostic view of a remote message. Every optional
// sub-structure is a pointer (or nil slice) so presence is checked explicitly.
type Message struct {
	ID        int
	Views     *int
	Forwards  *int
	Replies   *ReplyThread
	Reactions []ReactionGroup
	// Poll holds poll results carried on the message itself.
	Poll *PollResults
	// Media holds the attached media, which may in turn carry poll results.
	Media *Media
}

// ReplyThread summarizes the reply/comment thread attached to a message.
type ReplyThread struct {
	Count int
}

// ReactionGroup is one reaction with the number of accounts that used it.
type ReactionGroup struct {
	Emoticon string
	Count    int
}

// PollResults carries aggregate poll participation.
type PollResults struct {
	TotalVoters *int
}

// Media is the subset of attached media the analytics projection needs.
type Media struct {
	Poll *PollResults
}
