package satori

// Event kinds published by this adapter.
const (
	EventMessageCreated     = "message-created"
	EventMessageDeleted     = "message-deleted"
	EventGuildMemberAdded   = "guild-member-added"
	EventGuildMemberRemoved = "guild-member-removed"
	EventGuildMemberRequest = "guild-member-request"
	EventGuildUpdated       = "guild-updated"
	EventReactionAdded      = "reaction-added"
	EventReactionRemoved    = "reaction-removed"
	EventLoginUpdated       = "login-updated"
)

// API route names served by the dispatch registry.
const (
	APIMessageCreate      = "message.create"
	APIMessageDelete      = "message.delete"
	APIMessageGet         = "message.get"
	APIMessageList        = "message.list"
	APIGuildList          = "guild.list"
	APIGuildMemberGet     = "guild.member.get"
	APIGuildMemberList    = "guild.member.list"
	APIGuildMemberKick    = "guild.member.kick"
	APIGuildMemberMute    = "guild.member.mute"
	APIGuildMemberApprove = "guild.member.approve"
	APIChannelList        = "channel.list"
	APIUserChannelCreate  = "user.channel.create"
	APIFriendList         = "friend.list"
	APIReactionCreate     = "reaction.create"
	APIReactionDelete     = "reaction.delete"
	APIReactionClear      = "reaction.clear"
	APILoginGet           = "login.get"
)

// ChannelType classifies a channel.
type ChannelType int

const (
	ChannelTypeText ChannelType = iota
	ChannelTypeDirect
	ChannelTypeCategory
	ChannelTypeVoice
)

// LoginStatus is the connectivity state of the adapter's account.
type LoginStatus int

const (
	StatusOffline LoginStatus = iota
	StatusOnline
	StatusConnect
	StatusDisconnect
	StatusReconnect
)

// Channel is a conversation reference.
type Channel struct {
	ID   string      `json:"id"`
	Type ChannelType `json:"type"`
	Name string      `json:"name,omitempty"`
}

// Guild is a group-like container of channels.
type Guild struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// User is an account visible to the adapter.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Nick   string `json:"nick,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	IsBot  bool   `json:"is_bot,omitempty"`
}

// GuildMember is a user's membership record inside a guild.
type GuildMember struct {
	User     *User  `json:"user,omitempty"`
	Nick     string `json:"nick,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	JoinedAt int64  `json:"joined_at,omitempty"` // milliseconds
}

// Login describes the adapter's account and connectivity status.
type Login struct {
	User     *User       `json:"user,omitempty"`
	SelfID   string      `json:"self_id,omitempty"`
	Platform string      `json:"platform,omitempty"`
	Status   LoginStatus `json:"status"`
}

// MessageObject is a message record crossing the API surface.
type MessageObject struct {
	ID        string       `json:"id"`
	Content   string       `json:"content"`
	Channel   *Channel     `json:"channel,omitempty"`
	Guild     *Guild       `json:"guild,omitempty"`
	Member    *GuildMember `json:"member,omitempty"`
	User      *User        `json:"user,omitempty"`
	CreatedAt int64        `json:"created_at,omitempty"` // milliseconds
}

// NewMessage builds a MessageObject from an element sequence.
func NewMessage(id string, elements []Element) *MessageObject {
	return &MessageObject{ID: id, Content: Dump(elements)}
}

// Event is the discriminated record published onto the outbound queue. ID
// is the publication sequence number, assigned at enqueue time.
type Event struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	Platform  string         `json:"platform"`
	SelfID    string         `json:"self_id"`
	Timestamp int64          `json:"timestamp"` // milliseconds
	Guild     *Guild         `json:"guild,omitempty"`
	Channel   *Channel       `json:"channel,omitempty"`
	User      *User          `json:"user,omitempty"`
	Member    *GuildMember   `json:"member,omitempty"`
	Operator  *User          `json:"operator,omitempty"`
	Message   *MessageObject `json:"message,omitempty"`
	Login     *Login         `json:"login,omitempty"`
	// Extra carries event payloads outside the fixed record, such as the
	// provisional reaction emoji and running count.
	Extra map[string]any `json:"_extra,omitempty"`
}

// PageResult is the cursor-paginated response shape. Next is an opaque
// cursor passed through verbatim from the IM protocol.
type PageResult[T any] struct {
	Data []T    `json:"data"`
	Next string `json:"next,omitempty"`
}
