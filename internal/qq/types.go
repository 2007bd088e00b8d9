// Package qq defines the boundary to the underlying IM protocol client: the
// native message element set, conversation entities, inbound events, and
// the Client interface the rest of the adapter is written against.
//
// The concrete implementation is Gateway, a WebSocket RPC client for a
// Lagrange sidecar process that owns login, transport encryption and the
// low-level wire protocol.
package qq

// Element is one unit of native message content.
type Element interface {
	isElement()
}

// Text is plain message text.
type Text struct {
	Text string `json:"text"`
}

// At mentions a group member by uin. Uin 0 mentions everyone.
type At struct {
	Text string `json:"text,omitempty"`
	Uin  int64  `json:"uin"`
	UID  string `json:"uid,omitempty"`
}

// Image is an uploaded picture. URL carries the provider's signed download
// location.
type Image struct {
	URL     string `json:"url"`
	FileKey string `json:"file_key,omitempty"`
	Width   uint32 `json:"width,omitempty"`
	Height  uint32 `json:"height,omitempty"`
}

// MarketFace is a sticker-like image variant with its own media location.
type MarketFace struct {
	Name   string `json:"name,omitempty"`
	URL    string `json:"url"`
	Width  uint32 `json:"width,omitempty"`
	Height uint32 `json:"height,omitempty"`
}

// Audio is a voice clip. FileKey addresses the recording on the media host;
// the bytes are never inlined.
type Audio struct {
	Name     string  `json:"name,omitempty"`
	FileKey  string  `json:"file_key"`
	Duration float64 `json:"duration,omitempty"` // seconds
}

// Quote references an earlier message in the same conversation.
type Quote struct {
	Seq uint64 `json:"seq"`
	Uin int64  `json:"uin,omitempty"`
	UID string `json:"uid,omitempty"`
}

func (*Text) isElement()       {}
func (*At) isElement()         {}
func (*Image) isElement()      {}
func (*MarketFace) isElement() {}
func (*Audio) isElement()      {}
func (*Quote) isElement()      {}

// Group is a group conversation's metadata.
type Group struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// GroupMember is one entry of a group roster page.
type GroupMember struct {
	Uin      int64  `json:"uin"`
	UID      string `json:"uid"`
	Nickname string `json:"nickname"`
	CardName string `json:"card_name,omitempty"` // in-group display name
	JoinedAt int64  `json:"joined_at,omitempty"` // unix seconds
}

// DisplayName returns the in-group name, falling back to the nickname.
func (m *GroupMember) DisplayName() string {
	if m.CardName != "" {
		return m.CardName
	}
	return m.Nickname
}

// MemberPage is one page of a group roster. NextKey is an opaque cursor
// passed through to the next fetch verbatim.
type MemberPage struct {
	Members []*GroupMember `json:"members"`
	NextKey string         `json:"next_key,omitempty"`
}

// Friend is one entry of the friend roster.
type Friend struct {
	Uin      int64  `json:"uin"`
	UID      string `json:"uid"`
	Nickname string `json:"nickname"`
	Remark   string `json:"remark,omitempty"`
}

// GroupMessage is a message stored in or received from a group.
type GroupMessage struct {
	Seq       uint64    `json:"seq"`
	GroupID   int64     `json:"group_id"`
	GroupName string    `json:"group_name,omitempty"`
	Uin       int64     `json:"uin"`
	UID       string    `json:"uid,omitempty"`
	Nickname  string    `json:"nickname,omitempty"`
	Time      int64     `json:"time"` // unix seconds
	Elements  []Element `json:"-"`
}

// FriendMessage is a direct message received from a friend.
type FriendMessage struct {
	Seq      uint64    `json:"seq"`
	FromUin  int64     `json:"from_uin"`
	FromUID  string    `json:"from_uid,omitempty"`
	Nickname string    `json:"nickname,omitempty"`
	Time     int64     `json:"time"` // unix seconds
	Elements []Element `json:"-"`
}

// JoinRequest is a pending membership request.
type JoinRequest struct {
	Seq       uint64 `json:"seq"`
	GroupID   int64  `json:"group_id"`
	TargetUID string `json:"target_uid"`
	TargetUin int64  `json:"target_uin,omitempty"`
	Comment   string `json:"comment,omitempty"`
}
