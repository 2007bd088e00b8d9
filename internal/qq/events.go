package qq

// Event is an inbound occurrence decoded from the protocol stream.
type Event interface {
	isEvent()
}

// GroupMessageEvent signals a new group message.
type GroupMessageEvent struct {
	Message GroupMessage
}

// FriendMessageEvent signals a new direct message.
type FriendMessageEvent struct {
	Message FriendMessage
}

// GroupRecallEvent signals a recalled (deleted) group message.
type GroupRecallEvent struct {
	GroupID     int64  `json:"group_id"`
	AuthorUID   string `json:"author_uid"`
	OperatorUID string `json:"operator_uid,omitempty"`
	Seq         uint64 `json:"seq"`
	Time        int64  `json:"time"`
	Suffix      string `json:"suffix,omitempty"` // recall banner text
}

// MemberJoinedEvent signals a member entering a group.
type MemberJoinedEvent struct {
	GroupID int64  `json:"group_id"`
	Uin     int64  `json:"uin"`
	UID     string `json:"uid"`
	Time    int64  `json:"time"`
}

// MemberQuitEvent signals a member leaving a group, voluntarily or kicked.
type MemberQuitEvent struct {
	GroupID     int64  `json:"group_id"`
	Uin         int64  `json:"uin"`
	UID         string `json:"uid"`
	Kicked      bool   `json:"kicked,omitempty"`
	OperatorUin int64  `json:"operator_uin,omitempty"`
	Time        int64  `json:"time"`
}

// GroupRenamedEvent signals a group metadata change.
type GroupRenamedEvent struct {
	GroupID     int64  `json:"group_id"`
	Name        string `json:"name"`
	OperatorUin int64  `json:"operator_uin,omitempty"`
	Time        int64  `json:"time"`
}

// JoinRequestEvent signals a received membership request. The pending
// request roster must be consulted to obtain the approvable sequence.
type JoinRequestEvent struct {
	GroupID   int64  `json:"group_id"`
	TargetUID string `json:"target_uid"`
	Comment   string `json:"comment,omitempty"`
	Time      int64  `json:"time"`
}

// ReactionEvent signals a reaction being attached to or removed from a
// group message. Count is the running total for EmojiID after the change.
type ReactionEvent struct {
	GroupID     int64  `json:"group_id"`
	Seq         uint64 `json:"seq"`
	OperatorUin int64  `json:"operator_uin"`
	OperatorUID string `json:"operator_uid,omitempty"`
	EmojiID     string `json:"emoji_id"`
	Added       bool   `json:"added"`
	Count       int    `json:"count,omitempty"`
	Time        int64  `json:"time"`
}

// ClientStatus is the connectivity state of the protocol client.
type ClientStatus int

const (
	StatusOffline ClientStatus = iota
	StatusOnline
	StatusReconnecting
)

// StatusEvent signals a client connectivity change.
type StatusEvent struct {
	Status ClientStatus
}

func (*GroupMessageEvent) isEvent()  {}
func (*FriendMessageEvent) isEvent() {}
func (*GroupRecallEvent) isEvent()   {}
func (*MemberJoinedEvent) isEvent()  {}
func (*MemberQuitEvent) isEvent()    {}
func (*GroupRenamedEvent) isEvent()  {}
func (*JoinRequestEvent) isEvent()   {}
func (*ReactionEvent) isEvent()      {}
func (*StatusEvent) isEvent()        {}
