package qq

import "context"

// Client is the asynchronous IM protocol surface this adapter is written
// against. All methods are safe for concurrent invocation; the
// implementation is responsible for serializing wire-level requests if the
// protocol requires it.
type Client interface {
	// Uin returns the bot account's numeric id.
	Uin() int64
	// Online reports whether the protocol session is currently usable.
	Online() bool

	SendGroupMessage(ctx context.Context, groupID int64, elems []Element) (uint64, error)
	SendFriendMessage(ctx context.Context, uid string, elems []Element) (uint64, error)
	RecallGroupMessage(ctx context.Context, groupID int64, seq uint64) error
	// GetGroupMessages fetches stored group messages for [beginSeq, endSeq].
	// Passing equal bounds fetches a single message.
	GetGroupMessages(ctx context.Context, groupID int64, beginSeq, endSeq uint64) ([]*GroupMessage, error)

	GetGroupList(ctx context.Context) ([]*Group, error)
	GetGroupMembers(ctx context.Context, groupID int64, nextKey string) (*MemberPage, error)
	GetGroupMemberInfo(ctx context.Context, groupID int64, uid string) (*GroupMember, error)
	KickGroupMember(ctx context.Context, groupID int64, uin int64, permanent bool) error
	MuteGroupMember(ctx context.Context, groupID int64, uin int64, seconds int64) error
	GetFriendList(ctx context.Context) ([]*Friend, error)

	FetchGroupRequests(ctx context.Context) ([]*JoinRequest, error)
	SetGroupRequest(ctx context.Context, groupID int64, seq uint64, accept bool, reason string) error
	SendGroupReaction(ctx context.Context, groupID int64, seq uint64, emojiID string, add bool) error

	UploadGroupImage(ctx context.Context, groupID int64, data []byte) (Element, error)
	UploadFriendImage(ctx context.Context, uid string, data []byte) (Element, error)
	UploadGroupAudio(ctx context.Context, groupID int64, data []byte) (Element, error)
	UploadFriendAudio(ctx context.Context, uid string, data []byte) (Element, error)

	// GetGroupAudioURL resolves a voice clip's file key into a signed,
	// time-limited download location.
	GetGroupAudioURL(ctx context.Context, groupID int64, fileKey string) (string, error)
	GetFriendAudioURL(ctx context.Context, uid string, fileKey string) (string, error)
	// RefreshMediaURL re-obtains the signing parameter for a media URL
	// whose previous signature may have expired.
	RefreshMediaURL(ctx context.Context, rawURL string) (string, error)
}
