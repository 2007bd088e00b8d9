package constants

import "time"

// Platform is the platform name reported to Satori clients.
const Platform = "nekobox"

// Avatar URL templates for the QQ media hosts. The %d placeholder is the
// numeric account or group id.
const (
	// UserAvatarURL is the avatar endpoint for a user account
	UserAvatarURL = "https://q1.qlogo.cn/g?b=qq&nk=%d&s=640"
	// GroupAvatarURL is the avatar endpoint for a group
	GroupAvatarURL = "https://p.qlogo.cn/gh/%d/%d/640"
	// MemberAvatarURL is the avatar endpoint used in member listings
	MemberAvatarURL = "http://thirdqq.qlogo.cn/headimg_dl?dst_uin=%d&spec=640"
)

// Cache TTLs for the opportunistic metadata cache
const (
	// RosterCacheTTL applies to guild and friend list snapshots
	RosterCacheTTL = 5 * time.Minute
	// EntityCacheTTL applies to single guild/channel/user/member entries
	EntityCacheTTL = 2 * time.Minute
	// JoinRequestCacheTTL bounds how long a pending membership request
	// stays approvable after its event was published
	JoinRequestCacheTTL = 30 * time.Minute
)

// Resource handling limits
const (
	// ResourceFetchRetries is the number of immediate retries for a
	// failed media download
	ResourceFetchRetries = 3
	// ResourceFetchTimeout is the per-attempt HTTP timeout
	ResourceFetchTimeout = 10 * time.Second
	// MaxContainerDepth bounds recursion into nested container elements;
	// deeper subtrees are dropped with a warning
	MaxContainerDepth = 32
)

// Gateway settings
const (
	// GatewayCallTimeout is the timeout for a single gateway RPC
	GatewayCallTimeout = 15 * time.Second
	// GatewayReconnectDelay is the pause between reconnect attempts
	GatewayReconnectDelay = 3 * time.Second
)

// MediaProxyHosts lists the QQ media hosts whose URLs are eligible for
// signing-parameter stripping and proxy rebasing.
var MediaProxyHosts = []string{
	"thirdqq.qlogo.cn",
	"p.qlogo.cn",
	"q1.qlogo.cn",
	"gchat.qpic.cn",
	"multimedia.nt.qq.com.cn",
}
