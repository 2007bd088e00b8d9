package events

import (
	"context"
	"fmt"
	"strconv"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/wyapx/nekobox/internal/cache"
	"github.com/wyapx/nekobox/internal/logger"
	"github.com/wyapx/nekobox/internal/msgid"
	"github.com/wyapx/nekobox/internal/qq"
	"github.com/wyapx/nekobox/internal/satori"
	"github.com/wyapx/nekobox/internal/transform"
	"github.com/wyapx/nekobox/pkg/constants"
)

func userOf(uin int64, name string) *satori.User {
	if name == "" {
		name = strconv.FormatInt(uin, 10)
	}
	return &satori.User{
		ID:     strconv.FormatInt(uin, 10),
		Name:   name,
		Avatar: fmt.Sprintf(constants.UserAvatarURL, uin),
	}
}

func guildOf(groupID int64, name string) *satori.Guild {
	return &satori.Guild{
		ID:     strconv.FormatInt(groupID, 10),
		Name:   name,
		Avatar: fmt.Sprintf(constants.GroupAvatarURL, groupID, groupID),
	}
}

func groupChannel(groupID int64, name string) *satori.Channel {
	id, _ := msgid.Encode(msgid.KindGroup, groupID)
	return &satori.Channel{ID: id, Type: satori.ChannelTypeText, Name: name}
}

func (d *Dispatcher) onGroupMessage(msg *qq.GroupMessage) (*satori.Event, error) {
	d.resolver.Record(msg.Uin, msg.UID)
	d.store.Set(cache.GuildKey(msg.GroupID), guildOf(msg.GroupID, msg.GroupName), constants.EntityCacheTTL)
	d.store.Set(cache.UserKey(msg.Uin), userOf(msg.Uin, msg.Nickname), constants.EntityCacheTTL)
	d.store.Set(cache.LatestSeqKey(msg.GroupID), msg.Seq, constants.RosterCacheTTL)

	elements := d.transformer.ToSatori(msg.Elements, transform.Source{
		Kind:    msgid.KindGroup,
		OwnerID: msg.GroupID,
		SelfID:  d.client.Uin(),
	})
	logger.WithFields(logrus.Fields{
		"group":  msg.GroupName,
		"sender": msg.Nickname,
	}).Info("group message received")

	ev := d.newEvent(satori.EventMessageCreated, msg.Time)
	ev.Channel = groupChannel(msg.GroupID, msg.GroupName)
	ev.Guild = guildOf(msg.GroupID, msg.GroupName)
	ev.User = userOf(msg.Uin, msg.Nickname)
	ev.Message = satori.NewMessage(strconv.FormatUint(msg.Seq, 10), elements)
	return ev, nil
}

func (d *Dispatcher) onFriendMessage(msg *qq.FriendMessage) (*satori.Event, error) {
	d.resolver.Record(msg.FromUin, msg.FromUID)
	d.store.Set(cache.UserKey(msg.FromUin), userOf(msg.FromUin, msg.Nickname), constants.EntityCacheTTL)

	elements := d.transformer.ToSatori(msg.Elements, transform.Source{
		Kind:    msgid.KindDirect,
		OwnerID: msg.FromUin,
		SelfID:  d.client.Uin(),
	})
	logger.WithField("sender", msg.FromUin).Info("friend message received")

	channelID, err := msgid.Encode(msgid.KindDirect, msg.FromUin)
	if err != nil {
		return nil, err
	}
	messageID, err := msgid.Encode(msgid.KindDirect, int64(msg.Seq))
	if err != nil {
		return nil, err
	}

	ev := d.newEvent(satori.EventMessageCreated, msg.Time)
	ev.Channel = &satori.Channel{ID: channelID, Type: satori.ChannelTypeDirect, Name: msg.Nickname}
	ev.User = userOf(msg.FromUin, msg.Nickname)
	ev.Message = satori.NewMessage(messageID, elements)
	return ev, nil
}

func (d *Dispatcher) onGroupRecall(v *qq.GroupRecallEvent) (*satori.Event, error) {
	uin, err := d.resolver.ResolveUin(v.AuthorUID)
	if err != nil {
		return nil, fmt.Errorf("recall author: %w", err)
	}

	ev := d.newEvent(satori.EventMessageDeleted, v.Time)
	ev.Channel = groupChannel(v.GroupID, "")
	ev.User = userOf(uin, "")
	ev.Message = &satori.MessageObject{
		ID:      strconv.FormatUint(v.Seq, 10),
		Content: satori.Dump([]satori.Element{&satori.Text{Content: v.Suffix}}),
	}
	return ev, nil
}

func (d *Dispatcher) onMemberJoined(ctx context.Context, v *qq.MemberJoinedEvent) (*satori.Event, error) {
	d.resolver.Record(v.Uin, v.UID)

	member, err := d.memberInfo(ctx, v.GroupID, v.Uin, v.UID)
	if err != nil {
		return nil, fmt.Errorf("joined member info: %w", err)
	}

	ev := d.newEvent(satori.EventGuildMemberAdded, v.Time)
	ev.Guild = guildOf(v.GroupID, "")
	ev.Member = member
	ev.User = member.User
	return ev, nil
}

// memberInfo reads through the cache, fetching the roster entry on a miss
// and writing it back with a short TTL.
func (d *Dispatcher) memberInfo(ctx context.Context, groupID, uin int64, uidStr string) (*satori.GuildMember, error) {
	if cached, ok := d.store.Get(cache.MemberKey(groupID, uin)); ok {
		if member, ok := cached.(*satori.GuildMember); ok {
			return member, nil
		}
	}

	info, err := d.client.GetGroupMemberInfo(ctx, groupID, uidStr)
	if err != nil {
		return nil, err
	}
	d.resolver.Record(info.Uin, info.UID)

	member := &satori.GuildMember{
		User:     userOf(info.Uin, info.Nickname),
		Nick:     info.DisplayName(),
		Avatar:   fmt.Sprintf(constants.MemberAvatarURL, info.Uin),
		JoinedAt: info.JoinedAt * 1000,
	}
	d.store.Set(cache.MemberKey(groupID, uin), member, constants.EntityCacheTTL)
	return member, nil
}

func (d *Dispatcher) onMemberQuit(v *qq.MemberQuitEvent) (*satori.Event, error) {
	d.resolver.Record(v.Uin, v.UID)
	d.store.Delete(cache.MemberKey(v.GroupID, v.Uin))

	ev := d.newEvent(satori.EventGuildMemberRemoved, v.Time)
	ev.Guild = guildOf(v.GroupID, "")
	ev.User = userOf(v.Uin, "")
	ev.Member = &satori.GuildMember{User: ev.User}
	if v.Kicked {
		ev.Operator = userOf(v.OperatorUin, "")
	}
	return ev, nil
}

func (d *Dispatcher) onGroupRenamed(v *qq.GroupRenamedEvent) (*satori.Event, error) {
	guild := guildOf(v.GroupID, v.Name)
	d.store.Set(cache.GuildKey(v.GroupID), guild, constants.EntityCacheTTL)

	ev := d.newEvent(satori.EventGuildUpdated, v.Time)
	ev.Guild = guild
	if v.OperatorUin != 0 {
		ev.Operator = userOf(v.OperatorUin, "")
	}
	return ev, nil
}

// onJoinRequest matches the webhook against the live pending-request
// roster. An unmatched request is stale and suppressed, not an error.
func (d *Dispatcher) onJoinRequest(ctx context.Context, v *qq.JoinRequestEvent) (*satori.Event, error) {
	requests, err := d.client.FetchGroupRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch pending requests: %w", err)
	}

	var matched *qq.JoinRequest
	for _, req := range requests {
		if req.GroupID == v.GroupID && req.TargetUID == v.TargetUID {
			matched = req
			break
		}
	}
	if matched == nil {
		logger.WithFields(logrus.Fields{
			"group": v.GroupID,
			"uid":   v.TargetUID,
		}).Debug("join request has no pending roster entry, suppressing")
		return nil, nil
	}

	if matched.TargetUin != 0 {
		d.resolver.Record(matched.TargetUin, matched.TargetUID)
	}
	d.store.Set(cache.JoinRequestKey(matched.Seq), matched, constants.JoinRequestCacheTTL)

	targetUin := matched.TargetUin
	if targetUin == 0 {
		if uin, err := d.resolver.ResolveUin(matched.TargetUID); err == nil {
			targetUin = uin
		}
	}

	ev := d.newEvent(satori.EventGuildMemberRequest, v.Time)
	ev.Guild = guildOf(v.GroupID, "")
	ev.Member = &satori.GuildMember{User: userOf(targetUin, "")}
	ev.Message = &satori.MessageObject{
		ID:      strconv.FormatUint(matched.Seq, 10),
		Content: matched.Comment,
	}
	return ev, nil
}

func (d *Dispatcher) onReaction(v *qq.ReactionEvent) (*satori.Event, error) {
	if v.OperatorUID != "" {
		d.resolver.Record(v.OperatorUin, v.OperatorUID)
	}

	kind := satori.EventReactionAdded
	if !v.Added {
		kind = satori.EventReactionRemoved
	}

	ev := d.newEvent(kind, v.Time)
	ev.Channel = groupChannel(v.GroupID, "")
	ev.Guild = guildOf(v.GroupID, "")
	ev.User = userOf(v.OperatorUin, "")
	ev.Message = &satori.MessageObject{ID: strconv.FormatUint(v.Seq, 10)}
	ev.Extra = map[string]any{
		"emoji": emojiDisplay(v.EmojiID),
		"count": v.Count,
	}
	return ev, nil
}

// emojiDisplay renders a native emoji id as the provisional single
// character form when it is a printable codepoint, or as the face:<id>
// sentinel otherwise.
func emojiDisplay(emojiID string) string {
	id, err := strconv.ParseInt(emojiID, 10, 64)
	if err != nil {
		return emojiID
	}
	if id > 0 && id <= unicode.MaxRune && unicode.IsGraphic(rune(id)) {
		return string(rune(id))
	}
	return "face:" + emojiID
}

func (d *Dispatcher) onStatus(v *qq.StatusEvent) (*satori.Event, error) {
	status := satori.StatusOffline
	switch v.Status {
	case qq.StatusOnline:
		status = satori.StatusOnline
	case qq.StatusReconnecting:
		status = satori.StatusReconnect
	case qq.StatusOffline:
		status = satori.StatusDisconnect
	}

	uin := d.client.Uin()
	ev := d.newEvent(satori.EventLoginUpdated, 0)
	ev.Login = &satori.Login{
		SelfID:   strconv.FormatInt(uin, 10),
		Platform: d.platform,
		Status:   status,
		User:     userOf(uin, ""),
	}
	return ev, nil
}
