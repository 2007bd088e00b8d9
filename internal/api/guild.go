package api

import (
	"context"
	"fmt"
	"strconv"

	"github.com/wyapx/nekobox/internal/cache"
	"github.com/wyapx/nekobox/internal/msgid"
	"github.com/wyapx/nekobox/internal/qq"
	"github.com/wyapx/nekobox/internal/satori"
	"github.com/wyapx/nekobox/pkg/constants"
)

// guildList serves the group roster, cached for a few minutes since Satori
// clients poll it aggressively.
func (r *Registry) guildList(ctx context.Context, _ Params) (any, error) {
	if cached, ok := r.store.Get(cache.GuildListKey); ok {
		if guilds, ok := cached.([]*satori.Guild); ok {
			return satori.PageResult[*satori.Guild]{Data: guilds}, nil
		}
	}

	groups, err := r.client.GetGroupList(ctx)
	if err != nil {
		return nil, err
	}
	guilds := make([]*satori.Guild, 0, len(groups))
	for _, g := range groups {
		guilds = append(guilds, &satori.Guild{
			ID:     strconv.FormatInt(g.ID, 10),
			Name:   g.Name,
			Avatar: fmt.Sprintf(constants.GroupAvatarURL, g.ID, g.ID),
		})
	}
	r.store.Set(cache.GuildListKey, guilds, constants.RosterCacheTTL)
	return satori.PageResult[*satori.Guild]{Data: guilds}, nil
}

func (r *Registry) guildMemberGet(ctx context.Context, p Params) (any, error) {
	groupID, err := parseUin(p.String("guild_id"))
	if err != nil {
		return nil, err
	}
	userUin, err := parseUin(p.String("user_id"))
	if err != nil {
		return nil, err
	}

	memberUID, err := r.resolver.ResolveUIDWithRefresh(ctx, userUin, r.memberRefresh(groupID))
	if err != nil {
		return nil, err
	}
	info, err := r.client.GetGroupMemberInfo(ctx, groupID, memberUID)
	if err != nil {
		return nil, err
	}
	return memberObject(info), nil
}

func (r *Registry) guildMemberList(ctx context.Context, p Params) (any, error) {
	groupID, err := parseUin(p.String("guild_id"))
	if err != nil {
		return nil, err
	}

	// the cursor is opaque, handed through verbatim in both directions
	page, err := r.client.GetGroupMembers(ctx, groupID, p.String("next"))
	if err != nil {
		return nil, err
	}

	result := satori.PageResult[*satori.GuildMember]{
		Data: make([]*satori.GuildMember, 0, len(page.Members)),
		Next: page.NextKey,
	}
	for _, m := range page.Members {
		r.resolver.Record(m.Uin, m.UID)
		result.Data = append(result.Data, memberObject(m))
	}
	return result, nil
}

func (r *Registry) guildMemberKick(ctx context.Context, p Params) (any, error) {
	groupID, err := parseUin(p.String("guild_id"))
	if err != nil {
		return nil, err
	}
	userUin, err := parseUin(p.String("user_id"))
	if err != nil {
		return nil, err
	}
	if err := r.client.KickGroupMember(ctx, groupID, userUin, p.Bool("permanent")); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func (r *Registry) guildMemberMute(ctx context.Context, p Params) (any, error) {
	groupID, err := parseUin(p.String("guild_id"))
	if err != nil {
		return nil, err
	}
	userUin, err := parseUin(p.String("user_id"))
	if err != nil {
		return nil, err
	}
	durationMS := p.Int64("duration")
	if durationMS < 0 {
		return nil, fmt.Errorf("%w: negative duration", ErrInvalidArgument)
	}
	// Satori expresses durations in milliseconds, the protocol in whole
	// seconds. Truncate, matching integer-division semantics.
	if err := r.client.MuteGroupMember(ctx, groupID, userUin, durationMS/1000); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

// guildMemberApprove resolves a pending membership request from the
// short-lived request cache by the sequence number published with the
// original event.
func (r *Registry) guildMemberApprove(ctx context.Context, p Params) (any, error) {
	seq, err := parseSeq(p.String("message_id"))
	if err != nil {
		return nil, err
	}

	cached, ok := r.store.Get(cache.JoinRequestKey(seq))
	if !ok {
		return nil, fmt.Errorf("%w: request %d", ErrRequestExpired, seq)
	}
	req, ok := cached.(*qq.JoinRequest)
	if !ok {
		return nil, fmt.Errorf("%w: request %d", ErrRequestExpired, seq)
	}

	if err := r.client.SetGroupRequest(ctx, req.GroupID, seq, p.Bool("approve"), p.String("comment")); err != nil {
		return nil, err
	}
	r.store.Delete(cache.JoinRequestKey(seq))
	return map[string]any{}, nil
}

// channelList is degenerate: the protocol has no sub-channel concept, so
// each guild exposes exactly one synthetic text channel.
func (r *Registry) channelList(_ context.Context, p Params) (any, error) {
	groupID, err := parseUin(p.String("guild_id"))
	if err != nil {
		return nil, err
	}
	channelID, err := msgid.Encode(msgid.KindGroup, groupID)
	if err != nil {
		return nil, err
	}

	name := ""
	if cached, ok := r.store.Get(cache.GuildKey(groupID)); ok {
		if guild, ok := cached.(*satori.Guild); ok {
			name = guild.Name
		}
	}
	return satori.PageResult[*satori.Channel]{
		Data: []*satori.Channel{{ID: channelID, Type: satori.ChannelTypeText, Name: name}},
	}, nil
}

func (r *Registry) userChannelCreate(_ context.Context, p Params) (any, error) {
	userUin, err := parseUin(p.String("user_id"))
	if err != nil {
		return nil, err
	}
	channelID, err := msgid.Encode(msgid.KindDirect, userUin)
	if err != nil {
		return nil, err
	}
	return &satori.Channel{ID: channelID, Type: satori.ChannelTypeDirect}, nil
}

func (r *Registry) friendList(ctx context.Context, _ Params) (any, error) {
	if cached, ok := r.store.Get(cache.FriendListKey); ok {
		if users, ok := cached.([]*satori.User); ok {
			return satori.PageResult[*satori.User]{Data: users}, nil
		}
	}

	friends, err := r.client.GetFriendList(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]*satori.User, 0, len(friends))
	for _, f := range friends {
		r.resolver.Record(f.Uin, f.UID)
		name := f.Nickname
		if f.Remark != "" {
			name = f.Remark
		}
		users = append(users, &satori.User{
			ID:     strconv.FormatInt(f.Uin, 10),
			Name:   name,
			Avatar: fmt.Sprintf(constants.UserAvatarURL, f.Uin),
		})
	}
	r.store.Set(cache.FriendListKey, users, constants.RosterCacheTTL)
	return satori.PageResult[*satori.User]{Data: users}, nil
}

func memberObject(m *qq.GroupMember) *satori.GuildMember {
	return &satori.GuildMember{
		User: &satori.User{
			ID:     strconv.FormatInt(m.Uin, 10),
			Name:   m.Nickname,
			Avatar: fmt.Sprintf(constants.MemberAvatarURL, m.Uin),
		},
		Nick:     m.DisplayName(),
		Avatar:   fmt.Sprintf(constants.MemberAvatarURL, m.Uin),
		JoinedAt: m.JoinedAt * 1000,
	}
}
