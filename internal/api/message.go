package api

import (
	"context"
	"fmt"
	"strconv"

	"github.com/wyapx/nekobox/internal/cache"
	"github.com/wyapx/nekobox/internal/msgid"
	"github.com/wyapx/nekobox/internal/qq"
	"github.com/wyapx/nekobox/internal/satori"
	"github.com/wyapx/nekobox/internal/transform"
	"github.com/wyapx/nekobox/pkg/constants"
)

// messagePageSize bounds one message.list response.
const messagePageSize = 20

func (r *Registry) messageCreate(ctx context.Context, p Params) (any, error) {
	kind, id, err := msgid.Decode(p.String("channel_id"))
	if err != nil {
		return nil, err
	}
	elements, err := satori.Parse(p.String("content"))
	if err != nil {
		return nil, fmt.Errorf("%w: content: %v", ErrInvalidArgument, err)
	}

	var seq uint64
	switch kind {
	case msgid.KindGroup:
		native, convErr := r.transformer.ToNative(ctx, r.client, elements, transform.Destination{GroupID: id})
		if convErr != nil {
			return nil, convErr
		}
		seq, err = r.client.SendGroupMessage(ctx, id, native)
	case msgid.KindDirect:
		peerUID, resolveErr := r.resolver.ResolveUIDWithRefresh(ctx, id, r.friendRefresh)
		if resolveErr != nil {
			return nil, resolveErr
		}
		native, convErr := r.transformer.ToNative(ctx, r.client, elements, transform.Destination{UserUID: peerUID})
		if convErr != nil {
			return nil, convErr
		}
		seq, err = r.client.SendFriendMessage(ctx, peerUID, native)
	}
	if err != nil {
		return nil, err
	}

	messageID := strconv.FormatUint(seq, 10)
	if kind == msgid.KindDirect {
		messageID, err = msgid.Encode(msgid.KindDirect, int64(seq))
		if err != nil {
			return nil, err
		}
	}
	return []*satori.MessageObject{satori.NewMessage(messageID, elements)}, nil
}

func (r *Registry) messageDelete(ctx context.Context, p Params) (any, error) {
	kind, groupID, err := msgid.Decode(p.String("channel_id"))
	if err != nil {
		return nil, err
	}
	if kind != msgid.KindGroup {
		return nil, fmt.Errorf("%w: direct message recall", ErrUnsupportedOperation)
	}
	seq, err := parseSeq(p.String("message_id"))
	if err != nil {
		return nil, err
	}
	if err := r.client.RecallGroupMessage(ctx, groupID, seq); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func (r *Registry) messageGet(ctx context.Context, p Params) (any, error) {
	kind, groupID, err := msgid.Decode(p.String("channel_id"))
	if err != nil {
		return nil, err
	}
	if kind != msgid.KindGroup {
		return nil, fmt.Errorf("%w: direct message fetch", ErrUnsupportedOperation)
	}
	seq, err := parseSeq(p.String("message_id"))
	if err != nil {
		return nil, err
	}

	msgs, err := r.client.GetGroupMessages(ctx, groupID, seq, seq)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: seq %d in group %d", transform.ErrMessageNotFound, seq, groupID)
	}
	return r.messageObject(msgs[0]), nil
}

// messageList pages backwards through stored group messages. The cursor is
// the newest sequence number of the next page; a request without a cursor
// starts from the most recently observed message in the channel, returning
// an empty page when nothing has been observed yet.
func (r *Registry) messageList(ctx context.Context, p Params) (any, error) {
	kind, groupID, err := msgid.Decode(p.String("channel_id"))
	if err != nil {
		return nil, err
	}
	if kind != msgid.KindGroup {
		return nil, fmt.Errorf("%w: direct message history", ErrUnsupportedOperation)
	}

	var end uint64
	if next := p.String("next"); next != "" {
		if end, err = parseSeq(next); err != nil {
			return nil, err
		}
	} else if cached, ok := r.store.Get(cache.LatestSeqKey(groupID)); ok {
		end, _ = cached.(uint64)
	}
	if end == 0 {
		return satori.PageResult[*satori.MessageObject]{Data: []*satori.MessageObject{}}, nil
	}

	begin := uint64(1)
	if end > messagePageSize {
		begin = end - messagePageSize + 1
	}
	msgs, err := r.client.GetGroupMessages(ctx, groupID, begin, end)
	if err != nil {
		return nil, err
	}

	page := satori.PageResult[*satori.MessageObject]{
		Data: make([]*satori.MessageObject, 0, len(msgs)),
	}
	for _, msg := range msgs {
		page.Data = append(page.Data, r.messageObject(msg))
	}
	if begin > 1 {
		page.Next = strconv.FormatUint(begin-1, 10)
	}
	return page, nil
}

// messageObject converts one stored group message into the API shape.
func (r *Registry) messageObject(msg *qq.GroupMessage) *satori.MessageObject {
	elements := r.transformer.ToSatori(msg.Elements, transform.Source{
		Kind:    msgid.KindGroup,
		OwnerID: msg.GroupID,
		SelfID:  r.client.Uin(),
	})
	channelID, _ := msgid.Encode(msgid.KindGroup, msg.GroupID)

	obj := satori.NewMessage(strconv.FormatUint(msg.Seq, 10), elements)
	obj.Channel = &satori.Channel{ID: channelID, Type: satori.ChannelTypeText, Name: msg.GroupName}
	obj.User = &satori.User{
		ID:     strconv.FormatInt(msg.Uin, 10),
		Name:   msg.Nickname,
		Avatar: fmt.Sprintf(constants.UserAvatarURL, msg.Uin),
	}
	obj.CreatedAt = msg.Time * 1000
	return obj
}

// parseSeq parses a group message id, which is the bare sequence number.
func parseSeq(s string) (uint64, error) {
	seq, err := strconv.ParseUint(s, 10, 64)
	if err != nil || seq == 0 {
		return 0, fmt.Errorf("%w: message id %q", ErrInvalidArgument, s)
	}
	return seq, nil
}
