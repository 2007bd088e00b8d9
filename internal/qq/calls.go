package qq

import (
	"context"
	"encoding/base64"
	"fmt"
)

// Client method implementations for Gateway. Every method is one RPC
// against the sidecar; parameter and response shapes mirror the sidecar's
// action vocabulary.

func (g *Gateway) SendGroupMessage(ctx context.Context, groupID int64, elems []Element) (uint64, error) {
	segments, err := marshalElements(elems)
	if err != nil {
		return 0, err
	}
	var rsp struct {
		Seq uint64 `json:"seq"`
	}
	err = g.call(ctx, "send_group_message", map[string]any{
		"group_id": groupID,
		"elements": segments,
	}, &rsp)
	if err != nil {
		return 0, err
	}
	return rsp.Seq, nil
}

func (g *Gateway) SendFriendMessage(ctx context.Context, uid string, elems []Element) (uint64, error) {
	segments, err := marshalElements(elems)
	if err != nil {
		return 0, err
	}
	var rsp struct {
		Seq uint64 `json:"seq"`
	}
	err = g.call(ctx, "send_friend_message", map[string]any{
		"uid":      uid,
		"elements": segments,
	}, &rsp)
	if err != nil {
		return 0, err
	}
	return rsp.Seq, nil
}

func (g *Gateway) RecallGroupMessage(ctx context.Context, groupID int64, seq uint64) error {
	return g.call(ctx, "recall_group_message", map[string]any{
		"group_id": groupID,
		"seq":      seq,
	}, nil)
}

func (g *Gateway) GetGroupMessages(ctx context.Context, groupID int64, beginSeq, endSeq uint64) ([]*GroupMessage, error) {
	var rsp struct {
		Messages []wireGroupMessage `json:"messages"`
	}
	err := g.call(ctx, "get_group_messages", map[string]any{
		"group_id":  groupID,
		"begin_seq": beginSeq,
		"end_seq":   endSeq,
	}, &rsp)
	if err != nil {
		return nil, err
	}
	messages := make([]*GroupMessage, 0, len(rsp.Messages))
	for i := range rsp.Messages {
		messages = append(messages, rsp.Messages[i].message())
	}
	return messages, nil
}

func (g *Gateway) GetGroupList(ctx context.Context) ([]*Group, error) {
	var rsp struct {
		Groups []*Group `json:"groups"`
	}
	if err := g.call(ctx, "get_group_list", map[string]any{}, &rsp); err != nil {
		return nil, err
	}
	return rsp.Groups, nil
}

func (g *Gateway) GetGroupMembers(ctx context.Context, groupID int64, nextKey string) (*MemberPage, error) {
	var rsp MemberPage
	err := g.call(ctx, "get_group_members", map[string]any{
		"group_id": groupID,
		"next_key": nextKey,
	}, &rsp)
	if err != nil {
		return nil, err
	}
	return &rsp, nil
}

func (g *Gateway) GetGroupMemberInfo(ctx context.Context, groupID int64, uid string) (*GroupMember, error) {
	var rsp GroupMember
	err := g.call(ctx, "get_group_member_info", map[string]any{
		"group_id": groupID,
		"uid":      uid,
	}, &rsp)
	if err != nil {
		return nil, err
	}
	return &rsp, nil
}

func (g *Gateway) KickGroupMember(ctx context.Context, groupID int64, uin int64, permanent bool) error {
	return g.call(ctx, "kick_group_member", map[string]any{
		"group_id":  groupID,
		"uin":       uin,
		"permanent": permanent,
	}, nil)
}

func (g *Gateway) MuteGroupMember(ctx context.Context, groupID int64, uin int64, seconds int64) error {
	return g.call(ctx, "mute_group_member", map[string]any{
		"group_id": groupID,
		"uin":      uin,
		"duration": seconds,
	}, nil)
}

func (g *Gateway) GetFriendList(ctx context.Context) ([]*Friend, error) {
	var rsp struct {
		Friends []*Friend `json:"friends"`
	}
	if err := g.call(ctx, "get_friend_list", map[string]any{}, &rsp); err != nil {
		return nil, err
	}
	return rsp.Friends, nil
}

func (g *Gateway) FetchGroupRequests(ctx context.Context) ([]*JoinRequest, error) {
	var rsp struct {
		Requests []*JoinRequest `json:"requests"`
	}
	if err := g.call(ctx, "fetch_group_requests", map[string]any{}, &rsp); err != nil {
		return nil, err
	}
	return rsp.Requests, nil
}

func (g *Gateway) SetGroupRequest(ctx context.Context, groupID int64, seq uint64, accept bool, reason string) error {
	return g.call(ctx, "set_group_request", map[string]any{
		"group_id": groupID,
		"seq":      seq,
		"accept":   accept,
		"reason":   reason,
	}, nil)
}

func (g *Gateway) SendGroupReaction(ctx context.Context, groupID int64, seq uint64, emojiID string, add bool) error {
	return g.call(ctx, "send_group_reaction", map[string]any{
		"group_id": groupID,
		"seq":      seq,
		"emoji_id": emojiID,
		"add":      add,
	}, nil)
}

func (g *Gateway) UploadGroupImage(ctx context.Context, groupID int64, data []byte) (Element, error) {
	return g.uploadMedia(ctx, "upload_group_image", map[string]any{
		"group_id": groupID,
		"data":     base64.StdEncoding.EncodeToString(data),
	})
}

func (g *Gateway) UploadFriendImage(ctx context.Context, uid string, data []byte) (Element, error) {
	return g.uploadMedia(ctx, "upload_friend_image", map[string]any{
		"uid":  uid,
		"data": base64.StdEncoding.EncodeToString(data),
	})
}

func (g *Gateway) UploadGroupAudio(ctx context.Context, groupID int64, data []byte) (Element, error) {
	return g.uploadMedia(ctx, "upload_group_audio", map[string]any{
		"group_id": groupID,
		"data":     base64.StdEncoding.EncodeToString(data),
	})
}

func (g *Gateway) UploadFriendAudio(ctx context.Context, uid string, data []byte) (Element, error) {
	return g.uploadMedia(ctx, "upload_friend_audio", map[string]any{
		"uid":  uid,
		"data": base64.StdEncoding.EncodeToString(data),
	})
}

// uploadMedia runs an upload action and decodes the resulting element, which
// references the uploaded asset on the media host.
func (g *Gateway) uploadMedia(ctx context.Context, action string, params map[string]any) (Element, error) {
	var rsp struct {
		Element wireSegment `json:"element"`
	}
	if err := g.call(ctx, action, params, &rsp); err != nil {
		return nil, err
	}
	elems := unmarshalElements([]wireSegment{rsp.Element})
	if len(elems) != 1 {
		return nil, fmt.Errorf("%s returned an undecodable element", action)
	}
	return elems[0], nil
}

func (g *Gateway) GetGroupAudioURL(ctx context.Context, groupID int64, fileKey string) (string, error) {
	var rsp struct {
		URL string `json:"url"`
	}
	err := g.call(ctx, "get_group_audio_url", map[string]any{
		"group_id": groupID,
		"file_key": fileKey,
	}, &rsp)
	if err != nil {
		return "", err
	}
	return rsp.URL, nil
}

func (g *Gateway) GetFriendAudioURL(ctx context.Context, uid string, fileKey string) (string, error) {
	var rsp struct {
		URL string `json:"url"`
	}
	err := g.call(ctx, "get_friend_audio_url", map[string]any{
		"uid":      uid,
		"file_key": fileKey,
	}, &rsp)
	if err != nil {
		return "", err
	}
	return rsp.URL, nil
}

func (g *Gateway) RefreshMediaURL(ctx context.Context, rawURL string) (string, error) {
	var rsp struct {
		URL string `json:"url"`
	}
	err := g.call(ctx, "refresh_media_url", map[string]any{
		"url": rawURL,
	}, &rsp)
	if err != nil {
		return "", err
	}
	return rsp.URL, nil
}

var _ Client = (*Gateway)(nil)
