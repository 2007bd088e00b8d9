package api

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wyapx/nekobox/internal/msgid"
)

// parseEmoji validates the emoji argument: either a single printable
// character or the face:<id> sentinel for protocol sticker-reactions.
// Returns the protocol-native emoji id.
func parseEmoji(s string) (string, error) {
	if id, ok := strings.CutPrefix(s, "face:"); ok {
		if _, err := strconv.ParseUint(id, 10, 64); err != nil {
			return "", fmt.Errorf("%w: emoji %q", ErrInvalidArgument, s)
		}
		return id, nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) || !unicode.IsGraphic(r) {
		return "", fmt.Errorf("%w: emoji %q", ErrInvalidArgument, s)
	}
	return strconv.FormatInt(int64(r), 10), nil
}

// reactionTarget decodes the group and message a reaction request refers
// to. Reactions exist only in groups.
func reactionTarget(p Params) (int64, uint64, error) {
	kind, groupID, err := msgid.Decode(p.String("channel_id"))
	if err != nil {
		return 0, 0, err
	}
	if kind != msgid.KindGroup {
		return 0, 0, fmt.Errorf("%w: direct message reactions", ErrUnsupportedOperation)
	}
	seq, err := parseSeq(p.String("message_id"))
	if err != nil {
		return 0, 0, err
	}
	return groupID, seq, nil
}

func (r *Registry) reactionCreate(ctx context.Context, p Params) (any, error) {
	groupID, seq, err := reactionTarget(p)
	if err != nil {
		return nil, err
	}
	emojiID, err := parseEmoji(p.String("emoji"))
	if err != nil {
		return nil, err
	}
	if err := r.client.SendGroupReaction(ctx, groupID, seq, emojiID, true); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func (r *Registry) reactionDelete(ctx context.Context, p Params) (any, error) {
	groupID, seq, err := reactionTarget(p)
	if err != nil {
		return nil, err
	}
	emojiID, err := parseEmoji(p.String("emoji"))
	if err != nil {
		return nil, err
	}
	// Only the bot's own reactions can be removed; elevated removal has no
	// protocol equivalent.
	if userID := p.String("user_id"); userID != "" {
		userUin, err := parseUin(userID)
		if err != nil {
			return nil, err
		}
		if userUin != r.client.Uin() {
			return nil, fmt.Errorf("%w: cannot remove another user's reaction", ErrPermissionDenied)
		}
	}
	if err := r.client.SendGroupReaction(ctx, groupID, seq, emojiID, false); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

// reactionClear removes the bot's own reaction for the given emoji. The
// protocol has no bulk-clear call, so the emoji argument is required.
func (r *Registry) reactionClear(ctx context.Context, p Params) (any, error) {
	groupID, seq, err := reactionTarget(p)
	if err != nil {
		return nil, err
	}
	emoji := p.String("emoji")
	if emoji == "" {
		return nil, fmt.Errorf("%w: emoji required", ErrInvalidArgument)
	}
	emojiID, err := parseEmoji(emoji)
	if err != nil {
		return nil, err
	}
	if err := r.client.SendGroupReaction(ctx, groupID, seq, emojiID, false); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}
