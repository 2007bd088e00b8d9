package qq

import (
	"encoding/json"
	"fmt"

	"github.com/wyapx/nekobox/internal/logger"
)

// wireSegment is the tagged wire form of one message element.
type wireSegment struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func marshalElements(elems []Element) ([]wireSegment, error) {
	segments := make([]wireSegment, 0, len(elems))
	for _, e := range elems {
		var tag string
		switch e.(type) {
		case *Text:
			tag = "text"
		case *At:
			tag = "at"
		case *Image:
			tag = "image"
		case *MarketFace:
			tag = "market_face"
		case *Audio:
			tag = "audio"
		case *Quote:
			tag = "quote"
		default:
			return nil, fmt.Errorf("unencodable element %T", e)
		}
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encode %s element: %w", tag, err)
		}
		segments = append(segments, wireSegment{Type: tag, Data: data})
	}
	return segments, nil
}

// unmarshalElements decodes wire segments, dropping unknown segment types
// with a warning so one unparseable decoration never loses a message.
func unmarshalElements(segments []wireSegment) []Element {
	elems := make([]Element, 0, len(segments))
	for _, seg := range segments {
		var (
			e   Element
			err error
		)
		switch seg.Type {
		case "text":
			e, err = decodeSegment[Text](seg.Data)
		case "at":
			e, err = decodeSegment[At](seg.Data)
		case "image":
			e, err = decodeSegment[Image](seg.Data)
		case "market_face":
			e, err = decodeSegment[MarketFace](seg.Data)
		case "audio":
			e, err = decodeSegment[Audio](seg.Data)
		case "quote":
			e, err = decodeSegment[Quote](seg.Data)
		default:
			logger.WithField("type", seg.Type).Warn("dropping unknown message segment")
			continue
		}
		if err != nil {
			logger.WithField("type", seg.Type).WithField("error", err).Warn("dropping undecodable message segment")
			continue
		}
		elems = append(elems, e)
	}
	return elems
}

func decodeSegment[T any](data json.RawMessage) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// wireGroupMessage is GroupMessage plus its wire-encoded elements.
type wireGroupMessage struct {
	GroupMessage
	Segments []wireSegment `json:"elements"`
}

func (w *wireGroupMessage) message() *GroupMessage {
	msg := w.GroupMessage
	msg.Elements = unmarshalElements(w.Segments)
	return &msg
}

type wireFriendMessage struct {
	FriendMessage
	Segments []wireSegment `json:"elements"`
}

func (w *wireFriendMessage) message() *FriendMessage {
	msg := w.FriendMessage
	msg.Elements = unmarshalElements(w.Segments)
	return &msg
}

func decodeEvent(typ string, data json.RawMessage) (Event, error) {
	switch typ {
	case "group_message":
		var w wireGroupMessage
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return &GroupMessageEvent{Message: *w.message()}, nil
	case "friend_message":
		var w wireFriendMessage
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return &FriendMessageEvent{Message: *w.message()}, nil
	case "group_recall":
		return decodeSegment[GroupRecallEvent](data)
	case "member_joined":
		return decodeSegment[MemberJoinedEvent](data)
	case "member_quit":
		return decodeSegment[MemberQuitEvent](data)
	case "group_renamed":
		return decodeSegment[GroupRenamedEvent](data)
	case "join_request":
		return decodeSegment[JoinRequestEvent](data)
	case "reaction":
		return decodeSegment[ReactionEvent](data)
	case "status":
		var payload struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		switch payload.Status {
		case "online":
			return &StatusEvent{Status: StatusOnline}, nil
		case "reconnecting":
			return &StatusEvent{Status: StatusReconnecting}, nil
		case "offline":
			return &StatusEvent{Status: StatusOffline}, nil
		default:
			return nil, fmt.Errorf("unknown status %q", payload.Status)
		}
	default:
		return nil, fmt.Errorf("unknown event type %q", typ)
	}
}
