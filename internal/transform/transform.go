// Package transform converts message content between the IM protocol's
// native element set and the Satori element tree.
//
// Both directions process elements strictly in input order. An element that
// cannot be converted structurally (unknown kind) is dropped with a warning
// rather than failing the whole message; an element that fails on required
// I/O (quote lookup, media upload) aborts the conversion with an error.
package transform

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/wyapx/nekobox/internal/logger"
	"github.com/wyapx/nekobox/internal/msgid"
	"github.com/wyapx/nekobox/internal/qq"
	"github.com/wyapx/nekobox/internal/satori"
	"github.com/wyapx/nekobox/pkg/constants"
)

var (
	// ErrInvalidMention is returned for a mention node carrying neither a
	// target id nor the all-members flag.
	ErrInvalidMention = errors.New("mention carries no target")
	// ErrAmbiguousDestination is returned when a conversion destination is
	// not exactly one of group or direct user.
	ErrAmbiguousDestination = errors.New("ambiguous message destination")
	// ErrMessageNotFound is returned when a quoted message cannot be
	// fetched from the destination conversation.
	ErrMessageNotFound = errors.New("referenced message not found")
)

// Transcoder converts audio payloads into the IM-native voice codec. The
// actual conversion runs out of process.
type Transcoder interface {
	ToVoice(ctx context.Context, data []byte) ([]byte, error)
}

// Source identifies the conversation a native message was received from,
// for building deferred audio locators.
type Source struct {
	Kind    msgid.Kind
	OwnerID int64 // group id or peer uin
	SelfID  int64
}

// Destination identifies where an outbound message goes. Exactly one of
// GroupID or UserUID must be set.
type Destination struct {
	GroupID int64
	UserUID string
}

func (d Destination) valid() bool {
	return (d.GroupID != 0) != (d.UserUID != "")
}

// Transformer converts element sequences in both directions.
type Transformer struct {
	fetcher    *Fetcher
	rewriter   *Rewriter
	transcoder Transcoder
	platform   string
}

// New creates a Transformer. transcoder may be nil when outbound audio is
// already in a compatible container.
func New(fetcher *Fetcher, rewriter *Rewriter, transcoder Transcoder) *Transformer {
	return &Transformer{
		fetcher:    fetcher,
		rewriter:   rewriter,
		transcoder: transcoder,
		platform:   constants.Platform,
	}
}

// ToSatori converts native elements into the Satori element tree. Unknown
// element kinds are dropped with a warning; the conversion itself never
// fails.
func (t *Transformer) ToSatori(elems []qq.Element, src Source) []satori.Element {
	out := make([]satori.Element, 0, len(elems))
	for _, e := range elems {
		switch v := e.(type) {
		case *qq.Text:
			out = append(out, &satori.Text{Content: v.Text})
		case *qq.At:
			if v.Uin == 0 {
				out = append(out, &satori.At{Type: "all"})
				continue
			}
			out = append(out, &satori.At{ID: strconv.FormatInt(v.Uin, 10), Name: v.Text})
		case *qq.Quote:
			out = append(out, &satori.Quote{ID: strconv.FormatUint(v.Seq, 10)})
		case *qq.Image:
			out = append(out, &satori.Img{
				Src:    t.rewriter.RewriteOutbound(v.URL),
				Width:  v.Width,
				Height: v.Height,
			})
		case *qq.MarketFace:
			out = append(out, &satori.Img{
				Src:    t.rewriter.RewriteOutbound(v.URL),
				Width:  v.Width,
				Height: v.Height,
			})
		case *qq.Audio:
			out = append(out, &satori.Audio{
				Src: t.rewriter.RewriteLocator(BuildAudioLocator(AudioLocator{
					Platform: t.platform,
					SelfID:   src.SelfID,
					Kind:     src.Kind,
					OwnerID:  src.OwnerID,
					FileKey:  v.FileKey,
				})),
				Title:    v.Name,
				Duration: v.Duration,
			})
		default:
			logger.WithField("element", fmt.Sprintf("%T", e)).Warn("cannot convert native element, dropping")
		}
	}
	return out
}

// ToNative converts a Satori element tree into native elements addressed to
// dest, performing the required uploads and lookups along the way.
func (t *Transformer) ToNative(ctx context.Context, client qq.Client, elems []satori.Element, dest Destination) ([]qq.Element, error) {
	if !dest.valid() {
		return nil, ErrAmbiguousDestination
	}
	return t.toNative(ctx, client, elems, dest, 0)
}

func (t *Transformer) toNative(ctx context.Context, client qq.Client, elems []satori.Element, dest Destination, depth int) ([]qq.Element, error) {
	if depth > constants.MaxContainerDepth {
		logger.WithField("depth", depth).Warn("container nesting too deep, truncating subtree")
		return nil, nil
	}

	out := make([]qq.Element, 0, len(elems))
	for _, e := range elems {
		switch v := e.(type) {
		case *satori.Text:
			out = append(out, &qq.Text{Text: v.Content})
		case *satori.At:
			at, err := buildMention(v)
			if err != nil {
				return nil, err
			}
			out = append(out, at)
		case *satori.Quote:
			quote, err := t.buildQuote(ctx, client, v, dest)
			if err != nil {
				return nil, err
			}
			out = append(out, quote)
		case *satori.Img:
			uploaded, err := t.uploadImage(ctx, client, v.Src, dest)
			if err != nil {
				return nil, err
			}
			out = append(out, uploaded)
		case *satori.Audio:
			uploaded, err := t.uploadAudio(ctx, client, v.Src, dest)
			if err != nil {
				return nil, err
			}
			out = append(out, uploaded)
		case *satori.Br:
			out = append(out, &qq.Text{Text: "\n"})
		case *satori.Paragraph:
			children, err := t.toNative(ctx, client, v.Children, dest, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, children...)
			out = append(out, &qq.Text{Text: "\n"})
		case *satori.Link:
			flattened, err := t.flattenLink(ctx, client, v, dest, depth)
			if err != nil {
				return nil, err
			}
			out = append(out, flattened...)
		case *satori.Message:
			children, err := t.toNative(ctx, client, v.Children, dest, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, children...)
		default:
			logger.WithField("element", fmt.Sprintf("%T", e)).Warn("cannot convert satori element, dropping")
		}
	}
	return out, nil
}

func buildMention(v *satori.At) (*qq.At, error) {
	if v.Type == "all" {
		return &qq.At{Text: "@all", Uin: 0}, nil
	}
	if v.ID == "" {
		return nil, ErrInvalidMention
	}
	uin, err := strconv.ParseInt(v.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad id %q", ErrInvalidMention, v.ID)
	}
	name := v.Name
	if name == "" {
		name = v.ID
	}
	return &qq.At{Text: "@" + name, Uin: uin}, nil
}

func (t *Transformer) buildQuote(ctx context.Context, client qq.Client, v *satori.Quote, dest Destination) (*qq.Quote, error) {
	seq, err := strconv.ParseUint(v.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad quote id %q", ErrMessageNotFound, v.ID)
	}
	// direct conversations have no message fetch; reference by seq alone
	if dest.UserUID != "" {
		return &qq.Quote{Seq: seq, UID: dest.UserUID}, nil
	}
	msgs, err := client.GetGroupMessages(ctx, dest.GroupID, seq, seq)
	if err != nil {
		return nil, fmt.Errorf("fetch quoted message: %w", err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: seq %d", ErrMessageNotFound, seq)
	}
	target := msgs[0]
	return &qq.Quote{Seq: target.Seq, Uin: target.Uin, UID: target.UID}, nil
}

func (t *Transformer) uploadImage(ctx context.Context, client qq.Client, src string, dest Destination) (qq.Element, error) {
	data, err := t.fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	if dest.GroupID != 0 {
		return client.UploadGroupImage(ctx, dest.GroupID, data)
	}
	return client.UploadFriendImage(ctx, dest.UserUID, data)
}

func (t *Transformer) uploadAudio(ctx context.Context, client qq.Client, src string, dest Destination) (qq.Element, error) {
	data, err := t.fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	if t.transcoder != nil {
		if data, err = t.transcoder.ToVoice(ctx, data); err != nil {
			return nil, fmt.Errorf("transcode audio: %w", err)
		}
	}
	if dest.GroupID != 0 {
		return client.UploadGroupAudio(ctx, dest.GroupID, data)
	}
	return client.UploadFriendAudio(ctx, dest.UserUID, data)
}

// flattenLink renders a hyperlink for a plain-text transport: the child
// content followed by ": <url>", or the bare url when the link is empty.
func (t *Transformer) flattenLink(ctx context.Context, client qq.Client, v *satori.Link, dest Destination, depth int) ([]qq.Element, error) {
	if len(v.Children) == 0 {
		return []qq.Element{&qq.Text{Text: v.Href}}, nil
	}
	children, err := t.toNative(ctx, client, v.Children, dest, depth+1)
	if err != nil {
		return nil, err
	}
	return append(children, &qq.Text{Text: ": " + v.Href}), nil
}

// Rewriter exposes the media rewriter for inbound signed fetches.
func (t *Transformer) Rewriter() *Rewriter { return t.rewriter }

// Fetcher exposes the resource fetcher for deferred downloads.
func (t *Transformer) Fetcher() *Fetcher { return t.fetcher }
