package transform

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyapx/nekobox/internal/msgid"
	"github.com/wyapx/nekobox/internal/qq"
	"github.com/wyapx/nekobox/internal/satori"
)

// fakeClient implements qq.Client with canned responses and call recording.
type fakeClient struct {
	qq.Client // panic on anything not overridden

	groupMessages []*qq.GroupMessage

	groupImageUploads  int
	friendImageUploads int
	groupAudioUploads  int
}

func (f *fakeClient) GetGroupMessages(ctx context.Context, groupID int64, beginSeq, endSeq uint64) ([]*qq.GroupMessage, error) {
	var out []*qq.GroupMessage
	for _, m := range f.groupMessages {
		if m.GroupID == groupID && m.Seq >= beginSeq && m.Seq <= endSeq {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeClient) UploadGroupImage(ctx context.Context, groupID int64, data []byte) (qq.Element, error) {
	f.groupImageUploads++
	return &qq.Image{URL: "https://gchat.qpic.cn/u/1.png", FileKey: "fk"}, nil
}

func (f *fakeClient) UploadFriendImage(ctx context.Context, uid string, data []byte) (qq.Element, error) {
	f.friendImageUploads++
	return &qq.Image{URL: "https://gchat.qpic.cn/u/2.png"}, nil
}

func (f *fakeClient) UploadGroupAudio(ctx context.Context, groupID int64, data []byte) (qq.Element, error) {
	f.groupAudioUploads++
	return &qq.Audio{FileKey: "ak", Duration: 1}, nil
}

func newTestTransformer() *Transformer {
	return New(NewFetcher(), NewRewriter(""), nil)
}

func TestToSatori_OneOfEachElement(t *testing.T) {
	tr := newTestTransformer()
	src := Source{Kind: msgid.KindGroup, OwnerID: 777, SelfID: 10000}

	in := []qq.Element{
		&qq.Text{Text: "hello"},
		&qq.At{Uin: 10001, Text: "@alice"},
		&qq.Quote{Seq: 42},
		&qq.Image{URL: "https://gchat.qpic.cn/a.png?rkey=secret", Width: 4, Height: 3},
		&qq.Audio{Name: "voice", FileKey: "filekey", Duration: 2},
		&qq.MarketFace{Name: "sticker", URL: "https://gchat.qpic.cn/mf.png"},
	}

	out := tr.ToSatori(in, src)
	require.Len(t, out, len(in))

	assert.Equal(t, "hello", out[0].(*satori.Text).Content)
	assert.Equal(t, "10001", out[1].(*satori.At).ID)
	assert.Equal(t, "42", out[2].(*satori.Quote).ID)

	img := out[3].(*satori.Img)
	assert.NotContains(t, img.Src, "rkey")
	assert.Equal(t, uint32(4), img.Width)

	audio := out[4].(*satori.Audio)
	assert.Equal(t, "upload://nekobox/10000/audio/gid/777/filekey", audio.Src)
	assert.Equal(t, "voice", audio.Title)

	assert.IsType(t, &satori.Img{}, out[5])
}

func TestToSatori_AudioLocatorRebasedOntoProxy(t *testing.T) {
	tr := New(NewFetcher(), NewRewriter("https://proxy.example.com/v1/proxy"), nil)
	src := Source{Kind: msgid.KindGroup, OwnerID: 777, SelfID: 10000}

	out := tr.ToSatori([]qq.Element{&qq.Audio{FileKey: "filekey"}}, src)
	require.Len(t, out, 1)

	want := "https://proxy.example.com/v1/proxy?url=" + url.QueryEscape("upload://nekobox/10000/audio/gid/777/filekey")
	assert.Equal(t, want, out[0].(*satori.Audio).Src)
}

func TestToSatori_AtAllMembers(t *testing.T) {
	tr := newTestTransformer()
	out := tr.ToSatori([]qq.Element{&qq.At{Uin: 0, Text: "@all"}}, Source{Kind: msgid.KindGroup, OwnerID: 1})
	require.Len(t, out, 1)
	assert.Equal(t, "all", out[0].(*satori.At).Type)
}

func TestToNative_TextAndMention(t *testing.T) {
	tr := newTestTransformer()
	client := &fakeClient{}

	out, err := tr.ToNative(context.Background(), client, []satori.Element{
		&satori.Text{Content: "hi "},
		&satori.At{ID: "10001", Name: "alice"},
		&satori.At{Type: "all"},
	}, Destination{GroupID: 777})
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "hi ", out[0].(*qq.Text).Text)
	at := out[1].(*qq.At)
	assert.Equal(t, int64(10001), at.Uin)
	assert.Equal(t, "@alice", at.Text)
	assert.Equal(t, int64(0), out[2].(*qq.At).Uin)
}

func TestToNative_InvalidMention(t *testing.T) {
	tr := newTestTransformer()
	_, err := tr.ToNative(context.Background(), &fakeClient{}, []satori.Element{
		&satori.At{Name: "no-id"},
	}, Destination{GroupID: 777})
	assert.ErrorIs(t, err, ErrInvalidMention)
}

func TestToNative_AmbiguousDestination(t *testing.T) {
	tr := newTestTransformer()
	for _, dest := range []Destination{
		{},
		{GroupID: 1, UserUID: "u_x"},
	} {
		_, err := tr.ToNative(context.Background(), &fakeClient{}, []satori.Element{
			&satori.Text{Content: "x"},
		}, dest)
		assert.ErrorIs(t, err, ErrAmbiguousDestination)
	}
}

func TestToNative_QuoteFetchesReferencedMessage(t *testing.T) {
	tr := newTestTransformer()
	client := &fakeClient{groupMessages: []*qq.GroupMessage{
		{Seq: 42, GroupID: 777, Uin: 10001, UID: "u_alice"},
	}}

	out, err := tr.ToNative(context.Background(), client, []satori.Element{
		&satori.Quote{ID: "42"},
	}, Destination{GroupID: 777})
	require.NoError(t, err)
	require.Len(t, out, 1)

	quote := out[0].(*qq.Quote)
	assert.Equal(t, uint64(42), quote.Seq)
	assert.Equal(t, int64(10001), quote.Uin)
}

func TestToNative_QuoteMissing(t *testing.T) {
	tr := newTestTransformer()
	_, err := tr.ToNative(context.Background(), &fakeClient{}, []satori.Element{
		&satori.Quote{ID: "42"},
	}, Destination{GroupID: 777})
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestToNative_ImageUploadPicksDestinationEndpoint(t *testing.T) {
	tr := newTestTransformer()
	src := EncodeDataURL("image/png", []byte{0x89, 0x50})

	client := &fakeClient{}
	_, err := tr.ToNative(context.Background(), client, []satori.Element{
		&satori.Img{Src: src},
	}, Destination{GroupID: 777})
	require.NoError(t, err)
	assert.Equal(t, 1, client.groupImageUploads)

	client = &fakeClient{}
	_, err = tr.ToNative(context.Background(), client, []satori.Element{
		&satori.Img{Src: src},
	}, Destination{UserUID: "u_bob"})
	require.NoError(t, err)
	assert.Equal(t, 1, client.friendImageUploads)
}

func TestToNative_LinkFlattening(t *testing.T) {
	tr := newTestTransformer()

	out, err := tr.ToNative(context.Background(), &fakeClient{}, []satori.Element{
		&satori.Link{Href: "https://go.dev", Children: []satori.Element{
			&satori.Text{Content: "Go"},
		}},
	}, Destination{GroupID: 777})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Go", out[0].(*qq.Text).Text)
	assert.Equal(t, ": https://go.dev", out[1].(*qq.Text).Text)

	out, err = tr.ToNative(context.Background(), &fakeClient{}, []satori.Element{
		&satori.Link{Href: "https://go.dev"},
	}, Destination{GroupID: 777})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "https://go.dev", out[0].(*qq.Text).Text)
}

func TestToNative_ParagraphInsertsBreak(t *testing.T) {
	tr := newTestTransformer()

	out, err := tr.ToNative(context.Background(), &fakeClient{}, []satori.Element{
		&satori.Paragraph{Children: []satori.Element{&satori.Text{Content: "line"}}},
		&satori.Text{Content: "after"},
	}, Destination{GroupID: 777})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "line", out[0].(*qq.Text).Text)
	assert.Equal(t, "\n", out[1].(*qq.Text).Text)
	assert.Equal(t, "after", out[2].(*qq.Text).Text)
}

func TestToNative_DepthGuardTruncates(t *testing.T) {
	tr := newTestTransformer()

	// nest well past the guard; conversion must not fail and must not recurse forever
	var node satori.Element = &satori.Text{Content: "deep"}
	for i := 0; i < 100; i++ {
		node = &satori.Message{Children: []satori.Element{node}}
	}

	out, err := tr.ToNative(context.Background(), &fakeClient{}, []satori.Element{node}, Destination{GroupID: 777})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestToNative_UnknownElementDropped(t *testing.T) {
	tr := newTestTransformer()

	out, err := tr.ToNative(context.Background(), &fakeClient{}, []satori.Element{
		&satori.Unknown{Tag: "sticker"},
		&satori.Text{Content: "kept"},
	}, Destination{GroupID: 777})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "kept", out[0].(*qq.Text).Text)
}
