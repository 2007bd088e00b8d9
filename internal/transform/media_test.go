package transform

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyapx/nekobox/internal/msgid"
)

func TestRewriteOutbound_StripsSigningParams(t *testing.T) {
	r := NewRewriter("")

	out := r.RewriteOutbound("https://gchat.qpic.cn/download?appid=1&rkey=ephemeral")
	assert.NotContains(t, out, "rkey")
	assert.Contains(t, out, "appid=1")
}

func TestRewriteOutbound_ProxyRebase(t *testing.T) {
	r := NewRewriter("https://proxy.example.com/media/")

	out := r.RewriteOutbound("https://gchat.qpic.cn/a.png?rkey=x")
	assert.Equal(t, "https://proxy.example.com/media?url=https%3A%2F%2Fgchat.qpic.cn%2Fa.png", out)
}

func TestRewriteLocator(t *testing.T) {
	locator := "upload://nekobox/10000/audio/gid/777/key"

	assert.Equal(t, locator, NewRewriter("").RewriteLocator(locator))

	rebased := NewRewriter("https://proxy.example.com/media").RewriteLocator(locator)
	assert.Equal(t, "https://proxy.example.com/media?url="+url.QueryEscape(locator), rebased)
}

func TestRewriteOutbound_ForeignHostUntouched(t *testing.T) {
	r := NewRewriter("https://proxy.example.com")

	raw := "https://example.org/a.png?rkey=keepme"
	assert.Equal(t, raw, r.RewriteOutbound(raw))
}

type fakeRefresher struct {
	calls int
}

func (f *fakeRefresher) RefreshMediaURL(ctx context.Context, rawURL string) (string, error) {
	f.calls++
	return rawURL + "&rkey=fresh", nil
}

func TestSignInbound(t *testing.T) {
	r := NewRewriter("")
	ref := &fakeRefresher{}

	signed, err := r.SignInbound(context.Background(), "https://gchat.qpic.cn/a.png?x=1", ref)
	require.NoError(t, err)
	assert.Contains(t, signed, "rkey=fresh")
	assert.Equal(t, 1, ref.calls)

	// non-media hosts pass through without a refresh roundtrip
	passthrough, err := r.SignInbound(context.Background(), "https://example.org/a.png", ref)
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/a.png", passthrough)
	assert.Equal(t, 1, ref.calls)
}

func TestAudioLocator_RoundTrip(t *testing.T) {
	for _, kind := range []msgid.Kind{msgid.KindGroup, msgid.KindDirect} {
		in := AudioLocator{
			Platform: "nekobox",
			SelfID:   10000,
			Kind:     kind,
			OwnerID:  777,
			FileKey:  "abc/def key",
		}
		parsed, err := ParseAudioLocator(BuildAudioLocator(in))
		require.NoError(t, err)
		assert.Equal(t, in, *parsed)
	}
}

func TestParseAudioLocator_Malformed(t *testing.T) {
	for _, s := range []string{
		"",
		"https://example.com/audio",
		"upload://nekobox/10000/video/gid/777/key",
		"upload://nekobox/10000/audio/xid/777/key",
		"upload://nekobox/abc/audio/gid/777/key",
		"upload://nekobox/10000/audio/gid/abc/key",
		"upload://nekobox/10000/audio/gid/777",
	} {
		_, err := ParseAudioLocator(s)
		assert.Error(t, err, "input %q", s)
	}
}
