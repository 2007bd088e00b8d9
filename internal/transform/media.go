package transform

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/wyapx/nekobox/internal/msgid"
	"github.com/wyapx/nekobox/pkg/constants"
)

// signingParams are the ephemeral query parameters the media hosts require
// to authorize a download. They expire independently of the message that
// references the asset, so they are stripped from anything handed to the
// standardized side and re-obtained before an inbound fetch.
var signingParams = []string{"rkey", "fileid_sig"}

// Rewriter rewrites media URLs crossing the boundary in either direction.
type Rewriter struct {
	// ProxyBase, when set, is a public proxy endpoint that outbound media
	// URLs are rebased onto so recipients without direct access to the IM
	// media hosts can still retrieve assets.
	ProxyBase string

	hosts []string
}

// NewRewriter creates a Rewriter covering the known media hosts.
func NewRewriter(proxyBase string) *Rewriter {
	return &Rewriter{ProxyBase: proxyBase, hosts: constants.MediaProxyHosts}
}

func (r *Rewriter) isMediaHost(host string) bool {
	for _, h := range r.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// RewriteOutbound strips signing parameters from a media URL and, when a
// proxy endpoint is configured, rebases it onto the proxy. URLs outside the
// media host list pass through untouched.
func (r *Rewriter) RewriteOutbound(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || !r.isMediaHost(u.Host) {
		return raw
	}

	q := u.Query()
	for _, p := range signingParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
	cleaned := u.String()

	if r.ProxyBase == "" {
		return cleaned
	}
	return r.rebase(cleaned)
}

// rebase publishes raw through the proxy endpoint as its url query
// parameter, the form the HTTP proxy route accepts.
func (r *Rewriter) rebase(raw string) string {
	return strings.TrimSuffix(r.ProxyBase, "/") + "?url=" + url.QueryEscape(raw)
}

// RewriteLocator rebases a deferred-download locator onto the proxy
// endpoint so subscribers can fetch the asset over HTTP. Without a proxy
// the locator is published as-is.
func (r *Rewriter) RewriteLocator(locator string) string {
	if r.ProxyBase == "" {
		return locator
	}
	return r.rebase(locator)
}

// Refresher re-obtains the signing parameter for a media URL.
type Refresher interface {
	RefreshMediaURL(ctx context.Context, rawURL string) (string, error)
}

// SignInbound prepares a media URL for an actual download by re-appending a
// fresh signing parameter via the protocol client. Non-media URLs pass
// through untouched.
func (r *Rewriter) SignInbound(ctx context.Context, raw string, refresher Refresher) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || !r.isMediaHost(u.Host) {
		return raw, nil
	}
	signed, err := refresher.RefreshMediaURL(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("refresh media signature: %w", err)
	}
	return signed, nil
}

// AudioLocator is the routing information embedded in a deferred audio
// download reference.
type AudioLocator struct {
	Platform string
	SelfID   int64
	Kind     msgid.Kind
	OwnerID  int64
	FileKey  string
}

const locatorScheme = "upload://"

// BuildAudioLocator produces the synthetic source reference published for
// inbound voice clips instead of the (transcoding-expensive) audio bytes.
func BuildAudioLocator(l AudioLocator) string {
	scope := "gid"
	if l.Kind == msgid.KindDirect {
		scope = "uid"
	}
	return fmt.Sprintf("%s%s/%d/audio/%s/%d/%s",
		locatorScheme, l.Platform, l.SelfID, scope, l.OwnerID, url.PathEscape(l.FileKey))
}

// ParseAudioLocator decodes a locator previously produced by
// BuildAudioLocator.
func ParseAudioLocator(s string) (*AudioLocator, error) {
	rest, ok := strings.CutPrefix(s, locatorScheme)
	if !ok {
		return nil, fmt.Errorf("not an audio locator: %q", s)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 6 || parts[2] != "audio" {
		return nil, fmt.Errorf("malformed audio locator: %q", s)
	}

	selfID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed audio locator self id: %q", parts[1])
	}
	var kind msgid.Kind
	switch parts[3] {
	case "gid":
		kind = msgid.KindGroup
	case "uid":
		kind = msgid.KindDirect
	default:
		return nil, fmt.Errorf("malformed audio locator scope: %q", parts[3])
	}
	ownerID, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed audio locator owner id: %q", parts[4])
	}
	fileKey, err := url.PathUnescape(parts[5])
	if err != nil || fileKey == "" {
		return nil, fmt.Errorf("malformed audio locator file key: %q", parts[5])
	}

	return &AudioLocator{
		Platform: parts[0],
		SelfID:   selfID,
		Kind:     kind,
		OwnerID:  ownerID,
		FileKey:  fileKey,
	}, nil
}
