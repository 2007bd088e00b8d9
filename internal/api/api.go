// Package api binds Satori API operations to IM client calls. Each route
// maps to exactly one handler; the server layer decodes the request body,
// looks the route up in the Registry and translates handler errors into
// protocol-level responses.
package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/wyapx/nekobox/internal/cache"
	"github.com/wyapx/nekobox/internal/qq"
	"github.com/wyapx/nekobox/internal/satori"
	"github.com/wyapx/nekobox/internal/transform"
	"github.com/wyapx/nekobox/internal/uid"
	"github.com/wyapx/nekobox/pkg/constants"
)

var (
	// ErrUnsupportedOperation means the operation has no equivalent in the
	// underlying protocol, such as recalling a direct message.
	ErrUnsupportedOperation = errors.New("operation not supported by the protocol")
	// ErrInvalidArgument means a parameter failed domain validation.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrRequestExpired means the referenced membership request has lapsed
	// from the short-lived request cache.
	ErrRequestExpired = errors.New("membership request expired")
	// ErrPermissionDenied means the caller lacks rights for the mutation.
	ErrPermissionDenied = errors.New("permission denied")
)

// Params carries the decoded request parameters. The transport layer
// guarantees basic shape; handlers still validate domain constraints.
type Params map[string]any

// String returns the named parameter as a string, or "" if absent.
func (p Params) String(key string) string {
	v, _ := p[key].(string)
	return v
}

// Int64 returns the named parameter as an integer. JSON numbers arrive as
// float64; string forms are accepted too since Satori ids are strings.
func (p Params) Int64(key string) int64 {
	switch v := p[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

// Bool returns the named parameter as a bool, or false if absent.
func (p Params) Bool(key string) bool {
	v, _ := p[key].(bool)
	return v
}

// Handler executes one API operation.
type Handler func(ctx context.Context, p Params) (any, error)

// Registry maps Satori route names to handlers over one IM client.
type Registry struct {
	client      qq.Client
	transformer *transform.Transformer
	resolver    *uid.Resolver
	store       cache.Store
	handlers    map[string]Handler
}

// NewRegistry wires all supported routes against the given client.
func NewRegistry(client qq.Client, tr *transform.Transformer, resolver *uid.Resolver, store cache.Store) *Registry {
	r := &Registry{
		client:      client,
		transformer: tr,
		resolver:    resolver,
		store:       store,
	}
	r.handlers = map[string]Handler{
		satori.APIMessageCreate:      r.messageCreate,
		satori.APIMessageDelete:      r.messageDelete,
		satori.APIMessageGet:         r.messageGet,
		satori.APIMessageList:        r.messageList,
		satori.APIGuildList:          r.guildList,
		satori.APIGuildMemberGet:     r.guildMemberGet,
		satori.APIGuildMemberList:    r.guildMemberList,
		satori.APIGuildMemberKick:    r.guildMemberKick,
		satori.APIGuildMemberMute:    r.guildMemberMute,
		satori.APIGuildMemberApprove: r.guildMemberApprove,
		satori.APIChannelList:        r.channelList,
		satori.APIUserChannelCreate:  r.userChannelCreate,
		satori.APIFriendList:         r.friendList,
		satori.APIReactionCreate:     r.reactionCreate,
		satori.APIReactionDelete:     r.reactionDelete,
		satori.APIReactionClear:      r.reactionClear,
		satori.APILoginGet:           r.loginGet,
	}
	return r
}

// Call dispatches one operation by route name.
func (r *Registry) Call(ctx context.Context, route string, p Params) (any, error) {
	h, ok := r.handlers[route]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperation, route)
	}
	return h(ctx, p)
}

// Routes lists the registered route names.
func (r *Registry) Routes() []string {
	routes := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		routes = append(routes, name)
	}
	return routes
}

func (r *Registry) loginGet(context.Context, Params) (any, error) {
	status := satori.StatusOffline
	if r.client.Online() {
		status = satori.StatusOnline
	}
	uin := r.client.Uin()
	return &satori.Login{
		SelfID:   strconv.FormatInt(uin, 10),
		Platform: constants.Platform,
		Status:   status,
		User: &satori.User{
			ID:     strconv.FormatInt(uin, 10),
			Name:   strconv.FormatInt(uin, 10),
			Avatar: fmt.Sprintf(constants.UserAvatarURL, uin),
		},
	}, nil
}

// parseUin parses a Satori user or guild id string into the numeric form.
func parseUin(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: numeric id %q", ErrInvalidArgument, s)
	}
	return n, nil
}

// friendRefresh is the roster-refresh fallback for direct addressing:
// fetch the full friend list and record every identity pair.
func (r *Registry) friendRefresh(ctx context.Context) error {
	friends, err := r.client.GetFriendList(ctx)
	if err != nil {
		return err
	}
	for _, f := range friends {
		r.resolver.Record(f.Uin, f.UID)
	}
	return nil
}

// memberRefresh walks the full member roster of one group, recording every
// identity pair observed.
func (r *Registry) memberRefresh(groupID int64) uid.RefreshFunc {
	return func(ctx context.Context) error {
		next := ""
		for {
			page, err := r.client.GetGroupMembers(ctx, groupID, next)
			if err != nil {
				return err
			}
			for _, m := range page.Members {
				r.resolver.Record(m.Uin, m.UID)
			}
			if page.NextKey == "" {
				return nil
			}
			next = page.NextKey
		}
	}
}
