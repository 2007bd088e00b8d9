// Package uid maintains the mapping between stable numeric account ids
// (uins) and the ephemeral internal ids (uids) the IM protocol requires for
// addressing.
//
// Pairs are recorded opportunistically as they are observed in protocol
// traffic. The mapping is first-write-wins: once a uin is recorded its uid
// never changes for the process lifetime, even if the account is later
// re-provisioned with a different uid. This is a known limitation carried
// over from upstream behavior.
package uid

import (
	"context"
	"errors"
	"fmt"

	"github.com/puzpuzpuz/xsync/v4"
)

// ErrUnresolvedIdentity is returned when a uin or uid was never observed.
var ErrUnresolvedIdentity = errors.New("identity not resolved")

// RefreshFunc performs a bulk roster fetch, recording every identity pair it
// observes into the resolver it was built around.
type RefreshFunc func(ctx context.Context) error

// Resolver is a concurrency-safe bidirectional uin/uid map. The reverse
// index is maintained on insert so uid lookups stay O(1) as the mapping
// grows into the thousands of entries.
type Resolver struct {
	forward *xsync.Map[int64, string]
	reverse *xsync.Map[string, int64]
}

// NewResolver creates an empty Resolver.
func NewResolver() *Resolver {
	return &Resolver{
		forward: xsync.NewMap[int64, string](),
		reverse: xsync.NewMap[string, int64](),
	}
}

// Record stores a uin/uid pair if the uin has not been seen before.
// Recording an already-known uin is a no-op, regardless of the uid value.
func (r *Resolver) Record(uin int64, uid string) {
	if uid == "" {
		return
	}
	if _, loaded := r.forward.LoadOrStore(uin, uid); !loaded {
		r.reverse.Store(uid, uin)
	}
}

// ResolveUID returns the internal id recorded for a uin.
func (r *Resolver) ResolveUID(uin int64) (string, error) {
	uid, ok := r.forward.Load(uin)
	if !ok {
		return "", fmt.Errorf("%w: uin %d", ErrUnresolvedIdentity, uin)
	}
	return uid, nil
}

// ResolveUin returns the numeric account id recorded for an internal id.
func (r *Resolver) ResolveUin(uid string) (int64, error) {
	uin, ok := r.reverse.Load(uid)
	if !ok {
		return 0, fmt.Errorf("%w: uid %q", ErrUnresolvedIdentity, uid)
	}
	return uin, nil
}

// ResolveUIDWithRefresh resolves a uin, and on a miss runs the supplied
// roster refresh exactly once before retrying. A miss after the refresh is
// terminal.
func (r *Resolver) ResolveUIDWithRefresh(ctx context.Context, uin int64, refresh RefreshFunc) (string, error) {
	uid, err := r.ResolveUID(uin)
	if err == nil {
		return uid, nil
	}
	if refresh == nil {
		return "", err
	}
	if err := refresh(ctx); err != nil {
		return "", fmt.Errorf("roster refresh: %w", err)
	}
	return r.ResolveUID(uin)
}

// Len reports how many uins have been recorded.
func (r *Resolver) Len() int {
	return r.forward.Size()
}
