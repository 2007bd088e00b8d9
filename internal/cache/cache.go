// Package cache provides the short-lived metadata cache shared by the event
// dispatcher and the API handlers.
//
// The cache is purely a latency and quota optimization: every consumer must
// behave identically (modulo extra IM roundtrips) when every read misses,
// which the Nop store makes testable.
package cache

import (
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// Store is a key-value store with per-entry expiry. Get and Set must be
// safe for concurrent use; no cross-key consistency is implied.
type Store interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
}

// Composite key builders. Entries are namespaced by entity type.
func GuildKey(id int64) string             { return fmt.Sprintf("guild@%d", id) }
func ChannelKey(id string) string          { return "channel@" + id }
func UserKey(id int64) string              { return fmt.Sprintf("user@%d", id) }
func MemberKey(guild, user int64) string   { return fmt.Sprintf("member@%d#%d", guild, user) }
func JoinRequestKey(seq uint64) string     { return fmt.Sprintf("request@%d", seq) }
func LatestSeqKey(guild int64) string      { return fmt.Sprintf("seq@%d", guild) }

// List snapshot keys for the cached roster endpoints.
const (
	GuildListKey  = "guild@list"
	FriendListKey = "friend@list"
)

type entry struct {
	value    any
	deadline time.Time
}

// Memory is an in-process Store with lazy expiry.
type Memory struct {
	entries *xsync.Map[string, entry]
	now     func() time.Time
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		entries: xsync.NewMap[string, entry](),
		now:     time.Now,
	}
}

// Get returns the live value for key, expiring it if the TTL has lapsed.
func (m *Memory) Get(key string) (any, bool) {
	e, ok := m.entries.Load(key)
	if !ok {
		return nil, false
	}
	if m.now().After(e.deadline) {
		m.entries.Delete(key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl drops the entry.
func (m *Memory) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		m.entries.Delete(key)
		return
	}
	m.entries.Store(key, entry{value: value, deadline: m.now().Add(ttl)})
}

// Delete removes an entry.
func (m *Memory) Delete(key string) {
	m.entries.Delete(key)
}

// Nop is a Store that never retains anything. It exists to prove cache
// independence: the system must stay correct when wired with it.
type Nop struct{}

func (Nop) Get(string) (any, bool)           { return nil, false }
func (Nop) Set(string, any, time.Duration)   {}
func (Nop) Delete(string)                    {}
