// Package events converts inbound IM events into Satori events and feeds
// the outbound publication queue.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wyapx/nekobox/internal/cache"
	"github.com/wyapx/nekobox/internal/logger"
	"github.com/wyapx/nekobox/internal/qq"
	"github.com/wyapx/nekobox/internal/satori"
	"github.com/wyapx/nekobox/internal/transform"
	"github.com/wyapx/nekobox/internal/uid"
	"github.com/wyapx/nekobox/pkg/constants"
)

// Outcome is the terminal state of handling one event occurrence.
type Outcome int

const (
	// OutcomePublished means a Satori event was enqueued.
	OutcomePublished Outcome = iota
	// OutcomeSuppressed means the event intentionally produced nothing,
	// such as a join request with no matching pending-roster entry.
	OutcomeSuppressed
	// OutcomeFailed means handling errored; the error is logged and the
	// event dropped without affecting the subscription loop.
	OutcomeFailed
)

// Dispatcher converts each IM event occurrence into zero or one Satori
// events. One occurrence failing never halts dispatch.
type Dispatcher struct {
	client      qq.Client
	transformer *transform.Transformer
	resolver    *uid.Resolver
	store       cache.Store
	queue       *Queue
	platform    string
}

// NewDispatcher wires a Dispatcher. store may be cache.Nop without any
// behavioral change beyond extra protocol roundtrips.
func NewDispatcher(client qq.Client, tr *transform.Transformer, resolver *uid.Resolver, store cache.Store, queue *Queue) *Dispatcher {
	return &Dispatcher{
		client:      client,
		transformer: tr,
		resolver:    resolver,
		store:       store,
		queue:       queue,
		platform:    constants.Platform,
	}
}

// Handle processes one inbound event to a terminal outcome.
func (d *Dispatcher) Handle(ctx context.Context, ev qq.Event) Outcome {
	satoriEv, err := d.convert(ctx, ev)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"event": fmt.Sprintf("%T", ev),
			"error": err,
		}).Error("event handling failed, dropping")
		return OutcomeFailed
	}
	if satoriEv == nil {
		return OutcomeSuppressed
	}
	if satoriEv.Type != satori.EventMessageCreated {
		logger.WithField("type", satoriEv.Type).Debug("event triggered")
	}
	d.queue.Push(satoriEv)
	return OutcomePublished
}

func (d *Dispatcher) convert(ctx context.Context, ev qq.Event) (*satori.Event, error) {
	switch v := ev.(type) {
	case *qq.GroupMessageEvent:
		return d.onGroupMessage(&v.Message)
	case *qq.FriendMessageEvent:
		return d.onFriendMessage(&v.Message)
	case *qq.GroupRecallEvent:
		return d.onGroupRecall(v)
	case *qq.MemberJoinedEvent:
		return d.onMemberJoined(ctx, v)
	case *qq.MemberQuitEvent:
		return d.onMemberQuit(v)
	case *qq.GroupRenamedEvent:
		return d.onGroupRenamed(v)
	case *qq.JoinRequestEvent:
		return d.onJoinRequest(ctx, v)
	case *qq.ReactionEvent:
		return d.onReaction(v)
	case *qq.StatusEvent:
		return d.onStatus(v)
	default:
		logger.WithField("event", fmt.Sprintf("%T", ev)).Debug("no handler for event, ignoring")
		return nil, nil
	}
}

// newEvent fills the fields common to every published event. The sequence
// id is assigned later, at enqueue time.
func (d *Dispatcher) newEvent(kind string, unixSeconds int64) *satori.Event {
	ts := unixSeconds * 1000
	if unixSeconds == 0 {
		ts = time.Now().UnixMilli()
	}
	return &satori.Event{
		Type:      kind,
		Platform:  d.platform,
		SelfID:    fmt.Sprintf("%d", d.client.Uin()),
		Timestamp: ts,
	}
}
