// Package adapter owns the lifecycle of one bridged account: the gateway
// connection to the protocol client, the event dispatch pipeline, the API
// registry and the Satori listener, plus the publication loop between them.
package adapter

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/mdp/qrterminal"
	"github.com/sirupsen/logrus"

	"github.com/wyapx/nekobox/internal/api"
	"github.com/wyapx/nekobox/internal/cache"
	"github.com/wyapx/nekobox/internal/config"
	"github.com/wyapx/nekobox/internal/events"
	"github.com/wyapx/nekobox/internal/logger"
	"github.com/wyapx/nekobox/internal/msgid"
	"github.com/wyapx/nekobox/internal/qq"
	"github.com/wyapx/nekobox/internal/satori"
	"github.com/wyapx/nekobox/internal/server"
	"github.com/wyapx/nekobox/internal/transform"
	"github.com/wyapx/nekobox/internal/uid"
	"github.com/wyapx/nekobox/pkg/constants"
)

// Adapter bridges one account between the protocol gateway and the Satori
// surface.
type Adapter struct {
	cfg *config.Config

	gateway     *qq.Gateway
	transformer *transform.Transformer
	resolver    *uid.Resolver
	store       cache.Store
	queue       *events.Queue
	dispatcher  *events.Dispatcher
	registry    *api.Registry
	server      *server.Server

	cancel  context.CancelFunc
	stopped sync.WaitGroup
}

// New wires an Adapter from configuration. Nothing connects until Run.
func New(cfg *config.Config) *Adapter {
	a := &Adapter{
		cfg:      cfg,
		gateway:  qq.NewGateway(cfg.Gateway.Address, cfg.Gateway.Token, cfg.Account.Uin),
		resolver: uid.NewResolver(),
		store:    cache.NewMemory(),
		queue:    events.NewQueue(),
	}
	a.transformer = transform.New(
		transform.NewFetcher(),
		transform.NewRewriter(cfg.Media.ProxyBase),
		nil,
	)
	a.dispatcher = events.NewDispatcher(a.gateway, a.transformer, a.resolver, a.store, a.queue)
	a.registry = api.NewRegistry(a.gateway, a.transformer, a.resolver, a.store)
	a.server = server.New(cfg.Server.Listen, cfg.Server.Token, a.registry, a.logins, a.downloadMedia)
	return a
}

// Run connects the gateway and serves until the context is cancelled or the
// listener fails.
func (a *Adapter) Run(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	defer a.cancel()

	a.gateway.OnQRCode(renderQRCode)
	a.gateway.OnEvent(func(ev qq.Event) {
		a.dispatcher.Handle(ctx, ev)
	})

	logger.WithFields(logrus.Fields{
		"uin":     a.cfg.Account.Uin,
		"gateway": a.cfg.Gateway.Address,
	}).Info("connecting to gateway")
	if err := a.gateway.Connect(ctx); err != nil {
		return fmt.Errorf("gateway connect: %w", err)
	}

	a.stopped.Add(1)
	go func() {
		defer a.stopped.Done()
		a.publisher(ctx)
	}()

	err := a.server.Run()
	a.cancel()
	a.stopped.Wait()
	return err
}

// Stop shuts the listener and the gateway down, unblocking Run.
func (a *Adapter) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	serverErr := a.server.Shutdown(ctx)
	gatewayErr := a.gateway.Close()
	if serverErr != nil {
		return serverErr
	}
	return gatewayErr
}

// publisher is the sole consumer of the outbound queue, pushing events in
// publication order to every feed subscriber.
func (a *Adapter) publisher(ctx context.Context) {
	for {
		ev, err := a.queue.Next(ctx)
		if err != nil {
			return
		}
		a.server.Publish(ev)
	}
}

func (a *Adapter) logins() []*satori.Login {
	status := satori.StatusDisconnect
	if a.gateway.Online() {
		status = satori.StatusOnline
	}
	uin := a.gateway.Uin()
	return []*satori.Login{{
		SelfID:   fmt.Sprintf("%d", uin),
		Platform: constants.Platform,
		Status:   status,
		User: &satori.User{
			ID:     fmt.Sprintf("%d", uin),
			Name:   fmt.Sprintf("%d", uin),
			Avatar: fmt.Sprintf(constants.UserAvatarURL, uin),
		},
	}}
}

// downloadMedia serves the deferred media route: audio locators are
// resolved through the protocol client into a signed download URL, other
// media host URLs get a fresh signing parameter before the fetch.
func (a *Adapter) downloadMedia(ctx context.Context, rawURL string) ([]byte, error) {
	if loc, err := transform.ParseAudioLocator(rawURL); err == nil {
		return a.downloadAudio(ctx, loc)
	}

	signed, err := a.transformer.Rewriter().SignInbound(ctx, rawURL, a.gateway)
	if err != nil {
		return nil, err
	}
	return a.transformer.Fetcher().Fetch(ctx, signed)
}

func (a *Adapter) downloadAudio(ctx context.Context, loc *transform.AudioLocator) ([]byte, error) {
	var (
		url string
		err error
	)
	switch loc.Kind {
	case msgid.KindGroup:
		url, err = a.gateway.GetGroupAudioURL(ctx, loc.OwnerID, loc.FileKey)
	case msgid.KindDirect:
		ownerUID, resolveErr := a.resolver.ResolveUIDWithRefresh(ctx, loc.OwnerID, a.friendRefresh)
		if resolveErr != nil {
			return nil, resolveErr
		}
		url, err = a.gateway.GetFriendAudioURL(ctx, ownerUID, loc.FileKey)
	default:
		return nil, fmt.Errorf("unknown audio source kind %d", loc.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve audio url: %w", err)
	}
	return a.transformer.Fetcher().Fetch(ctx, url)
}

func (a *Adapter) friendRefresh(ctx context.Context) error {
	friends, err := a.gateway.GetFriendList(ctx)
	if err != nil {
		return err
	}
	for _, f := range friends {
		a.resolver.Record(f.Uin, f.UID)
	}
	return nil
}

// renderQRCode prints the login QR code to the terminal for scanning.
func renderQRCode(link string) {
	logger.Info("please scan the QR code with the mobile client to log in")
	qrterminal.GenerateWithConfig(link, qrterminal.Config{
		Level:     qrterminal.L,
		Writer:    os.Stdout,
		BlackChar: qrterminal.BLACK,
		WhiteChar: qrterminal.WHITE,
		QuietZone: 1,
	})
}
