// Package app wires the client together from a Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bank-client/pkg/actions"
	"bank-client/pkg/api"
	"bank-client/pkg/apiclient"
	"bank-client/pkg/bankerr"
	"bank-client/pkg/config"
	"bank-client/pkg/dispatch"
	"bank-client/pkg/logging"
	"bank-client/pkg/metrics"
	"bank-client/pkg/metrics/memory"
	promcollector "bank-client/pkg/metrics/prometheus"
	"bank-client/pkg/resilience"
	"bank-client/pkg/state"
	"bank-client/pkg/tokenstore"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultDomains are refreshed by RefreshAll.
var DefaultDomains = []state.Domain{
	state.DomainAccount,
	state.DomainTransfers,
	state.DomainNotifications,
}

// App owns every component of a running client.
type App struct {
	Config   *config.Config
	Logger   *logging.Logger
	Metrics  metrics.Collector
	Registry *prometheus.Registry

	Tokens  tokenstore.Store
	Client  *apiclient.Client
	Actions *actions.Actions
	Store   *state.Store

	Session       *state.SessionController
	Account       *state.AccountController
	Transfers     *state.TransferController
	Recipients    *state.RecipientController
	Cards         *state.CardController
	Notifications *state.NotificationController

	Dispatcher *dispatch.AsyncDispatcher
	Status     *api.Server

	poller *Poller
}

// Option customizes New.
type Option func(*options)

type options struct {
	tokens    tokenstore.Store
	transport http.RoundTripper
	logger    *logging.Logger
}

// WithTokenStore uses store instead of the configured backend.
func WithTokenStore(store tokenstore.Store) Option {
	return func(o *options) { o.tokens = store }
}

// WithTransport sets the HTTP transport of the backend client.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithLogger uses logger instead of one built from the config.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New builds the client from cfg. Nothing talks to the backend until Start.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg}

	a.Logger = o.logger
	if a.Logger == nil {
		logger, err := logging.NewLogger(cfg.LoggingConfig())
		if err != nil {
			return nil, fmt.Errorf("app: logger: %w", err)
		}
		a.Logger = logger
	}
	logging.SetGlobal(a.Logger)

	if err := a.initMetrics(); err != nil {
		return nil, err
	}

	a.Tokens = o.tokens
	if a.Tokens == nil {
		store, err := tokenstore.New(cfg.TokenStoreConfig())
		if err != nil {
			return nil, fmt.Errorf("app: token store: %w", err)
		}
		a.Tokens = store
	}

	clientCfg := apiclient.DefaultConfig(cfg.APIURL)
	clientCfg.Timeout = cfg.RequestTimeout
	clientCfg.Transport = o.transport
	breaker := resilience.NewBreakerWithMetrics("backend", cfg.ResilienceConfig(), a.Metrics)
	client, err := apiclient.New(clientCfg, a.Tokens,
		apiclient.WithBreaker(breaker),
		apiclient.WithMetrics(a.Metrics),
		apiclient.WithLogger(a.Logger.Component("apiclient")),
	)
	if err != nil {
		a.Tokens.Close()
		return nil, err
	}
	a.Client = client

	a.Dispatcher = dispatch.NewWithMetrics(a.buildSink(), dispatch.Config{QueueSize: cfg.DispatchQueue}, a.Metrics)

	a.Store = state.NewStore(
		state.WithLogger(a.Logger.Component("state")),
		state.WithMetrics(a.Metrics),
	)
	// Transfers and recipients report local notifications to the controller,
	// so it is built over its own endpoint module first.
	a.Notifications = state.NewNotificationController(a.Store, actions.NewNotifications(client), a.Dispatcher)
	a.Actions = actions.New(client, a.Notifications)

	a.Session = state.NewSessionController(a.Store, a.Actions.Auth, a.Tokens)
	a.Account = state.NewAccountController(a.Store, a.Actions.Accounts)
	a.Transfers = state.NewTransferController(a.Store, a.Actions.Transfers, a.Account,
		state.WithMaxTransferAmount(cfg.MaxTransferAmount))
	a.Recipients = state.NewRecipientController(a.Store, a.Actions.Recipients)
	a.Cards = state.NewCardController(a.Store, a.Actions.Cards)

	a.Account.OnSessionExpired(a.Session.Expire)
	a.Transfers.OnSessionExpired(a.Session.Expire)
	a.Recipients.OnSessionExpired(a.Session.Expire)
	a.Cards.OnSessionExpired(a.Session.Expire)
	a.Notifications.OnSessionExpired(a.Session.Expire)

	a.Session.OnAuthenticated(func(ctx context.Context) {
		if err := a.RefreshAll(ctx, nil); err != nil {
			a.Logger.Warn("Initial refresh failed", zap.Error(err))
		}
	})

	if cfg.StatusAddr != "" {
		serverCfg := api.DefaultServerConfig()
		serverCfg.Address = cfg.StatusAddr
		serverOpts := []api.Option{api.WithRefresher(a)}
		if a.Registry != nil {
			serverOpts = append(serverOpts, api.WithGatherer(a.Registry))
		}
		a.Status = api.NewServer(a.Store, a.Metrics, serverCfg, serverOpts...)
	}

	a.poller = NewPoller(cfg.RefreshInterval, a.poll)
	return a, nil
}

func (a *App) initMetrics() error {
	switch a.Config.Metrics {
	case "prometheus":
		a.Registry = prometheus.NewRegistry()
		collector := promcollector.NewPrometheusCollector("bank_client")
		if err := collector.Register(a.Registry); err != nil {
			return fmt.Errorf("app: register metrics: %w", err)
		}
		a.Metrics = collector
	case "none":
		a.Metrics = metrics.NoOpCollector{}
	default:
		a.Metrics = memory.NewMemoryCollector()
	}
	return nil
}

func (a *App) buildSink() dispatch.Sink {
	logSink := dispatch.NewLogSink(a.Logger.Component("notifications"))
	if a.Config.PushToken == "" {
		return logSink
	}
	push, err := dispatch.NewPushSink(dispatch.PushConfig{
		URL: a.Config.PushURL,
		To:  a.Config.PushToken,
	})
	if err != nil {
		a.Logger.Warn("Push delivery disabled", zap.Error(err))
		return logSink
	}
	return dispatch.MultiSink{logSink, push}
}

// Start restores the session from the persisted token and starts the status
// server and the periodic refresher. A missing or rejected token is not an
// error: the session is simply unauthenticated.
func (a *App) Start(ctx context.Context) error {
	if a.Status != nil {
		if err := a.Status.Start(); err != nil {
			return err
		}
	}

	if err := a.Session.CheckStatus(ctx); err != nil {
		switch {
		case bankerr.IsUnauthorized(err):
			a.Logger.Info("Stored session is no longer valid")
		case bankerr.IsTransient(err) || errors.Is(err, bankerr.ErrCircuitOpen):
			a.Logger.Warn("Could not reach the backend to restore the session", zap.Error(err))
		default:
			a.Logger.Warn("Session restore failed", zap.Error(err))
		}
	}

	a.poller.Start()
	return nil
}

// RefreshAll refreshes the account, transfers and notifications concurrently.
func (a *App) RefreshAll(ctx context.Context, scope *state.Scope) error {
	return a.Refresh(ctx, scope, DefaultDomains...)
}

// Refresh refreshes the given sections concurrently and returns the first error.
func (a *App) Refresh(ctx context.Context, scope *state.Scope, domains ...state.Domain) error {
	if !a.Session.Authenticated() {
		return bankerr.New("app.refresh", bankerr.ErrNotAuthenticated, "")
	}

	var g errgroup.Group
	for _, domain := range domains {
		switch domain {
		case state.DomainAccount:
			g.Go(func() error { return a.Account.Refresh(ctx, scope) })
		case state.DomainTransfers:
			g.Go(func() error { return a.Transfers.Refresh(ctx, scope) })
		case state.DomainRecipients:
			g.Go(func() error { return a.Recipients.Refresh(ctx, scope) })
		case state.DomainCards:
			g.Go(func() error { return a.Cards.Refresh(ctx, scope) })
		case state.DomainNotifications:
			g.Go(func() error { return a.Notifications.Sync(ctx, scope) })
		case state.DomainSession:
			g.Go(func() error { return a.Session.CheckStatus(ctx) })
		default:
			return fmt.Errorf("app: unknown domain %q", domain)
		}
	}
	return g.Wait()
}

func (a *App) poll(ctx context.Context) {
	if !a.Session.Authenticated() {
		return
	}
	scope := state.NewScope("poller")
	defer scope.Close()

	start := time.Now()
	if err := a.RefreshAll(ctx, scope); err != nil {
		a.Logger.Debug("Periodic refresh failed", zap.Error(err))
		return
	}
	a.Logger.Debug("Periodic refresh", zap.Duration("duration", time.Since(start)))
}

// Close stops the refresher, the status server and the dispatcher, then
// closes the token store.
func (a *App) Close() error {
	a.poller.Stop()

	var errs []error
	if a.Status != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.Status.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("status server: %w", err))
		}
		cancel()
	}
	if err := a.Dispatcher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("dispatcher: %w", err))
	}
	if err := a.Tokens.Close(); err != nil {
		errs = append(errs, fmt.Errorf("token store: %w", err))
	}
	a.Logger.Sync()
	return errors.Join(errs...)
}
