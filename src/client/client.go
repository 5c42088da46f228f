package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hendrywilliam/splash/src/dispatcher"
	"github.com/hendrywilliam/splash/src/gateway"
	"github.com/hendrywilliam/splash/src/interactions"
	message "github.com/hendrywilliam/splash/src/messages"
	"github.com/hendrywilliam/splash/src/rest"
	"github.com/hendrywilliam/splash/src/structs"
	"github.com/hendrywilliam/splash/src/utils"
	"github.com/hendrywilliam/splash/src/webhook"
	"github.com/sourcegraph/conc/pool"
)

var ErrAlreadyRunning = errors.New("client is already running")

type ClientArguments struct {
	BotToken      string
	ApplicationID structs.Snowflake
	Intents       []gateway.GatewayIntent
	Presence      *gateway.UpdatePresence
	Compress      bool

	// RESTBaseURL defaults to https://discord.com/api/v{APIVersion}.
	RESTBaseURL    string
	APIVersion     int
	RequestTimeout time.Duration
	// GatewayURL is asked from GET /gateway/bot when empty.
	GatewayURL           string
	MaxResumeAttempts    int
	MaxReconnectAttempts int

	// WebhookAddress enables the HTTP interactions endpoint, PublicKey is
	// then required.
	WebhookAddress string
	PublicKey      string

	// ConcurrentHandlers runs event handlers on their own goroutines.
	ConcurrentHandlers bool
	Logger             *slog.Logger
}

// ArgumentsFromConfig maps the loaded configuration to client arguments.
func ArgumentsFromConfig(cfg utils.AppConfig, logger *slog.Logger) ClientArguments {
	return ClientArguments{
		BotToken:             cfg.DiscordBotToken,
		ApplicationID:        structs.Snowflake(cfg.DiscordAppsID),
		Intents:              []gateway.GatewayIntent{gateway.GatewayIntent(cfg.DiscordIntents)},
		Compress:             cfg.DiscordCompress,
		RESTBaseURL:          cfg.DiscordHTTPBaseURL,
		APIVersion:           cfg.DiscordAPIVersion,
		RequestTimeout:       cfg.RequestTimeout,
		GatewayURL:           cfg.DiscordGatewayAddress,
		MaxResumeAttempts:    cfg.MaxResumeAttempts,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		WebhookAddress:       cfg.WebhookAddress,
		PublicKey:            cfg.DiscordPublicKey,
		Logger:               logger,
	}
}

// Client wires the REST client, the command registry and the gateway of
// one bot.
type Client struct {
	args ClientArguments

	rest         *rest.REST
	interactions *interactions.InteractionAPI
	messages     *message.MessageAPI
	registry     *dispatcher.CommandRegistry
	dispatcher   *dispatcher.Dispatcher
	webhook      *webhook.Server

	running       atomic.Bool
	mu            sync.Mutex
	gateway       *gateway.Gateway
	applicationID structs.Snowflake

	log *slog.Logger
}

func New(args ClientArguments) (*Client, error) {
	if args.BotToken == "" {
		return nil, errors.New("bot token is required")
	}
	if args.APIVersion == 0 {
		args.APIVersion = rest.DefaultAPIVersion
	}
	if args.RESTBaseURL == "" {
		args.RESTBaseURL = rest.DefaultBaseURL(args.APIVersion)
	}
	if args.Logger == nil {
		args.Logger = slog.Default()
	}

	r := rest.NewREST(rest.RESTArguments{
		BotToken: args.BotToken,
		BaseURL:  args.RESTBaseURL,
		Timeout:  args.RequestTimeout,
		Logger:   args.Logger.With("component", "rest"),
	})
	api := interactions.NewInteractionAPI(r)
	registry := dispatcher.NewCommandRegistry(api)
	d := dispatcher.NewDispatcher(dispatcher.DispatcherArguments{
		Concurrent: args.ConcurrentHandlers,
		Logger:     args.Logger.With("component", "dispatcher"),
	})
	if err := d.Register(gateway.EventInteractionCreate, registry.HandleEvent); err != nil {
		return nil, err
	}

	c := &Client{
		args:          args,
		rest:          r,
		interactions:  api,
		messages:      message.New(r),
		registry:      registry,
		dispatcher:    d,
		applicationID: args.ApplicationID,
		log:           args.Logger,
	}
	if args.WebhookAddress != "" {
		server, err := webhook.NewServer(webhook.ServerArguments{
			PublicKey: args.PublicKey,
			Registry:  registry,
			API:       api,
			Logger:    args.Logger.With("component", "webhook"),
		})
		if err != nil {
			return nil, err
		}
		c.webhook = server
	}
	return c, nil
}

func (c *Client) REST() *rest.REST { return c.rest }
func (c *Client) Interactions() *interactions.InteractionAPI { return c.interactions }
func (c *Client) Messages() *message.MessageAPI { return c.messages }
func (c *Client) Commands() *dispatcher.CommandRegistry { return c.registry }
func (c *Client) Webhook() *webhook.Server { return c.webhook }

// Gateway returns the running gateway, nil before Run.
func (c *Client) Gateway() *gateway.Gateway {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gateway
}

// Register binds a slash command handler.
func (c *Client) Register(name string, h dispatcher.CommandHandler) error {
	return c.registry.Register(name, h)
}

// RegisterComponent binds a button, select menu or modal handler.
func (c *Client) RegisterComponent(customID string, h dispatcher.CommandHandler) error {
	return c.registry.RegisterComponent(customID, h)
}

// On binds a handler to a raw gateway event.
func (c *Client) On(event gateway.EventName, h dispatcher.HandlerFunc) error {
	return c.dispatcher.Register(event, h)
}

// ApplicationID returns the configured id, or asks Discord for the bot
// user, whose id is the application id.
func (c *Client) ApplicationID(ctx context.Context) (structs.Snowflake, error) {
	c.mu.Lock()
	id := c.applicationID
	c.mu.Unlock()
	if id != 0 {
		return id, nil
	}
	user, err := rest.GetCurrentUser(ctx, c.rest)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve application id: %w", err)
	}
	c.mu.Lock()
	c.applicationID = user.ID
	c.mu.Unlock()
	return user.ID, nil
}

// SyncCommands overwrites the application commands of guildID, or the
// global ones when guildID is zero.
func (c *Client) SyncCommands(ctx context.Context, guildID structs.Snowflake, commands []structs.AppCmd) ([]structs.AppCmd, error) {
	appID, err := c.ApplicationID(ctx)
	if err != nil {
		return nil, err
	}
	registered := make(map[string]bool)
	for _, name := range c.registry.Names() {
		registered[name] = true
	}
	for _, cmd := range commands {
		if !registered[cmd.Name] {
			c.log.Warn("syncing a command without handler", "command", cmd.Name)
		}
	}
	synced, err := interactions.NewApplicationCommandAPI(c.rest, appID).BulkOverwrite(ctx, guildID, commands)
	if err != nil {
		return nil, err
	}
	c.log.Info("application commands synced", "count", len(synced), "guild_id", guildID)
	return synced, nil
}

func (c *Client) gatewayURL(ctx context.Context) string {
	if c.args.GatewayURL != "" {
		return c.args.GatewayURL
	}
	gb, err := rest.GetGatewayBot(ctx, c.rest)
	if err != nil || gb.URL == "" {
		c.log.Warn("failed to get gateway url, using default", "error", err)
		return gateway.DefaultGatewayURL
	}
	c.log.Debug("gateway url discovered", "url", gb.URL, "session_starts_remaining", gb.SessionStartLimit.Remaining)
	return gb.URL
}

// Run connects to the gateway, and serves the interactions endpoint when
// configured, until ctx is done or the gateway fails for good.
func (c *Client) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	gw := gateway.NewGateway(gateway.DiscordArguments{
		BotToken:             c.args.BotToken,
		BotIntent:            c.args.Intents,
		GatewayURL:           c.gatewayURL(ctx),
		APIVersion:           c.args.APIVersion,
		Compress:             c.args.Compress,
		Presence:             c.args.Presence,
		MaxResumeAttempts:    c.args.MaxResumeAttempts,
		MaxReconnectAttempts: c.args.MaxReconnectAttempts,
		Dispatcher:           c.dispatcher,
		Logger:               c.log.With("component", "gateway"),
	})
	c.mu.Lock()
	c.gateway = gw
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.gateway = nil
		c.mu.Unlock()
	}()

	// The webhook stops with the gateway, also when Close ended it cleanly.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		defer cancel()
		return gw.Run(ctx)
	})
	if c.webhook != nil {
		p.Go(func(ctx context.Context) error {
			return c.webhook.Start(ctx, c.args.WebhookAddress)
		})
	}
	err := p.Wait()
	c.dispatcher.Wait()
	return err
}
