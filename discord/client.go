package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/flashbots/leakhunt/hunt"
)

// memberPageSize is the largest page the members endpoint returns.
const memberPageSize = 1000

var errNotOpen = errors.New("discord: gateway not open")

// Config holds the credentials and network settings of a Client.
type Config struct {
	Token string

	// ListenerToken, when set, watches the leak channel with a second
	// account. The main account is used otherwise.
	ListenerToken string

	// Bot prefixes tokens with "Bot ".
	Bot bool

	// ProxyURL routes REST, gateway and webhook traffic. http, https and
	// socks5 are supported.
	ProxyURL string

	// WebhookName overrides the webhook's display name for probes.
	WebhookName string

	HTTPTimeout time.Duration
	Log         *slog.Logger
}

// Client implements hunt.Platform on top of discordgo.
type Client struct {
	log      *slog.Logger
	main     *discordgo.Session
	listener *discordgo.Session
	http     *http.Client
	webhook  string

	opened bool
}

var _ hunt.Platform = (*Client)(nil)

// New prepares the sessions without connecting. Call Open before use.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord: token is required")
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 20 * time.Second
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	route, err := newProxyRoute(cfg.ProxyURL)
	if err != nil {
		return nil, err
	}
	httpClient := route.httpClient(cfg.HTTPTimeout)

	c := &Client{
		log:     log.With("component", "discord"),
		http:    httpClient,
		webhook: cfg.WebhookName,
	}
	if c.main, err = newSession(cfg.Token, cfg.Bot, route, httpClient); err != nil {
		return nil, err
	}
	if cfg.ListenerToken != "" && cfg.ListenerToken != cfg.Token {
		if c.listener, err = newSession(cfg.ListenerToken, cfg.Bot, route, httpClient); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func newSession(token string, bot bool, route *proxyRoute, httpClient *http.Client) (*discordgo.Session, error) {
	if bot && !strings.HasPrefix(token, "Bot ") {
		token = "Bot " + token
	}
	s, err := discordgo.New(token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}

	s.Client = httpClient
	s.ShouldRetryOnRateLimit = false
	s.StateEnabled = false
	s.Identify.Intents = discordgo.IntentGuildMembers | discordgo.IntentGuildMessages | discordgo.IntentMessageContent

	// The default dialer is shared package state; configure a copy.
	dialer := *s.Dialer
	if route.httpProxy != nil {
		dialer.Proxy = route.httpProxy
	}
	if route.dial != nil {
		dialer.Proxy = nil
		dialer.NetDialContext = route.dial
	}
	s.Dialer = &dialer
	return s, nil
}

// Open connects the gateway of every account.
func (c *Client) Open(ctx context.Context) error {
	if err := c.main.Open(); err != nil {
		return classify(fmt.Errorf("open gateway: %w", err))
	}
	if c.listener != nil {
		if err := c.listener.Open(); err != nil {
			c.main.Close()
			return classify(fmt.Errorf("open listener gateway: %w", err))
		}
	}
	c.opened = true
	c.log.Info("Gateway connected", "listener", c.listener != nil)
	return nil
}

// Close disconnects every gateway.
func (c *Client) Close() error {
	c.opened = false
	var errs []error
	if c.listener != nil {
		errs = append(errs, c.listener.Close())
	}
	errs = append(errs, c.main.Close())
	return errors.Join(errs...)
}

// Whoami returns the name of the main account.
func (c *Client) Whoami(ctx context.Context) (string, error) {
	u, err := c.main.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return "", classify(fmt.Errorf("fetch current user: %w", err))
	}
	if u.GlobalName != "" {
		return u.GlobalName, nil
	}
	return u.Username, nil
}

// MembersWithRoles pages through the member list in id order.
func (c *Client) MembersWithRoles(ctx context.Context, guildID string, roleIDs []string) ([]hunt.Candidate, error) {
	var (
		out   []hunt.Candidate
		after string
	)
	for {
		page, err := c.main.GuildMembers(guildID, after, memberPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, classify(fmt.Errorf("list members of %s: %w", guildID, err))
		}
		for _, m := range page {
			if m.User == nil || !holdsAny(m.Roles, roleIDs) {
				continue
			}
			out = append(out, toCandidate(m))
		}
		if len(page) < memberPageSize {
			break
		}
		last := page[len(page)-1]
		if last.User == nil {
			break
		}
		after = last.User.ID
	}
	c.log.Debug("Members enumerated", "guild", guildID, "matching", len(out))
	return out, nil
}

func holdsAny(held, wanted []string) bool {
	return slices.ContainsFunc(held, func(r string) bool { return slices.Contains(wanted, r) })
}

func toCandidate(m *discordgo.Member) hunt.Candidate {
	c := hunt.Candidate{
		ID:          m.User.ID,
		Username:    m.User.Username,
		DisplayName: m.User.GlobalName,
		RoleIDs:     slices.Clone(m.Roles),
	}
	if m.Nick != "" {
		c.DisplayName = m.Nick
	}
	if m.User.Avatar != "" {
		c.AvatarURL = m.User.AvatarURL("")
	}
	return c
}

func (c *Client) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	err := c.main.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
	return classify(err)
}

func (c *Client) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	err := c.main.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
	return classify(err)
}

func (c *Client) PostMessage(ctx context.Context, channelID, content string) error {
	_, err := c.main.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	return classify(err)
}

func (c *Client) PostWebhook(ctx context.Context, webhookURL, content string) error {
	return postWebhook(ctx, c.http, webhookURL, c.webhook, content)
}

// Watch subscribes to messages in channelID through the listener account.
func (c *Client) Watch(ctx context.Context, channelID string) (hunt.Subscription, error) {
	if !c.opened {
		return nil, errNotOpen
	}
	sess := c.main
	if c.listener != nil {
		sess = c.listener
	}
	sub := newSubscription(channelID)
	sub.attach(sess)
	return sub, nil
}
