// Package lib contains the Cerberus bot: a captcha gate for Discord guilds
// that hands out a "verified" role to members who answer a DM captcha.
package lib

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/uvensys/cerberus"
	"github.com/uvensys/cerberus/lib/store"
)

var (
	captchasIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cerberus_captchas_issued",
		Help: "The total number of captcha challenges issued",
	})

	verificationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cerberus_verification_outcomes",
		Help: "The total number of verification flows by terminal outcome",
	}, []string{"outcome"})

	forcedRoleChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cerberus_forced_role_changes",
		Help: "The total number of admin-forced verified role mutations",
	}, []string{"action"})

	panelsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cerberus_panels_published",
		Help: "The total number of verification panels published",
	})

	solveTime = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cerberus_captcha_solve_seconds",
		Help:    "The time taken for a member to answer their captcha DM (seconds)",
		Buckets: prometheus.ExponentialBucketsRange(0.5, 120, 12),
	})
)

var (
	ErrNoSession = errors.New("lib: no Discord session defined")
	ErrNoStore   = errors.New("lib: no attempt store defined")
)

// Session is the slice of *discordgo.Session that Cerberus consumes. Handlers
// take it instead of the concrete type so they can be driven by a fake in
// tests.
type Session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ Session = (*discordgo.Session)(nil)

type Options struct {
	Session Session
	Store   store.Interface
	Config  Config
}

// Bot wires the interaction router, verification flow and panel publisher
// to one gateway session.
type Bot struct {
	session  Session
	store    store.Interface
	attempts *store.JSON[Attempt]
	conf     Config

	readyOnce sync.Once
}

func New(opts Options) (*Bot, error) {
	if opts.Session == nil {
		return nil, ErrNoSession
	}

	if opts.Store == nil {
		return nil, ErrNoStore
	}

	if err := opts.Config.Valid(); err != nil {
		return nil, err
	}

	if opts.Config.ReplyWindow == 0 {
		opts.Config.ReplyWindow = cerberus.DefaultReplyWindow
	}

	if opts.Config.BotName == "" {
		opts.Config.BotName = "Cerberus"
	}

	return &Bot{
		session: opts.Session,
		store:   opts.Store,
		attempts: &store.JSON[Attempt]{
			Underlying: opts.Store,
			Prefix:     "attempt:",
		},
		conf: opts.Config,
	}, nil
}

// Run connects to the gateway, registers the guild commands, publishes the
// startup panel once the gateway reports ready, and blocks until ctx is
// canceled.
func (b *Bot) Run(ctx context.Context) error {
	b.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		b.handleReady(ctx, r)
	})
	b.session.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		b.HandleInteraction(ctx, i)
	})

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("lib: can't open gateway connection: %w", err)
	}

	if err := b.registerCommands(); err != nil {
		b.session.Close()
		return err
	}

	slog.Info("cerberus started",
		"guild_id", b.conf.GuildID,
		"panel_channel_id", b.conf.PanelChannelID,
		"reply_window", b.conf.ReplyWindow,
		"single_flight", b.conf.SingleFlight,
		"version", cerberus.Version,
	)

	<-ctx.Done()
	return b.session.Close()
}

func (b *Bot) handleReady(ctx context.Context, _ *discordgo.Ready) {
	b.readyOnce.Do(func() {
		if err := b.PublishPanel(); err != nil {
			slog.Error("can't publish verification panel on startup", "err", err)
			return
		}

		slog.Info("verification panel sent on startup")
	})
}

func (b *Bot) registerCommands() error {
	userOption := func(description string) []*discordgo.ApplicationCommandOption {
		return []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: description,
			Required:    true,
		}}
	}

	commands := []*discordgo.ApplicationCommand{
		{
			Name:        cerberus.CmdForceVerify,
			Description: "Manually verify a user",
			Options:     userOption("User to verify"),
		},
		{
			Name:        cerberus.CmdForceUnverify,
			Description: "Manually unverify a user",
			Options:     userOption("User to unverify"),
		},
		{
			Name:        cerberus.CmdResendPanel,
			Description: "Resend the verification panel",
		},
	}

	if _, err := b.session.ApplicationCommandBulkOverwrite(b.conf.ClientID, b.conf.GuildID, commands); err != nil {
		return fmt.Errorf("lib: can't register guild commands: %w", err)
	}

	return nil
}
