package lib

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/uvensys/cerberus"
	"github.com/uvensys/cerberus/internal"
	"github.com/uvensys/cerberus/lib/localization"
)

const (
	roleActionAdd    = "add"
	roleActionRemove = "remove"
)

// HandleInteraction routes one inbound interaction to the matching handler.
// discordgo runs each event handler in its own goroutine, so blocking in the
// verification flow is fine.
func (b *Bot) HandleInteraction(ctx context.Context, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, i)
	case discordgo.InteractionMessageComponent:
		if i.MessageComponentData().CustomID == cerberus.VerifyButtonID {
			b.handleVerifyButton(ctx, i)
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	lg := internal.GetInteractionLogger(i).With("command", data.Name)
	loc := localization.GetLocalizer(i)

	if internal.InteractionUserID(i) != b.conf.AdminID {
		lg.Info("unauthorized command invocation")
		b.respondEphemeral(i, loc.T("not_authorized"))
		return
	}

	switch data.Name {
	case cerberus.CmdForceVerify:
		b.forceRoleChange(i, lg, loc, roleActionAdd)
	case cerberus.CmdForceUnverify:
		b.forceRoleChange(i, lg, loc, roleActionRemove)
	case cerberus.CmdResendPanel:
		if err := b.PublishPanel(); err != nil {
			lg.Error("can't resend panel", "err", err)
			b.respondEphemeral(i, loc.T("panel_send_failed"))
			return
		}

		b.respondEphemeral(i, loc.T("panel_sent"))
	}
}

// forceRoleChange adds or removes the verified role on the command's target
// member. Fetch and mutation failures are surfaced to the admin instead of
// being left to a generic top-level handler.
func (b *Bot) forceRoleChange(i *discordgo.InteractionCreate, lg *slog.Logger, loc *localization.SimpleLocalizer, action string) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		lg.Error("command is missing its user option")
		b.respondEphemeral(i, loc.T("member_fetch_failed"))
		return
	}

	targetID := data.Options[0].UserValue(nil).ID
	lg = lg.With("target_id", targetID)

	member, err := b.session.GuildMember(i.GuildID, targetID)
	if err != nil {
		lg.Error("can't fetch target member", "err", err)
		b.respondEphemeral(i, loc.T("member_fetch_failed"))
		return
	}

	var mutate func(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	var messageID string

	switch action {
	case roleActionAdd:
		mutate = b.session.GuildMemberRoleAdd
		messageID = "verified_user"
	case roleActionRemove:
		mutate = b.session.GuildMemberRoleRemove
		messageID = "unverified_user"
	}

	if err := mutate(i.GuildID, targetID, b.conf.VerifiedRoleID); err != nil {
		lg.Error("can't mutate verified role", "action", action, "err", err)
		b.respondEphemeral(i, loc.T("role_update_failed"))
		return
	}

	forcedRoleChanges.WithLabelValues(action).Inc()
	lg.Info("forced role change", "action", action)

	b.respond(i, loc.TData(messageID, map[string]any{"Tag": member.User.String()}))
}

func (b *Bot) respond(i *discordgo.InteractionCreate, content string) {
	if err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	}); err != nil {
		internal.GetInteractionLogger(i).Error("can't respond to interaction", "err", err)
	}
}

func (b *Bot) respondEphemeral(i *discordgo.InteractionCreate, content string) {
	if err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}); err != nil {
		internal.GetInteractionLogger(i).Error("can't respond to interaction", "err", err)
	}
}
