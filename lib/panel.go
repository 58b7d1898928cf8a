package lib

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/uvensys/cerberus"
	"github.com/uvensys/cerberus/lib/localization"
)

const panelColor = 0x3498DB

// PublishPanel posts a fresh verification panel to the configured channel.
// There is no dedup or message tracking: old panels stay live and their
// buttons keep routing to the same flow.
func (b *Bot) PublishPanel() error {
	loc := localization.Default()

	embed := &discordgo.MessageEmbed{
		Title:       loc.T("panel_title"),
		Description: loc.T("panel_description"),
		Color:       panelColor,
		Footer: &discordgo.MessageEmbedFooter{
			Text: loc.TData("panel_footer", map[string]any{"BotName": b.conf.BotName}),
		},
	}

	row := discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    loc.T("panel_button"),
				Style:    discordgo.PrimaryButton,
				CustomID: cerberus.VerifyButtonID,
			},
		},
	}

	if _, err := b.session.ChannelMessageSendComplex(b.conf.PanelChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{row},
	}); err != nil {
		return fmt.Errorf("lib: can't send verification panel to %s: %w", b.conf.PanelChannelID, err)
	}

	panelsPublished.Inc()
	return nil
}
