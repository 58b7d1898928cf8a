package lib

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// ErrReplyTimeout is returned when no matching message arrives before the
// collector's deadline.
var ErrReplyTimeout = errors.New("lib: no reply before the deadline")

// awaitMessage blocks until the given user sends a message in the given
// channel, or until ctx expires. The first matching message wins; the
// gateway handler is removed before returning.
func (b *Bot) awaitMessage(ctx context.Context, channelID, userID string) (*discordgo.Message, error) {
	found := make(chan *discordgo.Message, 1)

	remove := b.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.ChannelID != channelID || m.Author == nil || m.Author.ID != userID {
			return
		}

		select {
		case found <- m.Message:
		default:
		}
	})
	defer remove()

	select {
	case m := <-found:
		return m, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrReplyTimeout, ctx.Err())
	}
}
