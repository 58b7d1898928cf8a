package lib

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoClientID       = errors.New("lib: no application client ID defined")
	ErrNoGuildID        = errors.New("lib: no guild ID defined")
	ErrNoAdminID        = errors.New("lib: no administrator ID defined")
	ErrNoVerifiedRoleID = errors.New("lib: no verified role ID defined")
	ErrNoPanelChannelID = errors.New("lib: no panel channel ID defined")
)

// Config holds the identities the bot operates against. It is built once at
// process start and never mutated.
type Config struct {
	// ClientID is the Discord application ID commands are registered under.
	ClientID string

	// GuildID scopes command registration to one guild.
	GuildID string

	// AdminID is the sole user allowed to run the admin commands.
	AdminID string

	// VerifiedRoleID is the role granted on successful verification. Its
	// presence on a member is the only source of truth for "verified".
	VerifiedRoleID string

	// PanelChannelID is where verification panels are published.
	PanelChannelID string

	// BotName shows up in the panel footer. Cosmetic.
	BotName string

	// ReplyWindow is how long a member has to answer the captcha DM.
	ReplyWindow time.Duration

	// SingleFlight refuses a second button press while a member already has
	// an attempt in flight. Off by default: overlapping attempts each get
	// their own challenge and DM wait.
	SingleFlight bool
}

func (c Config) Valid() error {
	var errs []error

	if c.ClientID == "" {
		errs = append(errs, ErrNoClientID)
	}

	if c.GuildID == "" {
		errs = append(errs, ErrNoGuildID)
	}

	if c.AdminID == "" {
		errs = append(errs, ErrNoAdminID)
	}

	if c.VerifiedRoleID == "" {
		errs = append(errs, ErrNoVerifiedRoleID)
	}

	if c.PanelChannelID == "" {
		errs = append(errs, ErrNoPanelChannelID)
	}

	if len(errs) != 0 {
		return fmt.Errorf("lib: invalid config: %w", errors.Join(errs...))
	}

	return nil
}
