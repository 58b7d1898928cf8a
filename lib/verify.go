package lib

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/uvensys/cerberus/internal"
	"github.com/uvensys/cerberus/lib/captcha"
	"github.com/uvensys/cerberus/lib/localization"
	"github.com/uvensys/cerberus/lib/store"
)

// Outcome is the terminal state of one verification flow.
type Outcome string

const (
	OutcomeAlreadyVerified Outcome = "already_verified"
	OutcomeVerified        Outcome = "verified"
	OutcomeIncorrect       Outcome = "incorrect"
	OutcomeTimedOut        Outcome = "timed_out"
	OutcomeInFlight        Outcome = "in_flight"
	OutcomeAborted         Outcome = "aborted"
)

// Attempt is the record of one in-flight verification. It expires with the
// reply window and stores a fingerprint instead of the answer so the
// cleartext never reaches the backend store.
type Attempt struct {
	UserID            string    `json:"userId"`
	GuildID           string    `json:"guildId"`
	ChallengeID       string    `json:"challengeId"`
	AnswerFingerprint string    `json:"answerFingerprint"`
	StartedAt         time.Time `json:"startedAt"`
	Deadline          time.Time `json:"deadline"`
}

// handleVerifyButton runs the whole verification flow for one button press:
// defer the interaction, short-circuit members that already hold the role,
// DM a captcha, wait for the reply, and commit the result.
func (b *Bot) handleVerifyButton(ctx context.Context, i *discordgo.InteractionCreate) Outcome {
	lg := internal.GetInteractionLogger(i)
	loc := localization.GetLocalizer(i)
	userID := internal.InteractionUserID(i)

	// Acknowledge right away so Discord does not expire the interaction
	// while the DM exchange runs.
	if err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		lg.Error("can't defer interaction response", "err", err)
		verificationOutcomes.WithLabelValues(string(OutcomeAborted)).Inc()
		return OutcomeAborted
	}

	member, err := b.session.GuildMember(i.GuildID, userID)
	if err != nil {
		lg.Error("can't fetch member", "err", err)
		b.editReply(i, loc.T("member_fetch_failed"))
		verificationOutcomes.WithLabelValues(string(OutcomeAborted)).Inc()
		return OutcomeAborted
	}

	if slices.Contains(member.Roles, b.conf.VerifiedRoleID) {
		b.editReply(i, loc.T("already_verified"))
		verificationOutcomes.WithLabelValues(string(OutcomeAlreadyVerified)).Inc()
		return OutcomeAlreadyVerified
	}

	if b.conf.SingleFlight {
		if _, err := b.attempts.Get(ctx, userID); err == nil {
			lg.Info("refusing concurrent verification attempt")
			b.editReply(i, loc.T("verify_in_progress"))
			verificationOutcomes.WithLabelValues(string(OutcomeInFlight)).Inc()
			return OutcomeInFlight
		}
	}

	b.editReply(i, loc.T("check_dms"))

	chal, err := captcha.New()
	if err != nil {
		lg.Error("can't generate captcha", "err", err)
		verificationOutcomes.WithLabelValues(string(OutcomeAborted)).Inc()
		return OutcomeAborted
	}
	captchasIssued.Inc()

	attempt := Attempt{
		UserID:            userID,
		GuildID:           i.GuildID,
		ChallengeID:       chal.ID,
		AnswerFingerprint: internal.FastHash(chal.Text),
		StartedAt:         time.Now(),
		Deadline:          time.Now().Add(b.conf.ReplyWindow),
	}
	if err := b.attempts.Set(ctx, userID, attempt, b.conf.ReplyWindow); err != nil {
		lg.Warn("can't record verification attempt", "err", err)
	}
	defer func() {
		if err := b.attempts.Delete(context.Background(), userID); err != nil && !errors.Is(err, store.ErrNotFound) {
			lg.Warn("can't clear verification attempt", "err", err)
		}
	}()

	lg = lg.With("challenge_id", chal.ID, "answer_fingerprint", attempt.AnswerFingerprint)

	outcome, err := b.runChallenge(ctx, lg, loc, i.GuildID, userID, chal)
	if err != nil {
		// Timeouts and DM delivery failures land here. The user is the
		// retry mechanism: tell them directly, best effort.
		lg.Info("verification attempt did not complete", "outcome", outcome, "err", err)

		if dmErr := b.directMessage(userID, loc.T("timeout_notice")); dmErr != nil {
			lg.Warn("can't notify user of failed attempt", "err", dmErr)
		}
	}

	verificationOutcomes.WithLabelValues(string(outcome)).Inc()
	return outcome
}

// runChallenge performs the DM exchange. Any returned error means the user
// never got a fair shot at the captcha (closed DMs, timeout, role mutation
// failure) and triggers the fallback notice in the caller.
func (b *Bot) runChallenge(ctx context.Context, lg *slog.Logger, loc *localization.SimpleLocalizer, guildID, userID string, chal *captcha.Challenge) (Outcome, error) {
	dm, err := b.session.UserChannelCreate(userID)
	if err != nil {
		return OutcomeTimedOut, fmt.Errorf("can't open DM channel: %w", err)
	}

	if _, err := b.session.ChannelMessageSendComplex(dm.ID, &discordgo.MessageSend{
		Content: loc.T("solve_captcha"),
		Files: []*discordgo.File{{
			Name:        "captcha.png",
			ContentType: "image/png",
			Reader:      bytes.NewReader(chal.PNG),
		}},
	}); err != nil {
		return OutcomeTimedOut, fmt.Errorf("can't deliver captcha DM: %w", err)
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, b.conf.ReplyWindow)
	defer cancel()

	reply, err := b.awaitMessage(ctx, dm.ID, userID)
	if err != nil {
		return OutcomeTimedOut, err
	}

	if !chal.Matches(reply.Content) {
		lg.Info("incorrect captcha reply")

		if _, err := b.session.ChannelMessageSend(dm.ID, loc.T("incorrect_captcha")); err != nil {
			lg.Warn("can't send failure notice", "err", err)
		}

		return OutcomeIncorrect, nil
	}

	if err := b.session.GuildMemberRoleAdd(guildID, userID, b.conf.VerifiedRoleID); err != nil {
		return OutcomeAborted, fmt.Errorf("can't grant verified role: %w", err)
	}

	solveTime.Observe(time.Since(start).Seconds())
	lg.Info("member verified")

	if _, err := b.session.ChannelMessageSend(dm.ID, loc.T("verified_success")); err != nil {
		lg.Warn("can't send success notice", "err", err)
	}

	return OutcomeVerified, nil
}

func (b *Bot) directMessage(userID, content string) error {
	dm, err := b.session.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("can't open DM channel: %w", err)
	}

	if _, err := b.session.ChannelMessageSend(dm.ID, content); err != nil {
		return fmt.Errorf("can't send DM: %w", err)
	}

	return nil
}

func (b *Bot) editReply(i *discordgo.InteractionCreate, content string) {
	if _, err := b.session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
		internal.GetInteractionLogger(i).Error("can't edit interaction response", "err", err)
	}
}
