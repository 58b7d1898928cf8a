package internal

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/bwmarrin/discordgo"
)

func InitSlog(level string) {
	var programLevel slog.Level
	if err := (&programLevel).UnmarshalText([]byte(level)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v, using info\n", level, err)
		programLevel = slog.LevelInfo
	}

	leveler := &slog.LevelVar{}
	leveler.Set(programLevel)

	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		AddSource: true,
		Level:     leveler,
	})
	slog.SetDefault(slog.New(h))
}

// GetInteractionLogger returns a logger annotated with the identifying
// fields of one inbound Discord interaction.
func GetInteractionLogger(i *discordgo.InteractionCreate) *slog.Logger {
	return slog.With(
		"interaction_id", i.ID,
		"guild_id", i.GuildID,
		"user_id", InteractionUserID(i),
		"locale", string(i.Locale),
	)
}

// InteractionUserID extracts the invoking user's ID regardless of whether
// the interaction arrived from a guild (Member set) or a DM (User set).
func InteractionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// ErrorLogFilter is used to suppress "context canceled" logs from the metrics http server when a request is canceled (e.g., when a client disconnects).
type ErrorLogFilter struct {
	Unwrap *log.Logger
}

func (elf *ErrorLogFilter) Write(p []byte) (n int, err error) {
	logMessage := string(p)
	if strings.Contains(logMessage, "context canceled") {
		return len(p), nil // Suppress the log by doing nothing
	}
	if elf.Unwrap != nil {
		return elf.Unwrap.Writer().Write(p)
	}
	return len(p), nil
}

func GetFilteredHTTPLogger() *log.Logger {
	stdErrLogger := log.New(os.Stderr, "", log.LstdFlags) // essentially what the default logger is.
	return log.New(&ErrorLogFilter{Unwrap: stdErrLogger}, "", 0)
}
