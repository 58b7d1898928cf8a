package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/facebookgo/flagenv"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/uvensys/cerberus"
	"github.com/uvensys/cerberus/internal"
	libcerberus "github.com/uvensys/cerberus/lib"
	"github.com/uvensys/cerberus/lib/store"
	_ "github.com/uvensys/cerberus/lib/store/all"
)

var (
	token              = flag.String("token", "", "Discord bot token")
	clientID           = flag.String("client-id", "", "Discord application ID commands are registered under")
	guildID            = flag.String("guild-id", "", "guild to register commands against")
	adminID            = flag.String("admin-id", "", "user ID allowed to run the admin commands")
	verifiedRoleID     = flag.String("verified-role-id", "", "role granted on successful verification")
	panelChannelID     = flag.String("panel-channel-id", "", "channel the verification panel is published to")
	botName            = flag.String("bot-name", "Cerberus", "name shown in the panel footer")
	captchaTimeout     = flag.Duration("captcha-timeout", cerberus.DefaultReplyWindow, "how long a member has to answer the captcha DM")
	singleFlight       = flag.Bool("single-flight", false, "refuse overlapping verification attempts by the same member")
	storeBackend       = flag.String("store-backend", "memory", "attempt store backend (memory, bbolt, valkey)")
	storeBackendConfig = flag.String("store-backend-config", "{}", "JSON configuration for the attempt store backend")
	slogLevel          = flag.String("slog-level", "INFO", "logging level (see https://pkg.go.dev/log/slog#hdr-Levels)")
	metricsBind        = flag.String("metrics-bind", ":9090", "network address to bind metrics to, set to an empty string to disable")
	healthcheck        = flag.Bool("healthcheck", false, "run a health check against Cerberus")
	versionFlag        = flag.Bool("version", false, "print Cerberus version")
)

func doHealthCheck() error {
	resp, err := http.Get("http://localhost" + *metricsBind + "/metrics")
	if err != nil {
		return fmt.Errorf("failed to fetch metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

func main() {
	flagenv.Parse()
	flag.Parse()

	if *versionFlag {
		fmt.Println("Cerberus", cerberus.Version)
		return
	}

	internal.InitSlog(*slogLevel)

	if *healthcheck {
		if err := doHealthCheck(); err != nil {
			log.Fatal(err)
		}
		return
	}

	if *token == "" {
		log.Fatal("TOKEN is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	factory, ok := store.Get(*storeBackend)
	if !ok {
		log.Fatalf("unknown store backend %q, must be one of: %v", *storeBackend, store.Methods())
	}

	backend, err := factory.Build(ctx, json.RawMessage(*storeBackendConfig))
	if err != nil {
		log.Fatalf("can't build %s store backend: %v", *storeBackend, err)
	}

	dg, err := discordgo.New("Bot " + *token)
	if err != nil {
		log.Fatalf("can't create Discord session: %v", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	bot, err := libcerberus.New(libcerberus.Options{
		Session: dg,
		Store:   backend,
		Config: libcerberus.Config{
			ClientID:       *clientID,
			GuildID:        *guildID,
			AdminID:        *adminID,
			VerifiedRoleID: *verifiedRoleID,
			PanelChannelID: *panelChannelID,
			BotName:        *botName,
			ReplyWindow:    *captchaTimeout,
			SingleFlight:   *singleFlight,
		},
	})
	if err != nil {
		log.Fatalf("can't construct bot: %v", err)
	}

	wg := new(sync.WaitGroup)
	if *metricsBind != "" {
		wg.Add(1)
		go metricsServer(ctx, wg.Done)
	}

	if err := bot.Run(ctx); err != nil {
		log.Fatalf("bot exited: %v", err)
	}
	wg.Wait()
}

func metricsServer(ctx context.Context, done func()) {
	defer done()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := http.Server{Handler: mux, ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, err := net.Listen("tcp", *metricsBind)
	if err != nil {
		log.Fatalf("failed to bind metrics to %s: %v", *metricsBind, err)
	}
	slog.Debug("listening for metrics", "addr", *metricsBind)

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			log.Printf("cannot shut down metrics server: %v", err)
		}
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
