package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-bot/internal/api/http"
	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/bot"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/cooldown"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/platform/discord"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/internal/store"
	"github.com/spec-kit/ticket-bot/internal/transcript"
)

func main() {
	issueTokenFor := flag.String("issue-token", "", "mint an ops-API bearer token for the named subject and exit")
	tokenRole := flag.String("token-role", string(auth.RoleOperator), "role carried by -issue-token (viewer or operator)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if *issueTokenFor != "" {
		issueToken(cfg, *issueTokenFor, *tokenRole)
		return
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	st, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		logger.Fatal("failed to open state store", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Transcript.Dir, 0o755); err != nil {
		logger.Fatal("failed to create transcript directory", zap.Error(err))
	}

	var redis *persistence.Redis
	var cooldowns cooldown.Tracker
	if cfg.Redis.Addr != "" {
		redis = persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		cooldowns = cooldown.NewRedisTracker(redis)
	} else {
		cooldowns = cooldown.NewMemoryTracker()
	}

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		logger.Fatal("failed to create discord session", zap.Error(err))
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	gateway := discord.NewGateway(session, cfg.Discord.GuildID, logger)
	prompter := discord.NewPrompter(session, logger)

	dispatcher := events.NewInMemoryDispatcher()
	generator := transcript.NewGenerator(gateway, logger)
	searcher := transcript.NewSearcher(cfg.Transcript.Dir, logger)

	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		Store:         st,
		Gateway:       gateway,
		Transcripts:   generator,
		TranscriptDir: cfg.Transcript.Dir,
		Dispatcher:    dispatcher,
		Logger:        logger,
	})
	wizard := service.NewWizard(service.WizardDependencies{
		Store:      st,
		Gateway:    gateway,
		Prompter:   prompter,
		Cooldowns:  cooldowns,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notifications.RegisterHandlers()

	metrics := observability.NewMetrics()

	if err := session.Open(); err != nil {
		logger.Fatal("failed to connect to discord", zap.Error(err))
	}
	defer session.Close()

	b := bot.New(bot.Dependencies{
		Session:    session,
		GuildID:    cfg.Discord.GuildID,
		Store:      st,
		Lifecycle:  lifecycle,
		Wizard:     wizard,
		Searcher:   searcher,
		Metrics:    metrics,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err := b.Start(); err != nil {
		logger.Fatal("failed to register commands", zap.Error(err))
	}
	defer b.Stop()

	var app *fiber.App
	if cfg.Ops.Enabled {
		app = fiber.New(fiber.Config{DisableStartupMessage: true})
		httptransport.RegisterMiddlewares(app, logger, metrics, cfg.Ops.RequestTimeout())

		tokens := auth.NewTokenManager(cfg.Ops.JWTSecret, cfg.Ops.TokenTTLMinutes)
		httptransport.RegisterRoutes(app, httptransport.RouteConfig{
			Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, st, redis),
			Stats:          handlers.NewStatsHandler(st, metrics),
			Transcripts:    handlers.NewTranscriptsHandler(searcher),
			AuthMiddleware: auth.NewMiddleware(tokens),
		})

		go func() {
			logger.Info("ops api listening", zap.String("addr", cfg.Ops.Addr()))
			if err := app.Listen(cfg.Ops.Addr()); err != nil {
				logger.Fatal("fiber listen", zap.Error(err))
			}
		}()
	}

	logger.Info("bot is running", zap.String("guild_id", cfg.Discord.GuildID))
	waitForShutdown(logger)

	if app != nil {
		_ = app.Shutdown()
	}
}

// issueToken mints an ops-API bearer token out of band. Tokens are
// minted on the host that holds OPS_JWT_SECRET, so the API itself
// carries no credential endpoints.
func issueToken(cfg *config.Config, subject, roleName string) {
	role, err := auth.ParseRole(roleName)
	if err != nil {
		log.Fatalf("cannot issue token: %v", err)
	}
	tokens := auth.NewTokenManager(cfg.Ops.JWTSecret, cfg.Ops.TokenTTLMinutes)
	token, expiresAt, err := tokens.GenerateToken(subject, role)
	if err != nil {
		log.Fatalf("cannot issue token: %v", err)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
