package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"pulse-bot/internal/bot"
	"pulse-bot/internal/bot/commands"
	"pulse-bot/internal/bot/events"
	"pulse-bot/internal/bot/interactions"
	"pulse-bot/internal/channels"
	"pulse-bot/internal/config"
	"pulse-bot/internal/content"
	"pulse-bot/internal/llm"
	"pulse-bot/internal/messages"
	"pulse-bot/internal/pulse"
	"pulse-bot/internal/quiet"
	"pulse-bot/internal/summary"
	"pulse-bot/internal/tracker"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := content.Load(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load content data")
	}

	gen, err := llm.New(ctx, cfg.GeminiAPIKey, llm.DefaultModel)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	api := slack.New(
		cfg.SlackBotToken,
		slack.OptionAppLevelToken(cfg.SlackAppToken),
	)
	socket := socketmode.New(api)

	auth, err := api.AuthTest()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to authenticate with Slack")
	}
	log.Info().Str("user", auth.User).Str("team", auth.Team).Msg("Authenticated with Slack")

	channelTracker := channels.New(api)
	retriever := messages.New(api)
	questionTracker := tracker.New(api, cfg.ReminderThreshold)

	monitored := channelTracker.IDs
	if len(cfg.MonitoredChannels) > 0 {
		monitored = func() []string { return cfg.MonitoredChannels }
	}
	nudger := quiet.New(api, store, cfg, monitored)
	weekly := summary.New(api, store, cfg.SummaryChannel)
	daily := pulse.New(api, gen, cfg.PulseChannel)

	reports := interactions.New(api, retriever, gen)
	b := bot.New(
		socket,
		events.New(auth.UserID, nudger, questionTracker, weekly),
		commands.New(api, store, channelTracker),
		reports,
	)

	channelTracker.Refresh(ctx)
	log.Info().Int("channels", channelTracker.Count()).Msg("Initial channel refresh done")

	scheduler := cron.New(cron.WithLocation(cfg.Location))
	schedule(scheduler, "* * * * *", func() { questionTracker.Sweep(ctx) })
	schedule(scheduler, "*/5 * * * *", func() { channelTracker.Refresh(ctx) })
	schedule(scheduler, "*/30 * * * *", func() { nudger.CheckChannels(ctx) })
	schedule(scheduler, "0 16 * * FRI", func() { weekly.GenerateAndPost(ctx) })
	schedule(scheduler, "0 9 * * *", func() { daily.Post(ctx) })
	scheduler.Start()

	go serveStatus(cfg.Port)

	log.Info().Msg("Pulse bot started")
	if err := b.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Bot stopped")
	}

	<-scheduler.Stop().Done()
	reports.Wait()
	log.Info().Msg("Pulse bot shut down")
}

func setupLogger(level string) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = zerolog.New(consoleWriter).With().Timestamp().Logger()
}

func schedule(c *cron.Cron, spec string, job func()) {
	if _, err := c.AddFunc(spec, job); err != nil {
		log.Fatal().Err(err).Str("spec", spec).Msg("Failed to schedule job")
	}
}

func serveStatus(port string) {
	http.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		html := `
		<html>
		<head><title>Pulse Bot</title></head>
		<body style="font-family: sans-serif; text-align: center; padding: 50px;">
			<h1>Pulse Bot</h1>
			<p>The bot is running successfully.</p>
		</body>
		</html>`
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(html))
	})

	log.Info().Str("port", port).Msg("Status page listening")
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal().Err(err).Msg("Status server failed")
	}
}
