// Package bot runs the Socket Mode event loop and routes payloads to the
// feature handlers.
package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"pulse-bot/internal/bot/commands"
	"pulse-bot/internal/bot/events"
	"pulse-bot/internal/bot/interactions"
)

type Bot struct {
	socket       *socketmode.Client
	events       *events.Handler
	commands     *commands.Handler
	interactions *interactions.Handler
	logger       zerolog.Logger
}

func New(socket *socketmode.Client, ev *events.Handler, cmds *commands.Handler, inter *interactions.Handler) *Bot {
	return &Bot{
		socket:       socket,
		events:       ev,
		commands:     cmds,
		interactions: inter,
		logger:       log.With().Str("component", "bot").Logger(),
	}
}

// Run consumes Socket Mode events until ctx is canceled.
func (b *Bot) Run(ctx context.Context) error {
	go func() {
		for evt := range b.socket.Events {
			b.handleEvent(ctx, evt)
		}
	}()

	if err := b.socket.RunContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("socket mode: %w", err)
	}
	return nil
}

func (b *Bot) handleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		b.logger.Info().Msg("Connecting to Slack with Socket Mode")
	case socketmode.EventTypeConnected:
		b.logger.Info().Msg("Connected to Slack with Socket Mode")
	case socketmode.EventTypeConnectionError:
		b.logger.Error().Interface("data", evt.Data).Msg("Socket Mode connection error")

	case socketmode.EventTypeEventsAPI:
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		b.socket.Ack(*evt.Request)
		b.handleEventsAPI(apiEvent)

	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			return
		}
		b.socket.Ack(*evt.Request)
		b.commands.Handle(ctx, cmd)

	case socketmode.EventTypeInteractive:
		callback, ok := evt.Data.(slack.InteractionCallback)
		if !ok {
			return
		}
		b.socket.Ack(*evt.Request)
		b.interactions.HandleInteraction(ctx, callback)
	}
}

func (b *Bot) handleEventsAPI(event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		b.events.HandleMessage(ev)
	default:
		b.logger.Debug().Str("type", event.InnerEvent.Type).Msg("Ignoring event")
	}
}
