// Package events fans inbound Slack message events out to the features
// that feed on the message stream.
package events

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack/slackevents"

	"pulse-bot/internal/models"
)

// QuietTimer receives activity pings for the quiet-channel nudger.
type QuietTimer interface {
	ResetTimer(channel string)
}

// QuestionSink receives top-level messages for question tracking.
type QuestionSink interface {
	Ingest(m models.Message)
}

// SummarySink receives top-level messages for the weekly summary.
type SummarySink interface {
	ProcessMessage(m models.Message)
}

type Handler struct {
	botUserID string
	quiet     QuietTimer
	tracker   QuestionSink
	summary   SummarySink
	logger    zerolog.Logger
}

func New(botUserID string, quiet QuietTimer, tracker QuestionSink, summary SummarySink) *Handler {
	return &Handler{
		botUserID: botUserID,
		quiet:     quiet,
		tracker:   tracker,
		summary:   summary,
		logger:    log.With().Str("component", "events").Logger(),
	}
}

// HandleMessage routes one message event. Edits, joins, bot posts and the
// bot's own messages are dropped. Every surviving message resets the
// channel's quiet timer; only top-level messages reach the question tracker
// and the weekly summary.
func (h *Handler) HandleMessage(ev *slackevents.MessageEvent) {
	if ev.SubType != "" || ev.BotID != "" {
		return
	}
	if ev.User == "" || ev.User == h.botUserID {
		return
	}

	h.quiet.ResetTimer(ev.Channel)

	if ev.ThreadTimeStamp != "" && ev.ThreadTimeStamp != ev.TimeStamp {
		h.logger.Debug().Str("channel", ev.Channel).Msg("Thread reply, resetting timer only")
		return
	}

	msg := models.Message{
		ChannelID: ev.Channel,
		UserID:    ev.User,
		Timestamp: ev.TimeStamp,
		ThreadTS:  ev.ThreadTimeStamp,
		Text:      ev.Text,
	}
	h.tracker.Ingest(msg)
	h.summary.ProcessMessage(msg)
}
