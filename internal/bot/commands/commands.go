// Package commands implements the bot's slash commands.
package commands

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"

	"pulse-bot/internal/sentiment"
)

const moodLookbackDays = 7

// SlackClient is the slice of the Slack API the slash commands use.
type SlackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	PostEphemeralContext(ctx context.Context, channelID, userID string, options ...slack.MsgOption) (string, error)
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	OpenViewContext(ctx context.Context, triggerID string, view slack.ModalViewRequest) (*slack.ViewResponse, error)
}

// JokeSource hands out jokes for /tell-joke.
type JokeSource interface {
	RandomJoke() string
}

// ChannelSource lists the channels offered in the report modal.
type ChannelSource interface {
	Snapshot() map[string]string
}

type Handler struct {
	client   SlackClient
	jokes    JokeSource
	channels ChannelSource
	logger   zerolog.Logger
}

func New(client SlackClient, jokes JokeSource, channels ChannelSource) *Handler {
	return &Handler{
		client:   client,
		jokes:    jokes,
		channels: channels,
		logger:   log.With().Str("component", "commands").Logger(),
	}
}

// Handle dispatches one slash command.
func (h *Handler) Handle(ctx context.Context, cmd slack.SlashCommand) {
	h.logger.Info().Str("command", cmd.Command).Str("user", cmd.UserID).Msg("Handling slash command")

	switch cmd.Command {
	case "/tell-joke":
		h.handleJoke(ctx, cmd)
	case "/channel-mood":
		h.handleMood(ctx, cmd)
	case "/pulse-report":
		h.handleReport(ctx, cmd)
	default:
		h.respond(ctx, cmd, fmt.Sprintf("Unknown command: %s", cmd.Command))
	}
}

func (h *Handler) handleJoke(ctx context.Context, cmd slack.SlashCommand) {
	h.respond(ctx, cmd, fmt.Sprintf("Here's a data joke for you:\n\n:smile: _%s_", h.jokes.RandomJoke()))
}

func (h *Handler) handleMood(ctx context.Context, cmd slack.SlashCommand) {
	oldest := strconv.FormatInt(time.Now().AddDate(0, 0, -moodLookbackDays).Unix(), 10)

	total := 0.0
	analyzed := 0
	cursor := ""
	for {
		resp, err := h.client.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID: cmd.ChannelID,
			Oldest:    oldest,
			Limit:     200,
			Cursor:    cursor,
		})
		if err != nil {
			h.respond(ctx, cmd, fmt.Sprintf("Error analyzing channel mood: %v", err))
			return
		}

		for _, msg := range resp.Messages {
			if msg.Text == "" {
				continue
			}
			total += sentiment.Score(msg.Text)
			analyzed++
		}

		if !resp.HasMore || resp.ResponseMetaData.NextCursor == "" {
			break
		}
		cursor = resp.ResponseMetaData.NextCursor
	}
	if analyzed == 0 {
		h.respond(ctx, cmd, "No messages found in the past week!")
		return
	}

	avg := total / float64(analyzed)
	mood := "😟"
	switch {
	case avg > 0.2:
		mood = "😊"
	case avg > -0.2:
		mood = "😐"
	}

	h.respond(ctx, cmd, fmt.Sprintf(
		"*Channel Mood Analysis (Past Week)*\n\n"+
			"Overall mood: %s\n"+
			"Average sentiment score: %.2f\n"+
			"Messages analyzed: %d\n\n"+
			"_Note: Scores range from -1 (negative) to +1 (positive)_",
		mood, avg, analyzed))
}

func (h *Handler) handleReport(ctx context.Context, cmd slack.SlashCommand) {
	days := 30
	if text := strings.TrimSpace(cmd.Text); text != "" {
		parsed, err := strconv.Atoi(text)
		if err != nil {
			h.dm(ctx, cmd.UserID, "Please provide a valid number of days")
			return
		}
		if parsed <= 0 {
			h.dm(ctx, cmd.UserID, "Please provide a positive number of days")
			return
		}
		days = parsed
	}

	view := channelSelectModal(days, h.channels.Snapshot())
	if _, err := h.client.OpenViewContext(ctx, cmd.TriggerID, view); err != nil {
		h.logger.Error().Err(err).Msg("Failed to open channel selection modal")
		h.dm(ctx, cmd.UserID, "Sorry, there was an error opening the channel selection. Please try again later.")
	}
}

// channelSelectModal builds the channel picker for /pulse-report. The
// requested day count rides along in the private metadata so the submission
// handler gets it back.
func channelSelectModal(days int, installed map[string]string) slack.ModalViewRequest {
	type entry struct {
		id   string
		name string
	}
	entries := make([]entry, 0, len(installed))
	for id, name := range installed {
		entries = append(entries, entry{id: id, name: name})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	options := make([]*slack.OptionBlockObject, 0, len(entries))
	for _, e := range entries {
		options = append(options, slack.NewOptionBlockObject(
			e.id,
			slack.NewTextBlockObject(slack.PlainTextType, e.name, false, false),
			nil,
		))
	}

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      "pulse_report_channel_select",
		PrivateMetadata: strconv.Itoa(days),
		Title:           slack.NewTextBlockObject(slack.PlainTextType, "Channel Pulse Report", false, false),
		Submit:          slack.NewTextBlockObject(slack.PlainTextType, "Generate", false, false),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(
				slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("Select channels to include in the report for the last %d days:", days), false, false),
				nil, nil,
			),
			slack.NewInputBlock(
				"channels_block",
				slack.NewTextBlockObject(slack.PlainTextType, "Choose channels to report on", false, false),
				nil,
				slack.NewOptionsMultiSelectBlockElement(
					slack.MultiOptTypeStatic,
					slack.NewTextBlockObject(slack.PlainTextType, "Select channels", false, false),
					"channels_select",
					options...,
				),
			),
		}},
	}
}

func (h *Handler) respond(ctx context.Context, cmd slack.SlashCommand, text string) {
	if _, err := h.client.PostEphemeralContext(ctx, cmd.ChannelID, cmd.UserID, slack.MsgOptionText(text, false)); err != nil {
		h.logger.Error().Err(err).Str("command", cmd.Command).Msg("Failed to respond to command")
	}
}

func (h *Handler) dm(ctx context.Context, userID, text string) {
	if _, _, err := h.client.PostMessageContext(ctx, userID, slack.MsgOptionText(text, false)); err != nil {
		h.logger.Error().Err(err).Str("user", userID).Msg("Failed to message user")
	}
}
