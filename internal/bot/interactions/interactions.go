// Package interactions handles modal submissions from the report flow.
package interactions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"

	"pulse-bot/internal/llm"
	"pulse-bot/internal/metrics"
	"pulse-bot/internal/models"
)

const (
	reportCallbackID  = "pulse_report_channel_select"
	processingMessage = "🔍 *Processing your pulse report...*\nThis may take a minute or two. I'll message you when it's ready."
	apologyMessage    = "Sorry, there was an error generating the report. Please try again later."
)

// Retriever pulls channel history for the report window.
type Retriever interface {
	GetChannelMessages(ctx context.Context, channelIDs []string, days int) []models.ChannelMessage
}

// Poster is the slice of the Slack API the report flow uses.
type Poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

type Handler struct {
	client    Poster
	retriever Retriever
	gen       llm.Generator
	logger    zerolog.Logger
	wg        sync.WaitGroup
}

func New(client Poster, retriever Retriever, gen llm.Generator) *Handler {
	return &Handler{
		client:    client,
		retriever: retriever,
		gen:       gen,
		logger:    log.With().Str("component", "interactions").Logger(),
	}
}

// HandleInteraction processes one interaction payload. Report submissions
// are acknowledged with a processing note and the report itself is built in
// the background so the event loop stays responsive.
func (h *Handler) HandleInteraction(ctx context.Context, callback slack.InteractionCallback) {
	if callback.Type != slack.InteractionTypeViewSubmission {
		return
	}
	if callback.View.CallbackID != reportCallbackID {
		return
	}

	req, err := parseSubmission(callback)
	if err != nil {
		h.logger.Error().Err(err).Str("user", callback.User.ID).Msg("Bad report submission")
		h.dm(ctx, callback.User.ID, "Sorry, there was an error processing your selection. Please try again later.")
		return
	}

	h.logger.Info().Str("user", req.UserID).Strs("channels", req.ChannelIDs).Int("days", req.Days).Msg("Report requested")
	h.dm(ctx, req.UserID, processingMessage)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.generateReport(ctx, req)
	}()
}

// Wait blocks until all in-flight reports have finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func parseSubmission(callback slack.InteractionCallback) (models.ReportRequest, error) {
	days, err := strconv.Atoi(callback.View.PrivateMetadata)
	if err != nil {
		return models.ReportRequest{}, fmt.Errorf("parsing days from metadata %q: %w", callback.View.PrivateMetadata, err)
	}
	if callback.View.State == nil {
		return models.ReportRequest{}, errors.New("submission has no view state")
	}

	action := callback.View.State.Values["channels_block"]["channels_select"]
	ids := make([]string, 0, len(action.SelectedOptions))
	for _, opt := range action.SelectedOptions {
		ids = append(ids, opt.Value)
	}
	if len(ids) == 0 {
		return models.ReportRequest{}, errors.New("no channels selected")
	}

	return models.ReportRequest{UserID: callback.User.ID, ChannelIDs: ids, Days: days}, nil
}

func (h *Handler) generateReport(ctx context.Context, req models.ReportRequest) {
	rows := h.retriever.GetChannelMessages(ctx, req.ChannelIDs, req.Days)
	if len(rows) == 0 {
		h.dm(ctx, req.UserID, "No messages found in the specified time period")
		return
	}

	pei := metrics.ComputePEI(rows)
	dcr := metrics.ComputeDCR(ctx, h.gen, rows)
	blocks := metrics.ReportBlocks(req.Days, metrics.ComputeStats(rows, pei, dcr))

	_, _, err := h.client.PostMessageContext(ctx, req.UserID,
		slack.MsgOptionText("Channel Pulse Report", false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		h.logger.Error().Err(err).Str("user", req.UserID).Msg("Failed to deliver report")
		h.dm(ctx, req.UserID, apologyMessage)
		return
	}
	h.logger.Info().Str("user", req.UserID).Int("messages", len(rows)).Msg("Delivered pulse report")
}

func (h *Handler) dm(ctx context.Context, userID, text string) {
	if _, _, err := h.client.PostMessageContext(ctx, userID, slack.MsgOptionText(text, false)); err != nil {
		h.logger.Error().Err(err).Str("user", userID).Msg("Failed to message user")
	}
}
