// Package pulse posts the morning reading card to the pulse channel.
package pulse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"

	"pulse-bot/internal/llm"
)

const (
	fetchAttempts = 3
	fetchTimeout  = 10 * time.Second
)

const pulsePrompt = `You are a reading coach for a data and analytics team.
Recommend one non-fiction book worth reading, with a short motivating message about why it matters for people working with data.
Return your answer as a JSON object with exactly these fields and no extra text:
{"message_title": "<one-line title for the post>", "message": "<two or three motivating sentences>", "content_title": "<book title>", "content_author": "<book author>"}`

type recommendation struct {
	MessageTitle  string `json:"message_title"`
	Message       string `json:"message"`
	ContentTitle  string `json:"content_title"`
	ContentAuthor string `json:"content_author"`
}

// Poster is the slice of the Slack API the pulse needs.
type Poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Pulse asks the model for a daily reading recommendation and posts it as a
// Block Kit card.
type Pulse struct {
	client  Poster
	gen     llm.Generator
	channel string
	logger  zerolog.Logger
}

func New(client Poster, gen llm.Generator, channel string) *Pulse {
	return &Pulse{
		client:  client,
		gen:     gen,
		channel: channel,
		logger:  log.With().Str("component", "daily_pulse").Logger(),
	}
}

// Post fetches a recommendation and posts the daily card. A day without a
// usable recommendation is logged and skipped.
func (p *Pulse) Post(ctx context.Context) {
	rec, err := p.fetchRecommendation(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to fetch daily recommendation")
		return
	}

	_, _, err = p.client.PostMessageContext(ctx, p.channel,
		slack.MsgOptionText("Daily Pulse", false),
		slack.MsgOptionBlocks(cardBlocks(rec)...),
	)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to post daily pulse")
		return
	}
	p.logger.Info().Str("channel", p.channel).Str("book", rec.ContentTitle).Msg("Posted daily pulse")
}

func (p *Pulse) fetchRecommendation(ctx context.Context) (*recommendation, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		rec, err := p.tryFetch(ctx)
		if err == nil {
			return rec, nil
		}
		lastErr = err
		p.logger.Error().Err(err).Int("attempt", attempt).Msg("Recommendation fetch failed")
	}
	return nil, lastErr
}

func (p *Pulse) tryFetch(ctx context.Context) (*recommendation, error) {
	callCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	raw, err := p.gen.Generate(callCtx, pulsePrompt)
	if err != nil {
		return nil, fmt.Errorf("generating recommendation: %w", err)
	}

	var rec recommendation
	if err := json.Unmarshal([]byte(llm.CleanJSON(raw)), &rec); err != nil {
		return nil, fmt.Errorf("parsing recommendation %q: %w", raw, err)
	}
	if rec.MessageTitle == "" || rec.Message == "" || rec.ContentTitle == "" || rec.ContentAuthor == "" {
		return nil, fmt.Errorf("recommendation %q is missing required fields", raw)
	}
	return &rec, nil
}

func cardBlocks(rec *recommendation) []slack.Block {
	return []slack.Block{
		mrkdwnSection("🌟 *Daily Pulse* 📚"),
		slack.NewDividerBlock(),
		mrkdwnSection(fmt.Sprintf("*%s*", rec.MessageTitle)),
		mrkdwnSection(rec.Message),
		slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("📖 *Book*: %s", rec.ContentTitle), false, false),
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("✍️ *Author*: %s", rec.ContentAuthor), false, false),
		),
	}
}

func mrkdwnSection(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil)
}
