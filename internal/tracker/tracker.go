package tracker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"pulse-bot/internal/models"
)

const callTimeout = 10 * time.Second

const reminderSuggestions = "• Add any relevant error messages or logs\n" +
	"• Provide more context about what you're trying to achieve\n" +
	"• Mention specific technologies or tools you're using\n" +
	"• Tag team members who might have expertise in this area"

// SlackClient is the slice of the Slack API the tracker talks to.
type SlackClient interface {
	GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Tracker watches questions posted in channels and reminds their authors
// when nobody answers. Ingestion happens on the event goroutine, sweeps on
// the scheduler goroutine, so the store is mutex-guarded.
type Tracker struct {
	client    SlackClient
	threshold time.Duration
	limiter   *rate.Limiter
	logger    zerolog.Logger

	mu        sync.Mutex
	questions map[string]models.TrackedQuestion
}

// New creates a Tracker that reminds after threshold has passed without replies
func New(client SlackClient, threshold time.Duration) *Tracker {
	return &Tracker{
		client:    client,
		threshold: threshold,
		limiter:   rate.NewLimiter(rate.Limit(1), 1),
		logger:    log.With().Str("component", "question_tracker").Logger(),
		questions: make(map[string]models.TrackedQuestion),
	}
}

var questionStarters = []string{
	"what", "why", "how", "when", "where",
	"who", "which", "can", "could", "would",
}

// IsQuestion reports whether text looks like a question: after trimming it
// either ends with a question mark or starts with an interrogative lead word.
func IsQuestion(text string) bool {
	text = strings.TrimSpace(text)
	if strings.HasSuffix(text, "?") {
		return true
	}
	lower := strings.ToLower(text)
	for _, word := range questionStarters {
		if strings.HasPrefix(lower, word) {
			return true
		}
	}
	return false
}

// Ingest classifies an inbound message and starts tracking it if it looks
// like a question. Messages missing required fields are skipped.
func (t *Tracker) Ingest(m models.Message) {
	if m.Text == "" || m.ChannelID == "" || m.UserID == "" || m.Timestamp == "" {
		t.logger.Warn().Str("channel", m.ChannelID).Str("ts", m.Timestamp).Msg("Message missing required fields, skipping")
		return
	}

	text := strings.TrimSpace(m.Text)
	if !IsQuestion(text) {
		return
	}

	t.mu.Lock()
	t.questions[m.Timestamp] = models.TrackedQuestion{
		ChannelID:  m.ChannelID,
		UserID:     m.UserID,
		Timestamp:  m.Timestamp,
		Text:       text,
		DetectedAt: time.Now(),
		Reminded:   false,
	}
	total := len(t.questions)
	t.mu.Unlock()

	t.logger.Info().
		Str("channel", m.ChannelID).
		Str("user", m.UserID).
		Str("ts", m.Timestamp).
		Int("tracked", total).
		Msg("Question tracked")
}

// Tracked returns the number of questions currently being watched
func (t *Tracker) Tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.questions)
}

// Sweep walks every tracked question once: answered entries are dropped,
// unanswered ones get a single reminder DM, and entries still silent one
// threshold after their reminder are evicted. A failed reply lookup leaves
// the entry untouched for the next sweep.
func (t *Tracker) Sweep(ctx context.Context) {
	t.mu.Lock()
	snapshot := make(map[string]models.TrackedQuestion, len(t.questions))
	for ts, q := range t.questions {
		snapshot[ts] = q
	}
	t.mu.Unlock()

	t.logger.Debug().Int("tracked", len(snapshot)).Msg("Sweeping tracked questions")

	now := time.Now()
	for ts, q := range snapshot {
		if q.Reminded && now.Sub(q.DetectedAt) < t.threshold {
			continue
		}

		answered, err := t.hasReplies(ctx, q.ChannelID, ts)
		if err != nil {
			t.logger.Error().Err(err).Str("channel", q.ChannelID).Str("ts", ts).Msg("Error checking replies")
			continue
		}

		switch {
		case answered:
			t.remove(ts)
			t.logger.Info().Str("ts", ts).Msg("Question answered, removed from tracking")
		case !q.Reminded:
			t.sendReminder(ctx, q)
			t.markReminded(ts)
		default:
			// Reminded a full threshold ago and still silent; stop watching.
			t.remove(ts)
			t.logger.Info().Str("ts", ts).Msg("Reminded question expired, removed from tracking")
		}
	}
}

func (t *Tracker) hasReplies(ctx context.Context, channelID, ts string) (bool, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limiter: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	msgs, _, _, err := t.client.GetConversationRepliesContext(callCtx, &slack.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: ts,
	})
	if err != nil {
		return false, fmt.Errorf("fetch thread replies: %w", err)
	}

	// The root message is the first item, so anything past it is a reply.
	return len(msgs) > 1, nil
}

func (t *Tracker) sendReminder(ctx context.Context, q models.TrackedQuestion) {
	message := fmt.Sprintf(
		"Hi! I noticed your question hasn't received any responses yet:\n\n>%s\n\nTo help get answers, you might want to:\n%s",
		q.Text, reminderSuggestions,
	)

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, _, err := t.client.PostMessageContext(callCtx, q.UserID,
		slack.MsgOptionText(message, false),
		slack.MsgOptionDisableLinkUnfurl(),
		slack.MsgOptionDisableMediaUnfurl(),
	)
	if err != nil {
		t.logger.Error().Err(err).Str("user", q.UserID).Msg("Error sending reminder")
		return
	}
	t.logger.Info().Str("user", q.UserID).Str("ts", q.Timestamp).Msg("Reminder sent")
}

func (t *Tracker) markReminded(ts string) {
	t.mu.Lock()
	if q, ok := t.questions[ts]; ok {
		q.Reminded = true
		t.questions[ts] = q
	}
	t.mu.Unlock()
}

func (t *Tracker) remove(ts string) {
	t.mu.Lock()
	delete(t.questions, ts)
	t.mu.Unlock()
}
