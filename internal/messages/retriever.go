package messages

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"pulse-bot/internal/cache"
	"pulse-bot/internal/models"
)

const (
	pageLimit    = 200 // maximum allowed by Slack
	infoCacheTTL = 30 * time.Minute
)

// SlackClient is the history/replies/info slice of the Slack API the
// retriever uses. Satisfied by *slack.Client.
type SlackClient interface {
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
	GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error)
}

// Retriever pulls channel history, expanding threads, into flat rows for the
// report metrics.
type Retriever struct {
	client  SlackClient
	limiter *rate.Limiter
	logger  zerolog.Logger
	info    *cache.Cache[string, string] // channel id -> name
}

func New(client SlackClient) *Retriever {
	return &Retriever{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		logger:  log.With().Str("component", "message_retriever").Logger(),
		info:    cache.New[string, string](),
	}
}

// GetChannelMessages returns every message posted in the given channels over
// the last days, thread replies included. A channel that fails to fetch is
// logged and skipped; the rest of the report still gets built.
func (r *Retriever) GetChannelMessages(ctx context.Context, channelIDs []string, days int) []models.ChannelMessage {
	if len(channelIDs) == 0 {
		r.logger.Warn().Msg("No channels to process")
		return nil
	}

	oldest := time.Now().AddDate(0, 0, -days)
	var all []models.ChannelMessage

	for _, channelID := range channelIDs {
		name, err := r.channelName(ctx, channelID)
		if err != nil {
			r.logger.Error().Err(err).Str("channel", channelID).Msg("Error getting channel info")
			continue
		}

		history, err := r.channelHistory(ctx, channelID, oldest)
		if err != nil {
			r.logger.Error().Err(err).Str("channel", channelID).Msg("Error fetching channel history")
			continue
		}

		for _, msg := range history {
			row := rowFromMessage(channelID, name, msg)
			all = append(all, row)

			if row.IsThread && row.IsParent && msg.ReplyCount > 0 {
				replies, err := r.threadReplies(ctx, channelID, name, msg.ThreadTimestamp)
				if err != nil {
					r.logger.Error().Err(err).Str("channel", channelID).Str("thread", msg.ThreadTimestamp).Msg("Error fetching thread replies")
					continue
				}
				all = append(all, replies...)
			}
		}

		r.logger.Info().Str("channel", channelID).Int("messages", len(history)).Int("days", days).Msg("Fetched channel history")
	}

	return all
}

func (r *Retriever) channelName(ctx context.Context, channelID string) (string, error) {
	if name, ok := r.info.Get(channelID); ok {
		return name, nil
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	ch, err := r.client.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: channelID})
	if err != nil {
		return "", fmt.Errorf("conversation info: %w", err)
	}

	r.info.Set(channelID, ch.Name, infoCacheTTL)
	return ch.Name, nil
}

func (r *Retriever) channelHistory(ctx context.Context, channelID string, oldest time.Time) ([]slack.Message, error) {
	var all []slack.Message
	cursor := ""
	oldestTS := strconv.FormatInt(oldest.Unix(), 10)

	for {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := r.client.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID: channelID,
			Oldest:    oldestTS,
			Inclusive: true,
			Limit:     pageLimit,
			Cursor:    cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch history: %w", err)
		}

		all = append(all, resp.Messages...)
		if !resp.HasMore || resp.ResponseMetaData.NextCursor == "" {
			break
		}
		cursor = resp.ResponseMetaData.NextCursor
	}

	return all, nil
}

func (r *Retriever) threadReplies(ctx context.Context, channelID, channelName, threadTS string) ([]models.ChannelMessage, error) {
	var rows []models.ChannelMessage
	cursor := ""

	for {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		msgs, hasMore, next, err := r.client.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
			ChannelID: channelID,
			Timestamp: threadTS,
			Inclusive: true,
			Limit:     pageLimit,
			Cursor:    cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch thread replies: %w", err)
		}

		for _, msg := range msgs {
			// The parent rides along in the reply pages and was already
			// captured from the history walk.
			if msg.Timestamp == threadTS {
				continue
			}
			rows = append(rows, rowFromMessage(channelID, channelName, msg))
		}

		if !hasMore || next == "" {
			break
		}
		cursor = next
	}

	return rows, nil
}

func rowFromMessage(channelID, channelName string, m slack.Message) models.ChannelMessage {
	isThread := m.ThreadTimestamp != ""
	threadID := m.Timestamp
	if isThread {
		threadID = m.ThreadTimestamp
	}

	msgType := m.Type
	if msgType == "" {
		msgType = "message"
	}
	subtype := m.SubType
	if subtype == "" {
		subtype = "message"
	}

	return models.ChannelMessage{
		ChannelID:   channelID,
		ChannelName: channelName,
		Timestamp:   m.Timestamp,
		Text:        m.Text,
		UserID:      m.User,
		Type:        msgType,
		SubType:     subtype,
		IsThread:    isThread,
		IsParent:    isThread && m.Timestamp == m.ThreadTimestamp,
		ThreadID:    threadID,
	}
}
