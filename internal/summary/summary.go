package summary

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"

	"pulse-bot/internal/models"
	"pulse-bot/internal/sentiment"
)

const callTimeout = 10 * time.Second

var topicKeywords = []string{"data", "analytics", "python", "sql", "dashboard"}

// Poster posts channel messages. Satisfied by *slack.Client.
type Poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// BookSource hands out reading recommendations. Satisfied by *content.Store.
type BookSource interface {
	RandomBook() models.Book
}

// Summary accumulates a week of channel activity and posts a digest with
// top contributors, topic mentions, overall mood, and a book recommendation.
type Summary struct {
	client  Poster
	books   BookSource
	channel string
	logger  zerolog.Logger

	mu           sync.Mutex
	scoreSum     float64
	messageCount int
	userCounts   map[string]int
	topics       map[string]int
	questions    int
}

// New creates a Summary posting into the given channel
func New(client Poster, books BookSource, channel string) *Summary {
	return &Summary{
		client:     client,
		books:      books,
		channel:    channel,
		logger:     log.With().Str("component", "weekly_summary").Logger(),
		userCounts: make(map[string]int),
		topics:     make(map[string]int),
	}
}

// ProcessMessage folds one message into this week's running totals
func (s *Summary) ProcessMessage(m models.Message) {
	score := sentiment.Score(m.Text)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.scoreSum += score
	s.messageCount++
	s.userCounts[m.UserID]++
	s.extractTopics(m.Text)
	if strings.HasSuffix(strings.TrimSpace(m.Text), "?") {
		s.questions++
	}
}

// Stats reports the messages and questions accumulated so far this week
func (s *Summary) Stats() (messages, questions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageCount, s.questions
}

// GenerateAndPost writes the digest to the summary channel and, on a
// successful post, resets the weekly totals. Weeks without messages are
// skipped. A failed post keeps the totals for the next attempt.
func (s *Summary) GenerateAndPost(ctx context.Context) {
	s.mu.Lock()
	if s.messageCount == 0 {
		s.mu.Unlock()
		s.logger.Debug().Msg("No messages this week, skipping summary")
		return
	}
	text := s.buildLocked()
	s.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, _, err := s.client.PostMessageContext(callCtx, s.channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error posting summary")
		return
	}

	s.mu.Lock()
	s.reset()
	s.mu.Unlock()
	s.logger.Info().Str("channel", s.channel).Msg("Weekly summary posted")
}

func (s *Summary) extractTopics(text string) {
	lower := strings.ToLower(text)
	for _, keyword := range topicKeywords {
		if strings.Contains(lower, keyword) {
			s.topics[keyword]++
		}
	}
}

func (s *Summary) buildLocked() string {
	mood := s.scoreSum / float64(s.messageCount)

	var moodEmoji string
	switch {
	case mood > 0:
		moodEmoji = "😊"
	case mood == 0:
		moodEmoji = "😐"
	default:
		moodEmoji = "😟"
	}

	var sb strings.Builder
	sb.WriteString("*📊 Weekly Channel Summary*\n\n*Top Contributors:*\n")
	for i, u := range topCounts(s.userCounts, 5) {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "• <@%s>: %d messages", u.key, u.count)
	}

	sb.WriteString("\n\n*Popular Topics:*\n")
	for i, tp := range topCounts(s.topics, 5) {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "• %s: %d mentions", tp.key, tp.count)
	}

	book := s.books.RandomBook()
	fmt.Fprintf(&sb, "\n\n*Channel Mood:* %s\n\n*📚 Weekly Reading Recommendation:*\n%s\n_%s_",
		moodEmoji, book.Title, book.Description)

	return sb.String()
}

func (s *Summary) reset() {
	s.scoreSum = 0
	s.messageCount = 0
	s.userCounts = make(map[string]int)
	s.topics = make(map[string]int)
	s.questions = 0
}

type keyCount struct {
	key   string
	count int
}

func topCounts(counts map[string]int, n int) []keyCount {
	out := make([]keyCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, keyCount{k, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
