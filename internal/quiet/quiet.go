package quiet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"

	"pulse-bot/internal/config"
)

const callTimeout = 10 * time.Second

// Poster posts channel messages. Satisfied by *slack.Client.
type Poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// JokeSource hands out icebreaker jokes. Satisfied by *content.Store.
type JokeSource interface {
	RandomJoke() string
}

// Nudger posts an icebreaker into channels that have gone quiet during
// working hours. Message events reset per-channel timers; a scheduler calls
// CheckChannels periodically.
type Nudger struct {
	client   Poster
	jokes    JokeSource
	cfg      *config.Config
	channels func() []string
	now      func() time.Time
	logger   zerolog.Logger

	mu          sync.Mutex
	lastMessage map[string]time.Time
	lastNudge   map[string]time.Time
}

// New creates a Nudger watching the channels returned by channels()
func New(client Poster, jokes JokeSource, cfg *config.Config, channels func() []string) *Nudger {
	return &Nudger{
		client:      client,
		jokes:       jokes,
		cfg:         cfg,
		channels:    channels,
		now:         time.Now,
		logger:      log.With().Str("component", "quiet_channel").Logger(),
		lastMessage: make(map[string]time.Time),
		lastNudge:   make(map[string]time.Time),
	}
}

// ResetTimer records channel activity, pushing its next nudge out
func (n *Nudger) ResetTimer(channel string) {
	n.mu.Lock()
	n.lastMessage[channel] = n.now()
	n.mu.Unlock()
}

// CheckChannels nudges every watched channel that has been silent for the
// configured threshold. Outside working hours it does nothing. A channel the
// bot has never seen a message in counts as quiet since process start.
func (n *Nudger) CheckChannels(ctx context.Context) {
	if !n.cfg.InWorkingHours(n.now()) {
		return
	}

	current := n.now()
	for _, channel := range n.channels() {
		n.mu.Lock()
		lastMessage := n.lastMessage[channel]
		lastNudge := n.lastNudge[channel]
		n.mu.Unlock()

		if current.Sub(lastMessage) >= n.cfg.QuietThreshold && current.Sub(lastNudge) >= n.cfg.QuietThreshold {
			n.sendNudge(ctx, channel)
			n.mu.Lock()
			n.lastNudge[channel] = current
			n.mu.Unlock()
		}
	}
}

func (n *Nudger) sendNudge(ctx context.Context, channel string) {
	message := fmt.Sprintf(
		":wave: *It's been pretty quiet in here!*\n\nWhy not start a conversation? Here's a data joke to break the ice:\n_%s_",
		n.jokes.RandomJoke(),
	)

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, _, err := n.client.PostMessageContext(callCtx, channel,
		slack.MsgOptionText(message, false),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	if err != nil {
		n.logger.Error().Err(err).Str("channel", channel).Msg("Error sending nudge")
		return
	}
	n.logger.Info().Str("channel", channel).Msg("Nudged quiet channel")
}
