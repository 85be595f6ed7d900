package channels

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
	"golang.org/x/time/rate"
)

// Lister fetches conversation pages. Satisfied by *slack.Client.
type Lister interface {
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
}

// Tracker keeps a periodically refreshed snapshot of the public channels the
// bot is a member of.
type Tracker struct {
	client  Lister
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu        sync.RWMutex
	installed map[string]string // id -> name
}

func New(client Lister) *Tracker {
	return &Tracker{
		client:    client,
		limiter:   rate.NewLimiter(rate.Every(3*time.Second), 1),
		logger:    log.With().Str("component", "channel_tracker").Logger(),
		installed: make(map[string]string),
	}
}

// Refresh walks the workspace channel list and records where the bot is a
// member. On failure the previous snapshot stays in place.
func (t *Tracker) Refresh(ctx context.Context) {
	all, err := t.fetchPublicChannels(ctx)
	if err != nil {
		t.logger.Error().Err(err).Msg("Error updating installed channels")
		return
	}

	installed := make(map[string]string)
	for _, ch := range all {
		if ch.IsMember {
			installed[ch.ID] = ch.Name
		}
	}

	t.mu.Lock()
	t.installed = installed
	t.mu.Unlock()

	t.logger.Info().Int("channels", len(installed)).Msg("Updated installed channels list")
}

func (t *Tracker) fetchPublicChannels(ctx context.Context) ([]slack.Channel, error) {
	var all []slack.Channel
	cursor := ""
	for {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		page, next, err := t.client.GetConversationsContext(ctx, &slack.GetConversationsParameters{
			Types:           []string{"public_channel"},
			ExcludeArchived: true,
			Limit:           100, // maximum allowed by Slack
			Cursor:          cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("list conversations: %w", err)
		}

		all = append(all, page...)
		if next == "" {
			break
		}
		cursor = next
	}
	return all, nil
}

// IDs returns the installed channel IDs, sorted
func (t *Tracker) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.installed))
	for id := range t.installed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Name returns the recorded name for a channel ID, or "" if unknown
func (t *Tracker) Name(id string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.installed[id]
}

// Snapshot returns a copy of the installed id -> name mapping
func (t *Tracker) Snapshot() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string, len(t.installed))
	for id, name := range t.installed {
		out[id] = name
	}
	return out
}

// Count returns how many channels the bot is currently installed in
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.installed)
}
