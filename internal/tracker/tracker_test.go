package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"pulse-bot/internal/models"
)

func newTestTracker(client SlackClient, threshold time.Duration) *Tracker {
	tr := New(client, threshold)
	tr.limiter = rate.NewLimiter(rate.Inf, 0)
	return tr
}

type fakePost struct {
	channel     string
	text        string
	unfurlLinks string
}

type fakeSlack struct {
	mu         sync.Mutex
	replies    map[string][]slack.Message
	repliesErr error
	postErr    error
	fetchCalls int
	posts      []fakePost
}

func (f *fakeSlack) GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.repliesErr != nil {
		return nil, false, "", f.repliesErr
	}
	return f.replies[params.Timestamp], false, "", nil
}

func (f *fakeSlack) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, values, err := slack.UnsafeApplyMsgOptions("token", channelID, "https://slack.com/api/", options...)
	if err != nil {
		return "", "", err
	}
	f.posts = append(f.posts, fakePost{
		channel:     channelID,
		text:        values.Get("text"),
		unfurlLinks: values.Get("unfurl_links"),
	})
	if f.postErr != nil {
		return "", "", f.postErr
	}
	return channelID, "1.1", nil
}

// thread builds a reply list of n messages, root included.
func thread(n int) []slack.Message {
	return make([]slack.Message, n)
}

func question(ts string) models.Message {
	return models.Message{
		ChannelID: "C1",
		UserID:    "U1",
		Timestamp: ts,
		Text:      "How do I deploy this?",
	}
}

func TestIsQuestion(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{
			input:    "How do I deploy this?",
			expected: true,
		},
		{
			input:    "anyone seen the dashboard break like this?",
			expected: true,
		},
		{
			input:    "what time works for everyone",
			expected: true,
		},
		{
			input:    "Could someone review my PR please",
			expected: true,
		},
		{
			input:    "WHICH version are we on!!",
			expected: true,
		},
		{
			input:    "  where did the logs go  ",
			expected: true,
		},
		{
			input:    "whatever happens, ship it",
			expected: true,
		},
		{
			input:    "status update",
			expected: false,
		},
		{
			input:    "deployed to prod.",
			expected: false,
		},
		{
			input:    "",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsQuestion(tt.input); got != tt.expected {
				t.Errorf("IsQuestion(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIngestTracksQuestion(t *testing.T) {
	tr := newTestTracker(&fakeSlack{}, 30*time.Minute)

	tr.Ingest(question("100"))

	if tr.Tracked() != 1 {
		t.Fatalf("Tracked() = %d, want 1", tr.Tracked())
	}

	q := tr.questions["100"]
	if q.ChannelID != "C1" || q.UserID != "U1" || q.Text != "How do I deploy this?" {
		t.Errorf("tracked entry = %+v, want C1/U1 with original text", q)
	}
	if q.Reminded {
		t.Errorf("new entry has Reminded = true, want false")
	}
}

func TestIngestTrimsText(t *testing.T) {
	tr := newTestTracker(&fakeSlack{}, 30*time.Minute)

	m := question("100")
	m.Text = "  How do I deploy this?  \n"
	tr.Ingest(m)

	if got := tr.questions["100"].Text; got != "How do I deploy this?" {
		t.Errorf("tracked text = %q, want trimmed", got)
	}
}

func TestIngestOverwritesSameTimestamp(t *testing.T) {
	tr := newTestTracker(&fakeSlack{}, 30*time.Minute)

	tr.Ingest(question("100"))
	m := question("100")
	m.Text = "Why is prod down?"
	tr.Ingest(m)

	if tr.Tracked() != 1 {
		t.Fatalf("Tracked() = %d, want 1 after overwrite", tr.Tracked())
	}
	if got := tr.questions["100"].Text; got != "Why is prod down?" {
		t.Errorf("tracked text = %q, want the newer text", got)
	}
}

func TestIngestSkipsNonQuestions(t *testing.T) {
	tr := newTestTracker(&fakeSlack{}, 30*time.Minute)

	m := question("100")
	m.Text = "status update"
	tr.Ingest(m)

	if tr.Tracked() != 0 {
		t.Errorf("Tracked() = %d, want 0 for a non-question", tr.Tracked())
	}
}

func TestIngestSkipsMalformedMessages(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Message)
	}{
		{
			name:   "missing text",
			mutate: func(m *models.Message) { m.Text = "" },
		},
		{
			name:   "missing channel",
			mutate: func(m *models.Message) { m.ChannelID = "" },
		},
		{
			name:   "missing user",
			mutate: func(m *models.Message) { m.UserID = "" },
		},
		{
			name:   "missing ts",
			mutate: func(m *models.Message) { m.Timestamp = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTracker(&fakeSlack{}, 30*time.Minute)
			m := question("100")
			tt.mutate(&m)
			tr.Ingest(m)

			if tr.Tracked() != 0 {
				t.Errorf("Tracked() = %d, want 0 for %s", tr.Tracked(), tt.name)
			}
		})
	}
}

func TestSweepRemovesAnsweredWithoutReminder(t *testing.T) {
	fake := &fakeSlack{replies: map[string][]slack.Message{"100": thread(3)}}
	tr := newTestTracker(fake, 30*time.Minute)
	tr.Ingest(question("100"))

	tr.Sweep(context.Background())

	if tr.Tracked() != 0 {
		t.Errorf("Tracked() = %d, want 0 after answered sweep", tr.Tracked())
	}
	if len(fake.posts) != 0 {
		t.Errorf("posts = %d, want 0 reminders for an answered question", len(fake.posts))
	}
}

func TestSweepRemindsUnanswered(t *testing.T) {
	fake := &fakeSlack{replies: map[string][]slack.Message{"100": thread(1)}}
	tr := newTestTracker(fake, 30*time.Minute)
	tr.Ingest(question("100"))

	tr.Sweep(context.Background())

	if len(fake.posts) != 1 {
		t.Fatalf("posts = %d, want exactly 1 reminder", len(fake.posts))
	}
	post := fake.posts[0]
	if post.channel != "U1" {
		t.Errorf("reminder channel = %q, want the author U1", post.channel)
	}
	if !strings.Contains(post.text, ">How do I deploy this?") {
		t.Errorf("reminder text %q does not quote the question", post.text)
	}
	if !strings.Contains(post.text, "Tag team members who might have expertise in this area") {
		t.Errorf("reminder text %q is missing the suggestion list", post.text)
	}
	if post.unfurlLinks != "false" {
		t.Errorf("unfurl_links = %q, want false", post.unfurlLinks)
	}

	if tr.Tracked() != 1 {
		t.Errorf("Tracked() = %d, want entry kept after reminding", tr.Tracked())
	}
	if !tr.questions["100"].Reminded {
		t.Errorf("entry not marked Reminded after reminder")
	}
}

func TestSweepNoDuplicateReminder(t *testing.T) {
	// The worked flow: first sweep reminds, a prompt second sweep does nothing.
	fake := &fakeSlack{replies: map[string][]slack.Message{"100": thread(1)}}
	tr := newTestTracker(fake, 30*time.Minute)
	tr.Ingest(question("100"))

	tr.Sweep(context.Background())
	fetchesAfterFirst := fake.fetchCalls
	tr.Sweep(context.Background())

	if len(fake.posts) != 1 {
		t.Errorf("posts = %d, want 1 reminder across both sweeps", len(fake.posts))
	}
	if fake.fetchCalls != fetchesAfterFirst {
		t.Errorf("second sweep fetched replies for a freshly reminded entry")
	}
	if tr.Tracked() != 1 {
		t.Errorf("Tracked() = %d, want entry still present", tr.Tracked())
	}
}

func TestSweepFetchErrorLeavesEntryUntouched(t *testing.T) {
	fake := &fakeSlack{repliesErr: errors.New("channel_not_found")}
	tr := newTestTracker(fake, 30*time.Minute)
	tr.Ingest(question("100"))

	tr.Sweep(context.Background())

	if tr.Tracked() != 1 {
		t.Errorf("Tracked() = %d, want entry kept after fetch failure", tr.Tracked())
	}
	if tr.questions["100"].Reminded {
		t.Errorf("entry marked Reminded despite fetch failure")
	}
	if len(fake.posts) != 0 {
		t.Errorf("posts = %d, want 0 after fetch failure", len(fake.posts))
	}
}

func TestSweepEvictsStaleRemindedEntry(t *testing.T) {
	fake := &fakeSlack{replies: map[string][]slack.Message{"100": thread(1)}}
	tr := newTestTracker(fake, 30*time.Minute)
	tr.questions["100"] = models.TrackedQuestion{
		ChannelID:  "C1",
		UserID:     "U1",
		Timestamp:  "100",
		Text:       "How do I deploy this?",
		DetectedAt: time.Now().Add(-time.Hour),
		Reminded:   true,
	}

	tr.Sweep(context.Background())

	if tr.Tracked() != 0 {
		t.Errorf("Tracked() = %d, want stale reminded entry evicted", tr.Tracked())
	}
	if len(fake.posts) != 0 {
		t.Errorf("posts = %d, want no second reminder on eviction", len(fake.posts))
	}
}

func TestSweepRemovesStaleRemindedWhenAnswered(t *testing.T) {
	fake := &fakeSlack{replies: map[string][]slack.Message{"100": thread(2)}}
	tr := newTestTracker(fake, 30*time.Minute)
	tr.questions["100"] = models.TrackedQuestion{
		ChannelID:  "C1",
		UserID:     "U1",
		Timestamp:  "100",
		Text:       "How do I deploy this?",
		DetectedAt: time.Now().Add(-time.Hour),
		Reminded:   true,
	}

	tr.Sweep(context.Background())

	if tr.Tracked() != 0 {
		t.Errorf("Tracked() = %d, want answered entry removed", tr.Tracked())
	}
	if len(fake.posts) != 0 {
		t.Errorf("posts = %d, want no reminder for an answered question", len(fake.posts))
	}
}

func TestSweepMarksRemindedEvenIfSendFails(t *testing.T) {
	fake := &fakeSlack{
		replies: map[string][]slack.Message{"100": thread(1)},
		postErr: errors.New("msg_too_long"),
	}
	tr := newTestTracker(fake, 30*time.Minute)
	tr.Ingest(question("100"))

	tr.Sweep(context.Background())

	if !tr.questions["100"].Reminded {
		t.Errorf("entry not marked Reminded after failed send, would retry forever")
	}
	if tr.Tracked() != 1 {
		t.Errorf("Tracked() = %d, want entry kept", tr.Tracked())
	}
}

func TestSweepOneBadEntryDoesNotBlockOthers(t *testing.T) {
	fake := &fakeSlack{replies: map[string][]slack.Message{
		"100": thread(1),
		"200": thread(5),
	}}
	tr := newTestTracker(fake, 30*time.Minute)
	tr.Ingest(question("100"))
	answered := question("200")
	answered.Text = "Why is the build red?"
	tr.Ingest(answered)

	tr.Sweep(context.Background())

	if tr.Tracked() != 1 {
		t.Errorf("Tracked() = %d, want the answered entry removed and the other kept", tr.Tracked())
	}
	if _, ok := tr.questions["100"]; !ok {
		t.Errorf("unanswered entry missing after sweep")
	}
	if len(fake.posts) != 1 {
		t.Errorf("posts = %d, want 1 reminder", len(fake.posts))
	}
}
