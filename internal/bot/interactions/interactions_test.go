package interactions

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/slack-go/slack"

	"pulse-bot/internal/models"
)

type fakePost struct {
	channel string
	text    string
	blocks  string
}

type fakePoster struct {
	mu    sync.Mutex
	posts []fakePost
}

func (f *fakePoster) PostMessageContext(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	_, values, err := slack.UnsafeApplyMsgOptions("token", channelID, "https://slack.com/api/", options...)
	if err != nil {
		return "", "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, fakePost{
		channel: channelID,
		text:    values.Get("text"),
		blocks:  values.Get("blocks"),
	})
	return channelID, "1.0", nil
}

type fakeRetriever struct {
	rows       []models.ChannelMessage
	channelIDs []string
	days       int
	calls      int
}

func (f *fakeRetriever) GetChannelMessages(_ context.Context, channelIDs []string, days int) []models.ChannelMessage {
	f.calls++
	f.channelIDs = channelIDs
	f.days = days
	return f.rows
}

type fakeGen struct{}

func (fakeGen) Generate(_ context.Context, _ string) (string, error) {
	return `{"decision_initiation": 1, "decision_closure": 1, "confidence": 0.9}`, nil
}

func submission(metadata string, channelIDs ...string) slack.InteractionCallback {
	options := make([]slack.OptionBlockObject, 0, len(channelIDs))
	for _, id := range channelIDs {
		options = append(options, slack.OptionBlockObject{Value: id})
	}
	return slack.InteractionCallback{
		Type: slack.InteractionTypeViewSubmission,
		User: slack.User{ID: "U1"},
		View: slack.View{
			CallbackID:      "pulse_report_channel_select",
			PrivateMetadata: metadata,
			State: &slack.ViewState{
				Values: map[string]map[string]slack.BlockAction{
					"channels_block": {
						"channels_select": {SelectedOptions: options},
					},
				},
			},
		},
	}
}

func TestHandleInteractionDeliversReport(t *testing.T) {
	poster := &fakePoster{}
	retriever := &fakeRetriever{rows: []models.ChannelMessage{
		{ChannelID: "C1", ChannelName: "general", UserID: "U2", Timestamp: "1.0", Text: "hello", SubType: "message"},
		{ChannelID: "C1", ChannelName: "general", UserID: "U3", Timestamp: "2.0", Text: "hi", SubType: "message"},
	}}
	h := New(poster, retriever, fakeGen{})

	h.HandleInteraction(context.Background(), submission("7", "C1", "C2"))
	h.Wait()

	if retriever.calls != 1 || retriever.days != 7 {
		t.Fatalf("retriever calls = %d, days = %d", retriever.calls, retriever.days)
	}
	if len(retriever.channelIDs) != 2 || retriever.channelIDs[0] != "C1" || retriever.channelIDs[1] != "C2" {
		t.Errorf("retriever channels = %v", retriever.channelIDs)
	}

	if len(poster.posts) != 2 {
		t.Fatalf("sent %d messages, want 2", len(poster.posts))
	}
	if poster.posts[0].channel != "U1" || !strings.Contains(poster.posts[0].text, "Processing your pulse report") {
		t.Errorf("first post = %+v", poster.posts[0])
	}
	report := poster.posts[1]
	if report.channel != "U1" {
		t.Errorf("report sent to %s, want U1", report.channel)
	}
	if !strings.Contains(report.blocks, "Channel Pulse Report (Last 7 days)") {
		t.Errorf("report blocks missing header:\n%s", report.blocks)
	}
	if !strings.Contains(report.blocks, "*#general*") {
		t.Errorf("report blocks missing channel section:\n%s", report.blocks)
	}
}

func TestHandleInteractionNoMessages(t *testing.T) {
	poster := &fakePoster{}
	h := New(poster, &fakeRetriever{}, fakeGen{})

	h.HandleInteraction(context.Background(), submission("30", "C1"))
	h.Wait()

	if len(poster.posts) != 2 {
		t.Fatalf("sent %d messages, want 2", len(poster.posts))
	}
	if poster.posts[1].text != "No messages found in the specified time period" {
		t.Errorf("second post = %q", poster.posts[1].text)
	}
}

func TestHandleInteractionBadMetadata(t *testing.T) {
	poster := &fakePoster{}
	retriever := &fakeRetriever{}
	h := New(poster, retriever, fakeGen{})

	h.HandleInteraction(context.Background(), submission("soon", "C1"))
	h.Wait()

	if retriever.calls != 0 {
		t.Errorf("retriever called %d times, want 0", retriever.calls)
	}
	if len(poster.posts) != 1 || !strings.Contains(poster.posts[0].text, "error processing your selection") {
		t.Errorf("posts = %+v", poster.posts)
	}
}

func TestHandleInteractionNoChannelsSelected(t *testing.T) {
	poster := &fakePoster{}
	h := New(poster, &fakeRetriever{}, fakeGen{})

	h.HandleInteraction(context.Background(), submission("30"))
	h.Wait()

	if len(poster.posts) != 1 || !strings.Contains(poster.posts[0].text, "error processing your selection") {
		t.Errorf("posts = %+v", poster.posts)
	}
}

func TestHandleInteractionIgnoresOtherPayloads(t *testing.T) {
	poster := &fakePoster{}
	h := New(poster, &fakeRetriever{}, fakeGen{})

	other := submission("30", "C1")
	other.View.CallbackID = "some_other_modal"
	h.HandleInteraction(context.Background(), other)

	blockAction := submission("30", "C1")
	blockAction.Type = slack.InteractionTypeBlockActions
	h.HandleInteraction(context.Background(), blockAction)

	h.Wait()
	if len(poster.posts) != 0 {
		t.Errorf("sent %d messages, want 0", len(poster.posts))
	}
}
