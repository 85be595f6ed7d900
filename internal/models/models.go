package models

import (
	"time"
)

// TrackedQuestion represents an unanswered question being watched for replies
type TrackedQuestion struct {
	ChannelID  string
	UserID     string
	Timestamp  string // Slack message ts, unique per message
	Text       string
	DetectedAt time.Time
	Reminded   bool
}

// Message represents a normalized inbound channel message event
type Message struct {
	ChannelID string
	UserID    string
	Timestamp string
	ThreadTS  string
	Text      string
	SubType   string
	BotID     string
}

// ChannelMessage represents one row of channel history pulled for reporting
type ChannelMessage struct {
	ChannelID   string
	ChannelName string
	Timestamp   string
	Text        string
	UserID      string
	Type        string
	SubType     string
	IsThread    bool
	IsParent    bool
	ThreadID    string
}

// Book represents a reading recommendation from the content store
type Book struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}
