package discord

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// WIRE TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Channel types used by the bot.
const (
	ChannelTypeGuildText    = 0
	ChannelTypeDM           = 1
	ChannelTypePublicThread = 11
)

// User is a Discord user.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot,omitempty"`
}

// Message is a Discord message.
type Message struct {
	ID        string  `json:"id"`
	ChannelID string  `json:"channel_id"`
	Author    User    `json:"author"`
	Content   string  `json:"content"`
	Timestamp string  `json:"timestamp"`
	Pinned    bool    `json:"pinned"`
	Embeds    []Embed `json:"embeds,omitempty"`
}

// CreatedAt parses the message timestamp.
func (m *Message) CreatedAt() (time.Time, error) {
	return time.Parse(time.RFC3339, m.Timestamp)
}

// Channel is a Discord channel or thread.
type Channel struct {
	ID       string `json:"id"`
	Type     int    `json:"type"`
	Name     string `json:"name,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
	GuildID  string `json:"guild_id,omitempty"`
}

// IsThread reports whether the channel is a thread.
func (c *Channel) IsThread() bool {
	return c.Type == ChannelTypePublicThread
}

// Embed is a Discord rich embed.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField is one field of an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter is the footer of an embed.
type EmbedFooter struct {
	Text string `json:"text"`
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST PAYLOADS
// ══════════════════════════════════════════════════════════════════════════════

// CreateMessageRequest is the payload for posting a message.
type CreateMessageRequest struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// EditMessageRequest is the payload for editing a message.
type EditMessageRequest struct {
	Content *string `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// StartThreadRequest is the payload for creating a thread.
type StartThreadRequest struct {
	Name                string `json:"name"`
	Type                int    `json:"type,omitempty"`
	AutoArchiveDuration int    `json:"auto_archive_duration,omitempty"`
}

// CreateDMRequest opens a DM channel with a user.
type CreateDMRequest struct {
	RecipientID string `json:"recipient_id"`
}

// ListMessagesOptions filters a channel history request.
type ListMessagesOptions struct {
	Limit  int
	After  string // message ID, exclusive
	Before string // message ID, exclusive
}

// ThreadListResponse wraps the active-threads endpoint response.
type ThreadListResponse struct {
	Threads []Channel `json:"threads"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// APIError is a structured Discord API error response.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord api error: status %d code %d: %s", e.Status, e.Code, e.Message)
}

// RateLimitError indicates a 429 with the retry delay Discord requested.
type RateLimitError struct {
	RetryAfter time.Duration
	Global     bool
}

func (e *RateLimitError) Error() string {
	scope := "route"
	if e.Global {
		scope = "global"
	}
	return fmt.Sprintf("discord rate limited (%s), retry after %s", scope, e.RetryAfter)
}

// rateLimitResponse is the body of a 429 response.
type rateLimitResponse struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}
