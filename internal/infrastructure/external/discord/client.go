// Package discord implements a minimal Discord REST API client covering
// what the bot needs: reading channel history, posting and editing
// messages, pins, reactions, threads and DMs. The bot polls channels
// over REST instead of holding a gateway connection.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mentor-hub/learning-mentor/internal/domain/shared"
	"github.com/mentor-hub/learning-mentor/pkg/circuitbreaker"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
	"github.com/mentor-hub/learning-mentor/pkg/retry"
)

// DefaultBaseURL is the Discord REST API endpoint.
const DefaultBaseURL = "https://discord.com/api/v10"

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig configures the Discord client.
type ClientConfig struct {
	Token   string
	BaseURL string
	Timeout time.Duration
	Logger  *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Discord REST client.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	log        *logger.Logger
}

// NewClient creates a Discord client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logger.New(logger.DefaultOptions())
	}
	log = log.With(logger.Component("discord"))

	return &Client{
		token:      cfg.Token,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retrier:    retry.DiscordRetrier(),
		breaker: circuitbreaker.DiscordAPIBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		}),
		log: log,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMessages fetches channel history, newest first.
func (c *Client) GetMessages(ctx context.Context, channelID string, opts ListMessagesOptions) ([]Message, error) {
	params := url.Values{}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.After != "" {
		params.Set("after", opts.After)
	}
	if opts.Before != "" {
		params.Set("before", opts.Before)
	}

	path := fmt.Sprintf("/channels/%s/messages", channelID)
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var messages []Message
	if err := c.do(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, fmt.Errorf("get messages for channel %s: %w", channelID, err)
	}
	return messages, nil
}

// GetMessage fetches a single message.
func (c *Client) GetMessage(ctx context.Context, channelID, messageID string) (*Message, error) {
	var msg Message
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	if err := c.do(ctx, http.MethodGet, path, nil, &msg); err != nil {
		return nil, fmt.Errorf("get message %s: %w", messageID, err)
	}
	return &msg, nil
}

// CreateMessage posts a message to a channel.
func (c *Client) CreateMessage(ctx context.Context, channelID string, req CreateMessageRequest) (*Message, error) {
	var msg Message
	path := fmt.Sprintf("/channels/%s/messages", channelID)
	if err := c.do(ctx, http.MethodPost, path, req, &msg); err != nil {
		return nil, fmt.Errorf("create message in channel %s: %w", channelID, err)
	}
	return &msg, nil
}

// EditMessage edits an existing message.
func (c *Client) EditMessage(ctx context.Context, channelID, messageID string, req EditMessageRequest) (*Message, error) {
	var msg Message
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	if err := c.do(ctx, http.MethodPatch, path, req, &msg); err != nil {
		return nil, fmt.Errorf("edit message %s: %w", messageID, err)
	}
	return &msg, nil
}

// DeleteMessage removes a message.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PIN OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetPinnedMessages lists a channel's pinned messages.
func (c *Client) GetPinnedMessages(ctx context.Context, channelID string) ([]Message, error) {
	var messages []Message
	path := fmt.Sprintf("/channels/%s/pins", channelID)
	if err := c.do(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, fmt.Errorf("get pins for channel %s: %w", channelID, err)
	}
	return messages, nil
}

// PinMessage pins a message in a channel.
func (c *Client) PinMessage(ctx context.Context, channelID, messageID string) error {
	path := fmt.Sprintf("/channels/%s/pins/%s", channelID, messageID)
	if err := c.do(ctx, http.MethodPut, path, nil, nil); err != nil {
		return fmt.Errorf("pin message %s: %w", messageID, err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REACTION OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// CreateReaction adds the bot's reaction to a message. emoji is the raw
// unicode emoji.
func (c *Client) CreateReaction(ctx context.Context, channelID, messageID, emoji string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s/reactions/%s/@me",
		channelID, messageID, url.PathEscape(emoji))
	if err := c.do(ctx, http.MethodPut, path, nil, nil); err != nil {
		return fmt.Errorf("react to message %s: %w", messageID, err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CHANNEL AND THREAD OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetChannel fetches channel metadata.
func (c *Client) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	var ch Channel
	path := fmt.Sprintf("/channels/%s", channelID)
	if err := c.do(ctx, http.MethodGet, path, nil, &ch); err != nil {
		return nil, fmt.Errorf("get channel %s: %w", channelID, err)
	}
	return &ch, nil
}

// StartThread creates a public thread in a channel without an anchor
// message.
func (c *Client) StartThread(ctx context.Context, channelID, name string) (*Channel, error) {
	var ch Channel
	path := fmt.Sprintf("/channels/%s/threads", channelID)
	req := StartThreadRequest{
		Name:                name,
		Type:                ChannelTypePublicThread,
		AutoArchiveDuration: 1440,
	}
	if err := c.do(ctx, http.MethodPost, path, req, &ch); err != nil {
		return nil, fmt.Errorf("start thread %q in channel %s: %w", name, channelID, err)
	}
	return &ch, nil
}

// StartThreadFromMessage creates a thread anchored to a message.
func (c *Client) StartThreadFromMessage(ctx context.Context, channelID, messageID, name string) (*Channel, error) {
	var ch Channel
	path := fmt.Sprintf("/channels/%s/messages/%s/threads", channelID, messageID)
	req := StartThreadRequest{Name: name, AutoArchiveDuration: 1440}
	if err := c.do(ctx, http.MethodPost, path, req, &ch); err != nil {
		return nil, fmt.Errorf("start thread from message %s: %w", messageID, err)
	}
	return &ch, nil
}

// ListActiveThreads lists a guild's active threads.
func (c *Client) ListActiveThreads(ctx context.Context, guildID string) ([]Channel, error) {
	var resp ThreadListResponse
	path := fmt.Sprintf("/guilds/%s/threads/active", guildID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list active threads: %w", err)
	}
	return resp.Threads, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// USER OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// CurrentUser fetches the bot's own user.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/users/@me", nil, &user); err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}
	return &user, nil
}

// CreateDM opens (or reuses) a DM channel with a user.
func (c *Client) CreateDM(ctx context.Context, userID string) (*Channel, error) {
	var ch Channel
	if err := c.do(ctx, http.MethodPost, "/users/@me/channels", CreateDMRequest{RecipientID: userID}, &ch); err != nil {
		return nil, fmt.Errorf("create dm with %s: %w", userID, err)
	}
	return &ch, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST PLUMBING
// ══════════════════════════════════════════════════════════════════════════════

// do runs a request through the circuit breaker and retrier. Rate limits
// and 5xx responses are retried with backoff; other API errors are
// permanent.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			err := c.doOnce(ctx, method, path, body, result)
			if err == nil {
				return nil
			}

			var rl *RateLimitError
			if errors.As(err, &rl) {
				// Honor Discord's requested delay before the retrier's
				// own backoff kicks in.
				select {
				case <-ctx.Done():
					return retry.Permanent(ctx.Err())
				case <-time.After(rl.RetryAfter):
				}
				return retry.Retryable(err)
			}

			var apiErr *APIError
			if errors.As(err, &apiErr) {
				if apiErr.Status >= 500 {
					return retry.Retryable(err)
				}
				return retry.Permanent(err)
			}

			// Network level failures are retryable.
			return retry.Retryable(err)
		})
	})
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		var rl rateLimitResponse
		retryAfter := 5 * time.Second
		if err := json.Unmarshal(respBody, &rl); err == nil && rl.RetryAfter > 0 {
			retryAfter = time.Duration(rl.RetryAfter * float64(time.Second))
		} else if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.ParseFloat(ra, 64); err == nil {
				retryAfter = time.Duration(secs * float64(time.Second))
			}
		}
		c.log.Warn("rate limited",
			logger.String("path", path),
			logger.Duration("retry_after", retryAfter))
		return &RateLimitError{RetryAfter: retryAfter, Global: rl.Global}
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return shared.WrapError("discord", "Decode", shared.ErrInvalidFormat, "unexpected response body", err)
		}
	}
	return nil
}
