package bridge

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackSender posts summaries to a Slack channel via the Web API.
type SlackSender struct {
	client  slackClient
	channel string
}

// SlackOpts holds parameters for creating a SlackSender.
type SlackOpts struct {
	BotToken string // xoxb-... bot token
	Channel  string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// NewSlack creates a SlackSender.
func NewSlack(opts SlackOpts) (*SlackSender, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.Channel == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}
	client := opts.Client
	if client == nil {
		client = slackapi.New(opts.BotToken)
	}
	return &SlackSender{client: client, channel: opts.Channel}, nil
}

func (s *SlackSender) Name() string { return "slack" }

// Send posts text to the configured channel.
func (s *SlackSender) Send(ctx context.Context, text string) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slackapi.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}
