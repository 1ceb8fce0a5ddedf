package bridge

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// discordSession abstracts the discordgo.Session methods we use,
// enabling test mocks. Message sends go over REST, so no gateway
// connection is opened.
type discordSession interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordSender posts summaries to a Discord channel.
type DiscordSender struct {
	session discordSession
	channel string
}

// DiscordOpts holds parameters for creating a DiscordSender.
type DiscordOpts struct {
	BotToken string
	Channel  string
	// For testing: inject a mock session instead of the real API.
	Session discordSession
}

// NewDiscord creates a DiscordSender.
func NewDiscord(opts DiscordOpts) (*DiscordSender, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.Channel == "" {
		return nil, fmt.Errorf("discord: channel is required")
	}
	session := opts.Session
	if session == nil {
		s, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		session = s
	}
	return &DiscordSender{session: session, channel: opts.Channel}, nil
}

func (d *DiscordSender) Name() string { return "discord" }

// Send posts text to the configured channel.
func (d *DiscordSender) Send(ctx context.Context, text string) error {
	_, err := d.session.ChannelMessageSend(d.channel, text, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}
