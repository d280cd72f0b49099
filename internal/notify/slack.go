// Package notify posts implementation outcomes to a Slack channel.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
)

// Notifier announces attempt outcomes.
type Notifier interface {
	Post(ctx context.Context, text string) error
}

// slackAPI is the slice of the Slack client we use; faked in tests.
type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Slack posts messages to a fixed channel.
type Slack struct {
	api     slackAPI
	channel string
	logger  *slog.Logger
}

func NewSlack(token, channel string, logger *slog.Logger) *Slack {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slack{api: slack.New(token), channel: channel, logger: logger}
}

func (s *Slack) Post(ctx context.Context, text string) error {
	_, ts, err := s.api.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	if err != nil {
		return fmt.Errorf("notify: slack post: %w", err)
	}
	s.logger.Debug("slack message posted", "channel", s.channel, "ts", ts)
	return nil
}
