package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/slack-go/slack"
)

type fakeSlack struct {
	channels []string
	err      error
}

func (f *fakeSlack) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	f.channels = append(f.channels, channelID)
	return channelID, "1725000000.000100", nil
}

func TestPost(t *testing.T) {
	api := &fakeSlack{}
	s := &Slack{api: api, channel: "C123", logger: slog.New(slog.DiscardHandler)}

	if err := s.Post(context.Background(), "done"); err != nil {
		t.Fatalf("post: %v", err)
	}
	if len(api.channels) != 1 || api.channels[0] != "C123" {
		t.Errorf("channels = %v", api.channels)
	}
}

func TestPostError(t *testing.T) {
	s := &Slack{api: &fakeSlack{err: errors.New("invalid_auth")}, channel: "C123", logger: slog.New(slog.DiscardHandler)}

	if err := s.Post(context.Background(), "done"); err == nil {
		t.Fatal("expected error")
	}
}
