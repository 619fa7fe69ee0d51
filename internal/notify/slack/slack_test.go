package slack

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/admitflow/internal/notify"
)

type mockSlackClient struct {
	mu       sync.Mutex
	posted   []string
	failures []error
}

func (m *mockSlackClient) PostMessageContext(_ context.Context, channelID string, _ ...slackapi.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return "", "", err
	}
	m.posted = append(m.posted, channelID)
	return channelID, "1234567890.123456", nil
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(ChannelOpts{ChannelID: "C1"}); err == nil || !strings.Contains(err.Error(), "bot token") {
		t.Errorf("missing token: err = %v", err)
	}
	if _, err := New(ChannelOpts{BotToken: "xoxb-1"}); err == nil || !strings.Contains(err.Error(), "channel id") {
		t.Errorf("missing channel: err = %v", err)
	}
	if _, err := New(ChannelOpts{BotToken: "xoxb-1", ChannelID: "C1"}); err != nil {
		t.Errorf("real client: err = %v", err)
	}
}

func TestSend_PostsToChannel(t *testing.T) {
	mock := &mockSlackClient{}
	c, err := New(ChannelOpts{Client: mock, ChannelID: "C_ADMISSIONS"})
	if err != nil {
		t.Fatal(err)
	}
	if c.Name() != notify.ChannelSlack {
		t.Errorf("Name() = %q", c.Name())
	}
	if err := c.Send(context.Background(), notify.Message{Subject: "New lead", Text: "Ada"}); err != nil {
		t.Fatal(err)
	}
	if len(mock.posted) != 1 || mock.posted[0] != "C_ADMISSIONS" {
		t.Errorf("posted = %v", mock.posted)
	}
}

func TestSend_WrapsError(t *testing.T) {
	mock := &mockSlackClient{failures: []error{errors.New("channel_not_found")}}
	c, _ := New(ChannelOpts{Client: mock, ChannelID: "C1"})
	err := c.Send(context.Background(), notify.Message{Subject: "x"})
	if err == nil || !strings.Contains(err.Error(), "slack: post message: channel_not_found") {
		t.Errorf("err = %v", err)
	}
}

func TestSend_RetriesRateLimit(t *testing.T) {
	mock := &mockSlackClient{failures: []error{&slackapi.RateLimitedError{RetryAfter: time.Millisecond}}}
	c, _ := New(ChannelOpts{Client: mock, ChannelID: "C1"})
	if err := c.Send(context.Background(), notify.Message{Subject: "x"}); err != nil {
		t.Fatal(err)
	}
	if len(mock.posted) != 1 {
		t.Errorf("posted = %d after retry, want 1", len(mock.posted))
	}
}

func TestRetryOnRateLimit_GivesUp(t *testing.T) {
	calls := 0
	err := retryOnRateLimit(context.Background(), func() error {
		calls++
		return &slackapi.RateLimitedError{RetryAfter: time.Millisecond}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != maxRetries+1 {
		t.Errorf("calls = %d, want %d", calls, maxRetries+1)
	}
}

func TestRetryOnRateLimit_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := retryOnRateLimit(ctx, func() error {
		return &slackapi.RateLimitedError{RetryAfter: time.Second}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestBuildMessageOptions(t *testing.T) {
	opts := buildMessageOptions(notify.Message{
		Subject: "Stage changed",
		Fields:  []notify.Field{{Name: "lead_id", Value: "7"}},
	})
	if len(opts) != 2 {
		t.Errorf("options = %d, want 2", len(opts))
	}
}
