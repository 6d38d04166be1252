package ratelimiter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []time.Time
}

func (f *fakeSender) Send(tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, time.Now())

	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeSender) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) times() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]time.Time(nil), f.sent...)
}

func TestDelay(t *testing.T) {
	rl := &RateLimiter{privateRate: time.Second, groupRate: 3 * time.Second}
	now := time.Now()

	tests := []struct {
		name     string
		chatID   int64
		lastSent time.Time
		wantZero bool
	}{
		{"Private chat - no delay needed", 123456789, now.Add(-2 * time.Second), true},
		{"Private chat - delay needed", 123456789, now.Add(-500 * time.Millisecond), false},
		{"Group chat - no delay needed", -123456789, now.Add(-4 * time.Second), true},
		{"Group chat - delay needed", -123456789, now.Add(-1 * time.Second), false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := rl.delay(test.chatID, test.lastSent)

			if test.wantZero && got > 0 {
				t.Errorf("Expected zero delay, got %v", got)
			}

			if !test.wantZero && got <= 0 {
				t.Errorf("Expected positive delay, got %v", got)
			}
		})
	}
}

func TestGetChatID(t *testing.T) {
	tests := []struct {
		name    string
		message tgbotapi.Chattable
		want    int64
	}{
		{"MessageConfig", tgbotapi.NewMessage(12345, "test"), 12345},
		{"ChatActionConfig", tgbotapi.NewChatAction(67890, tgbotapi.ChatTyping), 67890},
		{"EditMessageTextConfig", tgbotapi.NewEditMessageText(111, 1, "edited"), 111},
		{"DeleteMessageConfig", tgbotapi.NewDeleteMessage(222, 1), 222},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := getChatID(test.message); got != test.want {
				t.Errorf("Expected %v chatID, got %v", test.want, got)
			}
		})
	}
}

func TestSendSpacesMessagesPerChat(t *testing.T) {
	sender := &fakeSender{}
	rate := 50 * time.Millisecond
	rl := New(sender, slog.Default(), WithRates(rate, rate))
	defer rl.Stop()

	ctx := context.Background()
	for range 2 {
		if _, err := rl.Send(ctx, tgbotapi.NewMessage(1, "hi")); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	sent := sender.times()
	if len(sent) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(sent))
	}

	if gap := sent[1].Sub(sent[0]); gap < rate-5*time.Millisecond {
		t.Errorf("Expected at least %v between messages, got %v", rate, gap)
	}
}

func TestSendHonorsContext(t *testing.T) {
	sender := &fakeSender{}
	rl := New(sender, slog.Default(), WithRates(time.Hour, time.Hour))
	defer rl.Stop()

	if _, err := rl.Send(context.Background(), tgbotapi.NewMessage(1, "first")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := rl.Send(ctx, tgbotapi.NewMessage(1, "second"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}

	if got := len(sender.times()); got != 1 {
		t.Errorf("Expected 1 message sent, got %d", got)
	}
}

func TestSendAfterStop(t *testing.T) {
	rl := New(&fakeSender{}, slog.Default())
	rl.Stop()

	_, err := rl.Send(context.Background(), tgbotapi.NewMessage(1, "late"))
	if err == nil {
		t.Error("Expected an error after Stop")
	}
}
