package messaging

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"assistant_server/core/domain"
	"assistant_server/core/port/out"

	"github.com/goccy/go-json"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *TelegramAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	adapter, err := NewTelegramAdapter(&TelegramConfig{
		BotToken: "test-token",
		ChatID:   42,
		APIBase:  srv.URL,
	})
	if err != nil {
		t.Fatalf("NewTelegramAdapter() error = %v", err)
	}
	return adapter
}

func TestNewTelegramAdapterValidation(t *testing.T) {
	if _, err := NewTelegramAdapter(&TelegramConfig{ChatID: 42}); err == nil {
		t.Error("expected error for missing bot token")
	}
	if _, err := NewTelegramAdapter(&TelegramConfig{BotToken: "x"}); err == nil {
		t.Error("expected error for missing chat id")
	}
}

func TestSendMessage(t *testing.T) {
	var gotPath string
	var gotBody tgSendMessageRequest

	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Write([]byte(`{"ok":true,"result":{}}`))
	})

	if err := adapter.SendMessage(context.Background(), "hello"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if gotPath != "/bottest-token/sendMessage" {
		t.Errorf("request path = %q", gotPath)
	}
	if gotBody.ChatID != 42 || gotBody.Text != "hello" || gotBody.ParseMode != "Markdown" {
		t.Errorf("request body = %+v", gotBody)
	}
}

func TestSendMessageWithButtons(t *testing.T) {
	var gotBody tgSendMessageRequest
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Write([]byte(`{"ok":true,"result":{}}`))
	})

	buttons := [][]out.Button{
		{{Text: "✍️ Reply", Data: "reply_m1"}, {Text: "👀 View Full", Data: "view_m1"}},
		{{Text: "🔇 Ignore", Data: "ignore_m1"}},
	}
	if err := adapter.SendMessageWithButtons(context.Background(), "pick one", buttons); err != nil {
		t.Fatalf("SendMessageWithButtons() error = %v", err)
	}
	if gotBody.ReplyMarkup == nil {
		t.Fatal("reply_markup missing")
	}
	if len(gotBody.ReplyMarkup.InlineKeyboard) != 2 {
		t.Fatalf("keyboard rows = %d, want 2", len(gotBody.ReplyMarkup.InlineKeyboard))
	}
	if gotBody.ReplyMarkup.InlineKeyboard[0][1].CallbackData != "view_m1" {
		t.Errorf("button data = %q, want view_m1", gotBody.ReplyMarkup.InlineKeyboard[0][1].CallbackData)
	}
}

func TestPollUpdates(t *testing.T) {
	var gotOffset int64
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		var req tgGetUpdatesRequest
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &req)
		gotOffset = req.Offset

		w.Write([]byte(`{"ok":true,"result":[
			{"update_id":7,"message":{"chat":{"id":42},"text":"/status"}},
			{"update_id":8,"callback_query":{"id":"cb1","data":"reply_m1","message":{"chat":{"id":42}}}},
			{"update_id":9,"edited_message":{"chat":{"id":42}}}
		]}`))
	})

	updates, err := adapter.PollUpdates(context.Background(), 7)
	if err != nil {
		t.Fatalf("PollUpdates() error = %v", err)
	}
	if gotOffset != 7 {
		t.Errorf("offset sent = %d, want 7", gotOffset)
	}
	if len(updates) != 2 {
		t.Fatalf("got %d updates, want 2 (unknown kinds skipped)", len(updates))
	}
	if updates[0].Text == nil || updates[0].Text.Text != "/status" {
		t.Errorf("first update = %+v, want text /status", updates[0])
	}
	if updates[1].Press == nil || updates[1].Press.Data != "reply_m1" || updates[1].Press.CallbackID != "cb1" {
		t.Errorf("second update = %+v, want callback reply_m1", updates[1])
	}
}

func TestCallHonorsContext(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"result":{}}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := adapter.SendMessage(ctx, "hello")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("SendMessage() error = %v, want context.Canceled", err)
	}
}

func TestAPIErrorSurfaces(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	})

	err := adapter.SendMessage(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error from not-ok response")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("error %q missing API description", err)
	}
}

// =============================================================================
// Formatting
// =============================================================================

func TestFormatNotification(t *testing.T) {
	msg := &domain.Message{
		ID:       "m1",
		Subject:  "URGENT: server down",
		Sender:   "Ops Team <ops@corp.example>",
		Snippet:  "The API node stopped responding",
		Category: domain.CategoryImportant,
	}

	text := FormatNotification(msg)
	for _, want := range []string{"🚨", "Important Email", "⚡ URGENT", "Ops Team", "ops@corp.example", "URGENT: server down"} {
		if !strings.Contains(text, want) {
			t.Errorf("notification missing %q:\n%s", want, text)
		}
	}
}

func TestNotificationKeyboard(t *testing.T) {
	meeting := &domain.Message{ID: "m1", IsMeetingRequest: true}
	kb := NotificationKeyboard(meeting)
	if kb[0][0].Data != "schedule_m1" {
		t.Errorf("meeting keyboard leads with %q, want schedule_m1", kb[0][0].Data)
	}

	plain := &domain.Message{ID: "m2"}
	kb = NotificationKeyboard(plain)
	if kb[0][0].Data != "reply_m2" {
		t.Errorf("plain keyboard leads with %q, want reply_m2", kb[0][0].Data)
	}
	found := false
	for _, row := range kb {
		for _, b := range row {
			if b.Data == "done_m2" {
				found = true
			}
		}
	}
	if !found {
		t.Error("plain keyboard missing the Mark Done button")
	}
}

func TestScheduleKeyboard(t *testing.T) {
	slots := []domain.TimeSlot{
		{FormattedStart: "Monday, March 2 at 9:00 AM"},
		{FormattedStart: "Monday, March 2 at 10:00 AM"},
		{FormattedStart: "Monday, March 2 at 11:00 AM"},
		{FormattedStart: "Monday, March 2 at 12:00 PM"}, // beyond the cap
	}

	kb := ScheduleKeyboard("m1", slots)
	if len(kb) != 4 { // 3 slot rows + fallback row
		t.Fatalf("keyboard rows = %d, want 4", len(kb))
	}
	if kb[1][0].Data != "time_m1_1" {
		t.Errorf("second slot data = %q, want time_m1_1", kb[1][0].Data)
	}
	last := kb[len(kb)-1]
	if last[0].Data != "custom_time_m1" || last[1].Data != "cancel_m1" {
		t.Errorf("fallback row = %+v", last)
	}
}

func TestFormatResponsePreview(t *testing.T) {
	msg := &domain.Message{ID: "m1", Subject: "Question about pricing", Sender: "client@corp.example"}
	text := FormatResponsePreview(msg, "Thanks for reaching out.")
	for _, want := range []string{"Generated Response Preview", "Question about pricing", "Thanks for reaching out."} {
		if !strings.Contains(text, want) {
			t.Errorf("preview missing %q", want)
		}
	}
}
