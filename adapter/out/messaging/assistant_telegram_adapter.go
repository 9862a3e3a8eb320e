// Package messaging implements the Telegram messenger adapter.
package messaging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"assistant_server/core/port/out"
	"assistant_server/pkg/apperr"
	"assistant_server/pkg/httputil"

	"github.com/goccy/go-json"
)

// =============================================================================
// Telegram Bot API Adapter
// =============================================================================

// DefaultAPIBase is the public Bot API endpoint.
const DefaultAPIBase = "https://api.telegram.org"

// TelegramAdapter implements out.Messenger over the Telegram Bot API.
type TelegramAdapter struct {
	apiURL string
	chatID int64
	client *http.Client
}

// TelegramConfig holds adapter configuration.
type TelegramConfig struct {
	BotToken string
	ChatID   int64
	APIBase  string // optional override for tests
}

// NewTelegramAdapter creates the adapter, or a config error when the token
// or chat id is missing.
func NewTelegramAdapter(cfg *TelegramConfig) (*TelegramAdapter, error) {
	if cfg.BotToken == "" {
		return nil, apperr.MissingSetting("TELEGRAM_BOT_TOKEN")
	}
	if cfg.ChatID == 0 {
		return nil, apperr.MissingSetting("TELEGRAM_CHAT_ID")
	}

	base := cfg.APIBase
	if base == "" {
		base = DefaultAPIBase
	}

	return &TelegramAdapter{
		apiURL: fmt.Sprintf("%s/bot%s", base, cfg.BotToken),
		chatID: cfg.ChatID,
		client: httputil.NewClient(httputil.TelegramClientConfig()),
	}, nil
}

// -----------------------------------------------------------------------------
// Wire types
// -----------------------------------------------------------------------------

type tgInlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type tgReplyMarkup struct {
	InlineKeyboard [][]tgInlineButton `json:"inline_keyboard"`
}

type tgSendMessageRequest struct {
	ChatID      int64          `json:"chat_id"`
	Text        string         `json:"text"`
	ParseMode   string         `json:"parse_mode,omitempty"`
	ReplyMarkup *tgReplyMarkup `json:"reply_markup,omitempty"`
}

type tgAnswerCallbackRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
}

type tgGetUpdatesRequest struct {
	Offset  int64 `json:"offset"`
	Timeout int   `json:"timeout"`
}

type tgUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
	CallbackQuery *struct {
		ID      string `json:"id"`
		Data    string `json:"data"`
		Message *struct {
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
	} `json:"callback_query"`
}

type tgResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// -----------------------------------------------------------------------------
// Messenger implementation
// -----------------------------------------------------------------------------

// SendMessage sends a Markdown-formatted message to the configured chat.
func (a *TelegramAdapter) SendMessage(ctx context.Context, text string) error {
	_, err := a.call(ctx, "sendMessage", tgSendMessageRequest{
		ChatID:    a.chatID,
		Text:      text,
		ParseMode: "Markdown",
	})
	return err
}

// SendMessageWithButtons sends a message with an inline keyboard.
func (a *TelegramAdapter) SendMessageWithButtons(ctx context.Context, text string, buttons [][]out.Button) error {
	markup := &tgReplyMarkup{InlineKeyboard: make([][]tgInlineButton, 0, len(buttons))}
	for _, row := range buttons {
		wireRow := make([]tgInlineButton, 0, len(row))
		for _, b := range row {
			wireRow = append(wireRow, tgInlineButton{Text: b.Text, CallbackData: b.Data})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, wireRow)
	}

	_, err := a.call(ctx, "sendMessage", tgSendMessageRequest{
		ChatID:      a.chatID,
		Text:        text,
		ParseMode:   "Markdown",
		ReplyMarkup: markup,
	})
	return err
}

// PollUpdates long-polls for updates with id >= sinceCursor.
func (a *TelegramAdapter) PollUpdates(ctx context.Context, sinceCursor int64) ([]*out.Update, error) {
	raw, err := a.call(ctx, "getUpdates", tgGetUpdatesRequest{
		Offset:  sinceCursor,
		Timeout: 10,
	})
	if err != nil {
		return nil, err
	}

	var wireUpdates []tgUpdate
	if err := json.Unmarshal(raw, &wireUpdates); err != nil {
		return nil, apperr.Parse("telegram updates", err)
	}

	updates := make([]*out.Update, 0, len(wireUpdates))
	for _, wu := range wireUpdates {
		u := &out.Update{ID: wu.UpdateID}
		switch {
		case wu.CallbackQuery != nil:
			press := &out.ButtonPress{
				CallbackID: wu.CallbackQuery.ID,
				Data:       wu.CallbackQuery.Data,
			}
			if wu.CallbackQuery.Message != nil {
				press.ChatID = wu.CallbackQuery.Message.Chat.ID
			}
			u.Press = press
		case wu.Message != nil:
			u.Text = &out.IncomingText{
				ChatID: wu.Message.Chat.ID,
				Text:   wu.Message.Text,
			}
		default:
			// Edited messages, channel posts and other update kinds are
			// skipped but still advance the cursor.
			continue
		}
		updates = append(updates, u)
	}
	return updates, nil
}

// AnswerCallback clears the loading spinner on a pressed button.
func (a *TelegramAdapter) AnswerCallback(ctx context.Context, callbackID, text string) error {
	_, err := a.call(ctx, "answerCallbackQuery", tgAnswerCallbackRequest{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	return err
}

// ChatID returns the configured chat id.
func (a *TelegramAdapter) ChatID() int64 {
	return a.chatID
}

// call posts a JSON request to one Bot API method and unwraps the envelope.
func (a *TelegramAdapter) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Internal("failed to encode telegram request", err)
	}

	req, err := http.NewRequest(http.MethodPost, a.apiURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Internal("failed to build telegram request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httputil.DoWithContext(ctx, a.client, req)
	if err != nil {
		return nil, apperr.Transport("telegram", err).WithDetail("method", method)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Transport("telegram", err).WithDetail("method", method)
	}

	var envelope tgResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, apperr.Parse("telegram response", err)
	}
	if !envelope.OK {
		return nil, apperr.Transport("telegram",
			fmt.Errorf("%s returned status %d: %s", method, resp.StatusCode, envelope.Description)).
			WithDetail("method", method).
			WithDetail("status", strconv.Itoa(resp.StatusCode))
	}

	return envelope.Result, nil
}
