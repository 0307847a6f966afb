// Package telegram implements the messaging-channel client and the
// notification layer built on it.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tverdokhlib/bankbridge/internal/common"
)

const defaultBaseURL = "https://api.telegram.org"

// InlineKeyboardButton is one interactive control under a message.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
}

// InlineKeyboardMarkup is the keyboard attached to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// Message is the subset of the Bot API message object the app reads.
type Message struct {
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	MessageID int64 `json:"message_id"`
}

// CallbackQuery is a pressed inline-keyboard button.
type CallbackQuery struct {
	Message *Message `json:"message"`
	ID      string   `json:"id"`
	Data    string   `json:"data"`
}

// Update is one Bot API update.
type Update struct {
	CallbackQuery *CallbackQuery `json:"callback_query"`
	UpdateID      int64          `json:"update_id"`
}

type apiResponse struct {
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	OK          bool            `json:"ok"`
}

// Client talks to the Telegram Bot API.
type Client struct {
	http *resty.Client
}

// NewClient creates a bot client. baseURL overrides the production endpoint
// when non-empty.
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http: resty.New().
			SetBaseURL(fmt.Sprintf("%s/bot%s", baseURL, token)).
			SetTimeout(60 * time.Second).
			SetHeader("Accept", "application/json"),
	}
}

// SendMessage sends an HTML-formatted message, optionally with an inline
// keyboard, and returns the sent message.
func (c *Client) SendMessage(ctx context.Context, chatID int64, html string, markup *InlineKeyboardMarkup) (*Message, error) {
	body := map[string]any{
		"chat_id":    chatID,
		"text":       html,
		"parse_mode": "HTML",
	}
	if markup != nil {
		body["reply_markup"] = markup
	}

	var message Message
	if err := c.call(ctx, "sendMessage", body, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

// EditMessageText replaces the text and keyboard of an existing message.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, html string, markup *InlineKeyboardMarkup) error {
	body := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       html,
		"parse_mode": "HTML",
	}
	if markup != nil {
		body["reply_markup"] = markup
	}
	return c.call(ctx, "editMessageText", body, nil)
}

// EditMessageReplyMarkup replaces only the keyboard of an existing message.
// A nil markup removes the keyboard.
func (c *Client) EditMessageReplyMarkup(ctx context.Context, chatID, messageID int64, markup *InlineKeyboardMarkup) error {
	body := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}
	if markup != nil {
		body["reply_markup"] = markup
	}
	return c.call(ctx, "editMessageReplyMarkup", body, nil)
}

// AnswerCallbackQuery acknowledges a button press, optionally with a toast.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	body := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		body["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", body, nil)
}

// GetUpdates long-polls for updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	body := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"callback_query"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", body, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *Client) call(ctx context.Context, method string, body map[string]any, result any) error {
	var out apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post("/" + method)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	if !resp.IsSuccess() || !out.OK {
		return fmt.Errorf("telegram %s: %w: %s", method, common.ErrBackendRejected, out.Description)
	}
	if result != nil {
		if err := json.Unmarshal(out.Result, result); err != nil {
			return fmt.Errorf("telegram %s: failed to decode result: %w", method, err)
		}
	}
	return nil
}
